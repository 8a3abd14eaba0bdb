package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/MphoBeeThwala/ahava-healthcare/internal/metrics"
	paymentdomain "github.com/MphoBeeThwala/ahava-healthcare/internal/payment/domain"
	paymentservice "github.com/MphoBeeThwala/ahava-healthcare/internal/payment/service"
	webhookdomain "github.com/MphoBeeThwala/ahava-healthcare/internal/webhook/domain"
	"github.com/MphoBeeThwala/ahava-healthcare/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Repo       webhookdomain.Repository
	PaymentSvc *paymentservice.Service
	Metrics    *metrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	repo       webhookdomain.Repository
	paymentSvc *paymentservice.Service
	metrics    *metrics.Metrics

	mu    sync.Mutex
	locks map[string]*eventLock
}

type eventLock struct {
	mu   sync.Mutex
	refs int
}

func NewService(p Params) *Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("webhook.service"),
		genID:      p.GenID,
		repo:       p.Repo,
		paymentSvc: p.PaymentSvc,
		metrics:    p.Metrics,
		locks:      map[string]*eventLock{},
	}
}

type Result struct {
	Duplicate bool
}

// Ingest records a verified provider delivery and runs its handler.
// Deliveries sharing an event id are serialized behind an in-process
// lock so the lookup-then-upsert stays single-writer even when the
// provider redelivers concurrently.
func (s *Service) Ingest(ctx context.Context, provider string, payload []byte, signature string, headers map[string]string) (*Result, error) {
	var envelope webhookdomain.Envelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, webhookdomain.ErrInvalidPayload
	}
	eventType := strings.TrimSpace(envelope.Event)
	if eventType == "" {
		return nil, webhookdomain.ErrInvalidPayload
	}

	eventID := strings.TrimSpace(envelope.Data.ID.String())
	if eventID != "" {
		unlock := s.lockEvent(provider + ":" + eventID)
		defer unlock()
	}

	stored, err := s.upsertEvent(ctx, provider, eventType, eventID, envelope.Data.Reference, payload, signature, headers)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		s.recordOutcome(provider, eventType, "duplicate")
		return &Result{Duplicate: true}, nil
	}

	if err := s.dispatch(ctx, eventType, &envelope); err != nil {
		if markErr := s.repo.MarkFailed(ctx, s.db, stored.ID, err.Error()); markErr != nil {
			s.log.Error("failed to mark webhook event failed",
				zap.String("event_id", eventID),
				zap.Error(markErr),
			)
		}
		s.recordOutcome(provider, eventType, "failed")
		return nil, err
	}

	if err := s.repo.MarkProcessed(ctx, s.db, stored.ID, time.Now().UTC()); err != nil {
		return nil, err
	}
	s.recordOutcome(provider, eventType, "processed")
	return &Result{}, nil
}

func (s *Service) ListRecent(ctx context.Context, limit int) ([]webhookdomain.Event, error) {
	return s.repo.ListRecent(ctx, s.db, limit)
}

// upsertEvent returns nil when the event is already PROCESSED.
func (s *Service) upsertEvent(ctx context.Context, provider, eventType, eventID, reference string, payload []byte, signature string, headers map[string]string) (*webhookdomain.Event, error) {
	if eventID != "" {
		existing, err := s.repo.FindByEventID(ctx, s.db, provider, eventID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			if existing.Status == webhookdomain.StatusProcessed {
				return nil, nil
			}
			if err := s.repo.ResetForRetry(ctx, s.db, existing.ID); err != nil {
				return nil, err
			}
			existing.Status = webhookdomain.StatusReceived
			existing.Retries++
			return existing, nil
		}
	}

	headerBlob, _ := json.Marshal(headers)
	event := &webhookdomain.Event{
		ID:         s.genID.Generate(),
		Provider:   provider,
		EventType:  eventType,
		Payload:    datatypes.JSON(payload),
		Signature:  signature,
		Headers:    datatypes.JSON(headerBlob),
		Status:     webhookdomain.StatusReceived,
		ReceivedAt: time.Now().UTC(),
	}
	if eventID != "" {
		event.EventID = &eventID
	}
	if trimmed := strings.TrimSpace(reference); trimmed != "" {
		event.Reference = &trimmed
	}

	inserted, err := s.repo.Insert(ctx, s.db, event)
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			inserted = false
		} else {
			return nil, err
		}
	}
	if inserted {
		return event, nil
	}

	// Lost the insert race. Reload and retry through the update path.
	existing, err := s.repo.FindByEventID(ctx, s.db, provider, eventID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, webhookdomain.ErrInvalidPayload
	}
	if existing.Status == webhookdomain.StatusProcessed {
		return nil, nil
	}
	if err := s.repo.ResetForRetry(ctx, s.db, existing.ID); err != nil {
		return nil, err
	}
	existing.Retries++
	return existing, nil
}

func (s *Service) dispatch(ctx context.Context, eventType string, envelope *webhookdomain.Envelope) error {
	reference := strings.TrimSpace(envelope.Data.Reference)

	switch eventType {
	case "charge.success":
		return s.ignoreMissingPayment(eventType, reference, s.paymentSvc.ConfirmCharge(ctx, reference))
	case "charge.failed":
		reason := strings.TrimSpace(envelope.Data.Message)
		if reason == "" {
			reason = "charge failed"
		}
		return s.ignoreMissingPayment(eventType, reference, s.paymentSvc.FailCharge(ctx, reference, reason))
	case "transfer.success", "transfer.failed", "refund.processed":
		s.log.Info("webhook event acknowledged",
			zap.String("event_type", eventType),
			zap.String("reference", reference),
		)
		return nil
	default:
		s.log.Info("unhandled webhook event type",
			zap.String("event_type", eventType),
		)
		return nil
	}
}

// ignoreMissingPayment treats a phantom reference as a no-op
// completion; the gateway cannot be asked to retry a record we never
// created.
func (s *Service) ignoreMissingPayment(eventType, reference string, err error) error {
	if errors.Is(err, paymentdomain.ErrPaymentNotFound) {
		s.log.Warn("webhook references unknown payment",
			zap.String("event_type", eventType),
			zap.String("reference", reference),
		)
		return nil
	}
	return err
}

func (s *Service) recordOutcome(provider, eventType, status string) {
	if s.metrics == nil {
		return
	}
	s.metrics.WebhookEvents.WithLabelValues(provider, eventType, status).Inc()
}

func (s *Service) lockEvent(key string) func() {
	s.mu.Lock()
	lock, ok := s.locks[key]
	if !ok {
		lock = &eventLock{}
		s.locks[key] = lock
	}
	lock.refs++
	s.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		s.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(s.locks, key)
		}
		s.mu.Unlock()
	}
}
