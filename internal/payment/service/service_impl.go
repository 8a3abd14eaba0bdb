package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	bookingdomain "github.com/MphoBeeThwala/ahava-healthcare/internal/booking/domain"
	paymentdomain "github.com/MphoBeeThwala/ahava-healthcare/internal/payment/domain"
	visitdomain "github.com/MphoBeeThwala/ahava-healthcare/internal/visit/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Repo        paymentdomain.Repository
	BookingRepo bookingdomain.Repository
	VisitRepo   visitdomain.Repository
	Gateway     paymentdomain.Gateway
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	repo        paymentdomain.Repository
	bookingRepo bookingdomain.Repository
	visitRepo   visitdomain.Repository
	gateway     paymentdomain.Gateway
}

func NewService(p Params) *Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("payment.service"),
		genID:       p.GenID,
		repo:        p.Repo,
		bookingRepo: p.BookingRepo,
		visitRepo:   p.VisitRepo,
		gateway:     p.Gateway,
	}
}

func (s *Service) CreatePayment(ctx context.Context, visitID snowflake.ID, amountCents int64, currency string) (*paymentdomain.Payment, error) {
	if amountCents <= 0 {
		return nil, paymentdomain.ErrInvalidAmount
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = "ZAR"
	}

	visit, err := s.visitRepo.FindByID(ctx, s.db, visitID)
	if err != nil {
		return nil, err
	}
	if visit == nil {
		return nil, visitdomain.ErrVisitNotFound
	}

	now := time.Now().UTC()
	payment := &paymentdomain.Payment{
		ID:            s.genID.Generate(),
		VisitID:       visitID,
		AmountInCents: amountCents,
		Currency:      currency,
		Status:        paymentdomain.StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Insert(ctx, s.db, payment); err != nil {
		return nil, err
	}
	return payment, nil
}

// Initialize starts a gateway checkout for a pending payment. The
// payment and its booking move to PROCESSING carrying the generated
// reference.
func (s *Service) Initialize(ctx context.Context, paymentID snowflake.ID, email, callbackURL string) (*paymentdomain.InitializeResult, error) {
	payment, err := s.repo.FindByID(ctx, s.db, paymentID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, paymentdomain.ErrPaymentNotFound
	}
	if payment.Status == paymentdomain.StatusCompleted {
		return nil, paymentdomain.ErrAlreadyCompleted
	}

	reference := s.gateway.NewReference()
	result, err := s.gateway.Initialize(ctx, paymentdomain.InitializeParams{
		Email:       email,
		AmountCents: payment.AmountInCents,
		Currency:    payment.Currency,
		Reference:   reference,
		CallbackURL: callbackURL,
		Metadata: map[string]any{
			"payment_id": payment.ID.String(),
			"visit_id":   payment.VisitID.String(),
		},
	})
	if err != nil {
		return nil, err
	}
	if result.Reference != "" {
		reference = result.Reference
	}

	payment.Status = paymentdomain.StatusProcessing
	payment.GatewayReference = &reference
	payment.GatewayData = paymentdomain.MergeGatewayData(payment.GatewayData, map[string]any{
		"initialize": result.Raw,
	})

	if err := s.persistWithBookingMirror(ctx, payment, bookingdomain.PaymentStatusProcessing, &reference); err != nil {
		return nil, err
	}

	s.log.Info("payment initialized",
		zap.String("payment_id", payment.ID.String()),
		zap.String("reference", reference),
	)
	return result, nil
}

// ConfirmCharge settles a payment after a charge-succeeded signal. The
// gateway's verify call is authoritative; the webhook payload's stated
// status is never trusted.
func (s *Service) ConfirmCharge(ctx context.Context, reference string) error {
	payment, err := s.repo.FindByReference(ctx, s.db, reference)
	if err != nil {
		return err
	}
	if payment == nil {
		return paymentdomain.ErrPaymentNotFound
	}
	if payment.Status == paymentdomain.StatusCompleted {
		return nil
	}

	verified, err := s.gateway.Verify(ctx, reference)
	if err != nil {
		return err
	}

	status := paymentdomain.StatusFailed
	mirror := bookingdomain.PaymentStatusFailed
	if verified.Status == paymentdomain.VerifySuccess {
		status = paymentdomain.StatusCompleted
		mirror = bookingdomain.PaymentStatusCompleted
	}

	payment.Status = status
	payment.GatewayData = paymentdomain.MergeGatewayData(payment.GatewayData, map[string]any{
		"verify": verified.Raw,
	})

	if err := s.persistWithBookingMirror(ctx, payment, mirror, nil); err != nil {
		return err
	}

	s.log.Info("charge reconciled",
		zap.String("payment_id", payment.ID.String()),
		zap.String("reference", reference),
		zap.String("status", string(status)),
	)
	return nil
}

// FailCharge marks a payment FAILED after a charge-failed signal,
// storing the gateway's stated reason additively.
func (s *Service) FailCharge(ctx context.Context, reference, reason string) error {
	payment, err := s.repo.FindByReference(ctx, s.db, reference)
	if err != nil {
		return err
	}
	if payment == nil {
		return paymentdomain.ErrPaymentNotFound
	}
	if payment.Status == paymentdomain.StatusFailed {
		return nil
	}

	payment.Status = paymentdomain.StatusFailed
	payment.GatewayData = paymentdomain.MergeGatewayData(payment.GatewayData, map[string]any{
		"failure_reason": reason,
		"failed_at":      time.Now().UTC().Format(time.RFC3339),
	})

	if err := s.persistWithBookingMirror(ctx, payment, bookingdomain.PaymentStatusFailed, nil); err != nil {
		return err
	}

	s.log.Info("charge failed",
		zap.String("payment_id", payment.ID.String()),
		zap.String("reference", reference),
	)
	return nil
}

// Refund refunds a COMPLETED payment, optionally partially. The
// precondition is checked before any gateway call.
func (s *Service) Refund(ctx context.Context, paymentID snowflake.ID, reason string, amountCents *int64) (*paymentdomain.Payment, error) {
	payment, err := s.repo.FindByID(ctx, s.db, paymentID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, paymentdomain.ErrPaymentNotFound
	}
	if payment.Status != paymentdomain.StatusCompleted {
		return nil, paymentdomain.ErrNotRefundable
	}
	if payment.GatewayReference == nil || *payment.GatewayReference == "" {
		return nil, paymentdomain.ErrMissingReference
	}
	if amountCents != nil && (*amountCents <= 0 || *amountCents > payment.AmountInCents) {
		return nil, paymentdomain.ErrInvalidAmount
	}

	refundData, err := s.gateway.Refund(ctx, paymentdomain.RefundParams{
		Reference:   *payment.GatewayReference,
		AmountCents: amountCents,
		Reason:      reason,
	})
	if err != nil {
		return nil, err
	}

	payment.Status = paymentdomain.StatusRefunded
	payment.GatewayData = paymentdomain.MergeGatewayData(payment.GatewayData, map[string]any{
		"refund":        refundData,
		"refund_reason": reason,
		"refunded_at":   time.Now().UTC().Format(time.RFC3339),
	})

	if err := s.persistWithBookingMirror(ctx, payment, bookingdomain.PaymentStatusRefunded, nil); err != nil {
		return nil, err
	}

	s.log.Info("payment refunded",
		zap.String("payment_id", payment.ID.String()),
		zap.String("reason", reason),
	)
	return payment, nil
}

func (s *Service) FindByID(ctx context.Context, id snowflake.ID) (*paymentdomain.Payment, error) {
	payment, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, paymentdomain.ErrPaymentNotFound
	}
	return payment, nil
}

func (s *Service) FindByReference(ctx context.Context, reference string) (*paymentdomain.Payment, error) {
	payment, err := s.repo.FindByReference(ctx, s.db, reference)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, paymentdomain.ErrPaymentNotFound
	}
	return payment, nil
}

func (s *Service) ListUserPayments(ctx context.Context, patientID snowflake.ID) ([]paymentdomain.Payment, error) {
	return s.repo.ListByPatient(ctx, s.db, patientID)
}

// persistWithBookingMirror writes the payment and mirrors its outcome
// onto the parent booking in one transaction.
func (s *Service) persistWithBookingMirror(ctx context.Context, payment *paymentdomain.Payment, mirror bookingdomain.PaymentStatus, reference *string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Update(ctx, tx, payment); err != nil {
			return err
		}

		visit, err := s.visitRepo.FindByID(ctx, tx, payment.VisitID)
		if err != nil {
			return err
		}
		if visit == nil {
			s.log.Warn("payment has no visit, booking mirror skipped",
				zap.String("payment_id", payment.ID.String()),
			)
			return nil
		}
		return s.bookingRepo.SetPaymentStatus(ctx, tx, visit.BookingID, mirror, reference)
	})
}
