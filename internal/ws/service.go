package ws

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	userdomain "github.com/MphoBeeThwala/ahava-healthcare/internal/user/domain"
	visitdomain "github.com/MphoBeeThwala/ahava-healthcare/internal/visit/domain"
	visitservice "github.com/MphoBeeThwala/ahava-healthcare/internal/visit/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInvalidCoordinates = errors.New("invalid_coordinates")

type ServiceParams struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Users    userdomain.Repository
	VisitSvc *visitservice.Service
	Registry *Registry
}

// BroadcastService executes realtime commands and fans the resulting
// events out to exactly the interested identities. Delivery is
// best-effort: an offline recipient is never an error.
type BroadcastService struct {
	db       *gorm.DB
	log      *zap.Logger
	users    userdomain.Repository
	visitSvc *visitservice.Service
	registry *Registry
}

func NewBroadcastService(p ServiceParams) *BroadcastService {
	return &BroadcastService{
		db:       p.DB,
		log:      p.Log.Named("ws.broadcast"),
		users:    p.Users,
		visitSvc: p.VisitSvc,
		registry: p.Registry,
	}
}

// LocationUpdate persists a nurse's position and, when the nurse has an
// active visit, appends to that visit's GPS track and notifies the
// patient and assigned doctor.
func (s *BroadcastService) LocationUpdate(ctx context.Context, user *userdomain.User, lat, lng float64) error {
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return ErrInvalidCoordinates
	}

	now := time.Now().UTC()
	if err := s.users.UpdateLocation(ctx, s.db, user.ID, lat, lng, now); err != nil {
		return err
	}

	visit, err := s.visitSvc.ActiveVisitForNurse(ctx, user.ID)
	if err != nil {
		return err
	}
	if visit == nil {
		return nil
	}

	if err := s.visitSvc.AppendLocation(ctx, visit.ID, lat, lng, now); err != nil {
		return err
	}

	timestamp := now.Format(time.RFC3339)
	s.registry.Send(visit.PatientID, Event{
		Type: TypeNurseLocationUpdate,
		Data: NurseLocationData{
			VisitID:   visit.ID.String(),
			Lat:       lat,
			Lng:       lng,
			Timestamp: timestamp,
		},
	})
	if visit.DoctorID != nil && *visit.DoctorID != 0 {
		s.registry.Send(*visit.DoctorID, Event{
			Type: TypeNurseLocationUpdate,
			Data: NurseLocationData{
				VisitID:   visit.ID.String(),
				NurseID:   user.ID.String(),
				Lat:       lat,
				Lng:       lng,
				Timestamp: timestamp,
			},
		})
	}
	return nil
}

// VisitStatusUpdate applies a status transition and broadcasts
// VISIT_STATUS_CHANGED to the visit's patient and doctor.
func (s *BroadcastService) VisitStatusUpdate(ctx context.Context, user *userdomain.User, visitID snowflake.ID, status visitdomain.Status) error {
	change, err := s.visitSvc.UpdateStatus(ctx, visitID, user.ID, user.Role, status)
	if err != nil {
		return err
	}

	delivered := s.registry.Broadcast(change.Recipients, Event{
		Type: TypeVisitStatusChanged,
		Data: VisitStatusData{
			VisitID:   change.Visit.ID.String(),
			Status:    string(change.Visit.Status),
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	})
	s.log.Debug("visit status broadcast",
		zap.String("visit_id", visitID.String()),
		zap.Int("delivered", delivered),
	)
	return nil
}

// Typing relays a typing indicator to one recipient verbatim.
func (s *BroadcastService) Typing(user *userdomain.User, recipientID snowflake.ID, visitID string, isTyping bool) {
	s.registry.Send(recipientID, Event{
		Type: TypeTypingIndicator,
		Data: TypingIndicatorData{
			SenderID: user.ID.String(),
			VisitID:  visitID,
			IsTyping: isTyping,
		},
	})
}
