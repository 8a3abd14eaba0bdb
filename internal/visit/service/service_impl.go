package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	userdomain "github.com/MphoBeeThwala/ahava-healthcare/internal/user/domain"
	visitdomain "github.com/MphoBeeThwala/ahava-healthcare/internal/visit/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  visitdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  visitdomain.Repository
}

func NewService(p Params) *Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("visit.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

// StatusChange carries the updated visit plus the parties that should
// be notified of the transition.
type StatusChange struct {
	Visit      *visitdomain.Visit
	Recipients []snowflake.ID
}

func (s *Service) FindByID(ctx context.Context, id snowflake.ID) (*visitdomain.Visit, error) {
	visit, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if visit == nil {
		return nil, visitdomain.ErrVisitNotFound
	}
	return visit, nil
}

// UpdateStatus applies a status transition on behalf of an actor.
// CANCELLED and COMPLETED are terminal. actualStart and actualEnd are
// set on the first transition into IN_PROGRESS and COMPLETED and never
// overwritten afterwards.
func (s *Service) UpdateStatus(ctx context.Context, visitID, actorID snowflake.ID, role userdomain.Role, status visitdomain.Status) (*StatusChange, error) {
	if _, ok := visitdomain.ParseStatus(string(status)); !ok {
		return nil, visitdomain.ErrInvalidStatus
	}

	visit, err := s.repo.FindByID(ctx, s.db, visitID)
	if err != nil {
		return nil, err
	}
	if visit == nil {
		return nil, visitdomain.ErrVisitNotFound
	}
	if visit.Status.Terminal() {
		return nil, visitdomain.ErrVisitClosed
	}

	switch role {
	case userdomain.RoleAdmin:
	case userdomain.RoleNurse:
		if visit.NurseID == nil || *visit.NurseID != actorID {
			return nil, visitdomain.ErrNotAssigned
		}
	case userdomain.RoleDoctor:
		if visit.DoctorID == nil || *visit.DoctorID != actorID {
			return nil, visitdomain.ErrNotAssigned
		}
	default:
		return nil, visitdomain.ErrInvalidRole
	}

	now := time.Now().UTC()
	visit.Status = status
	if status == visitdomain.StatusInProgress && visit.ActualStart == nil {
		visit.ActualStart = &now
	}
	if status == visitdomain.StatusCompleted && visit.ActualEnd == nil {
		visit.ActualEnd = &now
	}

	if err := s.repo.UpdateStatus(ctx, s.db, visit); err != nil {
		return nil, err
	}

	s.log.Info("visit status updated",
		zap.String("visit_id", visit.ID.String()),
		zap.String("status", string(status)),
		zap.String("actor_id", actorID.String()),
	)

	recipients := []snowflake.ID{visit.PatientID}
	if visit.DoctorID != nil && *visit.DoctorID != 0 {
		recipients = append(recipients, *visit.DoctorID)
	}
	return &StatusChange{Visit: visit, Recipients: recipients}, nil
}

// ActiveVisitForNurse returns the nurse's most recently updated visit
// in EN_ROUTE, ARRIVED or IN_PROGRESS, or nil when none exists.
func (s *Service) ActiveVisitForNurse(ctx context.Context, nurseID snowflake.ID) (*visitdomain.Visit, error) {
	return s.repo.ActiveForNurse(ctx, s.db, nurseID)
}

// AppendLocation appends a point to the visit's GPS track.
func (s *Service) AppendLocation(ctx context.Context, visitID snowflake.ID, lat, lng float64, at time.Time) error {
	return s.repo.InsertLocation(ctx, s.db, &visitdomain.Location{
		ID:         s.genID.Generate(),
		VisitID:    visitID,
		Latitude:   lat,
		Longitude:  lng,
		RecordedAt: at,
	})
}

// Track returns the ordered GPS track for a visit.
func (s *Service) Track(ctx context.Context, visitID snowflake.ID) ([]visitdomain.Location, error) {
	return s.repo.ListLocations(ctx, s.db, visitID)
}
