package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Status string

const (
	StatusScheduled  Status = "SCHEDULED"
	StatusEnRoute    Status = "EN_ROUTE"
	StatusArrived    Status = "ARRIVED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
)

func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusScheduled, StatusEnRoute, StatusArrived, StatusInProgress, StatusCompleted, StatusCancelled:
		return Status(s), true
	default:
		return "", false
	}
}

// Terminal reports whether no further transitions are accepted.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// ActiveStatuses are the statuses during which a nurse's location
// updates append to the visit's GPS track.
var ActiveStatuses = []Status{StatusEnRoute, StatusArrived, StatusInProgress}

type Visit struct {
	ID             snowflake.ID  `json:"id" gorm:"primaryKey"`
	BookingID      snowflake.ID  `json:"booking_id" gorm:"not null;index"`
	PatientID      snowflake.ID  `json:"patient_id" gorm:"->"`
	NurseID        *snowflake.ID `json:"nurse_id"`
	DoctorID       *snowflake.ID `json:"doctor_id"`
	Status         Status        `json:"status" gorm:"type:text;not null;default:SCHEDULED"`
	ScheduledStart time.Time     `json:"scheduled_start" gorm:"not null"`
	ActualStart    *time.Time    `json:"actual_start"`
	ActualEnd      *time.Time    `json:"actual_end"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

func (Visit) TableName() string { return "visits" }

type Location struct {
	ID         snowflake.ID `json:"id" gorm:"primaryKey"`
	VisitID    snowflake.ID `json:"visit_id" gorm:"not null;index"`
	Latitude   float64      `json:"latitude" gorm:"not null"`
	Longitude  float64      `json:"longitude" gorm:"not null"`
	RecordedAt time.Time    `json:"recorded_at" gorm:"not null"`
}

func (Location) TableName() string { return "visit_locations" }

var (
	ErrVisitNotFound = errors.New("visit_not_found")
	ErrInvalidStatus = errors.New("invalid_visit_status")
	ErrVisitClosed   = errors.New("visit_closed")
	ErrNotAssigned   = errors.New("not_assigned_to_visit")
	ErrInvalidRole   = errors.New("invalid_role")
)

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Visit, error)
	ActiveForNurse(ctx context.Context, db *gorm.DB, nurseID snowflake.ID) (*Visit, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, visit *Visit) error
	InsertLocation(ctx context.Context, db *gorm.DB, loc *Location) error
	ListLocations(ctx context.Context, db *gorm.DB, visitID snowflake.ID) ([]Location, error)
}
