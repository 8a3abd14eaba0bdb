package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// PaymentStatus mirrors the latest payment outcome onto the booking so
// booking queries never need a join against payments.
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "PENDING"
	PaymentStatusProcessing PaymentStatus = "PROCESSING"
	PaymentStatusCompleted  PaymentStatus = "COMPLETED"
	PaymentStatusFailed     PaymentStatus = "FAILED"
	PaymentStatusRefunded   PaymentStatus = "REFUNDED"
)

type Booking struct {
	ID               snowflake.ID  `json:"id" gorm:"primaryKey"`
	PatientID        snowflake.ID  `json:"patient_id" gorm:"not null;index"`
	NurseID          *snowflake.ID `json:"nurse_id"`
	ScheduledDate    time.Time     `json:"scheduled_date" gorm:"not null"`
	PaymentStatus    PaymentStatus `json:"payment_status" gorm:"type:text;not null;default:PENDING"`
	GatewayReference *string       `json:"gateway_reference"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

func (Booking) TableName() string { return "bookings" }

var ErrBookingNotFound = errors.New("booking_not_found")

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Booking, error)
	SetPaymentStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status PaymentStatus, reference *string) error
}
