package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
	StatusRefunded   Status = "REFUNDED"
)

type Payment struct {
	ID               snowflake.ID      `json:"id" gorm:"primaryKey"`
	VisitID          snowflake.ID      `json:"visit_id" gorm:"not null;index"`
	AmountInCents    int64             `json:"amount_in_cents" gorm:"not null"`
	Currency         string            `json:"currency" gorm:"type:text;not null"`
	Status           Status            `json:"status" gorm:"type:text;not null;default:PENDING"`
	GatewayReference *string           `json:"gateway_reference"`
	GatewayData      datatypes.JSONMap `json:"gateway_data" gorm:"type:jsonb"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

func (Payment) TableName() string { return "payments" }

// MergeGatewayData overlays extra onto the existing gateway blob without
// discarding previously stored keys.
func MergeGatewayData(existing datatypes.JSONMap, extra map[string]any) datatypes.JSONMap {
	merged := datatypes.JSONMap{}
	for key, value := range existing {
		merged[key] = value
	}
	for key, value := range extra {
		merged[key] = value
	}
	return merged
}

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Payment, error)
	FindByReference(ctx context.Context, db *gorm.DB, reference string) (*Payment, error)
	FindLatestByVisit(ctx context.Context, db *gorm.DB, visitID snowflake.ID) (*Payment, error)
	Insert(ctx context.Context, db *gorm.DB, payment *Payment) error
	Update(ctx context.Context, db *gorm.DB, payment *Payment) error
	ListByPatient(ctx context.Context, db *gorm.DB, patientID snowflake.ID) ([]Payment, error)
}
