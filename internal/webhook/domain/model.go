package domain

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Status string

const (
	StatusReceived  Status = "RECEIVED"
	StatusProcessed Status = "PROCESSED"
	StatusFailed    Status = "FAILED"
)

// Event is the append-only delivery log. Rows are created on first
// sighting of a provider event id and updated in place on redelivery;
// they are never deleted.
type Event struct {
	ID           snowflake.ID   `json:"id" gorm:"primaryKey"`
	Provider     string         `json:"provider" gorm:"type:text;not null"`
	EventType    string         `json:"event_type" gorm:"type:text;not null"`
	EventID      *string        `json:"event_id"`
	Reference    *string        `json:"reference"`
	Payload      datatypes.JSON `json:"payload" gorm:"type:jsonb;not null"`
	Signature    string         `json:"signature" gorm:"type:text"`
	Headers      datatypes.JSON `json:"headers" gorm:"type:jsonb"`
	Status       Status         `json:"status" gorm:"type:text;not null;default:RECEIVED"`
	Retries      int            `json:"retries" gorm:"not null;default:0"`
	ErrorMessage *string        `json:"error_message"`
	ReceivedAt   time.Time      `json:"received_at" gorm:"not null"`
	ProcessedAt  *time.Time     `json:"processed_at"`
}

func (Event) TableName() string { return "webhook_events" }

// Envelope is the provider's event wrapper. The numeric id is kept as
// json.Number so large gateway ids survive without float rounding.
type Envelope struct {
	Event string       `json:"event"`
	Data  EnvelopeData `json:"data"`
}

type EnvelopeData struct {
	ID        json.Number `json:"id"`
	Reference string      `json:"reference"`
	Message   string      `json:"message"`
	Amount    int64       `json:"amount"`
}

var (
	ErrInvalidPayload   = errors.New("invalid_payload")
	ErrMissingSignature = errors.New("missing_signature")
	ErrInvalidSignature = errors.New("invalid_signature")
)

type Repository interface {
	FindByEventID(ctx context.Context, db *gorm.DB, provider, eventID string) (*Event, error)
	Insert(ctx context.Context, db *gorm.DB, event *Event) (bool, error)
	ResetForRetry(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	MarkProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID, processedAt time.Time) error
	MarkFailed(ctx context.Context, db *gorm.DB, id snowflake.ID, message string) error
	ListRecent(ctx context.Context, db *gorm.DB, limit int) ([]Event, error)
}
