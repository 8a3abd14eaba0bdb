package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/MphoBeeThwala/ahava-healthcare/internal/webhook/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const selectColumns = `id, provider, event_type, event_id, reference, payload,
	signature, headers, status, retries, error_message, received_at, processed_at`

func (r *repo) FindByEventID(ctx context.Context, db *gorm.DB, provider, eventID string) (*domain.Event, error) {
	var item domain.Event
	err := db.WithContext(ctx).Raw(
		`SELECT `+selectColumns+`
		 FROM webhook_events
		 WHERE provider = ? AND event_id = ?
		 LIMIT 1`,
		provider,
		eventID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, event *domain.Event) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO webhook_events (
			id, provider, event_type, event_id, reference, payload,
			signature, headers, status, retries, error_message, received_at, processed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (provider, event_id) WHERE event_id IS NOT NULL DO NOTHING`,
		event.ID,
		event.Provider,
		event.EventType,
		event.EventID,
		event.Reference,
		event.Payload,
		event.Signature,
		event.Headers,
		event.Status,
		event.Retries,
		event.ErrorMessage,
		event.ReceivedAt,
		event.ProcessedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) ResetForRetry(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`UPDATE webhook_events
		 SET status = ?, retries = retries + 1, error_message = NULL, processed_at = NULL
		 WHERE id = ?`,
		domain.StatusReceived,
		id,
	).Error
}

func (r *repo) MarkProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID, processedAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE webhook_events
		 SET status = ?, processed_at = ?
		 WHERE id = ?`,
		domain.StatusProcessed,
		processedAt,
		id,
	).Error
}

func (r *repo) MarkFailed(ctx context.Context, db *gorm.DB, id snowflake.ID, message string) error {
	return db.WithContext(ctx).Exec(
		`UPDATE webhook_events
		 SET status = ?, error_message = ?
		 WHERE id = ?`,
		domain.StatusFailed,
		message,
		id,
	).Error
}

func (r *repo) ListRecent(ctx context.Context, db *gorm.DB, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	var items []domain.Event
	err := db.WithContext(ctx).Raw(
		`SELECT `+selectColumns+`
		 FROM webhook_events
		 ORDER BY received_at DESC
		 LIMIT ?`,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
