package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/MphoBeeThwala/ahava-healthcare/internal/booking/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Booking, error) {
	var item domain.Booking
	err := db.WithContext(ctx).Raw(
		`SELECT id, patient_id, nurse_id, scheduled_date, payment_status,
			gateway_reference, created_at, updated_at
		 FROM bookings
		 WHERE id = ?
		 LIMIT 1`,
		id,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) SetPaymentStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status domain.PaymentStatus, reference *string) error {
	now := time.Now().UTC()
	if reference != nil {
		return db.WithContext(ctx).Exec(
			`UPDATE bookings
			 SET payment_status = ?, gateway_reference = ?, updated_at = ?
			 WHERE id = ?`,
			status,
			*reference,
			now,
			id,
		).Error
	}
	return db.WithContext(ctx).Exec(
		`UPDATE bookings
		 SET payment_status = ?, updated_at = ?
		 WHERE id = ?`,
		status,
		now,
		id,
	).Error
}
