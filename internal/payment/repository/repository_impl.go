package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/MphoBeeThwala/ahava-healthcare/internal/payment/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const selectColumns = `id, visit_id, amount_in_cents, currency, status,
	gateway_reference, gateway_data, created_at, updated_at`

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Payment, error) {
	var item domain.Payment
	err := db.WithContext(ctx).Raw(
		`SELECT `+selectColumns+`
		 FROM payments
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

func (r *repo) FindByReference(ctx context.Context, db *gorm.DB, reference string) (*domain.Payment, error) {
	var item domain.Payment
	err := db.WithContext(ctx).Raw(
		`SELECT `+selectColumns+`
		 FROM payments
		 WHERE gateway_reference = ?
		 LIMIT 1`,
		reference,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindLatestByVisit(ctx context.Context, db *gorm.DB, visitID snowflake.ID) (*domain.Payment, error) {
	var item domain.Payment
	err := db.WithContext(ctx).Raw(
		`SELECT `+selectColumns+`
		 FROM payments
		 WHERE visit_id = ?
		 ORDER BY created_at DESC
		 LIMIT 1`,
		visitID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, payment *domain.Payment) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO payments (
			id, visit_id, amount_in_cents, currency, status,
			gateway_reference, gateway_data, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		payment.ID,
		payment.VisitID,
		payment.AmountInCents,
		payment.Currency,
		payment.Status,
		payment.GatewayReference,
		payment.GatewayData,
		payment.CreatedAt,
		payment.UpdatedAt,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, payment *domain.Payment) error {
	return db.WithContext(ctx).Exec(
		`UPDATE payments
		 SET status = ?, gateway_reference = ?, gateway_data = ?, updated_at = ?
		 WHERE id = ?`,
		payment.Status,
		payment.GatewayReference,
		payment.GatewayData,
		time.Now().UTC(),
		payment.ID,
	).Error
}

func (r *repo) ListByPatient(ctx context.Context, db *gorm.DB, patientID snowflake.ID) ([]domain.Payment, error) {
	var items []domain.Payment
	err := db.WithContext(ctx).Raw(
		`SELECT p.id, p.visit_id, p.amount_in_cents, p.currency, p.status,
			p.gateway_reference, p.gateway_data, p.created_at, p.updated_at
		 FROM payments p
		 JOIN visits v ON v.id = p.visit_id
		 JOIN bookings b ON b.id = v.booking_id
		 WHERE b.patient_id = ?
		 ORDER BY p.created_at DESC`,
		patientID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
