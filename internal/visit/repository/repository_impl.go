package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/MphoBeeThwala/ahava-healthcare/internal/visit/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Visit, error) {
	var item domain.Visit
	err := db.WithContext(ctx).Raw(
		`SELECT v.id, v.booking_id, b.patient_id, v.nurse_id, v.doctor_id,
			v.status, v.scheduled_start, v.actual_start, v.actual_end,
			v.created_at, v.updated_at
		 FROM visits v
		 JOIN bookings b ON b.id = v.booking_id
		 WHERE v.id = ?
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

func (r *repo) ActiveForNurse(ctx context.Context, db *gorm.DB, nurseID snowflake.ID) (*domain.Visit, error) {
	var item domain.Visit
	err := db.WithContext(ctx).Raw(
		`SELECT v.id, v.booking_id, b.patient_id, v.nurse_id, v.doctor_id,
			v.status, v.scheduled_start, v.actual_start, v.actual_end,
			v.created_at, v.updated_at
		 FROM visits v
		 JOIN bookings b ON b.id = v.booking_id
		 WHERE v.nurse_id = ? AND v.status IN (?, ?, ?)
		 ORDER BY v.updated_at DESC
		 LIMIT 1`,
		nurseID,
		domain.StatusEnRoute,
		domain.StatusArrived,
		domain.StatusInProgress,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, visit *domain.Visit) error {
	return db.WithContext(ctx).Exec(
		`UPDATE visits
		 SET status = ?, actual_start = ?, actual_end = ?, updated_at = ?
		 WHERE id = ?`,
		visit.Status,
		visit.ActualStart,
		visit.ActualEnd,
		time.Now().UTC(),
		visit.ID,
	).Error
}

func (r *repo) InsertLocation(ctx context.Context, db *gorm.DB, loc *domain.Location) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO visit_locations (id, visit_id, latitude, longitude, recorded_at)
		 VALUES (?, ?, ?, ?, ?)`,
		loc.ID,
		loc.VisitID,
		loc.Latitude,
		loc.Longitude,
		loc.RecordedAt,
	).Error
}

func (r *repo) ListLocations(ctx context.Context, db *gorm.DB, visitID snowflake.ID) ([]domain.Location, error) {
	var items []domain.Location
	err := db.WithContext(ctx).Raw(
		`SELECT id, visit_id, latitude, longitude, recorded_at
		 FROM visit_locations
		 WHERE visit_id = ?
		 ORDER BY recorded_at ASC`,
		visitID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
