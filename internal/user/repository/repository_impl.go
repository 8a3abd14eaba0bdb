package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/MphoBeeThwala/ahava-healthcare/internal/user/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.User, error) {
	var item domain.User
	err := db.WithContext(ctx).Raw(
		`SELECT id, email, first_name, last_name, role, is_active,
			last_known_lat, last_known_lng, last_location_update,
			created_at, updated_at
		 FROM users
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

func (r *repo) UpdateLocation(ctx context.Context, db *gorm.DB, id snowflake.ID, lat, lng float64, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE users
		 SET last_known_lat = ?, last_known_lng = ?, last_location_update = ?, updated_at = ?
		 WHERE id = ?`,
		lat,
		lng,
		at,
		at,
		id,
	).Error
}
