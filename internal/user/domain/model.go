package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Role is the platform role carried in the JWT and enforced on every
// realtime operation.
type Role string

const (
	RolePatient Role = "PATIENT"
	RoleNurse   Role = "NURSE"
	RoleDoctor  Role = "DOCTOR"
	RoleAdmin   Role = "ADMIN"
)

func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RolePatient, RoleNurse, RoleDoctor, RoleAdmin:
		return Role(s), true
	default:
		return "", false
	}
}

type User struct {
	ID                 snowflake.ID `json:"id" gorm:"primaryKey"`
	Email              string       `json:"email" gorm:"type:text;not null;uniqueIndex"`
	FirstName          string       `json:"first_name" gorm:"type:text"`
	LastName           string       `json:"last_name" gorm:"type:text"`
	Role               Role         `json:"role" gorm:"type:text;not null"`
	IsActive           bool         `json:"is_active" gorm:"not null;default:true"`
	LastKnownLat       *float64     `json:"last_known_lat"`
	LastKnownLng       *float64     `json:"last_known_lng"`
	LastLocationUpdate *time.Time   `json:"last_location_update"`
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
}

func (User) TableName() string { return "users" }

var ErrUserNotFound = errors.New("user_not_found")

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*User, error)
	UpdateLocation(ctx context.Context, db *gorm.DB, id snowflake.ID, lat, lng float64, at time.Time) error
}
