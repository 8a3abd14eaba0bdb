package seed

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/MphoBeeThwala/ahava-healthcare/internal/config"
	userdomain "github.com/MphoBeeThwala/ahava-healthcare/internal/user/domain"
	visitdomain "github.com/MphoBeeThwala/ahava-healthcare/internal/visit/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	demoAdminEmail   = "admin@ahava.local"
	demoNurseEmail   = "nurse@ahava.local"
	demoDoctorEmail  = "doctor@ahava.local"
	demoPatientEmail = "patient@ahava.local"
)

// EnsureDemoData seeds a demo care team and one scheduled visit so a
// fresh development database has something to coordinate against.
func EnsureDemoData(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := ensureUserTx(ctx, tx, node, demoAdminEmail, "Ahava", "Admin", userdomain.RoleAdmin); err != nil {
			return err
		}

		nurse, err := ensureUserTx(ctx, tx, node, demoNurseEmail, "Naledi", "Mokoena", userdomain.RoleNurse)
		if err != nil {
			return err
		}
		doctor, err := ensureUserTx(ctx, tx, node, demoDoctorEmail, "Thabo", "Dlamini", userdomain.RoleDoctor)
		if err != nil {
			return err
		}
		patient, err := ensureUserTx(ctx, tx, node, demoPatientEmail, "Lerato", "Khumalo", userdomain.RolePatient)
		if err != nil {
			return err
		}

		return ensureVisitTx(ctx, tx, node, patient.ID, nurse.ID, doctor.ID)
	})
}

func ensureUserTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, email, firstName, lastName string, role userdomain.Role) (userdomain.User, error) {
	var user userdomain.User
	err := tx.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return user, err
	}

	now := time.Now().UTC()
	user = userdomain.User{
		ID:        node.Generate(),
		Email:     strings.ToLower(email),
		FirstName: firstName,
		LastName:  lastName,
		Role:      role,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.WithContext(ctx).Create(&user).Error; err != nil {
		return user, err
	}
	return user, nil
}

func ensureVisitTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, patientID, nurseID, doctorID snowflake.ID) error {
	var count int64
	err := tx.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM bookings WHERE patient_id = ?`,
		patientID,
	).Scan(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	now := time.Now().UTC()
	scheduled := now.Add(24 * time.Hour)
	bookingID := node.Generate()

	err = tx.WithContext(ctx).Exec(
		`INSERT INTO bookings (id, patient_id, nurse_id, scheduled_date, payment_status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, 'PENDING', ?, ?)`,
		bookingID, patientID, nurseID, scheduled, now, now,
	).Error
	if err != nil {
		return err
	}

	return tx.WithContext(ctx).Exec(
		`INSERT INTO visits (id, booking_id, nurse_id, doctor_id, status, scheduled_start, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		node.Generate(), bookingID, nurseID, doctorID, visitdomain.StatusScheduled, scheduled, now, now,
	).Error
}

var Module = fx.Module("seed",
	fx.Invoke(func(cfg config.Config, db *gorm.DB, log *zap.Logger) error {
		if cfg.Environment != "development" {
			return nil
		}
		if err := EnsureDemoData(db); err != nil {
			return err
		}
		log.Info("demo data ensured")
		return nil
	}),
)
