package ws_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	userdomain "github.com/MphoBeeThwala/ahava-healthcare/internal/user/domain"
	userrepo "github.com/MphoBeeThwala/ahava-healthcare/internal/user/repository"
	visitdomain "github.com/MphoBeeThwala/ahava-healthcare/internal/visit/domain"
	visitrepo "github.com/MphoBeeThwala/ahava-healthcare/internal/visit/repository"
	visitservice "github.com/MphoBeeThwala/ahava-healthcare/internal/visit/service"
	"github.com/MphoBeeThwala/ahava-healthcare/internal/ws"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	schema := []string{
		`CREATE TABLE users (
			id BIGINT PRIMARY KEY,
			email TEXT NOT NULL,
			first_name TEXT NOT NULL DEFAULT '',
			last_name TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			last_known_lat DOUBLE PRECISION,
			last_known_lng DOUBLE PRECISION,
			last_location_update TIMESTAMP,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE bookings (
			id BIGINT PRIMARY KEY,
			patient_id BIGINT NOT NULL,
			nurse_id BIGINT,
			scheduled_date TIMESTAMP NOT NULL,
			payment_status TEXT NOT NULL DEFAULT 'PENDING',
			gateway_reference TEXT,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE visits (
			id BIGINT PRIMARY KEY,
			booking_id BIGINT NOT NULL,
			nurse_id BIGINT,
			doctor_id BIGINT,
			status TEXT NOT NULL DEFAULT 'SCHEDULED',
			scheduled_start TIMESTAMP NOT NULL,
			actual_start TIMESTAMP,
			actual_end TIMESTAMP,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE visit_locations (
			id BIGINT PRIMARY KEY,
			visit_id BIGINT NOT NULL,
			latitude DOUBLE PRECISION NOT NULL,
			longitude DOUBLE PRECISION NOT NULL,
			recorded_at TIMESTAMP NOT NULL
		)`,
	}
	for _, stmt := range schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("schema exec failed: %v", err)
		}
	}
	return db
}

type broadcastFixture struct {
	db       *gorm.DB
	node     *snowflake.Node
	registry *ws.Registry
	svc      *ws.BroadcastService

	nurse   *userdomain.User
	patient snowflake.ID
	doctor  snowflake.ID
	visitID snowflake.ID
}

func newBroadcastFixture(t *testing.T, nodeID int64) *broadcastFixture {
	t.Helper()

	db := setupTestDB(t)
	node := newNode(t, nodeID)
	registry := ws.NewRegistry(ws.RegistryParams{Log: zap.NewNop()})
	visitSvc := visitservice.NewService(visitservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  visitrepo.Provide(),
	})
	svc := ws.NewBroadcastService(ws.ServiceParams{
		DB:       db,
		Log:      zap.NewNop(),
		Users:    userrepo.Provide(),
		VisitSvc: visitSvc,
		Registry: registry,
	})

	f := &broadcastFixture{db: db, node: node, registry: registry, svc: svc}
	f.seed(t)
	return f
}

// seed creates a nurse en route to a patient with an assigned doctor.
func (f *broadcastFixture) seed(t *testing.T) {
	t.Helper()

	now := time.Now().UTC()
	nurseID := f.node.Generate()
	f.patient = f.node.Generate()
	f.doctor = f.node.Generate()
	bookingID := f.node.Generate()
	f.visitID = f.node.Generate()

	users := []struct {
		id   snowflake.ID
		role userdomain.Role
	}{
		{nurseID, userdomain.RoleNurse},
		{f.patient, userdomain.RolePatient},
		{f.doctor, userdomain.RoleDoctor},
	}
	for _, u := range users {
		if err := f.db.Exec(
			`INSERT INTO users (id, email, role, is_active, created_at, updated_at)
			 VALUES (?, ?, ?, TRUE, ?, ?)`,
			u.id, fmt.Sprintf("%s@example.com", u.id), u.role, now, now,
		).Error; err != nil {
			t.Fatalf("seed user: %v", err)
		}
	}

	if err := f.db.Exec(
		`INSERT INTO bookings (id, patient_id, nurse_id, scheduled_date, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		bookingID, f.patient, nurseID, now, now, now,
	).Error; err != nil {
		t.Fatalf("seed booking: %v", err)
	}
	if err := f.db.Exec(
		`INSERT INTO visits (id, booking_id, nurse_id, doctor_id, status, scheduled_start, created_at, updated_at)
		 VALUES (?, ?, ?, ?, 'EN_ROUTE', ?, ?, ?)`,
		f.visitID, bookingID, nurseID, f.doctor, now, now, now,
	).Error; err != nil {
		t.Fatalf("seed visit: %v", err)
	}

	f.nurse = &userdomain.User{ID: nurseID, Role: userdomain.RoleNurse, IsActive: true}
}

func nurseLocationFrames(t *testing.T, conn *fakeConn) []ws.NurseLocationData {
	t.Helper()

	var out []ws.NurseLocationData
	for _, v := range conn.events(t) {
		event, ok := v.(ws.Event)
		if !ok || event.Type != ws.TypeNurseLocationUpdate {
			continue
		}
		data, ok := event.Data.(ws.NurseLocationData)
		if !ok {
			t.Fatalf("unexpected data type %T", event.Data)
		}
		out = append(out, data)
	}
	return out
}

func TestLocationUpdateFansOutToParticipants(t *testing.T) {
	ctx := context.Background()
	f := newBroadcastFixture(t, 70)

	patientConn := &fakeConn{}
	doctorConn := &fakeConn{}
	f.registry.Register(f.patient, userdomain.RolePatient, patientConn)
	f.registry.Register(f.doctor, userdomain.RoleDoctor, doctorConn)

	if err := f.svc.LocationUpdate(ctx, f.nurse, -26.2041, 28.0473); err != nil {
		t.Fatalf("location update: %v", err)
	}

	// Nurse profile position is persisted.
	user, err := userrepo.Provide().FindByID(ctx, f.db, f.nurse.ID)
	if err != nil {
		t.Fatalf("reload nurse: %v", err)
	}
	if user.LastKnownLat == nil || *user.LastKnownLat != -26.2041 {
		t.Fatalf("nurse position not persisted: %+v", user)
	}

	// A track point is appended to the active visit.
	var count int64
	if err := f.db.Raw(`SELECT COUNT(*) FROM visit_locations WHERE visit_id = ?`, f.visitID).Scan(&count).Error; err != nil {
		t.Fatalf("count track points: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 track point, got %d", count)
	}

	patientFrames := nurseLocationFrames(t, patientConn)
	if len(patientFrames) != 1 {
		t.Fatalf("patient did not receive location frame")
	}
	if patientFrames[0].NurseID != "" {
		t.Fatalf("patient frame leaks nurse id: %+v", patientFrames[0])
	}
	if patientFrames[0].VisitID != f.visitID.String() || patientFrames[0].Lat != -26.2041 {
		t.Fatalf("patient frame wrong: %+v", patientFrames[0])
	}

	doctorFrames := nurseLocationFrames(t, doctorConn)
	if len(doctorFrames) != 1 {
		t.Fatalf("doctor did not receive location frame")
	}
	if doctorFrames[0].NurseID != f.nurse.ID.String() {
		t.Fatalf("doctor frame missing nurse id: %+v", doctorFrames[0])
	}
}

func TestLocationUpdateRejectsBadCoordinates(t *testing.T) {
	ctx := context.Background()
	f := newBroadcastFixture(t, 71)

	cases := [][2]float64{{91, 0}, {-91, 0}, {0, 181}, {0, -181}}
	for _, c := range cases {
		if err := f.svc.LocationUpdate(ctx, f.nurse, c[0], c[1]); !errors.Is(err, ws.ErrInvalidCoordinates) {
			t.Fatalf("coords %v: expected ErrInvalidCoordinates, got %v", c, err)
		}
	}

	// Nothing was persisted.
	var count int64
	if err := f.db.Raw(`SELECT COUNT(*) FROM visit_locations`).Scan(&count).Error; err != nil {
		t.Fatalf("count track points: %v", err)
	}
	if count != 0 {
		t.Fatalf("rejected update left %d track points", count)
	}
}

func TestLocationUpdateWithoutActiveVisit(t *testing.T) {
	ctx := context.Background()
	f := newBroadcastFixture(t, 72)

	if err := f.db.Exec(`UPDATE visits SET status = 'COMPLETED' WHERE id = ?`, f.visitID).Error; err != nil {
		t.Fatalf("close visit: %v", err)
	}

	// Position still persists; no track point, no fanout.
	if err := f.svc.LocationUpdate(ctx, f.nurse, -26.2, 28.0); err != nil {
		t.Fatalf("location update: %v", err)
	}

	user, err := userrepo.Provide().FindByID(ctx, f.db, f.nurse.ID)
	if err != nil {
		t.Fatalf("reload nurse: %v", err)
	}
	if user.LastKnownLat == nil {
		t.Fatalf("nurse position not persisted without active visit")
	}

	var count int64
	if err := f.db.Raw(`SELECT COUNT(*) FROM visit_locations`).Scan(&count).Error; err != nil {
		t.Fatalf("count track points: %v", err)
	}
	if count != 0 {
		t.Fatalf("track point appended for closed visit")
	}
}

func TestVisitStatusUpdateBroadcast(t *testing.T) {
	ctx := context.Background()
	f := newBroadcastFixture(t, 73)

	patientConn := &fakeConn{}
	doctorConn := &fakeConn{}
	f.registry.Register(f.patient, userdomain.RolePatient, patientConn)
	f.registry.Register(f.doctor, userdomain.RoleDoctor, doctorConn)

	if err := f.svc.VisitStatusUpdate(ctx, f.nurse, f.visitID, visitdomain.StatusArrived); err != nil {
		t.Fatalf("visit status update: %v", err)
	}

	for name, conn := range map[string]*fakeConn{"patient": patientConn, "doctor": doctorConn} {
		events := conn.events(t)
		if len(events) != 1 {
			t.Fatalf("%s: expected 1 frame, got %d", name, len(events))
		}
		event := events[0].(ws.Event)
		if event.Type != ws.TypeVisitStatusChanged {
			t.Fatalf("%s: wrong event type %s", name, event.Type)
		}
		data := event.Data.(ws.VisitStatusData)
		if data.VisitID != f.visitID.String() || data.Status != "ARRIVED" {
			t.Fatalf("%s: wrong payload %+v", name, data)
		}
	}
}

func TestTypingDelivery(t *testing.T) {
	f := newBroadcastFixture(t, 74)

	recipientConn := &fakeConn{}
	f.registry.Register(f.patient, userdomain.RolePatient, recipientConn)

	f.svc.Typing(f.nurse, f.patient, f.visitID.String(), true)

	events := recipientConn.events(t)
	if len(events) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(events))
	}
	event := events[0].(ws.Event)
	if event.Type != ws.TypeTypingIndicator {
		t.Fatalf("wrong event type %s", event.Type)
	}
	data := event.Data.(ws.TypingIndicatorData)
	if data.SenderID != f.nurse.ID.String() || !data.IsTyping {
		t.Fatalf("wrong payload %+v", data)
	}

	// An offline recipient is silently skipped.
	f.svc.Typing(f.nurse, f.doctor, f.visitID.String(), false)
}
