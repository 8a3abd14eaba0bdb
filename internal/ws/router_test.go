package ws_test

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	userdomain "github.com/MphoBeeThwala/ahava-healthcare/internal/user/domain"
	visitdomain "github.com/MphoBeeThwala/ahava-healthcare/internal/visit/domain"
	"github.com/MphoBeeThwala/ahava-healthcare/internal/ws"
	"go.uber.org/zap"
)

type locationCall struct {
	lat, lng float64
}

type typingCall struct {
	recipientID snowflake.ID
	visitID     string
	isTyping    bool
}

type fakeBroadcaster struct {
	locationErr error
	statusErr   error

	locations []locationCall
	statuses  []visitdomain.Status
	typings   []typingCall
}

func (b *fakeBroadcaster) LocationUpdate(_ context.Context, _ *userdomain.User, lat, lng float64) error {
	if b.locationErr != nil {
		return b.locationErr
	}
	b.locations = append(b.locations, locationCall{lat: lat, lng: lng})
	return nil
}

func (b *fakeBroadcaster) VisitStatusUpdate(_ context.Context, _ *userdomain.User, _ snowflake.ID, status visitdomain.Status) error {
	if b.statusErr != nil {
		return b.statusErr
	}
	b.statuses = append(b.statuses, status)
	return nil
}

func (b *fakeBroadcaster) Typing(_ *userdomain.User, recipientID snowflake.ID, visitID string, isTyping bool) {
	b.typings = append(b.typings, typingCall{recipientID: recipientID, visitID: visitID, isTyping: isTyping})
}

func newRouter(t *testing.T, b ws.Broadcaster) *ws.Router {
	t.Helper()
	return ws.NewRouter(ws.RouterParams{Broadcaster: b, Log: zap.NewNop()})
}

func testUser(node *snowflake.Node, role userdomain.Role) *userdomain.User {
	return &userdomain.User{ID: node.Generate(), Role: role, IsActive: true}
}

func lastError(t *testing.T, conn *fakeConn) string {
	t.Helper()
	events := conn.events(t)
	if len(events) == 0 {
		t.Fatalf("no frame sent to client")
	}
	frame, ok := events[len(events)-1].(ws.ErrorFrame)
	if !ok {
		t.Fatalf("expected error frame, got %T", events[len(events)-1])
	}
	return frame.Error
}

func lastEvent(t *testing.T, conn *fakeConn) ws.Event {
	t.Helper()
	events := conn.events(t)
	if len(events) == 0 {
		t.Fatalf("no frame sent to client")
	}
	event, ok := events[len(events)-1].(ws.Event)
	if !ok {
		t.Fatalf("expected event, got %T", events[len(events)-1])
	}
	return event
}

func TestDispatchMalformedFrame(t *testing.T) {
	ctx := context.Background()
	node := newNode(t, 60)
	b := &fakeBroadcaster{}
	router := newRouter(t, b)
	conn := &fakeConn{}
	user := testUser(node, userdomain.RoleNurse)

	for _, raw := range []string{`not json`, `{}`, `{"data":{"lat":1}}`} {
		router.Dispatch(ctx, user, conn, []byte(raw))
		if got := lastError(t, conn); got != "Invalid message format" {
			t.Fatalf("raw %q: expected format error, got %q", raw, got)
		}
	}
}

func TestDispatchUnknownType(t *testing.T) {
	ctx := context.Background()
	node := newNode(t, 61)
	router := newRouter(t, &fakeBroadcaster{})
	conn := &fakeConn{}

	router.Dispatch(ctx, testUser(node, userdomain.RoleNurse), conn, []byte(`{"type":"SELF_DESTRUCT"}`))
	if got := lastError(t, conn); got != "Unknown message type" {
		t.Fatalf("expected unknown type error, got %q", got)
	}
}

func TestLocationUpdateNurseOnly(t *testing.T) {
	ctx := context.Background()
	node := newNode(t, 62)
	b := &fakeBroadcaster{}
	router := newRouter(t, b)

	raw := []byte(`{"type":"LOCATION_UPDATE","data":{"lat":-26.2,"lng":28.04}}`)

	for _, role := range []userdomain.Role{userdomain.RolePatient, userdomain.RoleDoctor, userdomain.RoleAdmin} {
		conn := &fakeConn{}
		router.Dispatch(ctx, testUser(node, role), conn, raw)
		if got := lastError(t, conn); got != "Unauthorized" {
			t.Fatalf("role %s: expected Unauthorized, got %q", role, got)
		}
	}
	if len(b.locations) != 0 {
		t.Fatalf("broadcaster called for non-nurse sender")
	}

	conn := &fakeConn{}
	router.Dispatch(ctx, testUser(node, userdomain.RoleNurse), conn, raw)
	if got := lastEvent(t, conn); got.Type != ws.TypeLocationUpdateSuccess {
		t.Fatalf("expected success ack, got %+v", got)
	}
	if len(b.locations) != 1 || b.locations[0].lat != -26.2 {
		t.Fatalf("location not forwarded: %+v", b.locations)
	}
}

func TestLocationUpdateInvalidCoordinates(t *testing.T) {
	ctx := context.Background()
	node := newNode(t, 63)
	b := &fakeBroadcaster{locationErr: ws.ErrInvalidCoordinates}
	router := newRouter(t, b)
	conn := &fakeConn{}

	router.Dispatch(ctx, testUser(node, userdomain.RoleNurse), conn, []byte(`{"type":"LOCATION_UPDATE","data":{"lat":91,"lng":0}}`))
	if got := lastError(t, conn); got != "Invalid coordinates" {
		t.Fatalf("expected coordinate error, got %q", got)
	}
}

func TestVisitStatusUpdateErrorMapping(t *testing.T) {
	ctx := context.Background()
	node := newNode(t, 64)

	visitID := node.Generate()
	raw := []byte(`{"type":"VISIT_STATUS_UPDATE","data":{"visitId":"` + visitID.String() + `","status":"ARRIVED"}}`)

	cases := []struct {
		err  error
		want string
	}{
		{visitdomain.ErrVisitNotFound, "Visit not found"},
		{visitdomain.ErrVisitClosed, "Visit already closed"},
		{visitdomain.ErrNotAssigned, "Unauthorized"},
		{visitdomain.ErrInvalidRole, "Unauthorized"},
	}
	for _, tc := range cases {
		router := newRouter(t, &fakeBroadcaster{statusErr: tc.err})
		conn := &fakeConn{}
		router.Dispatch(ctx, testUser(node, userdomain.RoleNurse), conn, raw)
		if got := lastError(t, conn); got != tc.want {
			t.Fatalf("err %v: expected %q, got %q", tc.err, tc.want, got)
		}
	}
}

func TestVisitStatusUpdateValidation(t *testing.T) {
	ctx := context.Background()
	node := newNode(t, 65)
	b := &fakeBroadcaster{}
	router := newRouter(t, b)

	conn := &fakeConn{}
	router.Dispatch(ctx, testUser(node, userdomain.RolePatient), conn, []byte(`{"type":"VISIT_STATUS_UPDATE","data":{"visitId":"1","status":"ARRIVED"}}`))
	if got := lastError(t, conn); got != "Unauthorized" {
		t.Fatalf("patient transition: expected Unauthorized, got %q", got)
	}

	conn = &fakeConn{}
	router.Dispatch(ctx, testUser(node, userdomain.RoleNurse), conn, []byte(`{"type":"VISIT_STATUS_UPDATE","data":{"visitId":"abc!","status":"ARRIVED"}}`))
	if got := lastError(t, conn); got != "Visit not found" {
		t.Fatalf("bad visit id: expected not found, got %q", got)
	}

	visitID := node.Generate()
	conn = &fakeConn{}
	router.Dispatch(ctx, testUser(node, userdomain.RoleNurse), conn, []byte(`{"type":"VISIT_STATUS_UPDATE","data":{"visitId":"`+visitID.String()+`","status":"TELEPORTED"}}`))
	if got := lastError(t, conn); got != "Invalid visit status" {
		t.Fatalf("bad status: expected invalid status, got %q", got)
	}
	if len(b.statuses) != 0 {
		t.Fatalf("broadcaster called despite validation failure")
	}

	conn = &fakeConn{}
	router.Dispatch(ctx, testUser(node, userdomain.RoleDoctor), conn, []byte(`{"type":"VISIT_STATUS_UPDATE","data":{"visitId":"`+visitID.String()+`","status":"COMPLETED"}}`))
	if got := lastEvent(t, conn); got.Type != ws.TypeVisitStatusUpdateSuccess {
		t.Fatalf("expected success ack, got %+v", got)
	}
	if len(b.statuses) != 1 || b.statuses[0] != visitdomain.StatusCompleted {
		t.Fatalf("status not forwarded: %+v", b.statuses)
	}
}

func TestTypingRelay(t *testing.T) {
	ctx := context.Background()
	node := newNode(t, 66)
	b := &fakeBroadcaster{}
	router := newRouter(t, b)
	conn := &fakeConn{}

	recipient := node.Generate()
	visitID := node.Generate()
	raw := []byte(`{"type":"MESSAGE_TYPING","data":{"recipientId":"` + recipient.String() + `","visitId":"` + visitID.String() + `","isTyping":true}}`)

	router.Dispatch(ctx, testUser(node, userdomain.RolePatient), conn, raw)
	if len(b.typings) != 1 {
		t.Fatalf("typing not relayed")
	}
	if b.typings[0].recipientID != recipient || !b.typings[0].isTyping {
		t.Fatalf("typing payload mangled: %+v", b.typings[0])
	}
	if len(conn.events(t)) != 0 {
		t.Fatalf("typing should not be acked, got %v", conn.events(t))
	}

	// Bad recipient ids are dropped silently.
	router.Dispatch(ctx, testUser(node, userdomain.RolePatient), conn, []byte(`{"type":"MESSAGE_TYPING","data":{"recipientId":"???"}}`))
	if len(b.typings) != 1 {
		t.Fatalf("invalid typing payload relayed")
	}
	if len(conn.events(t)) != 0 {
		t.Fatalf("invalid typing payload produced a frame")
	}
}
