package ws_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/bwmarrin/snowflake"
	userdomain "github.com/MphoBeeThwala/ahava-healthcare/internal/user/domain"
	"github.com/MphoBeeThwala/ahava-healthcare/internal/ws"
	"go.uber.org/zap"
)

// fakeConn records everything the registry does to it.
type fakeConn struct {
	mu         sync.Mutex
	enqueued   []any
	full       bool
	pingErr    error
	closeCode  int
	closed     bool
	terminated bool
}

func (c *fakeConn) Enqueue(v any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.full {
		return false
	}
	c.enqueued = append(c.enqueued, v)
	return true
}

func (c *fakeConn) Ping() error { return c.pingErr }

func (c *fakeConn) Close(code int, _ string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.closeCode = code
}

func (c *fakeConn) Terminate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.terminated = true
}

func (c *fakeConn) events(t *testing.T) []any {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]any, len(c.enqueued))
	copy(out, c.enqueued)
	return out
}

func newRegistry(t *testing.T) *ws.Registry {
	t.Helper()
	return ws.NewRegistry(ws.RegistryParams{Log: zap.NewNop()})
}

func newNode(t *testing.T, id int64) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(id)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	return node
}

func TestRegisterSupersedesPreviousConnection(t *testing.T) {
	r := newRegistry(t)
	node := newNode(t, 50)
	userID := node.Generate()

	first := &fakeConn{}
	second := &fakeConn{}

	r.Register(userID, userdomain.RoleNurse, first)
	r.Register(userID, userdomain.RoleNurse, second)

	if !first.closed || first.closeCode != 1000 {
		t.Fatalf("first connection not closed normally: closed=%v code=%d", first.closed, first.closeCode)
	}
	if r.Count() != 1 {
		t.Fatalf("expected 1 session, got %d", r.Count())
	}
	if !r.Send(userID, "hello") {
		t.Fatalf("send to superseding connection failed")
	}
	if len(second.events(t)) != 1 {
		t.Fatalf("event went to the wrong connection")
	}
	if len(first.events(t)) != 0 {
		t.Fatalf("superseded connection still receiving")
	}
}

func TestRemoveIgnoresStaleConnection(t *testing.T) {
	r := newRegistry(t)
	node := newNode(t, 51)
	userID := node.Generate()

	first := &fakeConn{}
	second := &fakeConn{}

	r.Register(userID, userdomain.RoleNurse, first)
	r.Register(userID, userdomain.RoleNurse, second)

	// The superseded connection's deferred cleanup fires late. It must
	// not evict the replacement.
	r.Remove(userID, first)
	if r.Count() != 1 {
		t.Fatalf("stale remove evicted live session")
	}

	r.Remove(userID, second)
	if r.Count() != 0 {
		t.Fatalf("live session not removed")
	}
}

func TestSendToOfflineUser(t *testing.T) {
	r := newRegistry(t)
	node := newNode(t, 52)

	if r.Send(node.Generate(), "hello") {
		t.Fatalf("send to offline user reported success")
	}
}

func TestSendToSaturatedConnection(t *testing.T) {
	r := newRegistry(t)
	node := newNode(t, 53)
	userID := node.Generate()

	conn := &fakeConn{full: true}
	r.Register(userID, userdomain.RolePatient, conn)

	if r.Send(userID, "hello") {
		t.Fatalf("send to saturated connection reported success")
	}
}

func TestBroadcastCountsDeliveries(t *testing.T) {
	r := newRegistry(t)
	node := newNode(t, 54)

	online := node.Generate()
	saturated := node.Generate()
	offline := node.Generate()

	r.Register(online, userdomain.RolePatient, &fakeConn{})
	r.Register(saturated, userdomain.RoleDoctor, &fakeConn{full: true})

	delivered := r.Broadcast([]snowflake.ID{online, saturated, offline}, "event")
	if delivered != 1 {
		t.Fatalf("expected 1 delivery, got %d", delivered)
	}
}

func TestSweepTerminatesUnresponsiveClients(t *testing.T) {
	r := newRegistry(t)
	node := newNode(t, 55)

	responsive := node.Generate()
	silent := node.Generate()
	respConn := &fakeConn{}
	silentConn := &fakeConn{}

	r.Register(responsive, userdomain.RoleNurse, respConn)
	r.Register(silent, userdomain.RoleNurse, silentConn)

	// First sweep clears the alive flag and pings everyone.
	r.Sweep()
	if respConn.terminated || silentConn.terminated {
		t.Fatalf("fresh connections terminated on first sweep")
	}

	// Only one client answers the ping.
	r.MarkAlive(responsive, respConn)
	r.Sweep()

	if !silentConn.terminated {
		t.Fatalf("unresponsive client not terminated")
	}
	if respConn.terminated {
		t.Fatalf("responsive client terminated")
	}
	if r.Count() != 1 {
		t.Fatalf("expected 1 session after sweep, got %d", r.Count())
	}
}

func TestSweepTerminatesOnPingFailure(t *testing.T) {
	r := newRegistry(t)
	node := newNode(t, 56)
	userID := node.Generate()

	conn := &fakeConn{pingErr: errors.New("broken pipe")}
	r.Register(userID, userdomain.RoleNurse, conn)

	r.Sweep()
	if !conn.terminated {
		t.Fatalf("connection with failing ping not terminated")
	}
}

func TestMarkAliveIgnoresStaleConnection(t *testing.T) {
	r := newRegistry(t)
	node := newNode(t, 57)
	userID := node.Generate()

	first := &fakeConn{}
	second := &fakeConn{}

	r.Register(userID, userdomain.RoleNurse, first)
	r.Register(userID, userdomain.RoleNurse, second)

	r.Sweep()
	// A pong from the superseded connection must not keep the
	// replacement alive.
	r.MarkAlive(userID, first)
	r.Sweep()

	if !second.terminated {
		t.Fatalf("stale pong kept replacement session alive")
	}
}
