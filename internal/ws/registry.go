package ws

import (
	"context"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/MphoBeeThwala/ahava-healthcare/internal/metrics"
	userdomain "github.com/MphoBeeThwala/ahava-healthcare/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Conn is the transport side of a registered session. Enqueue must not
// block; it reports false when the outbound buffer is full or the
// connection is gone.
type Conn interface {
	Enqueue(v any) bool
	Ping() error
	Close(code int, reason string)
	Terminate()
}

type session struct {
	conn  Conn
	role  userdomain.Role
	alive bool
}

// Registry maps authenticated user identity to at most one live
// connection. Registering a second connection for the same identity
// supersedes the first.
type Registry struct {
	log     *zap.Logger
	metrics *metrics.Metrics

	mu       sync.Mutex
	sessions map[snowflake.ID]*session
}

type RegistryParams struct {
	fx.In

	Log     *zap.Logger
	Metrics *metrics.Metrics `optional:"true"`
}

func NewRegistry(p RegistryParams) *Registry {
	return &Registry{
		log:      p.Log.Named("ws.registry"),
		metrics:  p.Metrics,
		sessions: map[snowflake.ID]*session{},
	}
}

func (r *Registry) Register(userID snowflake.ID, role userdomain.Role, conn Conn) {
	r.mu.Lock()
	// The superseded connection is told to go away before its
	// replacement becomes the session of record.
	if prev, ok := r.sessions[userID]; ok {
		prev.conn.Close(1000, "superseded by newer connection")
	}
	r.sessions[userID] = &session{conn: conn, role: role, alive: true}
	count := len(r.sessions)
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.WSConnections.Set(float64(count))
	}
	r.log.Info("client connected",
		zap.String("user_id", userID.String()),
		zap.Int("connected", count),
	)
}

// Remove unregisters a session, but only if conn is still the current
// connection for that identity. A superseded connection closing late
// must not evict its replacement.
func (r *Registry) Remove(userID snowflake.ID, conn Conn) {
	r.mu.Lock()
	current, ok := r.sessions[userID]
	if ok && current.conn == conn {
		delete(r.sessions, userID)
	} else {
		ok = false
	}
	count := len(r.sessions)
	r.mu.Unlock()

	if ok {
		if r.metrics != nil {
			r.metrics.WSConnections.Set(float64(count))
		}
		r.log.Info("client disconnected",
			zap.String("user_id", userID.String()),
			zap.Int("connected", count),
		)
	}
}

func (r *Registry) MarkAlive(userID snowflake.ID, conn Conn) {
	r.mu.Lock()
	if current, ok := r.sessions[userID]; ok && current.conn == conn {
		current.alive = true
	}
	r.mu.Unlock()
}

// Send delivers one event to one identity. A missing or saturated
// recipient is not an error; delivery never blocks.
func (r *Registry) Send(userID snowflake.ID, v any) bool {
	r.mu.Lock()
	current, ok := r.sessions[userID]
	r.mu.Unlock()
	if !ok {
		return false
	}
	return current.conn.Enqueue(v)
}

// Broadcast delivers one event to each listed identity and returns the
// number of successful deliveries.
func (r *Registry) Broadcast(userIDs []snowflake.ID, v any) int {
	delivered := 0
	for _, id := range userIDs {
		if r.Send(id, v) {
			delivered++
		}
	}
	if r.metrics != nil && delivered > 0 {
		r.metrics.BroadcastsDelivered.Add(float64(delivered))
	}
	return delivered
}

func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep terminates sessions that missed the previous heartbeat and
// pings the rest.
func (r *Registry) Sweep() {
	r.mu.Lock()
	stale := []*session{}
	live := []*session{}
	for id, sess := range r.sessions {
		if !sess.alive {
			stale = append(stale, sess)
			delete(r.sessions, id)
			r.log.Warn("terminating unresponsive client", zap.String("user_id", id.String()))
			continue
		}
		sess.alive = false
		live = append(live, sess)
	}
	r.mu.Unlock()

	for _, sess := range stale {
		sess.conn.Terminate()
	}
	for _, sess := range live {
		if err := sess.conn.Ping(); err != nil {
			sess.conn.Terminate()
		}
	}
}

// Run sweeps every interval until the context is cancelled.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}
