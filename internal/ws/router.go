package ws

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/MphoBeeThwala/ahava-healthcare/internal/metrics"
	userdomain "github.com/MphoBeeThwala/ahava-healthcare/internal/user/domain"
	visitdomain "github.com/MphoBeeThwala/ahava-healthcare/internal/visit/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Broadcaster executes realtime commands on behalf of the router.
type Broadcaster interface {
	LocationUpdate(ctx context.Context, user *userdomain.User, lat, lng float64) error
	VisitStatusUpdate(ctx context.Context, user *userdomain.User, visitID snowflake.ID, status visitdomain.Status) error
	Typing(user *userdomain.User, recipientID snowflake.ID, visitID string, isTyping bool)
}

const (
	errInvalidFormat      = "Invalid message format"
	errUnknownType        = "Unknown message type"
	errUnauthorized       = "Unauthorized"
	errInvalidCoordinates = "Invalid coordinates"
	errLocationFailed     = "Failed to update location"
	errInvalidStatus      = "Invalid visit status"
	errVisitNotFound      = "Visit not found"
	errVisitClosed        = "Visit already closed"
	errStatusFailed       = "Failed to update visit status"
)

// Router parses inbound frames and dispatches each to exactly one
// handler. Protocol errors are reported to the sender only; the
// connection stays open.
type Router struct {
	broadcaster Broadcaster
	metrics     *metrics.Metrics
	log         *zap.Logger
}

type RouterParams struct {
	fx.In

	Broadcaster Broadcaster
	Log         *zap.Logger
	Metrics     *metrics.Metrics `optional:"true"`
}

func NewRouter(p RouterParams) *Router {
	return &Router{
		broadcaster: p.Broadcaster,
		metrics:     p.Metrics,
		log:         p.Log.Named("ws.router"),
	}
}

func (r *Router) Dispatch(ctx context.Context, user *userdomain.User, conn Conn, raw []byte) {
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil || frame.Type == "" {
		conn.Enqueue(ErrorFrame{Error: errInvalidFormat})
		return
	}

	if r.metrics != nil {
		r.metrics.WSMessages.WithLabelValues(frame.Type).Inc()
	}

	switch frame.Type {
	case TypeLocationUpdate:
		r.handleLocationUpdate(ctx, user, conn, frame.Data)
	case TypeVisitStatusUpdate:
		r.handleVisitStatusUpdate(ctx, user, conn, frame.Data)
	case TypeMessageTyping:
		r.handleTyping(user, frame.Data)
	default:
		conn.Enqueue(ErrorFrame{Error: errUnknownType})
	}
}

func (r *Router) handleLocationUpdate(ctx context.Context, user *userdomain.User, conn Conn, data json.RawMessage) {
	if user.Role != userdomain.RoleNurse {
		conn.Enqueue(ErrorFrame{Error: errUnauthorized})
		return
	}

	var payload LocationUpdatePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		conn.Enqueue(ErrorFrame{Error: errInvalidFormat})
		return
	}

	if err := r.broadcaster.LocationUpdate(ctx, user, payload.Lat, payload.Lng); err != nil {
		if errors.Is(err, ErrInvalidCoordinates) {
			conn.Enqueue(ErrorFrame{Error: errInvalidCoordinates})
			return
		}
		r.log.Error("location update failed",
			zap.String("user_id", user.ID.String()),
			zap.Error(err),
		)
		conn.Enqueue(ErrorFrame{Error: errLocationFailed})
		return
	}
	conn.Enqueue(Event{Type: TypeLocationUpdateSuccess})
}

func (r *Router) handleVisitStatusUpdate(ctx context.Context, user *userdomain.User, conn Conn, data json.RawMessage) {
	switch user.Role {
	case userdomain.RoleNurse, userdomain.RoleDoctor, userdomain.RoleAdmin:
	default:
		conn.Enqueue(ErrorFrame{Error: errUnauthorized})
		return
	}

	var payload VisitStatusUpdatePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		conn.Enqueue(ErrorFrame{Error: errInvalidFormat})
		return
	}
	visitID, err := snowflake.ParseString(payload.VisitID)
	if err != nil {
		conn.Enqueue(ErrorFrame{Error: errVisitNotFound})
		return
	}
	status, ok := visitdomain.ParseStatus(payload.Status)
	if !ok {
		conn.Enqueue(ErrorFrame{Error: errInvalidStatus})
		return
	}

	if err := r.broadcaster.VisitStatusUpdate(ctx, user, visitID, status); err != nil {
		switch {
		case errors.Is(err, visitdomain.ErrVisitNotFound):
			conn.Enqueue(ErrorFrame{Error: errVisitNotFound})
		case errors.Is(err, visitdomain.ErrInvalidStatus):
			conn.Enqueue(ErrorFrame{Error: errInvalidStatus})
		case errors.Is(err, visitdomain.ErrVisitClosed):
			conn.Enqueue(ErrorFrame{Error: errVisitClosed})
		case errors.Is(err, visitdomain.ErrNotAssigned), errors.Is(err, visitdomain.ErrInvalidRole):
			conn.Enqueue(ErrorFrame{Error: errUnauthorized})
		default:
			r.log.Error("visit status update failed",
				zap.String("user_id", user.ID.String()),
				zap.String("visit_id", payload.VisitID),
				zap.Error(err),
			)
			conn.Enqueue(ErrorFrame{Error: errStatusFailed})
		}
		return
	}
	conn.Enqueue(Event{Type: TypeVisitStatusUpdateSuccess})
}

func (r *Router) handleTyping(user *userdomain.User, data json.RawMessage) {
	var payload TypingPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return
	}
	recipientID, err := snowflake.ParseString(payload.RecipientID)
	if err != nil {
		return
	}
	r.broadcaster.Typing(user, recipientID, payload.VisitID, payload.IsTyping)
}
