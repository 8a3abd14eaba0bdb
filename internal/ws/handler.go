package ws

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/MphoBeeThwala/ahava-healthcare/internal/auth"
	"github.com/MphoBeeThwala/ahava-healthcare/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type HandlerParams struct {
	fx.In

	Log      *zap.Logger
	Verifier *auth.Verifier
	Registry *Registry
	Router   *Router
	Limiter  *ratelimit.Limiter `optional:"true"`
}

// Handler upgrades and authenticates realtime connections. The upgrade
// happens first so auth failures can be reported as a close frame the
// client can read.
type Handler struct {
	log      *zap.Logger
	verifier *auth.Verifier
	registry *Registry
	router   *Router
	limiter  *ratelimit.Limiter
	upgrader websocket.Upgrader
}

func NewHandler(p HandlerParams) *Handler {
	return &Handler{
		log:      p.Log.Named("ws.handler"),
		verifier: p.Verifier,
		registry: p.Registry,
		router:   p.Router,
		limiter:  p.Limiter,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (h *Handler) Serve(c *gin.Context) {
	if !h.limiter.ConnectAllowed(c.Request.Context(), c.ClientIP()) {
		c.AbortWithStatus(http.StatusTooManyRequests)
		return
	}

	token := bearerToken(c)
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("upgrade failed", zap.Error(err))
		return
	}

	client := NewClient(conn, h.log)
	go client.WritePump()

	user, err := h.verifier.Verify(c.Request.Context(), token)
	if err != nil {
		h.log.Warn("websocket auth rejected", zap.Error(err))
		if errors.Is(err, auth.ErrMissingSecret) {
			client.Close(websocket.CloseInternalServerErr, "server error")
		} else {
			client.Close(websocket.ClosePolicyViolation, "authentication failed")
		}
		return
	}

	h.registry.Register(user.ID, user.Role, client)
	defer h.registry.Remove(user.ID, client)

	client.Enqueue(Event{Type: TypeAuthSuccess, Data: map[string]any{
		"userId": user.ID.String(),
		"role":   string(user.Role),
	}})

	ctx := c.Request.Context()
	client.ReadLoop(func(raw []byte) {
		h.router.Dispatch(ctx, user, client, raw)
	}, func() {
		h.registry.MarkAlive(user.ID, client)
	})
}

func bearerToken(c *gin.Context) string {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return strings.TrimSpace(c.Query("token"))
}
