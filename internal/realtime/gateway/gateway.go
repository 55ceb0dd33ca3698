package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/amoylab/umbra/internal/common/cnst"
	"github.com/amoylab/umbra/internal/common/config"
	"github.com/amoylab/umbra/internal/realtime/delivery"
	"github.com/amoylab/umbra/internal/realtime/session"
	"github.com/amoylab/umbra/internal/store"
	"github.com/amoylab/umbra/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Authenticator checks a claimed user id against the device it registered with
type Authenticator interface {
	VerifyDevice(ctx context.Context, userID uuid.UUID, deviceID string) (*store.User, error)
}

// Sessions is the registry an admitted connection joins
type Sessions interface {
	Register(ctx context.Context, userID uuid.UUID, conn session.Conn, displayName string) *session.Session
	Detach(ctx context.Context, s *session.Session) bool
}

// Dispatcher handles inbound frames of an active connection
type Dispatcher interface {
	Dispatch(ctx context.Context, origin delivery.Origin, raw []byte) error
}

// Gateway admits websocket clients and runs one control loop per connection
type Gateway struct {
	logger   *zap.Logger
	auth     Authenticator
	sessions Sessions
	router   Dispatcher
	metrics  *metrics.Metrics
	cfg      config.WebSocketConfig
	upgrader websocket.Upgrader
}

// New creates a gateway. allowedOrigins empty accepts any Origin header.
func New(logger *zap.Logger, auth Authenticator, sessions Sessions, router Dispatcher,
	cfg config.WebSocketConfig, allowedOrigins []string, m *metrics.Metrics) *Gateway {
	g := &Gateway{
		logger:   logger.Named("realtime.gateway"),
		auth:     auth,
		sessions: sessions,
		router:   router,
		metrics:  m,
		cfg:      cfg,
	}
	g.upgrader = websocket.Upgrader{
		HandshakeTimeout: cfg.HandshakeTimeout,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(allowedOrigins) == 0 {
				return true
			}
			return lo.Contains(allowedOrigins, "*") || lo.Contains(allowedOrigins, origin)
		},
	}
	return g
}

// Handle serves GET /ws/:user_id
func (g *Gateway) Handle(c *gin.Context) {
	ws, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		g.logger.Warn("failed to upgrade websocket connection",
			zap.String("remote_addr", c.ClientIP()),
			zap.Error(err))
		return
	}

	deviceID := c.Query(cnst.QueryDeviceID)
	if deviceID == "" {
		deviceID = c.GetHeader(cnst.XDeviceID)
	}

	// the request context ends with the handler; the connection outlives the
	// upgrade call so it gets its own
	ctx, cancel := context.WithCancel(context.WithoutCancel(c.Request.Context()))
	defer cancel()

	lc := &lifecycle{
		gw:       g,
		conn:     newConn(ws, g.cfg.WriteTimeout),
		ws:       ws,
		rawID:    c.Param("user_id"),
		deviceID: deviceID,
	}
	lc.run(ctx)
}

// lifecycle is the control loop of a single connection
type lifecycle struct {
	gw       *Gateway
	conn     *wsConn
	ws       *websocket.Conn
	rawID    string
	deviceID string

	state   atomic.Int32
	userID  uuid.UUID
	session *session.Session
}

func (l *lifecycle) State() State {
	return State(l.state.Load())
}

func (l *lifecycle) transition(next State) {
	cur := l.State()
	if !cur.canTransition(next) {
		l.gw.logger.Error("invalid connection state transition",
			zap.String("from", cur.String()),
			zap.String("to", next.String()))
		return
	}
	l.state.Store(int32(next))
	l.gw.logger.Debug("connection state changed",
		zap.String("user_id", l.rawID),
		zap.String("from", cur.String()),
		zap.String("to", next.String()))
}

func (l *lifecycle) run(ctx context.Context) {
	defer l.teardown(ctx)
	defer func() {
		if r := recover(); r != nil {
			l.gw.logger.Error("connection loop panicked",
				zap.String("user_id", l.rawID),
				zap.Any("panic", r),
				zap.Stack("stack"))
		}
	}()

	if err := l.admit(ctx); err != nil {
		return
	}

	// Register drains the offline queue before returning, and nothing reads
	// pongs until then, so the deadline starts here
	l.armReadDeadline()
	stop := l.keepalive()
	defer stop()
	l.readLoop(ctx)
}

// admit runs the Connecting and Authenticating phases and registers the session
func (l *lifecycle) admit(ctx context.Context) error {
	if l.deviceID == "" {
		l.reject(cnst.CloseDeviceIDRequired, cnst.ReasonDeviceIDRequired, cnst.ErrDeviceIDRequired)
		return cnst.ErrDeviceIDRequired
	}

	l.transition(StateAuthenticating)
	userID, err := uuid.Parse(l.rawID)
	if err != nil {
		l.reject(cnst.CloseAuthFailed, cnst.ReasonAuthFailed, fmt.Errorf("%w: invalid user id", cnst.ErrAuthenticationFailed))
		return cnst.ErrAuthenticationFailed
	}
	user, err := l.gw.auth.VerifyDevice(ctx, userID, l.deviceID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) && !errors.Is(err, store.ErrDeviceMismatch) {
			l.gw.logger.Error("device verification failed", zap.String("user_id", l.rawID), zap.Error(err))
		}
		l.reject(cnst.CloseAuthFailed, cnst.ReasonAuthFailed, fmt.Errorf("%w: %v", cnst.ErrAuthenticationFailed, err))
		return cnst.ErrAuthenticationFailed
	}

	l.userID = userID
	l.ws.SetReadLimit(l.gw.cfg.ReadLimit)
	l.transition(StateActive)
	l.session = l.gw.sessions.Register(ctx, userID, l.conn, user.Nickname)
	return nil
}

func (l *lifecycle) reject(code int, reason string, err error) {
	l.gw.metrics.ConnRejected(code)
	l.gw.logger.Info("connection rejected",
		zap.String("user_id", l.rawID),
		zap.Int("code", code),
		zap.Error(err))
	l.transition(StateClosing)
	if err := l.conn.Close(code, reason); err != nil {
		l.gw.logger.Debug("failed to close rejected connection", zap.Error(err))
	}
}

// armReadDeadline makes reads fail when the client misses two pings
func (l *lifecycle) armReadDeadline() {
	if l.gw.cfg.PingInterval <= 0 {
		return
	}
	_ = l.ws.SetReadDeadline(time.Now().Add(l.pongWait()))
	l.ws.SetPongHandler(func(string) error {
		return l.ws.SetReadDeadline(time.Now().Add(l.pongWait()))
	})
}

func (l *lifecycle) pongWait() time.Duration {
	return 2 * l.gw.cfg.PingInterval
}

// keepalive pings the client until the returned stop function is called
func (l *lifecycle) keepalive() func() {
	if l.gw.cfg.PingInterval <= 0 {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(l.gw.cfg.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := l.conn.Ping(); err != nil {
					l.gw.logger.Debug("ping failed", zap.String("user_id", l.userID.String()), zap.Error(err))
					return
				}
			}
		}
	}()
	return func() { close(done) }
}

// readLoop processes inbound frames one at a time until the connection ends
func (l *lifecycle) readLoop(ctx context.Context) {
	origin := delivery.Origin{UserID: l.userID, Conn: l.conn}
	for {
		_, data, err := l.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived, cnst.CloseSuperseded) && !l.conn.closed.Load() {
				l.gw.logger.Warn("websocket read error", zap.String("user_id", l.userID.String()), zap.Error(err))
			} else {
				l.gw.logger.Debug("websocket closed", zap.String("user_id", l.userID.String()), zap.Error(err))
			}
			return
		}
		if l.gw.cfg.PingInterval > 0 {
			_ = l.ws.SetReadDeadline(time.Now().Add(l.pongWait()))
		}

		if err := l.gw.router.Dispatch(ctx, origin, data); err != nil {
			l.gw.logger.Debug("frame rejected", zap.String("user_id", l.userID.String()), zap.Error(err))
		}
	}
}

// teardown unregisters the session exactly once and releases the socket
func (l *lifecycle) teardown(ctx context.Context) {
	if l.State() < StateClosing {
		l.transition(StateClosing)
	}
	if l.session != nil {
		l.gw.sessions.Detach(ctx, l.session)
	}
	if err := l.conn.Close(websocket.CloseNormalClosure, ""); err != nil {
		l.gw.logger.Debug("failed to close connection", zap.String("user_id", l.rawID), zap.Error(err))
	}
	l.transition(StateClosed)
}
