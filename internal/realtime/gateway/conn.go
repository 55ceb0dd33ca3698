package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/amoylab/umbra/internal/common/dto"

	"github.com/gorilla/websocket"
)

var errConnClosed = errors.New("connection closed")

// wsConn adapts a websocket connection to the session and reply interfaces.
// Writes are serialized; Close may be called from any goroutine.
type wsConn struct {
	ws           *websocket.Conn
	writeTimeout time.Duration

	mu     sync.Mutex
	closed atomic.Bool
}

func newConn(ws *websocket.Conn, writeTimeout time.Duration) *wsConn {
	return &wsConn{ws: ws, writeTimeout: writeTimeout}
}

// Send writes msg as a single JSON text frame
func (c *wsConn) Send(ctx context.Context, msg dto.Outbound) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed.Load() {
		return errConnClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.ws.SetWriteDeadline(c.deadline(ctx)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// Ping sends a keepalive control frame
func (c *wsConn) Ping() error {
	if c.closed.Load() {
		return errConnClosed
	}
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeTimeout))
}

// Close sends a close frame with code and reason and tears the socket down.
// Only the first call has an effect.
func (c *wsConn) Close(code int, reason string) error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	msg := websocket.FormatCloseMessage(code, reason)
	writeErr := c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.writeTimeout))
	if err := c.ws.Close(); err != nil {
		return err
	}
	if writeErr != nil && !errors.Is(writeErr, websocket.ErrCloseSent) {
		return writeErr
	}
	return nil
}

func (c *wsConn) deadline(ctx context.Context) time.Time {
	deadline := time.Now().Add(c.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		return d
	}
	return deadline
}
