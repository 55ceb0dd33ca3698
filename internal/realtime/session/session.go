package session

import (
	"context"
	"time"

	"github.com/amoylab/umbra/internal/common/dto"
	"github.com/amoylab/umbra/internal/realtime/mailbox"

	"github.com/google/uuid"
)

// Conn is the outbound side of a live client connection.
type Conn interface {
	// Send pushes one frame to the client
	Send(ctx context.Context, msg dto.Outbound) error

	// Close terminates the connection with a close code and reason
	Close(code int, reason string) error
}

// Drainer flushes a user's offline queue through deliver
type Drainer interface {
	Drain(ctx context.Context, userID uuid.UUID, deliver mailbox.DeliverFunc) int
}

// Session binds a user to their single live connection.
type Session struct {
	UserID      uuid.UUID
	DisplayName string
	ConnectedAt time.Time

	conn Conn
}

// Conn returns the connection handle of the session
func (s *Session) Conn() Conn {
	return s.conn
}

// OnlineUser is a point-in-time view of a registered session
type OnlineUser struct {
	UserID      uuid.UUID `json:"user_id"`
	DisplayName string    `json:"display_name"`
	ConnectedAt time.Time `json:"connected_at"`
}
