package presence

import (
	"context"

	"github.com/google/uuid"
)

// EventType distinguishes presence transitions
type EventType string

const (
	EventOnline  EventType = "online"
	EventOffline EventType = "offline"
)

// Event is a single presence transition
type Event struct {
	Type        EventType `json:"type"`
	UserID      uuid.UUID `json:"user_id"`
	DisplayName string    `json:"display_name,omitempty"`
	Timestamp   string    `json:"timestamp"`
}

// Notifier publishes presence transitions. Failures are reported but never
// affect the session that triggered them.
type Notifier interface {
	// Online announces that the user has a live session
	Online(ctx context.Context, userID uuid.UUID, displayName string) error

	// Offline announces that the user's session ended
	Offline(ctx context.Context, userID uuid.UUID) error

	// Close releases the notifier's resources
	Close() error
}
