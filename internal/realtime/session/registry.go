package session

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/amoylab/umbra/internal/common/cnst"
	"github.com/amoylab/umbra/internal/common/dto"
	"github.com/amoylab/umbra/internal/realtime/mailbox"
	"github.com/amoylab/umbra/internal/realtime/presence"
	"github.com/amoylab/umbra/pkg/metrics"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Registry maps each user to at most one live session
type Registry struct {
	logger   *zap.Logger
	mailbox  Drainer
	presence presence.Notifier
	metrics  *metrics.Metrics

	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

// NewRegistry creates a registry. mailbox may be nil when offline queuing is disabled.
func NewRegistry(logger *zap.Logger, mailbox Drainer, notifier presence.Notifier, m *metrics.Metrics) *Registry {
	return &Registry{
		logger:   logger.Named("realtime.session"),
		mailbox:  mailbox,
		presence: notifier,
		metrics:  m,
		sessions: make(map[uuid.UUID]*Session),
	}
}

// Register installs conn as the user's live session. A previous session for
// the same user is closed as superseded. Once registered, the user's offline
// queue is drained on the new session before Register returns.
func (r *Registry) Register(ctx context.Context, userID uuid.UUID, conn Conn, displayName string) *Session {
	s := &Session{
		UserID:      userID,
		DisplayName: displayName,
		ConnectedAt: time.Now(),
		conn:        conn,
	}

	r.mu.Lock()
	prev := r.sessions[userID]
	r.sessions[userID] = s
	r.mu.Unlock()

	if prev != nil {
		r.metrics.SessionSuperseded()
		if err := prev.conn.Close(cnst.CloseSuperseded, cnst.ReasonSuperseded); err != nil {
			r.logger.Debug("failed to close superseded connection",
				zap.String("user_id", userID.String()),
				zap.Error(err))
		}
		r.logger.Info("session superseded", zap.String("user_id", userID.String()))
	} else {
		r.metrics.SessionOpened()
	}

	if r.presence != nil {
		if err := r.presence.Online(ctx, userID, displayName); err != nil {
			r.logger.Warn("failed to publish presence", zap.String("user_id", userID.String()), zap.Error(err))
		}
	}

	r.logger.Info("session registered",
		zap.String("user_id", userID.String()),
		zap.String("display_name", displayName))

	if r.mailbox != nil {
		r.mailbox.Drain(ctx, userID, r.deliverTo(s))
	}
	return s
}

// deliverTo delivers drained messages on s only. Once s is no longer the
// user's session the drain stops and keeps the rest queued.
func (r *Registry) deliverTo(s *Session) mailbox.DeliverFunc {
	return func(ctx context.Context, userID uuid.UUID, msg dto.Outbound) mailbox.Outcome {
		if current, ok := r.Get(userID); !ok || current != s {
			return mailbox.Gone
		}
		if !r.sendOn(ctx, s, msg) {
			return mailbox.Failed
		}
		return mailbox.Delivered
	}
}

// Unregister removes the user's session, whichever it is. Unknown users are ignored.
func (r *Registry) Unregister(ctx context.Context, userID uuid.UUID) {
	r.mu.Lock()
	s, ok := r.sessions[userID]
	if ok {
		delete(r.sessions, userID)
	}
	r.mu.Unlock()

	if ok {
		r.detached(ctx, s)
	}
}

// Detach removes s only if it is still the user's current session and reports
// whether it did. A superseded session never removes its successor.
func (r *Registry) Detach(ctx context.Context, s *Session) bool {
	if s == nil {
		return false
	}

	r.mu.Lock()
	current, ok := r.sessions[s.UserID]
	removed := ok && current == s
	if removed {
		delete(r.sessions, s.UserID)
	}
	r.mu.Unlock()

	if removed {
		r.detached(ctx, s)
	}
	return removed
}

func (r *Registry) detached(ctx context.Context, s *Session) {
	r.metrics.SessionClosed()
	if r.presence != nil {
		if err := r.presence.Offline(ctx, s.UserID); err != nil {
			r.logger.Warn("failed to publish presence", zap.String("user_id", s.UserID.String()), zap.Error(err))
		}
	}
	r.logger.Info("session unregistered", zap.String("user_id", s.UserID.String()))
}

// Send pushes msg on the user's live connection. It reports false when the
// user has no session or the push failed; a failed push drops the session.
func (r *Registry) Send(ctx context.Context, userID uuid.UUID, msg dto.Outbound) bool {
	r.mu.RLock()
	s, ok := r.sessions[userID]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	return r.sendOn(ctx, s, msg)
}

func (r *Registry) sendOn(ctx context.Context, s *Session, msg dto.Outbound) bool {
	if err := s.conn.Send(ctx, msg); err != nil {
		r.logger.Warn("failed to push message, dropping session",
			zap.String("user_id", s.UserID.String()),
			zap.String("type", msg.MessageType().String()),
			zap.Error(err))
		if r.Detach(ctx, s) {
			_ = s.conn.Close(cnst.CloseSendFailed, cnst.ReasonSendFailed)
		}
		return false
	}
	return true
}

// Get returns the user's current session
func (r *Registry) Get(userID uuid.UUID) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[userID]
	return s, ok
}

func (r *Registry) IsOnline(userID uuid.UUID) bool {
	_, ok := r.Get(userID)
	return ok
}

// ListOnline returns a snapshot of the registered sessions ordered by connect time
func (r *Registry) ListOnline() []OnlineUser {
	r.mu.RLock()
	users := lo.MapToSlice(r.sessions, func(id uuid.UUID, s *Session) OnlineUser {
		return OnlineUser{UserID: id, DisplayName: s.DisplayName, ConnectedAt: s.ConnectedAt}
	})
	r.mu.RUnlock()

	slices.SortFunc(users, func(a, b OnlineUser) int {
		return a.ConnectedAt.Compare(b.ConnectedAt)
	})
	return users
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// CloseAll closes and removes every session
func (r *Registry) CloseAll(ctx context.Context, code int, reason string) {
	r.mu.Lock()
	sessions := lo.Values(r.sessions)
	r.sessions = make(map[uuid.UUID]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		if err := s.conn.Close(code, reason); err != nil {
			r.logger.Debug("failed to close connection",
				zap.String("user_id", s.UserID.String()),
				zap.Error(err))
		}
		r.detached(ctx, s)
	}
}
