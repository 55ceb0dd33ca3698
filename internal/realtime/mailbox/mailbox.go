package mailbox

import (
	"context"
	"sync"
	"time"

	"github.com/amoylab/umbra/internal/common/dto"
	"github.com/amoylab/umbra/pkg/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Entry is a message waiting for its recipient to come online
type Entry struct {
	Message    dto.Outbound
	EnqueuedAt time.Time
}

// Outcome is the result of one delivery attempt during a drain
type Outcome int

const (
	// Delivered means the message reached the client
	Delivered Outcome = iota
	// Failed means the push failed; the message is discarded
	Failed
	// Gone means the receiving session no longer exists; the message was not tried
	Gone
)

// DeliverFunc pushes one queued message to a live session
type DeliverFunc func(ctx context.Context, userID uuid.UUID, msg dto.Outbound) Outcome

// Mailbox keeps a bounded FIFO of undelivered messages per user. When a queue
// is full the oldest entry is evicted.
type Mailbox struct {
	logger   *zap.Logger
	metrics  *metrics.Metrics
	capacity int
	pacing   time.Duration

	mu     sync.Mutex
	queues map[uuid.UUID][]Entry
}

// New creates a mailbox. A non-positive capacity keeps a single entry per user.
func New(logger *zap.Logger, capacity int, pacing time.Duration, m *metrics.Metrics) *Mailbox {
	if capacity <= 0 {
		capacity = 1
	}
	if pacing < 0 {
		pacing = 0
	}
	return &Mailbox{
		logger:   logger.Named("realtime.mailbox"),
		metrics:  m,
		capacity: capacity,
		pacing:   pacing,
		queues:   make(map[uuid.UUID][]Entry),
	}
}

// Enqueue appends msg to the user's queue, evicting the oldest entry when full
func (m *Mailbox) Enqueue(userID uuid.UUID, msg dto.Outbound) {
	m.mu.Lock()
	q := append(m.queues[userID], Entry{Message: msg, EnqueuedAt: time.Now()})
	dropped := len(q) > m.capacity
	if dropped {
		q = q[len(q)-m.capacity:]
	}
	m.queues[userID] = q
	m.mu.Unlock()

	m.metrics.MailboxEnqueued(dropped)
	if dropped {
		m.logger.Debug("mailbox full, dropped oldest entry",
			zap.String("user_id", userID.String()),
			zap.Int("capacity", m.capacity))
	}
}

// Drain removes every queued entry for the user and hands them to deliver in
// order, waiting the configured pacing between attempts. Failed deliveries are
// discarded. If ctx ends or deliver reports the session Gone before all
// entries were tried, the untried ones go back to the front of the queue.
// Drain returns the number delivered.
func (m *Mailbox) Drain(ctx context.Context, userID uuid.UUID, deliver DeliverFunc) int {
	m.mu.Lock()
	entries := m.queues[userID]
	delete(m.queues, userID)
	m.mu.Unlock()

	if len(entries) == 0 {
		return 0
	}

	var timer *time.Timer
	if m.pacing > 0 {
		timer = time.NewTimer(m.pacing)
		timer.Stop()
		defer timer.Stop()
	}

	delivered, failed := 0, 0
	for i, e := range entries {
		if i > 0 && timer != nil {
			timer.Reset(m.pacing)
			select {
			case <-ctx.Done():
			case <-timer.C:
			}
		}
		if ctx.Err() != nil {
			m.interrupted(userID, entries[i:])
			break
		}
		outcome := deliver(ctx, userID, e.Message)
		if outcome == Gone {
			m.interrupted(userID, entries[i:])
			break
		}
		if outcome == Delivered {
			delivered++
		} else {
			failed++
		}
	}

	m.metrics.MailboxDrained(delivered, failed)
	m.logger.Debug("mailbox drained",
		zap.String("user_id", userID.String()),
		zap.Int("delivered", delivered),
		zap.Int("failed", failed))
	return delivered
}

func (m *Mailbox) interrupted(userID uuid.UUID, untried []Entry) {
	m.requeue(userID, untried)
	m.logger.Debug("drain interrupted",
		zap.String("user_id", userID.String()),
		zap.Int("requeued", len(untried)))
}

// requeue puts entries back ahead of anything enqueued since the drain began
func (m *Mailbox) requeue(userID uuid.UUID, entries []Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	q := make([]Entry, 0, len(entries)+len(m.queues[userID]))
	q = append(q, entries...)
	q = append(q, m.queues[userID]...)
	if len(q) > m.capacity {
		q = q[len(q)-m.capacity:]
	}
	m.queues[userID] = q
}

// Len returns the number of entries queued for the user
func (m *Mailbox) Len(userID uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queues[userID])
}

// Total returns the number of queued entries across all users
func (m *Mailbox) Total() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, q := range m.queues {
		total += len(q)
	}
	return total
}

// Stats returns a snapshot of queue depth per user with pending entries
func (m *Mailbox) Stats() map[uuid.UUID]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := make(map[uuid.UUID]int, len(m.queues))
	for id, q := range m.queues {
		if len(q) > 0 {
			stats[id] = len(q)
		}
	}
	return stats
}

// Peek returns a copy of the user's queue without removing it
func (m *Mailbox) Peek(userID uuid.UUID) []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := m.queues[userID]
	out := make([]Entry, len(q))
	copy(out, q)
	return out
}
