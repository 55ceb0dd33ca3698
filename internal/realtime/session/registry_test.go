package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/amoylab/umbra/internal/common/cnst"
	"github.com/amoylab/umbra/internal/common/dto"
	"github.com/amoylab/umbra/internal/realtime/mailbox"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeConn struct {
	mu      sync.Mutex
	sent    []dto.Outbound
	closes  []int
	sendErr error

	// failAfter makes every send after the first n fail; zero disables it
	failAfter int
}

func (c *fakeConn) Send(_ context.Context, msg dto.Outbound) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	if c.failAfter > 0 && len(c.sent) >= c.failAfter {
		return errors.New("connection reset")
	}
	c.sent = append(c.sent, msg)
	return nil
}

func (c *fakeConn) Close(code int, _ string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes = append(c.closes, code)
	return errors.New("already closed")
}

func (c *fakeConn) Sent() []dto.Outbound {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]dto.Outbound(nil), c.sent...)
}

func (c *fakeConn) Closes() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int(nil), c.closes...)
}

type fakePresence struct {
	mu     sync.Mutex
	events []string
}

func (p *fakePresence) Online(_ context.Context, userID uuid.UUID, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, "online:"+userID.String())
	return nil
}

func (p *fakePresence) Offline(_ context.Context, userID uuid.UUID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, "offline:"+userID.String())
	return nil
}

func (p *fakePresence) Close() error { return nil }

func (p *fakePresence) Events() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

func chat(id string) dto.Outbound {
	return &dto.ChatMessage{Type: cnst.TypeChatMessage, MessageID: id}
}

func newRegistry(mb Drainer) (*Registry, *fakePresence) {
	p := &fakePresence{}
	return NewRegistry(zap.NewNop(), mb, p, nil), p
}

func TestRegister_SendAndUnregister(t *testing.T) {
	r, p := newRegistry(nil)
	user := uuid.New()
	conn := &fakeConn{}

	s := r.Register(context.Background(), user, conn, "alice")
	require.NotNil(t, s)
	assert.Equal(t, user, s.UserID)
	assert.Equal(t, "alice", s.DisplayName)
	assert.True(t, r.IsOnline(user))
	assert.Equal(t, 1, r.Count())

	assert.True(t, r.Send(context.Background(), user, chat("m1")))
	require.Len(t, conn.Sent(), 1)

	r.Unregister(context.Background(), user)
	assert.False(t, r.IsOnline(user))
	assert.False(t, r.Send(context.Background(), user, chat("m2")))

	// idempotent
	r.Unregister(context.Background(), user)
	assert.Equal(t, []string{"online:" + user.String(), "offline:" + user.String()}, p.Events())
}

func TestRegister_SupersedesPreviousSession(t *testing.T) {
	r, _ := newRegistry(nil)
	user := uuid.New()
	first, second := &fakeConn{}, &fakeConn{}

	s1 := r.Register(context.Background(), user, first, "alice")
	s2 := r.Register(context.Background(), user, second, "alice")

	assert.Equal(t, []int{cnst.CloseSuperseded}, first.Closes())
	assert.Empty(t, second.Closes())
	assert.Equal(t, 1, r.Count())

	// the superseded connection tearing down must not remove its successor
	assert.False(t, r.Detach(context.Background(), s1))
	assert.True(t, r.IsOnline(user))

	assert.True(t, r.Send(context.Background(), user, chat("m")))
	assert.Empty(t, first.Sent())
	assert.Len(t, second.Sent(), 1)

	assert.True(t, r.Detach(context.Background(), s2))
	assert.False(t, r.IsOnline(user))
	assert.False(t, r.Detach(context.Background(), nil))
}

func TestRegister_ConcurrentLeavesExactlyOneSession(t *testing.T) {
	r, _ := newRegistry(nil)
	user := uuid.New()
	const n = 50

	conns := make([]*fakeConn, n)
	for i := range conns {
		conns[i] = &fakeConn{}
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(c *fakeConn) {
			defer wg.Done()
			r.Register(context.Background(), user, c, "alice")
		}(conns[i])
	}
	wg.Wait()

	assert.Equal(t, 1, r.Count())
	s, ok := r.Get(user)
	require.True(t, ok)

	superseded := 0
	for _, c := range conns {
		closes := c.Closes()
		if c == s.Conn() {
			assert.Empty(t, closes)
			continue
		}
		require.Len(t, closes, 1)
		assert.Equal(t, cnst.CloseSuperseded, closes[0])
		superseded++
	}
	assert.Equal(t, n-1, superseded)
}

func TestSend_FailureDropsSession(t *testing.T) {
	r, p := newRegistry(nil)
	user := uuid.New()
	conn := &fakeConn{sendErr: errors.New("broken pipe")}

	r.Register(context.Background(), user, conn, "bob")
	assert.False(t, r.Send(context.Background(), user, chat("m")))
	assert.False(t, r.IsOnline(user))
	assert.Equal(t, []int{cnst.CloseSendFailed}, conn.Closes())
	assert.Contains(t, p.Events(), "offline:"+user.String())
}

func TestRegister_DrainsOfflineQueueThenLive(t *testing.T) {
	mb := mailbox.New(zap.NewNop(), 100, 0, nil)
	r, _ := newRegistry(mb)
	user := uuid.New()

	mb.Enqueue(user, chat("q1"))
	mb.Enqueue(user, chat("q2"))

	conn := &fakeConn{}
	r.Register(context.Background(), user, conn, "carol")
	assert.Equal(t, 0, mb.Len(user))

	assert.True(t, r.Send(context.Background(), user, chat("live")))
	assert.Equal(t, 0, mb.Len(user))

	sent := conn.Sent()
	require.Len(t, sent, 3)
	ids := make([]string, 0, len(sent))
	for _, m := range sent {
		ids = append(ids, m.(*dto.ChatMessage).MessageID)
	}
	assert.Equal(t, []string{"q1", "q2", "live"}, ids)
}

func TestRegister_DisconnectDuringDrainKeepsUntriedMessages(t *testing.T) {
	mb := mailbox.New(zap.NewNop(), 100, 0, nil)
	r, p := newRegistry(mb)
	user := uuid.New()

	for _, id := range []string{"q1", "q2", "q3", "q4", "q5"} {
		mb.Enqueue(user, chat(id))
	}

	conn := &fakeConn{failAfter: 1}
	r.Register(context.Background(), user, conn, "dave")

	require.Len(t, conn.Sent(), 1)
	assert.False(t, r.IsOnline(user))
	assert.Equal(t, []int{cnst.CloseSendFailed}, conn.Closes())
	assert.Contains(t, p.Events(), "offline:"+user.String())

	// q2 failed on the wire and is gone; the rest waits for the next connect
	left := mb.Peek(user)
	ids := make([]string, 0, len(left))
	for _, e := range left {
		ids = append(ids, e.Message.(*dto.ChatMessage).MessageID)
	}
	assert.Equal(t, []string{"q3", "q4", "q5"}, ids)

	next := &fakeConn{}
	r.Register(context.Background(), user, next, "dave")
	assert.Len(t, next.Sent(), 3)
	assert.Equal(t, 0, mb.Len(user))
}

func TestListOnline_SnapshotOrderedByConnectTime(t *testing.T) {
	r, _ := newRegistry(nil)
	a, b := uuid.New(), uuid.New()

	r.Register(context.Background(), a, &fakeConn{}, "a")
	time.Sleep(2 * time.Millisecond)
	r.Register(context.Background(), b, &fakeConn{}, "b")

	list := r.ListOnline()
	require.Len(t, list, 2)
	assert.Equal(t, a, list[0].UserID)
	assert.Equal(t, "b", list[1].DisplayName)

	r.Unregister(context.Background(), a)
	assert.Len(t, list, 2)
	assert.Len(t, r.ListOnline(), 1)
}

func TestCloseAll(t *testing.T) {
	r, p := newRegistry(nil)
	c1, c2 := &fakeConn{}, &fakeConn{}
	r.Register(context.Background(), uuid.New(), c1, "a")
	r.Register(context.Background(), uuid.New(), c2, "b")

	r.CloseAll(context.Background(), 1001, cnst.ReasonServerShutdown)

	assert.Zero(t, r.Count())
	assert.Equal(t, []int{1001}, c1.Closes())
	assert.Equal(t, []int{1001}, c2.Closes())
	assert.Len(t, p.Events(), 4)
}
