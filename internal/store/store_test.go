package store

import (
	"context"
	"testing"
	"time"

	"github.com/amoylab/umbra/internal/common/cnst"
	"github.com/amoylab/umbra/internal/common/config"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *DB {
	t.Helper()
	s, err := NewStore(zap.NewNop(), &config.DatabaseConfig{Type: "sqlite", DBName: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func mustUser(t *testing.T, s *DB, device, nickname string) *User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), device, nickname, "pk-"+nickname)
	require.NoError(t, err)
	return u
}

func TestNewStore_Factory(t *testing.T) {
	_, err := NewStore(zap.NewNop(), &config.DatabaseConfig{Type: "unknown"})
	assert.Error(t, err)

	_, err = NewStore(zap.NewNop(), &config.DatabaseConfig{Type: "mysql", Host: "127.0.0.1", Port: 1, User: "u", Password: "p", DBName: "d"})
	assert.Error(t, err)
}

func TestUsers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	alice := mustUser(t, s, "device-a", "Alice")
	assert.NotEqual(t, uuid.Nil, alice.ID)
	assert.NotEqual(t, "device-a", alice.DeviceDigest)
	assert.Equal(t, DeviceDigest("device-a"), alice.DeviceDigest)

	_, err := s.CreateUser(ctx, "device-a", "Other", "pk")
	assert.ErrorIs(t, err, ErrDeviceTaken)

	got, err := s.FindUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.Nickname)

	byDevice, err := s.FindUserByDevice(ctx, "device-a")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, byDevice.ID)

	_, err = s.FindUser(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.FindUserByDevice(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.VerifyDevice(ctx, alice.ID, "device-a")
	assert.NoError(t, err)
	_, err = s.VerifyDevice(ctx, alice.ID, "device-b")
	assert.ErrorIs(t, err, ErrDeviceMismatch)
	_, err = s.VerifyDevice(ctx, uuid.New(), "device-a")
	assert.ErrorIs(t, err, ErrNotFound)

	updated, err := s.UpdatePublicKey(ctx, alice.ID, "new-key")
	require.NoError(t, err)
	assert.Equal(t, "new-key", updated.PublicKey)
	_, err = s.UpdatePublicKey(ctx, uuid.New(), "k")
	assert.ErrorIs(t, err, ErrNotFound)

	mustUser(t, s, "device-b", "alicia")
	mustUser(t, s, "device-c", "Bob")
	found, err := s.SearchUsers(ctx, "ALI", 10)
	require.NoError(t, err)
	assert.Len(t, found, 2)
}

func TestFindUserByNickname(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := mustUser(t, s, "device-a", "alice")
	time.Sleep(2 * time.Millisecond)
	mustUser(t, s, "device-b", "alice")
	mustUser(t, s, "device-c", "alicia")

	got, err := s.FindUserByNickname(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)

	// exact match only
	_, err = s.FindUserByNickname(ctx, "ali")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.FindUserByNickname(ctx, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestChats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := mustUser(t, s, "a", "alice")
	bob := mustUser(t, s, "b", "bob")

	chat, err := s.CreateChat(ctx, alice.ID, "general")
	require.NoError(t, err)

	_, err = s.CreateChat(ctx, uuid.New(), "orphan")
	assert.ErrorIs(t, err, ErrNotFound)

	ok, err := s.IsChatMember(ctx, chat.ID, alice.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = s.AddChatMember(ctx, chat.ID, bob.ID)
	require.NoError(t, err)
	_, err = s.AddChatMember(ctx, chat.ID, bob.ID)
	assert.ErrorIs(t, err, ErrAlreadyMember)
	_, err = s.AddChatMember(ctx, uuid.New(), bob.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	members, err := s.ListChatMembers(ctx, chat.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{alice.ID, bob.ID}, members)

	details, err := s.ListChatMemberDetails(ctx, chat.ID)
	require.NoError(t, err)
	require.Len(t, details, 2)
	assert.Equal(t, "alice", details[0].Nickname)

	count, err := s.CountChatMembers(ctx, chat.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	chats, err := s.ListUserChats(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, "general", chats[0].Name)

	require.NoError(t, s.RemoveChatMember(ctx, chat.ID, bob.ID))
	assert.ErrorIs(t, s.RemoveChatMember(ctx, chat.ID, bob.ID), ErrNotMember)

	_, err = s.CreateChat(ctx, alice.ID, "second")
	require.NoError(t, err)
	left, err := s.LeaveAllChats(ctx, alice.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, left)
}

func TestContactRequestWorkflow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := mustUser(t, s, "a", "alice")
	bob := mustUser(t, s, "b", "bob")

	_, err := s.CreateContactRequest(ctx, alice.ID, alice.ID)
	assert.ErrorIs(t, err, ErrSelfRequest)
	_, err = s.CreateContactRequest(ctx, alice.ID, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	req, err := s.CreateContactRequest(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, cnst.ContactRequestPending, req.Status)

	_, err = s.CreateContactRequest(ctx, alice.ID, bob.ID)
	assert.ErrorIs(t, err, ErrDuplicateRequest)

	pending, err := s.ListPendingRequests(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, req.ID, pending[0].ID)

	// only the recipient may answer
	_, err = s.RespondContactRequest(ctx, req.ID, alice.ID, cnst.ContactRequestAccepted)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.RespondContactRequest(ctx, req.ID, bob.ID, "maybe")
	assert.ErrorIs(t, err, ErrInvalidStatus)

	answered, err := s.RespondContactRequest(ctx, req.ID, bob.ID, cnst.ContactRequestAccepted)
	require.NoError(t, err)
	assert.Equal(t, cnst.ContactRequestAccepted, answered.Status)
	assert.NotNil(t, answered.RespondedAt)

	_, err = s.RespondContactRequest(ctx, req.ID, bob.ID, cnst.ContactRequestAccepted)
	assert.ErrorIs(t, err, ErrNotFound)

	contacts, err := s.ListContacts(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, bob.ID, contacts[0].ID)

	ok, err := s.AreContacts(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = s.CreateContactRequest(ctx, bob.ID, alice.ID)
	assert.ErrorIs(t, err, ErrAlreadyContacts)

	require.NoError(t, s.RemoveContact(ctx, bob.ID, alice.ID))
	assert.ErrorIs(t, s.RemoveContact(ctx, bob.ID, alice.ID), ErrNotFound)
	contacts, err = s.ListContacts(ctx, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, contacts)
}

func TestDeclinedRequestAllowsRetry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := mustUser(t, s, "a", "alice")
	bob := mustUser(t, s, "b", "bob")

	req, err := s.CreateContactRequest(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	_, err = s.RespondContactRequest(ctx, req.ID, bob.ID, cnst.ContactRequestDeclined)
	require.NoError(t, err)

	ok, err := s.AreContacts(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.CreateContactRequest(ctx, alice.ID, bob.ID)
	assert.NoError(t, err)
}

func TestTransactionRollback(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.Transaction(ctx, func(ctx context.Context) error {
		if _, err := s.CreateUser(ctx, "tx-device", "tx", "pk"); err != nil {
			return err
		}
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	_, err = s.FindUserByDevice(ctx, "tx-device")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeviceDigest(t *testing.T) {
	d := DeviceDigest("device")
	assert.Len(t, d, 64)
	assert.Equal(t, d, DeviceDigest("device"))
	assert.True(t, deviceMatches("device", d))
	assert.False(t, deviceMatches("devicE", d))
}
