package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/amoylab/umbra/internal/apiserver/middleware"
	"github.com/amoylab/umbra/internal/common/cnst"
	"github.com/amoylab/umbra/internal/common/config"
	"github.com/amoylab/umbra/internal/realtime/session"
	"github.com/amoylab/umbra/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type notified struct {
	requests []*store.ContactRequest
	accepted []uuid.UUID
}

type fakeNotifier struct {
	mu sync.Mutex
	notified
}

func (f *fakeNotifier) NotifyContactRequest(_ context.Context, _, _ *store.User, req *store.ContactRequest) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
}

func (f *fakeNotifier) NotifyContactAccepted(_ context.Context, _ *store.User, requesterID uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accepted = append(f.accepted, requesterID)
}

type fakeOnline struct{ users []session.OnlineUser }

func (f fakeOnline) Count() int                       { return len(f.users) }
func (f fakeOnline) ListOnline() []session.OnlineUser { return f.users }

type fakeQueues map[uuid.UUID]int

func (f fakeQueues) Total() int {
	n := 0
	for _, v := range f {
		n += v
	}
	return n
}
func (f fakeQueues) Stats() map[uuid.UUID]int { return f }

type harness struct {
	t        *testing.T
	engine   *gin.Engine
	db       *store.DB
	notifier *fakeNotifier
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := store.NewStore(zap.NewNop(), &config.DatabaseConfig{Type: "sqlite", DBName: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	n := &fakeNotifier{}
	engine := gin.New()
	engine.Use(middleware.Language())
	New(zap.NewNop(), db, n, fakeOnline{}, fakeQueues{}).Register(engine, zap.NewNop(), db)

	return &harness{t: t, engine: engine, db: db, notifier: n}
}

func (h *harness) do(method, path, device string, body any) (int, map[string]any) {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(h.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if device != "" {
		req.Header.Set(cnst.XDeviceID, device)
	}
	rec := httptest.NewRecorder()
	h.engine.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(h.t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec.Code, out
}

func (h *harness) register(device, nickname string) uuid.UUID {
	h.t.Helper()
	code, out := h.do(http.MethodPost, "/api/v1/users/register", device, gin.H{
		"device_id":  device,
		"nickname":   nickname,
		"public_key": "pk-" + nickname,
	})
	require.Equal(h.t, http.StatusCreated, code, out)
	data := out["data"].(map[string]any)
	return uuid.MustParse(data["user_id"].(string))
}

func TestRegister(t *testing.T) {
	h := newHarness(t)
	id := h.register("dev-alice", "alice")
	assert.NotEqual(t, uuid.Nil, id)

	t.Run("device already registered", func(t *testing.T) {
		code, out := h.do(http.MethodPost, "/api/v1/users/register", "dev-alice", gin.H{
			"device_id": "dev-alice", "nickname": "again", "public_key": "pk",
		})
		assert.Equal(t, http.StatusConflict, code)
		assert.NotEmpty(t, out["error"])
	})

	t.Run("header must match body", func(t *testing.T) {
		code, _ := h.do(http.MethodPost, "/api/v1/users/register", "dev-other", gin.H{
			"device_id": "dev-bob", "nickname": "bob", "public_key": "pk",
		})
		assert.Equal(t, http.StatusBadRequest, code)
	})

	t.Run("missing fields", func(t *testing.T) {
		code, _ := h.do(http.MethodPost, "/api/v1/users/register", "dev-bob", gin.H{"device_id": "dev-bob"})
		assert.Equal(t, http.StatusBadRequest, code)
	})

	t.Run("device id is never echoed", func(t *testing.T) {
		_, out := h.do(http.MethodGet, "/api/v1/users/me", "dev-alice", nil)
		data := out["data"].(map[string]any)
		assert.Equal(t, id.String(), data["user_id"])
		assert.NotContains(t, data, "device_id")
		assert.NotContains(t, data, "DeviceDigest")
	})
}

func TestUsers(t *testing.T) {
	h := newHarness(t)
	h.register("dev-alice", "alice")
	bob := h.register("dev-bob", "bob")
	h.register("dev-alina", "alina")

	t.Run("unauthenticated", func(t *testing.T) {
		code, _ := h.do(http.MethodGet, "/api/v1/users/me", "", nil)
		assert.Equal(t, http.StatusUnauthorized, code)
		code, _ = h.do(http.MethodGet, "/api/v1/users/me", "dev-unknown", nil)
		assert.Equal(t, http.StatusUnauthorized, code)
	})

	t.Run("update public key", func(t *testing.T) {
		code, out := h.do(http.MethodPatch, "/api/v1/users/me", "dev-alice", gin.H{"public_key": "rotated"})
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, "rotated", out["data"].(map[string]any)["public_key"])
	})

	t.Run("search excludes the caller", func(t *testing.T) {
		code, out := h.do(http.MethodGet, "/api/v1/users/search?q=ali", "dev-alice", nil)
		require.Equal(t, http.StatusOK, code)
		found := out["data"].([]any)
		require.Len(t, found, 1)
		assert.Equal(t, "alina", found[0].(map[string]any)["nickname"])
	})

	t.Run("search requires q", func(t *testing.T) {
		code, _ := h.do(http.MethodGet, "/api/v1/users/search", "dev-alice", nil)
		assert.Equal(t, http.StatusBadRequest, code)
	})

	t.Run("public profile", func(t *testing.T) {
		code, out := h.do(http.MethodGet, "/api/v1/users/"+bob.String(), "dev-alice", nil)
		require.Equal(t, http.StatusOK, code)
		data := out["data"].(map[string]any)
		assert.Equal(t, "bob", data["nickname"])
		assert.NotContains(t, data, "created_at")
	})

	t.Run("lookup by nickname", func(t *testing.T) {
		code, out := h.do(http.MethodGet, "/api/v1/users/by-nickname/bob", "dev-alice", nil)
		require.Equal(t, http.StatusOK, code)
		data := out["data"].(map[string]any)
		assert.Equal(t, bob.String(), data["user_id"])
		assert.NotContains(t, data, "device_digest")

		code, _ = h.do(http.MethodGet, "/api/v1/users/by-nickname/bo", "dev-alice", nil)
		assert.Equal(t, http.StatusNotFound, code)
		code, _ = h.do(http.MethodGet, "/api/v1/users/by-nickname/bob", "", nil)
		assert.Equal(t, http.StatusUnauthorized, code)
	})

	t.Run("unknown and malformed ids", func(t *testing.T) {
		code, _ := h.do(http.MethodGet, "/api/v1/users/"+uuid.NewString(), "dev-alice", nil)
		assert.Equal(t, http.StatusNotFound, code)
		code, _ = h.do(http.MethodGet, "/api/v1/users/not-a-uuid", "dev-alice", nil)
		assert.Equal(t, http.StatusBadRequest, code)
	})
}

func TestChats(t *testing.T) {
	h := newHarness(t)
	alice := h.register("dev-alice", "alice")
	bob := h.register("dev-bob", "bob")
	h.register("dev-carol", "carol")

	code, out := h.do(http.MethodPost, "/api/v1/chats", "dev-alice", gin.H{"name": "friends"})
	require.Equal(t, http.StatusCreated, code, out)
	chat := out["data"].(map[string]any)
	chatID := chat["chat_id"].(string)
	assert.Equal(t, alice.String(), chat["creator_id"])
	assert.EqualValues(t, 1, chat["member_count"])

	t.Run("empty name", func(t *testing.T) {
		code, _ := h.do(http.MethodPost, "/api/v1/chats", "dev-alice", gin.H{"name": ""})
		assert.Equal(t, http.StatusBadRequest, code)
	})

	t.Run("outsiders cannot invite or list members", func(t *testing.T) {
		code, _ := h.do(http.MethodPost, "/api/v1/chats/"+chatID+"/invite", "dev-carol", gin.H{"user_id": bob.String()})
		assert.Equal(t, http.StatusForbidden, code)
		code, _ = h.do(http.MethodGet, "/api/v1/chats/"+chatID+"/members", "dev-carol", nil)
		assert.Equal(t, http.StatusForbidden, code)
	})

	t.Run("invite", func(t *testing.T) {
		code, _ := h.do(http.MethodPost, "/api/v1/chats/"+chatID+"/invite", "dev-alice", gin.H{"user_id": bob.String()})
		require.Equal(t, http.StatusOK, code)
		code, _ = h.do(http.MethodPost, "/api/v1/chats/"+chatID+"/invite", "dev-alice", gin.H{"user_id": bob.String()})
		assert.Equal(t, http.StatusConflict, code)
		code, _ = h.do(http.MethodPost, "/api/v1/chats/"+chatID+"/invite", "dev-alice", gin.H{"user_id": uuid.NewString()})
		assert.Equal(t, http.StatusNotFound, code)
	})

	t.Run("members and listing", func(t *testing.T) {
		code, out := h.do(http.MethodGet, "/api/v1/chats/"+chatID+"/members", "dev-bob", nil)
		require.Equal(t, http.StatusOK, code)
		assert.EqualValues(t, 2, out["total_members"])

		code, out = h.do(http.MethodGet, "/api/v1/chats", "dev-bob", nil)
		require.Equal(t, http.StatusOK, code)
		chats := out["data"].([]any)
		require.Len(t, chats, 1)
		assert.EqualValues(t, 2, chats[0].(map[string]any)["member_count"])
	})

	t.Run("unknown chat", func(t *testing.T) {
		code, _ := h.do(http.MethodGet, "/api/v1/chats/"+uuid.NewString()+"/members", "dev-alice", nil)
		assert.Equal(t, http.StatusNotFound, code)
		code, _ = h.do(http.MethodDelete, "/api/v1/chats/"+uuid.NewString()+"/leave", "dev-alice", nil)
		assert.Equal(t, http.StatusNotFound, code)
	})

	t.Run("leave", func(t *testing.T) {
		code, _ := h.do(http.MethodDelete, "/api/v1/chats/"+chatID+"/leave", "dev-bob", nil)
		require.Equal(t, http.StatusOK, code)
		code, _ = h.do(http.MethodDelete, "/api/v1/chats/"+chatID+"/leave", "dev-bob", nil)
		assert.Equal(t, http.StatusForbidden, code)
	})

	t.Run("leave all", func(t *testing.T) {
		code, _ := h.do(http.MethodPost, "/api/v1/chats", "dev-alice", gin.H{"name": "second"})
		require.Equal(t, http.StatusCreated, code)

		code, out := h.do(http.MethodDelete, "/api/v1/chats/leave-all", "dev-alice", nil)
		require.Equal(t, http.StatusOK, code)
		assert.EqualValues(t, 2, out["left_chats"])
		assert.EqualValues(t, 2, out["Count"])

		_, out = h.do(http.MethodGet, "/api/v1/chats", "dev-alice", nil)
		assert.Empty(t, out["data"])
	})
}

func TestContacts(t *testing.T) {
	h := newHarness(t)
	alice := h.register("dev-alice", "alice")
	bob := h.register("dev-bob", "bob")

	t.Run("self request", func(t *testing.T) {
		code, _ := h.do(http.MethodPost, "/api/v1/contacts/requests", "dev-alice", gin.H{"to_user_id": alice.String()})
		assert.Equal(t, http.StatusBadRequest, code)
	})

	t.Run("unknown recipient", func(t *testing.T) {
		code, _ := h.do(http.MethodPost, "/api/v1/contacts/requests", "dev-alice", gin.H{"to_user_id": uuid.NewString()})
		assert.Equal(t, http.StatusNotFound, code)
	})

	code, out := h.do(http.MethodPost, "/api/v1/contacts/requests", "dev-alice", gin.H{"to_user_id": bob.String()})
	require.Equal(t, http.StatusCreated, code, out)
	sent := out["data"].(map[string]any)
	requestID := sent["id"].(string)
	assert.Equal(t, "alice", sent["from_nickname"])
	assert.Equal(t, "bob", sent["to_nickname"])
	assert.Equal(t, cnst.ContactRequestPending, sent["status"])
	require.Len(t, h.notifier.requests, 1)

	t.Run("duplicate pending request", func(t *testing.T) {
		code, _ := h.do(http.MethodPost, "/api/v1/contacts/requests", "dev-alice", gin.H{"to_user_id": bob.String()})
		assert.Equal(t, http.StatusConflict, code)
	})

	t.Run("pending list of the recipient", func(t *testing.T) {
		code, out := h.do(http.MethodGet, "/api/v1/contacts/requests/pending", "dev-bob", nil)
		require.Equal(t, http.StatusOK, code)
		assert.EqualValues(t, 1, out["total_count"])
		_, out = h.do(http.MethodGet, "/api/v1/contacts/requests/pending", "dev-alice", nil)
		assert.EqualValues(t, 0, out["total_count"])
	})

	t.Run("invalid status", func(t *testing.T) {
		code, _ := h.do(http.MethodPost, "/api/v1/contacts/requests/"+requestID+"/respond", "dev-bob", gin.H{"status": "maybe"})
		assert.Equal(t, http.StatusBadRequest, code)
	})

	t.Run("only the recipient may respond", func(t *testing.T) {
		code, _ := h.do(http.MethodPost, "/api/v1/contacts/requests/"+requestID+"/respond", "dev-alice", gin.H{"status": "accepted"})
		assert.Equal(t, http.StatusNotFound, code)
	})

	t.Run("accept", func(t *testing.T) {
		code, out := h.do(http.MethodPost, "/api/v1/contacts/requests/"+requestID+"/respond", "dev-bob", gin.H{"status": "accepted"})
		require.Equal(t, http.StatusOK, code, out)
		assert.Equal(t, cnst.ContactRequestAccepted, out["data"].(map[string]any)["status"])
		assert.Equal(t, []uuid.UUID{alice}, h.notifier.accepted)

		_, out = h.do(http.MethodGet, "/api/v1/contacts", "dev-alice", nil)
		contacts := out["data"].([]any)
		require.Len(t, contacts, 1)
		assert.Equal(t, bob.String(), contacts[0].(map[string]any)["user_id"])
	})

	t.Run("already contacts", func(t *testing.T) {
		code, _ := h.do(http.MethodPost, "/api/v1/contacts/requests", "dev-bob", gin.H{"to_user_id": alice.String()})
		assert.Equal(t, http.StatusConflict, code)
	})

	t.Run("remove", func(t *testing.T) {
		code, _ := h.do(http.MethodDelete, "/api/v1/contacts/"+alice.String(), "dev-bob", nil)
		require.Equal(t, http.StatusOK, code)
		code, _ = h.do(http.MethodDelete, "/api/v1/contacts/"+alice.String(), "dev-bob", nil)
		assert.Equal(t, http.StatusNotFound, code)
		_, out := h.do(http.MethodGet, "/api/v1/contacts", "dev-alice", nil)
		assert.Empty(t, out["data"])
	})
}

func TestLocalizedErrors(t *testing.T) {
	h := newHarness(t)
	h.register("dev-alice", "alice")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/"+uuid.NewString(), nil)
	req.Header.Set(cnst.XDeviceID, "dev-alice")
	req.Header.Set(cnst.XLang, cnst.LangRU)
	rec := httptest.NewRecorder()
	h.engine.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	var out map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.NotEqual(t, "User not found", out["error"])
	assert.NotEmpty(t, out["error"])
}
