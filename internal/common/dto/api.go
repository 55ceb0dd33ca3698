package dto

import (
	"time"

	"github.com/google/uuid"
)

// RegisterRequest is the body of POST /api/v1/users/register
type RegisterRequest struct {
	DeviceID  string `json:"device_id" binding:"required,min=1,max=255"`
	Nickname  string `json:"nickname" binding:"required,min=1,max=50"`
	PublicKey string `json:"public_key" binding:"required"`
}

// UpdateUserRequest is the body of PATCH /api/v1/users/me
type UpdateUserRequest struct {
	PublicKey string `json:"public_key" binding:"required"`
}

// UserPublic is the profile other users may see
type UserPublic struct {
	UserID    uuid.UUID `json:"user_id"`
	Nickname  string    `json:"nickname"`
	PublicKey string    `json:"public_key"`
}

// CreateChatRequest is the body of POST /api/v1/chats
type CreateChatRequest struct {
	Name string `json:"name" binding:"required,min=1,max=100"`
}

// InviteRequest is the body of POST /api/v1/chats/:chat_id/invite
type InviteRequest struct {
	UserID string `json:"user_id" binding:"required,uuid"`
}

// ChatResponse describes a chat and its size
type ChatResponse struct {
	ChatID      uuid.UUID `json:"chat_id"`
	Name        string    `json:"name"`
	CreatorID   uuid.UUID `json:"creator_id"`
	CreatedAt   time.Time `json:"created_at"`
	MemberCount int64     `json:"member_count"`
}

// ContactRequestCreate is the body of POST /api/v1/contacts/requests
type ContactRequestCreate struct {
	ToUserID string `json:"to_user_id" binding:"required,uuid"`
}

// ContactRequestAnswer is the body of POST /api/v1/contacts/requests/:request_id/respond
type ContactRequestAnswer struct {
	Status string `json:"status" binding:"required,oneof=accepted declined"`
}

// ContactRequestResponse describes a contact request with both nicknames
type ContactRequestResponse struct {
	ID           uuid.UUID  `json:"id"`
	FromUserID   uuid.UUID  `json:"from_user_id"`
	FromNickname string     `json:"from_nickname"`
	ToUserID     uuid.UUID  `json:"to_user_id"`
	ToNickname   string     `json:"to_nickname"`
	Status       string     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	RespondedAt  *time.Time `json:"responded_at,omitempty"`
}

// WSInfo is the short connection summary served at /ws-info
type WSInfo struct {
	OnlineUsers     int `json:"online_users"`
	OfflineMessages int `json:"offline_messages"`
}

// WSStats is the detailed connection summary served at /ws-info/stats
type WSStats struct {
	OnlineUsers              int             `json:"online_users"`
	Sessions                 []OnlineSession `json:"sessions"`
	TotalOfflineMessages     int             `json:"total_offline_messages"`
	UsersWithOfflineMessages int             `json:"users_with_offline_messages"`
	OfflineQueueDetails      map[string]int  `json:"offline_queue_details"`
	ServerTime               string          `json:"server_time"`
	ServerUptime             string          `json:"server_uptime"`
}

// OnlineSession is one registered session in WSStats
type OnlineSession struct {
	UserID      uuid.UUID `json:"user_id"`
	DisplayName string    `json:"display_name"`
	ConnectedAt string    `json:"connected_at"`
}
