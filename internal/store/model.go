package store

import (
	"time"

	"github.com/google/uuid"
)

// User is a registered account bound to exactly one device
type User struct {
	ID           uuid.UUID `json:"user_id" gorm:"primaryKey;type:varchar(36)"`
	DeviceDigest string    `json:"-" gorm:"type:varchar(64);uniqueIndex;not null"`
	Nickname     string    `json:"nickname" gorm:"type:varchar(50);index;not null"`
	PublicKey    string    `json:"public_key" gorm:"type:text;not null"`
	CreatedAt    time.Time `json:"created_at" gorm:"index"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Chat is a named group of members
type Chat struct {
	ID        uuid.UUID `json:"chat_id" gorm:"primaryKey;type:varchar(36)"`
	Name      string    `json:"name" gorm:"type:varchar(100);not null"`
	CreatorID uuid.UUID `json:"creator_id" gorm:"type:varchar(36);index;not null"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatMember links a user to a chat
type ChatMember struct {
	ChatID   uuid.UUID `json:"chat_id" gorm:"primaryKey;type:varchar(36)"`
	UserID   uuid.UUID `json:"user_id" gorm:"primaryKey;type:varchar(36);index"`
	JoinedAt time.Time `json:"joined_at"`
}

// MemberDetail is a chat member joined with their profile
type MemberDetail struct {
	UserID    uuid.UUID `json:"user_id"`
	Nickname  string    `json:"nickname"`
	PublicKey string    `json:"public_key"`
	JoinedAt  time.Time `json:"joined_at"`
}

// ContactRequest is a pending, accepted or declined contact request
type ContactRequest struct {
	ID          uuid.UUID  `json:"id" gorm:"primaryKey;type:varchar(36)"`
	FromUserID  uuid.UUID  `json:"from_user_id" gorm:"type:varchar(36);index;not null"`
	ToUserID    uuid.UUID  `json:"to_user_id" gorm:"type:varchar(36);index;not null"`
	Status      string     `json:"status" gorm:"type:varchar(20);not null;default:'pending'"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	RespondedAt *time.Time `json:"responded_at,omitempty"`
}

// Contact is one direction of a mutual contact relation. Both directions are stored.
type Contact struct {
	UserID        uuid.UUID `json:"user_id" gorm:"primaryKey;type:varchar(36)"`
	ContactUserID uuid.UUID `json:"contact_user_id" gorm:"primaryKey;type:varchar(36)"`
	CreatedAt     time.Time `json:"created_at"`
}

func models() []any {
	return []any{&User{}, &Chat{}, &ChatMember{}, &ContactRequest{}, &Contact{}}
}
