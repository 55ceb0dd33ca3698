package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound         = errors.New("record not found")
	ErrDeviceTaken      = errors.New("device is already registered")
	ErrDeviceMismatch   = errors.New("device does not match user")
	ErrAlreadyMember    = errors.New("user is already a chat member")
	ErrNotMember        = errors.New("user is not a chat member")
	ErrSelfRequest      = errors.New("cannot send contact request to yourself")
	ErrAlreadyContacts  = errors.New("users are already contacts")
	ErrDuplicateRequest = errors.New("contact request already pending")
	ErrInvalidStatus    = errors.New("status must be accepted or declined")
)

// Store is the relational store for users, chats and contacts
type Store interface {
	// Users
	CreateUser(ctx context.Context, deviceID, nickname, publicKey string) (*User, error)
	FindUser(ctx context.Context, userID uuid.UUID) (*User, error)
	FindUserByDevice(ctx context.Context, deviceID string) (*User, error)
	FindUserByNickname(ctx context.Context, nickname string) (*User, error)
	VerifyDevice(ctx context.Context, userID uuid.UUID, deviceID string) (*User, error)
	UpdatePublicKey(ctx context.Context, userID uuid.UUID, publicKey string) (*User, error)
	SearchUsers(ctx context.Context, query string, limit int) ([]*User, error)

	// Chats
	CreateChat(ctx context.Context, creatorID uuid.UUID, name string) (*Chat, error)
	GetChat(ctx context.Context, chatID uuid.UUID) (*Chat, error)
	AddChatMember(ctx context.Context, chatID, userID uuid.UUID) (*ChatMember, error)
	RemoveChatMember(ctx context.Context, chatID, userID uuid.UUID) error
	LeaveAllChats(ctx context.Context, userID uuid.UUID) (int64, error)
	IsChatMember(ctx context.Context, chatID, userID uuid.UUID) (bool, error)
	ListChatMembers(ctx context.Context, chatID uuid.UUID) ([]uuid.UUID, error)
	ListChatMemberDetails(ctx context.Context, chatID uuid.UUID) ([]*MemberDetail, error)
	ListUserChats(ctx context.Context, userID uuid.UUID) ([]*Chat, error)
	CountChatMembers(ctx context.Context, chatID uuid.UUID) (int64, error)

	// Contacts
	CreateContactRequest(ctx context.Context, fromUserID, toUserID uuid.UUID) (*ContactRequest, error)
	GetContactRequest(ctx context.Context, requestID uuid.UUID) (*ContactRequest, error)
	ListPendingRequests(ctx context.Context, userID uuid.UUID) ([]*ContactRequest, error)
	RespondContactRequest(ctx context.Context, requestID, responderID uuid.UUID, status string) (*ContactRequest, error)
	ListContacts(ctx context.Context, userID uuid.UUID) ([]*User, error)
	AreContacts(ctx context.Context, userID, otherID uuid.UUID) (bool, error)
	RemoveContact(ctx context.Context, userID, contactUserID uuid.UUID) error

	// Transaction runs fn in a transaction carried by the context passed to fn
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error

	Close() error
}
