package dto

import (
	"encoding/json"
	"time"

	"github.com/amoylab/umbra/internal/common/cnst"
)

// TimestampLayout is the ISO-8601 layout of every server-generated timestamp
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// FormatTimestamp renders t in UTC using TimestampLayout
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Frame is an inbound client frame. Only Type is common to every frame; the
// remaining fields are read by the workflow the type selects.
type Frame struct {
	Type             string          `json:"type"`
	ChatID           string          `json:"chat_id,omitempty"`
	Content          json.RawMessage `json:"content,omitempty"`
	MessageID        string          `json:"message_id,omitempty"`
	Timestamp        string          `json:"timestamp,omitempty"`
	Encrypted        *bool           `json:"encrypted,omitempty"`
	RecipientID      string          `json:"recipient_id,omitempty"`
	RecipientIDCamel string          `json:"recipientId,omitempty"`
	OriginalSenderID string          `json:"original_sender_id,omitempty"`
}

// Recipient returns recipient_id, falling back to the camelCase spelling older clients send
func (f *Frame) Recipient() string {
	if f.RecipientID != "" {
		return f.RecipientID
	}
	return f.RecipientIDCamel
}

// Outbound is a frame pushed to a client. Values are treated as immutable once built.
type Outbound interface {
	MessageType() cnst.MessageType
}

// ChatMessage is a chat payload forwarded to every other chat member
type ChatMessage struct {
	Type      cnst.MessageType `json:"type"`
	MessageID string           `json:"message_id"`
	ChatID    string           `json:"chat_id"`
	SenderID  string           `json:"sender_id"`
	Content   json.RawMessage  `json:"content"`
	Timestamp string           `json:"timestamp"`
	Encrypted bool             `json:"encrypted"`
}

func (m *ChatMessage) MessageType() cnst.MessageType { return cnst.TypeChatMessage }

// ContactRequest is delivered to the recipient of a contact request only
type ContactRequest struct {
	Type            cnst.MessageType `json:"type"`
	RequestID       string           `json:"request_id"`
	SenderID        string           `json:"sender_id"`
	SenderNickname  string           `json:"sender_nickname"`
	SenderPublicKey string           `json:"sender_public_key"`
	Timestamp       string           `json:"timestamp"`
}

func (m *ContactRequest) MessageType() cnst.MessageType { return cnst.TypeContactRequest }

// ContactRequestSent is the receipt returned to the requester
type ContactRequestSent struct {
	Type              cnst.MessageType `json:"type"`
	RequestID         string           `json:"request_id"`
	RecipientID       string           `json:"recipient_id"`
	RecipientNickname string           `json:"recipient_nickname"`
	Timestamp         string           `json:"timestamp"`
}

func (m *ContactRequestSent) MessageType() cnst.MessageType { return cnst.TypeContactRequestSent }

// ContactRequestError tells the requester why a request was refused
type ContactRequestError struct {
	Type      cnst.MessageType `json:"type"`
	Error     string           `json:"error"`
	Timestamp string           `json:"timestamp"`
}

func (m *ContactRequestError) MessageType() cnst.MessageType { return cnst.TypeContactRequestError }

// ContactAccept notifies the original requester that the request was accepted
type ContactAccept struct {
	Type              cnst.MessageType `json:"type"`
	AcceptedUserID    string           `json:"accepted_user_id"`
	AcceptedNickname  string           `json:"accepted_nickname"`
	AcceptedPublicKey string           `json:"accepted_public_key"`
	Timestamp         string           `json:"timestamp"`
}

func (m *ContactAccept) MessageType() cnst.MessageType { return cnst.TypeContactAccept }

// MessageAck relays a delivery acknowledgment to the original sender
type MessageAck struct {
	Type        cnst.MessageType `json:"type"`
	MessageID   string           `json:"message_id"`
	AckSenderID string           `json:"ack_sender_id"`
	Timestamp   string           `json:"timestamp"`
}

func (m *MessageAck) MessageType() cnst.MessageType { return cnst.TypeMessageAck }

// Pong answers a client ping
type Pong struct {
	Type      cnst.MessageType `json:"type"`
	Timestamp string           `json:"timestamp"`
}

func (m *Pong) MessageType() cnst.MessageType { return cnst.TypePong }

// NewContactRequestError builds a contact_request_error reply
func NewContactRequestError(reason string, now time.Time) *ContactRequestError {
	return &ContactRequestError{
		Type:      cnst.TypeContactRequestError,
		Error:     reason,
		Timestamp: FormatTimestamp(now),
	}
}

// NewPong builds a pong reply
func NewPong(now time.Time) *Pong {
	return &Pong{Type: cnst.TypePong, Timestamp: FormatTimestamp(now)}
}
