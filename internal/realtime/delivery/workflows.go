package delivery

import (
	"context"
	"errors"
	"fmt"

	"github.com/amoylab/umbra/internal/common/cnst"
	"github.com/amoylab/umbra/internal/common/dto"
	"github.com/amoylab/umbra/internal/store"
	"github.com/amoylab/umbra/pkg/trace"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Replies sent in contact_request_error frames
const (
	replySelfRequest      = "Cannot send contact request to yourself"
	replyRecipientMissing = "Recipient not found"
	replyAlreadyContacts  = "Users are already contacts"
	replyDuplicateRequest = "Contact request already pending"
	replyRequestFailed    = "Failed to create contact request"
)

type chatMessageInput struct {
	ChatID    string `validate:"required,uuid"`
	MessageID string `validate:"omitempty,max=128"`
}

type messageAckInput struct {
	MessageID        string `validate:"required,max=128"`
	OriginalSenderID string `validate:"required,uuid"`
}

// handleChatMessage fans a chat message out to every member except the sender
func (r *Router) handleChatMessage(ctx context.Context, scope *trace.SpanScope, origin Origin, raw []byte, frame *dto.Frame) error {
	in := chatMessageInput{ChatID: frame.ChatID, MessageID: frame.MessageID}
	if err := r.validate.Struct(in); err != nil {
		r.logger.Warn("invalid chat message", zap.String("user_id", origin.UserID.String()), zap.Error(err))
		return fmt.Errorf("%w: %v", cnst.ErrInvalidField, err)
	}
	content := gjson.GetBytes(raw, "content")
	if !content.Exists() || content.Type == gjson.Null {
		r.logger.Warn("chat message without content", zap.String("user_id", origin.UserID.String()))
		return fmt.Errorf("%w: content", cnst.ErrInvalidField)
	}
	chatID := uuid.MustParse(in.ChatID)
	scope.WithAttrs(attribute.String(cnst.AttrChatID, chatID.String()))

	member, err := r.dir.IsChatMember(ctx, chatID, origin.UserID)
	if err != nil {
		return fmt.Errorf("membership lookup: %w", err)
	}
	if !member {
		r.logger.Warn("sender is not a chat member",
			zap.String("user_id", origin.UserID.String()),
			zap.String("chat_id", chatID.String()))
		return cnst.ErrNotChatMember
	}

	members, err := r.dir.ListChatMembers(ctx, chatID)
	if err != nil {
		return fmt.Errorf("member lookup: %w", err)
	}
	recipients := lo.Without(lo.Uniq(members), origin.UserID)
	scope.WithAttrs(attribute.Int(cnst.AttrRecipientCount, len(recipients)))

	msg := &dto.ChatMessage{
		Type:      cnst.TypeChatMessage,
		MessageID: lo.Ternary(in.MessageID != "", in.MessageID, uuid.NewString()),
		ChatID:    chatID.String(),
		SenderID:  origin.UserID.String(),
		Content:   frame.Content,
		Timestamp: lo.Ternary(frame.Timestamp != "", frame.Timestamp, r.timestamp()),
		Encrypted: frame.Encrypted == nil || *frame.Encrypted,
	}

	live := 0
	for _, id := range recipients {
		if r.deliver(ctx, id, msg) {
			live++
		}
	}
	r.logger.Debug("chat message routed",
		zap.String("chat_id", chatID.String()),
		zap.String("message_id", msg.MessageID),
		zap.Int("recipients", len(recipients)),
		zap.Int("live", live))
	return nil
}

// handleContactRequest validates a contact request, records it and notifies both parties
func (r *Router) handleContactRequest(ctx context.Context, origin Origin, frame *dto.Frame) error {
	recipientID, err := r.parseID("recipient_id", frame.Recipient())
	if err != nil {
		r.logger.Warn("invalid contact request", zap.String("user_id", origin.UserID.String()), zap.Error(err))
		return err
	}

	if recipientID == origin.UserID {
		r.logger.Warn("contact request to self", zap.String("user_id", origin.UserID.String()))
		r.rejectContactRequest(ctx, origin.UserID, replySelfRequest)
		return cnst.ErrSelfContactRequest
	}

	recipient, err := r.dir.FindUser(ctx, recipientID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			r.rejectContactRequest(ctx, origin.UserID, replyRecipientMissing)
			return cnst.ErrRecipientNotFound
		}
		return fmt.Errorf("recipient lookup: %w", err)
	}

	sender, err := r.dir.FindUser(ctx, origin.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return cnst.ErrUserNotFound
		}
		return fmt.Errorf("sender lookup: %w", err)
	}

	contacts, err := r.dir.ListContacts(ctx, origin.UserID)
	if err != nil {
		return fmt.Errorf("contact lookup: %w", err)
	}
	if lo.ContainsBy(contacts, func(u *store.User) bool { return u.ID == recipientID }) {
		r.rejectContactRequest(ctx, origin.UserID, replyAlreadyContacts)
		return cnst.ErrContactsAlready
	}

	req, err := r.dir.CreateContactRequest(ctx, origin.UserID, recipientID)
	if err != nil {
		r.logger.Warn("failed to create contact request",
			zap.String("user_id", origin.UserID.String()),
			zap.String("recipient_id", recipientID.String()),
			zap.Error(err))
		r.rejectContactRequest(ctx, origin.UserID, storeRejection(err))
		return fmt.Errorf("%w: %v", cnst.ErrContactRequestStore, err)
	}

	r.NotifyContactRequest(ctx, sender, recipient, req)
	return nil
}

// NotifyContactRequest sends the request to the recipient and a receipt to the sender
func (r *Router) NotifyContactRequest(ctx context.Context, sender, recipient *store.User, req *store.ContactRequest) {
	ts := r.timestamp()
	r.deliver(ctx, recipient.ID, &dto.ContactRequest{
		Type:            cnst.TypeContactRequest,
		RequestID:       req.ID.String(),
		SenderID:        sender.ID.String(),
		SenderNickname:  sender.Nickname,
		SenderPublicKey: sender.PublicKey,
		Timestamp:       ts,
	})
	r.deliver(ctx, sender.ID, &dto.ContactRequestSent{
		Type:              cnst.TypeContactRequestSent,
		RequestID:         req.ID.String(),
		RecipientID:       recipient.ID.String(),
		RecipientNickname: recipient.Nickname,
		Timestamp:         ts,
	})
}

func (r *Router) rejectContactRequest(ctx context.Context, userID uuid.UUID, reason string) {
	r.deliver(ctx, userID, dto.NewContactRequestError(reason, r.now()))
}

func storeRejection(err error) string {
	switch {
	case errors.Is(err, store.ErrSelfRequest):
		return replySelfRequest
	case errors.Is(err, store.ErrAlreadyContacts):
		return replyAlreadyContacts
	case errors.Is(err, store.ErrDuplicateRequest):
		return replyDuplicateRequest
	case errors.Is(err, store.ErrNotFound):
		return replyRecipientMissing
	default:
		return replyRequestFailed
	}
}

// handleContactAccept relays an acceptance notice to the original requester
func (r *Router) handleContactAccept(ctx context.Context, origin Origin, frame *dto.Frame) error {
	requesterID, err := r.parseID("original_sender_id", frame.OriginalSenderID)
	if err != nil {
		r.logger.Warn("invalid contact accept", zap.String("user_id", origin.UserID.String()), zap.Error(err))
		return err
	}

	accepter, err := r.dir.FindUser(ctx, origin.UserID)
	if err != nil {
		return lookupMiss(err)
	}
	if _, err := r.dir.FindUser(ctx, requesterID); err != nil {
		r.logger.Warn("contact accept for unknown user", zap.String("original_sender_id", requesterID.String()))
		return lookupMiss(err)
	}

	r.NotifyContactAccepted(ctx, accepter, requesterID)
	return nil
}

// NotifyContactAccepted tells requesterID that accepter took their request
func (r *Router) NotifyContactAccepted(ctx context.Context, accepter *store.User, requesterID uuid.UUID) {
	r.relay(ctx, requesterID, &dto.ContactAccept{
		Type:              cnst.TypeContactAccept,
		AcceptedUserID:    accepter.ID.String(),
		AcceptedNickname:  accepter.Nickname,
		AcceptedPublicKey: accepter.PublicKey,
		Timestamp:         r.timestamp(),
	})
}

// handleMessageAck relays a delivery acknowledgment to the original sender
func (r *Router) handleMessageAck(ctx context.Context, origin Origin, frame *dto.Frame) error {
	in := messageAckInput{MessageID: frame.MessageID, OriginalSenderID: frame.OriginalSenderID}
	if err := r.validate.Struct(in); err != nil {
		r.logger.Warn("invalid message ack", zap.String("user_id", origin.UserID.String()), zap.Error(err))
		return fmt.Errorf("%w: %v", cnst.ErrInvalidField, err)
	}

	r.relay(ctx, uuid.MustParse(in.OriginalSenderID), &dto.MessageAck{
		Type:        cnst.TypeMessageAck,
		MessageID:   in.MessageID,
		AckSenderID: origin.UserID.String(),
		Timestamp:   r.timestamp(),
	})
	return nil
}

// handlePing answers on the connection the ping arrived on
func (r *Router) handlePing(ctx context.Context, origin Origin) {
	if origin.Conn == nil {
		return
	}
	if err := origin.Conn.Send(ctx, dto.NewPong(r.now())); err != nil {
		r.logger.Debug("failed to send pong", zap.String("user_id", origin.UserID.String()), zap.Error(err))
	}
}

func lookupMiss(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return cnst.ErrUserNotFound
	}
	return fmt.Errorf("user lookup: %w", err)
}
