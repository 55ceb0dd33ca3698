package handler

import (
	"errors"

	"github.com/amoylab/umbra/internal/common/dto"
	"github.com/amoylab/umbra/internal/i18n"
	"github.com/amoylab/umbra/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Chat struct {
	logger *zap.Logger
	db     store.Store
}

func NewChat(logger *zap.Logger, db store.Store) *Chat {
	return &Chat{logger: logger.Named("handler.chat"), db: db}
}

// HandleCreate creates a chat with the caller as its first member
func (h *Chat) HandleCreate(c *gin.Context) {
	var req dto.CreateChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	chat, err := h.db.CreateChat(c.Request.Context(), caller(c).ID, req.Name)
	if err != nil {
		h.logger.Error("failed to create chat", zap.Error(err))
		internalError(c, "chat creation failed")
		return
	}
	i18n.Created(i18n.SuccessChatCreated).WithPayload(dto.ChatResponse{
		ChatID:      chat.ID,
		Name:        chat.Name,
		CreatorID:   chat.CreatorID,
		CreatedAt:   chat.CreatedAt,
		MemberCount: 1,
	}).Send(c)
}

// HandleList returns the chats the caller belongs to
func (h *Chat) HandleList(c *gin.Context) {
	ctx := c.Request.Context()
	chats, err := h.db.ListUserChats(ctx, caller(c).ID)
	if err != nil {
		h.logger.Error("failed to list chats", zap.Error(err))
		internalError(c, "chat listing failed")
		return
	}

	out := make([]dto.ChatResponse, 0, len(chats))
	for _, chat := range chats {
		count, err := h.db.CountChatMembers(ctx, chat.ID)
		if err != nil {
			h.logger.Error("failed to count chat members", zap.String("chat_id", chat.ID.String()), zap.Error(err))
			internalError(c, "chat listing failed")
			return
		}
		out = append(out, dto.ChatResponse{
			ChatID:      chat.ID,
			Name:        chat.Name,
			CreatorID:   chat.CreatorID,
			CreatedAt:   chat.CreatedAt,
			MemberCount: count,
		})
	}
	i18n.Success(i18n.SuccessChatList).WithPayload(out).Send(c)
}

// HandleMembers lists the members of a chat the caller belongs to
func (h *Chat) HandleMembers(c *gin.Context) {
	chatID, ok := h.memberChat(c)
	if !ok {
		return
	}
	members, err := h.db.ListChatMemberDetails(c.Request.Context(), chatID)
	if err != nil {
		h.logger.Error("failed to list chat members", zap.Error(err))
		internalError(c, "member listing failed")
		return
	}
	i18n.Success(i18n.SuccessChatMembers).WithPayload(gin.H{
		"chat_id":       chatID,
		"members":       members,
		"total_members": len(members),
	}).Send(c)
}

// HandleInvite adds another user to a chat the caller belongs to
func (h *Chat) HandleInvite(c *gin.Context) {
	chatID, ok := h.memberChat(c)
	if !ok {
		return
	}
	var req dto.InviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	member, err := h.db.AddChatMember(c.Request.Context(), chatID, uuid.MustParse(req.UserID))
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound):
		i18n.RespondWithError(c, i18n.ErrorUserNotFound)
		return
	case errors.Is(err, store.ErrAlreadyMember):
		i18n.RespondWithError(c, i18n.ErrorAlreadyChatMember)
		return
	default:
		h.logger.Error("failed to invite user", zap.Error(err))
		internalError(c, "invite failed")
		return
	}

	h.logger.Info("user invited to chat",
		zap.String("chat_id", chatID.String()),
		zap.String("user_id", req.UserID),
		zap.String("invited_by", caller(c).ID.String()))
	i18n.Success(i18n.SuccessChatInvited).WithPayload(member).Send(c)
}

// HandleLeave removes the caller from a chat
func (h *Chat) HandleLeave(c *gin.Context) {
	chatID, ok := uuidParam(c, "chat_id")
	if !ok {
		return
	}
	if !h.chatExists(c, chatID) {
		return
	}

	err := h.db.RemoveChatMember(c.Request.Context(), chatID, caller(c).ID)
	if err != nil {
		if errors.Is(err, store.ErrNotMember) {
			i18n.RespondWithError(c, i18n.ErrorNotChatMember)
			return
		}
		h.logger.Error("failed to leave chat", zap.Error(err))
		internalError(c, "leave failed")
		return
	}
	i18n.Success(i18n.SuccessChatLeft).WithPayload(gin.H{"chat_id": chatID}).Send(c)
}

// HandleLeaveAll removes the caller from every chat
func (h *Chat) HandleLeaveAll(c *gin.Context) {
	n, err := h.db.LeaveAllChats(c.Request.Context(), caller(c).ID)
	if err != nil {
		h.logger.Error("failed to leave all chats", zap.Error(err))
		internalError(c, "leave failed")
		return
	}
	i18n.Success(i18n.SuccessChatsLeft).With("Count", n).WithPayload(gin.H{"left_chats": n}).Send(c)
}

// memberChat parses :chat_id and checks the chat exists and the caller belongs to it
func (h *Chat) memberChat(c *gin.Context) (uuid.UUID, bool) {
	chatID, ok := uuidParam(c, "chat_id")
	if !ok || !h.chatExists(c, chatID) {
		return uuid.Nil, false
	}
	member, err := h.db.IsChatMember(c.Request.Context(), chatID, caller(c).ID)
	if err != nil {
		internalError(c, "membership lookup failed")
		return uuid.Nil, false
	}
	if !member {
		i18n.RespondWithError(c, i18n.ErrorNotChatMember)
		return uuid.Nil, false
	}
	return chatID, true
}

func (h *Chat) chatExists(c *gin.Context, chatID uuid.UUID) bool {
	if _, err := h.db.GetChat(c.Request.Context(), chatID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			i18n.RespondWithError(c, i18n.ErrorChatNotFound)
		} else {
			internalError(c, "chat lookup failed")
		}
		return false
	}
	return true
}
