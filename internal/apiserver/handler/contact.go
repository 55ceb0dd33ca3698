package handler

import (
	"context"
	"errors"

	"github.com/amoylab/umbra/internal/common/cnst"
	"github.com/amoylab/umbra/internal/common/dto"
	"github.com/amoylab/umbra/internal/i18n"
	"github.com/amoylab/umbra/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// ContactNotifier pushes contact workflow events to connected clients
type ContactNotifier interface {
	NotifyContactRequest(ctx context.Context, sender, recipient *store.User, req *store.ContactRequest)
	NotifyContactAccepted(ctx context.Context, accepter *store.User, requesterID uuid.UUID)
}

type Contact struct {
	logger   *zap.Logger
	db       store.Store
	notifier ContactNotifier
}

func NewContact(logger *zap.Logger, db store.Store, notifier ContactNotifier) *Contact {
	return &Contact{logger: logger.Named("handler.contact"), db: db, notifier: notifier}
}

// HandleSendRequest records a contact request and notifies both parties
func (h *Contact) HandleSendRequest(c *gin.Context) {
	var req dto.ContactRequestCreate
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	ctx := c.Request.Context()
	sender := caller(c)
	toID := uuid.MustParse(req.ToUserID)
	if toID == sender.ID {
		i18n.RespondWithError(c, i18n.ErrorSelfContactRequest)
		return
	}

	recipient, err := h.db.FindUser(ctx, toID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			i18n.RespondWithError(c, i18n.ErrorUserNotFound)
			return
		}
		internalError(c, "lookup failed")
		return
	}

	created, err := h.db.CreateContactRequest(ctx, sender.ID, toID)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrAlreadyContacts):
		i18n.RespondWithError(c, i18n.ErrorAlreadyContacts)
		return
	case errors.Is(err, store.ErrDuplicateRequest):
		i18n.RespondWithError(c, i18n.ErrorDuplicateContactRequest)
		return
	case errors.Is(err, store.ErrSelfRequest):
		i18n.RespondWithError(c, i18n.ErrorSelfContactRequest)
		return
	default:
		h.logger.Error("failed to create contact request", zap.Error(err))
		internalError(c, "contact request failed")
		return
	}

	if h.notifier != nil {
		h.notifier.NotifyContactRequest(ctx, sender, recipient, created)
	}
	i18n.Created(i18n.SuccessContactRequestSent).WithPayload(requestResponse(created, sender, recipient)).Send(c)
}

// HandlePending lists requests addressed to the caller that await an answer
func (h *Contact) HandlePending(c *gin.Context) {
	ctx := c.Request.Context()
	me := caller(c)
	reqs, err := h.db.ListPendingRequests(ctx, me.ID)
	if err != nil {
		h.logger.Error("failed to list contact requests", zap.Error(err))
		internalError(c, "request listing failed")
		return
	}

	out := make([]dto.ContactRequestResponse, 0, len(reqs))
	for _, r := range reqs {
		from, err := h.db.FindUser(ctx, r.FromUserID)
		if err != nil {
			// the requester may have been removed since
			h.logger.Debug("skipping request from unknown user", zap.String("request_id", r.ID.String()))
			continue
		}
		out = append(out, requestResponse(r, from, me))
	}
	i18n.Success(i18n.SuccessContactRequestList).WithPayload(gin.H{
		"requests":    out,
		"total_count": len(out),
	}).Send(c)
}

// HandleRespond accepts or declines a pending request addressed to the caller
func (h *Contact) HandleRespond(c *gin.Context) {
	requestID, ok := uuidParam(c, "request_id")
	if !ok {
		return
	}
	var body dto.ContactRequestAnswer
	if err := c.ShouldBindJSON(&body); err != nil {
		i18n.RespondWithError(c, i18n.ErrorInvalidRequestStatus)
		return
	}
	ctx := c.Request.Context()
	me := caller(c)

	req, err := h.db.RespondContactRequest(ctx, requestID, me.ID, body.Status)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound):
		i18n.RespondWithError(c, i18n.ErrorContactRequestNotFound)
		return
	case errors.Is(err, store.ErrInvalidStatus):
		i18n.RespondWithError(c, i18n.ErrorInvalidRequestStatus)
		return
	default:
		h.logger.Error("failed to respond to contact request", zap.Error(err))
		internalError(c, "response failed")
		return
	}

	if req.Status == cnst.ContactRequestAccepted && h.notifier != nil {
		h.notifier.NotifyContactAccepted(ctx, me, req.FromUserID)
	}

	from := &store.User{ID: req.FromUserID}
	if u, err := h.db.FindUser(ctx, req.FromUserID); err == nil {
		from = u
	}
	i18n.Success(i18n.SuccessContactRequestResponded).
		With("Status", req.Status).
		WithPayload(requestResponse(req, from, me)).
		Send(c)
}

// HandleList returns the caller's contacts
func (h *Contact) HandleList(c *gin.Context) {
	contacts, err := h.db.ListContacts(c.Request.Context(), caller(c).ID)
	if err != nil {
		h.logger.Error("failed to list contacts", zap.Error(err))
		internalError(c, "contact listing failed")
		return
	}
	i18n.Success(i18n.SuccessContactList).WithPayload(lo.Map(contacts, toPublic)).Send(c)
}

// HandleRemove deletes a contact in both directions
func (h *Contact) HandleRemove(c *gin.Context) {
	contactID, ok := uuidParam(c, "contact_id")
	if !ok {
		return
	}
	err := h.db.RemoveContact(c.Request.Context(), caller(c).ID, contactID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			i18n.RespondWithError(c, i18n.ErrorContactNotFound)
			return
		}
		h.logger.Error("failed to remove contact", zap.Error(err))
		internalError(c, "contact removal failed")
		return
	}
	i18n.Success(i18n.SuccessContactRemoved).WithPayload(gin.H{"contact_id": contactID}).Send(c)
}

func requestResponse(r *store.ContactRequest, from, to *store.User) dto.ContactRequestResponse {
	return dto.ContactRequestResponse{
		ID:           r.ID,
		FromUserID:   r.FromUserID,
		FromNickname: from.Nickname,
		ToUserID:     r.ToUserID,
		ToNickname:   to.Nickname,
		Status:       r.Status,
		CreatedAt:    r.CreatedAt,
		RespondedAt:  r.RespondedAt,
	}
}
