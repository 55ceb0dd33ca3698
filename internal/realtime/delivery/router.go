package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/amoylab/umbra/internal/common/cnst"
	"github.com/amoylab/umbra/internal/common/config"
	"github.com/amoylab/umbra/internal/common/dto"
	"github.com/amoylab/umbra/internal/store"
	"github.com/amoylab/umbra/pkg/metrics"
	"github.com/amoylab/umbra/pkg/trace"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Directory is the slice of the user/chat/contact store the router needs
type Directory interface {
	FindUser(ctx context.Context, userID uuid.UUID) (*store.User, error)
	IsChatMember(ctx context.Context, chatID, userID uuid.UUID) (bool, error)
	ListChatMembers(ctx context.Context, chatID uuid.UUID) ([]uuid.UUID, error)
	CreateContactRequest(ctx context.Context, fromUserID, toUserID uuid.UUID) (*store.ContactRequest, error)
	ListContacts(ctx context.Context, userID uuid.UUID) ([]*store.User, error)
}

// Sessions pushes to live connections
type Sessions interface {
	Send(ctx context.Context, userID uuid.UUID, msg dto.Outbound) bool
}

// Mailbox queues messages for offline users
type Mailbox interface {
	Enqueue(userID uuid.UUID, msg dto.Outbound)
}

// Replier answers on the connection a frame arrived on
type Replier interface {
	Send(ctx context.Context, msg dto.Outbound) error
}

// Origin identifies the authenticated sender of a frame
type Origin struct {
	UserID uuid.UUID
	Conn   Replier
}

// Router classifies inbound frames and runs the matching workflow
type Router struct {
	logger       *zap.Logger
	dir          Directory
	sessions     Sessions
	mailbox      Mailbox
	metrics      *metrics.Metrics
	tracer       *trace.Builder
	validate     *validator.Validate
	relayOffline bool
	now          func() time.Time
}

// New creates a router
func New(logger *zap.Logger, dir Directory, sessions Sessions, mailbox Mailbox, cfg config.DeliveryConfig, m *metrics.Metrics) *Router {
	return &Router{
		logger:       logger.Named("realtime.delivery"),
		dir:          dir,
		sessions:     sessions,
		mailbox:      mailbox,
		metrics:      m,
		tracer:       trace.Tracer(cnst.TraceDelivery),
		validate:     validator.New(),
		relayOffline: cfg.RelayOffline,
		now:          time.Now,
	}
}

// Dispatch handles one inbound frame from origin. The returned error only
// categorizes why a workflow was abandoned; it never means the connection is unusable.
func (r *Router) Dispatch(ctx context.Context, origin Origin, raw []byte) (err error) {
	start := time.Now()
	msgType := "invalid"
	defer func() {
		r.metrics.FrameDone(msgType, errorReason(err), start)
	}()

	if !gjson.ValidBytes(raw) {
		return cnst.ErrMalformedFrame
	}
	typeField := gjson.GetBytes(raw, "type")
	if typeField.Type != gjson.String || typeField.Str == "" {
		return fmt.Errorf("%w: type", cnst.ErrInvalidField)
	}
	msgType = typeField.Str

	scope := r.tracer.Start(ctx, cnst.SpanDispatchPrefix+msgType).
		WithAttrs(
			attribute.String(cnst.AttrUserID, origin.UserID.String()),
			attribute.String(cnst.AttrMessageType, msgType),
		)
	defer func() {
		scope.Fail(err, errorReason(err))
		scope.End()
	}()
	ctx = scope.Ctx

	var frame dto.Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return fmt.Errorf("%w: %v", cnst.ErrMalformedFrame, err)
	}

	switch cnst.MessageType(msgType) {
	case cnst.TypeChatMessage:
		err = r.handleChatMessage(ctx, scope, origin, raw, &frame)
	case cnst.TypeContactRequest:
		err = r.handleContactRequest(ctx, origin, &frame)
	case cnst.TypeContactAccept:
		err = r.handleContactAccept(ctx, origin, &frame)
	case cnst.TypeMessageAck:
		err = r.handleMessageAck(ctx, origin, &frame)
	case cnst.TypePing:
		r.handlePing(ctx, origin)
	default:
		r.logger.Warn("unknown message type",
			zap.String("user_id", origin.UserID.String()),
			zap.String("type", msgType))
		err = fmt.Errorf("%w: %s", cnst.ErrUnknownMessageType, msgType)
	}
	return err
}

// deliver pushes live or falls back to the mailbox and reports whether it went live
func (r *Router) deliver(ctx context.Context, userID uuid.UUID, msg dto.Outbound) bool {
	if r.sessions.Send(ctx, userID, msg) {
		return true
	}
	r.mailbox.Enqueue(userID, msg)
	return false
}

// relay pushes a notification that has no offline fallback unless relay_offline is set
func (r *Router) relay(ctx context.Context, userID uuid.UUID, msg dto.Outbound) {
	if r.sessions.Send(ctx, userID, msg) {
		return
	}
	if r.relayOffline {
		r.mailbox.Enqueue(userID, msg)
		return
	}
	r.logger.Debug("relay target offline, dropped",
		zap.String("user_id", userID.String()),
		zap.String("type", msg.MessageType().String()))
}

func (r *Router) timestamp() string {
	return dto.FormatTimestamp(r.now())
}

// parseID checks that value is a canonical uuid and parses it
func (r *Router) parseID(name, value string) (uuid.UUID, error) {
	if err := r.validate.Var(value, "required,uuid"); err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s", cnst.ErrInvalidField, name)
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s", cnst.ErrInvalidField, name)
	}
	return id, nil
}

// errorReason maps a dispatch error to a short label for metrics and spans
func errorReason(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, cnst.ErrMalformedFrame):
		return "malformed"
	case errors.Is(err, cnst.ErrInvalidField):
		return "invalid_field"
	case errors.Is(err, cnst.ErrUnknownMessageType):
		return "unknown_type"
	case errors.Is(err, cnst.ErrNotChatMember):
		return "not_member"
	case errors.Is(err, cnst.ErrUserNotFound), errors.Is(err, cnst.ErrRecipientNotFound):
		return "not_found"
	case errors.Is(err, cnst.ErrSelfContactRequest), errors.Is(err, cnst.ErrContactsAlready),
		errors.Is(err, cnst.ErrContactRequestStore):
		return "rejected"
	default:
		return "internal"
	}
}
