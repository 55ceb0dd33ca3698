package cnst

// Tracer names used across the services
const (
	// TraceDelivery is the tracer name for the delivery router
	TraceDelivery = "umbra/delivery"
)

// Common span names and prefixes
const (
	// SpanDispatchPrefix prefixes spans for handling inbound frames, e.g. "ws.dispatch.chat_message"
	SpanDispatchPrefix = "ws.dispatch."
)

// Common attribute keys
const (
	AttrUserID         = "umbra.user_id"
	AttrChatID         = "umbra.chat_id"
	AttrMessageType    = "umbra.message_type"
	AttrRecipientCount = "umbra.recipient_count"
	AttrErrorReason    = "error.reason"
)
