package cnst

// WebSocket close codes a client can branch on. The 4000-4999 range is
// reserved for private use by RFC 6455.
const (
	CloseAuthFailed       = 4001
	CloseSuperseded       = 4002
	CloseDeviceIDRequired = 4003

	// CloseSendFailed is sent when a push to the client fails and the session is dropped
	CloseSendFailed = 1011
)

// Close reasons sent alongside the close codes above.
const (
	ReasonAuthFailed       = "Authentication failed"
	ReasonSuperseded       = "Superseded by new connection"
	ReasonDeviceIDRequired = "Device ID required"
	ReasonServerShutdown   = "Server shutting down"
	ReasonSendFailed       = "Delivery failed"
)

// MessageType is the `type` tag carried by every frame.
type MessageType string

const (
	TypeChatMessage         MessageType = "chat_message"
	TypeContactRequest      MessageType = "contact_request"
	TypeContactRequestSent  MessageType = "contact_request_sent"
	TypeContactRequestError MessageType = "contact_request_error"
	TypeContactAccept       MessageType = "contact_accept"
	TypeMessageAck          MessageType = "message_ack"
	TypePing                MessageType = "ping"
	TypePong                MessageType = "pong"
)

func (t MessageType) String() string {
	return string(t)
}

// Contact request statuses
const (
	ContactRequestPending  = "pending"
	ContactRequestAccepted = "accepted"
	ContactRequestDeclined = "declined"
)
