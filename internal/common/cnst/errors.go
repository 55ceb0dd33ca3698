package cnst

import "errors"

// Admission errors terminate a connection attempt.
var (
	ErrDeviceIDRequired     = errors.New("device id required")
	ErrAuthenticationFailed = errors.New("authentication failed")
)

// Malformed-input errors abort a single workflow; the connection stays open.
var (
	ErrMalformedFrame      = errors.New("malformed frame")
	ErrInvalidField        = errors.New("invalid or missing field")
	ErrUnknownMessageType  = errors.New("unknown message type")
	ErrSelfContactRequest  = errors.New("cannot send contact request to yourself")
	ErrContactsAlready     = errors.New("users are already contacts")
	ErrRecipientNotFound   = errors.New("recipient not found")
	ErrContactRequestStore = errors.New("contact request rejected")
)

// Collaborator lookup misses.
var (
	ErrUserNotFound  = errors.New("user not found")
	ErrNotChatMember = errors.New("sender is not a chat member")
)
