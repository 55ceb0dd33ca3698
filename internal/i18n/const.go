package i18n

// Common errors
var (
	ErrNotFound       = NewErrorWithCode("ErrorResourceNotFound", ErrorNotFound)
	ErrUnauthorized   = NewErrorWithCode("ErrorUnauthorized", ErrorUnauthorized)
	ErrForbidden      = NewErrorWithCode("ErrorForbidden", ErrorForbidden)
	ErrBadRequest     = NewErrorWithCode("ErrorBadRequest", ErrorBadRequest)
	ErrInternalServer = NewErrorWithCode("ErrorInternalServer", ErrorInternalServer)
)

// Device and user errors
var (
	ErrorDeviceIDRequired    = NewErrorWithCode("ErrorDeviceIDRequired", ErrorUnauthorized)
	ErrorDeviceNotRegistered = NewErrorWithCode("ErrorDeviceNotRegistered", ErrorUnauthorized)
	ErrorDeviceTaken         = NewErrorWithCode("ErrorDeviceTaken", ErrorConflict)
	ErrorUserNotFound        = NewErrorWithCode("ErrorUserNotFound", ErrorNotFound)
)

// Chat errors
var (
	ErrorChatNotFound      = NewErrorWithCode("ErrorChatNotFound", ErrorNotFound)
	ErrorNotChatMember     = NewErrorWithCode("ErrorNotChatMember", ErrorForbidden)
	ErrorAlreadyChatMember = NewErrorWithCode("ErrorAlreadyChatMember", ErrorConflict)
)

// Contact errors
var (
	ErrorContactRequestNotFound  = NewErrorWithCode("ErrorContactRequestNotFound", ErrorNotFound)
	ErrorSelfContactRequest      = NewErrorWithCode("ErrorSelfContactRequest", ErrorBadRequest)
	ErrorAlreadyContacts         = NewErrorWithCode("ErrorAlreadyContacts", ErrorConflict)
	ErrorDuplicateContactRequest = NewErrorWithCode("ErrorDuplicateContactRequest", ErrorConflict)
	ErrorInvalidRequestStatus    = NewErrorWithCode("ErrorInvalidRequestStatus", ErrorBadRequest)
	ErrorContactNotFound         = NewErrorWithCode("ErrorContactNotFound", ErrorNotFound)
)

// User success messages
const (
	SuccessUserRegistered = "SuccessUserRegistered"
	SuccessUserInfo       = "SuccessUserInfo"
	SuccessUserUpdated    = "SuccessUserUpdated"
	SuccessUserSearch     = "SuccessUserSearch"
)

// Chat success messages
const (
	SuccessChatCreated = "SuccessChatCreated"
	SuccessChatList    = "SuccessChatList"
	SuccessChatMembers = "SuccessChatMembers"
	SuccessChatInvited = "SuccessChatInvited"
	SuccessChatLeft    = "SuccessChatLeft"
	SuccessChatsLeft   = "SuccessChatsLeft"
)

// Contact success messages
const (
	SuccessContactRequestSent      = "SuccessContactRequestSent"
	SuccessContactRequestList      = "SuccessContactRequestList"
	SuccessContactRequestResponded = "SuccessContactRequestResponded"
	SuccessContactList             = "SuccessContactList"
	SuccessContactRemoved          = "SuccessContactRemoved"
)

// Service status messages
const (
	SuccessServiceHealthy = "SuccessServiceHealthy"
)
