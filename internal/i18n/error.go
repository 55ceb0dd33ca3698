package i18n

import (
	"errors"
	"fmt"
	"maps"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ErrorCode represents an HTTP status code
type ErrorCode int

// Standard HTTP status codes
const (
	ErrorBadRequest         ErrorCode = http.StatusBadRequest
	ErrorUnauthorized       ErrorCode = http.StatusUnauthorized
	ErrorForbidden          ErrorCode = http.StatusForbidden
	ErrorNotFound           ErrorCode = http.StatusNotFound
	ErrorConflict           ErrorCode = http.StatusConflict
	ErrorInternalServer     ErrorCode = http.StatusInternalServerError
	ErrorServiceUnavailable ErrorCode = http.StatusServiceUnavailable
)

// I18nError represents an internationalized error
type I18nError struct {
	// MessageID is the key used for translation lookup
	MessageID string
	// DefaultMessage is used when translation is not available
	DefaultMessage string
	// Data holds template parameters for the message
	Data map[string]any
}

// New creates a new I18nError with the given message ID
func New(messageID string) *I18nError {
	return NewWithMessage(messageID, messageID)
}

// NewWithMessage creates a new I18nError with a message ID and default message
func NewWithMessage(messageID, defaultMessage string) *I18nError {
	return &I18nError{
		MessageID:      messageID,
		DefaultMessage: defaultMessage,
		Data:           make(map[string]any),
	}
}

// WithData adds template data to the error
func (e *I18nError) WithData(data map[string]any) *I18nError {
	maps.Copy(e.Data, data)
	return e
}

// WithParam adds a single template parameter to the error
func (e *I18nError) WithParam(key string, value any) *I18nError {
	e.Data[key] = value
	return e
}

// Error renders the message in the default language
func (e *I18nError) Error() string {
	if t := GetTranslator(); t != nil {
		if translated := t.Translate(e.MessageID, currentDefault(), e.Data); translated != e.MessageID {
			return translated
		}
	}

	msg := e.DefaultMessage
	for k, v := range e.Data {
		msg = strings.ReplaceAll(msg, fmt.Sprintf("{{.%s}}", k), fmt.Sprintf("%v", v))
	}
	return msg
}

// TranslateByContext translates the error based on the context's language preference
func (e *I18nError) TranslateByContext(c *gin.Context) string {
	return e.translate(contextLang(c))
}

// TranslateByRequest translates the error based on the HTTP request's language preference
func (e *I18nError) TranslateByRequest(r *http.Request) string {
	return e.translate(LanguageFromRequest(r))
}

func (e *I18nError) translate(lang string) string {
	if t := GetTranslator(); t != nil {
		if translated := t.Translate(e.MessageID, lang, e.Data); translated != e.MessageID {
			return translated
		}
	}
	return e.Error()
}

func (e *I18nError) clone() *I18nError {
	return &I18nError{
		MessageID:      e.MessageID,
		DefaultMessage: e.DefaultMessage,
		Data:           maps.Clone(e.Data),
	}
}

// ErrorWithCode is an error with a code that can be used in API responses
type ErrorWithCode struct {
	*I18nError
	Code ErrorCode
}

// NewErrorWithCode creates a new error with a code
func NewErrorWithCode(messageID string, code ErrorCode) *ErrorWithCode {
	return &ErrorWithCode{
		I18nError: New(messageID),
		Code:      code,
	}
}

// WithParam returns a copy of the error carrying an extra template parameter.
// Package-level errors are shared, so they are never modified in place.
func (e *ErrorWithCode) WithParam(key string, value any) *ErrorWithCode {
	c := &ErrorWithCode{I18nError: e.I18nError.clone(), Code: e.Code}
	c.Data[key] = value
	return c
}

// WithHttpCode returns a copy of the error with another status code
func (e *ErrorWithCode) WithHttpCode(code ErrorCode) *ErrorWithCode {
	return &ErrorWithCode{I18nError: e.I18nError.clone(), Code: code}
}

// GetCode returns the error code
func (e *ErrorWithCode) GetCode() ErrorCode {
	return e.Code
}

// IsI18nError checks if an error is an I18nError
func IsI18nError(err error) bool {
	return AsI18nError(err) != nil
}

// AsI18nError converts an error to an I18nError if possible, or returns nil
func AsI18nError(err error) *I18nError {
	if err == nil {
		return nil
	}
	var errWithCode *ErrorWithCode
	if errors.As(err, &errWithCode) {
		return errWithCode.I18nError
	}
	var i18nErr *I18nError
	if errors.As(err, &i18nErr) {
		return i18nErr
	}
	return nil
}

// TranslateError translates an error using the context's language preference
func TranslateError(c *gin.Context, err error) string {
	if err == nil {
		return ""
	}
	if e := AsI18nError(err); e != nil {
		return e.TranslateByContext(c)
	}
	return err.Error()
}
