package i18n

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// RespondWithError sends an appropriate HTTP error response for the given error
func RespondWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	statusCode := http.StatusInternalServerError
	var errWithCode *ErrorWithCode
	if errors.As(err, &errWithCode) {
		statusCode = int(errWithCode.GetCode())
	}

	c.AbortWithStatusJSON(statusCode, gin.H{"error": TranslateError(c, err)})
}

// RespondWithSuccess sends a success HTTP response with an internationalized message
func RespondWithSuccess(c *gin.Context, statusCode int, msgID string, data map[string]any, payload any) {
	response := gin.H{
		"message": TranslateMessage(c, msgID, data),
	}
	for k, v := range data {
		response[k] = v
	}

	switch p := payload.(type) {
	case nil:
	case map[string]any:
		for k, v := range p {
			response[k] = v
		}
	case gin.H:
		for k, v := range p {
			response[k] = v
		}
	default:
		response["data"] = payload
	}

	c.JSON(statusCode, response)
}

// SuccessResponse represents a response with success message
type SuccessResponse struct {
	StatusCode int
	MsgID      string
	Data       map[string]any
	Payload    any
}

// With adds a key-value pair to the response data
func (r *SuccessResponse) With(key string, value any) *SuccessResponse {
	if r.Data == nil {
		r.Data = make(map[string]any)
	}
	r.Data[key] = value
	return r
}

// WithPayload sets the payload for the response
func (r *SuccessResponse) WithPayload(payload any) *SuccessResponse {
	r.Payload = payload
	return r
}

// Send sends the response to the client
func (r *SuccessResponse) Send(c *gin.Context) {
	RespondWithSuccess(c, r.StatusCode, r.MsgID, r.Data, r.Payload)
}

// Success creates a new success response with status code 200
func Success(msgID string) *SuccessResponse {
	return &SuccessResponse{
		StatusCode: http.StatusOK,
		MsgID:      msgID,
	}
}

// Created creates a new success response with status code 201
func Created(msgID string) *SuccessResponse {
	return &SuccessResponse{
		StatusCode: http.StatusCreated,
		MsgID:      msgID,
	}
}
