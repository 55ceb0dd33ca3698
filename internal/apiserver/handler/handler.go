package handler

import (
	"github.com/amoylab/umbra/internal/apiserver/middleware"
	"github.com/amoylab/umbra/internal/i18n"
	"github.com/amoylab/umbra/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// badRequest answers 400 with a reason
func badRequest(c *gin.Context, reason string) {
	i18n.RespondWithError(c, i18n.ErrBadRequest.WithParam("Reason", reason))
}

// internalError answers 500 with a reason
func internalError(c *gin.Context, reason string) {
	i18n.RespondWithError(c, i18n.ErrInternalServer.WithParam("Reason", reason))
}

// uuidParam parses a path parameter, answering 400 when it is not a uuid
func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

func caller(c *gin.Context) *store.User {
	return middleware.Caller(c)
}
