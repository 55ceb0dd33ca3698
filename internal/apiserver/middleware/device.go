package middleware

import (
	"context"
	"errors"

	"github.com/amoylab/umbra/internal/common/cnst"
	"github.com/amoylab/umbra/internal/i18n"
	"github.com/amoylab/umbra/internal/store"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const ctxKeyCaller = "caller"

// UserFinder resolves the account registered for a device
type UserFinder interface {
	FindUserByDevice(ctx context.Context, deviceID string) (*store.User, error)
}

// DeviceAuth resolves the X-Device-ID header to the caller's account
func DeviceAuth(logger *zap.Logger, finder UserFinder) gin.HandlerFunc {
	return func(c *gin.Context) {
		deviceID := c.GetHeader(cnst.XDeviceID)
		if deviceID == "" {
			i18n.RespondWithError(c, i18n.ErrorDeviceIDRequired)
			return
		}

		user, err := finder.FindUserByDevice(c.Request.Context(), deviceID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				i18n.RespondWithError(c, i18n.ErrorDeviceNotRegistered)
				return
			}
			logger.Error("failed to resolve device", zap.Error(err))
			i18n.RespondWithError(c, i18n.ErrInternalServer.WithParam("Reason", "device lookup failed"))
			return
		}

		c.Set(ctxKeyCaller, user)
		c.Next()
	}
}

// Caller returns the account set by DeviceAuth
func Caller(c *gin.Context) *store.User {
	if v, ok := c.Get(ctxKeyCaller); ok {
		if u, ok := v.(*store.User); ok {
			return u
		}
	}
	return nil
}
