package middleware

import (
	"github.com/amoylab/umbra/internal/common/cnst"
	"github.com/amoylab/umbra/internal/i18n"

	"github.com/gin-gonic/gin"
)

// Language stores the response language picked from the request headers
func Language() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(cnst.XLang, i18n.LanguageFromRequest(c.Request))
		c.Next()
	}
}
