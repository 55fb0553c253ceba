package server

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/rentpay/pkg/log"
	"go.uber.org/zap"
)

const (
	adminKeyQuery  = "key"
	adminKeyHeader = "X-Admin-Key"
)

// AdminKeyRequired guards internal endpoints with the shared ADMIN_KEY, read
// from ?key= or the X-Admin-Key header. Without a configured key every
// request is rejected.
func (s *Server) AdminKeyRequired() gin.HandlerFunc {
	return s.adminKey(false)
}

// AdminKeyIfConfigured checks the key only when ADMIN_KEY is set.
func (s *Server) AdminKeyIfConfigured() gin.HandlerFunc {
	return s.adminKey(true)
}

func (s *Server) adminKey(openWhenUnset bool) gin.HandlerFunc {
	expected := strings.TrimSpace(s.cfg.AdminKey)
	return func(c *gin.Context) {
		if expected == "" {
			if openWhenUnset {
				c.Next()
				return
			}
			log.L(c.Request.Context()).Warn("admin endpoint called without ADMIN_KEY configured",
				zap.String("route", c.FullPath()),
			)
			AbortWithError(c, ErrUnauthorized)
			return
		}

		provided := strings.TrimSpace(c.Query(adminKeyQuery))
		if provided == "" {
			provided = strings.TrimSpace(c.GetHeader(adminKeyHeader))
		}
		if subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) != 1 {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		c.Next()
	}
}
