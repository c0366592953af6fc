package auth

import (
	"crypto/hmac"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// CSRFMiddleware requires cookie-authenticated writes to echo the session's
// CSRF token in the header. It must run after Middleware.
func (s *Service) CSRFMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requiresCSRFCheck(c.Request.Method) || s.bearerAuth(c) {
			c.Next()
			return
		}
		token, _ := AuthTokenFromContext(c)
		if !s.validCSRF(token, c.GetHeader(s.csrfHeaderName)) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid csrf token"})
			return
		}
		c.Next()
	}
}

func (s *Service) validCSRF(sessionToken, got string) bool {
	if sessionToken == "" || got == "" {
		return false
	}
	return hmac.Equal([]byte(got), []byte(s.NewCSRFToken(sessionToken)))
}

func (s *Service) bearerAuth(c *gin.Context) bool {
	return strings.HasPrefix(strings.ToLower(c.GetHeader(s.headerName)), "bearer ")
}

func requiresCSRFCheck(method string) bool {
	switch strings.ToUpper(method) {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	default:
		return true
	}
}
