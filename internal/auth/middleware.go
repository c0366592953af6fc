package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"insightsnap/internal/models"
)

const (
	sessionContextKey   = "auth_session"
	authTokenContextKey = "auth_token"
)

// Middleware validates the session token and stores the session in the context.
func (s *Service) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := s.extractToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session required"})
			return
		}
		se, err := s.ValidateToken(c.Request.Context(), token)
		if err != nil {
			status := http.StatusUnauthorized
			if !errors.Is(err, ErrInvalidToken) && !errors.Is(err, ErrTokenExpired) {
				status = http.StatusInternalServerError
			}
			c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
			return
		}
		extended, err := s.Touch(c.Request.Context(), se)
		if err != nil {
			s.logger.Warn("touch session failed", zap.Error(err))
		}
		if extended && !s.bearerAuth(c) {
			s.SetCookies(c, se)
		}
		c.Set(sessionContextKey, se)
		c.Set(authTokenContextKey, token)
		c.Next()
	}
}

// SessionFromContext retrieves the session the middleware validated.
func SessionFromContext(c *gin.Context) (*models.Session, bool) {
	val, ok := c.Get(sessionContextKey)
	if !ok {
		return nil, false
	}
	se, ok := val.(*models.Session)
	return se, ok
}

// AuthTokenFromContext retrieves the session token captured by the middleware.
func AuthTokenFromContext(c *gin.Context) (string, bool) {
	val, ok := c.Get(authTokenContextKey)
	if !ok {
		return "", false
	}
	token, ok := val.(string)
	return token, ok
}

func (s *Service) extractToken(c *gin.Context) string {
	if s.bearerAuth(c) {
		return strings.TrimSpace(c.GetHeader(s.headerName)[7:])
	}
	if token, err := c.Cookie(s.cookieName); err == nil && token != "" {
		return token
	}
	return ""
}
