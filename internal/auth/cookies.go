package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"insightsnap/internal/models"
)

// SetCookies writes the session cookie and its CSRF cookie, both expiring
// with the session.
func (s *Service) SetCookies(c *gin.Context, se *models.Session) {
	maxAge := int(se.ExpiresAt.Sub(s.now()).Seconds())
	if maxAge <= 0 {
		s.ClearCookies(c)
		return
	}
	secure := gin.Mode() == gin.ReleaseMode
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     s.cookieName,
		Value:    se.Token,
		MaxAge:   maxAge,
		Path:     "/",
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	// readable by the page so it can echo the token in the header
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     s.csrfCookieName,
		Value:    s.NewCSRFToken(se.Token),
		MaxAge:   maxAge,
		Path:     "/",
		Secure:   secure,
		HttpOnly: false,
		SameSite: http.SameSiteStrictMode,
	})
}

// ClearCookies expires both session cookies in the browser.
func (s *Service) ClearCookies(c *gin.Context) {
	for _, name := range []string{s.cookieName, s.csrfCookieName} {
		http.SetCookie(c.Writer, &http.Cookie{
			Name:     name,
			Value:    "",
			MaxAge:   -1,
			Path:     "/",
			Secure:   gin.Mode() == gin.ReleaseMode,
			HttpOnly: name == s.cookieName,
			SameSite: http.SameSiteStrictMode,
		})
	}
}
