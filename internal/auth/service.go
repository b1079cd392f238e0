package auth

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const DefaultCookieMaxAge = 7 * 24 * time.Hour

// Service issues the anonymous workspace cookie and guards state-changing
// requests with a double-submit CSRF token.
type Service struct {
	cookieName     string
	csrfCookieName string
	csrfHeaderName string
	csrfFormField  string
	maxAge         time.Duration
}

// NewService constructs an auth service whose cookies live for maxAge.
func NewService(maxAge time.Duration) *Service {
	if maxAge <= 0 {
		maxAge = DefaultCookieMaxAge
	}
	return &Service{
		cookieName:     "paperlens_ws",
		csrfCookieName: "csrf_token",
		csrfHeaderName: "X-CSRF-Token",
		csrfFormField:  "csrf_token",
		maxAge:         maxAge,
	}
}

// NewCSRFToken returns a random token used for CSRF protection.
func (s *Service) NewCSRFToken() (string, error) {
	return generateToken()
}

// CookieName is the name of the workspace cookie.
func (s *Service) CookieName() string { return s.cookieName }

// CSRFHeaderName is the header scripts send the CSRF token in.
func (s *Service) CSRFHeaderName() string { return s.csrfHeaderName }

func (s *Service) setCookie(c *gin.Context, name, value string, httpOnly bool) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(s.maxAge.Seconds()),
		HttpOnly: httpOnly,
		Secure:   gin.Mode() == gin.ReleaseMode,
		SameSite: http.SameSiteLaxMode,
	})
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
