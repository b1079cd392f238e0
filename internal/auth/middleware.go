package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	workspaceIDContextKey = "workspace_id"
	csrfTokenContextKey   = "csrf_token"
)

// Middleware assigns every browser a workspace id and a CSRF token, minting
// cookies for new visitors, and stores both in the context.
func (s *Service) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(s.cookieName)
		if err != nil || uuid.Validate(id) != nil {
			id = uuid.NewString()
			s.setCookie(c, s.cookieName, id, true)
		}
		token, err := c.Cookie(s.csrfCookieName)
		if err != nil || len(token) != 64 {
			token, err = s.NewCSRFToken()
			if err != nil {
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "could not issue csrf token"})
				return
			}
			s.setCookie(c, s.csrfCookieName, token, false)
			// A fresh token cannot match anything the browser submitted.
			c.Set(freshTokenContextKey, true)
		}
		c.Set(workspaceIDContextKey, id)
		c.Set(csrfTokenContextKey, token)
		c.Next()
	}
}

// WorkspaceIDFromContext retrieves the workspace id set by the middleware.
func WorkspaceIDFromContext(c *gin.Context) (string, bool) {
	val, ok := c.Get(workspaceIDContextKey)
	if !ok {
		return "", false
	}
	id, ok := val.(string)
	return id, ok && id != ""
}

// CSRFTokenFromContext retrieves the CSRF token to embed in rendered forms.
func CSRFTokenFromContext(c *gin.Context) string {
	return c.GetString(csrfTokenContextKey)
}
