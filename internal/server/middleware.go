package server

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// Identity arrives from the authenticating reverse proxy as forwarded
// claim headers. The proxy terminates the actual sign-in; this service
// only reads the claims it forwards.
const (
	HeaderUserEmail = "X-Forwarded-Email"
	HeaderUserName  = "X-Forwarded-User"

	contextEmailKey = "user_email"
	contextNameKey  = "user_name"
)

func (s *Server) IdentityContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		email := strings.ToLower(strings.TrimSpace(c.GetHeader(HeaderUserEmail)))
		if email == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		c.Set(contextEmailKey, email)
		c.Set(contextNameKey, strings.TrimSpace(c.GetHeader(HeaderUserName)))
		c.Next()
	}
}

// AdminRequired admits callers whose email matches the configured
// admin identity exactly, or whose domain matches when the identity is
// configured as a bare domain.
func (s *Server) AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		email := c.GetString(contextEmailKey)
		if email == "" || s.cfg.AdminIdentity == "" {
			AbortWithError(c, ErrForbidden)
			return
		}

		if !identityMatches(email, s.cfg.AdminIdentity) {
			AbortWithError(c, ErrForbidden)
			return
		}
		c.Next()
	}
}

func identityMatches(email, identity string) bool {
	if strings.Contains(identity, "@") {
		return email == identity
	}
	_, domain, ok := strings.Cut(email, "@")
	return ok && domain == identity
}
