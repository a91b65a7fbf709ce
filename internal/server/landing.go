package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ResolveToken previews the subscription a purchase token identifies
// without changing any state. The token arrives as a query parameter
// because the marketplace appends it to the landing redirect.
func (s *Server) ResolveToken(c *gin.Context) {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		AbortWithError(c, newValidationError("token", "missing_token", "purchase token is required"))
		return
	}

	resolved, err := s.fulfillmentSvc.Resolve(c.Request.Context(), token)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resolved})
}

// ProvisionSubscription resolves the token and activates the
// subscription, applying the configured landing flow.
func (s *Server) ProvisionSubscription(c *gin.Context) {
	var req struct {
		Token string `json:"token"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("token", "missing_token", "purchase token is required"))
		return
	}
	token := strings.TrimSpace(req.Token)
	if token == "" {
		AbortWithError(c, newValidationError("token", "missing_token", "purchase token is required"))
		return
	}

	result, err := s.fulfillmentSvc.Provision(c.Request.Context(), token)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}
