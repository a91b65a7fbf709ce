package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func (s *Server) ListSubscriptions(c *gin.Context) {
	summaries, err := s.fulfillmentSvc.ListSubscriptions(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": summaries})
}

func (s *Server) GetSubscription(c *gin.Context) {
	id, err := subscriptionID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	sub, err := s.client.GetSubscription(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": sub})
}

func (s *Server) ListAvailablePlans(c *gin.Context) {
	id, err := subscriptionID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	plans, err := s.client.ListAvailablePlans(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": plans})
}

func (s *Server) UpdatePlan(c *gin.Context) {
	id, err := subscriptionID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req struct {
		PlanID string `json:"planId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.PlanID) == "" {
		AbortWithError(c, newValidationError("planId", "missing_plan", "planId is required"))
		return
	}

	result, err := s.fulfillmentSvc.ChangePlan(c.Request.Context(), id, strings.TrimSpace(req.PlanID))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) UpdateQuantity(c *gin.Context) {
	id, err := subscriptionID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Quantity <= 0 {
		AbortWithError(c, newValidationError("quantity", "invalid_quantity", "quantity must be positive"))
		return
	}

	result, err := s.fulfillmentSvc.ChangeQuantity(c.Request.Context(), id, req.Quantity)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) Unsubscribe(c *gin.Context) {
	id, err := subscriptionID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	result, err := s.fulfillmentSvc.Cancel(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

// ListOperations pairs the local ledger with the upstream's view so an
// operator can spot operations the upstream no longer reports.
func (s *Server) ListOperations(c *gin.Context) {
	id, err := subscriptionID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	views, err := s.ledgerSvc.CrossReference(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": views})
}

func (s *Server) GetOperationVerdict(c *gin.Context) {
	id, err := subscriptionID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	operationID, err := pathUUID(c, "operationId")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	result, err := s.fulfillmentSvc.EvaluateOperation(c.Request.Context(), id, operationID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

func subscriptionID(c *gin.Context) (uuid.UUID, error) {
	return pathUUID(c, "id")
}

func pathUUID(c *gin.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, newValidationError(name, "invalid_uuid", name+" must be a UUID")
	}
	return id, nil
}
