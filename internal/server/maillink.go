package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	marketplacedomain "github.com/smallbiznis/marketfill/internal/marketplace/domain"
)

// Mail-link actions let an operator complete a pending step by
// following a link from a notification mail. They are GET requests so
// a mail client can open them, guarded by the admin identity check.
// Activation and plan updates carry their parameters in the query
// string for the same reason.

func (s *Server) ActivateFromMail(c *gin.Context) {
	id, err := subscriptionID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	planID := strings.TrimSpace(c.Query("planId"))
	if planID == "" {
		AbortWithError(c, newValidationError("planId", "missing_plan", "planId is required"))
		return
	}

	var quantity *int
	if raw := c.Query("quantity"); raw != "" {
		q, err := strconv.Atoi(raw)
		if err != nil || q <= 0 {
			AbortWithError(c, newValidationError("quantity", "invalid_quantity", "quantity must be positive"))
			return
		}
		quantity = &q
	}

	result, err := s.fulfillmentSvc.Activate(c.Request.Context(), id, planID, quantity)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) UpdatePlanFromMail(c *gin.Context) {
	id, err := subscriptionID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	planID := strings.TrimSpace(c.Query("planId"))
	if planID == "" {
		AbortWithError(c, newValidationError("planId", "missing_plan", "planId is required"))
		return
	}

	result, err := s.fulfillmentSvc.ChangePlan(c.Request.Context(), id, planID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) ConfirmOperation(c *gin.Context) {
	s.acknowledgeOperation(c, marketplacedomain.OperationUpdateSuccess)
}

func (s *Server) DeclineOperation(c *gin.Context) {
	s.acknowledgeOperation(c, marketplacedomain.OperationUpdateFailure)
}

func (s *Server) acknowledgeOperation(c *gin.Context, status marketplacedomain.OperationUpdateStatus) {
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

	result, err := s.fulfillmentSvc.AcknowledgeOperation(c.Request.Context(), id, operationID, status)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}
