package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/smallbiznis/marketfill/internal/webhook"
)

// ReceiveWebhook accepts marketplace notifications. The endpoint
// always acknowledges with 200: the marketplace retries on anything
// else, and a payload we cannot use is logged and dropped rather than
// redelivered forever. The only exception is flood protection, which
// answers 429 before the payload is read.
func (s *Server) ReceiveWebhook(c *gin.Context) {
	if s.limiter.Enabled() {
		res, err := s.limiter.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			s.log.Warn("webhook rate limiter unavailable, allowing request", zap.Error(err))
		} else if !res.Allowed {
			c.Header("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds())+1))
			c.Status(http.StatusTooManyRequests)
			return
		}
	}

	var payload webhook.Payload
	if err := c.ShouldBindJSON(&payload); err != nil {
		s.log.Warn("webhook payload did not parse", zap.Error(err))
		c.Status(http.StatusOK)
		return
	}

	if err := s.processor.Process(c.Request.Context(), payload); err != nil {
		s.log.Warn("webhook payload not processed",
			zap.String("subscription_id", payload.SubscriptionID.String()),
			zap.String("operation_id", payload.OperationID.String()),
			zap.Error(err),
		)
	}

	c.Status(http.StatusOK)
}
