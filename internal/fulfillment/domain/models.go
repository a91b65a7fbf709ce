// Package domain defines the fulfillment lifecycle operations and
// their result shapes.
package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	marketplacedomain "github.com/smallbiznis/marketfill/internal/marketplace/domain"
)

var (
	// ErrInvalidTransition means the requested lifecycle action is not
	// allowed from the subscription's current status.
	ErrInvalidTransition = errors.New("fulfillment: invalid status transition")

	// ErrOperationPendingUpstream means an asynchronous operation is
	// still in progress upstream and a new change cannot start.
	ErrOperationPendingUpstream = errors.New("fulfillment: an operation is still pending upstream")
)

// OperationError is one structured failure inside an OperationResult.
type OperationError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// OperationResult is the outcome of one lifecycle action: a success
// flag and, on failure, the errors that explain it.
type OperationResult struct {
	Succeeded bool             `json:"succeeded"`
	Errors    []OperationError `json:"errors,omitempty"`
}

// SuccessResult is the zero-error successful outcome.
func SuccessResult() OperationResult {
	return OperationResult{Succeeded: true}
}

// FailureResult builds a failed outcome carrying one error.
func FailureResult(code, description string) OperationResult {
	return OperationResult{
		Succeeded: false,
		Errors:    []OperationError{{Code: code, Description: description}},
	}
}

// OperationFailure names both identifiers when an upstream operation
// finishes in a failed or conflicted state.
func OperationFailure(status marketplacedomain.OperationStatus, subscriptionID, operationID uuid.UUID) OperationResult {
	return FailureResult(string(status),
		fmt.Sprintf("operation %s on subscription %s finished as %s", operationID, subscriptionID, status))
}

// ProvisionResult describes the landing flow outcome: the activated
// subscription and, when the plan had to be moved to the base plan
// afterwards, the operation opened for that second step.
type ProvisionResult struct {
	SubscriptionID        uuid.UUID  `json:"subscriptionId"`
	SubscriptionName      string     `json:"subscriptionName"`
	PlanID                string     `json:"planId"`
	Activation            OperationResult `json:"activation"`
	PlanChangeOperationID *uuid.UUID `json:"planChangeOperationId,omitempty"`
}

// SubscriptionSummary is one dashboard row: the upstream subscription
// plus whether this system has operations still unresolved for it.
type SubscriptionSummary struct {
	marketplacedomain.Subscription
	PendingOperations bool `json:"pendingOperations"`
}
