package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrSubscriptionNotFound means the upstream has no subscription for
	// the given identifier or purchase token.
	ErrSubscriptionNotFound = errors.New("marketplace: subscription not found")

	// ErrOperationNotFound means the upstream has no operation with the
	// given identifier under the given subscription.
	ErrOperationNotFound = errors.New("marketplace: operation not found")

	// ErrMalformedOperationLocation means an operation-location value
	// returned by the upstream could not be parsed. This is fatal for
	// the call that received it and must be surfaced, never guessed
	// around.
	ErrMalformedOperationLocation = errors.New("marketplace: malformed operation location")
)

// OperationLocationError describes exactly why an operation-location
// value was rejected. It wraps ErrMalformedOperationLocation.
type OperationLocationError struct {
	Location string
	Reason   string
}

func (e *OperationLocationError) Error() string {
	return fmt.Sprintf("marketplace: malformed operation location %q: %s", e.Location, e.Reason)
}

func (e *OperationLocationError) Unwrap() error { return ErrMalformedOperationLocation }

// Client is the upstream fulfillment API. Every call carries fresh
// request and correlation identifiers unless the context supplies a
// request id; transport failures return errors, upstream rejections
// return a RequestResult with Success false.
type Client interface {
	// ResolveSubscription exchanges an opaque purchase token for the
	// subscription it identifies.
	ResolveSubscription(ctx context.Context, purchaseToken string) (*ResolvedSubscription, error)

	GetSubscription(ctx context.Context, subscriptionID uuid.UUID) (*Subscription, error)
	ListSubscriptions(ctx context.Context) ([]Subscription, error)
	ListAvailablePlans(ctx context.Context, subscriptionID uuid.UUID) ([]Plan, error)

	// ActivateSubscription confirms fulfillment on the given plan.
	// Quantity is optional and omitted when nil.
	ActivateSubscription(ctx context.Context, subscriptionID uuid.UUID, planID string, quantity *int) (*RequestResult, error)

	// UpdateSubscriptionPlan asks the upstream to move the subscription
	// to a new plan. Accepted asynchronously.
	UpdateSubscriptionPlan(ctx context.Context, subscriptionID uuid.UUID, planID string) (*OperationAccepted, error)

	// UpdateSubscriptionQuantity asks the upstream to change seat count.
	// Accepted asynchronously.
	UpdateSubscriptionQuantity(ctx context.Context, subscriptionID uuid.UUID, quantity int) (*OperationAccepted, error)

	// DeleteSubscription cancels the subscription. Accepted
	// asynchronously; cancellation is terminal.
	DeleteSubscription(ctx context.Context, subscriptionID uuid.UUID) (*OperationAccepted, error)

	GetOperation(ctx context.Context, subscriptionID, operationID uuid.UUID) (*Operation, error)
	ListOperations(ctx context.Context, subscriptionID uuid.UUID) ([]Operation, error)

	// UpdateOperation acknowledges an operation back to the upstream
	// with a final success or failure status.
	UpdateOperation(ctx context.Context, subscriptionID, operationID uuid.UUID, status OperationUpdateStatus, planID string, quantity int) (*RequestResult, error)
}
