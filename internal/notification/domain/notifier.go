// Package domain defines the notification contract: one call per
// lifecycle event the operations team should hear about.
package domain

import (
	"context"

	"github.com/google/uuid"

	marketplacedomain "github.com/smallbiznis/marketfill/internal/marketplace/domain"
)

// Model carries what a notification needs to say about a subscription
// event. Fields that do not apply to an event stay zero.
type Model struct {
	SubscriptionID   uuid.UUID
	SubscriptionName string
	OperationID      uuid.UUID
	OfferID          string
	PlanID           string
	Quantity         int
	PurchaserEmail   string
}

type Notifier interface {
	// SubscriptionActivated announces a completed activation.
	SubscriptionActivated(ctx context.Context, m Model) error

	// ChangePlanRequested asks an operator to confirm a plan change the
	// upstream reported as succeeded.
	ChangePlanRequested(ctx context.Context, m Model) error

	// ChangeQuantityRequested asks an operator to confirm a quantity
	// change the upstream reported as succeeded.
	ChangeQuantityRequested(ctx context.Context, m Model) error

	Suspended(ctx context.Context, m Model) error
	Reinstated(ctx context.Context, m Model) error
	Unsubscribed(ctx context.Context, m Model) error

	// OperationFailed reports an operation that finished in a failed or
	// conflicted state.
	OperationFailed(ctx context.Context, m Model, action marketplacedomain.ActionType, status marketplacedomain.OperationStatus) error
}
