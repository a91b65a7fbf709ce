package domain

import (
	"context"

	"github.com/google/uuid"

	marketplacedomain "github.com/smallbiznis/marketfill/internal/marketplace/domain"
)

// Service drives the subscription lifecycle against the upstream
// marketplace. Every action validates the current upstream status
// before acting; the upstream remains the system of record.
type Service interface {
	// Resolve exchanges a purchase token for the subscription it
	// identifies. Resolving is read-only and safe to repeat.
	Resolve(ctx context.Context, purchaseToken string) (*marketplacedomain.ResolvedSubscription, error)

	// Provision resolves a purchase token and activates the
	// subscription, applying the configured landing flow.
	Provision(ctx context.Context, purchaseToken string) (*ProvisionResult, error)

	// Activate confirms fulfillment for a subscription awaiting it.
	Activate(ctx context.Context, subscriptionID uuid.UUID, planID string, quantity *int) (OperationResult, error)

	// ChangePlan moves a subscribed subscription to a new plan.
	ChangePlan(ctx context.Context, subscriptionID uuid.UUID, planID string) (OperationResult, error)

	// ChangeQuantity changes the seat count of a subscribed
	// subscription.
	ChangeQuantity(ctx context.Context, subscriptionID uuid.UUID, quantity int) (OperationResult, error)

	// Cancel unsubscribes. Cancellation is terminal: no action is
	// valid afterwards.
	Cancel(ctx context.Context, subscriptionID uuid.UUID) (OperationResult, error)

	// EvaluateOperation fetches an operation upstream and folds its
	// status into a verdict.
	EvaluateOperation(ctx context.Context, subscriptionID, operationID uuid.UUID) (OperationResult, error)

	// AcknowledgeOperation patches an operation to a final status
	// upstream, as the mail-link confirmation actions do.
	AcknowledgeOperation(ctx context.Context, subscriptionID, operationID uuid.UUID, status marketplacedomain.OperationUpdateStatus) (OperationResult, error)

	// ListSubscriptions returns the dashboard rows, flagging
	// subscriptions with operations still unresolved.
	ListSubscriptions(ctx context.Context) ([]SubscriptionSummary, error)
}
