package domain

import (
	"context"

	"github.com/google/uuid"

	marketplacedomain "github.com/smallbiznis/marketfill/internal/marketplace/domain"
)

type Service interface {
	// RecordAccepted appends a ledger entry for an operation the
	// upstream just accepted, keeping the raw acceptance response.
	// Replays of the same operation are tolerated and leave the ledger
	// unchanged.
	RecordAccepted(ctx context.Context, subscriptionID, operationID uuid.UUID, action marketplacedomain.ActionType, planID string, quantity int, rawResponse []byte) error

	// ListBySubscription returns the ledger entries for one
	// subscription, newest first.
	ListBySubscription(ctx context.Context, subscriptionID uuid.UUID) ([]OperationRecord, error)

	// CrossReference pairs each ledger entry with the upstream's
	// current view of the same operation.
	CrossReference(ctx context.Context, subscriptionID uuid.UUID) ([]OperationView, error)
}
