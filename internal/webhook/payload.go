// Package webhook processes lifecycle notifications pushed by the
// marketplace. The endpoint is reachable without authentication, so
// nothing in a payload is trusted until the named operation has been
// re-fetched from the upstream.
package webhook

import (
	"time"

	"github.com/google/uuid"

	marketplacedomain "github.com/smallbiznis/marketfill/internal/marketplace/domain"
)

// Payload is the notification body the marketplace posts. The
// operation identifier arrives under the key "id".
type Payload struct {
	OperationID    uuid.UUID                         `json:"id"`
	ActivityID     uuid.UUID                         `json:"activityId"`
	SubscriptionID uuid.UUID                         `json:"subscriptionId"`
	PublisherID    string                            `json:"publisherId"`
	OfferID        string                            `json:"offerId"`
	PlanID         string                            `json:"planId"`
	Quantity       int                               `json:"quantity"`
	TimeStamp      time.Time                         `json:"timeStamp"`
	Action         marketplacedomain.ActionType      `json:"action"`
	Status         marketplacedomain.OperationStatus `json:"status"`
}
