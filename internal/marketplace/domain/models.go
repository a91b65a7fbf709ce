// Package domain contains the wire types for the upstream marketplace
// fulfillment API.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionStatus represents lifecycle states for a marketplace subscription.
type SubscriptionStatus string

const (
	StatusNotStarted              SubscriptionStatus = "NotStarted"
	StatusPendingFulfillmentStart SubscriptionStatus = "PendingFulfillmentStart"
	// StatusProvisioning is local only: a purchase token has been resolved
	// but the upstream activation call has not yet succeeded.
	StatusProvisioning SubscriptionStatus = "Provisioning"
	StatusSubscribed   SubscriptionStatus = "Subscribed"
	StatusSuspended    SubscriptionStatus = "Suspended"
	StatusUnsubscribed SubscriptionStatus = "Unsubscribed"
)

// OperationStatus is the upstream-reported status of an asynchronous operation.
type OperationStatus string

const (
	OperationInProgress OperationStatus = "InProgress"
	OperationSucceeded  OperationStatus = "Succeeded"
	OperationFailed     OperationStatus = "Failed"
	OperationConflict   OperationStatus = "Conflict"
)

// ActionType labels what an asynchronous operation does.
type ActionType string

const (
	ActionSubscribe      ActionType = "Subscribe"
	ActionChangePlan     ActionType = "ChangePlan"
	ActionChangeQuantity ActionType = "ChangeQuantity"
	ActionSuspend        ActionType = "Suspend"
	ActionReinstate      ActionType = "Reinstate"
	ActionUnsubscribe    ActionType = "Unsubscribe"
)

// Subscription is the upstream-owned subscription record. This system
// holds a read-through copy only, never a long-lived cache.
type Subscription struct {
	ID                uuid.UUID          `json:"id"`
	Name              string             `json:"name"`
	OfferID           string             `json:"offerId"`
	PlanID            string             `json:"planId"`
	Quantity          *int               `json:"quantity,omitempty"`
	Status            SubscriptionStatus `json:"saasSubscriptionStatus"`
	PurchaserEmail    string             `json:"purchaserEmail"`
	PurchaserTenantID string             `json:"purchaserTenantId"`
}

// ResolvedSubscription is the result of exchanging a purchase token.
type ResolvedSubscription struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"subscriptionName"`
	OfferID  string    `json:"offerId"`
	PlanID   string    `json:"planId"`
	Quantity *int      `json:"quantity,omitempty"`
}

// Plan is one purchasable plan for a subscription's offer.
type Plan struct {
	PlanID      string `json:"planId"`
	DisplayName string `json:"displayName"`
	IsPrivate   bool   `json:"isPrivate"`
}

// Operation is one asynchronous upstream action, polled or
// webhook-confirmed to completion.
type Operation struct {
	ID             uuid.UUID       `json:"id"`
	ActivityID     uuid.UUID       `json:"activityId"`
	SubscriptionID uuid.UUID       `json:"subscriptionId"`
	OfferID        string          `json:"offerId"`
	PublisherID    string          `json:"publisherId"`
	PlanID         string          `json:"planId"`
	Quantity       int             `json:"quantity"`
	Action         ActionType      `json:"action"`
	Status         OperationStatus `json:"status"`
	TimeStamp      time.Time       `json:"timeStamp"`

	// RetryAfter is the upstream polling hint, zero when absent.
	RetryAfter time.Duration `json:"-"`
}

// OperationUpdateStatus is the acknowledgment a vendor sends back on an
// operation (patching the operation to its final state).
type OperationUpdateStatus string

const (
	OperationUpdateSuccess OperationUpdateStatus = "Success"
	OperationUpdateFailure OperationUpdateStatus = "Failure"
)

// RequestResult captures the outcome of a single upstream call. A
// non-success HTTP status is an expected upstream rejection, not an
// error: the raw body and status code are kept for diagnostics and
// retry policy belongs to the caller.
type RequestResult struct {
	Success     bool
	StatusCode  int
	RawResponse []byte
}

// OperationAccepted is returned by calls the upstream accepts
// asynchronously: the request result plus the operation the upstream
// opened for it.
type OperationAccepted struct {
	RequestResult
	OperationID uuid.UUID
}
