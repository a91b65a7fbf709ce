// Package domain holds the operation ledger model. The ledger is the
// local, append-only record of every asynchronous operation this
// system initiated upstream; the upstream remains the system of record
// for operation outcomes.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	marketplacedomain "github.com/smallbiznis/marketfill/internal/marketplace/domain"
)

// OperationRecord is one accepted asynchronous operation. Records are
// never updated or deleted.
type OperationRecord struct {
	ID             snowflake.ID                  `gorm:"primaryKey" json:"id"`
	SubscriptionID uuid.UUID                     `gorm:"type:uuid;uniqueIndex:uq_operation_records_subscription_operation" json:"subscriptionId"`
	OperationID    uuid.UUID                     `gorm:"type:uuid;uniqueIndex:uq_operation_records_subscription_operation" json:"operationId"`
	ActionType     marketplacedomain.ActionType  `gorm:"column:action_type" json:"actionType"`
	PlanID         string                        `gorm:"column:plan_id" json:"planId"`
	Quantity       int                           `gorm:"column:quantity" json:"quantity"`

	// RawResponse is the body the upstream returned when it accepted
	// the operation, kept verbatim for diagnostics.
	RawResponse datatypes.JSON `gorm:"column:raw_response" json:"rawResponse,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

func (OperationRecord) TableName() string { return "operation_records" }

// OperationView joins a ledger record with the upstream's current view
// of the same operation. Upstream is nil when the upstream no longer
// reports the operation.
type OperationView struct {
	Record   OperationRecord                `json:"record"`
	Upstream *marketplacedomain.Operation   `json:"upstream,omitempty"`
}
