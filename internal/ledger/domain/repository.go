package domain

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, record *OperationRecord) error
	FindBySubscription(ctx context.Context, db *gorm.DB, subscriptionID uuid.UUID) ([]OperationRecord, error)
	FindByOperation(ctx context.Context, db *gorm.DB, subscriptionID, operationID uuid.UUID) (*OperationRecord, error)
}
