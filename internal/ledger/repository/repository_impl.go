package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/smallbiznis/marketfill/internal/ledger/domain"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, record *domain.OperationRecord) error {
	return db.WithContext(ctx).Create(record).Error
}

func (r *repo) FindBySubscription(ctx context.Context, db *gorm.DB, subscriptionID uuid.UUID) ([]domain.OperationRecord, error) {
	var records []domain.OperationRecord
	err := db.WithContext(ctx).
		Where("subscription_id = ?", subscriptionID).
		Order("created_at DESC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repo) FindByOperation(ctx context.Context, db *gorm.DB, subscriptionID, operationID uuid.UUID) (*domain.OperationRecord, error) {
	var record domain.OperationRecord
	err := db.WithContext(ctx).
		Where("subscription_id = ? AND operation_id = ?", subscriptionID, operationID).
		First(&record).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}
