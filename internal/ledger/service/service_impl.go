package service

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/smallbiznis/marketfill/internal/ledger/domain"
	marketplacedomain "github.com/smallbiznis/marketfill/internal/marketplace/domain"
	"github.com/smallbiznis/marketfill/internal/observability/metrics"
	"github.com/smallbiznis/marketfill/pkg/db"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Repo    domain.Repository
	Client  marketplacedomain.Client
	Metrics *metrics.Metrics
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	repo    domain.Repository
	client  marketplacedomain.Client
	metrics *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("ledger.service"),
		genID:   p.GenID,
		repo:    p.Repo,
		client:  p.Client,
		metrics: p.Metrics,
	}
}

func (s *Service) RecordAccepted(ctx context.Context, subscriptionID, operationID uuid.UUID, action marketplacedomain.ActionType, planID string, quantity int, rawResponse []byte) error {
	record := domain.OperationRecord{
		ID:             s.genID.Generate(),
		SubscriptionID: subscriptionID,
		OperationID:    operationID,
		ActionType:     action,
		PlanID:         planID,
		Quantity:       quantity,
		CreatedAt:      time.Now().UTC(),
	}
	if len(rawResponse) > 0 {
		record.RawResponse = datatypes.JSON(rawResponse)
	}

	if err := s.repo.Insert(ctx, s.db, &record); err != nil {
		if db.IsDuplicateKeyErr(err) {
			s.log.Debug("operation already recorded",
				zap.String("subscription_id", subscriptionID.String()),
				zap.String("operation_id", operationID.String()),
			)
			return nil
		}
		return err
	}

	s.metrics.RecordLedgerEntry(ctx, string(action))
	return nil
}

func (s *Service) ListBySubscription(ctx context.Context, subscriptionID uuid.UUID) ([]domain.OperationRecord, error) {
	return s.repo.FindBySubscription(ctx, s.db, subscriptionID)
}

func (s *Service) CrossReference(ctx context.Context, subscriptionID uuid.UUID) ([]domain.OperationView, error) {
	records, err := s.repo.FindBySubscription(ctx, s.db, subscriptionID)
	if err != nil {
		return nil, err
	}

	upstream, err := s.client.ListOperations(ctx, subscriptionID)
	if err != nil && !errors.Is(err, marketplacedomain.ErrOperationNotFound) {
		return nil, err
	}

	byID := make(map[uuid.UUID]*marketplacedomain.Operation, len(upstream))
	for i := range upstream {
		byID[upstream[i].ID] = &upstream[i]
	}

	views := make([]domain.OperationView, 0, len(records))
	for _, record := range records {
		views = append(views, domain.OperationView{
			Record:   record,
			Upstream: byID[record.OperationID],
		})
	}
	return views, nil
}
