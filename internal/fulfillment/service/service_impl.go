package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/smallbiznis/marketfill/internal/config"
	"github.com/smallbiznis/marketfill/internal/fulfillment/domain"
	ledgerdomain "github.com/smallbiznis/marketfill/internal/ledger/domain"
	marketplacedomain "github.com/smallbiznis/marketfill/internal/marketplace/domain"
	notificationdomain "github.com/smallbiznis/marketfill/internal/notification/domain"
	"github.com/smallbiznis/marketfill/internal/observability/metrics"
)

type Params struct {
	fx.In

	Log       *zap.Logger
	Client    marketplacedomain.Client
	Ledger    ledgerdomain.Service
	Notifier  notificationdomain.Notifier
	Dashboard *config.DashboardHolder
	Metrics   *metrics.Metrics
}

type Service struct {
	log       *zap.Logger
	client    marketplacedomain.Client
	ledger    ledgerdomain.Service
	notifier  notificationdomain.Notifier
	dashboard *config.DashboardHolder
	metrics   *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		log:       p.Log.Named("fulfillment.service"),
		client:    p.Client,
		ledger:    p.Ledger,
		notifier:  p.Notifier,
		dashboard: p.Dashboard,
		metrics:   p.Metrics,
	}
}

func (s *Service) Resolve(ctx context.Context, purchaseToken string) (*marketplacedomain.ResolvedSubscription, error) {
	resolved, err := s.client.ResolveSubscription(ctx, purchaseToken)
	if err != nil {
		s.metrics.RecordFulfillmentRequest(ctx, "resolve", false)
		return nil, err
	}
	s.metrics.RecordFulfillmentRequest(ctx, "resolve", true)
	return resolved, nil
}

// Provision runs the landing flow: resolve the token, activate on the
// purchased plan and, when the advanced flow is enabled and the
// purchased plan differs from the base plan, open a plan change back
// to the base plan. The two steps are separate upstream calls: a crash
// between them leaves the subscription active on the purchased plan,
// which the operations view exposes.
func (s *Service) Provision(ctx context.Context, purchaseToken string) (*domain.ProvisionResult, error) {
	resolved, err := s.Resolve(ctx, purchaseToken)
	if err != nil {
		return nil, err
	}

	log := s.log.With(zap.String("subscription_id", resolved.ID.String()))

	activation, err := s.Activate(ctx, resolved.ID, resolved.PlanID, resolved.Quantity)
	if err != nil {
		return nil, err
	}

	result := &domain.ProvisionResult{
		SubscriptionID:   resolved.ID,
		SubscriptionName: resolved.Name,
		PlanID:           resolved.PlanID,
		Activation:       activation,
	}
	if !activation.Succeeded {
		return result, nil
	}

	cfg := s.dashboard.Get()
	if !cfg.AdvancedFlow || resolved.PlanID == cfg.BasePlanID {
		s.notifyProvisioned(ctx, resolved, nil, "")
		return result, nil
	}

	log.Info("activated on purchased plan, moving to base plan",
		zap.String("purchased_plan", resolved.PlanID),
		zap.String("base_plan", cfg.BasePlanID),
	)

	accepted, err := s.client.UpdateSubscriptionPlan(ctx, resolved.ID, cfg.BasePlanID)
	if err != nil {
		return nil, err
	}
	if !accepted.Success {
		result.Activation = domain.FailureResult("PlanChangeRejected",
			fmt.Sprintf("upstream rejected the base plan change with status %d", accepted.StatusCode))
		return result, nil
	}

	if err := s.ledger.RecordAccepted(ctx, resolved.ID, accepted.OperationID,
		marketplacedomain.ActionChangePlan, cfg.BasePlanID, 0, accepted.RawResponse); err != nil {
		return nil, err
	}

	operationID := accepted.OperationID
	result.PlanChangeOperationID = &operationID
	result.PlanID = cfg.BasePlanID
	s.notifyProvisioned(ctx, resolved, &operationID, cfg.BasePlanID)
	return result, nil
}

// notifyProvisioned mails out the landing outcome. A planChangeID means
// the advanced flow opened a plan change that still needs confirming;
// otherwise the subscription went straight to active. Mail failures are
// logged and never fail the provisioning itself.
func (s *Service) notifyProvisioned(ctx context.Context, resolved *marketplacedomain.ResolvedSubscription, planChangeID *uuid.UUID, basePlanID string) {
	model := notificationdomain.Model{
		SubscriptionID:   resolved.ID,
		SubscriptionName: resolved.Name,
		OfferID:          resolved.OfferID,
		PlanID:           resolved.PlanID,
	}
	if resolved.Quantity != nil {
		model.Quantity = *resolved.Quantity
	}
	if sub, err := s.client.GetSubscription(ctx, resolved.ID); err != nil {
		s.log.Warn("could not look up purchaser for notification",
			zap.String("subscription_id", resolved.ID.String()),
			zap.Error(err),
		)
	} else {
		model.PurchaserEmail = sub.PurchaserEmail
	}

	var err error
	if planChangeID != nil {
		model.OperationID = *planChangeID
		model.PlanID = basePlanID
		err = s.notifier.ChangePlanRequested(ctx, model)
	} else {
		err = s.notifier.SubscriptionActivated(ctx, model)
	}
	if err != nil {
		s.log.Warn("notification dispatch failed",
			zap.String("subscription_id", resolved.ID.String()),
			zap.Error(err),
		)
	}
}

func (s *Service) Activate(ctx context.Context, subscriptionID uuid.UUID, planID string, quantity *int) (domain.OperationResult, error) {
	sub, err := s.client.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return domain.OperationResult{}, err
	}

	switch sub.Status {
	case marketplacedomain.StatusPendingFulfillmentStart, marketplacedomain.StatusProvisioning:
	case marketplacedomain.StatusSubscribed:
		// Already active. Activation is idempotent from the caller's
		// point of view.
		return domain.SuccessResult(), nil
	default:
		return domain.OperationResult{}, fmt.Errorf("%w: cannot activate from %s", domain.ErrInvalidTransition, sub.Status)
	}

	result, err := s.client.ActivateSubscription(ctx, subscriptionID, planID, quantity)
	if err != nil {
		s.metrics.RecordFulfillmentRequest(ctx, "activate", false)
		return domain.OperationResult{}, err
	}
	s.metrics.RecordFulfillmentRequest(ctx, "activate", result.Success)

	if !result.Success {
		return domain.FailureResult("ActivateRejected",
			fmt.Sprintf("upstream rejected activation with status %d", result.StatusCode)), nil
	}

	s.log.Info("subscription activated",
		zap.String("subscription_id", subscriptionID.String()),
		zap.String("plan_id", planID),
	)
	return domain.SuccessResult(), nil
}

func (s *Service) ChangePlan(ctx context.Context, subscriptionID uuid.UUID, planID string) (domain.OperationResult, error) {
	if err := s.requireSubscribed(ctx, subscriptionID); err != nil {
		return domain.OperationResult{}, err
	}
	if err := s.requireNoPendingOperation(ctx, subscriptionID); err != nil {
		return domain.OperationResult{}, err
	}

	accepted, err := s.client.UpdateSubscriptionPlan(ctx, subscriptionID, planID)
	if err != nil {
		s.metrics.RecordFulfillmentRequest(ctx, "change_plan", false)
		return domain.OperationResult{}, err
	}
	s.metrics.RecordFulfillmentRequest(ctx, "change_plan", accepted.Success)

	if !accepted.Success {
		return domain.FailureResult("PlanChangeRejected",
			fmt.Sprintf("upstream rejected the plan change with status %d", accepted.StatusCode)), nil
	}

	if err := s.ledger.RecordAccepted(ctx, subscriptionID, accepted.OperationID,
		marketplacedomain.ActionChangePlan, planID, 0, accepted.RawResponse); err != nil {
		return domain.OperationResult{}, err
	}
	return domain.SuccessResult(), nil
}

func (s *Service) ChangeQuantity(ctx context.Context, subscriptionID uuid.UUID, quantity int) (domain.OperationResult, error) {
	if err := s.requireSubscribed(ctx, subscriptionID); err != nil {
		return domain.OperationResult{}, err
	}
	if err := s.requireNoPendingOperation(ctx, subscriptionID); err != nil {
		return domain.OperationResult{}, err
	}

	accepted, err := s.client.UpdateSubscriptionQuantity(ctx, subscriptionID, quantity)
	if err != nil {
		s.metrics.RecordFulfillmentRequest(ctx, "change_quantity", false)
		return domain.OperationResult{}, err
	}
	s.metrics.RecordFulfillmentRequest(ctx, "change_quantity", accepted.Success)

	if !accepted.Success {
		return domain.FailureResult("QuantityChangeRejected",
			fmt.Sprintf("upstream rejected the quantity change with status %d", accepted.StatusCode)), nil
	}

	if err := s.ledger.RecordAccepted(ctx, subscriptionID, accepted.OperationID,
		marketplacedomain.ActionChangeQuantity, "", quantity, accepted.RawResponse); err != nil {
		return domain.OperationResult{}, err
	}
	return domain.SuccessResult(), nil
}

func (s *Service) Cancel(ctx context.Context, subscriptionID uuid.UUID) (domain.OperationResult, error) {
	sub, err := s.client.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return domain.OperationResult{}, err
	}
	if sub.Status == marketplacedomain.StatusUnsubscribed {
		return domain.OperationResult{}, fmt.Errorf("%w: subscription is already unsubscribed", domain.ErrInvalidTransition)
	}

	accepted, err := s.client.DeleteSubscription(ctx, subscriptionID)
	if err != nil {
		s.metrics.RecordFulfillmentRequest(ctx, "cancel", false)
		return domain.OperationResult{}, err
	}
	s.metrics.RecordFulfillmentRequest(ctx, "cancel", accepted.Success)

	if !accepted.Success {
		return domain.FailureResult("CancelRejected",
			fmt.Sprintf("upstream rejected the cancellation with status %d", accepted.StatusCode)), nil
	}

	if err := s.ledger.RecordAccepted(ctx, subscriptionID, accepted.OperationID,
		marketplacedomain.ActionUnsubscribe, "", 0, accepted.RawResponse); err != nil {
		return domain.OperationResult{}, err
	}

	s.log.Info("subscription cancelled", zap.String("subscription_id", subscriptionID.String()))
	return domain.SuccessResult(), nil
}

// EvaluateOperation turns an operation's upstream status into a
// verdict. A still-pending operation counts as success under the
// default policy; operators who want pending surfaced as a failure set
// operationPendingVerdict to pending in the dashboard config.
func (s *Service) EvaluateOperation(ctx context.Context, subscriptionID, operationID uuid.UUID) (domain.OperationResult, error) {
	op, err := s.client.GetOperation(ctx, subscriptionID, operationID)
	if err != nil {
		return domain.OperationResult{}, err
	}
	return s.verdict(op), nil
}

func (s *Service) verdict(op *marketplacedomain.Operation) domain.OperationResult {
	switch op.Status {
	case marketplacedomain.OperationSucceeded:
		return domain.SuccessResult()
	case marketplacedomain.OperationFailed, marketplacedomain.OperationConflict:
		return domain.OperationFailure(op.Status, op.SubscriptionID, op.ID)
	case marketplacedomain.OperationInProgress:
		if s.dashboard.Get().OperationPendingVerdict == config.PendingVerdictPending {
			return domain.FailureResult("OperationPending",
				fmt.Sprintf("operation %s on subscription %s is still in progress", op.ID, op.SubscriptionID))
		}
		return domain.SuccessResult()
	default:
		return domain.FailureResult("UnknownOperationStatus",
			fmt.Sprintf("operation %s reported unknown status %q", op.ID, op.Status))
	}
}

func (s *Service) AcknowledgeOperation(ctx context.Context, subscriptionID, operationID uuid.UUID, status marketplacedomain.OperationUpdateStatus) (domain.OperationResult, error) {
	op, err := s.client.GetOperation(ctx, subscriptionID, operationID)
	if err != nil {
		return domain.OperationResult{}, err
	}

	result, err := s.client.UpdateOperation(ctx, subscriptionID, operationID, status, op.PlanID, op.Quantity)
	if err != nil {
		return domain.OperationResult{}, err
	}
	if !result.Success {
		return domain.FailureResult("AcknowledgeRejected",
			fmt.Sprintf("upstream rejected the operation update with status %d", result.StatusCode)), nil
	}

	s.log.Info("operation acknowledged",
		zap.String("subscription_id", subscriptionID.String()),
		zap.String("operation_id", operationID.String()),
		zap.String("status", string(status)),
	)
	return domain.SuccessResult(), nil
}

func (s *Service) ListSubscriptions(ctx context.Context) ([]domain.SubscriptionSummary, error) {
	subs, err := s.client.ListSubscriptions(ctx)
	if err != nil {
		return nil, err
	}

	cfg := s.dashboard.Get()
	summaries := make([]domain.SubscriptionSummary, 0, len(subs))
	for _, sub := range subs {
		if sub.Status == marketplacedomain.StatusUnsubscribed && !cfg.ShowUnsubscribed {
			continue
		}

		pending, err := s.hasPendingOperation(ctx, sub.ID)
		if err != nil {
			// A single failing subscription should not blank the whole
			// dashboard.
			s.log.Warn("could not list operations",
				zap.String("subscription_id", sub.ID.String()),
				zap.Error(err),
			)
		}
		summaries = append(summaries, domain.SubscriptionSummary{
			Subscription:      sub,
			PendingOperations: pending,
		})
	}
	return summaries, nil
}

func (s *Service) requireSubscribed(ctx context.Context, subscriptionID uuid.UUID) error {
	sub, err := s.client.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return err
	}
	if sub.Status != marketplacedomain.StatusSubscribed {
		return fmt.Errorf("%w: subscription is %s, not %s", domain.ErrInvalidTransition, sub.Status, marketplacedomain.StatusSubscribed)
	}
	return nil
}

func (s *Service) requireNoPendingOperation(ctx context.Context, subscriptionID uuid.UUID) error {
	pending, err := s.hasPendingOperation(ctx, subscriptionID)
	if err != nil {
		return err
	}
	if pending {
		return domain.ErrOperationPendingUpstream
	}
	return nil
}

func (s *Service) hasPendingOperation(ctx context.Context, subscriptionID uuid.UUID) (bool, error) {
	ops, err := s.client.ListOperations(ctx, subscriptionID)
	if err != nil {
		return false, err
	}
	for _, op := range ops {
		if op.Status == marketplacedomain.OperationInProgress {
			return true, nil
		}
	}
	return false, nil
}
