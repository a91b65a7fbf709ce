package webhook

import (
	"context"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"

	marketplacedomain "github.com/smallbiznis/marketfill/internal/marketplace/domain"
	notificationdomain "github.com/smallbiznis/marketfill/internal/notification/domain"
	"github.com/smallbiznis/marketfill/internal/observability/metrics"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Client   marketplacedomain.Client
	Notifier notificationdomain.Notifier
	Metrics  *metrics.Metrics
}

// Processor corroborates and dispatches webhook payloads.
type Processor struct {
	log      *zap.Logger
	client   marketplacedomain.Client
	notifier notificationdomain.Notifier
	metrics  *metrics.Metrics
}

func New(p Params) *Processor {
	return &Processor{
		log:      p.Log.Named("webhook.processor"),
		client:   p.Client,
		notifier: p.Notifier,
		metrics:  p.Metrics,
	}
}

// Process handles one webhook payload. The operation it names is
// re-fetched upstream first; a payload whose operation cannot be
// confirmed is logged and dropped without dispatch. The returned error
// is for logging only, the receiving endpoint acknowledges regardless.
func (p *Processor) Process(ctx context.Context, payload Payload) error {
	log := p.log.With(
		zap.String("subscription_id", payload.SubscriptionID.String()),
		zap.String("operation_id", payload.OperationID.String()),
		zap.String("action", string(payload.Action)),
	)

	op, err := p.client.GetOperation(ctx, payload.SubscriptionID, payload.OperationID)
	if err != nil {
		p.metrics.RecordWebhookNotification(ctx, string(payload.Action), "uncorroborated")
		log.Warn("dropping webhook payload, operation could not be corroborated upstream", zap.Error(err))
		return fmt.Errorf("webhook: corroborate operation: %w", err)
	}

	model := notificationdomain.Model{
		SubscriptionID: payload.SubscriptionID,
		OperationID:    payload.OperationID,
		OfferID:        payload.OfferID,
		PlanID:         payload.PlanID,
		Quantity:       payload.Quantity,
	}

	// The payload carries identifiers only. Name and purchaser come
	// from the subscription itself; without them the mail subject is
	// nameless and the purchaser is never copied in.
	if sub, err := p.client.GetSubscription(ctx, payload.SubscriptionID); err != nil {
		log.Warn("could not load subscription for notification", zap.Error(err))
	} else if sub != nil {
		model.SubscriptionName = sub.Name
		model.PurchaserEmail = sub.PurchaserEmail
	}

	// Dispatch on the upstream's view of the operation, not the
	// payload's claim.
	switch op.Status {
	case marketplacedomain.OperationSucceeded:
		err = p.dispatchSucceeded(ctx, payload.Action, model, log)
	case marketplacedomain.OperationFailed, marketplacedomain.OperationConflict:
		err = p.notifier.OperationFailed(ctx, model, payload.Action, op.Status)
	default:
		p.metrics.RecordWebhookNotification(ctx, string(payload.Action), "ignored")
		log.Info("ignoring webhook payload for operation still in progress",
			zap.String("status", string(op.Status)))
		return nil
	}
	if err != nil {
		p.metrics.RecordWebhookNotification(ctx, string(payload.Action), "dispatch_failed")
		return err
	}

	p.metrics.RecordWebhookNotification(ctx, string(payload.Action), "processed")
	return nil
}

func (p *Processor) dispatchSucceeded(ctx context.Context, action marketplacedomain.ActionType, model notificationdomain.Model, log *zap.Logger) error {
	switch action {
	case marketplacedomain.ActionSubscribe:
		return p.notifier.SubscriptionActivated(ctx, model)
	case marketplacedomain.ActionChangePlan:
		return p.notifier.ChangePlanRequested(ctx, model)
	case marketplacedomain.ActionChangeQuantity:
		return p.notifier.ChangeQuantityRequested(ctx, model)
	case marketplacedomain.ActionSuspend:
		return p.notifier.Suspended(ctx, model)
	case marketplacedomain.ActionReinstate:
		return p.notifier.Reinstated(ctx, model)
	case marketplacedomain.ActionUnsubscribe:
		return p.notifier.Unsubscribed(ctx, model)
	default:
		log.Warn("unknown webhook action, dropping")
		return nil
	}
}
