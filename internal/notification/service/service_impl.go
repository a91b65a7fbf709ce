package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/smallbiznis/marketfill/internal/config"
	marketplacedomain "github.com/smallbiznis/marketfill/internal/marketplace/domain"
	"github.com/smallbiznis/marketfill/internal/notification/domain"
	"github.com/smallbiznis/marketfill/internal/observability/metrics"
	"github.com/smallbiznis/marketfill/internal/providers/email"
)

type Params struct {
	fx.In

	Log     *zap.Logger
	Cfg     config.Config
	Email   email.Provider
	Metrics *metrics.Metrics
}

// Notifier sends lifecycle mail to the configured operations address.
// The dashboard base URL is held explicitly so links in confirmation
// mail are built from one immutable value rather than request state.
type Notifier struct {
	log        *zap.Logger
	email      email.Provider
	metrics    *metrics.Metrics
	adminEmail string
	baseURL    string
}

func New(p Params) domain.Notifier {
	return NewWithBaseURL(p.Log, p.Email, p.Metrics, p.Cfg.Mail.AdminEmail, p.Cfg.BaseURL)
}

// NewWithBaseURL builds a notifier addressing mail links at an explicit
// base URL.
func NewWithBaseURL(log *zap.Logger, provider email.Provider, m *metrics.Metrics, adminEmail, baseURL string) domain.Notifier {
	return &Notifier{
		log:        log.Named("notification.service"),
		email:      provider,
		metrics:    m,
		adminEmail: adminEmail,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

func (n *Notifier) recipients(m domain.Model) []string {
	to := []string{n.adminEmail}
	if m.PurchaserEmail != "" && m.PurchaserEmail != n.adminEmail {
		to = append(to, m.PurchaserEmail)
	}
	return to
}

func (n *Notifier) dashboardURL() string {
	return n.baseURL + "/subscriptions"
}

func (n *Notifier) operationsURL(m domain.Model) string {
	return fmt.Sprintf("%s/subscriptions/%s/operations", n.baseURL, m.SubscriptionID)
}

func (n *Notifier) confirmURL(m domain.Model, action marketplacedomain.ActionType) string {
	return fmt.Sprintf("%s/admin/subscriptions/%s/operations/%s/confirm?action=%s",
		n.baseURL, m.SubscriptionID, m.OperationID, action)
}

func (n *Notifier) send(ctx context.Context, event, template string, m domain.Model, data map[string]interface{}) error {
	data["subscription_id"] = m.SubscriptionID.String()
	data["dashboard_url"] = n.dashboardURL()

	if err := n.email.SendTemplate(ctx, n.recipients(m), template, data); err != nil {
		n.log.Error("send notification",
			zap.String("event", event),
			zap.String("subscription_id", m.SubscriptionID.String()),
			zap.Error(err),
		)
		return err
	}

	n.metrics.RecordNotificationSent(ctx, event)
	n.log.Info("notification sent",
		zap.String("event", event),
		zap.String("subscription_id", m.SubscriptionID.String()),
	)
	return nil
}

func (n *Notifier) SubscriptionActivated(ctx context.Context, m domain.Model) error {
	return n.send(ctx, "subscription_activated", "subscription_activated", m, map[string]interface{}{
		"subject":           fmt.Sprintf("Subscription %s activated", m.SubscriptionName),
		"subscription_name": m.SubscriptionName,
		"plan_id":           m.PlanID,
	})
}

func (n *Notifier) ChangePlanRequested(ctx context.Context, m domain.Model) error {
	return n.send(ctx, "change_plan", "operation_update", m, map[string]interface{}{
		"subject":      fmt.Sprintf("Plan change on subscription %s needs confirmation", m.SubscriptionID),
		"title":        "Plan change pending confirmation",
		"action":       string(marketplacedomain.ActionChangePlan),
		"operation_id": m.OperationID.String(),
		"plan_id":      m.PlanID,
		"confirm_url":  n.confirmURL(m, marketplacedomain.ActionChangePlan),
	})
}

func (n *Notifier) ChangeQuantityRequested(ctx context.Context, m domain.Model) error {
	return n.send(ctx, "change_quantity", "operation_update", m, map[string]interface{}{
		"subject":      fmt.Sprintf("Quantity change on subscription %s needs confirmation", m.SubscriptionID),
		"title":        "Quantity change pending confirmation",
		"action":       string(marketplacedomain.ActionChangeQuantity),
		"operation_id": m.OperationID.String(),
		"quantity":     m.Quantity,
		"confirm_url":  n.confirmURL(m, marketplacedomain.ActionChangeQuantity),
	})
}

func (n *Notifier) Suspended(ctx context.Context, m domain.Model) error {
	return n.send(ctx, "suspended", "subscription_status", m, map[string]interface{}{
		"subject": fmt.Sprintf("Subscription %s suspended", m.SubscriptionID),
		"title":   "Subscription suspended",
		"status":  string(marketplacedomain.StatusSuspended),
		"detail":  "The marketplace suspended this subscription, usually for a billing problem.",
	})
}

func (n *Notifier) Reinstated(ctx context.Context, m domain.Model) error {
	return n.send(ctx, "reinstated", "subscription_status", m, map[string]interface{}{
		"subject": fmt.Sprintf("Subscription %s reinstated", m.SubscriptionID),
		"title":   "Subscription reinstated",
		"status":  string(marketplacedomain.StatusSubscribed),
	})
}

func (n *Notifier) Unsubscribed(ctx context.Context, m domain.Model) error {
	return n.send(ctx, "unsubscribed", "subscription_status", m, map[string]interface{}{
		"subject": fmt.Sprintf("Subscription %s cancelled", m.SubscriptionID),
		"title":   "Subscription cancelled",
		"status":  string(marketplacedomain.StatusUnsubscribed),
		"detail":  "Cancellation is final. No further lifecycle actions are possible.",
	})
}

func (n *Notifier) OperationFailed(ctx context.Context, m domain.Model, action marketplacedomain.ActionType, status marketplacedomain.OperationStatus) error {
	return n.send(ctx, "operation_failed", "operation_failed", m, map[string]interface{}{
		"subject":        fmt.Sprintf("Operation on subscription %s finished as %s", m.SubscriptionID, status),
		"action":         string(action),
		"status":         string(status),
		"operation_id":   m.OperationID.String(),
		"operations_url": n.operationsURL(m),
	})
}
