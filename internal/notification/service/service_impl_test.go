package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	marketplacedomain "github.com/smallbiznis/marketfill/internal/marketplace/domain"
	"github.com/smallbiznis/marketfill/internal/notification/domain"
	"github.com/smallbiznis/marketfill/internal/observability/metrics"
)

type capturingProvider struct {
	to       []string
	template string
	data     map[string]interface{}
}

func (p *capturingProvider) SendTemplate(ctx context.Context, to []string, templateName string, data map[string]interface{}) error {
	p.to = to
	p.template = templateName
	p.data = data
	return nil
}

func newTestNotifier(t *testing.T, provider *capturingProvider, baseURL string) domain.Notifier {
	t.Helper()
	m, err := metrics.New(metrics.Config{}, metricnoop.NewMeterProvider())
	assert.NoError(t, err)
	return NewWithBaseURL(zap.NewNop(), provider, m, "ops@example.com", baseURL)
}

func TestChangePlanRequested(t *testing.T) {
	subscriptionID := uuid.New()
	operationID := uuid.New()

	provider := &capturingProvider{}
	notifier := newTestNotifier(t, provider, "https://dashboard.example.com/")

	err := notifier.ChangePlanRequested(context.Background(), domain.Model{
		SubscriptionID: subscriptionID,
		OperationID:    operationID,
		PlanID:         "premium",
		PurchaserEmail: "buyer@example.com",
	})
	assert.NoError(t, err)

	assert.Equal(t, []string{"ops@example.com", "buyer@example.com"}, provider.to)
	assert.Equal(t, "operation_update", provider.template)

	// The confirm link is rooted at the configured base URL with no
	// duplicated slash.
	confirm := provider.data["confirm_url"].(string)
	assert.Equal(t,
		"https://dashboard.example.com/admin/subscriptions/"+subscriptionID.String()+
			"/operations/"+operationID.String()+"/confirm?action=ChangePlan",
		confirm,
	)
}

func TestOperationFailed(t *testing.T) {
	subscriptionID := uuid.New()
	operationID := uuid.New()

	provider := &capturingProvider{}
	notifier := newTestNotifier(t, provider, "https://dashboard.example.com")

	err := notifier.OperationFailed(context.Background(), domain.Model{
		SubscriptionID: subscriptionID,
		OperationID:    operationID,
	}, marketplacedomain.ActionChangeQuantity, marketplacedomain.OperationConflict)
	assert.NoError(t, err)

	assert.Equal(t, "operation_failed", provider.template)
	assert.Equal(t, "Conflict", provider.data["status"])
	assert.Equal(t, "ChangeQuantity", provider.data["action"])
}

func TestRecipientsDeduplicated(t *testing.T) {
	provider := &capturingProvider{}
	notifier := newTestNotifier(t, provider, "https://dashboard.example.com")

	err := notifier.Suspended(context.Background(), domain.Model{
		SubscriptionID: uuid.New(),
		PurchaserEmail: "ops@example.com",
	})
	assert.NoError(t, err)
	assert.Equal(t, []string{"ops@example.com"}, provider.to)
}
