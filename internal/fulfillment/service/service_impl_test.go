package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/smallbiznis/marketfill/internal/config"
	"github.com/smallbiznis/marketfill/internal/fulfillment/domain"
	ledgerdomain "github.com/smallbiznis/marketfill/internal/ledger/domain"
	marketplacedomain "github.com/smallbiznis/marketfill/internal/marketplace/domain"
	notificationdomain "github.com/smallbiznis/marketfill/internal/notification/domain"
	"github.com/smallbiznis/marketfill/internal/observability/metrics"
)

// -- Mocks --

type clientMock struct {
	mock.Mock
}

func (m *clientMock) ResolveSubscription(ctx context.Context, token string) (*marketplacedomain.ResolvedSubscription, error) {
	args := m.Called(ctx, token)
	if res := args.Get(0); res != nil {
		return res.(*marketplacedomain.ResolvedSubscription), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *clientMock) GetSubscription(ctx context.Context, id uuid.UUID) (*marketplacedomain.Subscription, error) {
	args := m.Called(ctx, id)
	if res := args.Get(0); res != nil {
		return res.(*marketplacedomain.Subscription), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *clientMock) ListSubscriptions(ctx context.Context) ([]marketplacedomain.Subscription, error) {
	args := m.Called(ctx)
	if res := args.Get(0); res != nil {
		return res.([]marketplacedomain.Subscription), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *clientMock) ListAvailablePlans(ctx context.Context, id uuid.UUID) ([]marketplacedomain.Plan, error) {
	return nil, nil
}

func (m *clientMock) ActivateSubscription(ctx context.Context, id uuid.UUID, planID string, quantity *int) (*marketplacedomain.RequestResult, error) {
	args := m.Called(ctx, id, planID, quantity)
	if res := args.Get(0); res != nil {
		return res.(*marketplacedomain.RequestResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *clientMock) UpdateSubscriptionPlan(ctx context.Context, id uuid.UUID, planID string) (*marketplacedomain.OperationAccepted, error) {
	args := m.Called(ctx, id, planID)
	if res := args.Get(0); res != nil {
		return res.(*marketplacedomain.OperationAccepted), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *clientMock) UpdateSubscriptionQuantity(ctx context.Context, id uuid.UUID, quantity int) (*marketplacedomain.OperationAccepted, error) {
	args := m.Called(ctx, id, quantity)
	if res := args.Get(0); res != nil {
		return res.(*marketplacedomain.OperationAccepted), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *clientMock) DeleteSubscription(ctx context.Context, id uuid.UUID) (*marketplacedomain.OperationAccepted, error) {
	args := m.Called(ctx, id)
	if res := args.Get(0); res != nil {
		return res.(*marketplacedomain.OperationAccepted), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *clientMock) GetOperation(ctx context.Context, subscriptionID, operationID uuid.UUID) (*marketplacedomain.Operation, error) {
	args := m.Called(ctx, subscriptionID, operationID)
	if res := args.Get(0); res != nil {
		return res.(*marketplacedomain.Operation), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *clientMock) ListOperations(ctx context.Context, subscriptionID uuid.UUID) ([]marketplacedomain.Operation, error) {
	args := m.Called(ctx, subscriptionID)
	if res := args.Get(0); res != nil {
		return res.([]marketplacedomain.Operation), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *clientMock) UpdateOperation(ctx context.Context, subscriptionID, operationID uuid.UUID, status marketplacedomain.OperationUpdateStatus, planID string, quantity int) (*marketplacedomain.RequestResult, error) {
	args := m.Called(ctx, subscriptionID, operationID, status, planID, quantity)
	if res := args.Get(0); res != nil {
		return res.(*marketplacedomain.RequestResult), args.Error(1)
	}
	return nil, args.Error(1)
}

type ledgerMock struct {
	mock.Mock
}

func (m *ledgerMock) RecordAccepted(ctx context.Context, subscriptionID, operationID uuid.UUID, action marketplacedomain.ActionType, planID string, quantity int, rawResponse []byte) error {
	args := m.Called(ctx, subscriptionID, operationID, action, planID, quantity, rawResponse)
	return args.Error(0)
}

func (m *ledgerMock) ListBySubscription(ctx context.Context, subscriptionID uuid.UUID) ([]ledgerdomain.OperationRecord, error) {
	return nil, nil
}

func (m *ledgerMock) CrossReference(ctx context.Context, subscriptionID uuid.UUID) ([]ledgerdomain.OperationView, error) {
	return nil, nil
}

// notifierSpy records the models handed to the two landing-flow mails.
// The remaining events are webhook-driven and stay out of this package.
type notifierSpy struct {
	activated   []notificationdomain.Model
	planChanges []notificationdomain.Model
}

func (s *notifierSpy) SubscriptionActivated(_ context.Context, model notificationdomain.Model) error {
	s.activated = append(s.activated, model)
	return nil
}

func (s *notifierSpy) ChangePlanRequested(_ context.Context, model notificationdomain.Model) error {
	s.planChanges = append(s.planChanges, model)
	return nil
}

func (s *notifierSpy) ChangeQuantityRequested(context.Context, notificationdomain.Model) error {
	return nil
}
func (s *notifierSpy) Suspended(context.Context, notificationdomain.Model) error   { return nil }
func (s *notifierSpy) Reinstated(context.Context, notificationdomain.Model) error  { return nil }
func (s *notifierSpy) Unsubscribed(context.Context, notificationdomain.Model) error { return nil }
func (s *notifierSpy) OperationFailed(context.Context, notificationdomain.Model, marketplacedomain.ActionType, marketplacedomain.OperationStatus) error {
	return nil
}

func newTestService(t *testing.T, client *clientMock, ledger *ledgerMock, dashboard config.DashboardConfig) domain.Service {
	t.Helper()
	return newTestServiceWithNotifier(t, client, ledger, &notifierSpy{}, dashboard)
}

func newTestServiceWithNotifier(t *testing.T, client *clientMock, ledger *ledgerMock, notifier notificationdomain.Notifier, dashboard config.DashboardConfig) domain.Service {
	t.Helper()
	m, err := metrics.New(metrics.Config{}, metricnoop.NewMeterProvider())
	assert.NoError(t, err)
	return New(Params{
		Log:       zap.NewNop(),
		Client:    client,
		Ledger:    ledger,
		Notifier:  notifier,
		Dashboard: config.NewStaticDashboardHolder(dashboard),
		Metrics:   m,
	})
}

func defaultDashboard() config.DashboardConfig {
	return config.DefaultDashboardConfig()
}

func TestProvision(t *testing.T) {
	subscriptionID := uuid.New()

	t.Run("resolves and activates on the purchased plan", func(t *testing.T) {
		client := &clientMock{}
		client.On("ResolveSubscription", mock.Anything, "tok-123").Return(&marketplacedomain.ResolvedSubscription{
			ID: subscriptionID, Name: "S1", PlanID: "basic",
		}, nil)
		client.On("GetSubscription", mock.Anything, subscriptionID).Return(&marketplacedomain.Subscription{
			ID: subscriptionID, Status: marketplacedomain.StatusPendingFulfillmentStart,
			PurchaserEmail: "buyer@example.com",
		}, nil)
		client.On("ActivateSubscription", mock.Anything, subscriptionID, "basic", (*int)(nil)).
			Return(&marketplacedomain.RequestResult{Success: true, StatusCode: 200}, nil)

		notifier := &notifierSpy{}
		svc := newTestServiceWithNotifier(t, client, &ledgerMock{}, notifier, defaultDashboard())

		result, err := svc.Provision(context.Background(), "tok-123")
		assert.NoError(t, err)
		assert.True(t, result.Activation.Succeeded)
		assert.Equal(t, subscriptionID, result.SubscriptionID)
		assert.Equal(t, "basic", result.PlanID)
		assert.Nil(t, result.PlanChangeOperationID)
		client.AssertExpectations(t)

		assert.Len(t, notifier.activated, 1)
		assert.Equal(t, subscriptionID, notifier.activated[0].SubscriptionID)
		assert.Equal(t, "S1", notifier.activated[0].SubscriptionName)
		assert.Equal(t, "buyer@example.com", notifier.activated[0].PurchaserEmail)
		assert.Empty(t, notifier.planChanges)
	})

	t.Run("advanced flow moves the purchased plan back to the base plan", func(t *testing.T) {
		operationID := uuid.New()
		client := &clientMock{}
		client.On("ResolveSubscription", mock.Anything, "tok-456").Return(&marketplacedomain.ResolvedSubscription{
			ID: subscriptionID, Name: "S1", PlanID: "premium",
		}, nil)
		client.On("GetSubscription", mock.Anything, subscriptionID).Return(&marketplacedomain.Subscription{
			ID: subscriptionID, Status: marketplacedomain.StatusPendingFulfillmentStart,
		}, nil)
		client.On("ActivateSubscription", mock.Anything, subscriptionID, "premium", (*int)(nil)).
			Return(&marketplacedomain.RequestResult{Success: true, StatusCode: 200}, nil)
		client.On("UpdateSubscriptionPlan", mock.Anything, subscriptionID, "basic").
			Return(&marketplacedomain.OperationAccepted{
				RequestResult: marketplacedomain.RequestResult{Success: true, StatusCode: 202},
				OperationID:   operationID,
			}, nil)

		ledger := &ledgerMock{}
		ledger.On("RecordAccepted", mock.Anything, subscriptionID, operationID,
			marketplacedomain.ActionChangePlan, "basic", 0, mock.Anything).Return(nil)

		dashboard := defaultDashboard()
		dashboard.AdvancedFlow = true
		notifier := &notifierSpy{}
		svc := newTestServiceWithNotifier(t, client, ledger, notifier, dashboard)

		result, err := svc.Provision(context.Background(), "tok-456")
		assert.NoError(t, err)
		assert.True(t, result.Activation.Succeeded)
		assert.Equal(t, "basic", result.PlanID)
		assert.NotNil(t, result.PlanChangeOperationID)
		assert.Equal(t, operationID, *result.PlanChangeOperationID)
		client.AssertExpectations(t)
		ledger.AssertExpectations(t)

		// The landing mail asks for the base plan change to be confirmed
		// rather than announcing a finished activation.
		assert.Empty(t, notifier.activated)
		assert.Len(t, notifier.planChanges, 1)
		assert.Equal(t, operationID, notifier.planChanges[0].OperationID)
		assert.Equal(t, "basic", notifier.planChanges[0].PlanID)
	})

	t.Run("advanced flow skips the change when already on the base plan", func(t *testing.T) {
		client := &clientMock{}
		client.On("ResolveSubscription", mock.Anything, "tok-789").Return(&marketplacedomain.ResolvedSubscription{
			ID: subscriptionID, PlanID: "basic",
		}, nil)
		client.On("GetSubscription", mock.Anything, subscriptionID).Return(&marketplacedomain.Subscription{
			ID: subscriptionID, Status: marketplacedomain.StatusPendingFulfillmentStart,
		}, nil)
		client.On("ActivateSubscription", mock.Anything, subscriptionID, "basic", (*int)(nil)).
			Return(&marketplacedomain.RequestResult{Success: true, StatusCode: 200}, nil)

		dashboard := defaultDashboard()
		dashboard.AdvancedFlow = true
		notifier := &notifierSpy{}
		svc := newTestServiceWithNotifier(t, client, &ledgerMock{}, notifier, dashboard)

		result, err := svc.Provision(context.Background(), "tok-789")
		assert.NoError(t, err)
		assert.Nil(t, result.PlanChangeOperationID)
		client.AssertNotCalled(t, "UpdateSubscriptionPlan", mock.Anything, mock.Anything, mock.Anything)
		assert.Len(t, notifier.activated, 1)
		assert.Empty(t, notifier.planChanges)
	})
}

func TestActivate(t *testing.T) {
	subscriptionID := uuid.New()

	t.Run("rejected from suspended", func(t *testing.T) {
		client := &clientMock{}
		client.On("GetSubscription", mock.Anything, subscriptionID).Return(&marketplacedomain.Subscription{
			ID: subscriptionID, Status: marketplacedomain.StatusSuspended,
		}, nil)

		svc := newTestService(t, client, &ledgerMock{}, defaultDashboard())

		_, err := svc.Activate(context.Background(), subscriptionID, "basic", nil)
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
		client.AssertNotCalled(t, "ActivateSubscription", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("already subscribed is a no-op success", func(t *testing.T) {
		client := &clientMock{}
		client.On("GetSubscription", mock.Anything, subscriptionID).Return(&marketplacedomain.Subscription{
			ID: subscriptionID, Status: marketplacedomain.StatusSubscribed,
		}, nil)

		svc := newTestService(t, client, &ledgerMock{}, defaultDashboard())

		result, err := svc.Activate(context.Background(), subscriptionID, "basic", nil)
		assert.NoError(t, err)
		assert.True(t, result.Succeeded)
		client.AssertNotCalled(t, "ActivateSubscription", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("upstream rejection is a structured failure", func(t *testing.T) {
		client := &clientMock{}
		client.On("GetSubscription", mock.Anything, subscriptionID).Return(&marketplacedomain.Subscription{
			ID: subscriptionID, Status: marketplacedomain.StatusPendingFulfillmentStart,
		}, nil)
		client.On("ActivateSubscription", mock.Anything, subscriptionID, "basic", (*int)(nil)).
			Return(&marketplacedomain.RequestResult{Success: false, StatusCode: 400}, nil)

		svc := newTestService(t, client, &ledgerMock{}, defaultDashboard())

		result, err := svc.Activate(context.Background(), subscriptionID, "basic", nil)
		assert.NoError(t, err)
		assert.False(t, result.Succeeded)
		assert.Equal(t, "ActivateRejected", result.Errors[0].Code)
	})
}

func TestChangePlan(t *testing.T) {
	subscriptionID := uuid.New()

	t.Run("requires subscribed status", func(t *testing.T) {
		client := &clientMock{}
		client.On("GetSubscription", mock.Anything, subscriptionID).Return(&marketplacedomain.Subscription{
			ID: subscriptionID, Status: marketplacedomain.StatusPendingFulfillmentStart,
		}, nil)

		svc := newTestService(t, client, &ledgerMock{}, defaultDashboard())

		_, err := svc.ChangePlan(context.Background(), subscriptionID, "premium")
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	})

	t.Run("blocked while an operation is pending upstream", func(t *testing.T) {
		client := &clientMock{}
		client.On("GetSubscription", mock.Anything, subscriptionID).Return(&marketplacedomain.Subscription{
			ID: subscriptionID, Status: marketplacedomain.StatusSubscribed,
		}, nil)
		client.On("ListOperations", mock.Anything, subscriptionID).Return([]marketplacedomain.Operation{
			{ID: uuid.New(), Status: marketplacedomain.OperationInProgress},
		}, nil)

		svc := newTestService(t, client, &ledgerMock{}, defaultDashboard())

		_, err := svc.ChangePlan(context.Background(), subscriptionID, "premium")
		assert.ErrorIs(t, err, domain.ErrOperationPendingUpstream)
		client.AssertNotCalled(t, "UpdateSubscriptionPlan", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("accepted change is recorded in the ledger", func(t *testing.T) {
		operationID := uuid.New()
		client := &clientMock{}
		client.On("GetSubscription", mock.Anything, subscriptionID).Return(&marketplacedomain.Subscription{
			ID: subscriptionID, Status: marketplacedomain.StatusSubscribed,
		}, nil)
		client.On("ListOperations", mock.Anything, subscriptionID).Return([]marketplacedomain.Operation{
			{ID: uuid.New(), Status: marketplacedomain.OperationSucceeded},
		}, nil)
		client.On("UpdateSubscriptionPlan", mock.Anything, subscriptionID, "premium").
			Return(&marketplacedomain.OperationAccepted{
				RequestResult: marketplacedomain.RequestResult{Success: true, StatusCode: 202},
				OperationID:   operationID,
			}, nil)

		ledger := &ledgerMock{}
		ledger.On("RecordAccepted", mock.Anything, subscriptionID, operationID,
			marketplacedomain.ActionChangePlan, "premium", 0, mock.Anything).Return(nil)

		svc := newTestService(t, client, ledger, defaultDashboard())

		result, err := svc.ChangePlan(context.Background(), subscriptionID, "premium")
		assert.NoError(t, err)
		assert.True(t, result.Succeeded)
		ledger.AssertExpectations(t)
	})
}

func TestCancel(t *testing.T) {
	subscriptionID := uuid.New()

	t.Run("cancellation is terminal", func(t *testing.T) {
		client := &clientMock{}
		client.On("GetSubscription", mock.Anything, subscriptionID).Return(&marketplacedomain.Subscription{
			ID: subscriptionID, Status: marketplacedomain.StatusUnsubscribed,
		}, nil)

		svc := newTestService(t, client, &ledgerMock{}, defaultDashboard())

		_, err := svc.Cancel(context.Background(), subscriptionID)
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
		client.AssertNotCalled(t, "DeleteSubscription", mock.Anything, mock.Anything)
	})

	t.Run("accepted cancellation is recorded", func(t *testing.T) {
		operationID := uuid.New()
		client := &clientMock{}
		client.On("GetSubscription", mock.Anything, subscriptionID).Return(&marketplacedomain.Subscription{
			ID: subscriptionID, Status: marketplacedomain.StatusSubscribed,
		}, nil)
		client.On("DeleteSubscription", mock.Anything, subscriptionID).
			Return(&marketplacedomain.OperationAccepted{
				RequestResult: marketplacedomain.RequestResult{Success: true, StatusCode: 202},
				OperationID:   operationID,
			}, nil)

		ledger := &ledgerMock{}
		ledger.On("RecordAccepted", mock.Anything, subscriptionID, operationID,
			marketplacedomain.ActionUnsubscribe, "", 0, mock.Anything).Return(nil)

		svc := newTestService(t, client, ledger, defaultDashboard())

		result, err := svc.Cancel(context.Background(), subscriptionID)
		assert.NoError(t, err)
		assert.True(t, result.Succeeded)
		ledger.AssertExpectations(t)
	})
}

func TestEvaluateOperation(t *testing.T) {
	subscriptionID := uuid.New()
	operationID := uuid.New()

	evaluate := func(t *testing.T, status marketplacedomain.OperationStatus, dashboard config.DashboardConfig) domain.OperationResult {
		t.Helper()
		client := &clientMock{}
		client.On("GetOperation", mock.Anything, subscriptionID, operationID).Return(&marketplacedomain.Operation{
			ID: operationID, SubscriptionID: subscriptionID, Status: status,
		}, nil)

		svc := newTestService(t, client, &ledgerMock{}, dashboard)

		result, err := svc.EvaluateOperation(context.Background(), subscriptionID, operationID)
		assert.NoError(t, err)
		return result
	}

	t.Run("succeeded", func(t *testing.T) {
		result := evaluate(t, marketplacedomain.OperationSucceeded, defaultDashboard())
		assert.True(t, result.Succeeded)
		assert.Empty(t, result.Errors)
	})

	t.Run("failed names both identifiers", func(t *testing.T) {
		result := evaluate(t, marketplacedomain.OperationFailed, defaultDashboard())
		assert.False(t, result.Succeeded)
		assert.Equal(t, "Failed", result.Errors[0].Code)
		assert.Contains(t, result.Errors[0].Description, subscriptionID.String())
		assert.Contains(t, result.Errors[0].Description, operationID.String())
	})

	t.Run("conflict is a failure", func(t *testing.T) {
		result := evaluate(t, marketplacedomain.OperationConflict, defaultDashboard())
		assert.False(t, result.Succeeded)
		assert.Equal(t, "Conflict", result.Errors[0].Code)
	})

	t.Run("in progress counts as success by default", func(t *testing.T) {
		result := evaluate(t, marketplacedomain.OperationInProgress, defaultDashboard())
		assert.True(t, result.Succeeded)
	})

	t.Run("in progress is surfaced when the pending verdict is configured", func(t *testing.T) {
		dashboard := defaultDashboard()
		dashboard.OperationPendingVerdict = config.PendingVerdictPending
		result := evaluate(t, marketplacedomain.OperationInProgress, dashboard)
		assert.False(t, result.Succeeded)
		assert.Equal(t, "OperationPending", result.Errors[0].Code)
	})
}

func TestListSubscriptions(t *testing.T) {
	active := uuid.New()
	gone := uuid.New()

	client := &clientMock{}
	client.On("ListSubscriptions", mock.Anything).Return([]marketplacedomain.Subscription{
		{ID: active, Status: marketplacedomain.StatusSubscribed},
		{ID: gone, Status: marketplacedomain.StatusUnsubscribed},
	}, nil)
	client.On("ListOperations", mock.Anything, active).Return([]marketplacedomain.Operation{
		{ID: uuid.New(), Status: marketplacedomain.OperationInProgress},
	}, nil)

	svc := newTestService(t, client, &ledgerMock{}, defaultDashboard())

	summaries, err := svc.ListSubscriptions(context.Background())
	assert.NoError(t, err)
	assert.Len(t, summaries, 1)
	assert.Equal(t, active, summaries[0].ID)
	assert.True(t, summaries[0].PendingOperations)
}
