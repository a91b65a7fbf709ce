package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/smallbiznis/marketfill/internal/config"
	fulfillmentdomain "github.com/smallbiznis/marketfill/internal/fulfillment/domain"
	ledgerdomain "github.com/smallbiznis/marketfill/internal/ledger/domain"
	marketplacedomain "github.com/smallbiznis/marketfill/internal/marketplace/domain"
	notificationdomain "github.com/smallbiznis/marketfill/internal/notification/domain"
	"github.com/smallbiznis/marketfill/internal/observability/metrics"
	"github.com/smallbiznis/marketfill/internal/webhook"
)

type fakeFulfillmentService struct {
	provisionResult *fulfillmentdomain.ProvisionResult
	changePlanErr   error
	acknowledged    []marketplacedomain.OperationUpdateStatus
	activations     []string
	planUpdates     []string
}

func (f *fakeFulfillmentService) Resolve(ctx context.Context, token string) (*marketplacedomain.ResolvedSubscription, error) {
	return &marketplacedomain.ResolvedSubscription{PlanID: "basic"}, nil
}

func (f *fakeFulfillmentService) Provision(ctx context.Context, token string) (*fulfillmentdomain.ProvisionResult, error) {
	return f.provisionResult, nil
}

func (f *fakeFulfillmentService) Activate(ctx context.Context, id uuid.UUID, planID string, quantity *int) (fulfillmentdomain.OperationResult, error) {
	f.activations = append(f.activations, planID)
	return fulfillmentdomain.SuccessResult(), nil
}

func (f *fakeFulfillmentService) ChangePlan(ctx context.Context, id uuid.UUID, planID string) (fulfillmentdomain.OperationResult, error) {
	if f.changePlanErr != nil {
		return fulfillmentdomain.OperationResult{}, f.changePlanErr
	}
	f.planUpdates = append(f.planUpdates, planID)
	return fulfillmentdomain.SuccessResult(), nil
}

func (f *fakeFulfillmentService) ChangeQuantity(ctx context.Context, id uuid.UUID, quantity int) (fulfillmentdomain.OperationResult, error) {
	return fulfillmentdomain.SuccessResult(), nil
}

func (f *fakeFulfillmentService) Cancel(ctx context.Context, id uuid.UUID) (fulfillmentdomain.OperationResult, error) {
	return fulfillmentdomain.SuccessResult(), nil
}

func (f *fakeFulfillmentService) EvaluateOperation(ctx context.Context, id, operationID uuid.UUID) (fulfillmentdomain.OperationResult, error) {
	return fulfillmentdomain.SuccessResult(), nil
}

func (f *fakeFulfillmentService) AcknowledgeOperation(ctx context.Context, id, operationID uuid.UUID, status marketplacedomain.OperationUpdateStatus) (fulfillmentdomain.OperationResult, error) {
	f.acknowledged = append(f.acknowledged, status)
	return fulfillmentdomain.SuccessResult(), nil
}

func (f *fakeFulfillmentService) ListSubscriptions(ctx context.Context) ([]fulfillmentdomain.SubscriptionSummary, error) {
	return []fulfillmentdomain.SubscriptionSummary{}, nil
}

type fakeLedgerService struct{}

func (f *fakeLedgerService) RecordAccepted(ctx context.Context, subscriptionID, operationID uuid.UUID, action marketplacedomain.ActionType, planID string, quantity int, rawResponse []byte) error {
	return nil
}

func (f *fakeLedgerService) ListBySubscription(ctx context.Context, subscriptionID uuid.UUID) ([]ledgerdomain.OperationRecord, error) {
	return nil, nil
}

func (f *fakeLedgerService) CrossReference(ctx context.Context, subscriptionID uuid.UUID) ([]ledgerdomain.OperationView, error) {
	return []ledgerdomain.OperationView{}, nil
}

type fakeClient struct {
	marketplacedomain.Client

	getOperationErr error
}

func (f *fakeClient) GetOperation(ctx context.Context, subscriptionID, operationID uuid.UUID) (*marketplacedomain.Operation, error) {
	if f.getOperationErr != nil {
		return nil, f.getOperationErr
	}
	return &marketplacedomain.Operation{
		ID: operationID, SubscriptionID: subscriptionID,
		Status: marketplacedomain.OperationSucceeded,
	}, nil
}

type noopNotifier struct{}

func (noopNotifier) SubscriptionActivated(context.Context, notificationdomain.Model) error {
	return nil
}
func (noopNotifier) ChangePlanRequested(context.Context, notificationdomain.Model) error { return nil }
func (noopNotifier) ChangeQuantityRequested(context.Context, notificationdomain.Model) error {
	return nil
}
func (noopNotifier) Suspended(context.Context, notificationdomain.Model) error   { return nil }
func (noopNotifier) Reinstated(context.Context, notificationdomain.Model) error  { return nil }
func (noopNotifier) Unsubscribed(context.Context, notificationdomain.Model) error { return nil }
func (noopNotifier) OperationFailed(context.Context, notificationdomain.Model, marketplacedomain.ActionType, marketplacedomain.OperationStatus) error {
	return nil
}

func newTestServer(t *testing.T, fulfillmentSvc *fakeFulfillmentService, client *fakeClient) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	engine := gin.New()
	engine.Use(ErrorHandlingMiddleware())

	m, err := metrics.New(metrics.Config{}, metricnoop.NewMeterProvider())
	assert.NoError(t, err)

	processor := webhook.New(webhook.Params{
		Log:      zap.NewNop(),
		Client:   client,
		Notifier: noopNotifier{},
		Metrics:  m,
	})

	s := NewServer(ServerParams{
		Gin: engine,
		Cfg: config.Config{
			AdminIdentity: "ops@example.com",
		},
		Log:            zap.NewNop(),
		Dashboard:      config.NewStaticDashboardHolder(config.DefaultDashboardConfig()),
		FulfillmentSvc: fulfillmentSvc,
		LedgerSvc:      &fakeLedgerService{},
		Client:         client,
		Processor:      processor,
	})
	registerRoutes(s)
	return s
}

func do(s *Server, method, path, email string, body string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if email != "" {
		req.Header.Set(HeaderUserEmail, email)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)
	return w
}

func TestIdentityRequired(t *testing.T) {
	s := newTestServer(t, &fakeFulfillmentService{}, &fakeClient{})

	w := do(s, http.MethodGet, "/api/subscriptions", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(s, http.MethodGet, "/api/subscriptions", "user@example.com", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdminGuard(t *testing.T) {
	subscriptionID := uuid.New()
	operationID := uuid.New()
	path := "/admin/subscriptions/" + subscriptionID.String() + "/operations/" + operationID.String() + "/confirm"

	t.Run("non-admin is forbidden", func(t *testing.T) {
		svc := &fakeFulfillmentService{}
		s := newTestServer(t, svc, &fakeClient{})

		w := do(s, http.MethodGet, path, "user@example.com", "")
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Empty(t, svc.acknowledged)
	})

	t.Run("admin confirms with success status", func(t *testing.T) {
		svc := &fakeFulfillmentService{}
		s := newTestServer(t, svc, &fakeClient{})

		w := do(s, http.MethodGet, path, "ops@example.com", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, []marketplacedomain.OperationUpdateStatus{marketplacedomain.OperationUpdateSuccess}, svc.acknowledged)
	})

	t.Run("decline sends failure status", func(t *testing.T) {
		svc := &fakeFulfillmentService{}
		s := newTestServer(t, svc, &fakeClient{})

		decline := strings.Replace(path, "/confirm", "/decline", 1)
		w := do(s, http.MethodGet, decline, "ops@example.com", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, []marketplacedomain.OperationUpdateStatus{marketplacedomain.OperationUpdateFailure}, svc.acknowledged)
	})
}

func TestMailLinkActions(t *testing.T) {
	subscriptionID := uuid.New()
	base := "/admin/subscriptions/" + subscriptionID.String()

	t.Run("activation link is admin only", func(t *testing.T) {
		svc := &fakeFulfillmentService{}
		s := newTestServer(t, svc, &fakeClient{})

		w := do(s, http.MethodGet, base+"/activate?planId=basic", "user@example.com", "")
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Empty(t, svc.activations)
	})

	t.Run("activation link runs the activation", func(t *testing.T) {
		svc := &fakeFulfillmentService{}
		s := newTestServer(t, svc, &fakeClient{})

		w := do(s, http.MethodGet, base+"/activate?planId=basic&quantity=3", "ops@example.com", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, []string{"basic"}, svc.activations)
	})

	t.Run("activation link without a plan is rejected", func(t *testing.T) {
		svc := &fakeFulfillmentService{}
		s := newTestServer(t, svc, &fakeClient{})

		w := do(s, http.MethodGet, base+"/activate", "ops@example.com", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Empty(t, svc.activations)
	})

	t.Run("activation link rejects a bad quantity", func(t *testing.T) {
		svc := &fakeFulfillmentService{}
		s := newTestServer(t, svc, &fakeClient{})

		w := do(s, http.MethodGet, base+"/activate?planId=basic&quantity=zero", "ops@example.com", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Empty(t, svc.activations)
	})

	t.Run("plan link applies the linked plan", func(t *testing.T) {
		svc := &fakeFulfillmentService{}
		s := newTestServer(t, svc, &fakeClient{})

		w := do(s, http.MethodGet, base+"/plan?planId=premium", "ops@example.com", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, []string{"premium"}, svc.planUpdates)
	})
}

func TestProvision(t *testing.T) {
	subscriptionID := uuid.New()
	svc := &fakeFulfillmentService{
		provisionResult: &fulfillmentdomain.ProvisionResult{
			SubscriptionID: subscriptionID,
			PlanID:         "basic",
			Activation:     fulfillmentdomain.SuccessResult(),
		},
	}
	s := newTestServer(t, svc, &fakeClient{})

	w := do(s, http.MethodPost, "/landing/provision", "user@example.com", `{"token":"tok-123"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data fulfillmentdomain.ProvisionResult `json:"data"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, subscriptionID, resp.Data.SubscriptionID)
	assert.True(t, resp.Data.Activation.Succeeded)

	t.Run("missing token", func(t *testing.T) {
		w := do(s, http.MethodPost, "/landing/provision", "user@example.com", `{}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestUpdatePlanConflictMapping(t *testing.T) {
	subscriptionID := uuid.New()
	svc := &fakeFulfillmentService{changePlanErr: fulfillmentdomain.ErrOperationPendingUpstream}
	s := newTestServer(t, svc, &fakeClient{})

	w := do(s, http.MethodPost, "/api/subscriptions/"+subscriptionID.String()+"/plan", "user@example.com", `{"planId":"premium"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "operation_pending")
}

func TestWebhookAlwaysAcknowledges(t *testing.T) {
	t.Run("unparseable body", func(t *testing.T) {
		s := newTestServer(t, &fakeFulfillmentService{}, &fakeClient{})

		w := do(s, http.MethodPost, "/webhook", "", `not json`)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("uncorroborated payload", func(t *testing.T) {
		client := &fakeClient{getOperationErr: marketplacedomain.ErrOperationNotFound}
		s := newTestServer(t, &fakeFulfillmentService{}, client)

		payload := `{"id":"` + uuid.NewString() + `","subscriptionId":"` + uuid.NewString() + `","action":"ChangePlan","status":"Succeeded"}`
		w := do(s, http.MethodPost, "/webhook", "", payload)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}
