// Package marketplace implements the HTTP client for the upstream
// fulfillment API.
package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/smallbiznis/marketfill/internal/config"
	"github.com/smallbiznis/marketfill/internal/credentials"
	"github.com/smallbiznis/marketfill/internal/marketplace/domain"
	obscontext "github.com/smallbiznis/marketfill/internal/observability/context"
	obslogger "github.com/smallbiznis/marketfill/internal/observability/logger"
)

const (
	headerRequestID     = "X-Request-Id"
	headerCorrelationID = "X-Correlation-Id"
)

// Client calls the upstream fulfillment API over HTTP. It never
// retries: retry policy belongs to callers, and every upstream
// rejection is reported as a result rather than swallowed.
type Client struct {
	httpClient *http.Client
	tokens     credentials.TokenProvider
	baseURL    string
	apiVersion string
}

var _ domain.Client = (*Client)(nil)

// NewClient builds the upstream client from configuration.
func NewClient(cfg config.Config, tokens credentials.TokenProvider) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		tokens:     tokens,
		baseURL:    cfg.Marketplace.BaseURL,
		apiVersion: cfg.Marketplace.APIVersion,
	}
}

// requestIDs returns the identifiers attached to one upstream call. The
// request id follows the inbound request when the context carries one,
// the correlation id is always fresh.
func requestIDs(ctx context.Context) (requestID, correlationID string) {
	requestID = obscontext.RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	return requestID, uuid.NewString()
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marketplace: encode request body: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("marketplace: build request: %w", err)
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("marketplace: acquire token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	requestID, correlationID := requestIDs(ctx)
	req.Header.Set(headerRequestID, requestID)
	req.Header.Set(headerCorrelationID, correlationID)

	q := req.URL.Query()
	q.Set("api-version", c.apiVersion)
	req.URL.RawQuery = q.Encode()
	return req, nil
}

// do executes one request and returns the status, headers and body.
// Only transport failures are errors.
func (c *Client) do(ctx context.Context, req *http.Request) (int, http.Header, []byte, error) {
	log := obslogger.FromContext(ctx)
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("marketplace: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return 0, nil, nil, fmt.Errorf("marketplace: read response: %w", err)
	}

	log.Debug("upstream call",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return resp.StatusCode, resp.Header, body, nil
}

func (c *Client) ResolveSubscription(ctx context.Context, purchaseToken string) (*domain.ResolvedSubscription, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/api/saas/subscriptions/resolve", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-ms-marketplace-token", purchaseToken)

	status, _, body, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	switch status {
	case http.StatusOK:
		var resolved domain.ResolvedSubscription
		if err := json.Unmarshal(body, &resolved); err != nil {
			return nil, fmt.Errorf("marketplace: decode resolved subscription: %w", err)
		}
		return &resolved, nil
	case http.StatusNotFound:
		return nil, domain.ErrSubscriptionNotFound
	default:
		return nil, fmt.Errorf("marketplace: resolve returned %d: %s", status, truncate(body))
	}
}

func (c *Client) GetSubscription(ctx context.Context, subscriptionID uuid.UUID) (*domain.Subscription, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/saas/subscriptions/"+subscriptionID.String(), nil)
	if err != nil {
		return nil, err
	}
	status, _, body, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	switch status {
	case http.StatusOK:
		var sub domain.Subscription
		if err := json.Unmarshal(body, &sub); err != nil {
			return nil, fmt.Errorf("marketplace: decode subscription: %w", err)
		}
		return &sub, nil
	case http.StatusNotFound:
		return nil, domain.ErrSubscriptionNotFound
	default:
		return nil, fmt.Errorf("marketplace: get subscription returned %d: %s", status, truncate(body))
	}
}

type subscriptionPage struct {
	Subscriptions []domain.Subscription `json:"subscriptions"`
	NextLink      string                `json:"@nextLink"`
}

func (c *Client) ListSubscriptions(ctx context.Context) ([]domain.Subscription, error) {
	var all []domain.Subscription
	path := "/api/saas/subscriptions"
	for {
		req, err := c.newRequest(ctx, http.MethodGet, path, nil)
		if err != nil {
			return nil, err
		}
		status, _, body, err := c.do(ctx, req)
		if err != nil {
			return nil, err
		}
		if status != http.StatusOK {
			return nil, fmt.Errorf("marketplace: list subscriptions returned %d: %s", status, truncate(body))
		}
		var page subscriptionPage
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("marketplace: decode subscription page: %w", err)
		}
		all = append(all, page.Subscriptions...)
		if page.NextLink == "" {
			return all, nil
		}
		path, err = continuationPath(page.NextLink)
		if err != nil {
			return nil, err
		}
	}
}

// continuationPath normalizes a @nextLink. The upstream hands back
// either a relative path or a fully qualified URL; the latter must be
// stripped to its path and query before it can ride on the client's
// base URL again.
func continuationPath(nextLink string) (string, error) {
	u, err := url.Parse(nextLink)
	if err != nil {
		return "", fmt.Errorf("marketplace: parse continuation link %q: %w", nextLink, err)
	}
	if u.IsAbs() {
		return u.RequestURI(), nil
	}
	return nextLink, nil
}

type planList struct {
	Plans []domain.Plan `json:"plans"`
}

func (c *Client) ListAvailablePlans(ctx context.Context, subscriptionID uuid.UUID) ([]domain.Plan, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/saas/subscriptions/"+subscriptionID.String()+"/listAvailablePlans", nil)
	if err != nil {
		return nil, err
	}
	status, _, body, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("marketplace: list plans returned %d: %s", status, truncate(body))
	}
	var list planList
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("marketplace: decode plan list: %w", err)
	}
	return list.Plans, nil
}

type activatePayload struct {
	PlanID   string `json:"planId"`
	Quantity *int   `json:"quantity,omitempty"`
}

func (c *Client) ActivateSubscription(ctx context.Context, subscriptionID uuid.UUID, planID string, quantity *int) (*domain.RequestResult, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/api/saas/subscriptions/"+subscriptionID.String()+"/activate",
		activatePayload{PlanID: planID, Quantity: quantity})
	if err != nil {
		return nil, err
	}
	status, _, body, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	return &domain.RequestResult{
		Success:     status == http.StatusOK,
		StatusCode:  status,
		RawResponse: body,
	}, nil
}

func (c *Client) UpdateSubscriptionPlan(ctx context.Context, subscriptionID uuid.UUID, planID string) (*domain.OperationAccepted, error) {
	return c.patchSubscription(ctx, subscriptionID, map[string]any{"planId": planID})
}

func (c *Client) UpdateSubscriptionQuantity(ctx context.Context, subscriptionID uuid.UUID, quantity int) (*domain.OperationAccepted, error) {
	return c.patchSubscription(ctx, subscriptionID, map[string]any{"quantity": quantity})
}

func (c *Client) patchSubscription(ctx context.Context, subscriptionID uuid.UUID, payload map[string]any) (*domain.OperationAccepted, error) {
	req, err := c.newRequest(ctx, http.MethodPatch, "/api/saas/subscriptions/"+subscriptionID.String(), payload)
	if err != nil {
		return nil, err
	}
	status, header, body, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	return c.acceptedResult(subscriptionID, status, header, body)
}

func (c *Client) DeleteSubscription(ctx context.Context, subscriptionID uuid.UUID) (*domain.OperationAccepted, error) {
	req, err := c.newRequest(ctx, http.MethodDelete, "/api/saas/subscriptions/"+subscriptionID.String(), nil)
	if err != nil {
		return nil, err
	}
	status, header, body, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	return c.acceptedResult(subscriptionID, status, header, body)
}

// acceptedResult folds a 202 response into an OperationAccepted. The
// Operation-Location header must name an operation under the same
// subscription; a malformed value fails the whole call.
func (c *Client) acceptedResult(subscriptionID uuid.UUID, status int, header http.Header, body []byte) (*domain.OperationAccepted, error) {
	result := &domain.OperationAccepted{
		RequestResult: domain.RequestResult{
			Success:     status == http.StatusAccepted,
			StatusCode:  status,
			RawResponse: body,
		},
	}
	if !result.Success {
		return result, nil
	}

	location := header.Get("Operation-Location")
	operationID, err := ExtractOperationID(location, subscriptionID)
	if err != nil {
		return nil, err
	}
	result.OperationID = operationID
	return result, nil
}

func (c *Client) GetOperation(ctx context.Context, subscriptionID, operationID uuid.UUID) (*domain.Operation, error) {
	req, err := c.newRequest(ctx, http.MethodGet,
		"/api/saas/subscriptions/"+subscriptionID.String()+"/operations/"+operationID.String(), nil)
	if err != nil {
		return nil, err
	}
	status, header, body, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	switch status {
	case http.StatusOK:
		var op domain.Operation
		if err := json.Unmarshal(body, &op); err != nil {
			return nil, fmt.Errorf("marketplace: decode operation: %w", err)
		}
		if seconds, err := strconv.Atoi(header.Get("Retry-After")); err == nil {
			op.RetryAfter = time.Duration(seconds) * time.Second
		}
		return &op, nil
	case http.StatusNotFound:
		return nil, domain.ErrOperationNotFound
	default:
		return nil, fmt.Errorf("marketplace: get operation returned %d: %s", status, truncate(body))
	}
}

type operationList struct {
	Operations []domain.Operation `json:"operations"`
}

func (c *Client) ListOperations(ctx context.Context, subscriptionID uuid.UUID) ([]domain.Operation, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/saas/subscriptions/"+subscriptionID.String()+"/operations", nil)
	if err != nil {
		return nil, err
	}
	status, _, body, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("marketplace: list operations returned %d: %s", status, truncate(body))
	}
	var list operationList
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("marketplace: decode operation list: %w", err)
	}
	return list.Operations, nil
}

type operationUpdatePayload struct {
	PlanID   string                       `json:"planId,omitempty"`
	Quantity int                          `json:"quantity,omitempty"`
	Status   domain.OperationUpdateStatus `json:"status"`
}

func (c *Client) UpdateOperation(ctx context.Context, subscriptionID, operationID uuid.UUID, status domain.OperationUpdateStatus, planID string, quantity int) (*domain.RequestResult, error) {
	req, err := c.newRequest(ctx, http.MethodPatch,
		"/api/saas/subscriptions/"+subscriptionID.String()+"/operations/"+operationID.String(),
		operationUpdatePayload{PlanID: planID, Quantity: quantity, Status: status})
	if err != nil {
		return nil, err
	}
	code, _, body, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	return &domain.RequestResult{
		Success:     code == http.StatusOK,
		StatusCode:  code,
		RawResponse: body,
	}, nil
}

func truncate(body []byte) string {
	const max = 512
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
