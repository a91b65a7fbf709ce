package context

import "context"

type contextKey string

const (
	requestIDKey      contextKey = "observability_request_id"
	subscriptionIDKey contextKey = "observability_subscription_id"
	callerKey         contextKey = "observability_caller"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	if ctx == nil || requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDKey).(string)
	return value
}

func WithSubscriptionID(ctx context.Context, subscriptionID string) context.Context {
	if ctx == nil || subscriptionID == "" {
		return ctx
	}
	return context.WithValue(ctx, subscriptionIDKey, subscriptionID)
}

func SubscriptionIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(subscriptionIDKey).(string)
	return value
}

func WithCaller(ctx context.Context, email string) context.Context {
	if ctx == nil || email == "" {
		return ctx
	}
	return context.WithValue(ctx, callerKey, email)
}

func CallerFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(callerKey).(string)
	return value
}
