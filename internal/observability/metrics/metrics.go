package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	fulfillmentRequests  metric.Int64Counter
	webhookNotifications metric.Int64Counter
	notificationsSent    metric.Int64Counter
	ledgerEntries        metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "marketfill"
	}
	meter := provider.Meter(name)

	fulfillmentRequests, err := meter.Int64Counter("marketfill_fulfillment_requests_total")
	if err != nil {
		return nil, err
	}
	webhookNotifications, err := meter.Int64Counter("marketfill_webhook_notifications_total")
	if err != nil {
		return nil, err
	}
	notificationsSent, err := meter.Int64Counter("marketfill_notifications_sent_total")
	if err != nil {
		return nil, err
	}
	ledgerEntries, err := meter.Int64Counter("marketfill_ledger_entries_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		fulfillmentRequests:  fulfillmentRequests,
		webhookNotifications: webhookNotifications,
		notificationsSent:    notificationsSent,
		ledgerEntries:        ledgerEntries,
	}, nil
}

// RecordFulfillmentRequest counts one upstream fulfillment API call.
func (m *Metrics) RecordFulfillmentRequest(ctx context.Context, operation string, success bool) {
	if m == nil {
		return
	}
	m.fulfillmentRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.Bool("success", success),
	))
}

// RecordWebhookNotification counts one inbound webhook, by action and outcome.
func (m *Metrics) RecordWebhookNotification(ctx context.Context, action, outcome string) {
	if m == nil {
		return
	}
	m.webhookNotifications.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action", action),
		attribute.String("outcome", outcome),
	))
}

// RecordNotificationSent counts one dispatched lifecycle notification.
func (m *Metrics) RecordNotificationSent(ctx context.Context, event string) {
	if m == nil {
		return
	}
	m.notificationsSent.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event", event),
	))
}

// RecordLedgerEntry counts one appended operation ledger entry.
func (m *Metrics) RecordLedgerEntry(ctx context.Context, actionType string) {
	if m == nil {
		return
	}
	m.ledgerEntries.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action_type", actionType),
	))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	protocol = strings.ToLower(strings.TrimSpace(protocol))
	endpoint = strings.TrimSpace(endpoint)

	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(ctx, opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}
