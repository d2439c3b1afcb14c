package payment

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/visaflow/visaflow-api/internal/domain"
)

// Metrics holds the core's OpenTelemetry counters. A nil *Metrics is valid
// and records nothing, which keeps tests free of meter plumbing.
type Metrics struct {
	paymentsInitiated        metric.Int64Counter
	paymentsFailed           metric.Int64Counter
	fallbackAttempts         metric.Int64Counter
	webhooksProcessed        metric.Int64Counter
	webhookDuplicates        metric.Int64Counter
	webhookSignatureFailures metric.Int64Counter
	refundsCompleted         metric.Int64Counter
	refundsFailed            metric.Int64Counter
}

func NewMetrics() (*Metrics, error) {
	meter := otel.Meter("visaflow-api/payment")

	m := &Metrics{}
	var err error

	if m.paymentsInitiated, err = meter.Int64Counter("payments.initiated"); err != nil {
		return nil, err
	}
	if m.paymentsFailed, err = meter.Int64Counter("payments.failed"); err != nil {
		return nil, err
	}
	if m.fallbackAttempts, err = meter.Int64Counter("payments.fallback.attempts"); err != nil {
		return nil, err
	}
	if m.webhooksProcessed, err = meter.Int64Counter("webhooks.processed"); err != nil {
		return nil, err
	}
	if m.webhookDuplicates, err = meter.Int64Counter("webhooks.duplicates"); err != nil {
		return nil, err
	}
	if m.webhookSignatureFailures, err = meter.Int64Counter("webhooks.signature_failures"); err != nil {
		return nil, err
	}
	if m.refundsCompleted, err = meter.Int64Counter("refunds.completed"); err != nil {
		return nil, err
	}
	if m.refundsFailed, err = meter.Int64Counter("refunds.failed"); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *Metrics) add(ctx context.Context, counter metric.Int64Counter, method domain.PaymentMethod) {
	if m == nil || counter == nil {
		return
	}
	counter.Add(ctx, 1, metric.WithAttributes(attribute.String("method", string(method))))
}
