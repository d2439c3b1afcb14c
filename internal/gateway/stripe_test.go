package gateway

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"

	"github.com/visaflow/visaflow-api/internal/domain"
)

func TestStripeGateway_ProcessWebhook(t *testing.T) {
	g := NewStripeGateway("https://ok", "https://fail", "whsec_test")

	tests := []struct {
		name       string
		payload    string
		wantStatus domain.PaymentStatus
		wantTxID   string
	}{
		{
			name:       "checkout completed",
			payload:    `{"id":"evt_1","type":"checkout.session.completed","data":{"object":{"id":"cs_1"}}}`,
			wantStatus: domain.PaymentStatusCompleted,
			wantTxID:   "cs_1",
		},
		{
			name:       "async payment succeeded",
			payload:    `{"id":"evt_2","type":"checkout.session.async_payment_succeeded","data":{"object":{"id":"cs_1"}}}`,
			wantStatus: domain.PaymentStatusCompleted,
			wantTxID:   "cs_1",
		},
		{
			name:       "session expired",
			payload:    `{"id":"evt_3","type":"checkout.session.expired","data":{"object":{"id":"cs_1"}}}`,
			wantStatus: domain.PaymentStatusCancelled,
			wantTxID:   "cs_1",
		},
		{
			name:       "async payment failed",
			payload:    `{"id":"evt_4","type":"checkout.session.async_payment_failed","data":{"object":{"id":"cs_1"}}}`,
			wantStatus: domain.PaymentStatusFailed,
			wantTxID:   "cs_1",
		},
		{
			name:     "unrelated event carries no status",
			payload:  `{"id":"evt_5","type":"payment_intent.created","data":{"object":{"id":"pi_1"}}}`,
			wantTxID: "pi_1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, err := g.ProcessWebhook(context.Background(), []byte(tt.payload), "sig")

			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, event.Status)
			assert.Equal(t, tt.wantTxID, event.TransactionID)
		})
	}
}

func TestStripeGateway_ProcessWebhookRejectsMalformedPayload(t *testing.T) {
	g := NewStripeGateway("https://ok", "https://fail", "whsec_test")

	_, err := g.ProcessWebhook(context.Background(), []byte("not-json"), "sig")

	require.Error(t, err)
	assert.Equal(t, domain.ErrKindGateway, domain.ErrorKindOf(err))
}

func TestStripeGateway_Classify(t *testing.T) {
	g := NewStripeGateway("https://ok", "https://fail", "whsec_test")

	tests := []struct {
		name          string
		err           error
		wantKind      domain.ErrorKind
		wantRetryable bool
	}{
		{
			name:          "transport failure",
			err:           errors.New("dial tcp: i/o timeout"),
			wantKind:      domain.ErrKindNetwork,
			wantRetryable: true,
		},
		{
			name:          "card declined",
			err:           &stripe.Error{Type: stripe.ErrorTypeCard, Msg: "Your card was declined."},
			wantKind:      domain.ErrKindGateway,
			wantRetryable: false,
		},
		{
			name:          "invalid request",
			err:           &stripe.Error{Type: stripe.ErrorTypeInvalidRequest, Msg: "Invalid currency."},
			wantKind:      domain.ErrKindValidation,
			wantRetryable: false,
		},
		{
			name:          "stripe api error",
			err:           &stripe.Error{Type: stripe.ErrorTypeAPI, Msg: "An error occurred."},
			wantKind:      domain.ErrKindGateway,
			wantRetryable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classified := g.classify(tt.err)

			assert.Equal(t, tt.wantKind, domain.ErrorKindOf(classified))
			assert.Equal(t, tt.wantRetryable, domain.IsRetryable(classified))
		})
	}
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(10000), minorUnits(decimal.NewFromInt(100)))
	assert.Equal(t, int64(14950), minorUnits(decimal.NewFromFloat(149.50)))
	assert.Equal(t, int64(99), minorUnits(decimal.NewFromFloat(0.99)))
}
