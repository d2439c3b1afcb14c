package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestPaymentStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		name string
		from PaymentStatus
		to   PaymentStatus
		want bool
	}{
		{"pending completes", PaymentStatusPending, PaymentStatusCompleted, true},
		{"pending fails", PaymentStatusPending, PaymentStatusFailed, true},
		{"pending is cancelled", PaymentStatusPending, PaymentStatusCancelled, true},
		{"pending cannot refund", PaymentStatusPending, PaymentStatusRefunded, false},
		{"completed refunds fully", PaymentStatusCompleted, PaymentStatusRefunded, true},
		{"completed refunds partially", PaymentStatusCompleted, PaymentStatusPartiallyRefunded, true},
		{"completed never reverts to pending", PaymentStatusCompleted, PaymentStatusPending, false},
		{"completed cannot fail", PaymentStatusCompleted, PaymentStatusFailed, false},
		{"partial refund continues", PaymentStatusPartiallyRefunded, PaymentStatusPartiallyRefunded, true},
		{"partial refund finishes", PaymentStatusPartiallyRefunded, PaymentStatusRefunded, true},
		{"partial refund cannot revert", PaymentStatusPartiallyRefunded, PaymentStatusCompleted, false},
		{"failed is terminal", PaymentStatusFailed, PaymentStatusPending, false},
		{"cancelled is terminal", PaymentStatusCancelled, PaymentStatusCompleted, false},
		{"refunded is terminal", PaymentStatusRefunded, PaymentStatusCompleted, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestPaymentStatus_Terminal(t *testing.T) {
	assert.True(t, PaymentStatusFailed.Terminal())
	assert.True(t, PaymentStatusCancelled.Terminal())
	assert.True(t, PaymentStatusRefunded.Terminal())
	assert.False(t, PaymentStatusPending.Terminal())
	assert.False(t, PaymentStatusCompleted.Terminal())
	assert.False(t, PaymentStatusPartiallyRefunded.Terminal())
}

func TestPayment_RemainingRefundable(t *testing.T) {
	pmt := &Payment{
		Amount:         decimal.NewFromInt(100),
		RefundedAmount: decimal.NewFromInt(30),
	}

	assert.True(t, pmt.RemainingRefundable().Equal(decimal.NewFromInt(70)))

	pmt.RefundedAmount = decimal.NewFromInt(100)
	assert.True(t, pmt.RemainingRefundable().IsZero())
}

func TestPayment_Refundable(t *testing.T) {
	for status, want := range map[PaymentStatus]bool{
		PaymentStatusPending:           false,
		PaymentStatusCompleted:         true,
		PaymentStatusPartiallyRefunded: true,
		PaymentStatusFailed:            false,
		PaymentStatusCancelled:         false,
		PaymentStatusRefunded:          false,
	} {
		pmt := &Payment{Status: status}
		assert.Equal(t, want, pmt.Refundable(), "status %s", status)
	}
}
