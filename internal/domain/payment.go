package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethod identifies one configured gateway adapter, e.g. "card" or "wallet".
type PaymentMethod string

type PaymentStatus string

const (
	PaymentStatusPending           PaymentStatus = "pending"
	PaymentStatusCompleted         PaymentStatus = "completed"
	PaymentStatusFailed            PaymentStatus = "failed"
	PaymentStatusCancelled         PaymentStatus = "cancelled"
	PaymentStatusRefunded          PaymentStatus = "refunded"
	PaymentStatusPartiallyRefunded PaymentStatus = "partially_refunded"
)

// paymentTransitions is the full set of legal status transitions. A completed
// payment never goes back to pending; provider "reversals" before settlement
// are rejected until a deliberate reversal path exists.
var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending:           {PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusCancelled},
	PaymentStatusCompleted:         {PaymentStatusRefunded, PaymentStatusPartiallyRefunded},
	PaymentStatusPartiallyRefunded: {PaymentStatusPartiallyRefunded, PaymentStatusRefunded},
}

func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	for _, allowed := range paymentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether the original charge lifecycle is over. Refund
// activity on completed/partially_refunded payments is tracked separately.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentStatusFailed || s == PaymentStatusCancelled || s == PaymentStatusRefunded
}

// GatewayData holds adapter-specific bookkeeping. It is serialized to JSON at
// the store boundary only.
type GatewayData map[string]string

type Payment struct {
	ID             int64
	UserID         int64
	ApplicationID  int64
	Amount         decimal.Decimal
	Currency       string
	Status         PaymentStatus
	Method         PaymentMethod
	TransactionID  *string
	GatewayData    GatewayData
	RefundedAmount decimal.Decimal
	CreatedAt      time.Time
	UpdatedAt      *time.Time
}

// RemainingRefundable returns how much of the original amount can still be
// returned. Never negative: refunded_amount <= amount is enforced by the store.
func (p *Payment) RemainingRefundable() decimal.Decimal {
	remaining := p.Amount.Sub(p.RefundedAmount)
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}

func (p *Payment) Refundable() bool {
	return p.Status == PaymentStatusCompleted || p.Status == PaymentStatusPartiallyRefunded
}

type PaymentRepository interface {
	Create(ctx context.Context, payment *Payment) error
	GetByID(ctx context.Context, id int64) (*Payment, error)
	GetByTransactionID(ctx context.Context, method PaymentMethod, transactionID string) (*Payment, error)
	// SetTransaction records the gateway-assigned transaction id and adapter
	// bookkeeping once an adapter has accepted the payment. The method is
	// updated too, since a fallback adapter may differ from the requested one.
	SetTransaction(ctx context.Context, id int64, method PaymentMethod, transactionID string, data GatewayData) error
	UpdateStatus(ctx context.Context, id int64, status PaymentStatus) error
	UpdateStatusByTransactionID(ctx context.Context, method PaymentMethod, transactionID string, status PaymentStatus) error
	// ApplyRefund atomically adds amount to refunded_amount and moves the
	// payment to refunded or partially_refunded. The balance re-check is part
	// of the same UPDATE, so two concurrent refunds cannot both pass on stale
	// data; an over-refund returns ErrRefundExceedsBalance.
	ApplyRefund(ctx context.Context, id int64, amount decimal.Decimal) (*Payment, error)
}
