package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type RefundStatus string

const (
	RefundStatusPending    RefundStatus = "pending"
	RefundStatusProcessing RefundStatus = "processing"
	RefundStatusCompleted  RefundStatus = "completed"
	RefundStatusFailed     RefundStatus = "failed"
)

type RefundInitiator string

const (
	RefundInitiatorUser   RefundInitiator = "user"
	RefundInitiatorAdmin  RefundInitiator = "admin"
	RefundInitiatorSystem RefundInitiator = "system"
)

type Refund struct {
	ID               int64
	PaymentID        int64
	Amount           decimal.Decimal
	Reason           string
	InitiatedBy      RefundInitiator
	Status           RefundStatus
	ExternalRefundID *string
	FailureReason    *string
	CreatedAt        time.Time
	UpdatedAt        *time.Time
}

// Finalized reports whether the refund reached a terminal state. A pending
// refund may still be cancelled; completed and failed refunds never change.
func (r *Refund) Finalized() bool {
	return r.Status == RefundStatusCompleted || r.Status == RefundStatusFailed
}

type RefundRepository interface {
	Create(ctx context.Context, refund *Refund) error
	GetByID(ctx context.Context, id int64) (*Refund, error)
	GetByPaymentID(ctx context.Context, paymentID int64) ([]Refund, error)
	MarkCompleted(ctx context.Context, id int64, externalRefundID string) error
	MarkFailed(ctx context.Context, id int64, failureReason string) error
}
