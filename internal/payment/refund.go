package payment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/visaflow/visaflow-api/internal/domain"
)

// DefaultRefundWindow is how old a payment may be and still be refundable.
const DefaultRefundWindow = 180 * 24 * time.Hour

type RefundConfig struct {
	Window time.Duration
}

// RefundOrchestrator validates refund eligibility against payment state and
// age, delegates to the owning adapter's refund capability, and keeps the
// payment's refunded-amount accounting consistent under concurrency.
type RefundOrchestrator struct {
	adapters map[domain.PaymentMethod]domain.PaymentGateway
	cfg      RefundConfig
	retrier  *RetryExecutor
	audit    *AuditLogger
	payments domain.PaymentRepository
	refunds  domain.RefundRepository
	metrics  *Metrics
	logger   *slog.Logger
}

type RefundOrchestratorParams struct {
	Adapters map[domain.PaymentMethod]domain.PaymentGateway
	Config   RefundConfig
	Retrier  *RetryExecutor
	Audit    *AuditLogger
	Payments domain.PaymentRepository
	Refunds  domain.RefundRepository
	Metrics  *Metrics
	Logger   *slog.Logger
}

func NewRefundOrchestrator(p RefundOrchestratorParams) *RefundOrchestrator {
	if p.Config.Window <= 0 {
		p.Config.Window = DefaultRefundWindow
	}
	if p.Metrics == nil {
		p.Metrics = &Metrics{}
	}
	return &RefundOrchestrator{
		adapters: p.Adapters,
		cfg:      p.Config,
		retrier:  p.Retrier,
		audit:    p.Audit,
		payments: p.Payments,
		refunds:  p.Refunds,
		metrics:  p.Metrics,
		logger:   p.Logger,
	}
}

type RefundRequest struct {
	PaymentID int64
	// Amount defaults to the full remaining refundable balance when nil.
	Amount      *decimal.Decimal
	Reason      string
	InitiatedBy domain.RefundInitiator
}

// InitiateRefund validates the request, creates a pending refund row, calls
// the owning adapter under retry, and finalizes both records. All rejections
// happen before any gateway call is made.
func (o *RefundOrchestrator) InitiateRefund(ctx context.Context, req RefundRequest) (*domain.Refund, error) {
	pmt, err := o.payments.GetByID(ctx, req.PaymentID)
	if err != nil {
		return nil, err
	}

	if !pmt.Refundable() {
		return nil, domain.NewInvalidStateError(pmt.Method,
			fmt.Sprintf("payment in status %s cannot be refunded", pmt.Status))
	}

	if time.Since(pmt.CreatedAt) > o.cfg.Window {
		return nil, domain.NewRefundWindowExpiredError(pmt.Method,
			fmt.Sprintf("payment is older than the %d-day refund window", int(o.cfg.Window.Hours()/24)))
	}

	if pmt.TransactionID == nil {
		return nil, domain.NewInvalidStateError(pmt.Method, "payment has no gateway transaction reference")
	}

	remaining := pmt.RemainingRefundable()

	amount := remaining
	if req.Amount != nil {
		amount = *req.Amount
	}

	if !amount.IsPositive() {
		return nil, domain.NewValidationError(pmt.Method, "refund amount must be positive")
	}
	if amount.GreaterThan(remaining) {
		return nil, &domain.GatewayError{
			Kind:    domain.ErrKindValidation,
			Method:  pmt.Method,
			Message: fmt.Sprintf("refund of %s exceeds remaining balance %s", amount, remaining),
			Err:     domain.ErrRefundExceedsBalance,
		}
	}

	adapter, ok := o.adapters[pmt.Method]
	if !ok {
		return nil, domain.NewConfigurationMissingError(pmt.Method)
	}

	refunder, ok := adapter.(domain.RefundGateway)
	if !ok {
		return nil, domain.NewRefundNotSupportedError(pmt.Method)
	}

	refund := &domain.Refund{
		PaymentID:   pmt.ID,
		Amount:      amount,
		Reason:      req.Reason,
		InitiatedBy: req.InitiatedBy,
		Status:      domain.RefundStatusPending,
	}
	if err := o.refunds.Create(ctx, refund); err != nil {
		return nil, err
	}

	traceID := uuid.NewString()

	initiated := auditEntry(domain.AuditActionRefundInitiated, pmt.Method, traceID, map[string]any{
		"paymentId":   pmt.ID,
		"refundId":    refund.ID,
		"amount":      amount.String(),
		"initiatedBy": string(req.InitiatedBy),
	})
	initiated.TransactionID = pmt.TransactionID
	initiated.UserID = &pmt.UserID
	o.audit.Record(ctx, initiated)

	var externalID string
	err = o.retrier.Do(ctx, traceID, pmt.Method, "create refund", func(ctx context.Context) error {
		id, err := refunder.CreateRefund(ctx, *pmt.TransactionID, amount, req.Reason)
		if err != nil {
			return domain.ClassifyUnknown(pmt.Method, err)
		}
		externalID = id
		return nil
	})
	if err != nil {
		return nil, o.failRefund(ctx, traceID, pmt, refund, err)
	}

	// The balance re-check and the increment are one atomic store operation,
	// so a concurrent refund that already consumed the balance loses here.
	updated, err := o.payments.ApplyRefund(ctx, pmt.ID, amount)
	if err != nil {
		return nil, o.failRefund(ctx, traceID, pmt, refund, err)
	}

	if err := o.refunds.MarkCompleted(ctx, refund.ID, externalID); err != nil {
		o.logger.Error("refund succeeded at gateway but could not be finalized",
			"error", err, "refund_id", refund.ID, "trace_id", traceID)
	}

	refund.Status = domain.RefundStatusCompleted
	refund.ExternalRefundID = &externalID

	completed := auditEntry(domain.AuditActionRefundCompleted, pmt.Method, traceID, map[string]any{
		"paymentId":        pmt.ID,
		"refundId":         refund.ID,
		"externalRefundId": externalID,
		"paymentStatus":    string(updated.Status),
	})
	completed.TransactionID = pmt.TransactionID
	o.audit.Record(ctx, completed)
	o.metrics.add(ctx, o.metrics.refundsCompleted, pmt.Method)

	return refund, nil
}

func (o *RefundOrchestrator) failRefund(
	ctx context.Context,
	traceID string,
	pmt *domain.Payment,
	refund *domain.Refund,
	cause error,
) error {
	if err := o.refunds.MarkFailed(ctx, refund.ID, cause.Error()); err != nil {
		o.logger.Error("failed to mark refund as failed", "error", err, "refund_id", refund.ID, "trace_id", traceID)
	}

	failed := auditEntry(domain.AuditActionRefundFailed, pmt.Method, traceID, map[string]any{
		"paymentId": pmt.ID,
		"refundId":  refund.ID,
	})
	failed.TransactionID = pmt.TransactionID
	o.audit.Record(ctx, auditError(failed, cause))
	o.metrics.add(ctx, o.metrics.refundsFailed, pmt.Method)

	return cause
}

// CancelRefund aborts a still-pending refund. Nothing was committed
// downstream yet, so no gateway call is made.
func (o *RefundOrchestrator) CancelRefund(ctx context.Context, refundID int64, reason string) (*domain.Refund, error) {
	refund, err := o.refunds.GetByID(ctx, refundID)
	if err != nil {
		return nil, err
	}

	if refund.Status != domain.RefundStatusPending {
		return nil, domain.NewInvalidStateError("",
			fmt.Sprintf("refund in status %s cannot be cancelled", refund.Status))
	}

	cancelReason := "cancelled: " + reason
	if err := o.refunds.MarkFailed(ctx, refund.ID, cancelReason); err != nil {
		return nil, err
	}

	refund.Status = domain.RefundStatusFailed
	refund.FailureReason = &cancelReason

	o.audit.Record(ctx, auditEntry(domain.AuditActionRefundFailed, "", uuid.NewString(), map[string]any{
		"refundId":  refund.ID,
		"paymentId": refund.PaymentID,
		"cancelled": true,
		"reason":    reason,
	}))

	return refund, nil
}

// RefundsForPayment lists a payment's refund history.
func (o *RefundOrchestrator) RefundsForPayment(ctx context.Context, paymentID int64) ([]domain.Refund, error) {
	return o.refunds.GetByPaymentID(ctx, paymentID)
}
