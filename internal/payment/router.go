package payment

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/visaflow/visaflow-api/internal/domain"
)

type FallbackStrategy string

const (
	FallbackSequential FallbackStrategy = "sequential"
	FallbackRandom     FallbackStrategy = "random"
)

type RouterConfig struct {
	FallbackStrategy FallbackStrategy
	// FallbackPreference orders fallback candidates under the sequential
	// strategy. Methods not listed here come afterwards in name order.
	FallbackPreference []domain.PaymentMethod
}

// Router is the single entry point for creating payments and processing
// inbound webhooks. The adapter map is built once at startup and never
// mutated; every call is an independent unit of concurrency.
type Router struct {
	adapters map[domain.PaymentMethod]domain.PaymentGateway
	cfg      RouterConfig
	retrier  *RetryExecutor
	audit    *AuditLogger
	security *WebhookSecurityService
	payments domain.PaymentRepository
	metrics  *Metrics
	logger   *slog.Logger
}

type RouterParams struct {
	Adapters map[domain.PaymentMethod]domain.PaymentGateway
	Config   RouterConfig
	Retrier  *RetryExecutor
	Audit    *AuditLogger
	Security *WebhookSecurityService
	Payments domain.PaymentRepository
	Metrics  *Metrics
	Logger   *slog.Logger
}

func NewRouter(p RouterParams) *Router {
	if p.Config.FallbackStrategy == "" {
		p.Config.FallbackStrategy = FallbackSequential
	}
	if p.Metrics == nil {
		p.Metrics = &Metrics{}
	}
	return &Router{
		adapters: p.Adapters,
		cfg:      p.Config,
		retrier:  p.Retrier,
		audit:    p.Audit,
		security: p.Security,
		payments: p.Payments,
		metrics:  p.Metrics,
		logger:   p.Logger,
	}
}

// AuditLogger exposes the audit logger for direct use by the HTTP layer.
func (r *Router) AuditLogger() *AuditLogger {
	return r.audit
}

// SecurityService exposes the webhook security service so request handlers
// can answer providers synchronously.
func (r *Router) SecurityService() *WebhookSecurityService {
	return r.security
}

type InitiatePaymentResult struct {
	Payment    *domain.Payment
	PaymentURL string
	TraceID    string
}

// InitiatePayment creates a pending payment record and drives the primary
// adapter under retry. When the primary exhausts its retries, configured
// fallback adapters are walked in order; the first success wins. If every
// adapter fails, the primary adapter's error is surfaced so operators can
// diagnose the root cause.
func (r *Router) InitiatePayment(
	ctx context.Context,
	method domain.PaymentMethod,
	params domain.CreatePaymentParams,
) (*InitiatePaymentResult, error) {
	adapter, ok := r.adapters[method]
	if !ok {
		return nil, domain.NewConfigurationMissingError(method)
	}

	// The email precondition is checked before any attempt, independent of
	// retry and fallback.
	if adapter.Info().RequiresEmail && params.UserEmail == "" {
		return nil, domain.NewValidationError(method, "user email is required for this payment method")
	}

	traceID := uuid.NewString()

	pmt := &domain.Payment{
		UserID:         params.UserID,
		ApplicationID:  params.ApplicationID,
		Amount:         params.Amount,
		Currency:       params.Currency,
		Status:         domain.PaymentStatusPending,
		Method:         method,
		RefundedAmount: decimal.Zero,
	}

	if err := r.payments.Create(ctx, pmt); err != nil {
		return nil, err
	}

	initiated := auditEntry(domain.AuditActionInitiated, method, traceID, map[string]any{
		"paymentId": pmt.ID,
		"amount":    params.Amount.String(),
		"currency":  params.Currency,
	})
	initiated.UserID = &params.UserID
	initiated.ApplicationID = &params.ApplicationID
	r.audit.Record(ctx, initiated)
	r.metrics.add(ctx, r.metrics.paymentsInitiated, method)

	result, primaryErr := r.attemptCreate(ctx, traceID, adapter, params)
	usedMethod := method

	if primaryErr != nil && r.shouldFallback(primaryErr) {
		for _, candidate := range r.fallbackOrder(method) {
			fallback := r.adapters[candidate]
			if fallback.Info().RequiresEmail && params.UserEmail == "" {
				continue
			}

			r.audit.Record(ctx, auditEntry(domain.AuditActionFallbackInitiated, candidate, traceID, map[string]any{
				"paymentId": pmt.ID,
				"from":      string(method),
				"to":        string(candidate),
			}))
			r.metrics.add(ctx, r.metrics.fallbackAttempts, candidate)

			res, err := r.attemptCreate(ctx, traceID, fallback, params)
			if err == nil {
				r.audit.Record(ctx, auditEntry(domain.AuditActionFallbackSucceeded, candidate, traceID, map[string]any{
					"paymentId": pmt.ID,
				}))
				result = res
				usedMethod = candidate
				primaryErr = nil
				break
			}

			r.audit.Record(ctx, auditError(auditEntry(domain.AuditActionFallbackFailed, candidate, traceID, map[string]any{
				"paymentId": pmt.ID,
			}), err))
		}
	}

	if primaryErr != nil {
		r.audit.Record(ctx, auditError(auditEntry(domain.AuditActionFailed, method, traceID, map[string]any{
			"paymentId": pmt.ID,
		}), primaryErr))
		r.metrics.add(ctx, r.metrics.paymentsFailed, method)

		if err := r.payments.UpdateStatus(ctx, pmt.ID, domain.PaymentStatusFailed); err != nil {
			r.logger.Error("failed to mark payment as failed", "error", err, "payment_id", pmt.ID, "trace_id", traceID)
		}

		return nil, primaryErr
	}

	if err := r.payments.SetTransaction(ctx, pmt.ID, usedMethod, result.TransactionID, result.GatewayData); err != nil {
		// The gateway accepted the charge; losing the transaction reference
		// now is an operator problem, not a caller one.
		r.logger.Error("failed to record gateway transaction", "error", err, "payment_id", pmt.ID, "trace_id", traceID)
	}

	pmt.Method = usedMethod
	pmt.TransactionID = &result.TransactionID
	pmt.GatewayData = result.GatewayData

	submitted := auditEntry(domain.AuditActionSubmitted, usedMethod, traceID, map[string]any{
		"paymentId": pmt.ID,
	})
	submitted.TransactionID = &result.TransactionID
	r.audit.Record(ctx, submitted)

	return &InitiatePaymentResult{
		Payment:    pmt,
		PaymentURL: result.PaymentURL,
		TraceID:    traceID,
	}, nil
}

func (r *Router) attemptCreate(
	ctx context.Context,
	traceID string,
	adapter domain.PaymentGateway,
	params domain.CreatePaymentParams,
) (*domain.CreatePaymentResult, error) {
	var result *domain.CreatePaymentResult

	err := r.retrier.Do(ctx, traceID, adapter.Method(), "create payment", func(ctx context.Context) error {
		res, err := adapter.CreatePayment(ctx, params)
		if err != nil {
			return domain.ClassifyUnknown(adapter.Method(), err)
		}
		result = res
		return nil
	})

	return result, err
}

// shouldFallback reports whether an alternate adapter may be tried. Caller
// bugs and deployment misconfiguration are surfaced immediately.
func (r *Router) shouldFallback(err error) bool {
	switch domain.ErrorKindOf(err) {
	case domain.ErrKindValidation, domain.ErrKindConfigurationMissing:
		return false
	default:
		return true
	}
}

// fallbackOrder returns fallback candidates excluding the primary. The
// sequential strategy honors the configured preference list; the random
// strategy reshuffles on every call to spread load.
func (r *Router) fallbackOrder(primary domain.PaymentMethod) []domain.PaymentMethod {
	seen := map[domain.PaymentMethod]bool{primary: true}
	var order []domain.PaymentMethod

	if r.cfg.FallbackStrategy == FallbackSequential {
		for _, m := range r.cfg.FallbackPreference {
			if _, ok := r.adapters[m]; ok && !seen[m] {
				order = append(order, m)
				seen[m] = true
			}
		}
	}

	var rest []domain.PaymentMethod
	for m := range r.adapters {
		if !seen[m] {
			rest = append(rest, m)
		}
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i] < rest[j] })

	order = append(order, rest...)

	if r.cfg.FallbackStrategy == FallbackRandom {
		rand.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})
	}

	return order
}

// VerifyPayment asks the owning adapter whether a transaction settled. A
// confirmed pending payment is promoted to completed.
func (r *Router) VerifyPayment(
	ctx context.Context,
	method domain.PaymentMethod,
	transactionID string,
) (bool, error) {
	adapter, ok := r.adapters[method]
	if !ok {
		return false, domain.NewConfigurationMissingError(method)
	}

	traceID := uuid.NewString()

	var verified bool
	err := r.retrier.Do(ctx, traceID, method, "verify payment", func(ctx context.Context) error {
		ok, err := adapter.VerifyPayment(ctx, transactionID)
		if err != nil {
			return domain.ClassifyUnknown(method, err)
		}
		verified = ok
		return nil
	})
	if err != nil {
		return false, err
	}

	entry := auditEntry(domain.AuditActionVerified, method, traceID, map[string]any{
		"verified": verified,
	})
	entry.TransactionID = &transactionID
	r.audit.Record(ctx, entry)

	if !verified {
		return false, nil
	}

	pmt, err := r.payments.GetByTransactionID(ctx, method, transactionID)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return true, nil
		}
		return true, err
	}

	if pmt.Status.CanTransitionTo(domain.PaymentStatusCompleted) {
		if err := r.payments.UpdateStatusByTransactionID(ctx, method, transactionID, domain.PaymentStatusCompleted); err != nil {
			return true, err
		}

		completed := auditEntry(domain.AuditActionCompleted, method, traceID, map[string]any{
			"paymentId": pmt.ID,
		})
		completed.TransactionID = &transactionID
		r.audit.Record(ctx, completed)
	}

	return true, nil
}

// CancelPayment cancels an uncompleted payment with the owning adapter.
func (r *Router) CancelPayment(
	ctx context.Context,
	method domain.PaymentMethod,
	transactionID string,
) error {
	adapter, ok := r.adapters[method]
	if !ok {
		return domain.NewConfigurationMissingError(method)
	}

	pmt, err := r.payments.GetByTransactionID(ctx, method, transactionID)
	if err != nil {
		return err
	}

	if !pmt.Status.CanTransitionTo(domain.PaymentStatusCancelled) {
		return domain.NewInvalidStateError(method, "payment cannot be cancelled in status "+string(pmt.Status))
	}

	traceID := uuid.NewString()

	err = r.retrier.Do(ctx, traceID, method, "cancel payment", func(ctx context.Context) error {
		if err := adapter.CancelPayment(ctx, transactionID); err != nil {
			return domain.ClassifyUnknown(method, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := r.payments.UpdateStatusByTransactionID(ctx, method, transactionID, domain.PaymentStatusCancelled); err != nil {
		return err
	}

	entry := auditEntry(domain.AuditActionFailed, method, traceID, map[string]any{
		"paymentId": pmt.ID,
		"cancelled": true,
	})
	entry.TransactionID = &transactionID
	r.audit.Record(ctx, entry)

	return nil
}

// AvailableMethods lists the configured adapters' metadata, sorted by method.
func (r *Router) AvailableMethods() []domain.MethodInfo {
	infos := make([]domain.MethodInfo, 0, len(r.adapters))
	for _, adapter := range r.adapters {
		infos = append(infos, adapter.Info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Method < infos[j].Method })
	return infos
}

// MethodInfo returns one adapter's metadata.
func (r *Router) MethodInfo(method domain.PaymentMethod) (domain.MethodInfo, error) {
	adapter, ok := r.adapters[method]
	if !ok {
		return domain.MethodInfo{}, domain.NewConfigurationMissingError(method)
	}
	return adapter.Info(), nil
}
