package payment

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/visaflow/visaflow-api/internal/domain"
)

type WebhookRequest struct {
	Method    domain.PaymentMethod
	Payload   []byte
	Signature string
	// WebhookID is the provider's delivery id. When a provider sends none,
	// one is synthesized from the method and a payload digest so replays of
	// the same delivery still collapse onto one ledger row.
	WebhookID string
	// ExternalRef is the provider's transaction reference for this event,
	// extracted by the HTTP layer's per-provider glue.
	ExternalRef string
}

// WebhookOutcome is returned instead of an error because the HTTP endpoint
// must always answer the provider synchronously. A duplicate reports success
// so the provider stops retrying delivery.
type WebhookOutcome struct {
	Success   bool
	Duplicate bool
	TraceID   string
	Err       error
}

// ProcessWebhook runs the inbound pipeline: duplicate check, signature
// verification, adapter dispatch under retry, business effect, ledger record.
// A duplicate is never re-verified or re-dispatched.
func (r *Router) ProcessWebhook(ctx context.Context, req WebhookRequest) WebhookOutcome {
	traceID := uuid.NewString()
	outcome := WebhookOutcome{TraceID: traceID}

	if req.WebhookID == "" {
		digest := sha256.Sum256(req.Payload)
		req.WebhookID = fmt.Sprintf("%s-%s", req.Method, hex.EncodeToString(digest[:8]))
	}

	r.audit.Record(ctx, auditEntry(domain.AuditActionWebhookReceived, req.Method, traceID, map[string]any{
		"webhookId":   req.WebhookID,
		"externalRef": req.ExternalRef,
	}))

	adapter, ok := r.adapters[req.Method]
	if !ok {
		outcome.Err = domain.NewConfigurationMissingError(req.Method)
		r.audit.Record(ctx, auditError(auditEntry(domain.AuditActionWebhookVerificationFailed, req.Method, traceID, nil), outcome.Err))
		return outcome
	}

	duplicate, err := r.security.IsDuplicate(ctx, req.WebhookID, req.Method, req.ExternalRef)
	if err != nil {
		outcome.Err = err
		return outcome
	}
	if duplicate {
		r.audit.Record(ctx, auditEntry(domain.AuditActionWebhookDuplicateDetected, req.Method, traceID, map[string]any{
			"webhookId":   req.WebhookID,
			"externalRef": req.ExternalRef,
		}))
		r.metrics.add(ctx, r.metrics.webhookDuplicates, req.Method)

		outcome.Success = true
		outcome.Duplicate = true
		return outcome
	}

	if err := r.security.VerifySignature(req.Method, req.Payload, req.Signature); err != nil {
		r.audit.Record(ctx, auditError(auditEntry(domain.AuditActionWebhookVerificationFailed, req.Method, traceID, map[string]any{
			"webhookId": req.WebhookID,
		}), err))
		r.metrics.add(ctx, r.metrics.webhookSignatureFailures, req.Method)
		r.recordAttempt(ctx, req, "", false, err.Error())

		outcome.Err = err
		return outcome
	}

	r.audit.Record(ctx, auditEntry(domain.AuditActionWebhookVerified, req.Method, traceID, map[string]any{
		"webhookId": req.WebhookID,
	}))

	var event *domain.WebhookEvent
	err = r.retrier.Do(ctx, traceID, req.Method, "process webhook", func(ctx context.Context) error {
		ev, err := adapter.ProcessWebhook(ctx, req.Payload, req.Signature)
		if err != nil {
			return domain.ClassifyUnknown(req.Method, err)
		}
		event = ev
		return nil
	})
	if err != nil {
		r.audit.Record(ctx, auditError(auditEntry(domain.AuditActionFailed, req.Method, traceID, map[string]any{
			"webhookId": req.WebhookID,
		}), err))
		r.recordAttempt(ctx, req, "", false, err.Error())

		outcome.Err = err
		return outcome
	}

	if err := r.applyWebhookEvent(ctx, traceID, req.Method, event); err != nil {
		r.audit.Record(ctx, auditError(auditEntry(domain.AuditActionFailed, req.Method, traceID, map[string]any{
			"webhookId": req.WebhookID,
			"eventType": event.Type,
		}), err))
		r.recordAttempt(ctx, req, event.Type, false, err.Error())

		outcome.Err = err
		return outcome
	}

	r.recordAttempt(ctx, req, event.Type, true, "")

	r.audit.Record(ctx, auditEntry(domain.AuditActionWebhookProcessed, req.Method, traceID, map[string]any{
		"webhookId": req.WebhookID,
		"eventType": event.Type,
	}))
	r.metrics.add(ctx, r.metrics.webhooksProcessed, req.Method)

	outcome.Success = true
	return outcome
}

// applyWebhookEvent moves the referenced payment along the state machine.
// Events without a transaction reference or status are informational only.
func (r *Router) applyWebhookEvent(
	ctx context.Context,
	traceID string,
	method domain.PaymentMethod,
	event *domain.WebhookEvent,
) error {
	if event.TransactionID == "" || event.Status == "" {
		return nil
	}

	pmt, err := r.payments.GetByTransactionID(ctx, method, event.TransactionID)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return domain.NewInvalidStateError(method, "no payment for transaction "+event.TransactionID)
		}
		return err
	}

	// A repeated notification carrying a status we already hold is a no-op,
	// not an illegal transition.
	if pmt.Status == event.Status {
		return nil
	}

	if !pmt.Status.CanTransitionTo(event.Status) {
		return domain.NewInvalidStateError(method, fmt.Sprintf("illegal transition %s -> %s", pmt.Status, event.Status))
	}

	if err := r.payments.UpdateStatusByTransactionID(ctx, method, event.TransactionID, event.Status); err != nil {
		return err
	}

	action := domain.AuditActionCompleted
	if event.Status != domain.PaymentStatusCompleted {
		action = domain.AuditActionFailed
	}

	entry := auditEntry(action, method, traceID, map[string]any{
		"paymentId": pmt.ID,
		"eventType": event.Type,
		"status":    string(event.Status),
	})
	entry.TransactionID = &event.TransactionID
	if event.FailureReason != "" {
		entry.Details["failureReason"] = event.FailureReason
	}
	r.audit.Record(ctx, entry)

	return nil
}

// recordAttempt appends the idempotency ledger row. A conflicting concurrent
// delivery already marked processed is indistinguishable from a duplicate and
// is simply logged.
func (r *Router) recordAttempt(ctx context.Context, req WebhookRequest, eventType string, processed bool, failureReason string) {
	attempt := &domain.WebhookAttempt{
		WebhookID:   req.WebhookID,
		Method:      req.Method,
		ExternalRef: req.ExternalRef,
		EventType:   eventType,
		Payload:     req.Payload,
		Signature:   req.Signature,
		Processed:   processed,
	}
	if failureReason != "" {
		attempt.FailureReason = &failureReason
	}

	if err := r.security.RecordAttempt(ctx, attempt); err != nil {
		if errors.Is(err, domain.ErrDuplicateWebhook) {
			r.logger.Info("webhook attempt raced an already processed delivery",
				"webhook_id", req.WebhookID, "method", req.Method)
			return
		}
		r.logger.Error("failed to record webhook attempt",
			"error", err, "webhook_id", req.WebhookID, "method", req.Method)
	}
}
