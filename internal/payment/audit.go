package payment

import (
	"context"
	"log/slog"
	"time"

	"github.com/visaflow/visaflow-api/internal/domain"
)

// AuditLogger appends a trace-correlated record for every state transition a
// payment goes through. It is best-effort by contract: sink failures are
// logged and swallowed, never surfaced to the payment flow they describe.
type AuditLogger struct {
	logger *slog.Logger
	repo   domain.AuditLogRepository
}

func NewAuditLogger(logger *slog.Logger, repo domain.AuditLogRepository) *AuditLogger {
	return &AuditLogger{
		logger: logger,
		repo:   repo,
	}
}

// Record writes the entry to the structured log and the persistent sink.
func (a *AuditLogger) Record(ctx context.Context, entry domain.AuditLogEntry) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("panic while recording audit entry", "panic", r, "action", entry.Action)
		}
	}()

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	attrs := []any{
		"action", entry.Action,
		"method", entry.Method,
		"trace_id", entry.TraceID,
	}
	if entry.TransactionID != nil {
		attrs = append(attrs, "transaction_id", *entry.TransactionID)
	}
	if entry.ErrorCode != nil {
		attrs = append(attrs, "error_code", *entry.ErrorCode)
	}
	if len(entry.Details) > 0 {
		attrs = append(attrs, "details", entry.Details)
	}

	a.logger.Info("payment audit", attrs...)

	if a.repo == nil {
		return
	}

	// The audit trail must outlive a caller that gave up mid-flight.
	sinkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()

	if err := a.repo.Insert(sinkCtx, &entry); err != nil {
		a.logger.Error("failed to persist audit entry", "error", err, "action", entry.Action, "trace_id", entry.TraceID)
	}
}

// entry is a convenience constructor used throughout the core.
func auditEntry(action domain.AuditAction, method domain.PaymentMethod, traceID string, details map[string]any) domain.AuditLogEntry {
	return domain.AuditLogEntry{
		Action:  action,
		Method:  method,
		TraceID: traceID,
		Details: details,
	}
}

func auditError(entry domain.AuditLogEntry, err error) domain.AuditLogEntry {
	kind := string(domain.ErrorKindOf(err))
	severity := "error"
	entry.ErrorCode = &kind
	entry.Severity = &severity

	if entry.Details == nil {
		entry.Details = map[string]any{}
	}
	entry.Details["error"] = err.Error()

	return entry
}
