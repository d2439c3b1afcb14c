package domain

import (
	"context"
	"time"
)

type AuditAction string

const (
	AuditActionInitiated                 AuditAction = "initiated"
	AuditActionSubmitted                 AuditAction = "submitted"
	AuditActionVerified                  AuditAction = "verified"
	AuditActionCompleted                 AuditAction = "completed"
	AuditActionFailed                    AuditAction = "failed"
	AuditActionWebhookReceived           AuditAction = "webhook_received"
	AuditActionWebhookVerified           AuditAction = "webhook_verified"
	AuditActionWebhookVerificationFailed AuditAction = "webhook_verification_failed"
	AuditActionWebhookDuplicateDetected  AuditAction = "webhook_duplicate_detected"
	AuditActionWebhookProcessed          AuditAction = "webhook_processed"
	AuditActionRetryInitiated            AuditAction = "retry_initiated"
	AuditActionRetrySucceeded            AuditAction = "retry_succeeded"
	AuditActionRetryFailed               AuditAction = "retry_failed"
	AuditActionRetryExhausted            AuditAction = "retry_exhausted"
	AuditActionFallbackInitiated         AuditAction = "fallback_initiated"
	AuditActionFallbackSucceeded         AuditAction = "fallback_succeeded"
	AuditActionFallbackFailed            AuditAction = "fallback_failed"
	AuditActionRefundInitiated           AuditAction = "refund_initiated"
	AuditActionRefundCompleted           AuditAction = "refund_completed"
	AuditActionRefundFailed              AuditAction = "refund_failed"
)

// AuditLogEntry is an append-only trace record. Every externally observable
// state transition produces at least one entry carrying the trace id of the
// request that caused it.
type AuditLogEntry struct {
	ID            int64
	Action        AuditAction
	Method        PaymentMethod
	TraceID       string
	TransactionID *string
	ApplicationID *int64
	UserID        *int64
	ErrorCode     *string
	Severity      *string
	Details       map[string]any
	CreatedAt     time.Time
}

type AuditLogRepository interface {
	Insert(ctx context.Context, entry *AuditLogEntry) error
	GetByTraceID(ctx context.Context, traceID string) ([]AuditLogEntry, error)
}
