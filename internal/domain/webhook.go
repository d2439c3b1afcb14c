package domain

import (
	"context"
	"time"
)

// WebhookAttempt is one row of the idempotency ledger. The tuple
// (WebhookID, Method, ExternalRef) is unique; a second delivery with the same
// tuple is a duplicate and must not re-apply business effects.
type WebhookAttempt struct {
	ID            int64
	WebhookID     string
	Method        PaymentMethod
	ExternalRef   string
	EventType     string
	Payload       []byte
	Signature     string
	Processed     bool
	FailureReason *string
	CreatedAt     time.Time
}

type WebhookAttemptRepository interface {
	// IsProcessed reports whether a prior attempt with the same tuple was
	// recorded with processed=true.
	IsProcessed(ctx context.Context, webhookID string, method PaymentMethod, externalRef string) (bool, error)
	// Record appends the ledger row for this delivery. A tuple that already
	// exists as processed returns ErrDuplicateWebhook; an existing
	// unprocessed row (an earlier delivery that failed verification or
	// dispatch) is overwritten so redelivery can make progress.
	Record(ctx context.Context, attempt *WebhookAttempt) error
}
