package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/visaflow/visaflow-api/internal/domain"
)

// PostgresWebhookAttemptRepository is the idempotency ledger. The unique
// index on (webhook_id, gateway_method, external_ref) is what makes
// concurrent duplicate deliveries resolve to exactly one processed row.
type PostgresWebhookAttemptRepository struct {
	db *pgxpool.Pool
}

func NewPostgresWebhookAttemptRepository(db *pgxpool.Pool) *PostgresWebhookAttemptRepository {
	return &PostgresWebhookAttemptRepository{
		db: db,
	}
}

func (w *PostgresWebhookAttemptRepository) IsProcessed(
	ctx context.Context,
	webhookID string,
	method domain.PaymentMethod,
	externalRef string,
) (bool, error) {
	query := `
		SELECT processed FROM webhook_attempts
		WHERE webhook_id = $1 AND gateway_method = $2 AND external_ref = $3
	`

	var processed bool
	err := w.db.QueryRow(ctx, query, webhookID, method, externalRef).Scan(&processed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}

	return processed, nil
}

// Record appends the ledger row. An earlier unprocessed row for the same
// tuple (a delivery that failed verification or dispatch) is overwritten so
// redelivery can make progress; a processed row is append-only and the
// conflict surfaces as ErrDuplicateWebhook.
func (w *PostgresWebhookAttemptRepository) Record(ctx context.Context, attempt *domain.WebhookAttempt) error {
	query := `
		INSERT INTO webhook_attempts (
			webhook_id,
			gateway_method,
			external_ref,
			event_type,
			payload,
			signature,
			processed,
			failure_reason
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (webhook_id, gateway_method, external_ref) DO UPDATE
		SET event_type = EXCLUDED.event_type,
			payload = EXCLUDED.payload,
			signature = EXCLUDED.signature,
			processed = EXCLUDED.processed,
			failure_reason = EXCLUDED.failure_reason
		WHERE webhook_attempts.processed = false
		RETURNING id, created_at
	`

	err := w.db.QueryRow(
		ctx,
		query,
		attempt.WebhookID,
		attempt.Method,
		attempt.ExternalRef,
		attempt.EventType,
		attempt.Payload,
		attempt.Signature,
		attempt.Processed,
		attempt.FailureReason,
	).Scan(&attempt.ID, &attempt.CreatedAt)
	if err != nil {
		// No row returned means the conflict target was already processed.
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrDuplicateWebhook
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return domain.ErrDuplicateWebhook
		}

		return err
	}

	return nil
}
