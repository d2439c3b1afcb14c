package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/visaflow/visaflow-api/internal/domain"
)

type PostgresRefundRepository struct {
	db *pgxpool.Pool
}

func NewPostgresRefundRepository(db *pgxpool.Pool) *PostgresRefundRepository {
	return &PostgresRefundRepository{
		db: db,
	}
}

const refundColumns = `
	id,
	payment_id,
	amount,
	reason,
	initiated_by,
	status,
	external_refund_id,
	failure_reason,
	created_at,
	updated_at
`

func (r *PostgresRefundRepository) Create(ctx context.Context, refund *domain.Refund) error {
	query := `
		INSERT INTO refunds (payment_id, amount, reason, initiated_by, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	return r.db.QueryRow(
		ctx,
		query,
		refund.PaymentID,
		refund.Amount,
		refund.Reason,
		refund.InitiatedBy,
		refund.Status,
	).Scan(&refund.ID, &refund.CreatedAt)
}

func (r *PostgresRefundRepository) GetByID(ctx context.Context, id int64) (*domain.Refund, error) {
	query := `SELECT ` + refundColumns + ` FROM refunds WHERE id = $1`

	return scanRefund(r.db.QueryRow(ctx, query, id))
}

func (r *PostgresRefundRepository) GetByPaymentID(ctx context.Context, paymentID int64) ([]domain.Refund, error) {
	query := `SELECT ` + refundColumns + ` FROM refunds WHERE payment_id = $1 ORDER BY id`

	rows, err := r.db.Query(ctx, query, paymentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refunds []domain.Refund
	for rows.Next() {
		refund, err := scanRefund(rows)
		if err != nil {
			return nil, err
		}
		refunds = append(refunds, *refund)
	}

	return refunds, rows.Err()
}

// MarkCompleted finalizes a refund. Completed and failed refunds are
// terminal, so the guard refuses to touch them.
func (r *PostgresRefundRepository) MarkCompleted(ctx context.Context, id int64, externalRefundID string) error {
	query := `
		UPDATE refunds
		SET status = 'completed', external_refund_id = $2, updated_at = now()
		WHERE id = $1 AND status IN ('pending', 'processing')
	`

	tag, err := r.db.Exec(ctx, query, id, externalRefundID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrEditConflict
	}

	return nil
}

func (r *PostgresRefundRepository) MarkFailed(ctx context.Context, id int64, failureReason string) error {
	query := `
		UPDATE refunds
		SET status = 'failed', failure_reason = $2, updated_at = now()
		WHERE id = $1 AND status IN ('pending', 'processing')
	`

	tag, err := r.db.Exec(ctx, query, id, failureReason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrEditConflict
	}

	return nil
}

func scanRefund(row pgx.Row) (*domain.Refund, error) {
	var refund domain.Refund

	err := row.Scan(
		&refund.ID,
		&refund.PaymentID,
		&refund.Amount,
		&refund.Reason,
		&refund.InitiatedBy,
		&refund.Status,
		&refund.ExternalRefundID,
		&refund.FailureReason,
		&refund.CreatedAt,
		&refund.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}
		return nil, err
	}

	return &refund, nil
}
