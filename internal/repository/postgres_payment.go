package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/visaflow/visaflow-api/internal/domain"
)

type PostgresPaymentRepository struct {
	db *pgxpool.Pool
}

func NewPostgresPaymentRepository(db *pgxpool.Pool) *PostgresPaymentRepository {
	return &PostgresPaymentRepository{
		db: db,
	}
}

const paymentColumns = `
	id,
	user_id,
	application_id,
	amount,
	currency,
	status,
	gateway_method,
	transaction_id,
	gateway_data,
	refunded_amount,
	created_at,
	updated_at
`

func (p *PostgresPaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	query := `
		INSERT INTO payments (
			user_id,
			application_id,
			amount,
			currency,
			status,
			gateway_method,
			refunded_amount
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`

	return p.db.QueryRow(
		ctx,
		query,
		payment.UserID,
		payment.ApplicationID,
		payment.Amount,
		payment.Currency,
		payment.Status,
		payment.Method,
		payment.RefundedAmount,
	).Scan(&payment.ID, &payment.CreatedAt)
}

func (p *PostgresPaymentRepository) GetByID(ctx context.Context, id int64) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`

	return p.scanPayment(p.db.QueryRow(ctx, query, id))
}

func (p *PostgresPaymentRepository) GetByTransactionID(
	ctx context.Context,
	method domain.PaymentMethod,
	transactionID string,
) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE gateway_method = $1 AND transaction_id = $2`

	return p.scanPayment(p.db.QueryRow(ctx, query, method, transactionID))
}

func (p *PostgresPaymentRepository) SetTransaction(
	ctx context.Context,
	id int64,
	method domain.PaymentMethod,
	transactionID string,
	data domain.GatewayData,
) error {
	rawData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	query := `
		UPDATE payments
		SET gateway_method = $2, transaction_id = $3, gateway_data = $4, updated_at = now()
		WHERE id = $1
	`

	tag, err := p.db.Exec(ctx, query, id, method, transactionID, rawData)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRecordNotFound
	}

	return nil
}

func (p *PostgresPaymentRepository) UpdateStatus(ctx context.Context, id int64, status domain.PaymentStatus) error {
	query := `UPDATE payments SET status = $2, updated_at = now() WHERE id = $1`

	tag, err := p.db.Exec(ctx, query, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRecordNotFound
	}

	return nil
}

func (p *PostgresPaymentRepository) UpdateStatusByTransactionID(
	ctx context.Context,
	method domain.PaymentMethod,
	transactionID string,
	status domain.PaymentStatus,
) error {
	query := `
		UPDATE payments
		SET status = $3, updated_at = now()
		WHERE gateway_method = $1 AND transaction_id = $2
	`

	tag, err := p.db.Exec(ctx, query, method, transactionID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRecordNotFound
	}

	return nil
}

// ApplyRefund adds amount to the refunded accumulator and derives the new
// status in a single UPDATE. The balance guard sits in the WHERE clause, so
// two concurrent refunds serialize on the row and the loser sees
// ErrRefundExceedsBalance instead of passing on stale data.
func (p *PostgresPaymentRepository) ApplyRefund(
	ctx context.Context,
	id int64,
	amount decimal.Decimal,
) (*domain.Payment, error) {
	query := `
		UPDATE payments
		SET refunded_amount = refunded_amount + $2,
			status = CASE
				WHEN refunded_amount + $2 >= amount THEN 'refunded'
				ELSE 'partially_refunded'
			END,
			updated_at = now()
		WHERE id = $1
			AND status IN ('completed', 'partially_refunded')
			AND refunded_amount + $2 <= amount
		RETURNING ` + paymentColumns

	payment, err := p.scanPayment(p.db.QueryRow(ctx, query, id, amount))
	if err == nil {
		return payment, nil
	}
	if !errors.Is(err, domain.ErrRecordNotFound) {
		return nil, err
	}

	// Guard rejected the update: find out whether the payment exists at all.
	if _, lookupErr := p.GetByID(ctx, id); lookupErr != nil {
		return nil, lookupErr
	}

	return nil, domain.ErrRefundExceedsBalance
}

func (p *PostgresPaymentRepository) scanPayment(row pgx.Row) (*domain.Payment, error) {
	var payment domain.Payment
	var rawData []byte

	err := row.Scan(
		&payment.ID,
		&payment.UserID,
		&payment.ApplicationID,
		&payment.Amount,
		&payment.Currency,
		&payment.Status,
		&payment.Method,
		&payment.TransactionID,
		&rawData,
		&payment.RefundedAmount,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}
		return nil, err
	}

	if len(rawData) > 0 {
		if err := json.Unmarshal(rawData, &payment.GatewayData); err != nil {
			return nil, err
		}
	}

	return &payment, nil
}
