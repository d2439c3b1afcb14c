package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/visaflow/visaflow-api/internal/domain"
)

type PostgresAuditLogRepository struct {
	db *pgxpool.Pool
}

func NewPostgresAuditLogRepository(db *pgxpool.Pool) *PostgresAuditLogRepository {
	return &PostgresAuditLogRepository{
		db: db,
	}
}

func (a *PostgresAuditLogRepository) Insert(ctx context.Context, entry *domain.AuditLogEntry) error {
	var details []byte
	if len(entry.Details) > 0 {
		var err error
		details, err = json.Marshal(entry.Details)
		if err != nil {
			return err
		}
	}

	query := `
		INSERT INTO payment_audit_log (
			action,
			gateway_method,
			trace_id,
			transaction_id,
			application_id,
			user_id,
			error_code,
			severity,
			details,
			created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`

	return a.db.QueryRow(
		ctx,
		query,
		entry.Action,
		entry.Method,
		entry.TraceID,
		entry.TransactionID,
		entry.ApplicationID,
		entry.UserID,
		entry.ErrorCode,
		entry.Severity,
		details,
		entry.CreatedAt,
	).Scan(&entry.ID)
}

func (a *PostgresAuditLogRepository) GetByTraceID(ctx context.Context, traceID string) ([]domain.AuditLogEntry, error) {
	query := `
		SELECT id, action, gateway_method, trace_id, transaction_id, application_id,
			user_id, error_code, severity, details, created_at
		FROM payment_audit_log
		WHERE trace_id = $1
		ORDER BY id
	`

	rows, err := a.db.Query(ctx, query, traceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.AuditLogEntry
	for rows.Next() {
		var entry domain.AuditLogEntry
		var details []byte

		err := rows.Scan(
			&entry.ID,
			&entry.Action,
			&entry.Method,
			&entry.TraceID,
			&entry.TransactionID,
			&entry.ApplicationID,
			&entry.UserID,
			&entry.ErrorCode,
			&entry.Severity,
			&details,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, err
		}

		if len(details) > 0 {
			if err := json.Unmarshal(details, &entry.Details); err != nil {
				return nil, err
			}
		}

		entries = append(entries, entry)
	}

	return entries, rows.Err()
}
