package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/allisson/offcash/internal/database"
	apperrors "github.com/allisson/offcash/internal/errors"
	reconciliationDomain "github.com/allisson/offcash/internal/reconciliation/domain"
)

// PostgreSQLAuditRepository implements double-spend audit persistence for PostgreSQL databases.
type PostgreSQLAuditRepository struct {
	db *sql.DB
}

// Create inserts a signed audit record.
func (p *PostgreSQLAuditRepository) Create(ctx context.Context, audit *reconciliationDomain.DoubleSpendAudit) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO double_spend_audits (id, token_id, conflicting_token_id, conflicting_redemption_id, account_id, claim, reason, signature, created_at) 
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := querier.ExecContext(
		ctx,
		query,
		audit.ID,
		audit.TokenID,
		audit.ConflictingTokenID,
		audit.ConflictingRedemptionID,
		audit.AccountID,
		audit.Claim,
		audit.Reason,
		audit.Signature,
		audit.CreatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create double spend audit")
	}
	return nil
}

// Get retrieves an audit record by ID.
func (p *PostgreSQLAuditRepository) Get(
	ctx context.Context,
	auditID uuid.UUID,
) (*reconciliationDomain.DoubleSpendAudit, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, token_id, conflicting_token_id, conflicting_redemption_id, account_id, claim, reason, signature, created_at 
			  FROM double_spend_audits WHERE id = $1`

	audit, err := scanAudit(querier.QueryRowContext(ctx, query, auditID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, reconciliationDomain.ErrAuditNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get double spend audit")
	}
	return audit, nil
}

// List returns audit records ordered by creation time, oldest first.
func (p *PostgreSQLAuditRepository) List(
	ctx context.Context,
	offset, limit int,
) ([]*reconciliationDomain.DoubleSpendAudit, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, token_id, conflicting_token_id, conflicting_redemption_id, account_id, claim, reason, signature, created_at 
			  FROM double_spend_audits 
			  ORDER BY created_at ASC, id ASC 
			  LIMIT $1 OFFSET $2`

	rows, err := querier.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list double spend audits")
	}
	defer func() {
		_ = rows.Close()
	}()

	audits := make([]*reconciliationDomain.DoubleSpendAudit, 0)
	for rows.Next() {
		audit, err := scanAudit(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan double spend audit")
		}
		audits = append(audits, audit)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate double spend audits")
	}
	return audits, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAudit(row rowScanner) (*reconciliationDomain.DoubleSpendAudit, error) {
	var audit reconciliationDomain.DoubleSpendAudit
	err := row.Scan(
		&audit.ID,
		&audit.TokenID,
		&audit.ConflictingTokenID,
		&audit.ConflictingRedemptionID,
		&audit.AccountID,
		&audit.Claim,
		&audit.Reason,
		&audit.Signature,
		&audit.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	audit.CreatedAt = audit.CreatedAt.UTC()
	return &audit, nil
}

// NewPostgreSQLAuditRepository creates a new PostgreSQL audit repository.
func NewPostgreSQLAuditRepository(db *sql.DB) *PostgreSQLAuditRepository {
	return &PostgreSQLAuditRepository{db: db}
}
