package mysql

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/allisson/offcash/internal/database"
	apperrors "github.com/allisson/offcash/internal/errors"
	reconciliationDomain "github.com/allisson/offcash/internal/reconciliation/domain"
)

// MySQLAuditRepository implements double-spend audit persistence for MySQL databases.
type MySQLAuditRepository struct {
	db *sql.DB
}

// Create inserts a signed audit record.
func (m *MySQLAuditRepository) Create(ctx context.Context, audit *reconciliationDomain.DoubleSpendAudit) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO double_spend_audits (id, token_id, conflicting_token_id, conflicting_redemption_id, account_id, claim, reason, signature, created_at) 
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	ids, err := marshalUUIDs(audit.ID, audit.TokenID, audit.ConflictingTokenID, audit.AccountID)
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal audit ids")
	}
	conflicting, err := nullableUUID(audit.ConflictingRedemptionID)
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal conflicting redemption id")
	}

	_, err = querier.ExecContext(
		ctx,
		query,
		ids[0],
		ids[1],
		ids[2],
		conflicting,
		ids[3],
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
func (m *MySQLAuditRepository) Get(
	ctx context.Context,
	auditID uuid.UUID,
) (*reconciliationDomain.DoubleSpendAudit, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, token_id, conflicting_token_id, conflicting_redemption_id, account_id, claim, reason, signature, created_at 
			  FROM double_spend_audits WHERE id = ?`

	idBytes, err := auditID.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal audit id")
	}

	audit, err := scanAudit(querier.QueryRowContext(ctx, query, idBytes))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, reconciliationDomain.ErrAuditNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get double spend audit")
	}
	return audit, nil
}

// List returns audit records ordered by creation time, oldest first.
func (m *MySQLAuditRepository) List(
	ctx context.Context,
	offset, limit int,
) ([]*reconciliationDomain.DoubleSpendAudit, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, token_id, conflicting_token_id, conflicting_redemption_id, account_id, claim, reason, signature, created_at 
			  FROM double_spend_audits 
			  ORDER BY created_at ASC, id ASC 
			  LIMIT ? OFFSET ?`

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
	var id, tokenID, conflictingTokenID, conflictingRedemptionID, accountID []byte
	err := row.Scan(
		&id,
		&tokenID,
		&conflictingTokenID,
		&conflictingRedemptionID,
		&accountID,
		&audit.Claim,
		&audit.Reason,
		&audit.Signature,
		&audit.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := unmarshalUUIDs(
		[][]byte{id, tokenID, conflictingTokenID, accountID},
		&audit.ID, &audit.TokenID, &audit.ConflictingTokenID, &audit.AccountID,
	); err != nil {
		return nil, err
	}
	if audit.ConflictingRedemptionID, err = scanNullableUUID(conflictingRedemptionID); err != nil {
		return nil, err
	}
	audit.CreatedAt = audit.CreatedAt.UTC()
	return &audit, nil
}

// NewMySQLAuditRepository creates a new MySQL audit repository.
func NewMySQLAuditRepository(db *sql.DB) *MySQLAuditRepository {
	return &MySQLAuditRepository{db: db}
}
