package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/allisson/offcash/internal/database"
	apperrors "github.com/allisson/offcash/internal/errors"
	ledgerDomain "github.com/allisson/offcash/internal/ledger/domain"
)

// PostgreSQLMovementRepository implements ledger movement persistence for PostgreSQL databases.
type PostgreSQLMovementRepository struct {
	db *sql.DB
}

// Create appends a movement. A second movement of the same kind for the same token is rejected
// with ErrMovementAlreadyRecorded.
func (p *PostgreSQLMovementRepository) Create(ctx context.Context, movement *ledgerDomain.Movement) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO ledger_movements (id, account_id, token_id, kind, amount, reference_id, created_at) 
			  VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := querier.ExecContext(
		ctx,
		query,
		movement.ID,
		movement.AccountID,
		movement.TokenID,
		movement.Kind,
		movement.Amount,
		movement.ReferenceID,
		movement.CreatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ledgerDomain.ErrMovementAlreadyRecorded
		}
		return apperrors.Wrap(err, "failed to create ledger movement")
	}
	return nil
}

// ListByAccount returns the movements of an account, newest first.
func (p *PostgreSQLMovementRepository) ListByAccount(
	ctx context.Context,
	accountID uuid.UUID,
	offset, limit int,
) ([]*ledgerDomain.Movement, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, account_id, token_id, kind, amount, reference_id, created_at 
			  FROM ledger_movements 
			  WHERE account_id = $1 
			  ORDER BY created_at DESC 
			  LIMIT $2 OFFSET $3`

	rows, err := querier.QueryContext(ctx, query, accountID, limit, offset)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list ledger movements")
	}
	defer func() {
		_ = rows.Close()
	}()

	movements := make([]*ledgerDomain.Movement, 0)
	for rows.Next() {
		var movement ledgerDomain.Movement
		var kind string
		if err := rows.Scan(
			&movement.ID,
			&movement.AccountID,
			&movement.TokenID,
			&kind,
			&movement.Amount,
			&movement.ReferenceID,
			&movement.CreatedAt,
		); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan ledger movement")
		}
		movement.Kind = ledgerDomain.MovementKind(kind)
		movements = append(movements, &movement)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate ledger movements")
	}
	return movements, nil
}

// NewPostgreSQLMovementRepository creates a new PostgreSQL movement repository.
func NewPostgreSQLMovementRepository(db *sql.DB) *PostgreSQLMovementRepository {
	return &PostgreSQLMovementRepository{db: db}
}
