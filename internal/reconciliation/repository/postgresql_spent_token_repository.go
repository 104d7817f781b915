// Package repository implements reconciliation ledger state persistence for PostgreSQL.
// The MySQL implementation lives in the mysql subpackage.
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/allisson/offcash/internal/database"
	apperrors "github.com/allisson/offcash/internal/errors"
	reconciliationDomain "github.com/allisson/offcash/internal/reconciliation/domain"
	tokenDomain "github.com/allisson/offcash/internal/token/domain"
)

// PostgreSQLSpentTokenRepository implements spent token persistence for PostgreSQL databases.
type PostgreSQLSpentTokenRepository struct {
	db *sql.DB
}

// Create inserts the spent marker. The primary key on token_id makes this the atomic
// double-spend check: a second insert of the same id fails with ErrTokenAlreadySpent.
func (p *PostgreSQLSpentTokenRepository) Create(ctx context.Context, spent *reconciliationDomain.SpentToken) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO spent_tokens (token_id, redemption_id, root_token_id, account_id, amount, spent_at) 
			  VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := querier.ExecContext(
		ctx,
		query,
		spent.TokenID,
		spent.RedemptionID,
		spent.RootTokenID,
		spent.AccountID,
		spent.Amount,
		spent.SpentAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return tokenDomain.ErrTokenAlreadySpent
		}
		return apperrors.Wrap(err, "failed to create spent token")
	}
	return nil
}

// Get retrieves the spent marker of a token id.
func (p *PostgreSQLSpentTokenRepository) Get(
	ctx context.Context,
	tokenID uuid.UUID,
) (*reconciliationDomain.SpentToken, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT token_id, redemption_id, root_token_id, account_id, amount, spent_at 
			  FROM spent_tokens WHERE token_id = $1`

	var spent reconciliationDomain.SpentToken
	err := querier.QueryRowContext(ctx, query, tokenID).Scan(
		&spent.TokenID,
		&spent.RedemptionID,
		&spent.RootTokenID,
		&spent.AccountID,
		&spent.Amount,
		&spent.SpentAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, tokenDomain.ErrTokenNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get spent token")
	}
	return &spent, nil
}

// NewPostgreSQLSpentTokenRepository creates a new PostgreSQL spent token repository.
func NewPostgreSQLSpentTokenRepository(db *sql.DB) *PostgreSQLSpentTokenRepository {
	return &PostgreSQLSpentTokenRepository{db: db}
}
