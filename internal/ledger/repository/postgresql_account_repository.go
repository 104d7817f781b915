// Package repository implements ledger persistence for PostgreSQL. The MySQL implementation
// lives in the mysql subpackage.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/allisson/offcash/internal/database"
	apperrors "github.com/allisson/offcash/internal/errors"
	ledgerDomain "github.com/allisson/offcash/internal/ledger/domain"
)

// PostgreSQLAccountRepository implements account persistence for PostgreSQL databases.
type PostgreSQLAccountRepository struct {
	db *sql.DB
}

// Create inserts a new account.
func (p *PostgreSQLAccountRepository) Create(ctx context.Context, account *ledgerDomain.Account) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO accounts (id, name, balance, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`

	_, err := querier.ExecContext(
		ctx,
		query,
		account.ID,
		account.Name,
		account.Balance,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create account")
	}
	return nil
}

// Get retrieves an account by its ID.
func (p *PostgreSQLAccountRepository) Get(ctx context.Context, accountID uuid.UUID) (*ledgerDomain.Account, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, name, balance, created_at, updated_at FROM accounts WHERE id = $1`

	var account ledgerDomain.Account
	err := querier.QueryRowContext(ctx, query, accountID).Scan(
		&account.ID,
		&account.Name,
		&account.Balance,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ledgerDomain.ErrAccountNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get account")
	}
	return &account, nil
}

// Credit adds amount to the account balance.
func (p *PostgreSQLAccountRepository) Credit(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE accounts SET balance = balance + $1, updated_at = $2 WHERE id = $3`

	result, err := querier.ExecContext(ctx, query, amount, time.Now().UTC(), accountID)
	if err != nil {
		return apperrors.Wrap(err, "failed to credit account")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return ledgerDomain.ErrAccountNotFound
	}
	return nil
}

// Debit subtracts amount from the account balance. The update is conditional on the balance
// covering amount, so concurrent debits can never overdraw the account.
func (p *PostgreSQLAccountRepository) Debit(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE accounts SET balance = balance - $1, updated_at = $2 WHERE id = $3 AND balance >= $1`

	result, err := querier.ExecContext(ctx, query, amount, time.Now().UTC(), accountID)
	if err != nil {
		return apperrors.Wrap(err, "failed to debit account")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to get rows affected")
	}
	if rows == 1 {
		return nil
	}

	if _, err := p.Get(ctx, accountID); err != nil {
		return err
	}
	return ledgerDomain.ErrInsufficientFunds
}

// NewPostgreSQLAccountRepository creates a new PostgreSQL account repository.
func NewPostgreSQLAccountRepository(db *sql.DB) *PostgreSQLAccountRepository {
	return &PostgreSQLAccountRepository{db: db}
}
