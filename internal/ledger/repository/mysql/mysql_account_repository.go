// Package mysql implements ledger persistence for MySQL databases. UUIDs are stored as BINARY(16).
package mysql

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

// MySQLAccountRepository implements account persistence for MySQL databases.
type MySQLAccountRepository struct {
	db *sql.DB
}

// Create inserts a new account.
func (m *MySQLAccountRepository) Create(ctx context.Context, account *ledgerDomain.Account) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO accounts (id, name, balance, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`

	id, err := account.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal account id")
	}

	_, err = querier.ExecContext(ctx, query, id, account.Name, account.Balance, account.CreatedAt, account.UpdatedAt)
	if err != nil {
		return apperrors.Wrap(err, "failed to create account")
	}
	return nil
}

// Get retrieves an account by its ID.
func (m *MySQLAccountRepository) Get(ctx context.Context, accountID uuid.UUID) (*ledgerDomain.Account, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, name, balance, created_at, updated_at FROM accounts WHERE id = ?`

	idBytes, err := accountID.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal account id")
	}

	var account ledgerDomain.Account
	var id []byte
	err = querier.QueryRowContext(ctx, query, idBytes).Scan(
		&id,
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

	if err := account.ID.UnmarshalBinary(id); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal account id")
	}
	return &account, nil
}

// Credit adds amount to the account balance.
func (m *MySQLAccountRepository) Credit(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal) error {
	querier := database.GetTx(ctx, m.db)

	query := `UPDATE accounts SET balance = balance + ?, updated_at = ? WHERE id = ?`

	id, err := accountID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal account id")
	}

	result, err := querier.ExecContext(ctx, query, amount, time.Now().UTC(), id)
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

// Debit subtracts amount from the account balance when the balance covers it.
func (m *MySQLAccountRepository) Debit(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal) error {
	querier := database.GetTx(ctx, m.db)

	query := `UPDATE accounts SET balance = balance - ?, updated_at = ? WHERE id = ? AND balance >= ?`

	id, err := accountID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal account id")
	}

	result, err := querier.ExecContext(ctx, query, amount, time.Now().UTC(), id, amount)
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

	if _, err := m.Get(ctx, accountID); err != nil {
		return err
	}
	return ledgerDomain.ErrInsufficientFunds
}

// NewMySQLAccountRepository creates a new MySQL account repository.
func NewMySQLAccountRepository(db *sql.DB) *MySQLAccountRepository {
	return &MySQLAccountRepository{db: db}
}
