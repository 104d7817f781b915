package mysql

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/allisson/offcash/internal/database"
	apperrors "github.com/allisson/offcash/internal/errors"
	ledgerDomain "github.com/allisson/offcash/internal/ledger/domain"
)

// MySQLMovementRepository implements ledger movement persistence for MySQL databases.
type MySQLMovementRepository struct {
	db *sql.DB
}

// Create appends a movement, rejecting a duplicate (kind, token) pair.
func (m *MySQLMovementRepository) Create(ctx context.Context, movement *ledgerDomain.Movement) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO ledger_movements (id, account_id, token_id, kind, amount, reference_id, created_at) 
			  VALUES (?, ?, ?, ?, ?, ?, ?)`

	id, err := movement.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal movement id")
	}
	accountID, err := movement.AccountID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal account id")
	}
	tokenID, err := movement.TokenID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal token id")
	}
	var referenceID []byte
	if movement.ReferenceID != nil {
		if referenceID, err = movement.ReferenceID.MarshalBinary(); err != nil {
			return apperrors.Wrap(err, "failed to marshal reference id")
		}
	}

	_, err = querier.ExecContext(
		ctx,
		query,
		id,
		accountID,
		tokenID,
		movement.Kind,
		movement.Amount,
		referenceID,
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
func (m *MySQLMovementRepository) ListByAccount(
	ctx context.Context,
	accountID uuid.UUID,
	offset, limit int,
) ([]*ledgerDomain.Movement, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, account_id, token_id, kind, amount, reference_id, created_at 
			  FROM ledger_movements 
			  WHERE account_id = ? 
			  ORDER BY created_at DESC 
			  LIMIT ? OFFSET ?`

	accountIDBytes, err := accountID.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal account id")
	}

	rows, err := querier.QueryContext(ctx, query, accountIDBytes, limit, offset)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list ledger movements")
	}
	defer func() {
		_ = rows.Close()
	}()

	movements := make([]*ledgerDomain.Movement, 0)
	for rows.Next() {
		var movement ledgerDomain.Movement
		var id, account, token, reference []byte
		var kind string
		if err := rows.Scan(&id, &account, &token, &kind, &movement.Amount, &reference, &movement.CreatedAt); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan ledger movement")
		}
		if err := movement.ID.UnmarshalBinary(id); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal movement id")
		}
		if err := movement.AccountID.UnmarshalBinary(account); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal account id")
		}
		if err := movement.TokenID.UnmarshalBinary(token); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal token id")
		}
		if reference != nil {
			var ref uuid.UUID
			if err := ref.UnmarshalBinary(reference); err != nil {
				return nil, apperrors.Wrap(err, "failed to unmarshal reference id")
			}
			movement.ReferenceID = &ref
		}
		movement.Kind = ledgerDomain.MovementKind(kind)
		movements = append(movements, &movement)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate ledger movements")
	}
	return movements, nil
}

// NewMySQLMovementRepository creates a new MySQL movement repository.
func NewMySQLMovementRepository(db *sql.DB) *MySQLMovementRepository {
	return &MySQLMovementRepository{db: db}
}
