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
	reconciliationDomain "github.com/allisson/offcash/internal/reconciliation/domain"
)

// MySQLAllocationRepository implements token allocation persistence for MySQL databases.
type MySQLAllocationRepository struct {
	db *sql.DB
}

// Create inserts a new allocation.
func (m *MySQLAllocationRepository) Create(ctx context.Context, allocation *reconciliationDomain.Allocation) error {
	query := `INSERT INTO token_allocations (token_id, root_token_id, capacity, consumed, first_redemption_id, created_at, updated_at) 
			  VALUES (?, ?, ?, ?, ?, ?, ?)`

	if err := m.insert(ctx, query, allocation); err != nil {
		return apperrors.Wrap(err, "failed to create token allocation")
	}
	return nil
}

// Ensure inserts the allocation unless one already exists for the token id.
func (m *MySQLAllocationRepository) Ensure(ctx context.Context, allocation *reconciliationDomain.Allocation) error {
	query := `INSERT INTO token_allocations (token_id, root_token_id, capacity, consumed, first_redemption_id, created_at, updated_at) 
			  VALUES (?, ?, ?, ?, ?, ?, ?) 
			  ON DUPLICATE KEY UPDATE token_id = token_id`

	if err := m.insert(ctx, query, allocation); err != nil {
		return apperrors.Wrap(err, "failed to ensure token allocation")
	}
	return nil
}

func (m *MySQLAllocationRepository) insert(
	ctx context.Context,
	query string,
	allocation *reconciliationDomain.Allocation,
) error {
	querier := database.GetTx(ctx, m.db)

	ids, err := marshalUUIDs(allocation.TokenID, allocation.RootTokenID)
	if err != nil {
		return err
	}
	first, err := nullableUUID(allocation.FirstRedemptionID)
	if err != nil {
		return err
	}

	_, err = querier.ExecContext(
		ctx,
		query,
		ids[0],
		ids[1],
		allocation.Capacity,
		allocation.Consumed,
		first,
		allocation.CreatedAt,
		allocation.UpdatedAt,
	)
	return err
}

// Consume adds amount to the consumed value when it still fits the capacity and the allocation
// belongs to rootTokenID.
func (m *MySQLAllocationRepository) Consume(
	ctx context.Context,
	tokenID uuid.UUID,
	rootTokenID uuid.UUID,
	amount decimal.Decimal,
	redemptionID uuid.UUID,
	now time.Time,
) (bool, error) {
	querier := database.GetTx(ctx, m.db)

	query := `UPDATE token_allocations 
			  SET consumed = consumed + ?, first_redemption_id = COALESCE(first_redemption_id, ?), updated_at = ? 
			  WHERE token_id = ? AND root_token_id = ? AND consumed + ? <= capacity`

	ids, err := marshalUUIDs(tokenID, redemptionID, rootTokenID)
	if err != nil {
		return false, apperrors.Wrap(err, "failed to marshal allocation ids")
	}

	result, err := querier.ExecContext(ctx, query, amount, ids[1], now.UTC(), ids[0], ids[2], amount)
	if err != nil {
		return false, apperrors.Wrap(err, "failed to consume token allocation")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, apperrors.Wrap(err, "failed to get rows affected")
	}
	return rows == 1, nil
}

// Get retrieves the allocation of a token id.
func (m *MySQLAllocationRepository) Get(
	ctx context.Context,
	tokenID uuid.UUID,
) (*reconciliationDomain.Allocation, error) {
	return m.get(ctx, tokenID, false)
}

// GetForUpdate retrieves the allocation and locks its row until the transaction ends.
func (m *MySQLAllocationRepository) GetForUpdate(
	ctx context.Context,
	tokenID uuid.UUID,
) (*reconciliationDomain.Allocation, error) {
	return m.get(ctx, tokenID, true)
}

func (m *MySQLAllocationRepository) get(
	ctx context.Context,
	tokenID uuid.UUID,
	forUpdate bool,
) (*reconciliationDomain.Allocation, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT token_id, root_token_id, capacity, consumed, first_redemption_id, created_at, updated_at 
			  FROM token_allocations WHERE token_id = ?`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	idBytes, err := tokenID.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal token id")
	}

	var allocation reconciliationDomain.Allocation
	var id, rootID, first []byte
	err = querier.QueryRowContext(ctx, query, idBytes).Scan(
		&id,
		&rootID,
		&allocation.Capacity,
		&allocation.Consumed,
		&first,
		&allocation.CreatedAt,
		&allocation.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, reconciliationDomain.ErrAllocationNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get token allocation")
	}

	if err := unmarshalUUIDs([][]byte{id, rootID}, &allocation.TokenID, &allocation.RootTokenID); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal allocation ids")
	}
	if allocation.FirstRedemptionID, err = scanNullableUUID(first); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal first redemption id")
	}
	return &allocation, nil
}

// Close marks the whole capacity as consumed.
func (m *MySQLAllocationRepository) Close(ctx context.Context, tokenID uuid.UUID, now time.Time) error {
	querier := database.GetTx(ctx, m.db)

	query := `UPDATE token_allocations SET consumed = capacity, updated_at = ? WHERE token_id = ?`

	idBytes, err := tokenID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal token id")
	}

	if _, err := querier.ExecContext(ctx, query, now.UTC(), idBytes); err != nil {
		return apperrors.Wrap(err, "failed to close token allocation")
	}
	// MySQL reports zero affected rows when consumed already equals capacity, so existence
	// is checked separately.
	if _, err := m.get(ctx, tokenID, false); err != nil {
		return err
	}
	return nil
}

// NewMySQLAllocationRepository creates a new MySQL allocation repository.
func NewMySQLAllocationRepository(db *sql.DB) *MySQLAllocationRepository {
	return &MySQLAllocationRepository{db: db}
}
