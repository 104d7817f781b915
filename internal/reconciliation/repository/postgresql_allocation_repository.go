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
	reconciliationDomain "github.com/allisson/offcash/internal/reconciliation/domain"
)

// PostgreSQLAllocationRepository implements token allocation persistence for PostgreSQL databases.
type PostgreSQLAllocationRepository struct {
	db *sql.DB
}

// Create inserts a new allocation.
func (p *PostgreSQLAllocationRepository) Create(ctx context.Context, allocation *reconciliationDomain.Allocation) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO token_allocations (token_id, root_token_id, capacity, consumed, first_redemption_id, created_at, updated_at) 
			  VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := querier.ExecContext(
		ctx,
		query,
		allocation.TokenID,
		allocation.RootTokenID,
		allocation.Capacity,
		allocation.Consumed,
		allocation.FirstRedemptionID,
		allocation.CreatedAt,
		allocation.UpdatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create token allocation")
	}
	return nil
}

// Ensure inserts the allocation unless one already exists for the token id. The first
// capacity recorded for an id wins.
func (p *PostgreSQLAllocationRepository) Ensure(ctx context.Context, allocation *reconciliationDomain.Allocation) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO token_allocations (token_id, root_token_id, capacity, consumed, first_redemption_id, created_at, updated_at) 
			  VALUES ($1, $2, $3, $4, $5, $6, $7) 
			  ON CONFLICT (token_id) DO NOTHING`

	_, err := querier.ExecContext(
		ctx,
		query,
		allocation.TokenID,
		allocation.RootTokenID,
		allocation.Capacity,
		allocation.Consumed,
		allocation.FirstRedemptionID,
		allocation.CreatedAt,
		allocation.UpdatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to ensure token allocation")
	}
	return nil
}

// Consume adds amount to the consumed value when it still fits the capacity of the allocation
// of tokenID under rootTokenID. It reports false, without changing anything, when the
// allocation cannot absorb amount or belongs to another root.
func (p *PostgreSQLAllocationRepository) Consume(
	ctx context.Context,
	tokenID uuid.UUID,
	rootTokenID uuid.UUID,
	amount decimal.Decimal,
	redemptionID uuid.UUID,
	now time.Time,
) (bool, error) {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE token_allocations 
			  SET consumed = consumed + $1, first_redemption_id = COALESCE(first_redemption_id, $2), updated_at = $3 
			  WHERE token_id = $4 AND root_token_id = $5 AND consumed + $1 <= capacity`

	result, err := querier.ExecContext(ctx, query, amount, redemptionID, now.UTC(), tokenID, rootTokenID)
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
func (p *PostgreSQLAllocationRepository) Get(
	ctx context.Context,
	tokenID uuid.UUID,
) (*reconciliationDomain.Allocation, error) {
	return p.get(ctx, tokenID, false)
}

// GetForUpdate retrieves the allocation and locks its row until the transaction ends.
func (p *PostgreSQLAllocationRepository) GetForUpdate(
	ctx context.Context,
	tokenID uuid.UUID,
) (*reconciliationDomain.Allocation, error) {
	return p.get(ctx, tokenID, true)
}

func (p *PostgreSQLAllocationRepository) get(
	ctx context.Context,
	tokenID uuid.UUID,
	forUpdate bool,
) (*reconciliationDomain.Allocation, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT token_id, root_token_id, capacity, consumed, first_redemption_id, created_at, updated_at 
			  FROM token_allocations WHERE token_id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var allocation reconciliationDomain.Allocation
	err := querier.QueryRowContext(ctx, query, tokenID).Scan(
		&allocation.TokenID,
		&allocation.RootTokenID,
		&allocation.Capacity,
		&allocation.Consumed,
		&allocation.FirstRedemptionID,
		&allocation.CreatedAt,
		&allocation.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, reconciliationDomain.ErrAllocationNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get token allocation")
	}
	return &allocation, nil
}

// Close marks the whole capacity as consumed so nothing can be redeemed afterwards.
func (p *PostgreSQLAllocationRepository) Close(ctx context.Context, tokenID uuid.UUID, now time.Time) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE token_allocations SET consumed = capacity, updated_at = $1 WHERE token_id = $2`

	result, err := querier.ExecContext(ctx, query, now.UTC(), tokenID)
	if err != nil {
		return apperrors.Wrap(err, "failed to close token allocation")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return reconciliationDomain.ErrAllocationNotFound
	}
	return nil
}

// NewPostgreSQLAllocationRepository creates a new PostgreSQL allocation repository.
func NewPostgreSQLAllocationRepository(db *sql.DB) *PostgreSQLAllocationRepository {
	return &PostgreSQLAllocationRepository{db: db}
}
