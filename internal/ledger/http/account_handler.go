// Package http provides HTTP handlers for funded accounts.
package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/allisson/offcash/internal/httputil"
	"github.com/allisson/offcash/internal/ledger/http/dto"
	ledgerUseCase "github.com/allisson/offcash/internal/ledger/usecase"
	customValidation "github.com/allisson/offcash/internal/validation"
)

// AccountHandler handles HTTP requests for account operations.
type AccountHandler struct {
	ledgerUseCase ledgerUseCase.LedgerUseCase
	logger        *slog.Logger
}

// NewAccountHandler creates a new account handler with required dependencies.
func NewAccountHandler(ledgerUseCase ledgerUseCase.LedgerUseCase, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{
		ledgerUseCase: ledgerUseCase,
		logger:        logger,
	}
}

// CreateHandler opens an empty account.
// POST /v1/accounts - Returns 201 Created with the account.
func (h *AccountHandler) CreateHandler(c *gin.Context) {
	var req dto.CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	account, err := h.ledgerUseCase.CreateAccount(c.Request.Context(), req.Name)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.MapAccountToResponse(account))
}

// GetHandler returns an account with its balance.
// GET /v1/accounts/:id - Returns 200 OK.
func (h *AccountHandler) GetHandler(c *gin.Context) {
	accountID, ok := h.parseAccountID(c)
	if !ok {
		return
	}

	account, err := h.ledgerUseCase.Get(c.Request.Context(), accountID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapAccountToResponse(account))
}

// FundHandler credits an account on behalf of the external funding service.
// POST /v1/accounts/:id/fund - Returns 200 OK with the updated account.
func (h *AccountHandler) FundHandler(c *gin.Context) {
	accountID, ok := h.parseAccountID(c)
	if !ok {
		return
	}

	var req dto.FundAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	account, err := h.ledgerUseCase.Fund(c.Request.Context(), accountID, decimal.RequireFromString(req.Amount))
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapAccountToResponse(account))
}

// ListMovementsHandler lists account movements with pagination.
// GET /v1/accounts/:id/movements?offset=0&limit=50 - Returns 200 OK.
func (h *AccountHandler) ListMovementsHandler(c *gin.Context) {
	accountID, ok := h.parseAccountID(c)
	if !ok {
		return
	}

	offset, limit, err := httputil.ParsePagination(c)
	if err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	movements, err := h.ledgerUseCase.ListMovements(c.Request.Context(), accountID, offset, limit)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapMovementsToListResponse(movements))
}

func (h *AccountHandler) parseAccountID(c *gin.Context) (uuid.UUID, bool) {
	accountID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.HandleBadRequestGin(c, fmt.Errorf("invalid account id format: must be a valid UUID"), h.logger)
		return uuid.Nil, false
	}
	return accountID, true
}
