// Package http provides HTTP handlers for claim reconciliation and the double-spend audit trail.
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/allisson/offcash/internal/httputil"
	"github.com/allisson/offcash/internal/reconciliation/http/dto"
	reconciliationUseCase "github.com/allisson/offcash/internal/reconciliation/usecase"
	customValidation "github.com/allisson/offcash/internal/validation"
)

// RedeemHandler handles HTTP requests for redemption.
type RedeemHandler struct {
	reconciliationUseCase reconciliationUseCase.ReconciliationUseCase
	logger                *slog.Logger
}

// NewRedeemHandler creates a new redeem handler with required dependencies.
func NewRedeemHandler(
	reconciliationUseCase reconciliationUseCase.ReconciliationUseCase,
	logger *slog.Logger,
) *RedeemHandler {
	return &RedeemHandler{
		reconciliationUseCase: reconciliationUseCase,
		logger:                logger,
	}
}

// RedeemHandler adjudicates a batch of claims.
// POST /v1/redeem - Returns 200 OK with one result per claim. Rejected claims are results,
// not request errors.
func (h *RedeemHandler) RedeemHandler(c *gin.Context) {
	var req dto.RedeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	results, err := h.reconciliationUseCase.Redeem(c.Request.Context(), uuid.MustParse(req.AccountID), req.Claims)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.RedeemResponse{Results: results})
}
