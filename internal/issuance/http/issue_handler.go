// Package http provides HTTP handlers for token issuance.
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/allisson/offcash/internal/httputil"
	"github.com/allisson/offcash/internal/issuance/http/dto"
	issuanceUseCase "github.com/allisson/offcash/internal/issuance/usecase"
	customValidation "github.com/allisson/offcash/internal/validation"
)

// IssueHandler handles HTTP requests for token issuance.
type IssueHandler struct {
	issuanceUseCase issuanceUseCase.IssuanceUseCase
	logger          *slog.Logger
}

// NewIssueHandler creates a new issue handler with required dependencies.
func NewIssueHandler(issuanceUseCase issuanceUseCase.IssuanceUseCase, logger *slog.Logger) *IssueHandler {
	return &IssueHandler{
		issuanceUseCase: issuanceUseCase,
		logger:          logger,
	}
}

// IssueHandler mints tokens for a holder key against a funded account.
// POST /v1/issue - Returns 201 Created with the tokens.
func (h *IssueHandler) IssueHandler(c *gin.Context) {
	var req dto.IssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	input, err := req.ToInput()
	if err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	tokens, err := h.issuanceUseCase.IssueBatch(c.Request.Context(), input)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.MapTokensToIssueResponse(tokens))
}
