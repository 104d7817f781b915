package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/allisson/offcash/internal/httputil"
	"github.com/allisson/offcash/internal/reconciliation/http/dto"
	reconciliationUseCase "github.com/allisson/offcash/internal/reconciliation/usecase"
)

// AuditHandler exposes the double-spend audit trail.
type AuditHandler struct {
	auditUseCase reconciliationUseCase.AuditUseCase
	logger       *slog.Logger
}

// NewAuditHandler creates a new audit handler.
func NewAuditHandler(auditUseCase reconciliationUseCase.AuditUseCase, logger *slog.Logger) *AuditHandler {
	return &AuditHandler{
		auditUseCase: auditUseCase,
		logger:       logger,
	}
}

// ListHandler lists double-spend audits with pagination.
// GET /v1/audits/double-spends?offset=0&limit=50 - Returns 200 OK.
func (h *AuditHandler) ListHandler(c *gin.Context) {
	offset, limit, err := httputil.ParsePagination(c)
	if err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	audits, err := h.auditUseCase.List(c.Request.Context(), offset, limit)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapAuditsToListResponse(audits))
}
