// Package http provides HTTP handlers for the public key registry.
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	cryptoDomain "github.com/allisson/offcash/internal/crypto/domain"
	"github.com/allisson/offcash/internal/httputil"
	"github.com/allisson/offcash/internal/keyregistry/http/dto"
	keyregistryDomain "github.com/allisson/offcash/internal/keyregistry/domain"
	keyregistryUseCase "github.com/allisson/offcash/internal/keyregistry/usecase"
	customValidation "github.com/allisson/offcash/internal/validation"
)

// PublicKeyHandler handles HTTP requests for the key registry.
type PublicKeyHandler struct {
	keyRegistryUseCase keyregistryUseCase.KeyRegistryUseCase
	logger             *slog.Logger
}

// NewPublicKeyHandler creates a new public key handler with required dependencies.
func NewPublicKeyHandler(
	keyRegistryUseCase keyregistryUseCase.KeyRegistryUseCase,
	logger *slog.Logger,
) *PublicKeyHandler {
	return &PublicKeyHandler{
		keyRegistryUseCase: keyRegistryUseCase,
		logger:             logger,
	}
}

// RegisterHandler publishes a holder key.
// POST /v1/public-keys - Returns 201 Created.
func (h *PublicKeyHandler) RegisterHandler(c *gin.Context) {
	var req dto.RegisterKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	publicKey, err := cryptoDomain.ParsePublicKey(req.PublicKey)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	key, err := h.keyRegistryUseCase.Register(c.Request.Context(), req.Identifier, publicKey, req.ExpiresAt)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.MapKeyToResponse(key))
}

// GetHandler looks up a key by type and identifier.
// GET /v1/public-keys/:type/:identifier - Returns 200 OK.
func (h *PublicKeyHandler) GetHandler(c *gin.Context) {
	keyType, err := keyregistryDomain.ParseKeyType(c.Param("type"))
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	key, err := h.keyRegistryUseCase.Lookup(c.Request.Context(), keyType, c.Param("identifier"))
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapKeyToResponse(key))
}
