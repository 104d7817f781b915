// Package client is the holder device's HTTP client for the authority, plus the Syncer that
// submits held tokens for redemption once the device is online.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	cryptoDomain "github.com/allisson/offcash/internal/crypto/domain"
	apperrors "github.com/allisson/offcash/internal/errors"
	"github.com/allisson/offcash/internal/httputil"
	issuanceDTO "github.com/allisson/offcash/internal/issuance/http/dto"
	keyregistryDTO "github.com/allisson/offcash/internal/keyregistry/http/dto"
	reconciliationDTO "github.com/allisson/offcash/internal/reconciliation/http/dto"
	tokenDomain "github.com/allisson/offcash/internal/token/domain"
)

// Config configures the authority client.
type Config struct {
	BaseURL string
	// Timeout bounds each HTTP request.
	Timeout time.Duration
	// MaxElapsedTime bounds retries of one call.
	MaxElapsedTime time.Duration
}

// APIError is a non-retryable error response from the authority.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("authority returned %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("authority returned %d %s", e.StatusCode, e.Code)
}

// Unwrap maps the status code back to the error taxonomy.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusNotFound:
		return apperrors.ErrNotFound
	case http.StatusConflict:
		return apperrors.ErrConflict
	case http.StatusGone:
		return apperrors.ErrExpired
	case http.StatusUnauthorized:
		return apperrors.ErrUnauthorized
	case http.StatusForbidden:
		return apperrors.ErrForbidden
	default:
		return apperrors.ErrInvalidInput
	}
}

// Client calls the authority's HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	config     Config
	logger     *slog.Logger
}

// New creates a Client.
func New(config Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if config.MaxElapsedTime == 0 {
		config.MaxElapsedTime = time.Minute
	}
	return &Client{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		httpClient: &http.Client{Timeout: config.Timeout},
		config:     config,
		logger:     logger,
	}
}

// Redeem submits claims into accountID and returns one result per claim.
func (c *Client) Redeem(
	ctx context.Context,
	accountID uuid.UUID,
	claims []tokenDomain.RedemptionClaim,
) ([]tokenDomain.RedemptionResult, error) {
	req := reconciliationDTO.RedeemRequest{AccountID: accountID.String(), Claims: claims}
	var resp reconciliationDTO.RedeemResponse
	if err := c.do(ctx, http.MethodPost, "/v1/redeem", req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Results) != len(claims) {
		return nil, apperrors.Wrap(apperrors.ErrTransport, "result count does not match claims")
	}
	return resp.Results, nil
}

// Issue withdraws amount from accountID as tokens owned by holder.
func (c *Client) Issue(
	ctx context.Context,
	accountID uuid.UUID,
	holder cryptoDomain.PublicKey,
	amount decimal.Decimal,
	validity time.Duration,
) ([]tokenDomain.Token, error) {
	req := issuanceDTO.IssueRequest{
		AccountID:       accountID.String(),
		HolderPublicKey: holder.String(),
		Amount:          tokenDomain.FormatAmount(amount),
		ValiditySeconds: int64(validity / time.Second),
	}
	var resp issuanceDTO.IssueResponse
	if err := c.do(ctx, http.MethodPost, "/v1/issue", req, &resp); err != nil {
		return nil, err
	}
	return resp.Tokens, nil
}

// PublicKey looks up a registered key.
func (c *Client) PublicKey(
	ctx context.Context,
	keyType string,
	identifier string,
) (*keyregistryDTO.PublicKeyResponse, error) {
	path := "/v1/public-keys/" + url.PathEscape(keyType) + "/" + url.PathEscape(identifier)
	var resp keyregistryDTO.PublicKeyResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RegisterKey publishes the holder's public key under identifier.
func (c *Client) RegisterKey(ctx context.Context, identifier string, publicKey cryptoDomain.PublicKey) error {
	req := keyregistryDTO.RegisterKeyRequest{Identifier: identifier, PublicKey: publicKey.String()}
	return c.do(ctx, http.MethodPost, "/v1/public-keys", req, nil)
}

// do sends the request, retrying transport failures and 5xx/429 responses with exponential
// backoff. Every attempt carries the identical body.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return err
		}
	}

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return apperrors.Wrap(apperrors.ErrTransport, err.Error())
		}
		defer func() {
			_ = resp.Body.Close()
		}()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return apperrors.Wrap(apperrors.ErrTransport, err.Error())
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
			return apperrors.Wrap(apperrors.ErrTransport, fmt.Sprintf("authority returned %d", resp.StatusCode))
		case resp.StatusCode >= http.StatusBadRequest:
			var errResp httputil.ErrorResponse
			_ = json.Unmarshal(raw, &errResp)
			return backoff.Permanent(&APIError{
				StatusCode: resp.StatusCode,
				Code:       errResp.Error,
				Message:    errResp.Message,
			})
		}

		if out == nil {
			return nil
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return backoff.Permanent(apperrors.Wrap(err, "failed to decode authority response"))
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = c.config.MaxElapsedTime
	notify := func(err error, wait time.Duration) {
		c.logger.WarnContext(ctx, "authority request failed, retrying",
			slog.String("path", path),
			slog.Duration("wait", wait),
			slog.Any("error", err),
		)
	}
	return backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify)
}
