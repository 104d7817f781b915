package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	reconciliationDomain "github.com/allisson/offcash/internal/reconciliation/domain"
	"github.com/allisson/offcash/internal/reconciliation/http/dto"
	"github.com/allisson/offcash/internal/reconciliation/usecase/mocks"
	tokenDomain "github.com/allisson/offcash/internal/token/domain"
	tokenTesting "github.com/allisson/offcash/internal/token/testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRedeemHandler_RedeemHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	f := tokenTesting.NewFixture()
	holder := tokenTesting.NewKey()
	accountID := uuid.Must(uuid.NewV7())
	root := f.Mint(holder, "10.00", time.Hour)
	claim := f.Claim(holder, accountID, root)

	t.Run("Success_ClaimRoundTripsThroughJSON", func(t *testing.T) {
		uc := &mocks.MockReconciliationUseCase{}
		redemptionID := uuid.Must(uuid.NewV7())
		uc.On("Redeem", mock.Anything, accountID, mock.MatchedBy(func(claims []tokenDomain.RedemptionClaim) bool {
			return len(claims) == 1 && claims[0].Verify(f.Codec, f.IssuerKey.PublicKey(), accountID) == nil
		})).Return([]tokenDomain.RedemptionResult{{
			TokenID:      root.ID,
			Outcome:      tokenDomain.OutcomeRedeemed,
			Amount:       root.Amount,
			RedemptionID: &redemptionID,
		}}, nil).Once()

		c, w := createTestContext(http.MethodPost, "/v1/redeem", dto.RedeemRequest{
			AccountID: accountID.String(),
			Claims:    []tokenDomain.RedemptionClaim{claim},
		})
		NewRedeemHandler(uc, testLogger()).RedeemHandler(c)

		assert.Equal(t, http.StatusOK, w.Code)
		var response dto.RedeemResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		require.Len(t, response.Results, 1)
		assert.Equal(t, tokenDomain.OutcomeRedeemed, response.Results[0].Outcome)
		uc.AssertExpectations(t)
	})

	t.Run("Error_NoClaims", func(t *testing.T) {
		uc := &mocks.MockReconciliationUseCase{}

		c, w := createTestContext(http.MethodPost, "/v1/redeem", dto.RedeemRequest{AccountID: accountID.String()})
		NewRedeemHandler(uc, testLogger()).RedeemHandler(c)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		uc.AssertNotCalled(t, "Redeem", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Error_InvalidAccountID", func(t *testing.T) {
		uc := &mocks.MockReconciliationUseCase{}

		c, w := createTestContext(http.MethodPost, "/v1/redeem", dto.RedeemRequest{
			AccountID: "not-a-uuid",
			Claims:    []tokenDomain.RedemptionClaim{claim},
		})
		NewRedeemHandler(uc, testLogger()).RedeemHandler(c)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("Error_Infrastructure", func(t *testing.T) {
		uc := &mocks.MockReconciliationUseCase{}
		uc.On("Redeem", mock.Anything, accountID, mock.Anything).Return(nil, errors.New("db down")).Once()

		c, w := createTestContext(http.MethodPost, "/v1/redeem", dto.RedeemRequest{
			AccountID: accountID.String(),
			Claims:    []tokenDomain.RedemptionClaim{claim},
		})
		NewRedeemHandler(uc, testLogger()).RedeemHandler(c)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestAuditHandler_ListHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("Success", func(t *testing.T) {
		uc := &mocks.MockAuditUseCase{}
		winner := uuid.Must(uuid.NewV7())
		audit := &reconciliationDomain.DoubleSpendAudit{
			ID:                      uuid.Must(uuid.NewV7()),
			TokenID:                 uuid.Must(uuid.NewV7()),
			ConflictingTokenID:      uuid.Must(uuid.NewV7()),
			ConflictingRedemptionID: &winner,
			AccountID:               uuid.Must(uuid.NewV7()),
			Claim:                   `{"token":{"id":"x"}}`,
			Reason:                  "token already spent",
			Signature:               []byte{1, 2, 3},
		}
		uc.On("List", mock.Anything, 0, 50).Return([]*reconciliationDomain.DoubleSpendAudit{audit}, nil).Once()

		c, w := createTestContext(http.MethodGet, "/v1/audits/double-spends", nil)
		NewAuditHandler(uc, testLogger()).ListHandler(c)

		assert.Equal(t, http.StatusOK, w.Code)
		var response dto.ListAuditsResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		require.Len(t, response.Data, 1)
		assert.Equal(t, winner.String(), *response.Data[0].ConflictingRedemptionID)
		assert.JSONEq(t, audit.Claim, string(response.Data[0].Claim))
	})

	t.Run("Error_InvalidPagination", func(t *testing.T) {
		uc := &mocks.MockAuditUseCase{}

		c, w := createTestContext(http.MethodGet, "/v1/audits/double-spends?limit=1000", nil)
		NewAuditHandler(uc, testLogger()).ListHandler(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
