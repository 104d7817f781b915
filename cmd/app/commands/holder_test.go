package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/offcash/internal/crypto/domain"
	"github.com/allisson/offcash/internal/holder/client"
	holderDomain "github.com/allisson/offcash/internal/holder/domain"
	"github.com/allisson/offcash/internal/holder/store"
	"github.com/allisson/offcash/internal/holder/transfer"
	keyregistryDTO "github.com/allisson/offcash/internal/keyregistry/http/dto"
	tokenDomain "github.com/allisson/offcash/internal/token/domain"
	tokenTesting "github.com/allisson/offcash/internal/token/testing"
)

// longValidity keeps fixture tokens spendable against the wall clock used by the transfer code.
const longValidity = 10 * 365 * 24 * time.Hour

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type MockKeyRegistrar struct {
	mock.Mock
}

func (m *MockKeyRegistrar) RegisterKey(ctx context.Context, identifier string, publicKey cryptoDomain.PublicKey) error {
	return m.Called(ctx, identifier, publicKey).Error(0)
}

type MockAuthority struct {
	mock.Mock
}

func (m *MockAuthority) Redeem(
	ctx context.Context,
	accountID uuid.UUID,
	claims []tokenDomain.RedemptionClaim,
) ([]tokenDomain.RedemptionResult, error) {
	args := m.Called(ctx, accountID, claims)
	if fn, ok := args.Get(0).(func(context.Context, uuid.UUID, []tokenDomain.RedemptionClaim) []tokenDomain.RedemptionResult); ok {
		return fn(ctx, accountID, claims), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]tokenDomain.RedemptionResult), args.Error(1)
}

func (m *MockAuthority) PublicKey(
	ctx context.Context,
	keyType string,
	identifier string,
) (*keyregistryDTO.PublicKeyResponse, error) {
	args := m.Called(ctx, keyType, identifier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*keyregistryDTO.PublicKeyResponse), args.Error(1)
}

func (m *MockAuthority) Issue(
	ctx context.Context,
	accountID uuid.UUID,
	holder cryptoDomain.PublicKey,
	amount decimal.Decimal,
	validity time.Duration,
) ([]tokenDomain.Token, error) {
	args := m.Called(ctx, accountID, holder, amount, validity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]tokenDomain.Token), args.Error(1)
}

func amountOf(s string) interface{} {
	want := tokenTesting.Amount(s)
	return mock.MatchedBy(func(got decimal.Decimal) bool {
		return got.Equal(want)
	})
}

type testHolder struct {
	key   *cryptoDomain.PrivateKey
	store *store.Store
}

func newTestHolder(t *testing.T, f *tokenTesting.Fixture) *testHolder {
	t.Helper()
	s, err := store.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.Close()
	})
	require.NoError(t, s.SetIssuerKey(holderDomain.IssuerKey{
		Identifier: "issuer",
		PublicKey:  f.IssuerKey.PublicKey(),
		FetchedAt:  f.Now,
	}))
	key := tokenTesting.NewKey()
	return &testHolder{key: key, store: s}
}

func (h *testHolder) fund(t *testing.T, f *tokenTesting.Fixture, amount string) {
	t.Helper()
	tok := f.Mint(h.key, amount, longValidity)
	require.NoError(t, h.store.Add(holderDomain.Holding{Token: tok, UpdatedAt: f.Now}))
}

func (h *testHolder) balance(t *testing.T) string {
	t.Helper()
	balance, err := h.store.AvailableBalance(time.Now())
	require.NoError(t, err)
	return tokenDomain.FormatAmount(balance)
}

func (h *testHolder) sender(f *tokenTesting.Fixture, config transfer.Config) *transfer.Sender {
	return transfer.NewSender(h.store, f.Codec, h.key, config, quietLogger)
}

var fastTransfer = transfer.Config{
	AttemptTimeout:  100 * time.Millisecond,
	InitialInterval: 10 * time.Millisecond,
	MaxElapsedTime:  300 * time.Millisecond,
}

// startReceiver runs RunHolderReceive for h on a loopback port and returns the peer URL.
func startReceiver(t *testing.T, f *tokenTesting.Fixture, h *testHolder) string {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	receiver := transfer.NewReceiver(h.store, f.Codec, h.key, quietLogger)
	done := make(chan error, 1)
	go func() {
		done <- RunHolderReceive(ctx, receiver, quietLogger, io.Discard, listener)
	}()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})
	return "ws://" + listener.Addr().String() + TransferPath
}

func TestRunHolderKeygen(t *testing.T) {
	ctx := context.Background()

	t.Run("success-with-registration", func(t *testing.T) {
		s, err := store.OpenInMemory()
		require.NoError(t, err)
		defer func() {
			_ = s.Close()
		}()

		registrar := &MockKeyRegistrar{}
		registrar.On("RegisterKey", ctx, "alice-phone", mock.AnythingOfType("domain.PublicKey")).Return(nil)

		var out bytes.Buffer
		err = RunHolderKeygen(ctx, s, registrar, quietLogger, &out, "alice-phone", "text")
		require.NoError(t, err)

		key, err := s.DeviceKey()
		require.NoError(t, err)
		require.Contains(t, out.String(), key.PublicKey().String())
		require.Contains(t, out.String(), "Registered: alice-phone")
		registrar.AssertExpectations(t)
	})

	t.Run("without-registrar-json", func(t *testing.T) {
		s, err := store.OpenInMemory()
		require.NoError(t, err)
		defer func() {
			_ = s.Close()
		}()

		var out bytes.Buffer
		require.NoError(t, RunHolderKeygen(ctx, s, nil, quietLogger, &out, "", "json"))

		var result map[string]interface{}
		require.NoError(t, json.Unmarshal(out.Bytes(), &result))
		require.Equal(t, false, result["registered"])
		require.NotEmpty(t, result["address"])
	})

	t.Run("existing-key", func(t *testing.T) {
		s, err := store.OpenInMemory()
		require.NoError(t, err)
		defer func() {
			_ = s.Close()
		}()

		require.NoError(t, RunHolderKeygen(ctx, s, nil, quietLogger, io.Discard, "", "text"))
		err = RunHolderKeygen(ctx, s, nil, quietLogger, io.Discard, "", "text")
		require.ErrorIs(t, err, holderDomain.ErrDeviceKeyExists)
	})

	t.Run("registration-error", func(t *testing.T) {
		s, err := store.OpenInMemory()
		require.NoError(t, err)
		defer func() {
			_ = s.Close()
		}()

		registrar := &MockKeyRegistrar{}
		registrar.On("RegisterKey", ctx, "alice-phone", mock.Anything).Return(errors.New("conflict"))

		err = RunHolderKeygen(ctx, s, registrar, quietLogger, io.Discard, "alice-phone", "text")
		require.Error(t, err)
		require.Contains(t, err.Error(), "registration failed")

		_, err = s.DeviceKey()
		require.NoError(t, err)
	})
}

func TestRunHolderBalance(t *testing.T) {
	f := tokenTesting.NewFixture()

	t.Run("empty", func(t *testing.T) {
		h := newTestHolder(t, f)

		var out bytes.Buffer
		require.NoError(t, RunHolderBalance(h.store, &out, f.Now, "text"))
		require.Contains(t, out.String(), "Available: 0.00")
		require.Contains(t, out.String(), "No tokens held")
	})

	t.Run("text", func(t *testing.T) {
		h := newTestHolder(t, f)
		h.fund(t, f, "10.00")
		h.fund(t, f, "2.50")

		var out bytes.Buffer
		require.NoError(t, RunHolderBalance(h.store, &out, f.Now, "text"))
		require.Contains(t, out.String(), "Available: 12.50")
		require.Contains(t, out.String(), "10.00")
		require.Contains(t, out.String(), "2.50")
	})

	t.Run("json-excludes-expired", func(t *testing.T) {
		h := newTestHolder(t, f)
		h.fund(t, f, "4.00")
		expiring := f.Mint(h.key, "3.00", time.Minute)
		require.NoError(t, h.store.Add(holderDomain.Holding{Token: expiring}))

		var out bytes.Buffer
		require.NoError(t, RunHolderBalance(h.store, &out, f.Now.Add(time.Hour), "json"))

		var result struct {
			Available string                   `json:"available"`
			Tokens    []map[string]interface{} `json:"tokens"`
		}
		require.NoError(t, json.Unmarshal(out.Bytes(), &result))
		require.Equal(t, "4.00", result.Available)
		require.Len(t, result.Tokens, 2)
	})
}

func TestRunHolderWithdraw(t *testing.T) {
	ctx := context.Background()
	f := tokenTesting.NewFixture()
	accountID := uuid.Must(uuid.NewV7())

	issuerResponse := &keyregistryDTO.PublicKeyResponse{
		Type:       "issuer",
		Identifier: "issuer",
		PublicKey:  f.IssuerKey.PublicKey().String(),
	}

	t.Run("success", func(t *testing.T) {
		h := newTestHolder(t, f)
		authority := &MockAuthority{}
		authority.On("PublicKey", ctx, "issuer", "issuer").Return(issuerResponse, nil)
		authority.On("Issue", ctx, accountID, mock.Anything, amountOf("15"), time.Hour).
			Return([]tokenDomain.Token{
				f.Mint(h.key, "10.00", time.Hour),
				f.Mint(h.key, "5.00", time.Hour),
			}, nil)
		syncer := client.NewSyncer(h.store, authority, f.Codec, h.key, accountID, "issuer", quietLogger)

		var out bytes.Buffer
		err := RunHolderWithdraw(ctx, syncer, quietLogger, &out, "15", time.Hour, f.Now, "text")
		require.NoError(t, err)
		require.Contains(t, out.String(), "Withdrew 15.00 in 2 token(s)")

		balance, err := h.store.AvailableBalance(f.Now)
		require.NoError(t, err)
		require.Equal(t, "15.00", tokenDomain.FormatAmount(balance))
		authority.AssertExpectations(t)
	})

	t.Run("invalid-amount", func(t *testing.T) {
		err := RunHolderWithdraw(ctx, nil, quietLogger, io.Discard, "abc", time.Hour, f.Now, "text")
		require.Error(t, err)
		require.Contains(t, err.Error(), "invalid amount")
	})

	t.Run("authority-error", func(t *testing.T) {
		h := newTestHolder(t, f)
		authority := &MockAuthority{}
		authority.On("PublicKey", ctx, "issuer", "issuer").Return(issuerResponse, nil)
		authority.On("Issue", ctx, accountID, mock.Anything, mock.Anything, time.Hour).
			Return(nil, errors.New("insufficient funds"))
		syncer := client.NewSyncer(h.store, authority, f.Codec, h.key, accountID, "issuer", quietLogger)

		err := RunHolderWithdraw(ctx, syncer, quietLogger, io.Discard, "15", time.Hour, f.Now, "text")
		require.Error(t, err)
		require.Contains(t, err.Error(), "failed to withdraw")
	})
}

func TestRunHolderSend(t *testing.T) {
	ctx := context.Background()
	f := tokenTesting.NewFixture()

	t.Run("commits-over-websocket", func(t *testing.T) {
		alice := newTestHolder(t, f)
		bob := newTestHolder(t, f)
		alice.fund(t, f, "20.00")
		peerURL := startReceiver(t, f, bob)

		var out bytes.Buffer
		err := RunHolderSend(
			ctx,
			alice.sender(f, transfer.DefaultConfig()),
			quietLogger,
			&out,
			peerURL,
			bob.key.PublicKey().String(),
			"7.25",
			"",
			"text",
		)
		require.NoError(t, err)
		require.Contains(t, out.String(), "Transfer committed")
		require.Contains(t, out.String(), "Amount:    7.25")
		require.Contains(t, out.String(), "Change:    12.75")

		require.Equal(t, "12.75", alice.balance(t))
		require.Equal(t, "7.25", bob.balance(t))
	})

	t.Run("pending-session-resumes", func(t *testing.T) {
		alice := newTestHolder(t, f)
		bob := newTestHolder(t, f)
		alice.fund(t, f, "10.00")

		silent := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			conn, err := transfer.Upgrader.Upgrade(w, r, nil)
			if err != nil {
				return
			}
			defer func() {
				_ = conn.Close()
			}()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}))
		defer silent.Close()

		var out bytes.Buffer
		err := RunHolderSend(
			ctx,
			alice.sender(f, fastTransfer),
			quietLogger,
			&out,
			"ws"+strings.TrimPrefix(silent.URL, "http"),
			bob.key.PublicKey().String(),
			"4.00",
			"",
			"text",
		)
		require.ErrorIs(t, err, transfer.ErrAckTimeout)
		require.Contains(t, out.String(), "Transfer pending")

		match := regexp.MustCompile(`--resume (\S+)`).FindStringSubmatch(out.String())
		require.Len(t, match, 2)
		require.Equal(t, "0.00", alice.balance(t))

		peerURL := startReceiver(t, f, bob)
		out.Reset()
		err = RunHolderSend(
			ctx,
			alice.sender(f, fastTransfer),
			quietLogger,
			&out,
			peerURL,
			"",
			"",
			match[1],
			"json",
		)
		require.NoError(t, err)

		var result map[string]interface{}
		require.NoError(t, json.Unmarshal(out.Bytes(), &result))
		require.Equal(t, "committed", result["state"])
		require.Equal(t, "4.00", result["amount"])
		require.Equal(t, "4.00", bob.balance(t))
		require.Equal(t, "6.00", alice.balance(t))
	})

	t.Run("invalid-recipient", func(t *testing.T) {
		err := RunHolderSend(ctx, nil, quietLogger, io.Discard, "ws://localhost", "nope", "1.00", "", "text")
		require.Error(t, err)
		require.Contains(t, err.Error(), "invalid recipient")
	})

	t.Run("invalid-session-id", func(t *testing.T) {
		err := RunHolderSend(ctx, nil, quietLogger, io.Discard, "ws://localhost", "", "", "nope", "text")
		require.Error(t, err)
		require.Contains(t, err.Error(), "invalid session id")
	})

	t.Run("insufficient-balance", func(t *testing.T) {
		alice := newTestHolder(t, f)
		bob := newTestHolder(t, f)
		alice.fund(t, f, "1.00")
		peerURL := startReceiver(t, f, bob)

		err := RunHolderSend(
			ctx,
			alice.sender(f, fastTransfer),
			quietLogger,
			io.Discard,
			peerURL,
			bob.key.PublicKey().String(),
			"5.00",
			"",
			"text",
		)
		require.Error(t, err)
		require.Equal(t, "1.00", alice.balance(t))
	})
}

func TestRunHolderSync(t *testing.T) {
	ctx := context.Background()
	f := tokenTesting.NewFixture()
	accountID := uuid.Must(uuid.NewV7())

	t.Run("redeems-held-tokens", func(t *testing.T) {
		h := newTestHolder(t, f)
		h.fund(t, f, "3.00")

		authority := &MockAuthority{}
		authority.On("PublicKey", ctx, "issuer", "issuer").Return(nil, errors.New("offline"))
		authority.On("Redeem", ctx, accountID, mock.AnythingOfType("[]domain.RedemptionClaim")).
			Return(func(_ context.Context, _ uuid.UUID, claims []tokenDomain.RedemptionClaim) []tokenDomain.RedemptionResult {
				results := make([]tokenDomain.RedemptionResult, len(claims))
				for i := range claims {
					results[i] = tokenDomain.RedemptionResult{
						TokenID: claims[i].Token.ID,
						Amount:  claims[i].Token.Amount,
						Outcome: tokenDomain.OutcomeRedeemed,
					}
				}
				return results
			}, nil)
		syncer := client.NewSyncer(h.store, authority, f.Codec, h.key, accountID, "issuer", quietLogger)

		var out bytes.Buffer
		err := RunHolderSync(ctx, syncer, quietLogger, &out, f.Now, "text")
		require.NoError(t, err)
		require.Contains(t, out.String(), "Redeemed:         1")
		require.Equal(t, "0.00", h.balance(t))
		authority.AssertExpectations(t)
	})

	t.Run("authority-error", func(t *testing.T) {
		h := newTestHolder(t, f)
		h.fund(t, f, "3.00")

		authority := &MockAuthority{}
		authority.On("PublicKey", ctx, "issuer", "issuer").Return(nil, errors.New("offline"))
		authority.On("Redeem", ctx, accountID, mock.Anything).Return(nil, errors.New("offline"))
		syncer := client.NewSyncer(h.store, authority, f.Codec, h.key, accountID, "issuer", quietLogger)

		err := RunHolderSync(ctx, syncer, quietLogger, io.Discard, f.Now, "json")
		require.Error(t, err)
		require.Contains(t, err.Error(), "failed to sync")
	})
}
