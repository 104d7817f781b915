package commands

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/offcash/internal/crypto/domain"
	cryptoService "github.com/allisson/offcash/internal/crypto/service"
)

type MockKMSService struct {
	mock.Mock
}

func (m *MockKMSService) OpenKeeper(ctx context.Context, uri string) (cryptoDomain.KMSKeeper, error) {
	args := m.Called(ctx, uri)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(cryptoDomain.KMSKeeper), args.Error(1)
}

func (m *MockKMSService) WrapPrivateKey(
	ctx context.Context,
	keeper cryptoDomain.KMSKeeper,
	key *cryptoDomain.PrivateKey,
) (string, error) {
	args := m.Called(ctx, keeper, key)
	return args.String(0), args.Error(1)
}

func (m *MockKMSService) UnwrapPrivateKey(
	ctx context.Context,
	keeper cryptoDomain.KMSKeeper,
	wrapped string,
) (*cryptoDomain.PrivateKey, error) {
	args := m.Called(ctx, keeper, wrapped)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cryptoDomain.PrivateKey), args.Error(1)
}

type MockKMSKeeper struct {
	mock.Mock
}

func (m *MockKMSKeeper) Encrypt(ctx context.Context, plaintext []byte) ([]byte, error) {
	args := m.Called(ctx, plaintext)
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockKMSKeeper) Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error) {
	args := m.Called(ctx, ciphertext)
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockKMSKeeper) Close() error {
	return m.Called().Error(0)
}

func localKeyURI(t *testing.T) string {
	t.Helper()
	secret := make([]byte, 32)
	_, err := rand.Read(secret)
	require.NoError(t, err)
	return "base64key://" + base64.URLEncoding.EncodeToString(secret)
}

func TestRunCreateIssuerKey(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("success-round-trips-through-local-keeper", func(t *testing.T) {
		uri := localKeyURI(t)
		kmsService := cryptoService.NewKMSService()

		var out bytes.Buffer
		err := RunCreateIssuerKey(ctx, kmsService, logger, &out, "issuer-test", uri)
		require.NoError(t, err)
		require.Contains(t, out.String(), `ISSUER_KEY_ID="issuer-test"`)

		match := regexp.MustCompile(`ISSUER_PRIVATE_KEY="([^"]+)"`).FindStringSubmatch(out.String())
		require.Len(t, match, 2)
		publicKey := regexp.MustCompile(`# Public key: (\S+)`).FindStringSubmatch(out.String())
		require.Len(t, publicKey, 2)

		key, err := cryptoService.LoadIssuerKey(ctx, kmsService, uri, match[1], logger)
		require.NoError(t, err)
		require.Equal(t, publicKey[1], key.PublicKey().String())
	})

	t.Run("default-key-id", func(t *testing.T) {
		var out bytes.Buffer
		err := RunCreateIssuerKey(ctx, cryptoService.NewKMSService(), logger, &out, "", localKeyURI(t))
		require.NoError(t, err)
		require.Regexp(t, `ISSUER_KEY_ID="issuer-\d{4}-\d{2}-\d{2}"`, out.String())
	})

	t.Run("missing-kms-key-uri", func(t *testing.T) {
		err := RunCreateIssuerKey(ctx, nil, logger, nil, "", "")
		require.Error(t, err)
		require.Contains(t, err.Error(), "required")
	})

	t.Run("kms-error", func(t *testing.T) {
		mockService := &MockKMSService{}
		mockService.On("OpenKeeper", ctx, "invalid").Return(nil, errors.New("kms error"))

		err := RunCreateIssuerKey(ctx, mockService, logger, &bytes.Buffer{}, "issuer-test", "invalid")
		require.Error(t, err)
		require.Contains(t, err.Error(), "failed to open KMS keeper")
		mockService.AssertExpectations(t)
	})

	t.Run("wrap-error-closes-keeper", func(t *testing.T) {
		mockService := &MockKMSService{}
		mockKeeper := &MockKMSKeeper{}
		mockService.On("OpenKeeper", ctx, "base64key://...").Return(mockKeeper, nil)
		mockService.On("WrapPrivateKey", ctx, mockKeeper, mock.AnythingOfType("*domain.PrivateKey")).
			Return("", errors.New("encrypt failed"))
		mockKeeper.On("Close").Return(nil)

		err := RunCreateIssuerKey(ctx, mockService, logger, &bytes.Buffer{}, "issuer-test", "base64key://...")
		require.Error(t, err)
		require.Contains(t, err.Error(), "failed to wrap issuer key")
		mockService.AssertExpectations(t)
		mockKeeper.AssertExpectations(t)
	})
}
