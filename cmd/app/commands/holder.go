package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	cryptoDomain "github.com/allisson/offcash/internal/crypto/domain"
	apperrors "github.com/allisson/offcash/internal/errors"
	"github.com/allisson/offcash/internal/holder/client"
	holderDomain "github.com/allisson/offcash/internal/holder/domain"
	"github.com/allisson/offcash/internal/holder/store"
	"github.com/allisson/offcash/internal/holder/transfer"
	tokenDomain "github.com/allisson/offcash/internal/token/domain"
)

// TransferPath is the websocket endpoint a receiving holder listens on.
const TransferPath = "/transfer"

// KeyRegistrar publishes a holder public key to the authority.
type KeyRegistrar interface {
	RegisterKey(ctx context.Context, identifier string, publicKey cryptoDomain.PublicKey) error
}

// RunHolderKeygen generates the device key and stores it in the holder store.
// When registrar is not nil the public key is also registered under identifier.
// Fails if the device already has a key.
func RunHolderKeygen(
	ctx context.Context,
	holderStore *store.Store,
	registrar KeyRegistrar,
	logger *slog.Logger,
	writer io.Writer,
	identifier string,
	format string,
) error {
	key, err := cryptoDomain.GeneratePrivateKey()
	if err != nil {
		return fmt.Errorf("failed to generate device key: %w", err)
	}
	if err := holderStore.SetDeviceKey(key); err != nil {
		return fmt.Errorf("failed to store device key: %w", err)
	}

	publicKey := key.PublicKey()
	registered := false
	if registrar != nil && identifier != "" {
		if err := registrar.RegisterKey(ctx, identifier, publicKey); err != nil {
			return fmt.Errorf("device key stored but registration failed: %w", err)
		}
		registered = true
	}

	logger.Info("device key created",
		slog.String("address", publicKey.Address()),
		slog.Bool("registered", registered),
	)

	if format == "json" {
		return writeJSON(writer, map[string]interface{}{
			"public_key": publicKey.String(),
			"address":    publicKey.Address(),
			"identifier": identifier,
			"registered": registered,
		})
	}

	_, _ = fmt.Fprintln(writer, "Device key created")
	_, _ = fmt.Fprintf(writer, "Public Key: %s\n", publicKey.String())
	_, _ = fmt.Fprintf(writer, "Address:    %s\n", publicKey.Address())
	if registered {
		_, _ = fmt.Fprintf(writer, "Registered: %s\n", identifier)
	}
	return nil
}

// RunHolderBalance prints every held token and the balance available for new transfers at now.
func RunHolderBalance(holderStore *store.Store, writer io.Writer, now time.Time, format string) error {
	holdings, err := holderStore.List()
	if err != nil {
		return fmt.Errorf("failed to list holdings: %w", err)
	}
	available, err := holderStore.AvailableBalance(now)
	if err != nil {
		return fmt.Errorf("failed to compute balance: %w", err)
	}

	if format == "json" {
		tokens := make([]map[string]interface{}, 0, len(holdings))
		for i := range holdings {
			tokens = append(tokens, holdingJSON(&holdings[i], now))
		}
		return writeJSON(writer, map[string]interface{}{
			"available": tokenDomain.FormatAmount(available),
			"tokens":    tokens,
		})
	}

	_, _ = fmt.Fprintf(writer, "Available: %s\n", tokenDomain.FormatAmount(available))
	if len(holdings) == 0 {
		_, _ = fmt.Fprintln(writer, "No tokens held")
		return nil
	}
	_, _ = fmt.Fprintln(writer)
	for i := range holdings {
		h := &holdings[i]
		_, _ = fmt.Fprintf(writer, "  %s  %10s  %-12s  expires %s%s\n",
			h.Token.ID,
			tokenDomain.FormatAmount(h.Token.Amount),
			h.Token.Status,
			h.Token.ExpiresAt.Format(time.RFC3339),
			reservedSuffix(h, now),
		)
	}
	return nil
}

func holdingJSON(h *holderDomain.Holding, now time.Time) map[string]interface{} {
	return map[string]interface{}{
		"id":         h.Token.ID,
		"amount":     tokenDomain.FormatAmount(h.Token.Amount),
		"status":     h.Token.Status,
		"expires_at": h.Token.ExpiresAt,
		"depth":      len(h.Lineage),
		"available":  h.IsAvailable(now),
	}
}

func reservedSuffix(h *holderDomain.Holding, now time.Time) string {
	switch {
	case h.ReservedBy != nil:
		return "  (reserved)"
	case h.Token.IsExpired(now):
		return "  (expired)"
	default:
		return ""
	}
}

// RunHolderWithdraw issues amount from the holder's account to the device and stores the
// verified tokens.
func RunHolderWithdraw(
	ctx context.Context,
	syncer *client.Syncer,
	logger *slog.Logger,
	writer io.Writer,
	amount string,
	validity time.Duration,
	now time.Time,
	format string,
) error {
	value, err := tokenDomain.ParseAmount(amount)
	if err != nil {
		return fmt.Errorf("invalid amount: %w", err)
	}

	holdings, err := syncer.Withdraw(ctx, value, validity, now)
	if err != nil {
		return fmt.Errorf("failed to withdraw: %w", err)
	}

	logger.Info("withdrawal completed",
		slog.String("amount", tokenDomain.FormatAmount(value)),
		slog.Int("tokens", len(holdings)),
	)

	if format == "json" {
		tokens := make([]map[string]interface{}, 0, len(holdings))
		for i := range holdings {
			tokens = append(tokens, holdingJSON(&holdings[i], now))
		}
		return writeJSON(writer, map[string]interface{}{
			"amount": tokenDomain.FormatAmount(value),
			"tokens": tokens,
		})
	}

	_, _ = fmt.Fprintf(writer, "Withdrew %s in %d token(s)\n", tokenDomain.FormatAmount(value), len(holdings))
	for i := range holdings {
		_, _ = fmt.Fprintf(writer, "  %s  %s\n",
			holdings[i].Token.ID,
			tokenDomain.FormatAmount(holdings[i].Token.Amount),
		)
	}
	return nil
}

// TransferHandler upgrades each request to a websocket and serves transfer offers on it until
// the peer disconnects or ctx is done.
func TransferHandler(ctx context.Context, receiver *transfer.Receiver, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(TransferPath, func(w http.ResponseWriter, r *http.Request) {
		conn, err := transfer.Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", slog.Any("error", err))
			return
		}
		ch := transfer.NewWebSocketChannel(conn, transfer.DefaultWebSocketConfig())
		defer func() {
			_ = ch.Close()
		}()

		logger.Info("peer connected", slog.String("remote_addr", r.RemoteAddr))
		err = receiver.Serve(ctx, ch)
		if err != nil && !errors.Is(err, transfer.ErrChannelClosed) && !errors.Is(err, context.Canceled) {
			logger.Warn("transfer channel failed", slog.Any("error", err))
		}
		logger.Info("peer disconnected", slog.String("remote_addr", r.RemoteAddr))
	})
	return mux
}

// RunHolderReceive accepts transfers on listener until ctx is done.
func RunHolderReceive(
	ctx context.Context,
	receiver *transfer.Receiver,
	logger *slog.Logger,
	writer io.Writer,
	listener net.Listener,
) error {
	server := &http.Server{
		Handler:           TransferHandler(ctx, receiver, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	_, _ = fmt.Fprintf(writer, "Listening for transfers on ws://%s%s\n", listener.Addr(), TransferPath)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to stop transfer listener: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("transfer listener error: %w", err)
	}
}

// RunHolderSend transfers amount to recipient over a websocket to peerURL. With resumeID set it
// continues that pending session instead of starting a new one. When no acknowledgement arrives
// the session is kept and its id printed so it can be resumed.
func RunHolderSend(
	ctx context.Context,
	sender *transfer.Sender,
	logger *slog.Logger,
	writer io.Writer,
	peerURL string,
	recipient string,
	amount string,
	resumeID string,
	format string,
) error {
	var (
		recipientKey cryptoDomain.PublicKey
		value        decimal.Decimal
		session      *transfer.Session
		err          error
	)

	if resumeID != "" {
		id, err := uuid.Parse(resumeID)
		if err != nil {
			return fmt.Errorf("invalid session id: %w", err)
		}
		if session, err = sender.LoadSession(id); err != nil {
			return fmt.Errorf("failed to load session: %w", err)
		}
	} else {
		if recipientKey, err = cryptoDomain.ParsePublicKey(recipient); err != nil {
			return fmt.Errorf("invalid recipient: %w", err)
		}
		if value, err = tokenDomain.ParseAmount(amount); err != nil {
			return fmt.Errorf("invalid amount: %w", err)
		}
	}

	ch, err := transfer.DialWebSocket(ctx, peerURL, transfer.DefaultWebSocketConfig())
	if err != nil {
		return fmt.Errorf("failed to connect to peer: %w", err)
	}
	defer func() {
		_ = ch.Close()
	}()

	if session != nil {
		err = sender.Resume(ctx, ch, session)
	} else {
		session, err = sender.Transfer(ctx, ch, recipientKey, value)
	}

	if err != nil {
		if session != nil && apperrors.Is(err, transfer.ErrAckTimeout) {
			logger.Warn("transfer pending", slog.String("session_id", session.ID.String()))
			_, _ = fmt.Fprintf(writer, "Transfer pending: no acknowledgement from peer\n")
			_, _ = fmt.Fprintf(writer, "Resume with: --resume %s\n", session.ID)
		}
		return fmt.Errorf("transfer failed: %w", err)
	}

	sent := sentAmount(session)
	logger.Info("transfer committed",
		slog.String("session_id", session.ID.String()),
		slog.String("amount", tokenDomain.FormatAmount(sent)),
	)

	if format == "json" {
		return writeJSON(writer, map[string]interface{}{
			"session_id": session.ID,
			"state":      session.State,
			"recipient":  session.Record.RecipientPublicKey.String(),
			"amount":     tokenDomain.FormatAmount(sent),
		})
	}

	_, _ = fmt.Fprintf(writer, "Transfer committed\n")
	_, _ = fmt.Fprintf(writer, "Session:   %s\n", session.ID)
	_, _ = fmt.Fprintf(writer, "Recipient: %s\n", session.Record.RecipientPublicKey.String())
	_, _ = fmt.Fprintf(writer, "Amount:    %s\n", tokenDomain.FormatAmount(sent))
	if session.Change != nil {
		_, _ = fmt.Fprintf(writer, "Change:    %s\n", tokenDomain.FormatAmount(session.Change.Token.Amount))
	}
	return nil
}

func sentAmount(session *transfer.Session) decimal.Decimal {
	total := decimal.Zero
	for _, out := range session.Record.Outputs {
		if out.OwnerPublicKey.Equal(session.Record.RecipientPublicKey) {
			total = total.Add(out.Amount)
		}
	}
	return total
}

// RunHolderSync redeems every spendable token with the authority and applies the verdicts.
func RunHolderSync(
	ctx context.Context,
	syncer *client.Syncer,
	logger *slog.Logger,
	writer io.Writer,
	now time.Time,
	format string,
) error {
	report, err := syncer.Sync(ctx, now)
	if err != nil {
		return fmt.Errorf("failed to sync: %w", err)
	}

	logger.Info("sync completed",
		slog.Int("expired", report.Expired),
		slog.Int("submitted", report.Submitted),
		slog.Int("redeemed", report.Redeemed),
		slog.Int("rejected", report.Rejected),
		slog.Int("invalid", report.Invalid),
	)

	if format == "json" {
		return writeJSON(writer, map[string]interface{}{
			"expired":   report.Expired,
			"submitted": report.Submitted,
			"redeemed":  report.Redeemed,
			"rejected":  report.Rejected,
			"invalid":   report.Invalid,
		})
	}

	_, _ = fmt.Fprintf(writer, "Sync Report\n")
	_, _ = fmt.Fprintf(writer, "===========\n\n")
	_, _ = fmt.Fprintf(writer, "Expired locally:  %d\n", report.Expired)
	_, _ = fmt.Fprintf(writer, "Submitted:        %d\n", report.Submitted)
	_, _ = fmt.Fprintf(writer, "Redeemed:         %d\n", report.Redeemed)
	_, _ = fmt.Fprintf(writer, "Double spends:    %d\n", report.Rejected)
	_, _ = fmt.Fprintf(writer, "Invalid:          %d\n", report.Invalid)
	if report.Rejected > 0 {
		_, _ = fmt.Fprintf(writer, "\nWARNING: %d token(s) were already spent elsewhere\n", report.Rejected)
	}
	return nil
}
