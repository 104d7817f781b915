package transfer

import (
	"bytes"
	"context"
	"log/slog"
	"time"

	cryptoDomain "github.com/allisson/offcash/internal/crypto/domain"
	cryptoService "github.com/allisson/offcash/internal/crypto/service"
	apperrors "github.com/allisson/offcash/internal/errors"
	holderDomain "github.com/allisson/offcash/internal/holder/domain"
	"github.com/allisson/offcash/internal/holder/store"
	tokenDomain "github.com/allisson/offcash/internal/token/domain"
)

// Receiver runs the receiving side of transfers for one holder key.
type Receiver struct {
	store  *store.Store
	codec  cryptoService.SignatureCodec
	key    *cryptoDomain.PrivateKey
	logger *slog.Logger
	now    func() time.Time
}

// NewReceiver creates a Receiver.
func NewReceiver(
	holderStore *store.Store,
	codec cryptoService.SignatureCodec,
	key *cryptoDomain.PrivateKey,
	logger *slog.Logger,
) *Receiver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Receiver{
		store:  holderStore,
		codec:  codec,
		key:    key,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// HandleOffer verifies a signed record against the cached issuer key and, when it is new,
// stores its outputs as active and returns the acknowledgement. A record already accepted gets
// its stored acknowledgement back. A proposal without a sender signature returns nil.
func (r *Receiver) HandleOffer(ctx context.Context, record tokenDomain.TransferRecord) ([]byte, error) {
	if len(record.SenderSignature) == 0 {
		return nil, nil
	}
	if !record.RecipientPublicKey.Equal(r.key.PublicKey()) {
		return nil, ErrNotRecipient
	}

	replayKey := record.ReplayKey()
	seen, err := r.store.Incoming(replayKey)
	switch {
	case err == nil:
		if !bytes.Equal(seen.Digest(), record.Digest()) {
			return nil, holderDomain.ErrReplayDetected
		}
		return seen.ReceiverAcknowledgement, nil
	case !apperrors.Is(err, holderDomain.ErrTransferNotFound):
		return nil, err
	}

	issuer, err := r.store.IssuerKey()
	if err != nil {
		return nil, err
	}
	if err := record.Verify(r.codec, issuer.PublicKey, r.now()); err != nil {
		return nil, err
	}
	if err := record.Acknowledge(r.codec, r.key); err != nil {
		return nil, err
	}

	added := make([]holderDomain.Holding, len(record.Outputs))
	for i := range record.Outputs {
		added[i] = holderDomain.Holding{Token: record.Outputs[i], Lineage: record.Lineages[i]}
	}
	if err := r.store.ApplyTransferResult(holderDomain.TransferResult{Added: added, Incoming: &record}); err != nil {
		return nil, err
	}

	// A concurrent delivery of the same record may have been stored first.
	stored, err := r.store.Incoming(replayKey)
	if err != nil {
		return nil, err
	}
	r.logger.InfoContext(ctx, "transfer received",
		slog.String("sender", record.SenderPublicKey.Address()),
		slog.Uint64("sequence", record.SequenceNumber),
		slog.String("amount", tokenDomain.FormatAmount(tokenDomain.SumAmounts(record.Outputs))),
	)
	return stored.ReceiverAcknowledgement, nil
}

// HandleStatusQuery reports whether a transfer of the queried inputs was recorded.
func (r *Receiver) HandleStatusQuery(query StatusQuery) Status {
	replayKey := tokenDomain.ReplayKey(query.TokenIDs, query.SequenceNumber)
	status := Status{ReplayKey: replayKey}
	if seen, err := r.store.Incoming(replayKey); err == nil {
		status.Known = true
		status.Acknowledgement = seen.ReceiverAcknowledgement
	}
	return status
}

// Serve answers offers and status queries on ch until ctx is done or the channel closes.
func (r *Receiver) Serve(ctx context.Context, ch Channel) error {
	for {
		msg, err := ch.Receive(ctx)
		if err != nil {
			return err
		}

		var reply *Message
		switch {
		case msg.Type == MessageOffer && msg.Offer != nil:
			reply = r.answerOffer(ctx, msg.Offer.Record)
		case msg.Type == MessageStatusQuery && msg.Query != nil:
			status := r.HandleStatusQuery(*msg.Query)
			reply = &Message{Type: MessageStatus, Status: &status}
		}
		if reply == nil {
			continue
		}
		if err := ch.Send(ctx, *reply); err != nil {
			r.logger.WarnContext(ctx, "transfer reply not delivered", slog.Any("error", err))
		}
	}
}

func (r *Receiver) answerOffer(ctx context.Context, record tokenDomain.TransferRecord) *Message {
	ack, err := r.HandleOffer(ctx, record)
	switch {
	case err != nil:
		r.logger.WarnContext(ctx, "transfer rejected",
			slog.String("sender", record.SenderPublicKey.Address()),
			slog.Uint64("sequence", record.SequenceNumber),
			slog.Any("error", err),
		)
		return &Message{Type: MessageAck, Ack: &Ack{ReplayKey: record.ReplayKey(), Rejected: err.Error()}}
	case ack == nil:
		return nil
	default:
		return &Message{Type: MessageAck, Ack: &Ack{ReplayKey: record.ReplayKey(), Acknowledgement: ack}}
	}
}
