package transfer

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	cryptoDomain "github.com/allisson/offcash/internal/crypto/domain"
	cryptoService "github.com/allisson/offcash/internal/crypto/service"
	apperrors "github.com/allisson/offcash/internal/errors"
	"github.com/allisson/offcash/internal/holder/divider"
	holderDomain "github.com/allisson/offcash/internal/holder/domain"
	"github.com/allisson/offcash/internal/holder/store"
	tokenDomain "github.com/allisson/offcash/internal/token/domain"
)

// Config controls retransmission of the signed offer.
type Config struct {
	// AttemptTimeout bounds the wait for a reply to one transmission.
	AttemptTimeout time.Duration
	// InitialInterval is the first delay between transmissions.
	InitialInterval time.Duration
	// MaxElapsedTime bounds the whole retry loop. Zero retries until ctx is done.
	MaxElapsedTime time.Duration
}

// DefaultConfig returns default retransmission settings.
func DefaultConfig() Config {
	return Config{
		AttemptTimeout:  3 * time.Second,
		InitialInterval: 500 * time.Millisecond,
		MaxElapsedTime:  30 * time.Second,
	}
}

// Sender runs the sending side of transfers for one holder key.
type Sender struct {
	store   *store.Store
	divider *divider.Divider
	codec   cryptoService.SignatureCodec
	key     *cryptoDomain.PrivateKey
	config  Config
	logger  *slog.Logger
	now     func() time.Time
}

// NewSender creates a Sender.
func NewSender(
	holderStore *store.Store,
	codec cryptoService.SignatureCodec,
	key *cryptoDomain.PrivateKey,
	config Config,
	logger *slog.Logger,
) *Sender {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Sender{
		store:   holderStore,
		divider: divider.New(codec),
		codec:   codec,
		key:     key,
		config:  config,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Transfer runs a whole session: offer, sign, wait for the acknowledgement and commit.
// On ErrAckTimeout the returned session is still pending and can be resumed later.
func (s *Sender) Transfer(
	ctx context.Context,
	ch Channel,
	recipient cryptoDomain.PublicKey,
	amount decimal.Decimal,
) (*Session, error) {
	session, err := s.Offer(ctx, ch, recipient, amount)
	if err != nil {
		return nil, err
	}
	if err := s.Sign(session); err != nil {
		return session, err
	}
	if err := s.AwaitAck(ctx, ch, session); err != nil {
		return session, err
	}
	return session, s.Commit(session)
}

// Offer reserves and divides tokens for amount, allocates the next sequence number and sends the
// unsigned proposal. Failing to deliver the proposal is not an error; the signed offer is
// retransmitted later anyway.
func (s *Sender) Offer(
	ctx context.Context,
	ch Channel,
	recipient cryptoDomain.PublicKey,
	amount decimal.Decimal,
) (*Session, error) {
	now := s.now()
	reservation, err := s.store.Reserve(amount, now)
	if err != nil {
		return nil, err
	}

	seq, err := s.store.NextSequence()
	if err != nil {
		s.release(reservation.ID, reservation.TokenIDs())
		return nil, err
	}

	division, err := s.divider.Divide(divider.Input{
		Sources:     reservation.Holdings,
		ExactAmount: amount,
		Recipient:   recipient,
		Spender:     s.key,
		Sequence:    seq,
		Now:         now,
	})
	if err != nil {
		s.release(reservation.ID, reservation.TokenIDs())
		return nil, err
	}
	s.release(reservation.ID, unused(reservation.TokenIDs(), division.Sources))

	record := tokenDomain.TransferRecord{
		TokenIDs:           division.Sources,
		SenderPublicKey:    s.key.PublicKey(),
		RecipientPublicKey: recipient,
		SequenceNumber:     seq,
		CreatedAt:          now,
	}
	for _, p := range division.Payment {
		record.Outputs = append(record.Outputs, p.Token)
		record.Lineages = append(record.Lineages, p.Lineage)
	}

	session := &Session{
		ID:            uuid.Must(uuid.NewV7()),
		State:         StateIdle,
		ReservationID: reservation.ID,
		Record:        record,
		Change:        division.Change,
		CreatedAt:     now,
	}
	if err := session.transition(StateOffered, now); err != nil {
		return nil, err
	}
	if err := s.store.SaveSession(session.ID, session); err != nil {
		s.release(reservation.ID, division.Sources)
		return nil, err
	}

	if err := ch.Send(ctx, offerMessage(record)); err != nil {
		s.logger.WarnContext(ctx, "transfer proposal not delivered",
			slog.String("session_id", session.ID.String()),
			slog.Any("error", err),
		)
	}
	return session, nil
}

// Sign attaches the sender signature. From here on only this exact payload is transmitted.
func (s *Sender) Sign(session *Session) error {
	if !session.State.CanTransitionTo(StateSigned) {
		return apperrors.Wrap(ErrInvalidTransition, "sign in "+string(session.State))
	}
	if err := session.Record.Sign(s.codec, s.key); err != nil {
		return err
	}
	if err := session.transition(StateSigned, s.now()); err != nil {
		return err
	}
	return s.store.SaveSession(session.ID, session)
}

// AwaitAck retransmits the signed offer with exponential backoff until the recipient's
// acknowledgement verifies. A rejection fails the session and releases its tokens. Running out
// of time returns ErrAckTimeout and leaves the session Signed for Resume.
func (s *Sender) AwaitAck(ctx context.Context, ch Channel, session *Session) error {
	if session.State == StateAcknowledged {
		return nil
	}
	if session.State != StateSigned {
		return apperrors.Wrap(ErrInvalidTransition, "await ack in "+string(session.State))
	}

	offer := offerMessage(session.Record)
	replayKey := session.Record.ReplayKey()

	var ack []byte
	op := func() error {
		if err := ch.Send(ctx, offer); err != nil {
			return err
		}
		reply, err := s.receive(ctx, ch, replayKey, MessageAck)
		if err != nil {
			return err
		}
		if reply.Ack.Rejected != "" {
			return backoff.Permanent(apperrors.Wrap(ErrRejected, reply.Ack.Rejected))
		}
		if err := session.Record.VerifyAcknowledgement(s.codec, reply.Ack.Acknowledgement); err != nil {
			return backoff.Permanent(err)
		}
		ack = reply.Ack.Acknowledgement
		return nil
	}

	if err := backoff.Retry(op, backoff.WithContext(s.backOff(), ctx)); err != nil {
		switch {
		case apperrors.Is(err, ErrRejected):
			s.logger.WarnContext(ctx, "transfer rejected by recipient",
				slog.String("session_id", session.ID.String()),
				slog.Any("error", err),
			)
			if failErr := s.fail(session, err.Error()); failErr != nil {
				s.logger.ErrorContext(ctx, "failed to close rejected session", slog.Any("error", failErr))
			}
			return err
		case apperrors.Is(err, apperrors.ErrCryptographic):
			s.logger.WarnContext(ctx, "invalid transfer acknowledgement",
				slog.String("session_id", session.ID.String()),
				slog.Any("error", err),
			)
			return err
		default:
			return apperrors.Wrap(ErrAckTimeout, err.Error())
		}
	}

	return s.acknowledged(session, ack)
}

// Commit marks the sources transferred and keeps the change. The pending session is removed in
// the same batch.
func (s *Sender) Commit(session *Session) error {
	if session.State == StateCommitted {
		return nil
	}
	if !session.State.CanTransitionTo(StateCommitted) {
		return apperrors.Wrap(ErrInvalidTransition, "commit in "+string(session.State))
	}
	if err := s.store.ApplyTransferResult(session.result()); err != nil {
		return err
	}
	return session.transition(StateCommitted, s.now())
}

// Resume continues a pending session after a restart or a lost acknowledgement. A signed
// session first asks the recipient for its status and only retransmits the same signed offer
// when the recipient has no record of it.
func (s *Sender) Resume(ctx context.Context, ch Channel, session *Session) error {
	switch session.State {
	case StateAcknowledged:
		return s.Commit(session)
	case StateOffered:
		if err := s.Sign(session); err != nil {
			return err
		}
	case StateSigned:
		status, err := s.queryStatus(ctx, ch, session)
		if err != nil {
			return err
		}
		if status.Known {
			if err := session.Record.VerifyAcknowledgement(s.codec, status.Acknowledgement); err != nil {
				return err
			}
			if err := s.acknowledged(session, status.Acknowledgement); err != nil {
				return err
			}
			return s.Commit(session)
		}
	default:
		return apperrors.Wrap(ErrInvalidTransition, "resume in "+string(session.State))
	}

	if err := s.AwaitAck(ctx, ch, session); err != nil {
		return err
	}
	return s.Commit(session)
}

// Abandon drops a session that was not acknowledged, releasing its tokens with no other effect.
func (s *Sender) Abandon(session *Session) error {
	switch session.State {
	case StateOffered, StateSigned:
		return s.fail(session, "abandoned")
	case StateAcknowledged:
		return ErrCompensationRequired
	default:
		return apperrors.Wrap(ErrInvalidTransition, "abandon in "+string(session.State))
	}
}

// Compensate closes an acknowledged session without a regular commit. The recipient already
// holds verifiable outputs, so the sources are still marked transferred; the stored
// compensation record documents the aborted session until reconciliation settles it.
func (s *Sender) Compensate(session *Session, reason string) error {
	if session.State != StateAcknowledged {
		return apperrors.Wrap(ErrInvalidTransition, "compensate in "+string(session.State))
	}
	now := s.now()
	record := holderDomain.CompensationRecord{
		SessionID:       session.ID,
		Record:          session.Record,
		Acknowledgement: session.Acknowledgement,
		Reason:          reason,
		CreatedAt:       now,
	}
	if err := s.store.SaveCompensation(record, session.result()); err != nil {
		return err
	}
	session.FailureReason = reason
	return session.transition(StateFailed, now)
}

// LoadSession reads a pending session from the store.
func (s *Sender) LoadSession(id uuid.UUID) (*Session, error) {
	var session Session
	if err := s.store.LoadSession(id, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *Sender) acknowledged(session *Session, ack []byte) error {
	if err := session.transition(StateAcknowledged, s.now()); err != nil {
		return err
	}
	session.Acknowledgement = ack
	return s.store.SaveSession(session.ID, session)
}

func (s *Sender) fail(session *Session, reason string) error {
	if err := session.transition(StateFailed, s.now()); err != nil {
		return err
	}
	session.FailureReason = reason
	if err := s.store.Release(session.ReservationID, session.Record.TokenIDs); err != nil {
		return err
	}
	return s.store.DeleteSession(session.ID)
}

func (s *Sender) queryStatus(ctx context.Context, ch Channel, session *Session) (*Status, error) {
	query := queryMessage(&session.Record)
	replayKey := session.Record.ReplayKey()

	var status *Status
	op := func() error {
		if err := ch.Send(ctx, query); err != nil {
			return err
		}
		reply, err := s.receive(ctx, ch, replayKey, MessageStatus)
		if err != nil {
			return err
		}
		status = reply.Status
		return nil
	}
	if err := backoff.Retry(op, backoff.WithContext(s.backOff(), ctx)); err != nil {
		return nil, apperrors.Wrap(ErrAckTimeout, err.Error())
	}
	return status, nil
}

// receive waits one attempt for a reply of kind about replayKey, discarding anything else such
// as late replies to earlier transmissions.
func (s *Sender) receive(ctx context.Context, ch Channel, replayKey string, kind MessageType) (Message, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, s.config.AttemptTimeout)
	defer cancel()

	for {
		msg, err := ch.Receive(attemptCtx)
		if err != nil {
			if apperrors.Is(err, ErrChannelClosed) {
				return Message{}, backoff.Permanent(err)
			}
			return Message{}, apperrors.Wrap(apperrors.ErrTransport, err.Error())
		}
		switch {
		case kind == MessageAck && msg.Type == MessageAck && msg.Ack != nil && msg.Ack.ReplayKey == replayKey:
			return msg, nil
		case kind == MessageStatus && msg.Type == MessageStatus && msg.Status != nil && msg.Status.ReplayKey == replayKey:
			return msg, nil
		}
	}
}

func (s *Sender) backOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.config.InitialInterval
	b.MaxElapsedTime = s.config.MaxElapsedTime
	return b
}

func (s *Sender) release(reservationID uuid.UUID, ids []uuid.UUID) {
	if len(ids) == 0 {
		return
	}
	if err := s.store.Release(reservationID, ids); err != nil {
		s.logger.Error("failed to release reserved tokens", slog.Any("error", err))
	}
}

func unused(reserved, used []uuid.UUID) []uuid.UUID {
	inUse := make(map[uuid.UUID]bool, len(used))
	for _, id := range used {
		inUse[id] = true
	}
	var out []uuid.UUID
	for _, id := range reserved {
		if !inUse[id] {
			out = append(out, id)
		}
	}
	return out
}
