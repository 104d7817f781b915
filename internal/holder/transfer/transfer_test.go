package transfer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	cryptoDomain "github.com/allisson/offcash/internal/crypto/domain"
	holderDomain "github.com/allisson/offcash/internal/holder/domain"
	"github.com/allisson/offcash/internal/holder/store"
	tokenDomain "github.com/allisson/offcash/internal/token/domain"
	tokenTesting "github.com/allisson/offcash/internal/token/testing"
)

var fastConfig = Config{
	AttemptTimeout:  50 * time.Millisecond,
	InitialInterval: 5 * time.Millisecond,
	MaxElapsedTime:  2 * time.Second,
}

type peer struct {
	key   *cryptoDomain.PrivateKey
	store *store.Store
}

func newPeer(t *testing.T, f *tokenTesting.Fixture, trustIssuer bool) *peer {
	t.Helper()
	s, err := store.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.Close()
	})
	if trustIssuer {
		require.NoError(t, s.SetIssuerKey(holderDomain.IssuerKey{
			Identifier: "issuer",
			PublicKey:  f.IssuerKey.PublicKey(),
			FetchedAt:  f.Now,
		}))
	}
	return &peer{key: tokenTesting.NewKey(), store: s}
}

func (p *peer) fund(t *testing.T, f *tokenTesting.Fixture, amount string) tokenDomain.Token {
	t.Helper()
	tok := f.Mint(p.key, amount, time.Hour)
	require.NoError(t, p.store.Add(holderDomain.Holding{Token: tok}))
	return tok
}

func (p *peer) balance(t *testing.T, f *tokenTesting.Fixture) string {
	t.Helper()
	balance, err := p.store.AvailableBalance(f.Now)
	require.NoError(t, err)
	return tokenDomain.FormatAmount(balance)
}

func (p *peer) sender(f *tokenTesting.Fixture, config Config) *Sender {
	s := NewSender(p.store, f.Codec, p.key, config, nil)
	s.now = func() time.Time { return f.Now }
	return s
}

func (p *peer) receiver(f *tokenTesting.Fixture) *Receiver {
	r := NewReceiver(p.store, f.Codec, p.key, nil)
	r.now = func() time.Time { return f.Now }
	return r
}

// serve runs r on ch until the returned stop function is called.
func serve(r *Receiver, ch Channel) (stop func()) {
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = r.Serve(ctx, ch)
	}()
	return func() {
		cancel()
		wg.Wait()
	}
}

// lossyChannel drops outgoing and incoming messages matching its filters.
type lossyChannel struct {
	Channel
	dropOut func(Message) bool
	dropIn  func(Message) bool
}

func (l *lossyChannel) Send(ctx context.Context, msg Message) error {
	if l.dropOut != nil && l.dropOut(msg) {
		return nil
	}
	return l.Channel.Send(ctx, msg)
}

func (l *lossyChannel) Receive(ctx context.Context) (Message, error) {
	for {
		msg, err := l.Channel.Receive(ctx)
		if err != nil || l.dropIn == nil || !l.dropIn(msg) {
			return msg, err
		}
	}
}

func isSignedOffer(msg Message) bool {
	return msg.Type == MessageOffer && msg.Offer != nil && len(msg.Offer.Record.SenderSignature) > 0
}

func TestTransfer_Success(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := tokenTesting.NewFixture()
	alice := newPeer(t, f, true)
	bob := newPeer(t, f, true)
	alice.fund(t, f, "100.00")

	senderEnd, receiverEnd := NewPipe()
	defer func() {
		_ = senderEnd.Close()
	}()
	stop := serve(bob.receiver(f), receiverEnd)
	defer stop()

	session, err := alice.sender(f, fastConfig).Transfer(
		context.Background(), senderEnd, bob.key.PublicKey(), tokenTesting.Amount("30"),
	)

	require.NoError(t, err)
	assert.Equal(t, StateCommitted, session.State)
	assert.NoError(t, session.Record.VerifyAcknowledgement(f.Codec, session.Acknowledgement))
	assert.Equal(t, "70.00", alice.balance(t, f))
	assert.Equal(t, "30.00", bob.balance(t, f))

	pending, err := alice.store.PendingSessions()
	require.NoError(t, err)
	assert.Empty(t, pending)

	source, err := alice.store.Get(session.Record.TokenIDs[0])
	require.NoError(t, err)
	assert.Equal(t, tokenDomain.StatusTransferred, source.Token.Status)
}

func TestTransfer_RetransmitsOverLossyChannel(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := tokenTesting.NewFixture()
	alice := newPeer(t, f, true)
	bob := newPeer(t, f, true)
	alice.fund(t, f, "10.00")
	alice.fund(t, f, "5.00")

	senderEnd, receiverEnd := NewPipe()
	defer func() {
		_ = senderEnd.Close()
	}()
	var dropped atomic.Int32
	lossy := &lossyChannel{
		Channel: senderEnd,
		dropOut: func(msg Message) bool {
			return isSignedOffer(msg) && dropped.Add(1) <= 2
		},
	}
	stop := serve(bob.receiver(f), receiverEnd)
	defer stop()

	session, err := alice.sender(f, fastConfig).Transfer(
		context.Background(), lossy, bob.key.PublicKey(), tokenTesting.Amount("12.25"),
	)

	require.NoError(t, err)
	assert.Equal(t, StateCommitted, session.State)
	assert.GreaterOrEqual(t, dropped.Load(), int32(3))
	assert.Equal(t, "2.75", alice.balance(t, f))
	assert.Equal(t, "12.25", bob.balance(t, f))
}

func TestTransfer_ResumeAfterLostAck(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := tokenTesting.NewFixture()
	alice := newPeer(t, f, true)
	bob := newPeer(t, f, true)
	alice.fund(t, f, "50.00")
	sender := alice.sender(f, Config{
		AttemptTimeout:  20 * time.Millisecond,
		InitialInterval: 5 * time.Millisecond,
		MaxElapsedTime:  150 * time.Millisecond,
	})

	senderEnd, receiverEnd := NewPipe()
	deaf := &lossyChannel{
		Channel: senderEnd,
		dropIn: func(msg Message) bool {
			return msg.Type == MessageAck
		},
	}
	stop := serve(bob.receiver(f), receiverEnd)

	session, err := sender.Transfer(context.Background(), deaf, bob.key.PublicKey(), tokenTesting.Amount("20"))

	assert.ErrorIs(t, err, ErrAckTimeout)
	require.NotNil(t, session)
	assert.Equal(t, StateSigned, session.State)
	assert.Equal(t, "20.00", bob.balance(t, f), "recipient accepted the transfer")
	stop()
	_ = senderEnd.Close()

	senderEnd, receiverEnd = NewPipe()
	defer func() {
		_ = senderEnd.Close()
	}()
	stop = serve(bob.receiver(f), receiverEnd)
	defer stop()

	loaded, err := sender.LoadSession(session.ID)
	require.NoError(t, err)
	assert.Equal(t, StateSigned, loaded.State)

	require.NoError(t, sender.Resume(context.Background(), senderEnd, loaded))

	assert.Equal(t, StateCommitted, loaded.State)
	assert.Equal(t, "30.00", alice.balance(t, f))
	assert.Equal(t, "20.00", bob.balance(t, f), "resume does not deliver twice")

	pending, err := alice.store.PendingSessions()
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestTransfer_RejectedReleasesTokens(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := tokenTesting.NewFixture()
	alice := newPeer(t, f, true)
	bob := newPeer(t, f, false)
	alice.fund(t, f, "100.00")

	senderEnd, receiverEnd := NewPipe()
	defer func() {
		_ = senderEnd.Close()
	}()
	stop := serve(bob.receiver(f), receiverEnd)
	defer stop()

	session, err := alice.sender(f, fastConfig).Transfer(
		context.Background(), senderEnd, bob.key.PublicKey(), tokenTesting.Amount("30"),
	)

	assert.ErrorIs(t, err, ErrRejected)
	require.NotNil(t, session)
	assert.Equal(t, StateFailed, session.State)
	assert.Equal(t, "0.00", bob.balance(t, f))

	pending, err := alice.store.PendingSessions()
	require.NoError(t, err)
	assert.Empty(t, pending)

	_, err = alice.store.Reserve(tokenTesting.Amount("100"), f.Now)
	assert.NoError(t, err, "tokens are reservable again")
}

func TestSender_Abandon(t *testing.T) {
	ctx := context.Background()
	f := tokenTesting.NewFixture()
	recipient := tokenTesting.NewKey()

	t.Run("Success_ReleasesUnacknowledgedSession", func(t *testing.T) {
		alice := newPeer(t, f, true)
		alice.fund(t, f, "100.00")
		sender := alice.sender(f, fastConfig)
		ch, _ := NewPipe()
		defer func() {
			_ = ch.Close()
		}()

		session, err := sender.Offer(ctx, ch, recipient.PublicKey(), tokenTesting.Amount("30"))
		require.NoError(t, err)
		require.NoError(t, sender.Sign(session))

		require.NoError(t, sender.Abandon(session))

		assert.Equal(t, StateFailed, session.State)
		assert.Equal(t, "100.00", alice.balance(t, f))
		_, err = alice.store.Reserve(tokenTesting.Amount("100"), f.Now)
		assert.NoError(t, err)
		assert.ErrorIs(t, sender.Abandon(session), ErrInvalidTransition)
	})

	t.Run("Error_AcknowledgedRequiresCompensation", func(t *testing.T) {
		alice := newPeer(t, f, true)
		bob := newPeer(t, f, true)
		alice.fund(t, f, "100.00")
		sender := alice.sender(f, fastConfig)
		ch, _ := NewPipe()
		defer func() {
			_ = ch.Close()
		}()

		session, err := sender.Offer(ctx, ch, bob.key.PublicKey(), tokenTesting.Amount("30"))
		require.NoError(t, err)
		require.NoError(t, sender.Sign(session))
		ack, err := bob.receiver(f).HandleOffer(ctx, session.Record)
		require.NoError(t, err)
		require.NoError(t, sender.acknowledged(session, ack))

		assert.ErrorIs(t, sender.Abandon(session), ErrCompensationRequired)

		require.NoError(t, sender.Compensate(session, "peer went away"))

		assert.Equal(t, StateFailed, session.State)
		assert.Equal(t, "70.00", alice.balance(t, f))
		assert.Equal(t, "30.00", bob.balance(t, f))

		records, err := alice.store.Compensations()
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, session.ID, records[0].SessionID)
		assert.Equal(t, "peer went away", records[0].Reason)

		pending, err := alice.store.PendingSessions()
		require.NoError(t, err)
		assert.Empty(t, pending)
	})
}

func TestSender_Sign_InvalidState(t *testing.T) {
	f := tokenTesting.NewFixture()
	alice := newPeer(t, f, true)

	err := alice.sender(f, fastConfig).Sign(&Session{State: StateCommitted})

	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestReceiver_HandleOffer(t *testing.T) {
	ctx := context.Background()
	f := tokenTesting.NewFixture()

	offer := func(t *testing.T, alice, bob *peer) *Session {
		t.Helper()
		sender := alice.sender(f, fastConfig)
		ch, _ := NewPipe()
		defer func() {
			_ = ch.Close()
		}()
		session, err := sender.Offer(ctx, ch, bob.key.PublicKey(), tokenTesting.Amount("30"))
		require.NoError(t, err)
		require.NoError(t, sender.Sign(session))
		return session
	}

	t.Run("Success_DuplicateDeliveryReturnsSameAck", func(t *testing.T) {
		alice, bob := newPeer(t, f, true), newPeer(t, f, true)
		alice.fund(t, f, "100.00")
		session := offer(t, alice, bob)
		receiver := bob.receiver(f)

		first, err := receiver.HandleOffer(ctx, session.Record)
		require.NoError(t, err)
		second, err := receiver.HandleOffer(ctx, session.Record)
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.Equal(t, "30.00", bob.balance(t, f))

		status := receiver.HandleStatusQuery(StatusQuery{
			TokenIDs:       session.Record.TokenIDs,
			SequenceNumber: session.Record.SequenceNumber,
		})
		assert.True(t, status.Known)
		assert.Equal(t, first, status.Acknowledgement)
	})

	t.Run("Success_UnsignedProposalIsIgnored", func(t *testing.T) {
		alice, bob := newPeer(t, f, true), newPeer(t, f, true)
		alice.fund(t, f, "100.00")
		session := offer(t, alice, bob)
		proposal := session.Record
		proposal.SenderSignature = nil

		ack, err := bob.receiver(f).HandleOffer(ctx, proposal)

		assert.NoError(t, err)
		assert.Nil(t, ack)
		assert.Equal(t, "0.00", bob.balance(t, f))
	})

	t.Run("Error_ReplayWithDifferentOutputs", func(t *testing.T) {
		alice, bob := newPeer(t, f, true), newPeer(t, f, true)
		alice.fund(t, f, "100.00")
		session := offer(t, alice, bob)
		receiver := bob.receiver(f)
		_, err := receiver.HandleOffer(ctx, session.Record)
		require.NoError(t, err)

		source, err := alice.store.Get(session.Record.TokenIDs[0])
		require.NoError(t, err)
		replay := session.Record
		replay.Outputs = []tokenDomain.Token{
			f.Derive(source.Token, alice.key, bob.key, "20.00", session.Record.SequenceNumber),
		}
		replay.Lineages = []tokenDomain.Lineage{source.Child()}
		require.NoError(t, replay.Sign(f.Codec, alice.key))

		_, err = receiver.HandleOffer(ctx, replay)

		assert.ErrorIs(t, err, holderDomain.ErrReplayDetected)
		assert.Equal(t, "30.00", bob.balance(t, f))
	})

	t.Run("Error_NotRecipient", func(t *testing.T) {
		alice, bob, carol := newPeer(t, f, true), newPeer(t, f, true), newPeer(t, f, true)
		alice.fund(t, f, "100.00")
		session := offer(t, alice, bob)

		_, err := carol.receiver(f).HandleOffer(ctx, session.Record)

		assert.ErrorIs(t, err, ErrNotRecipient)
	})

	t.Run("Error_TamperedRecord", func(t *testing.T) {
		alice, bob := newPeer(t, f, true), newPeer(t, f, true)
		alice.fund(t, f, "100.00")
		session := offer(t, alice, bob)
		tampered := session.Record
		tampered.Outputs = append([]tokenDomain.Token{}, session.Record.Outputs...)
		tampered.Outputs[0].Amount = tokenTesting.Amount("99")

		_, err := bob.receiver(f).HandleOffer(ctx, tampered)

		assert.ErrorIs(t, err, tokenDomain.ErrTransferSignatureInvalid)
		assert.Equal(t, "0.00", bob.balance(t, f))
	})

	t.Run("Error_OutputReusesHeldTokenID", func(t *testing.T) {
		alice, bob := newPeer(t, f, true), newPeer(t, f, true)
		source := alice.fund(t, f, "100.00")
		held := bob.fund(t, f, "50.00")

		forged := tokenDomain.NewDerivedToken(&source, tokenTesting.Amount("20.00"), bob.key.PublicKey(), 1, 0, f.Now)
		forged.ID = held.ID
		require.NoError(t, forged.Sign(f.Codec, alice.key))
		record := tokenDomain.TransferRecord{
			TokenIDs:           []uuid.UUID{source.ID},
			Outputs:            []tokenDomain.Token{*forged},
			Lineages:           []tokenDomain.Lineage{{source}},
			SenderPublicKey:    alice.key.PublicKey(),
			RecipientPublicKey: bob.key.PublicKey(),
			SequenceNumber:     1,
			CreatedAt:          f.Now,
		}
		require.NoError(t, record.Sign(f.Codec, alice.key))

		ack, err := bob.receiver(f).HandleOffer(ctx, record)

		assert.ErrorIs(t, err, tokenDomain.ErrTokenIDMismatch)
		assert.Nil(t, ack)
		assert.Equal(t, "50.00", bob.balance(t, f))
		stored, err := bob.store.Get(held.ID)
		require.NoError(t, err)
		assert.Equal(t, held.Signature, stored.Token.Signature)
	})

	t.Run("Error_IssuerKeyNotCached", func(t *testing.T) {
		alice, bob := newPeer(t, f, true), newPeer(t, f, false)
		alice.fund(t, f, "100.00")
		session := offer(t, alice, bob)

		_, err := bob.receiver(f).HandleOffer(ctx, session.Record)

		assert.ErrorIs(t, err, holderDomain.ErrIssuerKeyNotCached)
	})
}

func TestState_CanTransitionTo(t *testing.T) {
	assert.True(t, StateIdle.CanTransitionTo(StateOffered))
	assert.True(t, StateSigned.CanTransitionTo(StateAcknowledged))
	assert.True(t, StateAcknowledged.CanTransitionTo(StateFailed))
	assert.False(t, StateOffered.CanTransitionTo(StateAcknowledged))
	assert.False(t, StateCommitted.CanTransitionTo(StateFailed))
	assert.False(t, StateFailed.CanTransitionTo(StateOffered))
}

func TestTransfer_WebSocket(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := tokenTesting.NewFixture()
	alice := newPeer(t, f, true)
	bob := newPeer(t, f, true)
	alice.fund(t, f, "40.00")
	receiver := bob.receiver(f)

	handlerDone := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer close(handlerDone)
		conn, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ch := NewWebSocketChannel(conn, DefaultWebSocketConfig())
		defer func() {
			_ = ch.Close()
		}()
		_ = receiver.Serve(context.Background(), ch)
	}))
	defer srv.Close()

	ctx := context.Background()
	client, err := DialWebSocket(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), DefaultWebSocketConfig())
	require.NoError(t, err)

	session, err := alice.sender(f, fastConfig).Transfer(ctx, client, bob.key.PublicKey(), tokenTesting.Amount("15.10"))

	require.NoError(t, client.Close())
	<-handlerDone
	require.NoError(t, err)
	assert.Equal(t, StateCommitted, session.State)
	assert.Equal(t, "24.90", alice.balance(t, f))
	assert.Equal(t, "15.10", bob.balance(t, f))

	_, err = client.Receive(ctx)
	assert.ErrorIs(t, err, ErrChannelClosed)
}
