package transfer

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	apperrors "github.com/allisson/offcash/internal/errors"
)

// ErrChannelClosed indicates the peer channel was closed.
var ErrChannelClosed = apperrors.Wrap(apperrors.ErrTransport, "channel closed")

// Channel is a best-effort point-to-point link between two devices. It guarantees neither
// ordering nor exactly-once delivery.
type Channel interface {
	Send(ctx context.Context, msg Message) error
	Receive(ctx context.Context) (Message, error)
	Close() error
}

// pipeEnd is one side of an in-process Channel.
type pipeEnd struct {
	in     <-chan Message
	out    chan<- Message
	closed chan struct{}
	once   *sync.Once
}

// NewPipe returns two connected in-process channels. Closing either end closes both.
func NewPipe() (Channel, Channel) {
	a := make(chan Message, 16)
	b := make(chan Message, 16)
	closed := make(chan struct{})
	once := &sync.Once{}
	return &pipeEnd{in: a, out: b, closed: closed, once: once},
		&pipeEnd{in: b, out: a, closed: closed, once: once}
}

func (p *pipeEnd) Send(ctx context.Context, msg Message) error {
	select {
	case <-p.closed:
		return ErrChannelClosed
	default:
	}
	select {
	case p.out <- msg:
		return nil
	case <-p.closed:
		return ErrChannelClosed
	case <-ctx.Done():
		return apperrors.Wrap(apperrors.ErrTransport, ctx.Err().Error())
	}
}

func (p *pipeEnd) Receive(ctx context.Context) (Message, error) {
	select {
	case msg := <-p.in:
		return msg, nil
	case <-p.closed:
		return Message{}, ErrChannelClosed
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

func (p *pipeEnd) Close() error {
	p.once.Do(func() { close(p.closed) })
	return nil
}

// WebSocketConfig configures the websocket channel.
type WebSocketConfig struct {
	WriteTimeout     time.Duration
	HandshakeTimeout time.Duration
}

// DefaultWebSocketConfig returns default websocket configuration.
func DefaultWebSocketConfig() WebSocketConfig {
	return WebSocketConfig{
		WriteTimeout:     10 * time.Second,
		HandshakeTimeout: 10 * time.Second,
	}
}

// WebSocketChannel adapts a gorilla/websocket connection to Channel. A single reader goroutine
// decodes frames so a cancelled Receive never poisons the connection.
type WebSocketChannel struct {
	conn    *websocket.Conn
	config  WebSocketConfig
	writeMu sync.Mutex

	incoming chan Message
	done     chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
	readErr  error
}

// NewWebSocketChannel wraps an established connection and starts its reader.
func NewWebSocketChannel(conn *websocket.Conn, config WebSocketConfig) *WebSocketChannel {
	c := &WebSocketChannel{
		conn:     conn,
		config:   config,
		incoming: make(chan Message, 16),
		done:     make(chan struct{}),
	}
	c.wg.Add(1)
	go c.readLoop()
	return c
}

// DialWebSocket connects to a peer listening at url.
func DialWebSocket(ctx context.Context, url string, config WebSocketConfig) (*WebSocketChannel, error) {
	dialer := websocket.Dialer{HandshakeTimeout: config.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrTransport, "websocket dial: "+err.Error())
	}
	return NewWebSocketChannel(conn, config), nil
}

func (c *WebSocketChannel) readLoop() {
	defer c.wg.Done()
	defer close(c.incoming)

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.readErr = err
			return
		}
		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		select {
		case c.incoming <- msg:
		case <-c.done:
			return
		}
	}
}

func (c *WebSocketChannel) Send(ctx context.Context, msg Message) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline := time.Now().Add(c.config.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return apperrors.Wrap(apperrors.ErrTransport, err.Error())
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		return apperrors.Wrap(apperrors.ErrTransport, "websocket write: "+err.Error())
	}
	return nil
}

func (c *WebSocketChannel) Receive(ctx context.Context) (Message, error) {
	select {
	case msg, ok := <-c.incoming:
		if !ok {
			if c.readErr != nil {
				return Message{}, apperrors.Wrap(ErrChannelClosed, c.readErr.Error())
			}
			return Message{}, ErrChannelClosed
		}
		return msg, nil
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

// Close closes the connection and waits for the reader to exit.
func (c *WebSocketChannel) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		c.writeMu.Lock()
		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		c.writeMu.Unlock()
		err = c.conn.Close()
		c.wg.Wait()
	})
	return err
}

// Upgrader accepts incoming peer connections on an HTTP listener.
var Upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}
