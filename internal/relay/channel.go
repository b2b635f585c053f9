// Package relay pushes report blocks to the downstream messenger over a websocket.
package relay

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/i474232898/climatempo-relay/internal/logger"
)

// ErrRelay classifies connection and send failures on the channel.
var ErrRelay = errors.New("relay failed")

var errClosed = errors.New("connection closed")

const (
	DefaultConnectTimeout = 10 * time.Second

	closeGracePeriod = time.Second
	writeWait        = 10 * time.Second
)

// Channel describes the downstream endpoint: ws://{host}/messenger/{senderID}.
type Channel struct {
	host           string
	senderID       string
	connectTimeout time.Duration
	log            *logger.Logger
	dialer         *websocket.Dialer
}

// NewChannel creates a Channel. A connectTimeout <= 0 uses DefaultConnectTimeout.
func NewChannel(host, senderID string, connectTimeout time.Duration, log *logger.Logger) *Channel {
	if connectTimeout <= 0 {
		connectTimeout = DefaultConnectTimeout
	}
	return &Channel{
		host:           host,
		senderID:       senderID,
		connectTimeout: connectTimeout,
		log:            log,
		dialer: &websocket.Dialer{
			HandshakeTimeout: connectTimeout,
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
		},
	}
}

// URL returns the websocket endpoint of the channel.
func (c *Channel) URL() string {
	u := url.URL{Scheme: "ws", Host: c.host, Path: "/messenger/" + c.senderID}
	return u.String()
}

// Connect dials the endpoint and blocks until the connection is open, the
// connect timeout expires or ctx is done.
func (c *Channel) Connect(ctx context.Context) (*Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, c.connectTimeout)
	defer cancel()

	c.log.Log("Waiting for websocket client to connect to {}", c.URL())
	ws, resp, err := c.dialer.DialContext(ctx, c.URL(), nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w: connect %s: status %d: %w", ErrRelay, c.URL(), resp.StatusCode, err)
		}
		return nil, fmt.Errorf("%w: connect %s: %w", ErrRelay, c.URL(), err)
	}

	conn := &Conn{
		ws:   ws,
		log:  c.log,
		done: make(chan struct{}),
	}
	go conn.readPump()
	c.log.Log("Websocket client connected")
	return conn, nil
}

// Conn is one open connection. Sends are write-only use of the duplex
// transport; inbound frames are logged and dropped.
type Conn struct {
	ws  *websocket.Conn
	log *logger.Logger

	mu     sync.Mutex
	closed bool

	closeOnce sync.Once
	done      chan struct{}
}

// Send writes payload as one text frame. No acknowledgment is awaited.
func (c *Conn) Send(payload string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("%w: %w", ErrRelay, errClosed)
	}

	c.log.Log("Sending message to websocket")
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.ws.WriteMessage(websocket.TextMessage, []byte(payload)); err != nil {
		return fmt.Errorf("%w: send: %w", ErrRelay, err)
	}
	return nil
}

// Close sends a close frame and releases the connection. It is safe to call more than once.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		_ = c.ws.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(closeGracePeriod),
		)
		c.mu.Unlock()

		select {
		case <-c.done:
		case <-time.After(closeGracePeriod):
		}

		if cerr := c.ws.Close(); cerr != nil && !errors.Is(cerr, websocket.ErrCloseSent) {
			err = fmt.Errorf("%w: close: %w", ErrRelay, cerr)
		}
		<-c.done
	})
	return err
}

// Done is closed once the read side of the connection has ended.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

func (c *Conn) readPump() {
	defer close(c.done)
	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			return
		}
		c.log.Log("Message received on websocket")
	}
}
