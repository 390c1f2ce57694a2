package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/1broseidon/treemirror/internal/platform"
)

const (
	defaultDialTimeout = 5 * time.Second
	writeTimeout       = 5 * time.Second
	pongWait           = 60 * time.Second
	pingPeriod         = pongWait * 9 / 10
)

// unixURL is the websocket URL used when the endpoint is a socket path; the
// host is never resolved.
const unixURL = "ws://treemirror/ws"

// DialOptions configures Dial.
type DialOptions struct {
	// Endpoint is a unix socket path or a ws:// or wss:// URL.
	Endpoint string

	// TokenSecret, when set, is used to sign a bearer token for the
	// handshake.
	TokenSecret string

	Timeout time.Duration
	Logger  *slog.Logger
}

// Conn is a client connection to a window server. It implements
// platform.Transport.
type Conn struct {
	ws       *websocket.Conn
	clientID uint32
	session  string
	logger   *slog.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
}

// Dial connects to the server and waits for its hello.
func Dial(ctx context.Context, opts DialOptions) (*Conn, error) {
	if opts.Endpoint == "" {
		return nil, fmt.Errorf("no endpoint configured")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	dialer := websocket.Dialer{HandshakeTimeout: timeout}
	url := opts.Endpoint
	if !strings.HasPrefix(url, "ws://") && !strings.HasPrefix(url, "wss://") {
		path := opts.Endpoint
		dialer.NetDialContext = func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", path)
		}
		url = unixURL
	}

	header := http.Header{}
	if opts.TokenSecret != "" {
		token, err := NewToken([]byte(opts.TokenSecret), "client", time.Hour)
		if err != nil {
			return nil, err
		}
		header.Set("Authorization", "Bearer "+token)
	}

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ws, resp, err := dialer.DialContext(dialCtx, url, header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, fmt.Errorf("failed to connect to %s: %w", opts.Endpoint, ErrUnauthorized)
		}
		return nil, fmt.Errorf("failed to connect to %s: %w (is the server running?)", opts.Endpoint, err)
	}

	success := false
	defer func() {
		if !success {
			ws.Close()
		}
	}()

	ws.SetReadDeadline(time.Now().Add(timeout))
	messageType, message, err := ws.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("failed to read hello: %w", err)
	}
	if messageType != websocket.TextMessage {
		return nil, fmt.Errorf("unexpected hello frame type %d", messageType)
	}
	env, err := ParseEnvelope(message)
	if err != nil {
		return nil, err
	}
	if env.Type != EnvelopeHello {
		return nil, fmt.Errorf("expected hello, got %s", env.Type)
	}
	ws.SetReadDeadline(time.Time{})

	c := &Conn{
		ws:       ws,
		clientID: env.Hello.ClientID,
		session:  env.Hello.Session,
		logger:   logger.With("client_id", env.Hello.ClientID, "session", env.Hello.Session),
	}
	c.logger.Info("connected", "endpoint", opts.Endpoint)
	success = true
	return c, nil
}

// ClientID returns the id the server assigned this connection.
func (c *Conn) ClientID() uint32 {
	return c.clientID
}

// Session returns the server's session id.
func (c *Conn) Session() string {
	return c.session
}

// Send writes one request frame.
func (c *Conn) Send(req platform.Request) error {
	data, err := EncodeRequest(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	return c.write(websocket.TextMessage, data)
}

func (c *Conn) write(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.ws.WriteMessage(messageType, data); err != nil {
		return fmt.Errorf("failed to send: %w", err)
	}
	return nil
}

// Run reads events and passes them to sink until the connection closes or
// ctx is cancelled. A clean close by the server returns nil.
func (c *Conn) Run(ctx context.Context, sink platform.EventSink) error {
	stop := context.AfterFunc(ctx, func() { c.Close() })
	defer stop()

	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPingHandler(func(data string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		c.writeMu.Lock()
		defer c.writeMu.Unlock()
		return c.ws.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeTimeout))
	})

	for {
		messageType, message, err := c.ws.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read failed: %w", err)
		}
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		if messageType != websocket.TextMessage {
			c.logger.Debug("ignoring frame", "type", messageType)
			continue
		}

		env, err := ParseEnvelope(message)
		if err != nil {
			return err
		}
		ev, err := DecodeEvent(env)
		if err != nil {
			return err
		}
		sink(ev)
	}
}

// Close sends a close frame and closes the connection.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		werr := c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		c.writeMu.Unlock()
		err = c.ws.Close()
		if werr != nil && !errors.Is(werr, websocket.ErrCloseSent) {
			c.logger.Debug("close frame not sent", "error", werr)
		}
	})
	return err
}
