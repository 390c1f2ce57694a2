package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/1broseidon/treemirror/internal/authority"
	"github.com/1broseidon/treemirror/internal/platform"
)

// outboundBuffer bounds the events queued for one slow connection. A
// connection that falls this far behind is dropped: a mirror that misses an
// event cannot recover.
const outboundBuffer = 1024

// HandlerOptions configures a Handler.
type HandlerOptions struct {
	// TokenSecret enables bearer token verification when set.
	TokenSecret string
	Logger      *slog.Logger
}

// Handler upgrades HTTP requests to websocket connections and attaches each
// one to the authority as a session.
type Handler struct {
	auth     *authority.Authority
	secret   []byte
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

// NewHandler creates a handler serving auth.
func NewHandler(auth *authority.Authority, opts HandlerOptions) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	h := &Handler{
		auth:   auth,
		logger: logger,
		conns:  make(map[*websocket.Conn]struct{}),
	}
	if opts.TokenSecret != "" {
		h.secret = []byte(opts.TokenSecret)
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.secret != nil {
		if _, err := VerifyToken(h.secret, bearerToken(r)); err != nil {
			h.logger.Warn("rejected connection", "remote", r.RemoteAddr, "error", err)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	h.track(ws, true)
	defer h.track(ws, false)
	defer ws.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	out := make(chan []byte, outboundBuffer)
	var overflow sync.Once
	session := h.auth.Connect(func(ev platform.Event) {
		data, err := EncodeEvent(ev)
		if err != nil {
			h.logger.Error("failed to encode event", "event", ev.EventName(), "error", err)
			return
		}
		select {
		case out <- data:
		default:
			overflow.Do(func() {
				h.logger.Warn("outbound queue full, dropping connection")
				cancel()
			})
		}
	})
	defer session.Close()

	logger := h.logger.With("client_id", session.ClientID(), "session", session.ID())
	hello, err := json.Marshal(Envelope{
		Type:  EnvelopeHello,
		Hello: &Hello{ClientID: session.ClientID(), Session: session.ID()},
	})
	if err != nil {
		logger.Error("failed to marshal hello", "error", err)
		return
	}
	ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := ws.WriteMessage(websocket.TextMessage, hello); err != nil {
		logger.Info("hello failed", "error", err)
		return
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()
		h.writeLoop(ctx, ws, out, logger)
	}()
	go func() {
		<-ctx.Done()
		ws.Close()
	}()

	h.readLoop(ws, session, logger)
	cancel()
	wg.Wait()
	logger.Info("connection closed")
}

func (h *Handler) writeLoop(ctx context.Context, ws *websocket.Conn, out <-chan []byte, logger *slog.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case data := <-out:
			ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
				logger.Info("write failed", "error", err)
				return
			}
		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				logger.Info("ping failed", "error", err)
				return
			}
		}
	}
}

func (h *Handler) readLoop(ws *websocket.Conn, session *authority.Session, logger *slog.Logger) {
	for {
		messageType, message, err := ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("read ended", "error", err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		env, err := ParseEnvelope(message)
		if err != nil {
			logger.Warn("bad frame", "error", err)
			return
		}
		if env.Type != EnvelopeRequest {
			logger.Warn("unexpected envelope", "type", env.Type)
			return
		}
		session.Handle(*env.Request)
	}
}

func (h *Handler) track(ws *websocket.Conn, add bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if add {
		h.conns[ws] = struct{}{}
	} else {
		delete(h.conns, ws)
	}
}

// CloseAll drops every open connection.
func (h *Handler) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ws := range h.conns {
		ws.Close()
	}
}

// Server serves a Handler on a unix socket.
type Server struct {
	socketPath string
	handler    *Handler
	listener   net.Listener
	http       *http.Server
	logger     *slog.Logger
}

// NewServer creates a server for handler on socketPath.
func NewServer(socketPath string, handler *Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{
		socketPath: socketPath,
		handler:    handler,
		http:       &http.Server{Handler: handler, ReadHeaderTimeout: 10 * time.Second},
		logger:     logger,
	}
}

// Start begins listening. Connections are served in the background.
func (s *Server) Start() error {
	// Remove a stale socket from a previous run.
	os.Remove(s.socketPath)

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to create socket: %w", err)
	}
	s.listener = listener

	if err := os.Chmod(s.socketPath, 0600); err != nil {
		listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	s.logger.Info("listening", "socket", s.socketPath)
	go func() {
		if err := s.http.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("serve failed", "error", err)
		}
	}()
	return nil
}

// Stop closes the listener and every open connection.
func (s *Server) Stop(ctx context.Context) error {
	err := s.http.Shutdown(ctx)
	s.handler.CloseAll()
	os.Remove(s.socketPath)
	return err
}
