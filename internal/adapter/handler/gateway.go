package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/srgjo27/ticket_engine/internal/core/domain"
)

const (
	actionBuyTicket = "buyTicket"
	greeting        = "Welcome to the WebSocket server!"

	// frameCeiling is the size at which a frame closes the connection.
	// Commands over MaxMessageBytes but under it get a protocol error.
	frameCeiling = 1 << 20
)

// Purchaser runs one purchase. *services.PurchaseService implements it.
type Purchaser interface {
	Purchase(ctx context.Context, req domain.PurchaseRequest) (*domain.PurchaseResult, error)
}

type GatewayConfig struct {
	MaxConnections  int
	PingInterval    time.Duration
	PongWait        time.Duration
	WriteWait       time.Duration
	MaxMessageBytes int64
	AllowedOrigins  []string
}

func (c GatewayConfig) withDefaults() GatewayConfig {
	if c.MaxConnections <= 0 {
		c.MaxConnections = 10000
	}
	if c.PongWait <= 0 {
		c.PongWait = 60 * time.Second
	}
	if c.PingInterval <= 0 || c.PingInterval >= c.PongWait {
		c.PingInterval = c.PongWait * 9 / 10
	}
	if c.WriteWait <= 0 {
		c.WriteWait = 10 * time.Second
	}
	if c.MaxMessageBytes <= 0 {
		c.MaxMessageBytes = 4096
	}
	return c
}

// Gateway is the websocket command channel. Each connection handles its
// commands in arrival order and has a single writer goroutine.
type Gateway struct {
	purchaser Purchaser
	cfg       GatewayConfig
	upgrader  websocket.Upgrader
	slots     chan struct{}
	logger    *slog.Logger

	ctx      context.Context
	shutdown context.CancelFunc
	conns    sync.WaitGroup
}

func NewGateway(purchaser Purchaser, cfg GatewayConfig, logger *slog.Logger) *Gateway {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	ctx, cancel := context.WithCancel(context.Background())
	g := &Gateway{
		purchaser: purchaser,
		cfg:       cfg,
		slots:     make(chan struct{}, cfg.MaxConnections),
		logger:    logger,
		ctx:       ctx,
		shutdown:  cancel,
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(cfg.AllowedOrigins),
	}
	return g
}

// Shutdown closes every open connection with a going-away frame and waits
// for their goroutines, or until ctx is done.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.shutdown()

	done := make(chan struct{})
	go func() {
		g.conns.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, err := userFromRequest(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: err.Error(), Code: "unauthorized"})
		return
	}

	select {
	case g.slots <- struct{}{}:
	default:
		g.logger.Warn("gateway connection limit reached", "max_connections", g.cfg.MaxConnections)
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "too many connections", Code: "unavailable"})
		return
	}

	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		<-g.slots
		g.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	g.conns.Add(1)
	go func() {
		defer func() {
			<-g.slots
			g.conns.Done()
		}()
		newConnection(g, ws, userID).run()
	}()
}

func userFromRequest(r *http.Request) (uuid.UUID, error) {
	raw := r.Header.Get("X-User-ID")
	if raw == "" {
		raw = r.URL.Query().Get("user_id")
	}
	if raw == "" {
		return uuid.Nil, errors.New("missing user identity")
	}
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, errors.New("invalid user identity")
	}
	return id, nil
}

type inboundCommand struct {
	Action    string `json:"action"`
	EventID   *int64 `json:"eventId"`
	Qty       *int   `json:"qty"`
	RequestID string `json:"requestId,omitempty"`
}

type outboundMessage struct {
	Status    string      `json:"status"`
	RequestID string      `json:"requestId,omitempty"`
	EventID   int64       `json:"eventId,omitempty"`
	Quantity  int         `json:"quantity,omitempty"`
	TicketIDs []uuid.UUID `json:"ticketIds,omitempty"`
	Remaining *int        `json:"remaining,omitempty"`
	Kind      string      `json:"kind,omitempty"`
	Message   string      `json:"message"`
}

// decodeCommand rejects anything that is not a well-formed buyTicket
// command with ErrProtocol. Range checks are left to the purchase.
func decodeCommand(data []byte) (inboundCommand, error) {
	var cmd inboundCommand
	if err := json.Unmarshal(data, &cmd); err != nil {
		return cmd, domain.ErrProtocol
	}
	if cmd.Action != actionBuyTicket || cmd.EventID == nil || cmd.Qty == nil {
		return cmd, domain.ErrProtocol
	}
	return cmd, nil
}

type connection struct {
	gateway *Gateway
	ws      *websocket.Conn
	userID  uuid.UUID
	send    chan []byte
	logger  *slog.Logger
	cancel  context.CancelFunc
}

func newConnection(g *Gateway, ws *websocket.Conn, userID uuid.UUID) *connection {
	return &connection{
		gateway: g,
		ws:      ws,
		userID:  userID,
		send:    make(chan []byte, 16),
		logger:  g.logger.With("user_id", userID, "remote_addr", ws.RemoteAddr().String()),
	}
}

func (c *connection) run() {
	ctx, cancel := context.WithCancel(c.gateway.ctx)
	defer cancel()
	c.cancel = cancel

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writeLoop(ctx)
	}()

	c.logger.Info("gateway connection opened")
	c.enqueue(ctx, outboundMessage{Status: "connected", Message: greeting})
	c.readLoop(ctx)

	cancel()
	<-writerDone
	c.ws.Close()
	c.logger.Info("gateway connection closed")
}

func (c *connection) readLoop(ctx context.Context) {
	cfg := c.gateway.cfg
	c.ws.SetReadLimit(max(cfg.MaxMessageBytes, frameCeiling))
	_ = c.ws.SetReadDeadline(time.Now().Add(cfg.PongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(cfg.PongWait))
	})

	for {
		msgType, r, err := c.ws.NextReader()
		if err != nil {
			c.readFailed(err)
			return
		}
		if ctx.Err() != nil {
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(cfg.PongWait))

		if msgType != websocket.TextMessage {
			if _, err := io.Copy(io.Discard, r); err != nil {
				c.readFailed(err)
				return
			}
			continue
		}

		data, err := io.ReadAll(io.LimitReader(r, cfg.MaxMessageBytes+1))
		if err != nil {
			c.readFailed(err)
			return
		}
		if int64(len(data)) > cfg.MaxMessageBytes {
			if _, err := io.Copy(io.Discard, r); err != nil {
				c.readFailed(err)
				return
			}
			c.logger.Debug("oversized gateway command", "limit_bytes", cfg.MaxMessageBytes)
			c.enqueue(ctx, failureMessage("", domain.ErrProtocol))
			continue
		}
		c.enqueue(ctx, c.handle(ctx, data))
	}
}

func (c *connection) readFailed(err error) {
	if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
		c.logger.Warn("gateway read failed", "error", err)
	}
}

func (c *connection) handle(ctx context.Context, data []byte) outboundMessage {
	cmd, err := decodeCommand(data)
	if err != nil {
		c.logger.Debug("malformed gateway command", "payload_bytes", len(data))
		return failureMessage(cmd.RequestID, err)
	}

	req := domain.PurchaseRequest{UserID: c.userID, EventID: *cmd.EventID, Quantity: *cmd.Qty}
	result, err := c.gateway.purchaser.Purchase(ctx, req)
	if err != nil {
		return failureMessage(cmd.RequestID, err)
	}

	remaining := result.Remaining
	return outboundMessage{
		Status:    "ok",
		RequestID: cmd.RequestID,
		EventID:   result.EventID,
		Quantity:  len(result.TicketIDs),
		TicketIDs: result.TicketIDs,
		Remaining: &remaining,
		Message:   result.Message(),
	}
}

func failureMessage(requestID string, err error) outboundMessage {
	kind := domain.KindOf(err)
	msg := err.Error()
	if kind == domain.KindInternal {
		msg = "internal error"
	}
	return outboundMessage{
		Status:    "error",
		RequestID: requestID,
		Kind:      string(kind),
		Message:   msg,
	}
}

func (c *connection) enqueue(ctx context.Context, msg outboundMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("failed to encode gateway response", "error", err)
		return
	}
	select {
	case c.send <- data:
	case <-ctx.Done():
	}
}

// writeLoop is the only goroutine that writes data frames to ws.
func (c *connection) writeLoop(ctx context.Context) {
	cfg := c.gateway.cfg
	ticker := time.NewTicker(cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case data := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Warn("gateway write failed", "error", err)
				c.cancel()
				c.ws.Close()
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(cfg.WriteWait)); err != nil {
				c.cancel()
				c.ws.Close()
				return
			}
		case <-ctx.Done():
			c.flush(cfg)
			closing := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
			if c.gateway.ctx.Err() == nil {
				closing = websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			}
			_ = c.ws.WriteControl(websocket.CloseMessage, closing, time.Now().Add(cfg.WriteWait))
			c.ws.Close()
			return
		}
	}
}

// flush writes responses that were queued before the connection ended.
func (c *connection) flush(cfg GatewayConfig) {
	for {
		select {
		case data := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		default:
			return
		}
	}
}
