package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/elvirus/virus-server-go/internal/auth"
	"github.com/elvirus/virus-server-go/internal/config"
	"github.com/elvirus/virus-server-go/internal/game"
	"github.com/elvirus/virus-server-go/internal/game/cards"
	"github.com/elvirus/virus-server-go/internal/game/rules"
	"github.com/elvirus/virus-server-go/internal/game/targeting"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Inbound and outbound WebSocket message types. Notifications are forwarded with their own
// types (TURN_CHANGED, STATE_UPDATED, MATCH_ENDED, TIMER_TICK).
const (
	MessagePlayCard = "play_card"
	MessageEndTurn  = "end_turn"
	MessageGetState = "get_state"
	MessageState    = "state"
	MessageError    = "error"
)

// KindBadRequest is reported for frames that are not valid requests.
const KindBadRequest = "BAD_REQUEST"

const maxMessageSize = 16 * 1024

// WSMessage is the envelope of every frame.
type WSMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// PlayCardData is the payload of play_card.
type PlayCardData struct {
	CardID string           `json:"card_id"`
	Kind   cards.Kind       `json:"kind,omitempty"`
	Target targeting.Target `json:"target"`
}

// EndTurnData is the payload of end_turn.
type EndTurnData struct {
	DiscardIDs []string `json:"discard_ids,omitempty"`
}

// ErrorData is the payload of error frames.
type ErrorData struct {
	Kind     string `json:"kind"`
	Reason   string `json:"reason"`
	CardID   string `json:"card_id,omitempty"`
	TargetID string `json:"target_id,omitempty"`
}

type outbound struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// WebSocketServer pushes notifications to players and accepts their actions.
type WebSocketServer struct {
	cfg      config.WebSocketConfig
	engine   *game.Engine
	hub      *Hub
	tickets  *auth.TicketIssuer
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[string]int // match_id/player_id -> open connections
}

// NewWebSocketServer creates the push listener.
func NewWebSocketServer(cfg config.WebSocketConfig, deps Deps) *WebSocketServer {
	return &WebSocketServer{
		cfg:     cfg,
		engine:  deps.Engine,
		hub:     deps.Hub,
		tickets: deps.Tickets,
		logger:  deps.Logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				return true // tickets authenticate the connection
			},
		},
		conns: make(map[string]int),
	}
}

// Handler routes the WebSocket path and /healthz.
func (s *WebSocketServer) Handler() http.Handler {
	path := s.cfg.Path
	if path == "" {
		path = "/ws"
	}
	mux := http.NewServeMux()
	mux.HandleFunc(path, s.serveWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  "ok",
			"matches": len(s.engine.ActiveMatchIDs()),
		})
	})
	return mux
}

// StartWebSocketServer serves until ctx is cancelled, then shuts the listener down.
func StartWebSocketServer(ctx context.Context, cfg config.WebSocketConfig, deps Deps) error {
	ws := NewWebSocketServer(cfg, deps)
	httpServer := &http.Server{
		Addr:              cfg.Address,
		Handler:           ws.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		deps.Logger.Info("starting WebSocket server",
			zap.String("address", cfg.Address),
			zap.String("path", cfg.Path),
		)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}

func (s *WebSocketServer) serveWS(w http.ResponseWriter, r *http.Request) {
	claims, err := s.tickets.Verify(r.URL.Query().Get("ticket"))
	if err != nil {
		http.Error(w, "invalid ticket", http.StatusUnauthorized)
		return
	}
	if _, err := s.engine.GetStateForPlayer(claims.MatchID, claims.UserID()); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &wsClient{
		id:       uuid.NewString(),
		conn:     conn,
		send:     make(chan []byte, 256),
		done:     make(chan struct{}),
		matchID:  claims.MatchID,
		playerID: claims.UserID(),
		server:   s,
	}
	client.sub = s.hub.Subscribe(client.matchID, client.playerID)
	s.connected(client)

	go client.writePump()
	go client.forward()
	go client.readPump()
}

func connKey(matchID, playerID string) string {
	return matchID + "/" + playerID
}

func (s *WebSocketServer) connected(c *wsClient) {
	s.mu.Lock()
	s.conns[connKey(c.matchID, c.playerID)]++
	s.mu.Unlock()

	s.logger.Info("websocket client connected",
		zap.String("client_id", c.id),
		zap.String("match_id", c.matchID),
		zap.String("player_id", c.playerID),
	)

	if _, err := s.engine.MarkReconnected(context.Background(), c.matchID, c.playerID); err != nil {
		s.logger.Debug("reconnect not applied",
			zap.String("match_id", c.matchID),
			zap.String("player_id", c.playerID),
			zap.Error(err),
		)
	}
	c.replyState()
}

// disconnected marks the player inactive once their last connection closes.
func (s *WebSocketServer) disconnected(c *wsClient) {
	key := connKey(c.matchID, c.playerID)
	s.mu.Lock()
	s.conns[key]--
	remaining := s.conns[key]
	if remaining <= 0 {
		delete(s.conns, key)
	}
	s.mu.Unlock()

	s.logger.Info("websocket client disconnected",
		zap.String("client_id", c.id),
		zap.String("match_id", c.matchID),
		zap.String("player_id", c.playerID),
		zap.Int("remaining", remaining),
	)
	if remaining > 0 {
		return
	}
	if _, err := s.engine.MarkDisconnected(context.Background(), c.matchID, c.playerID); err != nil {
		s.logger.Debug("disconnect not applied",
			zap.String("match_id", c.matchID),
			zap.String("player_id", c.playerID),
			zap.Error(err),
		)
	}
}

type wsClient struct {
	id       string
	conn     *websocket.Conn
	send     chan []byte
	done     chan struct{}
	once     sync.Once
	matchID  string
	playerID string
	sub      *Subscription
	server   *WebSocketServer
}

func (c *wsClient) close() {
	c.once.Do(func() {
		close(c.done)
		c.sub.Close()
	})
}

// enqueue hands a frame to the write pump. A client that cannot keep up is disconnected.
func (c *wsClient) enqueue(v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		c.server.logger.Error("failed to encode websocket frame", zap.Error(err))
		return
	}
	select {
	case <-c.done:
	case c.send <- payload:
	default:
		c.server.logger.Warn("websocket client too slow, closing",
			zap.String("client_id", c.id),
			zap.String("player_id", c.playerID),
		)
		c.close()
	}
}

func (c *wsClient) forward() {
	for {
		select {
		case <-c.done:
			return
		case n, ok := <-c.sub.C():
			if !ok {
				c.close()
				return
			}
			c.enqueue(n)
		}
	}
}

func (c *wsClient) pongWait() time.Duration {
	if c.server.cfg.PingInterval <= 0 {
		return 60 * time.Second
	}
	return c.server.cfg.PingInterval * 2
}

func (c *wsClient) readPump() {
	defer func() {
		c.close()
		c.conn.Close()
		c.server.disconnected(c)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.pongWait()))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.pongWait()))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.server.logger.Debug("websocket read failed", zap.String("client_id", c.id), zap.Error(err))
			}
			return
		}

		var msg WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.replyError(badRequest("malformed message"))
			continue
		}
		c.handle(msg)
	}
}

func (c *wsClient) writePump() {
	ping := c.server.cfg.PingInterval
	if ping <= 0 {
		ping = 30 * time.Second
	}
	writeTimeout := c.server.cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	ticker := time.NewTicker(ping)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeTimeout))
			return
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				c.close()
				return
			}
		}
	}
}

func (c *wsClient) handle(msg WSMessage) {
	ctx := context.Background()
	engine := c.server.engine

	switch msg.Type {
	case MessagePlayCard:
		var data PlayCardData
		if err := decodeData(msg.Data, &data); err != nil {
			c.replyError(err)
			return
		}
		if _, err := engine.ApplyAction(ctx, c.matchID, rules.Action{
			PlayerID: c.playerID,
			CardID:   data.CardID,
			Kind:     data.Kind,
			Target:   data.Target,
		}); err != nil {
			c.replyError(err)
		}
	case MessageEndTurn:
		var data EndTurnData
		if err := decodeData(msg.Data, &data); err != nil {
			c.replyError(err)
			return
		}
		if _, err := engine.EndTurn(ctx, c.matchID, c.playerID, data.DiscardIDs); err != nil {
			c.replyError(err)
		}
	case MessageGetState:
		c.replyState()
	default:
		c.replyError(badRequest(fmt.Sprintf("unknown message type %q", msg.Type)))
	}
}

func decodeData(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return badRequest("malformed data: " + err.Error())
	}
	return nil
}

func (c *wsClient) replyState() {
	view, err := c.server.engine.GetStateForPlayer(c.matchID, c.playerID)
	if err != nil {
		c.replyError(err)
		return
	}
	c.enqueue(outbound{Type: MessageState, Data: view})
}

type badRequestError string

func (e badRequestError) Error() string { return string(e) }

func badRequest(reason string) error {
	return badRequestError(reason)
}

func (c *wsClient) replyError(err error) {
	data := ErrorData{Kind: "INTERNAL", Reason: err.Error()}
	var ae *rules.ActionError
	var br badRequestError
	switch {
	case errors.As(err, &ae):
		data = ErrorData{Kind: string(ae.Kind), Reason: ae.Reason, CardID: ae.CardID, TargetID: ae.TargetID}
	case errors.As(err, &br):
		data = ErrorData{Kind: KindBadRequest, Reason: string(br)}
	}
	c.enqueue(outbound{Type: MessageError, Data: data})
}
