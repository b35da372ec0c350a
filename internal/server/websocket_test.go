package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/elvirus/virus-server-go/internal/auth"
	"github.com/elvirus/virus-server-go/internal/config"
	"github.com/elvirus/virus-server-go/internal/game"
	"github.com/elvirus/virus-server-go/internal/game/rules"
	"github.com/elvirus/virus-server-go/internal/game/state"
	"github.com/elvirus/virus-server-go/internal/repository"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type wsFixture struct {
	engine  *game.Engine
	hub     *Hub
	tickets *auth.TicketIssuer
	server  *httptest.Server
	match   *state.Match
}

func newWSFixture(t *testing.T) *wsFixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	engine := game.NewEngine(logger, game.Options{
		MinPlayers:          2,
		MaxPlayers:          6,
		InitialHandSize:     3,
		TurnTimeLimit:       time.Minute,
		RequiredOrgansToWin: 4,
		TickInterval:        time.Hour,
		Seed:                7,
	}, repository.NewMemoryMatchStore(logger))
	hub := NewHub(logger, 0)
	engine.SetNotificationHandler(hub.Publish)

	m, err := engine.StartMatch(context.Background(), game.StartRequest{
		MatchID: "m1",
		RoomID:  "room-1",
		Players: []rules.Seat{{UserID: "alice", Username: "Alice"}, {UserID: "bob", Username: "Bob"}},
	})
	require.NoError(t, err)

	tickets := newIssuer(t)
	ws := NewWebSocketServer(config.WebSocketConfig{
		Path:         "/ws",
		PingInterval: 30 * time.Second,
		WriteTimeout: 5 * time.Second,
	}, Deps{Engine: engine, Hub: hub, Tickets: tickets, Logger: logger})
	srv := httptest.NewServer(ws.Handler())

	t.Cleanup(func() {
		srv.Close()
		hub.CloseAll()
		engine.Shutdown()
	})
	return &wsFixture{engine: engine, hub: hub, tickets: tickets, server: srv, match: m}
}

func (f *wsFixture) dial(t *testing.T, playerID string) *websocket.Conn {
	t.Helper()
	ticket, err := f.tickets.Issue(f.match.ID, playerID, playerID)
	require.NoError(t, err)
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws?ticket=" + ticket
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func readUntil(t *testing.T, conn *websocket.Conn, typ string) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var f frame
		require.NoError(t, conn.ReadJSON(&f))
		if f.Type == typ {
			return f
		}
	}
}

func TestWebSocketRejectsBadTicket(t *testing.T) {
	f := newWSFixture(t)
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws?ticket=garbage"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWebSocketSendsStateOnConnect(t *testing.T) {
	f := newWSFixture(t)
	conn := f.dial(t, "alice")
	defer conn.Close()

	got := readUntil(t, conn, MessageState)
	var view state.PlayerView
	require.NoError(t, json.Unmarshal(got.Data, &view))
	assert.Equal(t, "alice", view.ViewerID)
	assert.Len(t, view.Hand, 3)
}

func TestWebSocketActionsAndErrors(t *testing.T) {
	f := newWSFixture(t)
	currentID := f.match.CurrentPlayer().UserID
	conn := f.dial(t, currentID)
	defer conn.Close()
	readUntil(t, conn, MessageState)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"type": MessagePlayCard,
		"data": map[string]interface{}{"card_id": "no-such-card"},
	}))
	errFrame := readUntil(t, conn, MessageError)
	var data ErrorData
	require.NoError(t, json.Unmarshal(errFrame.Data, &data))
	assert.Equal(t, string(rules.KindCardNotInHand), data.Kind)
	assert.Equal(t, "no-such-card", data.CardID)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": "dance"}))
	errFrame = readUntil(t, conn, MessageError)
	require.NoError(t, json.Unmarshal(errFrame.Data, &data))
	assert.Equal(t, KindBadRequest, data.Kind)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": MessageEndTurn}))
	turn := readUntil(t, conn, game.NotificationTurnChanged)
	assert.NotEmpty(t, turn.Data)

	m, err := f.engine.Snapshot(f.match.ID)
	require.NoError(t, err)
	assert.NotEqual(t, currentID, m.CurrentPlayer().UserID)
}

func TestWebSocketCloseMarksPlayerDisconnected(t *testing.T) {
	f := newWSFixture(t)
	first := f.dial(t, "bob")
	second := f.dial(t, "bob")
	readUntil(t, first, MessageState)
	readUntil(t, second, MessageState)

	inactive := func() bool {
		m, err := f.engine.Snapshot(f.match.ID)
		require.NoError(t, err)
		return !m.Players[m.PlayerIndex("bob")].IsActive
	}

	require.NoError(t, first.Close())
	time.Sleep(100 * time.Millisecond)
	assert.False(t, inactive(), "another connection is still open")

	require.NoError(t, second.Close())
	assert.Eventually(t, inactive, 5*time.Second, 20*time.Millisecond)
}

func TestHealthz(t *testing.T) {
	f := newWSFixture(t)
	resp, err := http.Get(f.server.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 1, body["matches"])
}
