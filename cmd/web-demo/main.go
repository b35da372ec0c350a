// Command web-demo is a console WebSocket client for a running server. It prints every frame it
// receives and, with -auto, ends the turn whenever it becomes the ticket holder's.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"time"

	"github.com/elvirus/virus-server-go/internal/game"
	"github.com/elvirus/virus-server-go/internal/server"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var (
	addr   = flag.String("addr", "localhost:17172", "WebSocket listener address")
	path   = flag.String("path", "/ws", "WebSocket path")
	ticket = flag.String("ticket", "", "player ticket returned by StartMatch")
	auto   = flag.Bool("auto", false, "end the turn automatically when it is ours")
)

type frame struct {
	Type     string          `json:"type"`
	PlayerID string          `json:"player_id,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}

type turnData struct {
	CurrentPlayerID string `json:"current_player_id"`
}

type stateData struct {
	ViewerID        string `json:"viewer_id"`
	CurrentPlayerID string `json:"current_player_id"`
}

func main() {
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if *ticket == "" {
		logger.Fatal("-ticket is required")
	}

	u := url.URL{Scheme: "ws", Host: *addr, Path: *path, RawQuery: url.Values{"ticket": {*ticket}}.Encode()}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		logger.Fatal("failed to connect", zap.String("host", u.Host), zap.Error(err))
	}
	defer conn.Close()
	logger.Info("connected", zap.String("host", u.Host))

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	done := make(chan struct{})
	go func() {
		defer close(done)
		readLoop(conn, logger)
	}()

	select {
	case <-done:
	case <-interrupt:
		logger.Info("closing connection")
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		select {
		case <-done:
		case <-time.After(time.Second):
		}
	}
}

func readLoop(conn *websocket.Conn, logger *zap.Logger) {
	me := ""
	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			logger.Info("connection closed", zap.Error(err))
			return
		}
		logger.Info("received", zap.String("type", f.Type), zap.ByteString("data", f.Data))

		current := ""
		switch f.Type {
		case server.MessageState:
			var s stateData
			if err := json.Unmarshal(f.Data, &s); err == nil {
				me, current = s.ViewerID, s.CurrentPlayerID
			}
		case game.NotificationTurnChanged:
			var t turnData
			if err := json.Unmarshal(f.Data, &t); err == nil {
				current = t.CurrentPlayerID
			}
		case game.NotificationMatchEnded:
			logger.Info("match ended")
			return
		}

		if *auto && me != "" && current == me {
			msg := server.WSMessage{Type: server.MessageEndTurn}
			if err := conn.WriteJSON(msg); err != nil {
				logger.Warn("failed to end turn", zap.Error(err))
				return
			}
		}
	}
}
