package spectate

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pthm-cable/flappy/game"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// controlMessage is what browsers send.
type controlMessage struct {
	Type string `json:"type"`
}

// readPump reads control requests until the connection fails.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Debug("spectator read failed", "error", err)
			}
			return
		}

		var msg controlMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			slog.Debug("bad spectator message", "error", err)
			continue
		}

		var sig game.Signals
		switch msg.Type {
		case "restart":
			sig.Restart = true
		case "quit":
			sig.Quit = true
		default:
			slog.Debug("unknown spectator message", "type", msg.Type)
			continue
		}
		if !c.hub.request(sig) {
			slog.Debug("spectator request dropped", "type", msg.Type)
		}
	}
}

// writePump is the only writer of the connection.
func (c *Client) writePump() {
	defer c.conn.Close()
	for message := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			slog.Debug("spectator write failed, closing", "error", err)
			return
		}
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// Handler upgrades requests on /ws and serves a short index elsewhere.
func Handler(hub *Hub) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Warn("websocket upgrade failed", "error", err)
			return
		}
		c := &Client{hub: hub, conn: conn, send: make(chan []byte, 256)}
		select {
		case hub.register <- c:
		case <-hub.done:
			conn.Close()
			return
		}

		go c.writePump()
		go c.readPump()
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("flappy spectator: connect a websocket to /ws\n"))
	})
	return mux
}

// Serve runs the hub and an HTTP server on addr until ctx is done.
func Serve(ctx context.Context, addr string, hub *Hub) error {
	srv := &http.Server{Addr: addr, Handler: Handler(hub), ReadHeaderTimeout: 5 * time.Second}

	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go hub.Run(hubCtx)

	errc := make(chan error, 1)
	go func() {
		slog.Info("spectator server listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
