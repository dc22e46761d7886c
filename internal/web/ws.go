package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// clientMessage is what a socket client may send.
type clientMessage struct {
	Type string `json:"type"` // "play" or "reset"
	Cell int    `json:"cell"`
}

// socket streams JSON snapshots of a game. The seated player (by cookie) may
// also play and reset over the same connection; errors come back as
// {"error": "..."} frames.
func (h *handlers) socket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	gs, ok := h.svc.Get(id)
	if !ok {
		http.NotFound(w, r)
		return
	}
	pid := playerCookie(r)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debugw("ws upgrade", "game", id, "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, unsub, err := h.svc.Subscribe(ctx, id)
	if err != nil {
		return
	}
	defer unsub()

	replies := make(chan errorResponse, 1)
	go h.readSocket(ctx, cancel, conn, id, pid, replies)

	send := func(v any) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteJSON(v); err != nil {
			h.log.Debugw("ws write", "game", id, "error", err)
			return false
		}
		return true
	}
	if !send(newSnapshot(*gs)) {
		return
	}

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-replies:
			if !send(msg) {
				return
			}
		case snap, ok := <-ch:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "too slow"),
					time.Now().Add(wsWriteWait))
				return
			}
			if !send(newSnapshot(snap)) {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}

// readSocket applies client commands until the connection fails, then cancels ctx.
func (h *handlers) readSocket(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, id, pid string, replies chan<- errorResponse) {
	defer cancel()
	conn.SetReadLimit(maxBodyBytes)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		var msg clientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debugw("ws read", "game", id, "error", err)
			}
			return
		}
		var reply string
		switch msg.Type {
		case "play":
			if _, err := h.svc.Play(id, pid, msg.Cell); err != nil {
				reply = errorMessage(err)
			}
		case "reset":
			if _, err := h.svc.Reset(id, pid); err != nil {
				reply = errorMessage(err)
			}
		default:
			reply = "Unknown message type " + msg.Type
		}
		if reply == "" {
			continue
		}
		select {
		case replies <- errorResponse{Error: reply}:
		case <-ctx.Done():
			return
		}
	}
}
