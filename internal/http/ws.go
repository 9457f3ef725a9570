package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	// The dashboard SPA may be served from another origin in development;
	// the credential still travels in the httpOnly cookie.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WatchOrder streams status snapshots for one activation over a WebSocket.
// The server runs the poll loop on the requested interval (clamped to the
// configured bounds) and closes the stream when the activation reaches a
// terminal status or the client goes away. Selecting a new order on the
// dashboard opens a new socket and drops this one, so at most one poll loop
// runs per viewer.
func (h *Handler) WatchOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "orderId")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing order id")
		return
	}
	key, err := h.resolveKey(r)
	if err != nil {
		writeClientError(w, err)
		return
	}

	var interval time.Duration
	if v, ok := optionalIntQuery(w, r, "interval"); !ok {
		return
	} else if v != nil {
		interval = time.Duration(*v) * time.Second
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client.
		h.Log.Debug("watch upgrade failed", zap.String("activation", id), zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sub := h.Poller.Watch(ctx, key, id, interval)
	defer sub.Stop()

	// Drain the read side so a client close ends the watch promptly.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	for snap := range sub.Updates() {
		if err := conn.WriteJSON(snap); err != nil {
			return
		}
	}

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "watch finished")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}
