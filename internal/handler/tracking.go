package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/sdk/zctx"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type liveMessage struct {
	Type     string        `json:"type"`
	Snapshot *trackingView `json:"snapshot,omitempty"`
	Update   *updateView   `json:"update,omitempty"`
}

// LiveOrder streams an order's tracking snapshot followed by every update
// over a WebSocket until either side closes the connection.
func (h *Handler) LiveOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	// Subscribe before loading the snapshot so no update falls in between.
	sub := h.hub.Subscribe(orderID)
	defer sub.Release()

	t, err := h.orders.Track(r.Context(), orderID)
	if err != nil {
		h.writeOrderError(w, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client.
		return
	}
	defer func() { _ = conn.Close() }()

	lg := zctx.From(r.Context()).With(zap.String("order_id", orderID))
	lg.Debug("Live tracking connected")

	pongWait := 2 * h.cfg.PingInterval
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	snapshot := toTrackingView(t)
	if err := h.writeLive(conn, liveMessage{Type: "snapshot", Snapshot: &snapshot}); err != nil {
		return
	}

	ping := time.NewTicker(h.cfg.PingInterval)
	defer ping.Stop()
	for {
		select {
		case u, ok := <-sub.Updates():
			if !ok {
				// Hub closed during shutdown.
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
					time.Now().Add(h.cfg.WriteWait))
				return
			}
			view := toUpdateView(u)
			if err := h.writeLive(conn, liveMessage{Type: "update", Update: &view}); err != nil {
				lg.Debug("Live tracking write failed", zap.Error(err))
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.cfg.WriteWait)); err != nil {
				return
			}
		case <-closed:
			lg.Debug("Live tracking disconnected")
			return
		}
	}
}

func (h *Handler) writeLive(conn *websocket.Conn, msg liveMessage) error {
	if err := conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteWait)); err != nil {
		return err
	}
	return conn.WriteJSON(msg)
}
