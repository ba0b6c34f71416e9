package stream

import (
	"net/http"

	"bid-relay/pkg/logger"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development
	},
}

// WSHandler serves GET /ws/auction/{auctionID}: the same subscription
// semantics as the SSE endpoint over a WebSocket, one JSON text message per
// accepted bid. No client-to-server messages are expected; the read pump only
// watches for the close handshake.
type WSHandler struct {
	registry *Registry
	log      logger.Logger
}

func NewWSHandler(registry *Registry, log logger.Logger) *WSHandler {
	return &WSHandler{
		registry: registry,
		log:      log,
	}
}

func (h *WSHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	auctionID := mux.Vars(r)["auctionID"]

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("failed to upgrade connection", "error", err, "auction_id", auctionID)
		return
	}

	sub := h.registry.Subscribe(auctionID)

	go h.writePump(conn, sub)
	go h.readPump(conn, sub)
}

func (h *WSHandler) writePump(conn *websocket.Conn, sub *Subscription) {
	defer func() {
		h.registry.Unsubscribe(sub)
		conn.Close()
	}()

	for update := range sub.Events() {
		if err := conn.WriteJSON(update); err != nil {
			h.log.Warn("failed to write to subscriber",
				"auction_id", sub.AuctionID, "subscription_id", sub.ID, "error", err)
			return
		}
	}
}

func (h *WSHandler) readPump(conn *websocket.Conn, sub *Subscription) {
	defer func() {
		h.registry.Unsubscribe(sub)
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
