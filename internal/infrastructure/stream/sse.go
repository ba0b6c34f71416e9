package stream

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"bid-relay/pkg/logger"

	"github.com/gorilla/mux"
)

// SSEHandler serves GET /events/{auctionId}: a persistent event stream that
// pushes one JSON frame per accepted bid until either side closes the
// connection. Idle connections get periodic comment frames so intermediaries
// do not reap them.
type SSEHandler struct {
	registry  *Registry
	keepAlive time.Duration
	log       logger.Logger
}

func NewSSEHandler(registry *Registry, keepAlive time.Duration, log logger.Logger) *SSEHandler {
	if keepAlive <= 0 {
		keepAlive = 15 * time.Second
	}
	return &SSEHandler{
		registry:  registry,
		keepAlive: keepAlive,
		log:       log,
	}
}

func (h *SSEHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	auctionID := mux.Vars(r)["auctionId"]

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sub := h.registry.Subscribe(auctionID)
	defer h.registry.Unsubscribe(sub)

	keepAlive := time.NewTicker(h.keepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case update, open := <-sub.Events():
			if !open {
				return
			}
			data, err := json.Marshal(update)
			if err != nil {
				h.log.Error("failed to encode bid update", "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()

		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
