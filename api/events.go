package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/warp/checkin-engine/checkin"
)

// StreamEvents handles GET /api/events
//
// Server-sent events: one "progress" event with the current view on
// connect, then one per task update until the client goes away.
func (h *Handler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "Streaming unsupported", nil)
		return
	}

	updates, cancel := h.Bus.Subscribe(16)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	var writeErr error
	err := h.Engine.Watch(r.Context(), updates, func(v checkin.View) {
		if writeErr != nil {
			return
		}
		data, err := json.Marshal(v)
		if err != nil {
			writeErr = err
			return
		}
		if _, err := fmt.Fprintf(w, "event: progress\ndata: %s\n\n", data); err != nil {
			writeErr = err
			return
		}
		flusher.Flush()
	})
	if err != nil && !errors.Is(err, r.Context().Err()) {
		h.Logger.Warn("event stream ended", zap.Error(err))
	}
	if writeErr != nil {
		h.Logger.Debug("event stream write failed", zap.Error(writeErr))
	}
}
