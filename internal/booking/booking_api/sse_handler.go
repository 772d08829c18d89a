package booking_api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"resort-booking/internal/models"
)

// StreamBookings pushes booking lifecycle events to an admin dashboard as Server-Sent Events.
// ?vertical=stay|adventure|event narrows the stream.
func (h *Handler) StreamBookings(w http.ResponseWriter, r *http.Request) {
	vertical := r.URL.Query().Get("vertical")
	if vertical != "" && !models.Vertical(vertical).Valid() {
		http.Error(w, "Unknown vertical", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	setupSSEHeaders(w)

	ctx := r.Context()
	eventChan := h.Feed.Subscribe(ctx, vertical)

	fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"connected\",\"vertical\":%q}\n\n", vertical)
	flusher.Flush()
	h.Logger.Info("SSE", fmt.Sprintf("Admin connected to booking stream (vertical=%q)", vertical))

	for {
		select {
		case evt, ok := <-eventChan:
			if !ok {
				h.Logger.Debug("SSE", "Booking stream channel closed")
				return
			}

			jsonData, err := json.Marshal(evt)
			if err != nil {
				h.Logger.Error("SSE", fmt.Sprintf("Failed to serialize booking event: %v", err))
				continue
			}

			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, jsonData)
			flusher.Flush()

		case <-ctx.Done():
			h.Logger.Debug("SSE", "Admin disconnected from booking stream")
			return
		}
	}
}

func setupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream;charset=UTF-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, max-age=0, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set("X-Content-Type-Options", "nosniff")
}
