package voting_api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"ms-voting/internal/utils"
)

// ResultsStream pushes the full results payload on connect and again after
// every committed change.
func (h *Handler) ResultsStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	h.setupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	updates := h.Results.Subscribe(ctx)
	h.Logger.Debug("SSE", fmt.Sprintf("Results client connected (%d total)", h.Results.ClientCount()))

	if !h.pushResults(w, r, "connected") {
		return
	}
	flusher.Flush()

	keepAlive := time.NewTicker(h.KeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case change, open := <-updates:
			if !open {
				return
			}
			if !h.pushResults(w, r, change.Reason) {
				return
			}
			flusher.Flush()

		case <-keepAlive.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()

		case <-ctx.Done():
			h.Logger.Debug("SSE", "Results client disconnected")
			return
		}
	}
}

// pushResults writes one results event. It returns false when the stream
// should end.
func (h *Handler) pushResults(w http.ResponseWriter, r *http.Request, reason string) bool {
	results, err := h.Service.ListResults(r.Context())
	if err != nil {
		if r.Context().Err() != nil {
			return false
		}
		h.Logger.Error("SSE", fmt.Sprintf("Failed to load results (%s): %v", reason, err))
		return true
	}

	jsonData, err := json.Marshal(results)
	if err != nil {
		h.Logger.Error("SSE", fmt.Sprintf("Failed to serialize results: %v", err))
		return true
	}

	fmt.Fprintf(w, "event: results\nid: %s\ndata: %s\n\n", utils.GenerateRequestID(), jsonData)
	return true
}

func (h *Handler) setupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream;charset=UTF-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, max-age=0, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set("X-Content-Type-Options", "nosniff")
}
