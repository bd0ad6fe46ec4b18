// ABOUTME: HTTP handlers for the dashboard API
// ABOUTME: Chat queries, SSE observer stream, command intake, and health

package gateway

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// maxCommandBytes bounds the command request body.
const maxCommandBytes = 64 << 10

// handleListChats handles GET /api/chats.
// Returns all chat summaries, most recently active first.
func (g *Gateway) handleListChats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(g.store.ListChats())
}

// handleListMessages handles GET /api/chats/{id}/messages.
// Returns the retained history of one chat in arrival order; an unknown chat
// yields an empty array, not an error.
func (g *Gateway) handleListMessages(w http.ResponseWriter, r *http.Request) {
	chatID := r.PathValue("id")
	if chatID == "" {
		g.sendJSONError(w, http.StatusBadRequest, "chat id is required")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(g.store.ListMessages(chatID))
}

// handleEvents handles GET /api/events.
// Attaches the caller as an observer and streams hub events as SSE until the
// client disconnects. Cached pairing/status state arrives first (catch-up).
func (g *Gateway) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		g.sendJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch, obsID := g.hub.Attach(r.Context())
	defer g.hub.Detach(obsID)

	g.logger.Debug("observer stream opened", "observer_id", obsID)

	// The channel closes when the observer detaches, including via the
	// request context ending on client disconnect.
	for ev := range ch {
		g.writeSSEEvent(w, ev.Type, ev.Payload)
		flusher.Flush()
	}

	g.logger.Debug("observer stream closed", "observer_id", obsID)
}

// handleCommand handles POST /api/command.
// The body is the observer command envelope; envelope-level errors surface
// to observers as log events, so the transport answer is always 202 for
// syntactically valid JSON.
func (g *Gateway) handleCommand(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxCommandBytes))
	if err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "reading request body")
		return
	}

	if !json.Valid(raw) {
		g.logger.Warn("dropping malformed command payload")
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	g.commands.HandleCommand(r.Context(), raw)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"status": "accepted"})
}

// handleHealth handles GET /healthz.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":     "ok",
		"connection": g.hub.LastStatus().Status,
	})
}

// writeSSEEvent writes a single SSE event to the response writer.
func (g *Gateway) writeSSEEvent(w http.ResponseWriter, event string, data any) {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		g.logger.Error("failed to marshal SSE data", "error", err)
		return
	}

	fmt.Fprintf(w, "event: %s\n", event)
	fmt.Fprintf(w, "data: %s\n\n", dataJSON)
}

// sendJSONError writes a JSON error response.
func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
