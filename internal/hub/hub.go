// ABOUTME: In-memory fan-out hub for dashboard observers
// ABOUTME: Publishes session events to all observers and caches last QR/status for late joiners

package hub

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// observerBufferSize is the channel buffer for each observer (64 events).
const observerBufferSize = 64

// Event type names on the observer wire. QR and Status are sticky: the hub
// caches the latest value and replays it to freshly attached observers.
const (
	EventQR         = "qr"
	EventStatus     = "status"
	EventLog        = "log"
	EventNewMessage = "new_message"
)

// Event is the envelope delivered to observers.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Status is the payload of a "status" event.
type Status struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Connection status values carried in Status.Status.
const (
	StatusDisconnected = "disconnected"
	StatusScanQR       = "scan_qr"
	StatusReconnecting = "reconnecting"
	StatusConnected    = "connected"
)

// Hub provides in-memory pub/sub for session events. Observers attach for
// the lifetime of their context and receive every published event once,
// best-effort: a slow observer drops events rather than blocking the rest.
type Hub struct {
	mu         sync.RWMutex
	observers  map[string]chan Event
	lastQR     any // string data URL, or nil when cleared
	lastStatus Status
	logger     *slog.Logger
}

// New creates a hub. Pass nil logger for default. The initial cached status
// is "disconnected" so a fresh observer always gets a well-formed state.
func New(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		observers: make(map[string]chan Event),
		lastStatus: Status{
			Status:  StatusDisconnected,
			Message: "Waiting for connection",
		},
		logger: logger.With("component", "hub"),
	}
}

// Attach registers an observer and returns its event channel and ID.
// The cached pairing artifact (if any) and the cached connection status are
// delivered to this observer immediately, so late joiners catch up without a
// historical replay. The observer is detached automatically when ctx ends.
func (h *Hub) Attach(ctx context.Context) (<-chan Event, string) {
	obsID := uuid.New().String()
	ch := make(chan Event, observerBufferSize)

	h.mu.Lock()
	h.observers[obsID] = ch
	if h.lastQR != nil {
		ch <- Event{Type: EventQR, Payload: h.lastQR}
	}
	ch <- Event{Type: EventStatus, Payload: h.lastStatus}
	h.mu.Unlock()

	h.logger.Debug("observer attached", "observer_id", obsID)

	go func() {
		<-ctx.Done()
		h.Detach(obsID)
	}()

	return ch, obsID
}

// Detach removes an observer and closes its channel. Idempotent.
func (h *Hub) Detach(obsID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch, ok := h.observers[obsID]
	if !ok {
		return
	}
	delete(h.observers, obsID)
	close(ch)

	h.logger.Debug("observer detached", "observer_id", obsID)
}

// Publish fans an event out to every attached observer. For EventQR and
// EventStatus the cache is updated before fan-out; other event types are
// pure fan-out. Non-blocking: observers with full channels miss the event.
func (h *Hub) Publish(eventType string, payload any) {
	h.mu.Lock()
	switch eventType {
	case EventQR:
		h.lastQR = payload
	case EventStatus:
		if st, ok := payload.(Status); ok {
			h.lastStatus = st
		}
	}

	// Sends are non-blocking, so fan-out happens under the lock; a Detach
	// cannot close a channel mid-send.
	event := Event{Type: eventType, Payload: payload}
	for _, ch := range h.observers {
		select {
		case ch <- event:
		default:
			h.logger.Debug("dropped event for slow observer", "type", eventType)
		}
	}
	h.mu.Unlock()
}

// LastStatus returns the cached connection status.
func (h *Hub) LastStatus() Status {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastStatus
}

// Close shuts down the hub and closes all observer channels.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for obsID, ch := range h.observers {
		close(ch)
		delete(h.observers, obsID)
	}

	h.logger.Debug("hub closed")
}
