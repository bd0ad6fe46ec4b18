// ABOUTME: Connection lifecycle manager for the single provider session
// ABOUTME: Drives connect/pairing/reconnect/teardown and routes observer commands

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389/lantern/internal/hub"
	"github.com/2389/lantern/internal/pairing"
	"github.com/2389/lantern/internal/provider"
	"github.com/2389/lantern/internal/store"
)

// ErrNotConnected indicates a send was attempted without a live connection.
var ErrNotConnected = errors.New("session: not connected")

// State is the lifecycle state of the session.
type State string

const (
	StateIdle         State = "idle"
	StateConnecting   State = "connecting"
	StateScanQR       State = "scan_qr"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
)

// Reconnect backoff: delay = min(1s << retryCount, 30s).
const (
	backoffBase = time.Second
	backoffMax  = 30 * time.Second
)

// unsupportedText replaces the text of payload types the provider cannot
// express as text. The literal is part of the dashboard contract.
const unsupportedText = "Media/Unknown"

// Observer command names.
const (
	CommandDisconnect   = "disconnect"
	CommandRestart      = "restart"
	CommandClearSession = "clear_session"
	CommandSendMessage  = "send_message"
)

// Command is the observer-issued command envelope.
type Command struct {
	Command string `json:"command"`
	ChatID  string `json:"chatId,omitempty"`
	Text    string `json:"text,omitempty"`
}

// Manager owns the single provider session: at most one live handle at any
// time, a re-entrancy guard on connect attempts, and the reconnect policy.
// Lifecycle transitions and incoming messages are published through the hub;
// accepted messages are persisted in the store before rebroadcast.
type Manager struct {
	capability provider.Capability
	store      store.Store
	hub        *hub.Hub
	responder  *Responder
	logger     *slog.Logger
	// baseCtx scopes the session lifetime, not any single call. Connection
	// callbacks, scheduled reconnects, and the post-logout restart all run
	// under it, so a short-lived caller context cannot kill the retry chain.
	baseCtx context.Context

	mu         sync.Mutex
	handle     provider.Handle
	connecting bool
	retryCount int
	// generation invalidates events from superseded connections: it advances
	// on every connect attempt and on manual disconnect, and handlers compare
	// it against the value captured when their connection was opened.
	generation int
	state      State
	reconnect  *time.Timer
}

// New creates a lifecycle manager. ctx bounds the session's background
// activity (reconnect timers, logout restarts) and should outlive individual
// commands; nil means context.Background(). responder may be nil to disable
// auto-replies; pass nil logger for default.
func New(ctx context.Context, capability provider.Capability, st store.Store, h *hub.Hub, responder *Responder, logger *slog.Logger) *Manager {
	if ctx == nil {
		ctx = context.Background()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		capability: capability,
		store:      st,
		hub:        h,
		responder:  responder,
		baseCtx:    ctx,
		state:      StateIdle,
		logger:     logger.With("component", "session"),
	}
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// backoffDelay computes the reconnect delay for a retry attempt.
func backoffDelay(retryCount int) time.Duration {
	if retryCount >= 5 {
		return backoffMax
	}
	return backoffBase << retryCount
}

// Start begins a connect attempt. Idempotent: a call while an attempt is
// already in flight is a no-op. A credential or handshake failure abandons
// this attempt only; the process keeps serving stored state.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.connecting {
		m.mu.Unlock()
		m.logger.Debug("connect attempt already in flight")
		return
	}
	m.connecting = true
	m.state = StateConnecting
	m.generation++
	gen := m.generation
	// A fresh attempt supersedes any pending reconnect, or the stale timer
	// would fire into the new connection and stack a second handle on top.
	if m.reconnect != nil {
		m.reconnect.Stop()
		m.reconnect = nil
	}
	m.mu.Unlock()

	m.logger.Info("starting provider session")
	m.hub.Publish(hub.EventLog, "Starting provider session...")

	cb := provider.Callbacks{
		OnConnectionUpdate: func(u provider.ConnectionUpdate) { m.handleConnectionUpdate(gen, u) },
		OnMessages:         func(batch []provider.IncomingMessage) { m.handleMessages(gen, batch) },
	}

	handle, err := m.capability.Connect(ctx, cb)
	if err != nil {
		m.mu.Lock()
		m.connecting = false
		m.state = StateIdle
		m.mu.Unlock()
		m.logger.Error("provider connect failed", "error", err)
		m.hub.Publish(hub.EventLog, "Connect failed: "+err.Error())
		return
	}

	m.mu.Lock()
	if m.generation != gen {
		// Disconnected while the attempt was in flight; tear the fresh
		// handle down instead of adopting it.
		m.mu.Unlock()
		handle.Close()
		return
	}
	m.handle = handle
	m.mu.Unlock()
}

// Disconnect closes and discards the live handle and cancels any pending
// reconnect. No-op when the session is already idle.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	wasActive := m.handle != nil || m.state != StateIdle
	handle := m.handle
	m.handle = nil
	m.connecting = false
	m.state = StateIdle
	m.generation++
	if m.reconnect != nil {
		m.reconnect.Stop()
		m.reconnect = nil
	}
	m.mu.Unlock()

	if !wasActive {
		return
	}

	if handle != nil {
		if err := handle.Close(); err != nil {
			m.logger.Warn("closing provider handle", "error", err)
		}
	}
	m.logger.Info("session disconnected")
	m.hub.Publish(hub.EventStatus, hub.Status{
		Status:  hub.StatusDisconnected,
		Message: "Disconnected manually",
	})
}

// ClearSession disconnects, irreversibly deletes persisted credentials and
// all stored conversations, and starts a fresh pairing flow. A failed wipe of
// either kind is reported but does not abort the restart.
func (m *Manager) ClearSession(ctx context.Context) {
	m.Disconnect()

	m.logger.Info("clearing session credentials")
	if err := m.capability.ClearCredentials(); err != nil {
		m.logger.Error("clearing session credentials failed", "error", err)
		m.hub.Publish(hub.EventLog, "Error clearing session: "+err.Error())
	} else {
		m.hub.Publish(hub.EventLog, "Session credentials removed")
	}

	if err := m.store.ResetAll(); err != nil {
		m.logger.Error("clearing conversation store failed", "error", err)
		m.hub.Publish(hub.EventLog, "Error clearing conversations: "+err.Error())
	}

	m.Start(ctx)
}

// SendMessage delivers text to a chat over the live connection. The result
// is persisted and rebroadcast directly; providers that echo sent messages
// back through the message stream hit the store's dedup, so either path
// leaves exactly one entry.
func (m *Manager) SendMessage(ctx context.Context, chatID, text string) error {
	if chatID == "" {
		return fmt.Errorf("send_message: chatId is required")
	}
	if text == "" {
		return fmt.Errorf("send_message: text is required")
	}
	return m.sendAndRecord(ctx, chatID, text)
}

func (m *Manager) sendAndRecord(ctx context.Context, chatID, text string) error {
	m.mu.Lock()
	handle := m.handle
	m.mu.Unlock()

	if handle == nil {
		m.hub.Publish(hub.EventLog, "Send failed: not connected")
		return ErrNotConnected
	}

	sent, err := handle.SendMessage(ctx, chatID, text)
	if err != nil {
		m.logger.Error("message send failed", "chat_id", chatID, "error", err)
		m.hub.Publish(hub.EventLog, "Send failed: "+err.Error())
		return err
	}

	msgID := sent.ID
	if msgID == "" {
		msgID = uuid.New().String()
	}
	ts := sent.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	msg := store.Message{
		ID:        msgID,
		ChatID:    chatID,
		FromMe:    true,
		Text:      text,
		CreatedAt: ts.UnixMilli(),
	}
	if _, err := m.store.Append(chatID, msg, ""); err != nil {
		m.logger.Error("persisting sent message failed", "chat_id", chatID, "error", err)
		m.hub.Publish(hub.EventLog, "Store write failed: "+err.Error())
	}
	m.hub.Publish(hub.EventNewMessage, msg)

	m.logger.Info("message sent", "chat_id", chatID)
	return nil
}

// HandleCommand routes a raw observer command. Malformed or unknown input is
// logged and dropped; operational failures surface as observer log events,
// never as process faults.
func (m *Manager) HandleCommand(ctx context.Context, raw []byte) {
	var cmd Command
	if err := json.Unmarshal(raw, &cmd); err != nil {
		m.logger.Warn("dropping malformed command", "error", err)
		return
	}

	m.logger.Info("command received", "command", cmd.Command)

	switch cmd.Command {
	case CommandDisconnect:
		m.Disconnect()
	case CommandRestart:
		m.Start(ctx)
	case CommandClearSession:
		m.ClearSession(ctx)
	case CommandSendMessage:
		if err := m.SendMessage(ctx, cmd.ChatID, cmd.Text); err != nil {
			m.logger.Error("send_message command failed", "chat_id", cmd.ChatID, "error", err)
		}
	default:
		m.logger.Warn("dropping unknown command", "command", cmd.Command)
	}
}

func (m *Manager) handleConnectionUpdate(gen int, u provider.ConnectionUpdate) {
	m.mu.Lock()
	stale := gen != m.generation
	m.mu.Unlock()
	if stale {
		return
	}

	if u.QR != "" {
		m.handleQR(u.QR)
	}

	switch u.Connection {
	case provider.ConnectionOpen:
		m.handleOpen()
	case provider.ConnectionClose:
		m.handleClose(u.CloseCause)
	}
}

func (m *Manager) handleQR(material string) {
	artifact, err := pairing.Render(material)
	if err != nil {
		m.logger.Error("pairing artifact render failed", "error", err)
		return
	}

	m.mu.Lock()
	m.state = StateScanQR
	m.mu.Unlock()

	m.logger.Info("new pairing code received")
	m.hub.Publish(hub.EventQR, artifact)
	m.hub.Publish(hub.EventStatus, hub.Status{
		Status:  hub.StatusScanQR,
		Message: "Scan the QR code",
	})
}

func (m *Manager) handleOpen() {
	m.mu.Lock()
	m.connecting = false
	m.retryCount = 0
	m.state = StateConnected
	m.mu.Unlock()

	m.logger.Info("connection established")
	m.hub.Publish(hub.EventStatus, hub.Status{
		Status:  hub.StatusConnected,
		Message: "Connected and ready",
	})
	m.hub.Publish(hub.EventQR, nil) // pairing artifact no longer valid
}

func (m *Manager) handleClose(cause error) {
	loggedOut := m.capability.LoggedOut(cause)

	m.mu.Lock()
	m.connecting = false
	m.handle = nil
	m.mu.Unlock()

	causeMsg := "unknown"
	if cause != nil {
		causeMsg = cause.Error()
	}
	m.logger.Info("connection closed", "cause", causeMsg, "logged_out", loggedOut)
	m.hub.Publish(hub.EventLog, "Disconnected: "+causeMsg)

	if !loggedOut {
		m.scheduleReconnect()
		return
	}

	// Authoritative logout: the stored credentials are dead. Report the
	// terminal close, then immediately start over so a fresh pairing flow
	// can begin without operator intervention.
	m.mu.Lock()
	m.state = StateIdle
	m.mu.Unlock()
	m.hub.Publish(hub.EventStatus, hub.Status{
		Status:  hub.StatusDisconnected,
		Message: "Session closed, re-authentication required",
	})
	go m.Start(m.baseCtx)
}

func (m *Manager) scheduleReconnect() {
	m.mu.Lock()
	delay := backoffDelay(m.retryCount)
	m.retryCount++
	attempt := m.retryCount
	m.state = StateReconnecting
	if m.reconnect != nil {
		m.reconnect.Stop()
	}
	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		m.mu.Lock()
		// A Start or Disconnect in the Stop/fire race window has already
		// superseded this timer.
		if m.reconnect != timer {
			m.mu.Unlock()
			return
		}
		m.reconnect = nil
		m.mu.Unlock()
		m.Start(m.baseCtx)
	})
	m.reconnect = timer
	m.mu.Unlock()

	m.logger.Info("reconnect scheduled", "delay", delay, "attempt", attempt)
	m.hub.Publish(hub.EventStatus, hub.Status{
		Status:  hub.StatusReconnecting,
		Message: fmt.Sprintf("Reconnecting in %s (attempt %d)", delay, attempt),
	})
}

func (m *Manager) handleMessages(gen int, batch []provider.IncomingMessage) {
	m.mu.Lock()
	stale := gen != m.generation
	m.mu.Unlock()
	if stale {
		return
	}

	for _, in := range batch {
		msg := store.Message{
			ID:        in.ID,
			ChatID:    in.ChatID,
			FromMe:    in.FromMe,
			Text:      in.Text,
			CreatedAt: in.Timestamp.UnixMilli(),
		}
		if msg.ID == "" {
			msg.ID = uuid.New().String()
		}
		if msg.Text == "" {
			msg.Text = unsupportedText
		}
		if in.Timestamp.IsZero() {
			msg.CreatedAt = time.Now().UnixMilli()
		}

		if _, err := m.store.Append(in.ChatID, msg, in.SenderName); err != nil {
			m.logger.Error("persisting message failed", "chat_id", in.ChatID, "error", err)
			m.hub.Publish(hub.EventLog, "Store write failed: "+err.Error())
		}
		m.hub.Publish(hub.EventNewMessage, msg)

		if !in.FromMe && m.responder != nil {
			if reply, ok := m.responder.ReplyTo(in.Text); ok {
				m.logger.Info("auto-reply triggered", "chat_id", in.ChatID)
				if err := m.sendAndRecord(m.baseCtx, in.ChatID, reply); err != nil {
					m.logger.Error("auto-reply failed", "chat_id", in.ChatID, "error", err)
				}
			}
		}
	}
}
