// ABOUTME: Capability interface for the external messaging backend
// ABOUTME: Defines Connect/SendMessage/Close, event delivery, and credential wipe

package provider

import (
	"context"
	"errors"
	"time"
)

// ErrLoggedOut is the close cause for an authoritative logout by the remote
// backend. Adapters wrap or return it so the session layer can distinguish
// "re-pair required" from a retryable connection loss.
var ErrLoggedOut = errors.New("provider: logged out")

// ErrNoProvider is returned by the disabled capability's Connect.
var ErrNoProvider = errors.New("provider: no provider configured")

// Connection values carried in ConnectionUpdate.Connection.
const (
	ConnectionOpen  = "open"
	ConnectionClose = "close"
)

// ConnectionUpdate reports a change in the backend connection. QR carries new
// pairing material when non-empty; Connection is "open", "close", or empty
// when only the pairing material changed. CloseCause accompanies "close".
type ConnectionUpdate struct {
	QR         string
	Connection string
	CloseCause error
}

// IncomingMessage is one message delivered by the backend, covering both
// newly received messages and echoes of messages sent from this session.
type IncomingMessage struct {
	ID         string
	ChatID     string
	FromMe     bool
	Text       string // empty for unsupported payload types
	SenderName string
	Timestamp  time.Time
}

// SentMessage acknowledges a successful send.
type SentMessage struct {
	ID        string
	Timestamp time.Time
}

// Callbacks receive backend events. Each callback runs to completion before
// the adapter delivers the next event from the same stream.
type Callbacks struct {
	OnConnectionUpdate func(ConnectionUpdate)
	OnMessages         func([]IncomingMessage)
}

// Handle is a live backend connection. It is replaced, never reused, across
// reconnects.
type Handle interface {
	// SendMessage delivers text to a chat and returns the backend's ack.
	SendMessage(ctx context.Context, chatID, text string) (*SentMessage, error)
	// Close tears the connection down. Safe to call more than once.
	Close() error
}

// Capability is the seam between the session lifecycle and a concrete
// messaging backend. The protocol behind it (pairing, encryption, wire
// format) is entirely the adapter's concern.
type Capability interface {
	// Connect loads persisted credentials, opens a connection, and starts
	// delivering events to cb. It blocks until the connection is established
	// or fails; "open"/"close" transitions after that arrive via cb.
	Connect(ctx context.Context, cb Callbacks) (Handle, error)

	// LoggedOut classifies a close cause: true means an authoritative logout
	// (fresh pairing required), false means the loss is retryable.
	LoggedOut(err error) bool

	// ClearCredentials irreversibly deletes persisted credential material.
	ClearCredentials() error
}

// Disabled is the capability used when no provider is configured. Connect
// always fails, so the session stays down while the dashboard keeps serving
// stored history.
type Disabled struct{}

func (Disabled) Connect(context.Context, Callbacks) (Handle, error) { return nil, ErrNoProvider }
func (Disabled) LoggedOut(error) bool                               { return false }
func (Disabled) ClearCredentials() error                            { return nil }
