// ABOUTME: Matrix adapter for the messaging capability, built on mautrix
// ABOUTME: Maps sync events to connection updates and message batches

package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

// MatrixConfig holds the settings for the Matrix capability.
type MatrixConfig struct {
	Homeserver  string
	UserID      string
	AccessToken string
}

// Matrix implements Capability against a Matrix homeserver. Credentials are
// persisted under Dir so a restart reuses the existing session; ClearCredentials
// removes the directory.
type Matrix struct {
	cfg    MatrixConfig
	dir    string
	logger *slog.Logger
}

// NewMatrix creates the Matrix capability. Events are delivered from the
// client's sync loop, one at a time.
func NewMatrix(cfg MatrixConfig, dir string, logger *slog.Logger) *Matrix {
	if logger == nil {
		logger = slog.Default()
	}
	return &Matrix{
		cfg:    cfg,
		dir:    dir,
		logger: logger.With("component", "matrix"),
	}
}

// storedCredentials is the JSON layout of <dir>/credentials.json.
type storedCredentials struct {
	Homeserver  string `json:"homeserver"`
	UserID      string `json:"user_id"`
	AccessToken string `json:"access_token"`
}

// matrixHandle wraps a live client plus the cancel func for its sync loop.
type matrixHandle struct {
	client *mautrix.Client
	cancel context.CancelFunc
}

func (h *matrixHandle) SendMessage(ctx context.Context, chatID, text string) (*SentMessage, error) {
	resp, err := h.client.SendText(ctx, id.RoomID(chatID), text)
	if err != nil {
		return nil, fmt.Errorf("sending to %s: %w", chatID, err)
	}
	return &SentMessage{
		ID:        resp.EventID.String(),
		Timestamp: time.Now(),
	}, nil
}

func (h *matrixHandle) Close() error {
	h.cancel()
	h.client.StopSync()
	return nil
}

// Connect implements Capability.
func (m *Matrix) Connect(ctx context.Context, cb Callbacks) (Handle, error) {
	token, err := m.loadToken()
	if err != nil {
		return nil, err
	}

	client, err := mautrix.NewClient(m.cfg.Homeserver, id.UserID(m.cfg.UserID), token)
	if err != nil {
		return nil, fmt.Errorf("creating matrix client: %w", err)
	}

	// Validate the token up front so a dead session fails this attempt
	// instead of surfacing later inside the sync loop.
	whoami, err := client.Whoami(ctx)
	if err != nil {
		if m.LoggedOut(err) {
			return nil, fmt.Errorf("matrix session invalid: %w", ErrLoggedOut)
		}
		return nil, fmt.Errorf("verifying matrix session: %w", err)
	}
	m.logger.Info("matrix session verified", "user_id", whoami.UserID)

	if err := m.saveToken(token); err != nil {
		m.logger.Warn("could not persist matrix credentials", "error", err)
	}

	syncer, ok := client.Syncer.(*mautrix.DefaultSyncer)
	if !ok {
		return nil, fmt.Errorf("unexpected syncer type: %T", client.Syncer)
	}
	syncer.OnEventType(event.EventMessage, func(_ context.Context, evt *event.Event) {
		if msg, ok := m.toIncoming(evt); ok && cb.OnMessages != nil {
			cb.OnMessages([]IncomingMessage{msg})
		}
	})

	syncCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	handle := &matrixHandle{client: client, cancel: cancel}

	go func() {
		if cb.OnConnectionUpdate != nil {
			cb.OnConnectionUpdate(ConnectionUpdate{Connection: ConnectionOpen})
		}
		err := client.SyncWithContext(syncCtx)
		if syncCtx.Err() != nil {
			// Closed locally; the session layer already knows.
			return
		}
		if m.LoggedOut(err) {
			err = fmt.Errorf("matrix sync: %w", ErrLoggedOut)
		}
		if cb.OnConnectionUpdate != nil {
			cb.OnConnectionUpdate(ConnectionUpdate{Connection: ConnectionClose, CloseCause: err})
		}
	}()

	return handle, nil
}

// LoggedOut implements Capability. Matrix reports a dead session as an
// unknown or missing token.
func (m *Matrix) LoggedOut(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrLoggedOut) ||
		errors.Is(err, mautrix.MUnknownToken) ||
		errors.Is(err, mautrix.MMissingToken)
}

// ClearCredentials implements Capability.
func (m *Matrix) ClearCredentials() error {
	if err := os.RemoveAll(m.dir); err != nil {
		return fmt.Errorf("removing matrix credentials: %w", err)
	}
	return nil
}

// loadToken prefers the configured access token and falls back to the
// persisted copy from a previous run.
func (m *Matrix) loadToken() (string, error) {
	if m.cfg.AccessToken != "" {
		return m.cfg.AccessToken, nil
	}

	data, err := os.ReadFile(filepath.Join(m.dir, "credentials.json"))
	if err != nil {
		return "", fmt.Errorf("no access token configured and none persisted: %w", err)
	}
	var creds storedCredentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return "", fmt.Errorf("parsing persisted credentials: %w", err)
	}
	if creds.AccessToken == "" {
		return "", fmt.Errorf("persisted credentials contain no access token")
	}
	return creds.AccessToken, nil
}

func (m *Matrix) saveToken(token string) error {
	if err := os.MkdirAll(m.dir, 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(storedCredentials{
		Homeserver:  m.cfg.Homeserver,
		UserID:      m.cfg.UserID,
		AccessToken: token,
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(m.dir, "credentials.json"), data, 0600)
}

// toIncoming maps a Matrix message event to an IncomingMessage. Non-text
// messages keep an empty Text; the session layer substitutes its placeholder.
func (m *Matrix) toIncoming(evt *event.Event) (IncomingMessage, bool) {
	content, ok := evt.Content.Parsed.(*event.MessageEventContent)
	if !ok {
		return IncomingMessage{}, false
	}

	text := ""
	if content.MsgType == event.MsgText {
		text = content.Body
	}

	return IncomingMessage{
		ID:         evt.ID.String(),
		ChatID:     evt.RoomID.String(),
		FromMe:     evt.Sender == id.UserID(m.cfg.UserID),
		Text:       text,
		SenderName: localpart(evt.Sender.String()),
		Timestamp:  time.UnixMilli(evt.Timestamp),
	}, true
}

// localpart extracts "alice" from "@alice:example.org".
func localpart(userID string) string {
	s := strings.TrimPrefix(userID, "@")
	if i := strings.IndexByte(s, ':'); i >= 0 {
		return s[:i]
	}
	return s
}
