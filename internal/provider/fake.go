// ABOUTME: Scripted fake capability for tests
// ABOUTME: Records connect attempts and lets tests drive the event streams

package provider

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Fake is a Capability for tests. It records Connect and ClearCredentials
// calls and exposes Emit helpers so tests can drive connection updates and
// message batches exactly like a real backend would.
type Fake struct {
	mu sync.Mutex

	// ConnectErr, when set, makes every Connect attempt fail.
	ConnectErr error

	connects int
	clears   int
	cb       Callbacks
	handle   *FakeHandle
}

// FakeHandle is the Handle returned by Fake.Connect.
type FakeHandle struct {
	mu sync.Mutex

	// SendErr, when set, makes SendMessage fail.
	SendErr error
	// SendID overrides the ack ID returned for sends.
	SendID string

	sent   []FakeSent
	closes int
	seq    int
}

// FakeSent records one SendMessage call.
type FakeSent struct {
	ChatID string
	Text   string
}

// NewFake creates a fake capability with a fresh handle.
func NewFake() *Fake {
	return &Fake{handle: &FakeHandle{}}
}

// Connect implements Capability. A cancelled ctx fails the attempt the way a
// real backend's handshake would.
func (f *Fake) Connect(ctx context.Context, cb Callbacks) (Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.connects++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.ConnectErr != nil {
		return nil, f.ConnectErr
	}
	f.cb = cb
	return f.handle, nil
}

// LoggedOut implements Capability using the ErrLoggedOut sentinel.
func (f *Fake) LoggedOut(err error) bool {
	return errors.Is(err, ErrLoggedOut)
}

// ClearCredentials implements Capability.
func (f *Fake) ClearCredentials() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clears++
	return nil
}

// EmitUpdate delivers a connection update through the registered callbacks.
func (f *Fake) EmitUpdate(u ConnectionUpdate) {
	f.mu.Lock()
	cb := f.cb
	f.mu.Unlock()
	if cb.OnConnectionUpdate != nil {
		cb.OnConnectionUpdate(u)
	}
}

// EmitMessages delivers a message batch through the registered callbacks.
func (f *Fake) EmitMessages(batch []IncomingMessage) {
	f.mu.Lock()
	cb := f.cb
	f.mu.Unlock()
	if cb.OnMessages != nil {
		cb.OnMessages(batch)
	}
}

// ConnectCalls returns how many times Connect was invoked.
func (f *Fake) ConnectCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects
}

// ClearCalls returns how many times ClearCredentials was invoked.
func (f *Fake) ClearCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clears
}

// Handle returns the handle handed out by Connect.
func (f *Fake) Handle() *FakeHandle {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handle
}

// SendMessage implements Handle.
func (h *FakeHandle) SendMessage(_ context.Context, chatID, text string) (*SentMessage, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.SendErr != nil {
		return nil, h.SendErr
	}
	h.sent = append(h.sent, FakeSent{ChatID: chatID, Text: text})
	h.seq++

	sentID := h.SendID
	if sentID == "" {
		sentID = fmt.Sprintf("sent-%d", h.seq)
	}
	return &SentMessage{ID: sentID, Timestamp: time.Now()}, nil
}

// Close implements Handle.
func (h *FakeHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closes++
	return nil
}

// Sent returns a copy of all recorded sends.
func (h *FakeHandle) Sent() []FakeSent {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]FakeSent, len(h.sent))
	copy(out, h.sent)
	return out
}

// CloseCalls returns how many times Close was invoked.
func (h *FakeHandle) CloseCalls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closes
}
