// ABOUTME: Tests for the observer fan-out hub
// ABOUTME: Covers attach catch-up, publish ordering, detach, cache, and slow observers

package hub

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recv(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "channel closed")
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestAttach_DeliversCachedStatusImmediately(t *testing.T) {
	h := New(nil)
	defer h.Close()

	ch, _ := h.Attach(t.Context())

	ev := recv(t, ch)
	assert.Equal(t, EventStatus, ev.Type)
	st, ok := ev.Payload.(Status)
	require.True(t, ok)
	assert.Equal(t, StatusDisconnected, st.Status)
}

func TestAttach_CatchUpAfterMissedPublishes(t *testing.T) {
	h := New(nil)
	defer h.Close()

	// Published with nobody attached
	h.Publish(EventQR, "data:image/png;base64,AAAA")
	h.Publish(EventStatus, Status{Status: StatusScanQR, Message: "Scan the QR code"})

	ch, _ := h.Attach(t.Context())

	ev := recv(t, ch)
	assert.Equal(t, EventQR, ev.Type)
	assert.Equal(t, "data:image/png;base64,AAAA", ev.Payload)

	ev = recv(t, ch)
	assert.Equal(t, EventStatus, ev.Type)
	st, ok := ev.Payload.(Status)
	require.True(t, ok)
	assert.Equal(t, StatusScanQR, st.Status)
}

func TestAttach_CachedStatusPrecedesLaterPublishes(t *testing.T) {
	h := New(nil)
	defer h.Close()

	h.Publish(EventStatus, Status{Status: StatusScanQR, Message: "Scan the QR code"})

	ch, _ := h.Attach(t.Context())
	h.Publish(EventStatus, Status{Status: StatusConnected, Message: "Connected and ready"})

	first := recv(t, ch)
	st, ok := first.Payload.(Status)
	require.True(t, ok)
	assert.Equal(t, StatusScanQR, st.Status)

	second := recv(t, ch)
	st, ok = second.Payload.(Status)
	require.True(t, ok)
	assert.Equal(t, StatusConnected, st.Status)
}

func TestPublish_FansOutToAllObservers(t *testing.T) {
	h := New(nil)
	defer h.Close()

	ch1, _ := h.Attach(t.Context())
	ch2, _ := h.Attach(t.Context())
	recv(t, ch1) // drain initial status
	recv(t, ch2)

	h.Publish(EventLog, "hello observers")

	for i, ch := range []<-chan Event{ch1, ch2} {
		ev := recv(t, ch)
		assert.Equal(t, EventLog, ev.Type, "observer %d", i)
		assert.Equal(t, "hello observers", ev.Payload, "observer %d", i)
	}
}

func TestPublish_PreservesOrderForSinglePublisher(t *testing.T) {
	h := New(nil)
	defer h.Close()

	ch, _ := h.Attach(t.Context())
	recv(t, ch)

	for i := 0; i < 10; i++ {
		h.Publish(EventLog, fmt.Sprintf("line %d", i))
	}
	for i := 0; i < 10; i++ {
		ev := recv(t, ch)
		assert.Equal(t, fmt.Sprintf("line %d", i), ev.Payload)
	}
}

func TestPublish_QRNilClearsCache(t *testing.T) {
	h := New(nil)
	defer h.Close()

	h.Publish(EventQR, "data:image/png;base64,AAAA")
	h.Publish(EventQR, nil)

	ch, _ := h.Attach(t.Context())

	// No cached QR: the first delivery is the status event
	ev := recv(t, ch)
	assert.Equal(t, EventStatus, ev.Type)
}

func TestPublish_LogEventsAreNotCached(t *testing.T) {
	h := New(nil)
	defer h.Close()

	h.Publish(EventLog, "only for whoever was listening")

	ch, _ := h.Attach(t.Context())
	ev := recv(t, ch)
	assert.Equal(t, EventStatus, ev.Type, "log events must not replay on attach")
}

func TestDetach_IsIdempotentAndClosesChannel(t *testing.T) {
	h := New(nil)
	defer h.Close()

	ch, obsID := h.Attach(t.Context())
	recv(t, ch)

	h.Detach(obsID)
	h.Detach(obsID)

	_, ok := <-ch
	assert.False(t, ok, "channel should be closed")
}

func TestDetach_OtherObserversUnaffected(t *testing.T) {
	h := New(nil)
	defer h.Close()

	ch1, obs1 := h.Attach(t.Context())
	ch2, _ := h.Attach(t.Context())
	recv(t, ch1)
	recv(t, ch2)

	h.Detach(obs1)
	h.Publish(EventLog, "still here")

	ev := recv(t, ch2)
	assert.Equal(t, "still here", ev.Payload)
}

func TestAttach_ContextCancellationDetaches(t *testing.T) {
	h := New(nil)
	defer h.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch, _ := h.Attach(ctx)
	recv(t, ch)

	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok, "channel should close after context cancellation")
	case <-time.After(time.Second):
		t.Fatal("channel not closed after context cancellation")
	}
}

func TestPublish_SlowObserverDropsWithoutBlocking(t *testing.T) {
	h := New(nil)
	defer h.Close()

	ch, _ := h.Attach(t.Context())

	// Fill the observer buffer (initial status already occupies one slot)
	for i := 0; i < observerBufferSize+10; i++ {
		h.Publish(EventLog, i)
	}

	// Publisher did not block; a fresh observer still works
	ch2, _ := h.Attach(t.Context())
	ev := recv(t, ch2)
	assert.Equal(t, EventStatus, ev.Type)

	// The slow observer kept its buffered prefix
	ev = recv(t, ch)
	assert.Equal(t, EventStatus, ev.Type)
}

func TestLastStatus(t *testing.T) {
	h := New(nil)
	defer h.Close()

	h.Publish(EventStatus, Status{Status: StatusConnected, Message: "Connected and ready"})
	assert.Equal(t, StatusConnected, h.LastStatus().Status)
}
