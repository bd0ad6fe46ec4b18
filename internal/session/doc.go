// Package session drives the lifecycle of the single provider connection.
//
// # State machine
//
// Idle -> Connecting -> (ScanQR) -> Connected -> back to Idle, with
// Reconnecting on the retryable-close path:
//
//   - Connecting guards re-entrancy: a second Start while an attempt is in
//     flight is a no-op.
//   - ScanQR means pairing material was broadcast but the connection is not
//     confirmed open yet.
//   - Connected resets the retry counter and clears the cached pairing
//     artifact.
//   - A retryable close schedules a delayed reconnect with exponential
//     backoff, min(1s * 2^retry, 30s), with no give-up threshold.
//   - An authoritative logout immediately starts a fresh connect so the next
//     pairing can begin; this auto-recovery is deliberate policy.
//
// # Event flow
//
// The provider capability delivers connection updates and message batches.
// Messages are persisted through the store (which deduplicates by message
// ID) and rebroadcast to observers as "new_message" regardless of direction,
// covering both received messages and echoes of sends from this session.
//
// Observer commands (disconnect, restart, clear_session, send_message)
// arrive as JSON envelopes via HandleCommand. Malformed input is dropped
// with a log line; operational failures become observer-visible "log"
// events, never process faults.
//
// A generation counter invalidates events from superseded connections, which
// makes disconnect-during-connect a soft guarantee: the stale attempt's
// events are ignored rather than the attempt being aborted in place.
package session
