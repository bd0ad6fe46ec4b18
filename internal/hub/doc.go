// Package hub fans session events out to dashboard observers.
//
// Observers attach for the lifetime of a context and receive every published
// event on a buffered channel. Delivery is best-effort: a full channel drops
// the event for that observer only. The latest "qr" and "status" payloads are
// cached and replayed to new observers on attach, which is catch-up for late
// joiners, not a historical event log.
package hub
