// Package gateway exposes the dashboard-facing HTTP surface.
//
// Endpoints:
//
//   - GET  /api/chats                 chat summaries, newest activity first
//   - GET  /api/chats/{id}/messages  retained history for one chat
//   - GET  /api/events               SSE observer stream (cached state first)
//   - POST /api/command              observer command envelope intake
//   - GET  /healthz                  liveness plus current connection status
//
// The SSE stream is the observer transport: each connected client holds one
// hub subscription for the lifetime of its request. Commands are forwarded
// to the session manager as raw JSON; envelope-level problems surface to
// observers as log events rather than HTTP errors.
package gateway
