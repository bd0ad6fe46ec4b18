// Package provider defines the capability seam to the external messaging
// backend and ships two implementations: a Matrix adapter built on mautrix
// and a scripted fake for tests.
//
// The session lifecycle only ever sees the Capability and Handle interfaces;
// pairing, encryption, and wire format live entirely inside an adapter.
// Adapters deliver events one at a time, so callback handlers never observe
// interleaved completions from the same stream.
package provider
