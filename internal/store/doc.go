// Package store persists bounded chat history for the single provider session.
//
// All chats live in memory and are mirrored to one JSON document on disk,
// rewritten in full after every accepted append. The document maps chat ID to
// chat record and its field names are a compatibility contract with existing
// history files and the dashboard.
//
// Guarantees per chat: no duplicate message IDs, at most 100 retained
// messages (oldest evicted first), display name upgraded only while it is
// absent or equal to the bare chat ID. A missing or corrupt file on startup
// yields an empty store rather than a failed process.
package store
