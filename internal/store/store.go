// ABOUTME: Store interface and data types for lantern chat persistence
// ABOUTME: Defines Chat, Message structs and the Store interface for history operations

package store

// MaxChatMessages is the retained history cap per chat. Older messages are
// evicted front-first once the cap is exceeded.
const MaxChatMessages = 100

// PreviewFallback is the chat-list preview shown when the latest message has
// no text. The literal value is part of the persisted dashboard contract.
const PreviewFallback = "Foto/Video"

// Message represents a single message within a chat.
// JSON field names match the on-disk history file and must not change.
type Message struct {
	ID        string `json:"id"`
	ChatID    string `json:"chatId"`
	FromMe    bool   `json:"fromMe"`
	Text      string `json:"text"`
	CreatedAt int64  `json:"createdAt"` // epoch milliseconds
}

// Chat represents one conversation with a remote party.
type Chat struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	UpdatedAt int64     `json:"updatedAt"` // epoch milliseconds
	Messages  []Message `json:"messages"`
}

// ChatSummary is the chat-list view: one row per chat, newest activity first.
type ChatSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	UpdatedAt   int64  `json:"updatedAt"`
	LastMessage string `json:"lastMessage"`
}

// Store is the single writer for all chat history. Readers always receive
// copies, never references into live storage.
type Store interface {
	// Append stores a message in the given chat, creating the chat if needed.
	// A message whose ID already exists in the chat is a no-op (returns false).
	// nameHint, when non-empty, upgrades the chat name if none is set yet.
	// Accepted appends are written through to durable storage before returning.
	Append(chatID string, msg Message, nameHint string) (bool, error)

	// ListChats returns summaries of every chat, sorted by UpdatedAt descending.
	ListChats() []ChatSummary

	// ListMessages returns the retained history of a chat in arrival order,
	// or an empty slice if the chat is unknown.
	ListMessages(chatID string) []Message

	// ResetAll removes every chat and persists the empty state.
	ResetAll() error
}
