// ABOUTME: JSON-file implementation of the Store interface
// ABOUTME: Keeps all chats in memory and rewrites one JSON document per accepted append

package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// JSONStore implements Store backed by a single JSON file mapping
// chat ID to chat record. The whole document is rewritten synchronously
// after every accepted append, so the on-disk state is always consistent
// with memory once an operation returns.
type JSONStore struct {
	mu     sync.Mutex
	path   string
	chats  map[string]*Chat
	logger *slog.Logger
	now    func() time.Time
}

// Open loads the store from path, creating parent directories as needed.
// A missing file starts an empty store and creates the file. An unreadable
// or malformed file also starts empty: losing history is preferred over
// refusing to start.
func Open(path string, logger *slog.Logger) (*JSONStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "store")

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	s := &JSONStore{
		path:   path,
		chats:  make(map[string]*Chat),
		logger: logger,
		now:    time.Now,
	}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		if err := s.save(); err != nil {
			return nil, fmt.Errorf("creating store file: %w", err)
		}
	case err != nil:
		logger.Error("store file unreadable, starting empty", "path", path, "error", err)
	default:
		if err := json.Unmarshal(data, &s.chats); err != nil {
			logger.Error("store file malformed, starting empty", "path", path, "error", err)
			s.chats = make(map[string]*Chat)
		}
	}

	logger.Info("chat store ready", "path", path, "chats", len(s.chats))
	return s, nil
}

// Append implements Store.
func (s *JSONStore) Append(chatID string, msg Message, nameHint string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chat, ok := s.chats[chatID]
	if !ok {
		chat = &Chat{
			ID:       chatID,
			Name:     nameHint,
			Messages: []Message{},
		}
		s.chats[chatID] = chat
	}

	chat.UpdatedAt = s.now().UnixMilli()

	// Upgrade a bare name when the provider supplies a better one
	if nameHint != "" && (chat.Name == "" || chat.Name == chat.ID) {
		chat.Name = nameHint
	}

	for _, existing := range chat.Messages {
		if existing.ID == msg.ID {
			// Same upstream event delivered twice; keep the first copy
			return false, nil
		}
	}

	chat.Messages = append(chat.Messages, msg)
	if len(chat.Messages) > MaxChatMessages {
		chat.Messages = chat.Messages[len(chat.Messages)-MaxChatMessages:]
	}

	if err := s.save(); err != nil {
		return true, fmt.Errorf("persisting chat store: %w", err)
	}
	return true, nil
}

// ListChats implements Store.
func (s *JSONStore) ListChats() []ChatSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	summaries := make([]ChatSummary, 0, len(s.chats))
	for _, chat := range s.chats {
		preview := PreviewFallback
		if n := len(chat.Messages); n > 0 && chat.Messages[n-1].Text != "" {
			preview = chat.Messages[n-1].Text
		}
		summaries = append(summaries, ChatSummary{
			ID:          chat.ID,
			Name:        chat.Name,
			UpdatedAt:   chat.UpdatedAt,
			LastMessage: preview,
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].UpdatedAt > summaries[j].UpdatedAt
	})
	return summaries
}

// ListMessages implements Store.
func (s *JSONStore) ListMessages(chatID string) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	chat, ok := s.chats[chatID]
	if !ok {
		return []Message{}
	}

	out := make([]Message, len(chat.Messages))
	copy(out, chat.Messages)
	return out
}

// ResetAll implements Store.
func (s *JSONStore) ResetAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.chats = make(map[string]*Chat)
	if err := s.save(); err != nil {
		return fmt.Errorf("persisting chat store: %w", err)
	}
	s.logger.Info("chat store cleared")
	return nil
}

// save rewrites the full document. Caller holds s.mu.
func (s *JSONStore) save() error {
	data, err := json.MarshalIndent(s.chats, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0644)
}
