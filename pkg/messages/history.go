package messages

import (
	"fmt"
	"sync"
)

// HistoryOptions configures the message history behavior
type HistoryOptions struct {
	MaxMessages int // Maximum number of messages to keep; 0 means unbounded
}

// DefaultHistoryOptions returns default history options
func DefaultHistoryOptions() HistoryOptions {
	return HistoryOptions{
		MaxMessages: 200,
	}
}

// History is the ordered conversation of one thread
type History struct {
	mu       sync.RWMutex
	messages []Message
	index    map[string]struct{} // IDs currently held
	options  HistoryOptions
}

// NewHistory creates a new message history
func NewHistory(options ...HistoryOptions) *History {
	opts := DefaultHistoryOptions()
	if len(options) > 0 {
		opts = options[0]
	}

	return &History{
		index:   make(map[string]struct{}),
		options: opts,
	}
}

// Add adds a message to the history
func (h *History) Add(msg Message) error {
	return h.AddBatch([]Message{msg})
}

// AddBatch adds multiple messages to the history. Either all are added or none.
func (h *History) AddBatch(messages []Message) error {
	if len(messages) == 0 {
		return nil
	}

	for i, msg := range messages {
		if err := msg.Validate(); err != nil {
			return fmt.Errorf("invalid message at index %d: %w", i, err)
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	seen := make(map[string]bool, len(messages))
	for _, msg := range messages {
		if _, exists := h.index[msg.ID]; exists || seen[msg.ID] {
			return fmt.Errorf("message with ID %s already exists", msg.ID)
		}
		seen[msg.ID] = true
	}

	for _, msg := range messages {
		h.messages = append(h.messages, msg.Clone())
	}
	h.trim()

	return nil
}

// GetAll returns copies of all messages, oldest first
func (h *History) GetAll() []Message {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return cloneAll(h.messages)
}

// Entries returns the history in the {role, content} form sent with a query
func (h *History) Entries() []HistoryEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	entries := make([]HistoryEntry, len(h.messages))
	for i, msg := range h.messages {
		entries[i] = msg.Entry()
	}
	return entries
}

// Clear removes all messages from history
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.messages = nil
	h.index = make(map[string]struct{})
}

// trim applies MaxMessages and rebuilds the index; callers hold the lock
func (h *History) trim() {
	if h.options.MaxMessages > 0 && len(h.messages) > h.options.MaxMessages {
		start := len(h.messages) - h.options.MaxMessages
		h.messages = append([]Message(nil), h.messages[start:]...)
	}

	h.index = make(map[string]struct{}, len(h.messages))
	for _, msg := range h.messages {
		h.index[msg.ID] = struct{}{}
	}
}

func cloneAll(messages []Message) []Message {
	out := make([]Message, len(messages))
	for i, msg := range messages {
		out[i] = msg.Clone()
	}
	return out
}
