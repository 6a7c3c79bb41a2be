package messages

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/AmitS1009/Constructure-AI/pkg/core"
)

// Role represents the role of a message sender
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Validate validates that a role is one of the allowed values
func (r Role) Validate() error {
	switch r {
	case RoleUser, RoleAssistant:
		return nil
	default:
		return fmt.Errorf("invalid role: %s", r)
	}
}

// Message is one turn of a conversation. Values returned by this package
// are snapshots: they share no mutable state with the code that produced them.
type Message struct {
	ID        string        `json:"id"`
	Role      Role          `json:"role"`
	Content   string        `json:"content"`
	ThreadID  *int64        `json:"thread_id,omitempty"`
	Sources   []core.Source `json:"sources"`
	CreatedAt time.Time     `json:"created_at"`
}

// NewUserMessage creates a user message with a fresh ID and timestamp
func NewUserMessage(content string) Message {
	return Message{
		ID:        uuid.New().String(),
		Role:      RoleUser,
		Content:   content,
		Sources:   []core.Source{},
		CreatedAt: time.Now(),
	}
}

// NewAssistantMessage creates an empty assistant message with a fresh ID and timestamp
func NewAssistantMessage() Message {
	return Message{
		ID:        uuid.New().String(),
		Role:      RoleAssistant,
		Sources:   []core.Source{},
		CreatedAt: time.Now(),
	}
}

// Clone returns a deep copy of the message
func (m Message) Clone() Message {
	out := m
	if m.ThreadID != nil {
		id := *m.ThreadID
		out.ThreadID = &id
	}
	out.Sources = core.CloneSources(m.Sources)
	return out
}

// Validate validates the message
func (m Message) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("message ID is required")
	}
	if err := m.Role.Validate(); err != nil {
		return err
	}
	if m.Role == RoleUser && m.Content == "" {
		return fmt.Errorf("user message content is required")
	}
	return nil
}

// Entry returns the simplified form of the message sent as request history.
func (m Message) Entry() HistoryEntry {
	return HistoryEntry{Role: m.Role, Content: m.Content}
}

// HistoryEntry is a {role, content} pair in a query request's history.
type HistoryEntry struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
