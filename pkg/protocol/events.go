package protocol

import (
	"encoding/json"

	"github.com/AmitS1009/Constructure-AI/pkg/core"
)

// EventType represents the type of a parser event
type EventType string

const (
	EventTypeTextAppended    EventType = "TEXT_APPENDED"
	EventTypeThreadIDFound   EventType = "THREAD_ID_FOUND"
	EventTypeSourcesComplete EventType = "SOURCES_COMPLETE"
)

// Event is a classified piece of the response stream.
type Event interface {
	// Type returns the event type
	Type() EventType
}

// TextAppendedEvent carries confirmed answer text.
type TextAppendedEvent struct {
	Text string
}

// Type returns EventTypeTextAppended
func (e *TextAppendedEvent) Type() EventType {
	return EventTypeTextAppended
}

// ThreadIDFoundEvent carries the thread identifier assigned by the server.
type ThreadIDFoundEvent struct {
	ThreadID int64
}

// Type returns EventTypeThreadIDFound
func (e *ThreadIDFoundEvent) Type() EventType {
	return EventTypeThreadIDFound
}

// SourcesCompleteEvent carries the parsed citation list together with the
// raw JSON it was decoded from.
type SourcesCompleteEvent struct {
	Raw     json.RawMessage
	Sources []core.Source
}

// Type returns EventTypeSourcesComplete
func (e *SourcesCompleteEvent) Type() EventType {
	return EventTypeSourcesComplete
}

func appendText(events []Event, text string) []Event {
	if text == "" {
		return events
	}
	return append(events, &TextAppendedEvent{Text: text})
}
