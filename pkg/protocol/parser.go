package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/AmitS1009/Constructure-AI/pkg/core"
)

// Mode is the parser's position in the stream.
type Mode int

const (
	// ModeText classifies fragments as answer text or markers.
	ModeText Mode = iota
	// ModeSources collects the remainder of the stream as the JSON payload.
	ModeSources
)

func (m Mode) String() string {
	switch m {
	case ModeText:
		return "text"
	case ModeSources:
		return "sources"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParserOption configures a Parser
type ParserOption func(*Parser)

// DiscardThreadID still cuts the first thread-id marker out of the text but
// reports no ThreadIDFoundEvent for it. Use it when the request already
// carried a thread id.
func DiscardThreadID() ParserOption {
	return func(p *Parser) {
		p.discardThreadID = true
	}
}

// Parser is the marker state machine. It is driven by a single decode loop
// and is not safe for concurrent use.
type Parser struct {
	mode            Mode
	pending         string
	payload         strings.Builder
	scanThreadID    bool
	discardThreadID bool
	closed          bool

	// consumed counts bytes fed so far; payloadOffset is where the JSON began.
	consumed      int
	payloadOffset int
}

// NewParser creates a parser in text mode with an empty pending buffer.
func NewParser(options ...ParserOption) *Parser {
	p := &Parser{
		mode:         ModeText,
		scanThreadID: true,
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// Mode returns the current mode.
func (p *Parser) Mode() Mode {
	return p.mode
}

// Pending returns the text held back because it may still complete a marker.
func (p *Parser) Pending() string {
	return p.pending
}

// Feed classifies the next decoded fragment and returns the events it
// settles, in stream order.
func (p *Parser) Feed(fragment string) []Event {
	if p.closed || fragment == "" {
		return nil
	}
	start := p.consumed
	p.consumed += len(fragment)

	if p.mode == ModeSources {
		p.payload.WriteString(fragment)
		return nil
	}

	base := start - len(p.pending)
	p.pending += fragment

	var events []Event
	for {
		srcIdx := strings.Index(p.pending, SourcesMarker)

		if p.scanThreadID {
			m, ok := findThreadIDMarker(p.pending)
			if ok && (srcIdx < 0 || m.start < srcIdx) {
				events = appendText(events, p.pending[:m.start])
				if !p.discardThreadID {
					events = append(events, &ThreadIDFoundEvent{ThreadID: m.id})
				}
				p.pending = p.pending[m.end:]
				base += m.end
				p.scanThreadID = false
				continue
			}
		}

		if srcIdx >= 0 {
			events = appendText(events, p.pending[:srcIdx])
			p.payloadOffset = base + srcIdx + len(SourcesMarker)
			p.payload.WriteString(p.pending[srcIdx+len(SourcesMarker):])
			p.pending = ""
			p.mode = ModeSources
			return events
		}

		keep := len(p.pending) - p.heldSuffixLen(p.pending)
		events = appendText(events, p.pending[:keep])
		p.pending = p.pending[keep:]
		return events
	}
}

// Close ends the stream. In text mode any held-back text is released as
// answer text. In sources mode the collected payload is decoded; a malformed
// payload yields no event and a *core.ProtocolError wrapping
// core.ErrMalformedSources.
func (p *Parser) Close() ([]Event, error) {
	if p.closed {
		return nil, nil
	}
	p.closed = true

	if p.mode == ModeText {
		events := appendText(nil, p.pending)
		p.pending = ""
		return events, nil
	}

	raw := bytes.TrimSpace([]byte(p.payload.String()))
	p.payload.Reset()
	if len(raw) == 0 {
		return nil, nil
	}

	var sources []core.Source
	if err := json.Unmarshal(raw, &sources); err != nil {
		return nil, &core.ProtocolError{
			Operation: "decode sources",
			Offset:    p.payloadOffset,
			Err:       fmt.Errorf("%w: %v", core.ErrMalformedSources, err),
		}
	}
	if sources == nil {
		sources = []core.Source{}
	}

	return []Event{&SourcesCompleteEvent{Raw: json.RawMessage(raw), Sources: sources}}, nil
}

// heldSuffixLen returns how much of the tail of s must wait for more input.
func (p *Parser) heldSuffixLen(s string) int {
	hold := partialPrefixLen(s, SourcesMarker)
	if !p.scanThreadID {
		return hold
	}
	if n := partialPrefixLen(s, ThreadIDPrefix); n > hold {
		hold = n
	}
	if n := openThreadIDLen(s); n > hold {
		hold = n
	}
	return hold
}
