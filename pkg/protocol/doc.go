// Package protocol classifies the decoded text of a query response.
//
// The response body is one ordered text stream. Answer text is interleaved
// with two sentinel markers:
//
//	__THREAD_ID__:<digits>\n\n      thread identifier, at most once
//	\n\n__SOURCES__\n<JSON array>   citation list, at most once, always last
//
// Parser consumes the text fragment by fragment and emits TextAppendedEvent,
// ThreadIDFoundEvent and SourcesCompleteEvent values in stream order. Text that
// might be the beginning of a marker is held back until the next fragment
// settles it, so markers split across network chunks are still recognised and
// never leak into the answer text.
//
// Example usage:
//
//	p := protocol.NewParser()
//	for _, fragment := range fragments {
//		for _, ev := range p.Feed(fragment) {
//			handle(ev)
//		}
//	}
//	events, err := p.Close()
package protocol
