/*
Package messages builds chat messages from streamed query responses.

# Overview

A query response is a byte stream: answer text, optionally a thread-id
marker near the start, and optionally a trailing sources segment. The
package turns that stream into a Message that grows as chunks arrive,
and keeps the conversation history that is sent with the next question.

# Decoding a stream

DecodeStream wires a transport.ChunkSource through the UTF-8 decoder and
the marker parser into an Accumulator, and reports a snapshot after every
change:

	src := transport.NewReaderSource(ctx, resp.Body)
	msg, err := messages.DecodeStream(ctx, src, func(snap messages.Message) {
		render(snap.Content)
	})
	if err != nil {
		// msg still holds everything received before the failure
	}

Snapshots are independent copies; the caller may keep or modify them.

# History

History holds the ordered messages of one thread and produces the
{role, content} entries carried by a query request:

	history := messages.NewHistory()
	_ = history.AddBatch([]messages.Message{question, answer})
	req.History = history.Entries()
*/
package messages
