// Package core provides the foundational types and errors shared by the
// query-stream packages.
//
// The query endpoint answers with a single UTF-8 byte stream that carries the
// assistant's answer text, an optional thread identifier and an optional list
// of cited document excerpts. The types in this package describe the pieces
// every layer agrees on: the citation record and the error values that cross
// package boundaries.
//
// Example usage:
//
//	import "github.com/AmitS1009/Constructure-AI/pkg/core"
//
//	var transportErr *core.TransportError
//	if errors.As(err, &transportErr) {
//		log.Printf("query failed with status %d", transportErr.StatusCode)
//	}
package core
