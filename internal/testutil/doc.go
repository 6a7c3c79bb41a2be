// Package testutil provides testing utilities and helpers.
//
// QueryServer stands in for the query endpoint: it records each request and
// answers with a fixed list of chunks, flushed one by one, over HTTP or
// WebSocket. It can also fail the request, pause mid-stream, or drop the
// connection without finishing the body.
//
// This package is internal and should not be imported by external code.
package testutil
