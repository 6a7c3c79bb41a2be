// Package transport provides the byte-chunk sources a query response is read
// from.
//
// A ChunkSource hands out raw chunks in arrival order, one call at a time, and
// reports io.EOF once the server has finished. Chunk boundaries are arbitrary:
// they may split a UTF-8 character or a protocol marker, and decoding above
// this layer must not depend on them.
//
// Supported sources:
//   - ReaderSource: an HTTP response body or any io.ReadCloser
//   - WebSocketSource: one chunk per WebSocket frame
//   - SliceSource: a fixed list of chunks, for replay and tests
//
// Example usage:
//
//	src := transport.NewReaderSource(ctx, resp.Body)
//	defer src.Close()
//	for {
//		chunk, err := src.Next(ctx)
//		if err == io.EOF {
//			break
//		}
//		if err != nil {
//			return err
//		}
//		handle(chunk)
//	}
package transport
