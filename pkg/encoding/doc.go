// Package encoding turns the raw byte chunks of a query response into text.
//
// Network reads split the body at arbitrary byte offsets, so a multi-byte
// UTF-8 character can straddle two chunks. TextDecoder carries the incomplete
// tail of one chunk over to the next and only ever returns whole characters.
// At true end of stream, Flush turns a truncated trailing sequence into the
// Unicode replacement character instead of failing.
//
// Example usage:
//
//	import "github.com/AmitS1009/Constructure-AI/pkg/encoding"
//
//	dec := encoding.NewTextDecoder()
//	for _, chunk := range chunks {
//		fmt.Print(dec.Decode(chunk))
//	}
//	fmt.Print(dec.Flush())
package encoding
