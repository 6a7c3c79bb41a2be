package encoding

import (
	"errors"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// TextDecoder decodes a sequence of UTF-8 byte chunks into text.
// It is not safe for concurrent use; a stream is decoded by one loop.
type TextDecoder struct {
	transformer transform.Transformer
	carry       []byte
}

// NewTextDecoder creates a decoder with no carried-over bytes.
func NewTextDecoder() *TextDecoder {
	return &TextDecoder{
		transformer: unicode.UTF8.NewDecoder(),
	}
}

// Decode returns the text for chunk, holding back a trailing incomplete
// multi-byte sequence until the next call.
func (d *TextDecoder) Decode(chunk []byte) string {
	return d.decode(chunk)
}

// Flush returns whatever is still carried over and resets the decoder. A
// truncated sequence is returned as a single U+FFFD.
func (d *TextDecoder) Flush() string {
	defer d.transformer.Reset()

	// carry only ever holds the valid prefix of one incomplete character.
	if len(d.carry) == 0 {
		return ""
	}
	d.carry = nil
	return string(utf8.RuneError)
}

// Pending reports how many bytes are held back awaiting the next chunk.
func (d *TextDecoder) Pending() int {
	return len(d.carry)
}

func (d *TextDecoder) decode(chunk []byte) string {
	src := chunk
	if len(d.carry) > 0 {
		src = append(d.carry, chunk...)
		d.carry = nil
	}

	var sb strings.Builder
	for len(src) > 0 {
		// Each invalid byte can expand to the three bytes of U+FFFD.
		dst := make([]byte, 3*len(src)+utf8.UTFMax)
		nDst, nSrc, err := d.transformer.Transform(dst, src, false)
		sb.Write(dst[:nDst])
		src = src[nSrc:]

		switch {
		case err == nil:
		case errors.Is(err, transform.ErrShortSrc):
			d.carry = append([]byte(nil), src...)
			return sb.String()
		case errors.Is(err, transform.ErrShortDst) && nSrc > 0:
		default:
			// No progress possible; replace one byte and move on.
			sb.WriteRune(utf8.RuneError)
			src = src[1:]
		}
	}

	return sb.String()
}
