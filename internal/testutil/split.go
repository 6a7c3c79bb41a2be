package testutil

import "sort"

// SplitAt cuts data at the given byte offsets. Offsets outside the data are
// clamped; duplicates produce empty chunks.
func SplitAt(data []byte, offsets ...int) [][]byte {
	cuts := append([]int(nil), offsets...)
	sort.Ints(cuts)

	chunks := make([][]byte, 0, len(cuts)+1)
	prev := 0
	for _, c := range cuts {
		if c < prev {
			c = prev
		}
		if c > len(data) {
			c = len(data)
		}
		chunks = append(chunks, data[prev:c])
		prev = c
	}
	return append(chunks, data[prev:])
}

// Bytes converts text chunks to byte chunks.
func Bytes(chunks ...string) [][]byte {
	out := make([][]byte, len(chunks))
	for i, c := range chunks {
		out[i] = []byte(c)
	}
	return out
}
