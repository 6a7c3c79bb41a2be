package protocol

import (
	"strconv"
	"strings"
)

const (
	// ThreadIDPrefix starts a thread-id marker. The prefix is followed by the
	// decimal id and threadIDTerminator.
	ThreadIDPrefix = "__THREAD_ID__:"

	// SourcesMarker separates the answer text from the trailing JSON sources.
	SourcesMarker = "\n\n__SOURCES__\n"

	threadIDTerminator = "\n\n"

	// maxThreadIDDigits is the number of digits in the largest int64.
	maxThreadIDDigits = 19
)

// MaxPendingLen bounds the text a Parser holds back while waiting to see
// whether it completes a marker.
const MaxPendingLen = len(ThreadIDPrefix) + maxThreadIDDigits + len(threadIDTerminator)

type threadIDMatch struct {
	start int
	end   int
	id    int64
}

// findThreadIDMarker returns the first complete thread-id marker in s.
func findThreadIDMarker(s string) (threadIDMatch, bool) {
	offset := 0
	for {
		i := strings.Index(s[offset:], ThreadIDPrefix)
		if i < 0 {
			return threadIDMatch{}, false
		}
		start := offset + i
		digitsStart := start + len(ThreadIDPrefix)

		j := digitsStart
		for j < len(s) && j-digitsStart <= maxThreadIDDigits && isDigit(s[j]) {
			j++
		}
		n := j - digitsStart

		if n > 0 && n <= maxThreadIDDigits && strings.HasPrefix(s[j:], threadIDTerminator) {
			id, err := strconv.ParseInt(s[digitsStart:j], 10, 64)
			if err == nil && id > 0 {
				return threadIDMatch{start: start, end: j + len(threadIDTerminator), id: id}, true
			}
		}
		offset = start + 1
	}
}

// partialPrefixLen returns the length of the longest suffix of s that is a
// strict prefix of marker.
func partialPrefixLen(s, marker string) int {
	n := len(marker) - 1
	if n > len(s) {
		n = len(s)
	}
	for ; n > 0; n-- {
		if strings.HasSuffix(s, marker[:n]) {
			return n
		}
	}
	return 0
}

// openThreadIDLen returns the length of the suffix of s that is a thread-id
// marker still missing its digits or terminator, such as "__THREAD_ID__:42\n".
func openThreadIDLen(s string) int {
	i := strings.LastIndex(s, ThreadIDPrefix)
	if i < 0 {
		return 0
	}

	rest := s[i+len(ThreadIDPrefix):]
	digits, newline := strings.CutSuffix(rest, "\n")
	if len(digits) > maxThreadIDDigits || (newline && digits == "") {
		return 0
	}
	for k := 0; k < len(digits); k++ {
		if !isDigit(digits[k]) {
			return 0
		}
	}
	return len(s) - i
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
