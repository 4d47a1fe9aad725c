// Package split provides allocation-light delimiter splitting for the
// hot parsing paths. Every function makes a single pass over the input
// using strings.IndexByte and slices the input instead of copying it.
package split

import (
	"fmt"
	"strings"
)

// Mode controls how Bounded treats tokens beyond the destination length
// and trailing empty tokens.
type Mode uint8

const (
	// Condense folds everything after the last filled slot, separators
	// included, into the final token.
	Condense Mode = 1 << iota
	// DropTrailingEmpty removes empty tokens from the end of the result.
	DropTrailingEmpty
)

// CountError reports a token count that does not match the buffer
// handed to Exact.
type CountError struct {
	Want int
	Got  int
}

func (e *CountError) Error() string {
	return fmt.Sprintf("expected %d tokens, found %d", e.Want, e.Got)
}

// Count returns the number of tokens s splits into on sep. The empty
// string holds a single empty token.
func Count(s string, sep byte) int {
	return strings.Count(s, string(sep)) + 1
}

// Exact splits s on sep into dst and fails unless s holds exactly
// len(dst) tokens.
func Exact(s string, sep byte, dst []string) error {
	n := 0
	for {
		i := strings.IndexByte(s, sep)
		if i < 0 {
			break
		}
		if n >= len(dst) {
			return &CountError{Want: len(dst), Got: n + Count(s, sep)}
		}
		dst[n] = s[:i]
		n++
		s = s[i+1:]
	}
	if n >= len(dst) {
		return &CountError{Want: len(dst), Got: n + 1}
	}
	dst[n] = s
	n++
	if n != len(dst) {
		return &CountError{Want: len(dst), Got: n}
	}
	return nil
}

// Bounded splits s on sep into at most len(dst) tokens and returns how
// many were written. Without Condense, tokens past len(dst) are dropped.
func Bounded(s string, sep byte, dst []string, mode Mode) int {
	if len(dst) == 0 {
		return 0
	}
	n := 0
	for n < len(dst)-1 {
		i := strings.IndexByte(s, sep)
		if i < 0 {
			break
		}
		dst[n] = s[:i]
		n++
		s = s[i+1:]
	}
	if mode&Condense != 0 || strings.IndexByte(s, sep) < 0 {
		dst[n] = s
	} else {
		dst[n] = s[:strings.IndexByte(s, sep)]
	}
	n++
	if mode&DropTrailingEmpty != 0 {
		for n > 0 && dst[n-1] == "" {
			n--
		}
	}
	return n
}

// Split splits s on sep into a slice sized exactly to the token count.
func Split(s string, sep byte) []string {
	out := make([]string, Count(s, sep))
	// Exact cannot fail here: the buffer was sized by Count.
	_ = Exact(s, sep, out)
	return out
}

// Splitter splits strings into a reusable buffer. The slice returned by
// Split stays valid until the next call. A Splitter must not be shared
// between goroutines.
type Splitter struct {
	buf []string
}

// NewSplitter returns a Splitter whose buffer starts with room for n
// tokens.
func NewSplitter(n int) *Splitter {
	return &Splitter{buf: make([]string, 0, n)}
}

// Split splits s on sep, growing the buffer only when s holds more
// tokens than any earlier input.
func (sp *Splitter) Split(s string, sep byte) []string {
	sp.buf = sp.buf[:0]
	for {
		i := strings.IndexByte(s, sep)
		if i < 0 {
			break
		}
		sp.buf = append(sp.buf, s[:i])
		s = s[i+1:]
	}
	sp.buf = append(sp.buf, s)
	return sp.buf
}
