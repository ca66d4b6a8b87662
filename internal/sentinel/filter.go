// Package sentinel implements a streaming matcher for a fixed byte sentinel
// across arbitrarily chunked input, the way the shell channel frames command
// output on an un-delimited byte stream.
package sentinel

import "bytes"

// Filter finds a single occurrence of a fixed sentinel pattern across
// successive, independently-sized chunks of a byte stream. It is not safe
// for concurrent use; each command on the shell channel gets its own Filter
// per framing token.
type Filter struct {
	pattern []byte
	matched int // how much of pattern has been tentatively consumed so far
}

// New returns a Filter that looks for pattern. pattern must be non-empty.
func New(pattern []byte) *Filter {
	if len(pattern) == 0 {
		panic("sentinel: empty pattern")
	}
	p := make([]byte, len(pattern))
	copy(p, pattern)
	return &Filter{pattern: p}
}

// Feed processes one chunk of input, which must be non-empty. It returns the
// bytes that precede any match found in this call, whether the full pattern
// was found, and the bytes that trail the match within this same chunk.
//
// Concatenating every returned preceding/trailing slice across calls, with
// the single matched sentinel removed, reconstructs the original input.
func (f *Filter) Feed(chunk []byte) (preceding []byte, found bool, trailing []byte) {
	if len(chunk) == 0 {
		panic("sentinel: empty chunk")
	}

	if f.matched > 0 {
		want := f.pattern[f.matched:]
		n := len(want)
		if n > len(chunk) {
			n = len(chunk)
		}
		if !bytes.Equal(chunk[:n], want[:n]) {
			// Continuation didn't pan out; hand back the prefix bytes held
			// from earlier chunks, then restart search over this chunk from
			// scratch, since a fresh candidate match may start anywhere
			// inside it (including bytes we just failed to match against).
			held := append([]byte{}, f.pattern[:f.matched]...)
			f.matched = 0
			pre, found, trail := f.searchFresh(chunk)
			return append(held, pre...), found, trail
		} else if n == len(want) {
			f.matched = 0
			return nil, true, chunk[n:]
		} else {
			f.matched += n
			return nil, false, nil
		}
	}

	return f.searchFresh(chunk)
}

// searchFresh looks for pattern (or a prefix of it trailing the chunk)
// starting from f.matched == 0.
func (f *Filter) searchFresh(chunk []byte) (preceding []byte, found bool, trailing []byte) {
	if idx := bytes.Index(chunk, f.pattern); idx >= 0 {
		return chunk[:idx], true, chunk[idx+len(f.pattern):]
	}

	// No full match: look for the longest proper prefix of pattern that
	// occurs as a suffix of chunk, preferring the longest candidate.
	maxLen := len(f.pattern) - 1
	if maxLen > len(chunk) {
		maxLen = len(chunk)
	}
	for l := maxLen; l > 0; l-- {
		suffix := chunk[len(chunk)-l:]
		if bytes.Equal(suffix, f.pattern[:l]) {
			f.matched = l
			return chunk[:len(chunk)-l], false, nil
		}
	}

	f.matched = 0
	return chunk, false, nil
}
