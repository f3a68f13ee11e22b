// Package stream turns a chat completion event stream into a single answer.
//
// The body arrives as chunks whose boundaries need not line up with lines or
// even with UTF-8 characters. Reducer keeps the unterminated tail of the last
// chunk, including a partial multi-byte character, and joins it with the next
// chunk before splitting lines, so the answer does not depend on how the
// transport cut the body.
package stream

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"secondpilot/internal/core"
)

const readBufferSize = 4096

// Reducer accumulates fragments from stream chunks. It is not safe for
// concurrent use; one Reducer serves one stream.
type Reducer struct {
	pending []byte // bytes after the last newline seen so far
	checked int    // prefix of pending known to be complete, valid UTF-8
	offset  int64  // stream offset of pending[0]
	answer  strings.Builder
	counts  map[LineKind]int
}

// NewReducer returns an empty Reducer.
func NewReducer() *Reducer {
	return &Reducer{counts: make(map[LineKind]int)}
}

// Write feeds one chunk. It fails with an encoding error if the chunk holds
// bytes that cannot be part of valid UTF-8. A multi-byte character cut at
// the end of the chunk is not an error; it is completed by the next chunk.
func (r *Reducer) Write(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}
	r.pending = append(r.pending, chunk...)
	prev := r.checked

	n, err := validPrefix(r.pending[r.checked:])
	if err != nil {
		pos := r.offset + int64(r.checked+n)
		return core.NewEncodingError(fmt.Sprintf("invalid UTF-8 at stream offset %d", pos), err)
	}
	r.checked += n

	// A newline never sits inside a multi-byte sequence, so every complete
	// line lies within the checked prefix. pending[:prev] holds none.
	last := bytes.LastIndexByte(r.pending[prev:r.checked], '\n')
	if last < 0 {
		return nil
	}
	last += prev
	for _, line := range bytes.Split(r.pending[:last], []byte{'\n'}) {
		r.handleLine(line)
	}

	consumed := last + 1
	r.pending = append(r.pending[:0], r.pending[consumed:]...)
	r.checked -= consumed
	r.offset += int64(consumed)
	return nil
}

// Finish processes a final line without a trailing newline and returns the
// answer. It fails if the stream ended in the middle of a character.
func (r *Reducer) Finish() (string, error) {
	if r.checked < len(r.pending) {
		pos := r.offset + int64(r.checked)
		return "", core.NewEncodingError(fmt.Sprintf("stream ended inside a multi-byte character at offset %d", pos), nil)
	}
	if len(r.pending) > 0 {
		r.handleLine(r.pending)
		r.offset += int64(len(r.pending))
		r.pending = r.pending[:0]
		r.checked = 0
	}
	return r.answer.String(), nil
}

// Counts returns how many lines of each kind have been seen.
func (r *Reducer) Counts() map[LineKind]int {
	out := make(map[LineKind]int, len(r.counts))
	for k, v := range r.counts {
		out[k] = v
	}
	return out
}

func (r *Reducer) handleLine(line []byte) {
	line = bytes.TrimSuffix(line, []byte{'\r'})
	parsed := ParseLine(string(line))
	r.counts[parsed.Kind]++
	if parsed.Kind == KindFragment {
		r.answer.WriteString(parsed.Content)
	}
}

var errInvalidUTF8 = errors.New("invalid UTF-8 sequence")

// validPrefix returns the length of the longest prefix of b made of complete,
// valid characters. The rest of b is either empty or the start of a character
// that needs more bytes. Bytes that can never become valid return an error,
// with n set to their position.
func validPrefix(b []byte) (n int, err error) {
	for n < len(b) {
		if b[n] < utf8.RuneSelf {
			n++
			continue
		}
		r, size := utf8.DecodeRune(b[n:])
		if r == utf8.RuneError && size == 1 {
			if !utf8.FullRune(b[n:]) {
				return n, nil
			}
			return n, errInvalidUTF8
		}
		n += size
	}
	return n, nil
}

// Reduce reads src to the end and returns the assembled answer.
// onChunk, if not nil, is called with the size of every chunk read.
// A read error other than io.EOF is a transport error and no partial answer
// is returned.
func Reduce(src io.Reader, onChunk func(int)) (string, error) {
	r := NewReducer()
	buf := make([]byte, readBufferSize)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if onChunk != nil {
				onChunk(n)
			}
			if werr := r.Write(buf[:n]); werr != nil {
				return "", werr
			}
		}
		if err == io.EOF {
			return r.Finish()
		}
		if err != nil {
			return "", core.NewTransportError("stream closed before completion: "+err.Error(), err)
		}
	}
}
