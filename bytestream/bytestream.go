// Package bytestream provides the byte-chunk adapters used by every upper
// layer of the codec as the universal stream shape: a lazy, finite,
// non-restartable sequence of non-empty byte buffers.
//
// A Stream is modeled as a Go 1.23 iterator (iter.Seq) so producers suspend
// between chunks and consumers drain on demand, matching the suspension
// points described in spec.md §5.
package bytestream

import (
	"bytes"
	"fmt"
	"io"
	"iter"
	"unicode/utf8"

	"github.com/xlsxstream/xlsxstream/xlsxerr"
)

// Chunk is one non-empty buffer produced by a Stream.
type Chunk = []byte

// Stream is a lazy sequence of Chunks. Each yielded Chunk is owned by the
// caller of the yield function until the next chunk is produced; callers
// that need to retain a chunk past that point must copy it.
type Stream = iter.Seq[Chunk]

// BufferToChunks emits a single chunk equal to b, or no chunk at all when b
// is empty. b is not copied; callers must not mutate it while the returned
// Stream is being consumed.
func BufferToChunks(b []byte) Stream {
	return func(yield func(Chunk) bool) {
		if len(b) == 0 {
			return
		}
		yield(b)
	}
}

// StringToChunks emits the UTF-8 encoding of s as a single chunk, or no
// chunk at all when s is empty.
func StringToChunks(s string) Stream {
	return BufferToChunks([]byte(s))
}

// ChunksToBuffer concatenates all chunks produced by s into one buffer.
func ChunksToBuffer(s Stream) []byte {
	var buf bytes.Buffer
	for c := range s {
		buf.Write(c)
	}
	return buf.Bytes()
}

// NewReader adapts a Stream to an io.Reader, pulling chunks on demand as
// the reader is drained. Partial reads carry over an internal remainder
// buffer between calls.
func NewReader(s Stream) io.Reader {
	next, stop := iter.Pull(s)
	return &streamReader{next: next, stop: stop}
}

type streamReader struct {
	next func() (Chunk, bool)
	stop func()
	rem  []byte
	done bool
}

func (r *streamReader) Read(p []byte) (int, error) {
	for len(r.rem) == 0 {
		if r.done {
			return 0, io.EOF
		}
		chunk, ok := r.next()
		if !ok {
			r.done = true
			r.stop()
			return 0, io.EOF
		}
		r.rem = chunk
	}
	n := copy(p, r.rem)
	r.rem = r.rem[n:]
	return n, nil
}

// ChunksToString concatenates all chunks produced by s and decodes the
// result as UTF-8. It fails with xlsxerr.ErrDecode if the concatenated bytes
// are not valid UTF-8.
func ChunksToString(s Stream) (string, error) {
	buf := ChunksToBuffer(s)
	if !utf8.Valid(buf) {
		return "", fmt.Errorf("bytestream: decode: %w", xlsxerr.ErrDecode)
	}
	return string(buf), nil
}
