package agent

import (
	"errors"
	"io"
	"iter"
	"net/http"

	"github.com/dadevel/lemma/api"
)

const chunkSize = 32 * 1024

// Stream is the output of an invocation. It is forward-only: chunks are read
// from the response body as they arrive and are never accumulated.
type Stream struct {
	body io.ReadCloser
}

// NewStream wraps a response body.
func NewStream(body io.ReadCloser) *Stream {
	return &Stream{body: body}
}

// Chunks yields output chunks in arrival order. A transport failure is
// yielded once as *api.TransportError and ends the sequence. Iterating again
// continues where the previous iteration stopped.
func (s *Stream) Chunks() iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		buf := make([]byte, chunkSize)
		for {
			n, err := s.body.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				if !yield(chunk, nil) {
					return
				}
			}
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(nil, &api.TransportError{Err: err})
				return
			}
		}
	}
}

// WriteTo forwards every chunk to w as soon as it arrives, flushing w after
// each write when it buffers.
func (s *Stream) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for chunk, err := range s.Chunks() {
		if err != nil {
			return total, err
		}
		n, err := w.Write(chunk)
		total += int64(n)
		if err != nil {
			return total, err
		}
		flush(w)
	}
	return total, nil
}

// Close releases the underlying connection.
func (s *Stream) Close() error {
	return s.body.Close()
}

func flush(w io.Writer) {
	switch f := w.(type) {
	case http.Flusher:
		f.Flush()
	case interface{ Flush() error }:
		_ = f.Flush()
	}
}
