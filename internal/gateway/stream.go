package gateway

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"unicode/utf8"

	"github.com/pkg/errors"
)

const streamBufferSize = 4096

// ErrStreamClosed is returned by Recv after the stream was closed by its consumer.
var ErrStreamClosed = errors.New("stream closed")

// Stream of text fragments. Recv returns io.EOF once the reply is complete.
type Stream interface {
	Recv() (string, error)
	Close()
}

// bodyStream reads a response body incrementally. Fragments never split a
// UTF-8 encoded rune.
type bodyStream struct {
	ctx    context.Context
	body   io.ReadCloser
	buffer []byte
	// Trailing bytes of an incomplete rune, held until the next read.
	pending []byte
	err     error

	closed    atomic.Bool
	closeOnce sync.Once
}

func newBodyStream(ctx context.Context, body io.ReadCloser) *bodyStream {
	return &bodyStream{
		ctx:    ctx,
		body:   body,
		buffer: make([]byte, streamBufferSize),
	}
}

// Recv returns the next fragment.
func (s *bodyStream) Recv() (string, error) {
	for {
		if s.err != nil {
			return "", s.err
		}
		if s.closed.Load() {
			s.err = ErrStreamClosed
			s.release()
			return "", s.err
		}
		n, err := s.body.Read(s.buffer)
		data := append(s.pending, s.buffer[:n]...)
		s.pending = nil

		if err != nil {
			s.err = s.terminalError(err)
			s.release()
			if len(data) > 0 && errors.Is(s.err, io.EOF) {
				return string(data), nil
			}
			return "", s.err
		}

		complete := completePrefixLength(data)
		s.pending = append([]byte(nil), data[complete:]...)
		if complete > 0 {
			return string(data[:complete]), nil
		}
	}
}

func (s *bodyStream) terminalError(err error) error {
	if ctxErr := s.ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if s.closed.Load() {
		return ErrStreamClosed
	}
	if errors.Is(err, io.EOF) {
		return io.EOF
	}
	return &Error{Kind: KindNetwork, Err: err}
}

// Close releases the response body. It is safe to call more than once.
func (s *bodyStream) Close() {
	s.closed.Store(true)
	s.release()
}

func (s *bodyStream) release() {
	s.closeOnce.Do(func() {
		s.body.Close()
	})
}

// completePrefixLength returns the length of the longest prefix of data that
// does not end in the middle of a rune.
func completePrefixLength(data []byte) int {
	for i := len(data) - 1; i >= 0 && i >= len(data)-utf8.UTFMax; i-- {
		if !utf8.RuneStart(data[i]) {
			continue
		}
		if utf8.FullRune(data[i:]) {
			return len(data)
		}
		return i
	}
	return len(data)
}
