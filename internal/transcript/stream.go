package transcript

import (
	"context"
	"errors"
	"io"
)

var (
	// ErrBusy is returned when Submit is called while another submission is
	// still in flight.
	ErrBusy = errors.New("a response is still streaming")
	// ErrMissingCredential rejects retrieval chat without an API key.
	ErrMissingCredential = errors.New("an API key is required for document chat")
	// ErrNoIndex rejects retrieval chat when no document is indexed.
	ErrNoIndex = errors.New("no document has been indexed")
	// ErrNoBody is returned by transports when a success response carries no body.
	ErrNoBody = errors.New("response has no body")
)

// Stream is a finite, non-restartable sequence of raw response chunks.
// Next returns io.EOF once the response has ended.
type Stream interface {
	Next(ctx context.Context) ([]byte, error)
	Close() error
}

// Request is the outbound payload for one submission.
type Request struct {
	SystemMessage string
	UserMessage   string
	Model         string
	APIKey        string
	Temperature   *float32
	Mode          Mode
}

// Backend opens one chat stream per request.
type Backend interface {
	// OpenStream dispatches exactly one request for req.Mode. A non-success
	// status must be reported as an error.
	OpenStream(ctx context.Context, req Request) (Stream, error)
}

// ReaderStream adapts an io.ReadCloser into a Stream. Every Read result is
// one chunk.
type ReaderStream struct {
	rc  io.ReadCloser
	buf []byte
	err error
}

// NewReaderStream wraps rc. A nil rc yields ErrNoBody on the first Next.
func NewReaderStream(rc io.ReadCloser) *ReaderStream {
	return &ReaderStream{rc: rc, buf: make([]byte, 4096)}
}

func (s *ReaderStream) Next(ctx context.Context) ([]byte, error) {
	if s.rc == nil {
		return nil, ErrNoBody
	}
	if s.err != nil {
		return nil, s.err
	}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := s.rc.Read(s.buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, s.buf[:n])
			// data and an error together: deliver the data now, the error next
			s.err = err
			return chunk, nil
		}
		if err != nil {
			s.err = err
			return nil, err
		}
	}
}

func (s *ReaderStream) Close() error {
	if s.rc == nil {
		return nil
	}
	return s.rc.Close()
}
