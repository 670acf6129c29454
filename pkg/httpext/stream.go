package httpext

import (
	"errors"
	"net/http"
)

// ErrStreamingUnsupported is returned when the ResponseWriter cannot flush.
var ErrStreamingUnsupported = errors.New("streaming unsupported by response writer")

// TextStream writes plain-text chunks and flushes each one to the client.
// Headers are committed on the first write.
type TextStream struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
}

// NewTextStream prepares w for a streamed text/plain response.
func NewTextStream(w http.ResponseWriter) (*TextStream, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}
	return &TextStream{w: w, flusher: flusher}, nil
}

func (s *TextStream) start() {
	if s.started {
		return
	}
	s.started = true
	s.w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	s.w.Header().Set("Cache-Control", "no-cache")
	s.w.Header().Set("X-Content-Type-Options", "nosniff")
	s.w.WriteHeader(http.StatusOK)
}

// Write sends one chunk.
func (s *TextStream) Write(chunk string) error {
	s.start()
	if chunk == "" {
		return nil
	}
	if _, err := s.w.Write([]byte(chunk)); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// Started reports whether the status line has been sent.
func (s *TextStream) Started() bool {
	return s.started
}

// Finish commits headers for an empty response and flushes.
func (s *TextStream) Finish() {
	s.start()
	s.flusher.Flush()
}
