package transcript

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/deepgram/chatform/internal/logger"
	"github.com/rs/zerolog/log"
)

// RetrievalPolicy decides what a retrieval-mode submission does when no
// document is indexed.
type RetrievalPolicy int

const (
	// FallbackToPlain sends the message to the plain chat endpoint instead.
	FallbackToPlain RetrievalPolicy = iota
	// RejectWithoutIndex refuses the submission with a visible error.
	RejectWithoutIndex
)

// ParseRetrievalPolicy maps a config value onto a policy.
func ParseRetrievalPolicy(s string) (RetrievalPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fallback", "fallback_to_plain":
		return FallbackToPlain, nil
	case "reject", "reject_without_index":
		return RejectWithoutIndex, nil
	default:
		return FallbackToPlain, fmt.Errorf("unknown retrieval policy %q", s)
	}
}

// Config is passed through to the backend unmodified.
type Config struct {
	SystemMessage string
	Model         string
	APIKey        string
	Temperature   *float32
}

// Options tune controller behaviour. The zero value falls back to plain chat
// without a timeout.
type Options struct {
	RetrievalPolicy RetrievalPolicy
	// RequestTimeout bounds a whole submission when positive.
	RequestTimeout time.Duration
	// PreserveInputOnFailure puts the failed text back into the input buffer.
	PreserveInputOnFailure bool
	// StrictDecoding treats invalid UTF-8 in the response as a stream error.
	StrictDecoding bool
	// Now is used for turn timestamps; defaults to time.Now.
	Now func() time.Time
}

// Snapshot is a consistent read-only view of the controller.
type Snapshot struct {
	Turns []Turn
	State State
	Busy  bool
	Err   string
	Input string
}

// Controller owns a session's transcript and turns one submission into one
// request/response cycle, rolling back the assistant placeholder on failure.
type Controller struct {
	mu         sync.RWMutex
	backend    Backend
	opts       Options
	cfg        Config
	transcript *Transcript
	state      State
	busy       bool
	indexed    bool
	errMsg     string
	input      string
	listeners  []func(Snapshot)
}

// NewController creates a controller with an empty transcript.
func NewController(backend Backend, cfg Config, opts Options) *Controller {
	return &Controller{
		backend:    backend,
		opts:       opts,
		cfg:        cfg,
		transcript: newTranscript(opts.Now),
	}
}

// Subscribe registers fn to receive a snapshot after every change. Listeners
// run on the submitting goroutine and must not block.
func (c *Controller) Subscribe(fn func(Snapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Submit sends userText and streams the answer into the transcript. Blank
// text is ignored. Failures are also recorded as the visible error string.
func (c *Controller) Submit(ctx context.Context, userText string, mode Mode) error {
	if strings.TrimSpace(userText) == "" {
		return nil
	}

	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return ErrBusy
	}
	cfg := c.cfg
	resolved, err := c.resolveModeLocked(mode, cfg)
	if err != nil {
		c.errMsg = ErrorMessage(err)
		c.mu.Unlock()
		c.notify()
		return err
	}

	c.busy = true
	c.errMsg = ""
	c.transcript.append(RoleUser, userText)
	c.input = ""
	c.state = StateSending
	c.mu.Unlock()
	c.notify()

	defer func() {
		c.mu.Lock()
		c.busy = false
		c.state = StateIdle
		c.mu.Unlock()
		c.notify()
	}()

	if c.opts.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.RequestTimeout)
		defer cancel()
	}

	log.Debug().
		Str("component", logger.CHAT).
		Str("mode", resolved.String()).
		Int("message_length", len(userText)).
		Msg("Dispatching chat request")

	stream, err := c.backend.OpenStream(ctx, Request{
		SystemMessage: cfg.SystemMessage,
		UserMessage:   userText,
		Model:         cfg.Model,
		APIKey:        cfg.APIKey,
		Temperature:   cfg.Temperature,
		Mode:          resolved,
	})
	if err != nil {
		c.rollback(-1, userText, err)
		return err
	}
	defer stream.Close()

	c.mu.Lock()
	idx := c.transcript.append(RoleAssistant, "")
	c.state = StateStreaming
	c.mu.Unlock()
	c.notify()

	if err := c.consume(ctx, stream, idx); err != nil {
		c.rollback(idx, userText, err)
		return err
	}

	log.Debug().Str("component", logger.CHAT).Msg("Response stream finished")
	return nil
}

func (c *Controller) consume(ctx context.Context, stream Stream, idx int) error {
	dec := NewDecoder()
	if c.opts.StrictDecoding {
		dec = NewStrictDecoder()
	}

	var acc strings.Builder
	for {
		chunk, err := stream.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read response stream: %w", err)
		}

		text, err := dec.Decode(chunk, false)
		if err != nil {
			return fmt.Errorf("failed to decode response stream: %w", err)
		}
		acc.WriteString(text)
		c.publish(idx, acc.String())
	}

	tail, err := dec.Decode(nil, true)
	if err != nil {
		return fmt.Errorf("failed to decode response stream: %w", err)
	}
	if tail != "" {
		acc.WriteString(tail)
		c.publish(idx, acc.String())
	}
	return nil
}

func (c *Controller) resolveModeLocked(mode Mode, cfg Config) (Mode, error) {
	if mode != ModeRetrieval {
		return ModePlain, nil
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return mode, ErrMissingCredential
	}
	if c.indexed {
		return ModeRetrieval, nil
	}
	if c.opts.RetrievalPolicy == RejectWithoutIndex {
		return mode, ErrNoIndex
	}
	log.Info().Str("component", logger.CHAT).Msg("No document indexed, falling back to plain chat")
	return ModePlain, nil
}

func (c *Controller) publish(idx int, content string) {
	c.mu.Lock()
	c.transcript.setContent(idx, content)
	c.mu.Unlock()
	c.notify()
}

// rollback removes the assistant placeholder at idx (if any) and records err.
func (c *Controller) rollback(idx int, userText string, err error) {
	c.mu.Lock()
	removed := false
	if idx >= 0 {
		removed = c.transcript.removeAt(idx, RoleAssistant)
	}
	c.errMsg = ErrorMessage(err)
	if c.opts.PreserveInputOnFailure && c.input == "" {
		c.input = userText
	}
	c.mu.Unlock()

	log.Warn().
		Str("component", logger.CHAT).
		Err(err).
		Bool("placeholder_removed", removed).
		Msg("Chat submission failed")

	c.notify()
}

func (c *Controller) notify() {
	c.mu.RLock()
	if len(c.listeners) == 0 {
		c.mu.RUnlock()
		return
	}
	snap := c.snapshotLocked()
	listeners := make([]func(Snapshot), len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.RUnlock()

	for _, fn := range listeners {
		fn(snap)
	}
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		Turns: c.transcript.Turns(),
		State: c.state,
		Busy:  c.busy,
		Err:   c.errMsg,
		Input: c.input,
	}
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked()
}

// Turns returns a copy of the transcript.
func (c *Controller) Turns() []Turn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.transcript.Turns()
}

// Busy reports whether a submission is in flight.
func (c *Controller) Busy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.busy
}

// State returns the current state machine position.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Err returns the visible error message, empty when the last submission
// succeeded.
func (c *Controller) Err() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.errMsg
}

// Input returns the input buffer.
func (c *Controller) Input() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.input
}

// SetInput replaces the input buffer.
func (c *Controller) SetInput(s string) {
	c.mu.Lock()
	c.input = s
	c.mu.Unlock()
}

// SetConfig replaces the pass-through configuration for later submissions.
func (c *Controller) SetConfig(cfg Config) {
	c.mu.Lock()
	c.cfg = cfg
	c.mu.Unlock()
}

// Config returns the current pass-through configuration.
func (c *Controller) Config() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg
}

// SetIndexed records whether the backend currently holds a document index.
func (c *Controller) SetIndexed(indexed bool) {
	c.mu.Lock()
	c.indexed = indexed
	c.mu.Unlock()
}

// Indexed reports the last known index state.
func (c *Controller) Indexed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.indexed
}

// Clear empties the transcript and the error. It fails while busy.
func (c *Controller) Clear() error {
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return ErrBusy
	}
	c.transcript.clear()
	c.errMsg = ""
	c.mu.Unlock()
	c.notify()
	return nil
}

// ErrorMessage renders err as the text shown in the status area.
func ErrorMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return "Error: the request timed out"
	case errors.Is(err, context.Canceled):
		return "Error: the request was cancelled"
	default:
		return "Error: " + err.Error()
	}
}
