package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/deepgram/chatform/internal/client"
	"github.com/deepgram/chatform/internal/config"
	"github.com/deepgram/chatform/internal/logger"
	"github.com/deepgram/chatform/internal/transcript"
	"github.com/rs/zerolog/log"
)

const (
	plainMode     = transcript.ModePlain
	retrievalMode = transcript.ModeRetrieval
)

const helpText = `Commands:
  /rag on|off       switch document chat on or off
  /upload <path>    upload and index a .txt or .pdf file
  /status           show the indexed document
  /history          list previously uploaded files
  /clear            clear the conversation
  /clear-index      drop the indexed document on the server
  /help             show this help
  /quit             leave the session
Anything else is sent as a message. After a failed message, press Enter on
an empty line to send it again.`

// Session is one interactive chat in the terminal.
type Session struct {
	cfg      config.ClientConfig
	client   *client.Client
	ctrl     *transcript.Controller
	renderer *markdownRenderer
	out      io.Writer

	mu       sync.Mutex
	mode     transcript.Mode
	streamed int
}

// NewSession wires a controller to the configured backend.
func NewSession(cfg config.ClientConfig, out io.Writer) (*Session, error) {
	c := client.New(cfg.APIURL)
	backend, err := client.NewBackend(c, cfg.Transport)
	if err != nil {
		return nil, err
	}
	policy, err := transcript.ParseRetrievalPolicy(cfg.RetrievalPolicy)
	if err != nil {
		return nil, err
	}

	s := &Session{
		cfg:    cfg,
		client: c,
		out:    out,
		mode:   plainMode,
	}
	if cfg.RenderMarkdown {
		s.renderer = newMarkdownRenderer()
	}

	s.ctrl = transcript.NewController(backend, transcript.Config{
		SystemMessage: cfg.SystemMessage,
		Model:         cfg.Model,
		APIKey:        cfg.APIKey,
		Temperature:   cfg.Temperature,
	}, transcript.Options{
		RetrievalPolicy:        policy,
		RequestTimeout:         cfg.RequestTimeout,
		PreserveInputOnFailure: cfg.PreserveInputOnFailure,
	})
	s.ctrl.Subscribe(s.onSnapshot)
	return s, nil
}

// Controller exposes the session's transcript controller.
func (s *Session) Controller() *transcript.Controller {
	return s.ctrl
}

// Start prepares the server index. A document path is uploaded; otherwise
// the index is cleared when configured to, and the current state is read.
func (s *Session) Start(ctx context.Context, document string) error {
	switch {
	case document != "":
		if err := s.upload(ctx, document); err != nil {
			return err
		}
	case s.cfg.ClearIndexOnStart:
		if _, err := s.client.ClearIndex(ctx); err != nil {
			return fmt.Errorf("failed to clear the document index: %w", err)
		}
		s.ctrl.SetIndexed(false)
	default:
		s.refreshStatus(ctx)
	}
	return nil
}

// Run reads lines from in until EOF, /quit, or ctx is done.
func (s *Session) Run(ctx context.Context, in io.Reader) error {
	fmt.Fprintf(s.out, "Connected to %s over %s. Type /help for commands.\n", s.client.BaseURL(), s.cfg.Transport)

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	for {
		if ctx.Err() != nil {
			return nil
		}
		s.prompt()
		if !scanner.Scan() {
			fmt.Fprintln(s.out)
			return scanner.Err()
		}

		line := scanner.Text()
		if strings.HasPrefix(strings.TrimSpace(line), "/") {
			quit, err := s.command(ctx, strings.TrimSpace(line))
			if err != nil {
				fmt.Fprintln(s.out, transcript.ErrorMessage(err))
			}
			if quit {
				return nil
			}
			continue
		}

		if strings.TrimSpace(line) == "" {
			line = s.ctrl.Input()
		}
		s.send(ctx, line)
	}
}

func (s *Session) prompt() {
	label := "you"
	if s.currentMode() == retrievalMode {
		label = "you (doc)"
	}
	fmt.Fprintf(s.out, "%s> ", label)
}

func (s *Session) send(ctx context.Context, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}

	err := s.ctrl.Submit(ctx, text, s.currentMode())
	if err != nil {
		if s.streamedBytes() > 0 {
			fmt.Fprintln(s.out)
		}
		fmt.Fprintln(s.out, s.ctrl.Err())
		log.Debug().Str("component", logger.CLIENT).Err(err).Msg("Submission failed")
		if errors.Is(err, transcript.ErrNoIndex) {
			fmt.Fprintln(s.out, "Upload a document with /upload <path> or switch document chat off with /rag off.")
		}
		return
	}

	if s.renderer == nil {
		fmt.Fprintln(s.out)
		return
	}
	turns := s.ctrl.Turns()
	if len(turns) == 0 {
		return
	}
	fmt.Fprint(s.out, s.renderer.Render(turns[len(turns)-1].Content))
}

// onSnapshot prints the newly streamed part of the assistant turn. With
// markdown rendering on, the turn is printed once it is complete instead.
func (s *Session) onSnapshot(snap transcript.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch snap.State {
	case transcript.StateSending:
		s.streamed = 0
		return
	case transcript.StateStreaming:
	default:
		return
	}
	if s.renderer != nil || len(snap.Turns) == 0 {
		return
	}

	last := snap.Turns[len(snap.Turns)-1]
	if last.Role != transcript.RoleAssistant || len(last.Content) <= s.streamed {
		return
	}
	if s.streamed == 0 {
		fmt.Fprintf(s.out, "%s: ", last.Role.DisplayName())
	}
	fmt.Fprint(s.out, last.Content[s.streamed:])
	s.streamed = len(last.Content)
}

func (s *Session) streamedBytes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamed
}

func (s *Session) currentMode() transcript.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

func (s *Session) setMode(mode transcript.Mode) {
	s.mu.Lock()
	s.mode = mode
	s.mu.Unlock()
}

func (s *Session) command(ctx context.Context, line string) (quit bool, err error) {
	fields := strings.Fields(line)
	name, args := fields[0], fields[1:]

	switch name {
	case "/quit", "/exit":
		return true, nil
	case "/help":
		fmt.Fprintln(s.out, helpText)
	case "/rag":
		return false, s.toggleRetrieval(ctx, args)
	case "/upload":
		if len(args) != 1 {
			return false, errors.New("usage: /upload <path>")
		}
		return false, s.upload(ctx, args[0])
	case "/status":
		status, err := s.client.IndexStatus(ctx)
		if err != nil {
			return false, err
		}
		s.ctrl.SetIndexed(status.IsIndexed)
		printStatus(s.out, status)
	case "/history":
		resp, err := s.client.FileHistory(ctx)
		if err != nil {
			return false, err
		}
		printHistory(s.out, resp)
	case "/clear":
		if err := s.ctrl.Clear(); err != nil {
			return false, err
		}
		fmt.Fprintln(s.out, "Conversation cleared.")
	case "/clear-index":
		result, err := s.client.ClearIndex(ctx)
		if err != nil {
			return false, err
		}
		s.ctrl.SetIndexed(false)
		fmt.Fprintln(s.out, result.Message)
	default:
		return false, fmt.Errorf("unknown command %s, type /help for the list", name)
	}
	return false, nil
}

func (s *Session) toggleRetrieval(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: /rag on|off")
	}
	switch strings.ToLower(args[0]) {
	case "on":
		s.setMode(retrievalMode)
		s.refreshStatus(ctx)
		if !s.ctrl.Indexed() {
			fmt.Fprintln(s.out, "Document chat is on, but no document is indexed yet.")
			return nil
		}
		fmt.Fprintln(s.out, "Document chat is on.")
	case "off":
		s.setMode(plainMode)
		fmt.Fprintln(s.out, "Document chat is off.")
	default:
		return errors.New("usage: /rag on|off")
	}
	return nil
}

func (s *Session) upload(ctx context.Context, path string) error {
	fmt.Fprintf(s.out, "Uploading %s...\n", path)
	result, err := s.client.UploadDataFile(ctx, path, s.ctrl.Config().APIKey)
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	s.ctrl.SetIndexed(true)
	fmt.Fprintf(s.out, "%s (%d chunks)\n", result.Message, result.ChunksCount)
	return nil
}

func (s *Session) refreshStatus(ctx context.Context) {
	status, err := s.client.IndexStatus(ctx)
	if err != nil {
		log.Warn().Str("component", logger.CLIENT).Err(err).Msg("Could not read index status")
		return
	}
	s.ctrl.SetIndexed(status.IsIndexed)
}
