// Package live orchestrates a realtime conversation session: microphone
// and video producers feed a bounded outbound queue, a multiplexer drains
// it onto the transport, and a demultiplexer routes inbound units to
// playback, the transcript, token tracking, and tool execution.
package live

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/zeldalabs/zelda/pkg/capture"
	"github.com/zeldalabs/zelda/pkg/core"
	"github.com/zeldalabs/zelda/pkg/gemini"
	"github.com/zeldalabs/zelda/pkg/tools"
	"github.com/zeldalabs/zelda/pkg/tracker"
	"github.com/zeldalabs/zelda/pkg/transcript"
)

// outboundQueueDepth bounds how far media capture can run ahead of the
// transport. Producers block once the queue is full, which paces them to
// the connection instead of buffering stale audio.
const outboundQueueDepth = 5

const defaultChunkSize = 1024

// Player is the audio output surface. Flush discards audio already handed
// to the device; it is used when the model is interrupted mid-utterance.
type Player interface {
	Write(data []byte)
	Flush()
}

// Options configures one session run.
type Options struct {
	Model        string
	SystemPrompt string
	Voice        string
	ChunkSize    int
	Monitor      MonitorConfig

	Declarations  []gemini.FunctionDeclaration
	Search        bool
	CodeExecution bool
}

// Deps carries the session's collaborators. Mic and Frames are optional;
// a session without them is text-only.
type Deps struct {
	Transport Transport
	Mic       AudioSource
	Frames    capture.Source
	Speaker   Player
	Sink      *transcript.Sink
	Tracker   *tracker.Tracker
	Registry  *tools.Registry
	Handles   *HandleStore

	Input  io.Reader
	Output io.Writer
	Log    *slog.Logger
}

// Session is the conversation lifecycle controller.
type Session struct {
	model         string
	systemPrompt  string
	voice         string
	chunkSize     int
	monitorCfg    MonitorConfig
	declarations  []gemini.FunctionDeclaration
	search        bool
	codeExecution bool

	transport Transport
	conn      Conn

	out      chan core.OutboundUnit
	playback *PlaybackQueue
	clock    *ActivityClock

	mic     AudioSource
	frames  capture.Source
	speaker Player

	sink     *transcript.Sink
	tracker  *tracker.Tracker
	registry *tools.Registry
	handles  *HandleStore

	stdin  io.Reader
	stdout io.Writer
	log    *slog.Logger
}

// NewSession validates the configuration and assembles a session.
func NewSession(opts Options, deps Deps) (*Session, error) {
	if strings.TrimSpace(opts.SystemPrompt) == "" {
		return nil, core.NewConfigurationError("system prompt must not be empty")
	}
	if strings.TrimSpace(opts.Model) == "" {
		return nil, core.NewConfigurationError("model must not be empty")
	}
	if deps.Transport == nil {
		return nil, core.NewConfigurationError("transport must not be nil")
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = defaultChunkSize
	}
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}

	return &Session{
		model:         opts.Model,
		systemPrompt:  opts.SystemPrompt,
		voice:         opts.Voice,
		chunkSize:     opts.ChunkSize,
		monitorCfg:    opts.Monitor,
		declarations:  opts.Declarations,
		search:        opts.Search,
		codeExecution: opts.CodeExecution,
		transport:     deps.Transport,
		out:           make(chan core.OutboundUnit, outboundQueueDepth),
		playback:      NewPlaybackQueue(),
		clock:         NewActivityClock(),
		mic:           deps.Mic,
		frames:        deps.Frames,
		speaker:       deps.Speaker,
		sink:          deps.Sink,
		tracker:       deps.Tracker,
		registry:      deps.Registry,
		handles:       deps.Handles,
		stdin:         deps.Input,
		stdout:        deps.Output,
		log:           log,
	}, nil
}

// Run connects and drives the session until the user exits, the transport
// drops, or a worker fails. User-requested exit and context cancellation
// are clean outcomes.
func (s *Session) Run(ctx context.Context) error {
	s.sink.Truncate()

	handle := s.handles.Load()
	if handle != "" {
		s.log.Info("resuming previous session")
	}

	conn, err := s.transport.Connect(ctx, s.model, gemini.SessionConfig{
		SystemPrompt:  s.systemPrompt,
		Voice:         s.voice,
		ResumeHandle:  handle,
		Declarations:  s.declarations,
		Search:        s.search,
		CodeExecution: s.codeExecution,
	})
	if err != nil {
		return err
	}
	s.conn = conn
	defer conn.Close()

	if h := conn.Handle(); h != "" {
		if err := s.handles.Save(h); err != nil {
			s.log.Warn("persist session handle failed", "err", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.runMux(gctx) })
	g.Go(func() error { return s.runDemux(gctx) })
	g.Go(func() error { return s.runPlayback(gctx) })
	if s.mic != nil {
		g.Go(func() error { return s.runMicProducer(gctx) })
	}
	if s.frames != nil {
		g.Go(func() error { return s.runFrameProducer(gctx, s.frames) })
	}

	sendPrompt := func(text string) error {
		select {
		case s.out <- core.TextTurn{Text: text, EndOfTurn: true}:
			return nil
		case <-gctx.Done():
			return gctx.Err()
		}
	}
	monitor := NewMonitor(s.monitorCfg, s.clock, sendPrompt, s.log)
	g.Go(func() error { return monitor.Run(gctx) })
	g.Go(func() error { return s.runTextLoop(gctx) })

	err = g.Wait()
	fmt.Fprintln(s.stdout, s.tracker.Summary())

	switch {
	case err == nil,
		errors.Is(err, core.ErrUserRequestedExit),
		errors.Is(err, context.Canceled):
		return nil
	default:
		s.log.Error("session ended with error", "err", err)
		return err
	}
}

// runTextLoop reads typed messages. "q", "quit", or "exit" (and stdin EOF)
// end the session; an empty line is sent as "." to keep the turn moving.
func (s *Session) runTextLoop(ctx context.Context) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(s.stdin)
		for {
			fmt.Fprint(s.stdout, "message > ")
			if !scanner.Scan() {
				scanErr <- scanner.Err()
				close(lines)
				return
			}
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				if err := <-scanErr; err != nil {
					return err
				}
				return core.ErrUserRequestedExit
			}
			text := strings.TrimSpace(line)
			switch strings.ToLower(text) {
			case "q", "quit", "exit":
				return core.ErrUserRequestedExit
			}
			if text == "" {
				text = "."
			}
			s.clock.Touch()
			select {
			case s.out <- core.TextTurn{Text: text, EndOfTurn: true}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}
