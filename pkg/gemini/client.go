// Package gemini implements the live bidirectional websocket transport:
// session setup, realtime media input, tool responses, and the inbound
// frame stream decoded into session units.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zeldalabs/zelda/pkg/core"
)

const (
	defaultEndpoint       = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"
	defaultConnectTimeout = 15 * time.Second
	defaultVoice          = "Sulafat"

	compressionTriggerTokens = 25600
	compressionTargetTokens  = 12800
)

// Client dials live sessions against the generative service.
type Client struct {
	apiKey   string
	endpoint string
	log      *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithEndpoint overrides the websocket endpoint. Used by tests.
func WithEndpoint(url string) ClientOption {
	return func(c *Client) { c.endpoint = url }
}

// NewClient creates a live transport client.
func NewClient(apiKey string, log *slog.Logger, opts ...ClientOption) (*Client, error) {
	if apiKey == "" {
		return nil, core.NewConfigurationError("GEMINI_API_KEY environment variable not set")
	}
	if log == nil {
		log = slog.Default()
	}
	c := &Client{apiKey: apiKey, endpoint: defaultEndpoint, log: log}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SessionConfig carries per-session setup parameters.
type SessionConfig struct {
	SystemPrompt string
	Voice        string
	ResumeHandle string

	// Client function tools plus the built-in search and code execution tools.
	Declarations  []FunctionDeclaration
	Search        bool
	CodeExecution bool
}

func buildSetup(model string, cfg SessionConfig) *Setup {
	voice := cfg.Voice
	if voice == "" {
		voice = defaultVoice
	}
	setup := &Setup{
		Model: model,
		GenerationConfig: &GenerationConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig: &SpeechConfig{
				VoiceConfig: &VoiceConfig{
					PrebuiltVoiceConfig: &PrebuiltVoiceConfig{VoiceName: voice},
				},
			},
			MediaResolution: "MEDIA_RESOLUTION_MEDIUM",
		},
		RealtimeInputConfig: &RealtimeInputConfig{
			TurnCoverage: "TURN_INCLUDES_ALL_INPUT",
		},
		ContextWindowCompression: &ContextWindowCompression{
			TriggerTokens: compressionTriggerTokens,
			SlidingWindow: &SlidingWindow{TargetTokens: compressionTargetTokens},
		},
		OutputAudioTranscription: &AudioTranscriptionConfig{},
	}
	if cfg.SystemPrompt != "" {
		setup.SystemInstruction = &Content{
			Parts: []Part{{Text: cfg.SystemPrompt}},
		}
	}
	if cfg.ResumeHandle != "" {
		setup.SessionResumption = &SessionResumption{Handle: cfg.ResumeHandle}
	}
	if cfg.Search {
		setup.Tools = append(setup.Tools, Tool{GoogleSearch: &GoogleSearch{}})
	}
	if cfg.CodeExecution {
		setup.Tools = append(setup.Tools, Tool{CodeExecution: &CodeExecution{}})
	}
	if len(cfg.Declarations) > 0 {
		setup.Tools = append(setup.Tools, Tool{FunctionDeclarations: cfg.Declarations})
	}
	return setup
}

// Connect dials the live endpoint, performs setup, and waits for the
// server's setup acknowledgement before returning a usable Conn.
func (c *Client) Connect(ctx context.Context, model string, cfg SessionConfig) (*Conn, error) {
	dialCtx := ctx
	var cancel context.CancelFunc
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		dialCtx, cancel = context.WithTimeout(ctx, defaultConnectTimeout)
		defer cancel()
	}

	wsURL := c.endpoint + "?key=" + c.apiKey
	ws, resp, err := websocket.DefaultDialer.DialContext(dialCtx, wsURL, nil)
	if err != nil {
		if resp != nil {
			return nil, core.NewTransportError(fmt.Sprintf("websocket dial failed (status %d): %v", resp.StatusCode, err))
		}
		return nil, core.NewTransportError(fmt.Sprintf("websocket dial failed: %v", err))
	}

	if err := ws.WriteJSON(clientMessage{Setup: buildSetup(model, cfg)}); err != nil {
		_ = ws.Close()
		return nil, fmt.Errorf("send session setup: %w", err)
	}

	_ = ws.SetReadDeadline(time.Now().Add(defaultConnectTimeout))
	_, payload, err := ws.ReadMessage()
	if err != nil {
		_ = ws.Close()
		return nil, fmt.Errorf("read setup ack: %w", err)
	}
	_ = ws.SetReadDeadline(time.Time{})

	var ack serverMessage
	if err := json.Unmarshal(payload, &ack); err != nil {
		_ = ws.Close()
		return nil, fmt.Errorf("decode setup ack: %w", err)
	}
	if ack.SetupComplete == nil {
		_ = ws.Close()
		return nil, core.NewTransportError("session setup was not acknowledged")
	}
	c.log.Info("live session established", "model", model, "resumed", cfg.ResumeHandle != "")

	conn := &Conn{
		conn:   ws,
		units:  make(chan core.InboundUnit, 256),
		done:   make(chan struct{}),
		stop:   make(chan struct{}),
		handle: cfg.ResumeHandle,
		log:    c.log,
	}
	go conn.readLoop()
	return conn, nil
}

// Conn is an established live session. One goroutine owns reads; writes are
// serialized through writeMu.
type Conn struct {
	conn *websocket.Conn

	units chan core.InboundUnit
	done  chan struct{}
	stop  chan struct{}

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    atomic.Bool

	errMu sync.Mutex
	err   error

	handleMu sync.Mutex
	handle   string

	log *slog.Logger
}

// Send transmits one outbound unit on the session.
func (s *Conn) Send(unit core.OutboundUnit) error {
	switch u := unit.(type) {
	case core.TextTurn:
		return s.SendText(u.Text, u.EndOfTurn)
	case core.AudioChunk:
		return s.sendJSON(clientMessage{RealtimeInput: &RealtimeInput{
			MediaChunks: []Blob{{MIMEType: u.MIME, Data: u.Data}},
		}})
	case core.ImageFrame:
		return s.sendJSON(clientMessage{RealtimeInput: &RealtimeInput{
			MediaChunks: []Blob{{MIMEType: u.MIME, Data: u.Data}},
		}})
	default:
		return fmt.Errorf("unsupported outbound unit %T", unit)
	}
}

// SendText sends a user text turn.
func (s *Conn) SendText(text string, endOfTurn bool) error {
	return s.sendJSON(clientMessage{ClientContent: &ClientContent{
		Turns: []Content{{
			Role:  "user",
			Parts: []Part{{Text: text}},
		}},
		TurnComplete: endOfTurn,
	}})
}

// SendToolResponses sends all correlated function responses in one frame.
func (s *Conn) SendToolResponses(results []core.ToolResponse) error {
	responses := make([]FunctionResponse, 0, len(results))
	for _, r := range results {
		responses = append(responses, FunctionResponse{
			ID:       r.ID,
			Name:     r.Name,
			Response: r.Response,
		})
	}
	return s.sendJSON(clientMessage{ToolResponse: &ToolResponse{
		FunctionResponses: responses,
	}})
}

func (s *Conn) sendJSON(msg clientMessage) error {
	if s == nil {
		return fmt.Errorf("session must not be nil")
	}
	if s.closed.Load() {
		return fmt.Errorf("%w: session is closed", core.ErrConnectionClosed)
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode client frame: %w", err)
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("%w: %v", core.ErrConnectionClosed, err)
	}
	return nil
}

// ReceiveTurn returns a stream over the units of the next model turn.
func (s *Conn) ReceiveTurn() *TurnStream {
	return &TurnStream{conn: s}
}

// Handle returns the most recent resumption handle known for this session.
func (s *Conn) Handle() string {
	s.handleMu.Lock()
	defer s.handleMu.Unlock()
	return s.handle
}

func (s *Conn) setHandle(handle string) {
	s.handleMu.Lock()
	s.handle = handle
	s.handleMu.Unlock()
}

// Close shuts the session down and waits for the read loop to exit.
func (s *Conn) Close() error {
	if s == nil {
		return nil
	}
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.stop)
		s.writeMu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(2*time.Second))
		s.writeMu.Unlock()
		_ = s.conn.Close()
	})
	<-s.done
	return nil
}

// Err returns the terminal session error, if any.
func (s *Conn) Err() error {
	<-s.done
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *Conn) setErr(err error) {
	if err == nil {
		return
	}
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *Conn) readLoop() {
	defer close(s.done)
	defer close(s.units)

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) || s.closed.Load() {
				return
			}
			s.setErr(fmt.Errorf("%w: %v", core.ErrConnectionClosed, err))
			return
		}

		units, err := decodeServerFrame(data)
		if err != nil {
			s.setErr(err)
			return
		}
		for _, unit := range units {
			if unit.Resumption != nil && unit.Resumption.Resumable && unit.Resumption.NewHandle != "" {
				s.setHandle(unit.Resumption.NewHandle)
			}
			select {
			case s.units <- unit:
			case <-s.stop:
				return
			}
		}
	}
}

// TurnStream iterates the units of a single model turn. Next returns io.EOF
// after the unit carrying the turn-complete signal has been delivered.
type TurnStream struct {
	conn *Conn
	done bool
}

// Next blocks for the next unit of the turn.
func (t *TurnStream) Next(ctx context.Context) (core.InboundUnit, error) {
	if t.done {
		return core.InboundUnit{}, io.EOF
	}
	select {
	case unit, ok := <-t.conn.units:
		if !ok {
			if err := t.conn.Err(); err != nil {
				return core.InboundUnit{}, err
			}
			return core.InboundUnit{}, fmt.Errorf("%w: session ended", core.ErrConnectionClosed)
		}
		if unit.TurnComplete {
			t.done = true
		}
		return unit, nil
	case <-ctx.Done():
		return core.InboundUnit{}, ctx.Err()
	}
}
