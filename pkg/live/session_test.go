package live

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zeldalabs/zelda/pkg/core"
	"github.com/zeldalabs/zelda/pkg/gemini"
	"github.com/zeldalabs/zelda/pkg/tools"
	"github.com/zeldalabs/zelda/pkg/tracker"
	"github.com/zeldalabs/zelda/pkg/transcript"
)

type scriptedStream struct {
	units []core.InboundUnit
	err   error
	i     int
}

func (s *scriptedStream) Next(ctx context.Context) (core.InboundUnit, error) {
	if s.i < len(s.units) {
		u := s.units[s.i]
		s.i++
		return u, nil
	}
	if s.err != nil {
		return core.InboundUnit{}, s.err
	}
	return core.InboundUnit{}, io.EOF
}

// blockingStream never yields; it ends only with the context.
type blockingStream struct{}

func (blockingStream) Next(ctx context.Context) (core.InboundUnit, error) {
	<-ctx.Done()
	return core.InboundUnit{}, ctx.Err()
}

type fakeConn struct {
	mu          sync.Mutex
	sent        []core.OutboundUnit
	toolBatches [][]core.ToolResponse
	streams     []TurnStream
	idx         int
	handle      string
	sendErr     error
}

func (c *fakeConn) Send(unit core.OutboundUnit) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, unit)
	return nil
}

func (c *fakeConn) SendText(text string, endOfTurn bool) error {
	return c.Send(core.TextTurn{Text: text, EndOfTurn: endOfTurn})
}

func (c *fakeConn) SendToolResponses(results []core.ToolResponse) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.toolBatches = append(c.toolBatches, results)
	return nil
}

func (c *fakeConn) ReceiveTurn() TurnStream {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.idx < len(c.streams) {
		stream := c.streams[c.idx]
		c.idx++
		return stream
	}
	return &scriptedStream{err: fmt.Errorf("%w: session ended", core.ErrConnectionClosed)}
}

func (c *fakeConn) Handle() string { return c.handle }
func (c *fakeConn) Close() error   { return nil }

func (c *fakeConn) sentUnits() []core.OutboundUnit {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]core.OutboundUnit(nil), c.sent...)
}

type fakeTransport struct {
	conn *fakeConn
	cfg  gemini.SessionConfig
}

func (t *fakeTransport) Connect(ctx context.Context, model string, cfg gemini.SessionConfig) (Conn, error) {
	t.cfg = cfg
	return t.conn, nil
}

type fakePlayer struct {
	mu      sync.Mutex
	played  []byte
	flushes int
}

func (p *fakePlayer) Write(data []byte) {
	p.mu.Lock()
	p.played = append(p.played, data...)
	p.mu.Unlock()
}

func (p *fakePlayer) Flush() {
	p.mu.Lock()
	p.played = nil
	p.flushes++
	p.mu.Unlock()
}

type fakeTool struct{}

func (fakeTool) Name() string { return "getFiles" }

func (fakeTool) Call(ctx context.Context, args map[string]any) (map[string]any, error) {
	return map[string]any{"success": true, "count": 3}, nil
}

// blockReader blocks every Read forever; the session is driven by the
// scripted transport instead of typed input.
type blockReader struct{}

func (blockReader) Read(p []byte) (int, error) {
	select {}
}

func newTestSession(t *testing.T, conn *fakeConn, input io.Reader, output io.Writer) (*Session, *tracker.Tracker, *HandleStore, string) {
	t.Helper()
	dir := t.TempDir()
	transcriptPath := filepath.Join(dir, "output_from_ai.txt")
	trk := tracker.New("session", nil)
	handles := NewHandleStore(filepath.Join(dir, "session_handle.txt"), nil)

	sess, err := NewSession(Options{
		Model:        "models/test",
		SystemPrompt: "You are Zelda.",
		Monitor:      MonitorConfig{Interval: time.Hour, IdleThreshold: time.Hour, MaxUnanswered: 3},
	}, Deps{
		Transport: &fakeTransport{conn: conn},
		Speaker:   &fakePlayer{},
		Sink:      transcript.New(transcriptPath, nil),
		Tracker:   trk,
		Registry:  tools.NewRegistry(nil, fakeTool{}),
		Handles:   handles,
		Input:     input,
		Output:    output,
	})
	require.NoError(t, err)
	return sess, trk, handles, transcriptPath
}

func TestSessionRun_ToolCallTranscriptAndUsage(t *testing.T) {
	turn := &scriptedStream{units: []core.InboundUnit{
		{ToolCalls: []core.ToolCall{{ID: "call-1", Name: "getFiles", Args: map[string]any{"search_term": "report"}}}},
		{Transcript: "Found 3 files."},
		{Usage: &core.Usage{PromptTokens: 10, ResponseTokens: 5}},
		{TurnComplete: true},
	}}
	conn := &fakeConn{streams: []TurnStream{turn}, handle: "handle-1"}

	var out bytes.Buffer
	sess, trk, handles, transcriptPath := newTestSession(t, conn, blockReader{}, &out)

	err := sess.Run(context.Background())
	require.ErrorIs(t, err, core.ErrConnectionClosed)

	require.Len(t, conn.toolBatches, 1)
	batch := conn.toolBatches[0]
	require.Len(t, batch, 1)
	require.Equal(t, "call-1", batch[0].ID)
	require.Equal(t, "getFiles", batch[0].Name)
	require.Equal(t, true, batch[0].Response["success"])

	require.Equal(t, 15, trk.TotalTokens())
	require.Equal(t, "handle-1", handles.Current())

	data, err := os.ReadFile(transcriptPath)
	require.NoError(t, err)
	require.Contains(t, string(data), "Found 3 files.")
	require.Contains(t, out.String(), "Found 3 files.")
}

func TestSessionRun_UnknownToolStillGetsResponse(t *testing.T) {
	turn := &scriptedStream{units: []core.InboundUnit{
		{ToolCalls: []core.ToolCall{{ID: "call-9", Name: "frobnicate", Args: map[string]any{}}}},
		{TurnComplete: true},
	}}
	conn := &fakeConn{streams: []TurnStream{turn}}

	var out bytes.Buffer
	sess, _, _, _ := newTestSession(t, conn, blockReader{}, &out)

	err := sess.Run(context.Background())
	require.ErrorIs(t, err, core.ErrConnectionClosed)

	require.Len(t, conn.toolBatches, 1)
	response := conn.toolBatches[0][0].Response
	require.Equal(t, false, response["success"])
	require.Contains(t, response["error"], "frobnicate")
}

func TestSessionRun_OffersPersistedHandle(t *testing.T) {
	dir := t.TempDir()
	handlePath := filepath.Join(dir, "session_handle.txt")
	require.NoError(t, os.WriteFile(handlePath, []byte("handle-prev\n"), 0o644))

	conn := &fakeConn{}
	transport := &fakeTransport{conn: conn}
	sess, err := NewSession(Options{
		Model:        "models/test",
		SystemPrompt: "You are Zelda.",
		Monitor:      MonitorConfig{Interval: time.Hour, IdleThreshold: time.Hour, MaxUnanswered: 3},
	}, Deps{
		Transport: transport,
		Speaker:   &fakePlayer{},
		Sink:      transcript.New(filepath.Join(dir, "output_from_ai.txt"), nil),
		Tracker:   tracker.New("session", nil),
		Registry:  tools.NewRegistry(nil),
		Handles:   NewHandleStore(handlePath, nil),
		Input:     blockReader{},
		Output:    io.Discard,
	})
	require.NoError(t, err)

	err = sess.Run(context.Background())
	require.ErrorIs(t, err, core.ErrConnectionClosed)
	require.Equal(t, "handle-prev", transport.cfg.ResumeHandle)
}

func TestSessionRun_UserExitIsClean(t *testing.T) {
	conn := &fakeConn{streams: []TurnStream{blockingStream{}, blockingStream{}}}

	pr, pw := io.Pipe()
	defer pw.Close()

	var out bytes.Buffer
	sess, _, _, _ := newTestSession(t, conn, pr, &out)

	done := make(chan error, 1)
	go func() { done <- sess.Run(context.Background()) }()

	_, err := pw.Write([]byte("quit\n"))
	require.NoError(t, err)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("session did not exit on quit")
	}
	require.Contains(t, out.String(), "Input:")
}

func TestSessionRun_TypedMessagesReachTransport(t *testing.T) {
	conn := &fakeConn{streams: []TurnStream{blockingStream{}, blockingStream{}}}

	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var out bytes.Buffer
	sess, _, _, _ := newTestSession(t, conn, pr, &out)

	done := make(chan error, 1)
	go func() { done <- sess.Run(ctx) }()

	_, err := pw.Write([]byte("\nhello there\n"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		var texts []string
		for _, unit := range conn.sentUnits() {
			if turn, ok := unit.(core.TextTurn); ok {
				texts = append(texts, turn.Text)
			}
		}
		return len(texts) == 2 && texts[0] == "." && texts[1] == "hello there"
	}, 5*time.Second, 10*time.Millisecond, "typed messages were not forwarded")

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("session did not exit on cancel")
	}
}

func TestRunDemux_FlushesPlaybackAtTurnBoundary(t *testing.T) {
	turn := &scriptedStream{units: []core.InboundUnit{
		{Audio: []byte{1, 2}},
		{Audio: []byte{3, 4}},
		{TurnComplete: true},
	}}
	conn := &fakeConn{streams: []TurnStream{turn}}
	s := &Session{
		conn:     conn,
		playback: NewPlaybackQueue(),
		speaker:  &fakePlayer{},
		sink:     transcript.New(filepath.Join(t.TempDir(), "output_from_ai.txt"), nil),
		stdout:   io.Discard,
	}

	// No playback consumer runs here, so only the boundary flush can
	// empty the queue.
	err := s.runDemux(context.Background())
	require.ErrorIs(t, err, core.ErrConnectionClosed)
	require.Zero(t, s.playback.Len())
}

func TestRunDemux_InterruptionDropsBufferedAudio(t *testing.T) {
	turn := &scriptedStream{units: []core.InboundUnit{
		{Audio: []byte{1, 2}},
		{Interrupted: true},
		{TurnComplete: true},
	}}
	conn := &fakeConn{streams: []TurnStream{turn}}
	speaker := &fakePlayer{played: []byte{9, 9}}
	s := &Session{
		conn:     conn,
		playback: NewPlaybackQueue(),
		speaker:  speaker,
		sink:     transcript.New(filepath.Join(t.TempDir(), "output_from_ai.txt"), nil),
		stdout:   io.Discard,
	}

	err := s.runDemux(context.Background())
	require.ErrorIs(t, err, core.ErrConnectionClosed)
	require.Zero(t, s.playback.Len())
	require.Equal(t, 1, speaker.flushes)
	require.Empty(t, speaker.played)
}

func TestRunMux_PreservesOrderAndStopsOnClose(t *testing.T) {
	conn := &fakeConn{}
	s := &Session{out: make(chan core.OutboundUnit, outboundQueueDepth), conn: conn}

	s.out <- core.AudioChunk{Data: []byte{1}, MIME: core.MIMEAudioPCM}
	s.out <- core.ImageFrame{Data: []byte{2}, MIME: core.MIMEImageJPEG}
	s.out <- core.TextTurn{Text: "hi", EndOfTurn: true}
	close(s.out)

	require.NoError(t, s.runMux(context.Background()))

	sent := conn.sentUnits()
	require.Len(t, sent, 3)
	require.IsType(t, core.AudioChunk{}, sent[0])
	require.IsType(t, core.ImageFrame{}, sent[1])
	require.IsType(t, core.TextTurn{}, sent[2])
}

func TestRunMux_ReportsSendFailure(t *testing.T) {
	conn := &fakeConn{sendErr: fmt.Errorf("%w: write failed", core.ErrConnectionClosed)}
	s := &Session{out: make(chan core.OutboundUnit, 1), conn: conn}
	s.out <- core.TextTurn{Text: "hi", EndOfTurn: true}

	err := s.runMux(context.Background())
	require.ErrorIs(t, err, core.ErrConnectionClosed)
}
