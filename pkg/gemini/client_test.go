package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zeldalabs/zelda/pkg/core"
)

var testUpgrader = websocket.Upgrader{}

// newTestServer runs handler over an upgraded websocket connection and
// returns a ws:// endpoint for it.
func newTestServer(t *testing.T, handler func(*websocket.Conn)) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer ws.Close()
		handler(ws)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func readClientFrame(t *testing.T, ws *websocket.Conn) clientMessage {
	t.Helper()
	var msg clientMessage
	_ = ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Errorf("read client frame: %v", err)
		return msg
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Errorf("decode client frame: %v", err)
	}
	return msg
}

func TestConnect_StreamsOneTurn(t *testing.T) {
	endpoint := newTestServer(t, func(ws *websocket.Conn) {
		setup := readClientFrame(t, ws)
		if setup.Setup == nil || setup.Setup.Model == "" {
			t.Error("first client frame must carry setup")
			return
		}
		_ = ws.WriteMessage(websocket.TextMessage, []byte(`{"setupComplete":{}}`))
		_ = ws.WriteMessage(websocket.TextMessage, []byte(`{"serverContent":{"outputTranscription":{"text":"Hello."}}}`))
		_ = ws.WriteMessage(websocket.TextMessage, []byte(`{"serverContent":{"turnComplete":true}}`))

		// Hold the connection open until the client closes it.
		_, _, _ = ws.ReadMessage()
	})

	client, err := NewClient("test-key", nil, WithEndpoint(endpoint))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	conn, err := client.Connect(context.Background(), "models/test", SessionConfig{})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	turn := conn.ReceiveTurn()
	unit, err := turn.Next(ctx)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if unit.Transcript != "Hello." {
		t.Fatalf("unexpected transcript: %q", unit.Transcript)
	}

	unit, err = turn.Next(ctx)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if !unit.TurnComplete {
		t.Fatal("expected turn complete unit")
	}

	if _, err := turn.Next(ctx); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF after turn complete, got %v", err)
	}
}

func TestConnect_RejectsMissingSetupAck(t *testing.T) {
	endpoint := newTestServer(t, func(ws *websocket.Conn) {
		readClientFrame(t, ws)
		_ = ws.WriteMessage(websocket.TextMessage, []byte(`{"serverContent":{"turnComplete":true}}`))
	})

	client, err := NewClient("test-key", nil, WithEndpoint(endpoint))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := client.Connect(context.Background(), "models/test", SessionConfig{}); err == nil {
		t.Fatal("expected connect to fail without setup ack")
	}
}

func TestTurnStream_ReportsConnectionLoss(t *testing.T) {
	endpoint := newTestServer(t, func(ws *websocket.Conn) {
		readClientFrame(t, ws)
		_ = ws.WriteMessage(websocket.TextMessage, []byte(`{"setupComplete":{}}`))
		// Drop the connection without a close handshake.
		_ = ws.UnderlyingConn().Close()
	})

	client, err := NewClient("test-key", nil, WithEndpoint(endpoint))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	conn, err := client.Connect(context.Background(), "models/test", SessionConfig{})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = conn.ReceiveTurn().Next(ctx)
	if !errors.Is(err, core.ErrConnectionClosed) {
		t.Fatalf("expected connection-closed error, got %v", err)
	}
}

func TestConn_SendFrames(t *testing.T) {
	frames := make(chan clientMessage, 3)
	endpoint := newTestServer(t, func(ws *websocket.Conn) {
		readClientFrame(t, ws)
		_ = ws.WriteMessage(websocket.TextMessage, []byte(`{"setupComplete":{}}`))
		for i := 0; i < 3; i++ {
			frames <- readClientFrame(t, ws)
		}
	})

	client, err := NewClient("test-key", nil, WithEndpoint(endpoint))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	conn, err := client.Connect(context.Background(), "models/test", SessionConfig{})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer conn.Close()

	if err := conn.SendText("hello", true); err != nil {
		t.Fatalf("SendText: %v", err)
	}
	if err := conn.Send(core.AudioChunk{Data: []byte{1, 2}, MIME: core.MIMEAudioPCM}); err != nil {
		t.Fatalf("Send audio: %v", err)
	}
	if err := conn.SendToolResponses([]core.ToolResponse{
		{ID: "call-1", Name: "getFiles", Response: map[string]any{"success": true}},
	}); err != nil {
		t.Fatalf("SendToolResponses: %v", err)
	}

	text := <-frames
	if text.ClientContent == nil || !text.ClientContent.TurnComplete {
		t.Fatalf("unexpected text frame: %+v", text)
	}
	if got := text.ClientContent.Turns[0].Parts[0].Text; got != "hello" {
		t.Fatalf("unexpected text: %q", got)
	}

	audio := <-frames
	if audio.RealtimeInput == nil || len(audio.RealtimeInput.MediaChunks) != 1 {
		t.Fatalf("unexpected audio frame: %+v", audio)
	}
	if audio.RealtimeInput.MediaChunks[0].MIMEType != core.MIMEAudioPCM {
		t.Fatalf("unexpected audio mime: %q", audio.RealtimeInput.MediaChunks[0].MIMEType)
	}

	tool := <-frames
	if tool.ToolResponse == nil || len(tool.ToolResponse.FunctionResponses) != 1 {
		t.Fatalf("unexpected tool frame: %+v", tool)
	}
	if tool.ToolResponse.FunctionResponses[0].ID != "call-1" {
		t.Fatalf("unexpected response id: %+v", tool.ToolResponse.FunctionResponses[0])
	}
}

func TestConn_SendAfterCloseFails(t *testing.T) {
	endpoint := newTestServer(t, func(ws *websocket.Conn) {
		readClientFrame(t, ws)
		_ = ws.WriteMessage(websocket.TextMessage, []byte(`{"setupComplete":{}}`))
		_, _, _ = ws.ReadMessage()
	})

	client, err := NewClient("test-key", nil, WithEndpoint(endpoint))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	conn, err := client.Connect(context.Background(), "models/test", SessionConfig{})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := conn.SendText("late", true); !errors.Is(err, core.ErrConnectionClosed) {
		t.Fatalf("expected connection-closed error, got %v", err)
	}
}
