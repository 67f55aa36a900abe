package live

import (
	"context"

	"github.com/zeldalabs/zelda/pkg/core"
	"github.com/zeldalabs/zelda/pkg/gemini"
)

// TurnStream iterates the inbound units of one model turn, ending with
// io.EOF once the turn-complete unit has been delivered.
type TurnStream interface {
	Next(ctx context.Context) (core.InboundUnit, error)
}

// Conn is the established transport session the orchestrator drives.
type Conn interface {
	Send(unit core.OutboundUnit) error
	SendText(text string, endOfTurn bool) error
	SendToolResponses(results []core.ToolResponse) error
	ReceiveTurn() TurnStream
	Handle() string
	Close() error
}

// Transport dials live sessions.
type Transport interface {
	Connect(ctx context.Context, model string, cfg gemini.SessionConfig) (Conn, error)
}

type geminiTransport struct {
	client *gemini.Client
}

// NewGeminiTransport wraps the websocket client as a Transport.
func NewGeminiTransport(client *gemini.Client) Transport {
	return &geminiTransport{client: client}
}

func (t *geminiTransport) Connect(ctx context.Context, model string, cfg gemini.SessionConfig) (Conn, error) {
	conn, err := t.client.Connect(ctx, model, cfg)
	if err != nil {
		return nil, err
	}
	return geminiConn{conn}, nil
}

type geminiConn struct {
	*gemini.Conn
}

func (c geminiConn) ReceiveTurn() TurnStream {
	return c.Conn.ReceiveTurn()
}
