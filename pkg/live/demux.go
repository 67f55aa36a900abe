package live

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/zeldalabs/zelda/pkg/core"
)

// runDemux consumes model turns until the session ends. Each turn is
// streamed unit by unit; at the turn boundary any audio still queued is
// flushed (the server completes turns early on interruption) and the
// transcript is re-rendered.
func (s *Session) runDemux(ctx context.Context) error {
	for {
		turn := s.conn.ReceiveTurn()
		for {
			unit, err := turn.Next(ctx)
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return err
			}
			if err := s.dispatch(ctx, unit); err != nil {
				return err
			}
		}

		s.playback.Flush()
		s.sink.RenderAll(s.stdout)
	}
}

// dispatch routes one inbound unit. Units carry a single concern; the first
// matching branch consumes the unit. Tool calls take priority and their
// responses go back in a single correlated batch.
func (s *Session) dispatch(ctx context.Context, unit core.InboundUnit) error {
	switch {
	case len(unit.ToolCalls) > 0:
		return s.handleToolCalls(ctx, unit.ToolCalls)
	case unit.Resumption != nil:
		if unit.Resumption.Resumable && unit.Resumption.NewHandle != "" {
			if err := s.handles.Save(unit.Resumption.NewHandle); err != nil {
				s.log.Warn("persist session handle failed", "err", err)
			}
		}
	case unit.Usage != nil:
		s.tracker.AddUsage(unit.Usage.PromptTokens, unit.Usage.ResponseTokens)
	case len(unit.Audio) > 0:
		s.playback.Put(unit.Audio)
	case unit.Transcript != "":
		s.sink.Append(unit.Transcript)
	case unit.Text != "":
		fmt.Fprint(s.stdout, unit.Text)
	case unit.Interrupted:
		// The user cut the model off; drop queued audio and whatever the
		// device is still holding so playback stops promptly.
		s.playback.Flush()
		s.speaker.Flush()
	}
	return nil
}

func (s *Session) handleToolCalls(ctx context.Context, calls []core.ToolCall) error {
	results := make([]core.ToolResponse, 0, len(calls))
	for _, call := range calls {
		s.log.Info("tool call received", "name", call.Name, "id", call.ID)
		payload := s.registry.Dispatch(ctx, call.Name, call.Args)
		results = append(results, core.ToolResponse{
			ID:       call.ID,
			Name:     call.Name,
			Response: payload,
		})
	}
	if err := s.conn.SendToolResponses(results); err != nil {
		return fmt.Errorf("send tool responses: %w", err)
	}
	return nil
}

// runPlayback moves queued model audio to the speaker.
func (s *Session) runPlayback(ctx context.Context) error {
	for {
		data, err := s.playback.Get(ctx)
		if err != nil {
			return err
		}
		s.speaker.Write(data)
	}
}
