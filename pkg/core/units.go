package core

// MIME tags carried by outbound payloads.
const (
	MIMEAudioPCM  = "audio/pcm"
	MIMEImageJPEG = "image/jpeg"
)

// OutboundUnit is one discrete client message for the live transport.
// A unit is created by exactly one producer and consumed exactly once by the
// outbound multiplexer; no ownership is retained afterward.
type OutboundUnit interface {
	outboundUnit() string
}

// TextTurn is a complete user text input.
type TextTurn struct {
	Text      string
	EndOfTurn bool
}

func (t TextTurn) outboundUnit() string { return "text_turn" }

// AudioChunk is one microphone PCM chunk tagged audio/pcm.
type AudioChunk struct {
	Data []byte
	MIME string
}

func (a AudioChunk) outboundUnit() string { return "audio_chunk" }

// ImageFrame is one encoded camera or screen frame. Data holds the
// compressed image bytes; the transport base64-encodes them on the wire.
type ImageFrame struct {
	Data []byte
	MIME string
}

func (f ImageFrame) outboundUnit() string { return "image_frame" }

// ToolCall is one function invocation requested by the model.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
}

// ToolResponse is the correlated result sent back for a ToolCall.
type ToolResponse struct {
	ID       string
	Name     string
	Response map[string]any
}

// ResumptionUpdate carries a refreshed session-resumption handle.
type ResumptionUpdate struct {
	NewHandle string
	Resumable bool
}

// Usage carries per-unit token accounting reported by the remote side.
type Usage struct {
	PromptTokens   int
	ResponseTokens int
}

// InboundUnit is one discrete server message from the live transport. The
// transport decoder splits mixed server frames so each unit carries exactly
// one concern, emitted in priority order: tool calls, resumption update,
// usage, audio, transcript text, plain text, interruption, turn completion.
type InboundUnit struct {
	ToolCalls    []ToolCall
	Resumption   *ResumptionUpdate
	Usage        *Usage
	Audio        []byte
	Transcript   string
	Text         string
	Interrupted  bool
	TurnComplete bool
}
