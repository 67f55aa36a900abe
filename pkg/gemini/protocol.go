package gemini

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/zeldalabs/zelda/pkg/core"
)

// Wire messages for the v1beta bidirectional generate-content websocket.
// Field names follow the service's camelCase JSON framing. []byte blob
// payloads marshal as base64 per encoding/json.

type clientMessage struct {
	Setup         *Setup         `json:"setup,omitempty"`
	ClientContent *ClientContent `json:"clientContent,omitempty"`
	RealtimeInput *RealtimeInput `json:"realtimeInput,omitempty"`
	ToolResponse  *ToolResponse  `json:"toolResponse,omitempty"`
}

// Setup is the first client frame of every connection.
type Setup struct {
	Model                    string                    `json:"model"`
	GenerationConfig         *GenerationConfig         `json:"generationConfig,omitempty"`
	SystemInstruction        *Content                  `json:"systemInstruction,omitempty"`
	Tools                    []Tool                    `json:"tools,omitempty"`
	RealtimeInputConfig      *RealtimeInputConfig      `json:"realtimeInputConfig,omitempty"`
	SessionResumption        *SessionResumption        `json:"sessionResumption,omitempty"`
	ContextWindowCompression *ContextWindowCompression `json:"contextWindowCompression,omitempty"`
	OutputAudioTranscription *AudioTranscriptionConfig `json:"outputAudioTranscription,omitempty"`
}

type GenerationConfig struct {
	ResponseModalities []string      `json:"responseModalities,omitempty"`
	SpeechConfig       *SpeechConfig `json:"speechConfig,omitempty"`
	MediaResolution    string        `json:"mediaResolution,omitempty"`
}

type SpeechConfig struct {
	VoiceConfig *VoiceConfig `json:"voiceConfig,omitempty"`
}

type VoiceConfig struct {
	PrebuiltVoiceConfig *PrebuiltVoiceConfig `json:"prebuiltVoiceConfig,omitempty"`
}

type PrebuiltVoiceConfig struct {
	VoiceName string `json:"voiceName,omitempty"`
}

type RealtimeInputConfig struct {
	TurnCoverage string `json:"turnCoverage,omitempty"`
}

type SessionResumption struct {
	Handle string `json:"handle,omitempty"`
}

type ContextWindowCompression struct {
	TriggerTokens int64          `json:"triggerTokens,omitempty"`
	SlidingWindow *SlidingWindow `json:"slidingWindow,omitempty"`
}

type SlidingWindow struct {
	TargetTokens int64 `json:"targetTokens,omitempty"`
}

type AudioTranscriptionConfig struct{}

type Tool struct {
	GoogleSearch         *GoogleSearch         `json:"googleSearch,omitempty"`
	CodeExecution        *CodeExecution        `json:"codeExecution,omitempty"`
	FunctionDeclarations []FunctionDeclaration `json:"functionDeclarations,omitempty"`
}

type GoogleSearch struct{}

type CodeExecution struct{}

type FunctionDeclaration struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Parameters  *Schema `json:"parameters,omitempty"`
}

type Schema struct {
	Type        string             `json:"type,omitempty"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Required    []string           `json:"required,omitempty"`
}

type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts,omitempty"`
}

type Part struct {
	Text       string `json:"text,omitempty"`
	InlineData *Blob  `json:"inlineData,omitempty"`
}

type Blob struct {
	MIMEType string `json:"mimeType,omitempty"`
	Data     []byte `json:"data,omitempty"`
}

type ClientContent struct {
	Turns        []Content `json:"turns,omitempty"`
	TurnComplete bool      `json:"turnComplete,omitempty"`
}

type RealtimeInput struct {
	MediaChunks []Blob `json:"mediaChunks,omitempty"`
}

type ToolResponse struct {
	FunctionResponses []FunctionResponse `json:"functionResponses,omitempty"`
}

type FunctionResponse struct {
	ID       string         `json:"id,omitempty"`
	Name     string         `json:"name,omitempty"`
	Response map[string]any `json:"response,omitempty"`
}

type serverMessage struct {
	SetupComplete           *struct{}                `json:"setupComplete,omitempty"`
	ServerContent           *ServerContent           `json:"serverContent,omitempty"`
	ToolCall                *ServerToolCall          `json:"toolCall,omitempty"`
	SessionResumptionUpdate *SessionResumptionUpdate `json:"sessionResumptionUpdate,omitempty"`
	UsageMetadata           *UsageMetadata           `json:"usageMetadata,omitempty"`
}

type ServerContent struct {
	ModelTurn           *Content       `json:"modelTurn,omitempty"`
	TurnComplete        bool           `json:"turnComplete,omitempty"`
	Interrupted         bool           `json:"interrupted,omitempty"`
	OutputTranscription *Transcription `json:"outputTranscription,omitempty"`
}

type Transcription struct {
	Text string `json:"text,omitempty"`
}

type ServerToolCall struct {
	FunctionCalls []FunctionCall `json:"functionCalls,omitempty"`
}

type FunctionCall struct {
	ID   string         `json:"id,omitempty"`
	Name string         `json:"name,omitempty"`
	Args map[string]any `json:"args,omitempty"`
}

type SessionResumptionUpdate struct {
	NewHandle string `json:"newHandle,omitempty"`
	Resumable bool   `json:"resumable,omitempty"`
}

type UsageMetadata struct {
	PromptTokenCount   int `json:"promptTokenCount,omitempty"`
	ResponseTokenCount int `json:"responseTokenCount,omitempty"`
	TotalTokenCount    int `json:"totalTokenCount,omitempty"`
}

// decodeServerFrame splits one server frame into single-concern inbound
// units, in the dispatch priority order: tool calls, resumption update,
// usage, audio, transcript, plain text, interruption, turn completion.
// Frames that carry nothing the session consumes yield no units.
func decodeServerFrame(data []byte) ([]core.InboundUnit, error) {
	var msg serverMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("decode server frame: %w", err)
	}

	var units []core.InboundUnit

	if msg.ToolCall != nil && len(msg.ToolCall.FunctionCalls) > 0 {
		calls := make([]core.ToolCall, 0, len(msg.ToolCall.FunctionCalls))
		for _, call := range msg.ToolCall.FunctionCalls {
			calls = append(calls, core.ToolCall{
				ID:   call.ID,
				Name: call.Name,
				Args: call.Args,
			})
		}
		units = append(units, core.InboundUnit{ToolCalls: calls})
	}
	if msg.SessionResumptionUpdate != nil {
		units = append(units, core.InboundUnit{Resumption: &core.ResumptionUpdate{
			NewHandle: msg.SessionResumptionUpdate.NewHandle,
			Resumable: msg.SessionResumptionUpdate.Resumable,
		}})
	}
	if msg.UsageMetadata != nil {
		units = append(units, core.InboundUnit{Usage: &core.Usage{
			PromptTokens:   msg.UsageMetadata.PromptTokenCount,
			ResponseTokens: msg.UsageMetadata.ResponseTokenCount,
		}})
	}
	if sc := msg.ServerContent; sc != nil {
		var (
			audio []byte
			text  string
		)
		if sc.ModelTurn != nil {
			for _, part := range sc.ModelTurn.Parts {
				switch {
				case part.InlineData != nil && strings.HasPrefix(part.InlineData.MIMEType, "audio/"):
					audio = append(audio, part.InlineData.Data...)
				case part.Text != "":
					text += part.Text
				}
			}
		}
		if len(audio) > 0 {
			units = append(units, core.InboundUnit{Audio: audio})
		}
		if sc.OutputTranscription != nil && sc.OutputTranscription.Text != "" {
			units = append(units, core.InboundUnit{Transcript: sc.OutputTranscription.Text})
		}
		if text != "" {
			units = append(units, core.InboundUnit{Text: text})
		}
		if sc.Interrupted {
			units = append(units, core.InboundUnit{Interrupted: true})
		}
		if sc.TurnComplete {
			units = append(units, core.InboundUnit{TurnComplete: true})
		}
	}
	return units, nil
}
