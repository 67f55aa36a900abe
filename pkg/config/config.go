// Package config supplies environment-driven configuration for the client:
// API credentials, audio format constants, and output paths. The session
// core treats these as opaque inputs.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Audio format defaults. The Live API expects 16 kHz mono PCM input and
// produces 24 kHz mono PCM output.
const (
	DefaultSendSampleRate    = 16000
	DefaultReceiveSampleRate = 24000
	DefaultChannels          = 1
	DefaultChunkSize         = 1024
)

const (
	defaultOutputDir      = "outputs"
	defaultTranscriptFile = "output_from_ai.txt"
	defaultHandleFile     = "session_handle.txt"
	defaultAssetsDir      = "files"
	defaultServiceAccount = "service_account.json"
)

// Config holds everything the session lifecycle controller needs at startup.
type Config struct {
	// GeminiAPIKey authenticates the live transport and the asset store.
	GeminiAPIKey string

	// LangSmithAPIKey authenticates the prompt store. Optional when an
	// inline system prompt is supplied.
	LangSmithAPIKey string

	// ServiceAccountFile is the Drive service-account key used by the
	// file-search tool. The tool is disabled when the file is absent.
	ServiceAccountFile string

	SendSampleRate    int
	ReceiveSampleRate int
	Channels          int
	ChunkSize         int

	OutputDir      string
	TranscriptFile string
	HandleFile     string
	AssetsDir      string
}

// Load builds a Config from the process environment with defaults applied.
func Load() (*Config, error) {
	cfg := &Config{
		GeminiAPIKey:       os.Getenv("GEMINI_API_KEY"),
		LangSmithAPIKey:    os.Getenv("LANGSMITH_API_KEY"),
		ServiceAccountFile: envOr("DRIVE_SERVICE_ACCOUNT_FILE", defaultServiceAccount),
		SendSampleRate:     DefaultSendSampleRate,
		ReceiveSampleRate:  DefaultReceiveSampleRate,
		Channels:           DefaultChannels,
		ChunkSize:          DefaultChunkSize,
		OutputDir:          envOr("ZELDA_OUTPUT_DIR", defaultOutputDir),
		TranscriptFile:     envOr("ZELDA_TRANSCRIPT_FILE", defaultTranscriptFile),
		HandleFile:         envOr("ZELDA_HANDLE_FILE", defaultHandleFile),
		AssetsDir:          envOr("ZELDA_ASSETS_DIR", defaultAssetsDir),
	}

	var err error
	if cfg.ChunkSize, err = envIntOr("ZELDA_CHUNK_SIZE", cfg.ChunkSize); err != nil {
		return nil, err
	}
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is not set")
	}
	return cfg, nil
}

// TranscriptPath returns the transcript file location under OutputDir.
func (c *Config) TranscriptPath() string {
	return filepath.Join(c.OutputDir, c.TranscriptFile)
}

// HandlePath returns the session-resumption handle file location.
func (c *Config) HandlePath() string {
	return filepath.Join(c.OutputDir, c.HandleFile)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s=%q: %w", key, v, err)
	}
	return n, nil
}

// ModelForType maps the CLI model selector to a Live API model identifier.
//
//	1 - thinking native-audio dialog model
//	2 - non-thinking native-audio dialog model (function calling)
//	3 - half-cascade model with the widest tool support
func ModelForType(modelType int) (string, error) {
	switch modelType {
	case 1:
		return "models/gemini-2.5-flash-exp-native-audio-thinking-dialog", nil
	case 2:
		return "models/gemini-2.5-flash-preview-native-audio-dialog", nil
	case 3:
		return "models/gemini-live-2.5-flash-preview", nil
	default:
		return "", fmt.Errorf("unknown model type %d", modelType)
	}
}
