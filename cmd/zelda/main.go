// Command zelda runs a realtime voice conversation against the Gemini Live
// API: microphone and screen/camera input stream up, spoken replies play
// back, and the transcript is mirrored to a local file.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"google.golang.org/genai"

	"github.com/zeldalabs/zelda/pkg/assets"
	"github.com/zeldalabs/zelda/pkg/audio"
	"github.com/zeldalabs/zelda/pkg/capture"
	"github.com/zeldalabs/zelda/pkg/config"
	"github.com/zeldalabs/zelda/pkg/core"
	"github.com/zeldalabs/zelda/pkg/gemini"
	"github.com/zeldalabs/zelda/pkg/live"
	"github.com/zeldalabs/zelda/pkg/prompts"
	"github.com/zeldalabs/zelda/pkg/tools"
	"github.com/zeldalabs/zelda/pkg/tracker"
	"github.com/zeldalabs/zelda/pkg/transcript"
)

type flags struct {
	mode          string
	modelType     int
	promptVersion int
	system        string
	envFile       string
	verbose       bool
}

func main() {
	var f flags

	root := &cobra.Command{
		Use:           "zelda",
		Short:         "Realtime multimodal voice client for the Gemini Live API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), f)
		},
	}
	root.Flags().StringVar(&f.mode, "mode", "screen", "video input: camera, screen, or none")
	root.Flags().IntVar(&f.modelType, "model-type", 1, "live model selector (1-3)")
	root.Flags().IntVar(&f.promptVersion, "prompt-version", 4, "system prompt version to fetch (1-4)")
	root.Flags().StringVar(&f.system, "system", "", "inline system prompt (skips the prompt store)")
	root.Flags().StringVar(&f.envFile, "env-file", "", "env file to load (default .env if present)")
	root.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "debug logging")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, f flags) error {
	if f.envFile != "" {
		if err := godotenv.Load(f.envFile); err != nil {
			return fmt.Errorf("load env file %s: %w", f.envFile, err)
		}
	} else {
		_ = godotenv.Load()
	}

	level := slog.LevelInfo
	if f.verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	model, err := config.ModelForType(f.modelType)
	if err != nil {
		return err
	}

	systemPrompt, err := resolveSystemPrompt(ctx, f, cfg, log)
	if err != nil {
		return err
	}

	syncAssets(ctx, cfg, log)

	registry, declarations := buildTools(ctx, cfg, log)

	device, err := audio.NewDevice(log)
	if err != nil {
		return err
	}
	defer device.Close()

	mic, err := device.NewMic(cfg.SendSampleRate, cfg.Channels)
	if err != nil {
		return err
	}
	defer mic.Close()

	speaker, err := audio.NewSpeaker(cfg.ReceiveSampleRate, cfg.Channels)
	if err != nil {
		return err
	}
	defer speaker.Close()

	source, err := frameSource(f.mode)
	if err != nil {
		var serr *core.Error
		if !errors.As(err, &serr) || serr.IsFatalAtStartup() {
			return err
		}
		// A missing camera or display degrades to an audio-only session.
		log.Warn("video capture unavailable, continuing without frames", "err", err)
		source = nil
	}
	if source != nil {
		defer source.Close()
	}

	client, err := gemini.NewClient(cfg.GeminiAPIKey, log)
	if err != nil {
		return err
	}

	sess, err := live.NewSession(live.Options{
		Model:         model,
		SystemPrompt:  systemPrompt,
		ChunkSize:     cfg.ChunkSize,
		Monitor:       live.DefaultMonitorConfig(),
		Declarations:  declarations,
		Search:        true,
		CodeExecution: true,
	}, live.Deps{
		Transport: live.NewGeminiTransport(client),
		Mic:       mic,
		Frames:    source,
		Speaker:   speaker,
		Sink:      transcript.New(cfg.TranscriptPath(), log),
		Tracker:   tracker.New(model, log),
		Registry:  registry,
		Handles:   live.NewHandleStore(cfg.HandlePath(), log),
		Input:     os.Stdin,
		Output:    os.Stdout,
		Log:       log,
	})
	if err != nil {
		return err
	}

	return sess.Run(ctx)
}

// resolveSystemPrompt prefers an inline prompt and otherwise pulls the
// requested version from the prompt store.
func resolveSystemPrompt(ctx context.Context, f flags, cfg *config.Config, log *slog.Logger) (string, error) {
	if f.system != "" {
		return f.system, nil
	}
	client, err := prompts.NewClient(cfg.LangSmithAPIKey, log)
	if err != nil {
		return "", err
	}
	template, err := client.FetchTemplate(ctx, f.promptVersion)
	if err != nil {
		return "", err
	}
	return template, nil
}

// syncAssets refreshes the remote file store from the local assets
// directory. Failures are not fatal; the session runs without fresh files.
func syncAssets(ctx context.Context, cfg *config.Config, log *slog.Logger) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		log.Warn("asset store client unavailable", "err", err)
		return
	}
	syncer := assets.NewSyncer(assets.NewGeminiStore(client), cfg.AssetsDir, log)
	if _, err := syncer.Sync(ctx); err != nil {
		log.Warn("asset sync failed", "err", err)
	}
}

// buildTools registers client function tools. The Drive search tool is
// skipped when its service-account key is unavailable.
func buildTools(ctx context.Context, cfg *config.Config, log *slog.Logger) (*tools.Registry, []gemini.FunctionDeclaration) {
	var (
		registered   []tools.Tool
		declarations []gemini.FunctionDeclaration
	)
	if _, err := os.Stat(cfg.ServiceAccountFile); err == nil {
		search, err := tools.NewDriveSearch(ctx, cfg.ServiceAccountFile, log)
		if err != nil {
			log.Warn("drive search disabled", "err", err)
		} else {
			registered = append(registered, search)
			declarations = append(declarations, tools.DriveSearchDeclaration())
		}
	} else {
		log.Info("drive search disabled, no service account key", "path", cfg.ServiceAccountFile)
	}
	return tools.NewRegistry(log, registered...), declarations
}

func frameSource(mode string) (capture.Source, error) {
	switch mode {
	case "screen":
		screen, err := capture.NewScreen()
		if err != nil {
			return nil, err
		}
		return screen, nil
	case "camera":
		camera, err := capture.NewCamera()
		if err != nil {
			return nil, err
		}
		return camera, nil
	case "none":
		return nil, nil
	default:
		return nil, errors.New("mode must be camera, screen, or none")
	}
}
