// Command gingerd is the main entry point for the emotive voice
// orchestration server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/natea/conversational-reflection/internal/app"
	"github.com/natea/conversational-reflection/internal/config"
	"github.com/natea/conversational-reflection/internal/emotion"
	"github.com/natea/conversational-reflection/internal/emotion/sable"
	"github.com/natea/conversational-reflection/internal/observe"
	"github.com/natea/conversational-reflection/pkg/synth"
	"github.com/natea/conversational-reflection/pkg/synth/cartesia"
	"github.com/natea/conversational-reflection/pkg/synth/elevenlabs"
	"github.com/natea/conversational-reflection/pkg/synth/noop"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	watch := flag.Bool("watch", false, "reload safe config changes without a restart")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "gingerd: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "gingerd: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	level := new(slog.LevelVar)
	level.Set(slogLevel(cfg.Server.LogLevel))
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("gingerd starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "gingerd",
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(flushCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Adapter and source registry ───────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinFactories(ctx, reg)

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	opts := []app.Option{app.WithLogLevel(level)}
	if *watch {
		opts = append(opts, app.WithConfigReload(*configPath))
	}

	application, err := app.New(ctx, cfg, reg, opts...)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	slog.Info("server ready — press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping…")

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Factory wiring ────────────────────────────────────────────────────────────

// registerBuiltinFactories wires the built-in synth adapters and emotion
// sources into reg. The context is captured for the sable source, whose
// subprocess lifetime should follow the process signal context.
func registerBuiltinFactories(ctx context.Context, reg *config.Registry) {
	// ── Synth adapters ────────────────────────────────────────────────────────

	reg.RegisterSynth("cartesia", func(cfg config.SynthConfig) (synth.Adapter, error) {
		var opts []cartesia.Option
		if cfg.Model != "" {
			opts = append(opts, cartesia.WithModel(cfg.Model))
		}
		if cfg.DefaultVoiceID != "" {
			opts = append(opts, cartesia.WithDefaultVoiceID(cfg.DefaultVoiceID))
		}
		return cartesia.New(opts...), nil
	})

	reg.RegisterSynth("elevenlabs", func(cfg config.SynthConfig) (synth.Adapter, error) {
		var opts []elevenlabs.Option
		if cfg.DefaultVoiceID != "" {
			opts = append(opts, elevenlabs.WithDefaultVoiceID(cfg.DefaultVoiceID))
		}
		return elevenlabs.New(opts...), nil
	})

	reg.RegisterSynth("noop", func(config.SynthConfig) (synth.Adapter, error) {
		return noop.New(), nil
	})

	// ── Emotion sources ───────────────────────────────────────────────────────

	reg.RegisterSource(config.SourceStatic, func(config.EmotionConfig) (emotion.Source, error) {
		return emotion.StaticSource{Snapshot: emotion.NeutralSnapshot()}, nil
	})

	reg.RegisterSource(config.SourceSable, func(cfg config.EmotionConfig) (emotion.Source, error) {
		return sable.Connect(ctx, sable.Config{
			Command: cfg.Command,
			URL:     cfg.URL,
			Env:     cfg.Env,
		})
	})
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║         gingerd — startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printRow("Synth", summaryValue(cfg.Synth.Name, cfg.Synth.Model))
	printRow("Emotion source", summaryValue(string(cfg.Emotion.Source), ""))
	if cfg.History.PostgresDSN != "" {
		printRow("History", "postgres")
	} else {
		printRow("History", "in-memory")
	}
	printRow("Personas", fmt.Sprintf("%d", len(cfg.Voices.Participants)))
	if cfg.Server.ListenAddr != "" {
		printRow("Listen addr", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func summaryValue(name, model string) string {
	if name == "" {
		return "(not configured)"
	}
	if model != "" {
		return name + " / " + model
	}
	return name
}

func printRow(kind, value string) {
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-14s  : %-19s ║\n", kind, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
