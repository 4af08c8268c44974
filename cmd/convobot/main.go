// Command convobot is the main entry point for the ConvoBot meeting assistant.
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

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/jperram92/JamesConvoBot/internal/app"
	"github.com/jperram92/JamesConvoBot/internal/config"
	"github.com/jperram92/JamesConvoBot/internal/observe"
	"github.com/jperram92/JamesConvoBot/pkg/provider/agent"
	"github.com/jperram92/JamesConvoBot/pkg/provider/agent/anyllm"
	"github.com/jperram92/JamesConvoBot/pkg/provider/stt"
	oaistt "github.com/jperram92/JamesConvoBot/pkg/provider/stt/openai"
	"github.com/jperram92/JamesConvoBot/pkg/provider/stt/whisper"
	"github.com/jperram92/JamesConvoBot/pkg/provider/tts"
	"github.com/jperram92/JamesConvoBot/pkg/provider/tts/coqui"
	"github.com/jperram92/JamesConvoBot/pkg/provider/tts/elevenlabs"
	oaitts "github.com/jperram92/JamesConvoBot/pkg/provider/tts/openai"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "convobot: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "convobot: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger, logLevel := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("convobot starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(context.Background(), observe.ProviderConfig{
		ServiceName: "convobot",
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	// ── Instantiate providers ─────────────────────────────────────────────────
	providers, err := app.BuildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	application, err := app.New(ctx, cfg, providers)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	// ── Config hot reload ─────────────────────────────────────────────────────
	// The watcher polls the config file and applies the restart-free subset of
	// changes (log level, trigger word, voice, language) to the live session.
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		applyConfigUpdate(application, logLevel, old, new)
	})
	if err != nil {
		slog.Warn("config hot reload disabled", "err", err)
	} else {
		defer watcher.Stop()
	}

	// On the first signal, ask the session to leave gracefully and drain the
	// pipeline. A second signal kills the process the default way.
	go func() {
		<-ctx.Done()
		stop()
		slog.Info("shutdown signal received, leaving session…")
		application.Engine().Stop()
	}()

	slog.Info("ready — press Ctrl+C to leave the meeting")

	if err := application.Run(context.Background()); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// builtinProviders maps provider category names to the implementations that
// ship with ConvoBot. Used for startup logging.
var builtinProviders = map[string][]string{
	"stt":   {"openai", "whisper"},
	"tts":   {"openai", "elevenlabs", "coqui"},
	"agent": {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
}

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the appropriate
// provider from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("openai", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []oaistt.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaistt.WithBaseURL(entry.BaseURL))
		}
		return oaistt.New(entry.APIKey, entry.Model, opts...)
	})

	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Provider, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = optString(entry.Options, "model_path")
		}
		var opts []whisper.Option
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		return whisper.New(modelPath, opts...)
	})

	// ── TTS ───────────────────────────────────────────────────────────────────

	reg.RegisterTTS("openai", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []oaitts.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaitts.WithBaseURL(entry.BaseURL))
		}
		return oaitts.New(entry.APIKey, entry.Model, opts...)
	})

	reg.RegisterTTS("elevenlabs", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		if outputFmt := optString(entry.Options, "output_format"); outputFmt != "" {
			opts = append(opts, elevenlabs.WithOutputFormat(outputFmt))
		}
		return elevenlabs.New(entry.APIKey, opts...)
	})

	reg.RegisterTTS("coqui", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []coqui.Option
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, coqui.WithLanguage(lang))
		}
		if mode := optString(entry.Options, "api_mode"); mode != "" {
			opts = append(opts, coqui.WithAPIMode(coqui.APIMode(mode)))
		}
		return coqui.New(entry.BaseURL, opts...)
	})

	// ── Agent ─────────────────────────────────────────────────────────────────
	// openai, anthropic, gemini, deepseek, mistral, groq, llamacpp, llamafile
	// all share the same pattern: optional APIKey + optional BaseURL.
	for _, providerName := range []string{
		"openai", "anthropic", "gemini",
		"deepseek", "mistral", "groq", "llamacpp", "llamafile",
	} {
		reg.RegisterAgent(providerName, func(entry config.ProviderEntry) (agent.Collaborator, error) {
			var libOpts []anyllmlib.Option
			if entry.APIKey != "" {
				libOpts = append(libOpts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				libOpts = append(libOpts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			var opts []anyllm.Option
			if prompt := optString(entry.Options, "system_prompt"); prompt != "" {
				opts = append(opts, anyllm.WithSystemPrompt(prompt))
			}
			return anyllm.New(providerName, entry.Model, opts, libOpts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterAgent("ollama", func(entry config.ProviderEntry) (agent.Collaborator, error) {
		var libOpts []anyllmlib.Option
		if entry.BaseURL != "" {
			libOpts = append(libOpts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, nil, libOpts...)
	})

	// Debug log of all registered providers.
	for kind, names := range builtinProviders {
		for _, name := range names {
			slog.Debug("registered provider", "kind", kind, "name", name)
		}
	}
}

// ── Config hot reload ─────────────────────────────────────────────────────────

// applyConfigUpdate pushes the hot-reloadable changes between two configs into
// the running application. Anything the diff does not track (providers, bridge,
// persistence) needs a restart and is deliberately left alone.
func applyConfigUpdate(application *app.App, logLevel *slog.LevelVar, old, new *config.Config) {
	d := config.Diff(old, new)
	if !d.Any() {
		return
	}

	if d.LogLevelChanged {
		logLevel.Set(slogLevel(d.NewLogLevel))
		slog.Info("log level updated", "level", d.NewLogLevel)
	}

	eng := application.Engine()
	if eng == nil {
		return
	}
	if d.TriggerChanged {
		eng.SetTrigger(d.NewTrigger)
		slog.Info("trigger word updated", "trigger", d.NewTrigger)
	}
	if d.VoiceChanged {
		eng.SetVoice(d.NewVoice)
		slog.Info("voice updated", "voice", d.NewVoice)
	}
	if d.LanguageChanged {
		eng.SetLanguage(d.NewLanguage)
		slog.Info("language updated", "language", d.NewLanguage)
	}
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║        ConvoBot — startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("STT", cfg.Providers.STT.Name, cfg.Providers.STT.Model)
	printProvider("TTS", cfg.Providers.TTS.Name, cfg.Providers.TTS.Model)
	printProvider("Agent", cfg.Providers.Agent.Name, cfg.Providers.Agent.Model)
	trigger := cfg.Session.Trigger
	if trigger == "" {
		trigger = "(default)"
	}
	fmt.Printf("║  Trigger word    : %-19s ║\n", trigger)
	if cfg.Persistence.PostgresDSN != "" {
		fmt.Printf("║  Persistence     : %-19s ║\n", "postgres")
	} else {
		fmt.Printf("║  Persistence     : %-19s ║\n", "(disabled)")
	}
	if cfg.Server.ListenAddr != "" {
		fmt.Printf("║  Listen addr     : %-19s ║\n", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

// newLogger builds the process logger. The returned LevelVar lets the config
// watcher adjust verbosity without recreating the handler.
func newLogger(level config.LogLevel) (*slog.Logger, *slog.LevelVar) {
	lvl := new(slog.LevelVar)
	lvl.Set(slogLevel(level))
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})), lvl
}

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

// ── Helpers ───────────────────────────────────────────────────────────────────

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	v, ok := opts[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}
