// Package app wires all ConvoBot subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run executes the session until it ends, and Shutdown tears
// everything down in order.
//
// For testing, inject mock implementations via functional options
// (WithDevice, WithSink, etc.). When an option is not provided, New creates
// real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jperram92/JamesConvoBot/internal/command"
	"github.com/jperram92/JamesConvoBot/internal/config"
	"github.com/jperram92/JamesConvoBot/internal/engine"
	"github.com/jperram92/JamesConvoBot/internal/health"
	"github.com/jperram92/JamesConvoBot/internal/observe"
	"github.com/jperram92/JamesConvoBot/internal/persist"
	"github.com/jperram92/JamesConvoBot/internal/persist/postgres"
	"github.com/jperram92/JamesConvoBot/internal/resilience"
	"github.com/jperram92/JamesConvoBot/internal/responder"
	"github.com/jperram92/JamesConvoBot/internal/segment"
	"github.com/jperram92/JamesConvoBot/internal/session"
	"github.com/jperram92/JamesConvoBot/internal/summarize"
	"github.com/jperram92/JamesConvoBot/internal/transcriber"
	"github.com/jperram92/JamesConvoBot/pkg/audio"
	"github.com/jperram92/JamesConvoBot/pkg/audio/wsbridge"
	"github.com/jperram92/JamesConvoBot/pkg/provider/agent"
	"github.com/jperram92/JamesConvoBot/pkg/provider/stt"
	"github.com/jperram92/JamesConvoBot/pkg/provider/tts"
)

// Providers holds one interface value per provider slot. Nil means the
// provider is not configured. Populated by main.go via the config registry.
type Providers struct {
	STT   stt.Provider
	TTS   tts.Provider
	Agent agent.Collaborator
}

// App owns all subsystem lifetimes and orchestrates the meeting session.
type App struct {
	cfg       *config.Config
	providers *Providers

	// Subsystems — initialised in New, torn down in Shutdown.
	device audio.Device
	sink   persist.Sink
	engine *engine.Engine
	server *http.Server

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithDevice injects an audio device instead of dialing the WebSocket bridge.
func WithDevice(d audio.Device) Option {
	return func(a *App) { a.device = d }
}

// WithSink injects a persistence sink instead of creating one from config.
func WithSink(s persist.Sink) Option {
	return func(a *App) { a.sink = s }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry). Use Option functions
// to inject test doubles for any subsystem.
//
// New performs all initialisation synchronously: persistence connection,
// bridge dial, pipeline construction, and health server assembly.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil || providers.STT == nil || providers.TTS == nil {
		return nil, errors.New("app: STT and TTS providers are required")
	}

	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}

	// ── 1. Persistence sink ──────────────────────────────────────────────
	if err := a.initSink(ctx); err != nil {
		return nil, fmt.Errorf("app: init sink: %w", err)
	}

	// ── 2. Audio device ──────────────────────────────────────────────────
	if err := a.initDevice(ctx); err != nil {
		return nil, fmt.Errorf("app: init device: %w", err)
	}

	// ── 3. Session engine ────────────────────────────────────────────────
	a.initEngine()

	// ── 4. Health server ─────────────────────────────────────────────────
	a.initServer()

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initSink connects the PostgreSQL store, or falls back to the null sink when
// no DSN is configured.
func (a *App) initSink(ctx context.Context) error {
	if a.sink != nil {
		return nil // injected
	}

	dsn := a.cfg.Persistence.PostgresDSN
	if dsn == "" {
		slog.Info("persistence disabled; transcripts stay in memory")
		a.sink = persist.NullSink{}
		return nil
	}

	store, err := postgres.NewStore(ctx, dsn)
	if err != nil {
		return err
	}
	a.sink = store
	a.closers = append(a.closers, func() error {
		store.Close()
		return nil
	})
	return nil
}

// initDevice dials the WebSocket bridge unless a device was injected.
func (a *App) initDevice(ctx context.Context) error {
	if a.device != nil {
		return nil // injected
	}

	if a.cfg.Bridge.URL == "" {
		return errors.New("bridge.url is required when no device is injected")
	}

	var bridgeOpts []wsbridge.Option
	if token := a.cfg.Bridge.AuthToken; token != "" {
		h := http.Header{}
		h.Set("Authorization", "Bearer "+token)
		bridgeOpts = append(bridgeOpts, wsbridge.WithHeader(h))
	}
	if a.cfg.Bridge.MaxRetries > 0 || a.cfg.Bridge.Backoff > 0 {
		bridgeOpts = append(bridgeOpts, wsbridge.WithReconnect(
			a.cfg.Bridge.MaxRetries,
			a.cfg.Bridge.Backoff.Std(),
			a.cfg.Bridge.MaxBackoff.Std(),
		))
	}

	bridge, err := wsbridge.Dial(ctx, a.cfg.Bridge.URL, bridgeOpts...)
	if err != nil {
		return err
	}
	a.device = bridge
	a.closers = append(a.closers, bridge.Close)

	slog.Info("connected to meeting bridge", "url", a.cfg.Bridge.URL)
	return nil
}

// initEngine builds the capture → transcription → command pipeline.
func (a *App) initEngine() {
	seg := segment.New(a.segmenterOptions()...)

	transOpts := a.transcriberOptions()
	if cb := sttBreaker(a.cfg); cb != nil {
		transOpts = append(transOpts, transcriber.WithCircuitBreaker(cb))
	}
	trans := transcriber.New(a.providers.STT, transOpts...)

	resp := responder.New(a.providers.TTS, a.device, a.responderOptions()...)

	var recognizerOpts []command.Option
	if a.cfg.Session.Trigger != "" {
		recognizerOpts = append(recognizerOpts, command.WithTrigger(a.cfg.Session.Trigger))
	}

	engineOpts := []engine.Option{engine.WithSink(a.sink)}
	if a.providers.Agent != nil {
		engineOpts = append(engineOpts,
			engine.WithAgent(a.providers.Agent),
			engine.WithSummarizer(summarize.New(a.providers.Agent)),
		)
	}
	if n := a.cfg.Session.QueueDepth; n > 0 {
		engineOpts = append(engineOpts, engine.WithQueueDepth(n))
	}
	if n := a.cfg.Session.MaxWorkerRestarts; n > 0 {
		engineOpts = append(engineOpts, engine.WithMaxWorkerRestarts(n))
	}
	if n := a.cfg.Session.ContextLines; n > 0 {
		engineOpts = append(engineOpts, engine.WithContextLines(n))
	}

	a.engine = engine.New(a.device, seg, trans, resp, recognizerOpts, engineOpts...)
}

func (a *App) segmenterOptions() []segment.Option {
	var opts []segment.Option
	ac := a.cfg.Audio
	if ac.RMSThreshold > 0 {
		opts = append(opts, segment.WithThreshold(ac.RMSThreshold))
	}
	if ac.ActivationFrames > 0 {
		opts = append(opts, segment.WithActivationFrames(ac.ActivationFrames))
	}
	if ac.Hangover > 0 {
		opts = append(opts, segment.WithHangover(ac.Hangover.Std()))
	}
	if ac.MinSegment > 0 {
		opts = append(opts, segment.WithMinSegmentDuration(ac.MinSegment.Std()))
	}
	if ac.MaxSegment > 0 {
		opts = append(opts, segment.WithMaxSegmentDuration(ac.MaxSegment.Std()))
	}
	if ac.Adaptive {
		opts = append(opts, segment.WithAdaptiveThreshold(ac.NoiseDamping, ac.NoiseRatio))
	}
	return opts
}

func (a *App) transcriberOptions() []transcriber.Option {
	var opts []transcriber.Option
	sc := a.cfg.Session
	if sc.STTTimeout > 0 {
		opts = append(opts, transcriber.WithTimeout(sc.STTTimeout.Std()))
	}
	if sc.STTMaxRetries > 0 {
		opts = append(opts, transcriber.WithMaxRetries(sc.STTMaxRetries))
	}
	if sc.Language != "" {
		opts = append(opts, transcriber.WithLanguage(sc.Language))
	}
	return opts
}

// sttBreaker returns the circuit breaker guarding the transcription backend.
// When fallbacks are configured the failover group already carries a breaker
// per backend, so no outer breaker is layered on top.
func sttBreaker(cfg *config.Config) *resilience.CircuitBreaker {
	if len(cfg.Providers.STT.Fallbacks) > 0 {
		return nil
	}
	return resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{Name: "stt"})
}

func (a *App) responderOptions() []responder.Option {
	var opts []responder.Option
	sc := a.cfg.Session
	if sc.TTSTimeout > 0 {
		opts = append(opts, responder.WithTimeout(sc.TTSTimeout.Std()))
	}
	if sc.Voice != "" {
		opts = append(opts, responder.WithVoice(sc.Voice))
	}
	return opts
}

// initServer assembles the health/metrics HTTP server. The Prometheus
// /metrics endpoint is registered globally by observe.InitProvider (called
// from main); here we add the probes.
func (a *App) initServer() {
	if a.cfg.Server.ListenAddr == "" {
		return
	}

	checker := health.New(
		health.Checker{Name: "session", Check: a.checkSession},
	)

	mux := http.NewServeMux()
	checker.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	a.server = &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           observe.Middleware(observe.DefaultMetrics())(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// checkSession reports readiness: the session is ready once the engine exists
// and the state machine has not reached a terminal phase.
func (a *App) checkSession(context.Context) error {
	if a.engine == nil {
		return errors.New("engine not initialised")
	}
	if a.engine.Machine().State().Phase == session.PhaseLeft {
		return errors.New("session has ended")
	}
	return nil
}

// Engine exposes the session engine, mainly for tests and for main's signal
// handler to trigger a graceful leave.
func (a *App) Engine() *engine.Engine { return a.engine }

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run starts the health server and executes the session engine, blocking
// until the session ends or ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if a.server != nil {
		go func() {
			var err error
			if tls := a.cfg.Server.TLS; tls != nil {
				err = a.server.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
			} else {
				err = a.server.ListenAndServe()
			}
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("health server failed", "error", err)
			}
		}()
		slog.Info("health server listening", "addr", a.cfg.Server.ListenAddr)
	}

	slog.Info("session starting", "session_id", a.engine.SessionID())
	return a.engine.Run(ctx)
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems in reverse-init order. It respects the
// context deadline: if ctx expires before all closers finish, remaining
// closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		if a.server != nil {
			if err := a.server.Shutdown(ctx); err != nil {
				slog.Warn("health server shutdown error", "err", err)
			}
		}

		// Run closers in reverse-init order.
		for i := len(a.closers) - 1; i >= 0; i-- {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", i+1)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := a.closers[i](); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
