// Package app wires all gingerd subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves HTTP until the context is cancelled, and Shutdown
// tears everything down in order.
//
// For testing, inject mock implementations via functional options
// (WithAdapter, WithSource, etc.). When an option is not provided, New
// creates real implementations from the config via the registry.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/natea/conversational-reflection/internal/config"
	"github.com/natea/conversational-reflection/internal/emotion"
	"github.com/natea/conversational-reflection/internal/health"
	"github.com/natea/conversational-reflection/internal/history"
	"github.com/natea/conversational-reflection/internal/observe"
	"github.com/natea/conversational-reflection/internal/session"
	"github.com/natea/conversational-reflection/internal/voices"
	"github.com/natea/conversational-reflection/pkg/synth"
)

// shutdownGrace bounds the HTTP server drain once Run's context is cancelled.
const shutdownGrace = 10 * time.Second

// App owns all subsystem lifetimes and serves the gingerd session endpoint.
type App struct {
	cfg *config.Config
	reg *config.Registry

	// Subsystems — initialised in New, torn down in Shutdown.
	adapter     synth.Adapter
	source      emotion.Source
	mapper      *emotion.Mapper
	registry    *voices.Registry
	pool        *pgxpool.Pool
	voiceStore  *voices.PostgresStore
	newRecorder session.RecorderFactory
	manager     *session.Manager
	server      *http.Server
	watcher     *config.Watcher

	// logLevel, when set, lets a config reload adjust verbosity live.
	logLevel *slog.LevelVar

	// reloadPath enables the config watcher when non-empty.
	reloadPath string

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithAdapter injects a synth adapter instead of creating one from config.
func WithAdapter(a synth.Adapter) Option {
	return func(app *App) { app.adapter = a }
}

// WithSource injects an emotion source instead of creating one from config.
func WithSource(s emotion.Source) Option {
	return func(app *App) { app.source = s }
}

// WithRecorderFactory injects the per-session recorder factory instead of
// deriving one from the history config.
func WithRecorderFactory(f session.RecorderFactory) Option {
	return func(app *App) { app.newRecorder = f }
}

// WithLogLevel hands the app the level var backing the process logger so
// config reloads can adjust verbosity without a restart.
func WithLogLevel(lv *slog.LevelVar) Option {
	return func(app *App) { app.logLevel = lv }
}

// WithConfigReload enables hot reloading of the config file at path. Only
// the log level and persona voice profiles are applied live; other changes
// require a restart.
func WithConfigReload(path string) Option {
	return func(app *App) { app.reloadPath = path }
}

// New creates an App by wiring all subsystems together. The registry comes
// from main.go with the built-in adapter and source factories registered.
// Use Option functions to inject test doubles for any subsystem.
//
// New performs all initialisation synchronously: adapter and emotion-source
// construction, store connection and migration, voice registry seeding, and
// HTTP route assembly.
func New(ctx context.Context, cfg *config.Config, reg *config.Registry, opts ...Option) (*App, error) {
	a := &App{
		cfg: cfg,
		reg: reg,
	}
	for _, o := range opts {
		o(a)
	}

	if err := a.initSynth(); err != nil {
		return nil, fmt.Errorf("app: init synth: %w", err)
	}
	if err := a.initSource(); err != nil {
		return nil, fmt.Errorf("app: init emotion source: %w", err)
	}
	a.initMapper()
	if err := a.initStores(ctx); err != nil {
		return nil, fmt.Errorf("app: init stores: %w", err)
	}
	if err := a.initRegistry(ctx); err != nil {
		return nil, fmt.Errorf("app: init voice registry: %w", err)
	}
	if err := a.initManager(); err != nil {
		return nil, fmt.Errorf("app: init session manager: %w", err)
	}
	a.initServer()
	if err := a.initWatcher(); err != nil {
		return nil, fmt.Errorf("app: init config watcher: %w", err)
	}

	return a, nil
}

// initSynth builds the synthesizer adapter from config unless one was injected.
func (a *App) initSynth() error {
	if a.adapter != nil {
		return nil
	}
	adapter, err := a.reg.CreateSynth(a.cfg.Synth)
	if err != nil {
		return err
	}
	a.adapter = adapter
	slog.Info("synth adapter created", "name", adapter.Name())
	return nil
}

// initSource builds the emotion source from config unless one was injected.
func (a *App) initSource() error {
	if a.source != nil {
		return nil
	}
	source, err := a.reg.CreateSource(a.cfg.Emotion)
	if err != nil {
		return err
	}
	a.source = source
	if closer, ok := source.(io.Closer); ok {
		a.closers = append(a.closers, closer.Close)
	}
	slog.Info("emotion source created", "kind", a.cfg.Emotion.Source)
	return nil
}

// initMapper assembles the directive mapper around the emotion source.
func (a *App) initMapper() {
	opts := []emotion.Option{emotion.WithMetrics(observe.DefaultMetrics())}
	if a.cfg.Emotion.FetchTimeout > 0 {
		opts = append(opts, emotion.WithSourceTimeout(a.cfg.Emotion.FetchTimeout))
	}
	if a.cfg.Emotion.Insertion != "" {
		opts = append(opts, emotion.WithInsertionRule(a.cfg.Emotion.Insertion))
	}
	a.mapper = emotion.NewMapper(a.source, opts...)
}

// initStores connects to PostgreSQL when a DSN is configured and runs the
// schema migrations. Without a DSN, sessions record utterances in memory.
func (a *App) initStores(ctx context.Context) error {
	dsn := a.cfg.History.PostgresDSN
	if dsn == "" {
		if a.newRecorder == nil {
			maxUtterances := a.cfg.History.MaxUtterances
			a.newRecorder = func(string) history.Recorder {
				return history.NewMemoryRecorder(maxUtterances)
			}
		}
		return nil
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("ping postgres: %w", err)
	}
	a.pool = pool
	a.closers = append(a.closers, func() error {
		pool.Close()
		return nil
	})

	if err := history.NewPostgresRecorder(pool, "").Migrate(ctx); err != nil {
		return fmt.Errorf("migrate utterances: %w", err)
	}
	a.voiceStore = voices.NewPostgresStore(pool)
	if err := a.voiceStore.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate voice profiles: %w", err)
	}

	if a.newRecorder == nil {
		a.newRecorder = func(sessionID string) history.Recorder {
			return history.NewPostgresRecorder(pool, sessionID)
		}
	}
	slog.Info("postgres stores ready")
	return nil
}

// initRegistry builds the in-memory voice registry: the immutable self
// profile, then built-in personas, configured participants, and finally any
// profiles persisted in the store. Later layers win on ID collisions.
func (a *App) initRegistry(ctx context.Context) error {
	registry, err := voices.NewRegistry(a.cfg.Voices.Self)
	if err != nil {
		return err
	}

	if a.cfg.Voices.IncludeDefaults {
		for _, p := range voices.DefaultProfiles() {
			if err := registry.Set(p.ParticipantID, p); err != nil {
				return fmt.Errorf("register default profile %q: %w", p.ParticipantID, err)
			}
		}
	}
	for _, p := range a.cfg.Voices.Participants {
		if err := registry.Set(p.ParticipantID, p); err != nil {
			return fmt.Errorf("register profile %q: %w", p.ParticipantID, err)
		}
	}
	if a.voiceStore != nil {
		if err := a.voiceStore.SeedRegistry(ctx, registry); err != nil {
			return fmt.Errorf("seed from store: %w", err)
		}
	}

	a.registry = registry
	slog.Info("voice registry ready", "profiles", len(registry.All()))
	return nil
}

// initManager creates the session manager that owns live dialogue sessions.
func (a *App) initManager() error {
	manager, err := session.NewManager(session.ManagerConfig{
		Adapter:     a.adapter,
		Mapper:      a.mapper,
		Registry:    a.registry,
		NewRecorder: a.newRecorder,
	})
	if err != nil {
		return err
	}
	a.manager = manager
	return nil
}

// initServer assembles the HTTP routes: the websocket session endpoint,
// health probes, and the Prometheus scrape endpoint.
func (a *App) initServer() {
	mux := http.NewServeMux()
	mux.Handle("GET /session", a.manager.Handler())
	mux.Handle("GET /metrics", promhttp.Handler())
	health.New(a.healthCheckers()...).Register(mux)

	a.server = &http.Server{
		Addr:    a.cfg.Server.ListenAddr,
		Handler: observe.Middleware(observe.DefaultMetrics())(mux),
	}
}

// healthCheckers lists the readiness probes for the configured dependencies.
func (a *App) healthCheckers() []health.Checker {
	var checkers []health.Checker
	if a.pool != nil {
		checkers = append(checkers, health.Checker{
			Name:  "database",
			Check: a.pool.Ping,
		})
	}
	checkers = append(checkers, health.Checker{
		Name: "emotion_source",
		Check: func(ctx context.Context) error {
			_, err := a.source.CurrentSnapshot(ctx)
			return err
		},
	})
	return checkers
}

// initWatcher starts the config file watcher when hot reloading is enabled.
func (a *App) initWatcher() error {
	if a.reloadPath == "" {
		return nil
	}
	watcher, err := config.NewWatcher(a.reloadPath, a.applyConfigChange)
	if err != nil {
		return err
	}
	a.watcher = watcher
	slog.Info("config hot reload enabled", "path", a.reloadPath)
	return nil
}

// applyConfigChange applies the safe subset of a config reload: log level
// and persona voice profiles. Synth, emotion-source, and self-voice changes
// are logged but require a restart.
func (a *App) applyConfigChange(old, new *config.Config) {
	diff := config.Diff(old, new)

	if diff.LogLevelChanged {
		if a.logLevel != nil {
			a.logLevel.Set(slogLevel(diff.NewLogLevel))
			slog.Info("log level updated", "level", diff.NewLogLevel)
		} else {
			slog.Warn("log level changed but no level var is wired; restart to apply")
		}
	}

	for _, change := range diff.VoiceChanges {
		switch {
		case change.Removed:
			if err := a.registry.Remove(change.ParticipantID); err != nil {
				slog.Warn("reload: remove profile failed", "id", change.ParticipantID, "err", err)
				continue
			}
			if a.voiceStore != nil {
				if err := a.voiceStore.Delete(context.Background(), change.ParticipantID); err != nil {
					slog.Warn("reload: delete stored profile failed", "id", change.ParticipantID, "err", err)
				}
			}
			slog.Info("voice profile removed", "id", change.ParticipantID)

		default:
			profile, ok := findProfile(new.Voices.Participants, change.ParticipantID)
			if !ok {
				continue
			}
			if err := a.registry.Set(change.ParticipantID, profile); err != nil {
				slog.Warn("reload: set profile failed", "id", change.ParticipantID, "err", err)
				continue
			}
			if a.voiceStore != nil {
				if err := a.voiceStore.Upsert(context.Background(), profile); err != nil {
					slog.Warn("reload: persist profile failed", "id", change.ParticipantID, "err", err)
				}
			}
			slog.Info("voice profile updated", "id", change.ParticipantID, "added", change.Added)
		}
	}

	if !profilesMatch(old.Voices.Self, new.Voices.Self) {
		slog.Warn("self voice changed in config; restart to apply")
	}
	if old.Synth.Name != new.Synth.Name || old.Synth.Model != new.Synth.Model {
		slog.Warn("synth config changed; restart to apply")
	}
}

// Run serves HTTP until ctx is cancelled, then drains in-flight requests.
// It returns the context error on cancellation, or the server error if the
// listener fails.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("listening", "addr", a.server.Addr, "tls", a.cfg.Server.TLS != nil)
		var err error
		if tls := a.cfg.Server.TLS; tls != nil {
			err = a.server.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = a.server.ListenAndServe()
		}
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-ctx.Done()
		drainCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := a.server.Shutdown(drainCtx); err != nil {
			slog.Warn("server drain error", "err", err)
		}
		return ctx.Err()
	})

	return g.Wait()
}

// Shutdown tears down all subsystems in order. It respects the context
// deadline: if ctx expires before all closers finish, remaining closers are
// skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "sessions", a.manager.Count())

		if a.watcher != nil {
			a.watcher.Stop()
		}

		if err := a.manager.Close(ctx); err != nil {
			slog.Warn("session manager close error", "err", err)
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// Manager exposes the session manager, mainly for tests.
func (a *App) Manager() *session.Manager { return a.manager }

// Handler exposes the assembled HTTP handler, mainly for tests.
func (a *App) Handler() http.Handler { return a.server.Handler }

// findProfile returns the participant profile with the given ID.
func findProfile(profiles []synth.Profile, id string) (synth.Profile, bool) {
	for _, p := range profiles {
		if p.ParticipantID == id {
			return p, true
		}
	}
	return synth.Profile{}, false
}

// profilesMatch reports whether two profiles are identical in every field
// except the slice-valued ones, which are compared element-wise.
func profilesMatch(a, b synth.Profile) bool {
	if len(a.TypicalEmotions) != len(b.TypicalEmotions) {
		return false
	}
	for i := range a.TypicalEmotions {
		if a.TypicalEmotions[i] != b.TypicalEmotions[i] {
			return false
		}
	}
	return a.ParticipantID == b.ParticipantID &&
		a.DisplayName == b.DisplayName &&
		a.VoiceDescription == b.VoiceDescription &&
		a.VoiceID == b.VoiceID &&
		a.Gender == b.Gender &&
		a.AgeRange == b.AgeRange &&
		a.Accent == b.Accent &&
		a.SpeakingStyle == b.SpeakingStyle &&
		a.Self == b.Self
}

// slogLevel converts the config log level to its slog equivalent.
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
