// Command ledgervoice is the main entry point for the LedgerVoice session
// orchestrator server.
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

	"github.com/ledgervoice/ledgervoice/internal/config"
	"github.com/ledgervoice/ledgervoice/internal/gateway"
	"github.com/ledgervoice/ledgervoice/internal/health"
	"github.com/ledgervoice/ledgervoice/internal/intent"
	"github.com/ledgervoice/ledgervoice/internal/learning"
	"github.com/ledgervoice/ledgervoice/internal/observe"
	"github.com/ledgervoice/ledgervoice/internal/resilience"
	"github.com/ledgervoice/ledgervoice/internal/respond"
	"github.com/ledgervoice/ledgervoice/internal/session"
	"github.com/ledgervoice/ledgervoice/internal/vad"
	"github.com/ledgervoice/ledgervoice/pkg/kvstore"
	"github.com/ledgervoice/ledgervoice/pkg/kvstore/postgres"
	"github.com/ledgervoice/ledgervoice/pkg/kvstore/sqlite"
	"github.com/ledgervoice/ledgervoice/pkg/provider/llm"
	"github.com/ledgervoice/ledgervoice/pkg/provider/llm/anyllm"
	"github.com/ledgervoice/ledgervoice/pkg/provider/llm/openai"
	"github.com/ledgervoice/ledgervoice/pkg/provider/stt"
	"github.com/ledgervoice/ledgervoice/pkg/provider/stt/deepgram"
	"github.com/ledgervoice/ledgervoice/pkg/provider/tts"
	"github.com/ledgervoice/ledgervoice/pkg/provider/tts/elevenlabs"
)

// minerInterval is how often recurring high-quality learning samples are
// promoted into the learned-pattern cache.
const minerInterval = 10 * time.Minute

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
			fmt.Fprintf(os.Stderr, "ledgervoice: config file %q not found, copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "ledgervoice: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	// The level lives in a LevelVar so the config watcher can adjust it at
	// runtime without rebuilding the logger.
	level := new(slog.LevelVar)
	level.Set(slogLevel(cfg.Server.LogLevel))
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("ledgervoice starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
		"profile", cfg.Voice.Profile,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownOtel, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "ledgervoice",
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOtel(shCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Persistent store ──────────────────────────────────────────────────────
	store, storePing, err := buildStore(ctx, cfg.Store)
	if err != nil {
		slog.Error("failed to open store", "backend", cfg.Store.Backend, "err", err)
		return 1
	}
	defer store.Close()
	slog.Info("store ready", "backend", storeBackendName(cfg.Store.Backend))

	// ── Providers ─────────────────────────────────────────────────────────────
	sttProv, err := buildSTT(cfg.Providers.STT)
	if err != nil {
		slog.Error("failed to build stt provider", "err", err)
		return 1
	}
	ttsProv, err := buildTTS(cfg.Providers.TTS)
	if err != nil {
		slog.Error("failed to build tts provider", "err", err)
		return 1
	}
	llmProv, err := buildLLM(cfg.Providers.LLM)
	if err != nil {
		slog.Error("failed to build llm provider", "err", err)
		return 1
	}
	if llmProv == nil {
		slog.Warn("no llm provider configured, recognition stops at the learned cache and replies use templates")
	}

	// ── Recognition and learning stack ────────────────────────────────────────
	cache := intent.NewCache(ctx, store,
		intent.WithMaxPatterns(cfg.Intent.MaxLearnedPatterns),
		intent.WithCacheLogger(logger),
	)
	cascade := intent.NewCascade(cache, llmProv,
		intent.WithLLMTimeout(cfg.Intent.LLMTimeout()),
		intent.WithLogger(logger),
		intent.WithMetrics(metrics),
	)
	collector := learning.NewCollector(ctx, store,
		learning.WithMaxSamples(cfg.Intent.MaxSamples),
		learning.WithCollectorLogger(logger),
	)
	miner := learning.NewMiner(collector, cache, logger)
	go runMiner(ctx, miner)

	// Every recognized utterance becomes a training sample; feedback from
	// the app relabels it later.
	recognizer := learning.NewRecorder(cascade, collector, map[string]any{
		"language": cfg.Intent.Language,
	})

	responder := respond.New(llmProv,
		respond.WithTimeout(cfg.Intent.LLMTimeout()),
		respond.WithLogger(logger),
		respond.WithMetrics(metrics),
	)

	// ── Session factory ───────────────────────────────────────────────────────
	timings := cfg.Voice.Timings()
	detectorCfg := vad.Config{
		SpeechStartThreshold: timings.SpeechStart,
		SpeechEndThreshold:   timings.SpeechEnd,
		SilenceTimeout:       timings.SilenceTimeout,
		NoiseFloorMultiplier: cfg.Voice.NoiseFloorMultiplier,
		MinThreshold:         cfg.Voice.MinThreshold,
		MaxThreshold:         cfg.Voice.MaxThreshold,
	}
	sessions := func(context.Context) (*session.Controller, error) {
		return session.NewController(session.Config{
			STT:        sttProv,
			TTS:        ttsProv,
			Recognizer: recognizer,
			Responder:  responder,
			Stream: stt.StreamConfig{
				SampleRate: 16000,
				Channels:   1,
				Language:   cfg.Intent.Language,
			},
			Detector:                detectorCfg,
			InterruptionConfirm:     timings.InterruptionConfirm,
			FalseInterruptionWindow: timings.FalseInterruptionWindow,
			Logger:                  logger,
			Metrics:                 metrics,
		})
	}

	// ── Health checks ─────────────────────────────────────────────────────────
	checkers := []health.Checker{
		{Name: "providers", Check: func(context.Context) error {
			if sttProv == nil || ttsProv == nil {
				return errors.New("stt or tts provider missing")
			}
			return nil
		}},
	}
	if storePing != nil {
		checkers = append(checkers, health.Checker{Name: "store", Check: storePing})
	}

	// ── Config hot reload ─────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, updated *config.Config) {
		if old.Server.LogLevel != updated.Server.LogLevel {
			level.Set(slogLevel(updated.Server.LogLevel))
			slog.Info("log level changed", "from", old.Server.LogLevel, "to", updated.Server.LogLevel)
		}
	})
	if err != nil {
		slog.Warn("config watcher disabled", "err", err)
	} else {
		defer watcher.Stop()
	}

	// ── Serve ─────────────────────────────────────────────────────────────────
	gwCfg := gateway.Config{
		ListenAddr: cfg.Server.ListenAddr,
		Sessions:   sessions,
		Patterns:   cascade,
		Feedback:   collector,
		Health:     health.New(checkers...),
		Logger:     logger,
		Metrics:    metrics,
	}
	if cfg.Server.TLS != nil {
		gwCfg.TLSCertFile = cfg.Server.TLS.CertFile
		gwCfg.TLSKeyFile = cfg.Server.TLS.KeyFile
	}
	srv, err := gateway.New(gwCfg)
	if err != nil {
		slog.Error("failed to build gateway", "err", err)
		return 1
	}

	slog.Info("server ready, press Ctrl+C to shut down")
	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Store wiring ──────────────────────────────────────────────────────────────

// buildStore opens the configured persistence backend. The second return is
// a readiness probe for backends that have one.
func buildStore(ctx context.Context, sc config.StoreConfig) (kvstore.Store, func(context.Context) error, error) {
	switch sc.Backend {
	case "", config.StoreMemory:
		return kvstore.NewMemStore(), nil, nil
	case config.StorePostgres:
		s, err := postgres.NewStore(ctx, sc.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres store: %w", err)
		}
		return s, s.Ping, nil
	case config.StoreSQLite:
		s, err := sqlite.NewStore(ctx, sc.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite store: %w", err)
		}
		return s, s.Ping, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", sc.Backend)
	}
}

func storeBackendName(b config.StoreBackend) string {
	if b == "" {
		return string(config.StoreMemory)
	}
	return string(b)
}

// ── Provider wiring ───────────────────────────────────────────────────────────

func buildSTT(entry config.ProviderEntry) (stt.Provider, error) {
	switch entry.Name {
	case "deepgram":
		var opts []deepgram.Option
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, deepgram.WithLanguage(lang))
		}
		return deepgram.New(entry.APIKey, opts...)
	case "":
		return nil, errors.New("stt provider is required")
	default:
		return nil, fmt.Errorf("unknown stt provider %q", entry.Name)
	}
}

// buildTTS constructs the synthesis backend behind a circuit-breaking
// fallback group, so a flapping vendor trips the breaker instead of stalling
// every utterance.
func buildTTS(entry config.ProviderEntry) (tts.Provider, error) {
	if entry.Name == "" {
		return nil, errors.New("tts provider is required")
	}
	primary, err := newTTSBackend(entry.Name, entry)
	if err != nil {
		return nil, err
	}

	group := resilience.NewTTSFallback(primary, entry.Name, resilience.FallbackConfig{})
	for _, name := range optStrings(entry.Options, "fallbacks") {
		fb, err := newTTSBackend(name, entry)
		if err != nil {
			return nil, fmt.Errorf("tts fallback %q: %w", name, err)
		}
		group.AddFallback(name, fb)
	}
	return group, nil
}

func newTTSBackend(name string, entry config.ProviderEntry) (tts.Provider, error) {
	switch name {
	case "elevenlabs":
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		if format := optString(entry.Options, "output_format"); format != "" {
			opts = append(opts, elevenlabs.WithOutputFormat(format))
		}
		return elevenlabs.New(entry.APIKey, opts...)
	default:
		return nil, fmt.Errorf("unknown tts provider %q", name)
	}
}

// buildLLM constructs the LLM collaborator behind a circuit-breaking
// fallback group; additional backends named in the "fallbacks" option join
// the chain. No configured provider returns nil, which the recognition
// cascade and responder both tolerate.
func buildLLM(entry config.ProviderEntry) (llm.Provider, error) {
	if entry.Name == "" {
		return nil, nil
	}
	primary, err := newLLMBackend(entry.Name, entry)
	if err != nil {
		return nil, err
	}

	group := resilience.NewLLMFallback(primary, entry.Name, resilience.FallbackConfig{})
	for _, name := range optStrings(entry.Options, "fallbacks") {
		fb, err := newLLMBackend(name, entry)
		if err != nil {
			return nil, fmt.Errorf("llm fallback %q: %w", name, err)
		}
		group.AddFallback(name, fb)
	}
	return group, nil
}

func newLLMBackend(name string, entry config.ProviderEntry) (llm.Provider, error) {
	switch name {
	case "openai":
		var opts []openai.Option
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		return openai.New(entry.APIKey, entry.Model, opts...)
	default:
		// anthropic, ollama, gemini and friends all route through any-llm.
		var opts []anyllmlib.Option
		if entry.APIKey != "" {
			opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
		}
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New(name, entry.Model, opts...)
	}
}

// ── Learning loop ─────────────────────────────────────────────────────────────

func runMiner(ctx context.Context, miner *learning.Miner) {
	ticker := time.NewTicker(minerInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			miner.Mine(ctx)
		}
	}
}

// ── Helpers ───────────────────────────────────────────────────────────────────

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

// optString extracts a string value from a provider Options map.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	s, _ := opts[key].(string)
	return s
}

// optStrings extracts a string list from a provider Options map. YAML
// sequences decode as []any, so each element is asserted individually.
func optStrings(opts map[string]any, key string) []string {
	if opts == nil {
		return nil
	}
	raw, ok := opts[key].([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
