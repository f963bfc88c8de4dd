package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"path/filepath"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"google.golang.org/genai"

	"github.com/hammamikhairi/basil/internal/config"
	"github.com/hammamikhairi/basil/internal/domain"
	"github.com/hammamikhairi/basil/internal/engine"
	"github.com/hammamikhairi/basil/internal/gpt"
	"github.com/hammamikhairi/basil/internal/kv"
	"github.com/hammamikhairi/basil/internal/logger"
	"github.com/hammamikhairi/basil/internal/media"
	"github.com/hammamikhairi/basil/internal/metrics"
	"github.com/hammamikhairi/basil/internal/recipe"
	"github.com/hammamikhairi/basil/internal/speech"
	"github.com/hammamikhairi/basil/internal/storage"
)

// runtime holds everything a command needs. Fields that depend on
// credentials or config switches may be nil.
type runtime struct {
	cfg     *config.Config
	log     *logger.Logger
	store   kv.Store
	recipes *recipe.MemorySource
	history domain.HistoryStore
	metrics *metrics.Metrics

	machine *engine.Machine
	engine  *engine.Engine
	agent   *gpt.Agent                // nil when no chat model is configured
	synth   *speech.CachedSynthesizer // nil when speech is off

	closers []func()
}

// Close releases resources in reverse order.
func (r *runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

func (r *runtime) onClose(fn func()) { r.closers = append(r.closers, fn) }

// newBaseRuntime wires logging, storage, recipes, and history. Commands that
// do not cook stop here.
func newBaseRuntime(cfg *config.Config) (*runtime, error) {
	r := &runtime{cfg: cfg}

	out, closeLog := openLogOutput(cfg.Logging.File)
	r.onClose(closeLog)
	r.log = logger.New(cfg.LogLevel(), out)
	r.onClose(func() { _ = r.log.Sync() })

	// Third-party libraries (whisper) log through the standard package.
	stdlog.SetOutput(out)
	stdlog.SetFlags(stdlog.Ltime)

	store, err := openStore(cfg, r.log)
	if err != nil {
		r.Close()
		return nil, err
	}
	r.store = store
	r.onClose(func() {
		if err := store.Close(); err != nil {
			r.log.Warn("closing store: %v", err)
		}
	})
	r.history = storage.NewKVStore(store, r.log)

	r.recipes = recipe.NewMemorySource(r.log)
	if cfg.Recipes.Dir != "" {
		n, err := recipe.LoadDir(cfg.Recipes.Dir, r.recipes, r.log)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("loading recipes: %w", err)
		}
		if n > 0 {
			r.log.Info("loaded %d recipes from %s", n, cfg.Recipes.Dir)
		}
	}
	return r, nil
}

// newCookRuntime adds the machine and every external collaborator the
// configuration and environment allow.
func newCookRuntime(ctx context.Context, cfg *config.Config) (*runtime, error) {
	r, err := newBaseRuntime(cfg)
	if err != nil {
		return nil, err
	}
	r.metrics = metrics.New()

	clients := newProviderClients(ctx, cfg, r.log)

	opts := []engine.Option{
		engine.WithTickInterval(cfg.TickInterval()),
		engine.WithMetrics(r.metrics),
		engine.WithStepNarration(cfg.Speech.NarrateSteps),
		engine.WithTipsTimeout(cfg.TipsTimeout()),
	}

	if gen := r.imageGenerator(clients); gen != nil {
		opts = append(opts,
			engine.WithImages(gen, media.WithRequestTimeout(cfg.ImageTimeout())),
			engine.WithImageLookahead(cfg.Images.Lookahead),
		)
	}

	if factory := r.narration(clients); factory != nil {
		opts = append(opts, engine.WithNarration(factory))
	}

	r.agent = r.chatAgent(clients)
	if tips := r.tipSource(clients); tips != nil {
		opts = append(opts, engine.WithTips(tips))
	}

	r.machine = engine.NewMachine(r.log, opts...)
	r.onClose(r.machine.Shutdown)
	r.engine = engine.New(r.recipes, r.history, r.machine, r.log)
	return r, nil
}

// ── Providers ────────────────────────────────────────────────────

type providerClients struct {
	gemini *genai.Client
	openai *openai.Client
}

func newProviderClients(ctx context.Context, cfg *config.Config, log *logger.Logger) providerClients {
	var pc providerClients
	if cfg.Keys.Gemini != "" {
		c, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  cfg.Keys.Gemini,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			log.Error("gemini client: %v", err)
		} else {
			pc.gemini = c
		}
	}
	if cfg.Keys.OpenAI != "" {
		c := openai.NewClient(option.WithAPIKey(cfg.Keys.OpenAI))
		pc.openai = &c
	}
	return pc
}

func (r *runtime) imageGenerator(pc providerClients) media.Generator {
	cfg := r.cfg.Images
	if !cfg.Enabled {
		return nil
	}

	var gen media.Generator
	switch {
	case cfg.Provider == config.ProviderGemini && pc.gemini != nil:
		gen = media.NewGemini(pc.gemini, cfg.Model, r.log)
	case cfg.Provider == config.ProviderOpenAI && pc.openai != nil:
		gen = media.NewOpenAI(pc.openai, cfg.Model, r.log)
	default:
		r.log.Info("images disabled: no %s credentials", cfg.Provider)
		return nil
	}

	if cfg.ArchiveDir != "" {
		gen = media.NewArchive(gen, cfg.ArchiveDir, r.log)
	}
	r.log.Info("images enabled (provider=%s)", cfg.Provider)
	return gen
}

func (r *runtime) narration(pc providerClients) engine.NarratorFactory {
	cfg := r.cfg.Speech
	if !cfg.Enabled {
		return nil
	}

	var synth speech.Synthesizer
	keys := r.cfg.Keys
	switch {
	case cfg.Provider == config.ProviderAzure && keys.AzureKey != "" && keys.AzureRegion != "":
		var azOpts []speech.AzureOption
		if cfg.Voice != "" {
			azOpts = append(azOpts, speech.WithVoice(cfg.Voice))
		}
		synth = speech.NewAzureClient(keys.AzureKey, keys.AzureRegion, r.log, azOpts...)
	case cfg.Provider == config.ProviderGemini && pc.gemini != nil:
		synth = speech.NewGeminiTTS(pc.gemini, "", cfg.Voice, r.log)
	case cfg.Provider == config.ProviderOpenAI && pc.openai != nil:
		synth = speech.NewOpenAITTS(pc.openai, "", cfg.Voice, r.log)
	default:
		r.log.Info("speech disabled: no %s credentials", cfg.Provider)
		return nil
	}

	player, err := speech.NewPlayer(r.log)
	if err != nil {
		r.log.Error("audio player init failed, speech disabled: %v", err)
		return nil
	}

	var tier kv.Store
	if cfg.DiskCache {
		tier = r.store
	}
	r.synth = speech.NewCachedSynthesizer(synth, tier, r.log)

	log, mt, cached := r.log, r.metrics, r.synth
	r.log.Info("speech enabled (provider=%s)", cfg.Provider)
	return func(ctx context.Context, onChange func(bool)) engine.Narrator {
		return speech.NewNarrator(ctx, cached, player, log,
			speech.WithNarrationMetrics(mt),
			speech.WithSpeakingChange(onChange),
		)
	}
}

// chatAgent prefers an explicit OpenAI-compatible endpoint, then the plain
// OpenAI key.
func (r *runtime) chatAgent(pc providerClients) *gpt.Agent {
	keys := r.cfg.Keys
	model := ""
	if r.cfg.Tips.Provider == config.ProviderOpenAI {
		model = r.cfg.Tips.Model
	}
	var chat gpt.Chatter
	switch {
	case keys.GPTKey != "" && keys.GPTEndpoint != "":
		chat = gpt.Dial(keys.GPTEndpoint, keys.GPTKey, r.log, gpt.WithModel(model))
	case pc.openai != nil:
		chat = gpt.NewClient(pc.openai, r.log, gpt.WithModel(model))
	default:
		r.log.Info("chat agent disabled: set %s and %s, or %s", config.EnvGPTChatKey, config.EnvGPTChatEndpoint, config.EnvOpenAIKey)
		return nil
	}
	return gpt.NewAgent(chat, r.log)
}

func (r *runtime) tipSource(pc providerClients) domain.TipSource {
	cfg := r.cfg.Tips
	if !cfg.Enabled {
		return nil
	}
	switch {
	case cfg.Provider == config.ProviderGemini && pc.gemini != nil:
		return media.NewGeminiTips(pc.gemini, cfg.Model, r.log)
	case cfg.Provider == config.ProviderOpenAI && r.agent != nil:
		return r.agent
	}
	r.log.Info("tips disabled: no %s credentials", cfg.Provider)
	return nil
}

// ── Infrastructure ───────────────────────────────────────────────

func openStore(cfg *config.Config, log *logger.Logger) (kv.Store, error) {
	if cfg.Storage.InMemory {
		return kv.NewMemory(), nil
	}
	dir := cfg.StoreDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	store, err := kv.OpenBadger(kv.BadgerOptions{Dir: dir, Log: log})
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", dir, err)
	}
	return store, nil
}

// openLogOutput opens the log file, falling back to stderr.
func openLogOutput(path string) (io.Writer, func()) {
	if path == "" || path == "stderr" {
		return os.Stderr, func() {}
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		_ = os.MkdirAll(dir, 0o755)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not open log file %s: %v (falling back to stderr)\n", path, err)
		return os.Stderr, func() {}
	}
	return f, func() {
		if err := f.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			fmt.Fprintf(os.Stderr, "closing log file: %v\n", err)
		}
	}
}
