// Package app assembles the consultant service: configuration, storage,
// upstream client, trace pipeline, HTTP surface, and lifecycle.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tailorblend/consultant-api/internal/api"
	"github.com/tailorblend/consultant-api/internal/blend"
	"github.com/tailorblend/consultant-api/internal/catalog"
	"github.com/tailorblend/consultant-api/internal/config"
	"github.com/tailorblend/consultant-api/internal/consultant"
	"github.com/tailorblend/consultant-api/internal/conversation"
	"github.com/tailorblend/consultant-api/internal/instructions"
	"github.com/tailorblend/consultant-api/internal/openai"
	"github.com/tailorblend/consultant-api/internal/orchestrator"
	"github.com/tailorblend/consultant-api/internal/server"
	"github.com/tailorblend/consultant-api/internal/session"
	"github.com/tailorblend/consultant-api/internal/storage"
	"github.com/tailorblend/consultant-api/internal/storage/memory"
	"github.com/tailorblend/consultant-api/internal/storage/sqlite"
	"github.com/tailorblend/consultant-api/internal/tokens"
	"github.com/tailorblend/consultant-api/internal/trace"
)

// App owns every long-lived component of the consultant service.
type App struct {
	cfg     *config.Config
	watcher *config.Watcher
	logger  *slog.Logger

	traces     *trace.Store
	hub        *trace.Hub
	processor  *trace.Processor
	transcript storage.TranscriptStore
	instr      *instructions.Store
	client     *openai.Client
	handler    *api.Handler
	server     *server.Server

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// Option configures the app.
type Option func(*App)

// WithLogger sets the application logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *App) {
		a.logger = logger
	}
}

// New loads configuration and wires all components. The multi-agent
// orchestrator is not built here; it needs the ingredient catalogs parsed,
// which happens during warm-up after Start.
func New(configPath string, opts ...Option) (*App, error) {
	a := &App{logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}

	a.watcher = config.NewWatcher(configPath, a.logger)
	cfg, err := a.watcher.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	a.cfg = cfg

	a.transcript, err = newTranscriptStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("open transcript store: %w", err)
	}

	a.traces = trace.NewStore()
	a.hub = trace.NewHub(a.logger)
	a.processor = trace.NewProcessor(a.traces, a.hub, a.logger)

	counter := tokens.NewCounter()
	pricer := tokens.NewPricer(cfg.Pricing.USDToZAR)
	tracker := session.NewTracker(pricer)
	a.instr = instructions.NewStore(cfg.Spec.InstructionsPath(), cfg.Spec.PractitionerInstructionsPath())
	recorder := conversation.NewRecorder(a.transcript, a.logger)

	clientOpts := []openai.ClientOption{}
	if cfg.OpenAI.BaseURL != "" {
		clientOpts = append(clientOpts, openai.WithBaseURL(cfg.OpenAI.BaseURL))
	}
	a.client = openai.NewClient(cfg.OpenAI.APIKey, clientOpts...)

	blendTool := blend.NewCreator(
		blend.WithAPIURL(cfg.Blend.APIURL),
		blend.WithLogger(a.logger))

	chat := consultant.NewService(a.client, a.instr, tracker, counter, pricer, a.processor,
		consultant.WithTurnRecorder(recorder),
		consultant.WithTool(blendTool),
		consultant.WithLogger(a.logger))

	handlerOpts := []api.Option{
		api.WithSessionResetter(tracker),
		api.WithSessionResetter(recorder),
		api.WithLogger(a.logger),
	}
	if a.transcript != nil {
		handlerOpts = append(handlerOpts, api.WithTranscriptStore(a.transcript))
	}
	a.handler = api.NewHandler(chat, a.instr, tracker, a.traces, a.hub, handlerOpts...)

	a.server = server.New(cfg.Server.Port, cfg.Server.AllowedOrigins, a.logger)
	a.handler.Register(a.server.Router)

	return a, nil
}

// Start runs warm-up in the background and serves HTTP. It blocks until the
// listener fails or Shutdown is called. The liveness probe answers as soon
// as the listener is up; the readiness probe waits for warm-up.
func (a *App) Start(ctx context.Context) error {
	ctx, a.cancel = context.WithCancel(ctx)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.warmUp(ctx)
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.watcher.Watch(ctx, func(cfg *config.Config) {
			a.logger.Info("configuration file changed; most settings apply after restart")
		}); err != nil {
			a.logger.Warn("config watcher stopped", slog.Any("error", err))
		}
	}()

	return a.server.Start()
}

// warmUp does the slow startup work: loading the instructions files and the
// ingredient catalogs, then wiring the multi-agent orchestrator.
func (a *App) warmUp(ctx context.Context) {
	if _, err := a.instr.LoadConsumer(); err != nil {
		a.logger.Warn("instructions file not readable; chat turns will fail until it exists",
			slog.Any("error", err))
	}

	database := catalog.NewDatabase(a.cfg.Spec.IngredientsPath(), a.cfg.Spec.BaseMixesPath())
	if _, err := database.IngredientsContext(); err != nil {
		a.logger.Warn("ingredients catalog not readable; formulation disabled",
			slog.Any("error", err))
	} else {
		a.handler.SetBlendService(orchestrator.New(a.client, database, a.processor, a.logger))
	}

	if ctx.Err() != nil {
		return
	}
	a.handler.SetReady()
	a.logger.Info("warm-up complete; service is ready")
}

// Shutdown stops the HTTP server, the background workers, and the stores.
func (a *App) Shutdown(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}

	err := a.server.Shutdown(ctx)
	a.wg.Wait()

	a.processor.Shutdown()
	if a.transcript != nil {
		if cerr := a.transcript.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// newTranscriptStore returns nil for the "none" backend; the recorder treats
// a nil store as a no-op.
func newTranscriptStore(cfg *config.Config) (storage.TranscriptStore, error) {
	switch cfg.Storage.Type {
	case "sqlite":
		return sqlite.New(cfg.Storage.SQLite.Path)
	case "none":
		return nil, nil
	default:
		return memory.New(), nil
	}
}
