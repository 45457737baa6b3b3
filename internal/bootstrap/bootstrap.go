package bootstrap

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kirillkom/flipscout/internal/catalog"
	"github.com/kirillkom/flipscout/internal/config"
	"github.com/kirillkom/flipscout/internal/core/comps"
	"github.com/kirillkom/flipscout/internal/core/decision"
	"github.com/kirillkom/flipscout/internal/core/ports"
	"github.com/kirillkom/flipscout/internal/core/usecase"
	"github.com/kirillkom/flipscout/internal/core/visual"
	"github.com/kirillkom/flipscout/internal/infrastructure/cache"
	"github.com/kirillkom/flipscout/internal/infrastructure/marketplace"
	"github.com/kirillkom/flipscout/internal/infrastructure/queue/nats"
	"github.com/kirillkom/flipscout/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/flipscout/internal/infrastructure/resilience"
	"github.com/kirillkom/flipscout/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/flipscout/internal/infrastructure/vector/qdrant"
	"github.com/kirillkom/flipscout/internal/infrastructure/vision/embedding"
	"github.com/kirillkom/flipscout/internal/infrastructure/vision/ollama"
)

// Options carries process-specific hooks, mostly metrics.
type Options struct {
	LagObserver  func(time.Duration)
	ScanObserver usecase.ScanObserver
}

type App struct {
	Config config.Config
	Logger *zap.Logger

	Queue     ports.MessageQueue
	Decisions *usecase.DecisionUseCase
	Intake    *usecase.ScanIntakeUseCase
	Scans     *usecase.ConfirmScanUseCase
	ProcessUC *usecase.ProcessScanUseCase
	Library   *usecase.VisualLibraryUseCase

	closers []func()
}

func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts Options) (_ *App, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	app := &App{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	executor := resilience.NewExecutor(ResilienceConfig(cfg.Resilience), logger)

	db, err := postgres.OpenDB(cfg.Postgres.DSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	app.closers = append(app.closers, func() { _ = db.Close() })
	repo := postgres.NewScanRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := localfs.New(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	queue, err := nats.New(cfg.NATS.URL, cfg.NATS.Subject, nats.Options{
		ResilienceExecutor: executor,
		Logger:             logger,
		LagObserver:        opts.LagObserver,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}
	app.closers = append(app.closers, queue.Close)
	app.Queue = queue

	compsCache, closeCache, err := cache.Open(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.KeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("init comps cache: %w", err)
	}
	app.closers = append(app.closers, func() { _ = closeCache() })

	market := marketplace.New(marketplace.Options{
		BaseURL:           cfg.Comps.MarketplaceURL,
		Token:             cfg.Comps.MarketplaceToken,
		RequestsPerSecond: cfg.Comps.RequestsPerSecond,
	}, executor)

	decisions, err := newDecisionUseCase(cfg, market, compsCache, logger)
	if err != nil {
		return nil, err
	}

	dataset, err := loadCatalog(cfg.Catalog)
	if err != nil {
		return nil, err
	}

	embedder := embedding.New(cfg.Vision.EmbeddingURL, cfg.Vision.EmbeddingModel, cfg.Vision.Dimension, cfg.Vision.Timeout, executor)
	classifier := ollama.NewStageClassifier(ollama.New(cfg.Vision.OllamaURL, cfg.Vision.VisionModel, cfg.Vision.Timeout, executor))
	library := qdrant.New(cfg.Qdrant.URL, cfg.Qdrant.Collection, executor)
	matcher := visual.NewMatcher(MatcherConfig(cfg.Matcher, cfg.Vision.Dimension))

	app.Decisions = decisions
	app.Intake = usecase.NewScanIntakeUseCase(repo, storage, queue)
	app.Scans = usecase.NewConfirmScanUseCase(repo)
	app.Library = usecase.NewVisualLibraryUseCase(storage, embedder, library, matcher, logger)
	app.ProcessUC = usecase.NewProcessScanUseCase(usecase.ProcessScanDeps{
		Repo:       repo,
		Storage:    storage,
		Embedder:   embedder,
		Library:    library,
		Classifier: classifier,
		Listings:   market,
		Dataset:    dataset,
		Matcher:    matcher,
		Observer:   opts.ScanObserver,
		Logger:     logger,
	}, usecase.ProcessScanConfig{
		Pipeline:         PipelineConfig(cfg.Pipeline),
		NeighborsPerItem: cfg.Matcher.NeighborsPerItem,
	})

	logger.Info("application wired",
		zap.String("comps_mode", cfg.Comps.Mode),
		zap.Bool("redis_cache", cfg.Redis.Addr != ""),
		zap.Int("catalog_version", dataset.Version()),
	)
	return app, nil
}

// NewOfflineDecisions builds a decision service that never leaves the
// process: comps come only from the request.
func NewOfflineDecisions(cfg config.Config, logger *zap.Logger) (*usecase.DecisionUseCase, error) {
	cfg.Comps.Mode = string(comps.ModeManual)
	return newDecisionUseCase(cfg, nil, nil, logger)
}

func newDecisionUseCase(cfg config.Config, live ports.SoldListingSource, compsCache ports.CompsCache, logger *zap.Logger) (*usecase.DecisionUseCase, error) {
	engine, err := decision.NewEngine(DecisionParams(cfg.Decision))
	if err != nil {
		return nil, fmt.Errorf("init decision engine: %w", err)
	}
	mode, err := comps.ParseSourceMode(cfg.Comps.Mode)
	if err != nil {
		return nil, fmt.Errorf("init comps provider: %w", err)
	}
	provider := comps.NewProvider(comps.SourceConfig{
		Mode:     mode,
		CacheTTL: cfg.Comps.CacheTTL,
		Limit:    cfg.Comps.Limit,
		Rules:    CompsRules(cfg.Comps),
	}, live, compsCache, logger)
	return usecase.NewDecisionUseCase(engine, provider, logger), nil
}

func loadCatalog(cfg config.CatalogConfig) (*catalog.Dataset, error) {
	if cfg.Path == "" {
		dataset, err := catalog.Default()
		if err != nil {
			return nil, fmt.Errorf("load default catalog: %w", err)
		}
		return dataset, nil
	}
	dataset, err := catalog.LoadFile(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("load catalog %s: %w", cfg.Path, err)
	}
	return dataset, nil
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
