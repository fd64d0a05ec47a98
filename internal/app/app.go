package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/markdave123-py/Careerlyst/internal/config"
	"github.com/markdave123-py/Careerlyst/internal/core"
	db "github.com/markdave123-py/Careerlyst/internal/core/database"
	"github.com/markdave123-py/Careerlyst/internal/core/llm"
	objectclient "github.com/markdave123-py/Careerlyst/internal/core/object-client"
	engine "github.com/markdave123-py/Careerlyst/internal/core/research_engine"
	"github.com/markdave123-py/Careerlyst/internal/metrics"
	"github.com/markdave123-py/Careerlyst/internal/services"
)

type App struct {
	DBClient  core.DbClient
	Generator *engine.Generator
	Server    *Server

	cfg     *config.Config
	log     logrus.FieldLogger
	closers []func() error
}

func NewApp(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (*App, error) {
	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	a := &App{cfg: cfg, log: log}

	dbClient, err := db.NewDatabaseClient(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	a.DBClient = dbClient
	a.closers = append(a.closers, dbClient.Close)
	log.WithField("driver", cfg.StoreDriver).Info("database initialized and ready")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	provider, err := a.newProvider(appCtx)
	if err != nil {
		a.Close()
		return nil, err
	}

	opts := []engine.GeneratorOption{
		engine.WithLogger(log),
		engine.WithMetrics(m),
		engine.WithRateLimit(cfg.ProviderRPS),
	}
	if cfg.ArchiveEnabled() {
		objClient, err := objectclient.NewS3Client(appCtx, cfg, log)
		if err != nil {
			a.Close()
			return nil, err
		}
		archive, err := objectclient.NewResearchArchive(objClient, cfg.ArchiveBucket)
		if err != nil {
			a.Close()
			return nil, err
		}
		opts = append(opts, engine.WithArchive(archive))
		log.WithField("bucket", cfg.ArchiveBucket).Info("research archive enabled")
	}

	a.Generator = engine.NewGenerator(dbClient, dbClient, provider, engine.Config{
		Concurrency:   cfg.ResearchConcurrency,
		VectorTimeout: cfg.ResearchVectorTimeout,
		BatchTimeout:  cfg.ResearchBatchTimeout,
		QueueSize:     cfg.ResearchQueueSize,
	}, opts...)

	research := services.NewResearchService(dbClient, dbClient, engine.NewAggregator(dbClient, m), a.Generator)
	companies := services.NewCompanyService(dbClient, dbClient, log)

	router := NewRouter(cfg, Routes{
		Research:  research,
		Companies: companies,
		DB:        dbClient,
		Gatherer:  reg,
		Log:       log,
	})
	a.Server = NewServer(cfg, router, log)

	return a, nil
}

// newProvider returns nil, not an error, when credentials are missing: the server still
// serves stored research and generation requests fail with provider_unavailable.
func (a *App) newProvider(ctx context.Context) (core.ResearchProvider, error) {
	var (
		provider core.ResearchProvider
		err      error
	)
	switch a.cfg.ResearchProvider {
	case "gemini":
		var g *llm.GeminiResearcher
		g, err = llm.NewGeminiResearcher(ctx, a.cfg.AIAPIKey, a.cfg.GenModel)
		if err == nil {
			a.closers = append(a.closers, g.Close)
			provider = g
		}
	default:
		var p *llm.PerplexityResearcher
		p, err = llm.NewPerplexityResearcher(a.cfg.PerplexityBaseURL, a.cfg.PerplexityAPIKey, a.cfg.PerplexityModel)
		if err == nil {
			provider = p
		}
	}

	if errors.Is(err, core.ErrProviderUnavailable) {
		a.log.WithError(err).Warn("research provider not configured; generation disabled")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize the research provider, %w", err)
	}
	a.log.WithField("provider", provider.Name()).Info("research provider ready")
	return provider, nil
}

// Run starts the research workers and the HTTP server, and shuts both down when ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	a.Generator.Start(workerCtx, a.cfg.ResearchWorkers)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(a.Server.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return a.Server.Shutdown(shutdownCtx)
	})
	err := g.Wait()

	// Workers finish the job in hand; queued jobs are dropped.
	stopWorkers()
	a.Generator.Wait()
	return err
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.WithError(err).Warn("close")
		}
	}
	a.closers = nil
}
