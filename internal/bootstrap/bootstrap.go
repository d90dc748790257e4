package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Pond500/rag-mcp/internal/config"
	"github.com/Pond500/rag-mcp/internal/core/domain"
	"github.com/Pond500/rag-mcp/internal/core/extraction"
	"github.com/Pond500/rag-mcp/internal/core/ports"
	"github.com/Pond500/rag-mcp/internal/core/quality"
	"github.com/Pond500/rag-mcp/internal/core/retrieval"
	"github.com/Pond500/rag-mcp/internal/core/router"
	"github.com/Pond500/rag-mcp/internal/core/usecase"
	"github.com/Pond500/rag-mcp/internal/infrastructure/chunking"
	"github.com/Pond500/rag-mcp/internal/infrastructure/extractor/pdftext"
	"github.com/Pond500/rag-mcp/internal/infrastructure/extractor/vision"
	"github.com/Pond500/rag-mcp/internal/infrastructure/llm/ollama"
	"github.com/Pond500/rag-mcp/internal/infrastructure/queue/nats"
	"github.com/Pond500/rag-mcp/internal/infrastructure/repository/postgres"
	"github.com/Pond500/rag-mcp/internal/infrastructure/rerank"
	"github.com/Pond500/rag-mcp/internal/infrastructure/resilience"
	"github.com/Pond500/rag-mcp/internal/infrastructure/storage/localfs"
	"github.com/Pond500/rag-mcp/internal/infrastructure/vector/qdrant"
	"github.com/Pond500/rag-mcp/internal/observability/metrics"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Queue ports.MessageQueue
	Docs  ports.DocumentReader

	IngestUC  ports.DocumentIngestor
	ProcessUC ports.DocumentProcessor
	KBUC      ports.KnowledgeBaseManager
	SearchSvc ports.SearchService
	RouteUC   ports.RouteService
	ChatUC    ports.ChatService

	ServerMetrics *metrics.HTTPServerMetrics
	WorkerMetrics *metrics.WorkerMetrics

	closeFn func()
}

// Role selects which parts of the app a binary wires up; metrics registries
// differ between the API and the worker.
type Role string

const (
	RoleAPI    Role = "api"
	RoleWorker Role = "worker"
	RoleMCP    Role = "mcp"
)

func New(ctx context.Context, cfg config.Config, role Role, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewDocumentRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	descriptors := postgres.NewDescriptorStore(db)
	sessions := postgres.NewSessionStore(db)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, executor)
	embedder := ollama.NewEmbedder(ollamaClient)
	generator := ollama.NewGenerator(ollamaClient)

	vectorDB := qdrant.New(cfg.QdrantURL)
	chunker := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)

	tierConfigs := map[domain.ExtractionTier]domain.TierConfig{
		domain.TierFast: {
			Tier:           domain.TierFast,
			CostPerPage:    cfg.FastCostPerPage,
			QualityCeiling: 0.85,
			Timeout:        cfg.FastTierTimeout,
		},
		domain.TierPremium: {
			Tier:           domain.TierPremium,
			CostPerPage:    cfg.PremiumCostPerPage,
			QualityCeiling: 0.95,
			Model:          cfg.VisionModel,
			Timeout:        cfg.PremiumTierTimeout,
		},
	}
	extractors := []ports.TierExtractor{pdftext.New()}
	enabledTiers := []domain.ExtractionTier{domain.TierFast}
	if cfg.VisionAPIKey != "" {
		extractors = append(extractors, vision.New(vision.Config{
			APIKey:            cfg.VisionAPIKey,
			BaseURL:           cfg.VisionBaseURL,
			RequestsPerMinute: cfg.VisionRPM,
		}))
		enabledTiers = append(enabledTiers, domain.TierPremium)
	} else {
		logger.Warn("vision api key not set, premium extraction tier disabled")
	}
	controller := extraction.NewController(extractors, tierConfigs, quality.NewDefaultScorer(), logger)

	kbRouter := router.New(descriptors, cfg.RoutingFloor)
	retriever := retrieval.NewRetriever(embedder, vectorDB, rerank.NewLexicalScorer(), retrieval.Config{
		TopK: cfg.RAGTopK,
		RRFK: cfg.RAGFusionRRFK,
	}, logger)

	ingestUC := usecase.NewIngestDocumentUseCase(repo, descriptors, storage, queue)
	processUC := usecase.NewProcessDocumentUseCase(
		repo, storage, controller, chunker, embedder, vectorDB,
		cfg.TargetQuality, enabledTiers,
	)
	kbUC := usecase.NewKnowledgeBaseUseCase(descriptors, vectorDB, embedder, kbRouter)
	routeUC := usecase.NewRouteUseCase(embedder, kbRouter)
	chatUC := usecase.NewQueryUseCase(embedder, retriever, kbRouter, generator, sessions, cfg.SessionHistoryLimit)

	app := &App{
		Config: cfg,
		Logger: logger,

		Queue: queue,
		Docs:  repo,

		IngestUC:  ingestUC,
		ProcessUC: processUC,
		KBUC:      kbUC,
		SearchSvc: retriever,
		RouteUC:   routeUC,
		ChatUC:    chatUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}

	switch role {
	case RoleAPI:
		app.ServerMetrics = metrics.NewHTTPServerMetrics(string(role))
	case RoleWorker:
		app.WorkerMetrics = metrics.NewWorkerMetrics(string(role))
		processUC.SetExtractionObserver(extractionObserver{
			metrics: app.WorkerMetrics,
			service: string(role),
		})
	}

	return app, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

type extractionObserver struct {
	metrics *metrics.WorkerMetrics
	service string
}

func (o extractionObserver) ObserveExtraction(result domain.ExtractionResult) {
	o.metrics.ObserveExtraction(o.service, result)
}
