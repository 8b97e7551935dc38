package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/riskibarqy/moneyball/external/gemini"
	"github.com/riskibarqy/moneyball/internal/config"
	"github.com/riskibarqy/moneyball/internal/domain/player"
	"github.com/riskibarqy/moneyball/internal/infrastructure/dataset/csvsource"
	"github.com/riskibarqy/moneyball/internal/infrastructure/dataset/postgres"
	"github.com/riskibarqy/moneyball/internal/interfaces/httpapi"
	"github.com/riskibarqy/moneyball/internal/interfaces/mcptool"
	"github.com/riskibarqy/moneyball/internal/platform/logging"
	"github.com/riskibarqy/moneyball/internal/platform/resilience"
	"github.com/riskibarqy/moneyball/internal/usecase"
)

// Services is the usecase layer shared by the API and the CLI.
type Services struct {
	Recommendations *usecase.RecommendationService
	Narratives      *usecase.NarrativeService
}

// NewDatasetSource picks the configured season loader. db is only used for
// the postgres source and may be nil otherwise.
func NewDatasetSource(cfg config.Config, db *sqlx.DB) (player.Source, error) {
	switch cfg.DatasetSource {
	case config.DatasetSourceCSV:
		return csvsource.New(cfg.DatasetPath), nil
	case config.DatasetSourcePostgres:
		if db == nil {
			return nil, fmt.Errorf("postgres dataset source needs a database")
		}
		return postgres.NewSource(db, postgres.Options{
			Table:        cfg.DatasetTable,
			Season:       cfg.DatasetSeason,
			Competitions: cfg.DatasetCompetitions,
			Timeout:      cfg.DBQueryTimeout,
		})
	default:
		return nil, fmt.Errorf("unknown dataset source %q", cfg.DatasetSource)
	}
}

// LoadDataset loads the season and applies the missing-value strategy.
func LoadDataset(ctx context.Context, source player.Source, strategy player.MissingStrategy, logger *logging.Logger) (player.Table, error) {
	if logger == nil {
		logger = logging.Default()
	}

	started := time.Now()
	table, err := source.Load(ctx)
	if err != nil {
		return player.Table{}, fmt.Errorf("load dataset: %w", err)
	}
	if table.Len() == 0 {
		return player.Table{}, fmt.Errorf("load dataset: no player rows")
	}

	filled := player.FillMissing(table, strategy)
	logger.InfoContext(ctx, "dataset loaded",
		"rows", table.Len(),
		"kept_rows", filled.Len(),
		"columns", len(table.Columns),
		"missing_strategy", strategy,
		"duration", time.Since(started),
	)
	return filled, nil
}

// NewServices builds and prepares the usecases over table.
func NewServices(ctx context.Context, cfg config.Config, table player.Table, logger *logging.Logger) (*Services, error) {
	recommendations, err := usecase.NewRecommendationService(table, usecase.RecommendationConfig{
		Scaler:     cfg.SimilarityScaler,
		Metric:     cfg.SimilarityMetric,
		Mode:       cfg.SimilarityMode,
		TopN:       cfg.SimilarityTopN,
		Neighbors:  cfg.SimilarityNeighbors,
		Workers:    cfg.BatchWorkers,
		MinMinutes: cfg.SimilarityMinMinutes,
		Position:   cfg.SimilarityPosition,
		Features:   cfg.SimilarityFeatures,
	}, logger.Named("recommendation"))
	if err != nil {
		return nil, err
	}
	if err := recommendations.PrepareDefaults(ctx); err != nil {
		return nil, err
	}

	var generator usecase.TextGenerator
	if cfg.NarrativeEnabled {
		generator = gemini.NewClient(gemini.ClientConfig{
			BaseURL:        cfg.GeminiBaseURL,
			APIKey:         cfg.GeminiAPIKey,
			Model:          cfg.GeminiModel,
			Timeout:        cfg.GeminiTimeout,
			MaxAttempts:    cfg.GeminiMaxRetries,
			RetryBaseDelay: cfg.GeminiRetryBaseDelay,
			RatePerMinute:  cfg.GeminiRatePerMinute,
			Logger:         logger.Named("gemini"),
			CircuitBreaker: resilience.CircuitBreakerConfig{
				Enabled:          cfg.GeminiCircuitEnabled,
				FailureThreshold: cfg.GeminiCircuitFailureCount,
				OpenTimeout:      cfg.GeminiCircuitOpenTimeout,
				HalfOpenMaxReq:   cfg.GeminiCircuitHalfOpenMaxReq,
			},
		})
	}
	narratives := usecase.NewNarrativeService(generator, recommendations, usecase.NarrativeConfig{
		Enabled:  cfg.NarrativeEnabled,
		Language: cfg.NarrativeLanguage,
		CacheTTL: cfg.NarrativeCacheTTL,
	}, logger.Named("narrative"))

	return &Services{
		Recommendations: recommendations,
		Narratives:      narratives,
	}, nil
}

// NewHTTPServer loads the dataset, prepares the engine and returns the API
// server plus a cleanup for the resources it opened.
func NewHTTPServer(ctx context.Context, cfg config.Config, logger *logging.Logger) (*http.Server, func() error, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.HTTPAddr == "" {
		return nil, nil, fmt.Errorf("http server addr cannot be empty")
	}

	cleanup := func() error { return nil }
	var db *sqlx.DB
	if cfg.DatasetSource == config.DatasetSourcePostgres {
		var err error
		db, err = OpenDatabase(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		cleanup = db.Close
	}

	services, err := buildServices(ctx, cfg, db, logger)
	if err != nil {
		_ = cleanup()
		return nil, nil, err
	}

	var mcpHandler http.Handler
	if cfg.MCPEnabled {
		mcpServer, tools := mcptool.NewServer(services.Recommendations, cfg.ServiceVersion, logger.Named("mcp"))
		mcpHandler = mcptool.NewHandler(mcpServer)
		logger.Info("mcp tools registered", "path", cfg.MCPPath, "tools", len(tools.Registry()))
	}

	handler := httpapi.NewHandler(services.Recommendations, services.Narratives, logger)
	router := httpapi.NewRouter(handler, mcpHandler, cfg.MCPPath, logger, cfg.CORSAllowedOrigins)

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return server, cleanup, nil
}

func buildServices(ctx context.Context, cfg config.Config, db *sqlx.DB, logger *logging.Logger) (*Services, error) {
	source, err := NewDatasetSource(cfg, db)
	if err != nil {
		return nil, err
	}
	table, err := LoadDataset(ctx, source, cfg.DatasetMissing, logger)
	if err != nil {
		return nil, err
	}
	return NewServices(ctx, cfg, table, logger)
}
