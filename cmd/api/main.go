package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	apiconfig "portfolio_financials/pkg/api/config"
	"portfolio_financials/pkg/api/financials"
	"portfolio_financials/pkg/api/middleware"
	"portfolio_financials/pkg/core/classify"
	"portfolio_financials/pkg/core/config"
	"portfolio_financials/pkg/core/estimate"
	"portfolio_financials/pkg/core/extract"
	"portfolio_financials/pkg/core/llm"
	"portfolio_financials/pkg/core/logger"
	"portfolio_financials/pkg/core/store"
)

func main() {
	configPath := flag.String("config", envOr("CONFIG_PATH", "config/config.yaml"), "path to the YAML config file")
	flag.Parse()

	config.LoadEnv()
	log := logger.New()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *configPath).Msg("Failed to load config")
	}
	logger.SetLevel(cfg.Server.LogLevel)

	classifier, err := newClassifier(cfg.RulesPath)
	if err != nil {
		log.Fatal().Err(err).Str("rules_path", cfg.RulesPath).Msg("Failed to load classification rules")
	}

	llmMgr := llm.NewManager(cfg.LLM)
	var assistant *classify.Assistant
	if cfg.AssistClassification {
		assistant = classify.NewAssistant(llmMgr, logger.Component(log, "assistant"))
		log.Info().Str("provider", llmMgr.GetActiveProvider()).Msg("Assisted classification enabled")
	}

	ctx := context.Background()

	// Postgres is optional; without it statements go to the file vault only.
	var pool *pgxpool.Pool
	if cfg.Database.URL != "" {
		if err := store.InitDB(ctx, cfg.Database.URL); err != nil {
			log.Warn().Err(err).Msg("Database unavailable, using file storage")
		} else {
			pool = store.GetPool()
			if err := store.Migrate(ctx, pool); err != nil {
				log.Fatal().Err(err).Msg("Failed to migrate database")
			}
			defer store.Close()
		}
	}

	vault, err := store.NewStatementVault(pool, "")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open statement vault")
	}
	var investments *store.InvestmentRepo
	if pool != nil {
		investments = store.NewInvestmentRepo(pool)
	}

	mux := http.NewServeMux()
	financials.NewHandler(financials.Deps{
		Classifier:   classifier,
		Assistant:    assistant,
		Estimator:    estimate.NewEstimator(cfg.Estimate, logger.Component(log, "estimator")),
		Extractor:    extract.NewExtractor(cfg.Extract, logger.Component(log, "extractor")),
		Thresholds:   cfg.Variance,
		HeaderWindow: cfg.Extract.HeaderWindow,
		Vault:        vault,
		Investments:  investments,
		Log:          log,
	}).Routes(mux)
	apiconfig.NewHandler(llmMgr, cfg).Routes(mux)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	handler := middleware.Chain(mux,
		middleware.RequestID,
		middleware.Logger(log),
		middleware.Recovery(log),
		middleware.CORS,
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Server.Port).Bool("database", pool != nil).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited")
}

func newClassifier(rulesPath string) (*classify.Classifier, error) {
	if rulesPath == "" {
		return classify.NewDefault()
	}
	rules, err := classify.LoadRules(rulesPath)
	if err != nil {
		return nil, err
	}
	return classify.New(rules), nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
