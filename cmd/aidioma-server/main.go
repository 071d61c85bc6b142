package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/aidioma/aidioma/internal/bootstrap"
	"github.com/aidioma/aidioma/internal/config"
	"github.com/aidioma/aidioma/internal/evaluator"
	"github.com/aidioma/aidioma/internal/history"
	"github.com/aidioma/aidioma/internal/inference"
	"github.com/aidioma/aidioma/internal/inference/openai"
	"github.com/aidioma/aidioma/internal/server"
)

var configFile string

func main() {
	rootCommand := &cobra.Command{
		Use:           "aidioma-server",
		Short:         "AIdioma word evaluation HTTP server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
	}
	rootCommand.Flags().StringVar(&configFile, "config", "", "config file path")

	if err := rootCommand.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	app := bootstrap.New()

	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("config.Load() > %w", err)
	}

	counters := evaluator.NewCounters()

	var client inference.Client
	if cfg.OpenAI.APIKey != "" {
		openaiClient := openai.NewClient(
			cfg.OpenAI.APIKey,
			cfg.OpenAI.Model,
			uint(cfg.Evaluator.MaxRetries),
			openai.WithAttemptTimeout(time.Duration(cfg.Evaluator.AttemptTimeoutMs)*time.Millisecond),
			openai.WithRetryObserver(func(attempt uint, err error) {
				counters.Inc(evaluator.MetricRetries)
			}),
		)
		app.AddShutdownHook(func(ctx context.Context) error {
			return openaiClient.Close()
		})
		client = openaiClient
		log.Printf("Using OpenAI provider (model: %s)", openaiClient.GetModel())
	} else {
		log.Printf("No OPENAI_API_KEY configured, evaluating heuristically only")
	}

	service := evaluator.NewService(client, counters, evaluator.Options{
		CacheTTL:            time.Duration(cfg.Evaluator.CacheTTLSeconds) * time.Second,
		CacheMaxEntries:     cfg.Evaluator.CacheMaxEntries,
		SimilarityThreshold: cfg.Evaluator.SimilarityThreshold,
		OverallTimeout:      time.Duration(cfg.Evaluator.OverallTimeoutMs) * time.Millisecond,
	})

	var historyRepository *history.Repository
	if cfg.Database.Enabled() {
		db, err := history.Open(cfg.Database)
		if err != nil {
			return fmt.Errorf("history.Open() > %w", err)
		}
		app.AddShutdownHook(func(ctx context.Context) error {
			return db.Close()
		})
		historyRepository = history.NewRepository(db)
		if err := historyRepository.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("historyRepository.EnsureSchema() > %w", err)
		}
	}

	handler := server.NewEvaluateHandler(service, counters, historyRepository)
	mux := handler.Routes()

	srv := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: corsMiddleware(cfg.Server.AllowedOrigin, h2c.NewHandler(mux, &http2.Server{})),
	}
	app.AddShutdownHook(srv.Shutdown)

	return app.Run(ctx, func(ctx context.Context) error {
		log.Printf("Starting server on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
}

func corsMiddleware(allowedOrigin string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
