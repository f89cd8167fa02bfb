// Copyright (C) 2025 Aare AI (engineering@aare.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"

	"github.com/aare-ai/aare-core/pkg/logging"
	"github.com/aare-ai/aare-core/services/verifier"
	"github.com/aare-ai/aare-core/services/verifier/config"
	"github.com/aare-ai/aare-core/services/verifier/engine"
	"github.com/aare-ai/aare-core/services/verifier/ontology"
	"github.com/aare-ai/aare-core/services/verifier/telemetry"
)

var (
	servePort       int
	serveConfigPath string
	serveDebug      bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Aare verification API server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides config)")
	serveCmd.Flags().StringVar(&serveConfigPath, "config", "", "Path to a YAML config file")
	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "Enable debug mode")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(serveConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if servePort != 0 {
		cfg.Port = servePort
	}
	if serveDebug {
		cfg.Debug = true
	}

	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	level := logging.LevelInfo
	if cfg.Debug {
		level = logging.LevelDebug
	}
	logger := logging.New(logging.Config{
		Level:   level,
		LogDir:  "~/.aare/logs",
		Service: "verifier",
	})
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	ctx := context.Background()

	shutdown, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer shutdown(context.Background())

	metrics, err := telemetry.NewMetrics(otel.Meter("aare.verifier"))
	if err != nil {
		return fmt.Errorf("create metrics: %w", err)
	}

	loader, err := buildLoader(ctx, cfg)
	if err != nil {
		return fmt.Errorf("build ontology loader: %w", err)
	}

	svc := verifier.NewService(verifier.ServiceConfig{
		Loader:         loader,
		Verifier:       engine.New(engine.Options{BudgetFloor: cfg.BudgetFloor}),
		RequestTimeout: cfg.RequestTimeout,
		Metrics:        metrics,
	})
	handlers := verifier.NewHandlers(svc)

	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.Debug {
		router.Use(gin.Logger())
	}
	router.Use(otelgin.Middleware("verifier-service"))
	router.Use(verifier.CORSMiddleware(cfg.AllowedOrigins))

	v1 := router.Group("/v1")
	verifier.RegisterRoutes(v1, handlers)

	if metricsHandler := telemetry.MetricsHandler(); metricsHandler != nil {
		router.GET("/metrics", gin.WrapH(metricsHandler))
	}

	printBanner(cfg.Port, cfg.OntologyBucket)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		slog.Info("Shutting down Aare verifier server")
		shutdown(context.Background())
		os.Exit(0)
	}()

	addr := fmt.Sprintf(":%d", cfg.Port)
	slog.Info("Starting Aare verifier server", slog.String("address", addr))
	if err := router.Run(addr); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	return nil
}

// buildLoader assembles the ontology store chain: the GCS bucket first when
// configured, then the embedded rule sets as fallback.
func buildLoader(ctx context.Context, cfg config.Config) (*ontology.Loader, error) {
	stores := []ontology.Store{}
	if cfg.OntologyBucket != "" {
		gcs, err := ontology.NewGCSStore(ctx, cfg.OntologyBucket, cfg.CredentialsFile)
		if err != nil {
			return nil, err
		}
		stores = append(stores, gcs)
		slog.Info("Serving ontologies from GCS", slog.String("bucket", cfg.OntologyBucket))
	}
	stores = append(stores, ontology.EmbeddedStore{})
	return ontology.NewLoader(stores...), nil
}

func printBanner(port int, bucket string) {
	source := "embedded only"
	if bucket != "" {
		source = "gs://" + bucket + " + embedded"
	}

	banner := `
╔═══════════════════════════════════════════════════════════════════╗
║                        AARE VERIFIER SERVER                       ║
╠═══════════════════════════════════════════════════════════════════╣
║                                                                   ║
║  Formal verification of LLM output against compliance rules.      ║
║  Ontologies: %-50s   ║
║                                                                   ║
║  Quick Start:                                                     ║
║  ┌─────────────────────────────────────────────────────────────┐  ║
║  │ # Health check                                              │  ║
║  │ curl http://localhost:%d/v1/verify/health                 │  ║
║  │                                                             │  ║
║  │ # List loadable ontologies                                  │  ║
║  │ curl http://localhost:%d/v1/verify/ontologies | jq        │  ║
║  │                                                             │  ║
║  │ # Verify LLM output                                         │  ║
║  │ curl -X POST http://localhost:%d/v1/verify \              │  ║
║  │   -H "Content-Type: application/json" \                     │  ║
║  │   -d '{"llm_output": "DTI of 48%%, approved"}'              │  ║
║  └─────────────────────────────────────────────────────────────┘  ║
║                                                                   ║
║  Press Ctrl+C to stop                                             ║
╚═══════════════════════════════════════════════════════════════════╝
`
	fmt.Printf(banner, source, port, port, port)
}
