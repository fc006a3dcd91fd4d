// Copyright (C) 2025 CodeMatrix
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/codematrix-ai/codematrix/pkg/logging"
	"github.com/codematrix-ai/codematrix/services/backend/compose"
	"github.com/codematrix-ai/codematrix/services/backend/config"
	"github.com/codematrix-ai/codematrix/services/backend/ingest"
	"github.com/codematrix-ai/codematrix/services/backend/observability"
	"github.com/codematrix-ai/codematrix/services/backend/retrieve"
	"github.com/codematrix-ai/codematrix/services/backend/routes"
	"github.com/codematrix-ai/codematrix/services/backend/state"
	"github.com/codematrix-ai/codematrix/services/llm"
	"github.com/codematrix-ai/codematrix/services/preview"
	"github.com/codematrix-ai/codematrix/services/scanner"

	// --- OpenTelemetry imports ---
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func initTracer() (func(context.Context), error) {
	ctx := context.Background()

	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		// Tracing is optional; without a collector the backend runs untraced.
		slog.Info("OTEL_EXPORTER_OTLP_ENDPOINT not set, tracing disabled")
		return func(context.Context) {}, nil
	}
	conn, err := grpc.NewClient(otelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("codematrix-backend")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

// buildGenerators constructs the primary generator and, when the other
// provider is also configured, a quota fallback.
func buildGenerators(primaryBackend string) (llm.Generator, llm.Generator, map[string]bool) {
	backends := map[string]bool{"openai": false, "groq": false}

	openaiClient, openaiErr := llm.NewOpenAIClient()
	if openaiErr == nil {
		backends["openai"] = true
	}
	groqClient, groqErr := llm.NewGroqClient()
	if groqErr == nil {
		backends["groq"] = true
	}

	var primary, fallback llm.Generator
	switch primaryBackend {
	case "openai":
		if openaiErr != nil {
			log.Fatalf("Failed to initialize the OpenAI client: %v", openaiErr)
		}
		primary = openaiClient
		if groqErr == nil {
			fallback = groqClient
		}
	default:
		if primaryBackend != "groq" {
			slog.Warn("LLM_BACKEND_TYPE not set or invalid, defaulting to groq", "value", primaryBackend)
		}
		if groqErr != nil {
			log.Fatalf("Failed to initialize the Groq client: %v", groqErr)
		}
		primary = groqClient
		if openaiErr == nil {
			fallback = openaiClient
		}
	}

	slog.Info("Configured model backends", "primary", primary.Name(), "has_fallback", fallback != nil)
	return primary, fallback, backends
}

func main() {
	logger := logging.New(logging.Config{JSON: true, Service: "backend"})
	slog.SetDefault(logger.Slog())

	cfg := config.Load()

	cleanup, err := initTracer()
	if err != nil {
		log.Fatalf("failed to setup the OTLP tracer: %v", err)
	}
	defer cleanup(context.Background())

	observability.InitMetrics()

	primary, fallback, backends := buildGenerators(cfg.PrimaryBackend)

	embedder, err := llm.NewOpenAIEmbedder()
	if err != nil {
		log.Fatalf("Failed to initialize the embedding client: %v", err)
	}

	scan, err := scanner.NewScanner()
	if err != nil {
		log.Fatalf("FATAL: Could not initialize the security scanner: %v", err)
	}

	store := state.NewStore()
	fetcher := ingest.NewFetcher(ingest.FetcherConfig{
		MaxRepoBytes: cfg.MaxRepoBytes,
		Timeout:      cfg.FetchTimeout,
	})
	chunker := ingest.NewChunker(ingest.ChunkerConfig{ChunkSize: cfg.ChunkSize})
	indexer := ingest.NewIndexer(embedder, ingest.IndexerConfig{})
	pipeline := ingest.NewPipeline(store, fetcher, chunker, indexer, ingest.PipelineConfig{
		IndexTimeout: cfg.IndexTimeout,
	})
	defer pipeline.Shutdown()

	retriever := retrieve.NewRetriever(store, embedder)
	composer := compose.NewComposer(primary, compose.ComposerConfig{Fallback: fallback})
	previews := preview.NewStore(cfg.PreviewTTL)

	router := gin.Default()
	router.Use(otelgin.Middleware("codematrix-backend"))

	routes.SetupRoutes(router, store, pipeline, retriever, composer, scan, previews, backends)

	log.Println("Starting the backend server on port ", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
