package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"wayfindr.app/relay/common/id"
	"wayfindr.app/relay/common/llm"
	"wayfindr.app/relay/common/logger"
	"wayfindr.app/relay/common/otel"
	"wayfindr.app/relay/core/config"
	"wayfindr.app/relay/core/db"
	"wayfindr.app/relay/core/vectordb"
	"wayfindr.app/relay/internal/brain"
	"wayfindr.app/relay/internal/http/middleware"
	httprouter "wayfindr.app/relay/internal/http/router"
	"wayfindr.app/relay/internal/pipeline"
	"wayfindr.app/relay/internal/queue"
	"wayfindr.app/relay/internal/service"
	"wayfindr.app/relay/internal/store"
	"wayfindr.app/relay/internal/stream"
)

func main() {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeServer)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	if telemetry != nil {
		slog.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint)
	} else {
		slog.InfoContext(ctx, "otel disabled (no endpoint configured)")
	}

	slog.InfoContext(ctx, "relay starting",
		"env", cfg.Env,
		"service", cfg.OTel.ServiceName,
		"waypoints", len(cfg.Waypoints))

	if err := id.Init(1); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "error", err)
		os.Exit(1)
	}

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()
	slog.InfoContext(ctx, "database connected")

	qdrantClient, err := vectordb.New(ctx, vectordb.Config{
		Host:       cfg.Qdrant.Host,
		Port:       cfg.Qdrant.Port,
		APIKey:     cfg.Qdrant.APIKey,
		UseTLS:     cfg.Qdrant.UseTLS,
		Collection: cfg.Qdrant.Collection,
		Dimensions: cfg.Embedding.Dimensions,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to qdrant", "error", err)
		os.Exit(1)
	}
	defer qdrantClient.Close()
	slog.InfoContext(ctx, "qdrant connected", "collection", cfg.Qdrant.Collection)

	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		slog.ErrorContext(ctx, "failed to parse redis url", "error", err)
		os.Exit(1)
	}

	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		slog.ErrorContext(ctx, "failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	slog.InfoContext(ctx, "redis connected", "stream", cfg.Redis.CommandStream)

	llmClient := newLLMClient(ctx, cfg.LLM)
	embedder := newEmbedder(ctx, cfg.Embedding)

	stores := store.NewStores(database.Queries(), qdrantClient)
	vocab := brain.NewVocabulary(cfg.Waypoints)
	policy := brain.RetryPolicy{Retries: cfg.Chat.ModelRetries, Timeout: cfg.Chat.CompletionTimeout}
	commands := queue.NewCommandProducer(redisClient, cfg.Redis.CommandStream)

	chatPipeline := pipeline.New(pipeline.Deps{
		Classifier: brain.NewModelClassifier(llmClient, policy),
		Dispatcher: brain.NewDefaultRegistry(cfg.Chat.FunctionTimeout, vocab, commands),
		Context: brain.NewContextAggregator(stores.Messages(), stores.Telemetry(), embedder, brain.AggregatorConfig{
			HistoryLimit: cfg.Chat.HistoryLimit,
			RecallLimit:  cfg.Chat.RecallLimit,
			MaxRobots:    cfg.Chat.MaxRobots,
			ActiveWindow: cfg.Chat.ActiveRobotWindow,
			CacheTTL:     cfg.Chat.RobotCacheTTL,
		}),
		Synthesizer: brain.NewResponseSynthesizer(llmClient, vocab, policy),
		Messages:    stores.Messages(),
		Embedder:    embedder,
		Vocab:       vocab,
	})

	multiplexer := stream.NewMultiplexer(stream.Config{
		Limit:        cfg.Stream.Limit,
		WindowSize:   cfg.Stream.WindowSize,
		ErrorBackoff: cfg.Stream.ErrorBackoff,
	},
		stream.NewTelemetrySource(stores.Telemetry(), cfg.Stream.TelemetryInterval),
		stream.NewConversationSource(stores.Messages(), cfg.Stream.ConversationInterval),
	)

	services := service.NewServices(service.ServicesConfig{
		Stores:   stores,
		Pipeline: chatPipeline,
		Embedder: embedder,
		Stream:   multiplexer,
		Telemetry: service.TelemetryConfig{
			ActiveWindow: cfg.Chat.ActiveRobotWindow,
			MaxRobots:    cfg.Chat.MaxRobots,
			Dimensions:   cfg.Embedding.Dimensions,
		},
		Health: []service.HealthCheck{
			{Name: "postgres", Check: database.Ping},
			{Name: "qdrant", Check: qdrantClient.Ping},
			{Name: "redis", Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }},
		},
	})

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := setupRouter(cfg, services)
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      150 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.InfoContext(ctx, "http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(shutdownCtx, "shutdown complete")
}

// newLLMClient returns nil when no provider is configured; classification
// and replies then run on keywords and templates.
func newLLMClient(ctx context.Context, cfg config.LLMConfig) llm.Client {
	if !cfg.Enabled() {
		slog.WarnContext(ctx, "llm disabled, using keyword classification and template replies")
		return nil
	}

	client, err := llm.New(llm.Config{
		Provider:  cfg.Provider,
		APIKey:    cfg.APIKey,
		BaseURL:   cfg.BaseURL,
		Model:     cfg.Model,
		MaxTokens: cfg.MaxTokens,
	})
	if err != nil {
		slog.WarnContext(ctx, "llm client unavailable", "error", err)
		return nil
	}

	slog.InfoContext(ctx, "llm client ready", "provider", cfg.Provider, "model", client.Model())
	return client
}

func newEmbedder(ctx context.Context, cfg config.EmbeddingConfig) llm.Embedder {
	if !cfg.Enabled() {
		slog.WarnContext(ctx, "embeddings disabled, recall falls back to text search")
		return nil
	}

	embedder, err := llm.NewEmbedder(llm.EmbedderConfig{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		Model:      cfg.Model,
		Dimensions: cfg.Dimensions,
	})
	if err != nil {
		slog.WarnContext(ctx, "embedder unavailable", "error", err)
		return nil
	}
	return embedder
}

func setupRouter(cfg config.Config, services *service.Services) *gin.Engine {
	router := gin.New()

	// Order matters: OTel creates span → Recovery catches panics → Logger logs with trace context
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())

	httprouter.SetupRoutes(router, services, httprouter.RouterConfig{
		AllowedOrigins: cfg.CORSOrigins,
	})

	return router
}

const banner = `
█░█░█ ▄▀█ █▄█ █▀▀ █ █▄░█ █▀▄ █▀█   █▀█ █▀▀ █░░ ▄▀█ █▄█
▀▄▀▄▀ █▀█ ░█░ █▀░ █ █░▀█ █▄▀ █▀▄   █▀▄ ██▄ █▄▄ █▀█ ░█░
`
