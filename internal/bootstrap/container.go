package bootstrap

import (
	"context"
	"fmt"
	"log"
	"time"

	"pdf-chat-be/internal/config"
	"pdf-chat-be/internal/controller"
	"pdf-chat-be/internal/pkg/logger"
	"pdf-chat-be/internal/pkg/serverutils"
	"pdf-chat-be/internal/repository/contract"
	"pdf-chat-be/internal/repository/memory"
	"pdf-chat-be/internal/repository/pgvector"
	"pdf-chat-be/internal/repository/qdrant"
	"pdf-chat-be/internal/repository/unitofwork"
	"pdf-chat-be/internal/service"
	"pdf-chat-be/pkg/chunker"
	"pdf-chat-be/pkg/database"
	"pdf-chat-be/pkg/embedding"
	"pdf-chat-be/pkg/llm/factory"
	pktNats "pdf-chat-be/pkg/nats"
	"pdf-chat-be/pkg/pdf"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

type Container struct {
	// Controllers
	HealthController   controller.IHealthController
	DocumentController controller.IDocumentController
	ChatController     controller.IChatController

	// Background Services (Exposed for main.go to run)
	IndexStatusService service.IIndexStatusService

	// nil means the limiter keeps counters in process memory.
	RateLimitStorage fiber.Storage

	Logger logger.ILogger

	closers []func()
}

func NewContainer(cfg *config.Config) *Container {
	c := &Container{}

	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	promptLogger := logger.NewIsolatedLogger(cfg.App.LLMLogFilePath)
	c.Logger = sysLogger
	c.closers = append(c.closers, func() { sysLogger.Sync(); promptLogger.Sync() })

	// 2. Event Bus
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 64},
		watermill.NewStdLogger(false, false),
	)
	c.closers = append(c.closers, func() { pubSub.Close() })

	// 3. AI Providers
	embeddingProvider, err := embedding.NewEmbeddingProvider(embeddingParams(cfg))
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize Embedding Provider: %v", err)
	}
	log.Printf("[INFO] Using Embedding Provider: %s (%s)", cfg.Ai.EmbeddingProvider, cfg.Ai.EmbeddingModel)

	llmProvider, err := factory.NewLLMProvider(llmParams(cfg))
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	// 4. Storage
	vectorIndex, err := newVectorIndex(cfg, c)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize Vector Store: %v", err)
	}
	log.Printf("[INFO] Using Vector Store: %s (%s)", cfg.VectorStore.Driver, cfg.VectorStore.CollectionName)

	sessionRepo := memory.NewSessionRepository(cfg.Rag.SessionTTL)

	// 5. Infrastructure
	var forwarder service.EventForwarder
	if cfg.Events.NatsURL != "" {
		natsPub, err := pktNats.NewPublisher(cfg.Events.NatsURL)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
		} else {
			forwarder = natsPub
			c.closers = append(c.closers, natsPub.Close)
		}
	}

	if cfg.RateLimit.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RateLimit.RedisURL)
		if err != nil {
			log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
			opt = &redis.Options{Addr: cfg.RateLimit.RedisURL}
		}
		rdb := redis.NewClient(opt)
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Printf("[WARN] Failed to connect to Redis, rate limiting per instance: %v", err)
			rdb.Close()
		} else {
			storage := serverutils.NewRedisStorage(rdb, "pdf-chat:ratelimit:")
			c.RateLimitStorage = storage
			c.closers = append(c.closers, func() { storage.Close() })
		}
		cancel()
	}

	// 6. Services
	publisherService := service.NewPublisherService(cfg.Events.Topic, pubSub)
	c.IndexStatusService = service.NewIndexStatusService(pubSub, cfg.Events.Topic, vectorIndex, forwarder, sysLogger)

	ingestionService := service.NewIngestionService(
		pdf.NewPlainTextLoader(),
		chunker.NewRecursiveSplitter(cfg.Rag.ChunkSize, cfg.Rag.ChunkOverlap),
		embeddingProvider,
		vectorIndex,
		publisherService,
		sysLogger,
		service.IngestionOptions{
			UploadDir:      cfg.App.UploadDir,
			MaxUploadBytes: int64(cfg.App.MaxUploadMB) * 1024 * 1024,
			BatchSize:      cfg.Ai.EmbeddingBatchSize,
		},
	)

	chatService := service.NewChatService(
		embeddingProvider,
		vectorIndex,
		sessionRepo,
		llmProvider,
		publisherService,
		sysLogger,
		promptLogger,
		service.ChatOptions{
			RetrievalK:  cfg.Rag.RetrievalK,
			Temperature: cfg.Ai.LLMTemperature,
		},
	)

	// 7. Controllers
	c.HealthController = controller.NewHealthController(vectorIndex)
	c.DocumentController = controller.NewDocumentController(ingestionService, c.IndexStatusService)
	c.ChatController = controller.NewChatController(chatService, sysLogger)

	return c
}

// Close releases connections in reverse order of creation.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

func newVectorIndex(cfg *config.Config, c *Container) (contract.VectorIndex, error) {
	switch cfg.VectorStore.Driver {
	case "memory", "":
		return memory.NewVectorIndex(), nil
	case "pgvector":
		if cfg.Database.Connection == "" {
			return nil, fmt.Errorf("DB_CONNECTION_STRING is required for the pgvector store")
		}
		db, err := database.NewGormDBFromDSN(cfg.Database.Connection)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		c.closers = append(c.closers, func() {
			if sqlDB, err := db.DB(); err == nil {
				sqlDB.Close()
			}
		})
		return pgvector.NewVectorIndex(unitofwork.NewRepositoryFactory(db), cfg.VectorStore.CollectionName), nil
	case "qdrant":
		return qdrant.NewVectorIndex(qdrant.Config{
			URL:        cfg.VectorStore.QdrantURL,
			APIKey:     cfg.VectorStore.QdrantAPIKey,
			Collection: cfg.VectorStore.CollectionName,
			Dimension:  cfg.VectorStore.Dimension,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported vector store: %s", cfg.VectorStore.Driver)
	}
}

func embeddingParams(cfg *config.Config) embedding.Params {
	p := embedding.Params{
		Provider:  cfg.Ai.EmbeddingProvider,
		Model:     cfg.Ai.EmbeddingModel,
		APIKey:    cfg.Ai.OpenAIAPIKey,
		BaseURL:   cfg.Ai.OpenAIBaseURL,
		BatchSize: cfg.Ai.EmbeddingBatchSize,
		Timeout:   cfg.Ai.EmbeddingTimeout,
	}
	if p.Provider == "ollama" {
		p.BaseURL = cfg.Ai.OllamaBaseURL
	}
	return p
}

func llmParams(cfg *config.Config) factory.Params {
	p := factory.Params{
		Provider:    cfg.Ai.LLMProvider,
		Model:       cfg.Ai.LLMModel,
		Temperature: cfg.Ai.LLMTemperature,
		Timeout:     cfg.Ai.LLMTimeout,
		APIKey:      cfg.Ai.OpenAIAPIKey,
		BaseURL:     cfg.Ai.OpenAIBaseURL,
	}
	if p.Provider == "ollama" {
		p.BaseURL = cfg.Ai.OllamaBaseURL
	}
	return p
}
