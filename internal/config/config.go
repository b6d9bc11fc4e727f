package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App         AppConfig
	Auth        AuthConfig
	RateLimit   RateLimitConfig
	Database    DatabaseConfig
	VectorStore VectorStoreConfig
	Ai          AIConfig
	Rag         RAGConfig
	Events      EventsConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	LLMLogFilePath     string
	CorsAllowedOrigins string
	UploadDir          string
	MaxUploadMB        int
}

type AuthConfig struct {
	APIKey       string
	APIKeyHeader string
}

type RateLimitConfig struct {
	Max      int
	Window   time.Duration
	RedisURL string // empty = in-memory limiter storage
}

type DatabaseConfig struct {
	Connection string
}

type VectorStoreConfig struct {
	Driver         string // "memory", "pgvector" or "qdrant"
	CollectionName string
	QdrantURL      string
	QdrantAPIKey   string
	Dimension      int
}

type AIConfig struct {
	EmbeddingProvider  string // "openai" or "ollama"
	EmbeddingModel     string
	EmbeddingBatchSize int
	EmbeddingTimeout   time.Duration
	LLMProvider        string // "openai" or "ollama"
	LLMModel           string
	LLMTemperature     float64
	LLMTimeout         time.Duration
	OpenAIAPIKey       string
	OpenAIBaseURL      string
	OllamaBaseURL      string
}

type RAGConfig struct {
	ChunkSize    int
	ChunkOverlap int
	RetrievalK   int
	SessionTTL   time.Duration // 0 = sessions live until cleared or restart
}

type EventsConfig struct {
	Topic   string
	NatsURL string // empty = do not forward to NATS
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			LLMLogFilePath:     getEnv("LLM_LOG_FILE_PATH", "logs/llm_rag.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
			UploadDir:          getEnv("UPLOAD_DIR", "uploaded_pdfs"),
			MaxUploadMB:        getEnvAsInt("MAX_UPLOAD_MB", 50),
		},
		Auth: AuthConfig{
			APIKey:       getEnv("API_KEY", ""),
			APIKeyHeader: getEnv("API_KEY_HEADER", "PDF-CHAT-API-KEY"),
		},
		RateLimit: RateLimitConfig{
			Max:      getEnvAsInt("RATE_LIMIT_MAX", 20),
			Window:   getEnvAsDuration("RATE_LIMIT_WINDOW", time.Minute),
			RedisURL: getEnv("REDIS_URL", ""),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		VectorStore: VectorStoreConfig{
			Driver:         getEnv("VECTOR_STORE", "memory"),
			CollectionName: getEnv("COLLECTION_NAME", "pdf_chat"),
			QdrantURL:      getEnv("QDRANT_URL", "http://localhost:6333"),
			QdrantAPIKey:   getEnv("QDRANT_API_KEY", ""),
			Dimension:      getEnvAsInt("EMBEDDING_DIMENSION", 1536),
		},
		Ai: AIConfig{
			EmbeddingProvider:  getEnv("EMBEDDING_PROVIDER", "openai"),
			EmbeddingModel:     getEnv("EMBEDDING_MODEL", "openai/text-embedding-3-small"),
			EmbeddingBatchSize: getEnvAsInt("EMBEDDING_BATCH_SIZE", 64),
			EmbeddingTimeout:   getEnvAsDuration("EMBEDDING_TIMEOUT", 60*time.Second),
			LLMProvider:        getEnv("LLM_PROVIDER", "openai"),
			LLMModel:           getEnv("LLM_MODEL", "upstage/solar-pro-3:free"),
			LLMTemperature:     getEnvAsFloat("LLM_TEMPERATURE", 0.2),
			LLMTimeout:         getEnvAsDuration("LLM_TIMEOUT", 120*time.Second),
			OpenAIAPIKey:       getEnv("OPENROUTER_API_KEY", ""),
			OpenAIBaseURL:      getEnv("OPENAI_BASE_URL", "https://openrouter.ai/api/v1"),
			OllamaBaseURL:      getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
		},
		Rag: RAGConfig{
			ChunkSize:    getEnvAsInt("CHUNK_SIZE", 1000),
			ChunkOverlap: getEnvAsInt("CHUNK_OVERLAP", 200),
			RetrievalK:   getEnvAsInt("RETRIEVAL_K", 4),
			SessionTTL:   getEnvAsDuration("SESSION_TTL", 0),
		},
		Events: EventsConfig{
			Topic:   getEnv("EVENTS_TOPIC", "document.events"),
			NatsURL: getEnv("NATS_URL", ""),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
