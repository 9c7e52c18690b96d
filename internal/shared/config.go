package shared

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	AppEnv      string `envconfig:"APP_ENV" default:"prod"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	HTTPAddr    string `envconfig:"HTTP_ADDR" default:":8080"`
	MetricsAddr string `envconfig:"METRICS_ADDR"`

	TracingEnabled bool   `envconfig:"TRACING_ENABLED" default:"false"`
	OTLPEndpoint   string `envconfig:"OTLP_ENDPOINT" default:"localhost:4317"`

	MySQLDSN  string `envconfig:"MYSQL_DSN" default:"root:root@tcp(localhost:3306)/trip?parseTime=true&charset=utf8mb4,utf8&loc=UTC"`
	RedisAddr string `envconfig:"REDIS_ADDR"`
	RedisPass string `envconfig:"REDIS_PASSWORD"`
	RedisDB   int    `envconfig:"REDIS_DB" default:"0"`

	QdrantURL              string `envconfig:"QDRANT_URL" default:"http://localhost:6333"`
	QdrantAPIKey           string `envconfig:"QDRANT_API_KEY"`
	QdrantCollectionPrefix string `envconfig:"QDRANT_COLLECTION_PREFIX" default:"trip_"`
	QdrantRPS              int    `envconfig:"QDRANT_RPS" default:"10"`

	OpenAIKey      string        `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL  string        `envconfig:"OPENAI_BASE_URL"`
	ChatModel      string        `envconfig:"CHAT_MODEL" default:"gpt-4o-mini"`
	ChatMaxTokens  int           `envconfig:"CHAT_MAX_TOKENS" default:"1000"`
	ChatTimeout    time.Duration `envconfig:"CHAT_TIMEOUT" default:"30s"`
	EmbeddingModel string        `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-small"`
	EmbeddingDims  int           `envconfig:"EMBEDDING_DIMENSIONS" default:"1536"`

	LexiconPath string `envconfig:"LEXICON_PATH"`

	OrchestrationTimeout time.Duration `envconfig:"ORCHESTRATION_TIMEOUT" default:"60s"`
	AgentMaxTurns        int           `envconfig:"AGENT_MAX_TURNS" default:"4"`
	HistoryLimit         int           `envconfig:"HISTORY_LIMIT" default:"6"`
	MinResults           int           `envconfig:"MIN_RESULTS" default:"3"`
	EarlyStopRecords     int           `envconfig:"EARLY_STOP_RECORDS" default:"3"`
	SearchLimit          int           `envconfig:"SEARCH_LIMIT" default:"10"`
	SemanticThreshold    float64       `envconfig:"SEMANTIC_THRESHOLD" default:"0.7"`
	SearchRetryAttempts  uint          `envconfig:"SEARCH_RETRY_ATTEMPTS" default:"3"`
	SearchRetryDelay     time.Duration `envconfig:"SEARCH_RETRY_DELAY" default:"500ms"`
	SummaryLanguage      string        `envconfig:"SUMMARY_LANGUAGE" default:"it"`

	EmbeddingCacheTTL      time.Duration `envconfig:"EMBEDDING_CACHE_TTL" default:"24h"`
	EmbeddingCacheCapacity int           `envconfig:"EMBEDDING_CACHE_CAPACITY" default:"2048"`
	RetrievalCacheTTL      time.Duration `envconfig:"RETRIEVAL_CACHE_TTL" default:"15m"`
	RetrievalCacheCapacity int           `envconfig:"RETRIEVAL_CACHE_CAPACITY" default:"1000"`
	ResponseCacheTTL       time.Duration `envconfig:"RESPONSE_CACHE_TTL" default:"2m"`
	ResponseCacheCapacity  int           `envconfig:"RESPONSE_CACHE_CAPACITY" default:"500"`
	CacheSweepInterval     time.Duration `envconfig:"CACHE_SWEEP_INTERVAL" default:"1m"`

	IngestWorkers int    `envconfig:"INGEST_WORKERS" default:"8"`
	SeedFile      string `envconfig:"SEED_FILE" default:"data/seed.json"`
}

// Load reads envFile (or ./.env when envFile is empty and the file exists)
// into the process environment, then decodes the environment.
func Load(envFile string) (Config, error) {
	if envFile == "" {
		envFile = strings.TrimSpace(os.Getenv("ENV_FILE"))
	}
	if envFile != "" {
		if err := exportEnvironment(envFile); err != nil {
			return Config{}, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	} else if err := exportEnvironmentIfExists(".env"); err != nil {
		return Config{}, fmt.Errorf("load default env file: %w", err)
	}

	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return Config{}, err
	}
	if c.OpenAIKey == "" {
		log.Warn().Msg("OPENAI_API_KEY is empty; using rule-based agents and no semantic search")
	}
	return c, nil
}

// MustLoad is Load for mains.
func MustLoad(envFile string) Config {
	c, err := Load(envFile)
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	return c
}

func exportEnvironmentIfExists(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if info.IsDir() {
		return nil
	}
	return exportEnvironment(path)
}

// exportEnvironment sets every key of the file that is not already set, so
// real environment variables win over the file.
func exportEnvironment(path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return err
	}
	for k, val := range v.AllSettings() {
		key := strings.ToUpper(k)
		if _, set := os.LookupEnv(key); set {
			continue
		}
		if err := os.Setenv(key, fmt.Sprint(val)); err != nil {
			return err
		}
	}
	return nil
}
