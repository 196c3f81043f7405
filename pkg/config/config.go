// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Paths, Search, Indexer, Lemmatizer, Fetcher, Redis,
// Postgres, Kafka, Logging, Metrics).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Paths      PathsConfig      `yaml:"paths"`
	Search     SearchConfig     `yaml:"search"`
	Indexer    IndexerConfig    `yaml:"indexer"`
	Lemmatizer LemmatizerConfig `yaml:"lemmatizer"`
	Fetcher    FetcherConfig    `yaml:"fetcher"`
	Redis      RedisConfig      `yaml:"redis"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`

	// RateLimit is the per-client request budget; zero disables limiting.
	RateLimit   float64  `yaml:"rateLimit"`
	RateBurst   int      `yaml:"rateBurst"`
	CORSOrigins []string `yaml:"corsOrigins"`
}

// PathsConfig locates every artifact of the offline pipeline. The searcher
// only needs LemmaSource, IndexFile and WeightsDir (or BoltFile).
type PathsConfig struct {
	LemmaSource   string `yaml:"lemmaSource"`
	IndexFile     string `yaml:"indexFile"`
	WeightsDir    string `yaml:"weightsDir"`
	WeightsExt    string `yaml:"weightsExt"`
	BoltFile      string `yaml:"boltFile"`
	CorpusDir     string `yaml:"corpusDir"`
	CorpusPattern string `yaml:"corpusPattern"`
	PagesDir      string `yaml:"pagesDir"`
	ManifestFile  string `yaml:"manifestFile"`
}

// SearchConfig controls query execution limits.
type SearchConfig struct {
	DefaultLimit int `yaml:"defaultLimit"`
	MaxResults   int `yaml:"maxResults"`
}

// IndexerConfig controls the offline build.
type IndexerConfig struct {
	Workers      int  `yaml:"workers"`
	BuildWeights bool `yaml:"buildWeights"`
	ExportBolt   bool `yaml:"exportBolt"`
}

// LemmatizerConfig controls the lemmatization pipeline that feeds the indexer.
type LemmatizerConfig struct {
	Language      string   `yaml:"language"`
	MinConfidence float64  `yaml:"minConfidence"`
	StopWordsFile string   `yaml:"stopWordsFile"`
	BlacklistTags []string `yaml:"blacklistTags"`
	Workers       int      `yaml:"workers"`
}

// FetcherConfig controls page acquisition.
type FetcherConfig struct {
	URLsFile          string        `yaml:"urlsFile"`
	RequestsPerSecond float64       `yaml:"requestsPerSecond"`
	Timeout           time.Duration `yaml:"timeout"`
	MaxAttempts       int           `yaml:"maxAttempts"`
	UserAgent         string        `yaml:"userAgent"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// PostgresConfig holds PostgreSQL connection parameters for the optional
// document manifest backend.
type PostgresConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	SnapshotRebuilt string `yaml:"snapshotRebuilt"`
	AnalyticsEvents string `yaml:"analyticsEvents"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with defaults for any missing
// values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in configuration with environment overrides
// applied. It is what Load("") returns.
func Default() *Config {
	cfg := defaultConfig()
	applyEnvOverrides(cfg)
	return cfg
}

// Validate rejects values no component can work with.
func (c *Config) Validate() error {
	if c.Search.DefaultLimit < 1 {
		return fmt.Errorf("search.defaultLimit must be positive, got %d", c.Search.DefaultLimit)
	}
	if c.Search.MaxResults < c.Search.DefaultLimit {
		return fmt.Errorf("search.maxResults (%d) must be >= search.defaultLimit (%d)",
			c.Search.MaxResults, c.Search.DefaultLimit)
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("server.rateLimit must not be negative, got %v", c.Server.RateLimit)
	}
	if c.Lemmatizer.MinConfidence < 0 || c.Lemmatizer.MinConfidence > 1 {
		return fmt.Errorf("lemmatizer.minConfidence must be within [0,1], got %v", c.Lemmatizer.MinConfidence)
	}
	if c.Paths.WeightsExt != "" && !strings.HasPrefix(c.Paths.WeightsExt, ".") {
		return fmt.Errorf("paths.weightsExt must start with a dot, got %q", c.Paths.WeightsExt)
	}
	return nil
}

// defaultConfig returns a Config laid out for a local working directory that
// mirrors the classic pipeline layout.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			RequestTimeout:  5 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RateLimit:       20,
			RateBurst:       40,
			CORSOrigins:     []string{"*"},
		},
		Paths: PathsConfig{
			LemmaSource:   "lemmas.txt",
			IndexFile:     "inverted_index.txt",
			WeightsDir:    "lemmas_tf_idf",
			WeightsExt:    ".txt",
			BoltFile:      "",
			CorpusDir:     "output",
			CorpusPattern: "*_lemmas.txt",
			PagesDir:      "downloaded_pages",
			ManifestFile:  "downloaded_pages/index.txt",
		},
		Search: SearchConfig{
			DefaultLimit: 10,
			MaxResults:   100,
		},
		Indexer: IndexerConfig{
			Workers:      8,
			BuildWeights: true,
		},
		Lemmatizer: LemmatizerConfig{
			Language:      "russian",
			MinConfidence: 0.5,
			BlacklistTags: []string{"PREP", "CONJ", "PRCL", "INTJ", "LATN", "PNCT", "NUMB", "ROMN", "UNKN"},
			Workers:       4,
		},
		Fetcher: FetcherConfig{
			URLsFile:          "urls.txt",
			RequestsPerSecond: 2,
			Timeout:           15 * time.Second,
			MaxAttempts:       3,
			UserAgent:         "lemma-search-fetcher/1.0",
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "lemmasearch",
			User:            "lemmasearch",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "lemma-search",
			Topics: KafkaTopics{
				SnapshotRebuilt: "snapshot.rebuilt",
				AnalyticsEvents: "search-analytics",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads LS_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LS_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("LS_LEMMA_SOURCE"); v != "" {
		cfg.Paths.LemmaSource = v
	}
	if v := os.Getenv("LS_INDEX_FILE"); v != "" {
		cfg.Paths.IndexFile = v
	}
	if v := os.Getenv("LS_WEIGHTS_DIR"); v != "" {
		cfg.Paths.WeightsDir = v
	}
	if v := os.Getenv("LS_BOLT_FILE"); v != "" {
		cfg.Paths.BoltFile = v
	}
	if v := os.Getenv("LS_CORPUS_DIR"); v != "" {
		cfg.Paths.CorpusDir = v
	}
	if v := os.Getenv("LS_MANIFEST_FILE"); v != "" {
		cfg.Paths.ManifestFile = v
	}
	if v := os.Getenv("LS_SEARCH_DEFAULT_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Search.DefaultLimit = n
		}
	}
	if v := os.Getenv("LS_REDIS_ENABLED"); v != "" {
		cfg.Redis.Enabled = parseBool(v, cfg.Redis.Enabled)
	}
	if v := os.Getenv("LS_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("LS_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("LS_POSTGRES_ENABLED"); v != "" {
		cfg.Postgres.Enabled = parseBool(v, cfg.Postgres.Enabled)
	}
	if v := os.Getenv("LS_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("LS_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("LS_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("LS_KAFKA_ENABLED"); v != "" {
		cfg.Kafka.Enabled = parseBool(v, cfg.Kafka.Enabled)
	}
	if v := os.Getenv("LS_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("LS_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LS_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}

func parseBool(v string, fallback bool) bool {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
