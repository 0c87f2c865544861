// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Corpus, Postgres, Kafka, Redis, Search, Analytics, etc.).
package config

import (
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Corpus    CorpusConfig    `yaml:"corpus"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	Search    SearchConfig    `yaml:"search"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Logging   LoggingConfig   `yaml:"logging"`
	Tracing   TracingConfig   `yaml:"tracing"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int             `yaml:"port"`
	ReadTimeout     time.Duration   `yaml:"readTimeout"`
	WriteTimeout    time.Duration   `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration   `yaml:"shutdownTimeout"`
	CORSOrigins     []string        `yaml:"corsOrigins"`
	RateLimit       RateLimitConfig `yaml:"rateLimit"`
}

// RateLimitConfig caps requests per client IP. A zero Requests disables the
// limit. X-Forwarded-For is only honoured on connections from
// TrustedProxies, given as IPs or CIDR prefixes.
type RateLimitConfig struct {
	Requests       int           `yaml:"requests"`
	Window         time.Duration `yaml:"window"`
	TrustedProxies []string      `yaml:"trustedProxies"`
}

// TrustedPrefixes parses TrustedProxies. A bare IP becomes a single-address
// prefix.
func (r RateLimitConfig) TrustedPrefixes() ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(r.TrustedProxies))
	for _, raw := range r.TrustedProxies {
		raw = strings.TrimSpace(raw)
		if strings.Contains(raw, "/") {
			p, err := netip.ParsePrefix(raw)
			if err != nil {
				return nil, fmt.Errorf("server.rateLimit.trustedProxies: %w", err)
			}
			prefixes = append(prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("server.rateLimit.trustedProxies: %w", err)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

// Corpus source kinds.
const (
	SourceFile     = "file"
	SourcePostgres = "postgres"
)

// CorpusConfig selects where corpus lines come from and how documents are
// labelled in results.
type CorpusConfig struct {
	Source        string        `yaml:"source"`
	Path          string        `yaml:"path"`
	Table         string        `yaml:"table"`
	DocPrefix     string        `yaml:"docPrefix"`
	Watch         bool          `yaml:"watch"`
	WatchDebounce time.Duration `yaml:"watchDebounce"`
	ReloadTimeout time.Duration `yaml:"reloadTimeout"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
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
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	QueryEvents string `yaml:"queryEvents"`
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

// SearchConfig controls query defaults and limits.
type SearchConfig struct {
	DefaultMode  string        `yaml:"defaultMode"`
	QueryTimeout time.Duration `yaml:"queryTimeout"`
}

// AnalyticsConfig controls query-event publishing and, for the analytics
// service, snapshot persistence.
type AnalyticsConfig struct {
	Enabled           bool          `yaml:"enabled"`
	BufferSize        int           `yaml:"bufferSize"`
	BatchSize         int           `yaml:"batchSize"`
	FlushInterval     time.Duration `yaml:"flushInterval"`
	Port              int           `yaml:"port"`
	PersistSnapshots  bool          `yaml:"persistSnapshots"`
	SnapshotInterval  time.Duration `yaml:"snapshotInterval"`
	SnapshotRetention int           `yaml:"snapshotRetention"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TracingConfig controls span logging for query execution.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
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

// Validate checks the settings that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.Corpus.Source {
	case SourceFile:
		if c.Corpus.Path == "" {
			return fmt.Errorf("corpus.path is required when corpus.source is %q", SourceFile)
		}
	case SourcePostgres:
		if c.Corpus.Table == "" {
			return fmt.Errorf("corpus.table is required when corpus.source is %q", SourcePostgres)
		}
	default:
		return fmt.Errorf("unknown corpus.source %q", c.Corpus.Source)
	}
	if c.Analytics.Enabled && c.Kafka.Topics.QueryEvents == "" {
		return fmt.Errorf("kafka.topics.queryEvents is required when analytics is enabled")
	}
	if c.Server.RateLimit.Requests < 0 {
		return fmt.Errorf("server.rateLimit.requests must not be negative")
	}
	if c.Server.RateLimit.Requests > 0 && c.Server.RateLimit.Window <= 0 {
		return fmt.Errorf("server.rateLimit.window must be positive when a limit is set")
	}
	if _, err := c.Server.RateLimit.TrustedPrefixes(); err != nil {
		return err
	}
	switch c.Search.DefaultMode {
	case "bidirectional", "unidirectional":
	default:
		return fmt.Errorf("unknown search.defaultMode %q", c.Search.DefaultMode)
	}
	return nil
}

// defaultConfig returns a Config with defaults for local development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimit: RateLimitConfig{
				Requests: 0,
				Window:   time.Minute,
			},
		},
		Corpus: CorpusConfig{
			Source:        SourceFile,
			Path:          "data/Docs.txt",
			Table:         "corpus_lines",
			DocPrefix:     "Doc",
			Watch:         false,
			WatchDebounce: 500 * time.Millisecond,
			ReloadTimeout: 30 * time.Second,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "proximity",
			User:            "proximity",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "proximity-analytics",
			Topics: KafkaTopics{
				QueryEvents: "proximity-query-events",
			},
		},
		Redis: RedisConfig{
			Enabled:  false,
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Search: SearchConfig{
			DefaultMode:  "bidirectional",
			QueryTimeout: 5 * time.Second,
		},
		Analytics: AnalyticsConfig{
			Enabled:           false,
			BufferSize:        10000,
			BatchSize:         100,
			FlushInterval:     2 * time.Second,
			Port:              8081,
			PersistSnapshots:  false,
			SnapshotInterval:  time.Minute,
			SnapshotRetention: 1440,
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

// applyEnvOverrides reads SP_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SP_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SP_SERVER_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.RateLimit.Requests = n
		}
	}
	if v := os.Getenv("SP_SERVER_TRUSTED_PROXIES"); v != "" {
		cfg.Server.RateLimit.TrustedProxies = strings.Split(v, ",")
	}
	if v := os.Getenv("SP_CORPUS_SOURCE"); v != "" {
		cfg.Corpus.Source = v
	}
	if v := os.Getenv("SP_CORPUS_PATH"); v != "" {
		cfg.Corpus.Path = v
	}
	if v := os.Getenv("SP_CORPUS_TABLE"); v != "" {
		cfg.Corpus.Table = v
	}
	if v := os.Getenv("SP_CORPUS_DOC_PREFIX"); v != "" {
		cfg.Corpus.DocPrefix = v
	}
	if v := os.Getenv("SP_CORPUS_WATCH"); v != "" {
		if watch, err := strconv.ParseBool(v); err == nil {
			cfg.Corpus.Watch = watch
		}
	}
	if v := os.Getenv("SP_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("SP_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("SP_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("SP_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("SP_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("SP_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("SP_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("SP_REDIS_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Redis.Enabled = enabled
		}
	}
	if v := os.Getenv("SP_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("SP_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("SP_SEARCH_DEFAULT_MODE"); v != "" {
		cfg.Search.DefaultMode = v
	}
	if v := os.Getenv("SP_ANALYTICS_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Analytics.Enabled = enabled
		}
	}
	if v := os.Getenv("SP_ANALYTICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Analytics.Port = port
		}
	}
	if v := os.Getenv("SP_ANALYTICS_PERSIST_SNAPSHOTS"); v != "" {
		if persist, err := strconv.ParseBool(v); err == nil {
			cfg.Analytics.PersistSnapshots = persist
		}
	}
	if v := os.Getenv("SP_KAFKA_QUERY_EVENTS_TOPIC"); v != "" {
		cfg.Kafka.Topics.QueryEvents = v
	}
	if v := os.Getenv("SP_SERVER_CORS_ORIGINS"); v != "" {
		cfg.Server.CORSOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("SP_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SP_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
