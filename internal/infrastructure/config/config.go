package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Log       LogConfig
	Odoo      OdooConfig
	Presta    PrestaConfig
	Sync      SyncConfig
	Cache     CacheConfig
	Lock      LockConfig
	Redis     RedisConfig
	HTTP      HTTPConfig
	Webhook   WebhookConfig
	Scheduler SchedulerConfig
	Audit     AuditConfig
	Kafka     KafkaConfig
	Storage   StorageConfig
	Telemetry TelemetryConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
	Dir    string // when set, logs are written to Dir/sync.log
}

// OdooConfig holds ERP connection settings
type OdooConfig struct {
	BaseURL  string
	DB       string
	User     string
	Password string
	Timeout  time.Duration
}

// PrestaConfig holds commerce platform settings
type PrestaConfig struct {
	URL        string
	Key        string
	AuthScheme string // bearer, basic, ws_key
	UseXML     bool
	Timeout    time.Duration
	SearchPath string
}

// SyncConfig holds pipeline behaviour switches
type SyncConfig struct {
	DryRun       bool // forces dry-run regardless of CLI flags
	CSVAlways    bool // emit audit artifacts on real runs too
	DefaultRange string
	StateFile    string
}

// CacheConfig holds SKU cache settings
type CacheConfig struct {
	Backend string // file, redis
	Dir     string
	TTL     time.Duration
}

// LockConfig holds run lock settings
type LockConfig struct {
	Backend string // file, redis
	Path    string
	TTL     time.Duration
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// HTTPConfig holds webhook server settings
type HTTPConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MaxBodySize  int64
}

// WebhookConfig holds webhook authentication settings
type WebhookConfig struct {
	Token string
}

// SchedulerConfig holds periodic trigger settings for serve mode
type SchedulerConfig struct {
	Enabled  bool
	Interval time.Duration
}

// AuditConfig holds audit artifact and history settings
type AuditConfig struct {
	Dir      string // artifact directory (DRYRUN_DIR)
	Format   string // csv, xlsx
	DBDriver string // postgres, sqlite
	DBDSN    string
}

// KafkaConfig holds audit event publishing settings
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// StorageConfig holds S3-compatible artifact upload settings
type StorageConfig struct {
	Bucket       string
	Prefix       string
	Endpoint     string
	Region       string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
}

// TelemetryConfig holds OpenTelemetry export settings
type TelemetryConfig struct {
	Enabled       bool
	Endpoint      string
	SamplingRatio float64
	Insecure      bool
}

// Enabled reports whether artifacts should be uploaded
func (s StorageConfig) Enabled() bool { return s.Bucket != "" }

// Load reads configuration from .env, an optional config.toml and the
// environment. Environment variables use the key with dots replaced by
// underscores (odoo.base_url → ODOO_BASE_URL).
func Load() (*Config, error) {
	return LoadWithEnvFile(".env")
}

// LoadWithEnvFile is Load with an explicit dotenv path. A missing file is not an error.
func LoadWithEnvFile(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("error reading env file: %w", err)
		}
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/catalogsync")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("presta.use_xml", true)
	v.SetDefault("telemetry.sampling_ratio", 1.0)
	v.SetDefault("telemetry.insecure", true)

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
			Dir:    v.GetString("log.dir"),
		},
		Odoo: OdooConfig{
			BaseURL:  v.GetString("odoo.base_url"),
			DB:       v.GetString("odoo.db"),
			User:     v.GetString("odoo.user"),
			Password: v.GetString("odoo.pass"),
			Timeout:  time.Duration(v.GetInt("odoo.timeout")) * time.Second,
		},
		Presta: PrestaConfig{
			URL:        v.GetString("presta.url"),
			Key:        v.GetString("presta.key"),
			AuthScheme: strings.ToLower(v.GetString("presta.auth_scheme")),
			UseXML:     v.GetBool("presta.use_xml"),
			Timeout:    time.Duration(v.GetInt("presta.timeout")) * time.Second,
			SearchPath: v.GetString("presta.search_path"),
		},
		Sync: SyncConfig{
			DryRun:       v.GetBool("dry_run"),
			CSVAlways:    v.GetBool("csv_always"),
			DefaultRange: v.GetString("sync.default_range"),
			StateFile:    v.GetString("sync.state_file"),
		},
		Cache: CacheConfig{
			Backend: strings.ToLower(v.GetString("cache.backend")),
			Dir:     v.GetString("cache.dir"),
			TTL:     time.Duration(v.GetInt("cache.ttl_seconds")) * time.Second,
		},
		Lock: LockConfig{
			Backend: strings.ToLower(v.GetString("lock.backend")),
			Path:    v.GetString("lock.path"),
			TTL:     time.Duration(v.GetInt("lock.ttl_seconds")) * time.Second,
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		HTTP: HTTPConfig{
			Port:         v.GetString("http.port"),
			ReadTimeout:  v.GetDuration("http.read_timeout"),
			WriteTimeout: v.GetDuration("http.write_timeout"),
			MaxBodySize:  v.GetInt64("http.max_body_size"),
		},
		Webhook: WebhookConfig{
			Token: v.GetString("webhook.token"),
		},
		Scheduler: SchedulerConfig{
			Enabled:  v.GetBool("scheduler.enabled"),
			Interval: v.GetDuration("scheduler.interval"),
		},
		Audit: AuditConfig{
			Dir:      v.GetString("dryrun_dir"),
			Format:   strings.ToLower(v.GetString("audit.format")),
			DBDriver: strings.ToLower(v.GetString("audit.db_driver")),
			DBDSN:    v.GetString("audit.db_dsn"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(v.GetString("kafka.brokers")),
			Topic:   v.GetString("kafka.topic"),
		},
		Storage: StorageConfig{
			Bucket:       v.GetString("audit.s3_bucket"),
			Prefix:       v.GetString("audit.s3_prefix"),
			Endpoint:     v.GetString("audit.s3_endpoint"),
			Region:       v.GetString("audit.s3_region"),
			AccessKey:    v.GetString("audit.s3_access_key"),
			SecretKey:    v.GetString("audit.s3_secret_key"),
			UsePathStyle: v.GetBool("audit.s3_path_style"),
		},
		Telemetry: TelemetryConfig{
			Enabled:       v.GetBool("telemetry.enabled"),
			Endpoint:      v.GetString("telemetry.endpoint"),
			SamplingRatio: v.GetFloat64("telemetry.sampling_ratio"),
			Insecure:      v.GetBool("telemetry.insecure"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// splitList parses a comma separated env value
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "catalogsync"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		if cfg.App.Env == "production" {
			cfg.Log.Format = "json"
		} else {
			cfg.Log.Format = "console"
		}
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}

	if cfg.Odoo.Timeout <= 0 {
		cfg.Odoo.Timeout = 30 * time.Second
	}
	if cfg.Presta.Timeout <= 0 {
		cfg.Presta.Timeout = 30 * time.Second
	}
	if cfg.Presta.AuthScheme == "" {
		cfg.Presta.AuthScheme = "bearer"
	}
	if cfg.Presta.SearchPath == "" {
		cfg.Presta.SearchPath = "/products"
	}
	cfg.Presta.URL = strings.TrimRight(cfg.Presta.URL, "/")
	cfg.Odoo.BaseURL = strings.TrimRight(cfg.Odoo.BaseURL, "/")

	if cfg.Sync.DefaultRange == "" {
		cfg.Sync.DefaultRange = "1h"
	}
	if cfg.Sync.StateFile == "" {
		cfg.Sync.StateFile = "./var/last_sync.txt"
	}

	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = "file"
	}
	if cfg.Cache.Dir == "" {
		cfg.Cache.Dir = "./cache"
	}
	if cfg.Cache.TTL <= 0 {
		cfg.Cache.TTL = time.Hour
	}

	if cfg.Lock.Backend == "" {
		cfg.Lock.Backend = "file"
	}
	if cfg.Lock.Path == "" {
		cfg.Lock.Path = "./var/sync.lock"
	}
	if cfg.Lock.TTL <= 0 {
		cfg.Lock.TTL = 30 * time.Minute
	}

	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}

	if cfg.HTTP.Port == "" {
		cfg.HTTP.Port = "8080"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		// a webhook call runs a full stock pipeline before responding
		cfg.HTTP.WriteTimeout = 5 * time.Minute
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20
	}

	if cfg.Scheduler.Interval <= 0 {
		cfg.Scheduler.Interval = 15 * time.Minute
	}

	if cfg.Audit.Dir == "" {
		cfg.Audit.Dir = "./dryrun"
	}
	if cfg.Audit.Format == "" {
		cfg.Audit.Format = "csv"
	}
	if cfg.Audit.DBDriver == "" {
		cfg.Audit.DBDriver = "postgres"
	}

	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "catalogsync.audit"
	}

	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "us-east-1"
	}

	if cfg.Telemetry.Endpoint == "" {
		cfg.Telemetry.Endpoint = "localhost:4317"
	}
}

func (c *Config) validate() error {
	if c.Odoo.BaseURL == "" {
		return fmt.Errorf("ODOO_BASE_URL is required")
	}
	if _, err := url.ParseRequestURI(c.Odoo.BaseURL); err != nil {
		return fmt.Errorf("invalid ODOO_BASE_URL: %w", err)
	}
	if c.Odoo.DB == "" || c.Odoo.User == "" {
		return fmt.Errorf("ODOO_DB and ODOO_USER are required")
	}

	if c.Presta.URL == "" {
		return fmt.Errorf("PRESTA_URL is required")
	}
	if _, err := url.ParseRequestURI(c.Presta.URL); err != nil {
		return fmt.Errorf("invalid PRESTA_URL: %w", err)
	}
	if c.Presta.Key == "" {
		return fmt.Errorf("PRESTA_KEY is required")
	}
	switch c.Presta.AuthScheme {
	case "bearer", "basic", "ws_key":
	default:
		return fmt.Errorf("invalid PRESTA_AUTH_SCHEME %q: must be bearer, basic or ws_key", c.Presta.AuthScheme)
	}

	switch c.Cache.Backend {
	case "file", "redis":
	default:
		return fmt.Errorf("invalid CACHE_BACKEND %q", c.Cache.Backend)
	}
	switch c.Lock.Backend {
	case "file", "redis":
	default:
		return fmt.Errorf("invalid LOCK_BACKEND %q", c.Lock.Backend)
	}
	switch c.Audit.Format {
	case "csv", "xlsx":
	default:
		return fmt.Errorf("invalid AUDIT_FORMAT %q", c.Audit.Format)
	}
	switch c.Audit.DBDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("invalid AUDIT_DB_DRIVER %q", c.Audit.DBDriver)
	}

	if c.App.Env == "production" && c.Webhook.Token == "" {
		return fmt.Errorf("WEBHOOK_TOKEN must be set in production")
	}
	return nil
}
