package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/fastygo/dailyquest/domain"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreMongo    = "mongo"

	ProofsLocal = "local"
	ProofsS3    = "s3"
)

// Config aggregates all runtime settings required by the application.
type Config struct {
	AppName     string `validate:"required"`
	Environment string `validate:"required"`
	HTTP        HTTPConfig
	Store       StoreConfig
	Database    DatabaseConfig
	Mongo       MongoConfig
	Redis       RedisConfig
	JWT         JWTConfig
	Notify      NotifyConfig
	Outbox      OutboxConfig
	Proofs      ProofsConfig
	Rules       RulesConfig
	Sweep       SweepConfig
	Context     ContextConfig
	Logger      LoggerConfig
	Migrations  MigrationsConfig
}

type HTTPConfig struct {
	Host           string
	Port           string `validate:"required,numeric"`
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxConn        int `validate:"gte=0"`
	EnableMetrics  bool
	PublicBaseURL  string `validate:"omitempty,url"`
	MaxUploadBytes int    `validate:"gt=0"`
}

type StoreConfig struct {
	Driver string `validate:"required,oneof=memory postgres mongo"`
}

type DatabaseConfig struct {
	URL             string
	Host            string
	Port            string
	Name            string
	User            string
	Password        string
	MaxOpenConns    int
	MaxIdleConns    int
	MaxConnLifetime time.Duration
	SSLMode         string
}

type MongoConfig struct {
	URI            string
	Database       string
	MaxPoolSize    int
	ConnectTimeout time.Duration
}

type RedisConfig struct {
	URL      string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
	Issuer string
}

type NotifyConfig struct {
	Enabled   bool
	Channel   string
	QueueSize int `validate:"gt=0"`
	Workers   int `validate:"gt=0"`
}

type OutboxConfig struct {
	Path         string `validate:"required"`
	MaxSize      int
	Retention    time.Duration
	SyncInterval time.Duration
	MaxRetry     int `validate:"gt=0"`
}

type ProofsConfig struct {
	Driver       string `validate:"required,oneof=local s3"`
	LocalDir     string `validate:"required_if=Driver local"`
	S3Bucket     string `validate:"required_if=Driver s3"`
	S3Region     string `validate:"required_if=Driver s3"`
	S3Endpoint   string `validate:"omitempty,url"`
	S3AccessKey  string
	S3SecretKey  string
	S3Prefix     string
	S3PathStyle  bool
	PresignTTL   time.Duration
	URLCacheSize int `validate:"gte=0"`
}

type RulesConfig struct {
	DailyQuota          int    `validate:"gt=0"`
	ValidationThreshold int    `validate:"gt=0"`
	DailyValidationCap  int    `validate:"gt=0"`
	CapBonusPoints      int    `validate:"gte=0"`
	Timezone            string `validate:"required"`

	Location *time.Location `validate:"-"`
}

// Domain converts the configured limits to engine rules.
func (r RulesConfig) Domain() domain.Rules {
	return domain.Rules{
		DailyQuota:          r.DailyQuota,
		ValidationThreshold: r.ValidationThreshold,
		DailyValidationCap:  r.DailyValidationCap,
		CapBonusPoints:      r.CapBonusPoints,
	}
}

type SweepConfig struct {
	Enabled  bool
	Schedule string
	Timeout  time.Duration
}

type ContextConfig struct {
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

type LoggerConfig struct {
	Level    string `validate:"oneof=debug info warn error dpanic panic fatal"`
	Encoding string `validate:"oneof=json console"`
}

type MigrationsConfig struct {
	Enabled bool
	Path    string
}

// Load reads configuration from environment variables (optionally .env)
// and applies sane defaults so the service can boot in any environment.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		AppName:     getString("APP_NAME", "dailyquest"),
		Environment: getString("APP_ENV", "development"),
		HTTP: HTTPConfig{
			Host:           getString("SERVER_HOST", "0.0.0.0"),
			Port:           getString("SERVER_PORT", "8080"),
			ReadTimeout:    getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:   getDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:    getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			MaxConn:        getInt("SERVER_MAX_CONN", 0),
			EnableMetrics:  getBool("SERVER_ENABLE_METRICS", true),
			PublicBaseURL:  getString("PUBLIC_BASE_URL", "http://localhost:8080/uploads"),
			MaxUploadBytes: getInt("MAX_UPLOAD_BYTES", 10<<20),
		},
		Store: StoreConfig{
			Driver: getString("STORE_DRIVER", StorePostgres),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			Host:            getString("DB_HOST", "localhost"),
			Port:            getString("DB_PORT", "5432"),
			Name:            getString("DB_NAME", "dailyquest"),
			User:            getString("DB_USER", "dailyquest"),
			Password:        os.Getenv("DB_PASSWORD"),
			MaxOpenConns:    getInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getInt("DB_MAX_IDLE_CONNS", 10),
			MaxConnLifetime: getDuration("DB_CONN_LIFETIME", time.Hour),
			SSLMode:         getString("DB_SSLMODE", "disable"),
		},
		Mongo: MongoConfig{
			URI:            getString("MONGO_URI", "mongodb://localhost:27017"),
			Database:       getString("MONGO_DATABASE", "dailyquest"),
			MaxPoolSize:    getInt("MONGO_MAX_POOL_SIZE", 50),
			ConnectTimeout: getDuration("MONGO_CONNECT_TIMEOUT", 10*time.Second),
		},
		Redis: RedisConfig{
			URL:      getString("REDIS_URL", "redis://localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret: os.Getenv("JWT_SECRET"),
			Issuer: os.Getenv("JWT_ISSUER"),
		},
		Notify: NotifyConfig{
			Enabled:   getBool("NOTIFY_ENABLED", true),
			Channel:   getString("NOTIFY_CHANNEL", "dailyquest:events"),
			QueueSize: getInt("NOTIFY_QUEUE_SIZE", 256),
			Workers:   getInt("NOTIFY_WORKERS", 2),
		},
		Outbox: OutboxConfig{
			Path:         getString("BOLTDB_PATH", "./data/outbox.db"),
			MaxSize:      getInt("OUTBOX_MAX_SIZE", 100_000),
			Retention:    getDuration("OUTBOX_RETENTION", 24*time.Hour),
			SyncInterval: getDuration("SYNC_INTERVAL_SECONDS", 30*time.Second),
			MaxRetry:     getInt("MAX_RETRY_ATTEMPTS", 5),
		},
		Proofs: ProofsConfig{
			Driver:       getString("PROOFS_DRIVER", ProofsLocal),
			LocalDir:     getString("PROOFS_LOCAL_DIR", "./uploads"),
			S3Bucket:     os.Getenv("S3_BUCKET"),
			S3Region:     getString("S3_REGION", "us-east-1"),
			S3Endpoint:   os.Getenv("S3_ENDPOINT"),
			S3AccessKey:  os.Getenv("S3_ACCESS_KEY"),
			S3SecretKey:  os.Getenv("S3_SECRET_KEY"),
			S3Prefix:     getString("S3_PREFIX", "proofs"),
			S3PathStyle:  getBool("S3_PATH_STYLE", false),
			PresignTTL:   getDuration("S3_PRESIGN_TTL", 15*time.Minute),
			URLCacheSize: getInt("PROOF_URL_CACHE_SIZE", 1024),
		},
		Rules: RulesConfig{
			DailyQuota:          getInt("QUEST_DAILY_QUOTA", 3),
			ValidationThreshold: getInt("QUEST_VALIDATION_THRESHOLD", 5),
			DailyValidationCap:  getInt("QUEST_DAILY_VALIDATION_CAP", 10),
			CapBonusPoints:      getInt("QUEST_CAP_BONUS_POINTS", 1),
			Timezone:            getString("QUEST_TIMEZONE", "UTC"),
		},
		Sweep: SweepConfig{
			Enabled:  getBool("SWEEP_ENABLED", true),
			Schedule: getString("SWEEP_SCHEDULE", "*/5 * * * *"),
			Timeout:  getDuration("SWEEP_TIMEOUT", time.Minute),
		},
		Context: ContextConfig{
			RequestTimeout:  getDuration("REQUEST_TIMEOUT_SECONDS", 5*time.Second),
			ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT_SECONDS", 15*time.Second),
		},
		Logger: LoggerConfig{
			Level:    getString("LOG_LEVEL", "info"),
			Encoding: getString("LOG_ENCODING", "json"),
		},
		Migrations: MigrationsConfig{
			Enabled: getBool("RUN_MIGRATIONS", true),
			Path:    getString("MIGRATIONS_PATH", "./assets/migrations"),
		},
	}

	if cfg.Database.URL == "" {
		cfg.Database.URL = buildPostgresURL(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks struct constraints and resolves the rules timezone.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	loc, err := time.LoadLocation(c.Rules.Timezone)
	if err != nil {
		return fmt.Errorf("config: QUEST_TIMEZONE: %w", err)
	}
	c.Rules.Location = loc
	return nil
}

// MustLoad panics if configuration cannot be loaded.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func buildPostgresURL(cfg *Config) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Name,
		cfg.Database.SSLMode,
	)
}

func getString(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}

// Address returns the HTTP listen address for the fasthttp server.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%s", c.HTTP.Host, c.HTTP.Port)
}
