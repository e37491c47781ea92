package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Pricing struct {
	TaxRate       float64
	DisplayFxRate float64
}

type Checkout struct {
	ProcessingDelay time.Duration
	ResetDelay      time.Duration
}

type Upload struct {
	FailureProbability float64
	Latency            time.Duration
	BackupLatency      time.Duration
	BaseURL            string
}

type Heartbeat struct {
	Interval         time.Duration
	PatchProbability float64
	PatchDuration    time.Duration
}

type Session struct {
	IdleTimeout     time.Duration
	CleanupInterval time.Duration
}

type Mongo struct {
	URI      string
	Database string
}

type Postgres struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

type Kafka struct {
	Brokers []string
	Topic   string
}

type Catalog struct {
	DBPath         string
	MigrationsPath string
}

type GenAI struct {
	APIKey    string
	TextURL   string
	ImageURL  string
	Timeout   time.Duration
	TripAfter uint32
}

type Config struct {
	HTTPPort        string
	AppID           string
	LogLevel        string
	StoreBackend    string
	RedisAddr       string
	RedisPassword   string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration

	Pricing   Pricing
	Checkout  Checkout
	Upload    Upload
	Heartbeat Heartbeat
	Session   Session
	Mongo     Mongo
	Postgres  Postgres
	Kafka     Kafka
	Catalog   Catalog
	GenAI     GenAI
}

const (
	BackendMemory   = "memory"
	BackendMongo    = "mongo"
	BackendPostgres = "postgres"
)

// Default returns the configuration used when no environment overrides exist.
func Default() *Config {
	return &Config{
		HTTPPort:        "8080",
		AppID:           "iah-creations",
		LogLevel:        "info",
		StoreBackend:    BackendMemory,
		RequestTimeout:  30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		Pricing: Pricing{
			TaxRate:       0.18,
			DisplayFxRate: 84.0,
		},
		Checkout: Checkout{
			ProcessingDelay: 2 * time.Second,
			ResetDelay:      3 * time.Second,
		},
		Upload: Upload{
			FailureProbability: 0.10,
			Latency:            2500 * time.Millisecond,
			BackupLatency:      time.Second,
			BaseURL:            "https://storage.iah.cloud/v1/buckets/user-assets",
		},
		Heartbeat: Heartbeat{
			Interval:         30 * time.Second,
			PatchProbability: 0.05,
			PatchDuration:    3 * time.Second,
		},
		Session: Session{
			IdleTimeout:     30 * time.Minute,
			CleanupInterval: time.Minute,
		},
		Mongo: Mongo{
			URI:      "mongodb://localhost:27017",
			Database: "storefront",
		},
		Postgres: Postgres{
			Host:              "localhost",
			Port:              5432,
			User:              "postgres",
			Password:          "postgres",
			DBName:            "storefront",
			MigrationsDirPath: "./internal/store/migrations",
		},
		Kafka: Kafka{
			Topic: "orders-placed",
		},
		Catalog: Catalog{
			DBPath:         "./internal/catalog/catalog.db",
			MigrationsPath: "./internal/catalog/migrations",
		},
		GenAI: GenAI{
			TextURL:   "https://generativelanguage.googleapis.com/v1beta/models/gemini-3.0-pro-latest:generateContent",
			ImageURL:  "https://generativelanguage.googleapis.com/v1beta/models/imagen-3.0-generate-001:predict",
			Timeout:   30 * time.Second,
			TripAfter: 5,
		},
	}
}

// Load reads the configuration from the environment on top of Default.
func Load() (*Config, error) {
	return load(os.Getenv)
}

func load(lookup func(string) string) (*Config, error) {
	cfg := Default()
	env := func(key, defaultValue string) string {
		if value := lookup(key); value != "" {
			return value
		}
		return defaultValue
	}

	var errs []string
	duration := func(key string, def time.Duration) time.Duration {
		raw := env(key, "")
		if raw == "" {
			return def
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
			return def
		}
		return d
	}
	float := func(key string, def float64) float64 {
		raw := env(key, "")
		if raw == "" {
			return def
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
			return def
		}
		return f
	}

	cfg.HTTPPort = env("HTTP_PORT", cfg.HTTPPort)
	cfg.AppID = env("APP_ID", cfg.AppID)
	cfg.LogLevel = env("LOG_LEVEL", cfg.LogLevel)
	cfg.StoreBackend = env("STORE_BACKEND", cfg.StoreBackend)
	cfg.RedisAddr = env("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = env("REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RequestTimeout = duration("REQUEST_TIMEOUT", cfg.RequestTimeout)

	cfg.Pricing.TaxRate = float("TAX_RATE", cfg.Pricing.TaxRate)
	cfg.Pricing.DisplayFxRate = float("DISPLAY_FX_RATE", cfg.Pricing.DisplayFxRate)
	cfg.Checkout.ProcessingDelay = duration("CHECKOUT_PROCESSING_DELAY", cfg.Checkout.ProcessingDelay)
	cfg.Checkout.ResetDelay = duration("CHECKOUT_RESET_DELAY", cfg.Checkout.ResetDelay)
	cfg.Upload.FailureProbability = float("UPLOAD_FAILURE_PROBABILITY", cfg.Upload.FailureProbability)
	cfg.Upload.Latency = duration("UPLOAD_LATENCY", cfg.Upload.Latency)
	cfg.Heartbeat.Interval = duration("HEARTBEAT_INTERVAL", cfg.Heartbeat.Interval)
	cfg.Heartbeat.PatchProbability = float("HEARTBEAT_PATCH_PROBABILITY", cfg.Heartbeat.PatchProbability)
	cfg.Heartbeat.PatchDuration = duration("HEARTBEAT_PATCH_DURATION", cfg.Heartbeat.PatchDuration)

	cfg.Session.IdleTimeout = duration("SESSION_IDLE_TIMEOUT", cfg.Session.IdleTimeout)

	cfg.Mongo.URI = env("MONGO_URI", cfg.Mongo.URI)
	cfg.Mongo.Database = env("MONGO_DB_NAME", cfg.Mongo.Database)

	cfg.Postgres.Host = env("DB_HOST", cfg.Postgres.Host)
	if raw := env("DB_PORT", ""); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil {
			errs = append(errs, fmt.Sprintf("DB_PORT: %v", err))
		} else {
			cfg.Postgres.Port = port
		}
	}
	cfg.Postgres.User = env("DB_USER", cfg.Postgres.User)
	cfg.Postgres.Password = env("DB_PASSWORD", cfg.Postgres.Password)
	cfg.Postgres.DBName = env("DB_NAME", cfg.Postgres.DBName)
	cfg.Postgres.MigrationsDirPath = env("MIGRATIONS_PATH", cfg.Postgres.MigrationsDirPath)

	if brokers := env("KAFKA_BROKERS", ""); brokers != "" {
		cfg.Kafka.Brokers = strings.Split(brokers, ",")
	}
	cfg.Kafka.Topic = env("KAFKA_TOPIC", cfg.Kafka.Topic)

	cfg.Catalog.DBPath = env("CATALOG_DB_PATH", cfg.Catalog.DBPath)
	cfg.Catalog.MigrationsPath = env("CATALOG_MIGRATIONS_PATH", cfg.Catalog.MigrationsPath)

	cfg.GenAI.APIKey = env("GENAI_API_KEY", cfg.GenAI.APIKey)
	cfg.GenAI.TextURL = env("GENAI_TEXT_URL", cfg.GenAI.TextURL)
	cfg.GenAI.ImageURL = env("GENAI_IMAGE_URL", cfg.GenAI.ImageURL)

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Pricing.TaxRate < 0 {
		return fmt.Errorf("TAX_RATE must not be negative")
	}
	if c.Pricing.DisplayFxRate <= 0 {
		return fmt.Errorf("DISPLAY_FX_RATE must be positive")
	}
	if p := c.Upload.FailureProbability; p < 0 || p > 1 {
		return fmt.Errorf("UPLOAD_FAILURE_PROBABILITY must be within [0, 1]")
	}
	if p := c.Heartbeat.PatchProbability; p < 0 || p > 1 {
		return fmt.Errorf("HEARTBEAT_PATCH_PROBABILITY must be within [0, 1]")
	}
	switch c.StoreBackend {
	case BackendMemory, BackendMongo, BackendPostgres:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	return nil
}
