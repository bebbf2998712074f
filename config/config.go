package config

import (
	"fmt"
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	SourcePath     string  `envconfig:"LOAN_SOURCE_PATH" default:"./data/loans_full_schema.csv" validate:"required"`
	CSVOutputPath  string  `envconfig:"ANALYSIS_OUTPUT_PATH" default:"./output/cleaned_df.csv" validate:"required"`
	XLSXOutputPath string  `envconfig:"XLSX_OUTPUT_PATH" default:""`
	MissingCutoff  float64 `envconfig:"MISSING_THRESHOLD" default:"0.40" validate:"gt=0,lte=1"`
	OutlierWorkers int     `envconfig:"OUTLIER_WORKERS" default:"4" validate:"gte=0"`
	SampleSeed     int64   `envconfig:"SAMPLE_SEED" default:"1"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn warning error"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text" validate:"oneof=text json"`

	PostgresEnabled  bool   `envconfig:"POSTGRES_ENABLED" default:"false"`
	PostgresHost     string `envconfig:"POSTGRES_HOST" default:"localhost"`
	PostgresPort     string `envconfig:"POSTGRES_PORT" default:"5432"`
	PostgresUser     string `envconfig:"POSTGRES_USER" default:"loans"`
	PostgresPassword string `envconfig:"POSTGRES_PASSWORD" default:"loans123"`
	PostgresDB       string `envconfig:"POSTGRES_DB" default:"loans_db"`
	PostgresSSLMode  string `envconfig:"POSTGRES_SSLMODE" default:"disable"`
	MaxRetries       int    `envconfig:"MAX_RETRIES" default:"3" validate:"gte=1"`

	HTTPAddr    string        `envconfig:"HTTP_ADDR" default:":8501" validate:"required"`
	RefreshCron string        `envconfig:"REFRESH_CRON" default:""`
	RedisAddr   string        `envconfig:"REDIS_ADDR" default:""`
	RedisPass   string        `envconfig:"REDIS_PASSWORD" default:""`
	CacheTTL    time.Duration `envconfig:"CACHE_TTL" default:"10m" validate:"gte=0"`
}

// Load reads the .env file (if any), applies environment overrides on top of
// the defaults and validates the result.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}
	return FromEnv()
}

// FromEnv builds a Config from the current process environment only.
func FromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: read env: %w", err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return &cfg, nil
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}
