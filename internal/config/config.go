package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"smart-support-bot/pkg/dataset"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Bot       BotConfig
	Dataset   DatasetConfig
	Session   SessionConfig
	Telemetry TelemetryConfig
}

type AppConfig struct {
	Port               string `validate:"required,numeric"`
	Environment        string
	LogFilePath        string
	LogLevel           string `validate:"oneof=DEBUG INFO WARN WARNING ERROR CRITICAL"`
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
}

type BotConfig struct {
	// Token is owned by the messaging transport; the core only requires it
	// to be present.
	Token string `validate:"required"`
	Name  string
}

type DatasetConfig struct {
	Source        string `validate:"oneof=local remote google_sheets"`
	SheetID       string
	SheetName     string `validate:"required"`
	SheetsAPIKey  string
	SheetsBaseURL string `validate:"omitempty,url"`
	LocalPath     string
	FetchTimeout  time.Duration `validate:"gt=0"`
}

type SessionConfig struct {
	// IdleTTL of zero keeps sessions for the lifetime of the process.
	IdleTTL           time.Duration `validate:"gte=0"`
	MessageEditWindow time.Duration `validate:"gte=0"`
}

type TelemetryConfig struct {
	OtelEnabled  bool
	OtelEndpoint string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}
	return FromEnv()
}

// FromEnv builds the config from the process environment only.
func FromEnv() *Config {
	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/bot.log"),
			LogLevel:           strings.ToUpper(getEnv("LOG_LEVEL", "INFO")),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
			NatsURL:            getEnv("NATS_URL", ""),
			RedisURL:           getEnv("REDIS_URL", ""),
		},
		Bot: BotConfig{
			Token: getEnv("BOT_TOKEN", ""),
			Name:  getEnv("BOT_NAME", "Smart Support Bot"),
		},
		Dataset: DatasetConfig{
			Source:        strings.ToLower(getEnv("DATA_SOURCE", "local")),
			SheetID:       getEnv("GOOGLE_SHEET_ID", ""),
			SheetName:     getEnv("GOOGLE_SHEET_NAME", "measures_sheet"),
			SheetsAPIKey:  getEnv("GOOGLE_SHEETS_API_KEY", ""),
			SheetsBaseURL: getEnv("GOOGLE_SHEETS_BASE_URL", dataset.DefaultSheetsBaseURL),
			LocalPath:     getEnv("LOCAL_DATASET_PATH", ""),
			FetchTimeout:  getEnvAsDuration("DATASET_FETCH_TIMEOUT", 30*time.Second),
		},
		Session: SessionConfig{
			IdleTTL:           getEnvAsDuration("SESSION_IDLE_TTL", 0),
			MessageEditWindow: getEnvAsDuration("MESSAGE_EDIT_WINDOW", 48*time.Hour),
		},
		Telemetry: TelemetryConfig{
			OtelEnabled:  getEnvAsBool("OTEL_ENABLED", false),
			OtelEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
		},
	}
}

// Validate reports the configuration errors that must stop startup.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// DatasetSource maps the dataset settings to a store source descriptor.
func (c *Config) DatasetSource() (dataset.Source, error) {
	kind, err := dataset.ParseSourceKind(c.Dataset.Source)
	if err != nil {
		return dataset.Source{}, err
	}
	if kind == dataset.SourceRemote {
		return dataset.RemoteSource(c.Dataset.SheetID, c.Dataset.SheetName), nil
	}
	return dataset.LocalSource(c.Dataset.LocalPath), nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go durations ("90s", "2h") and plain seconds.
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if strValue == "" {
		return fallback
	}
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	if seconds, err := strconv.Atoi(strValue); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return fallback
}
