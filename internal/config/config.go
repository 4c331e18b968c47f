package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App struct {
		ENV  string
		Seed bool
	}

	Log struct {
		Level     string
		Format    string
		Component string
		Source    bool
		File      string
	}

	DB struct {
		Driver   string // mysql | sqlite | memory
		DSN      string
		Host     string
		Port     string
		User     string
		Password string
		Name     string
	}

	Mongo struct {
		URI      string
		Database string
		Profiles bool // serve the profile store from MongoDB
	}

	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	GRPC struct {
		Host string
		Port string
	}

	HTTP struct {
		Addr        string
		CORSOrigins []string // empty allows any origin
	}

	Region struct {
		RulesFile string
	}

	Translation struct {
		Enabled  bool
		Provider string // none | mock | libretranslate
		Endpoint string
		APIKey   string
		Timeout  time.Duration
	}

	Events struct {
		Publisher string // redis | log
	}
}

func New() *Config {
	// .env is optional; real environment always wins
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.App.ENV = getEnvDefault("APP_ENV", "development")
	cfg.App.Seed = isTruthy(os.Getenv("APP_SEED"))

	// Logger
	cfg.Log.Level = getEnvDefault("LOG_LEVEL", "info")
	cfg.Log.Format = getEnvDefault("LOG_FORMAT", "text")
	cfg.Log.Component = getEnvDefault("LOG_COMPONENT", "muzz_connect")
	cfg.Log.Source = isTruthy(os.Getenv("LOG_SOURCE"))
	cfg.Log.File = os.Getenv("LOG_FILE")

	// Database
	cfg.DB.Driver = strings.ToLower(getEnvDefault("DB_DRIVER", "mysql"))
	cfg.DB.DSN = os.Getenv("DB_DSN")
	if cfg.DB.DSN == "" {
		cfg.DB.DSN = os.Getenv("MYSQL_DSN")
	}
	if cfg.DB.DSN == "" {
		switch cfg.DB.Driver {
		case "sqlite":
			cfg.DB.DSN = getEnvDefault("SQLITE_PATH", "muzz.db")
		default:
			cfg.DB.Host = getEnvDefault("DB_HOST", "localhost")
			cfg.DB.Port = getEnvDefault("DB_PORT", "3306")
			cfg.DB.User = getEnvDefault("DB_USER", "root")
			cfg.DB.Password = getEnvDefault("DB_PASSWORD", "root")
			cfg.DB.Name = getEnvDefault("DB_NAME", "muzz")

			cfg.DB.DSN = fmt.Sprintf(
				"%s:%s@tcp(%s:%s)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
				cfg.DB.User, cfg.DB.Password, cfg.DB.Host, cfg.DB.Port, cfg.DB.Name,
			)
		}
	}

	// Mongo
	cfg.Mongo.URI = getEnvDefault("MONGODB_URI", "mongodb://127.0.0.1:27017")
	cfg.Mongo.Database = getEnvDefault("MONGODB_DATABASE", "muzz")
	cfg.Mongo.Profiles = isTruthy(os.Getenv("MONGODB_PROFILES"))

	// Redis
	cfg.Redis.Addr = getEnvDefault("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnvDefault("REDIS_PASSWORD", "")
	if dbStr := getEnvDefault("REDIS_DB", "0"); dbStr != "" {
		if dbInt, err := strconv.Atoi(dbStr); err == nil {
			cfg.Redis.DB = dbInt
		}
	}

	// gRPC
	cfg.GRPC.Host = getEnvDefault("GRPC_HOST", "127.0.0.1")
	cfg.GRPC.Port = getEnvDefault("GRPC_PORT", "50051")

	// HTTP gateway
	cfg.HTTP.Addr = getEnvDefault("HTTP_ADDR", "127.0.0.1:8080")
	cfg.HTTP.CORSOrigins = getListEnv("HTTP_CORS_ORIGINS")

	// Region rules
	cfg.Region.RulesFile = os.Getenv("REGION_RULES_FILE")

	// Translation
	cfg.Translation.Provider = strings.ToLower(getEnvDefault("TRANSLATION_PROVIDER", "none"))
	// on by default only when a real provider is configured
	enabledDefault := "true"
	if cfg.Translation.Provider == "none" || cfg.Translation.Provider == "noop" {
		enabledDefault = "false"
	}
	cfg.Translation.Enabled = isTruthy(getEnvDefault("TRANSLATION_ENABLED", enabledDefault))
	cfg.Translation.Endpoint = getEnvDefault("TRANSLATION_ENDPOINT", "http://localhost:5000")
	cfg.Translation.APIKey = os.Getenv("TRANSLATION_API_KEY")
	cfg.Translation.Timeout = getDurationDefault("TRANSLATION_TIMEOUT", 3*time.Second)

	// Events
	cfg.Events.Publisher = strings.ToLower(getEnvDefault("EVENTS_PUBLISHER", "redis"))

	return cfg
}

func getEnvDefault(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getListEnv(k string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(k), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getDurationDefault(k string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}
