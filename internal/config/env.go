package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Port        string
	CorsOrigins []string
	JWTSecret   string
	LogLevel    string
	LogFormat   string

	StoreDriver string
	DatabaseURL string
	SqlitePath  string

	ResearchProvider  string
	PerplexityAPIKey  string
	PerplexityModel   string
	PerplexityBaseURL string
	AIAPIKey          string
	GenModel          string

	ResearchConcurrency   int
	ResearchWorkers       int
	ResearchQueueSize     int
	ResearchVectorTimeout time.Duration
	ResearchBatchTimeout  time.Duration
	ProviderRPS           float64

	AwsAccessKey  string
	AwsSecretKey  string
	AwsRegion     string
	ArchiveBucket string
}

// LoadConfig loads the environment variables and return config
func LoadConfig() *Config {

	_ = godotenv.Load()

	return &Config{
		Port:        getEnv("PORT", "8080"),
		CorsOrigins: getEnvList("CORS_ORIGINS", "http://localhost:3000"),
		JWTSecret:   getEnv("JWT_SECRET", ""),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "json"),

		StoreDriver: getEnv("STORE_DRIVER", "postgres"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		SqlitePath:  getEnv("SQLITE_PATH", "careerlyst.db"),

		ResearchProvider:  getEnv("RESEARCH_PROVIDER", "perplexity"),
		PerplexityAPIKey:  getEnv("PERPLEXITY_API_KEY", ""),
		PerplexityModel:   getEnv("PERPLEXITY_MODEL", "sonar"),
		PerplexityBaseURL: getEnv("PERPLEXITY_BASE_URL", "https://api.perplexity.ai"),
		AIAPIKey:          getEnv("GEMINI_API_KEY", ""),
		GenModel:          getEnv("GEN_MODEL", "gemini-1.5-flash"),

		ResearchConcurrency:   getEnvInt("RESEARCH_CONCURRENCY", 4),
		ResearchWorkers:       getEnvInt("RESEARCH_WORKERS", 2),
		ResearchQueueSize:     getEnvInt("RESEARCH_QUEUE_SIZE", 64),
		ResearchVectorTimeout: getEnvDuration("RESEARCH_VECTOR_TIMEOUT", 90*time.Second),
		ResearchBatchTimeout:  getEnvDuration("RESEARCH_BATCH_TIMEOUT", 10*time.Minute),
		ProviderRPS:           getEnvFloat("PROVIDER_RPS", 2),

		AwsAccessKey:  getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey:  getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:     getEnv("AWS_REGION", "us-east-2"),
		ArchiveBucket: getEnv("ARCHIVE_BUCKET", ""),
	}
}

// Validate reports settings the server cannot start without.
// A missing provider key is not fatal: generation requests fail with a provider error instead.
func (c *Config) Validate() error {
	var errs []error
	switch c.StoreDriver {
	case "postgres":
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL not set"))
		}
	case "sqlite":
		if c.SqlitePath == "" {
			errs = append(errs, errors.New("SQLITE_PATH not set"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER %q is not one of postgres, sqlite", c.StoreDriver))
	}
	switch c.ResearchProvider {
	case "perplexity", "gemini":
	default:
		errs = append(errs, fmt.Errorf("RESEARCH_PROVIDER %q is not one of perplexity, gemini", c.ResearchProvider))
	}
	if c.ResearchConcurrency < 1 {
		errs = append(errs, errors.New("RESEARCH_CONCURRENCY must be at least 1"))
	}
	if c.ResearchWorkers < 1 {
		errs = append(errs, errors.New("RESEARCH_WORKERS must be at least 1"))
	}
	if c.ResearchVectorTimeout <= 0 || c.ResearchBatchTimeout <= 0 {
		errs = append(errs, errors.New("research timeouts must be positive"))
	}
	return errors.Join(errs...)
}

// ArchiveEnabled is true when every S3 setting needed for the research archive is present.
func (c *Config) ArchiveEnabled() bool {
	return c.ArchiveBucket != "" && c.AwsAccessKey != "" && c.AwsSecretKey != ""
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		warnDefault(key, v, def)
		return def
	}
	return n
}

func getEnvFloat(key string, def float64) float64 {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		warnDefault(key, v, def)
		return def
	}
	return f
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		warnDefault(key, v, def)
		return def
	}
	return d
}

// warnDefault goes to the standard logrus logger; config loads before the app logger exists.
func warnDefault(key, value string, def any) {
	logrus.WithFields(logrus.Fields{
		"key":     key,
		"value":   value,
		"default": def,
	}).Warn("invalid config value, using default")
}

func getEnvList(key, def string) []string {
	var out []string
	for _, p := range strings.Split(getEnv(key, def), ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
