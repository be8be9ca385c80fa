package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	CorsOrigins []string
	LogLevel    string
	LogFormat   string

	LLMProvider     string
	AIAPIKey        string
	GenModel        string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	OpenAIModel     string
	Temperature     float64
	MaxOutputTokens int
	LLMTimeout      time.Duration

	PageLimit        int
	PromptCharBudget int
	MaxUploadMB      int
	TempDir          string

	SessionSecret        string
	SessionTTL           time.Duration
	SessionSweepInterval time.Duration
	SessionStore         string
	DatabaseURL          string
	SslCertPath          string

	DocumentStore string
	AwsAccessKey  string
	AwsSecretKey  string
	AwsRegion     string
	BucketName    string
	S3Endpoint    string
}

// LoadConfig loads the environment variables and return config
func LoadConfig() *Config {

	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		CorsOrigins: getEnvList("CORS_ORIGINS", []string{"http://localhost:5173", "http://localhost:8888"}),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "json"),

		LLMProvider:     strings.ToLower(getEnv("LLM_PROVIDER", "gemini")),
		AIAPIKey:        getEnv("GEMINI_API_KEY", getEnv("GOOGLE_API_KEY", "")),
		GenModel:        getEnv("GEN_MODEL", "gemini-1.5-flash"),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:   getEnv("OPENAI_BASE_URL", ""),
		OpenAIModel:     getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		Temperature:     getEnvFloat("TEMPERATURE", 0.3),
		MaxOutputTokens: getEnvInt("MAX_OUTPUT_TOKENS", 2048),
		LLMTimeout:      getEnvDuration("LLM_TIMEOUT", 60*time.Second),

		PageLimit:        getEnvInt("PAGE_LIMIT", 4),
		PromptCharBudget: getEnvInt("PROMPT_CHAR_BUDGET", 30000),
		MaxUploadMB:      getEnvInt("MAX_UPLOAD_MB", 50),
		TempDir:          getEnv("TEMP_DIR", ""),

		SessionSecret:        getEnv("SESSION_SECRET", ""),
		SessionTTL:           getEnvDuration("SESSION_TTL", 2*time.Hour),
		SessionSweepInterval: getEnvDuration("SESSION_SWEEP_INTERVAL", 5*time.Minute),
		SessionStore:         strings.ToLower(getEnv("SESSION_STORE", "memory")),
		DatabaseURL:          getEnv("DATABASE_URL", ""),
		SslCertPath:          getEnv("SSL_CERT_PATH", ""),

		DocumentStore: strings.ToLower(getEnv("DOCUMENT_STORE", "memory")),
		AwsAccessKey:  getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey:  getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:     getEnv("AWS_REGION", "us-east-2"),
		BucketName:    getEnv("BUCKET_NAME", "smartdoc-docs"),
		S3Endpoint:    getEnv("S3_ENDPOINT", ""),
	}

	return cfg
}

// DefaultCredential is the server-side API key for the configured provider.
// Sessions may override it with their own key.
func (c *Config) DefaultCredential() string {
	if c.LLMProvider == "openai" {
		return c.OpenAIAPIKey
	}
	return c.AIAPIKey
}

// Validate reports settings that cannot work together.
func (c *Config) Validate() error {
	var errs []error
	switch c.LLMProvider {
	case "gemini", "openai":
	default:
		errs = append(errs, fmt.Errorf("LLM_PROVIDER must be gemini or openai, got %q", c.LLMProvider))
	}
	if c.PageLimit < 1 {
		errs = append(errs, fmt.Errorf("PAGE_LIMIT must be at least 1, got %d", c.PageLimit))
	}
	if c.PromptCharBudget < 0 {
		errs = append(errs, fmt.Errorf("PROMPT_CHAR_BUDGET must not be negative, got %d", c.PromptCharBudget))
	}
	if c.MaxUploadMB < 1 {
		errs = append(errs, fmt.Errorf("MAX_UPLOAD_MB must be at least 1, got %d", c.MaxUploadMB))
	}
	if c.SessionTTL <= 0 || c.SessionSweepInterval <= 0 {
		errs = append(errs, errors.New("SESSION_TTL and SESSION_SWEEP_INTERVAL must be positive"))
	}
	switch c.SessionStore {
	case "memory":
	case "postgres":
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL not set for SESSION_STORE=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("SESSION_STORE must be memory or postgres, got %q", c.SessionStore))
	}
	switch c.DocumentStore {
	case "memory":
	case "s3":
		if c.AwsAccessKey == "" || c.AwsSecretKey == "" {
			errs = append(errs, errors.New("AWS credentials not set for DOCUMENT_STORE=s3"))
		}
	default:
		errs = append(errs, fmt.Errorf("DOCUMENT_STORE must be memory or s3, got %q", c.DocumentStore))
	}
	return errors.Join(errs...)
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
		log.Printf("WARN: %s=%q not an int, using default %d", key, v, def)
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
		log.Printf("WARN: %s=%q not a number, using default %g", key, v, def)
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
		log.Printf("WARN: %s=%q not a duration, using default %s", key, v, def)
		return def
	}
	return d
}

func getEnvList(key string, def []string) []string {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
