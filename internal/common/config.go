package common

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database    DatabaseConfig
	Server      ServerConfig
	Vision      VisionConfig
	Translation TranslationConfig
	Imaging     ImagingConfig
	Tracing     TracingConfig
	Archive     ArchiveConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds HTTP and gRPC listener configuration
type ServerConfig struct {
	HTTPAddr             string
	GRPCAddr             string
	UploadDir            string
	MaxUploadBytes       int64
	RateLimitRPS         float64
	RateLimitBurst       int
	MaxConcurrentUploads int64
	MaxImagePixels       int
	ShutdownTimeout      time.Duration
}

// VisionConfig selects and configures the handwriting extraction provider.
type VisionConfig struct {
	Provider     string // "openai" (any OpenAI-compatible endpoint) or "gemini"
	APIKey       string
	BaseURL      string
	Model        string
	GeminiAPIKey string
	GeminiModel  string
	Timeout      time.Duration
}

// TranslationConfig configures the text model used for translation and classification.
type TranslationConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

type ImagingConfig struct {
	Enabled   bool
	MaxPixels int
}

// TracingConfig holds Langfuse credentials. Tracing is off when either key is empty.
type TracingConfig struct {
	PublicKey     string
	SecretKey     string
	Host          string
	FlushInterval time.Duration
	BatchSize     int
}

// ArchiveConfig configures optional S3-compatible archival of uploads.
type ArchiveConfig struct {
	Bucket          string
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

const (
	VisionProviderOpenAI = "openai"
	VisionProviderGemini = "gemini"
)

// matches imaging.DefaultMaxPixels
const defaultMaxImagePixels = 89_478_485

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:              getEnv("DB_URL", "file:forms.db?_pragma=busy_timeout(5000)"),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 2),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			HTTPAddr:             getEnv("HTTP_ADDR", ":8000"),
			GRPCAddr:             getEnv("GRPC_ADDR", ":8081"),
			UploadDir:            getEnv("UPLOAD_DIR", "uploads"),
			MaxUploadBytes:       getEnvAsInt64("MAX_UPLOAD_BYTES", 10*1024*1024),
			RateLimitRPS:         getEnvAsFloat64("RATE_LIMIT_RPS", 5),
			RateLimitBurst:       getEnvAsInt("RATE_LIMIT_BURST", 10),
			MaxConcurrentUploads: getEnvAsInt64("MAX_CONCURRENT_UPLOADS", 4),
			MaxImagePixels:       getEnvAsInt("IMAGE_MAX_PIXELS", defaultMaxImagePixels),
			ShutdownTimeout:      getEnvAsDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		Vision: VisionConfig{
			Provider:     strings.ToLower(getEnv("VISION_PROVIDER", VisionProviderOpenAI)),
			APIKey:       getEnv("HF_TOKEN", ""),
			BaseURL:      getEnv("VISION_BASE_URL", "https://router.huggingface.co/v1"),
			Model:        getEnv("VISION_MODEL", "Qwen/Qwen2.5-VL-7B-Instruct:hyperbolic"),
			GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
			GeminiModel:  getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
			Timeout:      getEnvAsDuration("VISION_TIMEOUT", 120*time.Second),
		},
		Translation: TranslationConfig{
			APIKey:      getEnv("GROQ_API_KEY", ""),
			BaseURL:     getEnv("TRANSLATION_BASE_URL", "https://api.groq.com/openai/v1"),
			Model:       getEnv("TRANSLATION_MODEL", "mixtral-8x7b-32768"),
			Temperature: getEnvAsFloat32("TRANSLATION_TEMPERATURE", 0.3),
			MaxTokens:   getEnvAsInt("TRANSLATION_MAX_TOKENS", 2000),
			Timeout:     getEnvAsDuration("TRANSLATION_TIMEOUT", 60*time.Second),
		},
		Imaging: ImagingConfig{
			Enabled:   getEnvAsBool("ENABLE_IMAGE_PREPROCESSING", true),
			MaxPixels: getEnvAsInt("IMAGE_MAX_PIXELS", defaultMaxImagePixels),
		},
		Tracing: TracingConfig{
			PublicKey:     getEnv("LANGFUSE_PUBLIC_KEY", ""),
			SecretKey:     getEnv("LANGFUSE_SECRET_KEY", ""),
			Host:          getEnv("LANGFUSE_HOST", "https://cloud.langfuse.com"),
			FlushInterval: getEnvAsDuration("LANGFUSE_FLUSH_INTERVAL", 2*time.Second),
			BatchSize:     getEnvAsInt("LANGFUSE_BATCH_SIZE", 50),
		},
		Archive: ArchiveConfig{
			Bucket:          getEnv("ARCHIVE_BUCKET", ""),
			Endpoint:        getEnv("ARCHIVE_ENDPOINT", ""),
			Region:          getEnv("ARCHIVE_REGION", "auto"),
			AccessKeyID:     getEnv("ARCHIVE_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("ARCHIVE_SECRET_ACCESS_KEY", ""),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.ToLower(value)); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// VisionConfigured reports whether the selected vision provider has credentials.
func (c *Config) VisionConfigured() bool {
	switch c.Vision.Provider {
	case VisionProviderGemini:
		return c.Vision.GeminiAPIKey != ""
	default:
		return c.Vision.APIKey != ""
	}
}

// TracingEnabled reports whether both Langfuse keys are present.
func (c *Config) TracingEnabled() bool {
	return c.Tracing.PublicKey != "" && c.Tracing.SecretKey != ""
}

// Validate checks the loaded configuration. Missing provider credentials are not an error:
// the server starts degraded and reports 503 on upload.
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if c.Server.HTTPAddr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	}
	if c.Server.MaxUploadBytes <= 0 {
		return NewAppError("CONFIG_ERROR", "MAX_UPLOAD_BYTES must be positive", ErrInvalidInput)
	}
	switch c.Vision.Provider {
	case VisionProviderOpenAI, VisionProviderGemini:
	default:
		return NewAppError("CONFIG_ERROR", "VISION_PROVIDER must be openai or gemini", ErrInvalidInput)
	}
	if c.Translation.MaxTokens <= 0 {
		return NewAppError("CONFIG_ERROR", "TRANSLATION_MAX_TOKENS must be positive", ErrInvalidInput)
	}
	return nil
}
