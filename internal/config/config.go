package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the caption gateway service
type Config struct {
	// Server configuration
	Port string `envconfig:"PORT" default:"8080"`

	// Deepgram STT API configuration
	DeepgramAPIKey string `envconfig:"DEEPGRAM_API_KEY" required:"true"`
	STTModel       string `envconfig:"STT_MODEL" default:"nova-2"`   // nova-2, enhanced, base
	STTLanguage    string `envconfig:"STT_LANGUAGE" default:"ko-KR"` // Spoken language of the broadcast
	SampleRate     int    `envconfig:"SAMPLE_RATE" default:"16000"`  // Audio sample rate in Hz
	Channels       int    `envconfig:"CHANNELS" default:"1"`         // Mono
	Encoding       string `envconfig:"ENCODING" default:"linear16"`  // Raw PCM; container formats are auto-detected

	// OpenAI translation API configuration
	OpenAIAPIKey string `envconfig:"OPENAI_API_KEY" required:"true"`
	OpenAIModel  string `envconfig:"OPENAI_MODEL" default:"gpt-4o"`

	// Caption language defaults (per-room, overridable by viewer command)
	SourceLanguage string `envconfig:"SOURCE_LANGUAGE" default:"ko"`
	TargetLanguage string `envconfig:"TARGET_LANGUAGE" default:"en"`

	// Audio ingestion
	MinAudioChunkBytes int `envconfig:"MIN_AUDIO_CHUNK_BYTES" default:"100"` // Smaller frames are treated as metadata and dropped

	// Viewer heartbeat
	PingInterval time.Duration `envconfig:"PING_INTERVAL" default:"30s"` // Server ping cadence
	PongTimeout  time.Duration `envconfig:"PONG_TIMEOUT" default:"15s"`  // Grace period after a ping before eviction

	// Room lifecycle
	RoomIdleTTL   time.Duration `envconfig:"ROOM_IDLE_TTL" default:"10m"` // Empty rooms older than this are evicted
	SweepInterval time.Duration `envconfig:"SWEEP_INTERVAL" default:"1m"`

	// Translation resilience
	TranslateRetryAttempts     int `envconfig:"TRANSLATE_RETRY_ATTEMPTS" default:"2"`
	TranslateRetryBackoff      int `envconfig:"TRANSLATE_RETRY_BACKOFF" default:"200"`      // Initial backoff in milliseconds
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`   // Failures before opening circuit
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"` // Seconds before attempting recovery

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Validate required fields
	if cfg.DeepgramAPIKey == "" {
		return nil, fmt.Errorf("DEEPGRAM_API_KEY is required")
	}
	if cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}
	if cfg.PingInterval <= 0 || cfg.PongTimeout <= 0 {
		return nil, fmt.Errorf("PING_INTERVAL and PONG_TIMEOUT must be positive")
	}

	return &cfg, nil
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
