// Package config loads scribeq configuration from the environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration values.
type Config struct {
	// SurrealDB connection (empty URL selects the in-memory job store)
	SurrealDBURL       string
	SurrealDBNamespace string
	SurrealDBDatabase  string
	SurrealDBUser      string
	SurrealDBPass      string
	SurrealDBAuthLevel string

	// Routing
	DefaultModel string

	// Model files for the whisper.cpp runtime
	ModelFastPath  string
	ModelLargePath string
	ModelCacheSize int

	// Enhancement pipeline
	EnableEnhancements bool
	PipelineComponents []string // ordered, empty = disabled
	VADAggressiveness  int
	RefineWindowMS     int
	SplitMaxSeconds    float64
	SplitMaxChars      int
	MergeMinSeconds    float64

	// Worker / queue
	JobRoot      string
	QueueDepth   int
	HeartbeatTTL time.Duration

	// HTTP API
	ListenAddr string

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// Load reads configuration from environment variables, validating every
// value eagerly. Out-of-range values are rejected, never clamped.
func Load() (Config, error) {
	// Optional .env for local development; absence is not an error.
	_ = godotenv.Load()

	cfg := Config{
		SurrealDBURL:       getEnv("SURREALDB_URL", ""),
		SurrealDBNamespace: getEnv("SURREALDB_NAMESPACE", "scribeq"),
		SurrealDBDatabase:  getEnv("SURREALDB_DATABASE", "jobs"),
		SurrealDBUser:      getEnv("SURREALDB_USER", "root"),
		SurrealDBPass:      getEnv("SURREALDB_PASS", "root"),
		SurrealDBAuthLevel: getEnv("SURREALDB_AUTH_LEVEL", "root"),

		DefaultModel: getEnv("SCRIBEQ_DEFAULT_MODEL", "auto"),

		ModelFastPath:  getEnv("SCRIBEQ_MODEL_FAST_PATH", "models/ggml-base.bin"),
		ModelLargePath: getEnv("SCRIBEQ_MODEL_LARGE_PATH", "models/ggml-large-v3.bin"),

		JobRoot:    getEnv("SCRIBEQ_JOB_ROOT", "jobs"),
		ListenAddr: getEnv("SCRIBEQ_LISTEN_ADDR", ":8520"),

		LogFile:  getEnv("SCRIBEQ_LOG_FILE", "/tmp/scribeq.log"),
		LogLevel: parseLogLevel(getEnv("SCRIBEQ_LOG_LEVEL", "INFO")),
	}

	var err error
	if cfg.EnableEnhancements, err = getEnvBool("SCRIBEQ_ENABLE_ENHANCEMENTS", true); err != nil {
		return Config{}, err
	}
	if cfg.VADAggressiveness, err = getEnvInt("SCRIBEQ_VAD_AGGRESSIVENESS", 1); err != nil {
		return Config{}, err
	}
	if cfg.RefineWindowMS, err = getEnvInt("SCRIBEQ_REFINE_WINDOW_MS", 200); err != nil {
		return Config{}, err
	}
	if cfg.SplitMaxSeconds, err = getEnvFloat("SCRIBEQ_SPLIT_MAX_SECONDS", 7); err != nil {
		return Config{}, err
	}
	if cfg.SplitMaxChars, err = getEnvInt("SCRIBEQ_SPLIT_MAX_CHARS", 200); err != nil {
		return Config{}, err
	}
	if cfg.MergeMinSeconds, err = getEnvFloat("SCRIBEQ_MERGE_MIN_SECONDS", 1); err != nil {
		return Config{}, err
	}
	if cfg.QueueDepth, err = getEnvInt("SCRIBEQ_QUEUE_DEPTH", 64); err != nil {
		return Config{}, err
	}
	if cfg.ModelCacheSize, err = getEnvInt("SCRIBEQ_MODEL_CACHE_SIZE", 2); err != nil {
		return Config{}, err
	}

	ttl := getEnv("SCRIBEQ_HEARTBEAT_TTL", "30s")
	cfg.HeartbeatTTL, err = time.ParseDuration(ttl)
	if err != nil {
		return Config{}, fmt.Errorf("SCRIBEQ_HEARTBEAT_TTL: %w", err)
	}

	// An explicitly empty SCRIBEQ_ENHANCEMENT_PIPELINE disables enhancement,
	// so this one distinguishes unset from empty.
	raw, ok := os.LookupEnv("SCRIBEQ_ENHANCEMENT_PIPELINE")
	if !ok {
		raw = "vad,refine,split"
	}
	if raw != "" {
		for _, name := range strings.Split(raw, ",") {
			name = strings.TrimSpace(name)
			if name != "" {
				cfg.PipelineComponents = append(cfg.PipelineComponents, name)
			}
		}
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// validate rejects values outside their documented ranges.
func (c Config) validate() error {
	if c.VADAggressiveness < 0 || c.VADAggressiveness > 3 {
		return fmt.Errorf("SCRIBEQ_VAD_AGGRESSIVENESS must be 0-3, got %d", c.VADAggressiveness)
	}
	if c.RefineWindowMS <= 0 {
		return fmt.Errorf("SCRIBEQ_REFINE_WINDOW_MS must be positive, got %d", c.RefineWindowMS)
	}
	if c.SplitMaxSeconds <= 0 {
		return fmt.Errorf("SCRIBEQ_SPLIT_MAX_SECONDS must be positive, got %g", c.SplitMaxSeconds)
	}
	if c.SplitMaxChars <= 0 {
		return fmt.Errorf("SCRIBEQ_SPLIT_MAX_CHARS must be positive, got %d", c.SplitMaxChars)
	}
	if c.MergeMinSeconds < 0 {
		return fmt.Errorf("SCRIBEQ_MERGE_MIN_SECONDS must not be negative, got %g", c.MergeMinSeconds)
	}
	if c.MergeMinSeconds >= c.SplitMaxSeconds {
		return fmt.Errorf("SCRIBEQ_MERGE_MIN_SECONDS (%g) must be below SCRIBEQ_SPLIT_MAX_SECONDS (%g)",
			c.MergeMinSeconds, c.SplitMaxSeconds)
	}
	if c.QueueDepth < 1 {
		return fmt.Errorf("SCRIBEQ_QUEUE_DEPTH must be at least 1, got %d", c.QueueDepth)
	}
	if c.ModelCacheSize < 1 {
		return fmt.Errorf("SCRIBEQ_MODEL_CACHE_SIZE must be at least 1, got %d", c.ModelCacheSize)
	}
	if c.HeartbeatTTL < time.Second {
		return fmt.Errorf("SCRIBEQ_HEARTBEAT_TTL must be at least 1s, got %s", c.HeartbeatTTL)
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultVal, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return val, nil
}

func getEnvFloat(key string, defaultVal float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultVal, nil
	}
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return val, nil
}

func getEnvBool(key string, defaultVal bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultVal, nil
	}
	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return val, nil
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
