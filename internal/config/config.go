package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"lakeattr/internal/errors"
)

// Config represents the process-level configuration read from the environment
type Config struct {
	Log       LogConfig
	Output    OutputConfig
	Bootstrap BootstrapConfig
	Analysis  AnalysisConfig
	StudyFile string
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string
	Format string
}

// OutputConfig holds where reports and metrics are written
type OutputConfig struct {
	Dir             string
	MetricsTextfile string
}

// BootstrapConfig holds resampling settings that are not part of a study
type BootstrapConfig struct {
	Workers int
}

// AnalysisConfig holds numerical settings
type AnalysisConfig struct {
	InstabilityThreshold float64
}

// LoadDotEnv loads .env files into the environment. Missing files are not
// an error; with no arguments ./.env is tried.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return errors.Wrap(errors.ConfigInvalid(err.Error()), "failed to load .env")
	}
	return nil
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Log: LogConfig{
			Level:  strings.ToUpper(getEnvOrDefault("LOG_LEVEL", "INFO")),
			Format: strings.ToLower(getEnvOrDefault("LOG_FORMAT", "console")),
		},
		Output: OutputConfig{
			Dir:             getEnvOrDefault("OUTPUT_DIR", "./output"),
			MetricsTextfile: getEnvOrDefault("METRICS_TEXTFILE", ""),
		},
		StudyFile: getEnvOrDefault("STUDY_FILE", "study.hcl"),
	}

	workers, err := getEnvIntOrDefault("BOOTSTRAP_WORKERS", runtime.NumCPU())
	if err != nil {
		return nil, err
	}
	config.Bootstrap.Workers = workers

	threshold, err := getEnvFloatOrDefault("INSTABILITY_THRESHOLD", 1e-10)
	if err != nil {
		return nil, err
	}
	config.Analysis.InstabilityThreshold = threshold

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

func validateConfig(config *Config) error {
	switch config.Log.Level {
	case "ERROR", "WARN", "INFO", "DEBUG", "TRACE":
	default:
		return errors.ConfigInvalid(fmt.Sprintf("LOG_LEVEL %q is not one of ERROR, WARN, INFO, DEBUG, TRACE", config.Log.Level))
	}
	switch config.Log.Format {
	case "json", "console":
	default:
		return errors.ConfigInvalid(fmt.Sprintf("LOG_FORMAT %q is not json or console", config.Log.Format))
	}
	if config.Output.Dir == "" {
		return errors.ConfigInvalid("OUTPUT_DIR must not be empty")
	}
	if config.Bootstrap.Workers < 1 {
		return errors.ConfigInvalid(fmt.Sprintf("BOOTSTRAP_WORKERS must be at least 1, got %d", config.Bootstrap.Workers))
	}
	if !(config.Analysis.InstabilityThreshold > 0 && config.Analysis.InstabilityThreshold < 1) {
		return errors.ConfigInvalid(fmt.Sprintf("INSTABILITY_THRESHOLD must be in (0, 1), got %v", config.Analysis.InstabilityThreshold))
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return 0, errors.ConfigInvalid(fmt.Sprintf("%s must be an integer, got %q", key, value))
	}
	return intValue, nil
}

func getEnvFloatOrDefault(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	floatValue, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, errors.ConfigInvalid(fmt.Sprintf("%s must be a number, got %q", key, value))
	}
	return floatValue, nil
}
