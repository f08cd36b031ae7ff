package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "adocs.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "ADOCS_PORT")
	setString(&cfg.Server.CORSOrigin, "ADOCS_CORS_ORIGIN")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "ADOCS_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "ADOCS_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "ADOCS_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "ADOCS_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "ADOCS_PG_HEALTH_CHECK")
	setString(&cfg.Gateway.URL, "ADOCS_GATEWAY_URL")
	setString(&cfg.Gateway.APIKey, "ADOCS_GATEWAY_API_KEY")
	setDuration(&cfg.Gateway.Timeout, "ADOCS_GATEWAY_TIMEOUT")
	setString(&cfg.Logging.Level, "ADOCS_LOG_LEVEL")
	setString(&cfg.Logging.Service, "ADOCS_LOG_SERVICE")
	setInt(&cfg.Breaker.MaxFailures, "ADOCS_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "ADOCS_BREAKER_TIMEOUT")
	setString(&cfg.Knowledge.Path, "ADOCS_KB_PATH")
	setString(&cfg.Knowledge.MetadataDir, "ADOCS_KB_METADATA_DIR")
	setString(&cfg.Knowledge.EmbeddingModel, "ADOCS_EMBEDDING_MODEL")
	setInt(&cfg.Knowledge.TopK, "ADOCS_KB_TOP_K")
	setStringSlice(&cfg.Generator.Models, "ADOCS_GENERATOR_MODELS")
	setInt(&cfg.Generator.MaxTokens, "ADOCS_GENERATOR_MAX_TOKENS")
	setFloat64(&cfg.Generator.Temperature, "ADOCS_GENERATOR_TEMPERATURE")
	setInt(&cfg.Generator.ContentMaxTokens, "ADOCS_CONTENT_MAX_TOKENS")
	setDuration(&cfg.Generator.ContentDelay, "ADOCS_CONTENT_DELAY")
	setString(&cfg.Docs.RepoConfigPath, "ADOCS_REPO_CONFIG_PATH")
	setString(&cfg.Docs.OutputDir, "ADOCS_OUTPUT_DIR")
	setInt64(&cfg.Cache.MaxSizeMB, "ADOCS_CACHE_MAX_SIZE_MB")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Gateway.URL == "" {
		return errors.New("gateway.url is required")
	}
	if len(cfg.Generator.Models) == 0 {
		return errors.New("generator.models must list at least one model")
	}
	if cfg.Knowledge.TopK < 1 {
		return errors.New("knowledge.top_k must be >= 1")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Generator.Temperature < 0 || cfg.Generator.Temperature > 2 {
		return errors.New("generator.temperature must be in [0, 2]")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// setStringSlice parses a comma-separated env value into a string slice.
func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if len(out) > 0 {
			*dst = out
		}
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
