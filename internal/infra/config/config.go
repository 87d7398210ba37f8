package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Supported generative AI providers.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Config aggregates runtime configuration used across the service.
type Config struct {
	HTTP        HTTPConfig        `yaml:"http"`
	LLM         LLMConfig         `yaml:"llm"`
	Session     SessionConfig     `yaml:"session"`
	Audit       AuditConfig       `yaml:"audit"`
	Diagnostics DiagnosticsConfig `yaml:"diagnostics"`
}

// HTTPConfig controls server level behavior.
type HTTPConfig struct {
	Address        string        `yaml:"address"`
	ReadTimeout    time.Duration `yaml:"readTimeout"`
	WriteTimeout   time.Duration `yaml:"writeTimeout"`
	AllowedOrigins []string      `yaml:"allowedOrigins"`
}

// LLMConfig contains the generative AI provider settings.
type LLMConfig struct {
	Provider        string  `yaml:"provider"`
	APIKey          string  `yaml:"apiKey"`
	BaseURL         string  `yaml:"baseUrl"`
	Model           string  `yaml:"model"`
	Temperature     float32 `yaml:"temperature"`
	SearchGrounding bool    `yaml:"searchGrounding"`
}

// SessionConfig controls the browser session store.
type SessionConfig struct {
	TTL    time.Duration `yaml:"ttl"`
	Valkey ValkeyConfig  `yaml:"valkey"`
}

// ValkeyConfig contains connection information for the session store.
type ValkeyConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// AuditConfig controls the analysis audit log.
type AuditConfig struct {
	DefaultLimit int            `yaml:"defaultLimit"`
	MaxLimit     int            `yaml:"maxLimit"`
	Postgres     PostgresConfig `yaml:"postgres"`
}

// PostgresConfig contains DSN and pooling settings.
type PostgresConfig struct {
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"maxConns"`
	MinConns int32  `yaml:"minConns"`
}

// DiagnosticsConfig controls where malformed model output is kept.
type DiagnosticsConfig struct {
	S3 S3Config `yaml:"s3"`
}

// S3Config describes an S3 compatible bucket.
type S3Config struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
}

// Load reads configuration from .env, a YAML file and environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := defaultConfig()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := hydrateFromFile(cfg, path); err != nil {
			return nil, err
		}
	} else if _, err := os.Stat("configs/config.yaml"); err == nil {
		if err := hydrateFromFile(cfg, "configs/config.yaml"); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func hydrateFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HTTP_ADDRESS"); v != "" {
		cfg.HTTP.Address = v
	} else if v := os.Getenv("PORT"); v != "" {
		cfg.HTTP.Address = ":" + v
	}
	if v := os.Getenv("HTTP_ALLOWED_ORIGINS"); v != "" {
		cfg.HTTP.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(v))
	}
	for _, key := range []string{"API_KEY", "GEMINI_API_KEY", "LLM_API_KEY"} {
		if v := os.Getenv(key); v != "" {
			cfg.LLM.APIKey = v
		}
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("LLM_TEMPERATURE"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 32); err == nil {
			cfg.LLM.Temperature = float32(parsed)
		}
	}
	if v := os.Getenv("LLM_SEARCH_GROUNDING"); v != "" {
		cfg.LLM.SearchGrounding = parseBool(v)
	}
	if v := os.Getenv("SESSION_TTL"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.Session.TTL = parsed
		}
	}
	if v := os.Getenv("SESSION_VALKEY_ENABLED"); v != "" {
		cfg.Session.Valkey.Enabled = parseBool(v)
	}
	if v := os.Getenv("SESSION_VALKEY_ADDR"); v != "" {
		cfg.Session.Valkey.Addr = v
	}
	if v := os.Getenv("AUDIT_POSTGRES_DSN"); v != "" {
		cfg.Audit.Postgres.DSN = v
	}
	if v := os.Getenv("AUDIT_POSTGRES_MAX_CONNS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Audit.Postgres.MaxConns = int32(parsed)
		}
	}
	if v := os.Getenv("AUDIT_POSTGRES_MIN_CONNS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Audit.Postgres.MinConns = int32(parsed)
		}
	}
	if v := os.Getenv("DIAGNOSTICS_S3_ENABLED"); v != "" {
		cfg.Diagnostics.S3.Enabled = parseBool(v)
	}
	if v := os.Getenv("DIAGNOSTICS_S3_ENDPOINT"); v != "" {
		cfg.Diagnostics.S3.Endpoint = v
	}
	if v := os.Getenv("DIAGNOSTICS_S3_ACCESS_KEY"); v != "" {
		cfg.Diagnostics.S3.AccessKey = v
	}
	if v := os.Getenv("DIAGNOSTICS_S3_SECRET_KEY"); v != "" {
		cfg.Diagnostics.S3.SecretKey = v
	}
	if v := os.Getenv("DIAGNOSTICS_S3_BUCKET"); v != "" {
		cfg.Diagnostics.S3.Bucket = v
	}
	if v := os.Getenv("DIAGNOSTICS_S3_REGION"); v != "" {
		cfg.Diagnostics.S3.Region = v
	}
}

func parseBool(v string) bool {
	return v == "1" || strings.EqualFold(v, "true")
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if clean := strings.TrimSpace(part); clean != "" {
			out = append(out, clean)
		}
	}
	return out
}

func defaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 120 * time.Second,
		},
		LLM: LLMConfig{
			Provider:        ProviderGemini,
			Model:           "gemini-2.5-flash",
			Temperature:     0,
			SearchGrounding: true,
		},
		Session: SessionConfig{
			TTL: 2 * time.Hour,
		},
		Audit: AuditConfig{
			DefaultLimit: 50,
			MaxLimit:     1000,
			Postgres: PostgresConfig{
				MaxConns: 4,
			},
		},
		Diagnostics: DiagnosticsConfig{
			S3: S3Config{
				Bucket: "horizon-diagnostics",
				Region: "auto",
			},
		},
	}
}

// Validate ensures the configuration is safe to use.
func (c *Config) Validate() error {
	if c.HTTP.Address == "" {
		return errors.New("http.address cannot be empty")
	}
	switch c.LLM.Provider {
	case ProviderGemini, ProviderOpenAI:
	default:
		return fmt.Errorf("llm.provider must be %q or %q", ProviderGemini, ProviderOpenAI)
	}
	if strings.TrimSpace(c.LLM.Model) == "" {
		return errors.New("llm.model cannot be empty")
	}
	if c.Session.TTL <= 0 {
		return errors.New("session.ttl must be positive")
	}
	if c.Session.Valkey.Enabled && strings.TrimSpace(c.Session.Valkey.Addr) == "" {
		return errors.New("session.valkey.addr cannot be empty when valkey is enabled")
	}
	if c.Audit.DefaultLimit <= 0 {
		return errors.New("audit.defaultLimit must be positive")
	}
	if c.Audit.MaxLimit < c.Audit.DefaultLimit {
		return errors.New("audit.maxLimit cannot be lower than audit.defaultLimit")
	}
	if s3 := c.Diagnostics.S3; s3.Enabled {
		if strings.TrimSpace(s3.Endpoint) == "" || strings.TrimSpace(s3.Bucket) == "" {
			return errors.New("diagnostics.s3 endpoint and bucket are required when enabled")
		}
	}
	return nil
}
