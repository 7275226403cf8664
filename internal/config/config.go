package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"

	"ghdash/internal/validation"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"

	envPrefix = "GHDASH_"
)

var (
	ErrMissingCORSOrigins = errors.New("CORS allowed origins must be explicitly configured in production")
	ErrMissingGitHubToken = errors.New("github token is not configured")
)

// DefaultDevOrigins are allowed when no origins are configured outside
// production.
var DefaultDevOrigins = []string{"http://localhost:5173", "https://localhost:5173"}

type Config struct {
	Server  ServerConfig  `yaml:"server" koanf:"server"`
	GitHub  GitHubConfig  `yaml:"github" koanf:"github"`
	Cache   CacheConfig   `yaml:"cache" koanf:"cache"`
	Groq    GroqConfig    `yaml:"groq" koanf:"groq"`
	Logging LoggingConfig `yaml:"logging" koanf:"logging"`
}

type ServerConfig struct {
	Address         string        `yaml:"address" koanf:"address" validate:"required"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" koanf:"shutdown_timeout" validate:"gt=0"`
	Environment     string        `yaml:"environment" koanf:"environment" validate:"oneof=development production test"`
	CORSOrigins     []string      `yaml:"corsOrigins" koanf:"cors_origins"`
	IPBlockCIDRs    []string      `yaml:"ipBlockCIDRs" koanf:"ip_block_cidrs" validate:"dive,cidr"`
	TLS             TLSConfig     `yaml:"tls" koanf:"tls"`
}

type TLSConfig struct {
	Enabled  bool   `yaml:"enabled" koanf:"enabled"`
	CertFile string `yaml:"certFile" koanf:"cert_file" validate:"required_if=Enabled true"`
	KeyFile  string `yaml:"keyFile" koanf:"key_file" validate:"required_if=Enabled true"`
}

type GitHubConfig struct {
	BaseURL   string        `yaml:"baseURL" koanf:"base_url" validate:"required,http_url"`
	Token     string        `yaml:"token" koanf:"token"`
	UserAgent string        `yaml:"userAgent" koanf:"user_agent" validate:"required"`
	Timeout   time.Duration `yaml:"timeout" koanf:"timeout" validate:"gt=0"`
}

type CacheConfig struct {
	TTL           time.Duration `yaml:"ttl" koanf:"ttl" validate:"gt=0"`
	Shards        int           `yaml:"shards" koanf:"shards" validate:"min=1,max=4096"`
	SweepInterval time.Duration `yaml:"sweepInterval" koanf:"sweep_interval" validate:"gt=0"`
}

type GroqConfig struct {
	APIURL      string        `yaml:"apiURL" koanf:"api_url" validate:"required,http_url"`
	APIKey      string        `yaml:"apiKey" koanf:"api_key"`
	Model       string        `yaml:"model" koanf:"model" validate:"required"`
	Temperature float64       `yaml:"temperature" koanf:"temperature" validate:"gte=0,lte=2"`
	MaxTokens   int           `yaml:"maxTokens" koanf:"max_tokens" validate:"gt=0"`
	Timeout     time.Duration `yaml:"timeout" koanf:"timeout" validate:"gt=0"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" koanf:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" koanf:"format" validate:"oneof=json console"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Address:         ":8080",
			ShutdownTimeout: 10 * time.Second,
			Environment:     EnvDevelopment,
		},
		GitHub: GitHubConfig{
			BaseURL:   "https://api.github.com/",
			UserAgent: "GitHubDashboardAPI",
			Timeout:   15 * time.Second,
		},
		Cache: CacheConfig{
			TTL:           60 * time.Second,
			Shards:        32,
			SweepInterval: time.Minute,
		},
		Groq: GroqConfig{
			APIURL:      "https://api.groq.com/openai/v1/chat/completions",
			Model:       "llama-3.3-70b-versatile",
			Temperature: 0.7,
			MaxTokens:   1024,
			Timeout:     60 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file at
// path and the environment, in increasing precedence, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("unmarshal yaml: %w", err)
		}
	}

	k := koanf.New(".")
	if err := k.Load(structs.Provider(cfg, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load file layer: %w", err)
	}
	if err := k.Load(env.ProviderWithValue("", ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	out := &Config{}
	if err := k.Unmarshal("", out); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

// Validate checks field rules and environment specific requirements. Outside
// production it fills in the development CORS origins.
func (c *Config) Validate() error {
	if err := validation.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if len(c.Server.CORSOrigins) == 0 {
		if c.IsProduction() {
			return ErrMissingCORSOrigins
		}
		c.Server.CORSOrigins = append([]string(nil), DefaultDevOrigins...)
	}

	if c.IsProduction() && strings.TrimSpace(c.GitHub.Token) == "" {
		return ErrMissingGitHubToken
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Server.Environment == EnvProduction
}

var sliceKeys = map[string]bool{
	"server.cors_origins":   true,
	"server.ip_block_cidrs": true,
}

// envTransform maps environment variables onto config keys:
//
//	GHDASH_SERVER_SHUTDOWN_TIMEOUT -> server.shutdown_timeout
//	GITHUB_TOKEN                   -> github.token
//	GROQ_API_KEY                   -> groq.api_key
//	CACHE_TTL_SECONDS              -> cache.ttl (seconds)
//
// Anything else is ignored.
func envTransform(key, value string) (string, any) {
	switch key {
	case "GITHUB_TOKEN":
		return "github.token", value
	case "GROQ_API_KEY":
		return "groq.api_key", value
	case "CACHE_TTL_SECONDS":
		secs, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || secs <= 0 {
			return "", nil
		}
		return "cache.ttl", time.Duration(secs) * time.Second
	}

	if !strings.HasPrefix(key, envPrefix) {
		return "", nil
	}
	section, rest, ok := strings.Cut(strings.ToLower(strings.TrimPrefix(key, envPrefix)), "_")
	if !ok || section == "" || rest == "" {
		return "", nil
	}

	path := section + "." + rest
	if path == "server.tls_enabled" || path == "server.tls_cert_file" || path == "server.tls_key_file" {
		path = "server.tls." + strings.TrimPrefix(rest, "tls_")
	}
	if sliceKeys[path] {
		return path, splitList(value)
	}
	return path, value
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
