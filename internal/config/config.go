// Package config provides configuration loading and validation for the CLI and server.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jonathan/contract-analyzer/internal/analysis"
	"github.com/jonathan/contract-analyzer/internal/llm"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. CONTRACT_SERVER_PORT.
const EnvPrefix = "CONTRACT"

// Config is the complete application configuration.
// It is read from config.yaml (or .json) and can be overridden by environment variables.
type Config struct {
	Server    ServerConfig    `json:"server" mapstructure:"server"`
	LLM       LLMConfig       `json:"llm" mapstructure:"llm"`
	Retry     RetryConfig     `json:"retry" mapstructure:"retry"`
	Pricing   PricingConfig   `json:"pricing" mapstructure:"pricing"`
	Guardrail GuardrailConfig `json:"guardrail" mapstructure:"guardrail"`
	RateLimit RateLimitConfig `json:"ratelimit" mapstructure:"ratelimit"`
	Log       LogConfig       `json:"log" mapstructure:"log"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port           int           `json:"port" mapstructure:"port" validate:"min=1,max=65535"`
	ReadTimeout    time.Duration `json:"read_timeout" mapstructure:"read_timeout" validate:"gte=0"`
	WriteTimeout   time.Duration `json:"write_timeout" mapstructure:"write_timeout" validate:"gte=0"`
	IdleTimeout    time.Duration `json:"idle_timeout" mapstructure:"idle_timeout" validate:"gte=0"`
	RequestTimeout time.Duration `json:"request_timeout" mapstructure:"request_timeout" validate:"gte=0"`
	CORSOrigins    []string      `json:"cors_origins" mapstructure:"cors_origins"`
}

// LLMConfig contains model provider settings
type LLMConfig struct {
	DefaultModel  string        `json:"default_model" mapstructure:"default_model" validate:"required"`
	Temperature   float32       `json:"temperature" mapstructure:"temperature" validate:"gte=0,lte=2"`
	OpenAIBaseURL string        `json:"openai_base_url" mapstructure:"openai_base_url" validate:"omitempty,url"`
	OpenAIAPIKey  string        `json:"-" mapstructure:"openai_api_key"`
	GeminiAPIKey  string        `json:"-" mapstructure:"gemini_api_key"`
	Timeout       time.Duration `json:"timeout" mapstructure:"timeout" validate:"gte=0"`
}

// RetryConfig bounds re-invocation of the model
type RetryConfig struct {
	MaxRetries     int           `json:"max_retries" mapstructure:"max_retries" validate:"min=0,max=5"`
	InitialBackoff time.Duration `json:"initial_backoff" mapstructure:"initial_backoff" validate:"gte=0"`
	MaxBackoff     time.Duration `json:"max_backoff" mapstructure:"max_backoff" validate:"gte=0"`
	Multiplier     float64       `json:"multiplier" mapstructure:"multiplier" validate:"gte=1"`
	Jitter         float64       `json:"jitter" mapstructure:"jitter" validate:"gte=0,lt=1"`
}

// PricingConfig points at an optional price table override
type PricingConfig struct {
	File string `json:"file" mapstructure:"file"`
}

// GuardrailConfig controls pre-flight screening
type GuardrailConfig struct {
	Enabled   bool   `json:"enabled" mapstructure:"enabled"`
	RulesFile string `json:"rules_file" mapstructure:"rules_file"`
}

// RateLimitConfig controls per-client request throttling
type RateLimitConfig struct {
	Enabled           bool `json:"enabled" mapstructure:"enabled"`
	RequestsPerMinute int  `json:"requests_per_minute" mapstructure:"requests_per_minute" validate:"gte=0"`
	Burst             int  `json:"burst" mapstructure:"burst" validate:"gte=0"`
}

// LogConfig controls the zap logger
type LogConfig struct {
	Level string `json:"level" mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `json:"json" mapstructure:"json"`
}

var configValidator = validator.New()

// Load reads configuration from path, or from config.{yaml,json} in the current
// directory or $HOME/.contract-analyzer when path is empty. A missing file is
// only an error when path was given explicitly.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Provider keys use their conventional names; the prefixed form also works.
	_ = v.BindEnv("llm.openai_api_key", "OPENAI_API_KEY", EnvPrefix+"_LLM_OPENAI_API_KEY")
	_ = v.BindEnv("llm.gemini_api_key", "GEMINI_API_KEY", EnvPrefix+"_LLM_GEMINI_API_KEY")

	if path != "" {
		if !filepath.IsAbs(path) {
			cwd, err := os.Getwd()
			if err != nil {
				return nil, fmt.Errorf("failed to get current directory: %w", err)
			}
			path = filepath.Join(cwd, path)
		}
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.contract-analyzer")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.LLM.DefaultModel = strings.TrimSpace(cfg.LLM.DefaultModel)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file or environment overrides exist.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// defaults always decode
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 5*time.Minute)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.request_timeout", 3*time.Minute)
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("llm.default_model", analysis.DefaultModel)
	v.SetDefault("llm.temperature", analysis.DefaultTemperature)
	v.SetDefault("llm.openai_base_url", "")
	v.SetDefault("llm.openai_api_key", "")
	v.SetDefault("llm.gemini_api_key", "")
	v.SetDefault("llm.timeout", 2*time.Minute)

	retry := analysis.DefaultRetryPolicy()
	v.SetDefault("retry.max_retries", retry.MaxRetries)
	v.SetDefault("retry.initial_backoff", retry.InitialBackoff)
	v.SetDefault("retry.max_backoff", retry.MaxBackoff)
	v.SetDefault("retry.multiplier", retry.Multiplier)
	v.SetDefault("retry.jitter", 0.0)

	v.SetDefault("pricing.file", "")

	v.SetDefault("guardrail.enabled", true)
	v.SetDefault("guardrail.rules_file", "")

	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.requests_per_minute", 30)
	v.SetDefault("ratelimit.burst", 5)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
}

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	if err := configValidator.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return fmt.Errorf("config error: '%s' failed '%s' (got %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("config error: %w", err)
	}

	if c.Retry.MaxBackoff < c.Retry.InitialBackoff {
		return fmt.Errorf("config error: 'retry.max_backoff' must not be less than 'retry.initial_backoff'")
	}
	if c.RateLimit.Enabled && c.RateLimit.RequestsPerMinute == 0 {
		return fmt.Errorf("config error: 'ratelimit.requests_per_minute' must be positive when rate limiting is enabled")
	}

	if c.Pricing.File != "" {
		if _, err := os.Stat(c.Pricing.File); os.IsNotExist(err) {
			return fmt.Errorf("config error: pricing file not found: %s", c.Pricing.File)
		}
	}
	if c.Guardrail.RulesFile != "" {
		if _, err := os.Stat(c.Guardrail.RulesFile); os.IsNotExist(err) {
			return fmt.Errorf("config error: guardrail rules file not found: %s", c.Guardrail.RulesFile)
		}
	}

	return nil
}

// RetryPolicy converts the retry section for the analyzer.
func (c *Config) RetryPolicy() analysis.RetryPolicy {
	return analysis.RetryPolicy{
		MaxRetries:     c.Retry.MaxRetries,
		InitialBackoff: c.Retry.InitialBackoff,
		MaxBackoff:     c.Retry.MaxBackoff,
		Multiplier:     c.Retry.Multiplier,
		Jitter:         c.Retry.Jitter,
	}
}

// ProviderConfig converts the llm section for the provider clients.
func (c *Config) ProviderConfig() *llm.Config {
	cfg := llm.DefaultConfig()
	if llm.ProviderForModel(c.LLM.DefaultModel) == llm.ProviderGemini {
		cfg = llm.DefaultGeminiConfig()
	}
	cfg = cfg.WithModel(llm.TierStandard, c.LLM.DefaultModel)
	cfg.OpenAIAPIKey = c.LLM.OpenAIAPIKey
	if c.LLM.OpenAIBaseURL != "" {
		cfg.OpenAIBaseURL = c.LLM.OpenAIBaseURL
	}
	cfg.GeminiAPIKey = c.LLM.GeminiAPIKey
	if c.LLM.Timeout > 0 {
		cfg.Timeout = c.LLM.Timeout
	}
	return cfg
}
