// Package config loads agent settings from defaults, an optional config
// file, AGT_* environment variables and command-line flags, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/petasbytes/relay-agent/internal/provider"
)

const EnvPrefix = "AGT"

type Config struct {
	MCPServerURL    string        `mapstructure:"mcp_server_url"`
	ProfileID       string        `mapstructure:"profile_id"`
	ConnectRetries  int           `mapstructure:"connect_retries" validate:"gte=1,lte=20"`
	RetryDelay      time.Duration `mapstructure:"retry_delay" validate:"gte=0"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout" validate:"gt=0"`
	ProtocolVersion string        `mapstructure:"protocol_version" validate:"required"`

	Model         string `mapstructure:"model" validate:"required"`
	MaxTokens     int    `mapstructure:"max_tokens" validate:"gt=0"`
	TokenBudget   int    `mapstructure:"token_budget" validate:"gte=0"`
	MaxIterations int    `mapstructure:"max_iterations" validate:"gte=1"`
	ParallelTools bool   `mapstructure:"parallel_tools"`
	SystemPrompt  string `mapstructure:"system_prompt"`

	HistoryLimit int    `mapstructure:"history_limit" validate:"gt=0"`
	StorePath    string `mapstructure:"store_path" validate:"required"`

	LogLevel    string `mapstructure:"log_level" validate:"oneof=trace debug info warn warning error"`
	MetricsAddr string `mapstructure:"metrics_addr" validate:"omitempty,hostname_port"`
}

const defaultSystemPrompt = "You are a helpful assistant. Use the available tools when they help answer the user, and say so when a tool fails."

func setDefaults(v *viper.Viper) {
	v.SetDefault("mcp_server_url", "")
	v.SetDefault("profile_id", "")
	v.SetDefault("connect_retries", 3)
	v.SetDefault("retry_delay", 2*time.Second)
	v.SetDefault("request_timeout", 30*time.Second)
	v.SetDefault("protocol_version", mcp.LATEST_PROTOCOL_VERSION)
	v.SetDefault("model", string(provider.DefaultModel))
	v.SetDefault("max_tokens", provider.DefaultMaxTokens)
	v.SetDefault("token_budget", 8000)
	v.SetDefault("max_iterations", 5)
	v.SetDefault("parallel_tools", true)
	v.SetDefault("system_prompt", defaultSystemPrompt)
	v.SetDefault("history_limit", 100)
	v.SetDefault("store_path", ".agent/conversations.json")
	v.SetDefault("log_level", "info")
	v.SetDefault("metrics_addr", "")
}

// flagKeys maps command-line flags onto config keys.
var flagKeys = map[string]string{
	"log-level":    "log_level",
	"metrics-addr": "metrics_addr",
	"mcp-url":      "mcp_server_url",
}

// RegisterFlags adds the flags Load understands to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "path to a YAML or JSON config file")
	fs.String("log-level", "info", "log level (trace, debug, info, warn, error)")
	fs.String("metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	fs.String("mcp-url", "", "tool-provider endpoint; /mcp is appended when no path is given")
}

// Load resolves the configuration. fs may be nil; flags only override when
// set explicitly.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if fs != nil {
		if path, _ := fs.GetString("config"); path != "" {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("config: read %s: %w", path, err)
			}
		}
		for flag, key := range flagKeys {
			if f := fs.Lookup(flag); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("config: bind --%s: %w", flag, err)
				}
			}
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("mapstructure")
	})
	return v
}

// Validate reports every invalid key at once.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s must satisfy %s=%s (got %v)", fe.Field(), fe.Tag(), fe.Param(), fe.Value()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s must satisfy %s (got %v)", fe.Field(), fe.Tag(), fe.Value()))
		}
	}
	return fmt.Errorf("config: invalid: %s", strings.Join(msgs, "; "))
}
