package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// PlaceholderAPIKey is the sample value shipped in .env templates. It is
// treated as if no key were configured.
const PlaceholderAPIKey = "your_gemini_api_key_here"

// Global configuration structure.
type Global struct {
	APIKey          string  `mapstructure:"api_key" yaml:"api_key"`
	Provider        string  `mapstructure:"provider" yaml:"provider"`
	Model           string  `mapstructure:"model" yaml:"model"`
	BaseURL         string  `mapstructure:"base_url" yaml:"base_url,omitempty"`
	Temperature     float64 `mapstructure:"temperature" yaml:"temperature"`
	MaxOutputTokens int     `mapstructure:"max_output_tokens" yaml:"max_output_tokens"`
	// PromptTokenLimit bounds the dataset context embedded in prompts.
	PromptTokenLimit int `mapstructure:"prompt_token_limit" yaml:"prompt_token_limit"`

	// HTTP/Retry configuration
	HTTPTimeoutSec   int `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
	RetryMaxAttempts int `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts"`
	RetryBaseDelayMs int `mapstructure:"retry_base_delay_ms" yaml:"retry_base_delay_ms"`
	RetryMaxDelayMs  int `mapstructure:"retry_max_delay_ms" yaml:"retry_max_delay_ms"`

	// Web UI
	ListenAddr    string `mapstructure:"listen_addr" yaml:"listen_addr"`
	SessionTTLMin int    `mapstructure:"session_ttl_min" yaml:"session_ttl_min"`
	MaxUploadMB   int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb"`

	LogLevel      string `mapstructure:"log_level" yaml:"log_level"`
	ReportDir     string `mapstructure:"report_dir" yaml:"report_dir"`
	HistogramBins int    `mapstructure:"histogram_bins" yaml:"histogram_bins"`
}

// HasAPIKey reports whether a usable credential is configured.
func (c *Global) HasAPIKey() bool {
	k := strings.TrimSpace(c.APIKey)
	return k != "" && k != PlaceholderAPIKey
}

// Dir returns ~/.insightgenie.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".insightgenie"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.insightgenie/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := Dir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	// the file may hold the API key
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: env > config file > defaults. A .env file in the working
// directory is loaded into the environment first; it never overrides
// variables that are already set.
func Load(cfgFile string) (*Global, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("INSIGHTGENIE")
	v.AutomaticEnv()

	v.SetDefault("api_key", "")
	v.SetDefault("base_url", "")
	v.SetDefault("provider", "gemini")
	v.SetDefault("model", "gemini-1.5-flash-latest")
	v.SetDefault("temperature", 0.4)
	v.SetDefault("max_output_tokens", 2048)
	v.SetDefault("prompt_token_limit", 6000)
	v.SetDefault("http_timeout_sec", 60)
	v.SetDefault("retry_max_attempts", 3)
	v.SetDefault("retry_base_delay_ms", 500)
	v.SetDefault("retry_max_delay_ms", 4000)
	v.SetDefault("listen_addr", "127.0.0.1:8501")
	v.SetDefault("session_ttl_min", 60)
	v.SetDefault("max_upload_mb", 32)
	v.SetDefault("log_level", "info")
	v.SetDefault("report_dir", ".")
	v.SetDefault("histogram_bins", 20)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	// The conventional variable name wins over an empty or placeholder value.
	if !c.HasAPIKey() {
		if k := strings.TrimSpace(os.Getenv("GOOGLE_API_KEY")); k != "" {
			c.APIKey = k
		}
	}
	if c.Provider == "openrouter" && !c.HasAPIKey() {
		c.APIKey = strings.TrimSpace(os.Getenv("OPENROUTER_API_KEY"))
	}
	return &c, nil
}
