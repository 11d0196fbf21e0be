package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Instagram  InstagramConfig  `yaml:"instagram"`
	TikTok     TikTokConfig     `yaml:"tiktok"`
	History    HistoryConfig    `yaml:"history"`
	Supervisor SupervisorConfig `yaml:"supervisor"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string        `yaml:"host" envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port         int           `yaml:"port" envconfig:"SERVER_PORT" default:"8000"`
	BaseURL      string        `yaml:"base_url" envconfig:"BASE_URL" default:"http://localhost:8000"`
	ReadTimeout  time.Duration `yaml:"read_timeout" envconfig:"SERVER_READ_TIMEOUT" default:"30s"`
	WriteTimeout time.Duration `yaml:"write_timeout" envconfig:"SERVER_WRITE_TIMEOUT" default:"5m"`
	CORSOrigins  string        `yaml:"cors_origins" envconfig:"CORS_ORIGINS" default:"*"`
}

// StorageConfig holds media directory configuration.
type StorageConfig struct {
	MediaPath string `yaml:"media_path" envconfig:"MEDIA_PATH" default:"media"`
	TempPath  string `yaml:"temp_path" envconfig:"TEMP_PATH" default:"media/tmp"`
	MaxFiles  int    `yaml:"max_files" envconfig:"MAX_VIDEO_FILES" default:"10"`
}

// InstagramConfig holds the Instagram downloader configuration.
type InstagramConfig struct {
	SessionFile string        `yaml:"session_file" envconfig:"INSTAGRAM_SESSION_FILE" default:".reelgrab-session"`
	Passphrase  string        `yaml:"-" envconfig:"INSTAGRAM_SESSION_PASSPHRASE"`
	Timeout     time.Duration `yaml:"timeout" envconfig:"INSTAGRAM_TIMEOUT" default:"60s"`
	UserAgent   string        `yaml:"user_agent" envconfig:"INSTAGRAM_USER_AGENT" default:"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"`
}

// TikTokConfig holds the TikTok downloader configuration.
type TikTokConfig struct {
	BinPath string        `yaml:"bin_path" envconfig:"YTDLP_PATH" default:"yt-dlp"`
	Timeout time.Duration `yaml:"timeout" envconfig:"TIKTOK_TIMEOUT" default:"5m"`
}

// HistoryConfig holds download history persistence configuration.
// An empty path disables history.
type HistoryConfig struct {
	Path string `yaml:"path" envconfig:"HISTORY_DB_PATH" default:"reelgrab.db"`
}

// SupervisorConfig holds process supervisor configuration.
type SupervisorConfig struct {
	PIDFile      string        `yaml:"pid_file" envconfig:"PID_FILE" default:"reelgrab.pid"`
	LogFile      string        `yaml:"log_file" envconfig:"LOG_FILE" default:"logs/reelgrab.log"`
	ServerBin    string        `yaml:"server_bin" envconfig:"SERVER_BIN" default:"reelgrab-server"`
	StartTimeout time.Duration `yaml:"start_timeout" envconfig:"SUPERVISOR_START_TIMEOUT" default:"15s"`
	StopTimeout  time.Duration `yaml:"stop_timeout" envconfig:"SUPERVISOR_STOP_TIMEOUT" default:"10s"`

	// ConfigPath is the config file the supervisor itself was loaded
	// from; it is forwarded to the spawned server so both read the
	// same file. Set by the CLI, not by config sources.
	ConfigPath string `yaml:"-" ignored:"true"`
}

// Load reads configuration from file and environment variables.
// Environment variables override file values.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}

	// Load from YAML file if provided
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	// Override with environment variables
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that configuration values are usable.
func (c *Config) Validate() error {
	if c.Storage.MaxFiles < 1 {
		return fmt.Errorf("MAX_VIDEO_FILES must be at least 1")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535")
	}
	if !strings.HasPrefix(c.Server.BaseURL, "http://") && !strings.HasPrefix(c.Server.BaseURL, "https://") {
		return fmt.Errorf("BASE_URL must start with http:// or https://")
	}
	if c.Storage.MediaPath == "" {
		return fmt.Errorf("MEDIA_PATH is required")
	}
	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// CORSOriginList splits the configured origins into a slice.
func (c *ServerConfig) CORSOriginList() []string {
	parts := strings.Split(c.CORSOrigins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
