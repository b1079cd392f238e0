package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig    `mapstructure:"basic_config"`
	Gemini      GeminiConfig   `mapstructure:"gemini"`
	Redis       RedisConfig    `mapstructure:"redis"`
	Database    DatabaseConfig `mapstructure:"database"`
	Logging     LoggingConfig  `mapstructure:"logging"`
}

type BasicConfig struct {
	ServerAddress string `mapstructure:"server_address"`
	// Workers bounds how many analyses run against the API at once.
	Workers   int `mapstructure:"workers"`
	QueueSize int `mapstructure:"queue_size"`
	// WorkspaceTTL is in minutes.
	WorkspaceTTL int `mapstructure:"workspace_ttl"`
	// JanitorInterval is in minutes.
	JanitorInterval int `mapstructure:"janitor_interval"`
	// AnalysisTimeout and ChatTimeout are in seconds.
	AnalysisTimeout int `mapstructure:"analysis_timeout"`
	ChatTimeout     int `mapstructure:"chat_timeout"`
}

type GeminiConfig struct {
	APIKey         string `mapstructure:"api_key"`
	AnalysisModel  string `mapstructure:"analysis_model"`
	ChatModel      string `mapstructure:"chat_model"`
	SearchModel    string `mapstructure:"search_model"`
	SpeechModel    string `mapstructure:"speech_model"`
	Voice          string `mapstructure:"voice"`
	ThinkingBudget int    `mapstructure:"thinking_budget"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	// TTL is in minutes.
	TTL int `mapstructure:"ttl"`
}

// DatabaseConfig selects the durable analysis store. An empty driver disables it.
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	DSN      string `mapstructure:"dsn"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"db_name"`
	Params   string `mapstructure:"params"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// apiKeyEnv lists the fallback variables consulted for the Gemini credential.
var apiKeyEnv = []string{"PAPERLENS_API_KEY", "GEMINI_API_KEY", "API_KEY"}

// Load reads configuration from the provided path. With no path it looks for
// config.json in the working directory and ./config, and runs on defaults
// plus PAPERLENS_* environment variables when none is found.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("json")
	v.SetEnvPrefix("PAPERLENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if path != "" {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("resolve config path: %w", err)
		}
		v.SetConfigFile(absPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", absPath, err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if cfg.Gemini.APIKey == "" {
		for _, name := range apiKeyEnv {
			if key := os.Getenv(name); key != "" {
				cfg.Gemini.APIKey = key
				break
			}
		}
	}
	if cfg.Gemini.APIKey == "" {
		return nil, fmt.Errorf("gemini api_key must be configured")
	}

	if cfg.Database.Driver == "sqlite3" && cfg.Database.DSN != "" && !filepath.IsAbs(cfg.Database.DSN) && v.ConfigFileUsed() != "" {
		cfg.Database.DSN = filepath.Join(filepath.Dir(v.ConfigFileUsed()), cfg.Database.DSN)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("basic_config.server_address", ":8090")
	v.SetDefault("basic_config.workers", 4)
	v.SetDefault("basic_config.queue_size", 32)
	v.SetDefault("basic_config.workspace_ttl", 120)
	v.SetDefault("basic_config.janitor_interval", 10)
	v.SetDefault("basic_config.analysis_timeout", 300)
	v.SetDefault("basic_config.chat_timeout", 120)

	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.analysis_model", "gemini-3-pro-preview")
	v.SetDefault("gemini.chat_model", "gemini-3-pro-preview")
	v.SetDefault("gemini.search_model", "gemini-2.5-flash")
	v.SetDefault("gemini.speech_model", "gemini-2.5-flash-preview-tts")
	v.SetDefault("gemini.voice", "Kore")
	v.SetDefault("gemini.thinking_budget", 8192)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.username", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 24*60)

	v.SetDefault("database.driver", "")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.host", "127.0.0.1")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.username", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.db_name", "paperlens")
	v.SetDefault("database.params", "parseTime=true")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output_path", "stdout")
}

// Minutes converts a minute-valued setting, substituting fallback when unset.
func Minutes(value int, fallback time.Duration) time.Duration {
	if value <= 0 {
		return fallback
	}
	return time.Duration(value) * time.Minute
}

// Seconds converts a second-valued setting, substituting fallback when unset.
func Seconds(value int, fallback time.Duration) time.Duration {
	if value <= 0 {
		return fallback
	}
	return time.Duration(value) * time.Second
}
