// Package config loads runtime settings from .env.local, an optional config
// file and SEFARIA_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const EnvPrefix = "SEFARIA"

type Config struct {
	API     APIConfig     `mapstructure:"api"`
	Storage StorageConfig `mapstructure:"storage"`
	Library LibraryConfig `mapstructure:"library"`
	History HistoryConfig `mapstructure:"history"`
	Server  ServerConfig  `mapstructure:"server"`
}

type APIConfig struct {
	BaseURL     string `mapstructure:"base_url" validate:"required,url"`
	DownloadURL string `mapstructure:"download_url" validate:"omitempty,url"`
	UserAgent   string `mapstructure:"user_agent"`
	// Token authorizes the history sync call.
	Token      string        `mapstructure:"token"`
	RPS        int           `mapstructure:"rps" validate:"gte=1"`
	MaxRetries int           `mapstructure:"max_retries" validate:"gte=0"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// StorageConfig selects the key-value backend: memory://, sqlite://path,
// postgres://... or redis://...
type StorageConfig struct {
	DSN string `mapstructure:"dsn"`
}

type LibraryConfig struct {
	Dir       string `mapstructure:"dir" validate:"required"`
	SourceDir string `mapstructure:"source_dir" validate:"required"`
	// TOCFile is read instead of calling the index endpoint when set.
	TOCFile      string `mapstructure:"toc_file"`
	PackagesFile string `mapstructure:"packages_file"`

	DisableLocalArchives bool `mapstructure:"disable_local_archives"`
}

type HistoryConfig struct {
	SyncInterval time.Duration `mapstructure:"sync_interval"`
	IntentDelay  time.Duration `mapstructure:"intent_delay"`
}

type ServerConfig struct {
	Address        string   `mapstructure:"address" validate:"required"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	RateLimitRPS   float64  `mapstructure:"rate_limit_rps"`
	RateLimitBurst int      `mapstructure:"rate_limit_burst"`
	MaxBodyBytes   int64    `mapstructure:"max_body_bytes" validate:"gte=0"`
	EnableHSTS     bool     `mapstructure:"enable_hsts"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "https://www.sefaria.org")
	v.SetDefault("api.download_url", "")
	v.SetDefault("api.user_agent", "sefaria-offline/1.0")
	v.SetDefault("api.token", "")
	v.SetDefault("api.rps", 5)
	v.SetDefault("api.max_retries", 3)
	v.SetDefault("api.timeout", "15s")

	v.SetDefault("storage.dsn", "sqlite://data/sefaria.db")

	v.SetDefault("library.dir", "data/library")
	v.SetDefault("library.source_dir", "data/library/source")
	v.SetDefault("library.toc_file", "")
	v.SetDefault("library.packages_file", "")
	v.SetDefault("library.disable_local_archives", false)

	v.SetDefault("history.sync_interval", "5m")
	v.SetDefault("history.intent_delay", "3s")

	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.rate_limit_rps", 20.0)
	v.SetDefault("server.rate_limit_burst", 40)
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("server.enable_hsts", false)
}

// Load reads the configuration. path names a config file; when empty,
// config.{json,yaml} is looked up in ./config and the working directory and
// its absence is not an error.
func Load(path string) (*Config, error) {
	_ = godotenv.Load(".env.local")

	v := viper.New()
	setDefaults(v)

	if path == "" {
		v.SetConfigName("config")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}
