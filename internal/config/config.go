package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Naver   NaverConfig   `yaml:"naver" mapstructure:"naver"`
	Collect CollectConfig `yaml:"collect" mapstructure:"collect"`
	Alert   AlertConfig   `yaml:"alert" mapstructure:"alert"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// NaverConfig holds the official search API credentials. Both must be set for
// the API fallback source to be available.
type NaverConfig struct {
	ClientID     string `yaml:"client_id" mapstructure:"client_id"`
	ClientSecret string `yaml:"client_secret" mapstructure:"client_secret"`
}

// CollectConfig configures ranking collection behavior.
type CollectConfig struct {
	Schedule         string  `yaml:"schedule" mapstructure:"schedule"`
	Limit            int     `yaml:"limit" mapstructure:"limit"`
	RequestDelaySecs float64 `yaml:"request_delay_secs" mapstructure:"request_delay_secs"`
	MaxConcurrent    int     `yaml:"max_concurrent" mapstructure:"max_concurrent"`
}

// AlertConfig configures rank-drop webhook alerts. Alerts are disabled when
// WebhookURL is empty.
type AlertConfig struct {
	WebhookURL    string `yaml:"webhook_url" mapstructure:"webhook_url"`
	DropThreshold int    `yaml:"drop_threshold" mapstructure:"drop_threshold"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("NPLACE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "nplace.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("collect.schedule", "@hourly")
	v.SetDefault("collect.limit", 50)
	v.SetDefault("collect.request_delay_secs", 1.5)
	v.SetDefault("collect.max_concurrent", 2)
	v.SetDefault("alert.drop_threshold", 3)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the fields required for the given run mode.
func (c *Config) Validate(mode string) error {
	var problems []string

	if c.Store.DatabaseURL == "" {
		problems = append(problems, "store.database_url is required")
	}
	if c.Store.Driver != "sqlite" && c.Store.Driver != "postgres" {
		problems = append(problems, "store.driver must be sqlite or postgres")
	}
	if c.Collect.Limit < 1 || c.Collect.Limit > 300 {
		problems = append(problems, "collect.limit must be between 1 and 300")
	}
	if c.Collect.MaxConcurrent < 1 || c.Collect.MaxConcurrent > 10 {
		problems = append(problems, "collect.max_concurrent must be between 1 and 10")
	}
	if c.Collect.RequestDelaySecs < 0 {
		problems = append(problems, "collect.request_delay_secs must be >= 0")
	}

	switch mode {
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	case "collect":
		// No extra requirements beyond the common ones.
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
