// Package config loads settings from configs/config.yml, FLEET_* environment
// variables and command-line flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"fleet_monitor/internal/logger"
	"fleet_monitor/internal/models"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	envPrefix         = "FLEET"
	defaultConfigPath = "configs/config.yml"
)

var ErrHelp = pflag.ErrHelp

type Config struct {
	Port          string              `mapstructure:"port"`
	Log           LogConfig           `mapstructure:"log"`
	DB            DBConfig            `mapstructure:"db"`
	Upstream      UpstreamConfig      `mapstructure:"upstream"`
	Realtime      RealtimeConfig      `mapstructure:"realtime"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Auth          AuthConfig          `mapstructure:"auth"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type DBConfig struct {
	Path string `mapstructure:"path"`
}

type UpstreamConfig struct {
	APIURL       string        `mapstructure:"api_url"`
	WSURL        string        `mapstructure:"ws_url"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
}

type RealtimeConfig struct {
	ReconnectInterval    time.Duration `mapstructure:"reconnect_interval"`
	MaxReconnectAttempts int           `mapstructure:"max_reconnect_attempts"`
	StableAfter          time.Duration `mapstructure:"stable_after"`
	DialTimeout          time.Duration `mapstructure:"dial_timeout"`
}

type NotificationsConfig struct {
	Capacity      int           `mapstructure:"capacity"`
	TTL           time.Duration `mapstructure:"ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

type AuthConfig struct {
	Enabled    bool              `mapstructure:"enabled"`
	SigningKey string            `mapstructure:"signing_key"`
	TokenTTL   time.Duration     `mapstructure:"token_ttl"`
	Operators  []models.Operator `mapstructure:"operators"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("db.path", "dashboard.db")

	v.SetDefault("upstream.api_url", "http://localhost:3000")
	v.SetDefault("upstream.ws_url", "ws://localhost:3000/ws")
	v.SetDefault("upstream.fetch_timeout", 10*time.Second)

	v.SetDefault("realtime.reconnect_interval", 2*time.Second)
	v.SetDefault("realtime.max_reconnect_attempts", 5)
	v.SetDefault("realtime.stable_after", 30*time.Second)
	v.SetDefault("realtime.dial_timeout", 10*time.Second)

	v.SetDefault("notifications.capacity", 10)
	v.SetDefault("notifications.ttl", time.Duration(0))
	v.SetDefault("notifications.sweep_interval", 5*time.Second)

	v.SetDefault("auth.enabled", true)
	v.SetDefault("auth.signing_key", "")
	v.SetDefault("auth.token_ttl", time.Hour)
	v.SetDefault("auth.operators", []models.Operator{})
}

// Load parses args (without the program name) and resolves the configuration.
// A missing config file is only an error when --config was given explicitly.
func Load(args []string) (*Config, error) {
	flagSet := pflag.NewFlagSet("fleet-monitor", pflag.ContinueOnError)
	configPath := flagSet.String("config", defaultConfigPath, "path to the YAML config file")
	flagSet.String("port", "", "HTTP listen port (overrides port)")
	flagSet.String("log-level", "", "debug|info|warn|error (overrides log.level)")
	if err := flagSet.Parse(args); err != nil {
		return nil, err
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return nil, fmt.Errorf("unexpected argument: %s", rest[0])
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlag("port", flagSet.Lookup("port")); err != nil {
		return nil, err
	}
	if err := v.BindPFlag("log.level", flagSet.Lookup("log-level")); err != nil {
		return nil, err
	}

	if _, err := os.Stat(*configPath); err == nil || flagSet.Changed("config") {
		v.SetConfigFile(*configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %q: %w", *configPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// Validate reports every setting the service cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Port == "" {
		errs = append(errs, errors.New("port must be set"))
	}
	if !logger.ValidLevel(c.Log.Level) {
		errs = append(errs, fmt.Errorf("log.level %q must be one of debug|info|warn|error", c.Log.Level))
	}
	if c.Upstream.APIURL == "" {
		errs = append(errs, errors.New("upstream.api_url must be set"))
	}
	if !strings.HasPrefix(c.Upstream.WSURL, "ws://") && !strings.HasPrefix(c.Upstream.WSURL, "wss://") {
		errs = append(errs, fmt.Errorf("upstream.ws_url %q must be a ws:// or wss:// URL", c.Upstream.WSURL))
	}
	if c.Upstream.FetchTimeout <= 0 {
		errs = append(errs, errors.New("upstream.fetch_timeout must be positive"))
	}
	if c.Realtime.ReconnectInterval <= 0 {
		errs = append(errs, errors.New("realtime.reconnect_interval must be positive"))
	}
	if c.Realtime.MaxReconnectAttempts <= 0 {
		errs = append(errs, errors.New("realtime.max_reconnect_attempts must be positive"))
	}
	if c.Realtime.StableAfter < 0 {
		errs = append(errs, errors.New("realtime.stable_after must not be negative"))
	}
	if c.Realtime.DialTimeout <= 0 {
		errs = append(errs, errors.New("realtime.dial_timeout must be positive"))
	}
	if c.Notifications.Capacity <= 0 {
		errs = append(errs, errors.New("notifications.capacity must be positive"))
	}
	if c.Notifications.TTL < 0 {
		errs = append(errs, errors.New("notifications.ttl must not be negative"))
	}
	if c.Notifications.TTL > 0 && c.Notifications.SweepInterval <= 0 {
		errs = append(errs, errors.New("notifications.sweep_interval must be positive when ttl is set"))
	}
	if c.Auth.Enabled {
		if c.Auth.SigningKey == "" {
			errs = append(errs, errors.New("auth.signing_key must be set when auth is enabled"))
		}
		if c.Auth.TokenTTL <= 0 {
			errs = append(errs, errors.New("auth.token_ttl must be positive"))
		}
		for i, op := range c.Auth.Operators {
			if op.Username == "" || op.PasswordHash == "" {
				errs = append(errs, fmt.Errorf("auth.operators[%d] needs username and password_hash", i))
			}
		}
	}
	return errors.Join(errs...)
}
