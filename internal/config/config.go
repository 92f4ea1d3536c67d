// Package config loads server configuration from environment variables,
// an optional yaml file, and built-in defaults, in that priority order.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Durations configured per room are clamped to this range (seconds).
const (
	MinPhaseDurationS = 120
	MaxPhaseDurationS = 300
)

// Config holds every tunable of the server.
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Game   GameConfig   `mapstructure:"game"`
}

// ServerConfig covers the HTTP/websocket surface.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            string        `mapstructure:"port"`
	DBPath          string        `mapstructure:"dbpath"`
	LogLevel        string        `mapstructure:"loglevel"`
	LogFormat       string        `mapstructure:"logformat"`
	ShutdownTimeout time.Duration `mapstructure:"shutdowntimeout"`

	// Inbound websocket event rate limit per connection.
	EventRate  float64 `mapstructure:"eventrate"`
	EventBurst int     `mapstructure:"eventburst"`
}

// GameConfig covers the engine timings that are not per-room settings.
// All values are wall-clock durations; tests substitute a fake clock rather
// than shrinking these.
type GameConfig struct {
	GraceWindow   time.Duration `mapstructure:"gracewindow"`
	Prestart      time.Duration `mapstructure:"prestart"`
	Announce      time.Duration `mapstructure:"announce"`
	SummaryPause  time.Duration `mapstructure:"summarypause"`
	PostVotePause time.Duration `mapstructure:"postvotepause"`
	EndedPause    time.Duration `mapstructure:"endedpause"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// Load reads configuration with Viper. configPath may be empty, in which
// case only the default search paths are consulted.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetConfigName("server")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("MAFIA")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.host", "HOST")
	v.BindEnv("server.dbpath", "DB_PATH")
	v.BindEnv("server.loglevel", "LOG_LEVEL")
	v.BindEnv("server.logformat", "LOG_FORMAT")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.dbpath", "chat.db")
	v.SetDefault("server.loglevel", "info")
	v.SetDefault("server.logformat", "json")
	v.SetDefault("server.shutdowntimeout", "10s")
	v.SetDefault("server.eventrate", 20.0)
	v.SetDefault("server.eventburst", 40)

	v.SetDefault("game.gracewindow", "8s")
	v.SetDefault("game.prestart", "3s")
	v.SetDefault("game.announce", "5s")
	v.SetDefault("game.summarypause", "5s")
	v.SetDefault("game.postvotepause", "3s")
	v.SetDefault("game.endedpause", "10s")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file is fine; env vars and defaults apply.
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port must be set")
	}
	if c.Game.GraceWindow <= 0 {
		return fmt.Errorf("grace window must be positive")
	}
	if c.Server.EventRate <= 0 || c.Server.EventBurst <= 0 {
		return fmt.Errorf("event rate limit must be positive")
	}
	return nil
}
