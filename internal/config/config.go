// Package config loads and validates progressd configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Hub       HubConfig       `mapstructure:"hub"`
	Listeners ListenersConfig `mapstructure:"listeners"`
	DB        DBConfig        `mapstructure:"db"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port           int `mapstructure:"port"`
	QueueDepth     int `mapstructure:"queue_depth"`
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// HubConfig controls event batching between listeners and sinks.
type HubConfig struct {
	BufferSize         int `mapstructure:"buffer_size"`
	MaxBatchEvents     int `mapstructure:"max_batch_events"`
	MaxBatchWaitMs     int `mapstructure:"max_batch_wait_ms"`
	SinkTimeoutSeconds int `mapstructure:"sink_timeout_seconds"`
}

// ListenersConfig selects which listeners and sinks are wired at startup.
type ListenersConfig struct {
	Bar      bool `mapstructure:"bar"`
	BarWidth int  `mapstructure:"bar_width"`
	Log      bool `mapstructure:"log"`
	Metrics  bool `mapstructure:"metrics"`
	Store    bool `mapstructure:"store"`
}

// DBConfig controls access to the relational database. An empty DSN keeps run
// history in memory.
type DBConfig struct {
	DSN             string `mapstructure:"dsn"`
	MaxConns        int32  `mapstructure:"max_conns"`
	MinConns        int32  `mapstructure:"min_conns"`
	MaxConnLifetime int    `mapstructure:"max_conn_lifetime_seconds"`
}

// PipelineConfig shapes the demo build.
type PipelineConfig struct {
	Workers    int     `mapstructure:"workers"`
	Units      int     `mapstructure:"units"`
	NoiseRatio float64 `mapstructure:"noise_ratio"`
	Seed       uint64  `mapstructure:"seed"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PROGRESSD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.queue_depth", 16)
	v.SetDefault("server.timeout_seconds", 60)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
	v.SetDefault("hub.buffer_size", 1024)
	v.SetDefault("hub.max_batch_events", 256)
	v.SetDefault("hub.max_batch_wait_ms", 250)
	v.SetDefault("hub.sink_timeout_seconds", 5)
	v.SetDefault("listeners.bar", true)
	v.SetDefault("listeners.bar_width", 20)
	v.SetDefault("listeners.log", false)
	v.SetDefault("listeners.metrics", true)
	v.SetDefault("listeners.store", true)
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("db.min_conns", 0)
	v.SetDefault("db.max_conn_lifetime_seconds", 1800)
	v.SetDefault("pipeline.workers", 4)
	v.SetDefault("pipeline.units", 8)
	v.SetDefault("pipeline.noise_ratio", 0.3)
	v.SetDefault("pipeline.seed", 0)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Server.QueueDepth <= 0 {
		return fmt.Errorf("server.queue_depth must be > 0")
	}
	if c.Hub.BufferSize < 0 || c.Hub.MaxBatchEvents < 0 || c.Hub.MaxBatchWaitMs < 0 || c.Hub.SinkTimeoutSeconds < 0 {
		return fmt.Errorf("hub settings must be >= 0")
	}
	if c.Pipeline.Workers <= 0 {
		return fmt.Errorf("pipeline.workers must be > 0")
	}
	if c.Pipeline.Units <= 0 {
		return fmt.Errorf("pipeline.units must be > 0")
	}
	if c.Pipeline.NoiseRatio < 0 || c.Pipeline.NoiseRatio > 1 {
		return fmt.Errorf("pipeline.noise_ratio must be within [0, 1]")
	}
	if c.DB.MinConns < 0 || c.DB.MaxConns < 0 || (c.DB.MaxConns > 0 && c.DB.MinConns > c.DB.MaxConns) {
		return fmt.Errorf("db.min_conns must be between 0 and db.max_conns")
	}
	return nil
}

// MaxBatchWait converts hub.max_batch_wait_ms to a duration.
func (h HubConfig) MaxBatchWait() time.Duration {
	return time.Duration(h.MaxBatchWaitMs) * time.Millisecond
}

// SinkTimeout converts hub.sink_timeout_seconds to a duration.
func (h HubConfig) SinkTimeout() time.Duration {
	return time.Duration(h.SinkTimeoutSeconds) * time.Second
}

// RequestTimeout converts server.timeout_seconds to a duration.
func (s ServerConfig) RequestTimeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// ConnLifetime converts db.max_conn_lifetime_seconds to a duration.
func (d DBConfig) ConnLifetime() time.Duration {
	return time.Duration(d.MaxConnLifetime) * time.Second
}
