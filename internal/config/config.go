package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	LogFormat         string        `mapstructure:"log_format" yaml:"log_format"`
	DatabasePath      string        `mapstructure:"database_path" yaml:"database_path"`
	GossipInterval    time.Duration `mapstructure:"gossip_interval" yaml:"gossip_interval"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	MaxMessageBytes   int64         `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	MessagesPerSecond float64       `mapstructure:"messages_per_second" yaml:"messages_per_second"`
	MessageBurst      int           `mapstructure:"message_burst" yaml:"message_burst"`
	MaxNameLength     int           `mapstructure:"max_name_length" yaml:"max_name_length"`
	DefaultRooms      []string      `mapstructure:"default_rooms" yaml:"default_rooms"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":9001",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		LogFormat:         "console",
		DatabasePath:      "chatt.db",
		GossipInterval:    5 * time.Second,
		WriteTimeout:      2 * time.Second,
		MaxMessageBytes:   64 << 10,
		MessagesPerSecond: 10,
		MessageBurst:      20,
		MaxNameLength:     32,
		DefaultRooms:      []string{"apple room", "berry room"},
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.LogFormat != "" {
		c.LogFormat = other.LogFormat
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
	if other.GossipInterval != 0 {
		c.GossipInterval = other.GossipInterval
	}
	if other.WriteTimeout != 0 {
		c.WriteTimeout = other.WriteTimeout
	}
	if other.MaxMessageBytes != 0 {
		c.MaxMessageBytes = other.MaxMessageBytes
	}
	if other.MessagesPerSecond != 0 {
		c.MessagesPerSecond = other.MessagesPerSecond
	}
	if other.MessageBurst != 0 {
		c.MessageBurst = other.MessageBurst
	}
	if other.MaxNameLength != 0 {
		c.MaxNameLength = other.MaxNameLength
	}
	if len(other.DefaultRooms) > 0 {
		c.DefaultRooms = other.DefaultRooms
	}
}

// Validate rejects values the server cannot run with.
func (c Config) Validate() error {
	switch {
	case c.Addr == "":
		return errors.New("addr is required")
	case c.WriteTimeout <= 0:
		return fmt.Errorf("write_timeout must be positive, got %s", c.WriteTimeout)
	case c.GossipInterval < 0:
		return fmt.Errorf("gossip_interval must not be negative, got %s", c.GossipInterval)
	case c.MaxNameLength <= 0:
		return fmt.Errorf("max_name_length must be positive, got %d", c.MaxNameLength)
	case c.MaxMessageBytes <= 0:
		return fmt.Errorf("max_message_bytes must be positive, got %d", c.MaxMessageBytes)
	}
	return nil
}
