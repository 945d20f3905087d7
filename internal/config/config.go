// Package config provides Viper-based configuration loading for the relay server.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	// Host is the bind address for the HTTP listener.
	Host string `mapstructure:"host"`
	// Port is the TCP port for the HTTP listener.
	Port int `mapstructure:"port"`
	// StaticDir is the directory of client assets served at the root.
	StaticDir string `mapstructure:"static_dir"`
	// ShutdownTimeout bounds graceful HTTP shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns the "host:port" listen address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// WebSocketConfig holds per-connection websocket settings.
type WebSocketConfig struct {
	// ReadLimit is the maximum inbound message size in bytes.
	ReadLimit int64 `mapstructure:"read_limit"`
	// WriteTimeout is the per-write deadline for outbound frames.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// PingInterval is how often keepalive pings are sent. Zero disables pings.
	PingInterval time.Duration `mapstructure:"ping_interval"`
	// PongTimeout is how long to wait for a pong before declaring the peer dead.
	PongTimeout time.Duration `mapstructure:"pong_timeout"`
	// OutboundBuffer is the per-connection outbound queue depth.
	// A connection whose queue overflows is dropped as a slow client.
	OutboundBuffer int `mapstructure:"outbound_buffer"`
}

// RoomConfig holds room sizing and identity settings.
type RoomConfig struct {
	// Seats is the number of slots in a room's seating grid.
	Seats int `mapstructure:"seats"`
	// Capacity is the maximum concurrent occupancy (players plus
	// spectators, deduplicated by token) of a single room.
	Capacity int `mapstructure:"capacity"`
	// CodeLength is the length of generated room codes.
	CodeLength int `mapstructure:"code_length"`
	// StartingBalance is the chip balance granted to every new connection.
	StartingBalance int `mapstructure:"starting_balance"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	Room      RoomConfig      `mapstructure:"room"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateServer(c.Server); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateWebSocket(c.WebSocket); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateRoom(c.Room); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateServer(s ServerConfig) error {
	var errs []string
	if s.Port < 1 || s.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", s.Port))
	}
	if s.StaticDir == "" {
		errs = append(errs, "server.static_dir must not be empty")
	}
	if s.ShutdownTimeout < 0 {
		errs = append(errs, "server.shutdown_timeout must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateWebSocket(w WebSocketConfig) error {
	var errs []string
	if w.ReadLimit < 1 {
		errs = append(errs, fmt.Sprintf("websocket.read_limit must be >= 1, got %d", w.ReadLimit))
	}
	if w.WriteTimeout <= 0 {
		errs = append(errs, "websocket.write_timeout must be positive")
	}
	if w.PingInterval < 0 {
		errs = append(errs, "websocket.ping_interval must not be negative")
	}
	if w.PingInterval > 0 && w.PongTimeout <= w.PingInterval {
		errs = append(errs, "websocket.pong_timeout must exceed websocket.ping_interval")
	}
	if w.OutboundBuffer < 1 {
		errs = append(errs, fmt.Sprintf("websocket.outbound_buffer must be >= 1, got %d", w.OutboundBuffer))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateRoom(r RoomConfig) error {
	var errs []string
	if r.Seats < 1 {
		errs = append(errs, fmt.Sprintf("room.seats must be >= 1, got %d", r.Seats))
	}
	if r.Capacity < r.Seats {
		errs = append(errs, fmt.Sprintf("room.capacity must be >= room.seats, got %d < %d", r.Capacity, r.Seats))
	}
	if r.CodeLength < 4 {
		errs = append(errs, fmt.Sprintf("room.code_length must be >= 4, got %d", r.CodeLength))
	}
	if r.StartingBalance < 0 {
		errs = append(errs, fmt.Sprintf("room.starting_balance must be >= 0, got %d", r.StartingBalance))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with RELAY_ prefix
	v.SetEnvPrefix("RELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Default returns the built-in configuration used when no config file exists.
//
// Postcondition: The returned Config passes Validate.
func Default() Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Defaults are static; failing to unmarshal them is a programming error.
		panic(fmt.Sprintf("config: unmarshalling defaults: %v", err))
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.static_dir", "public")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("websocket.read_limit", 65536)
	v.SetDefault("websocket.write_timeout", "10s")
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.pong_timeout", "60s")
	v.SetDefault("websocket.outbound_buffer", 64)

	v.SetDefault("room.seats", 7)
	v.SetDefault("room.capacity", 7)
	v.SetDefault("room.code_length", 6)
	v.SetDefault("room.starting_balance", 5000)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
