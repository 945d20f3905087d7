package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func validConfig() Config {
	return Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			StaticDir:       "public",
			ShutdownTimeout: 10 * time.Second,
		},
		WebSocket: WebSocketConfig{
			ReadLimit:      65536,
			WriteTimeout:   10 * time.Second,
			PingInterval:   30 * time.Second,
			PongTimeout:    time.Minute,
			OutboundBuffer: 64,
		},
		Room: RoomConfig{
			Seats:           7,
			Capacity:        7,
			CodeLength:      6,
			StartingBalance: 5000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func TestValidConfig(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, cfg.Validate())
}

func TestServerAddr(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 7, cfg.Room.Seats)
	assert.Equal(t, 5000, cfg.Room.StartingBalance)
	assert.Equal(t, 6, cfg.Room.CodeLength)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	err := os.WriteFile(path, []byte(`
server:
  host: 127.0.0.1
  port: 9090
  static_dir: assets
websocket:
  read_limit: 32768
  write_timeout: 5s
  ping_interval: 15s
  pong_timeout: 40s
  outbound_buffer: 32
room:
  seats: 5
  capacity: 9
  code_length: 8
  starting_balance: 1000
logging:
  level: debug
  format: console
`), 0644)
	require.NoError(t, err)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "assets", cfg.Server.StaticDir)
	assert.Equal(t, int64(32768), cfg.WebSocket.ReadLimit)
	assert.Equal(t, 15*time.Second, cfg.WebSocket.PingInterval)
	assert.Equal(t, 5, cfg.Room.Seats)
	assert.Equal(t, 8, cfg.Room.CodeLength)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "partial.yaml")
	err := os.WriteFile(path, []byte(`
logging:
  level: warn
`), 0644)
	require.NoError(t, err)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 7, cfg.Room.Capacity)
	assert.Equal(t, 64, cfg.WebSocket.OutboundBuffer)
}

func TestLoadInvalidPath(t *testing.T) {
	_, err := Load("/nonexistent/path.yaml")
	assert.Error(t, err)
}

func TestValidateStaticDirEmpty(t *testing.T) {
	cfg := validConfig()
	cfg.Server.StaticDir = ""
	assert.Error(t, cfg.Validate())
}

func TestValidateLoggingLevel(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		cfg := validConfig()
		cfg.Logging.Level = level
		assert.NoError(t, cfg.Validate(), "level %q should be valid", level)
	}
	cfg := validConfig()
	cfg.Logging.Level = "trace"
	assert.Error(t, cfg.Validate())
}

func TestValidateLoggingFormat(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		cfg := validConfig()
		cfg.Logging.Format = format
		assert.NoError(t, cfg.Validate(), "format %q should be valid", format)
	}
	cfg := validConfig()
	cfg.Logging.Format = "xml"
	assert.Error(t, cfg.Validate())
}

func TestValidateCapacityBelowSeats(t *testing.T) {
	cfg := validConfig()
	cfg.Room.Seats = 7
	cfg.Room.Capacity = 5
	assert.Error(t, cfg.Validate())
}

func TestValidatePongTimeoutBelowPingInterval(t *testing.T) {
	cfg := validConfig()
	cfg.WebSocket.PingInterval = 30 * time.Second
	cfg.WebSocket.PongTimeout = 20 * time.Second
	assert.Error(t, cfg.Validate())
}

func TestValidateOutboundBuffer(t *testing.T) {
	cfg := validConfig()
	cfg.WebSocket.OutboundBuffer = 0
	assert.Error(t, cfg.Validate())
}

// Property-based tests

func TestPropertyValidPortRange(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		port := rapid.IntRange(1, 65535).Draw(t, "port")
		cfg := validConfig()
		cfg.Server.Port = port
		err := cfg.Validate()
		if err != nil {
			t.Fatalf("valid port %d rejected: %v", port, err)
		}
	})
}

func TestPropertyInvalidPortRange(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		// Generate ports outside valid range
		port := rapid.OneOf(
			rapid.IntRange(-1000, 0),
			rapid.IntRange(65536, 100000),
		).Draw(t, "port")
		cfg := validConfig()
		cfg.Server.Port = port
		err := cfg.Validate()
		if err == nil {
			t.Fatalf("invalid port %d accepted", port)
		}
	})
}

func TestPropertyCapacityAtLeastSeats(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		seats := rapid.IntRange(1, 20).Draw(t, "seats")
		capacity := rapid.IntRange(seats, seats+20).Draw(t, "capacity")
		cfg := validConfig()
		cfg.Room.Seats = seats
		cfg.Room.Capacity = capacity
		err := cfg.Validate()
		if err != nil {
			t.Fatalf("valid sizing seats=%d capacity=%d rejected: %v", seats, capacity, err)
		}
	})
}

func TestPropertyCapacityBelowSeatsRejected(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		seats := rapid.IntRange(2, 20).Draw(t, "seats")
		capacity := rapid.IntRange(1, seats-1).Draw(t, "capacity")
		cfg := validConfig()
		cfg.Room.Seats = seats
		cfg.Room.Capacity = capacity
		err := cfg.Validate()
		if err == nil {
			t.Fatalf("capacity=%d < seats=%d accepted", capacity, seats)
		}
	})
}
