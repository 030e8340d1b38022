// Package config loads the substrate's settings the way the teacher's
// internal/config package does: environment variables with typed
// fallbacks (getEnv/getEnvAsInt), here layered under an optional on-disk
// config.yaml for the tunables that benefit from being changed without a
// restart (heat thresholds, breaker parameters, cache sizes). Structural
// settings — the data directory, the socket path, the vector dimension —
// are read once at startup and are never live-reloaded.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every setting the substrate's components need to boot.
type Config struct {
	// Home is the data directory holding vectors/, graph.*, gnn/,
	// reasoning-bank/, provenance/, config.yaml.
	Home string
	// SocketPath is the daemon's Unix-domain socket path.
	SocketPath string
	// VectorDim is the fixed dimension every store in this process validates
	// against. Changing it requires a fresh data directory, not a reload.
	VectorDim int

	LogLevel  string
	LogFormat string

	Compression CompressionTunables
	Breaker     BreakerTunables
	Search      SearchTunables
	Daemon      DaemonTunables
}

// CompressionTunables mirrors compression.ManagerConfig's live-reloadable
// fields (the scheduler interval and heat-scoring knobs; PQ training
// parameters are structural and excluded).
type CompressionTunables struct {
	Alpha             float64       `yaml:"alpha"`
	HalfLifeSeconds   int           `yaml:"half_life_seconds"`
	SchedulerInterval time.Duration `yaml:"scheduler_interval"`
	SampleRate        float64       `yaml:"sample_rate"`
}

// BreakerTunables mirrors search.BreakerConfig.
type BreakerTunables struct {
	Threshold        int `yaml:"threshold"`
	ResetTimeoutMs   int `yaml:"reset_timeout_ms"`
	SuccessesToClose int `yaml:"successes_to_close"`
}

// SearchTunables mirrors search.EngineConfig's adapter timeout.
type SearchTunables struct {
	AdapterTimeoutMs int `yaml:"adapter_timeout_ms"`
}

// DaemonTunables bounds the C15 daemon's connection handling (spec.md
// §4.14, "Server limits").
type DaemonTunables struct {
	MaxConnections   int `yaml:"max_connections"`
	RequestTimeoutMs int `yaml:"request_timeout_ms"`
	MaxMessageBytes  int `yaml:"max_message_bytes"`
}

func defaultHome() string {
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return filepath.Join(home, ".god-agent")
	}
	return "/tmp/god-agent"
}

func (c *Config) applyDefaults() {
	if c.Home == "" {
		c.Home = defaultHome()
	}
	if c.SocketPath == "" {
		c.SocketPath = filepath.Join(c.Home, "daemon.sock")
	}
	if c.VectorDim <= 0 {
		c.VectorDim = 1536
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "console"
	}
	if c.Compression.Alpha <= 0 {
		c.Compression.Alpha = 0.6
	}
	if c.Compression.HalfLifeSeconds <= 0 {
		c.Compression.HalfLifeSeconds = int((6 * time.Hour).Seconds())
	}
	if c.Compression.SchedulerInterval <= 0 {
		c.Compression.SchedulerInterval = time.Hour
	}
	if c.Compression.SampleRate <= 0 {
		c.Compression.SampleRate = 0.02
	}
	if c.Breaker.Threshold <= 0 {
		c.Breaker.Threshold = 3
	}
	if c.Breaker.ResetTimeoutMs <= 0 {
		c.Breaker.ResetTimeoutMs = 5000
	}
	if c.Breaker.SuccessesToClose <= 0 {
		c.Breaker.SuccessesToClose = 2
	}
	if c.Search.AdapterTimeoutMs <= 0 {
		c.Search.AdapterTimeoutMs = 100
	}
	if c.Daemon.MaxConnections <= 0 {
		c.Daemon.MaxConnections = 64
	}
	if c.Daemon.RequestTimeoutMs <= 0 {
		c.Daemon.RequestTimeoutMs = 5000
	}
	if c.Daemon.MaxMessageBytes <= 0 {
		c.Daemon.MaxMessageBytes = 1 << 20 // 1 MiB
	}
}

// Load reads environment variables with sensible defaults, then layers an
// optional <home>/config.yaml on top for tunables (never for Home,
// SocketPath, or VectorDim, which the env/defaults already fixed by the
// time the file is read).
func Load() (*Config, error) {
	cfg := &Config{
		Home:       getEnv("GOD_AGENT_HOME", ""),
		SocketPath: getEnv("GOD_AGENT_SOCKET", ""),
		VectorDim:  getEnvAsInt("GOD_AGENT_VECTOR_DIM", 0),
		LogLevel:   getEnv("GOD_AGENT_LOG_LEVEL", ""),
		LogFormat:  getEnv("GOD_AGENT_LOG_FORMAT", ""),
	}
	cfg.applyDefaults()

	yamlPath := filepath.Join(cfg.Home, "config.yaml")
	if err := cfg.mergeYAMLFile(yamlPath); err != nil {
		return nil, err
	}
	return cfg, nil
}

// fileTunables is the subset of Config a config.yaml file may override.
type fileTunables struct {
	LogLevel    string               `yaml:"log_level"`
	LogFormat   string               `yaml:"log_format"`
	Compression *CompressionTunables `yaml:"compression"`
	Breaker     *BreakerTunables     `yaml:"breaker"`
	Search      *SearchTunables      `yaml:"search"`
	Daemon      *DaemonTunables      `yaml:"daemon"`
}

// mergeYAMLFile layers a config.yaml's tunables onto cfg. A missing file
// is not an error — the on-disk layer is optional.
func (c *Config) mergeYAMLFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	var ft fileTunables
	if err := yaml.Unmarshal(raw, &ft); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	c.applyFileTunables(ft)
	return nil
}

func (c *Config) applyFileTunables(ft fileTunables) {
	if ft.LogLevel != "" {
		c.LogLevel = ft.LogLevel
	}
	if ft.LogFormat != "" {
		c.LogFormat = ft.LogFormat
	}
	if ft.Compression != nil {
		c.Compression = *ft.Compression
	}
	if ft.Breaker != nil {
		c.Breaker = *ft.Breaker
	}
	if ft.Search != nil {
		c.Search = *ft.Search
	}
	if ft.Daemon != nil {
		c.Daemon = *ft.Daemon
	}
	c.applyDefaults()
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
