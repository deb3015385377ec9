package main

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/stickerverse/figmacionvert-v3-sub010/compact"
)

// Config holds the full figmaconvert daemon configuration. Values come
// from a YAML file (-config), with environment variables taking
// precedence over both the file and the defaults.
type Config struct {
	Port         string         `yaml:"port"`
	QueueDB      string         `yaml:"queue_db"`
	ObsDB        string         `yaml:"observability_db"`
	TraceDB      string         `yaml:"trace_db"`
	TraceRemote  string         `yaml:"trace_remote_url"` // forward traces instead of storing locally
	LogLevel     string         `yaml:"log_level"`
	MCPTransport string         `yaml:"mcp_transport"` // "" | stdio
	TargetMB     int            `yaml:"compact_target_mb"`
	MaxPayloadMB int            `yaml:"max_payload_mb"`
	Upstream     UpstreamConfig `yaml:"upstream"`
}

// UpstreamConfig configures the optional capture feed.
type UpstreamConfig struct {
	URL          string `yaml:"url"`
	Token        string `yaml:"token"`
	PollInterval int    `yaml:"poll_interval_seconds"`
}

// DefaultConfig returns sane defaults.
func DefaultConfig() *Config {
	return &Config{
		Port:         "8090",
		QueueDB:      "db/queue.db",
		ObsDB:        "db/observability.db",
		TraceDB:      "db/traces.db",
		LogLevel:     "info",
		TargetMB:     compact.DefaultTargetMB,
		MaxPayloadMB: 256,
		Upstream: UpstreamConfig{
			PollInterval: 15,
		},
	}
}

// LoadConfig reads and parses a YAML config file. Returns DefaultConfig merged with the file.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks that required fields are present and values are sane.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port is required")
	}
	if c.QueueDB == "" {
		return fmt.Errorf("queue_db is required")
	}
	if c.TargetMB <= 0 {
		return fmt.Errorf("compact_target_mb must be > 0")
	}
	if c.MaxPayloadMB <= 0 {
		return fmt.Errorf("max_payload_mb must be > 0")
	}
	switch c.MCPTransport {
	case "", "stdio":
	default:
		return fmt.Errorf("unsupported mcp_transport %q (use stdio)", c.MCPTransport)
	}
	if c.Upstream.PollInterval <= 0 {
		return fmt.Errorf("upstream poll_interval_seconds must be > 0")
	}
	return nil
}

// ApplyEnv overlays environment variables onto the config. Env wins so
// the same YAML file can be shared across deployments.
func (c *Config) ApplyEnv() {
	envStr("PORT", &c.Port)
	envStr("QUEUE_DB", &c.QueueDB)
	envStr("OBS_DB", &c.ObsDB)
	envStr("TRACE_DB", &c.TraceDB)
	envStr("TRACE_REMOTE_URL", &c.TraceRemote)
	envStr("LOG_LEVEL", &c.LogLevel)
	envStr("MCP_TRANSPORT", &c.MCPTransport)
	envStr("UPSTREAM_URL", &c.Upstream.URL)
	envStr("UPSTREAM_TOKEN", &c.Upstream.Token)
	envInt("COMPACT_TARGET_MB", &c.TargetMB)
	envInt("MAX_PAYLOAD_MB", &c.MaxPayloadMB)
}

// MaxPayloadBytes returns the request body cap in bytes.
func (c *Config) MaxPayloadBytes() int64 { return int64(c.MaxPayloadMB) << 20 }

func envStr(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if s := os.Getenv(key); s != "" {
		if v, err := strconv.Atoi(s); err == nil {
			*dst = v
		}
	}
}
