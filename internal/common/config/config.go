package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/amoylab/umbra/internal/common/cnst"
	"github.com/amoylab/umbra/pkg/helper"

	"github.com/BurntSushi/toml"
	"github.com/ifuryst/lol"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type (
	// MessengerConfig represents the messenger server configuration
	MessengerConfig struct {
		Server   ServerConfig   `yaml:"server" toml:"server"`
		Logger   LoggerConfig   `yaml:"logger" toml:"logger"`
		Database DatabaseConfig `yaml:"database" toml:"database"`
		Realtime RealtimeConfig `yaml:"realtime" toml:"realtime"`
		Presence PresenceConfig `yaml:"presence" toml:"presence"`
		Metrics  MetricsConfig  `yaml:"metrics" toml:"metrics"`
		Tracing  TracingConfig  `yaml:"tracing" toml:"tracing"`
		I18n     I18nConfig     `yaml:"i18n" toml:"i18n"`
	}

	// ServerConfig represents the HTTP listener configuration
	ServerConfig struct {
		Port            int           `yaml:"port" toml:"port"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" toml:"shutdown_timeout"`
		AllowedOrigins  []string      `yaml:"allowed_origins" toml:"allowed_origins"` // empty allows any origin
		PID             string        `yaml:"pid" toml:"pid"`
	}

	// LoggerConfig represents the logger configuration
	LoggerConfig struct {
		Level      string `yaml:"level" toml:"level"`             // debug, info, warn, error
		Format     string `yaml:"format" toml:"format"`           // json, console
		Output     string `yaml:"output" toml:"output"`           // stdout, file
		FilePath   string `yaml:"file_path" toml:"file_path"`     // path to log file when output is file
		MaxSize    int    `yaml:"max_size" toml:"max_size"`       // max size of log file in MB
		MaxBackups int    `yaml:"max_backups" toml:"max_backups"` // max number of backup files
		MaxAge     int    `yaml:"max_age" toml:"max_age"`         // max age of backup files in days
		Compress   bool   `yaml:"compress" toml:"compress"`       // whether to compress backup files
		Color      bool   `yaml:"color" toml:"color"`             // whether to use color in console output
		Stacktrace bool   `yaml:"stacktrace" toml:"stacktrace"`   // whether to include stacktrace in error logs
		TimeZone   string `yaml:"time_zone" toml:"time_zone"`     // time zone for log timestamps, e.g., "UTC", default is local
		TimeFormat string `yaml:"time_format" toml:"time_format"` // time format for log timestamps, default is "2006-01-02 15:04:05"
	}

	// RealtimeConfig groups the settings of the real-time delivery subsystem
	RealtimeConfig struct {
		Mailbox   MailboxConfig   `yaml:"mailbox" toml:"mailbox"`
		Delivery  DeliveryConfig  `yaml:"delivery" toml:"delivery"`
		WebSocket WebSocketConfig `yaml:"websocket" toml:"websocket"`
	}

	// MailboxConfig bounds the per-user offline queues
	MailboxConfig struct {
		Capacity    int           `yaml:"capacity" toml:"capacity"`
		DrainPacing time.Duration `yaml:"drain_pacing" toml:"drain_pacing"`
	}

	// DeliveryConfig controls relay behaviour for recipients that are offline
	DeliveryConfig struct {
		// RelayOffline queues contact_accept and message_ack relays for offline
		// recipients instead of dropping them.
		RelayOffline bool `yaml:"relay_offline" toml:"relay_offline"`
	}

	// WebSocketConfig holds transport limits for client connections
	WebSocketConfig struct {
		HandshakeTimeout time.Duration `yaml:"handshake_timeout" toml:"handshake_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout" toml:"write_timeout"`
		ReadLimit        int64         `yaml:"read_limit" toml:"read_limit"`
		PingInterval     time.Duration `yaml:"ping_interval" toml:"ping_interval"` // negative disables keepalive pings
	}

	// PresenceConfig selects where online/offline transitions are published
	PresenceConfig struct {
		Type  string              `yaml:"type" toml:"type"` // log or redis
		Redis PresenceRedisConfig `yaml:"redis" toml:"redis"`
	}

	// PresenceRedisConfig represents the Redis configuration for presence events
	PresenceRedisConfig struct {
		ClusterType string `yaml:"cluster_type" toml:"cluster_type"` // single, sentinel or cluster
		Addr        string `yaml:"addr" toml:"addr"`                 // comma or semicolon separated for sentinel/cluster
		MasterName  string `yaml:"master_name" toml:"master_name"`
		Username    string `yaml:"username" toml:"username"`
		Password    string `yaml:"password" toml:"password"`
		DB          int    `yaml:"db" toml:"db"`
		Topic       string `yaml:"topic" toml:"topic"`
	}

	// MetricsConfig represents the Prometheus exporter configuration
	MetricsConfig struct {
		Enabled   bool      `yaml:"enabled" toml:"enabled"`
		Path      string    `yaml:"path" toml:"path"`
		Namespace string    `yaml:"namespace" toml:"namespace"`
		Buckets   []float64 `yaml:"buckets" toml:"buckets"`
	}

	// TracingConfig represents OpenTelemetry tracing configuration
	TracingConfig struct {
		Enabled     bool              `yaml:"enabled" toml:"enabled"`
		ServiceName string            `yaml:"service_name" toml:"service_name"`
		Endpoint    string            `yaml:"endpoint" toml:"endpoint"` // e.g. localhost:4317 or http://localhost:4318
		Protocol    string            `yaml:"protocol" toml:"protocol"` // grpc or http
		Insecure    bool              `yaml:"insecure" toml:"insecure"`
		SamplerRate float64           `yaml:"sampler_rate" toml:"sampler_rate"` // 0.0~1.0
		Environment string            `yaml:"environment" toml:"environment"`
		Headers     map[string]string `yaml:"headers" toml:"headers"`
	}

	// I18nConfig represents the internationalization configuration
	I18nConfig struct {
		Path        string `yaml:"path" toml:"path"` // optional directory with extra translation files
		DefaultLang string `yaml:"default_lang" toml:"default_lang"`
	}
)

const (
	DefaultPort             = 8000
	DefaultMailboxCapacity  = 100
	DefaultDrainPacing      = 100 * time.Millisecond
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultWriteTimeout     = 10 * time.Second
	DefaultReadLimit        = 1 << 20
	DefaultPingInterval     = 30 * time.Second
	DefaultShutdownTimeout  = 5 * time.Second
)

// LoadConfig loads configuration from a YAML or TOML file with environment variable support
func LoadConfig(filename string) (*MessengerConfig, string, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	cfgPath := helper.GetCfgPath(filename)
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		return nil, cfgPath, err
	}

	// Resolve environment variables
	data = resolveEnv(data)

	var cfg MessengerConfig
	switch strings.ToLower(filepath.Ext(cfgPath)) {
	case ".toml":
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, cfgPath, err
		}
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, cfgPath, err
		}
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, cfgPath, err
	}

	return &cfg, cfgPath, nil
}

// SetDefaults fills zero values with the built-in defaults
func (c *MessengerConfig) SetDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.Server.PID == "" {
		c.Server.PID = "/var/run/umbra/messenger.pid"
	}
	c.Server.AllowedOrigins = lol.UniqSlice(c.Server.AllowedOrigins)
	if c.Database.Type == "" {
		c.Database.Type = "sqlite"
	}
	if c.Database.Type == "sqlite" && c.Database.DBName == "" {
		c.Database.DBName = "data/umbra.db"
	}

	mb := &c.Realtime.Mailbox
	if mb.Capacity <= 0 {
		mb.Capacity = DefaultMailboxCapacity
	}
	if mb.DrainPacing < 0 {
		mb.DrainPacing = 0
	} else if mb.DrainPacing == 0 {
		mb.DrainPacing = DefaultDrainPacing
	}

	ws := &c.Realtime.WebSocket
	if ws.HandshakeTimeout <= 0 {
		ws.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if ws.WriteTimeout <= 0 {
		ws.WriteTimeout = DefaultWriteTimeout
	}
	if ws.ReadLimit <= 0 {
		ws.ReadLimit = DefaultReadLimit
	}
	if ws.PingInterval < 0 {
		ws.PingInterval = 0
	} else if ws.PingInterval == 0 {
		ws.PingInterval = DefaultPingInterval
	}

	if c.Presence.Type == "" {
		c.Presence.Type = "log"
	}
	if c.Presence.Redis.ClusterType == "" {
		c.Presence.Redis.ClusterType = cnst.RedisClusterTypeSingle
	}
	if c.Presence.Redis.Topic == "" {
		c.Presence.Redis.Topic = "umbra:presence"
	}

	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "umbra"
	}

	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "umbra-messenger"
	}

	if c.I18n.DefaultLang == "" {
		c.I18n.DefaultLang = "en"
	}
}

// Validate checks values that have no sensible default
func (c *MessengerConfig) Validate() error {
	switch c.Database.Type {
	case "sqlite", "postgres", "mysql":
	default:
		return fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}
	switch c.Presence.Type {
	case "log":
	case "redis":
		if c.Presence.Redis.Addr == "" {
			return fmt.Errorf("presence.redis.addr is required for redis presence")
		}
		switch c.Presence.Redis.ClusterType {
		case cnst.RedisClusterTypeSingle, cnst.RedisClusterTypeSentinel, cnst.RedisClusterTypeCluster:
		default:
			return fmt.Errorf("unsupported redis cluster type: %s", c.Presence.Redis.ClusterType)
		}
	default:
		return fmt.Errorf("unsupported presence type: %s", c.Presence.Type)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	return nil
}

// resolveEnv replaces environment variable placeholders in config content
func resolveEnv(content []byte) []byte {
	regex := regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

	return regex.ReplaceAllFunc(content, func(match []byte) []byte {
		matches := regex.FindSubmatch(match)
		envKey := string(matches[1])
		var defaultValue string

		if len(matches) > 2 {
			defaultValue = string(matches[2])
		}

		if value, exists := os.LookupEnv(envKey); exists {
			return []byte(value)
		}
		return []byte(defaultValue)
	})
}
