// Package config loads client and relay configuration from YAML and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Transport names accepted in ClientConfig.Transport.
const (
	TransportTCP = "tcp"
	TransportWS  = "ws"
)

// Config is the root configuration shared by both binaries.
type Config struct {
	Client ClientConfig `mapstructure:"client"`
	Relay  RelayConfig  `mapstructure:"relay"`
	Log    LogConfig    `mapstructure:"log"`
}

// ClientConfig controls the chat client.
type ClientConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Transport string `mapstructure:"transport"`
	// Name, when set, is prefixed to every chat line as "[name] ".
	Name string `mapstructure:"name"`
	// Budget bounds each multiplexer wait.
	Budget time.Duration `mapstructure:"budget"`
	// WriteSlice bounds each send attempt; zero keeps the transport default.
	WriteSlice  time.Duration `mapstructure:"write_slice"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

// RelayConfig controls the relay server.
type RelayConfig struct {
	Addr string `mapstructure:"addr"`
}

// LogConfig defines logger settings.
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `mapstructure:"level"`
	// Format: console or json
	Format string `mapstructure:"format"`
	// Outputs: stdout, stderr, or file paths. Empty lets the binary choose.
	Outputs []string `mapstructure:"outputs"`

	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig controls log file rotation for file outputs.
type RotationConfig struct {
	Enable     bool `mapstructure:"enable"`
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	Compress   bool `mapstructure:"compress"`
}

// Default returns a Config populated with defaults.
func Default() *Config {
	return &Config{
		Client: ClientConfig{
			Host:        "127.0.0.1",
			Port:        8080,
			Transport:   TransportTCP,
			Budget:      50 * time.Millisecond,
			DialTimeout: 5 * time.Second,
		},
		Relay: RelayConfig{
			Addr: ":8080",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
			Rotation: RotationConfig{
				Enable:     true,
				MaxSizeMB:  10,
				MaxBackups: 3,
				MaxAgeDays: 7,
			},
		},
	}
}

// Load reads configuration from path when non-empty, otherwise from
// RELAYCHAT_CONFIG or ./relay-chat.yaml if present. Environment variables
// use the prefix RELAYCHAT, e.g. RELAYCHAT_CLIENT_PORT=9000.
func Load(path string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("RELAYCHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("client.host", cfg.Client.Host)
	v.SetDefault("client.port", cfg.Client.Port)
	v.SetDefault("client.transport", cfg.Client.Transport)
	v.SetDefault("client.name", cfg.Client.Name)
	v.SetDefault("client.budget", cfg.Client.Budget)
	v.SetDefault("client.write_slice", cfg.Client.WriteSlice)
	v.SetDefault("client.dial_timeout", cfg.Client.DialTimeout)
	v.SetDefault("relay.addr", cfg.Relay.Addr)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.outputs", cfg.Log.Outputs)
	v.SetDefault("log.rotation.enable", cfg.Log.Rotation.Enable)
	v.SetDefault("log.rotation.max_size_mb", cfg.Log.Rotation.MaxSizeMB)
	v.SetDefault("log.rotation.max_backups", cfg.Log.Rotation.MaxBackups)
	v.SetDefault("log.rotation.max_age_days", cfg.Log.Rotation.MaxAgeDays)
	v.SetDefault("log.rotation.compress", cfg.Log.Rotation.Compress)

	if path == "" {
		path = os.Getenv("RELAYCHAT_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("relay-chat")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// Validate reports the first invalid setting. It normalizes case in the
// transport and log fields.
func (c *Config) Validate() error {
	c.Client.Transport = strings.ToLower(strings.TrimSpace(c.Client.Transport))
	switch c.Client.Transport {
	case TransportTCP, TransportWS:
	default:
		return fmt.Errorf("invalid client.transport: %q (want %s or %s)", c.Client.Transport, TransportTCP, TransportWS)
	}

	if c.Client.Port < 1 || c.Client.Port > 65535 {
		return fmt.Errorf("invalid client.port: %d (want 1-65535)", c.Client.Port)
	}
	if strings.TrimSpace(c.Client.Host) == "" {
		return errors.New("client.host is empty")
	}
	if c.Client.Budget <= 0 {
		return fmt.Errorf("invalid client.budget: %s (must be positive)", c.Client.Budget)
	}
	if c.Client.WriteSlice < 0 {
		return fmt.Errorf("invalid client.write_slice: %s", c.Client.WriteSlice)
	}

	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	switch c.Log.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log.level: %q", c.Log.Level)
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	return nil
}

// SenderTag returns the chat prefix derived from Client.Name.
func (c ClientConfig) SenderTag() string {
	if c.Name == "" {
		return ""
	}
	return "[" + c.Name + "] "
}
