package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config represents the top-level configuration for Leadcast.
type Config struct {
	Server       ServerConfig       `koanf:"server"`
	Database     DatabaseConfig     `koanf:"database"`
	CAPI         CAPIConfig         `koanf:"capi"`
	Destinations DestinationsConfig `koanf:"destinations"`
	Eircode      EircodeConfig      `koanf:"eircode"`
	Admin        AdminConfig        `koanf:"admin"`
}

// ServerConfig holds the HTTP server configuration.
type ServerConfig struct {
	Port          int    `koanf:"port"`
	Host          string `koanf:"host"`
	MaxBodySizeMB int    `koanf:"max_body_size_mb"`
	Mode          string `koanf:"mode"` // debug | release
}

// DatabaseConfig holds the database connection settings.
type DatabaseConfig struct {
	Type         string `koanf:"type"`
	DSN          string `koanf:"dsn"`
	MaxOpenConns int    `koanf:"max_open_conns"`
	MaxIdleConns int    `koanf:"max_idle_conns"`
	AutoMigrate  bool   `koanf:"auto_migrate"`
}

// CAPIConfig holds the Conversions API delivery settings.
type CAPIConfig struct {
	GraphVersion  string `koanf:"graph_version"`
	PartnerAgent  string `koanf:"partner_agent"`
	Timeout       string `koanf:"timeout"` // parsed and validated on startup
	Concurrency   int    `koanf:"concurrency"`
	TestEventCode string `koanf:"test_event_code"`
	ExcerptLimit  int    `koanf:"excerpt_limit"`
}

// DestinationsConfig selects where pixel credentials come from and how
// activation is managed.
type DestinationsConfig struct {
	Source              string `koanf:"source"` // database | file
	FilePath            string `koanf:"file_path"`
	AutoRecovery        bool   `koanf:"auto_recovery"`
	EnforceSingleActive bool   `koanf:"enforce_single_active"`
}

// EircodeConfig holds settings for the optional address-lookup provider.
type EircodeConfig struct {
	LookupEnabled bool   `koanf:"lookup_enabled"`
	APIURL        string `koanf:"api_url"`
	APIKey        string `koanf:"api_key"`
	Timeout       string `koanf:"timeout"`
}

// AdminConfig holds the admin API settings.
type AdminConfig struct {
	APIKey           string `koanf:"api_key"`
	ExportWindowDays int    `koanf:"export_window_days"`
}

// DeliveryTimeout returns the parsed capi.timeout. Call Validate first.
func (c CAPIConfig) DeliveryTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 8 * time.Second
	}
	return d
}

// LookupTimeout returns the parsed eircode.timeout. Call Validate first.
func (c EircodeConfig) LookupTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d (must be 1-65535)", c.Server.Port)
	}
	if strings.TrimSpace(c.Server.Host) == "" {
		return fmt.Errorf("server.host is required")
	}
	if c.Server.MaxBodySizeMB <= 0 {
		return fmt.Errorf("server.max_body_size_mb must be > 0")
	}
	if c.Server.Mode != "debug" && c.Server.Mode != "release" {
		return fmt.Errorf("invalid server.mode %q (must be debug or release)", c.Server.Mode)
	}

	if strings.TrimSpace(c.Database.DSN) == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be > 0")
	}
	if c.Database.MaxIdleConns <= 0 {
		return fmt.Errorf("database.max_idle_conns must be > 0")
	}
	if c.Database.Type != "" && c.Database.Type != "postgres" {
		return fmt.Errorf("unsupported database.type %q", c.Database.Type)
	}

	if strings.TrimSpace(c.CAPI.GraphVersion) == "" {
		return fmt.Errorf("capi.graph_version is required")
	}
	if _, err := time.ParseDuration(c.CAPI.Timeout); err != nil {
		return fmt.Errorf("invalid capi.timeout %q: %w", c.CAPI.Timeout, err)
	}
	if c.CAPI.Concurrency < 0 {
		return fmt.Errorf("capi.concurrency must be >= 0")
	}
	if c.CAPI.ExcerptLimit <= 0 {
		return fmt.Errorf("capi.excerpt_limit must be > 0")
	}

	switch c.Destinations.Source {
	case "database":
	case "file":
		if strings.TrimSpace(c.Destinations.FilePath) == "" {
			return fmt.Errorf("destinations.file_path is required when destinations.source is \"file\"")
		}
	default:
		return fmt.Errorf("unsupported destinations.source %q (must be database or file)", c.Destinations.Source)
	}

	if c.Eircode.LookupEnabled {
		if strings.TrimSpace(c.Eircode.APIURL) == "" {
			return fmt.Errorf("eircode.api_url is required when lookup is enabled")
		}
		if _, err := time.ParseDuration(c.Eircode.Timeout); err != nil {
			return fmt.Errorf("invalid eircode.timeout %q: %w", c.Eircode.Timeout, err)
		}
	}

	if c.Admin.ExportWindowDays <= 0 || c.Admin.ExportWindowDays > 7 {
		return fmt.Errorf("admin.export_window_days must be 1-7")
	}

	return nil
}

// Load parses configuration from defaults, an optional YAML file, and
// LEADCAST_-prefixed environment variables, then validates the result.
// LEADCAST_SERVER__PORT=9090 overrides server.port.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"server.port":                        8080,
		"server.host":                        "0.0.0.0",
		"server.max_body_size_mb":            1,
		"server.mode":                        "release",
		"database.type":                      "postgres",
		"database.dsn":                       "",
		"database.max_open_conns":            25,
		"database.max_idle_conns":            25,
		"database.auto_migrate":              true,
		"capi.graph_version":                 "v20.0",
		"capi.partner_agent":                 "leadcast",
		"capi.timeout":                       "8s",
		"capi.concurrency":                   0,
		"capi.test_event_code":               "",
		"capi.excerpt_limit":                 800,
		"destinations.source":                "database",
		"destinations.file_path":             "",
		"destinations.auto_recovery":         true,
		"destinations.enforce_single_active": false,
		"eircode.lookup_enabled":             false,
		"eircode.api_url":                    "",
		"eircode.api_key":                    "",
		"eircode.timeout":                    "5s",
		"admin.api_key":                      "",
		"admin.export_window_days":           7,
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("LEADCAST_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "LEADCAST_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
