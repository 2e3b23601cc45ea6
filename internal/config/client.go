package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultClientTimeout = 30 * time.Second
	DefaultTable         = "drinks"
)

type ClientConfig struct {
	Server   string
	Timeout  time.Duration
	Database DatabaseConfig
}

// DatabaseConfig selects the sink for queried rows. DSN wins over the
// discrete connection fields when both are set.
type DatabaseConfig struct {
	Driver   string
	DSN      string
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
	Table    string
}

type clientFile struct {
	Server   string       `toml:"server"`
	Timeout  string       `toml:"timeout"`
	Database databaseFile `toml:"database"`
}

type databaseFile struct {
	Driver   string `toml:"driver"`
	DSN      string `toml:"dsn"`
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Name     string `toml:"name"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	SSLMode  string `toml:"sslmode"`
	Table    string `toml:"table"`
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Server:  DefaultListen,
		Timeout: DefaultClientTimeout,
		Database: DatabaseConfig{
			Driver:  "postgres",
			Host:    "localhost",
			Port:    5432,
			Name:    "barcodes",
			SSLMode: "disable",
			Table:   DefaultTable,
		},
	}
}

// LoadClientConfig overlays keys present in path onto DefaultClientConfig.
func LoadClientConfig(path string) (ClientConfig, error) {
	cfg := DefaultClientConfig()

	var raw clientFile
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return ClientConfig{}, fmt.Errorf("load client config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return ClientConfig{}, fmt.Errorf("load client config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("server") {
		cfg.Server = strings.TrimSpace(raw.Server)
	}
	if meta.IsDefined("timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Timeout))
		if err != nil {
			return ClientConfig{}, fmt.Errorf("parse timeout: %w", err)
		}
		cfg.Timeout = d
	}

	db := &cfg.Database
	if meta.IsDefined("database", "driver") {
		db.Driver = strings.TrimSpace(raw.Database.Driver)
	}
	if meta.IsDefined("database", "dsn") {
		db.DSN = strings.TrimSpace(raw.Database.DSN)
	}
	if meta.IsDefined("database", "host") {
		db.Host = strings.TrimSpace(raw.Database.Host)
	}
	if meta.IsDefined("database", "port") {
		db.Port = raw.Database.Port
	}
	if meta.IsDefined("database", "name") {
		db.Name = strings.TrimSpace(raw.Database.Name)
	}
	if meta.IsDefined("database", "user") {
		db.User = strings.TrimSpace(raw.Database.User)
	}
	if meta.IsDefined("database", "password") {
		db.Password = raw.Database.Password
	}
	if meta.IsDefined("database", "sslmode") {
		db.SSLMode = strings.TrimSpace(raw.Database.SSLMode)
	}
	if meta.IsDefined("database", "table") {
		db.Table = strings.TrimSpace(raw.Database.Table)
	}

	if err := ValidateClientConfig(cfg); err != nil {
		return ClientConfig{}, err
	}
	return cfg, nil
}

func ValidateClientConfig(cfg ClientConfig) error {
	if strings.TrimSpace(cfg.Server) == "" {
		return fmt.Errorf("client config missing server")
	}
	if cfg.Timeout < 0 {
		return fmt.Errorf("client config timeout must not be negative")
	}
	return ValidateDatabaseConfig(cfg.Database)
}

func ValidateDatabaseConfig(db DatabaseConfig) error {
	switch db.Driver {
	case "postgres":
		if db.DSN == "" && (db.Host == "" || db.Name == "") {
			return fmt.Errorf("database config needs dsn or host and name")
		}
		if db.DSN == "" && (db.Port <= 0 || db.Port > 65535) {
			return fmt.Errorf("database config port out of range: %d", db.Port)
		}
	case "sqlite":
		if db.DSN == "" {
			return fmt.Errorf("database config for sqlite needs dsn")
		}
	default:
		return fmt.Errorf("database config driver must be postgres or sqlite: %q", db.Driver)
	}
	if !validIdentifier(db.Table) {
		return fmt.Errorf("database config table name invalid: %q", db.Table)
	}
	return nil
}

// validIdentifier accepts names safe to splice into SQL unquoted.
func validIdentifier(name string) bool {
	if name == "" || len(name) > 63 {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
