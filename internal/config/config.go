package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/danmuck/barcoded/internal/logging"
	"github.com/pelletier/go-toml/v2"
)

const (
	DefaultListen          = "127.0.0.1:2348"
	DefaultMaxPayloadBytes = 64 * 1024 * 1024
)

type ServerConfig struct {
	Server  ServerSection  `toml:"server"`
	Barcode BarcodeSection `toml:"barcode"`
	Frame   FrameSection   `toml:"frame"`
	Logging LoggingSection `toml:"logging"`
}

type ServerSection struct {
	Listen  string `toml:"listen"`
	OpsAddr string `toml:"ops_addr"`
}

// BarcodeSection points at the counter root: <path>/<YYYY-MM-DD>/<code>.
type BarcodeSection struct {
	Path string `toml:"path"`
}

type FrameSection struct {
	MaxPayloadBytes uint32 `toml:"max_payload_bytes"`
}

type LoggingSection struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

func LoadServerConfig(path string) (ServerConfig, error) {
	var cfg ServerConfig
	if err := loadToml(path, &cfg); err != nil {
		return ServerConfig{}, err
	}
	ApplyServerDefaults(&cfg)
	if err := ValidateServerConfig(cfg); err != nil {
		return ServerConfig{}, err
	}
	return cfg, nil
}

func ApplyServerDefaults(cfg *ServerConfig) {
	if strings.TrimSpace(cfg.Server.Listen) == "" {
		cfg.Server.Listen = DefaultListen
	}
	if cfg.Frame.MaxPayloadBytes == 0 {
		cfg.Frame.MaxPayloadBytes = DefaultMaxPayloadBytes
	}
	if strings.TrimSpace(cfg.Logging.Level) == "" {
		cfg.Logging.Level = "info"
	}
	if strings.TrimSpace(cfg.Logging.Format) == "" {
		cfg.Logging.Format = "console"
	}
}

// loadToml rejects unknown keys so a misspelled section fails at startup.
func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return fmt.Errorf("config parse failed (%s): %s", path, strict.String())
		}
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateServerConfig(cfg ServerConfig) error {
	if strings.TrimSpace(cfg.Server.Listen) == "" {
		return fmt.Errorf("server config missing server.listen")
	}
	if strings.TrimSpace(cfg.Barcode.Path) == "" {
		return fmt.Errorf("server config missing barcode.path")
	}
	if cfg.Frame.MaxPayloadBytes == 0 {
		return fmt.Errorf("server config frame.max_payload_bytes must be positive")
	}
	if _, ok := logging.ParseLevel(cfg.Logging.Level); !ok {
		return fmt.Errorf("server config logging.level invalid: %q", cfg.Logging.Level)
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Logging.Format)) {
	case "console", "json":
	default:
		return fmt.Errorf("server config logging.format must be console or json: %q", cfg.Logging.Format)
	}
	return nil
}
