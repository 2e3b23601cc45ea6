package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadServerConfigAppliesDefaults(t *testing.T) {
	path := writeFile(t, "server.toml", "[barcode]\npath = \"/srv/barcodes\"\n")

	cfg, err := LoadServerConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Listen != DefaultListen {
		t.Fatalf("listen default: got=%q", cfg.Server.Listen)
	}
	if cfg.Frame.MaxPayloadBytes != DefaultMaxPayloadBytes {
		t.Fatalf("max payload default: got=%d", cfg.Frame.MaxPayloadBytes)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "console" {
		t.Fatalf("logging defaults: %+v", cfg.Logging)
	}
	if cfg.Barcode.Path != "/srv/barcodes" {
		t.Fatalf("barcode path: got=%q", cfg.Barcode.Path)
	}
}

func TestLoadServerConfigRequiresBarcodePath(t *testing.T) {
	path := writeFile(t, "server.toml", "[server]\nlisten = \"0.0.0.0:2348\"\n")
	_, err := LoadServerConfig(path)
	if err == nil || !strings.Contains(err.Error(), "barcode.path") {
		t.Fatalf("expected missing barcode.path error, got %v", err)
	}
}

func TestLoadServerConfigRejectsUnknownKeys(t *testing.T) {
	path := writeFile(t, "server.toml", "[barcode]\npath = \"/srv\"\n[server]\nlistn = \"x\"\n")
	if _, err := LoadServerConfig(path); err == nil {
		t.Fatalf("expected unknown key error")
	}
}

func TestLoadServerConfigRejectsBadLogLevel(t *testing.T) {
	path := writeFile(t, "server.toml", "[barcode]\npath = \"/srv\"\n[logging]\nlevel = \"loud\"\n")
	if _, err := LoadServerConfig(path); err == nil {
		t.Fatalf("expected log level error")
	}
}

func TestServerTemplateLoads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.toml")
	if err := WriteTemplate(path, "server", false); err != nil {
		t.Fatalf("write template: %v", err)
	}
	cfg, err := LoadServerConfig(path)
	if err != nil {
		t.Fatalf("load template: %v", err)
	}
	if cfg.Server.Listen != "127.0.0.1:2348" || cfg.Barcode.Path != "/var/lib/barcodes" {
		t.Fatalf("unexpected template config: %+v", cfg)
	}
	if err := WriteTemplate(path, "server", false); err == nil {
		t.Fatalf("expected refusal to overwrite")
	}
	if err := WriteTemplate(path, "server", true); err != nil {
		t.Fatalf("forced overwrite: %v", err)
	}
}

func TestClientTemplateLoads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.toml")
	if err := WriteTemplate(path, "client", false); err != nil {
		t.Fatalf("write template: %v", err)
	}
	cfg, err := LoadClientConfig(path)
	if err != nil {
		t.Fatalf("load template: %v", err)
	}
	if cfg.Database.Table != "drinks" || cfg.Database.Port != 5432 || cfg.Timeout != 30*time.Second {
		t.Fatalf("unexpected template config: %+v", cfg)
	}
}

func TestTemplateUnknownKind(t *testing.T) {
	if _, err := Template("mirage"); err == nil {
		t.Fatalf("expected unknown kind error")
	}
}

func TestLoadClientConfigOverlaysDefinedKeys(t *testing.T) {
	path := writeFile(t, "client.toml", `
server = "10.0.0.5:2348"

[database]
driver = "sqlite"
dsn = "/tmp/drinks.db"
`)
	cfg, err := LoadClientConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server != "10.0.0.5:2348" {
		t.Fatalf("server: got=%q", cfg.Server)
	}
	if cfg.Timeout != DefaultClientTimeout {
		t.Fatalf("timeout should keep default, got=%s", cfg.Timeout)
	}
	if cfg.Database.Driver != "sqlite" || cfg.Database.DSN != "/tmp/drinks.db" {
		t.Fatalf("database: %+v", cfg.Database)
	}
	if cfg.Database.Table != DefaultTable {
		t.Fatalf("table should keep default, got=%q", cfg.Database.Table)
	}
}

func TestLoadClientConfigBadTimeout(t *testing.T) {
	path := writeFile(t, "client.toml", "timeout = \"soon\"\n")
	if _, err := LoadClientConfig(path); err == nil {
		t.Fatalf("expected timeout parse error")
	}
}

func TestLoadClientConfigUnknownKey(t *testing.T) {
	path := writeFile(t, "client.toml", "sever = \"x\"\n")
	if _, err := LoadClientConfig(path); err == nil {
		t.Fatalf("expected unknown key error")
	}
}

func TestValidateDatabaseConfig(t *testing.T) {
	cases := []struct {
		name string
		db   DatabaseConfig
		ok   bool
	}{
		{"postgres fields", DatabaseConfig{Driver: "postgres", Host: "h", Name: "n", Port: 5432, Table: "drinks"}, true},
		{"postgres dsn", DatabaseConfig{Driver: "postgres", DSN: "postgres://u@h/db", Table: "drinks"}, true},
		{"postgres missing host", DatabaseConfig{Driver: "postgres", Name: "n", Port: 5432, Table: "drinks"}, false},
		{"postgres bad port", DatabaseConfig{Driver: "postgres", Host: "h", Name: "n", Port: 70000, Table: "drinks"}, false},
		{"sqlite no dsn", DatabaseConfig{Driver: "sqlite", Table: "drinks"}, false},
		{"unknown driver", DatabaseConfig{Driver: "mysql", DSN: "x", Table: "drinks"}, false},
		{"injected table", DatabaseConfig{Driver: "sqlite", DSN: "x", Table: "drinks; DROP"}, false},
		{"leading digit table", DatabaseConfig{Driver: "sqlite", DSN: "x", Table: "1drinks"}, false},
	}
	for _, tc := range cases {
		err := ValidateDatabaseConfig(tc.db)
		if tc.ok && err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}

func TestWriteTemplateCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "etc", "client.toml")
	if err := WriteTemplate(path, "client", false); err != nil {
		t.Fatalf("write template: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("template not written: %v", err)
	}
}
