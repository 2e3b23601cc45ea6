package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Template returns the starter config for kind: server or client.
func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "server":
		return serverTemplate, nil
	case "client":
		return clientTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

// WriteTemplate creates the parent directory when needed. An existing file is
// left alone unless overwrite is set.
func WriteTemplate(path, kind string, overwrite bool) error {
	body, err := Template(kind)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil && !overwrite {
		return fmt.Errorf("config already exists: %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir for %s: %w", path, err)
	}
	return os.WriteFile(path, []byte(body), 0o600)
}

const serverTemplate = `[server]
listen = "127.0.0.1:2348"
# ops_addr = "127.0.0.1:9348"

[barcode]
path = "/var/lib/barcodes"

[frame]
max_payload_bytes = 67108864

[logging]
level = "info"
format = "console"
`

const clientTemplate = `server = "127.0.0.1:2348"
timeout = "30s"

[database]
driver = "postgres"
host = "localhost"
port = 5432
name = "barcodes"
user = "barcodes"
password = ""
sslmode = "disable"
table = "drinks"
`
