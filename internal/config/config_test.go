package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "vncd.yml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("writing test config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfigFile(t, "listen_addr: \"0.0.0.0:5900\"\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != defaultLogLevel {
		t.Fatalf("got log level %q, want %q", cfg.LogLevel, defaultLogLevel)
	}
	if cfg.LogFormat != defaultLogFormat {
		t.Fatalf("got log format %q, want %q", cfg.LogFormat, defaultLogFormat)
	}
}

func TestLoadRejectsMissingListenAddr(t *testing.T) {
	path := writeConfigFile(t, "log_level: debug\n")

	if _, err := Load(path); err == nil {
		t.Fatal("expected missing listen_addr to be rejected")
	}
}

func TestLoadPreservesExplicitOptionalFields(t *testing.T) {
	path := writeConfigFile(t, ""+
		"listen_addr: \"127.0.0.1:5901\"\n"+
		"websocket_listen_addr: \"127.0.0.1:5902\"\n"+
		"migration_state_path: \"/var/lib/vncd/state.bin\"\n"+
		"log_level: debug\n"+
		"log_format: json\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.WebSocketListenAddr != "127.0.0.1:5902" {
		t.Fatalf("got %q", cfg.WebSocketListenAddr)
	}
	if cfg.MigrationStatePath != "/var/lib/vncd/state.bin" {
		t.Fatalf("got %q", cfg.MigrationStatePath)
	}
	if cfg.LogLevel != "debug" || cfg.LogFormat != "json" {
		t.Fatalf("got level=%q format=%q", cfg.LogLevel, cfg.LogFormat)
	}
}

func TestLoadRejectsMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yml")); err == nil {
		t.Fatal("expected missing file to be rejected")
	}
}
