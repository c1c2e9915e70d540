package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "cfg.yaml", `
addr: ":9090"
state_dir: /tmp/state
cache_dir: /tmp/cache
auto_restore: true
log_level: debug
extra_models:
  - id: tiny-test
    display_name: Tiny Test
    size_bytes_approx: 1000
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":9090" || cfg.StateDir != "/tmp/state" || !cfg.AutoRestore {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if len(cfg.ExtraModels) != 1 || cfg.ExtraModels[0].ID != "tiny-test" {
		t.Fatalf("extra models not parsed: %+v", cfg.ExtraModels)
	}
}

func TestLoadJSON(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "cfg.json", `{"addr":":7070","cache_dir":"/c","cors_enabled":true,"cors_origins":["http://localhost:5173"]}`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":7070" || cfg.CacheDir != "/c" || !cfg.CORSEnabled {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadTOML(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "cfg.toml", "addr = \":6060\"\nlog_level = \"info\"\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":6060" || cfg.LogLevel != "info" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
	if _, err := Load("/nonexistent/cfg.yaml"); err == nil {
		t.Fatalf("expected error for missing file")
	}
	dir := t.TempDir()
	p := writeFile(t, dir, "cfg.ini", "addr=:1\n")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected error for unsupported extension")
	}
	bad := writeFile(t, dir, "bad.yaml", ":\n\t-")
	if _, err := Load(bad); err == nil {
		t.Fatalf("expected error for invalid yaml")
	}
}
