package config

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func waitConfig(t *testing.T, ch <-chan *Config) *Config {
	t.Helper()
	select {
	case cfg := <-ch:
		return cfg
	case <-time.After(5 * time.Second):
		t.Fatal("no reload observed")
		return nil
	}
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(`listen_addr = "127.0.0.1:8080"`), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	reloads := make(chan *Config, 4)
	w, err := NewWatcher(path, func(cfg *Config) { reloads <- cfg }, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("NewWatcher() failed: %v", err)
	}
	w.Start()
	defer w.Stop()

	if err := os.WriteFile(path, []byte(`listen_addr = "0.0.0.0:9191"`), 0644); err != nil {
		t.Fatalf("failed to rewrite config: %v", err)
	}

	cfg := waitConfig(t, reloads)
	if cfg.ListenAddr != "0.0.0.0:9191" {
		t.Errorf("reloaded listen_addr = %q", cfg.ListenAddr)
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(`listen_addr = "127.0.0.1:8080"`), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	reloads := make(chan *Config, 4)
	w, err := NewWatcher(path, func(cfg *Config) { reloads <- cfg }, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("NewWatcher() failed: %v", err)
	}
	w.Start()
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(dir, "other.txt"), []byte("noise"), 0644); err != nil {
		t.Fatalf("failed to write other file: %v", err)
	}

	select {
	case <-reloads:
		t.Error("unrelated file triggered a reload")
	case <-time.After(600 * time.Millisecond):
	}
}

func TestWatcher_BadRewriteKeepsPreviousConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(`listen_addr = "127.0.0.1:8080"`), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	reloads := make(chan *Config, 4)
	w, err := NewWatcher(path, func(cfg *Config) { reloads <- cfg }, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("NewWatcher() failed: %v", err)
	}
	w.Start()
	defer w.Stop()

	if err := os.WriteFile(path, []byte(`listen_addr = [broken`), 0644); err != nil {
		t.Fatalf("failed to rewrite config: %v", err)
	}

	// The failed reload is logged, not delivered.
	select {
	case cfg := <-reloads:
		t.Errorf("broken config was delivered: %+v", cfg)
	case <-time.After(600 * time.Millisecond):
	}
}
