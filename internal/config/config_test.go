package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"GOD_AGENT_HOME", "GOD_AGENT_SOCKET", "GOD_AGENT_VECTOR_DIM",
		"GOD_AGENT_LOG_LEVEL", "GOD_AGENT_LOG_FORMAT",
	} {
		os.Unsetenv(k)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()
	os.Setenv("GOD_AGENT_HOME", home)
	defer clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.VectorDim != 1536 {
		t.Errorf("expected default vector dim 1536, got %d", cfg.VectorDim)
	}
	if cfg.SocketPath != filepath.Join(home, "daemon.sock") {
		t.Errorf("expected default socket under home, got %s", cfg.SocketPath)
	}
	if cfg.Compression.Alpha != 0.6 {
		t.Errorf("expected default compression alpha 0.6, got %v", cfg.Compression.Alpha)
	}
	if cfg.Daemon.MaxConnections != 64 {
		t.Errorf("expected default max connections 64, got %d", cfg.Daemon.MaxConnections)
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()
	os.Setenv("GOD_AGENT_HOME", home)
	os.Setenv("GOD_AGENT_VECTOR_DIM", "768")
	os.Setenv("GOD_AGENT_SOCKET", "/tmp/custom.sock")
	defer clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.VectorDim != 768 {
		t.Errorf("expected vector dim 768, got %d", cfg.VectorDim)
	}
	if cfg.SocketPath != "/tmp/custom.sock" {
		t.Errorf("expected overridden socket path, got %s", cfg.SocketPath)
	}
}

func TestLoad_InvalidVectorDimFallsBackToDefault(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()
	os.Setenv("GOD_AGENT_HOME", home)
	os.Setenv("GOD_AGENT_VECTOR_DIM", "not-a-number")
	defer clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.VectorDim != 1536 {
		t.Errorf("expected fallback to default dim, got %d", cfg.VectorDim)
	}
}

func TestLoad_YAMLFileLayersTunablesOverDefaults(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()
	os.Setenv("GOD_AGENT_HOME", home)
	defer clearEnv(t)

	yamlBody := "breaker:\n  threshold: 7\n  reset_timeout_ms: 9000\nlog_level: debug\n"
	if err := os.WriteFile(filepath.Join(home, "config.yaml"), []byte(yamlBody), 0o644); err != nil {
		t.Fatalf("write config.yaml: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Breaker.Threshold != 7 {
		t.Errorf("expected breaker threshold 7 from file, got %d", cfg.Breaker.Threshold)
	}
	if cfg.Breaker.ResetTimeoutMs != 9000 {
		t.Errorf("expected reset timeout 9000 from file, got %d", cfg.Breaker.ResetTimeoutMs)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected log level debug from file, got %s", cfg.LogLevel)
	}
	// VectorDim and Home are structural and must be untouched by the file layer.
	if cfg.VectorDim != 1536 {
		t.Errorf("yaml file must not alter structural vector dim, got %d", cfg.VectorDim)
	}
}

func TestLoad_MissingYAMLFileIsNotAnError(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()
	os.Setenv("GOD_AGENT_HOME", home)
	defer clearEnv(t)

	if _, err := Load(); err != nil {
		t.Fatalf("expected no error for a missing optional config file, got %v", err)
	}
}

func TestWatcher_ReloadsTunablesOnFileChange(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()
	os.Setenv("GOD_AGENT_HOME", home)
	defer clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	changed := make(chan *Config, 1)
	w, err := WatchFile(cfg, func(next *Config) {
		select {
		case changed <- next:
		default:
		}
	})
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	defer w.Close()

	yamlBody := "breaker:\n  threshold: 9\n"
	if err := os.WriteFile(filepath.Join(home, "config.yaml"), []byte(yamlBody), 0o644); err != nil {
		t.Fatalf("write config.yaml: %v", err)
	}

	select {
	case next := <-changed:
		if next.Breaker.Threshold != 9 {
			t.Errorf("expected reloaded breaker threshold 9, got %d", next.Breaker.Threshold)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for config reload notification")
	}
}
