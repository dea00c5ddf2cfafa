package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "cfg.yaml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoadConfig_Valid(t *testing.T) {
	p := writeConfig(t, `server:
  port: ":9000"
limits:
  max_upload_mb: 100
temp:
  max_age: 10m
timeouts:
  video_secs: 480
tools:
  ghostscript: /opt/gs/bin/gs
`)
	t.Setenv("CONFIG_PATH", p)
	cfg := LoadConfig()
	if cfg.Server.Port != ":9000" {
		t.Fatalf("unexpected port: %q", cfg.Server.Port)
	}
	if cfg.Limits.MaxUploadMB != 100 {
		t.Fatalf("unexpected upload limit: %d", cfg.Limits.MaxUploadMB)
	}
	if cfg.Temp.MaxAge.Std() != 10*time.Minute {
		t.Fatalf("unexpected temp max age: %v", cfg.Temp.MaxAge)
	}
	if cfg.Timeouts.VideoSecs != 480 {
		t.Fatalf("unexpected video timeout: %d", cfg.Timeouts.VideoSecs)
	}
	if cfg.Tools.Ghostscript != "/opt/gs/bin/gs" {
		t.Fatalf("unexpected gs path: %q", cfg.Tools.Ghostscript)
	}
}

func TestLoadConfig_DefaultsWhenFileMissing(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "nope.yaml"))
	cfg := LoadConfig()
	if cfg.Limits.MaxUploadMB != 500 {
		t.Fatalf("expected 500MB default upload cap, got %d", cfg.Limits.MaxUploadMB)
	}
	if cfg.Temp.MaxAge.Std() != 30*time.Minute {
		t.Fatalf("expected 30m temp max age, got %v", cfg.Temp.MaxAge)
	}
	if cfg.Timeouts.DocumentSecs != 120 || cfg.Timeouts.VideoSecs != 600 {
		t.Fatalf("unexpected timeout defaults: %+v", cfg.Timeouts)
	}
}

func TestLoadConfig_PanicsOnMalformedYAML(t *testing.T) {
	p := writeConfig(t, "server: [not a mapping")
	t.Setenv("CONFIG_PATH", p)
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on malformed yaml")
		}
	}()
	_ = LoadConfig()
}
