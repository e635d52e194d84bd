package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadJSON(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.json", `{
		"server": {"addr": ":8000"},
		"sessions": {"dir": "./cookies"},
		"stage": {},
		"bridge": {"base_url": "http://127.0.0.1:8500"},
		"logging": {"level": "debug", "console": true, "file": {"enabled": false, "path": ""}, "operator": {"enabled": false, "min_level": "", "rate_per_sec": 0}},
		"watcher": {"enabled": true, "spec": "*/5 * * * *", "max_age": "12h"},
		"escalate": {"dedup_window": "1h", "rate_per_minute": 3}
	}`)

	m := NewManager(path)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Bridge.BaseURL != "http://127.0.0.1:8500" {
		t.Fatalf("bridge.base_url = %q", cfg.Bridge.BaseURL)
	}
	if !cfg.Watcher.Enabled || cfg.Watcher.Spec != "*/5 * * * *" {
		t.Fatalf("watcher = %+v", cfg.Watcher)
	}
	if got := m.Get(); got != cfg {
		t.Fatal("Get should return the committed snapshot")
	}
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.yaml", `
server:
  addr: ":8000"
sessions:
  dir: ./cookies
stage: {}
bridge:
  base_url: http://sidecar:8500
logging:
  level: info
  console: true
  file:
    enabled: true
    path: ./autopub.log
  operator:
    enabled: true
    min_level: warn
    rate_per_sec: 1
watcher:
  enabled: false
escalate: {}
storage:
  driver: sqlite
  path: ./autopub.db
  busy_timeout: 2s
`)

	cfg, err := NewManager(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.File.Path != "./autopub.log" {
		t.Fatalf("logging.file.path = %q", cfg.Logging.File.Path)
	}
	if cfg.Storage == nil || cfg.Storage.Driver != "sqlite" {
		t.Fatalf("storage = %+v", cfg.Storage)
	}
}

func TestLoadRejectsUnknownField(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.json", `{"server": {"addr": ":8000", "portt": 9}}`)
	if _, err := NewManager(path).Load(); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestLoadRejectsTrailingData(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.json", `{"server": {"addr": ":8000"}}{"extra": 1}`)
	if _, err := NewManager(path).Load(); err == nil {
		t.Fatal("expected error for trailing data")
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw     string
		want    time.Duration
		wantErr bool
	}{
		{"", 0, false},
		{"10s", 10 * time.Second, false},
		{" 1m ", time.Minute, false},
		{"-5s", 0, true},
		{"fast", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseDurationField("x", tt.raw)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseDurationField(%q) err = %v, wantErr %v", tt.raw, err, tt.wantErr)
		}
		if err == nil && got != tt.want {
			t.Fatalf("ParseDurationField(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestParseDurationOrDefault(t *testing.T) {
	t.Parallel()
	got, err := ParseDurationOrDefault("x", "", 24*time.Hour)
	if err != nil || got != 24*time.Hour {
		t.Fatalf("got (%v, %v), want default", got, err)
	}
	got, err = ParseDurationOrDefault("x", "30m", 24*time.Hour)
	if err != nil || got != 30*time.Minute {
		t.Fatalf("got (%v, %v), want 30m", got, err)
	}
}

func TestSubscribePublishAndUnsubscribe(t *testing.T) {
	t.Parallel()
	m := NewManager("unused")
	ch := m.Subscribe(1)

	cfg := &Config{}
	m.publish(cfg)
	select {
	case got := <-ch:
		if got != cfg {
			t.Fatal("wrong config delivered")
		}
	default:
		t.Fatal("no config delivered")
	}

	// A full buffer is drained so the newest snapshot still lands.
	m.publish(&Config{})
	newest := &Config{}
	m.publish(newest)
	if got := <-ch; got != newest {
		t.Fatal("expected newest snapshot after drop")
	}

	m.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed after Unsubscribe")
	}
}
