package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "engine.yaml")
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadEngineConfig(t *testing.T) {
	path := writeConfig(t, `
version: 1
engine:
  tick_rate: 60
  scene: scenes/show.yaml
network:
  api_port: 9090
  mqtt_url: tcp://broker:1883
store:
  driver: sqlite
  dsn: /var/lib/sentient/fx.db
sources:
  - id: sensors
    topic: room/sensors/#
    path: sensors
    stale_after: 5s
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.TickRate() != 60 {
		t.Errorf("expected tick rate 60, got %d", cfg.TickRate())
	}
	if cfg.APIPort() != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.APIPort())
	}
	if cfg.Engine.Scene != "scenes/show.yaml" {
		t.Errorf("unexpected scene %q", cfg.Engine.Scene)
	}
	if len(cfg.Sources) != 1 {
		t.Fatalf("expected 1 source, got %d", len(cfg.Sources))
	}
	if d, _ := cfg.Sources[0].Stale(); d != 5*time.Second {
		t.Errorf("expected 5s stale_after, got %s", d)
	}
}

func TestLoadEngineConfig_Version(t *testing.T) {
	_, err := LoadEngineConfig(writeConfig(t, "version: 2\n"))
	if err == nil || !strings.Contains(err.Error(), "unsupported engine.yaml version") {
		t.Errorf("expected version error, got %v", err)
	}
}

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.TickRate() != 30 {
		t.Errorf("expected default tick rate 30, got %d", cfg.TickRate())
	}
	if cfg.APIPort() != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.APIPort())
	}
	if d, _ := (SourceConfig{ID: "x"}).Stale(); d != 30*time.Second {
		t.Errorf("expected default stale_after 30s, got %s", d)
	}
}

func TestTickRateClamped(t *testing.T) {
	cfg := Default()
	cfg.Engine.TickRate = 1000
	if cfg.TickRate() != 240 {
		t.Errorf("expected 240, got %d", cfg.TickRate())
	}
	cfg.Engine.TickRate = -3
	if cfg.TickRate() != 1 {
		t.Errorf("expected 1, got %d", cfg.TickRate())
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "version: 1\nengine:\n  tick_rate: 60\n")
	t.Setenv("SENTIENT_TICK_RATE", "25")
	t.Setenv("SENTIENT_API_PORT", "7000")
	t.Setenv("SENTIENT_STORE_DRIVER", "postgres")
	t.Setenv("MQTT_URL", "tcp://localhost:1883")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.TickRate() != 25 {
		t.Errorf("expected env tick rate 25, got %d", cfg.TickRate())
	}
	if cfg.APIPort() != 7000 {
		t.Errorf("expected env port 7000, got %d", cfg.APIPort())
	}
	if cfg.Store.Driver != "postgres" || cfg.Network.MQTTURL != "tcp://localhost:1883" {
		t.Errorf("env overrides not applied: %+v", cfg)
	}
}

func TestEnvParseError(t *testing.T) {
	t.Setenv("SENTIENT_TICK_RATE", "fast")
	_, err := Load("")
	if err == nil || !strings.Contains(err.Error(), "parse env:") {
		t.Errorf("expected parse env error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Store.Driver = "mongo"
	if err := cfg.Validate(); err == nil {
		t.Error("expected unsupported driver error")
	}

	cfg = Default()
	cfg.Sources = []SourceConfig{{ID: "a", Topic: "t"}, {ID: "a", Topic: "u"}}
	if err := cfg.Validate(); err == nil {
		t.Error("expected duplicate source error")
	}

	cfg = Default()
	cfg.Sources = []SourceConfig{{ID: "a", Topic: "t", StaleAfter: "-1s"}}
	if err := cfg.Validate(); err == nil {
		t.Error("expected stale_after error")
	}
}

func TestStoreDSN(t *testing.T) {
	t.Setenv("PGHOST", "db")
	t.Setenv("PGPASSWORD", "s3cret")

	cfg := Default()
	cfg.Store.Driver = "postgres"
	dsn, err := cfg.StoreDSN()
	if err != nil {
		t.Fatalf("dsn: %v", err)
	}
	if !strings.Contains(dsn, "host=db") || !strings.Contains(dsn, "password=s3cret") {
		t.Errorf("unexpected dsn %q", dsn)
	}

	cfg.Store.Driver = "sqlite"
	if dsn, _ := cfg.StoreDSN(); dsn != "sentient.db" {
		t.Errorf("expected default sqlite file, got %q", dsn)
	}
}
