package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefault(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Version != Version {
		t.Errorf("expected version %s, got %s", Version, cfg.Version)
	}
	if cfg.Store.Driver != "badger" {
		t.Errorf("expected badger driver, got %s", cfg.Store.Driver)
	}
	if cfg.Simulation.TickInterval != time.Second || cfg.Simulation.SyncInterval != 2*time.Second {
		t.Errorf("unexpected intervals %v %v", cfg.Simulation.TickInterval, cfg.Simulation.SyncInterval)
	}
	if cfg.Simulation.TargetMin != 50 || cfg.Simulation.TargetMax != 199 {
		t.Errorf("unexpected target range %d..%d", cfg.Simulation.TargetMin, cfg.Simulation.TargetMax)
	}
	if cfg.Events.Driver != "none" {
		t.Errorf("expected events driver none, got %s", cfg.Events.Driver)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prodmon.yaml")
	body := `
server:
  http_addr: ":9999"
simulation:
  tick_interval: 500ms
  machines: 4
events:
  driver: kafka
  kafka_brokers: ["k1:9092", "k2:9092"]
auth:
  users:
    - email: lead@example.com
      password: secret
      role: leader
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.HTTPAddr != ":9999" {
		t.Errorf("expected :9999 got %s", cfg.Server.HTTPAddr)
	}
	if cfg.Server.GRPCAddr != ":50051" {
		t.Errorf("defaults should survive partial files, got %s", cfg.Server.GRPCAddr)
	}
	if cfg.Simulation.TickInterval != 500*time.Millisecond || cfg.Simulation.Machines != 4 {
		t.Errorf("unexpected simulation %+v", cfg.Simulation)
	}
	if len(cfg.Events.KafkaBrokers) != 2 {
		t.Errorf("expected 2 brokers got %v", cfg.Events.KafkaBrokers)
	}
	if len(cfg.Auth.Users) != 1 || cfg.Auth.Users[0].Role != "leader" {
		t.Errorf("unexpected users %+v", cfg.Auth.Users)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing explicit file")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PRODMON_HTTP_ADDR", ":7070")
	t.Setenv("PRODMON_STORE_DRIVER", "redis")
	t.Setenv("PRODMON_REDIS_ADDR", "redis:6379")
	t.Setenv("PRODMON_EVENTS_DRIVER", "nats")
	t.Setenv("PRODMON_KAFKA_BROKERS", "a:1, b:2")
	t.Setenv("PRODMON_TRACING_ENABLED", "true")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.HTTPAddr != ":7070" || cfg.Store.Driver != "redis" || cfg.Store.Redis.Addr != "redis:6379" {
		t.Errorf("env not applied: %+v %+v", cfg.Server, cfg.Store)
	}
	if cfg.Events.Driver != "nats" || !cfg.Tracing.Enabled {
		t.Errorf("env not applied: %+v %+v", cfg.Events, cfg.Tracing)
	}
	if strings.Join(cfg.Events.KafkaBrokers, ",") != "a:1,b:2" {
		t.Errorf("unexpected brokers %v", cfg.Events.KafkaBrokers)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Store.Driver = "sqlite"
	cfg.Simulation.TargetMin = 0
	cfg.Events.Driver = "kafka"
	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation errors")
	}
	for _, want := range []string{"sqlite", "target range", "kafka_brokers"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in %v", want, err)
		}
	}
}

func TestShippedDefaultConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "default.yaml"))
	if err != nil {
		t.Fatalf("shipped config does not load: %v", err)
	}
	if len(cfg.Auth.Users) != 3 || !cfg.Seed.Enabled {
		t.Errorf("unexpected shipped config %+v", cfg.Auth)
	}
}
