package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const Version = "0.3.0"

// Config holds every setting of the server process.
type Config struct {
	Version string `yaml:"-"`

	Server     ServerConfig     `yaml:"server"`
	Store      StoreConfig      `yaml:"store"`
	Simulation SimulationConfig `yaml:"simulation"`
	Events     EventsConfig     `yaml:"events"`
	Auth       AuthConfig       `yaml:"auth"`
	Logging    LoggingConfig    `yaml:"logging"`
	Tracing    TracingConfig    `yaml:"tracing"`
	Seed       SeedConfig       `yaml:"seed"`
}

type ServerConfig struct {
	GRPCAddr    string `yaml:"grpc_addr"`
	HTTPAddr    string `yaml:"http_addr"`
	MetricsAddr string `yaml:"metrics_addr"`
}

type StoreConfig struct {
	Driver string      `yaml:"driver"` // "badger" | "redis"
	Path   string      `yaml:"path"`
	Redis  RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

type SimulationConfig struct {
	TickInterval  time.Duration `yaml:"tick_interval"`
	SyncInterval  time.Duration `yaml:"sync_interval"`
	ClockInterval time.Duration `yaml:"clock_interval"`
	Machines      int           `yaml:"machines"`
	TargetMin     int           `yaml:"target_min"`
	TargetMax     int           `yaml:"target_max"`
	ProduceChance float64       `yaml:"produce_chance"`
	MaxProduce    int           `yaml:"max_produce"`
	IdleAfter     time.Duration `yaml:"idle_after"`
	FailureChance float64       `yaml:"failure_chance"`
	HistoryLimit  int           `yaml:"history_limit"`
	ArchiveLimit  int           `yaml:"archive_limit"`
	Seed          uint64        `yaml:"seed"` // 0 picks a random seed
}

type EventsConfig struct {
	Driver       string   `yaml:"driver"` // "none" | "nats" | "kafka"
	NATSURL      string   `yaml:"nats_url"`
	KafkaBrokers []string `yaml:"kafka_brokers"`
	SubjectRoot  string   `yaml:"subject_root"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
	Users     []UserConfig  `yaml:"users"`
}

// UserConfig provisions an account at startup.
type UserConfig struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	Role     string `yaml:"role"`
	Name     string `yaml:"name"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type TracingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
}

type SeedConfig struct {
	Enabled bool `yaml:"enabled"`
	Days    int  `yaml:"days"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Version: Version,
		Server: ServerConfig{
			GRPCAddr:    ":50051",
			HTTPAddr:    ":8080",
			MetricsAddr: ":9090",
		},
		Store: StoreConfig{
			Driver: "badger",
			Path:   "./data/badger",
			Redis:  RedisConfig{Addr: "localhost:6379", Prefix: "prodmon:"},
		},
		Simulation: SimulationConfig{
			TickInterval:  time.Second,
			SyncInterval:  2 * time.Second,
			ClockInterval: time.Second,
			Machines:      10,
			TargetMin:     50,
			TargetMax:     199,
			ProduceChance: 0.6,
			MaxProduce:    10,
			IdleAfter:     15 * time.Second,
			FailureChance: 0.01,
			HistoryLimit:  12,
			ArchiveLimit:  200,
		},
		Events: EventsConfig{
			Driver:      "none",
			NATSURL:     "nats://localhost:4222",
			SubjectRoot: "prodmon",
		},
		Auth: AuthConfig{
			TokenTTL: 12 * time.Hour,
		},
		Logging: LoggingConfig{Level: "info", Format: "console"},
		Tracing: TracingConfig{ServiceName: "prodmon"},
		Seed:    SeedConfig{Days: 7},
	}
}

// Load reads the first config file found (explicit path first), then applies
// PRODMON_* environment overrides. Missing files are not an error unless the
// path was given explicitly.
func Load(path string) (*Config, error) {
	cfg := Default()

	candidates := []string{"prodmon.yaml", "prodmon.yml", filepath.Join("configs", "default.yaml")}
	if path != "" {
		candidates = []string{path}
	}
	for _, p := range candidates {
		data, err := os.ReadFile(p)
		if err != nil {
			if path != "" {
				return nil, fmt.Errorf("read config %s: %w", p, err)
			}
			continue
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", p, err)
		}
		break
	}

	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PRODMON_HTTP_ADDR"); v != "" {
		cfg.Server.HTTPAddr = v
	}
	if v := os.Getenv("PRODMON_GRPC_ADDR"); v != "" {
		cfg.Server.GRPCAddr = v
	}
	if v := os.Getenv("PRODMON_METRICS_ADDR"); v != "" {
		cfg.Server.MetricsAddr = v
	}
	if v := os.Getenv("PRODMON_STORE_DRIVER"); v != "" {
		cfg.Store.Driver = v
	}
	if v := os.Getenv("PRODMON_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("PRODMON_REDIS_ADDR"); v != "" {
		cfg.Store.Redis.Addr = v
	}
	if v := os.Getenv("PRODMON_REDIS_PASSWORD"); v != "" {
		cfg.Store.Redis.Password = v
	}
	if v := os.Getenv("PRODMON_EVENTS_DRIVER"); v != "" {
		cfg.Events.Driver = v
	}
	if v := os.Getenv("PRODMON_NATS_URL"); v != "" {
		cfg.Events.NATSURL = v
	}
	if v := os.Getenv("PRODMON_KAFKA_BROKERS"); v != "" {
		cfg.Events.KafkaBrokers = splitCSV(v)
	}
	if v := os.Getenv("PRODMON_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("PRODMON_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("PRODMON_TRACING_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Tracing.Enabled = enabled
		}
	}
	if v := os.Getenv("PRODMON_SEED_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Seed.Enabled = enabled
		}
	}
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks the values the server cannot run without.
func (c *Config) Validate() error {
	var errs []error
	switch c.Store.Driver {
	case "badger":
		if c.Store.Path == "" {
			errs = append(errs, errors.New("store.path required for badger"))
		}
	case "redis":
		if c.Store.Redis.Addr == "" {
			errs = append(errs, errors.New("store.redis.addr required for redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}

	switch c.Events.Driver {
	case "", "none":
	case "nats":
		if c.Events.NATSURL == "" {
			errs = append(errs, errors.New("events.nats_url required for nats"))
		}
	case "kafka":
		if len(c.Events.KafkaBrokers) == 0 {
			errs = append(errs, errors.New("events.kafka_brokers required for kafka"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown events driver %q", c.Events.Driver))
	}

	s := c.Simulation
	if s.TickInterval <= 0 || s.SyncInterval <= 0 || s.ClockInterval <= 0 {
		errs = append(errs, errors.New("simulation intervals must be positive"))
	}
	if s.TargetMin < 1 || s.TargetMax < s.TargetMin {
		errs = append(errs, fmt.Errorf("invalid target range [%d,%d]", s.TargetMin, s.TargetMax))
	}
	if s.ProduceChance < 0 || s.ProduceChance > 1 || s.FailureChance < 0 || s.FailureChance > 1 {
		errs = append(errs, errors.New("simulation chances must be within [0,1]"))
	}
	if s.Machines < 1 {
		errs = append(errs, errors.New("simulation.machines must be at least 1"))
	}

	for i, u := range c.Auth.Users {
		if u.Email == "" || u.Password == "" {
			errs = append(errs, fmt.Errorf("auth.users[%d]: email and password required", i))
		}
	}
	return errors.Join(errs...)
}
