package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/claude/trainplan/internal/planner"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	Planner   PlannerConfig   `yaml:"planner"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig points at PostgreSQL. With InMemory set the server keeps
// the plan in process and the connection fields are not required.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
	InMemory bool   `yaml:"in_memory"`
}

type AuthConfig struct {
	APIKey string `yaml:"api_key"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

type PlannerConfig struct {
	TrailingRest string `yaml:"trailing_rest"`
}

// Options returns the planner options. Call after Load validated the config.
func (p PlannerConfig) Options() planner.Options {
	policy, _ := planner.ParseTrailingRest(p.TrailingRest)
	return planner.Options{TrailingRest: policy}
}

// DSN returns a PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslmode)
}

// Load reads config from a YAML file, then applies environment variable overrides.
// Env vars use the prefix TRAINPLAN_ and underscore-separated paths:
//
//	TRAINPLAN_SERVER_HOST, TRAINPLAN_SERVER_PORT,
//	TRAINPLAN_DB_HOST, TRAINPLAN_DB_PORT, TRAINPLAN_DB_NAME,
//	TRAINPLAN_DB_USER, TRAINPLAN_DB_PASSWORD, TRAINPLAN_DB_SSLMODE,
//	TRAINPLAN_DB_IN_MEMORY, TRAINPLAN_AUTH_API_KEY,
//	TRAINPLAN_TAILSCALE_ENABLED, TRAINPLAN_TAILSCALE_HOSTNAME,
//	TRAINPLAN_TAILSCALE_STATE_DIR, TRAINPLAN_PLANNER_TRAILING_REST
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TRAINPLAN_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("TRAINPLAN_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("TRAINPLAN_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("TRAINPLAN_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("TRAINPLAN_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("TRAINPLAN_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("TRAINPLAN_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("TRAINPLAN_DB_SSLMODE"); v != "" {
		cfg.Database.SSLMode = v
	}
	if v := os.Getenv("TRAINPLAN_DB_IN_MEMORY"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Database.InMemory = b
		}
	}
	if v := os.Getenv("TRAINPLAN_AUTH_API_KEY"); v != "" {
		cfg.Auth.APIKey = v
	}
	if v := os.Getenv("TRAINPLAN_TAILSCALE_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Tailscale.Enabled = b
		}
	}
	if v := os.Getenv("TRAINPLAN_TAILSCALE_HOSTNAME"); v != "" {
		cfg.Tailscale.Hostname = v
	}
	if v := os.Getenv("TRAINPLAN_TAILSCALE_STATE_DIR"); v != "" {
		cfg.Tailscale.StateDir = v
	}
	if v := os.Getenv("TRAINPLAN_PLANNER_TRAILING_REST"); v != "" {
		cfg.Planner.TrailingRest = v
	}
}

func (c *Config) applyDefaults() {
	if c.Tailscale.Hostname == "" {
		c.Tailscale.Hostname = "trainplan"
	}
	if c.Planner.TrailingRest == "" {
		c.Planner.TrailingRest = string(planner.TrailingRestKeep)
	}
}

func (c *Config) validate() error {
	if c.Server.Port == 0 && !c.Tailscale.Enabled {
		return errors.New("server.port is required")
	}
	if !c.Database.InMemory {
		if c.Database.Host == "" {
			return errors.New("database.host is required")
		}
		if c.Database.Port == 0 {
			return errors.New("database.port is required")
		}
		if c.Database.Name == "" {
			return errors.New("database.name is required")
		}
		if c.Database.User == "" {
			return errors.New("database.user is required")
		}
	}
	if c.Auth.APIKey == "" {
		return errors.New("auth.api_key is required")
	}
	if c.Tailscale.Enabled && c.Tailscale.StateDir == "" {
		return errors.New("tailscale.state_dir is required when tailscale is enabled")
	}
	if _, err := planner.ParseTrailingRest(c.Planner.TrailingRest); err != nil {
		return fmt.Errorf("planner.trailing_rest: %w", err)
	}
	return nil
}
