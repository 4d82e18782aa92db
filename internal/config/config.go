package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
)

// Config is the top-level configuration structure.
type Config struct {
	Server        ServerConfig   `json:"server"`
	Agent         AgentConfig    `json:"agent"`
	Database      DatabaseConfig `json:"database"`
	MCP           MCPConfig      `json:"mcp"`
	Planner       PlannerConfig  `json:"planner"`
	Worker        WorkerConfig   `json:"worker"`
	MigrationsDir string         `json:"migrations_dir"`
}

type ServerConfig struct {
	Port     int    `json:"port"`
	LogLevel string `json:"log_level"`
}

type AgentConfig struct {
	ID        string `json:"id"`
	Niche     string `json:"niche"`
	PersonaID string `json:"persona_id"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `json:"postgres"`
	Redis    RedisConfig    `json:"redis"`
}

type PostgresConfig struct {
	DSN string `json:"dsn"`
}

type RedisConfig struct {
	URL string `json:"url"`
}

type MCPConfig struct {
	Servers []MCPServerConfig `json:"servers"`
}

type MCPServerConfig struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

type PlannerConfig struct {
	DailyBudgetUSD float64 `json:"daily_budget_usd"`
	QueueCapacity  int64   `json:"queue_capacity"`
}

type WorkerConfig struct {
	Count          int `json:"count"`
	TimeoutSeconds int `json:"timeout_seconds"`
	PollIntervalMS int `json:"poll_interval_ms"`
}

// envVarRe matches ${VAR} and ${VAR:default} patterns.
var envVarRe = regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

// Load reads a JSON config file and substitutes environment variable references.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	// Substitute ${VAR} and ${VAR:default} with environment values.
	resolved := envVarRe.ReplaceAllStringFunc(string(data), func(match string) string {
		parts := envVarRe.FindStringSubmatch(match)
		name := parts[1]
		defaultVal := parts[2]
		if v := os.Getenv(name); v != "" {
			return v
		}
		return defaultVal
	})

	var cfg Config
	if err := json.Unmarshal([]byte(resolved), &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Agent.ID == "" {
		c.Agent.ID = "agent-1"
	}
	if c.Planner.DailyBudgetUSD == 0 {
		c.Planner.DailyBudgetUSD = 10.0
	}
	if c.Planner.QueueCapacity == 0 {
		c.Planner.QueueCapacity = 100
	}
	if c.Worker.Count == 0 {
		c.Worker.Count = 4
	}
	if c.Worker.TimeoutSeconds == 0 {
		c.Worker.TimeoutSeconds = 60
	}
	if c.Worker.PollIntervalMS == 0 {
		c.Worker.PollIntervalMS = 500
	}
	if c.MigrationsDir == "" {
		c.MigrationsDir = "migrations"
	}
}
