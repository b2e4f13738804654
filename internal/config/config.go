// Package config assembles the service settings from an optional YAML file and the
// process environment. Environment values win.
package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/alanchaparro/bi-sub000/internal/env"
)

type Config struct {
	Addr     string                `yaml:"addr"`
	LogLevel string                `yaml:"log_level"`
	DB       DBConfig              `yaml:"db"`
	Sync     SyncConfig            `yaml:"sync"`
	Persist  PersistConfig         `yaml:"persist"`
	Views    map[string]ViewConfig `yaml:"views"`
}

type DBConfig struct {
	// Addr empty means no database: snapshots and history stay in memory.
	Addr         string `yaml:"addr"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
	MaxIdleTime  string `yaml:"max_idle_time"`
}

type SyncConfig struct {
	Dir         string `yaml:"dir"`
	Schedule    string `yaml:"schedule"`
	TimeZone    string `yaml:"time_zone"`
	Concurrency int    `yaml:"concurrency"`
}

type PersistConfig struct {
	MaxRows int `yaml:"max_rows"`
	// Quota bounds the in-memory store in bytes when no database is configured.
	Quota int `yaml:"quota"`
}

type ViewConfig struct {
	RemoteURL string `yaml:"remote_url"`
	Enabled   bool   `yaml:"enabled"`
}

func Default() Config {
	return Config{
		Addr:     ":8080",
		LogLevel: "INFO",
		DB: DBConfig{
			MaxOpenConns: 25,
			MaxIdleConns: 25,
			MaxIdleTime:  "15m",
		},
		Sync: SyncConfig{
			TimeZone:    "America/Asuncion",
			Concurrency: 4,
		},
		Persist: PersistConfig{MaxRows: 250000},
		Views:   map[string]ViewConfig{},
	}
}

// Load reads path when non-empty and then applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		if cfg.Views == nil {
			cfg.Views = map[string]ViewConfig{}
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Addr = env.GetString("ADDR", c.Addr)
	c.LogLevel = env.GetString("LOG_LEVEL", c.LogLevel)

	c.DB.Addr = env.GetString("DB_ADDR", c.DB.Addr)
	c.DB.MaxOpenConns = env.GetInt("DB_MAX_OPEN_CONNS", c.DB.MaxOpenConns)
	c.DB.MaxIdleConns = env.GetInt("DB_MAX_IDLE_CONNS", c.DB.MaxIdleConns)
	c.DB.MaxIdleTime = env.GetString("DB_MAX_IDLE_TIME", c.DB.MaxIdleTime)

	c.Sync.Dir = env.GetString("SYNC_DIR", c.Sync.Dir)
	c.Sync.Schedule = env.GetString("SYNC_SCHEDULE", c.Sync.Schedule)
	c.Sync.TimeZone = env.GetString("SYNC_TIME_ZONE", c.Sync.TimeZone)
	c.Sync.Concurrency = env.GetInt("SYNC_CONCURRENCY", c.Sync.Concurrency)

	c.Persist.MaxRows = env.GetInt("PERSIST_MAX_ROWS", c.Persist.MaxRows)
	c.Persist.Quota = env.GetInt("PERSIST_QUOTA", c.Persist.Quota)

	// REMOTE_<VIEW>_URL enables a remote calculator for that view.
	for _, kv := range os.Environ() {
		key, val, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, "REMOTE_") || !strings.HasSuffix(key, "_URL") {
			continue
		}
		name := strings.ToLower(strings.TrimSuffix(strings.TrimPrefix(key, "REMOTE_"), "_URL"))
		if name == "" {
			continue
		}
		c.Views[name] = ViewConfig{RemoteURL: val, Enabled: val != ""}
	}
}

// Remotes returns the enabled remote calculator URLs keyed by view name.
func (c Config) Remotes() map[string]string {
	out := make(map[string]string)
	for name, v := range c.Views {
		if v.Enabled && v.RemoteURL != "" {
			out[name] = v.RemoteURL
		}
	}
	return out
}

// RemoteViews lists the views with an enabled remote, sorted.
func (c Config) RemoteViews() []string {
	names := make([]string, 0, len(c.Views))
	for name := range c.Remotes() {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
