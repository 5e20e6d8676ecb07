/*
Package config loads server and CLI configuration.

SOURCES (later wins):
  1. Defaults from the env-default tags below
  2. An optional YAML file (path from -config)
  3. HOURS_* environment variables

EXAMPLE FILE:
  server:
    host: 0.0.0.0
    port: 8080
  db:
    path: hours.db
  log:
    level: info
    format: json
  cors:
    origins: ["http://localhost:5173"]
  alerts:
    window: 24h
    trigger: "18:00"
  timezone: America/Sao_Paulo
*/
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Server   Server `yaml:"server"`
	DB       DB     `yaml:"db"`
	Log      Log    `yaml:"log"`
	CORS     CORS   `yaml:"cors"`
	Alerts   Alerts `yaml:"alerts"`
	Timezone string `yaml:"timezone" env:"HOURS_TIMEZONE" env-default:"UTC"`
}

type Server struct {
	Host string `yaml:"host" env:"HOURS_SERVER_HOST" env-default:"0.0.0.0"`
	Port int    `yaml:"port" env:"HOURS_SERVER_PORT" env-default:"8080"`
}

type DB struct {
	Path string `yaml:"path" env:"HOURS_DB_PATH" env-default:"hours.db"`
}

type Log struct {
	Level  string `yaml:"level" env:"HOURS_LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"HOURS_LOG_FORMAT" env-default:"json"`
}

type CORS struct {
	Origins []string `yaml:"origins" env:"HOURS_CORS_ORIGINS" env-separator:"," env-default:"http://localhost:5173,http://localhost:8080"`
}

type Alerts struct {
	// Window is how long a notification stays listed in the inbox.
	Window time.Duration `yaml:"window" env:"HOURS_ALERT_WINDOW" env-default:"24h"`
	// Trigger is the local HH:MM the external scheduler is expected to fire
	// at. hoursctl uses it when --at is omitted.
	Trigger string `yaml:"trigger" env:"HOURS_ALERT_TRIGGER" env-default:"18:00"`
}

// Load reads path when it exists, then the environment. An empty or missing
// path means environment and defaults only.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := cleanenv.ReadConfig(path, &cfg); err != nil {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
			return &cfg, cfg.validate()
		}
	}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	return &cfg, cfg.validate()
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Alerts.Window <= 0 {
		return fmt.Errorf("alert window must be positive, got %s", c.Alerts.Window)
	}
	if _, err := c.TriggerTime(); err != nil {
		return err
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Location is the timezone used for report periods and alert days.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// TriggerTime parses Alerts.Trigger as a clock time.
func (c *Config) TriggerTime() (time.Duration, error) {
	t, err := time.Parse("15:04", c.Alerts.Trigger)
	if err != nil {
		return 0, fmt.Errorf("invalid alert trigger %q (want HH:MM): %w", c.Alerts.Trigger, err)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// TriggerOn returns the trigger instant on day's local date.
func (c *Config) TriggerOn(day time.Time) (time.Time, error) {
	loc, err := c.Location()
	if err != nil {
		return time.Time{}, err
	}
	offset, err := c.TriggerTime()
	if err != nil {
		return time.Time{}, err
	}
	local := day.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc).Add(offset), nil
}
