package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file consulted when TASKADMIN_CONFIG is unset.
const DefaultPath = "config.yml"

type ServerConfig struct {
	Port string `yaml:"port"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type TaskCenterConfig struct {
	URL            string `yaml:"url"`
	APIKey         string `yaml:"api_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	TaskCenter TaskCenterConfig `yaml:"task_center"`
}

func defaultConfig() *Config {
	return &Config{
		Server:     ServerConfig{Port: "8080"},
		TaskCenter: TaskCenterConfig{URL: "http://localhost:8000", TimeoutSeconds: 30},
	}
}

// Load reads the YAML config file, falling back to defaults when the file is
// absent. A .env file, if present, is loaded first so DB_* variables can fill
// in the database URL.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "load .env")
	}

	cfg := defaultConfig()
	if path == "" {
		path = os.Getenv("TASKADMIN_CONFIG")
	}
	if path == "" {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}
	return cfg, nil
}

// DatabaseURL returns the configured connection string, or one assembled from
// the DB_* environment variables when the config file does not set it.
func (c *Config) DatabaseURL() string {
	if c.Database.URL != "" {
		return c.Database.URL
	}
	username := os.Getenv("DB_USERNAME")
	password := os.Getenv("DB_PASSWORD")
	host := os.Getenv("DB_HOST")
	port := os.Getenv("DB_PORT")
	name := os.Getenv("DB_NAME")
	if username == "" || password == "" || host == "" || port == "" || name == "" {
		return ""
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		username, password, host, port, name)
}

// DispatchTimeout returns the bound applied to task center calls.
func (c *Config) DispatchTimeout() time.Duration {
	if c.TaskCenter.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TaskCenter.TimeoutSeconds) * time.Second
}
