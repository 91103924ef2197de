// Package config loads server settings from defaults, an optional YAML file,
// a .env file and the environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Events   EventsConfig   `yaml:"events"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Addr    string `yaml:"addr"`
	GinMode string `yaml:"gin_mode"` // debug, release, test
}

type DatabaseConfig struct {
	// URI is a mongodb:// URI or a SQLite file path.
	URI           string `yaml:"uri"`
	MongoDatabase string `yaml:"mongo_database"`
}

type AuthConfig struct {
	Secret string `yaml:"secret"`
	// TokenTTL is a Go duration; empty or "0" issues tokens without expiry.
	TokenTTL string `yaml:"token_ttl"`
	// SharedPassword lets users without a stored hash log in. Empty disables it.
	SharedPassword string `yaml:"shared_password"`
}

type EventsConfig struct {
	AMQPURL  string `yaml:"amqp_url"`
	Exchange string `yaml:"exchange"`
	// UDPAddr enables the datagram notifier, e.g. ":7070".
	UDPAddr string `yaml:"udp_addr"`
}

type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

func Default() Config {
	return Config{
		Server:   ServerConfig{Addr: ":4000", GinMode: "release"},
		Database: DatabaseConfig{URI: "./data/library.db", MongoDatabase: "library"},
		Auth:     AuthConfig{SharedPassword: "secret"},
		Events:   EventsConfig{Exchange: "books"},
		Logging:  LoggingConfig{Level: "info"},
	}
}

// Load starts from Default, overlays the YAML file at path when path is not
// empty, then applies the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.ApplyEnv()
	return cfg, nil
}

// LoadDotEnv reads .env style files into the process environment without
// overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

func (c *Config) ApplyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Addr = ":" + v
	}
	setFromEnv(&c.Server.Addr, "BOOKGRAPH_ADDR")
	setFromEnv(&c.Server.GinMode, "GIN_MODE")
	setFromEnv(&c.Database.URI, "DATABASE_URI")
	setFromEnv(&c.Database.URI, "MONGODB_URI")
	setFromEnv(&c.Database.MongoDatabase, "MONGODB_DATABASE")
	setFromEnv(&c.Auth.Secret, "SECRET")
	setFromEnv(&c.Auth.TokenTTL, "TOKEN_TTL")
	if v, ok := os.LookupEnv("SHARED_PASSWORD"); ok {
		c.Auth.SharedPassword = v
	}
	setFromEnv(&c.Events.AMQPURL, "AMQP_URL")
	setFromEnv(&c.Events.UDPAddr, "UDP_NOTIFY_ADDR")
	setFromEnv(&c.Logging.Level, "LOG_LEVEL")
}

func (c Config) Validate() error {
	if c.Auth.Secret == "" {
		return errors.New("auth.secret (SECRET) is required")
	}
	if c.Database.URI == "" {
		return errors.New("database.uri is required")
	}
	if _, err := c.TokenTTL(); err != nil {
		return err
	}
	return nil
}

func (c Config) TokenTTL() (time.Duration, error) {
	if c.Auth.TokenTTL == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Auth.TokenTTL)
	if err != nil {
		return 0, fmt.Errorf("auth.token_ttl: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("auth.token_ttl must not be negative")
	}
	return d, nil
}

func setFromEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
