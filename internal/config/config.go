// Package config loads server settings from defaults, an optional YAML file,
// the environment (including a .env file) and command-line flags, in that
// order of increasing precedence.
package config

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"
)

// Config holds every runtime setting
type Config struct {
	Port               int           `yaml:"port"`
	DBDriver           string        `yaml:"db_driver"`
	DBPath             string        `yaml:"db_path"`
	MongoURI           string        `yaml:"mongodb_uri"`
	MongoDatabase      string        `yaml:"mongodb_database"`
	RedisAddress       string        `yaml:"redis_address"`
	RedisPassword      string        `yaml:"redis_password"`
	RateLimitPerMinute int           `yaml:"rate_limit_per_minute"`
	AdminPassword      string        `yaml:"admin_password"`
	JWTSecret          string        `yaml:"jwt_secret"`
	PublicURL          string        `yaml:"public_url"`
	ElectionFeedURL    string        `yaml:"election_feed_url"`
	LogLevel           string        `yaml:"log_level"`
	LogFormat          string        `yaml:"log_format"`
	PollWatchInterval  time.Duration `yaml:"poll_watch_interval"`
}

// Default returns the built-in settings
func Default() *Config {
	return &Config{
		Port:               8081,
		DBDriver:           DriverSQLite,
		DBPath:             "voting.db",
		MongoDatabase:      "electionvote",
		RateLimitPerMinute: 30,
		PublicURL:          "http://localhost:8081",
		LogLevel:           "info",
		LogFormat:          "text",
		PollWatchInterval:  5 * time.Second,
	}
}

// Load parses args (without the program name) into a validated Config.
// The YAML file comes from -config or CONFIG_FILE; envFile names the dotenv
// file and may be missing.
func Load(args []string, envFile string, stderr io.Writer) (*Config, error) {
	cfg := Default()

	fs := flag.NewFlagSet("electionvote", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "YAML config file")
	port := fs.Int("port", cfg.Port, "HTTP server port")
	driver := fs.String("driver", cfg.DBDriver, "Storage driver (sqlite, mongo)")
	dbPath := fs.String("db", cfg.DBPath, "SQLite database path")
	adminPw := fs.String("adminpw", "", "Admin password (auto-generated if not set)")
	logLevel := fs.String("loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
	logFormat := fs.String("logformat", cfg.LogFormat, "Log format (text, json)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	path := *configPath
	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.Port = *port
		case "driver":
			cfg.DBDriver = *driver
		case "db":
			cfg.DBPath = *dbPath
		case "adminpw":
			cfg.AdminPassword = *adminPw
		case "loglevel":
			cfg.LogLevel = *logLevel
		case "logformat":
			cfg.LogFormat = *logFormat
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("DB_DRIVER", &c.DBDriver)
	str("DB_PATH", &c.DBPath)
	str("MONGODB_URI", &c.MongoURI)
	str("MONGODB_DATABASE", &c.MongoDatabase)
	str("REDIS_ADDRESS", &c.RedisAddress)
	str("REDIS_PASSWORD", &c.RedisPassword)
	str("ADMIN_PASSWORD", &c.AdminPassword)
	str("JWT_SECRET", &c.JWTSecret)
	str("PUBLIC_URL", &c.PublicURL)
	str("ELECTION_FEED_URL", &c.ElectionFeedURL)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FORMAT", &c.LogFormat)

	ints := []struct {
		key string
		dst *int
	}{
		{"PORT", &c.Port},
		{"RATE_LIMIT_PER_MINUTE", &c.RateLimitPerMinute},
	}
	for _, e := range ints {
		if v, ok := lookup(e.key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", e.key, err)
			}
			*e.dst = n
		}
	}

	if v, ok := lookup("POLL_WATCH_INTERVAL"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("POLL_WATCH_INTERVAL: %w", err)
		}
		c.PollWatchInterval = d
	}
	return nil
}

// Validate rejects settings the server cannot start with
func (c *Config) Validate() error {
	c.DBDriver = strings.ToLower(strings.TrimSpace(c.DBDriver))
	switch c.DBDriver {
	case DriverSQLite:
		if c.DBPath == "" {
			return fmt.Errorf("db path is required for the sqlite driver")
		}
	case DriverMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGODB_URI is required for the mongo driver")
		}
		if c.MongoDatabase == "" {
			return fmt.Errorf("MONGODB_DATABASE is required for the mongo driver")
		}
	default:
		return fmt.Errorf("unknown db driver %q", c.DBDriver)
	}

	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.RateLimitPerMinute <= 0 {
		return fmt.Errorf("rate limit must be positive, got %d", c.RateLimitPerMinute)
	}
	if c.PollWatchInterval <= 0 {
		return fmt.Errorf("poll watch interval must be positive, got %s", c.PollWatchInterval)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	c.PublicURL = strings.TrimRight(c.PublicURL, "/")
	return nil
}

// Addr is the listen address for the HTTP server
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
