package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Service identifies the running process.
type Service struct {
	Name        string `toml:"name"`
	Version     string `toml:"version"`
	Environment string `toml:"environment"`
	LogLevel    string `toml:"log_level"`
}

// Server contains listener settings. Timeouts are seconds.
type Server struct {
	Port            int `toml:"port"`
	GRPCPort        int `toml:"grpc_port"`
	ReadTimeout     int `toml:"read_timeout"`
	WriteTimeout    int `toml:"write_timeout"`
	IdleTimeout     int `toml:"idle_timeout"`
	ShutdownTimeout int `toml:"shutdown_timeout"`
	RequestTimeout  int `toml:"request_timeout"`
}

// Database describes one relational shard.
type Database struct {
	Host        string `toml:"host"`
	Port        int    `toml:"port"`
	User        string `toml:"user"`
	Password    string `toml:"password"`
	Database    string `toml:"database"`
	SSLMode     string `toml:"sslmode"`
	MaxConns    int32  `toml:"max_conns"`
	MinConns    int32  `toml:"min_conns"`
	MaxConnTime int    `toml:"max_conn_time"`
	MaxIdleTime int    `toml:"max_idle_time"`
	HealthCheck int    `toml:"health_check"`
}

// Documents describes the document store.
type Documents struct {
	URI             string `toml:"uri"`
	Database        string `toml:"database"`
	JobsCollection  string `toml:"jobs_collection"`
	UsersCollection string `toml:"users_collection"`
	Timeout         int    `toml:"timeout"`
	MaxPool         uint64 `toml:"max_pool"`
}

// NATS configures update event publishing. An empty URL disables it.
type NATS struct {
	URL           string `toml:"url"`
	SubjectPrefix string `toml:"subject_prefix"`
}

// Config is the full service configuration.
type Config struct {
	Service   Service   `toml:"service"`
	Server    Server    `toml:"server"`
	ShardA    Database  `toml:"shard_a"`
	ShardB    Database  `toml:"shard_b"`
	Documents Documents `toml:"documents"`
	NATS      NATS      `toml:"nats"`
}

// Load builds configuration from defaults, the optional TOML file named by
// CONFIG_FILE, and environment overrides, in that order.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv(os.Getenv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := toml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	setString(getenv, "SERVICE_NAME", &c.Service.Name)
	setString(getenv, "SERVICE_VERSION", &c.Service.Version)
	setString(getenv, "ENVIRONMENT", &c.Service.Environment)
	setString(getenv, "LOG_LEVEL", &c.Service.LogLevel)

	setInt(getenv, "HTTP_PORT", &c.Server.Port)
	setInt(getenv, "GRPC_PORT", &c.Server.GRPCPort)

	applyDatabaseEnv(getenv, "SHARD_A_", &c.ShardA)
	applyDatabaseEnv(getenv, "SHARD_B_", &c.ShardB)

	setString(getenv, "DOCUMENTS_URI", &c.Documents.URI)
	setString(getenv, "DOCUMENTS_DATABASE", &c.Documents.Database)

	setString(getenv, "NATS_URL", &c.NATS.URL)
	setString(getenv, "NATS_SUBJECT_PREFIX", &c.NATS.SubjectPrefix)
}

func applyDatabaseEnv(getenv func(string) string, prefix string, db *Database) {
	setString(getenv, prefix+"DB_HOST", &db.Host)
	setInt(getenv, prefix+"DB_PORT", &db.Port)
	setString(getenv, prefix+"DB_USER", &db.User)
	setString(getenv, prefix+"DB_PASSWORD", &db.Password)
	setString(getenv, prefix+"DB_NAME", &db.Database)
	setString(getenv, prefix+"DB_SSLMODE", &db.SSLMode)
}

func setString(getenv func(string) string, key string, dst *string) {
	if v := getenv(key); v != "" {
		*dst = v
	}
}

func setInt(getenv func(string) string, key string, dst *int) {
	if v := getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// Validate checks that required settings are present.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 {
		errs = append(errs, errors.New("server.port must be positive"))
	}
	if c.Server.GRPCPort <= 0 {
		errs = append(errs, errors.New("server.grpc_port must be positive"))
	}
	if c.ShardA.Database == "" {
		errs = append(errs, errors.New("shard_a.database is required"))
	}
	if c.ShardB.Database == "" {
		errs = append(errs, errors.New("shard_b.database is required"))
	}
	if c.Documents.URI == "" {
		errs = append(errs, errors.New("documents.uri is required"))
	}
	if c.Documents.Database == "" {
		errs = append(errs, errors.New("documents.database is required"))
	}
	return errors.Join(errs...)
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func (s Server) ReadTimeoutDuration() time.Duration     { return seconds(s.ReadTimeout) }
func (s Server) WriteTimeoutDuration() time.Duration    { return seconds(s.WriteTimeout) }
func (s Server) IdleTimeoutDuration() time.Duration     { return seconds(s.IdleTimeout) }
func (s Server) ShutdownTimeoutDuration() time.Duration { return seconds(s.ShutdownTimeout) }
func (s Server) RequestTimeoutDuration() time.Duration  { return seconds(s.RequestTimeout) }

func (d Documents) TimeoutDuration() time.Duration { return seconds(d.Timeout) }
