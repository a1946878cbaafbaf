package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/wb-go/wbf/zlog"
)

// Config holds the main configuration for the application.
type Config struct {
	Log        Log        `mapstructure:"log"`
	Worker     Worker     `mapstructure:"worker"`
	Storage    Storage    `mapstructure:"storage"`
	Kafka      Kafka      `mapstructure:"kafka"`
	Database   Database   `mapstructure:"database"`
	Retry      Retry      `mapstructure:"retry"`
	Monitoring Monitoring `mapstructure:"monitoring"`
}

// Log holds logger configuration.
type Log struct {
	Level string `mapstructure:"level"` // debug, info, warn, error
}

// Worker holds job execution settings.
type Worker struct {
	Concurrency int           `mapstructure:"concurrency"` // images loaded at once per job, 0 = GOMAXPROCS
	JobTimeout  time.Duration `mapstructure:"job_timeout"` // worker mode only, 0 = no timeout
}

// Storage selects and configures where images are read from and written to.
type Storage struct {
	Driver     string `mapstructure:"driver"`    // "local" or "minio"
	BasePath   string `mapstructure:"base_path"` // local driver root for relative paths
	Endpoint   string `mapstructure:"endpoint"`
	AccessKey  string `mapstructure:"access_key"`
	SecretKey  string `mapstructure:"secret_key"`
	BucketName string `mapstructure:"bucket_name"`
	UseSSL     bool   `mapstructure:"use_ssl"`
}

// Kafka holds configuration for the Kafka message queue.
type Kafka struct {
	GroupID      string   `mapstructure:"group_id"`      // Consumer group ID
	Topic        string   `mapstructure:"topic"`         // Topic jobs are consumed from
	ResultsTopic string   `mapstructure:"results_topic"` // Topic job results are published to
	Brokers      []string `mapstructure:"brokers"`       // List of Kafka broker addresses
}

// Database holds database master and slave configuration.
type Database struct {
	Master DatabaseNode   `mapstructure:"master"`
	Slaves []DatabaseNode `mapstructure:"slaves"`

	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DatabaseNode holds connection parameters for a single database node.
type DatabaseNode struct {
	Host    string `mapstructure:"host"`
	Port    string `mapstructure:"port"`
	User    string `mapstructure:"user"`
	Pass    string `mapstructure:"pass"`
	Name    string `mapstructure:"name"`
	SSLMode string `mapstructure:"ssl_mode"`
}

// Retry defines retry policy configuration.
type Retry struct {
	Attempts int           `mapstructure:"attempts"` // Number of retry attempts
	Delay    time.Duration `mapstructure:"delay"`    // Initial delay between retries
	Backoff  float64       `mapstructure:"backoff"`  // Backoff multiplier for delays
}

// Monitoring holds metrics export settings.
type Monitoring struct {
	Textfile string            `mapstructure:"textfile"` // prometheus textfile path, empty disables export
	Labels   map[string]string `mapstructure:"labels"`
}

// DSN returns the PostgreSQL DSN string for connecting to this database node.
func (n DatabaseNode) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		n.User, n.Pass, n.Host, n.Port, n.Name, n.SSLMode,
	)
}

// mustBindEnv binds critical environment variables to Viper keys.
//
// It panics if any environment variable cannot be bound.
func mustBindEnv(v *viper.Viper) {
	bindings := map[string]string{
		"database.master.host": "DB_HOST",
		"database.master.port": "DB_PORT",
		"database.master.user": "DB_USER",
		"database.master.pass": "DB_PASSWORD",
		"database.master.name": "DB_NAME",
		"storage.access_key":   "MINIO_ACCESS_KEY",
		"storage.secret_key":   "MINIO_SECRET_KEY",
	}

	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			zlog.Logger.Panic().Err(err).Msgf("failed to bind env %s", env)
		}
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("worker.concurrency", 0)
	v.SetDefault("storage.driver", "local")
	v.SetDefault("kafka.topic", "subcat-jobs")
	v.SetDefault("kafka.results_topic", "subcat-results")
	v.SetDefault("kafka.group_id", "subcat")
	v.SetDefault("retry.attempts", 3)
	v.SetDefault("retry.delay", time.Second)
	v.SetDefault("retry.backoff", 2.0)
}

// Load reads the configuration file at path, then applies SUBCAT_*
// environment overrides and any of flags that were set. A missing file
// is not an error: defaults are used.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		zlog.Logger.Warn().Str("path", path).Msg("config file not found, using defaults")
	}

	v.SetEnvPrefix("SUBCAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	mustBindEnv(v)

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads the configuration like Load.
// It panics if the configuration file cannot be loaded or unmarshaled.
func MustLoad(path string, flags *pflag.FlagSet) *Config {
	cfg, err := Load(path, flags)
	if err != nil {
		zlog.Logger.Panic().Err(err).Msg("failed to load config")
	}

	return cfg
}

// flagKeys maps command line flags to the config keys they override.
var flagKeys = map[string]string{
	"log-level":   "log.level",
	"concurrency": "worker.concurrency",
	"storage":     "storage.driver",
	"metrics":     "monitoring.textfile",
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}

	return nil
}
