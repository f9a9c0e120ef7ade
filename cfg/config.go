package cfg

import (
	"errors"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/denisbrodbeck/machineid"
	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/maxpert/auditsource/schema"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every validation failure
var ErrInvalid = errors.New("invalid configuration")

// DatabaseConfiguration selects the database to poll
type DatabaseConfiguration struct {
	Driver       string `toml:"driver" yaml:"driver"` // sqlite3, mysql or postgres
	DSN          string `toml:"dsn" yaml:"dsn"`
	Dialect      string `toml:"dialect" yaml:"dialect"` // defaults to driver
	MaxOpenConns int    `toml:"max_open_conns" yaml:"max_open_conns"`
}

// SourceConfiguration controls what is polled and how often
type SourceConfiguration struct {
	Table                  string   `toml:"table" yaml:"table"`
	CursorColumn           string   `toml:"cursor_column" yaml:"cursor_column"`
	CursorColumnType       string   `toml:"cursor_column_type" yaml:"cursor_column_type"` // overrides the resolved type
	Query                  string   `toml:"query" yaml:"query"`                           // explicit query or template
	IncludeColumns         []string `toml:"include_columns" yaml:"include_columns"`       // glob patterns
	BatchSize              int      `toml:"batch_size" yaml:"batch_size"`
	MinimumCycleIntervalMS int      `toml:"minimum_cycle_interval_ms" yaml:"minimum_cycle_interval_ms"`
	Serializer             string   `toml:"serializer" yaml:"serializer"`   // json, msgpack or debezium
	Compression            string   `toml:"compression" yaml:"compression"` // none or zstd
}

// CheckpointConfiguration selects where the committed cursor is kept
type CheckpointConfiguration struct {
	Store     string `toml:"store" yaml:"store"` // file or pebble
	Path      string `toml:"path" yaml:"path"`
	PebbleDir string `toml:"pebble_dir" yaml:"pebble_dir"`
}

// DedupConfiguration controls the duplicate suppression backstop
type DedupConfiguration struct {
	Enabled  bool   `toml:"enabled" yaml:"enabled"`
	Capacity int    `toml:"capacity" yaml:"capacity"`
	Fields   string `toml:"fields" yaml:"fields"` // headers, body or both
}

// SinkConfiguration selects where events are delivered
type SinkConfiguration struct {
	Type      string   `toml:"type" yaml:"type"` // stdout, kafka or nats
	Topic     string   `toml:"topic" yaml:"topic"`
	Brokers   []string `toml:"brokers" yaml:"brokers"`
	NatsURL   string   `toml:"nats_url" yaml:"nats_url"`
	BatchSize int      `toml:"batch_size" yaml:"batch_size"`
}

// LoggingConfiguration controls logging behavior
type LoggingConfiguration struct {
	Verbose bool   `toml:"verbose" yaml:"verbose"`
	Format  string `toml:"format" yaml:"format"` // "console" or "json"
}

// PrometheusConfiguration for metrics
type PrometheusConfiguration struct {
	Enabled bool   `toml:"enabled" yaml:"enabled"`
	Address string `toml:"address" yaml:"address"`
	Port    int    `toml:"port" yaml:"port"`
}

// AdminConfiguration for the HTTP admin endpoints, served on the metrics address
type AdminConfiguration struct {
	Enabled bool   `toml:"enabled" yaml:"enabled"`
	Secret  string `toml:"secret" yaml:"secret"` // empty disables authentication
}

// Configuration is the main configuration structure
type Configuration struct {
	Name string `toml:"name" yaml:"name"`

	Database   DatabaseConfiguration   `toml:"database" yaml:"database"`
	Source     SourceConfiguration     `toml:"source" yaml:"source"`
	Checkpoint CheckpointConfiguration `toml:"checkpoint" yaml:"checkpoint"`
	Dedup      DedupConfiguration      `toml:"dedup" yaml:"dedup"`
	Sink       SinkConfiguration       `toml:"sink" yaml:"sink"`
	Logging    LoggingConfiguration    `toml:"logging" yaml:"logging"`
	Prometheus PrometheusConfiguration `toml:"prometheus" yaml:"prometheus"`
	Admin      AdminConfiguration      `toml:"admin" yaml:"admin"`
}

// Config is the active configuration
var Config = Default()

// Default returns the default configuration
func Default() *Configuration {
	return &Configuration{
		Database: DatabaseConfiguration{
			Driver:       "sqlite3",
			MaxOpenConns: 2,
		},

		Source: SourceConfiguration{
			BatchSize:              100,
			MinimumCycleIntervalMS: 10000,
			Serializer:             "json",
			Compression:            "none",
		},

		Checkpoint: CheckpointConfiguration{
			Store:     "file",
			Path:      "committed_value.backup",
			PebbleDir: "./auditsource-data",
		},

		Dedup: DedupConfiguration{
			Enabled:  false,
			Capacity: 1000,
			Fields:   "both",
		},

		Sink: SinkConfiguration{
			Type:      "stdout",
			Topic:     "auditsource",
			BatchSize: 100,
		},

		Logging: LoggingConfiguration{
			Verbose: false,
			Format:  "console",
		},

		Prometheus: PrometheusConfiguration{
			Enabled: false,
			Address: "0.0.0.0",
			Port:    9090,
		},
	}
}

// Load decodes the file at configPath over the defaults. TOML is assumed
// unless the extension is .yaml or .yml. A missing file keeps the defaults.
func Load(configPath string) error {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			log.Info().Str("path", configPath).Msg("Loading configuration")
			if err := decodeFile(configPath, Config); err != nil {
				return fmt.Errorf("failed to decode config: %w", err)
			}
		} else {
			log.Warn().Str("path", configPath).Msg("Config file not found, using defaults")
		}
	}

	if Config.Name == "" {
		name, err := generateName()
		if err != nil {
			return fmt.Errorf("failed to generate source name: %w", err)
		}
		Config.Name = name
		log.Info().Str("name", Config.Name).Msg("Auto-generated source name")
	}

	if Config.Database.Dialect == "" {
		Config.Database.Dialect = Config.Database.Driver
	}

	return nil
}

func decodeFile(configPath string, into *Configuration) error {
	switch strings.ToLower(filepath.Ext(configPath)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(configPath)
		if err != nil {
			return err
		}
		return yaml.Unmarshal(data, into)
	default:
		_, err := toml.DecodeFile(configPath, into)
		return err
	}
}

// generateName derives a stable source name from the machine ID
func generateName() (string, error) {
	id, err := machineid.ProtectedID("auditsource")
	if err != nil {
		return "", err
	}

	h := fnv.New32a()
	h.Write([]byte(id))
	return fmt.Sprintf("auditsource-%08x", h.Sum32()), nil
}

// Validate checks the active configuration
func Validate() error {
	return Config.Validate()
}

var (
	validDrivers     = map[string]bool{"sqlite3": true, "mysql": true, "postgres": true}
	validSerializers = map[string]bool{"json": true, "msgpack": true, "debezium": true}
	validCompression = map[string]bool{"": true, "none": true, "zstd": true}
	validStores      = map[string]bool{"file": true, "pebble": true}
	validDedupFields = map[string]bool{"": true, "headers": true, "body": true, "both": true}
	validSinks       = map[string]bool{"stdout": true, "kafka": true, "nats": true}
	validLogFormats  = map[string]bool{"": true, "console": true, "json": true}
)

// Validate checks c for errors. Every failure wraps ErrInvalid.
func (c *Configuration) Validate() error {
	if !validDrivers[c.Database.Driver] {
		return invalid("unknown database driver: %q", c.Database.Driver)
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		return invalid("database dsn is required")
	}
	if err := validateDSN(c.Database.Driver, c.Database.DSN); err != nil {
		return err
	}

	if strings.TrimSpace(c.Source.Table) == "" && strings.TrimSpace(c.Source.Query) == "" {
		return invalid("source table or query is required")
	}
	if strings.TrimSpace(c.Source.CursorColumn) == "" {
		return invalid("source cursor_column is required")
	}
	if _, err := c.CursorType(); err != nil {
		return err
	}
	if c.Source.BatchSize < 1 {
		return invalid("source batch size must be >= 1")
	}
	if c.Source.MinimumCycleIntervalMS < 0 {
		return invalid("source minimum cycle interval must be >= 0")
	}
	if !validSerializers[c.Source.Serializer] {
		return invalid("unknown serializer: %q", c.Source.Serializer)
	}
	if !validCompression[c.Source.Compression] {
		return invalid("unknown compression: %q", c.Source.Compression)
	}

	if !validStores[c.Checkpoint.Store] {
		return invalid("unknown checkpoint store: %q", c.Checkpoint.Store)
	}
	if c.Checkpoint.Store == "file" && strings.TrimSpace(c.Checkpoint.Path) == "" {
		return invalid("checkpoint path is required")
	}
	if c.Checkpoint.Store == "pebble" && strings.TrimSpace(c.Checkpoint.PebbleDir) == "" {
		return invalid("checkpoint pebble_dir is required")
	}

	if c.Dedup.Enabled && c.Dedup.Capacity < 1 {
		return invalid("dedup capacity must be >= 1")
	}
	if !validDedupFields[strings.ToLower(c.Dedup.Fields)] {
		return invalid("unknown dedup fields: %q", c.Dedup.Fields)
	}

	if !validSinks[c.Sink.Type] {
		return invalid("unknown sink type: %q", c.Sink.Type)
	}
	if c.Sink.Type == "kafka" && len(c.Sink.Brokers) == 0 {
		return invalid("kafka sink requires brokers")
	}
	if c.Sink.Type == "nats" && c.Sink.NatsURL == "" {
		return invalid("nats sink requires nats_url")
	}

	if !validLogFormats[c.Logging.Format] {
		return invalid("unknown logging format: %q", c.Logging.Format)
	}

	if (c.Prometheus.Enabled || c.Admin.Enabled) && (c.Prometheus.Port < 1 || c.Prometheus.Port > 65535) {
		return invalid("invalid prometheus port: %d", c.Prometheus.Port)
	}

	return nil
}

// validateDSN catches malformed connection strings before the first connect
func validateDSN(driver, dsn string) error {
	switch driver {
	case "mysql":
		if _, err := mysql.ParseDSN(dsn); err != nil {
			return fmt.Errorf("%w: mysql dsn: %w", ErrInvalid, err)
		}
	case "postgres":
		if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
			if _, err := pq.ParseURL(dsn); err != nil {
				return fmt.Errorf("%w: postgres dsn: %w", ErrInvalid, err)
			}
		}
	}
	return nil
}

// CursorType returns the configured cursor column type, nil when the
// resolved database type should be used
func (c *Configuration) CursorType() (*schema.SQLType, error) {
	name := strings.TrimSpace(c.Source.CursorColumnType)
	if name == "" {
		return nil, nil
	}

	t, err := schema.ParseSQLType(name)
	if err != nil {
		return nil, fmt.Errorf("%w: cursor_column_type: %w", ErrInvalid, err)
	}
	return &t, nil
}

// MinimumCycleInterval returns the configured pacing interval
func (c *Configuration) MinimumCycleInterval() time.Duration {
	return time.Duration(c.Source.MinimumCycleIntervalMS) * time.Millisecond
}

// HTTPEnabled reports whether the admin HTTP server should run
func (c *Configuration) HTTPEnabled() bool {
	return c.Prometheus.Enabled || c.Admin.Enabled
}

// MetricsAddress returns host:port for the admin HTTP server
func (c *Configuration) MetricsAddress() string {
	return fmt.Sprintf("%s:%d", c.Prometheus.Address, c.Prometheus.Port)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}
