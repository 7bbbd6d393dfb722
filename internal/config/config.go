package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"

	"github.com/goforj/postcache"
)

// EnvPrefix is prepended to every environment override, e.g.
// POSTCACHE_SNAPSHOT_DRIVER=redis.
const EnvPrefix = "POSTCACHE_"

// Config represents the postcache CLI configuration.
type Config struct {
	API      APIConfig      `toml:"api" envPrefix:"API_"`
	Store    StoreConfig    `toml:"store" envPrefix:"STORE_"`
	Snapshot SnapshotConfig `toml:"snapshot" envPrefix:"SNAPSHOT_"`
	Log      LogConfig      `toml:"log" envPrefix:"LOG_"`
}

// APIConfig points at the remote collection.
type APIConfig struct {
	BaseURL string   `toml:"base_url" env:"BASE_URL"`
	Timeout Duration `toml:"timeout" env:"TIMEOUT"`
}

// StoreConfig tunes the data cache store.
type StoreConfig struct {
	Freshness   Duration `toml:"freshness" env:"FRESHNESS"`
	SnapshotKey string   `toml:"snapshot_key" env:"SNAPSHOT_KEY"`
}

// SnapshotConfig selects and configures the snapshot backend.
// Driver determines which of the backend fields are relevant.
type SnapshotConfig struct {
	Driver        string `toml:"driver" env:"DRIVER"` // memory, null, file, redis, nats, dynamodb, sql
	Prefix        string `toml:"prefix,omitempty" env:"PREFIX"`
	Compression   string `toml:"compression,omitempty" env:"COMPRESSION"`
	MaxValueBytes int    `toml:"max_value_bytes,omitempty" env:"MAX_VALUE_BYTES"`
	// EncryptionKey is hex encoded; 32, 48 or 64 hex characters.
	EncryptionKey string `toml:"encryption_key,omitempty" env:"ENCRYPTION_KEY"`

	FileDir string `toml:"file_dir,omitempty" env:"FILE_DIR"`

	RedisAddr     string `toml:"redis_addr,omitempty" env:"REDIS_ADDR"`
	RedisPassword string `toml:"redis_password,omitempty" env:"REDIS_PASSWORD"`
	RedisDB       int    `toml:"redis_db,omitempty" env:"REDIS_DB"`

	NATSURL    string `toml:"nats_url,omitempty" env:"NATS_URL"`
	NATSBucket string `toml:"nats_bucket,omitempty" env:"NATS_BUCKET"`

	DynamoRegion   string `toml:"dynamo_region,omitempty" env:"DYNAMO_REGION"`
	DynamoEndpoint string `toml:"dynamo_endpoint,omitempty" env:"DYNAMO_ENDPOINT"`
	DynamoTable    string `toml:"dynamo_table,omitempty" env:"DYNAMO_TABLE"`

	SQLDriver string `toml:"sql_driver,omitempty" env:"SQL_DRIVER"` // sqlite, mysql, pgx
	SQLDSN    string `toml:"sql_dsn,omitempty" env:"SQL_DSN"`
	SQLTable  string `toml:"sql_table,omitempty" env:"SQL_TABLE"`
}

// LogConfig controls the CLI logger.
type LogConfig struct {
	Level  string `toml:"level" env:"LEVEL"`   // debug, info, warn, error
	Format string `toml:"format" env:"FORMAT"` // text or json
}

// Duration is a time.Duration written as a Go duration string ("5m").
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: postcache.DefaultBaseURL,
			Timeout: Duration(10 * time.Second),
		},
		Store: StoreConfig{
			Freshness:   Duration(postcache.DefaultFreshness),
			SnapshotKey: postcache.DefaultSnapshotKey,
		},
		Snapshot: SnapshotConfig{
			Driver:     string(postcache.DriverFile),
			FileDir:    DefaultDataDir(),
			NATSBucket: "postcache",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// DefaultDataDir is where the file driver keeps snapshots by default.
func DefaultDataDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "postcache")
	}
	return filepath.Join(os.TempDir(), "postcache")
}

// DefaultPath is the config file read when --config is not given.
func DefaultPath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "postcache", "config.toml")
	}
	return "postcache.toml"
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from r on top of the defaults.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	cfg := Default()
	if _, err := toml.NewDecoder(r).Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// Write encodes a Config to w.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// Init writes cfg to path, refusing to overwrite an existing file.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Load reads path (a missing file means defaults), applies POSTCACHE_
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		fileCfg, err := ReadFromFile(path)
		switch {
		case err == nil:
			cfg = fileCfg
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, err
		}
	}
	if err := ParseEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseEnv applies POSTCACHE_ prefixed environment variables to cfg.
// Unset variables leave the current values in place.
func ParseEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if _, err := postcache.ParseDriver(c.Snapshot.Driver); err != nil {
		return fmt.Errorf("snapshot.driver: %w", err)
	}
	if _, err := postcache.ParseCompression(c.Snapshot.Compression); err != nil {
		return fmt.Errorf("snapshot.compression: %w", err)
	}
	if _, err := c.encryptionKey(); err != nil {
		return fmt.Errorf("snapshot.encryption_key: %w", err)
	}
	if c.Store.Freshness < 0 {
		return errors.New("store.freshness must not be negative")
	}
	if c.API.Timeout < 0 {
		return errors.New("api.timeout must not be negative")
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("log.format: unknown format %q", c.Log.Format)
	}
	return nil
}

func (c *Config) encryptionKey() ([]byte, error) {
	if c.Snapshot.EncryptionKey == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(c.Snapshot.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("not hex: %w", err)
	}
	switch len(key) {
	case 16, 24, 32:
		return key, nil
	default:
		return nil, postcache.ErrEncryptionKey
	}
}
