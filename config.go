package postcache

import (
	"os"
	"path/filepath"
	"time"
)

const (
	// DefaultSnapshotKey is the slot the store persists its snapshot under.
	DefaultSnapshotKey = "posts-storage"

	// DefaultFreshness is how long a successful posts or users fetch is reused.
	DefaultFreshness = 5 * time.Minute

	defaultSnapshotPrefix = "postcache"
	defaultSQLTable       = "postcache_snapshots"
	defaultDynamoTable    = "postcache_snapshots"
	defaultDynamoRegion   = "us-east-1"
)

func defaultFileDir() string {
	return filepath.Join(os.TempDir(), "postcache")
}

// SnapshotConfig controls how a SnapshotStore is constructed.
type SnapshotConfig struct {
	Driver Driver

	// Prefix namespaces keys on shared backends (redis, nats, dynamodb, sql).
	Prefix string

	// FileDir controls where the file driver writes snapshots.
	FileDir string

	// RedisClient is required when DriverRedis is used.
	RedisClient RedisClient

	// NATSKeyValue is required when DriverNATS is used.
	NATSKeyValue NATSKeyValue

	// DynamoClient is optional; when nil a client is built from the region
	// and endpoint below.
	DynamoClient   DynamoAPI
	DynamoRegion   string
	DynamoEndpoint string
	DynamoTable    string

	// SQLDriverName is a database/sql driver: "sqlite", "mysql", "pgx" or "postgres".
	SQLDriverName string
	SQLDSN        string
	SQLTable      string

	// Compression is applied to every saved snapshot.
	Compression CompressionCodec

	// MaxValueBytes rejects larger snapshots when > 0.
	MaxValueBytes int

	// EncryptionKey enables AES-GCM when 16, 24 or 32 bytes long.
	EncryptionKey []byte
}

func (c SnapshotConfig) withDefaults() SnapshotConfig {
	if c.Driver == "" {
		c.Driver = DriverMemory
	}
	if c.Prefix == "" {
		c.Prefix = defaultSnapshotPrefix
	}
	if c.FileDir == "" {
		c.FileDir = defaultFileDir()
	}
	if c.DynamoRegion == "" {
		c.DynamoRegion = defaultDynamoRegion
	}
	if c.DynamoTable == "" {
		c.DynamoTable = defaultDynamoTable
	}
	if c.SQLTable == "" {
		c.SQLTable = defaultSQLTable
	}
	if c.Compression == "" {
		c.Compression = CompressionNone
	}
	return c
}
