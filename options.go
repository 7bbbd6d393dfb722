package postcache

// SnapshotOption mutates SnapshotConfig when constructing a snapshot store.
type SnapshotOption func(SnapshotConfig) SnapshotConfig

// WithPrefix sets the key prefix for shared backends.
func WithPrefix(prefix string) SnapshotOption {
	return func(cfg SnapshotConfig) SnapshotConfig {
		cfg.Prefix = prefix
		return cfg
	}
}

// WithFileDir sets the directory used by the file driver.
func WithFileDir(dir string) SnapshotOption {
	return func(cfg SnapshotConfig) SnapshotConfig {
		cfg.FileDir = dir
		return cfg
	}
}

// WithRedisClient sets the redis client; required when using DriverRedis.
func WithRedisClient(client RedisClient) SnapshotOption {
	return func(cfg SnapshotConfig) SnapshotConfig {
		cfg.RedisClient = client
		return cfg
	}
}

// WithNATSKeyValue sets the JetStream key-value bucket; required when using DriverNATS.
func WithNATSKeyValue(kv NATSKeyValue) SnapshotOption {
	return func(cfg SnapshotConfig) SnapshotConfig {
		cfg.NATSKeyValue = kv
		return cfg
	}
}

// WithDynamoClient injects a DynamoDB client instead of building one.
func WithDynamoClient(client DynamoAPI) SnapshotOption {
	return func(cfg SnapshotConfig) SnapshotConfig {
		cfg.DynamoClient = client
		return cfg
	}
}

// WithDynamoEndpoint points the built DynamoDB client at a local endpoint.
func WithDynamoEndpoint(endpoint string) SnapshotOption {
	return func(cfg SnapshotConfig) SnapshotConfig {
		cfg.DynamoEndpoint = endpoint
		return cfg
	}
}

// WithDynamoRegion sets the region of the built DynamoDB client.
func WithDynamoRegion(region string) SnapshotOption {
	return func(cfg SnapshotConfig) SnapshotConfig {
		cfg.DynamoRegion = region
		return cfg
	}
}

// WithDynamoTable sets the DynamoDB table name.
func WithDynamoTable(table string) SnapshotOption {
	return func(cfg SnapshotConfig) SnapshotConfig {
		cfg.DynamoTable = table
		return cfg
	}
}

// WithSQL configures the SQL driver name, DSN and table.
func WithSQL(driverName, dsn, table string) SnapshotOption {
	return func(cfg SnapshotConfig) SnapshotConfig {
		cfg.SQLDriverName = driverName
		cfg.SQLDSN = dsn
		cfg.SQLTable = table
		return cfg
	}
}

// WithCompression compresses saved snapshots with codec.
func WithCompression(codec CompressionCodec) SnapshotOption {
	return func(cfg SnapshotConfig) SnapshotConfig {
		cfg.Compression = codec
		return cfg
	}
}

// WithMaxValueBytes caps the stored snapshot size.
func WithMaxValueBytes(max int) SnapshotOption {
	return func(cfg SnapshotConfig) SnapshotConfig {
		cfg.MaxValueBytes = max
		return cfg
	}
}

// WithEncryptionKey enables AES-GCM encryption of snapshots.
func WithEncryptionKey(key []byte) SnapshotOption {
	return func(cfg SnapshotConfig) SnapshotConfig {
		cfg.EncryptionKey = key
		return cfg
	}
}
