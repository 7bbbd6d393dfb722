package postcache

import "context"

// NewSnapshotStore returns a snapshot store for the requested driver, wrapped
// with encryption and compression when configured. Construction failures do
// not panic: the returned store keeps the driver identity and reports the
// error on every call.
//
// Example: file snapshots with gzip
//
//	ctx := context.Background()
//	slot := postcache.NewSnapshotStore(ctx, postcache.SnapshotConfig{
//		Driver:      postcache.DriverFile,
//		FileDir:     "/var/lib/postcache",
//		Compression: postcache.CompressionGzip,
//	})
//	fmt.Println(slot.Driver()) // file
func NewSnapshotStore(ctx context.Context, cfg SnapshotConfig) SnapshotStore {
	cfg = cfg.withDefaults()
	base, err := newBaseSnapshotStore(ctx, cfg)
	if err != nil {
		return &errorStore{driver: cfg.Driver, err: err}
	}
	store, err := newEncryptingStore(base, cfg.EncryptionKey)
	if err != nil {
		return &errorStore{driver: cfg.Driver, err: err}
	}
	return newShapingStore(store, cfg.Compression, cfg.MaxValueBytes)
}

func newBaseSnapshotStore(ctx context.Context, cfg SnapshotConfig) (SnapshotStore, error) {
	switch cfg.Driver {
	case DriverNull:
		return newNullStore(), nil
	case DriverFile:
		return newFileStore(cfg.FileDir)
	case DriverRedis:
		return newRedisStore(cfg.RedisClient, cfg.Prefix), nil
	case DriverNATS:
		return newNATSStore(cfg.NATSKeyValue, cfg.Prefix), nil
	case DriverDynamo:
		return newDynamoStore(ctx, cfg)
	case DriverSQL:
		return newSQLStore(ctx, cfg)
	default:
		return newMemoryStore(), nil
	}
}

// NewSnapshotStoreWith builds a snapshot store from a driver and options.
//
// Example: redis snapshots
//
//	redisClient := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379"})
//	slot := postcache.NewSnapshotStoreWith(ctx, postcache.DriverRedis,
//		postcache.WithRedisClient(redisClient),
//		postcache.WithPrefix("app"),
//	)
//	fmt.Println(slot.Driver()) // redis
func NewSnapshotStoreWith(ctx context.Context, driver Driver, opts ...SnapshotOption) SnapshotStore {
	cfg := SnapshotConfig{Driver: driver}
	for _, opt := range opts {
		cfg = opt(cfg)
	}
	return NewSnapshotStore(ctx, cfg)
}

// NewMemorySnapshotStore keeps snapshots in process memory.
func NewMemorySnapshotStore(ctx context.Context, opts ...SnapshotOption) SnapshotStore {
	return NewSnapshotStoreWith(ctx, DriverMemory, opts...)
}

// NewFileSnapshotStore writes snapshots under dir.
func NewFileSnapshotStore(ctx context.Context, dir string, opts ...SnapshotOption) SnapshotStore {
	return NewSnapshotStoreWith(ctx, DriverFile, append([]SnapshotOption{WithFileDir(dir)}, opts...)...)
}

// NewRedisSnapshotStore writes snapshots to redis. The client is required.
func NewRedisSnapshotStore(ctx context.Context, client RedisClient, opts ...SnapshotOption) SnapshotStore {
	return NewSnapshotStoreWith(ctx, DriverRedis, append([]SnapshotOption{WithRedisClient(client)}, opts...)...)
}

// NewNATSSnapshotStore writes snapshots to a JetStream key-value bucket.
func NewNATSSnapshotStore(ctx context.Context, kv NATSKeyValue, opts ...SnapshotOption) SnapshotStore {
	return NewSnapshotStoreWith(ctx, DriverNATS, append([]SnapshotOption{WithNATSKeyValue(kv)}, opts...)...)
}
