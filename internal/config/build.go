package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"github.com/goforj/postcache"
)

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, err
	}
	return level, nil
}

// NewLogger builds a text or JSON slog logger writing to w.
func (c *Config) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Log.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

// NewAPI builds the HTTP client for the remote collection.
func (c *Config) NewAPI(logger *slog.Logger) *postcache.HTTPClient {
	client := &http.Client{Timeout: time.Duration(c.API.Timeout)}
	return postcache.NewHTTPClient(c.API.BaseURL, client, postcache.WithHTTPLogger(logger))
}

// OpenSnapshotStore connects the configured backend. The returned close
// function releases any connection opened here and is never nil.
func (c *Config) OpenSnapshotStore(ctx context.Context) (postcache.SnapshotStore, func() error, error) {
	driver, err := postcache.ParseDriver(c.Snapshot.Driver)
	if err != nil {
		return nil, nil, err
	}
	codec, err := postcache.ParseCompression(c.Snapshot.Compression)
	if err != nil {
		return nil, nil, err
	}
	key, err := c.encryptionKey()
	if err != nil {
		return nil, nil, err
	}

	sc := postcache.SnapshotConfig{
		Driver:         driver,
		Prefix:         c.Snapshot.Prefix,
		FileDir:        c.Snapshot.FileDir,
		DynamoRegion:   c.Snapshot.DynamoRegion,
		DynamoEndpoint: c.Snapshot.DynamoEndpoint,
		DynamoTable:    c.Snapshot.DynamoTable,
		SQLDriverName:  c.Snapshot.SQLDriver,
		SQLDSN:         c.Snapshot.SQLDSN,
		SQLTable:       c.Snapshot.SQLTable,
		Compression:    codec,
		MaxValueBytes:  c.Snapshot.MaxValueBytes,
		EncryptionKey:  key,
	}
	closers := []func() error{}

	switch driver {
	case postcache.DriverRedis:
		if c.Snapshot.RedisAddr == "" {
			return nil, nil, errors.New("snapshot.redis_addr is required for the redis driver")
		}
		client := redis.NewClient(&redis.Options{
			Addr:     c.Snapshot.RedisAddr,
			Password: c.Snapshot.RedisPassword,
			DB:       c.Snapshot.RedisDB,
		})
		sc.RedisClient = client
		closers = append(closers, client.Close)
	case postcache.DriverNATS:
		url := c.Snapshot.NATSURL
		if url == "" {
			url = nats.DefaultURL
		}
		nc, err := nats.Connect(url, nats.Name("postcache"))
		if err != nil {
			return nil, nil, fmt.Errorf("connect nats: %w", err)
		}
		kv, err := postcache.NewNATSKeyValue(nc, c.Snapshot.NATSBucket)
		if err != nil {
			nc.Close()
			return nil, nil, fmt.Errorf("open nats bucket %q: %w", c.Snapshot.NATSBucket, err)
		}
		sc.NATSKeyValue = kv
		closers = append(closers, func() error { nc.Close(); return nil })
	}

	store := postcache.NewSnapshotStore(ctx, sc)
	if closer, ok := store.(io.Closer); ok {
		closers = append(closers, closer.Close)
	}
	closeAll := func() error {
		var first error
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil && first == nil {
				first = err
			}
		}
		return first
	}
	return store, closeAll, nil
}

// StoreOptions returns the store options implied by the configuration.
func (c *Config) StoreOptions(slot postcache.SnapshotStore, logger *slog.Logger) []postcache.Option {
	return []postcache.Option{
		postcache.WithSnapshotStore(slot),
		postcache.WithSnapshotKey(c.Store.SnapshotKey),
		postcache.WithFreshness(time.Duration(c.Store.Freshness)),
		postcache.WithLogger(logger),
		postcache.WithObserver(postcache.NewLogObserver(logger)),
	}
}
