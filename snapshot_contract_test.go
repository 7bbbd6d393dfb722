package postcache_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"github.com/goforj/postcache"
	"github.com/goforj/postcache/snapshottest"
)

type stubRedisClient struct {
	mu     sync.Mutex
	values map[string][]byte
}

func newStubRedisClient() *stubRedisClient {
	return &stubRedisClient{values: map[string][]byte{}}
}

func (c *stubRedisClient) Get(ctx context.Context, key string) *redis.StringCmd {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(string(v), nil)
}

func (c *stubRedisClient) Set(ctx context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := value.([]byte)
	if !ok {
		return redis.NewStatusResult("", errors.New("unexpected value type"))
	}
	c.values[key] = append([]byte(nil), b...)
	return redis.NewStatusResult("OK", nil)
}

func (c *stubRedisClient) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := c.values[k]; ok {
			delete(c.values, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

type stubNATSKeyValue struct {
	mu       sync.Mutex
	bucket   string
	entries  map[string]*stubNATSEntry
	revision uint64
}

func newStubNATSKeyValue(bucket string) *stubNATSKeyValue {
	return &stubNATSKeyValue{bucket: bucket, entries: map[string]*stubNATSEntry{}}
}

func (s *stubNATSKeyValue) Get(key string) (nats.KeyValueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, nats.ErrKeyNotFound
	}
	clone := *e
	return &clone, nil
}

func (s *stubNATSKeyValue) Put(key string, value []byte) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revision++
	s.entries[key] = &stubNATSEntry{
		bucket:   s.bucket,
		key:      key,
		value:    append([]byte(nil), value...),
		revision: s.revision,
		created:  time.Now(),
		op:       nats.KeyValuePut,
	}
	return s.revision, nil
}

func (s *stubNATSKeyValue) Purge(key string, _ ...nats.DeleteOpt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

type stubNATSEntry struct {
	bucket   string
	key      string
	value    []byte
	revision uint64
	created  time.Time
	op       nats.KeyValueOp
}

func (e *stubNATSEntry) Bucket() string             { return e.bucket }
func (e *stubNATSEntry) Key() string                { return e.key }
func (e *stubNATSEntry) Value() []byte              { return append([]byte(nil), e.value...) }
func (e *stubNATSEntry) Revision() uint64           { return e.revision }
func (e *stubNATSEntry) Created() time.Time         { return e.created }
func (e *stubNATSEntry) Delta() uint64              { return 0 }
func (e *stubNATSEntry) Operation() nats.KeyValueOp { return e.op }

type dynStub struct {
	mu      sync.Mutex
	items   map[string]map[string]types.AttributeValue
	created bool
}

func newDynStub() *dynStub { return &dynStub{items: map[string]map[string]types.AttributeValue{}} }

func (d *dynStub) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := in.Key["k"].(*types.AttributeValueMemberS).Value
	item, ok := d.items[key]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{Item: item}, nil
}

func (d *dynStub) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := in.Item["k"].(*types.AttributeValueMemberS).Value
	d.items[key] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (d *dynStub) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.items, in.Key["k"].(*types.AttributeValueMemberS).Value)
	return &dynamodb.DeleteItemOutput{}, nil
}

func (d *dynStub) CreateTable(context.Context, *dynamodb.CreateTableInput, ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.created = true
	return &dynamodb.CreateTableOutput{}, nil
}

func (d *dynStub) DescribeTable(context.Context, *dynamodb.DescribeTableInput, ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.created {
		return nil, &types.ResourceNotFoundException{}
	}
	return &dynamodb.DescribeTableOutput{}, nil
}

func TestSnapshotStoreContracts(t *testing.T) {
	ctx := context.Background()
	key := []byte("0123456789abcdef0123456789abcdef")

	cases := []struct {
		name string
		make func(t *testing.T) postcache.SnapshotStore
		opts snapshottest.Options
	}{
		{
			name: "null",
			make: func(*testing.T) postcache.SnapshotStore { return postcache.NewSnapshotStoreWith(ctx, postcache.DriverNull) },
			opts: snapshottest.Options{NullSemantics: true},
		},
		{
			name: "memory",
			make: func(*testing.T) postcache.SnapshotStore { return postcache.NewMemorySnapshotStore(ctx) },
		},
		{
			name: "file",
			make: func(t *testing.T) postcache.SnapshotStore { return postcache.NewFileSnapshotStore(ctx, t.TempDir()) },
		},
		{
			name: "redis",
			make: func(*testing.T) postcache.SnapshotStore {
				return postcache.NewRedisSnapshotStore(ctx, newStubRedisClient(), postcache.WithPrefix("test"))
			},
		},
		{
			name: "nats",
			make: func(*testing.T) postcache.SnapshotStore {
				return postcache.NewNATSSnapshotStore(ctx, newStubNATSKeyValue("snapshots"))
			},
		},
		{
			name: "dynamodb",
			make: func(*testing.T) postcache.SnapshotStore {
				return postcache.NewSnapshotStoreWith(ctx, postcache.DriverDynamo, postcache.WithDynamoClient(newDynStub()))
			},
		},
		{
			name: "sqlite",
			make: func(t *testing.T) postcache.SnapshotStore {
				dsn := filepath.Join(t.TempDir(), "snapshots.db")
				return postcache.NewSnapshotStoreWith(ctx, postcache.DriverSQL, postcache.WithSQL("sqlite", dsn, ""))
			},
		},
		{
			name: "memory_gzip",
			make: func(*testing.T) postcache.SnapshotStore {
				return postcache.NewMemorySnapshotStore(ctx, postcache.WithCompression(postcache.CompressionGzip))
			},
		},
		{
			name: "file_encrypted_gzip",
			make: func(t *testing.T) postcache.SnapshotStore {
				return postcache.NewFileSnapshotStore(ctx, t.TempDir(),
					postcache.WithEncryptionKey(key),
					postcache.WithCompression(postcache.CompressionGzip),
				)
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := tc.make(t)
			if closer, ok := store.(interface{ Close() error }); ok {
				t.Cleanup(func() { _ = closer.Close() })
			}
			opts := tc.opts
			opts.CaseName = t.Name()
			snapshottest.RunSnapshotContract(t, store, opts)
		})
	}
}

func TestRedisSnapshotStoreUsesPrefix(t *testing.T) {
	ctx := context.Background()
	client := newStubRedisClient()
	store := postcache.NewRedisSnapshotStore(ctx, client, postcache.WithPrefix("pfx"))
	if err := store.Save(ctx, "posts-storage", []byte("v")); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if _, ok := client.values["pfx:posts-storage"]; !ok {
		t.Fatalf("expected prefixed key, got %v", client.values)
	}
}

func TestDynamoSnapshotStoreCreatesTable(t *testing.T) {
	ctx := context.Background()
	stub := newDynStub()
	store := postcache.NewSnapshotStoreWith(ctx, postcache.DriverDynamo, postcache.WithDynamoClient(stub))
	if store.Driver() != postcache.DriverDynamo {
		t.Fatalf("unexpected driver %s", store.Driver())
	}
	if !stub.created {
		t.Fatalf("expected table to be created")
	}
	if err := store.Save(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	item := stub.items["postcache:k"]
	if item == nil {
		t.Fatalf("expected item under default prefix, got %v", stub.items)
	}
	if _, ok := item["ua"].(*types.AttributeValueMemberN); !ok {
		t.Fatalf("expected updated-at attribute")
	}
}

func TestSnapshotStoreConstructionErrors(t *testing.T) {
	ctx := context.Background()

	sqlStore := postcache.NewSnapshotStoreWith(ctx, postcache.DriverSQL)
	if sqlStore.Driver() != postcache.DriverSQL {
		t.Fatalf("expected driver identity preserved, got %s", sqlStore.Driver())
	}
	if _, _, err := sqlStore.Load(ctx, "k"); err == nil {
		t.Fatalf("expected load error from misconfigured sql store")
	}
	if err := sqlStore.Save(ctx, "k", []byte("v")); err == nil {
		t.Fatalf("expected save error from misconfigured sql store")
	}
	if err := sqlStore.Delete(ctx, "k"); err == nil {
		t.Fatalf("expected delete error from misconfigured sql store")
	}

	badTable := postcache.NewSnapshotStoreWith(ctx, postcache.DriverSQL,
		postcache.WithSQL("sqlite", filepath.Join(t.TempDir(), "x.db"), "drop table;"))
	if _, _, err := badTable.Load(ctx, "k"); err == nil {
		t.Fatalf("expected invalid table name error")
	}

	badKey := postcache.NewMemorySnapshotStore(ctx, postcache.WithEncryptionKey([]byte("short")))
	if _, _, err := badKey.Load(ctx, "k"); !errors.Is(err, postcache.ErrEncryptionKey) {
		t.Fatalf("expected ErrEncryptionKey, got %v", err)
	}

	redisStore := postcache.NewRedisSnapshotStore(ctx, nil)
	if err := redisStore.Save(ctx, "k", []byte("v")); err == nil {
		t.Fatalf("expected error when redis client is nil")
	}
	natsStore := postcache.NewNATSSnapshotStore(ctx, nil)
	if _, _, err := natsStore.Load(ctx, "k"); err == nil {
		t.Fatalf("expected error when nats key-value is nil")
	}
}

func TestSnapshotStoreMaxValueBytes(t *testing.T) {
	ctx := context.Background()
	store := postcache.NewMemorySnapshotStore(ctx, postcache.WithMaxValueBytes(4))
	if err := store.Save(ctx, "k", []byte("abcd")); err != nil {
		t.Fatalf("save at limit failed: %v", err)
	}
	if err := store.Save(ctx, "k", []byte("abcde")); !errors.Is(err, postcache.ErrValueTooLarge) {
		t.Fatalf("expected ErrValueTooLarge, got %v", err)
	}
}
