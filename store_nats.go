package postcache

import (
	"context"
	"encoding/base64"
	"errors"

	"github.com/nats-io/nats.go"
)

// NATSKeyValue captures the subset of nats.KeyValue used by the snapshot store.
type NATSKeyValue interface {
	Get(key string) (nats.KeyValueEntry, error)
	Put(key string, value []byte) (uint64, error)
	Purge(key string, opts ...nats.DeleteOpt) error
}

var errNATSUnavailable = errors.New("nats snapshot key-value unavailable")

type natsStore struct {
	kv     NATSKeyValue
	prefix string
}

func newNATSStore(kv NATSKeyValue, prefix string) SnapshotStore {
	if prefix == "" {
		prefix = defaultSnapshotPrefix
	}
	return &natsStore{kv: kv, prefix: prefix}
}

// NewNATSKeyValue opens (or creates) a JetStream key-value bucket on nc.
// History is kept at one revision since only the latest snapshot matters.
func NewNATSKeyValue(nc *nats.Conn, bucket string) (nats.KeyValue, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, err
	}
	kv, err := js.KeyValue(bucket)
	if errors.Is(err, nats.ErrBucketNotFound) {
		return js.CreateKeyValue(&nats.KeyValueConfig{
			Bucket:      bucket,
			Description: "postcache snapshots",
			History:     1,
		})
	}
	return kv, err
}

func (s *natsStore) Driver() Driver { return DriverNATS }

func (s *natsStore) Load(_ context.Context, key string) ([]byte, bool, error) {
	if s.kv == nil {
		return nil, false, errNATSUnavailable
	}
	entry, err := s.kv.Get(s.snapshotKey(key))
	if isNATSMiss(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if entry.Operation() == nats.KeyValueDelete || entry.Operation() == nats.KeyValuePurge {
		return nil, false, nil
	}
	return cloneBytes(entry.Value()), true, nil
}

func (s *natsStore) Save(_ context.Context, key string, value []byte) error {
	if s.kv == nil {
		return errNATSUnavailable
	}
	_, err := s.kv.Put(s.snapshotKey(key), cloneBytes(value))
	return err
}

func (s *natsStore) Delete(_ context.Context, key string) error {
	if s.kv == nil {
		return errNATSUnavailable
	}
	err := s.kv.Purge(s.snapshotKey(key))
	if isNATSMiss(err) {
		return nil
	}
	return err
}

// snapshotKey keeps arbitrary keys within the NATS subject character set.
func (s *natsStore) snapshotKey(key string) string {
	return "p." + encodeNATSKeyPart(s.prefix) + ".k." + encodeNATSKeyPart(key)
}

func isNATSMiss(err error) bool {
	return errors.Is(err, nats.ErrKeyNotFound) || errors.Is(err, nats.ErrKeyDeleted)
}

func encodeNATSKeyPart(part string) string {
	if part == "" {
		return "_"
	}
	return base64.RawURLEncoding.EncodeToString([]byte(part))
}
