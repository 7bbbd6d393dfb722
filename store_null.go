package postcache

import "context"

// nullStore discards snapshots; the store always starts empty.
type nullStore struct{}

func newNullStore() SnapshotStore { return &nullStore{} }

func (s *nullStore) Driver() Driver { return DriverNull }

func (s *nullStore) Load(context.Context, string) ([]byte, bool, error) {
	return nil, false, nil
}

func (s *nullStore) Save(context.Context, string, []byte) error { return nil }

func (s *nullStore) Delete(context.Context, string) error { return nil }
