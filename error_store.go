package postcache

import "context"

// errorStore is returned when a backend fails to initialize; it preserves the driver
// identity while surfacing the construction error on every call.
type errorStore struct {
	driver Driver
	err    error
}

func (e *errorStore) Driver() Driver                                    { return e.driver }
func (e *errorStore) Load(context.Context, string) ([]byte, bool, error) { return nil, false, e.err }
func (e *errorStore) Save(context.Context, string, []byte) error        { return e.err }
func (e *errorStore) Delete(context.Context, string) error              { return e.err }
