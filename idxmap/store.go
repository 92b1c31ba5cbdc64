package idxmap

import (
	"context"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/harborx/harborx/das"
)

// Store is a read-only table from surrogate index to literal value.
type Store interface {
	// GetMany looks up keys in one batch. Absent keys are missing from the
	// result; an error means the whole batch failed.
	GetMany(ctx context.Context, keys []das.Felt) (map[das.Felt]das.Felt, error)
	Close() error
}

// Entry is one index table row.
type Entry struct {
	Index das.Felt
	Value das.Felt
}

// Writer is implemented by stores that can be populated.
type Writer interface {
	PutMany(ctx context.Context, entries []Entry) error
}

// Table is a store that can also be written.
type Table interface {
	Store
	Writer
}

// Supported on-disk backends.
const (
	BackendPebble  = "pebble"
	BackendLevelDB = "leveldb"
)

var (
	ErrUnknownBackend = errors.New("idxmap: unknown backend")
	ErrCorruptValue   = errors.New("idxmap: stored value is not a 32-byte field element")
)

// keyPrefix namespaces index rows so the table can share a database.
var keyPrefix = []byte("idx/")

func encodeKey(k das.Felt) []byte {
	b := k.Bytes()
	return append(append(make([]byte, 0, len(keyPrefix)+len(b)), keyPrefix...), b[:]...)
}

func encodeValue(v das.Felt) []byte {
	b := v.Bytes()
	return b[:]
}

func decodeValue(b []byte) (das.Felt, error) {
	if len(b) != das.BytesPerFieldElement {
		return das.Felt{}, errors.Wrapf(ErrCorruptValue, "length %d", len(b))
	}
	v := das.FeltFromBytes(b)
	if vb := v.Bytes(); string(vb[:]) != string(b) {
		return das.Felt{}, errors.Wrap(ErrCorruptValue, "not canonical")
	}
	return v, nil
}

// Create opens the table at path for writing, creating it if needed.
func Create(backend, path string) (Table, error) {
	switch backend {
	case BackendPebble, "":
		return OpenPebble(path, nil)
	case BackendLevelDB:
		return OpenLevelDB(path, nil)
	default:
		return nil, errors.Wrapf(ErrUnknownBackend, "%q", backend)
	}
}

// OpenReadOnly opens an existing table. An empty path or a path that does
// not exist yields a nil Store and no error: every surrogate then passes
// through unresolved.
func OpenReadOnly(backend, path string) (Store, error) {
	if path == "" {
		return nil, nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	} else if err != nil {
		return nil, errors.Wrapf(err, "idxmap: stat %s", path)
	}
	switch backend {
	case BackendPebble, "":
		return openPebbleReadOnly(path)
	case BackendLevelDB:
		return openLevelDBReadOnly(path)
	default:
		return nil, errors.Wrapf(ErrUnknownBackend, "%q", backend)
	}
}
