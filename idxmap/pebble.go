package idxmap

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"github.com/harborx/harborx/das"
)

// ctxCheckInterval is how many point lookups run between context checks.
const ctxCheckInterval = 256

// PebbleStore keeps the index table in a pebble database.
type PebbleStore struct {
	db *pebble.DB
}

var _ Table = (*PebbleStore)(nil)

// OpenPebble opens or creates the database at path. A nil opts uses pebble's
// defaults.
func OpenPebble(path string, opts *pebble.Options) (*PebbleStore, error) {
	if opts == nil {
		opts = &pebble.Options{}
	}
	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "idxmap: opening pebble table %s", path)
	}
	return &PebbleStore{db: db}, nil
}

func openPebbleReadOnly(path string) (Store, error) {
	s, err := OpenPebble(path, &pebble.Options{ReadOnly: true})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// GetMany implements Store.
func (s *PebbleStore) GetMany(ctx context.Context, keys []das.Felt) (map[das.Felt]das.Felt, error) {
	out := make(map[das.Felt]das.Felt, len(keys))
	for i, k := range keys {
		if i%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		raw, closer, err := s.db.Get(encodeKey(k))
		if errors.Is(err, pebble.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, errors.Wrapf(err, "idxmap: get %s", k)
		}
		v, err := decodeValue(raw)
		closer.Close()
		if err != nil {
			return nil, errors.Wrapf(err, "idxmap: index %s", k)
		}
		out[k] = v
	}
	return out, nil
}

// PutMany implements Writer. Entries are committed in one synced batch.
func (s *PebbleStore) PutMany(ctx context.Context, entries []Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b := s.db.NewBatch()
	defer b.Close()
	for _, e := range entries {
		if err := b.Set(encodeKey(e.Index), encodeValue(e.Value), nil); err != nil {
			return errors.Wrap(err, "idxmap: batch set")
		}
	}
	return errors.Wrap(b.Commit(pebble.Sync), "idxmap: batch commit")
}

// Close implements Store.
func (s *PebbleStore) Close() error { return s.db.Close() }
