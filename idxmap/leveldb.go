package idxmap

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/harborx/harborx/das"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
)

// LevelDBStore keeps the index table in a LevelDB database.
type LevelDBStore struct {
	db *leveldb.DB
}

var _ Table = (*LevelDBStore)(nil)

// OpenLevelDB opens or creates the database at path.
func OpenLevelDB(path string, o *opt.Options) (*LevelDBStore, error) {
	db, err := leveldb.OpenFile(path, o)
	if err != nil {
		return nil, errors.Wrapf(err, "idxmap: opening leveldb table %s", path)
	}
	return &LevelDBStore{db: db}, nil
}

// NewMemLevelDB returns an empty in-memory table.
func NewMemLevelDB() (*LevelDBStore, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "idxmap: opening in-memory leveldb")
	}
	return &LevelDBStore{db: db}, nil
}

func openLevelDBReadOnly(path string) (Store, error) {
	s, err := OpenLevelDB(path, &opt.Options{ReadOnly: true, ErrorIfMissing: true})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// GetMany implements Store. Lookups read from one snapshot.
func (s *LevelDBStore) GetMany(ctx context.Context, keys []das.Felt) (map[das.Felt]das.Felt, error) {
	snap, err := s.db.GetSnapshot()
	if err != nil {
		return nil, errors.Wrap(err, "idxmap: leveldb snapshot")
	}
	defer snap.Release()

	out := make(map[das.Felt]das.Felt, len(keys))
	for i, k := range keys {
		if i%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		raw, err := snap.Get(encodeKey(k), nil)
		if errors.Is(err, leveldb.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, errors.Wrapf(err, "idxmap: get %s", k)
		}
		v, err := decodeValue(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "idxmap: index %s", k)
		}
		out[k] = v
	}
	return out, nil
}

// PutMany implements Writer.
func (s *LevelDBStore) PutMany(ctx context.Context, entries []Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	batch := new(leveldb.Batch)
	for _, e := range entries {
		batch.Put(encodeKey(e.Index), encodeValue(e.Value))
	}
	return errors.Wrap(s.db.Write(batch, &opt.WriteOptions{Sync: true}), "idxmap: batch write")
}

// Close implements Store.
func (s *LevelDBStore) Close() error { return s.db.Close() }
