package idxmap

import (
	"bytes"
	"context"
	"log/slog"
	"math/big"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/harborx/harborx/das"
	"github.com/harborx/harborx/log"
	"github.com/stretchr/testify/require"
)

func surrogate(n int64) das.Felt {
	v := new(big.Int).Lsh(big.NewInt(1), 200)
	return das.NewFelt(v.Add(v, big.NewInt(n)))
}

func literal(n uint64) das.Felt { return das.FeltFromUint64(n) }

func newTables(t *testing.T) map[string]Table {
	t.Helper()
	p, err := OpenPebble("idx", &pebble.Options{FS: vfs.NewMem()})
	require.NoError(t, err)
	l, err := NewMemLevelDB()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, p.Close())
		require.NoError(t, l.Close())
	})
	return map[string]Table{BackendPebble: p, BackendLevelDB: l}
}

func TestPolicy(t *testing.T) {
	require.True(t, DefaultPolicy.IsLiteral(das.Zero()))
	require.True(t, DefaultPolicy.IsLiteral(das.NewFelt(new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1)))))
	require.False(t, DefaultPolicy.IsLiteral(das.NewFelt(new(big.Int).Lsh(big.NewInt(1), 127))))
	require.False(t, DefaultPolicy.IsLiteral(surrogate(0)))

	p := BitLengthPolicy{MaxLiteralBits: 8}
	require.True(t, p.IsLiteral(literal(255)))
	require.False(t, p.IsLiteral(literal(256)))
}

func TestTables(t *testing.T) {
	ctx := context.Background()
	for name, tbl := range newTables(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, tbl.PutMany(ctx, []Entry{
				{surrogate(1), literal(11)},
				{surrogate(2), literal(22)},
			}))
			// Overwrites win.
			require.NoError(t, tbl.PutMany(ctx, []Entry{{surrogate(2), literal(23)}}))

			got, err := tbl.GetMany(ctx, []das.Felt{surrogate(1), surrogate(2), surrogate(3)})
			require.NoError(t, err)
			require.Equal(t, map[das.Felt]das.Felt{surrogate(1): literal(11), surrogate(2): literal(23)}, got)

			got, err = tbl.GetMany(ctx, nil)
			require.NoError(t, err)
			require.Empty(t, got)

			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err = tbl.GetMany(cctx, []das.Felt{surrogate(1)})
			require.ErrorIs(t, err, context.Canceled)
		})
	}
}

func TestCreateAndReopen(t *testing.T) {
	ctx := context.Background()
	for _, backend := range []string{BackendPebble, BackendLevelDB} {
		t.Run(backend, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "idxmap")
			tbl, err := Create(backend, path)
			require.NoError(t, err)
			require.NoError(t, tbl.PutMany(ctx, []Entry{{surrogate(5), literal(55)}}))
			require.NoError(t, tbl.Close())

			s, err := OpenReadOnly(backend, path)
			require.NoError(t, err)
			require.NotNil(t, s)
			defer s.Close()
			got, err := s.GetMany(ctx, []das.Felt{surrogate(5)})
			require.NoError(t, err)
			require.Equal(t, literal(55), got[surrogate(5)])
		})
	}
}

func TestOpenReadOnlyMissing(t *testing.T) {
	s, err := OpenReadOnly(BackendPebble, "")
	require.NoError(t, err)
	require.Nil(t, s)

	s, err = OpenReadOnly(BackendLevelDB, filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)
	require.Nil(t, s)

	_, err = OpenReadOnly("sqlite", t.TempDir())
	require.ErrorIs(t, err, ErrUnknownBackend)
	_, err = Create("sqlite", t.TempDir())
	require.ErrorIs(t, err, ErrUnknownBackend)
}

func TestDecodeValue(t *testing.T) {
	v := literal(7)
	got, err := decodeValue(encodeValue(v))
	require.NoError(t, err)
	require.Equal(t, v, got)

	_, err = decodeValue([]byte{1, 2, 3})
	require.ErrorIs(t, err, ErrCorruptValue)
	_, err = decodeValue(bytes.Repeat([]byte{0xff}, 32))
	require.ErrorIs(t, err, ErrCorruptValue)
}

type countingStore struct {
	Store
	calls [][]das.Felt
	err   error
}

func (c *countingStore) GetMany(ctx context.Context, keys []das.Felt) (map[das.Felt]das.Felt, error) {
	c.calls = append(c.calls, append([]das.Felt(nil), keys...))
	if c.err != nil {
		return nil, c.err
	}
	return c.Store.GetMany(ctx, keys)
}

func TestCachedStore(t *testing.T) {
	ctx := context.Background()
	mem, err := NewMemLevelDB()
	require.NoError(t, err)
	require.NoError(t, mem.PutMany(ctx, []Entry{{surrogate(1), literal(1)}, {surrogate(2), literal(2)}}))

	inner := &countingStore{Store: mem}
	c, err := NewCachedStore(inner, 8)
	require.NoError(t, err)
	defer c.Close()

	got, err := c.GetMany(ctx, []das.Felt{surrogate(1), surrogate(3)})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, 1, c.Len())

	got, err = c.GetMany(ctx, []das.Felt{surrogate(1), surrogate(2), surrogate(3)})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Len(t, inner.calls, 2)
	// The cached key is not asked for again; the earlier miss is.
	require.Equal(t, []das.Felt{surrogate(2), surrogate(3)}, inner.calls[1])

	_, err = c.GetMany(ctx, []das.Felt{surrogate(1), surrogate(2)})
	require.NoError(t, err)
	require.Len(t, inner.calls, 2)

	inner.err = errors.New("boom")
	_, err = c.GetMany(ctx, []das.Felt{surrogate(9)})
	require.Error(t, err)
}

func TestResolver(t *testing.T) {
	ctx := context.Background()
	mem, err := NewMemLevelDB()
	require.NoError(t, err)
	defer mem.Close()
	require.NoError(t, mem.PutMany(ctx, []Entry{{surrogate(1), literal(100)}}))
	store := &countingStore{Store: mem}

	var buf bytes.Buffer
	r := NewResolver(store, nil, log.NewJSON(&buf, slog.LevelDebug))
	in := []das.Felt{literal(5), surrogate(1), surrogate(2), surrogate(1)}
	out := r.Resolve(ctx, in)

	require.Equal(t, []das.Felt{literal(5), literal(100), surrogate(2), literal(100)}, out)
	// Input untouched, one deduplicated batch, literals never looked up.
	require.Equal(t, surrogate(1), in[1])
	require.Len(t, store.calls, 1)
	require.Equal(t, []das.Felt{surrogate(1), surrogate(2)}, store.calls[0])
	require.Contains(t, buf.String(), "Resolved surrogates")
}

func TestResolverPassThrough(t *testing.T) {
	ctx := context.Background()
	in := []das.Felt{surrogate(1), literal(2)}

	require.Equal(t, in, NewResolver(nil, nil, nil).Resolve(ctx, in))

	var buf bytes.Buffer
	failing := &countingStore{err: errors.New("disk on fire")}
	r := NewResolver(failing, nil, log.NewJSON(&buf, slog.LevelInfo))
	require.Equal(t, in, r.Resolve(ctx, in))
	require.Contains(t, buf.String(), "disk on fire")

	// Literals only: the store is not consulted.
	require.Equal(t, []das.Felt{literal(1)}, r.Resolve(ctx, []das.Felt{literal(1)}))
	require.Len(t, failing.calls, 1)
}

func TestResolverCustomPolicy(t *testing.T) {
	ctx := context.Background()
	mem, err := NewMemLevelDB()
	require.NoError(t, err)
	defer mem.Close()
	require.NoError(t, mem.PutMany(ctx, []Entry{{literal(7), literal(700)}}))

	r := NewResolver(mem, PolicyFunc(func(v das.Felt) bool { return v.BitLen() <= 2 }), nil)
	require.Equal(t, []das.Felt{literal(3), literal(700)}, r.Resolve(ctx, []das.Felt{literal(3), literal(7)}))
}

func TestParseNumber(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want das.Felt
	}{
		{"0", literal(0)},
		{" 42 ", literal(42)},
		{"0x2a", literal(42)},
		{"0x02a", literal(42)},
		{"0x000000000000000000000000000000000000000000000000000000000000002a", literal(42)},
		{"0X1", literal(1)},
	} {
		got, err := ParseNumber(tc.in)
		require.NoError(t, err, tc.in)
		require.Equal(t, tc.want, got, tc.in)
	}
	for _, bad := range []string{"", "abc", "-1", "0xzz", das.Modulus().String()} {
		_, err := ParseNumber(bad)
		require.Error(t, err, bad)
	}
}

func TestImport(t *testing.T) {
	ctx := context.Background()
	csvData := strings.Join([]string{
		"idx,val",
		"# exported table",
		surrogate(1).String() + ",0x1234",
		"0x" + strings.Repeat("0", 13) + "1" + strings.Repeat("0", 50) + ", 99",
		surrogate(3).String() + ",3",
	}, "\n") + "\n"

	mem, err := NewMemLevelDB()
	require.NoError(t, err)
	defer mem.Close()
	n, err := Import(ctx, strings.NewReader(csvData), mem, 2)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	got, err := mem.GetMany(ctx, []das.Felt{surrogate(1), surrogate(0), surrogate(3)})
	require.NoError(t, err)
	require.Equal(t, map[das.Felt]das.Felt{
		surrogate(1): literal(0x1234),
		surrogate(0): literal(99),
		surrogate(3): literal(3),
	}, got)
}

func TestImportErrors(t *testing.T) {
	ctx := context.Background()
	mem, err := NewMemLevelDB()
	require.NoError(t, err)
	defer mem.Close()

	n, err := Import(ctx, strings.NewReader("1,2\n3,notanumber\n"), mem, 0)
	require.Error(t, err)
	require.Contains(t, err.Error(), "line 2")
	require.Equal(t, 0, n)

	_, err = Import(ctx, strings.NewReader("1,2,3\n"), mem, 0)
	require.Error(t, err)
}
