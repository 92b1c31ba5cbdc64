package stateless

import (
	"math/big"
	"math/rand"
	"testing"

	"github.com/harborx/harborx/das"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

// mixedValues returns n values spread over every bucket width, with repeats.
func mixedValues(rng *rand.Rand, n int) []das.Felt {
	widths := []int{1, 15, 31, 62, 83, 125, 200, 251}
	out := make([]das.Felt, 0, n)
	for len(out) < n {
		if len(out) > 0 && rng.Intn(4) == 0 {
			out = append(out, out[rng.Intn(len(out))])
			continue
		}
		w := widths[rng.Intn(len(widths))]
		v := new(big.Int).Rand(rng, new(big.Int).Lsh(big.NewInt(1), uint(w)))
		out = append(out, das.NewFelt(v))
	}
	return out
}

func TestCodecRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for _, n := range []int{1, 2, 17, 300, 5000} {
		values := mixedValues(rng, n)
		compressed, err := Codec{}.Compress(values)
		require.NoError(t, err)

		got, err := Codec{}.Decompress(compressed)
		require.NoError(t, err, "n=%d", n)
		require.Equal(t, values, got, "n=%d", n)
	}
}

func TestCodecCompressesRepeats(t *testing.T) {
	values := make([]das.Felt, 1000)
	for i := range values {
		values[i] = das.FeltFromUint64(uint64(i % 3))
	}
	compressed, err := Codec{}.Compress(values)
	require.NoError(t, err)
	require.Less(t, len(compressed), 30)

	got, err := Codec{}.Decompress(compressed)
	require.NoError(t, err)
	require.Equal(t, values, got)
}

func TestCodecIgnoresTrailingFelts(t *testing.T) {
	values := []das.Felt{das.FeltFromUint64(5), das.FeltFromUint64(1 << 40), das.FeltFromUint64(5)}
	compressed, err := Codec{}.Compress(values)
	require.NoError(t, err)
	compressed = append(compressed, das.FeltFromUint64(99), das.FeltFromUint64(0))

	got, err := Codec{}.Decompress(compressed)
	require.NoError(t, err)
	require.Equal(t, values, got)
}

func TestCodecCompressRejects(t *testing.T) {
	_, err := Codec{}.Compress(nil)
	require.Error(t, err)
	_, err = Codec{}.Compress(make([]das.Felt, headerElmBound))
	require.Error(t, err)
}

func TestDecompressRejections(t *testing.T) {
	header := func(vs ...uint64) das.Felt {
		h := make([]uint64, headerLen)
		copy(h, vs)
		return packFelts(fromUsize(h), headerBound)[0]
	}

	for _, tc := range []struct {
		name  string
		felts []das.Felt
		want  error
	}{
		{"empty", nil, ErrTruncated},
		{"version", []das.Felt{header(1, 1, 1)}, ErrUnsupportedVersion},
		{"no data", []das.Felt{header(0, 0)}, ErrEmptyOutput},
		{"declared too long", []das.Felt{header(0, 10, 10)}, ErrTruncated},
		{"pointer without values", []das.Felt{header(0, 1, 0, 0, 0, 0, 0, 0, 1), das.Zero()}, ErrInvalidPointer},
		{"garbage above header", []das.Felt{das.NewFelt(new(big.Int).Lsh(big.NewInt(1), 200))}, ErrNonCanonicalPacking},
		{
			// one raw value but two elements both drawn from bucket 0
			"bucket overflow",
			[]das.Felt{header(0, 2, 1), das.FeltFromUint64(3), packFelts(fromUsize([]uint64{0, 0}), bucketIndexBound)[0]},
			ErrBucketOverflow,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Codec{}.Decompress(tc.felts)
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestElmsPerFelt(t *testing.T) {
	for _, tc := range []struct {
		bound uint64
		want  int
	}{
		{0, 251},
		{1, 251},
		{2, 251},
		{7, 83},
		{1 << 15, 16},
		{1 << 20, 12},
		{1 << 31, 8},
	} {
		require.Equal(t, tc.want, elmsPerFelt(uint256.NewInt(tc.bound)), "bound=%d", tc.bound)
	}
	require.Equal(t, 2, elmsPerFelt(bucketBounds[1]))
	require.Equal(t, 3, elmsPerFelt(bucketBounds[2]))
	require.Equal(t, 1, elmsPerFelt(new(uint256.Int).Lsh(uint256.NewInt(1), 126)))
}

func TestPackUnpackRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(12))
	for _, bound := range []uint64{1, 2, 7, 1000, 1 << 20} {
		elms := make([]uint64, 97)
		for i := range elms {
			if bound > 1 {
				elms[i] = uint64(rng.Int63n(int64(bound)))
			}
		}
		b := uint256.NewInt(bound)
		packed := packFelts(fromUsize(elms), b)
		require.Len(t, packed, packedLen(len(elms), b))

		got, err := unpackFelts(packed, b, len(elms))
		require.NoError(t, err)
		require.Equal(t, elms, toUsize(got), "bound=%d", bound)
	}
}
