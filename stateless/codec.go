// codec.go implements Starknet's stateless compression of felt streams
// (compression version 0): values are grouped into unique-value buckets by
// bit length, repeats are replaced by pointers, and a per-element bucket
// index restores the original order.
package stateless

import (
	"github.com/cockroachdb/errors"
	"github.com/harborx/harborx/das"
	"github.com/holiman/uint256"
)

// Compression format constants.
const (
	// CompressionVersion is the only version this codec understands.
	CompressionVersion = 0

	headerElmBits  = 20
	headerElmBound = 1 << headerElmBits

	nUniqueBuckets = 6
	totalNBuckets  = nUniqueBuckets + 1
	repeatingIndex = nUniqueBuckets

	// version, data length, unique bucket lengths, repeating value count.
	headerLen = 1 + 1 + nUniqueBuckets + 1

	rawBucketBits = 252
)

// bucketBits lists the unique-value buckets in stream order.
var bucketBits = [nUniqueBuckets]int{rawBucketBits, 125, 83, 62, 31, 15}

// bucketsBySize lists bucket indices from the narrowest bucket up.
var bucketsBySize = [nUniqueBuckets]int{5, 4, 3, 2, 1, 0}

var (
	headerBound  = usizeBound(headerElmBound)
	bucketBounds = func() [nUniqueBuckets]*uint256.Int {
		var out [nUniqueBuckets]*uint256.Int
		for i, b := range bucketBits {
			if b != rawBucketBits {
				out[i] = new(uint256.Int).Lsh(uint256.NewInt(1), uint(b))
			}
		}
		return out
	}()
	bucketIndexBound = usizeBound(totalNBuckets)
)

// Decompressor restores a felt stream from a compressed suffix. Implementations
// return an error value for any input that does not start with a valid
// compressed stream; they must not panic on garbage.
type Decompressor interface {
	Decompress(felts []das.Felt) ([]das.Felt, error)
}

// DecompressorFunc adapts a function to the Decompressor interface.
type DecompressorFunc func(felts []das.Felt) ([]das.Felt, error)

// Decompress calls f(felts).
func (f DecompressorFunc) Decompress(felts []das.Felt) ([]das.Felt, error) { return f(felts) }

// Codec is the version 0 stateless codec. The zero value is ready to use.
type Codec struct{}

var _ Decompressor = Codec{}

type reader struct {
	felts []das.Felt
	pos   int
}

func (r *reader) remaining() int { return len(r.felts) - r.pos }

func (r *reader) take(n int) ([]das.Felt, error) {
	if n > r.remaining() {
		return nil, ErrTruncated
	}
	out := r.felts[r.pos : r.pos+n]
	r.pos += n
	return out, nil
}

func (r *reader) unpack(n int, bound *uint256.Int) ([]uint256.Int, error) {
	packed, err := r.take(packedLen(n, bound))
	if err != nil {
		return nil, err
	}
	return unpackFelts(packed, bound, n)
}

// Decompress implements Decompressor. Only the leading part of felts that
// forms the compressed stream is read; trailing felts are ignored.
func (Codec) Decompress(felts []das.Felt) ([]das.Felt, error) {
	r := reader{felts: felts}

	// The header fits in a single packed felt, so structurally invalid
	// offsets are rejected after reading one element.
	raw, err := r.unpack(headerLen, headerBound)
	if err != nil {
		return nil, err
	}
	header := toUsize(raw)
	if header[0] != CompressionVersion {
		return nil, ErrUnsupportedVersion
	}
	dataLen := int(header[1])
	if dataLen == 0 {
		return nil, ErrEmptyOutput
	}
	var bucketLens [totalNBuckets]int
	nUnique := 0
	for i := 0; i < nUniqueBuckets; i++ {
		bucketLens[i] = int(header[2+i])
		nUnique += bucketLens[i]
	}
	nRepeating := int(header[2+nUniqueBuckets])
	bucketLens[repeatingIndex] = nRepeating
	pointerBound := usizeBound(uint64(nUnique))

	if nRepeating > 0 && nUnique == 0 {
		return nil, ErrInvalidPointer
	}

	// Check the declared layout fits before allocating anything.
	need := 0
	for i, n := range bucketLens[:nUniqueBuckets] {
		if bucketBits[i] == rawBucketBits {
			need += n
		} else {
			need += packedLen(n, bucketBounds[i])
		}
	}
	need += packedLen(nRepeating, pointerBound) + packedLen(dataLen, bucketIndexBound)
	if need > r.remaining() {
		return nil, ErrTruncated
	}

	values := make([]das.Felt, 0, nUnique+nRepeating)
	for i, n := range bucketLens[:nUniqueBuckets] {
		if bucketBits[i] == rawBucketBits {
			chunk, err := r.take(n)
			if err != nil {
				return nil, err
			}
			values = append(values, chunk...)
			continue
		}
		elms, err := r.unpack(n, bucketBounds[i])
		if err != nil {
			return nil, err
		}
		for j := range elms {
			values = append(values, fromU256(&elms[j]))
		}
	}

	rawPointers, err := r.unpack(nRepeating, pointerBound)
	if err != nil {
		return nil, err
	}
	for _, p := range toUsize(rawPointers) {
		values = append(values, values[p])
	}

	rawIndices, err := r.unpack(dataLen, bucketIndexBound)
	if err != nil {
		return nil, err
	}

	var cursor, end [totalNBuckets]int
	off := 0
	for i, n := range bucketLens {
		cursor[i] = off
		off += n
		end[i] = off
	}
	out := make([]das.Felt, dataLen)
	for i, b := range toUsize(rawIndices) {
		if cursor[b] >= end[b] {
			return nil, ErrBucketOverflow
		}
		out[i] = values[cursor[b]]
		cursor[b]++
	}
	return out, nil
}

type location struct {
	bucket int
	index  int
}

// Compress encodes values with the version 0 scheme. It is the inverse of
// Decompress.
func (Codec) Compress(values []das.Felt) ([]das.Felt, error) {
	if len(values) == 0 {
		return nil, errors.New("stateless: nothing to compress")
	}
	if len(values) >= headerElmBound {
		return nil, errors.Newf("stateless: %d values exceed the header bound %d", len(values), headerElmBound)
	}

	var buckets [nUniqueBuckets][]das.Felt
	var seen [nUniqueBuckets]map[das.Felt]int
	for i := range seen {
		seen[i] = make(map[das.Felt]int)
	}
	var repeating []location
	indices := make([]uint64, 0, len(values))

	for _, v := range values {
		bl := v.BitLen()
		for _, b := range bucketsBySize {
			if bl > bucketBits[b] {
				continue
			}
			if idx, ok := seen[b][v]; ok {
				repeating = append(repeating, location{bucket: b, index: idx})
				indices = append(indices, repeatingIndex)
			} else {
				seen[b][v] = len(buckets[b])
				buckets[b] = append(buckets[b], v)
				indices = append(indices, uint64(b))
			}
			break
		}
	}

	header := make([]uint64, 0, headerLen)
	header = append(header, CompressionVersion, uint64(len(values)))
	var offsets [nUniqueBuckets]int
	nUnique := 0
	for i := range buckets {
		offsets[i] = nUnique
		nUnique += len(buckets[i])
		header = append(header, uint64(len(buckets[i])))
	}
	header = append(header, uint64(len(repeating)))

	pointers := make([]uint64, len(repeating))
	for i, loc := range repeating {
		pointers[i] = uint64(offsets[loc.bucket] + loc.index)
	}

	out := packFelts(fromUsize(header), headerBound)
	for i, bucket := range buckets {
		if bucketBits[i] == rawBucketBits {
			out = append(out, bucket...)
			continue
		}
		elms := make([]uint256.Int, len(bucket))
		for j, v := range bucket {
			elms[j] = toU256(v)
		}
		out = append(out, packFelts(elms, bucketBounds[i])...)
	}
	out = append(out, packFelts(fromUsize(pointers), usizeBound(uint64(nUnique)))...)
	out = append(out, packFelts(fromUsize(indices), bucketIndexBound)...)
	return out, nil
}
