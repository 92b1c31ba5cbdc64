package stateless

import (
	"github.com/harborx/harborx/das"
	"github.com/holiman/uint256"
)

// maxPackedBits is the number of bits of a felt usable for packing.
const maxPackedBits = 251

// elmsPerFelt returns how many elements below bound share one packed felt.
func elmsPerFelt(bound *uint256.Int) int {
	if bound.IsUint64() && bound.Uint64() <= 1 {
		return maxPackedBits
	}
	if bound.Cmp(halfFeltBound) > 0 {
		return 1
	}
	return maxPackedBits / log2Ceil(bound)
}

// halfFeltBound is 2^(maxPackedBits/2).
var halfFeltBound = new(uint256.Int).Lsh(uint256.NewInt(1), maxPackedBits/2)

func log2Ceil(x *uint256.Int) int {
	var m uint256.Int
	m.SubUint64(x, 1)
	return m.BitLen()
}

func packedLen(n int, bound *uint256.Int) int {
	if n == 0 {
		return 0
	}
	per := elmsPerFelt(bound)
	return (n + per - 1) / per
}

func toU256(f das.Felt) uint256.Int {
	b := f.Bytes()
	var u uint256.Int
	u.SetBytes32(b[:])
	return u
}

func fromU256(u *uint256.Int) das.Felt {
	b := u.Bytes32()
	return das.FeltFromBytes(b[:])
}

// unpackFelts splits packed into n elements below bound. Each packed felt
// holds elmsPerFelt(bound) elements, least significant first. Unused slots
// and bits above the last slot must be zero.
func unpackFelts(packed []das.Felt, bound *uint256.Int, n int) ([]uint256.Int, error) {
	per := elmsPerFelt(bound)
	trivial := bound.IsUint64() && bound.Uint64() <= 1
	out := make([]uint256.Int, 0, n)
	for _, f := range packed {
		v := toU256(f)
		if trivial {
			if !v.IsZero() {
				return nil, ErrNonCanonicalPacking
			}
			for i := 0; i < per && len(out) < n; i++ {
				out = append(out, uint256.Int{})
			}
			continue
		}
		for i := 0; i < per; i++ {
			var r uint256.Int
			r.Mod(&v, bound)
			v.Div(&v, bound)
			if len(out) < n {
				out = append(out, r)
			} else if !r.IsZero() {
				return nil, ErrNonCanonicalPacking
			}
		}
		if !v.IsZero() {
			return nil, ErrNonCanonicalPacking
		}
	}
	if len(out) != n {
		return nil, ErrTruncated
	}
	return out, nil
}

// packFelts is the inverse of unpackFelts. Every element must be below bound.
func packFelts(elms []uint256.Int, bound *uint256.Int) []das.Felt {
	per := elmsPerFelt(bound)
	out := make([]das.Felt, 0, packedLen(len(elms), bound))
	for start := 0; start < len(elms); start += per {
		end := start + per
		if end > len(elms) {
			end = len(elms)
		}
		var acc uint256.Int
		for i := end - 1; i >= start; i-- {
			acc.Mul(&acc, bound)
			acc.Add(&acc, &elms[i])
		}
		out = append(out, fromU256(&acc))
	}
	return out
}

func usizeBound(n uint64) *uint256.Int { return uint256.NewInt(n) }

func toUsize(elms []uint256.Int) []uint64 {
	out := make([]uint64, len(elms))
	for i := range elms {
		out[i] = elms[i].Uint64()
	}
	return out
}

func fromUsize(vs []uint64) []uint256.Int {
	out := make([]uint256.Int, len(vs))
	for i, v := range vs {
		out[i].SetUint64(v)
	}
	return out
}
