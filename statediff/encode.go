package statediff

import (
	"github.com/cockroachdb/errors"
	"github.com/harborx/harborx/das"
	"github.com/holiman/uint256"
)

// EncodeSegment serializes diff in the v0.13.1 data-availability layout read
// by ParseSegment. A nil or zero nonce is encoded as zero and parses back as
// absent.
func EncodeSegment(diff *StateDiff) ([]das.Felt, error) {
	out := make([]das.Felt, 0, 2+3*len(diff.Contracts)+2*diff.NumStorageUpdates()+2*len(diff.DeclaredClasses))
	out = append(out, das.FeltFromUint64(uint64(len(diff.Contracts))))

	for i := range diff.Contracts {
		cu := &diff.Contracts[i]
		w := uint256.NewInt(uint64(len(cu.Storage)))
		if cu.Nonce != nil {
			if cu.Nonce.BitLen() > nonceBits {
				return nil, errors.Newf("statediff: contract %d nonce %s exceeds %d bits", i, cu.Nonce, nonceBits)
			}
			nonce := new(uint256.Int).SetUint64(cu.Nonce.BigInt().Uint64())
			w.Or(w, nonce.Lsh(nonce, nUpdatesBits))
		}
		if cu.ClassHash != nil {
			w.Or(w, new(uint256.Int).Lsh(uint256.NewInt(1), classFlagBit))
		}
		b := w.Bytes32()

		out = append(out, cu.Address, das.FeltFromBytes(b[:]))
		if cu.ClassHash != nil {
			out = append(out, *cu.ClassHash)
		}
		for _, e := range cu.Storage {
			out = append(out, e.Key, e.Value)
		}
	}

	out = append(out, das.FeltFromUint64(uint64(len(diff.DeclaredClasses))))
	for _, dc := range diff.DeclaredClasses {
		out = append(out, dc.ClassHash, dc.CompiledClassHash)
	}
	return out, nil
}
