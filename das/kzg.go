package das

import (
	"crypto/sha256"

	"github.com/cockroachdb/errors"
	goethkzg "github.com/crate-crypto/go-eth-kzg"
	"github.com/ethereum/go-ethereum/common"
)

// blobCommitmentVersionKZG is the version byte of EIP-4844 versioned hashes.
const blobCommitmentVersionKZG = 0x01

// KZG computes blob commitments with the Ethereum ceremony setup so decoded
// frames can be matched against the versioned hashes carried on L1.
type KZG struct {
	ctx *goethkzg.Context
}

// NewKZG loads the trusted setup. This takes a few seconds.
func NewKZG() (*KZG, error) {
	ctx, err := goethkzg.NewContext4096Secure()
	if err != nil {
		return nil, errors.Wrap(err, "das: initializing kzg context")
	}
	return &KZG{ctx: ctx}, nil
}

// Commitment returns the 48-byte KZG commitment of blob. Every word must be
// a canonical BLS12-381 scalar.
func (k *KZG) Commitment(blob []byte) ([48]byte, error) {
	var out [48]byte
	if len(blob) != BlobSize {
		return out, &InvalidBlobLengthError{Length: len(blob)}
	}
	var b goethkzg.Blob
	copy(b[:], blob)
	comm, err := k.ctx.BlobToKZGCommitment(&b, 0)
	if err != nil {
		return out, errors.Wrap(err, "das: blob commitment")
	}
	return [48]byte(comm), nil
}

// VersionedHash returns the EIP-4844 versioned hash of blob:
// 0x01 || sha256(commitment)[1:].
func (k *KZG) VersionedHash(blob []byte) (common.Hash, error) {
	comm, err := k.Commitment(blob)
	if err != nil {
		return common.Hash{}, err
	}
	h := common.Hash(sha256.Sum256(comm[:]))
	h[0] = blobCommitmentVersionKZG
	return h, nil
}
