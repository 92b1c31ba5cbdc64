package das

import (
	"github.com/cockroachdb/errors"
)

// Unpacker turns the coefficient vectors of one frame, in ascending blob
// index order, into the felt stream the rollup encoded.
type Unpacker interface {
	Unpack(coeffs []CoefficientVector) ([]Felt, error)
}

// UnpackerFunc adapts a function to the Unpacker interface.
type UnpackerFunc func(coeffs []CoefficientVector) ([]Felt, error)

// Unpack calls f(coeffs).
func (f UnpackerFunc) Unpack(coeffs []CoefficientVector) ([]Felt, error) { return f(coeffs) }

// ConcatUnpacker treats every coefficient as one felt and concatenates the
// blobs in order. This is the layout Starknet uses since v0.13.1, where each
// coefficient is a Cairo felt.
type ConcatUnpacker struct{}

// Unpack implements Unpacker.
func (ConcatUnpacker) Unpack(coeffs []CoefficientVector) ([]Felt, error) {
	if len(coeffs) == 0 {
		return nil, errors.New("das: no coefficient vectors to unpack")
	}
	out := make([]Felt, 0, len(coeffs)*FieldElementsPerBlob)
	for i, c := range coeffs {
		if len(c) != FieldElementsPerBlob {
			return nil, errors.Newf("das: coefficient vector %d has %d elements, want %d",
				i, len(c), FieldElementsPerBlob)
		}
		out = append(out, c...)
	}
	return out, nil
}
