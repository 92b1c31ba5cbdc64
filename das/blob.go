package das

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// ErrInvalidBlobLength matches every InvalidBlobLengthError.
var ErrInvalidBlobLength = errors.New("das: invalid blob length")

// InvalidBlobLengthError is returned for blobs that are not BlobSize bytes.
// Index is the blob's position within its frame.
type InvalidBlobLengthError struct {
	Index  int
	Length int
}

func (e *InvalidBlobLengthError) Error() string {
	return fmt.Sprintf("das: blob %d: length must be %d bytes, got %d", e.Index, BlobSize, e.Length)
}

// Is lets errors.Is(err, ErrInvalidBlobLength) match.
func (e *InvalidBlobLengthError) Is(target error) bool { return target == ErrInvalidBlobLength }

// DecodeEvaluations splits blob into 4096 big-endian 32-byte words and
// reduces each modulo P. Out-of-range words are accepted and reduced.
func DecodeEvaluations(blob []byte) (EvaluationVector, error) {
	if len(blob) != BlobSize {
		return nil, &InvalidBlobLengthError{Length: len(blob)}
	}
	evals := make(EvaluationVector, FieldElementsPerBlob)
	for i := range evals {
		off := i * BytesPerFieldElement
		evals[i] = FeltFromBytes(blob[off : off+BytesPerFieldElement])
	}
	return evals, nil
}

// DecodeCoefficients decodes blob over the default domain.
func DecodeCoefficients(blob []byte) (CoefficientVector, error) {
	return defaultDomain.DecodeCoefficients(blob)
}

// DecodeCoefficients returns the coefficient form of blob. Blob evaluations
// are stored in bit-reversed domain order, so they are permuted into natural
// order before the inverse transform.
func (d *Domain) DecodeCoefficients(blob []byte) (CoefficientVector, error) {
	if d.size != FieldElementsPerBlob {
		return nil, errors.AssertionFailedf("das: blob decoding needs a %d-point domain, have %d",
			FieldElementsPerBlob, d.size)
	}
	evals, err := DecodeEvaluations(blob)
	if err != nil {
		return nil, err
	}
	BitReversePermute(evals)
	d.Transform(evals, true)
	return CoefficientVector(evals), nil
}

// EncodeBlob is the inverse of DecodeCoefficients over the default domain.
func EncodeBlob(coeffs CoefficientVector) ([]byte, error) {
	return defaultDomain.EncodeBlob(coeffs)
}

// EncodeBlob evaluates coeffs over the domain and serializes the evaluations
// in bit-reversed order. coeffs is not modified.
func (d *Domain) EncodeBlob(coeffs CoefficientVector) ([]byte, error) {
	if len(coeffs) != FieldElementsPerBlob || d.size != FieldElementsPerBlob {
		return nil, errors.Newf("das: cannot encode %d coefficients into a blob", len(coeffs))
	}
	evals := make([]Felt, len(coeffs))
	copy(evals, coeffs)
	d.Transform(evals, false)
	BitReversePermute(evals)

	blob := make([]byte, BlobSize)
	for i, e := range evals {
		w := e.Bytes()
		copy(blob[i*BytesPerFieldElement:], w[:])
	}
	return blob, nil
}
