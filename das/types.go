// Package das decodes EIP-4844 data-availability blobs published by Starknet
// into field elements of the Starknet prime field. It covers the field
// arithmetic, the number-theoretic transform between evaluation and
// coefficient form, blob parsing and the unpacking of per-blob coefficients
// into a single felt stream.
package das

// Blob layout constants.
const (
	// FieldElementsPerBlob is the number of field elements in a blob (4096).
	FieldElementsPerBlob = 4096

	// BytesPerFieldElement is the size of one big-endian word in a blob.
	BytesPerFieldElement = 32

	// BlobSize is the byte size of a blob (131072).
	BlobSize = FieldElementsPerBlob * BytesPerFieldElement
)

// EvaluationVector holds the values of a blob polynomial at the 4096-point
// evaluation domain, in the order they appear in the blob.
type EvaluationVector []Felt

// CoefficientVector holds the coefficients of a blob polynomial.
type CoefficientVector []Felt
