package stateless

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Candidate rejection reasons. These are returned on the scan's hot path and
// are allocated once.
var (
	ErrTruncated           = errors.New("stateless: stream truncated")
	ErrUnsupportedVersion  = errors.New("stateless: unsupported compression version")
	ErrNonCanonicalPacking = errors.New("stateless: non-canonical packed felt")
	ErrInvalidPointer      = errors.New("stateless: repeating value pointer out of range")
	ErrBucketOverflow      = errors.New("stateless: bucket index exceeds bucket length")
	ErrEmptyOutput         = errors.New("stateless: empty decompressed stream")
)

// ErrHeaderNotFound matches every HeaderNotFoundError.
var ErrHeaderNotFound = errors.New("stateless: compressed stream header not found")

// HeaderNotFoundError is returned when no offset in [From, To) starts a valid
// compressed stream, or when the scan's context ends first.
type HeaderNotFoundError struct {
	From     int
	To       int
	Attempts int
	// LastErr is the rejection reason of the last attempted offset.
	LastErr error
	// Cause is set when the scan stopped because its context was done.
	Cause error
}

func (e *HeaderNotFoundError) Error() string {
	msg := fmt.Sprintf("stateless: no compressed stream header in offsets [%d, %d) after %d attempts",
		e.From, e.To, e.Attempts)
	if e.Cause != nil {
		msg += fmt.Sprintf(" (stopped: %v)", e.Cause)
	}
	if e.LastErr != nil {
		msg += fmt.Sprintf("; last error: %v", e.LastErr)
	}
	return msg
}

// Is lets errors.Is(err, ErrHeaderNotFound) match.
func (e *HeaderNotFoundError) Is(target error) bool { return target == ErrHeaderNotFound }

// Unwrap exposes the context error when the scan was cut short, otherwise
// the last rejection reason.
func (e *HeaderNotFoundError) Unwrap() error {
	if e.Cause != nil {
		return e.Cause
	}
	return e.LastErr
}
