package stateless

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/harborx/harborx/das"
	"github.com/harborx/harborx/log"
)

// DefaultMaxScan bounds the number of candidate header offsets tried.
const DefaultMaxScan = 16384

// ctxCheckInterval is how many offsets are tried between context checks.
const ctxCheckInterval = 64

// ErrNoDecompressor is returned by a Scanner without a Decompressor.
var ErrNoDecompressor = errors.New("stateless: scanner has no decompressor")

// Result is the outcome of a successful scan.
type Result struct {
	// Felts is the decompressed stream.
	Felts []das.Felt
	// Offset is the position of the compressed stream's header.
	Offset int
	// Attempts is the number of offsets tried, including the accepted one.
	Attempts int
}

// Scanner finds the start of a compressed stream inside a felt stream by
// trying every offset from zero until one decompresses to a non-empty
// stream.
type Scanner struct {
	Decompressor Decompressor
	// MaxScan bounds the offsets tried; zero or negative means DefaultMaxScan.
	MaxScan int
	Logger  *log.Logger
}

// NewScanner returns a scanner over d with the default bound.
func NewScanner(d Decompressor) *Scanner {
	return &Scanner{Decompressor: d, MaxScan: DefaultMaxScan}
}

func (s *Scanner) limit(n int) int {
	bound := s.MaxScan
	if bound <= 0 {
		bound = DefaultMaxScan
	}
	if n < bound {
		return n
	}
	return bound
}

// Scan tries offsets 0, 1, ... up to min(MaxScan, len(felts)) and returns the
// first successful decompression. When no offset succeeds it returns a
// *HeaderNotFoundError whose Attempts equals the number of offsets tried. A
// done context stops the scan with a *HeaderNotFoundError carrying the
// context error.
func (s *Scanner) Scan(ctx context.Context, felts []das.Felt) (Result, error) {
	if s.Decompressor == nil {
		return Result{}, ErrNoDecompressor
	}
	limit := s.limit(len(felts))

	var last error
	for off := 0; off < limit; off++ {
		if off%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return Result{}, &HeaderNotFoundError{From: 0, To: limit, Attempts: off, LastErr: last, Cause: err}
			}
		}
		out, err := s.Decompressor.Decompress(felts[off:])
		if err == nil && len(out) == 0 {
			err = ErrEmptyOutput
		}
		if err != nil {
			last = err
			continue
		}
		if s.Logger != nil {
			s.Logger.Debug("Found compressed stream header", "offset", off, "decompressed", len(out))
		}
		return Result{Felts: out, Offset: off, Attempts: off + 1}, nil
	}
	return Result{}, &HeaderNotFoundError{From: 0, To: limit, Attempts: limit, LastErr: last}
}
