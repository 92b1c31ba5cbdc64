// Package decoder turns the blobs of one Starknet frame into flat state-diff
// rows: blob bytes, evaluations, coefficients, felt stream, decompressed
// program output, state diff, rows.
package decoder

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/harborx/harborx/das"
	"github.com/harborx/harborx/idxmap"
	"github.com/harborx/harborx/log"
	"github.com/harborx/harborx/metrics"
	"github.com/harborx/harborx/statediff"
	"github.com/harborx/harborx/stateless"
)

// Decoder runs the decode pipeline. It holds no per-frame state and is safe
// for concurrent use.
type Decoder struct {
	cfg      Config
	domain   *das.Domain
	unpacker das.Unpacker
	scanner  *stateless.Scanner
	parser   statediff.Parser
	resolver *idxmap.Resolver
	kzg      *das.KZG
	logger   *log.Logger
}

// Result is a decoded frame with the positions found along the way.
type Result struct {
	Rows []statediff.KVRow
	// Felts is the length of the unpacked felt stream.
	Felts int
	// HeaderOffset is where the compressed stream starts in the felt stream.
	HeaderOffset int
	ScanAttempts int
	// Decompressed is the length of the decompressed stream.
	Decompressed int
	SegmentStart int
	SegmentUsed  int
	// VersionedHashes holds one hash per blob when enabled.
	VersionedHashes []common.Hash
	// Digest is the keccak256 of the rows' NDJSON encoding.
	Digest common.Hash
}

// New builds a Decoder. Collaborators not passed as options default to the
// concat unpacker, the stateless codec and the segment parser; passing one
// explicitly as nil fails with *MissingCollaboratorError.
func New(cfg Config, opts ...Option) (*Decoder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := options{
		unpacker:     das.ConcatUnpacker{},
		decompressor: stateless.Codec{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.Default().Module("decoder")
	}
	if o.parser == nil && !o.set["parser"] {
		o.parser = &statediff.SegmentParser{Window: cfg.ParseWindow, Logger: o.logger.Module("statediff")}
	}

	for _, c := range []struct {
		name  string
		isNil bool
	}{
		{"unpacker", o.unpacker == nil},
		{"decompressor", o.decompressor == nil},
		{"parser", o.parser == nil},
	} {
		if c.isNil || (cfg.RequireExplicit && !o.set[c.name]) {
			return nil, &MissingCollaboratorError{Name: c.name}
		}
	}

	domain := das.DefaultDomain()
	if cfg.Generator != 0 && cfg.Generator != domain.Generator() {
		domain = das.NewDomain(das.FieldElementsPerBlob, cfg.Generator)
	}
	if !domain.Primitive() {
		o.logger.Warn("NTT root is not a primitive root of unity; coefficients will not match the encoder",
			"generator", domain.Generator())
	}

	if cfg.ComputeVersionedHashes && o.kzg == nil {
		k, err := das.NewKZG()
		if err != nil {
			return nil, err
		}
		o.kzg = k
	}

	return &Decoder{
		cfg:      cfg,
		domain:   domain,
		unpacker: o.unpacker,
		scanner: &stateless.Scanner{
			Decompressor: o.decompressor,
			MaxScan:      cfg.MaxScan,
			Logger:       o.logger.Module("stateless"),
		},
		parser:   o.parser,
		resolver: idxmap.NewResolver(o.store, o.policy, o.logger.Module("idxmap")),
		kzg:      o.kzg,
		logger:   o.logger,
	}, nil
}

// Config returns the decoder's configuration.
func (d *Decoder) Config() Config { return d.cfg }

// Decode decodes one frame and returns its rows.
func (d *Decoder) Decode(ctx context.Context, blobs [][]byte) ([]statediff.KVRow, error) {
	res, err := d.DecodeFrame(ctx, blobs)
	if err != nil {
		return nil, err
	}
	return res.Rows, nil
}

// DecodeFrame decodes the blobs of one frame, given in ascending blob index
// order. It stops at the first failing stage and returns no partial rows.
func (d *Decoder) DecodeFrame(ctx context.Context, blobs [][]byte) (*Result, error) {
	start := time.Now()
	res, err := d.decodeFrame(ctx, blobs)
	if err != nil {
		metrics.FrameErrors.Inc()
		return nil, err
	}
	metrics.FramesDecoded.Inc()
	metrics.RowsEmitted.Add(float64(len(res.Rows)))
	metrics.DecodeTime.Observe(float64(time.Since(start).Milliseconds()))
	return res, nil
}

func (d *Decoder) decodeFrame(ctx context.Context, blobs [][]byte) (*Result, error) {
	if len(blobs) == 0 {
		return nil, ErrNoBlobs
	}
	res := &Result{}

	coeffs := make([]das.CoefficientVector, len(blobs))
	for i, b := range blobs {
		c, err := d.domain.DecodeCoefficients(b)
		if err != nil {
			var ible *das.InvalidBlobLengthError
			if errors.As(err, &ible) {
				ible.Index = i
			}
			return nil, err
		}
		coeffs[i] = c
		metrics.BlobsDecoded.Inc()
	}
	if d.kzg != nil {
		res.VersionedHashes = d.versionedHashes(blobs)
	}
	d.logger.Debug("Decoded blob coefficients", "blobs", len(blobs))
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "decoder: cancelled before unpacking")
	}

	felts, err := d.unpacker.Unpack(coeffs)
	if err != nil {
		return nil, &UnpackError{Blobs: len(blobs), Cause: err}
	}
	res.Felts = len(felts)
	d.logger.Debug("Unpacked felt stream", "felts", len(felts))
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "decoder: cancelled before header scan")
	}

	scan, err := d.scanner.Scan(ctx, felts)
	if err != nil {
		metrics.HeadersNotFound.Inc()
		return nil, err
	}
	metrics.ScanAttempts.Observe(float64(scan.Attempts))
	res.HeaderOffset, res.ScanAttempts, res.Decompressed = scan.Offset, scan.Attempts, len(scan.Felts)
	d.logger.Debug("Decompressed program output", "header", scan.Offset, "attempts", scan.Attempts,
		"felts", len(scan.Felts))

	ex, err := d.parser.ExtractStateDiff(scan.Felts, d.cfg.Debug)
	if err != nil {
		return nil, &ProgramOutputParseError{Felts: len(scan.Felts), Cause: err}
	}
	res.SegmentStart, res.SegmentUsed = ex.Start, ex.Used
	d.logger.Debug("Parsed state diff", "start", ex.Start, "used", ex.Used,
		"contracts", len(ex.Diff.Contracts), "declared", len(ex.Diff.DeclaredClasses))
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "decoder: cancelled before flattening")
	}

	res.Rows = statediff.Flatten(ctx, &ex.Diff, d.resolver)
	res.Digest = statediff.RowsDigest(res.Rows)
	return res, nil
}

// versionedHashes is best effort: a blob that is not a valid EIP-4844 blob
// is logged and leaves the hashes unset.
func (d *Decoder) versionedHashes(blobs [][]byte) []common.Hash {
	out := make([]common.Hash, len(blobs))
	for i, b := range blobs {
		h, err := d.kzg.VersionedHash(b)
		if err != nil {
			d.logger.Warn("Cannot compute blob versioned hash", "blob", i, "err", err)
			return nil
		}
		out[i] = h
	}
	return out
}
