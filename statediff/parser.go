package statediff

import (
	"github.com/cockroachdb/errors"
	"github.com/harborx/harborx/das"
	"github.com/harborx/harborx/log"
	"github.com/holiman/uint256"
)

// DefaultWindow bounds the candidate segment start offsets tried by
// SegmentParser.
const DefaultWindow = 256

// Contract header word layout: class_flag·2^128 + nonce·2^64 + n_updates.
const (
	nUpdatesBits  = 64
	nonceBits     = 64
	classFlagBit  = nUpdatesBits + nonceBits
	headerWordLen = classFlagBit + 1
)

// Parse failures.
var (
	ErrTruncated          = errors.New("statediff: segment truncated")
	ErrBadContractHeader  = errors.New("statediff: malformed contract header word")
	ErrCountOutOfRange    = errors.New("statediff: element count exceeds remaining stream")
	ErrNoStateDiffSegment = errors.New("statediff: no state-diff segment found")
)

// Parser locates and parses the state-diff section of decompressed program
// output. When debug is set implementations log their progress.
type Parser interface {
	ExtractStateDiff(felts []das.Felt, debug bool) (Extraction, error)
}

// SegmentParser parses the v0.13.1 data-availability segment. It tries start
// offsets 0, 1, ... below Window and accepts the first one that parses.
type SegmentParser struct {
	// Window bounds the start offsets tried; zero or negative means
	// DefaultWindow.
	Window int
	Logger *log.Logger
}

var _ Parser = (*SegmentParser)(nil)

// NewSegmentParser returns a parser with the default window.
func NewSegmentParser() *SegmentParser {
	return &SegmentParser{Window: DefaultWindow}
}

func (p *SegmentParser) logger() *log.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return log.Default().Module("statediff")
}

// ExtractStateDiff implements Parser.
func (p *SegmentParser) ExtractStateDiff(felts []das.Felt, debug bool) (Extraction, error) {
	window := p.Window
	if window <= 0 {
		window = DefaultWindow
	}
	limit := min(window, len(felts))

	last := ErrTruncated
	for start := 0; start < limit; start++ {
		diff, used, err := ParseSegment(felts[start:])
		if err != nil {
			if debug {
				p.logger().Debug("Rejected state-diff start", "start", start, "err", err)
			}
			last = err
			continue
		}
		if debug {
			p.logger().Debug("Found state-diff segment", "start", start, "used", used,
				"contracts", len(diff.Contracts), "declared", len(diff.DeclaredClasses))
		}
		return Extraction{Diff: diff, Start: start, Used: used}, nil
	}
	return Extraction{}, errors.Mark(
		errors.Wrapf(last, "statediff: no segment in offsets [0, %d)", limit),
		ErrNoStateDiffSegment)
}

type cursor struct {
	felts []das.Felt
	pos   int
}

func (c *cursor) remaining() int { return len(c.felts) - c.pos }

func (c *cursor) next() (das.Felt, error) {
	if c.pos >= len(c.felts) {
		return das.Felt{}, ErrTruncated
	}
	f := c.felts[c.pos]
	c.pos++
	return f, nil
}

// count reads a length prefix for items of perItem felts each and checks the
// items fit in the rest of the stream.
func (c *cursor) count(perItem int) (int, error) {
	f, err := c.next()
	if err != nil {
		return 0, err
	}
	if f.BitLen() > 32 {
		return 0, ErrCountOutOfRange
	}
	n := int(f.BigInt().Uint64())
	if n*perItem > c.remaining() {
		return 0, ErrCountOutOfRange
	}
	return n, nil
}

// ParseSegment parses a state-diff segment starting at felts[0] and returns
// it with the number of felts consumed. Trailing felts are ignored.
func ParseSegment(felts []das.Felt) (StateDiff, int, error) {
	c := &cursor{felts: felts}
	var diff StateDiff

	nContracts, err := c.count(2)
	if err != nil {
		return StateDiff{}, 0, err
	}
	diff.Contracts = make([]ContractUpdate, 0, nContracts)
	for i := 0; i < nContracts; i++ {
		cu, err := parseContract(c)
		if err != nil {
			return StateDiff{}, 0, errors.Wrapf(err, "contract %d", i)
		}
		diff.Contracts = append(diff.Contracts, cu)
	}

	nDeclared, err := c.count(2)
	if err != nil {
		return StateDiff{}, 0, errors.Wrap(err, "declared classes")
	}
	diff.DeclaredClasses = make([]DeclaredClass, nDeclared)
	for i := range diff.DeclaredClasses {
		// count already checked that both felts are present.
		diff.DeclaredClasses[i].ClassHash, _ = c.next()
		diff.DeclaredClasses[i].CompiledClassHash, _ = c.next()
	}
	return diff, c.pos, nil
}

func parseContract(c *cursor) (ContractUpdate, error) {
	var cu ContractUpdate
	var err error
	if cu.Address, err = c.next(); err != nil {
		return cu, err
	}
	word, err := c.next()
	if err != nil {
		return cu, err
	}
	if word.BitLen() > headerWordLen {
		return cu, ErrBadContractHeader
	}
	b := word.Bytes()
	w := new(uint256.Int).SetBytes32(b[:])

	nUpdates := w.Uint64()
	nonce := new(uint256.Int).Rsh(w, nUpdatesBits).Uint64()
	classFlag := new(uint256.Int).Rsh(w, classFlagBit).Uint64()

	if nonce != 0 {
		n := das.FeltFromUint64(nonce)
		cu.Nonce = &n
	}
	if classFlag == 1 {
		h, err := c.next()
		if err != nil {
			return cu, err
		}
		cu.ClassHash = &h
	}
	if nUpdates > uint64(c.remaining()/2) {
		return cu, ErrCountOutOfRange
	}
	cu.Storage = make([]StorageEntry, nUpdates)
	for i := range cu.Storage {
		cu.Storage[i].Key, _ = c.next()
		cu.Storage[i].Value, _ = c.next()
	}
	return cu, nil
}
