package idxmap

import (
	"context"
	"encoding/csv"
	"io"
	"math/big"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/harborx/harborx/das"
)

// DefaultImportBatch is the number of entries written per batch by Import.
const DefaultImportBatch = 4096

// ParseNumber parses a decimal or 0x-prefixed hex field element. Hex input
// may carry leading zeros and an odd number of digits.
func ParseNumber(s string) (das.Felt, error) {
	s = strings.TrimSpace(s)
	var v *big.Int
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		digits := s[2:]
		if len(digits)%2 == 1 {
			digits = "0" + digits
		}
		b, err := hexutil.Decode("0x" + digits)
		if err != nil {
			return das.Felt{}, errors.Wrapf(err, "idxmap: bad hex %q", s)
		}
		v = new(big.Int).SetBytes(b)
	} else {
		var ok bool
		if v, ok = new(big.Int).SetString(s, 10); !ok || v.Sign() < 0 {
			return das.Felt{}, errors.Newf("idxmap: bad number %q", s)
		}
	}
	if v.Cmp(das.Modulus()) >= 0 {
		return das.Felt{}, errors.Newf("idxmap: %q is not below the field modulus", s)
	}
	return das.NewFelt(v), nil
}

// Import reads "idx,val" CSV records from r and writes them to w in batches
// of batchSize (DefaultImportBatch when zero or negative). An "idx,val"
// header and '#' comment lines are skipped. It returns the number of
// entries written.
func Import(ctx context.Context, r io.Reader, w Writer, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = DefaultImportBatch
	}
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 2
	cr.Comment = '#'
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	batch := make([]Entry, 0, batchSize)
	total := 0
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := w.PutMany(ctx, batch); err != nil {
			return err
		}
		total += len(batch)
		batch = batch[:0]
		return nil
	}

	for first := true; ; first = false {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return total, errors.Wrap(err, "idxmap: reading csv")
		}
		if first && strings.EqualFold(strings.TrimSpace(rec[0]), "idx") {
			continue
		}
		line, _ := cr.FieldPos(0)
		idx, err := ParseNumber(rec[0])
		if err != nil {
			return total, errors.Wrapf(err, "line %d", line)
		}
		val, err := ParseNumber(rec[1])
		if err != nil {
			return total, errors.Wrapf(err, "line %d", line)
		}
		batch = append(batch, Entry{Index: idx, Value: val})
		if len(batch) == batchSize {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}
	if err := flush(); err != nil {
		return total, err
	}
	return total, nil
}
