package statediff

import (
	"encoding/json"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// WriteRows writes rows as newline-delimited JSON.
func WriteRows(w io.Writer, rows []KVRow) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for i := range rows {
		if err := enc.Encode(&rows[i]); err != nil {
			return errors.Wrapf(err, "statediff: writing row %d", i)
		}
	}
	return nil
}

// ReadRows reads newline-delimited JSON rows until EOF.
func ReadRows(r io.Reader) ([]KVRow, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	var rows []KVRow
	for {
		var row KVRow
		err := dec.Decode(&row)
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, errors.Wrapf(err, "statediff: reading row %d", len(rows))
		}
		rows = append(rows, row)
	}
}

// RowsDigest returns the keccak256 of the rows' NDJSON encoding. Two decodes
// of the same frame produce the same digest.
func RowsDigest(rows []KVRow) common.Hash {
	h := sha3.NewLegacyKeccak256()
	// hash.Hash writes never fail.
	_ = WriteRows(h, rows)
	var out common.Hash
	h.Sum(out[:0])
	return out
}
