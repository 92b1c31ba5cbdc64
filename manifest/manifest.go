// Package manifest groups blob files into decodable frames.
//
// A frame is the set of blobs posted by one L1 transaction. Only complete
// frames (blob indices 0..k with no gaps or duplicates) are kept.
package manifest

import (
	"cmp"
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// DefaultFileName is the manifest name written next to a blob directory.
const DefaultFileName = "decoder_manifest.json"

// BlobFile is one blob on disk and the transaction it belongs to.
type BlobFile struct {
	EthBlock uint64
	TxHash   string
	Index    int
	Path     string
}

// Blob is a manifest reference to a blob file.
type Blob struct {
	Path string `json:"path"`
}

// Entry is one frame: the blobs of one transaction in index order.
type Entry struct {
	EthBlock      uint64 `json:"eth_block"`
	StarknetBlock uint64 `json:"starknet_block"`
	TxHash        string `json:"tx_hash,omitempty"`
	Blobs         []Blob `json:"blobs"`
}

// ID names the frame in output file names.
func (e *Entry) ID() string {
	if e.TxHash == "" {
		return strconv.FormatUint(e.EthBlock, 10)
	}
	return strconv.FormatUint(e.EthBlock, 10) + "_" + strings.TrimPrefix(strings.ToLower(e.TxHash), "0x")
}

// Paths returns the entry's blob paths in index order.
func (e *Entry) Paths() []string {
	out := make([]string, len(e.Blobs))
	for i, b := range e.Blobs {
		out[i] = b.Path
	}
	return out
}

// Manifest is the list of frames to decode.
type Manifest struct {
	Entries []Entry `json:"entries"`
}

type groupKey struct {
	block uint64
	tx    string
}

// Group builds a manifest from blob files. Files are grouped by (EthBlock,
// TxHash) and ordered by index; groups whose indices are not exactly 0..k
// are dropped and counted in the second result. Entries are ordered by
// block, then transaction hash. Paths are made absolute.
func Group(files []BlobFile) (Manifest, int, error) {
	groups := make(map[groupKey][]BlobFile)
	for _, f := range files {
		k := groupKey{f.EthBlock, f.TxHash}
		groups[k] = append(groups[k], f)
	}

	keys := make([]groupKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b groupKey) int {
		if c := cmp.Compare(a.block, b.block); c != 0 {
			return c
		}
		return strings.Compare(a.tx, b.tx)
	})

	var m Manifest
	dropped := 0
	for _, k := range keys {
		g := groups[k]
		slices.SortStableFunc(g, func(a, b BlobFile) int { return cmp.Compare(a.Index, b.Index) })
		if !complete(g) {
			dropped++
			continue
		}
		e := Entry{EthBlock: k.block, TxHash: k.tx, Blobs: make([]Blob, len(g))}
		for i, f := range g {
			abs, err := filepath.Abs(f.Path)
			if err != nil {
				return Manifest{}, 0, errors.Wrapf(err, "manifest: resolving %s", f.Path)
			}
			e.Blobs[i] = Blob{Path: abs}
		}
		m.Entries = append(m.Entries, e)
	}
	return m, dropped, nil
}

func complete(sorted []BlobFile) bool {
	for i, f := range sorted {
		if f.Index != i {
			return false
		}
	}
	return len(sorted) > 0
}

// ReadListing reads "eth_block,tx_hash,index,path" CSV records. A header
// row starting with "eth_block" is skipped.
func ReadListing(r io.Reader) ([]BlobFile, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 4
	cr.Comment = '#'
	cr.TrimLeadingSpace = true

	var out []BlobFile
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, errors.Wrap(err, "manifest: reading listing")
		}
		if len(out) == 0 && rec[0] == "eth_block" {
			continue
		}
		line, _ := cr.FieldPos(0)
		block, err := strconv.ParseUint(rec[0], 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "manifest: line %d: eth_block", line)
		}
		idx, err := strconv.Atoi(rec[2])
		if err != nil {
			return nil, errors.Wrapf(err, "manifest: line %d: index", line)
		}
		out = append(out, BlobFile{EthBlock: block, TxHash: rec[1], Index: idx, Path: rec[3]})
	}
}

// Load reads a manifest from path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "manifest: reading")
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrapf(err, "manifest: parsing %s", path)
	}
	for i := range m.Entries {
		if len(m.Entries[i].Blobs) == 0 {
			return nil, errors.Newf("manifest: entry %d (block %d) has no blobs", i, m.Entries[i].EthBlock)
		}
	}
	return &m, nil
}

// Save writes m to path as indented JSON, creating parent directories.
func Save(path string, m *Manifest) error {
	if m.Entries == nil {
		m = &Manifest{Entries: []Entry{}}
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return errors.Wrap(err, "manifest: encoding")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "manifest: creating directory")
	}
	return errors.Wrap(os.WriteFile(path, append(data, '\n'), 0o644), "manifest: writing")
}
