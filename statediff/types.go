// Package statediff parses the Starknet data-availability state-diff segment
// out of decompressed program output and flattens it into key/value rows.
package statediff

import "github.com/harborx/harborx/das"

// StorageEntry is one storage slot update.
type StorageEntry struct {
	Key   das.Felt
	Value das.Felt
}

// ContractUpdate groups the updates applied to one contract. ClassHash and
// Nonce are nil when the segment did not carry them.
type ContractUpdate struct {
	Address   das.Felt
	ClassHash *das.Felt
	Nonce     *das.Felt
	Storage   []StorageEntry
}

// DeclaredClass records a class declared in the block.
type DeclaredClass struct {
	ClassHash         das.Felt
	CompiledClassHash das.Felt
}

// StateDiff is the parsed state-diff segment. Values may still be index
// surrogates; see Flatten.
type StateDiff struct {
	Contracts       []ContractUpdate
	DeclaredClasses []DeclaredClass
}

// NumStorageUpdates returns the total number of storage entries.
func (d *StateDiff) NumStorageUpdates() int {
	n := 0
	for i := range d.Contracts {
		n += len(d.Contracts[i].Storage)
	}
	return n
}

// Extraction is a parsed state diff together with its position in the
// decompressed stream.
type Extraction struct {
	Diff StateDiff
	// Start is the offset of the segment in the input stream.
	Start int
	// Used is the number of felts the segment occupies.
	Used int
}

// KVRow is one flattened storage update. All values are decimal strings.
type KVRow struct {
	Addr      string `json:"addr"`
	Key       string `json:"key"`
	Value     string `json:"value"`
	ClassHash string `json:"class_hash,omitempty"`
	Nonce     string `json:"nonce,omitempty"`
}
