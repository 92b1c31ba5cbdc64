package statediff

import (
	"context"

	"github.com/harborx/harborx/das"
)

// Resolver maps possibly-surrogate values back to literal felts. The result
// has the same length as values; unresolved values are returned unchanged.
type Resolver interface {
	Resolve(ctx context.Context, values []das.Felt) []das.Felt
}

// Flatten emits one row per storage update, in parser order. Contract
// addresses and storage keys go through r in a single batch; values are
// always literal. A nil r leaves every value unchanged.
func Flatten(ctx context.Context, diff *StateDiff, r Resolver) []KVRow {
	n := diff.NumStorageUpdates()
	if n == 0 {
		return nil
	}

	// Addresses first, then all keys in order.
	lookup := make([]das.Felt, 0, len(diff.Contracts)+n)
	for i := range diff.Contracts {
		lookup = append(lookup, diff.Contracts[i].Address)
	}
	for i := range diff.Contracts {
		for _, e := range diff.Contracts[i].Storage {
			lookup = append(lookup, e.Key)
		}
	}
	resolved := lookup
	if r != nil {
		resolved = r.Resolve(ctx, lookup)
	}
	addrs, keys := resolved[:len(diff.Contracts)], resolved[len(diff.Contracts):]

	rows := make([]KVRow, 0, n)
	k := 0
	for i := range diff.Contracts {
		cu := &diff.Contracts[i]
		addr := addrs[i].String()
		var classHash, nonce string
		if cu.ClassHash != nil {
			classHash = cu.ClassHash.String()
		}
		if cu.Nonce != nil {
			nonce = cu.Nonce.String()
		}
		for _, e := range cu.Storage {
			rows = append(rows, KVRow{
				Addr:      addr,
				Key:       keys[k].String(),
				Value:     e.Value.String(),
				ClassHash: classHash,
				Nonce:     nonce,
			})
			k++
		}
	}
	return rows
}
