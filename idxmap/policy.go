// Package idxmap resolves index surrogates in decoded state diffs back to
// the literal addresses and storage keys they stand for.
//
// Some historical encodings replace large addresses and keys with small
// integer indices into an external table. A Policy tells literals from
// surrogates, a Store holds the table, and a Resolver combines the two with
// pass-through semantics: anything not found is returned unchanged.
package idxmap

import "github.com/harborx/harborx/das"

// DefaultMaxLiteralBits is the widest value treated as a literal by
// DefaultPolicy.
const DefaultMaxLiteralBits = 127

// Policy classifies a value as a literal or a surrogate.
type Policy interface {
	IsLiteral(v das.Felt) bool
}

// BitLengthPolicy treats values of at most MaxLiteralBits bits as literals.
type BitLengthPolicy struct {
	MaxLiteralBits int
}

// IsLiteral implements Policy.
func (p BitLengthPolicy) IsLiteral(v das.Felt) bool { return v.BitLen() <= p.MaxLiteralBits }

// DefaultPolicy is the threshold used by the v0.13 encodings.
var DefaultPolicy Policy = BitLengthPolicy{MaxLiteralBits: DefaultMaxLiteralBits}

// PolicyFunc adapts a function to the Policy interface.
type PolicyFunc func(v das.Felt) bool

// IsLiteral calls f(v).
func (f PolicyFunc) IsLiteral(v das.Felt) bool { return f(v) }
