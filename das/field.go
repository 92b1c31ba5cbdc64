package das

import (
	"math/big"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/consensys/gnark-crypto/ecc/stark-curve/fp"
)

// Generator is the multiplicative generator used to derive the evaluation
// domain's roots of unity.
//
// LegacyGenerator is the constant used by earlier Python tooling. It is a
// quadratic residue modulo P, so the roots it yields are not primitive for
// any power-of-two size above one and transforms built on them are not
// invertible. It is kept so those outputs can be reproduced.
const (
	Generator       uint64 = 3
	LegacyGenerator uint64 = 5
)

// Starknet prime: P = 2^251 + 17*2^192 + 1.
var (
	modulus = fp.Modulus()

	pMinus1 = new(big.Int).Sub(modulus, big.NewInt(1))
	bigOne  = big.NewInt(1)
)

// ErrNoInverse is returned (wrapped in a NoInverseError) when an element has
// no multiplicative inverse modulo P.
var ErrNoInverse = errors.New("das: no modular inverse")

// NoInverseError reports the operand whose inverse was requested.
type NoInverseError struct {
	Value Felt
}

func (e *NoInverseError) Error() string {
	return "das: no modular inverse for " + e.Value.String()
}

// Is lets errors.Is(err, ErrNoInverse) match.
func (e *NoInverseError) Is(target error) bool { return target == ErrNoInverse }

// Felt is a field element modulo P. The zero value is 0 and every Felt is
// canonically reduced. Felt is comparable and may be used as a map key.
type Felt struct {
	e fp.Element
}

// Modulus returns a copy of P.
func Modulus() *big.Int {
	return new(big.Int).Set(modulus)
}

// NewFelt reduces v modulo P. Negative values wrap around.
func NewFelt(v *big.Int) Felt {
	r := new(big.Int).Mod(v, modulus)
	var f Felt
	f.e.SetBigInt(r)
	return f
}

// FeltFromUint64 returns v as a field element.
func FeltFromUint64(v uint64) Felt {
	var f Felt
	f.e.SetUint64(v)
	return f
}

// FeltFromBytes interprets b as an unsigned big-endian integer and reduces it
// modulo P. Any length is accepted.
func FeltFromBytes(b []byte) Felt {
	return NewFelt(new(big.Int).SetBytes(b))
}

// ParseFelt parses a decimal or 0x-prefixed hexadecimal integer. Values
// outside [0, P) are rejected rather than reduced.
func ParseFelt(s string) (Felt, error) {
	s = strings.TrimSpace(s)
	base := 10
	digits := s
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		base, digits = 16, s[2:]
	}
	v, ok := new(big.Int).SetString(digits, base)
	if !ok {
		return Felt{}, errors.Newf("das: invalid field element %q", s)
	}
	if v.Sign() < 0 || v.Cmp(modulus) >= 0 {
		return Felt{}, errors.Newf("das: field element %q out of range", s)
	}
	return NewFelt(v), nil
}

// Zero returns the additive identity.
func Zero() Felt { return Felt{} }

// One returns the multiplicative identity.
func One() Felt { return FeltFromUint64(1) }

// IsZero reports whether a is zero.
func (a Felt) IsZero() bool { return a.e.IsZero() }

// Equal reports whether a and b are the same element.
func (a Felt) Equal(b Felt) bool { return a.e.Equal(&b.e) }

// Add returns a + b mod P.
func (a Felt) Add(b Felt) Felt {
	var r Felt
	r.e.Add(&a.e, &b.e)
	return r
}

// Sub returns a - b mod P.
func (a Felt) Sub(b Felt) Felt {
	var r Felt
	r.e.Sub(&a.e, &b.e)
	return r
}

// Mul returns a * b mod P.
func (a Felt) Mul(b Felt) Felt {
	var r Felt
	r.e.Mul(&a.e, &b.e)
	return r
}

// Neg returns -a mod P.
func (a Felt) Neg() Felt {
	var r Felt
	r.e.Neg(&a.e)
	return r
}

// Exp returns a^k mod P.
func (a Felt) Exp(k *big.Int) Felt {
	var r Felt
	r.e.Exp(a.e, k)
	return r
}

// BigInt returns the canonical integer value of a.
func (a Felt) BigInt() *big.Int {
	return a.e.BigInt(new(big.Int))
}

// BitLen returns the bit length of the canonical integer value of a.
func (a Felt) BitLen() int {
	return a.BigInt().BitLen()
}

// Bytes returns the 32-byte big-endian encoding of a.
func (a Felt) Bytes() [32]byte {
	return a.e.Bytes()
}

// String returns the decimal representation of a.
func (a Felt) String() string {
	return a.BigInt().Text(10)
}

// ModInverse returns a^{-1} mod P, computed with the extended Euclidean
// algorithm. It fails with ErrNoInverse when gcd(a, P) != 1, which for a
// prime modulus only happens for a == 0.
func ModInverse(a Felt) (Felt, error) {
	v := a.BigInt()
	if v.Sign() == 0 {
		return Felt{}, &NoInverseError{Value: a}
	}
	x := new(big.Int)
	g := new(big.Int).GCD(x, nil, v, modulus)
	if g.Cmp(bigOne) != 0 {
		return Felt{}, &NoInverseError{Value: a}
	}
	return NewFelt(x), nil
}

// mustInverse is ModInverse for operands known to be non-zero.
func mustInverse(a Felt) Felt {
	inv, err := ModInverse(a)
	if err != nil {
		panic(errors.NewAssertionErrorWithWrappedErrf(err, "das: inverse of domain constant"))
	}
	return inv
}

// RootOfUnity returns Generator^((P-1)/n) mod P.
// n must be a power of two dividing P-1; anything else is a programming error
// and panics.
func RootOfUnity(n uint64) Felt {
	return RootOfUnityWithGenerator(Generator, n)
}

// RootOfUnityWithGenerator returns g^((P-1)/n) mod P under the same
// preconditions as RootOfUnity.
func RootOfUnityWithGenerator(g, n uint64) Felt {
	if n == 0 || n&(n-1) != 0 {
		panic(errors.AssertionFailedf("das: root of unity order %d is not a power of two", n))
	}
	bn := new(big.Int).SetUint64(n)
	q, r := new(big.Int).QuoRem(pMinus1, bn, new(big.Int))
	if r.Sign() != 0 {
		panic(errors.AssertionFailedf("das: root of unity order %d does not divide P-1", n))
	}
	return FeltFromUint64(g).Exp(q)
}
