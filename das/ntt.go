// ntt.go implements the radix-2 number-theoretic transform used to move blob
// polynomials between evaluation form and coefficient form.
package das

import (
	"math/big"
	"math/bits"

	"github.com/cockroachdb/errors"
)

// Domain is a multiplicative subgroup of power-of-two size together with the
// constants the transform needs. A Domain is immutable and safe for
// concurrent use.
type Domain struct {
	size      int
	logSize   int
	generator uint64
	root      Felt
	sizeInv   Felt
}

var defaultDomain = NewDomain(FieldElementsPerBlob, Generator)

// DefaultDomain returns the 4096-point domain derived from Generator.
func DefaultDomain() *Domain { return defaultDomain }

// NewDomain derives the size-point domain from generator g. size must be a
// power of two dividing P-1; otherwise NewDomain panics.
func NewDomain(size int, g uint64) *Domain {
	if size <= 0 || size&(size-1) != 0 {
		panic(errors.AssertionFailedf("das: domain size %d is not a power of two", size))
	}
	return &Domain{
		size:      size,
		logSize:   bits.TrailingZeros(uint(size)),
		generator: g,
		root:      RootOfUnityWithGenerator(g, uint64(size)),
		sizeInv:   mustInverse(FeltFromUint64(uint64(size))),
	}
}

// Size returns the number of points in the domain.
func (d *Domain) Size() int { return d.size }

// Generator returns the generator the domain was derived from.
func (d *Domain) Generator() uint64 { return d.generator }

// Root returns the domain's root of unity.
func (d *Domain) Root() Felt { return d.root }

// Primitive reports whether the root has order exactly Size. Transforms over
// a non-primitive root are not invertible.
func (d *Domain) Primitive() bool {
	if d.size == 1 {
		return true
	}
	half := new(big.Int).SetUint64(uint64(d.size / 2))
	return !d.root.Exp(half).Equal(One())
}

// Transform runs the iterative Cooley-Tukey transform over v in place. With
// inverse set, the twiddles are inverted and the result is scaled by 1/n.
// len(v) must equal Size.
func (d *Domain) Transform(v []Felt, inverse bool) {
	n := d.size
	if len(v) != n {
		panic(errors.AssertionFailedf("das: transform of %d elements over domain of size %d", len(v), n))
	}
	BitReversePermute(v)

	twiddles := make([]Felt, n/2)
	for m := 2; m <= n; m <<= 1 {
		step := d.root.Exp(big.NewInt(int64(n / m)))
		if inverse {
			step = mustInverse(step)
		}
		half := m / 2
		w := One()
		for j := 0; j < half; j++ {
			twiddles[j] = w
			w = w.Mul(step)
		}
		for k := 0; k < n; k += m {
			for j := 0; j < half; j++ {
				u := v[k+j]
				t := v[k+j+half].Mul(twiddles[j])
				v[k+j] = u.Add(t)
				v[k+j+half] = u.Sub(t)
			}
		}
	}

	if inverse {
		for i := range v {
			v[i] = v[i].Mul(d.sizeInv)
		}
	}
}

// BitReversePermute moves the element at i to reverse_bits(i, log2(len(v))).
// Applying it twice restores the original order. len(v) must be a power of
// two (or zero).
func BitReversePermute(v []Felt) {
	n := len(v)
	if n <= 1 {
		return
	}
	if n&(n-1) != 0 {
		panic(errors.AssertionFailedf("das: bit reversal of non power-of-two length %d", n))
	}
	shift := bits.UintSize - bits.TrailingZeros(uint(n))
	for i := 0; i < n; i++ {
		j := int(bits.Reverse(uint(i)) >> shift)
		if j > i {
			v[i], v[j] = v[j], v[i]
		}
	}
}

func domainFor(n int) *Domain {
	if n == defaultDomain.size {
		return defaultDomain
	}
	return NewDomain(n, Generator)
}

// Transform runs the transform over v in place using the domain of size
// len(v) derived from Generator.
func Transform(v []Felt, inverse bool) {
	domainFor(len(v)).Transform(v, inverse)
}

// Forward maps coefficients to evaluations in place.
func Forward(v []Felt) { Transform(v, false) }

// Inverse maps evaluations to coefficients in place.
func Inverse(v []Felt) { Transform(v, true) }
