// Package fixedpoint provides checked unsigned arithmetic for pool reserves and
// prices. Every operation either returns an exact result or ErrArithmetic; none
// of them wrap or saturate.
package fixedpoint

import (
	"errors"
	"fmt"
	"math"
	"math/bits"

	"github.com/holiman/uint256"
)

// ErrArithmetic is returned on overflow, underflow, division by zero or a
// narrowing that does not fit.
var ErrArithmetic = errors.New("arithmetic error")

// PriceScale is the fixed-point denominator of quoted prices (1.0 == 1_000_000).
const PriceScale uint64 = 1_000_000

// wideBits bounds widened intermediates to 128 bits.
const wideBits = 128

// MaxStored is the largest amount a signed 64-bit SQL column holds.
const MaxStored uint64 = math.MaxInt64

// Storable fails with ErrArithmetic when any value exceeds MaxStored.
func Storable(values ...uint64) error {
	for _, v := range values {
		if v > MaxStored {
			return fmt.Errorf("%w: %d exceeds storable maximum %d", ErrArithmetic, v, MaxStored)
		}
	}
	return nil
}

func Add(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, ErrArithmetic
	}
	return sum, nil
}

func Sub(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, ErrArithmetic
	}
	return diff, nil
}

func Mul(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, ErrArithmetic
	}
	return lo, nil
}

// Div is floor division.
func Div(a, b uint64) (uint64, error) {
	if b == 0 {
		return 0, ErrArithmetic
	}
	return a / b, nil
}

// Wide is an unsigned intermediate bounded to 128 bits. The zero value is 0.
type Wide struct {
	v uint256.Int
}

// Widen promotes x to a wide intermediate. It cannot fail.
func Widen(x uint64) Wide {
	var w Wide
	w.v.SetUint64(x)
	return w
}

func (w Wide) Mul(x Wide) (Wide, error) {
	var out Wide
	if _, overflow := out.v.MulOverflow(&w.v, &x.v); overflow || out.v.BitLen() > wideBits {
		return Wide{}, ErrArithmetic
	}
	return out, nil
}

func (w Wide) MulUint64(x uint64) (Wide, error) {
	return w.Mul(Widen(x))
}

func (w Wide) Add(x Wide) (Wide, error) {
	var out Wide
	if _, overflow := out.v.AddOverflow(&w.v, &x.v); overflow || out.v.BitLen() > wideBits {
		return Wide{}, ErrArithmetic
	}
	return out, nil
}

func (w Wide) Sub(x Wide) (Wide, error) {
	var out Wide
	if _, underflow := out.v.SubOverflow(&w.v, &x.v); underflow {
		return Wide{}, ErrArithmetic
	}
	return out, nil
}

// Div is floor division of two wide values.
func (w Wide) Div(x Wide) (Wide, error) {
	if x.v.IsZero() {
		return Wide{}, ErrArithmetic
	}
	var out Wide
	out.v.Div(&w.v, &x.v)
	return out, nil
}

func (w Wide) DivUint64(x uint64) (Wide, error) {
	return w.Div(Widen(x))
}

// Uint64 narrows w back to 64 bits, failing if it does not fit.
func (w Wide) Uint64() (uint64, error) {
	if !w.v.IsUint64() {
		return 0, ErrArithmetic
	}
	return w.v.Uint64(), nil
}

func (w Wide) IsZero() bool { return w.v.IsZero() }

func (w Wide) Cmp(x Wide) int { return w.v.Cmp(&x.v) }

func (w Wide) String() string { return w.v.Dec() }

// MulDiv computes floor(a*b/c) through a widened product.
func MulDiv(a, b, c uint64) (uint64, error) {
	product, err := Widen(a).MulUint64(b)
	if err != nil {
		return 0, err
	}
	quotient, err := product.DivUint64(c)
	if err != nil {
		return 0, err
	}
	return quotient.Uint64()
}
