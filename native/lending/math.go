package lending

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"
)

// All ledger amounts, prices and indexes are unsigned 256-bit integers.
// Arithmetic that would wrap, underflow or divide by zero fails with an error
// instead of producing a value inconsistent with exact integer arithmetic.

const bpsDen = 10_000

var (
	errMathOverflow  = errors.New("lending math: overflow")
	errMathUnderflow = errors.New("lending math: underflow")
	errDivideByZero  = errors.New("lending math: division by zero")
)

var (
	// wad is the 1e18 fixed-point scale shared by prices, indexes and the
	// health factor.
	wad = uint256.NewInt(1_000_000_000_000_000_000)
	// bps is the basis-point denominator.
	bps = uint256.NewInt(bpsDen)

	uOne = uint256.NewInt(1)
)

func checkedAdd(a, b *uint256.Int) (*uint256.Int, error) {
	sum, overflow := new(uint256.Int).AddOverflow(a, b)
	if overflow {
		return nil, errMathOverflow
	}
	return sum, nil
}

func checkedSub(a, b *uint256.Int) (*uint256.Int, error) {
	if a.Lt(b) {
		return nil, errMathUnderflow
	}
	return new(uint256.Int).Sub(a, b), nil
}

func checkedMul(a, b *uint256.Int) (*uint256.Int, error) {
	product, overflow := new(uint256.Int).MulOverflow(a, b)
	if overflow {
		return nil, errMathOverflow
	}
	return product, nil
}

func checkedDiv(a, b *uint256.Int) (*uint256.Int, error) {
	if b.IsZero() {
		return nil, errDivideByZero
	}
	return new(uint256.Int).Div(a, b), nil
}

// mulDiv computes a*b/den at full precision: the intermediate product is
// taken over arbitrary-precision integers so a quotient that fits 256 bits is
// never rejected just because the product does not.
func mulDiv(a, b, den *uint256.Int) (*uint256.Int, error) {
	if den.IsZero() {
		return nil, errDivideByZero
	}
	product := new(big.Int).Mul(a.ToBig(), b.ToBig())
	product.Quo(product, den.ToBig())
	out, overflow := uint256.FromBig(product)
	if overflow {
		return nil, errMathOverflow
	}
	return out, nil
}

// mulBP scales a value by a basis-point fraction: value*bp/10000.
func mulBP(value *uint256.Int, bp uint64) (*uint256.Int, error) {
	return mulDiv(value, uint256.NewInt(bp), bps)
}

// divBP divides a value by a basis-point fraction: value*10000/bp.
func divBP(value *uint256.Int, bp uint64) (*uint256.Int, error) {
	if bp == 0 {
		return nil, errDivideByZero
	}
	return mulDiv(value, bps, uint256.NewInt(bp))
}

func minU(a, b *uint256.Int) *uint256.Int {
	if a.Lt(b) {
		return a
	}
	return b
}

func maxU(a, b *uint256.Int) *uint256.Int {
	if a.Gt(b) {
		return a
	}
	return b
}

func isPositive(v *uint256.Int) bool {
	return v != nil && !v.IsZero()
}

// cloneOrZero copies the value, mapping nil to zero so deserialized records
// are always safe to compute with.
func cloneOrZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(v)
}

// pow10 returns 10^n. Token decimal counts beyond 77 would overflow 256 bits
// and are rejected.
func pow10(n uint8) (*uint256.Int, error) {
	out := new(uint256.Int).Set(uOne)
	ten := uint256.NewInt(10)
	for i := uint8(0); i < n; i++ {
		var overflow bool
		out, overflow = new(uint256.Int).MulOverflow(out, ten)
		if overflow {
			return nil, errMathOverflow
		}
	}
	return out, nil
}
