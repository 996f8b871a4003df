package lending

import (
	"errors"
	"math"
	"math/big"

	"github.com/holiman/uint256"
)

// Bin-price math for discretized liquidity-book oracles. A pair quotes bin
// ids rather than prices; the real price for a bin is
//
//	price = (1 + binStep/10000)^(id - 2^23)
//
// computed in 128.128 fixed point. The 2^23 shift centers the id space so
// prices below 1.0 are representable with unsigned ids.

const (
	// binIDShift is the bin id that maps to a price of exactly 1.0.
	binIDShift = 1 << 23
	// maxBinExponent bounds the magnitude of the exponent; anything at or
	// beyond it would leave the representable 128.128 price range.
	maxBinExponent = 1 << 20
)

var (
	errExponentTooLarge = errors.New("bin price: exponent magnitude exceeds 2^20")
	errPriceOutOfRange  = errors.New("bin price: result outside 128.128 range")
	errTWAPWindow       = errors.New("bin price: twap time delta must be positive")
	errTWAPOrder        = errors.New("bin price: late cumulative sample below early sample")
	errBinIDRange       = errors.New("bin price: averaged bin id exceeds id space")
)

// scale128 is 1.0 in 128.128 fixed point.
var scale128 = new(uint256.Int).Lsh(uint256.NewInt(1), 128)

// mulShift128 multiplies two 128.128 values, keeping full precision in the
// intermediate product before shifting back down.
func mulShift128(a, b *uint256.Int) (*uint256.Int, error) {
	product := new(big.Int).Mul(a.ToBig(), b.ToBig())
	product.Rsh(product, 128)
	out, overflow := uint256.FromBig(product)
	if overflow {
		return nil, errPriceOutOfRange
	}
	return out, nil
}

// PriceFromID resolves the 128.128 fixed-point price of a bin id for the
// given bin step (in basis points), using binary exponentiation. Negative
// exponents invert the positive power against the maximum representable
// value.
func PriceFromID(id uint32, binStep uint16) (*uint256.Int, error) {
	exponent := int64(id) - binIDShift
	negative := exponent < 0
	magnitude := uint64(exponent)
	if negative {
		magnitude = uint64(-exponent)
	}
	if magnitude >= maxBinExponent {
		return nil, errExponentTooLarge
	}

	// base = 1 + binStep/10000 in 128.128.
	step := new(uint256.Int).Lsh(uint256.NewInt(uint64(binStep)), 128)
	step.Div(step, bps)
	base := new(uint256.Int).Add(scale128, step)

	result := new(uint256.Int).Set(scale128)
	square := new(uint256.Int).Set(base)
	var err error
	for m := magnitude; m > 0; m >>= 1 {
		if m&1 == 1 {
			if result, err = mulShift128(result, square); err != nil {
				return nil, err
			}
		}
		if m > 1 {
			if square, err = mulShift128(square, square); err != nil {
				return nil, err
			}
		}
	}

	if negative {
		if result.IsZero() {
			return nil, errPriceOutOfRange
		}
		result = new(uint256.Int).Div(new(uint256.Int).SetAllOne(), result)
	}
	if result.IsZero() {
		return nil, errPriceOutOfRange
	}
	return result, nil
}

// ToDecimal18 converts a 128.128 fixed-point price into an 18-decimal
// integer price.
func ToDecimal18(price *uint256.Int) (*uint256.Int, error) {
	scaled := new(big.Int).Mul(price.ToBig(), wad.ToBig())
	scaled.Rsh(scaled, 128)
	out, overflow := uint256.FromBig(scaled)
	if overflow {
		return nil, errPriceOutOfRange
	}
	return out, nil
}

// CalculateTWAP averages the bin id traversed between two cumulative oracle
// samples: (late - early) / timeDelta. The window must be positive and the
// samples monotone.
func CalculateTWAP(earlyCumulative, lateCumulative, timeDelta uint64) (uint32, error) {
	if timeDelta == 0 {
		return 0, errTWAPWindow
	}
	if lateCumulative < earlyCumulative {
		return 0, errTWAPOrder
	}
	avg := (lateCumulative - earlyCumulative) / timeDelta
	if avg > math.MaxUint32 {
		return 0, errBinIDRange
	}
	return uint32(avg), nil
}
