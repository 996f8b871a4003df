package lending

import (
	"testing"

	"github.com/holiman/uint256"
)

func TestPriceFromIDUnitPrice(t *testing.T) {
	price, err := PriceFromID(binIDShift, 25)
	if err != nil {
		t.Fatalf("price from id: %v", err)
	}
	if price.Cmp(scale128) != 0 {
		t.Fatalf("bin at shift should price 1.0, got %s", price.Hex())
	}
	dec, err := ToDecimal18(price)
	if err != nil {
		t.Fatalf("to decimal: %v", err)
	}
	if dec.Cmp(wad) != 0 {
		t.Fatalf("unit price should be 1e18, got %s", dec)
	}
}

func TestPriceFromIDOneStepUp(t *testing.T) {
	price, err := PriceFromID(binIDShift+1, 25)
	if err != nil {
		t.Fatalf("price from id: %v", err)
	}
	dec, err := ToDecimal18(price)
	if err != nil {
		t.Fatalf("to decimal: %v", err)
	}
	// One bin above the shift with a 25bp step is 1.0025, allowing for
	// fixed-point truncation.
	low := uint256.NewInt(1_002_499_999_999_990_000)
	high := uint256.NewInt(1_002_500_000_000_000_000)
	if dec.Lt(low) || dec.Gt(high) {
		t.Fatalf("expected ~1.0025e18, got %s", dec)
	}
}

func TestPriceFromIDNegativeExponent(t *testing.T) {
	up, err := PriceFromID(binIDShift+1, 25)
	if err != nil {
		t.Fatalf("price up: %v", err)
	}
	down, err := PriceFromID(binIDShift-1, 25)
	if err != nil {
		t.Fatalf("price down: %v", err)
	}
	if !down.Lt(scale128) {
		t.Fatalf("price below shift should be under 1.0, got %s", down.Hex())
	}
	// The two prices are reciprocal: their 128.128 product is ~1.0.
	product, err := mulShift128(up, down)
	if err != nil {
		t.Fatalf("mul: %v", err)
	}
	diff := new(uint256.Int)
	if product.Lt(scale128) {
		diff.Sub(scale128, product)
	} else {
		diff.Sub(product, scale128)
	}
	// Tolerate rounding in the last few bits of the fractional part.
	if diff.Gt(new(uint256.Int).Lsh(uint256.NewInt(1), 100)) {
		t.Fatalf("reciprocal drift too large: %s", diff.Hex())
	}
}

func TestPriceFromIDMonotone(t *testing.T) {
	prev, err := PriceFromID(binIDShift, 50)
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	for i := uint32(1); i <= 64; i *= 2 {
		next, err := PriceFromID(binIDShift+i, 50)
		if err != nil {
			t.Fatalf("price at +%d: %v", i, err)
		}
		if !next.Gt(prev) {
			t.Fatalf("price not increasing at +%d", i)
		}
		prev = next
	}
}

func TestPriceFromIDExponentBound(t *testing.T) {
	if _, err := PriceFromID(binIDShift+maxBinExponent, 25); err != errExponentTooLarge {
		t.Fatalf("expected exponent bound error, got %v", err)
	}
	// id 0 has magnitude 2^23, far beyond the bound.
	if _, err := PriceFromID(0, 25); err != errExponentTooLarge {
		t.Fatalf("expected exponent bound error for id 0, got %v", err)
	}
}

func TestCalculateTWAP(t *testing.T) {
	// Cumulative ids advancing by a constant bin over 600 seconds.
	early := uint64(binIDShift) * 1_000
	late := early + uint64(binIDShift+40)*600
	avg, err := CalculateTWAP(early, late, 600)
	if err != nil {
		t.Fatalf("twap: %v", err)
	}
	if avg != binIDShift+40 {
		t.Fatalf("unexpected average bin: %d", avg)
	}
}

func TestCalculateTWAPRejectsBadWindows(t *testing.T) {
	if _, err := CalculateTWAP(10, 20, 0); err != errTWAPWindow {
		t.Fatalf("expected window error, got %v", err)
	}
	if _, err := CalculateTWAP(20, 10, 5); err != errTWAPOrder {
		t.Fatalf("expected order error, got %v", err)
	}
}
