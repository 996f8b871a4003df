package lending

import (
	"testing"

	"github.com/holiman/uint256"
)

func testInterestParams() InterestParams {
	return InterestParams{
		BaseRateBps:    200,
		OptimalUtilBps: 8000,
		Slope1Bps:      1000,
		Slope2Bps:      6000,
	}
}

func TestUtilization(t *testing.T) {
	if got := Utilization(uint256.NewInt(500), uint256.NewInt(1000)); got != 5000 {
		t.Fatalf("expected 5000bp, got %d", got)
	}
	if got := Utilization(uint256.NewInt(500), uint256.NewInt(0)); got != 0 {
		t.Fatalf("zero deposits should yield zero utilization, got %d", got)
	}
	// Borrows exceeding deposits clamp at 100%.
	if got := Utilization(uint256.NewInt(1500), uint256.NewInt(1000)); got != 10_000 {
		t.Fatalf("expected cap at 10000bp, got %d", got)
	}
}

func TestBorrowRateBelowOptimal(t *testing.T) {
	p := testInterestParams()
	// base + util*slope1/optimal = 200 + 4000*1000/8000 = 700.
	if got := BorrowRate(4000, p); got != 700 {
		t.Fatalf("unexpected rate below kink: %d", got)
	}
}

func TestBorrowRateAboveOptimal(t *testing.T) {
	p := testInterestParams()
	// base + slope1 + (util-optimal)*slope2/(10000-optimal)
	// = 200 + 1000 + 1000*6000/2000 = 4200.
	if got := BorrowRate(9000, p); got != 4200 {
		t.Fatalf("unexpected rate above kink: %d", got)
	}
}

func TestBorrowRateContinuousAtKink(t *testing.T) {
	p := testInterestParams()
	below := p.BaseRateBps + p.OptimalUtilBps*p.Slope1Bps/p.OptimalUtilBps
	at := BorrowRate(p.OptimalUtilBps, p)
	if at != below {
		t.Fatalf("branches disagree at the kink: %d vs %d", at, below)
	}
	if at != p.BaseRateBps+p.Slope1Bps {
		t.Fatalf("rate at kink should be base+slope1, got %d", at)
	}
}

func TestBalanceWithInterest(t *testing.T) {
	principal := uint256.NewInt(1_000_000)
	// 10% for a full year doubles the interest denominator away.
	out, err := BalanceWithInterest(principal, 1000, 0, secondsPerYear)
	if err != nil {
		t.Fatalf("accrue: %v", err)
	}
	if out.Uint64() != 1_100_000 {
		t.Fatalf("expected 1.1x principal, got %s", out)
	}
}

func TestBalanceWithInterestZeroElapsed(t *testing.T) {
	principal := uint256.NewInt(12345)
	out, err := BalanceWithInterest(principal, 1000, 500, 500)
	if err != nil {
		t.Fatalf("accrue: %v", err)
	}
	if out.Cmp(principal) != 0 {
		t.Fatalf("zero elapsed time must not change the balance, got %s", out)
	}
	// Applying twice with no time passing is idempotent.
	again, err := BalanceWithInterest(out, 1000, 500, 500)
	if err != nil {
		t.Fatalf("accrue: %v", err)
	}
	if again.Cmp(principal) != 0 {
		t.Fatalf("repeated accrual changed balance: %s", again)
	}
}

func TestValidateInterestParams(t *testing.T) {
	good := testInterestParams()
	if err := good.Validate(); err != nil {
		t.Fatalf("valid params rejected: %v", err)
	}

	bad := good
	bad.BaseRateBps = 5001
	if err := bad.Validate(); err != errBaseRateTooHigh {
		t.Fatalf("expected base rate error, got %v", err)
	}

	bad = good
	bad.OptimalUtilBps = 4999
	if err := bad.Validate(); err != errOptimalOutOfRange {
		t.Fatalf("expected optimal range error, got %v", err)
	}
	bad.OptimalUtilBps = 9501
	if err := bad.Validate(); err != errOptimalOutOfRange {
		t.Fatalf("expected optimal range error, got %v", err)
	}

	bad = good
	bad.Slope1Bps = 0
	if err := bad.Validate(); err != errSlopeOutOfRange {
		t.Fatalf("expected slope error, got %v", err)
	}
	bad = good
	bad.Slope2Bps = 100_001
	if err := bad.Validate(); err != errSlopeOutOfRange {
		t.Fatalf("expected slope error, got %v", err)
	}
}
