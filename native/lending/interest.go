package lending

import (
	"errors"

	"github.com/holiman/uint256"
)

// secondsPerYear is the accrual denominator for annualized rates.
const secondsPerYear = 31_536_000

// Interest parameter guard rails. The curve is the standard two-slope design:
// gentle below the optimal utilization to discourage under-supply, steep
// beyond it to pull borrowing back toward the target.
const (
	maxBaseRateBps    = 5_000
	minOptimalUtilBps = 5_000
	maxOptimalUtilBps = 9_500
	maxSlopeBps       = 100_000
)

var (
	errBaseRateTooHigh    = errors.New("interest model: base rate above 50%")
	errOptimalOutOfRange  = errors.New("interest model: optimal utilization outside [50%, 95%]")
	errSlopeOutOfRange    = errors.New("interest model: slope must be positive and below 1000%")
)

// InterestParams holds the two-slope borrow rate curve in basis points.
type InterestParams struct {
	BaseRateBps    uint64
	OptimalUtilBps uint64
	Slope1Bps      uint64
	Slope2Bps      uint64
}

// Validate rejects parameter combinations that would make the curve unsafe
// or undefined.
func (p InterestParams) Validate() error {
	if p.BaseRateBps > maxBaseRateBps {
		return errBaseRateTooHigh
	}
	if p.OptimalUtilBps < minOptimalUtilBps || p.OptimalUtilBps > maxOptimalUtilBps {
		return errOptimalOutOfRange
	}
	if p.Slope1Bps == 0 || p.Slope1Bps > maxSlopeBps {
		return errSlopeOutOfRange
	}
	if p.Slope2Bps == 0 || p.Slope2Bps > maxSlopeBps {
		return errSlopeOutOfRange
	}
	return nil
}

// Utilization returns the borrowed fraction of deposited liquidity in basis
// points, zero when nothing is deposited and capped at 100%.
func Utilization(totalBorrows, totalDeposits *uint256.Int) uint64 {
	if totalDeposits == nil || totalDeposits.IsZero() {
		return 0
	}
	if totalBorrows == nil || totalBorrows.IsZero() {
		return 0
	}
	scaled := new(uint256.Int).Mul(totalBorrows, bps)
	scaled.Div(scaled, totalDeposits)
	if !scaled.IsUint64() || scaled.Uint64() > bpsDen {
		return bpsDen
	}
	return scaled.Uint64()
}

// BorrowRate evaluates the two-slope curve at the given utilization. Both
// branches agree exactly at the optimal point.
func BorrowRate(utilizationBps uint64, p InterestParams) uint64 {
	if utilizationBps < p.OptimalUtilBps {
		if p.OptimalUtilBps == 0 {
			return p.BaseRateBps
		}
		return p.BaseRateBps + utilizationBps*p.Slope1Bps/p.OptimalUtilBps
	}
	excess := utilizationBps - p.OptimalUtilBps
	spare := uint64(bpsDen) - p.OptimalUtilBps
	if spare == 0 {
		return p.BaseRateBps + p.Slope1Bps
	}
	return p.BaseRateBps + p.Slope1Bps + excess*p.Slope2Bps/spare
}

// BalanceWithInterest projects simple interest on a principal over the
// elapsed wall-clock interval:
//
//	principal + principal*rate*elapsed/(10000*secondsPerYear)
//
// Compounding emerges only from repeated application at discrete touch
// points, never from this call itself.
func BalanceWithInterest(principal *uint256.Int, rateBps uint64, lastUpdate, now uint64) (*uint256.Int, error) {
	if principal == nil || principal.IsZero() || rateBps == 0 || now <= lastUpdate {
		return cloneOrZero(principal), nil
	}
	elapsed := now - lastUpdate
	numerator, err := checkedMul(principal, uint256.NewInt(rateBps))
	if err != nil {
		return nil, err
	}
	interest, err := mulDiv(numerator, uint256.NewInt(elapsed), uint256.NewInt(bpsDen*secondsPerYear))
	if err != nil {
		return nil, err
	}
	return checkedAdd(principal, interest)
}
