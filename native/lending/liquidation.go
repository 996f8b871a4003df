package lending

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"lendpool/core/events"
	"lendpool/crypto"
)

var (
	errBorrowerHealthy        = errors.New("lending engine: borrower is not liquidatable")
	errSeizeExceedsCollateral = errors.New("lending engine: seizure exceeds borrower collateral")
)

// halfWad marks the health factor at which the liquidation bonus saturates.
var halfWad = uint256.NewInt(500_000_000_000_000_000)

// liquidationBonus interpolates the seizure bonus from the borrower's health
// factor: the minimum bonus at the solvency boundary, the maximum at a
// health factor of 0.5 or below, linear in between. Deeper insolvency pays
// liquidators more because the remaining collateral is riskier to chase.
func liquidationBonus(healthFactor *uint256.Int, risk RiskConfig) uint64 {
	if !healthFactor.Lt(wad) {
		return risk.LiquidationBonusMinBps
	}
	if !healthFactor.Gt(halfWad) {
		return risk.LiquidationBonusMaxBps
	}
	spread := risk.LiquidationBonusMaxBps - risk.LiquidationBonusMinBps
	depth := new(uint256.Int).Sub(healthFactor, halfWad)
	scaled := new(uint256.Int).Mul(depth, uint256.NewInt(spread))
	scaled.Div(scaled, halfWad)
	return risk.LiquidationBonusMaxBps - scaled.Uint64()
}

// Liquidate lets a third party repay part of an unhealthy borrower's debt in
// one asset and seize collateral in another at a bonus. The repayment is
// capped by the close factor; the amounts actually repaid and seized are
// returned.
func (e *Engine) Liquidate(liquidator, borrower, debtAsset, collateralAsset crypto.Address, repayAmount *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	if err := e.lock.acquire(); err != nil {
		return nil, nil, err
	}
	defer e.lock.release()

	params, err := e.loadParams()
	if err != nil {
		return nil, nil, err
	}
	if err := requireActive(params); err != nil {
		return nil, nil, err
	}
	if !isPositive(repayAmount) {
		return nil, nil, errInvalidAmount
	}
	if e.tokens == nil {
		return nil, nil, errNilTokenClient
	}

	samePair := debtAsset.Equal(collateralAsset)
	debtMarket, err := e.loadMarket(debtAsset)
	if err != nil {
		return nil, nil, err
	}
	collateralMarket := debtMarket
	if !samePair {
		collateralMarket, err = e.loadMarket(collateralAsset)
		if err != nil {
			return nil, nil, err
		}
	}

	now := e.nowFn()
	debtPosition, err := e.loadPosition(borrower, debtAsset, debtMarket)
	if err != nil {
		return nil, nil, err
	}
	if err := e.accrue(debtPosition, debtMarket, params, now); err != nil {
		return nil, nil, err
	}
	collateralPosition := debtPosition
	if !samePair {
		collateralPosition, err = e.loadPosition(borrower, collateralAsset, collateralMarket)
		if err != nil {
			return nil, nil, err
		}
		if err := e.accrue(collateralPosition, collateralMarket, params, now); err != nil {
			return nil, nil, err
		}
	}

	if !isPositive(debtPosition.Debt) {
		return nil, nil, errNoOutstandingDebt
	}

	merged := overrides(debtAsset, debtMarket, debtPosition)
	if !samePair {
		merged[collateralAsset.Array()] = accountOverride{market: collateralMarket, position: collateralPosition}
	}
	health, err := e.accountHealth(borrower, params, now, merged)
	if err != nil {
		return nil, nil, err
	}
	if !health.HealthFactor.Lt(wad) {
		return nil, nil, errBorrowerHealthy
	}

	maxRepay, err := mulBP(debtPosition.Debt, params.Risk.CloseFactorBps)
	if err != nil {
		return nil, nil, err
	}
	actual := new(uint256.Int).Set(minU(repayAmount, maxRepay))
	if !isPositive(actual) {
		return nil, nil, errInvalidAmount
	}

	debtPrice, err := e.assetPrice(debtMarket, params, now)
	if err != nil {
		return nil, nil, err
	}
	collateralPrice, err := e.assetPrice(collateralMarket, params, now)
	if err != nil {
		return nil, nil, err
	}
	if !isPositive(debtPrice) || !isPositive(collateralPrice) {
		return nil, nil, errPriceUnavailable
	}

	debtScale, err := pow10(debtMarket.Decimals)
	if err != nil {
		return nil, nil, err
	}
	collateralScale, err := pow10(collateralMarket.Decimals)
	if err != nil {
		return nil, nil, err
	}
	repaidValue, err := mulDiv(actual, debtPrice, debtScale)
	if err != nil {
		return nil, nil, err
	}
	seizeBase, err := mulDiv(repaidValue, collateralScale, collateralPrice)
	if err != nil {
		return nil, nil, err
	}
	bonus := liquidationBonus(health.HealthFactor, params.Risk)
	seize, err := mulDiv(seizeBase, uint256.NewInt(bpsDen+bonus), bps)
	if err != nil {
		return nil, nil, err
	}
	if seize.Gt(collateralPosition.Collateral) {
		return nil, nil, errSeizeExceedsCollateral
	}

	if err := e.tokens.TransferFrom(debtAsset, liquidator, e.poolAddress, actual); err != nil {
		return nil, nil, fmt.Errorf("lending engine: liquidation repayment failed: %w", err)
	}
	if err := e.tokens.Transfer(collateralAsset, liquidator, seize); err != nil {
		return nil, nil, fmt.Errorf("lending engine: collateral seizure failed: %w", err)
	}

	debtPosition.Debt = new(uint256.Int).Sub(debtPosition.Debt, actual)
	if debtMarket.TotalBorrows.Lt(actual) {
		debtMarket.TotalBorrows = new(uint256.Int)
	} else {
		debtMarket.TotalBorrows = new(uint256.Int).Sub(debtMarket.TotalBorrows, actual)
	}
	collateralPosition.Collateral = new(uint256.Int).Sub(collateralPosition.Collateral, seize)
	remaining, err := checkedSub(collateralMarket.TotalCollateral, seize)
	if err != nil {
		return nil, nil, err
	}
	collateralMarket.TotalCollateral = remaining

	if err := e.persistPosition(borrower, debtAsset, debtPosition); err != nil {
		return nil, nil, err
	}
	if err := e.state.PutMarket(debtAsset, debtMarket); err != nil {
		return nil, nil, err
	}
	if !samePair {
		if err := e.persistPosition(borrower, collateralAsset, collateralPosition); err != nil {
			return nil, nil, err
		}
		if err := e.state.PutMarket(collateralAsset, collateralMarket); err != nil {
			return nil, nil, err
		}
	}

	e.emitter.Emit(events.LendingLiquidate{
		Liquidator:      liquidator,
		Borrower:        borrower,
		DebtAsset:       debtAsset,
		CollateralAsset: collateralAsset,
		Repaid:          cloneOrZero(actual),
		Seized:          cloneOrZero(seize),
		BonusBps:        bonus,
	})
	return actual, seize, nil
}
