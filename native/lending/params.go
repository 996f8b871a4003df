package lending

import (
	"errors"

	"lendpool/crypto"
)

var (
	errCollateralFactorRange = errors.New("lending params: collateral factor outside (0, 10000]")
	errThresholdBelowFactor  = errors.New("lending params: liquidation threshold below collateral factor")
	errThresholdRange        = errors.New("lending params: liquidation threshold above 10000")
	errCloseFactorRange      = errors.New("lending params: close factor outside (0, 10000]")
	errBonusRange            = errors.New("lending params: bonus min must not exceed bonus max")
	errBonusTooLarge         = errors.New("lending params: bonus max above 10000")
	errReserveFactorRange    = errors.New("lending params: reserve factor must be below 10000")
	errFlashLoanFeeRange     = errors.New("lending params: flash loan fee must be below 10000")
)

// RiskConfig groups the admin-mutable solvency and fee knobs, all in basis
// points.
type RiskConfig struct {
	CollateralFactorBps     uint64
	LiquidationThresholdBps uint64
	CloseFactorBps          uint64
	LiquidationBonusMinBps  uint64
	LiquidationBonusMaxBps  uint64
	ReserveFactorBps        uint64
	FlashLoanFeeBps         uint64
}

// Validate rejects configurations that could not keep the pool solvent.
func (c RiskConfig) Validate() error {
	if c.CollateralFactorBps == 0 || c.CollateralFactorBps > bpsDen {
		return errCollateralFactorRange
	}
	if c.LiquidationThresholdBps > bpsDen {
		return errThresholdRange
	}
	if c.LiquidationThresholdBps < c.CollateralFactorBps {
		return errThresholdBelowFactor
	}
	if c.CloseFactorBps == 0 || c.CloseFactorBps > bpsDen {
		return errCloseFactorRange
	}
	if c.LiquidationBonusMinBps > c.LiquidationBonusMaxBps {
		return errBonusRange
	}
	if c.LiquidationBonusMaxBps > bpsDen {
		return errBonusTooLarge
	}
	if c.ReserveFactorBps >= bpsDen {
		return errReserveFactorRange
	}
	if c.FlashLoanFeeBps >= bpsDen {
		return errFlashLoanFeeRange
	}
	return nil
}

// Params is the persisted protocol configuration. It is created once at
// initialization and mutated only through owner-gated setters.
type Params struct {
	Owner             crypto.Address
	Interest          InterestParams
	Risk              RiskConfig
	TWAPPeriodSeconds uint64
	// PriceMaxAgeSeconds bounds the age of the freshest oracle sample; zero
	// disables the check. Manual prices are exempt.
	PriceMaxAgeSeconds uint64
	FlashLoansEnabled  bool
	Paused             bool
}

// DefaultParams is the bootstrap configuration applied at initialization
// before governance tunes individual knobs.
func DefaultParams(owner crypto.Address) *Params {
	return &Params{
		Owner: owner,
		Interest: InterestParams{
			BaseRateBps:    200,
			OptimalUtilBps: 8000,
			Slope1Bps:      1000,
			Slope2Bps:      6000,
		},
		Risk: RiskConfig{
			CollateralFactorBps:     7500,
			LiquidationThresholdBps: 8000,
			CloseFactorBps:          5000,
			LiquidationBonusMinBps:  500,
			LiquidationBonusMaxBps:  1500,
			ReserveFactorBps:        1000,
			FlashLoanFeeBps:         9,
		},
		TWAPPeriodSeconds: 600,
		FlashLoansEnabled: true,
	}
}
