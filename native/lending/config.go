package lending

import (
	"errors"
	"fmt"

	"lendpool/crypto"
)

var errConfigOwnerRequired = errors.New("lending config: owner address required")

// InterestConfig mirrors InterestParams in a form decodable from TOML.
type InterestConfig struct {
	BaseRateBps    uint64 `toml:"base_rate_bps"`
	OptimalUtilBps uint64 `toml:"optimal_utilization_bps"`
	Slope1Bps      uint64 `toml:"slope1_bps"`
	Slope2Bps      uint64 `toml:"slope2_bps"`
}

// RiskConfigFile mirrors RiskConfig in a form decodable from TOML.
type RiskConfigFile struct {
	CollateralFactorBps     uint64 `toml:"collateral_factor_bps"`
	LiquidationThresholdBps uint64 `toml:"liquidation_threshold_bps"`
	CloseFactorBps          uint64 `toml:"close_factor_bps"`
	LiquidationBonusMinBps  uint64 `toml:"liquidation_bonus_min_bps"`
	LiquidationBonusMaxBps  uint64 `toml:"liquidation_bonus_max_bps"`
	ReserveFactorBps        uint64 `toml:"reserve_factor_bps"`
	FlashLoanFeeBps         uint64 `toml:"flash_loan_fee_bps"`
}

// Config is the operator-facing pool configuration loaded from the service's
// TOML file. Zero sections fall back to the engine defaults.
type Config struct {
	Owner              string         `toml:"owner"`
	TWAPPeriodSeconds  uint64         `toml:"twap_period_seconds"`
	PriceMaxAgeSeconds uint64         `toml:"price_max_age_seconds"`
	FlashLoansEnabled  bool           `toml:"flash_loans_enabled"`
	Interest           InterestConfig `toml:"interest"`
	Risk               RiskConfigFile `toml:"risk"`
}

// Params converts the file form into validated engine parameters.
func (c Config) Params() (*Params, error) {
	if c.Owner == "" {
		return nil, errConfigOwnerRequired
	}
	owner, err := crypto.DecodeAddress(c.Owner)
	if err != nil {
		return nil, fmt.Errorf("lending config: invalid owner: %w", err)
	}
	params := DefaultParams(owner)
	if c.TWAPPeriodSeconds > 0 {
		params.TWAPPeriodSeconds = c.TWAPPeriodSeconds
	}
	params.PriceMaxAgeSeconds = c.PriceMaxAgeSeconds
	params.FlashLoansEnabled = c.FlashLoansEnabled
	if c.Interest != (InterestConfig{}) {
		params.Interest = InterestParams{
			BaseRateBps:    c.Interest.BaseRateBps,
			OptimalUtilBps: c.Interest.OptimalUtilBps,
			Slope1Bps:      c.Interest.Slope1Bps,
			Slope2Bps:      c.Interest.Slope2Bps,
		}
	}
	if c.Risk != (RiskConfigFile{}) {
		params.Risk = RiskConfig{
			CollateralFactorBps:     c.Risk.CollateralFactorBps,
			LiquidationThresholdBps: c.Risk.LiquidationThresholdBps,
			CloseFactorBps:          c.Risk.CloseFactorBps,
			LiquidationBonusMinBps:  c.Risk.LiquidationBonusMinBps,
			LiquidationBonusMaxBps:  c.Risk.LiquidationBonusMaxBps,
			ReserveFactorBps:        c.Risk.ReserveFactorBps,
			FlashLoanFeeBps:         c.Risk.FlashLoanFeeBps,
		}
	}
	if err := params.Interest.Validate(); err != nil {
		return nil, err
	}
	if err := params.Risk.Validate(); err != nil {
		return nil, err
	}
	return params, nil
}
