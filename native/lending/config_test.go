package lending

import (
	"errors"
	"testing"
)

func TestConfigParamsDefaults(t *testing.T) {
	owner := testAccount(0x01)
	cfg := Config{Owner: owner.String(), FlashLoansEnabled: true}

	params, err := cfg.Params()
	if err != nil {
		t.Fatalf("params: %v", err)
	}
	if !params.Owner.Equal(owner) {
		t.Fatalf("owner = %s", params.Owner.String())
	}
	defaults := DefaultParams(owner)
	if params.Interest != defaults.Interest {
		t.Fatalf("interest = %+v", params.Interest)
	}
	if params.Risk != defaults.Risk {
		t.Fatalf("risk = %+v", params.Risk)
	}
	if params.TWAPPeriodSeconds != defaults.TWAPPeriodSeconds {
		t.Fatalf("twap period = %d", params.TWAPPeriodSeconds)
	}
}

func TestConfigParamsOverrides(t *testing.T) {
	owner := testAccount(0x01)
	cfg := Config{
		Owner:             owner.String(),
		TWAPPeriodSeconds: 900,
		Interest: InterestConfig{
			BaseRateBps:    100,
			OptimalUtilBps: 9000,
			Slope1Bps:      400,
			Slope2Bps:      6000,
		},
		Risk: RiskConfigFile{
			CollateralFactorBps:     6000,
			LiquidationThresholdBps: 7000,
			CloseFactorBps:          4000,
			LiquidationBonusMinBps:  300,
			LiquidationBonusMaxBps:  1200,
			ReserveFactorBps:        500,
			FlashLoanFeeBps:         5,
		},
	}

	params, err := cfg.Params()
	if err != nil {
		t.Fatalf("params: %v", err)
	}
	if params.TWAPPeriodSeconds != 900 {
		t.Fatalf("twap period = %d", params.TWAPPeriodSeconds)
	}
	if params.Interest.OptimalUtilBps != 9000 {
		t.Fatalf("interest = %+v", params.Interest)
	}
	if params.Risk.CollateralFactorBps != 6000 {
		t.Fatalf("risk = %+v", params.Risk)
	}
}

func TestConfigParamsValidation(t *testing.T) {
	if _, err := (Config{}).Params(); !errors.Is(err, errConfigOwnerRequired) {
		t.Fatalf("expected errConfigOwnerRequired, got %v", err)
	}
	if _, err := (Config{Owner: "not-bech32"}).Params(); err == nil {
		t.Fatal("expected owner decode failure")
	}

	bad := Config{
		Owner:    testAccount(0x01).String(),
		Interest: InterestConfig{BaseRateBps: 9000, OptimalUtilBps: 8000, Slope1Bps: 1, Slope2Bps: 1},
	}
	if _, err := bad.Params(); !errors.Is(err, errBaseRateTooHigh) {
		t.Fatalf("expected errBaseRateTooHigh, got %v", err)
	}
}
