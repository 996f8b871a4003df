package lending

import (
	"errors"

	"github.com/holiman/uint256"

	"lendpool/crypto"
)

var (
	errPriceStale     = errors.New("lending engine: oracle sample older than max price age")
	errTWAPPeriodZero = errors.New("lending engine: twap period not configured")
)

// healthFactorInfinite is the sentinel for accounts with zero borrow value.
var healthFactorInfinite = new(uint256.Int).SetAllOne()

// accountOverride substitutes an in-memory (market, position) pair for the
// stored one while computing health, so post-operation checks see the
// pending mutation without persisting it first.
type accountOverride struct {
	market   *Market
	position *Position
}

func overrides(asset crypto.Address, market *Market, position *Position) map[[crypto.AddressLength]byte]accountOverride {
	return map[[crypto.AddressLength]byte]accountOverride{
		asset.Array(): {market: market, position: position},
	}
}

// AccountHealth values the user's full book at current prices with interest
// projected to now. It is read-only; nothing is persisted.
func (e *Engine) AccountHealth(user crypto.Address) (*AccountHealth, error) {
	params, err := e.loadParams()
	if err != nil {
		return nil, err
	}
	return e.accountHealth(user, params, e.nowFn(), nil)
}

func (e *Engine) accountHealth(user crypto.Address, params *Params, now uint64, merged map[[crypto.AddressLength]byte]accountOverride) (*AccountHealth, error) {
	assets, err := e.state.UserAssets(user)
	if err != nil {
		return nil, err
	}
	for key := range merged {
		found := false
		for _, held := range assets {
			if held.Array() == key {
				found = true
				break
			}
		}
		if !found {
			assets = append(assets, crypto.MustNewAddress(crypto.AssetPrefix, key))
		}
	}

	collateralValue := new(uint256.Int)
	borrowValue := new(uint256.Int)
	for _, asset := range assets {
		var market *Market
		var collateral, debt *uint256.Int
		if override, ok := merged[asset.Array()]; ok {
			// Already accrued in-memory by the caller.
			market = override.market
			collateral = cloneOrZero(override.position.Collateral)
			debt = cloneOrZero(override.position.Debt)
		} else {
			stored, err := e.state.GetMarket(asset)
			if err != nil {
				return nil, err
			}
			if stored == nil || !stored.Supported {
				continue
			}
			stored.ensureDefaults()
			market = stored
			position, err := e.state.GetPosition(user, asset)
			if err != nil {
				return nil, err
			}
			if position == nil {
				continue
			}
			position.ensureDefaults(market.SupplyIndex)
			collateral, debt, err = projectPosition(position, market, params, now)
			if err != nil {
				return nil, err
			}
		}

		price, err := e.assetPrice(market, params, now)
		if err != nil {
			return nil, err
		}
		if !isPositive(price) {
			if isPositive(debt) {
				return nil, errPriceUnavailable
			}
			// Unpriced collateral contributes nothing but blocks nothing.
			continue
		}

		scale, err := pow10(market.Decimals)
		if err != nil {
			return nil, err
		}
		if isPositive(collateral) {
			value, err := mulDiv(collateral, price, scale)
			if err != nil {
				return nil, err
			}
			collateralValue, err = checkedAdd(collateralValue, value)
			if err != nil {
				return nil, err
			}
		}
		if isPositive(debt) {
			value, err := mulDiv(debt, price, scale)
			if err != nil {
				return nil, err
			}
			borrowValue, err = checkedAdd(borrowValue, value)
			if err != nil {
				return nil, err
			}
		}
	}

	if !isPositive(borrowValue) {
		return &AccountHealth{
			TotalCollateralValue: collateralValue,
			TotalBorrowValue:     borrowValue,
			HealthFactor:         cloneOrZero(healthFactorInfinite),
			Healthy:              true,
		}, nil
	}

	adjusted, err := mulBP(collateralValue, params.Risk.LiquidationThresholdBps)
	if err != nil {
		return nil, err
	}
	factor, err := mulDiv(adjusted, wad, borrowValue)
	if err != nil {
		return nil, err
	}
	return &AccountHealth{
		TotalCollateralValue: collateralValue,
		TotalBorrowValue:     borrowValue,
		HealthFactor:         factor,
		Healthy:              !factor.Lt(wad),
	}, nil
}

// requireOperationHealth gates borrows and withdrawals. An account with debt
// must keep a margin above the liquidation line, and its borrow value must
// stay within the collateral factor limit, which binds tighter than the
// health floor whenever the threshold sits well above the collateral factor.
func requireOperationHealth(health *AccountHealth, risk RiskConfig) error {
	if !isPositive(health.TotalBorrowValue) {
		return nil
	}
	if health.HealthFactor.Lt(minOperationHealthFactor) {
		return errHealthCheckFailed
	}
	limit, err := mulBP(health.TotalCollateralValue, risk.CollateralFactorBps)
	if err != nil {
		return err
	}
	if limit.Lt(health.TotalBorrowValue) {
		return errBorrowLimitExceeded
	}
	return nil
}

// projectPosition values a stored position at now without mutating it:
// collateral scaled by the projected supply index, debt grown by simple
// interest at the current borrow rate.
func projectPosition(position *Position, market *Market, params *Params, now uint64) (*uint256.Int, *uint256.Int, error) {
	index, err := projectSupplyIndex(market, params, now)
	if err != nil {
		return nil, nil, err
	}
	collateral := cloneOrZero(position.Collateral)
	if isPositive(collateral) && !position.SupplyIndex.IsZero() {
		collateral, err = mulDiv(collateral, index, position.SupplyIndex)
		if err != nil {
			return nil, nil, err
		}
	}
	debt := cloneOrZero(position.Debt)
	if isPositive(debt) {
		util := Utilization(market.TotalBorrows, market.TotalCollateral)
		rate := BorrowRate(util, params.Interest)
		debt, err = BalanceWithInterest(debt, rate, position.LastUpdateTime, now)
		if err != nil {
			return nil, nil, err
		}
	}
	return collateral, debt, nil
}

// assetPrice resolves the market's 1e18-scaled price. The oracle pair wins
// when configured and fresh; any oracle failure falls back to the manual
// price, and a zero result means no price source is usable.
func (e *Engine) assetPrice(market *Market, params *Params, now uint64) (*uint256.Int, error) {
	if !market.OraclePair.IsZero() && e.oracles != nil {
		price, err := e.oracleTWAPPrice(market.OraclePair, params, now)
		if err == nil && isPositive(price) {
			return price, nil
		}
	}
	if isPositive(market.ManualPrice) {
		return cloneOrZero(market.ManualPrice), nil
	}
	return new(uint256.Int), nil
}

// oracleTWAPPrice reads two cumulative samples spanning the configured TWAP
// window, averages the bin identifier and converts it through the bin-step
// price curve to decimal scale.
func (e *Engine) oracleTWAPPrice(pair crypto.Address, params *Params, now uint64) (*uint256.Int, error) {
	if params.TWAPPeriodSeconds == 0 {
		return nil, errTWAPPeriodZero
	}
	latest, err := e.oracles.SampleFrom(pair, 0)
	if err != nil {
		return nil, err
	}
	if params.PriceMaxAgeSeconds > 0 && latest.Timestamp > 0 &&
		now > latest.Timestamp && now-latest.Timestamp > params.PriceMaxAgeSeconds {
		return nil, errPriceStale
	}
	earliest, err := e.oracles.SampleFrom(pair, params.TWAPPeriodSeconds)
	if err != nil {
		return nil, err
	}
	averageID, err := CalculateTWAP(earliest.CumulativeID, latest.CumulativeID, params.TWAPPeriodSeconds)
	if err != nil {
		return nil, err
	}
	binStep, err := e.oracles.BinStep(pair)
	if err != nil {
		return nil, err
	}
	raw, err := PriceFromID(averageID, binStep)
	if err != nil {
		return nil, err
	}
	return ToDecimal18(raw)
}
