package lending

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"lendpool/core/events"
	"lendpool/crypto"
)

var (
	errNotOwner             = errors.New("lending engine: caller is not the pool owner")
	errZeroAddress          = errors.New("lending engine: zero address not allowed")
	errAssetAlreadyListed   = errors.New("lending engine: asset already listed")
	errAlreadyPaused        = errors.New("lending engine: pool already paused")
	errNotPaused            = errors.New("lending engine: pool is not paused")
	errInsufficientReserves = errors.New("lending engine: amount exceeds treasury reserve")
)

func (e *Engine) requireOwner(params *Params, caller crypto.Address) error {
	if !params.Owner.Equal(caller) {
		return errNotOwner
	}
	return nil
}

// AddAsset lists a token as a pool asset, capturing its decimal count from
// the token contract. Re-listing a retired asset re-enables the existing
// market with its accounting intact.
func (e *Engine) AddAsset(caller, asset crypto.Address) error {
	if err := e.lock.acquire(); err != nil {
		return err
	}
	defer e.lock.release()

	params, err := e.loadParams()
	if err != nil {
		return err
	}
	if err := e.requireOwner(params, caller); err != nil {
		return err
	}
	if asset.IsZero() {
		return errZeroAddress
	}
	if e.tokens == nil {
		return errNilTokenClient
	}

	market, err := e.state.GetMarket(asset)
	if err != nil {
		return err
	}
	if market != nil && market.Supported {
		return errAssetAlreadyListed
	}
	if market == nil {
		decimals, err := e.tokens.Decimals(asset)
		if err != nil {
			return fmt.Errorf("lending engine: decimals lookup failed: %w", err)
		}
		market = &Market{Decimals: decimals, SupplyIndexLastUpdate: e.nowFn()}
	}
	market.Supported = true
	market.ensureDefaults()
	if err := e.state.PutMarket(asset, market); err != nil {
		return err
	}

	e.emitter.Emit(events.LendingAssetAdded{Asset: asset, Decimals: market.Decimals})
	return nil
}

// RemoveAsset retires an asset from new activity. Existing positions remain
// readable and exits (repay, withdraw via emergency path, reserve payout)
// stay possible.
func (e *Engine) RemoveAsset(caller, asset crypto.Address) error {
	if err := e.lock.acquire(); err != nil {
		return err
	}
	defer e.lock.release()

	params, err := e.loadParams()
	if err != nil {
		return err
	}
	if err := e.requireOwner(params, caller); err != nil {
		return err
	}
	market, err := e.loadMarket(asset)
	if err != nil {
		return err
	}
	market.Supported = false
	if err := e.state.PutMarket(asset, market); err != nil {
		return err
	}

	e.emitter.Emit(events.LendingAssetRemoved{Asset: asset})
	return nil
}

// SetManualPrice sets the 1e18-scaled fallback price for an asset. A zero
// price clears the fallback.
func (e *Engine) SetManualPrice(caller, asset crypto.Address, price *uint256.Int) error {
	if err := e.lock.acquire(); err != nil {
		return err
	}
	defer e.lock.release()

	params, err := e.loadParams()
	if err != nil {
		return err
	}
	if err := e.requireOwner(params, caller); err != nil {
		return err
	}
	market, err := e.loadMarketAny(asset)
	if err != nil {
		return err
	}
	market.ManualPrice = cloneOrZero(price)
	if err := e.state.PutMarket(asset, market); err != nil {
		return err
	}

	e.emitter.Emit(events.LendingPriceUpdated{Asset: asset, Price: cloneOrZero(price)})
	return nil
}

// SetOraclePair binds an asset to a liquidity-book pair for TWAP pricing and
// optionally updates the global TWAP window. A zero pair address detaches
// the oracle, leaving the manual price in effect.
func (e *Engine) SetOraclePair(caller, asset, pair crypto.Address, twapPeriodSeconds uint64) error {
	if err := e.lock.acquire(); err != nil {
		return err
	}
	defer e.lock.release()

	params, err := e.loadParams()
	if err != nil {
		return err
	}
	if err := e.requireOwner(params, caller); err != nil {
		return err
	}
	market, err := e.loadMarketAny(asset)
	if err != nil {
		return err
	}
	market.OraclePair = pair
	if err := e.state.PutMarket(asset, market); err != nil {
		return err
	}
	if twapPeriodSeconds > 0 && twapPeriodSeconds != params.TWAPPeriodSeconds {
		params.TWAPPeriodSeconds = twapPeriodSeconds
		if err := e.state.PutParams(params); err != nil {
			return err
		}
	}

	e.emitter.Emit(events.LendingOraclePairUpdated{Asset: asset, Pair: pair, TWAPPeriod: params.TWAPPeriodSeconds})
	return nil
}

// SetInterestParams replaces the interest-rate curve after validation.
func (e *Engine) SetInterestParams(caller crypto.Address, interest InterestParams) error {
	if err := e.lock.acquire(); err != nil {
		return err
	}
	defer e.lock.release()

	params, err := e.loadParams()
	if err != nil {
		return err
	}
	if err := e.requireOwner(params, caller); err != nil {
		return err
	}
	if err := interest.Validate(); err != nil {
		return err
	}
	params.Interest = interest
	if err := e.state.PutParams(params); err != nil {
		return err
	}

	e.emitter.Emit(events.LendingParamsUpdated{Scope: "interest"})
	return nil
}

// SetRiskConfig replaces the risk configuration after validation.
func (e *Engine) SetRiskConfig(caller crypto.Address, risk RiskConfig) error {
	if err := e.lock.acquire(); err != nil {
		return err
	}
	defer e.lock.release()

	params, err := e.loadParams()
	if err != nil {
		return err
	}
	if err := e.requireOwner(params, caller); err != nil {
		return err
	}
	if err := risk.Validate(); err != nil {
		return err
	}
	params.Risk = risk
	if err := e.state.PutParams(params); err != nil {
		return err
	}

	e.emitter.Emit(events.LendingParamsUpdated{Scope: "risk"})
	return nil
}

// SetFlashLoansEnabled toggles the flash loan facility.
func (e *Engine) SetFlashLoansEnabled(caller crypto.Address, enabled bool) error {
	if err := e.lock.acquire(); err != nil {
		return err
	}
	defer e.lock.release()

	params, err := e.loadParams()
	if err != nil {
		return err
	}
	if err := e.requireOwner(params, caller); err != nil {
		return err
	}
	params.FlashLoansEnabled = enabled
	if err := e.state.PutParams(params); err != nil {
		return err
	}

	e.emitter.Emit(events.LendingParamsUpdated{Scope: "flashloans"})
	return nil
}

// SetPriceMaxAge configures the staleness bound for oracle samples; zero
// disables the check.
func (e *Engine) SetPriceMaxAge(caller crypto.Address, seconds uint64) error {
	if err := e.lock.acquire(); err != nil {
		return err
	}
	defer e.lock.release()

	params, err := e.loadParams()
	if err != nil {
		return err
	}
	if err := e.requireOwner(params, caller); err != nil {
		return err
	}
	params.PriceMaxAgeSeconds = seconds
	if err := e.state.PutParams(params); err != nil {
		return err
	}

	e.emitter.Emit(events.LendingParamsUpdated{Scope: "oracle"})
	return nil
}

// Pause halts all balance-mutating activity except emergency withdrawals.
func (e *Engine) Pause(caller crypto.Address) error {
	if err := e.lock.acquire(); err != nil {
		return err
	}
	defer e.lock.release()

	params, err := e.loadParams()
	if err != nil {
		return err
	}
	if err := e.requireOwner(params, caller); err != nil {
		return err
	}
	if params.Paused {
		return errAlreadyPaused
	}
	params.Paused = true
	if err := e.state.PutParams(params); err != nil {
		return err
	}

	e.emitter.Emit(events.LendingPaused{Caller: caller})
	return nil
}

// Unpause resumes normal operation.
func (e *Engine) Unpause(caller crypto.Address) error {
	if err := e.lock.acquire(); err != nil {
		return err
	}
	defer e.lock.release()

	params, err := e.loadParams()
	if err != nil {
		return err
	}
	if err := e.requireOwner(params, caller); err != nil {
		return err
	}
	if !params.Paused {
		return errNotPaused
	}
	params.Paused = false
	if err := e.state.PutParams(params); err != nil {
		return err
	}

	e.emitter.Emit(events.LendingUnpaused{Caller: caller})
	return nil
}

// TransferOwnership hands the admin role to a new address.
func (e *Engine) TransferOwnership(caller, next crypto.Address) error {
	if err := e.lock.acquire(); err != nil {
		return err
	}
	defer e.lock.release()

	params, err := e.loadParams()
	if err != nil {
		return err
	}
	if err := e.requireOwner(params, caller); err != nil {
		return err
	}
	if next.IsZero() {
		return errZeroAddress
	}
	previous := params.Owner
	params.Owner = next
	if err := e.state.PutParams(params); err != nil {
		return err
	}

	e.emitter.Emit(events.LendingOwnershipTransferred{Previous: previous, Next: next})
	return nil
}

// WithdrawReserves pays accumulated protocol fees out of the treasury
// reserve, subject to the pool's free liquidity.
func (e *Engine) WithdrawReserves(caller, asset, recipient crypto.Address, amount *uint256.Int) error {
	if err := e.lock.acquire(); err != nil {
		return err
	}
	defer e.lock.release()

	params, err := e.loadParams()
	if err != nil {
		return err
	}
	if err := e.requireOwner(params, caller); err != nil {
		return err
	}
	if recipient.IsZero() {
		return errZeroAddress
	}
	if !isPositive(amount) {
		return errInvalidAmount
	}
	if e.tokens == nil {
		return errNilTokenClient
	}
	market, err := e.loadMarketAny(asset)
	if err != nil {
		return err
	}
	if market.TreasuryReserve.Lt(amount) {
		return errInsufficientReserves
	}
	if market.availableLiquidity().Lt(amount) {
		return errInsufficientLiquidity
	}

	if err := e.tokens.Transfer(asset, recipient, amount); err != nil {
		return fmt.Errorf("lending engine: reserve payout failed: %w", err)
	}
	market.TreasuryReserve = new(uint256.Int).Sub(market.TreasuryReserve, amount)
	if err := e.state.PutMarket(asset, market); err != nil {
		return err
	}

	e.emitter.Emit(events.LendingReservesWithdrawn{Asset: asset, Recipient: recipient, Amount: cloneOrZero(amount)})
	return nil
}
