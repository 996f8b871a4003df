package lending

import (
	"errors"
	"fmt"
	"time"

	"github.com/holiman/uint256"

	"lendpool/core/events"
	"lendpool/crypto"
)

var (
	errNilState               = errors.New("lending engine: state not configured")
	errNilTokenClient         = errors.New("lending engine: token client not configured")
	errNotInitialized         = errors.New("lending engine: pool not initialized")
	errAlreadyInitialized     = errors.New("lending engine: pool already initialized")
	errPoolPaused             = errors.New("lending engine: pool is paused")
	errReentrantCall          = errors.New("lending engine: reentrant call rejected")
	errInvalidAmount          = errors.New("lending engine: amount must be positive")
	errAssetNotSupported      = errors.New("lending engine: asset not supported")
	errInsufficientCollateral = errors.New("lending engine: insufficient collateral balance")
	errInsufficientLiquidity  = errors.New("lending engine: insufficient pool liquidity")
	errHealthCheckFailed      = errors.New("lending engine: operation would leave account below safe health factor")
	errBorrowLimitExceeded    = errors.New("lending engine: borrow value exceeds collateral factor limit")
	errNoOutstandingDebt      = errors.New("lending engine: no outstanding debt to repay")
	errOutstandingDebt        = errors.New("lending engine: emergency withdrawal requires zero debt")
	errPriceUnavailable       = errors.New("lending engine: no resolvable price for asset with outstanding debt")
)

// minOperationHealthFactor is the post-operation bound applied to borrows and
// withdrawals: 1.1 at 1e18 scale, a margin above bare solvency that buffers
// price staleness and rounding.
var minOperationHealthFactor = uint256.NewInt(1_100_000_000_000_000_000)

// engineState is the persistence port required by the engine. Implementations
// back it with the durable key-value host mapping; tests use in-memory maps.
type engineState interface {
	GetParams() (*Params, error)
	PutParams(*Params) error
	GetMarket(asset crypto.Address) (*Market, error)
	PutMarket(asset crypto.Address, market *Market) error
	GetPosition(user, asset crypto.Address) (*Position, error)
	PutPosition(user, asset crypto.Address, position *Position) error
	DeletePosition(user, asset crypto.Address) error
	UserAssets(user crypto.Address) ([]crypto.Address, error)
	AddUserAsset(user, asset crypto.Address) error
	RemoveUserAsset(user, asset crypto.Address) error
}

// reentrancyLock converts the host's sequential execution model into a
// guarantee that no outbound call (token transfer, flash-loan callback) can
// re-enter the ledger mid-update.
type reentrancyLock struct {
	held bool
}

func (l *reentrancyLock) acquire() error {
	if l.held {
		return errReentrantCall
	}
	l.held = true
	return nil
}

func (l *reentrancyLock) release() {
	l.held = false
}

// Engine orchestrates the lending pool's state transitions: deposits,
// withdrawals, borrowing, repayment, liquidations, flash loans and the admin
// surface. All collaborators are injected; the engine itself holds no
// balances and performs no I/O beyond its ports.
type Engine struct {
	state       engineState
	tokens      TokenClient
	oracles     OracleClient
	emitter     events.Emitter
	poolAddress crypto.Address
	nowFn       func() uint64
	lock        reentrancyLock
}

// NewEngine constructs an engine bound to the pool's own token account.
func NewEngine(poolAddress crypto.Address) *Engine {
	return &Engine{
		poolAddress: poolAddress,
		emitter:     events.NoopEmitter{},
		nowFn:       func() uint64 { return uint64(time.Now().Unix()) },
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetTokenClient wires the engine to the host token transfer port.
func (e *Engine) SetTokenClient(tokens TokenClient) { e.tokens = tokens }

// SetOracleClient wires the engine to the liquidity-book oracle port. A nil
// client leaves manual prices as the only price source.
func (e *Engine) SetOracleClient(oracles OracleClient) { e.oracles = oracles }

// SetEmitter configures the event emitter. Passing nil resets to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source; primarily for deterministic tests.
func (e *Engine) SetNowFunc(now func() uint64) {
	if now == nil {
		e.nowFn = func() uint64 { return uint64(time.Now().Unix()) }
		return
	}
	e.nowFn = now
}

// PoolAddress returns the token account the pool holds funds under.
func (e *Engine) PoolAddress() crypto.Address { return e.poolAddress }

// Initialize writes the bootstrap parameters. It may be called exactly once,
// mirroring the host's one-time initialization entry point.
func (e *Engine) Initialize(owner crypto.Address) error {
	if e.state == nil {
		return errNilState
	}
	existing, err := e.state.GetParams()
	if err != nil {
		return err
	}
	if existing != nil {
		return errAlreadyInitialized
	}
	return e.state.PutParams(DefaultParams(owner))
}

func (e *Engine) loadParams() (*Params, error) {
	if e.state == nil {
		return nil, errNilState
	}
	params, err := e.state.GetParams()
	if err != nil {
		return nil, err
	}
	if params == nil {
		return nil, errNotInitialized
	}
	return params, nil
}

func requireActive(params *Params) error {
	if params.Paused {
		return errPoolPaused
	}
	return nil
}

// loadMarket resolves a supported market with defaults applied.
func (e *Engine) loadMarket(asset crypto.Address) (*Market, error) {
	market, err := e.loadMarketAny(asset)
	if err != nil {
		return nil, err
	}
	if !market.Supported {
		return nil, errAssetNotSupported
	}
	return market, nil
}

// loadMarketAny resolves a market record regardless of support status; exit
// paths (emergency withdrawal, reserve payout) remain available for retired
// assets.
func (e *Engine) loadMarketAny(asset crypto.Address) (*Market, error) {
	if e.state == nil {
		return nil, errNilState
	}
	market, err := e.state.GetMarket(asset)
	if err != nil {
		return nil, err
	}
	if market == nil {
		return nil, errAssetNotSupported
	}
	market.ensureDefaults()
	return market, nil
}

func (e *Engine) loadPosition(user, asset crypto.Address, market *Market) (*Position, error) {
	position, err := e.state.GetPosition(user, asset)
	if err != nil {
		return nil, err
	}
	if position == nil {
		position = &Position{LastUpdateTime: 0}
	}
	position.ensureDefaults(market.SupplyIndex)
	return position, nil
}

// projectSupplyIndex computes the supply index the market would hold at the
// given time without mutating it. The index grows only while both sides of
// the book are populated.
func projectSupplyIndex(market *Market, params *Params, now uint64) (*uint256.Int, error) {
	index := cloneOrZero(market.SupplyIndex)
	if now <= market.SupplyIndexLastUpdate {
		return index, nil
	}
	if !isPositive(market.TotalCollateral) || !isPositive(market.TotalBorrows) {
		return index, nil
	}
	util := Utilization(market.TotalBorrows, market.TotalCollateral)
	borrowRate := BorrowRate(util, params.Interest)
	supplyRate := borrowRate * util * (bpsDen - params.Risk.ReserveFactorBps) / (bpsDen * bpsDen)
	if supplyRate == 0 {
		return index, nil
	}
	elapsed := now - market.SupplyIndexLastUpdate
	scaled, err := checkedMul(index, uint256.NewInt(supplyRate))
	if err != nil {
		return nil, err
	}
	growth, err := mulDiv(scaled, uint256.NewInt(elapsed), uint256.NewInt(uint64(secondsPerYear)*bpsDen))
	if err != nil {
		return nil, err
	}
	return checkedAdd(index, growth)
}

// updateSupplyIndex advances the market's supply index to now. Accrual is
// lazy: it runs at the start of every position-mutating operation, never in
// the background.
func (e *Engine) updateSupplyIndex(market *Market, params *Params, now uint64) error {
	index, err := projectSupplyIndex(market, params, now)
	if err != nil {
		return err
	}
	market.SupplyIndex = index
	if now > market.SupplyIndexLastUpdate {
		market.SupplyIndexLastUpdate = now
	}
	return nil
}

// normalizeCollateral rewrites the stored collateral to its index-adjusted
// real value and resets the user's index snapshot, folding the depositor's
// accrued interest into the market total.
func normalizeCollateral(position *Position, market *Market) error {
	if position.SupplyIndex.IsZero() {
		position.SupplyIndex = cloneOrZero(market.SupplyIndex)
		return nil
	}
	real, err := mulDiv(position.Collateral, market.SupplyIndex, position.SupplyIndex)
	if err != nil {
		return err
	}
	if real.Gt(position.Collateral) {
		growth := new(uint256.Int).Sub(real, position.Collateral)
		total, err := checkedAdd(market.TotalCollateral, growth)
		if err != nil {
			return err
		}
		market.TotalCollateral = total
	}
	position.Collateral = real
	position.SupplyIndex = cloneOrZero(market.SupplyIndex)
	return nil
}

// accrueDebt folds interest since the last touch into the stored debt,
// growing the market's borrow total and skimming the reserve factor share
// into the treasury. The borrow rate is sampled before the touch mutates the
// market totals so projections and mutations agree.
func accrueDebt(position *Position, market *Market, params *Params, rateBps uint64, now uint64) error {
	if !isPositive(position.Debt) {
		position.LastUpdateTime = now
		return nil
	}
	grown, err := BalanceWithInterest(position.Debt, rateBps, position.LastUpdateTime, now)
	if err != nil {
		return err
	}
	if grown.Gt(position.Debt) {
		interest := new(uint256.Int).Sub(grown, position.Debt)
		total, err := checkedAdd(market.TotalBorrows, interest)
		if err != nil {
			return err
		}
		market.TotalBorrows = total
		if params.Risk.ReserveFactorBps > 0 {
			skim, err := mulBP(interest, params.Risk.ReserveFactorBps)
			if err != nil {
				return err
			}
			reserve, err := checkedAdd(market.TreasuryReserve, skim)
			if err != nil {
				return err
			}
			market.TreasuryReserve = reserve
		}
	}
	position.Debt = grown
	position.LastUpdateTime = now
	return nil
}

// accrue runs the full lazy-accrual step for a position: supply index first,
// then collateral normalization, then debt interest.
func (e *Engine) accrue(position *Position, market *Market, params *Params, now uint64) error {
	util := Utilization(market.TotalBorrows, market.TotalCollateral)
	rate := BorrowRate(util, params.Interest)
	if err := e.updateSupplyIndex(market, params, now); err != nil {
		return err
	}
	if err := normalizeCollateral(position, market); err != nil {
		return err
	}
	return accrueDebt(position, market, params, rate, now)
}

// persistPosition stores the position and maintains the user's asset
// membership list, dropping the pair once both sides reach zero.
func (e *Engine) persistPosition(user, asset crypto.Address, position *Position) error {
	if position.IsEmpty() {
		if err := e.state.DeletePosition(user, asset); err != nil {
			return err
		}
		return e.state.RemoveUserAsset(user, asset)
	}
	if err := e.state.PutPosition(user, asset, position); err != nil {
		return err
	}
	return e.state.AddUserAsset(user, asset)
}

// Deposit locks collateral into the pool for the caller.
func (e *Engine) Deposit(caller, asset crypto.Address, amount *uint256.Int) error {
	if err := e.lock.acquire(); err != nil {
		return err
	}
	defer e.lock.release()

	params, err := e.loadParams()
	if err != nil {
		return err
	}
	if err := requireActive(params); err != nil {
		return err
	}
	if !isPositive(amount) {
		return errInvalidAmount
	}
	if e.tokens == nil {
		return errNilTokenClient
	}

	market, err := e.loadMarket(asset)
	if err != nil {
		return err
	}
	now := e.nowFn()
	position, err := e.loadPosition(caller, asset, market)
	if err != nil {
		return err
	}
	if err := e.accrue(position, market, params, now); err != nil {
		return err
	}

	if err := e.tokens.TransferFrom(asset, caller, e.poolAddress, amount); err != nil {
		return fmt.Errorf("lending engine: collateral transfer failed: %w", err)
	}

	collateral, err := checkedAdd(position.Collateral, amount)
	if err != nil {
		return err
	}
	position.Collateral = collateral
	total, err := checkedAdd(market.TotalCollateral, amount)
	if err != nil {
		return err
	}
	market.TotalCollateral = total

	if err := e.persistPosition(caller, asset, position); err != nil {
		return err
	}
	if err := e.state.PutMarket(asset, market); err != nil {
		return err
	}

	e.emitter.Emit(events.LendingDeposit{User: caller, Asset: asset, Amount: cloneOrZero(amount)})
	return nil
}

// Withdraw releases collateral back to the caller, provided the pool retains
// enough free liquidity and the caller's account stays comfortably solvent.
func (e *Engine) Withdraw(caller, asset crypto.Address, amount *uint256.Int) error {
	if err := e.lock.acquire(); err != nil {
		return err
	}
	defer e.lock.release()

	params, err := e.loadParams()
	if err != nil {
		return err
	}
	if err := requireActive(params); err != nil {
		return err
	}
	if !isPositive(amount) {
		return errInvalidAmount
	}
	if e.tokens == nil {
		return errNilTokenClient
	}

	market, err := e.loadMarket(asset)
	if err != nil {
		return err
	}
	now := e.nowFn()
	position, err := e.loadPosition(caller, asset, market)
	if err != nil {
		return err
	}
	if err := e.accrue(position, market, params, now); err != nil {
		return err
	}

	if position.Collateral.Lt(amount) {
		return errInsufficientCollateral
	}
	if market.availableLiquidity().Lt(amount) {
		return errInsufficientLiquidity
	}

	position.Collateral = new(uint256.Int).Sub(position.Collateral, amount)
	remainingTotal, err := checkedSub(market.TotalCollateral, amount)
	if err != nil {
		return err
	}
	market.TotalCollateral = remainingTotal

	health, err := e.accountHealth(caller, params, now, overrides(asset, market, position))
	if err != nil {
		return err
	}
	if err := requireOperationHealth(health, params.Risk); err != nil {
		return err
	}

	if err := e.tokens.Transfer(asset, caller, amount); err != nil {
		return fmt.Errorf("lending engine: withdrawal transfer failed: %w", err)
	}

	if err := e.persistPosition(caller, asset, position); err != nil {
		return err
	}
	if err := e.state.PutMarket(asset, market); err != nil {
		return err
	}

	e.emitter.Emit(events.LendingWithdraw{User: caller, Asset: asset, Amount: cloneOrZero(amount)})
	return nil
}

// Borrow issues debt against the caller's collateral across all markets.
func (e *Engine) Borrow(caller, asset crypto.Address, amount *uint256.Int) error {
	if err := e.lock.acquire(); err != nil {
		return err
	}
	defer e.lock.release()

	params, err := e.loadParams()
	if err != nil {
		return err
	}
	if err := requireActive(params); err != nil {
		return err
	}
	if !isPositive(amount) {
		return errInvalidAmount
	}
	if e.tokens == nil {
		return errNilTokenClient
	}

	market, err := e.loadMarket(asset)
	if err != nil {
		return err
	}
	now := e.nowFn()
	position, err := e.loadPosition(caller, asset, market)
	if err != nil {
		return err
	}
	if err := e.accrue(position, market, params, now); err != nil {
		return err
	}

	if market.availableLiquidity().Lt(amount) {
		return errInsufficientLiquidity
	}

	debt, err := checkedAdd(position.Debt, amount)
	if err != nil {
		return err
	}
	position.Debt = debt
	borrows, err := checkedAdd(market.TotalBorrows, amount)
	if err != nil {
		return err
	}
	market.TotalBorrows = borrows

	health, err := e.accountHealth(caller, params, now, overrides(asset, market, position))
	if err != nil {
		return err
	}
	if err := requireOperationHealth(health, params.Risk); err != nil {
		return err
	}

	if err := e.tokens.Transfer(asset, caller, amount); err != nil {
		return fmt.Errorf("lending engine: borrow transfer failed: %w", err)
	}

	if err := e.persistPosition(caller, asset, position); err != nil {
		return err
	}
	if err := e.state.PutMarket(asset, market); err != nil {
		return err
	}

	e.emitter.Emit(events.LendingBorrow{User: caller, Asset: asset, Amount: cloneOrZero(amount)})
	return nil
}

// Repay pays down the caller's debt, capped at the outstanding balance. The
// amount actually applied is returned.
func (e *Engine) Repay(caller, asset crypto.Address, amount *uint256.Int) (*uint256.Int, error) {
	if err := e.lock.acquire(); err != nil {
		return nil, err
	}
	defer e.lock.release()

	params, err := e.loadParams()
	if err != nil {
		return nil, err
	}
	if err := requireActive(params); err != nil {
		return nil, err
	}
	if !isPositive(amount) {
		return nil, errInvalidAmount
	}
	if e.tokens == nil {
		return nil, errNilTokenClient
	}

	market, err := e.loadMarket(asset)
	if err != nil {
		return nil, err
	}
	now := e.nowFn()
	position, err := e.loadPosition(caller, asset, market)
	if err != nil {
		return nil, err
	}
	if err := e.accrue(position, market, params, now); err != nil {
		return nil, err
	}

	if !isPositive(position.Debt) {
		return nil, errNoOutstandingDebt
	}
	actual := new(uint256.Int).Set(minU(amount, position.Debt))

	if err := e.tokens.TransferFrom(asset, caller, e.poolAddress, actual); err != nil {
		return nil, fmt.Errorf("lending engine: repayment transfer failed: %w", err)
	}

	position.Debt = new(uint256.Int).Sub(position.Debt, actual)
	if market.TotalBorrows.Lt(actual) {
		market.TotalBorrows = new(uint256.Int)
	} else {
		market.TotalBorrows = new(uint256.Int).Sub(market.TotalBorrows, actual)
	}

	if err := e.persistPosition(caller, asset, position); err != nil {
		return nil, err
	}
	if err := e.state.PutMarket(asset, market); err != nil {
		return nil, err
	}

	e.emitter.Emit(events.LendingRepay{User: caller, Asset: asset, Amount: cloneOrZero(actual)})
	return actual, nil
}

// EmergencyWithdraw returns the caller's entire collateral balance in one
// asset. It is the only balance-mutating entry point that works while the
// pool is paused, and it demands the caller hold no debt anywhere.
func (e *Engine) EmergencyWithdraw(caller, asset crypto.Address) (*uint256.Int, error) {
	if err := e.lock.acquire(); err != nil {
		return nil, err
	}
	defer e.lock.release()

	params, err := e.loadParams()
	if err != nil {
		return nil, err
	}
	if e.tokens == nil {
		return nil, errNilTokenClient
	}

	assets, err := e.state.UserAssets(caller)
	if err != nil {
		return nil, err
	}
	for _, held := range assets {
		position, err := e.state.GetPosition(caller, held)
		if err != nil {
			return nil, err
		}
		if position != nil && isPositive(position.Debt) {
			return nil, errOutstandingDebt
		}
	}

	market, err := e.loadMarketAny(asset)
	if err != nil {
		return nil, err
	}
	now := e.nowFn()
	position, err := e.loadPosition(caller, asset, market)
	if err != nil {
		return nil, err
	}
	if err := e.updateSupplyIndex(market, params, now); err != nil {
		return nil, err
	}
	if err := normalizeCollateral(position, market); err != nil {
		return nil, err
	}

	amount := cloneOrZero(position.Collateral)
	if !isPositive(amount) {
		return nil, errInsufficientCollateral
	}
	if market.availableLiquidity().Lt(amount) {
		return nil, errInsufficientLiquidity
	}

	if err := e.tokens.Transfer(asset, caller, amount); err != nil {
		return nil, fmt.Errorf("lending engine: emergency transfer failed: %w", err)
	}

	position.Collateral = new(uint256.Int)
	total, err := checkedSub(market.TotalCollateral, amount)
	if err != nil {
		return nil, err
	}
	market.TotalCollateral = total

	if err := e.persistPosition(caller, asset, position); err != nil {
		return nil, err
	}
	if err := e.state.PutMarket(asset, market); err != nil {
		return nil, err
	}

	e.emitter.Emit(events.LendingEmergencyWithdraw{User: caller, Asset: asset, Amount: cloneOrZero(amount)})
	return amount, nil
}

// Market returns a copy of the market record for the asset.
func (e *Engine) Market(asset crypto.Address) (*Market, error) {
	market, err := e.loadMarketAny(asset)
	if err != nil {
		return nil, err
	}
	return market.Clone(), nil
}

// Position returns a copy of the stored position; nil when none exists.
func (e *Engine) Position(user, asset crypto.Address) (*Position, error) {
	if e.state == nil {
		return nil, errNilState
	}
	position, err := e.state.GetPosition(user, asset)
	if err != nil {
		return nil, err
	}
	return position.Clone(), nil
}

// Params returns a copy of the protocol parameters.
func (e *Engine) Params() (*Params, error) {
	params, err := e.loadParams()
	if err != nil {
		return nil, err
	}
	clone := *params
	return &clone, nil
}
