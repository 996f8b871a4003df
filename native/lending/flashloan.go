package lending

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"lendpool/core/events"
	"lendpool/crypto"
)

var (
	errFlashLoansDisabled      = errors.New("lending engine: flash loans are disabled")
	errNilFlashLoanReceiver    = errors.New("lending engine: flash loan receiver is nil")
	errFlashLoanCallbackFailed = errors.New("lending engine: flash loan callback rejected")
	errFlashLoanNotRepaid      = errors.New("lending engine: flash loan not repaid with fee")
)

// FlashLoan lends free pool liquidity for the duration of a single callback.
// Atomicity is enforced by balance accounting: the pool's token balance after
// the callback must cover the balance before it plus the fee, otherwise the
// whole operation fails and no state is written. The collected fee accrues to
// the treasury reserve and is returned.
func (e *Engine) FlashLoan(caller crypto.Address, receiver FlashLoanReceiver, asset crypto.Address, amount *uint256.Int) (*uint256.Int, error) {
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
	if !params.FlashLoansEnabled {
		return nil, errFlashLoansDisabled
	}
	if receiver == nil {
		return nil, errNilFlashLoanReceiver
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
	if err := e.updateSupplyIndex(market, params, now); err != nil {
		return nil, err
	}
	if market.availableLiquidity().Lt(amount) {
		return nil, errInsufficientLiquidity
	}

	fee, err := mulBP(amount, params.Risk.FlashLoanFeeBps)
	if err != nil {
		return nil, err
	}
	before, err := e.tokens.BalanceOf(asset, e.poolAddress)
	if err != nil {
		return nil, err
	}

	if err := e.tokens.Transfer(asset, receiver.Address(), amount); err != nil {
		return nil, fmt.Errorf("lending engine: flash loan transfer failed: %w", err)
	}
	ok, err := receiver.FlashLoanCallback(caller, asset, amount, fee)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errFlashLoanCallbackFailed, err)
	}
	if !ok {
		return nil, errFlashLoanCallbackFailed
	}

	after, err := e.tokens.BalanceOf(asset, e.poolAddress)
	if err != nil {
		return nil, err
	}
	required, err := checkedAdd(before, fee)
	if err != nil {
		return nil, err
	}
	if after.Lt(required) {
		return nil, errFlashLoanNotRepaid
	}

	reserve, err := checkedAdd(market.TreasuryReserve, fee)
	if err != nil {
		return nil, err
	}
	market.TreasuryReserve = reserve
	if err := e.state.PutMarket(asset, market); err != nil {
		return nil, err
	}

	e.emitter.Emit(events.LendingFlashLoan{
		Initiator: caller,
		Receiver:  receiver.Address(),
		Asset:     asset,
		Amount:    cloneOrZero(amount),
		Fee:       cloneOrZero(fee),
	})
	return fee, nil
}
