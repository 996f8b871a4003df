package events

import (
	"log/slog"

	"github.com/holiman/uint256"

	"lendpool/crypto"
)

// Event type identifiers for the lending ledger.
const (
	TypeLendingDeposit            = "lending.deposit"
	TypeLendingWithdraw           = "lending.withdraw"
	TypeLendingEmergencyWithdraw  = "lending.emergency_withdraw"
	TypeLendingBorrow             = "lending.borrow"
	TypeLendingRepay              = "lending.repay"
	TypeLendingLiquidate          = "lending.liquidate"
	TypeLendingFlashLoan          = "lending.flash_loan"
	TypeLendingAssetAdded         = "lending.asset_added"
	TypeLendingAssetRemoved       = "lending.asset_removed"
	TypeLendingPriceUpdated       = "lending.price_updated"
	TypeLendingOraclePairUpdated  = "lending.oracle_pair_updated"
	TypeLendingParamsUpdated      = "lending.params_updated"
	TypeLendingPaused             = "lending.paused"
	TypeLendingUnpaused           = "lending.unpaused"
	TypeLendingOwnershipChanged   = "lending.ownership_transferred"
	TypeLendingReservesWithdrawn  = "lending.reserves_withdrawn"
)

func decString(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}

// LendingDeposit records collateral entering the pool.
type LendingDeposit struct {
	User   crypto.Address
	Asset  crypto.Address
	Amount *uint256.Int
}

func (LendingDeposit) EventType() string { return TypeLendingDeposit }

func (e LendingDeposit) Attributes() []slog.Attr {
	return []slog.Attr{
		slog.String("user", e.User.String()),
		slog.String("asset", e.Asset.String()),
		slog.String("amount", decString(e.Amount)),
	}
}

// LendingWithdraw records collateral leaving the pool.
type LendingWithdraw struct {
	User   crypto.Address
	Asset  crypto.Address
	Amount *uint256.Int
}

func (LendingWithdraw) EventType() string { return TypeLendingWithdraw }

func (e LendingWithdraw) Attributes() []slog.Attr {
	return []slog.Attr{
		slog.String("user", e.User.String()),
		slog.String("asset", e.Asset.String()),
		slog.String("amount", decString(e.Amount)),
	}
}

// LendingEmergencyWithdraw records a full collateral exit taken while the
// pool is paused.
type LendingEmergencyWithdraw struct {
	User   crypto.Address
	Asset  crypto.Address
	Amount *uint256.Int
}

func (LendingEmergencyWithdraw) EventType() string { return TypeLendingEmergencyWithdraw }

func (e LendingEmergencyWithdraw) Attributes() []slog.Attr {
	return []slog.Attr{
		slog.String("user", e.User.String()),
		slog.String("asset", e.Asset.String()),
		slog.String("amount", decString(e.Amount)),
	}
}

// LendingBorrow records new debt issued against collateral.
type LendingBorrow struct {
	User   crypto.Address
	Asset  crypto.Address
	Amount *uint256.Int
}

func (LendingBorrow) EventType() string { return TypeLendingBorrow }

func (e LendingBorrow) Attributes() []slog.Attr {
	return []slog.Attr{
		slog.String("user", e.User.String()),
		slog.String("asset", e.Asset.String()),
		slog.String("amount", decString(e.Amount)),
	}
}

// LendingRepay records debt being paid down.
type LendingRepay struct {
	User   crypto.Address
	Asset  crypto.Address
	Amount *uint256.Int
}

func (LendingRepay) EventType() string { return TypeLendingRepay }

func (e LendingRepay) Attributes() []slog.Attr {
	return []slog.Attr{
		slog.String("user", e.User.String()),
		slog.String("asset", e.Asset.String()),
		slog.String("amount", decString(e.Amount)),
	}
}

// LendingLiquidate records a liquidation: the liquidator repaid Repaid of the
// borrower's DebtAsset debt and seized Seized of CollateralAsset, including
// the incentive bonus expressed in basis points.
type LendingLiquidate struct {
	Liquidator      crypto.Address
	Borrower        crypto.Address
	DebtAsset       crypto.Address
	CollateralAsset crypto.Address
	Repaid          *uint256.Int
	Seized          *uint256.Int
	BonusBps        uint64
}

func (LendingLiquidate) EventType() string { return TypeLendingLiquidate }

func (e LendingLiquidate) Attributes() []slog.Attr {
	return []slog.Attr{
		slog.String("liquidator", e.Liquidator.String()),
		slog.String("borrower", e.Borrower.String()),
		slog.String("debt_asset", e.DebtAsset.String()),
		slog.String("collateral_asset", e.CollateralAsset.String()),
		slog.String("repaid", decString(e.Repaid)),
		slog.String("seized", decString(e.Seized)),
		slog.Uint64("bonus_bps", e.BonusBps),
	}
}

// LendingFlashLoan records a completed flash loan and the fee captured by the
// treasury.
type LendingFlashLoan struct {
	Initiator crypto.Address
	Receiver  crypto.Address
	Asset     crypto.Address
	Amount    *uint256.Int
	Fee       *uint256.Int
}

func (LendingFlashLoan) EventType() string { return TypeLendingFlashLoan }

func (e LendingFlashLoan) Attributes() []slog.Attr {
	return []slog.Attr{
		slog.String("initiator", e.Initiator.String()),
		slog.String("receiver", e.Receiver.String()),
		slog.String("asset", e.Asset.String()),
		slog.String("amount", decString(e.Amount)),
		slog.String("fee", decString(e.Fee)),
	}
}

// LendingAssetAdded records a new market opening.
type LendingAssetAdded struct {
	Asset    crypto.Address
	Decimals uint8
}

func (LendingAssetAdded) EventType() string { return TypeLendingAssetAdded }

func (e LendingAssetAdded) Attributes() []slog.Attr {
	return []slog.Attr{
		slog.String("asset", e.Asset.String()),
		slog.Uint64("decimals", uint64(e.Decimals)),
	}
}

// LendingAssetRemoved records a market being retired from support.
type LendingAssetRemoved struct {
	Asset crypto.Address
}

func (LendingAssetRemoved) EventType() string { return TypeLendingAssetRemoved }

func (e LendingAssetRemoved) Attributes() []slog.Attr {
	return []slog.Attr{slog.String("asset", e.Asset.String())}
}

// LendingPriceUpdated records an admin updating a manual price.
type LendingPriceUpdated struct {
	Asset crypto.Address
	Price *uint256.Int
}

func (LendingPriceUpdated) EventType() string { return TypeLendingPriceUpdated }

func (e LendingPriceUpdated) Attributes() []slog.Attr {
	return []slog.Attr{
		slog.String("asset", e.Asset.String()),
		slog.String("price", decString(e.Price)),
	}
}

// LendingOraclePairUpdated records the oracle pair configured for an asset.
type LendingOraclePairUpdated struct {
	Asset      crypto.Address
	Pair       crypto.Address
	TWAPPeriod uint64
}

func (LendingOraclePairUpdated) EventType() string { return TypeLendingOraclePairUpdated }

func (e LendingOraclePairUpdated) Attributes() []slog.Attr {
	return []slog.Attr{
		slog.String("asset", e.Asset.String()),
		slog.String("pair", e.Pair.String()),
		slog.Uint64("twap_period", e.TWAPPeriod),
	}
}

// LendingParamsUpdated records any parameter change; Scope identifies which
// parameter family changed ("interest" or "risk").
type LendingParamsUpdated struct {
	Scope string
}

func (LendingParamsUpdated) EventType() string { return TypeLendingParamsUpdated }

func (e LendingParamsUpdated) Attributes() []slog.Attr {
	return []slog.Attr{slog.String("scope", e.Scope)}
}

// LendingPaused records the pool entering the paused state.
type LendingPaused struct {
	Caller crypto.Address
}

func (LendingPaused) EventType() string { return TypeLendingPaused }

func (e LendingPaused) Attributes() []slog.Attr {
	return []slog.Attr{slog.String("caller", e.Caller.String())}
}

// LendingUnpaused records the pool resuming activity.
type LendingUnpaused struct {
	Caller crypto.Address
}

func (LendingUnpaused) EventType() string { return TypeLendingUnpaused }

func (e LendingUnpaused) Attributes() []slog.Attr {
	return []slog.Attr{slog.String("caller", e.Caller.String())}
}

// LendingOwnershipTransferred records an ownership hand-off.
type LendingOwnershipTransferred struct {
	Previous crypto.Address
	Next     crypto.Address
}

func (LendingOwnershipTransferred) EventType() string { return TypeLendingOwnershipChanged }

func (e LendingOwnershipTransferred) Attributes() []slog.Attr {
	return []slog.Attr{
		slog.String("previous", e.Previous.String()),
		slog.String("next", e.Next.String()),
	}
}

// LendingReservesWithdrawn records treasury reserves paid out by the owner.
type LendingReservesWithdrawn struct {
	Asset     crypto.Address
	Recipient crypto.Address
	Amount    *uint256.Int
}

func (LendingReservesWithdrawn) EventType() string { return TypeLendingReservesWithdrawn }

func (e LendingReservesWithdrawn) Attributes() []slog.Attr {
	return []slog.Attr{
		slog.String("asset", e.Asset.String()),
		slog.String("recipient", e.Recipient.String()),
		slog.String("amount", decString(e.Amount)),
	}
}
