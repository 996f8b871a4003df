package lending

import (
	"github.com/holiman/uint256"

	"lendpool/crypto"
)

// Position tracks one (user, asset) pair. Collateral is stored pre-interest
// and scaled against SupplyIndex on every touch; Debt is stored
// interest-bearing and accrued directly at every touch.
type Position struct {
	// Collateral holds raw token units last normalized at SupplyIndex.
	Collateral *uint256.Int
	// Debt holds raw token units including interest accrued up to
	// LastUpdateTime.
	Debt *uint256.Int
	// SupplyIndex is the global supply index captured at the last
	// interaction.
	SupplyIndex *uint256.Int
	// LastUpdateTime is the unix timestamp of the last debt accrual.
	LastUpdateTime uint64
}

// Clone returns a deep copy of the position.
func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}
	return &Position{
		Collateral:     cloneOrZero(p.Collateral),
		Debt:           cloneOrZero(p.Debt),
		SupplyIndex:    cloneOrZero(p.SupplyIndex),
		LastUpdateTime: p.LastUpdateTime,
	}
}

// IsEmpty reports whether both sides of the position are zero, at which point
// the pair is dropped from the user's membership list.
func (p *Position) IsEmpty() bool {
	if p == nil {
		return true
	}
	return !isPositive(p.Collateral) && !isPositive(p.Debt)
}

func (p *Position) ensureDefaults(index *uint256.Int) {
	if p.Collateral == nil {
		p.Collateral = new(uint256.Int)
	}
	if p.Debt == nil {
		p.Debt = new(uint256.Int)
	}
	if p.SupplyIndex == nil || p.SupplyIndex.IsZero() {
		p.SupplyIndex = cloneOrZero(index)
	}
}

// Market captures the global accounting state for one supported asset.
type Market struct {
	// Supported is cleared instead of deleting the record when an asset is
	// retired, so historical positions stay readable.
	Supported bool
	// Decimals is the token's native decimal count, captured when the asset
	// was added.
	Decimals uint8
	// TotalCollateral aggregates all deposited collateral in raw units.
	TotalCollateral *uint256.Int
	// TotalBorrows aggregates outstanding debt in raw units, including
	// interest folded in at position touches.
	TotalBorrows *uint256.Int
	// SupplyIndex starts at 1e18 and never decreases.
	SupplyIndex *uint256.Int
	// SupplyIndexLastUpdate is the unix timestamp of the last index growth.
	SupplyIndexLastUpdate uint64
	// ManualPrice is the admin-set 1e18-scaled price, used when no oracle
	// pair resolves.
	ManualPrice *uint256.Int
	// OraclePair is the liquidity-book pair consulted for TWAP pricing; the
	// zero address disables oracle pricing for this asset.
	OraclePair crypto.Address
	// TreasuryReserve is the protocol fee balance accumulated from interest
	// skims and flash-loan fees, withdrawable by the owner.
	TreasuryReserve *uint256.Int
}

// Clone returns a deep copy of the market.
func (m *Market) Clone() *Market {
	if m == nil {
		return nil
	}
	return &Market{
		Supported:             m.Supported,
		Decimals:              m.Decimals,
		TotalCollateral:       cloneOrZero(m.TotalCollateral),
		TotalBorrows:          cloneOrZero(m.TotalBorrows),
		SupplyIndex:           cloneOrZero(m.SupplyIndex),
		SupplyIndexLastUpdate: m.SupplyIndexLastUpdate,
		ManualPrice:           cloneOrZero(m.ManualPrice),
		OraclePair:            m.OraclePair,
		TreasuryReserve:       cloneOrZero(m.TreasuryReserve),
	}
}

func (m *Market) ensureDefaults() {
	if m.TotalCollateral == nil {
		m.TotalCollateral = new(uint256.Int)
	}
	if m.TotalBorrows == nil {
		m.TotalBorrows = new(uint256.Int)
	}
	if m.SupplyIndex == nil || m.SupplyIndex.IsZero() {
		m.SupplyIndex = cloneOrZero(wad)
	}
	if m.ManualPrice == nil {
		m.ManualPrice = new(uint256.Int)
	}
	if m.TreasuryReserve == nil {
		m.TreasuryReserve = new(uint256.Int)
	}
}

// availableLiquidity is the pool liquidity not currently lent out; it gates
// withdrawals, flash loans and reserve payouts.
func (m *Market) availableLiquidity() *uint256.Int {
	if m.TotalBorrows.Gt(m.TotalCollateral) {
		return new(uint256.Int)
	}
	return new(uint256.Int).Sub(m.TotalCollateral, m.TotalBorrows)
}

// AccountHealth is the derived solvency snapshot for one user across all
// markets. Values are 1e18-scaled common units; HealthFactor is 1e18-scaled
// with 1.0 as the solvency boundary.
type AccountHealth struct {
	TotalCollateralValue *uint256.Int
	TotalBorrowValue     *uint256.Int
	HealthFactor         *uint256.Int
	Healthy              bool
}
