package lendstate

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"lendpool/crypto"
	"lendpool/native/lending"
	"lendpool/storage"
)

func addr(prefix crypto.AddressPrefix, b byte) crypto.Address {
	var raw [crypto.AddressLength]byte
	raw[0] = b
	return crypto.MustNewAddress(prefix, raw)
}

func newManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(storage.NewMemDB())
}

func TestParamsRoundTrip(t *testing.T) {
	m := newManager(t)

	got, err := m.GetParams()
	require.NoError(t, err)
	require.Nil(t, got)

	owner := addr(crypto.AccountPrefix, 0x01)
	params := lending.DefaultParams(owner)
	params.Paused = true
	params.PriceMaxAgeSeconds = 90
	require.NoError(t, m.PutParams(params))

	got, err = m.GetParams()
	require.NoError(t, err)
	require.NotNil(t, got)
	require.True(t, got.Owner.Equal(owner))
	require.Equal(t, params.Interest, got.Interest)
	require.Equal(t, params.Risk, got.Risk)
	require.Equal(t, uint64(90), got.PriceMaxAgeSeconds)
	require.True(t, got.Paused)
}

func TestMarketRoundTrip(t *testing.T) {
	m := newManager(t)
	asset := addr(crypto.AssetPrefix, 0x0A)

	got, err := m.GetMarket(asset)
	require.NoError(t, err)
	require.Nil(t, got)

	market := &lending.Market{
		Supported:             true,
		Decimals:              6,
		TotalCollateral:       uint256.NewInt(1_000_000),
		TotalBorrows:          uint256.NewInt(250_000),
		SupplyIndex:           uint256.NewInt(1_020_000_000_000_000_000),
		SupplyIndexLastUpdate: 1_700_000_000,
		ManualPrice:           uint256.NewInt(2_000_000_000_000_000_000),
		OraclePair:            addr(crypto.AssetPrefix, 0xA0),
		TreasuryReserve:       uint256.NewInt(42),
	}
	require.NoError(t, m.PutMarket(asset, market))

	got, err = m.GetMarket(asset)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.True(t, got.Supported)
	require.Equal(t, uint8(6), got.Decimals)
	require.True(t, got.TotalCollateral.Eq(market.TotalCollateral))
	require.True(t, got.TotalBorrows.Eq(market.TotalBorrows))
	require.True(t, got.SupplyIndex.Eq(market.SupplyIndex))
	require.Equal(t, market.SupplyIndexLastUpdate, got.SupplyIndexLastUpdate)
	require.True(t, got.ManualPrice.Eq(market.ManualPrice))
	require.True(t, got.OraclePair.Equal(market.OraclePair))
	require.True(t, got.TreasuryReserve.Eq(market.TreasuryReserve))
}

func TestPositionRoundTripAndDelete(t *testing.T) {
	m := newManager(t)
	user := addr(crypto.AccountPrefix, 0x01)
	asset := addr(crypto.AssetPrefix, 0x0A)

	got, err := m.GetPosition(user, asset)
	require.NoError(t, err)
	require.Nil(t, got)

	position := &lending.Position{
		Collateral:     uint256.NewInt(500),
		Debt:           uint256.NewInt(120),
		SupplyIndex:    uint256.NewInt(1_000_000_000_000_000_000),
		LastUpdateTime: 1_700_000_000,
	}
	require.NoError(t, m.PutPosition(user, asset, position))

	got, err = m.GetPosition(user, asset)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.True(t, got.Collateral.Eq(position.Collateral))
	require.True(t, got.Debt.Eq(position.Debt))
	require.Equal(t, position.LastUpdateTime, got.LastUpdateTime)

	require.NoError(t, m.DeletePosition(user, asset))
	got, err = m.GetPosition(user, asset)
	require.NoError(t, err)
	require.Nil(t, got)

	// Deleting again stays quiet.
	require.NoError(t, m.DeletePosition(user, asset))
}

func TestUserAssetMembership(t *testing.T) {
	m := newManager(t)
	user := addr(crypto.AccountPrefix, 0x01)
	first := addr(crypto.AssetPrefix, 0x0A)
	second := addr(crypto.AssetPrefix, 0x0B)

	held, err := m.UserAssets(user)
	require.NoError(t, err)
	require.Empty(t, held)

	require.NoError(t, m.AddUserAsset(user, first))
	require.NoError(t, m.AddUserAsset(user, second))
	require.NoError(t, m.AddUserAsset(user, first)) // idempotent

	held, err = m.UserAssets(user)
	require.NoError(t, err)
	require.Len(t, held, 2)
	require.True(t, held[0].Equal(first))
	require.True(t, held[1].Equal(second))

	require.NoError(t, m.RemoveUserAsset(user, first))
	require.NoError(t, m.RemoveUserAsset(user, first)) // idempotent

	held, err = m.UserAssets(user)
	require.NoError(t, err)
	require.Len(t, held, 1)
	require.True(t, held[0].Equal(second))

	require.NoError(t, m.RemoveUserAsset(user, second))
	held, err = m.UserAssets(user)
	require.NoError(t, err)
	require.Empty(t, held)
}

func TestPositionKeysAreDisjoint(t *testing.T) {
	m := newManager(t)
	userA := addr(crypto.AccountPrefix, 0x01)
	userB := addr(crypto.AccountPrefix, 0x02)
	asset := addr(crypto.AssetPrefix, 0x0A)

	require.NoError(t, m.PutPosition(userA, asset, &lending.Position{
		Collateral: uint256.NewInt(1), Debt: uint256.NewInt(0), SupplyIndex: uint256.NewInt(1),
	}))
	got, err := m.GetPosition(userB, asset)
	require.NoError(t, err)
	require.Nil(t, got)
}
