package lendstate

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"

	"lendpool/crypto"
	"lendpool/native/lending"
	"lendpool/storage"
)

var keyParams = []byte("lending/params")

func marketKey(asset crypto.Address) []byte {
	raw := asset.Array()
	return append([]byte("lending/market/"), raw[:]...)
}

func positionKey(user, asset crypto.Address) []byte {
	u := user.Array()
	a := asset.Array()
	key := append([]byte("lending/position/"), u[:]...)
	return append(key, a[:]...)
}

func assetsKey(user crypto.Address) []byte {
	raw := user.Array()
	return append([]byte("lending/assets/"), raw[:]...)
}

// Storage records keep addresses as raw payloads so the RLP layout stays
// independent of the bech32 presentation.

type paramsRecord struct {
	Owner              [crypto.AddressLength]byte
	Interest           lending.InterestParams
	Risk               lending.RiskConfig
	TWAPPeriodSeconds  uint64
	PriceMaxAgeSeconds uint64
	FlashLoansEnabled  bool
	Paused             bool
}

type marketRecord struct {
	Supported             bool
	Decimals              uint8
	TotalCollateral       *uint256.Int
	TotalBorrows          *uint256.Int
	SupplyIndex           *uint256.Int
	SupplyIndexLastUpdate uint64
	ManualPrice           *uint256.Int
	OraclePair            [crypto.AddressLength]byte
	TreasuryReserve       *uint256.Int
}

type positionRecord struct {
	Collateral     *uint256.Int
	Debt           *uint256.Int
	SupplyIndex    *uint256.Int
	LastUpdateTime uint64
}

type assetListRecord struct {
	Assets [][crypto.AddressLength]byte
}

// Manager persists the lending engine's state in a key-value database using
// RLP-encoded records.
type Manager struct {
	db storage.Database
}

// NewManager wraps a database in a lending state manager.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

func (m *Manager) get(key []byte, out interface{}) (bool, error) {
	raw, err := m.db.Get(key)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := rlp.DecodeBytes(raw, out); err != nil {
		return false, fmt.Errorf("lending state: decode %q: %w", key, err)
	}
	return true, nil
}

func (m *Manager) put(key []byte, record interface{}) error {
	raw, err := rlp.EncodeToBytes(record)
	if err != nil {
		return fmt.Errorf("lending state: encode %q: %w", key, err)
	}
	return m.db.Put(key, raw)
}

// GetParams loads the protocol parameters; nil without error when the pool
// has not been initialized.
func (m *Manager) GetParams() (*lending.Params, error) {
	var rec paramsRecord
	ok, err := m.get(keyParams, &rec)
	if err != nil || !ok {
		return nil, err
	}
	return &lending.Params{
		Owner:              crypto.MustNewAddress(crypto.AccountPrefix, rec.Owner),
		Interest:           rec.Interest,
		Risk:               rec.Risk,
		TWAPPeriodSeconds:  rec.TWAPPeriodSeconds,
		PriceMaxAgeSeconds: rec.PriceMaxAgeSeconds,
		FlashLoansEnabled:  rec.FlashLoansEnabled,
		Paused:             rec.Paused,
	}, nil
}

// PutParams stores the protocol parameters.
func (m *Manager) PutParams(params *lending.Params) error {
	return m.put(keyParams, &paramsRecord{
		Owner:              params.Owner.Array(),
		Interest:           params.Interest,
		Risk:               params.Risk,
		TWAPPeriodSeconds:  params.TWAPPeriodSeconds,
		PriceMaxAgeSeconds: params.PriceMaxAgeSeconds,
		FlashLoansEnabled:  params.FlashLoansEnabled,
		Paused:             params.Paused,
	})
}

// GetMarket loads a market record; nil without error when the asset is
// unknown.
func (m *Manager) GetMarket(asset crypto.Address) (*lending.Market, error) {
	var rec marketRecord
	ok, err := m.get(marketKey(asset), &rec)
	if err != nil || !ok {
		return nil, err
	}
	return &lending.Market{
		Supported:             rec.Supported,
		Decimals:              rec.Decimals,
		TotalCollateral:       rec.TotalCollateral,
		TotalBorrows:          rec.TotalBorrows,
		SupplyIndex:           rec.SupplyIndex,
		SupplyIndexLastUpdate: rec.SupplyIndexLastUpdate,
		ManualPrice:           rec.ManualPrice,
		OraclePair:            crypto.MustNewAddress(crypto.AssetPrefix, rec.OraclePair),
		TreasuryReserve:       rec.TreasuryReserve,
	}, nil
}

// PutMarket stores a market record.
func (m *Manager) PutMarket(asset crypto.Address, market *lending.Market) error {
	return m.put(marketKey(asset), &marketRecord{
		Supported:             market.Supported,
		Decimals:              market.Decimals,
		TotalCollateral:       market.TotalCollateral,
		TotalBorrows:          market.TotalBorrows,
		SupplyIndex:           market.SupplyIndex,
		SupplyIndexLastUpdate: market.SupplyIndexLastUpdate,
		ManualPrice:           market.ManualPrice,
		OraclePair:            market.OraclePair.Array(),
		TreasuryReserve:       market.TreasuryReserve,
	})
}

// GetPosition loads a (user, asset) position; nil without error when absent.
func (m *Manager) GetPosition(user, asset crypto.Address) (*lending.Position, error) {
	var rec positionRecord
	ok, err := m.get(positionKey(user, asset), &rec)
	if err != nil || !ok {
		return nil, err
	}
	return &lending.Position{
		Collateral:     rec.Collateral,
		Debt:           rec.Debt,
		SupplyIndex:    rec.SupplyIndex,
		LastUpdateTime: rec.LastUpdateTime,
	}, nil
}

// PutPosition stores a (user, asset) position.
func (m *Manager) PutPosition(user, asset crypto.Address, position *lending.Position) error {
	return m.put(positionKey(user, asset), &positionRecord{
		Collateral:     position.Collateral,
		Debt:           position.Debt,
		SupplyIndex:    position.SupplyIndex,
		LastUpdateTime: position.LastUpdateTime,
	})
}

// DeletePosition removes a stored position. Deleting a missing position is
// not an error.
func (m *Manager) DeletePosition(user, asset crypto.Address) error {
	err := m.db.Delete(positionKey(user, asset))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil
	}
	return err
}

// UserAssets returns the assets the user currently has a position in.
func (m *Manager) UserAssets(user crypto.Address) ([]crypto.Address, error) {
	var rec assetListRecord
	ok, err := m.get(assetsKey(user), &rec)
	if err != nil || !ok {
		return nil, err
	}
	out := make([]crypto.Address, 0, len(rec.Assets))
	for _, raw := range rec.Assets {
		out = append(out, crypto.MustNewAddress(crypto.AssetPrefix, raw))
	}
	return out, nil
}

// AddUserAsset appends an asset to the user's membership list; adding an
// existing member is a no-op.
func (m *Manager) AddUserAsset(user, asset crypto.Address) error {
	var rec assetListRecord
	if _, err := m.get(assetsKey(user), &rec); err != nil {
		return err
	}
	target := asset.Array()
	for _, raw := range rec.Assets {
		if raw == target {
			return nil
		}
	}
	rec.Assets = append(rec.Assets, target)
	return m.put(assetsKey(user), &rec)
}

// RemoveUserAsset drops an asset from the user's membership list; removing a
// missing member is a no-op. An emptied list is deleted outright.
func (m *Manager) RemoveUserAsset(user, asset crypto.Address) error {
	var rec assetListRecord
	ok, err := m.get(assetsKey(user), &rec)
	if err != nil || !ok {
		return err
	}
	target := asset.Array()
	for i, raw := range rec.Assets {
		if raw == target {
			rec.Assets = append(rec.Assets[:i], rec.Assets[i+1:]...)
			if len(rec.Assets) == 0 {
				err := m.db.Delete(assetsKey(user))
				if errors.Is(err, storage.ErrKeyNotFound) {
					return nil
				}
				return err
			}
			return m.put(assetsKey(user), &rec)
		}
	}
	return nil
}
