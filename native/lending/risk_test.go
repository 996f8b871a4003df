package lending

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"

	"lendpool/crypto"
)

// memOracle serves canned cumulative samples: the zero-lag request returns
// latest, any other lag returns earliest.
type memOracle struct {
	binStep  uint16
	latest   OracleSample
	earliest OracleSample
	err      error
}

func (o *memOracle) SampleFrom(pair crypto.Address, secondsAgo uint64) (OracleSample, error) {
	if o.err != nil {
		return OracleSample{}, o.err
	}
	if secondsAgo == 0 {
		return o.latest, nil
	}
	return o.earliest, nil
}

func (o *memOracle) BinStep(pair crypto.Address) (uint16, error) {
	if o.err != nil {
		return 0, o.err
	}
	return o.binStep, nil
}

func TestAccountHealthNoDebtSentinel(t *testing.T) {
	env := newTestEnv(t)
	user := testAccount(0x10)
	env.fund(t, user, tokens18(100))
	if err := env.engine.Deposit(user, env.asset, tokens18(100)); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	health, err := env.engine.AccountHealth(user)
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if !health.Healthy {
		t.Fatal("debt-free account must be healthy")
	}
	if !health.HealthFactor.Eq(healthFactorInfinite) {
		t.Fatalf("expected sentinel health factor, got %s", health.HealthFactor.Dec())
	}
	if !health.TotalCollateralValue.Eq(tokens18(100)) {
		t.Fatalf("collateral value = %s", health.TotalCollateralValue.Dec())
	}
}

func TestAccountHealthZeroPriceWithDebtFails(t *testing.T) {
	env := newTestEnv(t)
	user := testAccount(0x10)
	env.fund(t, user, tokens18(1000))
	if err := env.engine.Deposit(user, env.asset, tokens18(1000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := env.engine.Borrow(user, env.asset, tokens18(100)); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	if err := env.engine.SetManualPrice(env.owner, env.asset, new(uint256.Int)); err != nil {
		t.Fatalf("clear price: %v", err)
	}

	if _, err := env.engine.AccountHealth(user); !errors.Is(err, errPriceUnavailable) {
		t.Fatalf("expected errPriceUnavailable, got %v", err)
	}
}

func TestAccountHealthSkipsUnpricedCollateral(t *testing.T) {
	env := newTestEnv(t)
	user := testAccount(0x10)
	other := testAsset(0x0B)
	env.tokens.register(other, 18)
	if err := env.engine.AddAsset(env.owner, other); err != nil {
		t.Fatalf("add asset: %v", err)
	}
	env.fund(t, user, tokens18(100))
	env.tokens.mint(other, user, tokens18(500))

	if err := env.engine.Deposit(user, env.asset, tokens18(100)); err != nil {
		t.Fatalf("deposit priced: %v", err)
	}
	if err := env.engine.Deposit(user, other, tokens18(500)); err != nil {
		t.Fatalf("deposit unpriced: %v", err)
	}

	health, err := env.engine.AccountHealth(user)
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if !health.TotalCollateralValue.Eq(tokens18(100)) {
		t.Fatalf("unpriced collateral leaked into valuation: %s", health.TotalCollateralValue.Dec())
	}
}

func TestAccountHealthDecimalNormalization(t *testing.T) {
	env := newTestEnv(t)
	user := testAccount(0x10)
	micro := testAsset(0x0C)
	env.tokens.register(micro, 6)
	if err := env.engine.AddAsset(env.owner, micro); err != nil {
		t.Fatalf("add asset: %v", err)
	}
	price := new(uint256.Int).Mul(uint256.NewInt(2), wad)
	if err := env.engine.SetManualPrice(env.owner, micro, price); err != nil {
		t.Fatalf("set price: %v", err)
	}

	// 1.5 tokens at six decimals, priced at 2.0 per whole token.
	raw := uint256.NewInt(1_500_000)
	env.tokens.mint(micro, user, raw)
	if err := env.engine.Deposit(user, micro, raw); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	health, err := env.engine.AccountHealth(user)
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if !health.TotalCollateralValue.Eq(tokens18(3)) {
		t.Fatalf("collateral value = %s, want %s", health.TotalCollateralValue.Dec(), tokens18(3).Dec())
	}
}

func TestOracleTWAPPreferredOverManual(t *testing.T) {
	env := newTestEnv(t)
	user := testAccount(0x10)
	pair := testAsset(0xA0)

	// A constant cumulative slope of binIDShift resolves to a unit price
	// regardless of bin step.
	oracle := &memOracle{
		binStep:  25,
		earliest: OracleSample{CumulativeID: 0},
		latest:   OracleSample{CumulativeID: uint64(binIDShift) * 600, Timestamp: env.now},
	}
	env.engine.SetOracleClient(oracle)
	if err := env.engine.SetOraclePair(env.owner, env.asset, pair, 600); err != nil {
		t.Fatalf("set oracle pair: %v", err)
	}
	manual := new(uint256.Int).Mul(uint256.NewInt(5), wad)
	if err := env.engine.SetManualPrice(env.owner, env.asset, manual); err != nil {
		t.Fatalf("set manual price: %v", err)
	}

	env.fund(t, user, tokens18(10))
	if err := env.engine.Deposit(user, env.asset, tokens18(10)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	health, err := env.engine.AccountHealth(user)
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if !health.TotalCollateralValue.Eq(tokens18(10)) {
		t.Fatalf("expected oracle unit price, got value %s", health.TotalCollateralValue.Dec())
	}
}

func TestStaleOracleFallsBackToManual(t *testing.T) {
	env := newTestEnv(t)
	user := testAccount(0x10)
	pair := testAsset(0xA0)

	oracle := &memOracle{
		binStep:  25,
		earliest: OracleSample{CumulativeID: 0},
		latest:   OracleSample{CumulativeID: uint64(binIDShift) * 600, Timestamp: env.now - 120},
	}
	env.engine.SetOracleClient(oracle)
	if err := env.engine.SetOraclePair(env.owner, env.asset, pair, 600); err != nil {
		t.Fatalf("set oracle pair: %v", err)
	}
	if err := env.engine.SetPriceMaxAge(env.owner, 60); err != nil {
		t.Fatalf("set max age: %v", err)
	}
	manual := new(uint256.Int).Mul(uint256.NewInt(5), wad)
	if err := env.engine.SetManualPrice(env.owner, env.asset, manual); err != nil {
		t.Fatalf("set manual price: %v", err)
	}

	env.fund(t, user, tokens18(10))
	if err := env.engine.Deposit(user, env.asset, tokens18(10)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	health, err := env.engine.AccountHealth(user)
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if !health.TotalCollateralValue.Eq(tokens18(50)) {
		t.Fatalf("expected manual fallback price, got value %s", health.TotalCollateralValue.Dec())
	}
}

func TestOracleFailureFallsBackToManual(t *testing.T) {
	env := newTestEnv(t)
	user := testAccount(0x10)
	pair := testAsset(0xA0)

	env.engine.SetOracleClient(&memOracle{err: errors.New("pair offline")})
	if err := env.engine.SetOraclePair(env.owner, env.asset, pair, 600); err != nil {
		t.Fatalf("set oracle pair: %v", err)
	}

	env.fund(t, user, tokens18(10))
	if err := env.engine.Deposit(user, env.asset, tokens18(10)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	health, err := env.engine.AccountHealth(user)
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if !health.TotalCollateralValue.Eq(tokens18(10)) {
		t.Fatalf("expected manual price, got value %s", health.TotalCollateralValue.Dec())
	}
}
