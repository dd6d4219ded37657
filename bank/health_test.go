package bank

import (
	"math/big"
	"testing"
)

func TestValuatePositionEmpty(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	valuation, err := engine.valuatePosition(aliceAddr, 0)
	if err != nil {
		t.Fatalf("valuate: %v", err)
	}
	if valuation.Health.Borrowing {
		t.Fatalf("empty position reported as borrowing")
	}
	if !valuation.CollateralValue.IsZero() || !valuation.DebtValue.IsZero() {
		t.Fatalf("empty position has nonzero values: %+v", valuation)
	}
}

func TestValuatePositionHealthFactor(t *testing.T) {
	engine, _, ledger := newTestEngine(t)
	for _, denom := range []string{"uosmo", "uatom"} {
		if err := engine.InitAsset(ownerAddr, denom, testParams(), 0); err != nil {
			t.Fatalf("init %s: %v", denom, err)
		}
		ledger.prices[denom] = OneDec()
	}
	ledger.setPool("uosmo", 300)
	ledger.setPool("uatom", 500)
	instrs, err := engine.Deposit(aliceAddr, "uosmo", big.NewInt(300), nil, 0)
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	ledger.apply(t, instrs)
	instrs, err = engine.Borrow(aliceAddr, "uatom", big.NewInt(100), nil, 0)
	if err != nil {
		t.Fatalf("borrow: %v", err)
	}
	ledger.apply(t, instrs)

	valuation, err := engine.valuatePosition(aliceAddr, 0)
	if err != nil {
		t.Fatalf("valuate: %v", err)
	}
	if !valuation.CollateralValue.Equal(MustDecFromString("300")) {
		t.Fatalf("collateral value %s", valuation.CollateralValue)
	}
	if !valuation.MaxDebtValue.Equal(MustDecFromString("165")) {
		t.Fatalf("max debt value %s", valuation.MaxDebtValue)
	}
	if !valuation.WeightedLiquidationThresholdValue.Equal(MustDecFromString("202.2")) {
		t.Fatalf("weighted threshold value %s", valuation.WeightedLiquidationThresholdValue)
	}
	if !valuation.DebtValue.Equal(MustDecFromString("100")) {
		t.Fatalf("debt value %s", valuation.DebtValue)
	}
	if !valuation.Health.Borrowing {
		t.Fatalf("expected borrowing status")
	}
	// 202.2 / 100 = 2.022.
	if !valuation.Health.HealthFactor.Equal(MustDecFromString("2.022")) {
		t.Fatalf("health factor %s", valuation.Health.HealthFactor)
	}
	if valuation.Health.Liquidatable() {
		t.Fatalf("healthy position flagged liquidatable")
	}
}

func TestUncollateralizedDebtExcludedFromHealth(t *testing.T) {
	engine, _, ledger := newTestEngine(t)
	for _, denom := range []string{"uosmo", "uatom"} {
		if err := engine.InitAsset(ownerAddr, denom, testParams(), 0); err != nil {
			t.Fatalf("init %s: %v", denom, err)
		}
		ledger.prices[denom] = OneDec()
	}
	ledger.setPool("uosmo", 300)
	ledger.setPool("uatom", 1000)
	if err := engine.UpdateUncollateralizedLoanLimit(ownerAddr, aliceAddr, "uatom", big.NewInt(500), 0); err != nil {
		t.Fatalf("update limit: %v", err)
	}
	instrs, err := engine.Deposit(aliceAddr, "uosmo", big.NewInt(300), nil, 0)
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	ledger.apply(t, instrs)
	instrs, err = engine.Borrow(aliceAddr, "uatom", big.NewInt(400), nil, 0)
	if err != nil {
		t.Fatalf("borrow: %v", err)
	}
	ledger.apply(t, instrs)

	valuation, err := engine.valuatePosition(aliceAddr, 0)
	if err != nil {
		t.Fatalf("valuate: %v", err)
	}
	// Reported in the total but absent from the collateralized bucket.
	if !valuation.DebtValue.Equal(MustDecFromString("400")) {
		t.Fatalf("debt value %s", valuation.DebtValue)
	}
	if !valuation.CollateralizedDebtValue.IsZero() {
		t.Fatalf("collateralized debt value %s", valuation.CollateralizedDebtValue)
	}
	if valuation.Health.Borrowing {
		t.Fatalf("uncollateralized-only debt should not drive the health factor")
	}
}

func TestHealthAfterWithdraw(t *testing.T) {
	v := &PositionValuation{
		WeightedLiquidationThresholdValue: MustDecFromString("202.2"),
		CollateralizedDebtValue:           MustDecFromString("100"),
	}
	after := healthAfterWithdraw(v, MustDecFromString("200"), MustDecFromString("0.674"))
	if !after.Borrowing {
		t.Fatalf("expected borrowing status")
	}
	if after.HealthFactor.GTE(OneDec()) {
		t.Fatalf("expected unhealthy result, got %s", after.HealthFactor)
	}

	after = healthAfterWithdraw(v, MustDecFromString("100"), MustDecFromString("0.674"))
	if after.HealthFactor.LT(OneDec()) {
		t.Fatalf("expected healthy result, got %s", after.HealthFactor)
	}
}
