package bank

import (
	"errors"
	"math/big"
	"testing"
)

func accrualMarket() *Market {
	m := &Market{
		Denom:           "uatom",
		LiquidityIndex:  OneDec(),
		BorrowIndex:     OneDec(),
		BorrowRate:      MustDecFromString("0.1"),
		LiquidityRate:   MustDecFromString("0.04"),
		DebtTotalScaled: big.NewInt(1000),
		ReserveFactor:   MustDecFromString("0.2"),
		RateModel: InterestRateModel{Linear: &LinearModel{
			Base:               MustDecFromString("0.1"),
			OptimalUtilization: MustDecFromString("0.8"),
		}},
		IndexesLastUpdated: 0,
	}
	m.ensureDefaults()
	return m
}

func TestAccrueIndexesOverOneYear(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	m := accrualMarket()

	instrs, err := engine.accrueIndexes(m, secondsPerYear)
	if err != nil {
		t.Fatalf("accrue: %v", err)
	}
	if !m.BorrowIndex.Equal(MustDecFromString("1.1")) {
		t.Fatalf("expected borrow index 1.1, got %s", m.BorrowIndex)
	}
	if !m.LiquidityIndex.Equal(MustDecFromString("1.04")) {
		t.Fatalf("expected liquidity index 1.04, got %s", m.LiquidityIndex)
	}
	// 100 interest accrued, 20% reserve factor, fee scaled by the new
	// liquidity index: trunc(20 / 1.04) = 19.
	if len(instrs) != 1 {
		t.Fatalf("expected one fee instruction, got %d", len(instrs))
	}
	mint := instrs[0].(MintReceipt)
	if !mint.Recipient.Equal(collectorAddr) {
		t.Fatalf("fee sent to %s", mint.Recipient)
	}
	if mint.AmountScaled.Cmp(big.NewInt(19)) != 0 {
		t.Fatalf("expected fee 19 scaled, got %s", mint.AmountScaled)
	}
}

func TestAccrueIndexesSameTimestampIsNoop(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	m := accrualMarket()
	if _, err := engine.accrueIndexes(m, secondsPerYear); err != nil {
		t.Fatalf("accrue: %v", err)
	}
	before := m.BorrowIndex
	instrs, err := engine.accrueIndexes(m, secondsPerYear)
	if err != nil {
		t.Fatalf("second accrue: %v", err)
	}
	if len(instrs) != 0 {
		t.Fatalf("expected no fee on repeat accrual, got %d instructions", len(instrs))
	}
	if !m.BorrowIndex.Equal(before) {
		t.Fatalf("index moved on same-timestamp accrual")
	}
}

func TestAccrueIndexesRejectsTimestampRegression(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	m := accrualMarket()
	m.IndexesLastUpdated = 100
	if _, err := engine.accrueIndexes(m, 99); !errors.Is(err, errTimestampRegression) {
		t.Fatalf("expected timestamp regression, got %v", err)
	}
}

func TestAccrueIndexesMonotonic(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	m := accrualMarket()
	prevBorrow := m.BorrowIndex
	prevLiquidity := m.LiquidityIndex
	for _, now := range []int64{1000, 50_000, 1_000_000, secondsPerYear} {
		if _, err := engine.accrueIndexes(m, now); err != nil {
			t.Fatalf("accrue at %d: %v", now, err)
		}
		if m.BorrowIndex.LT(prevBorrow) || m.LiquidityIndex.LT(prevLiquidity) {
			t.Fatalf("index decreased at %d", now)
		}
		prevBorrow = m.BorrowIndex
		prevLiquidity = m.LiquidityIndex
	}
}

func TestUpdateMarketRates(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	m := accrualMarket()
	// Debt 1000 against 1000 available: utilization 0.5, flat 10% borrow
	// rate, liquidity rate 0.1 * 0.5 * (1 - 0.2) = 0.04.
	engine.updateMarketRates(m, big.NewInt(1000), 0)
	if !m.BorrowRate.Equal(MustDecFromString("0.1")) {
		t.Fatalf("expected borrow rate 0.1, got %s", m.BorrowRate)
	}
	if !m.LiquidityRate.Equal(MustDecFromString("0.04")) {
		t.Fatalf("expected liquidity rate 0.04, got %s", m.LiquidityRate)
	}
}
