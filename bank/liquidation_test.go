package bank

import (
	"errors"
	"math/big"
	"testing"
)

func TestComputeLiquidationAmountsBasic(t *testing.T) {
	amounts := computeLiquidationAmounts(
		big.NewInt(10), big.NewInt(100), big.NewInt(1000),
		MustDecFromString("20"), OneDec(),
		MustDecFromString("0.5"), MustDecFromString("0.1"),
	)
	if amounts.debtToRepay.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("expected repay 10, got %s", amounts.debtToRepay)
	}
	// 10 debt * price 20 * 1.1 bonus / collateral price 1 = 220.
	if amounts.collateralToSeize.Cmp(big.NewInt(220)) != 0 {
		t.Fatalf("expected seize 220, got %s", amounts.collateralToSeize)
	}
	if amounts.refund.Sign() != 0 {
		t.Fatalf("expected no refund, got %s", amounts.refund)
	}
}

func TestComputeLiquidationAmountsCloseFactorCapsRepay(t *testing.T) {
	amounts := computeLiquidationAmounts(
		big.NewInt(60), big.NewInt(100), big.NewInt(10000),
		MustDecFromString("20"), OneDec(),
		MustDecFromString("0.5"), MustDecFromString("0.1"),
	)
	if amounts.debtToRepay.Cmp(big.NewInt(50)) != 0 {
		t.Fatalf("expected repay capped at 50, got %s", amounts.debtToRepay)
	}
	if amounts.collateralToSeize.Cmp(big.NewInt(1100)) != 0 {
		t.Fatalf("expected seize 1100, got %s", amounts.collateralToSeize)
	}
	if amounts.refund.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("expected refund 10, got %s", amounts.refund)
	}
}

func TestComputeLiquidationAmountsBalanceCapShrinksRepay(t *testing.T) {
	amounts := computeLiquidationAmounts(
		big.NewInt(60), big.NewInt(100), big.NewInt(300),
		MustDecFromString("20"), OneDec(),
		MustDecFromString("0.5"), MustDecFromString("0.1"),
	)
	if amounts.collateralToSeize.Cmp(big.NewInt(300)) != 0 {
		t.Fatalf("expected seizure capped at 300, got %s", amounts.collateralToSeize)
	}
	// 300 collateral value back through the bonus-adjusted debt price:
	// trunc(300 / 22) = 13.
	if amounts.debtToRepay.Cmp(big.NewInt(13)) != 0 {
		t.Fatalf("expected repay 13, got %s", amounts.debtToRepay)
	}
	if amounts.refund.Cmp(big.NewInt(47)) != 0 {
		t.Fatalf("expected refund 47, got %s", amounts.refund)
	}
}

// underwaterPosition sets up alice with 300 uosmo collateral and 100 uatom
// debt borrowed at price 1, then reprices uatom to 20 so her health factor
// drops to roughly 0.1.
func underwaterPosition(t *testing.T) (*Engine, *mockState, *mockLedger) {
	t.Helper()
	engine, state, ledger := newTestEngine(t)
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

	ledger.prices["uatom"] = MustDecFromString("20")
	return engine, state, ledger
}

func TestLiquidateSelfRejected(t *testing.T) {
	engine, _, _ := underwaterPosition(t)
	_, err := engine.Liquidate(aliceAddr, aliceAddr, "uosmo", "uatom", big.NewInt(10), true, nil, 0)
	if !errors.Is(err, errCannotLiquidateSelf) {
		t.Fatalf("expected self-liquidation rejection, got %v", err)
	}
}

func TestLiquidateHealthyPositionRejected(t *testing.T) {
	engine, _, ledger := underwaterPosition(t)
	ledger.prices["uatom"] = OneDec()
	_, err := engine.Liquidate(bobAddr, aliceAddr, "uosmo", "uatom", big.NewInt(10), true, nil, 0)
	if !errors.Is(err, errNotLiquidatable) {
		t.Fatalf("expected not liquidatable, got %v", err)
	}
}

func TestLiquidateUncollateralizedDebtRejected(t *testing.T) {
	engine, state, _ := underwaterPosition(t)
	state.limits[userKey("uatom", aliceAddr)] = big.NewInt(1000)
	_, err := engine.Liquidate(bobAddr, aliceAddr, "uosmo", "uatom", big.NewInt(10), true, nil, 0)
	if !errors.Is(err, errCannotLiquidateUncollateralized) {
		t.Fatalf("expected uncollateralized rejection, got %v", err)
	}
}

func TestLiquidateNoCollateralInAsset(t *testing.T) {
	engine, _, _ := underwaterPosition(t)
	_, err := engine.Liquidate(bobAddr, aliceAddr, "uatom", "uatom", big.NewInt(10), true, nil, 0)
	if !errors.Is(err, errNoCollateralToSeize) {
		t.Fatalf("expected no collateral to seize, got %v", err)
	}
}

func TestLiquidateReceiptSettlement(t *testing.T) {
	engine, state, ledger := underwaterPosition(t)
	ledger.addPool("uatom", big.NewInt(10))

	instrs, err := engine.Liquidate(bobAddr, aliceAddr, "uosmo", "uatom", big.NewInt(10), true, nil, 0)
	if err != nil {
		t.Fatalf("liquidate: %v", err)
	}
	var transfer *TransferReceiptOnLiquidation
	for _, instr := range instrs {
		if tr, ok := instr.(TransferReceiptOnLiquidation); ok {
			transfer = &tr
		}
	}
	if transfer == nil {
		t.Fatalf("expected receipt transfer instruction")
	}
	// 10 repaid * price 20 * 1.1 bonus = 220 uosmo at index 1.0.
	if transfer.AmountScaled.Cmp(big.NewInt(220)) != 0 {
		t.Fatalf("expected 220 scaled seized, got %s", transfer.AmountScaled)
	}
	if !transfer.To.Equal(bobAddr) {
		t.Fatalf("seizure sent to %s", transfer.To)
	}
	ledger.apply(t, instrs)

	debt, _ := state.GetDebt("uatom", aliceAddr)
	if debt.AmountScaled.Cmp(big.NewInt(90)) != 0 {
		t.Fatalf("expected 90 scaled debt remaining, got %s", debt.AmountScaled)
	}
	if state.markets["uatom"].DebtTotalScaled.Cmp(big.NewInt(90)) != 0 {
		t.Fatalf("market debt total mismatch: %s", state.markets["uatom"].DebtTotalScaled)
	}
	bobPosition, _ := state.GetPosition(bobAddr)
	if !bobPosition.IsCollateral("uosmo") {
		t.Fatalf("expected liquidator position to track received collateral")
	}
	alicePosition, _ := state.GetPosition(aliceAddr)
	if !alicePosition.IsCollateral("uosmo") {
		t.Fatalf("partial seizure should keep borrower's collateral flag")
	}
}

func TestLiquidateUnderlyingSettlement(t *testing.T) {
	engine, _, ledger := underwaterPosition(t)
	ledger.addPool("uatom", big.NewInt(10))

	instrs, err := engine.Liquidate(bobAddr, aliceAddr, "uosmo", "uatom", big.NewInt(10), false, nil, 0)
	if err != nil {
		t.Fatalf("liquidate: %v", err)
	}
	var burn *BurnReceipt
	var out *TransferUnderlying
	for _, instr := range instrs {
		switch in := instr.(type) {
		case BurnReceipt:
			burn = &in
		case TransferUnderlying:
			out = &in
		}
	}
	if burn == nil || burn.AmountScaled.Cmp(big.NewInt(220)) != 0 {
		t.Fatalf("expected 220 scaled burned, got %v", burn)
	}
	if out == nil || out.Amount.Cmp(big.NewInt(220)) != 0 || out.Denom != "uosmo" {
		t.Fatalf("expected 220 uosmo paid out, got %v", out)
	}
}

func TestLiquidateRejectedForLiquidityLeavesDebtUntouched(t *testing.T) {
	engine, state, ledger := underwaterPosition(t)
	ledger.addPool("uatom", big.NewInt(10))
	// Underlying settlement needs 220 uosmo paid out of a pool holding 100.
	ledger.setPool("uosmo", 100)

	_, err := engine.Liquidate(bobAddr, aliceAddr, "uosmo", "uatom", big.NewInt(10), false, nil, 0)
	if !errors.Is(err, errInsufficientLiquidity) {
		t.Fatalf("expected insufficient liquidity, got %v", err)
	}

	debt, _ := state.GetDebt("uatom", aliceAddr)
	if debt.AmountScaled.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("rejected liquidation must not reduce debt, got %s", debt.AmountScaled)
	}
	if state.markets["uatom"].DebtTotalScaled.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("rejected liquidation must not reduce market debt total, got %s", state.markets["uatom"].DebtTotalScaled)
	}
	position, _ := state.GetPosition(aliceAddr)
	if !position.IsCollateral("uosmo") {
		t.Fatalf("rejected liquidation must keep the borrower's collateral flag")
	}
}

func TestLiquidateRefundsSurplus(t *testing.T) {
	engine, _, ledger := underwaterPosition(t)
	// Sending 60 with close factor 0.5 caps the repay at 50; seizing
	// 50*20*1.1 = 1100 exceeds the 300 uosmo balance, so the repay shrinks
	// to trunc(300/22) = 13 and 47 comes back.
	ledger.addPool("uatom", big.NewInt(60))

	instrs, err := engine.Liquidate(bobAddr, aliceAddr, "uosmo", "uatom", big.NewInt(60), true, nil, 0)
	if err != nil {
		t.Fatalf("liquidate: %v", err)
	}
	var refund *TransferUnderlying
	for _, instr := range instrs {
		if tr, ok := instr.(TransferUnderlying); ok && tr.Denom == "uatom" {
			refund = &tr
		}
	}
	if refund == nil || refund.Amount.Cmp(big.NewInt(47)) != 0 {
		t.Fatalf("expected 47 refund, got %v", refund)
	}
	if !refund.Recipient.Equal(bobAddr) {
		t.Fatalf("refund sent to %s", refund.Recipient)
	}
}

func TestLiquidateFullSeizureClearsCollateralFlag(t *testing.T) {
	engine, state, ledger := underwaterPosition(t)
	ledger.addPool("uatom", big.NewInt(60))

	instrs, err := engine.Liquidate(bobAddr, aliceAddr, "uosmo", "uatom", big.NewInt(60), true, nil, 0)
	if err != nil {
		t.Fatalf("liquidate: %v", err)
	}
	ledger.apply(t, instrs)
	position, _ := state.GetPosition(aliceAddr)
	if position.IsCollateral("uosmo") {
		t.Fatalf("expected collateral flag cleared after full seizure")
	}
}
