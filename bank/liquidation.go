package bank

import (
	"math/big"

	"redbank/crypto"
)

// liquidationPair fixes, once at the start of a liquidation, whether the
// seized collateral and the repaid debt are the same market. Index accrual
// iterates pair.markets(), so the "accrue once" rule for the same-asset case
// is structural rather than a runtime branch deep in the algorithm.
type liquidationPair struct {
	sameAsset  bool
	collateral *Market
	debt       *Market
}

func newLiquidationPair(collateral, debt *Market) liquidationPair {
	if collateral.Denom == debt.Denom {
		return liquidationPair{sameAsset: true, collateral: collateral, debt: collateral}
	}
	return liquidationPair{collateral: collateral, debt: debt}
}

// markets returns each distinct market exactly once.
func (p liquidationPair) markets() []*Market {
	if p.sameAsset {
		return []*Market{p.collateral}
	}
	return []*Market{p.collateral, p.debt}
}

// liquidationAmounts is the outcome of sizing a liquidation.
type liquidationAmounts struct {
	// debtToRepay is the underlying debt amount actually applied.
	debtToRepay *big.Int
	// collateralToSeize is the bonus-adjusted underlying collateral paid to
	// the liquidator.
	collateralToSeize *big.Int
	// refund is the surplus of the sent debt-asset amount, returned to the
	// liquidator.
	refund *big.Int
}

// computeLiquidationAmounts sizes a partial liquidation:
//
//  1. at most closeFactor of the outstanding debt may be repaid;
//  2. the repaid value, grown by the liquidation bonus, converts into
//     collateral at oracle prices;
//  3. seizure never exceeds what the borrower actually holds — when the cap
//     binds, the repaid debt shrinks to stay consistent with it;
//  4. whatever was sent beyond the applied debt is refunded.
func computeLiquidationAmounts(sent, totalDebt, collateralBalance *big.Int, debtPrice, collateralPrice, closeFactor, liquidationBonus Dec) liquidationAmounts {
	maxRepayable := closeFactor.MulIntTruncate(totalDebt)
	debtToRepay := minInt(sent, maxRepayable)

	bonusFactor := OneDec().Add(liquidationBonus)
	collateralToSeize := DecFromInt(debtToRepay).
		Mul(debtPrice).
		Mul(bonusFactor).
		Quo(collateralPrice).
		TruncateInt()

	if collateralToSeize.Cmp(collateralBalance) > 0 {
		collateralToSeize = new(big.Int).Set(collateralBalance)
		debtToRepay = DecFromInt(collateralBalance).
			Mul(collateralPrice).
			Quo(debtPrice.Mul(bonusFactor)).
			TruncateInt()
	}

	refund := new(big.Int).Sub(sent, debtToRepay)
	if refund.Sign() < 0 {
		refund = big.NewInt(0)
	}
	return liquidationAmounts{
		debtToRepay:       debtToRepay,
		collateralToSeize: collateralToSeize,
		refund:            refund,
	}
}

// Liquidate repays part of an unhealthy borrower's debt with funds sent by
// the liquidator and pays out bonus-adjusted collateral in exchange. With
// receiveReceipt the collateral moves as receipt tokens; otherwise it is
// burned and paid out as underlying, subject to pool liquidity.
func (e *Engine) Liquidate(liquidator, borrower crypto.Address, collateralDenom, debtDenom string, sent *big.Int, receiveReceipt bool, recipient *crypto.Address, now int64) ([]Instruction, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if liquidator.Equal(borrower) {
		return nil, errCannotLiquidateSelf
	}
	if sent == nil || sent.Sign() <= 0 {
		return nil, errInvalidAmount
	}

	st := newStagedState(e.state)
	limit, err := st.GetUncollateralizedLimit(debtDenom, borrower)
	if err != nil {
		return nil, err
	}
	if limit != nil && limit.Sign() > 0 {
		return nil, errCannotLiquidateUncollateralized
	}

	collateralMarket, err := loadMarket(st, collateralDenom)
	if err != nil {
		return nil, err
	}
	if !collateralMarket.Active {
		return nil, errMarketInactive
	}
	debtMarket := collateralMarket
	if debtDenom != collateralDenom {
		debtMarket, err = loadMarket(st, debtDenom)
		if err != nil {
			return nil, err
		}
	}
	pair := newLiquidationPair(collateralMarket, debtMarket)

	position, err := st.GetPosition(borrower)
	if err != nil {
		return nil, err
	}
	if !position.IsCollateral(collateralDenom) {
		return nil, errNoCollateralToSeize
	}
	collateralScaled, err := e.ledger.ReceiptBalance(collateralDenom, borrower)
	if err != nil {
		return nil, err
	}
	if collateralScaled == nil || collateralScaled.Sign() == 0 {
		return nil, errNoCollateralToSeize
	}
	debt, err := st.GetDebt(debtDenom, borrower)
	if err != nil {
		return nil, err
	}
	if debt == nil || debt.AmountScaled == nil || debt.AmountScaled.Sign() == 0 {
		return nil, errNoDebtToRepay
	}

	valuation, err := e.valuatePosition(borrower, now)
	if err != nil {
		return nil, err
	}
	if !valuation.Health.Liquidatable() {
		return nil, errNotLiquidatable
	}

	var instrs []Instruction
	for _, m := range pair.markets() {
		fee, err := e.accrueIndexes(m, now)
		if err != nil {
			return nil, err
		}
		instrs = append(instrs, fee...)
	}

	collateralPrice, err := e.ledger.Price(collateralDenom)
	if err != nil {
		return nil, err
	}
	debtPrice, err := e.ledger.Price(debtDenom)
	if err != nil {
		return nil, err
	}

	totalDebt := underlyingDebt(debt.AmountScaled, pair.debt.BorrowIndex)
	collateralBalance := underlyingLiquidity(collateralScaled, pair.collateral.LiquidityIndex)
	amounts := computeLiquidationAmounts(sent, totalDebt, collateralBalance, debtPrice, collateralPrice, e.closeFactor, pair.collateral.LiquidationBonus)

	var scaledRepay *big.Int
	if amounts.debtToRepay.Cmp(totalDebt) == 0 {
		scaledRepay = new(big.Int).Set(debt.AmountScaled)
	} else {
		scaledRepay = DivIntDecTruncate(amounts.debtToRepay, pair.debt.BorrowIndex)
	}
	debt.AmountScaled = new(big.Int).Sub(debt.AmountScaled, scaledRepay)
	if err := st.PutDebt(debtDenom, borrower, debt); err != nil {
		return nil, err
	}
	pair.debt.DebtTotalScaled = new(big.Int).Sub(pair.debt.DebtTotalScaled, scaledRepay)
	if debt.AmountScaled.Sign() == 0 {
		position.ClearBorrowed(debtDenom)
	}

	var seizeScaled *big.Int
	if amounts.collateralToSeize.Cmp(collateralBalance) == 0 {
		seizeScaled = new(big.Int).Set(collateralScaled)
	} else {
		seizeScaled = scaledLiquidity(amounts.collateralToSeize, pair.collateral.LiquidityIndex)
	}
	if seizeScaled.Cmp(collateralScaled) >= 0 {
		position.ClearCollateral(collateralDenom)
	}
	if err := st.PutPosition(borrower, position); err != nil {
		return nil, err
	}

	to := liquidator
	if recipient != nil {
		to = *recipient
	}
	if receiveReceipt {
		if !to.Equal(borrower) {
			recipientPosition, err := st.GetPosition(to)
			if err != nil {
				return nil, err
			}
			if !recipientPosition.IsCollateral(collateralDenom) {
				recipientPosition.SetCollateral(collateralDenom)
				if err := st.PutPosition(to, recipientPosition); err != nil {
					return nil, err
				}
			}
		}
		instrs = append(instrs, TransferReceiptOnLiquidation{
			Denom:        collateralDenom,
			From:         borrower,
			To:           to,
			AmountScaled: seizeScaled,
		})
	} else {
		poolBalance, err := e.ledger.UnderlyingBalance(collateralDenom)
		if err != nil {
			return nil, err
		}
		required := new(big.Int).Set(amounts.collateralToSeize)
		if pair.sameAsset {
			// Refund and seizure draw from the same pool here; the sent
			// funds are already part of the balance.
			required.Add(required, amounts.refund)
		}
		if poolBalance.Cmp(required) < 0 {
			return nil, errInsufficientLiquidity
		}
		instrs = append(instrs,
			BurnReceipt{Denom: collateralDenom, From: borrower, AmountScaled: seizeScaled},
			TransferUnderlying{Denom: collateralDenom, Recipient: to, Amount: amounts.collateralToSeize},
		)
	}
	if amounts.refund.Sign() > 0 {
		instrs = append(instrs, TransferUnderlying{Denom: debtDenom, Recipient: liquidator, Amount: amounts.refund})
	}

	if pair.sameAsset {
		balance, err := e.ledger.UnderlyingBalance(collateralDenom)
		if err != nil {
			return nil, err
		}
		outgoing := new(big.Int).Set(amounts.refund)
		if !receiveReceipt {
			outgoing.Add(outgoing, amounts.collateralToSeize)
		}
		e.updateMarketRates(pair.collateral, new(big.Int).Sub(balance, outgoing), now)
		if err := st.PutMarket(pair.collateral); err != nil {
			return nil, err
		}
	} else {
		debtBalance, err := e.ledger.UnderlyingBalance(debtDenom)
		if err != nil {
			return nil, err
		}
		e.updateMarketRates(pair.debt, new(big.Int).Sub(debtBalance, amounts.refund), now)
		if err := st.PutMarket(pair.debt); err != nil {
			return nil, err
		}

		collateralPoolBalance, err := e.ledger.UnderlyingBalance(collateralDenom)
		if err != nil {
			return nil, err
		}
		outgoing := big.NewInt(0)
		if !receiveReceipt {
			outgoing = amounts.collateralToSeize
		}
		e.updateMarketRates(pair.collateral, new(big.Int).Sub(collateralPoolBalance, outgoing), now)
		if err := st.PutMarket(pair.collateral); err != nil {
			return nil, err
		}
	}

	if err := st.flush(); err != nil {
		return nil, err
	}

	e.emit(Liquidated{
		CollateralDenom:   collateralDenom,
		DebtDenom:         debtDenom,
		Liquidator:        liquidator,
		Borrower:          borrower,
		DebtRepaid:        amounts.debtToRepay,
		CollateralSeized:  amounts.collateralToSeize,
		Refund:            amounts.refund,
		ReceivedAsReceipt: receiveReceipt,
	})
	return instrs, nil
}
