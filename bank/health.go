package bank

import (
	"redbank/crypto"
)

// HealthStatus reports whether a user carries collateralized debt and, if so,
// the ratio of threshold-weighted collateral value to that debt value.
type HealthStatus struct {
	Borrowing    bool `json:"borrowing"`
	HealthFactor Dec  `json:"healthFactor"`
}

// Liquidatable reports whether the position may be liquidated.
func (h HealthStatus) Liquidatable() bool {
	return h.Borrowing && h.HealthFactor.LT(OneDec())
}

// PositionValuation aggregates a user's collateral and debt across every
// market they touch, valued through the oracle at a single timestamp.
type PositionValuation struct {
	// CollateralValue is the oracle value of all enabled collateral.
	CollateralValue Dec `json:"collateralValue"`
	// MaxDebtValue is the loan-to-value weighted collateral value; new
	// borrowing must stay below it.
	MaxDebtValue Dec `json:"maxDebtValue"`
	// WeightedLiquidationThresholdValue weights each market's collateral
	// value by its liquidation threshold.
	WeightedLiquidationThresholdValue Dec `json:"weightedLiquidationThresholdValue"`
	// DebtValue is the oracle value of all debt, uncollateralized included.
	DebtValue Dec `json:"debtValue"`
	// CollateralizedDebtValue excludes uncollateralized credit lines; only
	// this part drives the health factor.
	CollateralizedDebtValue Dec `json:"collateralizedDebtValue"`

	Health HealthStatus `json:"health"`
}

// valuatePosition walks the user's collateral and borrow sets. Indexes are
// projected to now without being persisted, so valuation is a pure read.
func (e *Engine) valuatePosition(addr crypto.Address, now int64) (*PositionValuation, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if e.ledger == nil {
		return nil, errNilLedger
	}

	position, err := e.state.GetPosition(addr)
	if err != nil {
		return nil, err
	}

	out := &PositionValuation{
		CollateralValue:                   ZeroDec(),
		MaxDebtValue:                      ZeroDec(),
		WeightedLiquidationThresholdValue: ZeroDec(),
		DebtValue:                         ZeroDec(),
		CollateralizedDebtValue:           ZeroDec(),
	}
	if position.IsEmpty() {
		out.Health = HealthStatus{Borrowing: false}
		return out, nil
	}

	for _, denom := range position.Assets() {
		market, err := e.state.GetMarket(denom)
		if err != nil {
			return nil, err
		}
		if market == nil {
			return nil, errAssetNotInitialised
		}
		price, err := e.ledger.Price(denom)
		if err != nil {
			return nil, err
		}

		if position.IsCollateral(denom) {
			scaled, err := e.ledger.ReceiptBalance(denom, addr)
			if err != nil {
				return nil, err
			}
			amount := underlyingLiquidity(scaled, market.liquidityIndexAt(now))
			value := DecFromInt(amount).Mul(price)
			out.CollateralValue = out.CollateralValue.Add(value)
			out.MaxDebtValue = out.MaxDebtValue.Add(value.Mul(market.MaxLoanToValue))
			out.WeightedLiquidationThresholdValue = out.WeightedLiquidationThresholdValue.Add(value.Mul(market.LiquidationThreshold))
		}

		if position.IsBorrowed(denom) {
			debt, err := e.state.GetDebt(denom, addr)
			if err != nil {
				return nil, err
			}
			if debt == nil {
				continue
			}
			debt.ensureDefaults()
			amount := underlyingDebt(debt.AmountScaled, market.borrowIndexAt(now))
			value := DecFromInt(amount).Mul(price)
			out.DebtValue = out.DebtValue.Add(value)
			if !debt.Uncollateralized {
				out.CollateralizedDebtValue = out.CollateralizedDebtValue.Add(value)
			}
		}
	}

	out.Health = healthStatus(out.WeightedLiquidationThresholdValue, out.CollateralizedDebtValue)
	return out, nil
}

func healthStatus(weightedThresholdValue, collateralizedDebtValue Dec) HealthStatus {
	if collateralizedDebtValue.IsZero() {
		return HealthStatus{Borrowing: false}
	}
	return HealthStatus{
		Borrowing:    true,
		HealthFactor: weightedThresholdValue.Quo(collateralizedDebtValue),
	}
}

// healthAfterWithdraw recomputes the health factor assuming withdrawValue of
// collateral with the given liquidation threshold leaves the position.
func healthAfterWithdraw(v *PositionValuation, withdrawValue, liquidationThreshold Dec) HealthStatus {
	reduced := v.WeightedLiquidationThresholdValue.Sub(withdrawValue.Mul(liquidationThreshold))
	if reduced.IsNegative() {
		reduced = ZeroDec()
	}
	return healthStatus(reduced, v.CollateralizedDebtValue)
}
