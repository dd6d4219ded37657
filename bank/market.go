package bank

import (
	"math/big"
)

const secondsPerYear = 31_536_000

// Market captures the global accounting state for one listed asset. Amounts
// are expressed as big integers in the asset's smallest unit; indexes and
// rates are wad decimals.
type Market struct {
	// Denom is the opaque asset identifier, immutable once created.
	Denom string `json:"denom"`

	// LiquidityIndex and BorrowIndex are the cumulative interest indexes
	// applied to scaled deposits and scaled debt. Both start at 1.0 and
	// never decrease.
	LiquidityIndex Dec `json:"liquidityIndex"`
	BorrowIndex    Dec `json:"borrowIndex"`

	// LiquidityRate and BorrowRate are the per-year rates most recently
	// derived from utilization.
	LiquidityRate Dec `json:"liquidityRate"`
	BorrowRate    Dec `json:"borrowRate"`

	// DebtTotalScaled is the sum of all scaled debts in this market. The
	// scaled deposit total lives with the receipt token supply instead.
	DebtTotalScaled *big.Int `json:"debtTotalScaled"`

	MaxLoanToValue       Dec `json:"maxLoanToValue"`
	LiquidationThreshold Dec `json:"liquidationThreshold"`
	LiquidationBonus     Dec `json:"liquidationBonus"`
	ReserveFactor        Dec `json:"reserveFactor"`

	Active         bool `json:"active"`
	DepositEnabled bool `json:"depositEnabled"`
	BorrowEnabled  bool `json:"borrowEnabled"`

	RateModel InterestRateModel `json:"rateModel"`
	RateState RateState         `json:"rateState"`

	// IndexesLastUpdated is the unix timestamp of the last accrual.
	IndexesLastUpdated int64 `json:"indexesLastUpdated"`
}

// Validate checks the market's risk parameters and rate model.
func (m *Market) Validate() error {
	for _, d := range []Dec{m.MaxLoanToValue, m.LiquidationThreshold, m.LiquidationBonus, m.ReserveFactor} {
		if d.IsNegative() || d.GT(OneDec()) {
			return errInvalidAssetParams
		}
	}
	if !m.MaxLoanToValue.LT(m.LiquidationThreshold) {
		return errInvalidAssetParams
	}
	return m.RateModel.Validate()
}

func (m *Market) ensureDefaults() {
	if m.LiquidityIndex.IsZero() {
		m.LiquidityIndex = OneDec()
	}
	if m.BorrowIndex.IsZero() {
		m.BorrowIndex = OneDec()
	}
	if m.DebtTotalScaled == nil {
		m.DebtTotalScaled = big.NewInt(0)
	}
}

// compoundedIndex applies linear interest over the elapsed seconds:
// index * (1 + rate * elapsed / secondsPerYear).
func compoundedIndex(index, rate Dec, elapsed int64) Dec {
	if elapsed <= 0 || rate.IsZero() {
		return index
	}
	accrued := rate.Mul(DecFromRatio(big.NewInt(elapsed), big.NewInt(secondsPerYear)))
	return index.Mul(OneDec().Add(accrued))
}

// liquidityIndexAt and borrowIndexAt project the indexes to a timestamp
// without mutating the market. Queries and valuations use these so reads
// never depend on a preceding write.
func (m *Market) liquidityIndexAt(now int64) Dec {
	return compoundedIndex(m.LiquidityIndex, m.LiquidityRate, now-m.IndexesLastUpdated)
}

func (m *Market) borrowIndexAt(now int64) Dec {
	return compoundedIndex(m.BorrowIndex, m.BorrowRate, now-m.IndexesLastUpdated)
}

// debtTotalAt returns the underlying debt owed to the market at a timestamp.
func (m *Market) debtTotalAt(now int64) *big.Int {
	return underlyingDebt(m.DebtTotalScaled, m.borrowIndexAt(now))
}

// utilization computes debt / (availableLiquidity + debt).
func utilization(debt, availableLiquidity *big.Int) Dec {
	if debt == nil || debt.Sign() == 0 {
		return ZeroDec()
	}
	total := new(big.Int).Add(availableLiquidity, debt)
	return DecFromRatio(debt, total)
}
