package bank

import (
	"math/big"

	"redbank/crypto"
)

// MarketInfo is the query view of a market with indexes projected to the
// query timestamp.
type MarketInfo struct {
	Denom                string            `json:"denom"`
	LiquidityIndex       Dec               `json:"liquidityIndex"`
	BorrowIndex          Dec               `json:"borrowIndex"`
	LiquidityRate        Dec               `json:"liquidityRate"`
	BorrowRate           Dec               `json:"borrowRate"`
	DebtTotal            *big.Int          `json:"debtTotal"`
	DebtTotalScaled      *big.Int          `json:"debtTotalScaled"`
	CollateralTotal      *big.Int          `json:"collateralTotal"`
	CollateralScaled     *big.Int          `json:"collateralScaled"`
	AvailableLiquidity   *big.Int          `json:"availableLiquidity"`
	Utilization          Dec               `json:"utilization"`
	MaxLoanToValue       Dec               `json:"maxLoanToValue"`
	LiquidationThreshold Dec               `json:"liquidationThreshold"`
	LiquidationBonus     Dec               `json:"liquidationBonus"`
	ReserveFactor        Dec               `json:"reserveFactor"`
	Active               bool              `json:"active"`
	DepositEnabled       bool              `json:"depositEnabled"`
	BorrowEnabled        bool              `json:"borrowEnabled"`
	RateModel            InterestRateModel `json:"rateModel"`
	IndexesLastUpdated   int64             `json:"indexesLastUpdated"`
}

func (e *Engine) marketInfo(m *Market, now int64) (MarketInfo, error) {
	supply, err := e.ledger.ReceiptTokenSupply(m.Denom)
	if err != nil {
		return MarketInfo{}, err
	}
	available, err := e.ledger.UnderlyingBalance(m.Denom)
	if err != nil {
		return MarketInfo{}, err
	}
	debtTotal := m.debtTotalAt(now)
	return MarketInfo{
		Denom:                m.Denom,
		LiquidityIndex:       m.liquidityIndexAt(now),
		BorrowIndex:          m.borrowIndexAt(now),
		LiquidityRate:        m.LiquidityRate,
		BorrowRate:           m.BorrowRate,
		DebtTotal:            debtTotal,
		DebtTotalScaled:      new(big.Int).Set(m.DebtTotalScaled),
		CollateralTotal:      underlyingLiquidity(supply, m.liquidityIndexAt(now)),
		CollateralScaled:     supply,
		AvailableLiquidity:   available,
		Utilization:          utilization(debtTotal, available),
		MaxLoanToValue:       m.MaxLoanToValue,
		LiquidationThreshold: m.LiquidationThreshold,
		LiquidationBonus:     m.LiquidationBonus,
		ReserveFactor:        m.ReserveFactor,
		Active:               m.Active,
		DepositEnabled:       m.DepositEnabled,
		BorrowEnabled:        m.BorrowEnabled,
		RateModel:            m.RateModel,
		IndexesLastUpdated:   m.IndexesLastUpdated,
	}, nil
}

// GetMarketInfo returns a single market projected to now.
func (e *Engine) GetMarketInfo(denom string, now int64) (*MarketInfo, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	market, err := e.mustMarket(denom)
	if err != nil {
		return nil, err
	}
	info, err := e.marketInfo(market, now)
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// ListMarketInfo returns every market projected to now.
func (e *Engine) ListMarketInfo(now int64) ([]MarketInfo, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	markets, err := e.state.ListMarkets()
	if err != nil {
		return nil, err
	}
	out := make([]MarketInfo, 0, len(markets))
	for _, m := range markets {
		info, err := e.marketInfo(m, now)
		if err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, nil
}

// UserAssetDebt is a user's debt in one market at query time.
type UserAssetDebt struct {
	Denom            string   `json:"denom"`
	Amount           *big.Int `json:"amount"`
	AmountScaled     *big.Int `json:"amountScaled"`
	Uncollateralized bool     `json:"uncollateralized"`
}

// UserAssetCollateral is a user's deposit in one market at query time.
type UserAssetCollateral struct {
	Denom        string   `json:"denom"`
	Amount       *big.Int `json:"amount"`
	AmountScaled *big.Int `json:"amountScaled"`
	Enabled      bool     `json:"enabled"`
}

// UserPositionReport is the full query view of a user's position.
type UserPositionReport struct {
	Address     crypto.Address        `json:"address"`
	Collaterals []UserAssetCollateral `json:"collaterals"`
	Debts       []UserAssetDebt       `json:"debts"`
	Valuation   PositionValuation     `json:"valuation"`
}

// GetUserDebt returns the user's debt in one market, zero when none exists.
func (e *Engine) GetUserDebt(denom string, addr crypto.Address, now int64) (*UserAssetDebt, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	market, err := e.mustMarket(denom)
	if err != nil {
		return nil, err
	}
	debt, err := e.state.GetDebt(denom, addr)
	if err != nil {
		return nil, err
	}
	out := &UserAssetDebt{Denom: denom, Amount: big.NewInt(0), AmountScaled: big.NewInt(0)}
	if debt != nil {
		debt.ensureDefaults()
		out.AmountScaled = debt.AmountScaled
		out.Amount = underlyingDebt(debt.AmountScaled, market.borrowIndexAt(now))
		out.Uncollateralized = debt.Uncollateralized
	}
	return out, nil
}

// GetUserCollateral returns the user's deposit in one market.
func (e *Engine) GetUserCollateral(denom string, addr crypto.Address, now int64) (*UserAssetCollateral, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	market, err := e.mustMarket(denom)
	if err != nil {
		return nil, err
	}
	scaled, err := e.ledger.ReceiptBalance(denom, addr)
	if err != nil {
		return nil, err
	}
	position, err := e.state.GetPosition(addr)
	if err != nil {
		return nil, err
	}
	return &UserAssetCollateral{
		Denom:        denom,
		Amount:       underlyingLiquidity(scaled, market.liquidityIndexAt(now)),
		AmountScaled: scaled,
		Enabled:      position.IsCollateral(denom),
	}, nil
}

// GetUncollateralizedLimit returns the configured credit line, zero when unset.
func (e *Engine) GetUncollateralizedLimit(denom string, addr crypto.Address) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if _, err := e.mustMarket(denom); err != nil {
		return nil, err
	}
	return e.state.GetUncollateralizedLimit(denom, addr)
}

// GetUserPosition aggregates a user's collaterals, debts and valuation.
func (e *Engine) GetUserPosition(addr crypto.Address, now int64) (*UserPositionReport, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	position, err := e.state.GetPosition(addr)
	if err != nil {
		return nil, err
	}
	report := &UserPositionReport{Address: addr}
	for _, denom := range position.Assets() {
		if position.IsCollateral(denom) {
			collateral, err := e.GetUserCollateral(denom, addr, now)
			if err != nil {
				return nil, err
			}
			report.Collaterals = append(report.Collaterals, *collateral)
		}
		if position.IsBorrowed(denom) {
			debt, err := e.GetUserDebt(denom, addr, now)
			if err != nil {
				return nil, err
			}
			report.Debts = append(report.Debts, *debt)
		}
	}
	valuation, err := e.valuatePosition(addr, now)
	if err != nil {
		return nil, err
	}
	report.Valuation = *valuation
	return report, nil
}

// GetHealthStatus computes the user's current health factor.
func (e *Engine) GetHealthStatus(addr crypto.Address, now int64) (*HealthStatus, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	valuation, err := e.valuatePosition(addr, now)
	if err != nil {
		return nil, err
	}
	return &valuation.Health, nil
}

// ScaledToUnderlyingLiquidity converts a scaled deposit amount at now.
func (e *Engine) ScaledToUnderlyingLiquidity(denom string, scaled *big.Int, now int64) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	market, err := e.mustMarket(denom)
	if err != nil {
		return nil, err
	}
	return underlyingLiquidity(scaled, market.liquidityIndexAt(now)), nil
}

// UnderlyingToScaledLiquidity converts an underlying deposit amount at now.
func (e *Engine) UnderlyingToScaledLiquidity(denom string, amount *big.Int, now int64) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	market, err := e.mustMarket(denom)
	if err != nil {
		return nil, err
	}
	return scaledLiquidity(amount, market.liquidityIndexAt(now)), nil
}

// ScaledToUnderlyingDebt converts a scaled debt amount at now.
func (e *Engine) ScaledToUnderlyingDebt(denom string, scaled *big.Int, now int64) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	market, err := e.mustMarket(denom)
	if err != nil {
		return nil, err
	}
	return underlyingDebt(scaled, market.borrowIndexAt(now)), nil
}

// UnderlyingToScaledDebt converts an underlying debt amount at now.
func (e *Engine) UnderlyingToScaledDebt(denom string, amount *big.Int, now int64) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	market, err := e.mustMarket(denom)
	if err != nil {
		return nil, err
	}
	return scaledDebt(amount, market.borrowIndexAt(now)), nil
}
