package bank

import (
	"math/big"

	"redbank/crypto"
	"redbank/events"
)

// engineState is the persistence boundary of the engine. GetPosition always
// returns a usable (possibly empty) position; GetDebt returns nil when no
// record exists; GetUncollateralizedLimit returns zero when unset.
type engineState interface {
	GetMarket(denom string) (*Market, error)
	PutMarket(market *Market) error
	ListMarkets() ([]*Market, error)
	GetDebt(denom string, addr crypto.Address) (*Debt, error)
	PutDebt(denom string, addr crypto.Address, debt *Debt) error
	GetPosition(addr crypto.Address) (*Position, error)
	PutPosition(addr crypto.Address, position *Position) error
	GetUncollateralizedLimit(denom string, addr crypto.Address) (*big.Int, error)
	PutUncollateralizedLimit(denom string, addr crypto.Address, limit *big.Int) error
}

// Engine orchestrates the primary state transitions for the money market.
// Every operation runs to completion against the wired state and returns the
// ordered side-effect instructions for the environment to deliver after
// commit. Time only enters as the caller-supplied now parameter.
type Engine struct {
	state            engineState
	ledger           Ledger
	emitter          events.Emitter
	pauses           PauseView
	owner            crypto.Address
	rewardsCollector crypto.Address
	closeFactor      Dec
}

// NewEngine constructs an engine with the governance owner, the address
// receiving protocol fees, and the global close factor bounding partial
// liquidations.
func NewEngine(owner, rewardsCollector crypto.Address, closeFactor Dec) *Engine {
	return &Engine{
		owner:            owner,
		rewardsCollector: rewardsCollector,
		closeFactor:      closeFactor,
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetLedger wires the oracle/receipt-token capability.
func (e *Engine) SetLedger(ledger Ledger) { e.ledger = ledger }

// SetEmitter wires an event sink. A nil emitter discards events.
func (e *Engine) SetEmitter(emitter events.Emitter) { e.emitter = emitter }

func (e *Engine) SetPauses(p PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// CloseFactor returns the configured close factor.
func (e *Engine) CloseFactor() Dec { return e.closeFactor }

func (e *Engine) emit(ev events.Event) {
	if e == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(ev)
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.ledger == nil {
		return errNilLedger
	}
	return nil
}

func (e *Engine) requireOwner(caller crypto.Address) error {
	if !caller.Equal(e.owner) {
		return errUnauthorized
	}
	return nil
}

func (e *Engine) mustMarket(denom string) (*Market, error) {
	return loadMarket(e.state, denom)
}

func loadMarket(state engineState, denom string) (*Market, error) {
	market, err := state.GetMarket(denom)
	if err != nil {
		return nil, err
	}
	if market == nil {
		return nil, errAssetNotInitialised
	}
	market.ensureDefaults()
	return market, nil
}

// accrueIndexes rolls the market's indexes forward to now and returns the
// protocol-fee mint instruction when debt interest accrued. Calling it twice
// at the same timestamp is a no-op.
func (e *Engine) accrueIndexes(m *Market, now int64) ([]Instruction, error) {
	m.ensureDefaults()
	if now < m.IndexesLastUpdated {
		return nil, errTimestampRegression
	}
	elapsed := now - m.IndexesLastUpdated
	if elapsed == 0 {
		return nil, nil
	}

	oldBorrowIndex := m.BorrowIndex
	m.BorrowIndex = compoundedIndex(m.BorrowIndex, m.BorrowRate, elapsed)
	m.LiquidityIndex = compoundedIndex(m.LiquidityIndex, m.LiquidityRate, elapsed)
	m.IndexesLastUpdated = now

	if m.DebtTotalScaled.Sign() == 0 || m.ReserveFactor.IsZero() {
		return nil, nil
	}
	interest := new(big.Int).Sub(
		underlyingDebt(m.DebtTotalScaled, m.BorrowIndex),
		underlyingDebt(m.DebtTotalScaled, oldBorrowIndex),
	)
	if interest.Sign() <= 0 {
		return nil, nil
	}
	fee := m.ReserveFactor.MulIntTruncate(interest)
	feeScaled := scaledLiquidity(fee, m.LiquidityIndex)
	if feeScaled.Sign() == 0 {
		return nil, nil
	}
	if e.rewardsCollector.IsZero() {
		return nil, errRewardsCollectorSet
	}
	return []Instruction{MintReceipt{
		Denom:        m.Denom,
		Recipient:    e.rewardsCollector,
		AmountScaled: feeScaled,
	}}, nil
}

// updateMarketRates refreshes the borrow and liquidity rates from the market
// utilization after the operation's liquidity change has been accounted for.
func (e *Engine) updateMarketRates(m *Market, availableLiquidity *big.Int, now int64) {
	if availableLiquidity == nil || availableLiquidity.Sign() < 0 {
		availableLiquidity = big.NewInt(0)
	}
	debt := underlyingDebt(m.DebtTotalScaled, m.BorrowIndex)
	u := utilization(debt, availableLiquidity)
	rate, _ := m.RateModel.borrowRate(m.BorrowRate, u, &m.RateState, now)
	m.BorrowRate = rate
	m.LiquidityRate = rate.Mul(u).Mul(OneDec().Sub(m.ReserveFactor))
}

// AssetParams configures a market at initialisation.
type AssetParams struct {
	MaxLoanToValue       Dec               `json:"maxLoanToValue"`
	LiquidationThreshold Dec               `json:"liquidationThreshold"`
	LiquidationBonus     Dec               `json:"liquidationBonus"`
	ReserveFactor        Dec               `json:"reserveFactor"`
	Active               bool              `json:"active"`
	DepositEnabled       bool              `json:"depositEnabled"`
	BorrowEnabled        bool              `json:"borrowEnabled"`
	RateModel            InterestRateModel `json:"rateModel"`
}

// AssetUpdate is a partial-field market update; nil fields keep their value.
type AssetUpdate struct {
	MaxLoanToValue       *Dec               `json:"maxLoanToValue,omitempty"`
	LiquidationThreshold *Dec               `json:"liquidationThreshold,omitempty"`
	LiquidationBonus     *Dec               `json:"liquidationBonus,omitempty"`
	ReserveFactor        *Dec               `json:"reserveFactor,omitempty"`
	Active               *bool              `json:"active,omitempty"`
	DepositEnabled       *bool              `json:"depositEnabled,omitempty"`
	BorrowEnabled        *bool              `json:"borrowEnabled,omitempty"`
	RateModel            *InterestRateModel `json:"rateModel,omitempty"`
}

// InitAsset lists a new asset. It fails when the asset already has a market.
func (e *Engine) InitAsset(caller crypto.Address, denom string, params AssetParams, now int64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := guard(e.pauses, moduleName); err != nil {
		return err
	}
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	st := newStagedState(e.state)
	existing, err := st.GetMarket(denom)
	if err != nil {
		return err
	}
	if existing != nil {
		return errAssetAlreadyInit
	}

	market := &Market{
		Denom:                denom,
		LiquidityIndex:       OneDec(),
		BorrowIndex:          OneDec(),
		LiquidityRate:        ZeroDec(),
		BorrowRate:           ZeroDec(),
		DebtTotalScaled:      big.NewInt(0),
		MaxLoanToValue:       params.MaxLoanToValue,
		LiquidationThreshold: params.LiquidationThreshold,
		LiquidationBonus:     params.LiquidationBonus,
		ReserveFactor:        params.ReserveFactor,
		Active:               params.Active,
		DepositEnabled:       params.DepositEnabled,
		BorrowEnabled:        params.BorrowEnabled,
		RateModel:            params.RateModel,
		RateState:            RateState{BorrowRateLastUpdated: now},
		IndexesLastUpdated:   now,
	}
	if market.RateModel.Dynamic != nil {
		market.BorrowRate = market.RateModel.Dynamic.MinBorrowRate
	}
	if err := market.Validate(); err != nil {
		return err
	}
	if err := st.PutMarket(market); err != nil {
		return err
	}
	if err := st.flush(); err != nil {
		return err
	}
	e.emit(AssetInitialized{Denom: denom})
	return nil
}

// UpdateAsset applies a partial parameter update. Indexes accrue under the
// old parameters first so past interest is settled before the new reserve
// factor or rate model takes effect.
func (e *Engine) UpdateAsset(caller crypto.Address, denom string, update AssetUpdate, now int64) ([]Instruction, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if err := e.requireOwner(caller); err != nil {
		return nil, err
	}
	st := newStagedState(e.state)
	market, err := loadMarket(st, denom)
	if err != nil {
		return nil, err
	}

	accrualNeeded := update.ReserveFactor != nil || update.RateModel != nil
	var instrs []Instruction
	if accrualNeeded {
		instrs, err = e.accrueIndexes(market, now)
		if err != nil {
			return nil, err
		}
	}

	if update.MaxLoanToValue != nil {
		market.MaxLoanToValue = *update.MaxLoanToValue
	}
	if update.LiquidationThreshold != nil {
		market.LiquidationThreshold = *update.LiquidationThreshold
	}
	if update.LiquidationBonus != nil {
		market.LiquidationBonus = *update.LiquidationBonus
	}
	if update.ReserveFactor != nil {
		market.ReserveFactor = *update.ReserveFactor
	}
	if update.Active != nil {
		market.Active = *update.Active
	}
	if update.DepositEnabled != nil {
		market.DepositEnabled = *update.DepositEnabled
	}
	if update.BorrowEnabled != nil {
		market.BorrowEnabled = *update.BorrowEnabled
	}
	if update.RateModel != nil {
		market.RateModel = *update.RateModel
		market.RateState = RateState{BorrowRateLastUpdated: now}
	}
	if err := market.Validate(); err != nil {
		return nil, err
	}

	if accrualNeeded {
		balance, err := e.ledger.UnderlyingBalance(denom)
		if err != nil {
			return nil, err
		}
		e.updateMarketRates(market, balance, now)
	}
	if err := st.PutMarket(market); err != nil {
		return nil, err
	}
	if err := st.flush(); err != nil {
		return nil, err
	}
	e.emit(AssetUpdated{Denom: denom})
	return instrs, nil
}

// Deposit adds underlying liquidity and mints scaled receipt tokens to the
// beneficiary. The deposited funds are assumed to accompany the call and are
// already part of the pool's underlying balance.
func (e *Engine) Deposit(caller crypto.Address, denom string, amount *big.Int, onBehalfOf *crypto.Address, now int64) ([]Instruction, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, errInvalidAmount
	}
	st := newStagedState(e.state)
	market, err := loadMarket(st, denom)
	if err != nil {
		return nil, err
	}
	if !market.Active {
		return nil, errMarketInactive
	}
	if !market.DepositEnabled {
		return nil, errDepositDisabled
	}

	instrs, err := e.accrueIndexes(market, now)
	if err != nil {
		return nil, err
	}

	mintScaled := scaledLiquidity(amount, market.LiquidityIndex)
	if mintScaled.Sign() == 0 {
		return nil, errInvalidAmount
	}

	beneficiary := caller
	if onBehalfOf != nil {
		beneficiary = *onBehalfOf
	}
	position, err := st.GetPosition(beneficiary)
	if err != nil {
		return nil, err
	}
	if !position.IsCollateral(denom) {
		position.SetCollateral(denom)
		if err := st.PutPosition(beneficiary, position); err != nil {
			return nil, err
		}
	}

	balance, err := e.ledger.UnderlyingBalance(denom)
	if err != nil {
		return nil, err
	}
	e.updateMarketRates(market, balance, now)
	if err := st.PutMarket(market); err != nil {
		return nil, err
	}
	if err := st.flush(); err != nil {
		return nil, err
	}

	instrs = append(instrs, MintReceipt{Denom: denom, Recipient: beneficiary, AmountScaled: mintScaled})
	e.emit(Deposited{Denom: denom, Depositor: caller, Beneficiary: beneficiary, Amount: amount, AmountScaled: mintScaled})
	return instrs, nil
}

// Withdraw burns receipt tokens and releases underlying liquidity. A nil
// amount withdraws the full balance. When the asset backs outstanding debt
// the resulting health factor must stay at or above 1.
func (e *Engine) Withdraw(caller crypto.Address, denom string, amount *big.Int, recipient *crypto.Address, now int64) ([]Instruction, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	st := newStagedState(e.state)
	market, err := loadMarket(st, denom)
	if err != nil {
		return nil, err
	}

	instrs, err := e.accrueIndexes(market, now)
	if err != nil {
		return nil, err
	}

	scaledBalance, err := e.ledger.ReceiptBalance(denom, caller)
	if err != nil {
		return nil, err
	}
	withdrawable := underlyingLiquidity(scaledBalance, market.LiquidityIndex)
	if amount == nil {
		amount = withdrawable
	}
	if amount.Sign() <= 0 {
		return nil, errInvalidAmount
	}
	if amount.Cmp(withdrawable) > 0 {
		return nil, errInsufficientBalance
	}

	position, err := st.GetPosition(caller)
	if err != nil {
		return nil, err
	}
	if position.IsCollateral(denom) && position.HasDebt() {
		valuation, err := e.valuatePosition(caller, now)
		if err != nil {
			return nil, err
		}
		if valuation.Health.Borrowing {
			price, err := e.ledger.Price(denom)
			if err != nil {
				return nil, err
			}
			withdrawValue := DecFromInt(amount).Mul(price)
			after := healthAfterWithdraw(valuation, withdrawValue, market.LiquidationThreshold)
			if after.Borrowing && after.HealthFactor.LT(OneDec()) {
				return nil, errHealthCheckFailed
			}
		}
	}

	burnScaled := scaledLiquidity(amount, market.LiquidityIndex)
	if amount.Cmp(withdrawable) == 0 {
		burnScaled = new(big.Int).Set(scaledBalance)
	}
	if burnScaled.Cmp(scaledBalance) >= 0 && position.IsCollateral(denom) {
		position.ClearCollateral(denom)
		if err := st.PutPosition(caller, position); err != nil {
			return nil, err
		}
	}

	balance, err := e.ledger.UnderlyingBalance(denom)
	if err != nil {
		return nil, err
	}
	if balance.Cmp(amount) < 0 {
		return nil, errInsufficientLiquidity
	}
	e.updateMarketRates(market, new(big.Int).Sub(balance, amount), now)
	if err := st.PutMarket(market); err != nil {
		return nil, err
	}
	if err := st.flush(); err != nil {
		return nil, err
	}

	to := caller
	if recipient != nil {
		to = *recipient
	}
	instrs = append(instrs,
		BurnReceipt{Denom: denom, From: caller, AmountScaled: burnScaled},
		TransferUnderlying{Denom: denom, Recipient: to, Amount: amount},
	)
	e.emit(Withdrawn{Denom: denom, Withdrawer: caller, Recipient: to, Amount: amount, AmountScaled: burnScaled})
	return instrs, nil
}

// Borrow draws underlying liquidity against the caller's collateral, or
// against an uncollateralized credit line when one is configured for the
// caller in this market.
func (e *Engine) Borrow(caller crypto.Address, denom string, amount *big.Int, recipient *crypto.Address, now int64) ([]Instruction, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, errInvalidAmount
	}
	st := newStagedState(e.state)
	market, err := loadMarket(st, denom)
	if err != nil {
		return nil, err
	}
	if !market.Active {
		return nil, errMarketInactive
	}
	if !market.BorrowEnabled {
		return nil, errBorrowDisabled
	}

	instrs, err := e.accrueIndexes(market, now)
	if err != nil {
		return nil, err
	}

	balance, err := e.ledger.UnderlyingBalance(denom)
	if err != nil {
		return nil, err
	}
	if balance.Cmp(amount) < 0 {
		return nil, errInsufficientLiquidity
	}

	limit, err := st.GetUncollateralizedLimit(denom, caller)
	if err != nil {
		return nil, err
	}
	uncollateralized := limit != nil && limit.Sign() > 0

	debt, err := st.GetDebt(denom, caller)
	if err != nil {
		return nil, err
	}
	if debt == nil {
		debt = &Debt{}
	}
	debt.ensureDefaults()

	if uncollateralized {
		current := underlyingDebt(debt.AmountScaled, market.BorrowIndex)
		if new(big.Int).Add(current, amount).Cmp(limit) > 0 {
			return nil, errUncollateralizedLimitExceeded
		}
	} else {
		valuation, err := e.valuatePosition(caller, now)
		if err != nil {
			return nil, err
		}
		if valuation.CollateralValue.IsZero() {
			return nil, errNoCollateral
		}
		price, err := e.ledger.Price(denom)
		if err != nil {
			return nil, err
		}
		newDebtValue := valuation.DebtValue.Add(DecFromInt(amount).Mul(price))
		if newDebtValue.GT(valuation.MaxDebtValue) {
			return nil, errBorrowExceedsLTV
		}
	}

	position, err := st.GetPosition(caller)
	if err != nil {
		return nil, err
	}
	if !position.IsBorrowed(denom) {
		position.SetBorrowed(denom)
		if err := st.PutPosition(caller, position); err != nil {
			return nil, err
		}
	}

	increment := scaledDebt(amount, market.BorrowIndex)
	debt.AmountScaled = new(big.Int).Add(debt.AmountScaled, increment)
	debt.Uncollateralized = uncollateralized
	if err := st.PutDebt(denom, caller, debt); err != nil {
		return nil, err
	}
	market.DebtTotalScaled = new(big.Int).Add(market.DebtTotalScaled, increment)

	e.updateMarketRates(market, new(big.Int).Sub(balance, amount), now)
	if err := st.PutMarket(market); err != nil {
		return nil, err
	}
	if err := st.flush(); err != nil {
		return nil, err
	}

	to := caller
	if recipient != nil {
		to = *recipient
	}
	instrs = append(instrs, TransferUnderlying{Denom: denom, Recipient: to, Amount: amount})
	e.emit(Borrowed{Denom: denom, Borrower: caller, Recipient: to, Amount: amount})
	return instrs, nil
}

// Repay settles outstanding debt. The applied amount is capped at the debt
// owed and any surplus is refunded to the payer. Repaying an
// uncollateralized loan on behalf of another account is forbidden.
func (e *Engine) Repay(caller crypto.Address, denom string, amount *big.Int, onBehalfOf *crypto.Address, now int64) ([]Instruction, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, errInvalidAmount
	}
	st := newStagedState(e.state)
	market, err := loadMarket(st, denom)
	if err != nil {
		return nil, err
	}

	borrower := caller
	if onBehalfOf != nil {
		borrower = *onBehalfOf
	}
	debt, err := st.GetDebt(denom, borrower)
	if err != nil {
		return nil, err
	}
	if debt == nil || debt.AmountScaled == nil || debt.AmountScaled.Sign() == 0 {
		return nil, errNoDebtToRepay
	}
	if onBehalfOf != nil && !borrower.Equal(caller) && debt.Uncollateralized {
		return nil, errCannotRepayUncollateralizedOnBehalf
	}

	instrs, err := e.accrueIndexes(market, now)
	if err != nil {
		return nil, err
	}

	owed := underlyingDebt(debt.AmountScaled, market.BorrowIndex)
	applied := minInt(amount, owed)
	refund := new(big.Int).Sub(amount, applied)

	var scaledRepay *big.Int
	if applied.Cmp(owed) == 0 {
		scaledRepay = new(big.Int).Set(debt.AmountScaled)
	} else {
		// Partial repayment truncates so debt never shrinks by more than
		// was paid.
		scaledRepay = DivIntDecTruncate(applied, market.BorrowIndex)
	}
	debt.AmountScaled = new(big.Int).Sub(debt.AmountScaled, scaledRepay)
	if err := st.PutDebt(denom, borrower, debt); err != nil {
		return nil, err
	}
	market.DebtTotalScaled = new(big.Int).Sub(market.DebtTotalScaled, scaledRepay)

	if debt.AmountScaled.Sign() == 0 {
		position, err := st.GetPosition(borrower)
		if err != nil {
			return nil, err
		}
		if position.IsBorrowed(denom) {
			position.ClearBorrowed(denom)
			if err := st.PutPosition(borrower, position); err != nil {
				return nil, err
			}
		}
	}

	balance, err := e.ledger.UnderlyingBalance(denom)
	if err != nil {
		return nil, err
	}
	e.updateMarketRates(market, new(big.Int).Sub(balance, refund), now)
	if err := st.PutMarket(market); err != nil {
		return nil, err
	}
	if err := st.flush(); err != nil {
		return nil, err
	}

	if refund.Sign() > 0 {
		instrs = append(instrs, TransferUnderlying{Denom: denom, Recipient: caller, Amount: refund})
	}
	e.emit(Repaid{Denom: denom, Payer: caller, Borrower: borrower, Amount: applied, Refund: refund})
	return instrs, nil
}

// UpdateUncollateralizedLoanLimit grants or revokes a trust-based credit
// line. The limit cannot change for a user who currently holds collateralized
// debt in the market.
func (e *Engine) UpdateUncollateralizedLoanLimit(caller, user crypto.Address, denom string, newLimit *big.Int, now int64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := guard(e.pauses, moduleName); err != nil {
		return err
	}
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	st := newStagedState(e.state)
	if _, err := loadMarket(st, denom); err != nil {
		return err
	}
	if newLimit == nil {
		newLimit = big.NewInt(0)
	}

	debt, err := st.GetDebt(denom, user)
	if err != nil {
		return err
	}
	if debt != nil && !debt.Uncollateralized && debt.AmountScaled != nil && debt.AmountScaled.Sign() > 0 {
		return errUserHasCollateralizedDebt
	}
	if err := st.PutUncollateralizedLimit(denom, user, newLimit); err != nil {
		return err
	}

	if debt == nil {
		debt = &Debt{}
	}
	debt.ensureDefaults()
	debt.Uncollateralized = newLimit.Sign() > 0
	if err := st.PutDebt(denom, user, debt); err != nil {
		return err
	}
	if err := st.flush(); err != nil {
		return err
	}
	e.emit(LoanLimitUpdated{Denom: denom, User: user, NewLimit: newLimit})
	return nil
}

// UpdateAssetCollateralStatus toggles whether the caller's deposit in a
// market counts as collateral. Enabling requires a non-zero balance;
// disabling must leave the position healthy.
func (e *Engine) UpdateAssetCollateralStatus(caller crypto.Address, denom string, enable bool, now int64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := guard(e.pauses, moduleName); err != nil {
		return err
	}
	st := newStagedState(e.state)
	market, err := loadMarket(st, denom)
	if err != nil {
		return err
	}

	position, err := st.GetPosition(caller)
	if err != nil {
		return err
	}

	if enable {
		scaled, err := e.ledger.ReceiptBalance(denom, caller)
		if err != nil {
			return err
		}
		if scaled == nil || scaled.Sign() == 0 {
			return errInsufficientBalance
		}
		if !position.IsCollateral(denom) {
			position.SetCollateral(denom)
			if err := st.PutPosition(caller, position); err != nil {
				return err
			}
		}
	} else {
		if !position.IsCollateral(denom) {
			return nil
		}
		if position.HasDebt() {
			valuation, err := e.valuatePosition(caller, now)
			if err != nil {
				return err
			}
			if valuation.Health.Borrowing {
				scaled, err := e.ledger.ReceiptBalance(denom, caller)
				if err != nil {
					return err
				}
				price, err := e.ledger.Price(denom)
				if err != nil {
					return err
				}
				amount := underlyingLiquidity(scaled, market.liquidityIndexAt(now))
				value := DecFromInt(amount).Mul(price)
				after := healthAfterWithdraw(valuation, value, market.LiquidationThreshold)
				if after.Borrowing && after.HealthFactor.LT(OneDec()) {
					return errHealthCheckFailed
				}
			}
		}
		position.ClearCollateral(denom)
		if err := st.PutPosition(caller, position); err != nil {
			return err
		}
	}
	if err := st.flush(); err != nil {
		return err
	}
	e.emit(CollateralStatusChanged{Denom: denom, User: caller, Enabled: enable})
	return nil
}
