package modules

import (
	"math/big"
	"net/http"
	"sync"
	"time"

	"redbank/bank"
	"redbank/crypto"
	"redbank/observability"
)

// BankModule serialises access to the bank engine and settles the side-effect
// instructions each operation returns. Funds sent with an operation move into
// the market pool before the engine runs, matching the engine's assumption
// that the pool balance already includes them.
type BankModule struct {
	mu     sync.Mutex
	engine *bank.Engine
	book   *bank.Book
	now    func() int64
}

func NewBankModule(engine *bank.Engine, book *bank.Book) *BankModule {
	return &BankModule{
		engine: engine,
		book:   book,
		now:    func() int64 { return time.Now().Unix() },
	}
}

// SetClock overrides the module's time source.
func (m *BankModule) SetClock(now func() int64) {
	if now != nil {
		m.now = now
	}
}

func (m *BankModule) moduleUnavailable() *ModuleError {
	return &ModuleError{HTTPStatus: http.StatusInternalServerError, Code: codeServerError, Message: "bank module not available"}
}

func (m *BankModule) wrapError(err error) *ModuleError {
	if err == nil {
		return nil
	}
	return &ModuleError{HTTPStatus: http.StatusBadRequest, Code: codeServerError, Message: err.Error()}
}

func (m *BankModule) ready() *ModuleError {
	if m == nil || m.engine == nil || m.book == nil {
		return m.moduleUnavailable()
	}
	return nil
}

// payIn moves sent funds into the pool; payBack reverses it when the engine
// rejects the operation so a failed call never strands funds.
func (m *BankModule) payIn(denom string, from crypto.Address, amount *big.Int) *ModuleError {
	if err := m.book.PayIn(denom, from, amount); err != nil {
		return m.wrapError(err)
	}
	return nil
}

func (m *BankModule) payBack(denom string, to crypto.Address, amount *big.Int) {
	_ = m.book.Apply([]bank.Instruction{
		bank.TransferUnderlying{Denom: denom, Recipient: to, Amount: amount},
	})
}

func (m *BankModule) settle(instrs []bank.Instruction) *ModuleError {
	if err := m.book.Apply(instrs); err != nil {
		return m.wrapError(err)
	}
	return nil
}

// observeMarkets refreshes the per-market gauges after a state transition.
// Failures are swallowed: metrics never fail an operation that already
// committed.
func (m *BankModule) observeMarkets(denoms ...string) {
	for _, denom := range denoms {
		info, err := m.engine.GetMarketInfo(denom, m.now())
		if err != nil {
			continue
		}
		observability.Markets().RecordMarket(denom, info.Utilization.Float64(), info.BorrowRate.Float64(), info.DebtTotal)
	}
}

func (m *BankModule) InitAsset(caller crypto.Address, denom string, params bank.AssetParams) *ModuleError {
	if err := m.ready(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.engine.InitAsset(caller, denom, params, m.now()); err != nil {
		return m.wrapError(err)
	}
	return nil
}

func (m *BankModule) UpdateAsset(caller crypto.Address, denom string, update bank.AssetUpdate) *ModuleError {
	if err := m.ready(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	instrs, err := m.engine.UpdateAsset(caller, denom, update, m.now())
	if err != nil {
		return m.wrapError(err)
	}
	if merr := m.settle(instrs); merr != nil {
		return merr
	}
	m.observeMarkets(denom)
	return nil
}

func (m *BankModule) Deposit(caller crypto.Address, denom string, amount *big.Int, onBehalfOf *crypto.Address) *ModuleError {
	if err := m.ready(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.payIn(denom, caller, amount); err != nil {
		return err
	}
	instrs, err := m.engine.Deposit(caller, denom, amount, onBehalfOf, m.now())
	if err != nil {
		m.payBack(denom, caller, amount)
		return m.wrapError(err)
	}
	if merr := m.settle(instrs); merr != nil {
		return merr
	}
	m.observeMarkets(denom)
	return nil
}

func (m *BankModule) Withdraw(caller crypto.Address, denom string, amount *big.Int, recipient *crypto.Address) *ModuleError {
	if err := m.ready(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	instrs, err := m.engine.Withdraw(caller, denom, amount, recipient, m.now())
	if err != nil {
		return m.wrapError(err)
	}
	if merr := m.settle(instrs); merr != nil {
		return merr
	}
	m.observeMarkets(denom)
	return nil
}

func (m *BankModule) Borrow(caller crypto.Address, denom string, amount *big.Int, recipient *crypto.Address) *ModuleError {
	if err := m.ready(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	instrs, err := m.engine.Borrow(caller, denom, amount, recipient, m.now())
	if err != nil {
		return m.wrapError(err)
	}
	if merr := m.settle(instrs); merr != nil {
		return merr
	}
	m.observeMarkets(denom)
	return nil
}

func (m *BankModule) Repay(caller crypto.Address, denom string, amount *big.Int, onBehalfOf *crypto.Address) *ModuleError {
	if err := m.ready(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.payIn(denom, caller, amount); err != nil {
		return err
	}
	instrs, err := m.engine.Repay(caller, denom, amount, onBehalfOf, m.now())
	if err != nil {
		m.payBack(denom, caller, amount)
		return m.wrapError(err)
	}
	if merr := m.settle(instrs); merr != nil {
		return merr
	}
	m.observeMarkets(denom)
	return nil
}

func (m *BankModule) Liquidate(liquidator, borrower crypto.Address, collateralDenom, debtDenom string, sent *big.Int, receiveReceipt bool, recipient *crypto.Address) *ModuleError {
	if err := m.ready(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.payIn(debtDenom, liquidator, sent); err != nil {
		return err
	}
	instrs, err := m.engine.Liquidate(liquidator, borrower, collateralDenom, debtDenom, sent, receiveReceipt, recipient, m.now())
	if err != nil {
		m.payBack(debtDenom, liquidator, sent)
		return m.wrapError(err)
	}
	if merr := m.settle(instrs); merr != nil {
		return merr
	}
	m.observeMarkets(collateralDenom, debtDenom)
	return nil
}

func (m *BankModule) UpdateUncollateralizedLoanLimit(caller, user crypto.Address, denom string, limit *big.Int) *ModuleError {
	if err := m.ready(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.engine.UpdateUncollateralizedLoanLimit(caller, user, denom, limit, m.now()); err != nil {
		return m.wrapError(err)
	}
	return nil
}

func (m *BankModule) UpdateAssetCollateralStatus(caller crypto.Address, denom string, enable bool) *ModuleError {
	if err := m.ready(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.engine.UpdateAssetCollateralStatus(caller, denom, enable, m.now()); err != nil {
		return m.wrapError(err)
	}
	return nil
}

func (m *BankModule) SetPrice(denom string, price bank.Dec) *ModuleError {
	if err := m.ready(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.book.SetPrice(denom, price); err != nil {
		return m.wrapError(err)
	}
	return nil
}

func (m *BankModule) CreditWallet(denom string, addr crypto.Address, amount *big.Int) *ModuleError {
	if err := m.ready(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.book.Credit(denom, addr, amount); err != nil {
		return m.wrapError(err)
	}
	return nil
}

func (m *BankModule) GetMarket(denom string) (*bank.MarketInfo, *ModuleError) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	info, err := m.engine.GetMarketInfo(denom, m.now())
	if err != nil {
		return nil, m.wrapError(err)
	}
	return info, nil
}

func (m *BankModule) ListMarkets() ([]bank.MarketInfo, *ModuleError) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	infos, err := m.engine.ListMarketInfo(m.now())
	if err != nil {
		return nil, m.wrapError(err)
	}
	return infos, nil
}

func (m *BankModule) GetUserPosition(addr crypto.Address) (*bank.UserPositionReport, *ModuleError) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	report, err := m.engine.GetUserPosition(addr, m.now())
	if err != nil {
		return nil, m.wrapError(err)
	}
	return report, nil
}

func (m *BankModule) GetUserDebt(denom string, addr crypto.Address) (*bank.UserAssetDebt, *ModuleError) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	debt, err := m.engine.GetUserDebt(denom, addr, m.now())
	if err != nil {
		return nil, m.wrapError(err)
	}
	return debt, nil
}

func (m *BankModule) GetUserCollateral(denom string, addr crypto.Address) (*bank.UserAssetCollateral, *ModuleError) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	collateral, err := m.engine.GetUserCollateral(denom, addr, m.now())
	if err != nil {
		return nil, m.wrapError(err)
	}
	return collateral, nil
}

func (m *BankModule) GetUncollateralizedLimit(denom string, addr crypto.Address) (*big.Int, *ModuleError) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	limit, err := m.engine.GetUncollateralizedLimit(denom, addr)
	if err != nil {
		return nil, m.wrapError(err)
	}
	return limit, nil
}

func (m *BankModule) GetHealthStatus(addr crypto.Address) (*bank.HealthStatus, *ModuleError) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	health, err := m.engine.GetHealthStatus(addr, m.now())
	if err != nil {
		return nil, m.wrapError(err)
	}
	return health, nil
}
