package bank

import (
	"math/big"
	"sort"

	"redbank/crypto"
)

// stagedState buffers every write an operation makes so that a failed
// operation leaves the underlying state untouched. Reads hand out private
// copies of the backing records; writes stay in the buffer until flush
// applies them in deterministic key order. Each engine operation works
// against a fresh stagedState and flushes only after its last check passed.
type stagedState struct {
	base engineState

	markets   map[string]*stagedMarket
	debts     map[string]*stagedDebt
	positions map[string]*stagedPosition
	limits    map[string]*stagedLimit
}

type stagedMarket struct {
	market *Market
	dirty  bool
}

type stagedDebt struct {
	denom string
	addr  crypto.Address
	debt  *Debt
	dirty bool
}

type stagedPosition struct {
	addr     crypto.Address
	position *Position
	dirty    bool
}

type stagedLimit struct {
	denom string
	addr  crypto.Address
	limit *big.Int
	dirty bool
}

func newStagedState(base engineState) *stagedState {
	return &stagedState{
		base:      base,
		markets:   make(map[string]*stagedMarket),
		debts:     make(map[string]*stagedDebt),
		positions: make(map[string]*stagedPosition),
		limits:    make(map[string]*stagedLimit),
	}
}

func stageKey(denom string, addr crypto.Address) string {
	return denom + "/" + addr.String()
}

func cloneMarket(m *Market) *Market {
	if m == nil {
		return nil
	}
	out := *m
	if m.DebtTotalScaled != nil {
		out.DebtTotalScaled = new(big.Int).Set(m.DebtTotalScaled)
	}
	return &out
}

func cloneDebt(d *Debt) *Debt {
	if d == nil {
		return nil
	}
	out := *d
	if d.AmountScaled != nil {
		out.AmountScaled = new(big.Int).Set(d.AmountScaled)
	}
	return &out
}

func clonePosition(p *Position) *Position {
	out := NewPosition()
	if p == nil {
		return out
	}
	for denom := range p.CollateralAssets {
		out.CollateralAssets[denom] = true
	}
	for denom := range p.BorrowedAssets {
		out.BorrowedAssets[denom] = true
	}
	return out
}

func (s *stagedState) GetMarket(denom string) (*Market, error) {
	if rec, ok := s.markets[denom]; ok {
		return rec.market, nil
	}
	market, err := s.base.GetMarket(denom)
	if err != nil {
		return nil, err
	}
	rec := &stagedMarket{market: cloneMarket(market)}
	s.markets[denom] = rec
	return rec.market, nil
}

func (s *stagedState) PutMarket(market *Market) error {
	s.markets[market.Denom] = &stagedMarket{market: market, dirty: true}
	return nil
}

func (s *stagedState) ListMarkets() ([]*Market, error) {
	base, err := s.base.ListMarkets()
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(base))
	out := make([]*Market, 0, len(base))
	for _, market := range base {
		seen[market.Denom] = true
		if rec, ok := s.markets[market.Denom]; ok {
			if rec.market != nil {
				out = append(out, rec.market)
			}
			continue
		}
		out = append(out, market)
	}
	extra := make([]string, 0)
	for denom, rec := range s.markets {
		if !seen[denom] && rec.dirty && rec.market != nil {
			extra = append(extra, denom)
		}
	}
	sort.Strings(extra)
	for _, denom := range extra {
		out = append(out, s.markets[denom].market)
	}
	return out, nil
}

func (s *stagedState) GetDebt(denom string, addr crypto.Address) (*Debt, error) {
	key := stageKey(denom, addr)
	if rec, ok := s.debts[key]; ok {
		return rec.debt, nil
	}
	debt, err := s.base.GetDebt(denom, addr)
	if err != nil {
		return nil, err
	}
	rec := &stagedDebt{denom: denom, addr: addr, debt: cloneDebt(debt)}
	s.debts[key] = rec
	return rec.debt, nil
}

func (s *stagedState) PutDebt(denom string, addr crypto.Address, debt *Debt) error {
	s.debts[stageKey(denom, addr)] = &stagedDebt{denom: denom, addr: addr, debt: debt, dirty: true}
	return nil
}

func (s *stagedState) GetPosition(addr crypto.Address) (*Position, error) {
	key := addr.String()
	if rec, ok := s.positions[key]; ok {
		return rec.position, nil
	}
	position, err := s.base.GetPosition(addr)
	if err != nil {
		return nil, err
	}
	rec := &stagedPosition{addr: addr, position: clonePosition(position)}
	s.positions[key] = rec
	return rec.position, nil
}

func (s *stagedState) PutPosition(addr crypto.Address, position *Position) error {
	s.positions[addr.String()] = &stagedPosition{addr: addr, position: position, dirty: true}
	return nil
}

func (s *stagedState) GetUncollateralizedLimit(denom string, addr crypto.Address) (*big.Int, error) {
	key := stageKey(denom, addr)
	if rec, ok := s.limits[key]; ok {
		return rec.limit, nil
	}
	limit, err := s.base.GetUncollateralizedLimit(denom, addr)
	if err != nil {
		return nil, err
	}
	if limit == nil {
		limit = big.NewInt(0)
	}
	rec := &stagedLimit{denom: denom, addr: addr, limit: new(big.Int).Set(limit)}
	s.limits[key] = rec
	return rec.limit, nil
}

func (s *stagedState) PutUncollateralizedLimit(denom string, addr crypto.Address, limit *big.Int) error {
	s.limits[stageKey(denom, addr)] = &stagedLimit{denom: denom, addr: addr, limit: limit, dirty: true}
	return nil
}

// flush applies the buffered writes to the underlying state. Keys are sorted
// per record kind so the write order is reproducible.
func (s *stagedState) flush() error {
	for _, denom := range sortedStagedKeys(s.markets) {
		rec := s.markets[denom]
		if !rec.dirty {
			continue
		}
		if err := s.base.PutMarket(rec.market); err != nil {
			return err
		}
	}
	for _, key := range sortedStagedKeys(s.debts) {
		rec := s.debts[key]
		if !rec.dirty {
			continue
		}
		if err := s.base.PutDebt(rec.denom, rec.addr, rec.debt); err != nil {
			return err
		}
	}
	for _, key := range sortedStagedKeys(s.positions) {
		rec := s.positions[key]
		if !rec.dirty {
			continue
		}
		if err := s.base.PutPosition(rec.addr, rec.position); err != nil {
			return err
		}
	}
	for _, key := range sortedStagedKeys(s.limits) {
		rec := s.limits[key]
		if !rec.dirty {
			continue
		}
		if err := s.base.PutUncollateralizedLimit(rec.denom, rec.addr, rec.limit); err != nil {
			return err
		}
	}
	return nil
}

func sortedStagedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

var _ engineState = (*stagedState)(nil)
