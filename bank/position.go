package bank

import (
	"math/big"
	"sort"
)

// Position records which markets a user has enabled as collateral and which
// they are borrowing from. Explicit denom sets are used instead of positional
// bitmasks so the record never depends on market creation order.
type Position struct {
	CollateralAssets map[string]bool `json:"collateralAssets"`
	BorrowedAssets   map[string]bool `json:"borrowedAssets"`
}

func NewPosition() *Position {
	return &Position{
		CollateralAssets: make(map[string]bool),
		BorrowedAssets:   make(map[string]bool),
	}
}

func (p *Position) ensureMaps() {
	if p.CollateralAssets == nil {
		p.CollateralAssets = make(map[string]bool)
	}
	if p.BorrowedAssets == nil {
		p.BorrowedAssets = make(map[string]bool)
	}
}

func (p *Position) IsCollateral(denom string) bool { return p != nil && p.CollateralAssets[denom] }
func (p *Position) IsBorrowed(denom string) bool   { return p != nil && p.BorrowedAssets[denom] }

func (p *Position) SetCollateral(denom string) {
	p.ensureMaps()
	p.CollateralAssets[denom] = true
}

func (p *Position) ClearCollateral(denom string) {
	p.ensureMaps()
	delete(p.CollateralAssets, denom)
}

func (p *Position) SetBorrowed(denom string) {
	p.ensureMaps()
	p.BorrowedAssets[denom] = true
}

func (p *Position) ClearBorrowed(denom string) {
	p.ensureMaps()
	delete(p.BorrowedAssets, denom)
}

func (p *Position) HasDebt() bool {
	return p != nil && len(p.BorrowedAssets) > 0
}

func (p *Position) IsEmpty() bool {
	return p == nil || (len(p.CollateralAssets) == 0 && len(p.BorrowedAssets) == 0)
}

// Assets returns the union of the two sets in deterministic order.
func (p *Position) Assets() []string {
	if p == nil {
		return nil
	}
	seen := make(map[string]bool, len(p.CollateralAssets)+len(p.BorrowedAssets))
	for denom := range p.CollateralAssets {
		seen[denom] = true
	}
	for denom := range p.BorrowedAssets {
		seen[denom] = true
	}
	out := make([]string, 0, len(seen))
	for denom := range seen {
		out = append(out, denom)
	}
	sort.Strings(out)
	return out
}

// Debt is the per-(asset, user) borrow record. Fully repaid debts are zeroed,
// not deleted, so the uncollateralized flag survives.
type Debt struct {
	// AmountScaled is the borrow-index scaled debt principal.
	AmountScaled *big.Int `json:"amountScaled"`
	// Uncollateralized marks trust-based credit lines that bypass the
	// collateral model entirely.
	Uncollateralized bool `json:"uncollateralized"`
}

func (d *Debt) ensureDefaults() {
	if d.AmountScaled == nil {
		d.AmountScaled = big.NewInt(0)
	}
}
