package bank

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"redbank/crypto"
	"redbank/storage"
)

const (
	priceKeyPrefix   = "book/price/"
	receiptKeyPrefix = "book/receipt/"
	supplyKeyPrefix  = "book/supply/"
	poolKeyPrefix    = "book/pool/"
	walletKeyPrefix  = "book/wallet/"
)

var (
	errNoPrice            = errors.New("bank book: no price for asset")
	errInsufficientFunds  = errors.New("bank book: insufficient funds")
	errUnknownInstruction = errors.New("bank book: unknown instruction")
)

// Book is the engine's environment: it keeps the oracle price table, the
// receipt-token balances and supplies, the per-market underlying pools and
// the user wallets, and it executes the instruction list the engine returns.
// It satisfies the Ledger capability the engine reads through.
type Book struct {
	mu sync.Mutex
	db storage.Database
}

func NewBook(db storage.Database) *Book {
	return &Book{db: db}
}

var _ Ledger = (*Book)(nil)

type amountRecord struct {
	Amount *big.Int `json:"amount"`
}

func (b *Book) getAmount(key string) (*big.Int, error) {
	raw, err := b.db.Get([]byte(key))
	if errors.Is(err, storage.ErrNotFound) {
		return big.NewInt(0), nil
	}
	if err != nil {
		return nil, err
	}
	var rec amountRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("bank book: decode %s: %w", key, err)
	}
	if rec.Amount == nil {
		return big.NewInt(0), nil
	}
	return rec.Amount, nil
}

func (b *Book) putAmount(key string, amount *big.Int) error {
	raw, err := json.Marshal(amountRecord{Amount: amount})
	if err != nil {
		return err
	}
	return b.db.Put([]byte(key), raw)
}

func (b *Book) addAmount(key string, delta *big.Int) error {
	current, err := b.getAmount(key)
	if err != nil {
		return err
	}
	next := new(big.Int).Add(current, delta)
	if next.Sign() < 0 {
		return errInsufficientFunds
	}
	return b.putAmount(key, next)
}

func receiptKey(denom string, addr crypto.Address) string {
	return receiptKeyPrefix + denom + "/" + hex.EncodeToString(addr.Bytes())
}

func walletKey(denom string, addr crypto.Address) string {
	return walletKeyPrefix + denom + "/" + hex.EncodeToString(addr.Bytes())
}

// SetPrice records the oracle price for an asset.
func (b *Book) SetPrice(denom string, price Dec) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	raw, err := json.Marshal(price)
	if err != nil {
		return err
	}
	return b.db.Put([]byte(priceKeyPrefix+denom), raw)
}

func (b *Book) Price(denom string) (Dec, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	raw, err := b.db.Get([]byte(priceKeyPrefix + denom))
	if errors.Is(err, storage.ErrNotFound) {
		return Dec{}, errNoPrice
	}
	if err != nil {
		return Dec{}, err
	}
	var price Dec
	if err := json.Unmarshal(raw, &price); err != nil {
		return Dec{}, err
	}
	return price, nil
}

func (b *Book) ReceiptTokenSupply(denom string) (*big.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.getAmount(supplyKeyPrefix + denom)
}

func (b *Book) ReceiptBalance(denom string, addr crypto.Address) (*big.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.getAmount(receiptKey(denom, addr))
}

func (b *Book) UnderlyingBalance(denom string) (*big.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.getAmount(poolKeyPrefix + denom)
}

// WalletBalance returns a user's free (non-deposited) funds in an asset.
func (b *Book) WalletBalance(denom string, addr crypto.Address) (*big.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.getAmount(walletKey(denom, addr))
}

// Credit mints funds directly into a wallet. Genesis and test funding only.
func (b *Book) Credit(denom string, addr crypto.Address, amount *big.Int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addAmount(walletKey(denom, addr), amount)
}

// PayIn moves funds from a wallet into the market pool. The environment calls
// it before deposit, repay and liquidate operations so that the sent amount
// is part of the pool balance when the engine reads it.
func (b *Book) PayIn(denom string, addr crypto.Address, amount *big.Int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if amount == nil || amount.Sign() <= 0 {
		return errInsufficientFunds
	}
	neg := new(big.Int).Neg(amount)
	if err := b.addAmount(walletKey(denom, addr), neg); err != nil {
		return err
	}
	return b.addAmount(poolKeyPrefix+denom, amount)
}

// Apply executes instructions in order. It is called after the engine's state
// transition has been committed.
func (b *Book) Apply(instructions []Instruction) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, instr := range instructions {
		if err := b.apply(instr); err != nil {
			return err
		}
	}
	return nil
}

func (b *Book) apply(instr Instruction) error {
	switch in := instr.(type) {
	case MintReceipt:
		if err := b.addAmount(receiptKey(in.Denom, in.Recipient), in.AmountScaled); err != nil {
			return err
		}
		return b.addAmount(supplyKeyPrefix+in.Denom, in.AmountScaled)
	case BurnReceipt:
		neg := new(big.Int).Neg(in.AmountScaled)
		if err := b.addAmount(receiptKey(in.Denom, in.From), neg); err != nil {
			return err
		}
		return b.addAmount(supplyKeyPrefix+in.Denom, neg)
	case TransferUnderlying:
		if err := b.addAmount(poolKeyPrefix+in.Denom, new(big.Int).Neg(in.Amount)); err != nil {
			return err
		}
		return b.addAmount(walletKey(in.Denom, in.Recipient), in.Amount)
	case TransferReceiptOnLiquidation:
		if err := b.addAmount(receiptKey(in.Denom, in.From), new(big.Int).Neg(in.AmountScaled)); err != nil {
			return err
		}
		return b.addAmount(receiptKey(in.Denom, in.To), in.AmountScaled)
	default:
		return fmt.Errorf("%w: %T", errUnknownInstruction, instr)
	}
}
