package bank

import (
	"math/big"

	"redbank/crypto"
)

// Ledger is the capability interface the engine depends on for everything it
// does not own: oracle prices, receipt-token supplies and balances, and the
// pool's holdings of underlying assets. Production adapters are backed by the
// same key-value store as the engine; tests use the in-memory Book.
//
// UnderlyingBalance reflects the pool balance as seen during the current
// operation, i.e. funds sent along with the call are already included.
type Ledger interface {
	// Price returns the oracle price for one unit of the asset. It fails
	// when no price source is configured for the asset.
	Price(denom string) (Dec, error)
	// ReceiptTokenSupply returns the total scaled receipt-token supply for
	// the market. The receipt token is the source of truth for scaled
	// deposits; the engine never stores that total redundantly.
	ReceiptTokenSupply(denom string) (*big.Int, error)
	// ReceiptBalance returns a user's scaled receipt-token balance.
	ReceiptBalance(denom string, addr crypto.Address) (*big.Int, error)
	// UnderlyingBalance returns the pool's holdings of the underlying asset.
	UnderlyingBalance(denom string) (*big.Int, error)
}

// Instructions are the ordered side effects a handler asks the environment to
// carry out after the state change commits. The engine never observes their
// result; an instruction the environment cannot deliver fails the whole
// operation at that layer.

type Instruction interface {
	InstructionType() string
}

// MintReceipt mints scaled receipt tokens to a recipient.
type MintReceipt struct {
	Denom        string
	Recipient    crypto.Address
	AmountScaled *big.Int
}

func (MintReceipt) InstructionType() string { return "bank.mint_receipt" }

// BurnReceipt burns scaled receipt tokens from a holder.
type BurnReceipt struct {
	Denom        string
	From         crypto.Address
	AmountScaled *big.Int
}

func (BurnReceipt) InstructionType() string { return "bank.burn_receipt" }

// TransferUnderlying pays out underlying assets from the pool.
type TransferUnderlying struct {
	Denom     string
	Recipient crypto.Address
	Amount    *big.Int
}

func (TransferUnderlying) InstructionType() string { return "bank.transfer_underlying" }

// TransferReceiptOnLiquidation moves receipt tokens from the liquidated
// borrower directly to the liquidator without touching pool liquidity.
type TransferReceiptOnLiquidation struct {
	Denom        string
	From         crypto.Address
	To           crypto.Address
	AmountScaled *big.Int
}

func (TransferReceiptOnLiquidation) InstructionType() string {
	return "bank.transfer_receipt_on_liquidation"
}
