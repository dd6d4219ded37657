package bank

import (
	"math/big"

	"redbank/crypto"
)

// Typed events emitted after successful state transitions.

const (
	TypeAssetInitialized       = "bank.asset_initialized"
	TypeAssetUpdated           = "bank.asset_updated"
	TypeDeposited              = "bank.deposited"
	TypeWithdrawn              = "bank.withdrawn"
	TypeBorrowed               = "bank.borrowed"
	TypeRepaid                 = "bank.repaid"
	TypeLiquidated             = "bank.liquidated"
	TypeLoanLimitUpdated       = "bank.uncollateralized_limit_updated"
	TypeCollateralStatusChange = "bank.collateral_status_changed"
)

type AssetInitialized struct {
	Denom string
}

func (AssetInitialized) EventType() string { return TypeAssetInitialized }

type AssetUpdated struct {
	Denom string
}

func (AssetUpdated) EventType() string { return TypeAssetUpdated }

type Deposited struct {
	Denom        string
	Depositor    crypto.Address
	Beneficiary  crypto.Address
	Amount       *big.Int
	AmountScaled *big.Int
}

func (Deposited) EventType() string { return TypeDeposited }

type Withdrawn struct {
	Denom        string
	Withdrawer   crypto.Address
	Recipient    crypto.Address
	Amount       *big.Int
	AmountScaled *big.Int
}

func (Withdrawn) EventType() string { return TypeWithdrawn }

type Borrowed struct {
	Denom     string
	Borrower  crypto.Address
	Recipient crypto.Address
	Amount    *big.Int
}

func (Borrowed) EventType() string { return TypeBorrowed }

type Repaid struct {
	Denom    string
	Payer    crypto.Address
	Borrower crypto.Address
	Amount   *big.Int
	Refund   *big.Int
}

func (Repaid) EventType() string { return TypeRepaid }

type Liquidated struct {
	CollateralDenom   string
	DebtDenom         string
	Liquidator        crypto.Address
	Borrower          crypto.Address
	DebtRepaid        *big.Int
	CollateralSeized  *big.Int
	Refund            *big.Int
	ReceivedAsReceipt bool
}

func (Liquidated) EventType() string { return TypeLiquidated }

type LoanLimitUpdated struct {
	Denom    string
	User     crypto.Address
	NewLimit *big.Int
}

func (LoanLimitUpdated) EventType() string { return TypeLoanLimitUpdated }

type CollateralStatusChanged struct {
	Denom   string
	User    crypto.Address
	Enabled bool
}

func (CollateralStatusChanged) EventType() string { return TypeCollateralStatusChange }
