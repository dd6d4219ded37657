package bank

import "errors"

var (
	// configuration
	errNilState            = errors.New("bank engine: state not configured")
	errNilLedger           = errors.New("bank engine: ledger not configured")
	errInvalidRateModel    = errors.New("bank engine: invalid interest rate model")
	errInvalidAssetParams  = errors.New("bank engine: max loan-to-value must be below liquidation threshold")
	errAssetAlreadyInit    = errors.New("bank engine: asset already initialised")
	errAssetNotInitialised = errors.New("bank engine: asset not initialised")
	errRewardsCollectorSet = errors.New("bank engine: rewards collector not configured")

	// authorization
	errUnauthorized = errors.New("bank engine: caller is not the owner")

	// market state
	errMarketInactive  = errors.New("bank engine: market not active")
	errDepositDisabled = errors.New("bank engine: deposits disabled for market")
	errBorrowDisabled  = errors.New("bank engine: borrowing disabled for market")

	// funds
	errInvalidAmount         = errors.New("bank engine: amount must be positive")
	errInsufficientBalance   = errors.New("bank engine: insufficient balance")
	errInsufficientLiquidity = errors.New("bank engine: insufficient available liquidity")

	// health factor
	errHealthCheckFailed             = errors.New("bank engine: operation would leave health factor below 1")
	errBorrowExceedsLTV              = errors.New("bank engine: borrow exceeds loan-to-value limit")
	errNoCollateral                  = errors.New("bank engine: no collateral deposited")
	errUncollateralizedLimitExceeded = errors.New("bank engine: uncollateralized loan limit exceeded")

	// repay / limits
	errNoDebtToRepay                       = errors.New("bank engine: no outstanding debt to repay")
	errCannotRepayUncollateralizedOnBehalf = errors.New("bank engine: cannot repay uncollateralized loan on behalf of another account")
	errUserHasCollateralizedDebt           = errors.New("bank engine: user holds collateralized debt in this market")

	// liquidation preconditions
	errCannotLiquidateSelf             = errors.New("bank engine: cannot liquidate own account")
	errCannotLiquidateUncollateralized = errors.New("bank engine: borrower holds an uncollateralized limit for the debt asset")
	errNoCollateralToSeize             = errors.New("bank engine: borrower has no balance in requested collateral asset")
	errNotLiquidatable                 = errors.New("bank engine: borrower not eligible for liquidation")

	// time
	errTimestampRegression = errors.New("bank engine: current time precedes last index update")
)
