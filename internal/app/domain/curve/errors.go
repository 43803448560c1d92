package curve

import "errors"

// Ledger operation failures. Every failure leaves state untouched; there are
// no partially-applied trades.
var (
	ErrBelowMinimum        = errors.New("collateral below minimum buy")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrAlreadyGraduated    = errors.New("curve already graduated")
	ErrZeroOutput          = errors.New("computed token output is zero")
	ErrInsufficientReserve = errors.New("insufficient collateral reserve")
	ErrTransferFailed      = errors.New("collateral or token transfer failed")
	ErrUnauthorized        = errors.New("caller not authorized")
	ErrNoFeesAvailable     = errors.New("no protocol fees accrued")
)
