// Package bank defines collateral accounts. Buys draw from a caller's
// deposited collateral and sells credit it back, so the engine never moves
// funds it was not handed first.
package bank

import (
	"errors"
	"math/big"
	"time"
)

// Account holds a wallet's deposited collateral.
type Account struct {
	ID        string
	Wallet    string
	Balance   *big.Int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone returns a deep copy of the account.
func (a Account) Clone() Account {
	out := a
	out.Balance = new(big.Int).Set(a.Balance)
	return out
}

// TransactionType classifies a collateral movement.
type TransactionType string

const (
	TransactionDeposit    TransactionType = "deposit"
	TransactionWithdrawal TransactionType = "withdrawal"
	TransactionDebit      TransactionType = "trade_debit"
	TransactionCredit     TransactionType = "trade_credit"
)

// Transaction is the audit record for a collateral movement.
type Transaction struct {
	ID        string
	Wallet    string
	Type      TransactionType
	Amount    *big.Int
	Reference string
	CreatedAt time.Time
}

var (
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrInsufficientFunds = errors.New("insufficient collateral balance")
)
