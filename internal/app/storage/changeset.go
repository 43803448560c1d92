package storage

import (
	"math/big"

	"github.com/launchlayer/curve_layer/internal/app/domain/bank"
	"github.com/launchlayer/curve_layer/internal/app/domain/curve"
	"github.com/launchlayer/curve_layer/internal/app/domain/event"
	"github.com/launchlayer/curve_layer/internal/app/domain/token"
	"github.com/launchlayer/curve_layer/internal/app/domain/vesting"
)

// ChangeSet is the unit of ledger mutation. Services stage every effect of
// one operation here and commit it in a single atomic step, which is what
// guarantees all-or-nothing semantics and exactly-once event emission.
type ChangeSet struct {
	// Token, when set, creates the token record. Used by launch so the
	// token, its ledgers and its first event land together.
	Token *token.Token

	// CurveState, when set, upserts the stored curve ledger for its token.
	CurveState *curve.State

	// VestingState, when set, replaces the stored vesting record.
	VestingState *vesting.State

	// BalanceDeltas adjust token holdings. A negative delta that would push
	// a holding below zero aborts the whole commit.
	BalanceDeltas []BalanceDelta

	// BankDeltas adjust collateral accounts, same underflow rule.
	BankDeltas []BankDelta

	// BankTransactions are audit records for the bank deltas.
	BankTransactions []bank.Transaction

	// Events are appended to the per-token stream in order.
	Events []event.Event
}

// BalanceDelta adjusts one holder's balance of one token.
type BalanceDelta struct {
	TokenID string
	Holder  string
	Delta   *big.Int
}

// BankDelta adjusts one wallet's collateral account.
type BankDelta struct {
	Wallet string
	Delta  *big.Int
}
