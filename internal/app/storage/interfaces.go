package storage

import (
	"context"
	"errors"
	"math/big"

	"github.com/launchlayer/curve_layer/internal/app/domain/bank"
	"github.com/launchlayer/curve_layer/internal/app/domain/curve"
	"github.com/launchlayer/curve_layer/internal/app/domain/event"
	"github.com/launchlayer/curve_layer/internal/app/domain/token"
	"github.com/launchlayer/curve_layer/internal/app/domain/vesting"
)

// ErrNotFound is returned by every Get when the record does not exist.
var ErrNotFound = errors.New("record not found")

// TokenStore persists issued tokens.
type TokenStore interface {
	CreateToken(ctx context.Context, t token.Token) (token.Token, error)
	GetToken(ctx context.Context, id string) (token.Token, error)
	ListTokens(ctx context.Context) ([]token.Token, error)
}

// CurveStore persists per-token curve ledgers.
type CurveStore interface {
	CreateCurveState(ctx context.Context, st curve.State) (curve.State, error)
	GetCurveState(ctx context.Context, tokenID string) (curve.State, error)
}

// VestingStore persists per-token vesting records.
type VestingStore interface {
	CreateVestingState(ctx context.Context, st vesting.State) (vesting.State, error)
	GetVestingState(ctx context.Context, tokenID string) (vesting.State, error)
	ListVestingStates(ctx context.Context) ([]vesting.State, error)
}

// BankStore persists collateral accounts and their audit trail.
type BankStore interface {
	CreateBankAccount(ctx context.Context, acct bank.Account) (bank.Account, error)
	GetBankAccount(ctx context.Context, wallet string) (bank.Account, error)
	ListBankTransactions(ctx context.Context, wallet string) ([]bank.Transaction, error)
}

// BalanceStore reads token holdings. Holdings are only written through
// ledger commits.
type BalanceStore interface {
	TokenBalance(ctx context.Context, tokenID, holder string) (*big.Int, error)
}

// EventStore reads the committed event stream for a token, ordered by
// sequence.
type EventStore interface {
	ListEvents(ctx context.Context, tokenID string, afterSequence uint64, limit int) ([]event.Event, error)
}

// LedgerStore applies a ChangeSet atomically: either every state update,
// balance delta and event lands, or none of them do. Committed events come
// back with their per-token sequence and ID assigned.
type LedgerStore interface {
	Commit(ctx context.Context, cs ChangeSet) ([]event.Event, error)
}
