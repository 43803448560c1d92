package memory

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/launchlayer/curve_layer/internal/app/domain/bank"
	"github.com/launchlayer/curve_layer/internal/app/domain/curve"
	"github.com/launchlayer/curve_layer/internal/app/domain/event"
	"github.com/launchlayer/curve_layer/internal/app/domain/token"
	"github.com/launchlayer/curve_layer/internal/app/domain/vesting"
	"github.com/launchlayer/curve_layer/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local
// development.
type Store struct {
	mu           sync.RWMutex
	nextID       int64
	tokens       map[string]token.Token
	curves       map[string]curve.State
	vestings     map[string]vesting.State
	bankAccounts map[string]bank.Account
	bankTxs      map[string][]bank.Transaction
	balances     map[string]map[string]*big.Int
	events       map[string][]event.Event
	sequences    map[string]uint64
}

var _ storage.TokenStore = (*Store)(nil)
var _ storage.CurveStore = (*Store)(nil)
var _ storage.VestingStore = (*Store)(nil)
var _ storage.BankStore = (*Store)(nil)
var _ storage.BalanceStore = (*Store)(nil)
var _ storage.EventStore = (*Store)(nil)
var _ storage.LedgerStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextID:       1,
		tokens:       make(map[string]token.Token),
		curves:       make(map[string]curve.State),
		vestings:     make(map[string]vesting.State),
		bankAccounts: make(map[string]bank.Account),
		bankTxs:      make(map[string][]bank.Transaction),
		balances:     make(map[string]map[string]*big.Int),
		events:       make(map[string][]event.Event),
		sequences:    make(map[string]uint64),
	}
}

func (s *Store) nextIDLocked() string {
	id := s.nextID
	s.nextID++
	return fmt.Sprintf("%d", id)
}

// TokenStore implementation ---------------------------------------------------

func (s *Store) CreateToken(_ context.Context, t token.Token) (token.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createTokenLocked(t)
}

func (s *Store) createTokenLocked(t token.Token) (token.Token, error) {
	if t.ID == "" {
		t.ID = s.nextIDLocked()
	} else if _, exists := s.tokens[t.ID]; exists {
		return token.Token{}, fmt.Errorf("token %s already exists", t.ID)
	}

	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	t.Metadata = cloneMap(t.Metadata)
	t.TotalSupply = cloneBig(t.TotalSupply)

	s.tokens[t.ID] = t
	return cloneToken(t), nil
}

func (s *Store) GetToken(_ context.Context, id string) (token.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tokens[id]
	if !ok {
		return token.Token{}, fmt.Errorf("token %s: %w", id, storage.ErrNotFound)
	}
	return cloneToken(t), nil
}

func (s *Store) ListTokens(_ context.Context) ([]token.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]token.Token, 0, len(s.tokens))
	for _, t := range s.tokens {
		out = append(out, cloneToken(t))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// CurveStore implementation ---------------------------------------------------

func (s *Store) CreateCurveState(_ context.Context, st curve.State) (curve.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.curves[st.TokenID]; exists {
		return curve.State{}, fmt.Errorf("curve state for token %s already exists", st.TokenID)
	}
	s.curves[st.TokenID] = st.Clone()
	return st.Clone(), nil
}

func (s *Store) GetCurveState(_ context.Context, tokenID string) (curve.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.curves[tokenID]
	if !ok {
		return curve.State{}, fmt.Errorf("curve state for token %s: %w", tokenID, storage.ErrNotFound)
	}
	return st.Clone(), nil
}

// VestingStore implementation -------------------------------------------------

func (s *Store) CreateVestingState(_ context.Context, st vesting.State) (vesting.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.vestings[st.TokenID]; exists {
		return vesting.State{}, fmt.Errorf("vesting state for token %s already exists", st.TokenID)
	}
	s.vestings[st.TokenID] = st.Clone()
	return st.Clone(), nil
}

func (s *Store) GetVestingState(_ context.Context, tokenID string) (vesting.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.vestings[tokenID]
	if !ok {
		return vesting.State{}, fmt.Errorf("vesting state for token %s: %w", tokenID, storage.ErrNotFound)
	}
	return st.Clone(), nil
}

func (s *Store) ListVestingStates(_ context.Context) ([]vesting.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]vesting.State, 0, len(s.vestings))
	for _, st := range s.vestings {
		out = append(out, st.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TokenID < out[j].TokenID })
	return out, nil
}

// BankStore implementation ----------------------------------------------------

func (s *Store) CreateBankAccount(_ context.Context, acct bank.Account) (bank.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wallet := strings.TrimSpace(acct.Wallet)
	if wallet == "" {
		return bank.Account{}, fmt.Errorf("wallet is required")
	}
	if _, exists := s.bankAccounts[wallet]; exists {
		return bank.Account{}, fmt.Errorf("bank account for wallet %s already exists", wallet)
	}

	if acct.ID == "" {
		acct.ID = s.nextIDLocked()
	}
	now := time.Now().UTC()
	acct.Wallet = wallet
	acct.CreatedAt = now
	acct.UpdatedAt = now
	if acct.Balance == nil {
		acct.Balance = new(big.Int)
	}

	s.bankAccounts[wallet] = acct.Clone()
	return acct.Clone(), nil
}

func (s *Store) GetBankAccount(_ context.Context, wallet string) (bank.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, ok := s.bankAccounts[wallet]
	if !ok {
		return bank.Account{}, fmt.Errorf("bank account for wallet %s: %w", wallet, storage.ErrNotFound)
	}
	return acct.Clone(), nil
}

func (s *Store) ListBankTransactions(_ context.Context, wallet string) ([]bank.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	txs := s.bankTxs[wallet]
	out := make([]bank.Transaction, 0, len(txs))
	for _, tx := range txs {
		tx.Amount = cloneBig(tx.Amount)
		out = append(out, tx)
	}
	return out, nil
}

// BalanceStore implementation -------------------------------------------------

func (s *Store) TokenBalance(_ context.Context, tokenID, holder string) (*big.Int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	holders, ok := s.balances[tokenID]
	if !ok {
		return new(big.Int), nil
	}
	bal, ok := holders[holder]
	if !ok {
		return new(big.Int), nil
	}
	return new(big.Int).Set(bal), nil
}

// EventStore implementation ---------------------------------------------------

func (s *Store) ListEvents(_ context.Context, tokenID string, afterSequence uint64, limit int) ([]event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []event.Event
	for _, evt := range s.events[tokenID] {
		if evt.Sequence <= afterSequence {
			continue
		}
		evt.Attributes = cloneMap(evt.Attributes)
		out = append(out, evt)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// LedgerStore implementation --------------------------------------------------

// Commit validates the full change set before touching anything, so a
// rejected commit leaves the store exactly as it was.
func (s *Store) Commit(_ context.Context, cs storage.ChangeSet) ([]event.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate.
	if cs.Token != nil {
		if _, exists := s.tokens[cs.Token.ID]; exists && cs.Token.ID != "" {
			return nil, fmt.Errorf("token %s already exists", cs.Token.ID)
		}
	}
	newBalances := make(map[string]*big.Int, len(cs.BalanceDeltas))
	for _, delta := range cs.BalanceDeltas {
		key := delta.TokenID + "\x00" + delta.Holder
		current, ok := newBalances[key]
		if !ok {
			current = new(big.Int)
			if holders, ok := s.balances[delta.TokenID]; ok {
				if bal, ok := holders[delta.Holder]; ok {
					current.Set(bal)
				}
			}
		}
		current.Add(current, delta.Delta)
		if current.Sign() < 0 {
			return nil, fmt.Errorf("token balance for %s would go negative", delta.Holder)
		}
		newBalances[key] = current
	}
	newBankBalances := make(map[string]*big.Int, len(cs.BankDeltas))
	for _, delta := range cs.BankDeltas {
		current, ok := newBankBalances[delta.Wallet]
		if !ok {
			acct, exists := s.bankAccounts[delta.Wallet]
			if !exists {
				return nil, fmt.Errorf("bank account for wallet %s: %w", delta.Wallet, storage.ErrNotFound)
			}
			current = new(big.Int).Set(acct.Balance)
		}
		current.Add(current, delta.Delta)
		if current.Sign() < 0 {
			return nil, fmt.Errorf("wallet %s: %w", delta.Wallet, bank.ErrInsufficientFunds)
		}
		newBankBalances[delta.Wallet] = current
	}

	// Apply.
	now := time.Now().UTC()
	if cs.Token != nil {
		if _, err := s.createTokenLocked(*cs.Token); err != nil {
			return nil, err
		}
	}
	if cs.CurveState != nil {
		st := cs.CurveState.Clone()
		st.UpdatedAt = now
		s.curves[st.TokenID] = st
	}
	if cs.VestingState != nil {
		st := cs.VestingState.Clone()
		st.UpdatedAt = now
		s.vestings[st.TokenID] = st
	}
	for key, bal := range newBalances {
		parts := strings.SplitN(key, "\x00", 2)
		holders, ok := s.balances[parts[0]]
		if !ok {
			holders = make(map[string]*big.Int)
			s.balances[parts[0]] = holders
		}
		holders[parts[1]] = bal
	}
	for wallet, bal := range newBankBalances {
		acct := s.bankAccounts[wallet]
		acct.Balance = bal
		acct.UpdatedAt = now
		s.bankAccounts[wallet] = acct
	}
	for _, tx := range cs.BankTransactions {
		if tx.ID == "" {
			tx.ID = s.nextIDLocked()
		}
		tx.Amount = cloneBig(tx.Amount)
		tx.CreatedAt = now
		s.bankTxs[tx.Wallet] = append(s.bankTxs[tx.Wallet], tx)
	}

	committed := make([]event.Event, 0, len(cs.Events))
	for _, evt := range cs.Events {
		seq := s.sequences[evt.TokenID] + 1
		s.sequences[evt.TokenID] = seq
		evt.Sequence = seq
		if evt.ID == "" {
			evt.ID = s.nextIDLocked()
		}
		evt.Attributes = cloneMap(evt.Attributes)
		s.events[evt.TokenID] = append(s.events[evt.TokenID], evt)
		committed = append(committed, evt)
	}
	return committed, nil
}

// helpers ----------------------------------------------------------------------

func cloneMap(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneBig(in *big.Int) *big.Int {
	if in == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(in)
}

func cloneToken(t token.Token) token.Token {
	t.Metadata = cloneMap(t.Metadata)
	t.TotalSupply = cloneBig(t.TotalSupply)
	return t
}
