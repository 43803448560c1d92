// Package bank manages collateral accounts. Wallets deposit collateral here
// before buying on a curve; sells and fee withdrawals credit balances back.
package bank

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	domain "github.com/launchlayer/curve_layer/internal/app/domain/bank"
	"github.com/launchlayer/curve_layer/internal/app/storage"
	"github.com/launchlayer/curve_layer/pkg/logger"
)

// Service manages collateral accounts.
type Service struct {
	store  storage.BankStore
	ledger storage.LedgerStore
	log    *logger.Logger
}

// New constructs a bank service.
func New(store storage.BankStore, ledger storage.LedgerStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("bank")
	}
	return &Service{
		store:  store,
		ledger: ledger,
		log:    log,
	}
}

// EnsureAccount returns the wallet's collateral account, creating it when
// missing.
func (s *Service) EnsureAccount(ctx context.Context, wallet string) (domain.Account, error) {
	wallet = strings.TrimSpace(wallet)
	if wallet == "" {
		return domain.Account{}, fmt.Errorf("wallet is required")
	}

	acct, err := s.store.GetBankAccount(ctx, wallet)
	if err == nil {
		return acct, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return domain.Account{}, err
	}

	acct, err = s.store.CreateBankAccount(ctx, domain.Account{Wallet: wallet, Balance: new(big.Int)})
	if err != nil {
		return domain.Account{}, fmt.Errorf("create bank account: %w", err)
	}
	s.log.WithField("wallet", wallet).Info("collateral account created")
	return acct, nil
}

// Deposit credits the wallet's collateral account.
func (s *Service) Deposit(ctx context.Context, wallet string, amount *big.Int) (domain.Account, error) {
	if amount == nil || amount.Sign() <= 0 {
		return domain.Account{}, domain.ErrInvalidAmount
	}
	acct, err := s.EnsureAccount(ctx, wallet)
	if err != nil {
		return domain.Account{}, err
	}

	_, err = s.ledger.Commit(ctx, storage.ChangeSet{
		BankDeltas: []storage.BankDelta{{Wallet: acct.Wallet, Delta: new(big.Int).Set(amount)}},
		BankTransactions: []domain.Transaction{{
			Wallet: acct.Wallet,
			Type:   domain.TransactionDeposit,
			Amount: new(big.Int).Set(amount),
		}},
	})
	if err != nil {
		return domain.Account{}, fmt.Errorf("commit deposit: %w", err)
	}

	return s.store.GetBankAccount(ctx, acct.Wallet)
}

// Withdraw debits the wallet's collateral account. The commit rejects any
// withdrawal that would push the balance below zero.
func (s *Service) Withdraw(ctx context.Context, wallet string, amount *big.Int) (domain.Account, error) {
	if amount == nil || amount.Sign() <= 0 {
		return domain.Account{}, domain.ErrInvalidAmount
	}
	wallet = strings.TrimSpace(wallet)

	acct, err := s.store.GetBankAccount(ctx, wallet)
	if err != nil {
		return domain.Account{}, err
	}
	if acct.Balance.Cmp(amount) < 0 {
		return domain.Account{}, domain.ErrInsufficientFunds
	}

	_, err = s.ledger.Commit(ctx, storage.ChangeSet{
		BankDeltas: []storage.BankDelta{{Wallet: wallet, Delta: new(big.Int).Neg(amount)}},
		BankTransactions: []domain.Transaction{{
			Wallet: wallet,
			Type:   domain.TransactionWithdrawal,
			Amount: new(big.Int).Set(amount),
		}},
	})
	if err != nil {
		return domain.Account{}, fmt.Errorf("commit withdrawal: %w", err)
	}

	return s.store.GetBankAccount(ctx, wallet)
}

// Balance returns the wallet's current collateral balance. Unknown wallets
// hold zero.
func (s *Service) Balance(ctx context.Context, wallet string) (*big.Int, error) {
	acct, err := s.store.GetBankAccount(ctx, strings.TrimSpace(wallet))
	if errors.Is(err, storage.ErrNotFound) {
		return new(big.Int), nil
	}
	if err != nil {
		return nil, err
	}
	return acct.Balance, nil
}

// Transactions lists the wallet's collateral movements.
func (s *Service) Transactions(ctx context.Context, wallet string) ([]domain.Transaction, error) {
	return s.store.ListBankTransactions(ctx, strings.TrimSpace(wallet))
}
