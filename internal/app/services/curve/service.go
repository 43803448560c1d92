// Package curve implements the bonding-curve pricing engine: buys, sells,
// protocol fee accrual and the one-time graduation transition.
//
// Every operation runs to completion under a per-token lock and lands as a
// single atomic ledger commit, so no partial state is ever observable and
// events are emitted exactly once per successful call.
package curve

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	bankdomain "github.com/launchlayer/curve_layer/internal/app/domain/bank"
	domain "github.com/launchlayer/curve_layer/internal/app/domain/curve"
	"github.com/launchlayer/curve_layer/internal/app/domain/event"
	"github.com/launchlayer/curve_layer/internal/app/metrics"
	"github.com/launchlayer/curve_layer/internal/app/storage"
	"github.com/launchlayer/curve_layer/pkg/logger"
)

// EventPublisher receives committed events for fan-out. The stream hub
// implements it; a nil publisher disables fan-out.
type EventPublisher interface {
	Publish(events ...event.Event)
}

// Service is the pricing engine over the shared curve ledger.
type Service struct {
	curves   storage.CurveStore
	bank     storage.BankStore
	balances storage.BalanceStore
	ledger   storage.LedgerStore

	params   domain.Params
	treasury string
	pub      EventPublisher
	now      func() time.Time
	log      *logger.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New constructs a pricing engine. treasury is the only wallet entitled to
// withdraw protocol fees.
func New(curves storage.CurveStore, bank storage.BankStore, balances storage.BalanceStore, ledger storage.LedgerStore, params domain.Params, treasury string, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("curve")
	}
	return &Service{
		curves:   curves,
		bank:     bank,
		balances: balances,
		ledger:   ledger,
		params:   params,
		treasury: strings.TrimSpace(treasury),
		now:      time.Now,
		log:      log,
		locks:    make(map[string]*sync.Mutex),
	}
}

// WithPublisher attaches the event fan-out. Call before serving traffic.
func (s *Service) WithPublisher(pub EventPublisher) *Service {
	s.pub = pub
	return s
}

// WithClock overrides the time source, primarily for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Params returns the curve constants in force.
func (s *Service) Params() domain.Params { return s.params }

// lockToken serializes operations per token; cross-token calls run in
// parallel.
func (s *Service) lockToken(tokenID string) func() {
	s.mu.Lock()
	lock, ok := s.locks[tokenID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[tokenID] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

func (s *Service) publish(events []event.Event) {
	if s.pub != nil {
		s.pub.Publish(events...)
	}
}

// BuyReceipt reports the effects of a successful buy.
type BuyReceipt struct {
	TokenID       string
	Caller        string
	GrossIn       *big.Int
	NetCollateral *big.Int
	Fee           *big.Int
	Price         *big.Int
	TokensOut     *big.Int
	Graduated     bool
}

// Buy converts collateral into curve tokens at the current spot price. The
// gross amount is debited from the caller's collateral account; the fee is
// taken on the gross amount before conversion.
func (s *Service) Buy(ctx context.Context, tokenID, caller string, collateralIn *big.Int) (BuyReceipt, error) {
	caller = strings.TrimSpace(caller)
	if caller == "" {
		return BuyReceipt{}, fmt.Errorf("caller is required")
	}
	if collateralIn == nil || collateralIn.Sign() <= 0 || collateralIn.Cmp(s.params.MinBuy) < 0 {
		metrics.RecordTrade("buy", false, 0)
		return BuyReceipt{}, domain.ErrBelowMinimum
	}

	unlock := s.lockToken(tokenID)
	defer unlock()

	st, err := s.curves.GetCurveState(ctx, tokenID)
	if err != nil {
		metrics.RecordTrade("buy", false, 0)
		return BuyReceipt{}, err
	}
	if st.Graduated() {
		metrics.RecordTrade("buy", false, 0)
		return BuyReceipt{}, domain.ErrAlreadyGraduated
	}

	acct, err := s.bank.GetBankAccount(ctx, caller)
	if err != nil || acct.Balance.Cmp(collateralIn) < 0 {
		metrics.RecordTrade("buy", false, 0)
		return BuyReceipt{}, fmt.Errorf("debit %s collateral: %w", caller, domain.ErrTransferFailed)
	}

	net, fee := domain.SplitFee(collateralIn, st, s.params)
	price := domain.Price(st, s.params)
	tokensOut := domain.TokensOut(net, price)
	if tokensOut.Sign() == 0 {
		metrics.RecordTrade("buy", false, 0)
		return BuyReceipt{}, domain.ErrZeroOutput
	}

	next := st.Clone()
	next.AccruedProtocolFees.Add(next.AccruedProtocolFees, fee)
	next.CollateralInvested.Add(next.CollateralInvested, net)
	next.CollateralHeld.Add(next.CollateralHeld, collateralIn)
	next.CirculatingSupply.Add(next.CirculatingSupply, tokensOut)

	now := s.now().UTC()
	events := []event.Event{event.Bought(tokenID, caller, collateralIn, tokensOut, fee, now)}

	// Graduation is evaluated after the buy's effects, fires at most once,
	// and burns from the engine reserve only.
	graduatedNow := false
	if next.CollateralInvested.Cmp(s.params.GraduationThreshold) >= 0 {
		burn := domain.GraduationBurn(next, s.params)
		next.ReserveTokens.Sub(next.ReserveTokens, burn)
		next.Phase = domain.PhaseGraduated
		next.LiquidityProvisioned = true
		graduatedNow = true
		events = append(events, event.Graduated(tokenID, domain.MarketCap(next, s.params), next.CollateralHeld, burn, now))
	}

	committed, err := s.ledger.Commit(ctx, storage.ChangeSet{
		CurveState: &next,
		BalanceDeltas: []storage.BalanceDelta{
			{TokenID: tokenID, Holder: caller, Delta: new(big.Int).Set(tokensOut)},
		},
		BankDeltas: []storage.BankDelta{
			{Wallet: caller, Delta: new(big.Int).Neg(collateralIn)},
		},
		BankTransactions: []bankdomain.Transaction{{
			Wallet:    caller,
			Type:      bankdomain.TransactionDebit,
			Amount:    new(big.Int).Set(collateralIn),
			Reference: tokenID,
		}},
		Events: events,
	})
	if err != nil {
		metrics.RecordTrade("buy", false, 0)
		return BuyReceipt{}, fmt.Errorf("commit buy: %w", err)
	}
	s.publish(committed)

	feeF, _ := new(big.Float).SetInt(fee).Float64()
	metrics.RecordTrade("buy", true, feeF)
	if graduatedNow {
		metrics.RecordGraduation()
		s.log.WithField("token", tokenID).Info("curve graduated")
	}

	return BuyReceipt{
		TokenID:       tokenID,
		Caller:        caller,
		GrossIn:       new(big.Int).Set(collateralIn),
		NetCollateral: net,
		Fee:           fee,
		Price:         price,
		TokensOut:     tokensOut,
		Graduated:     graduatedNow,
	}, nil
}

// SellReceipt reports the effects of a successful sell.
type SellReceipt struct {
	TokenID     string
	Caller      string
	TokenAmount *big.Int
	GrossReturn *big.Int
	Fee         *big.Int
	NetReturn   *big.Int
	Price       *big.Int
}

// Sell burns the caller's tokens and returns collateral at the current spot
// price, fee taken on the converted amount. The net return is credited to
// the caller's collateral account.
func (s *Service) Sell(ctx context.Context, tokenID, caller string, tokenAmount *big.Int) (SellReceipt, error) {
	caller = strings.TrimSpace(caller)
	if caller == "" {
		return SellReceipt{}, fmt.Errorf("caller is required")
	}
	if tokenAmount == nil || tokenAmount.Sign() <= 0 {
		metrics.RecordTrade("sell", false, 0)
		return SellReceipt{}, domain.ErrInvalidAmount
	}

	unlock := s.lockToken(tokenID)
	defer unlock()

	st, err := s.curves.GetCurveState(ctx, tokenID)
	if err != nil {
		metrics.RecordTrade("sell", false, 0)
		return SellReceipt{}, err
	}
	if st.Graduated() {
		metrics.RecordTrade("sell", false, 0)
		return SellReceipt{}, domain.ErrAlreadyGraduated
	}

	held, err := s.balances.TokenBalance(ctx, tokenID, caller)
	if err != nil {
		metrics.RecordTrade("sell", false, 0)
		return SellReceipt{}, err
	}
	if held.Cmp(tokenAmount) < 0 {
		metrics.RecordTrade("sell", false, 0)
		return SellReceipt{}, fmt.Errorf("take %s tokens from %s: %w", tokenAmount, caller, domain.ErrTransferFailed)
	}

	price := domain.Price(st, s.params)
	gross := domain.GrossReturn(tokenAmount, price)
	net, fee := domain.SplitFee(gross, st, s.params)
	if st.CollateralHeld.Cmp(net) < 0 {
		metrics.RecordTrade("sell", false, 0)
		return SellReceipt{}, domain.ErrInsufficientReserve
	}

	next := st.Clone()
	next.CirculatingSupply.Sub(next.CirculatingSupply, tokenAmount)
	next.AccruedProtocolFees.Add(next.AccruedProtocolFees, fee)
	// Invested collateral shrinks by the net payout, floored at zero.
	next.CollateralInvested.Sub(next.CollateralInvested, net)
	if next.CollateralInvested.Sign() < 0 {
		next.CollateralInvested.SetInt64(0)
	}
	next.CollateralHeld.Sub(next.CollateralHeld, net)

	now := s.now().UTC()
	committed, err := s.ledger.Commit(ctx, storage.ChangeSet{
		CurveState: &next,
		BalanceDeltas: []storage.BalanceDelta{
			{TokenID: tokenID, Holder: caller, Delta: new(big.Int).Neg(tokenAmount)},
		},
		BankDeltas: []storage.BankDelta{
			{Wallet: caller, Delta: new(big.Int).Set(net)},
		},
		BankTransactions: []bankdomain.Transaction{{
			Wallet:    caller,
			Type:      bankdomain.TransactionCredit,
			Amount:    new(big.Int).Set(net),
			Reference: tokenID,
		}},
		Events: []event.Event{event.Sold(tokenID, caller, net, tokenAmount, fee, now)},
	})
	if err != nil {
		metrics.RecordTrade("sell", false, 0)
		return SellReceipt{}, fmt.Errorf("commit sell: %w", err)
	}
	s.publish(committed)

	feeF, _ := new(big.Float).SetInt(fee).Float64()
	metrics.RecordTrade("sell", true, feeF)

	return SellReceipt{
		TokenID:     tokenID,
		Caller:      caller,
		TokenAmount: new(big.Int).Set(tokenAmount),
		GrossReturn: gross,
		Fee:         fee,
		NetReturn:   net,
		Price:       price,
	}, nil
}

// WithdrawProtocolFees zeroes the fee accrual and credits it to the treasury
// collateral account. Only the treasury capability may call it.
func (s *Service) WithdrawProtocolFees(ctx context.Context, tokenID, caller string) (*big.Int, error) {
	caller = strings.TrimSpace(caller)
	if caller == "" || caller != s.treasury {
		return nil, domain.ErrUnauthorized
	}

	unlock := s.lockToken(tokenID)
	defer unlock()

	st, err := s.curves.GetCurveState(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	if st.AccruedProtocolFees.Sign() == 0 {
		return nil, domain.ErrNoFeesAvailable
	}

	amount := new(big.Int).Set(st.AccruedProtocolFees)

	next := st.Clone()
	next.AccruedProtocolFees.SetInt64(0)
	next.CollateralHeld.Sub(next.CollateralHeld, amount)
	if next.CollateralHeld.Sign() < 0 {
		next.CollateralHeld.SetInt64(0)
	}

	if _, err := s.ensureBankAccount(ctx, caller); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	committed, err := s.ledger.Commit(ctx, storage.ChangeSet{
		CurveState: &next,
		BankDeltas: []storage.BankDelta{
			{Wallet: caller, Delta: new(big.Int).Set(amount)},
		},
		BankTransactions: []bankdomain.Transaction{{
			Wallet:    caller,
			Type:      bankdomain.TransactionCredit,
			Amount:    new(big.Int).Set(amount),
			Reference: tokenID,
		}},
		Events: []event.Event{event.FeesWithdrawn(tokenID, caller, amount, now)},
	})
	if err != nil {
		return nil, fmt.Errorf("commit fee withdrawal: %w", err)
	}
	s.publish(committed)

	s.log.WithField("token", tokenID).Infof("protocol fees withdrawn: %s", amount)
	return amount, nil
}

// QuoteBuy previews a buy without touching state.
func (s *Service) QuoteBuy(ctx context.Context, tokenID string, collateralIn *big.Int) (BuyReceipt, error) {
	if collateralIn == nil || collateralIn.Sign() <= 0 || collateralIn.Cmp(s.params.MinBuy) < 0 {
		return BuyReceipt{}, domain.ErrBelowMinimum
	}

	st, err := s.curves.GetCurveState(ctx, tokenID)
	if err != nil {
		return BuyReceipt{}, err
	}
	if st.Graduated() {
		return BuyReceipt{}, domain.ErrAlreadyGraduated
	}

	net, fee := domain.SplitFee(collateralIn, st, s.params)
	price := domain.Price(st, s.params)
	tokensOut := domain.TokensOut(net, price)
	if tokensOut.Sign() == 0 {
		return BuyReceipt{}, domain.ErrZeroOutput
	}
	return BuyReceipt{
		TokenID:       tokenID,
		GrossIn:       new(big.Int).Set(collateralIn),
		NetCollateral: net,
		Fee:           fee,
		Price:         price,
		TokensOut:     tokensOut,
	}, nil
}

// State returns the current curve ledger for a token.
func (s *Service) State(ctx context.Context, tokenID string) (domain.State, error) {
	return s.curves.GetCurveState(ctx, tokenID)
}

// Price returns the current spot price for a token.
func (s *Service) Price(ctx context.Context, tokenID string) (*big.Int, error) {
	st, err := s.curves.GetCurveState(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	return domain.Price(st, s.params), nil
}

// Balance returns the caller's holding of a curve token.
func (s *Service) Balance(ctx context.Context, tokenID, holder string) (*big.Int, error) {
	return s.balances.TokenBalance(ctx, tokenID, strings.TrimSpace(holder))
}

func (s *Service) ensureBankAccount(ctx context.Context, wallet string) (bankdomain.Account, error) {
	acct, err := s.bank.GetBankAccount(ctx, wallet)
	if err == nil {
		return acct, nil
	}
	acct, err = s.bank.CreateBankAccount(ctx, bankdomain.Account{Wallet: wallet, Balance: new(big.Int)})
	if err != nil {
		return bankdomain.Account{}, fmt.Errorf("create bank account: %w", err)
	}
	return acct, nil
}
