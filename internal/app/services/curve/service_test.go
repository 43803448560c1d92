package curve

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	bankdomain "github.com/launchlayer/curve_layer/internal/app/domain/bank"
	domain "github.com/launchlayer/curve_layer/internal/app/domain/curve"
	"github.com/launchlayer/curve_layer/internal/app/domain/event"
	"github.com/launchlayer/curve_layer/internal/app/storage/memory"
	"github.com/launchlayer/curve_layer/pkg/logger"
)

const (
	tokenID  = "tok-1"
	trader   = "wallet-trader"
	treasury = "wallet-treasury"
)

func ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), domain.Scale())
}

func newFixture(t *testing.T, params domain.Params) (*Service, *memory.Store) {
	t.Helper()

	store := memory.New()
	ctx := context.Background()

	reserve := new(big.Int).Mul(big.NewInt(200_000_000), domain.Scale())
	if _, err := store.CreateCurveState(ctx, domain.NewState(tokenID, reserve, time.Now())); err != nil {
		t.Fatalf("create curve state: %v", err)
	}
	if _, err := store.CreateBankAccount(ctx, bankdomain.Account{Wallet: trader, Balance: ether(1000)}); err != nil {
		t.Fatalf("create bank account: %v", err)
	}

	log := logger.NewDefault("test")
	svc := New(store, store, store, store, params, treasury, log)
	return svc, store
}

func TestBuyMintsAtBasePriceAndTakesFeeOnGross(t *testing.T) {
	svc, store := newFixture(t, domain.DefaultParams())
	ctx := context.Background()

	receipt, err := svc.Buy(ctx, tokenID, trader, ether(1))
	if err != nil {
		t.Fatalf("buy: %v", err)
	}

	wantFee := new(big.Int).Mul(ether(1), big.NewInt(75))
	wantFee.Quo(wantFee, big.NewInt(10000))
	if receipt.Fee.Cmp(wantFee) != 0 {
		t.Fatalf("expected fee %s, got %s", wantFee, receipt.Fee)
	}

	wantNet := new(big.Int).Sub(ether(1), wantFee)
	if receipt.NetCollateral.Cmp(wantNet) != 0 {
		t.Fatalf("expected net %s, got %s", wantNet, receipt.NetCollateral)
	}

	// First buy prices at the base price.
	if receipt.Price.Int64() != 100 {
		t.Fatalf("expected base price 100, got %s", receipt.Price)
	}
	wantOut := new(big.Int).Mul(wantNet, domain.Scale())
	wantOut.Quo(wantOut, big.NewInt(100))
	if receipt.TokensOut.Cmp(wantOut) != 0 {
		t.Fatalf("expected %s tokens, got %s", wantOut, receipt.TokensOut)
	}

	st, err := store.GetCurveState(ctx, tokenID)
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if st.CollateralInvested.Cmp(wantNet) != 0 {
		t.Fatalf("invested %s, want %s", st.CollateralInvested, wantNet)
	}
	if st.CollateralHeld.Cmp(ether(1)) != 0 {
		t.Fatalf("held %s, want gross %s", st.CollateralHeld, ether(1))
	}
	if st.AccruedProtocolFees.Cmp(wantFee) != 0 {
		t.Fatalf("fees %s, want %s", st.AccruedProtocolFees, wantFee)
	}

	bal, err := store.TokenBalance(ctx, tokenID, trader)
	if err != nil {
		t.Fatalf("token balance: %v", err)
	}
	if bal.Cmp(wantOut) != 0 {
		t.Fatalf("trader holds %s, want %s", bal, wantOut)
	}

	acct, err := store.GetBankAccount(ctx, trader)
	if err != nil {
		t.Fatalf("bank account: %v", err)
	}
	if acct.Balance.Cmp(ether(999)) != 0 {
		t.Fatalf("bank balance %s, want %s", acct.Balance, ether(999))
	}
}

func TestBuyRejectsBelowMinimumAndMissingFunds(t *testing.T) {
	svc, _ := newFixture(t, domain.DefaultParams())
	ctx := context.Background()

	if _, err := svc.Buy(ctx, tokenID, trader, big.NewInt(1)); !errors.Is(err, domain.ErrBelowMinimum) {
		t.Fatalf("expected ErrBelowMinimum, got %v", err)
	}
	if _, err := svc.Buy(ctx, tokenID, trader, nil); !errors.Is(err, domain.ErrBelowMinimum) {
		t.Fatalf("expected ErrBelowMinimum for nil amount, got %v", err)
	}
	if _, err := svc.Buy(ctx, tokenID, trader, ether(5000)); !errors.Is(err, domain.ErrTransferFailed) {
		t.Fatalf("expected ErrTransferFailed on overdraft, got %v", err)
	}
	if _, err := svc.Buy(ctx, tokenID, "wallet-unknown", ether(1)); !errors.Is(err, domain.ErrTransferFailed) {
		t.Fatalf("expected ErrTransferFailed for unknown wallet, got %v", err)
	}
}

func TestSellReturnsCollateralWithFeeOnNet(t *testing.T) {
	svc, store := newFixture(t, domain.DefaultParams())
	ctx := context.Background()

	bought, err := svc.Buy(ctx, tokenID, trader, ether(10))
	if err != nil {
		t.Fatalf("buy: %v", err)
	}

	receipt, err := svc.Sell(ctx, tokenID, trader, bought.TokensOut)
	if err != nil {
		t.Fatalf("sell: %v", err)
	}

	wantFee := new(big.Int).Mul(receipt.GrossReturn, big.NewInt(75))
	wantFee.Quo(wantFee, big.NewInt(10000))
	if receipt.Fee.Cmp(wantFee) != 0 {
		t.Fatalf("expected fee %s on converted amount, got %s", wantFee, receipt.Fee)
	}
	wantNet := new(big.Int).Sub(receipt.GrossReturn, wantFee)
	if receipt.NetReturn.Cmp(wantNet) != 0 {
		t.Fatalf("expected net %s, got %s", wantNet, receipt.NetReturn)
	}

	// The full exit cannot repay more than was put in.
	if receipt.NetReturn.Cmp(ether(10)) >= 0 {
		t.Fatalf("exit returned %s for %s in", receipt.NetReturn, ether(10))
	}

	bal, err := store.TokenBalance(ctx, tokenID, trader)
	if err != nil {
		t.Fatalf("token balance: %v", err)
	}
	if bal.Sign() != 0 {
		t.Fatalf("expected zero holding after full exit, got %s", bal)
	}

	st, err := store.GetCurveState(ctx, tokenID)
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if st.CirculatingSupply.Sign() != 0 {
		t.Fatalf("expected zero circulating supply, got %s", st.CirculatingSupply)
	}
}

func TestSellRejectsExcessAndZeroAmounts(t *testing.T) {
	svc, _ := newFixture(t, domain.DefaultParams())
	ctx := context.Background()

	if _, err := svc.Sell(ctx, tokenID, trader, big.NewInt(0)); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := svc.Sell(ctx, tokenID, trader, big.NewInt(1)); !errors.Is(err, domain.ErrTransferFailed) {
		t.Fatalf("expected ErrTransferFailed with no holdings, got %v", err)
	}
}

func TestGraduationFiresOnceAtThreshold(t *testing.T) {
	params := domain.DefaultParams()
	params.GraduationThreshold = ether(5)
	svc, store := newFixture(t, params)
	ctx := context.Background()

	// Stay just below the threshold first.
	if receipt, err := svc.Buy(ctx, tokenID, trader, ether(5)); err != nil {
		t.Fatalf("buy: %v", err)
	} else if receipt.Graduated {
		t.Fatal("graduated below the threshold: 5 ether gross nets under 5 ether")
	}

	receipt, err := svc.Buy(ctx, tokenID, trader, ether(1))
	if err != nil {
		t.Fatalf("crossing buy: %v", err)
	}
	if !receipt.Graduated {
		t.Fatal("expected the crossing buy to graduate")
	}

	st, err := store.GetCurveState(ctx, tokenID)
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if !st.Graduated() || !st.LiquidityProvisioned {
		t.Fatalf("expected graduated state, got phase %s provisioned %v", st.Phase, st.LiquidityProvisioned)
	}

	// Ten percent of circulating must have left the reserve.
	wantBurn := new(big.Int).Div(st.CirculatingSupply, big.NewInt(10))
	fullReserve := new(big.Int).Mul(big.NewInt(200_000_000), domain.Scale())
	wantReserve := new(big.Int).Sub(fullReserve, wantBurn)
	if st.ReserveTokens.Cmp(wantReserve) != 0 {
		t.Fatalf("reserve %s, want %s after burn", st.ReserveTokens, wantReserve)
	}

	// The latch blocks further trading.
	if _, err := svc.Buy(ctx, tokenID, trader, ether(1)); !errors.Is(err, domain.ErrAlreadyGraduated) {
		t.Fatalf("expected ErrAlreadyGraduated on buy, got %v", err)
	}
	if _, err := svc.Sell(ctx, tokenID, trader, big.NewInt(1)); !errors.Is(err, domain.ErrAlreadyGraduated) {
		t.Fatalf("expected ErrAlreadyGraduated on sell, got %v", err)
	}

	// Exactly one graduation event in the stream.
	events, err := store.ListEvents(ctx, tokenID, 0, 0)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	graduations := 0
	for _, evt := range events {
		if evt.Type == event.TypeGraduated {
			graduations++
		}
	}
	if graduations != 1 {
		t.Fatalf("expected exactly one graduation event, got %d", graduations)
	}
}

func TestEventsAreSequencedPerToken(t *testing.T) {
	svc, store := newFixture(t, domain.DefaultParams())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.Buy(ctx, tokenID, trader, ether(1)); err != nil {
			t.Fatalf("buy %d: %v", i, err)
		}
	}

	events, err := store.ListEvents(ctx, tokenID, 0, 0)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	for i, evt := range events {
		if evt.Sequence != uint64(i+1) {
			t.Fatalf("event %d has sequence %d", i, evt.Sequence)
		}
	}

	// Cursor reads resume past the given sequence.
	tail, err := store.ListEvents(ctx, tokenID, 2, 0)
	if err != nil {
		t.Fatalf("list events after cursor: %v", err)
	}
	if len(tail) != 1 || tail[0].Sequence != 3 {
		t.Fatalf("expected single event with sequence 3, got %+v", tail)
	}
}

func TestWithdrawProtocolFees(t *testing.T) {
	svc, store := newFixture(t, domain.DefaultParams())
	ctx := context.Background()

	if _, err := svc.WithdrawProtocolFees(ctx, tokenID, trader); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for non-treasury caller, got %v", err)
	}
	if _, err := svc.WithdrawProtocolFees(ctx, tokenID, treasury); !errors.Is(err, domain.ErrNoFeesAvailable) {
		t.Fatalf("expected ErrNoFeesAvailable before trading, got %v", err)
	}

	bought, err := svc.Buy(ctx, tokenID, trader, ether(4))
	if err != nil {
		t.Fatalf("buy: %v", err)
	}

	amount, err := svc.WithdrawProtocolFees(ctx, tokenID, treasury)
	if err != nil {
		t.Fatalf("withdraw fees: %v", err)
	}
	if amount.Cmp(bought.Fee) != 0 {
		t.Fatalf("withdrew %s, want accrued %s", amount, bought.Fee)
	}

	st, err := store.GetCurveState(ctx, tokenID)
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if st.AccruedProtocolFees.Sign() != 0 {
		t.Fatalf("expected zero accrual after withdrawal, got %s", st.AccruedProtocolFees)
	}

	acct, err := store.GetBankAccount(ctx, treasury)
	if err != nil {
		t.Fatalf("treasury account: %v", err)
	}
	if acct.Balance.Cmp(amount) != 0 {
		t.Fatalf("treasury holds %s, want %s", acct.Balance, amount)
	}

	// The accrual was zeroed, so a second withdrawal has nothing to take.
	if _, err := svc.WithdrawProtocolFees(ctx, tokenID, treasury); !errors.Is(err, domain.ErrNoFeesAvailable) {
		t.Fatalf("expected ErrNoFeesAvailable after withdrawal, got %v", err)
	}
}

func TestFailedOperationLeavesNoTrace(t *testing.T) {
	svc, store := newFixture(t, domain.DefaultParams())
	ctx := context.Background()

	before, err := store.GetCurveState(ctx, tokenID)
	if err != nil {
		t.Fatalf("get state: %v", err)
	}

	if _, err := svc.Buy(ctx, tokenID, trader, ether(5000)); err == nil {
		t.Fatal("expected overdraft buy to fail")
	}

	after, err := store.GetCurveState(ctx, tokenID)
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if after.CollateralHeld.Cmp(before.CollateralHeld) != 0 || after.CirculatingSupply.Cmp(before.CirculatingSupply) != 0 {
		t.Fatal("failed buy mutated the curve state")
	}

	events, err := store.ListEvents(ctx, tokenID, 0, 0)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("failed buy emitted %d events", len(events))
	}
}

func TestQuoteBuyDoesNotMutate(t *testing.T) {
	svc, store := newFixture(t, domain.DefaultParams())
	ctx := context.Background()

	receipt, err := svc.QuoteBuy(ctx, tokenID, ether(1))
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if receipt.TokensOut.Sign() <= 0 {
		t.Fatalf("expected positive quote, got %s", receipt.TokensOut)
	}

	st, err := store.GetCurveState(ctx, tokenID)
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if st.CirculatingSupply.Sign() != 0 {
		t.Fatal("quote mutated the curve state")
	}
}

func TestListEventsUnknownTokenIsEmpty(t *testing.T) {
	_, store := newFixture(t, domain.DefaultParams())

	events, err := store.ListEvents(context.Background(), "tok-unknown", 0, 0)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected empty stream, got %d", len(events))
	}
}
