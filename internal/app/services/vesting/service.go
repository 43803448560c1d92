// Package vesting implements the deployer vesting ledger: linear release of
// the deployer allocation over a fixed window, a one-way milestone latch
// gating the final tranche, and the post-window burn of anything never
// released.
package vesting

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	domain "github.com/launchlayer/curve_layer/internal/app/domain/vesting"

	"github.com/launchlayer/curve_layer/internal/app/domain/event"
	"github.com/launchlayer/curve_layer/internal/app/metrics"
	"github.com/launchlayer/curve_layer/internal/app/storage"
	"github.com/launchlayer/curve_layer/pkg/logger"
)

// EventPublisher receives committed events for fan-out.
type EventPublisher interface {
	Publish(events ...event.Event)
}

// Service manages per-token vesting records. The authority wallet holds the
// milestone capability; it is a deployment-level identity separate from any
// token's deployer.
type Service struct {
	vestings  storage.VestingStore
	ledger    storage.LedgerStore
	authority string

	pub EventPublisher
	now func() time.Time
	log *logger.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New constructs a vesting service.
func New(vestings storage.VestingStore, ledger storage.LedgerStore, authority string, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("vesting")
	}
	return &Service{
		vestings:  vestings,
		ledger:    ledger,
		authority: strings.TrimSpace(authority),
		now:       time.Now,
		log:       log,
		locks:     make(map[string]*sync.Mutex),
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

// ClaimReceipt reports the effect of a claim.
type ClaimReceipt struct {
	TokenID     string
	Deployer    string
	Delta       *big.Int
	VestedTotal *big.Int
}

// Claim releases whatever the schedule has newly unlocked to the deployer.
// A claim with nothing newly vested succeeds with a zero delta and emits
// nothing, so repeated claims at the same instant are harmless.
func (s *Service) Claim(ctx context.Context, tokenID, caller string) (ClaimReceipt, error) {
	caller = strings.TrimSpace(caller)

	unlock := s.lockToken(tokenID)
	defer unlock()

	st, err := s.vestings.GetVestingState(ctx, tokenID)
	if err != nil {
		metrics.RecordVestingClaim(false)
		return ClaimReceipt{}, err
	}
	if caller != st.Deployer {
		metrics.RecordVestingClaim(false)
		return ClaimReceipt{}, domain.ErrUnauthorized
	}

	now := s.now().UTC()
	eligible := domain.Eligible(st, now)
	delta := new(big.Int).Sub(eligible, st.VestedAmount)
	if delta.Sign() <= 0 {
		metrics.RecordVestingClaim(true)
		return ClaimReceipt{
			TokenID:     tokenID,
			Deployer:    st.Deployer,
			Delta:       new(big.Int),
			VestedTotal: new(big.Int).Set(st.VestedAmount),
		}, nil
	}

	next := st.Clone()
	next.VestedAmount.Set(eligible)
	next.UpdatedAt = now

	committed, err := s.ledger.Commit(ctx, storage.ChangeSet{
		VestingState: &next,
		BalanceDeltas: []storage.BalanceDelta{
			{TokenID: tokenID, Holder: st.Deployer, Delta: new(big.Int).Set(delta)},
		},
		Events: []event.Event{event.VestingClaimed(tokenID, st.Deployer, delta, eligible, now)},
	})
	if err != nil {
		metrics.RecordVestingClaim(false)
		return ClaimReceipt{}, fmt.Errorf("commit claim: %w", err)
	}
	s.publish(committed)
	metrics.RecordVestingClaim(true)

	return ClaimReceipt{
		TokenID:     tokenID,
		Deployer:    st.Deployer,
		Delta:       delta,
		VestedTotal: eligible,
	}, nil
}

// SetMilestonesReached flips the milestone latch. The transition happens at
// most once; calling it again after the latch is set is a no-op success, so
// callers retrying a lost response cannot fail. Only the configured authority
// may call it; the deployer cannot unlock its own final tranche.
func (s *Service) SetMilestonesReached(ctx context.Context, tokenID, caller string) error {
	caller = strings.TrimSpace(caller)
	if caller == "" || caller != s.authority {
		return domain.ErrUnauthorized
	}

	unlock := s.lockToken(tokenID)
	defer unlock()

	st, err := s.vestings.GetVestingState(ctx, tokenID)
	if err != nil {
		return err
	}
	if st.Milestones == domain.MilestonesReached {
		return nil
	}

	now := s.now().UTC()
	next := st.Clone()
	next.Milestones = domain.MilestonesReached
	next.UpdatedAt = now

	committed, err := s.ledger.Commit(ctx, storage.ChangeSet{
		VestingState: &next,
		Events:       []event.Event{event.MilestonesReachedEvent(tokenID, caller, now)},
	})
	if err != nil {
		return fmt.Errorf("commit milestone latch: %w", err)
	}
	s.publish(committed)

	s.log.WithField("token", tokenID).Info("milestones reached")
	return nil
}

// BurnUnvestedTokens reports the never-released remainder burned after the
// window closed with milestones unmet. Either the authority or the token's
// deployer may call it. It latches: a second call returns ErrUnvestedBurned.
func (s *Service) BurnUnvestedTokens(ctx context.Context, tokenID, caller string) (*big.Int, error) {
	caller = strings.TrimSpace(caller)

	unlock := s.lockToken(tokenID)
	defer unlock()

	st, err := s.vestings.GetVestingState(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	if caller == "" || (caller != s.authority && caller != st.Deployer) {
		return nil, domain.ErrUnauthorized
	}

	now := s.now().UTC()
	if !st.BurnWindowOpen(now) {
		return nil, domain.ErrVestingOngoing
	}
	if st.Milestones == domain.MilestonesReached {
		return nil, domain.ErrMilestonesReached
	}
	if st.UnvestedBurned {
		return nil, domain.ErrUnvestedBurned
	}

	amount := domain.Unvested(st)

	next := st.Clone()
	next.UnvestedBurned = true
	next.UpdatedAt = now

	committed, err := s.ledger.Commit(ctx, storage.ChangeSet{
		VestingState: &next,
		Events:       []event.Event{event.UnvestedBurned(tokenID, caller, amount, now)},
	})
	if err != nil {
		return nil, fmt.Errorf("commit unvested burn: %w", err)
	}
	s.publish(committed)

	s.log.WithField("token", tokenID).Infof("unvested remainder burned: %s", amount)
	return amount, nil
}

// State returns the vesting record for a token.
func (s *Service) State(ctx context.Context, tokenID string) (domain.State, error) {
	return s.vestings.GetVestingState(ctx, tokenID)
}

// Claimable previews the delta a claim would release right now.
func (s *Service) Claimable(ctx context.Context, tokenID string) (*big.Int, error) {
	st, err := s.vestings.GetVestingState(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	delta := new(big.Int).Sub(domain.Eligible(st, s.now().UTC()), st.VestedAmount)
	if delta.Sign() < 0 {
		delta.SetInt64(0)
	}
	return delta, nil
}
