// Package vesting defines the deployer vesting ledger: a linear release over
// a fixed window with the final tranche gated behind a milestone latch.
package vesting

import (
	"math/big"
	"time"
)

// MilestonePhase is the milestone gate lifecycle. The only legal transition
// is MilestonesPending -> MilestonesReached.
type MilestonePhase string

const (
	MilestonesPending MilestonePhase = "pending"
	MilestonesReached MilestonePhase = "reached"
)

// State is the per-token vesting record. It is created at token issuance and
// lives for the token's lifetime.
type State struct {
	TokenID  string
	Deployer string

	// VestingStart is fixed at token creation.
	VestingStart time.Time
	Duration     time.Duration

	// TotalAllocation is the fixed deployer share of the token's total
	// supply, immutable after issuance.
	TotalAllocation *big.Int

	// VestedAmount grows monotonically toward TotalAllocation.
	VestedAmount *big.Int

	Milestones MilestonePhase

	// UnvestedBurned latches once the post-window remainder has been
	// reported burned.
	UnvestedBurned bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewState returns a fresh vesting record starting now.
func NewState(tokenID, deployer string, allocation *big.Int, duration time.Duration, now time.Time) State {
	return State{
		TokenID:         tokenID,
		Deployer:        deployer,
		VestingStart:    now,
		Duration:        duration,
		TotalAllocation: new(big.Int).Set(allocation),
		VestedAmount:    new(big.Int),
		Milestones:      MilestonesPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Clone returns a deep copy for staging mutations.
func (s State) Clone() State {
	out := s
	out.TotalAllocation = new(big.Int).Set(s.TotalAllocation)
	out.VestedAmount = new(big.Int).Set(s.VestedAmount)
	return out
}

// WindowClosed reports whether the linear vesting window has fully elapsed.
// The boundary instant itself counts as closed, which is where Eligible
// switches from the linear schedule to the milestone gate.
func (s State) WindowClosed(now time.Time) bool {
	return !now.Before(s.VestingStart.Add(s.Duration))
}

// BurnWindowOpen reports whether the unvested remainder may be burned. The
// burn unlocks strictly after vestingStart+Duration: the boundary instant is
// still ongoing for the burn, one tick later than WindowClosed.
func (s State) BurnWindowOpen(now time.Time) bool {
	return now.After(s.VestingStart.Add(s.Duration))
}

// Allocation computes the deployer allocation from the token's total supply
// in basis points, floor division.
func Allocation(totalSupply *big.Int, bps int64) *big.Int {
	out := new(big.Int).Mul(totalSupply, big.NewInt(bps))
	return out.Quo(out, big.NewInt(10000))
}

// Eligible returns the cumulative amount claimable at the given instant.
//
// Inside the window this is a floor linear interpolation and is
// non-decreasing in now. At or past the window boundary the whole allocation
// unlocks only when milestones were reached; otherwise nothing at all is
// eligible, including the portion the linear schedule had already offered.
// That cliff reproduces the issuance contract exactly; see DESIGN.md.
func Eligible(s State, now time.Time) *big.Int {
	if now.Before(s.VestingStart) {
		return new(big.Int)
	}
	if !s.WindowClosed(now) {
		elapsed := big.NewInt(int64(now.Sub(s.VestingStart) / time.Second))
		total := big.NewInt(int64(s.Duration / time.Second))
		if total.Sign() == 0 {
			return new(big.Int)
		}
		out := new(big.Int).Mul(s.TotalAllocation, elapsed)
		return out.Quo(out, total)
	}
	if s.Milestones == MilestonesReached {
		return new(big.Int).Set(s.TotalAllocation)
	}
	return new(big.Int)
}

// Unvested returns the remainder never released to the deployer.
func Unvested(s State) *big.Int {
	return new(big.Int).Sub(s.TotalAllocation, s.VestedAmount)
}
