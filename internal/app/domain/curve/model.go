// Package curve defines the bonding-curve ledger state and its pricing
// arithmetic. Everything in this package is pure: functions never mutate
// their inputs and services own all persistence.
package curve

import (
	"math/big"
	"time"
)

// Phase is the curve lifecycle. The only legal transition is
// PhaseActive -> PhaseGraduated; there is no way back.
type Phase string

const (
	PhaseActive    Phase = "active"
	PhaseGraduated Phase = "graduated"
)

// BPSDenominator is the basis-point scale used for all fee arithmetic.
const BPSDenominator = 10000

// State is the per-token curve ledger.
type State struct {
	TokenID string
	Phase   Phase

	// CollateralInvested is the cumulative fee-net collateral backing the
	// circulating supply. It only grows on buys and only shrinks on sells,
	// floored at zero.
	CollateralInvested *big.Int

	// CirculatingSupply is curve-issued token units: minted on buys minus
	// burned on sells and at graduation.
	CirculatingSupply *big.Int

	// CollateralHeld is the gross collateral custodied by the engine:
	// invested collateral plus accrued fees not yet withdrawn.
	CollateralHeld *big.Int

	// AccruedProtocolFees is owed to the treasury and shrinks only on
	// withdrawal.
	AccruedProtocolFees *big.Int

	// ReserveTokens is the engine's own token holding, minted at launch.
	// The graduation burn is taken from here.
	ReserveTokens *big.Int

	LiquidityProvisioned bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewState returns an active curve ledger with zeroed balances.
func NewState(tokenID string, reserveTokens *big.Int, now time.Time) State {
	if reserveTokens == nil {
		reserveTokens = new(big.Int)
	}
	return State{
		TokenID:             tokenID,
		Phase:               PhaseActive,
		CollateralInvested:  new(big.Int),
		CirculatingSupply:   new(big.Int),
		CollateralHeld:      new(big.Int),
		AccruedProtocolFees: new(big.Int),
		ReserveTokens:       new(big.Int).Set(reserveTokens),
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

// Clone returns a deep copy so callers can stage mutations without touching
// the authoritative record.
func (s State) Clone() State {
	out := s
	out.CollateralInvested = new(big.Int).Set(s.CollateralInvested)
	out.CirculatingSupply = new(big.Int).Set(s.CirculatingSupply)
	out.CollateralHeld = new(big.Int).Set(s.CollateralHeld)
	out.AccruedProtocolFees = new(big.Int).Set(s.AccruedProtocolFees)
	out.ReserveTokens = new(big.Int).Set(s.ReserveTokens)
	return out
}

// Graduated reports whether the one-way graduation latch has fired.
func (s State) Graduated() bool { return s.Phase == PhaseGraduated }
