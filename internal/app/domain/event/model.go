// Package event defines the immutable ledger event records consumed by the
// external indexer. Every state-changing operation emits exactly one record
// per effect, in the order the effects occurred, and nothing on failure.
package event

import (
	"math/big"
	"time"
)

// Type classifies a ledger event.
type Type string

const (
	TypeTokenLaunched     Type = "token.launched"
	TypeBought            Type = "curve.bought"
	TypeSold              Type = "curve.sold"
	TypeGraduated         Type = "curve.graduated"
	TypeFeesWithdrawn     Type = "curve.fees_withdrawn"
	TypeVestingClaimed    Type = "vesting.claimed"
	TypeMilestonesReached Type = "vesting.milestones_reached"
	TypeUnvestedBurned    Type = "vesting.unvested_burned"
)

// Event is one immutable ledger record. Sequence is per-token, monotonic and
// assigned by the store at commit time, which is what makes the stream
// replayable in effect order.
type Event struct {
	ID         string
	TokenID    string
	Sequence   uint64
	Type       Type
	Caller     string
	Attributes map[string]string
	OccurredAt time.Time
}

// Attribute keys. Amounts are decimal strings of the underlying integers.
const (
	AttrGrossIn        = "gross_in"
	AttrNetReturn      = "net_return"
	AttrTokensOut      = "tokens_out"
	AttrTokenAmount    = "token_amount"
	AttrFee            = "fee"
	AttrMarketCap      = "market_cap"
	AttrCollateralHeld = "collateral_held"
	AttrBurned         = "burned"
	AttrVestedDelta    = "vested_delta"
	AttrVestedTotal    = "vested_total"
	AttrAmount         = "amount"
	AttrSymbol         = "symbol"
	AttrTotalSupply    = "total_supply"
	AttrRecipient      = "recipient"
)

// Bought records a successful buy.
func Bought(tokenID, caller string, grossIn, tokensOut, fee *big.Int, at time.Time) Event {
	return Event{
		TokenID: tokenID,
		Type:    TypeBought,
		Caller:  caller,
		Attributes: map[string]string{
			AttrGrossIn:   grossIn.String(),
			AttrTokensOut: tokensOut.String(),
			AttrFee:       fee.String(),
		},
		OccurredAt: at,
	}
}

// Sold records a successful sell.
func Sold(tokenID, caller string, netReturn, tokenAmount, fee *big.Int, at time.Time) Event {
	return Event{
		TokenID: tokenID,
		Type:    TypeSold,
		Caller:  caller,
		Attributes: map[string]string{
			AttrNetReturn:   netReturn.String(),
			AttrTokenAmount: tokenAmount.String(),
			AttrFee:         fee.String(),
		},
		OccurredAt: at,
	}
}

// Graduated records the one-time graduation transition.
func Graduated(tokenID string, marketCap, collateralHeld, burned *big.Int, at time.Time) Event {
	return Event{
		TokenID: tokenID,
		Type:    TypeGraduated,
		Attributes: map[string]string{
			AttrMarketCap:      marketCap.String(),
			AttrCollateralHeld: collateralHeld.String(),
			AttrBurned:         burned.String(),
		},
		OccurredAt: at,
	}
}

// FeesWithdrawn records a treasury fee withdrawal.
func FeesWithdrawn(tokenID, treasury string, amount *big.Int, at time.Time) Event {
	return Event{
		TokenID: tokenID,
		Type:    TypeFeesWithdrawn,
		Caller:  treasury,
		Attributes: map[string]string{
			AttrAmount:    amount.String(),
			AttrRecipient: treasury,
		},
		OccurredAt: at,
	}
}

// VestingClaimed records newly released deployer tokens.
func VestingClaimed(tokenID, deployer string, delta, vestedTotal *big.Int, at time.Time) Event {
	return Event{
		TokenID: tokenID,
		Type:    TypeVestingClaimed,
		Caller:  deployer,
		Attributes: map[string]string{
			AttrVestedDelta: delta.String(),
			AttrVestedTotal: vestedTotal.String(),
		},
		OccurredAt: at,
	}
}

// MilestonesReachedEvent records the milestone latch firing.
func MilestonesReachedEvent(tokenID, owner string, at time.Time) Event {
	return Event{
		TokenID:    tokenID,
		Type:       TypeMilestonesReached,
		Caller:     owner,
		Attributes: map[string]string{},
		OccurredAt: at,
	}
}

// UnvestedBurned records the unclaimed remainder reported burned.
func UnvestedBurned(tokenID, caller string, amount *big.Int, at time.Time) Event {
	return Event{
		TokenID: tokenID,
		Type:    TypeUnvestedBurned,
		Caller:  caller,
		Attributes: map[string]string{
			AttrAmount: amount.String(),
		},
		OccurredAt: at,
	}
}

// TokenLaunched records a token issuance.
func TokenLaunched(tokenID, deployer, symbol string, totalSupply *big.Int, at time.Time) Event {
	return Event{
		TokenID: tokenID,
		Type:    TypeTokenLaunched,
		Caller:  deployer,
		Attributes: map[string]string{
			AttrSymbol:      symbol,
			AttrTotalSupply: totalSupply.String(),
		},
		OccurredAt: at,
	}
}
