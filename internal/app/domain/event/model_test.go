package event

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBought(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	evt := Bought("tok-1", "wallet-a", big.NewInt(1000), big.NewInt(9), big.NewInt(7), at)

	assert.Equal(t, TypeBought, evt.Type)
	assert.Equal(t, "tok-1", evt.TokenID)
	assert.Equal(t, "wallet-a", evt.Caller)
	assert.Equal(t, at, evt.OccurredAt)
	assert.Equal(t, "1000", evt.Attributes[AttrGrossIn])
	assert.Equal(t, "9", evt.Attributes[AttrTokensOut])
	assert.Equal(t, "7", evt.Attributes[AttrFee])
}

func TestSold(t *testing.T) {
	evt := Sold("tok-1", "wallet-a", big.NewInt(993), big.NewInt(9), big.NewInt(7), time.Now())

	assert.Equal(t, TypeSold, evt.Type)
	assert.Equal(t, "993", evt.Attributes[AttrNetReturn])
	assert.Equal(t, "9", evt.Attributes[AttrTokenAmount])
	assert.Equal(t, "7", evt.Attributes[AttrFee])
}

func TestGraduated(t *testing.T) {
	evt := Graduated("tok-1", big.NewInt(100000), big.NewInt(5000), big.NewInt(42), time.Now())

	require.Equal(t, TypeGraduated, evt.Type)
	assert.Empty(t, evt.Caller)
	assert.Equal(t, "100000", evt.Attributes[AttrMarketCap])
	assert.Equal(t, "5000", evt.Attributes[AttrCollateralHeld])
	assert.Equal(t, "42", evt.Attributes[AttrBurned])
}

func TestFeesWithdrawn(t *testing.T) {
	evt := FeesWithdrawn("tok-1", "wallet-treasury", big.NewInt(75), time.Now())

	assert.Equal(t, TypeFeesWithdrawn, evt.Type)
	assert.Equal(t, "wallet-treasury", evt.Caller)
	assert.Equal(t, "75", evt.Attributes[AttrAmount])
	assert.Equal(t, "wallet-treasury", evt.Attributes[AttrRecipient])
}

func TestVestingEvents(t *testing.T) {
	claimed := VestingClaimed("tok-1", "wallet-deployer", big.NewInt(500), big.NewInt(1500), time.Now())
	assert.Equal(t, TypeVestingClaimed, claimed.Type)
	assert.Equal(t, "500", claimed.Attributes[AttrVestedDelta])
	assert.Equal(t, "1500", claimed.Attributes[AttrVestedTotal])

	reached := MilestonesReachedEvent("tok-1", "wallet-deployer", time.Now())
	assert.Equal(t, TypeMilestonesReached, reached.Type)
	require.NotNil(t, reached.Attributes)
	assert.Empty(t, reached.Attributes)

	burned := UnvestedBurned("tok-1", "wallet-deployer", big.NewInt(250), time.Now())
	assert.Equal(t, TypeUnvestedBurned, burned.Type)
	assert.Equal(t, "250", burned.Attributes[AttrAmount])
}

func TestTokenLaunched(t *testing.T) {
	evt := TokenLaunched("tok-1", "wallet-deployer", "DEMO", big.NewInt(1000000), time.Now())

	assert.Equal(t, TypeTokenLaunched, evt.Type)
	assert.Equal(t, "wallet-deployer", evt.Caller)
	assert.Equal(t, "DEMO", evt.Attributes[AttrSymbol])
	assert.Equal(t, "1000000", evt.Attributes[AttrTotalSupply])

	// The store assigns identity and ordering at commit time.
	assert.Empty(t, evt.ID)
	assert.Zero(t, evt.Sequence)
}
