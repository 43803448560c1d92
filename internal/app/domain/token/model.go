package token

import (
	"math/big"
	"time"
)

// Token represents an issued launch token. TotalSupply is fixed at issuance
// and shared by the curve and vesting ledgers as their supply constant.
type Token struct {
	ID          string
	Symbol      string
	Name        string
	Deployer    string
	TotalSupply *big.Int
	Metadata    map[string]string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
