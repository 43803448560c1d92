package curve

import "math/big"

// Price returns the scaled spot price for the current ledger: the ratio of
// cumulative net collateral to circulating supply, or the base price while
// the supply is zero. Purely a function of the two ledger fields, never of
// anything external.
func Price(s State, p Params) *big.Int {
	if s.CirculatingSupply.Sign() == 0 {
		return new(big.Int).Set(p.BasePrice)
	}
	price := new(big.Int).Mul(s.CollateralInvested, Scale())
	return price.Quo(price, s.CirculatingSupply)
}

// SplitFee divides a gross amount into the net amount and the protocol fee.
// The fee is integer-truncated basis points of the gross amount. Once the
// curve has graduated the split is the identity: no fee is ever taken again.
func SplitFee(gross *big.Int, s State, p Params) (net, fee *big.Int) {
	if s.Graduated() {
		return new(big.Int).Set(gross), new(big.Int)
	}
	fee = new(big.Int).Mul(gross, big.NewInt(p.FeeBPS))
	fee.Quo(fee, big.NewInt(BPSDenominator))
	net = new(big.Int).Sub(gross, fee)
	return net, fee
}

// TokensOut converts net collateral into token units at the given price,
// floor division.
func TokensOut(netCollateral, price *big.Int) *big.Int {
	out := new(big.Int).Mul(netCollateral, Scale())
	return out.Quo(out, price)
}

// GrossReturn converts token units back into collateral at the given price,
// floor division. The protocol fee is split out of this amount afterwards:
// fee-on-gross for buys, fee-on-net-of-conversion for sells.
func GrossReturn(tokenAmount, price *big.Int) *big.Int {
	out := new(big.Int).Mul(tokenAmount, price)
	return out.Quo(out, Scale())
}

// GraduationBurn returns the token units burned from the engine reserve when
// the curve graduates: BurnPercent of the circulating supply, capped at the
// reserve actually held.
func GraduationBurn(s State, p Params) *big.Int {
	burn := new(big.Int).Mul(s.CirculatingSupply, big.NewInt(p.BurnPercent))
	burn.Quo(burn, big.NewInt(100))
	if burn.Cmp(s.ReserveTokens) > 0 {
		burn.Set(s.ReserveTokens)
	}
	return burn
}

// MarketCap values the circulating supply at the spot price.
func MarketCap(s State, p Params) *big.Int {
	return GrossReturn(s.CirculatingSupply, Price(s, p))
}
