package curve

import "math/big"

// Params are the curve constants fixed at deployment. They apply uniformly to
// every token priced by the engine.
type Params struct {
	// BasePrice is the scaled collateral price per token unit while the
	// circulating supply is zero.
	BasePrice *big.Int

	// FeeBPS is the protocol fee in basis points taken while the curve is
	// active. Fees stop permanently at graduation.
	FeeBPS int64

	// GraduationThreshold is the cumulative net collateral at which the
	// curve graduates.
	GraduationThreshold *big.Int

	// MinBuy is the smallest accepted gross buy.
	MinBuy *big.Int

	// BurnPercent of the circulating supply is burned from the engine
	// reserve at graduation.
	BurnPercent int64

	// ReserveBPS of the fixed total supply is minted to the engine reserve
	// at launch.
	ReserveBPS int64
}

// Scale returns the 1e18 fixed-point factor used by the price formula.
func Scale() *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
}

// DefaultParams returns the deployment defaults: 0.75% fee, 100 ether
// graduation threshold, 10% graduation burn, 20% engine reserve.
func DefaultParams() Params {
	ether := Scale()
	return Params{
		BasePrice:           big.NewInt(100),
		FeeBPS:              75,
		GraduationThreshold: new(big.Int).Mul(big.NewInt(100), ether),
		MinBuy:              new(big.Int).Exp(big.NewInt(10), big.NewInt(14), nil),
		BurnPercent:         10,
		ReserveBPS:          2000,
	}
}
