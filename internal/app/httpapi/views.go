package httpapi

import (
	curvedomain "github.com/launchlayer/curve_layer/internal/app/domain/curve"
	"github.com/launchlayer/curve_layer/internal/app/domain/token"
	vestingdomain "github.com/launchlayer/curve_layer/internal/app/domain/vesting"
	curvesvc "github.com/launchlayer/curve_layer/internal/app/services/curve"
)

// Views render domain records for JSON responses. Amounts travel as decimal
// strings so clients never lose precision to floats.

func tokenView(t token.Token) map[string]any {
	return map[string]any{
		"id":           t.ID,
		"symbol":       t.Symbol,
		"name":         t.Name,
		"deployer":     t.Deployer,
		"total_supply": t.TotalSupply.String(),
		"metadata":     t.Metadata,
		"created_at":   t.CreatedAt,
	}
}

func curveStateView(st curvedomain.State, p curvedomain.Params) map[string]any {
	return map[string]any{
		"token_id":              st.TokenID,
		"phase":                 string(st.Phase),
		"collateral_invested":   st.CollateralInvested.String(),
		"circulating_supply":    st.CirculatingSupply.String(),
		"collateral_held":       st.CollateralHeld.String(),
		"accrued_fees":          st.AccruedProtocolFees.String(),
		"reserve_tokens":        st.ReserveTokens.String(),
		"liquidity_provisioned": st.LiquidityProvisioned,
		"price":                 curvedomain.Price(st, p).String(),
		"market_cap":            curvedomain.MarketCap(st, p).String(),
		"updated_at":            st.UpdatedAt,
	}
}

func vestingStateView(st vestingdomain.State) map[string]any {
	return map[string]any{
		"token_id":         st.TokenID,
		"deployer":         st.Deployer,
		"vesting_start":    st.VestingStart,
		"duration_seconds": int64(st.Duration.Seconds()),
		"total_allocation": st.TotalAllocation.String(),
		"vested_amount":    st.VestedAmount.String(),
		"milestones":       string(st.Milestones),
		"unvested_burned":  st.UnvestedBurned,
		"updated_at":       st.UpdatedAt,
	}
}

func buyReceiptView(receipt curvesvc.BuyReceipt) map[string]any {
	return map[string]any{
		"token_id":       receipt.TokenID,
		"caller":         receipt.Caller,
		"gross_in":       receipt.GrossIn.String(),
		"net_collateral": receipt.NetCollateral.String(),
		"fee":            receipt.Fee.String(),
		"price":          receipt.Price.String(),
		"tokens_out":     receipt.TokensOut.String(),
		"graduated":      receipt.Graduated,
	}
}
