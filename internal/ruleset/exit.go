package ruleset

// ExitPrices holds the resolved stop-loss and take-profit prices for an
// open position. A nil field means that side was not specified.
type ExitPrices struct {
	StopLoss   *float64
	TakeProfit *float64
}

// CalculateExitPrices resolves stop/target from entryPrice, side
// ("BUY"/"SELL"), and the ruleset's exit spec, preferring ATR-based
// levels over percent-based ones, with fixed levels always overriding
// both — the same precedence as the original's calculate_exit_prices.
func CalculateExitPrices(entryPrice float64, side string, exit ExitSpec, atr *float64) ExitPrices {
	var stop, target *float64

	if atr != nil && *atr > 0 {
		if exit.TakeProfitATR != nil {
			v := applyATR(entryPrice, *atr, *exit.TakeProfitATR, side, true)
			target = &v
		}
		if exit.StopLossATR != nil {
			v := applyATR(entryPrice, *atr, *exit.StopLossATR, side, false)
			stop = &v
		}
	}

	if exit.TakeProfitPct != nil && target == nil {
		v := applyPct(entryPrice, *exit.TakeProfitPct, side, true)
		target = &v
	}
	if exit.StopLossPct != nil && stop == nil {
		v := applyPct(entryPrice, *exit.StopLossPct, side, false)
		stop = &v
	}

	if exit.TakeProfitFixed != nil {
		v := *exit.TakeProfitFixed
		target = &v
	}
	if exit.StopLossFixed != nil {
		v := *exit.StopLossFixed
		stop = &v
	}

	return ExitPrices{StopLoss: stop, TakeProfit: target}
}

func applyATR(entry, atr, multiplier float64, side string, isTarget bool) float64 {
	delta := atr * multiplier
	buy := side == "BUY"
	if isTarget {
		if buy {
			return entry + delta
		}
		return entry - delta
	}
	if buy {
		return entry - delta
	}
	return entry + delta
}

func applyPct(entry, pct float64, side string, isTarget bool) float64 {
	buy := side == "BUY"
	if isTarget {
		if buy {
			return entry * (1 + pct)
		}
		return entry * (1 - pct)
	}
	if buy {
		return entry * (1 - pct)
	}
	return entry * (1 + pct)
}
