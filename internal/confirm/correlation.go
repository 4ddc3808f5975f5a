package confirm

import (
	"brain-core/internal/marketdata"

	"gonum.org/v1/gonum/stat"
)

// CorrelatedSymbolCount counts how many of the user's other open
// symbols move with candidate above threshold, feeding
// PortfolioRisk's correlated-position-count check (§4.11).
func CorrelatedSymbolCount(candidate []marketdata.Candle, others map[string][]marketdata.Candle, threshold float64) int {
	candReturns := returnsOf(candidate)
	if len(candReturns) < 2 {
		return 0
	}
	count := 0
	for _, series := range others {
		otherReturns := returnsOf(series)
		n := len(candReturns)
		if len(otherReturns) < n {
			n = len(otherReturns)
		}
		if n < 2 {
			continue
		}
		corr := stat.Correlation(candReturns[len(candReturns)-n:], otherReturns[len(otherReturns)-n:], nil)
		if corr >= threshold {
			count++
		}
	}
	return count
}

func returnsOf(candles []marketdata.Candle) []float64 {
	if len(candles) < 2 {
		return nil
	}
	out := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		if candles[i-1].Close == 0 {
			continue
		}
		out = append(out, (candles[i].Close-candles[i-1].Close)/candles[i-1].Close)
	}
	return out
}
