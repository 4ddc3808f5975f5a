// Package indicators computes the pure technical indicators of §4.4:
// SMA, EMA, RSI, MACD, Bollinger Bands, and ATR via go-talib, plus a
// hand-rolled VWAP (talib has no VWAP function).
package indicators

import (
	"brain-core/internal/marketdata"

	"github.com/markcheno/go-talib"
)

// SMA returns the simple moving average of period n. Output length
// equals len(values) - n + 1; SMA(period=1) equals the input (§8.5).
func SMA(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nil
	}
	full := talib.Sma(values, period)
	return trimLeadingNaN(full, period-1)
}

// EMA returns the exponential moving average of period n. Output length
// equals len(values) - n + 1 (§8.5).
func EMA(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nil
	}
	full := talib.Ema(values, period, talib.EMA)
	return trimLeadingNaN(full, period-1)
}

// RSI returns the relative strength index over period n.
func RSI(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period+1 {
		return nil
	}
	full := talib.Rsi(values, period)
	return trimLeadingNaN(full, period)
}

// MACD returns (macd, signal, histogram) for the standard 12/26/9 periods.
func MACD(values []float64, fast, slow, signal int) (macd, signalLine, hist []float64) {
	if len(values) < slow+signal {
		return nil, nil, nil
	}
	return talib.Macd(values, fast, slow, signal)
}

// BollingerBands returns (upper, middle, lower) bands for period n and
// the given standard-deviation multiplier.
func BollingerBands(values []float64, period int, stdDevUp, stdDevDown float64) (upper, middle, lower []float64) {
	if len(values) < period {
		return nil, nil, nil
	}
	return talib.BBands(values, period, stdDevUp, stdDevDown, talib.SMA)
}

// ATR computes the average true range over period n from candle data.
func ATR(candles []marketdata.Candle, period int) []float64 {
	if len(candles) < period+1 {
		return nil
	}
	highs, lows, closes := split(candles)
	full := talib.Atr(highs, lows, closes, period)
	return trimLeadingNaN(full, period)
}

// VWAP computes the cumulative volume-weighted average price across
// candles, reset at the start of the supplied slice (typically one
// trading session). go-talib has no VWAP implementation.
func VWAP(candles []marketdata.Candle) []float64 {
	if len(candles) == 0 {
		return nil
	}
	out := make([]float64, len(candles))
	var cumPV, cumVol float64
	for i, c := range candles {
		typical := (c.High + c.Low + c.Close) / 3
		cumPV += typical * c.Volume
		cumVol += c.Volume
		if cumVol == 0 {
			out[i] = typical
			continue
		}
		out[i] = cumPV / cumVol
	}
	return out
}

func split(candles []marketdata.Candle) (highs, lows, closes []float64) {
	highs = make([]float64, len(candles))
	lows = make([]float64, len(candles))
	closes = make([]float64, len(candles))
	for i, c := range candles {
		highs[i] = c.High
		lows[i] = c.Low
		closes[i] = c.Close
	}
	return
}

// trimLeadingNaN drops the first n warm-up samples that talib fills
// with NaN, so callers see exactly the documented output length.
func trimLeadingNaN(values []float64, n int) []float64 {
	if n >= len(values) {
		return nil
	}
	return values[n:]
}
