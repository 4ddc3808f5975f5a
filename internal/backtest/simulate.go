package backtest

import (
	"math"
	"strconv"
	"time"

	"brain-core/internal/indicators"
	"brain-core/internal/marketdata"
	"brain-core/internal/ruleset"

	"gonum.org/v1/gonum/stat"
)

// position tracks the one open simulated trade, if any.
type position struct {
	open  bool
	side  string
	entry float64
	entryTime time.Time
	exit  ruleset.ExitPrices
}

// Run executes the §4.6 deterministic walk: for each bar after
// warm-up, evaluate entry conditions when flat; while open, check
// exit conditions with gap-aware fills (stop_loss resolved before
// take_profit on a same-bar tie, per §4.6's "conservative" rule).
// candles must be in ascending time order.
func Run(rs *ruleset.Ruleset, candles []marketdata.Candle, warmup int) Result {
	if warmup < 1 {
		warmup = 1
	}
	if len(candles) <= warmup {
		return Result{}
	}

	values := computeIndicatorValues(candles)
	var trades []TradeRecord
	var pos position
	side := entrySide(rs)

	for i := warmup; i < len(candles); i++ {
		bar := candles[i]

		if !pos.open {
			if ruleset.Evaluate(rs.Conditions, values, i) {
				entryPrice := entryPriceFor(rs, bar)
				var atr *float64
				if series, ok := values["atr"]; ok && i < len(series) {
					v := series[i]
					atr = &v
				}
				exitPrices := ruleset.CalculateExitPrices(entryPrice, side, rs.Exit, atr)
				pos = position{open: true, side: side, entry: entryPrice, entryTime: bar.OpenTime, exit: exitPrices}
			}
			continue
		}

		// Exit checks: gap-aware fills, stop before target on a tie.
		exitPrice, reason, hit := resolveExit(pos, bar)
		if !hit && !ruleset.Evaluate(rs.Conditions, values, i) {
			exitPrice, reason, hit = bar.Close, "condition", true
		}
		if hit {
			pnl := realizedPnL(pos.side, pos.entry, exitPrice)
			trades = append(trades, TradeRecord{
				Side:       pos.side,
				EntryPrice: pos.entry,
				EntryTime:  pos.entryTime,
				ExitPrice:  exitPrice,
				ExitTime:   bar.OpenTime,
				ExitReason: reason,
				PnL:        pnl,
			})
			pos = position{}
		}
	}

	// Force-close a still-open position at the last close so every
	// simulation run produces a closed-trade count, rather than
	// silently dropping the tail position.
	if pos.open {
		last := candles[len(candles)-1]
		pnl := realizedPnL(pos.side, pos.entry, last.Close)
		trades = append(trades, TradeRecord{
			Side: pos.side, EntryPrice: pos.entry, EntryTime: pos.entryTime,
			ExitPrice: last.Close, ExitTime: last.OpenTime, ExitReason: "end_of_data", PnL: pnl,
		})
	}

	splitIdx := int(float64(len(trades)) * 0.7)
	train := trades[:splitIdx]
	test := trades[splitIdx:]

	return Result{
		Trades:       trades,
		Metrics:      computeMetrics(trades),
		TrainMetrics: computeMetrics(train),
		TestMetrics:  computeMetrics(test),
		SplitIndex:   splitIdx,
	}
}

func entrySide(rs *ruleset.Ruleset) string {
	// The DSL does not carry an explicit side field; a ruleset whose
	// conditions reference a bearish comparator (RSI overbought,
	// negative relations) still opens long in this design — short
	// rulesets are out of scope per §1's non-goals (no market-maker
	// short inventory logic). Side is always BUY.
	return "BUY"
}

func entryPriceFor(rs *ruleset.Ruleset, bar marketdata.Candle) float64 {
	if rs.Entry == "open" {
		return bar.Open
	}
	return bar.Close
}

// resolveExit applies the gap-aware fill rule: if the bar's low
// breaches stop_loss, fill there; if the high breaches take_profit,
// fill there; on both in the same bar, stop_loss wins (§4.6).
func resolveExit(pos position, bar marketdata.Candle) (price float64, reason string, hit bool) {
	stopHit := pos.exit.StopLoss != nil && bar.Low <= *pos.exit.StopLoss
	targetHit := pos.exit.TakeProfit != nil && bar.High >= *pos.exit.TakeProfit

	if stopHit {
		return *pos.exit.StopLoss, "stop_loss", true
	}
	if targetHit {
		return *pos.exit.TakeProfit, "take_profit", true
	}
	return 0, "", false
}

func realizedPnL(side string, entry, exit float64) float64 {
	if side == "SELL" {
		return entry - exit
	}
	return exit - entry
}

// computeMetrics reduces a trade slice to the §4.6/§8.5 aggregate
// figures: win rate, max drawdown on the trade-pnl equity curve,
// average pnl, and Sharpe as mean/stdev of trade pnl (§9 open
// question resolution), nil when fewer than 2 trades or zero stdev.
func computeMetrics(trades []TradeRecord) Metrics {
	if len(trades) == 0 {
		return Metrics{}
	}

	var wins int
	var totalPnL float64
	pnls := make([]float64, len(trades))
	equity := make([]float64, len(trades)+1)
	for i, t := range trades {
		pnls[i] = t.PnL
		totalPnL += t.PnL
		equity[i+1] = equity[i] + t.PnL
		if t.PnL > 0 {
			wins++
		}
	}

	return Metrics{
		TotalReturn: totalPnL,
		WinRate:     float64(wins) / float64(len(trades)),
		MaxDrawdown: maxDrawdown(equity),
		AveragePnL:  totalPnL / float64(len(trades)),
		TotalTrades: len(trades),
		Sharpe:      sharpe(pnls),
	}
}

// maxDrawdown walks an equity curve (cumulative pnl starting at 0)
// peak-to-trough, mirroring the teacher's CalculateMaxDrawdown shape
// but operating on cumulative pnl rather than raw price levels.
func maxDrawdown(equity []float64) float64 {
	if len(equity) < 2 {
		return 0
	}
	peak := equity[0]
	maxDD := 0.0
	for _, v := range equity {
		if v > peak {
			peak = v
		}
		dd := peak - v
		if dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// sharpe is mean(trade_pnl)/stdev(trade_pnl), undefined when fewer
// than 2 trades or zero stdev (§9 Sharpe open-question resolution).
func sharpe(pnls []float64) *float64 {
	if len(pnls) < 2 {
		return nil
	}
	mean := stat.Mean(pnls, nil)
	sd := stat.StdDev(pnls, nil)
	if sd == 0 {
		return nil
	}
	s := mean / sd
	return &s
}

// computeIndicatorValues precomputes the indicator series a ruleset
// can reference, aligned to candle index (§4.4's "aligned current
// index" contract). Lengths are padded with leading NaN values
// (see pad) so index i always maps to the same bar across all series;
// Evaluate treats a short series as "condition false", never a panic.
// ComputeIndicatorValues exposes the bar-aligned indicator series
// computation for other packages (the Brain Assembler evaluates the
// same ruleset DSL against live candles, not just historical ones).
func ComputeIndicatorValues(candles []marketdata.Candle) ruleset.IndicatorValues {
	return computeIndicatorValues(candles)
}

func computeIndicatorValues(candles []marketdata.Candle) ruleset.IndicatorValues {
	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}

	values := ruleset.IndicatorValues{}
	for _, p := range []int{5, 10, 12, 14, 20, 26, 50, 200} {
		if sma := pad(indicators.SMA(closes, p), len(closes)); sma != nil {
			values[smaKey(p)] = sma
		}
		if ema := pad(indicators.EMA(closes, p), len(closes)); ema != nil {
			values[emaKey(p)] = ema
		}
	}
	if rsi := pad(indicators.RSI(closes, 14), len(closes)); rsi != nil {
		values["rsi"] = rsi
	}
	if atr := pad(indicators.ATR(candles, 14), len(candles)); atr != nil {
		values["atr"] = atr
	}
	values["vwap"] = indicators.VWAP(candles)
	return values
}

func smaKey(p int) string { return keyFor("sma", p) }
func emaKey(p int) string { return keyFor("ema", p) }

func keyFor(prefix string, p int) string {
	return prefix + "_" + strconv.Itoa(p)
}

// pad left-pads a trimmed indicator series back to full length so its
// index aligns with the candle slice. Padded positions are NaN, not
// zero: a zero-value RSI/SMA satisfies `< 30`-style comparators during
// warm-up and opens a spurious trade before the indicator has enough
// history to be meaningful, whereas every IEEE-754 comparison against
// NaN (other than !=, which compare's epsilon check also routes to
// false) evaluates false, so warm-up bars correctly fail every
// condition regardless of its relation.
func pad(series []float64, fullLen int) []float64 {
	if series == nil {
		return nil
	}
	if len(series) == fullLen {
		return series
	}
	out := make([]float64, fullLen)
	offset := fullLen - len(series)
	for i := 0; i < offset; i++ {
		out[i] = math.NaN()
	}
	copy(out[offset:], series)
	return out
}
