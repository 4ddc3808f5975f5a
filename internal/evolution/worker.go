// Package evolution implements the §4.8 periodic cycle: backtest
// stale strategies, promote/discard by threshold, and spawn mutations
// from promoted parents.
package evolution

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"brain-core/internal/backtest"
	"brain-core/internal/db"
	"brain-core/internal/marketdata"
	"brain-core/internal/mutation"
	"brain-core/internal/ruleset"

	"github.com/google/uuid"
)

func newID() string  { return uuid.NewString() }
func now() time.Time { return time.Now().UTC() }

// Thresholds bundles the promotion rubric of §4.8, kept configurable
// rather than hard-coded so admin settings or tests can tune them.
type Thresholds struct {
	MinTrades           int
	WinRateThreshold    float64
	SharpeThreshold     float64
	OverfitRatio        float64 // test/train Sharpe ratio floor
	MaxEvolutionAttempts int
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		MinTrades:            20,
		WinRateThreshold:     0.55,
		SharpeThreshold:      1.0,
		OverfitRatio:         0.7,
		MaxEvolutionAttempts: 10,
	}
}

// Worker runs one evolution cycle per invocation (§4.8). Concurrent
// cycles are prevented per strategy by a named in-process lock
// (locks []); a distributed backend would replace this map with a
// queue-held lease per §5, but a single-process deployment needs
// nothing more.
type Worker struct {
	DB         *db.Database
	Router     *marketdata.Router
	Thresholds Thresholds

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewWorker(database *db.Database, router *marketdata.Router, thresholds Thresholds) *Worker {
	return &Worker{DB: database, Router: router, Thresholds: thresholds, locks: make(map[string]*sync.Mutex)}
}

func (w *Worker) Name() string { return "evolution_worker" }

func (w *Worker) lockFor(strategyID string) *sync.Mutex {
	w.mu.Lock()
	defer w.mu.Unlock()
	l, ok := w.locks[strategyID]
	if !ok {
		l = &sync.Mutex{}
		w.locks[strategyID] = l
	}
	return l
}

// Run executes one cycle: backtest stale/never-backtested active
// strategies, apply promotion thresholds, and mutate newly promoted
// parents. Run never returns an error that would crash a long-running
// scheduler — it logs and continues, matching §7's "workers keep
// progressing" propagation policy.
func (w *Worker) Run() error {
	ctx := context.Background()
	strategies, err := w.DB.ListActiveStrategies(ctx)
	if err != nil {
		return fmt.Errorf("evolution: list strategies: %w", err)
	}

	for _, s := range strategies {
		w.cycleOne(ctx, s)
	}
	return nil
}

func (w *Worker) cycleOne(ctx context.Context, s *db.Strategy) {
	lock := w.lockFor(s.ID)
	if !lock.TryLock() {
		return // a concurrent cycle already owns this strategy
	}
	defer lock.Unlock()

	rs, err := ruleset.Parse(json.RawMessage(s.Ruleset))
	if err != nil {
		log.Printf("evolution: strategy %s: bad ruleset: %v", s.ID, err)
		return
	}

	candles := w.Router.GetCandlesOrEmpty(ctx, "BTCUSDT", rs.Timeframe, 500, marketdata.IntentHistorical)
	if len(candles) == 0 {
		return
	}

	result := backtest.Run(rs, candles, 30)
	if result.Metrics.TotalTrades == 0 {
		return
	}

	bt := &db.Backtest{
		ID:          newID(),
		StrategyID:  s.ID,
		Symbol:      "BTCUSDT",
		Timeframe:   rs.Timeframe,
		WindowStart: candles[0].OpenTime,
		WindowEnd:   candles[len(candles)-1].OpenTime,
		TotalReturn: result.Metrics.TotalReturn,
		WinRate:     result.Metrics.WinRate,
		MaxDrawdown: result.Metrics.MaxDrawdown,
		AveragePnL:  result.Metrics.AveragePnL,
		TotalTrades: result.Metrics.TotalTrades,
		Sharpe:      result.Metrics.Sharpe,
		TrainSharpe: result.TrainMetrics.Sharpe,
		TestSharpe:  result.TestMetrics.Sharpe,
		CreatedAt:   now(),
	}
	if err := w.DB.InsertBacktest(ctx, bt); err != nil {
		log.Printf("evolution: strategy %s: insert backtest: %v", s.ID, err)
		return
	}
	_ = w.DB.SetStrategyLastBacktest(ctx, s.ID, bt.ID)

	newStatus, attempts := w.nextStatus(s, bt)
	if err := w.DB.UpdateStrategyStatus(ctx, s.ID, newStatus, scoreFor(bt), attempts); err != nil {
		log.Printf("evolution: strategy %s: update status: %v", s.ID, err)
		return
	}

	if newStatus == "proposable" && s.Status != "proposable" {
		w.spawnMutations(ctx, s)
	}
}

// nextStatus applies §4.8's threshold ladder. Per §8 invariant 10, a
// strategy already proposable never regresses to experiment within a
// cycle — only forward promotion or discard-by-attempt-cap apply.
func (w *Worker) nextStatus(s *db.Strategy, bt *db.Backtest) (string, int) {
	attempts := s.EvolutionAttempts + 1
	t := w.Thresholds

	if attempts > t.MaxEvolutionAttempts && s.Status != "proposable" {
		return "discarded", attempts
	}

	switch s.Status {
	case "experiment":
		if bt.TotalTrades >= t.MinTrades && bt.AveragePnL > 0 {
			return "candidate", attempts
		}
		return s.Status, attempts
	case "candidate":
		if bt.WinRate >= t.WinRateThreshold && bt.Sharpe != nil && *bt.Sharpe > t.SharpeThreshold && !overfit(bt, t.OverfitRatio) {
			return "proposable", attempts
		}
		return s.Status, attempts
	case "proposable":
		return s.Status, attempts
	default:
		return s.Status, attempts
	}
}

func overfit(bt *db.Backtest, ratioFloor float64) bool {
	if bt.TrainSharpe == nil || bt.TestSharpe == nil || *bt.TrainSharpe == 0 {
		return false
	}
	return (*bt.TestSharpe / *bt.TrainSharpe) < ratioFloor
}

func scoreFor(bt *db.Backtest) float64 {
	score := bt.WinRate
	if bt.Sharpe != nil {
		score = 0.5*bt.WinRate + 0.5*clamp01((*bt.Sharpe+1)/3)
	}
	return clamp01(score)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// spawnMutations produces C7 children from a newly promoted parent
// and records their lineage rows, starting the children in experiment.
func (w *Worker) spawnMutations(ctx context.Context, parent *db.Strategy) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	children, err := mutation.Mutate(json.RawMessage(parent.Ruleset), 2, rng)
	if err != nil {
		log.Printf("evolution: strategy %s: mutate: %v", parent.ID, err)
		return
	}
	for _, c := range children {
		child := &db.Strategy{
			ID:         newID(),
			OwnerID:    parent.OwnerID,
			Name:       parent.Name + " (mutated)",
			Parameters: parent.Parameters,
			Ruleset:    string(c.Ruleset),
			AssetType:  parent.AssetType,
			Status:     "experiment",
			CreatedAt:  now(),
			UpdatedAt:  now(),
		}
		if err := w.DB.InsertStrategy(ctx, child); err != nil {
			log.Printf("evolution: strategy %s: insert child: %v", parent.ID, err)
			continue
		}
		sim := c.Similarity
		if err := w.DB.InsertLineage(ctx, &db.StrategyLineage{
			ID: newID(), ParentID: parent.ID, ChildID: child.ID,
			MutationType: string(c.Kind), SimilarityScore: &sim, CreatorUserID: parent.OwnerID, CreatedAt: now(),
		}); err != nil {
			log.Printf("evolution: strategy %s: insert lineage: %v", parent.ID, err)
		}
	}
}
