// Package app wires the full Brain platform: persistence, market data
// routing, the MCN memory store, regime detection, the signal
// assembler, the paper broker, the royalty/billing engine, and the
// background scheduler into one composition root, the way the
// reference service's main.go builds its own dependency graph before
// handing it to internal/api.Server. App owns every long-lived
// dependency explicitly (no package-level singletons except the MCN
// store's own internal mutex) and exposes thin methods the HTTP layer
// calls, each one publishing the matching domain event on the shared
// bus after a successful write.
package app

import (
	"context"
	"fmt"
	"log"

	"brain-core/internal/billing"
	"brain-core/internal/brain"
	"brain-core/internal/config"
	"brain-core/internal/confirm"
	"brain-core/internal/crypto"
	"brain-core/internal/db"
	"brain-core/internal/evolution"
	"brain-core/internal/events"
	"brain-core/internal/marketdata"
	"brain-core/internal/marketdata/adapters"
	"brain-core/internal/mcn"
	"brain-core/internal/otpauth"
	"brain-core/internal/paperbroker"
	"brain-core/internal/regime"
	"brain-core/internal/royalty"
	"brain-core/internal/scheduler"

	"github.com/google/uuid"
)

// App is the process-wide composition root.
type App struct {
	Config *config.Config
	DB     *db.Database
	Bus    *events.Bus

	Router    *marketdata.Router
	Memory    *mcn.Store
	Regime    *regime.Detector
	Assembler *brain.Assembler
	Broker    *paperbroker.Broker
	OTP       *otpauth.Manager
	KeyMgr    *crypto.KeyManager

	Evolution *evolution.Worker
	Billing   *royalty.BillingCycle
	Scheduler *scheduler.Scheduler
}

// New wires every component from cfg and an already-open database.
// Construction order matters: the MCN store loads its snapshot before
// the regime detector is built so cold-start blending has whatever
// history survived the last shutdown.
func New(cfg *config.Config, database *db.Database) (*App, error) {
	bus := events.NewBus()

	router := buildRouter(cfg)

	memory := mcn.NewStore()
	if err := memory.LoadState(cfg.MCNSnapshotPath); err != nil {
		log.Printf("app: mcn snapshot load: %v", err)
	}

	regimeDetector := regime.NewDetector(router, memory)
	assembler := brain.NewAssembler(database, router, regimeDetector)
	broker := paperbroker.NewBroker(database, router)

	keyMgr, err := crypto.NewKeyManager()
	if err != nil {
		return nil, fmt.Errorf("app: key manager: %w", err)
	}

	var provider royalty.PaymentProvider
	if cfg.StripeSecretKey != "" {
		provider = billing.NewStripeProvider(cfg.StripeSecretKey, cfg.StripeWebhookSecret)
	} else {
		provider = &billing.SandboxProvider{FailAboveCents: 0}
	}

	a := &App{
		Config:    cfg,
		DB:        database,
		Bus:       bus,
		Router:    router,
		Memory:    memory,
		Regime:    regimeDetector,
		Assembler: assembler,
		Broker:    broker,
		OTP:       otpauth.NewManager(),
		KeyMgr:    keyMgr,
		Evolution: evolution.NewWorker(database, router, evolution.DefaultThresholds()),
		Billing:   royalty.NewBillingCycle(database, provider),
	}
	return a, nil
}

// buildRouter assembles the §4.1-4.3 provider hierarchy from cfg.
// The mock provider always backs the live-secondary and last-resort
// slots; Binance backs the historical-primary and live-primary slots
// when the configured live-primary provider name is "binance",
// otherwise the mock backs those too.
func buildRouter(cfg *config.Config) *marketdata.Router {
	mock := adapters.NewMock(1, 100)

	var live marketdata.Provider = mock
	if cfg.ProviderLivePrimary == "binance" {
		live = adapters.NewBinance(cfg.BinanceTestnet)
	}

	cache := marketdata.NewCache(2000, cfg.CacheDir, nil, cfg.CacheS3Bucket)
	return &marketdata.Router{
		HistoricalPrimary: live,
		LivePrimary:       live,
		LiveSecondary:     mock,
		LastResort:        mock,
		Queue:             marketdata.NewQueue(cache, 1200),
	}
}

// StartBackground registers the evolution worker and billing cycle on
// a cron scheduler and starts it. Call Shutdown to stop the scheduler
// and persist the MCN snapshot.
func (a *App) StartBackground() error {
	a.Scheduler = scheduler.New()
	intervalHours := a.Config.EvolutionWorkerIntervalHours
	if intervalHours <= 0 {
		intervalHours = 6
	}
	if err := a.Scheduler.AddJob(fmt.Sprintf("0 */%d * * *", intervalHours), a.Evolution); err != nil {
		return fmt.Errorf("app: schedule evolution worker: %w", err)
	}
	if err := a.Scheduler.AddJob("0 3 1 * *", a.Billing); err != nil {
		return fmt.Errorf("app: schedule billing cycle: %w", err)
	}
	a.Scheduler.Start()
	return nil
}

// Shutdown persists the MCN snapshot and stops the scheduler, the
// reverse of the order New/StartBackground bring components up in.
func (a *App) Shutdown() {
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}
	if err := a.Memory.SaveState(a.Config.MCNSnapshotPath); err != nil {
		log.Printf("app: mcn snapshot save: %v", err)
	}
}

// GetSignal runs the Brain pipeline and publishes signal.emitted.
func (a *App) GetSignal(ctx context.Context, strategyID, userID, symbol string) (*brain.Signal, error) {
	sig, err := a.Assembler.Signal(ctx, strategyID, userID, symbol)
	if err != nil {
		return nil, err
	}
	a.Bus.Publish(events.EventSignalEmitted, sig)
	if sig.Refused && sig.RefusalCode == "portfolio-risk" {
		a.Bus.Publish(events.EventRiskAlert, fmt.Sprintf("signal refused for %s: portfolio risk limit", symbol))
	}
	return sig, nil
}

// OpenPaperTrade opens a position and publishes trade.opened.
func (a *App) OpenPaperTrade(ctx context.Context, userID, symbol, assetType, side string, qty float64, strategyID *string, source string) (*db.Trade, error) {
	trade, err := a.Broker.Open(ctx, userID, symbol, assetType, side, qty, strategyID, source)
	if err != nil {
		return nil, err
	}
	a.Bus.Publish(events.EventTradeOpened, trade)
	return trade, nil
}

// ClosePaperTrade closes every open position the user holds in symbol,
// publishing trade.closed for each and recording royalties for any
// strategy-attributed, profitable closes (§4.14 step 1 trigger).
func (a *App) ClosePaperTrade(ctx context.Context, userID, symbol string) ([]*db.Trade, error) {
	trades, err := a.Broker.Close(ctx, userID, symbol)
	if err != nil {
		return nil, err
	}
	for _, t := range trades {
		a.Bus.Publish(events.EventTradeClosed, t)
		ledger, err := royalty.RecordForTrade(ctx, a.DB, t, uuid.NewString)
		if err != nil {
			log.Printf("app: royalty record failed trade=%s: %v", t.ID, err)
			continue
		}
		if ledger != nil {
			a.Bus.Publish(events.EventRoyaltyRecorded, ledger)
		}
	}
	return trades, nil
}

// DetectRegime runs the regime detector and publishes regime.changed
// on every call, whether or not the label differs from the previous
// one; de-duplication is left to subscribers that care about
// transitions.
func (a *App) DetectRegime(ctx context.Context, symbol string) regime.Result {
	r := a.Regime.Detect(ctx, symbol)
	a.Bus.Publish(events.EventRegimeChanged, r)
	return r
}

// ConfirmTrade runs the C11 confirmation battery ahead of a manual
// (non-Brain) trade request.
func (a *App) ConfirmTrade(ctx context.Context, userID, symbol string, proposedNotional, leverage float64, correlatedCount int) (confirm.PortfolioRiskDecision, error) {
	openTrades, err := a.DB.ListTradesByUser(ctx, userID, "OPEN", "")
	if err != nil {
		return confirm.PortfolioRiskDecision{}, err
	}
	account, err := a.DB.EnsurePaperAccount(ctx, userID, a.Config.PaperStartingBalance)
	if err != nil {
		return confirm.PortfolioRiskDecision{}, err
	}
	decision := confirm.PortfolioRisk(confirm.DefaultPortfolioRiskConfig(), openTrades, map[string]string{symbol: ""},
		symbol, proposedNotional, account.Balance, leverage, correlatedCount)
	return decision, nil
}

// RunBillingCycleNow triggers an out-of-schedule billing run, used by
// the admin API surface for manual recovery.
func (a *App) RunBillingCycleNow() error {
	return a.Scheduler.RunNow(a.Billing)
}
