// Package paperbroker implements §4.13: simulated orders filled
// against live prices and settled against a per-user PaperAccount
// ledger row. The per-user mutex registry and the debit/credit/settle
// operation shape are grounded on the reference service's
// internal/balance.Manager (Lock/Unlock/Deduct/Add guarding one
// cached balance), generalized here from one exchange account to
// one row per platform user.
package paperbroker

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"brain-core/internal/db"
	"brain-core/internal/marketdata"

	"github.com/google/uuid"
)

const DefaultStartingBalance = 100000.0

// Broker fills and closes simulated orders. One sync.Mutex per user
// ID serializes that user's PaperAccount/Trade mutations, mirroring
// balance.Manager's single guarded cache but scoped per account
// rather than per exchange connection.
type Broker struct {
	DB     *db.Database
	Router *marketdata.Router

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewBroker(database *db.Database, router *marketdata.Router) *Broker {
	return &Broker{DB: database, Router: router, locks: make(map[string]*sync.Mutex)}
}

func (b *Broker) lockFor(userID string) *sync.Mutex {
	b.mu.Lock()
	defer b.mu.Unlock()
	l, ok := b.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		b.locks[userID] = l
	}
	return l
}

func newID() string { return uuid.NewString() }

// Open fills a market order at the current price (C3), debiting the
// account on BUY or crediting it on SELL (short proceeds), then
// records an OPEN Trade row (§4.13).
func (b *Broker) Open(ctx context.Context, userID, symbol, assetType, side string, quantity float64, strategyID *string, source string) (*db.Trade, error) {
	lock := b.lockFor(userID)
	lock.Lock()
	defer lock.Unlock()

	price, err := b.Router.GetPrice(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("paperbroker: fetch price: %w", err)
	}

	account, err := b.DB.EnsurePaperAccount(ctx, userID, DefaultStartingBalance)
	if err != nil {
		return nil, err
	}

	notional := price.Snapshot.Price * quantity
	switch side {
	case "BUY":
		if notional > account.Balance {
			return nil, fmt.Errorf("paperbroker: insufficient balance: need %.2f, have %.2f", notional, account.Balance)
		}
		if err := b.DB.SetPaperBalance(ctx, userID, account.Balance-notional); err != nil {
			return nil, err
		}
	case "SELL":
		if err := b.DB.SetPaperBalance(ctx, userID, account.Balance+notional); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("paperbroker: unknown side %q", side)
	}

	trade := &db.Trade{
		ID:         newID(),
		UserID:     userID,
		Symbol:     symbol,
		AssetType:  assetType,
		Side:       side,
		Quantity:   quantity,
		EntryPrice: price.Snapshot.Price,
		Status:     "OPEN",
		Mode:       "PAPER",
		Source:     source,
		StrategyID: strategyID,
		OpenedAt:   time.Now().UTC(),
	}
	if err := b.DB.InsertTrade(ctx, trade); err != nil {
		return nil, err
	}
	log.Printf("paperbroker: opened %s %s x%.4f @ %.2f for user %s", side, symbol, quantity, price.Snapshot.Price, userID)
	return trade, nil
}

// Close fills every OPEN trade for (user, symbol) at the current
// price, realizing pnl and crediting/debiting the account balance
// (§4.13). Partial closes collapse to a full close of each matching
// trade plus an optional new entry for the remainder, resolved by
// the caller issuing a separate Open call for any remainder —
// Close itself always fully closes what it matches, which keeps its
// own behavior deterministic regardless of how callers choose to
// re-enter a partial remainder.
func (b *Broker) Close(ctx context.Context, userID, symbol string) ([]*db.Trade, error) {
	lock := b.lockFor(userID)
	lock.Lock()
	defer lock.Unlock()

	open, err := b.DB.ListOpenTrades(ctx, userID, symbol)
	if err != nil {
		return nil, err
	}
	if len(open) == 0 {
		return nil, nil
	}

	price, err := b.Router.GetPrice(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("paperbroker: fetch price: %w", err)
	}

	account, err := b.DB.EnsurePaperAccount(ctx, userID, DefaultStartingBalance)
	if err != nil {
		return nil, err
	}
	balance := account.Balance

	now := time.Now().UTC()
	closed := make([]*db.Trade, 0, len(open))
	for _, t := range open {
		pnl := realizedPnL(t.Side, t.EntryPrice, price.Snapshot.Price, t.Quantity)
		if err := b.DB.CloseTrade(ctx, t.ID, price.Snapshot.Price, now, pnl); err != nil {
			return nil, err
		}
		balance += settlementDelta(t.Side, price.Snapshot.Price, t.Quantity, pnl)
		t.ExitPrice = &price.Snapshot.Price
		t.ClosedAt = &now
		t.RealizedPnL = &pnl
		t.Status = "CLOSED"
		closed = append(closed, t)
	}

	if err := b.DB.SetPaperBalance(ctx, userID, balance); err != nil {
		return nil, err
	}
	log.Printf("paperbroker: closed %d trade(s) for %s/%s @ %.2f", len(closed), userID, symbol, price.Snapshot.Price)
	return closed, nil
}

// realizedPnL is (exit − entry) × qty for BUY, sign-flipped for SELL
// (short), per §4.13's literal formula.
func realizedPnL(side string, entry, exit, qty float64) float64 {
	if side == "SELL" {
		return (entry - exit) * qty
	}
	return (exit - entry) * qty
}

// settlementDelta returns the balance change on close. A BUY
// (long) position is sold back at the exit price, crediting its
// current notional; combined with the entry debit taken on Open,
// the net effect across the round trip equals realized_pnl. A SELL
// (short) position is covered by buying back at the exit price,
// debiting its notional; combined with the short-sale proceeds
// credited on Open, the net effect likewise equals realized_pnl —
// matching §3's PaperAccount invariant.
func settlementDelta(side string, exit, qty, pnl float64) float64 {
	if side == "SELL" {
		return -exit * qty
	}
	return exit * qty
}
