package db

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// ErrNotFound is returned by single-row lookups that find nothing.
var ErrNotFound = errors.New("db: not found")

// --- User -------------------------------------------------------------

type User struct {
	ID                      string
	Email                   string
	PasswordHash            string
	AuthProvider            string
	Role                    string
	CurrentPlanID           string
	RoyaltyPercentOverride  *float64
	BrokerConnected         bool
	ReferralCode            string
	CreatedAt               time.Time
}

func (d *Database) InsertUser(ctx context.Context, u *User) error {
	_, err := d.DB.ExecContext(ctx, `INSERT INTO users
		(id, email, password_hash, auth_provider, role, current_plan_id, royalty_percent_override, broker_connected, referral_code, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.PasswordHash, u.AuthProvider, u.Role, nullStr(u.CurrentPlanID),
		u.RoyaltyPercentOverride, boolToInt(u.BrokerConnected), nullStr(u.ReferralCode), u.CreatedAt.Format(time.RFC3339))
	return err
}

func (d *Database) GetUserByID(ctx context.Context, id string) (*User, error) {
	row := d.DB.QueryRowContext(ctx, `SELECT id, email, password_hash, auth_provider, role, current_plan_id,
		royalty_percent_override, broker_connected, referral_code, created_at FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func (d *Database) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	row := d.DB.QueryRowContext(ctx, `SELECT id, email, password_hash, auth_provider, role, current_plan_id,
		royalty_percent_override, broker_connected, referral_code, created_at FROM users WHERE email = ?`, email)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*User, error) {
	var u User
	var createdAt string
	var currentPlanID, referralCode sql.NullString
	var brokerConnected int
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.AuthProvider, &u.Role, &currentPlanID,
		&u.RoyaltyPercentOverride, &brokerConnected, &referralCode, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	u.CurrentPlanID = currentPlanID.String
	u.ReferralCode = referralCode.String
	u.BrokerConnected = brokerConnected != 0
	u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &u, nil
}

// UpdateUserRoyaltyOverride sets or clears (pct == nil) an admin's
// per-creator royalty percentage override, per §4.14's admin escape
// hatch from the default royalty.RateFor schedule.
func (d *Database) UpdateUserRoyaltyOverride(ctx context.Context, userID string, pct *float64) error {
	_, err := d.DB.ExecContext(ctx, `UPDATE users SET royalty_percent_override = ? WHERE id = ?`, pct, userID)
	return err
}

// --- SubscriptionPlan ---------------------------------------------------

type SubscriptionPlan struct {
	PlanCode              string
	MonthlyPriceCents     int64
	DefaultRoyaltyPercent float64
	PlatformFeePercent    float64
}

func (d *Database) UpsertPlan(ctx context.Context, p *SubscriptionPlan) error {
	_, err := d.DB.ExecContext(ctx, `INSERT INTO subscription_plans
		(plan_code, monthly_price_cents, default_royalty_percent, platform_fee_percent)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(plan_code) DO UPDATE SET monthly_price_cents=excluded.monthly_price_cents,
		default_royalty_percent=excluded.default_royalty_percent, platform_fee_percent=excluded.platform_fee_percent`,
		p.PlanCode, p.MonthlyPriceCents, p.DefaultRoyaltyPercent, p.PlatformFeePercent)
	return err
}

func (d *Database) GetPlan(ctx context.Context, code string) (*SubscriptionPlan, error) {
	row := d.DB.QueryRowContext(ctx, `SELECT plan_code, monthly_price_cents, default_royalty_percent, platform_fee_percent
		FROM subscription_plans WHERE plan_code = ?`, code)
	var p SubscriptionPlan
	if err := row.Scan(&p.PlanCode, &p.MonthlyPriceCents, &p.DefaultRoyaltyPercent, &p.PlatformFeePercent); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (d *Database) ListPlans(ctx context.Context) ([]*SubscriptionPlan, error) {
	rows, err := d.DB.QueryContext(ctx, `SELECT plan_code, monthly_price_cents, default_royalty_percent, platform_fee_percent FROM subscription_plans`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*SubscriptionPlan
	for rows.Next() {
		var p SubscriptionPlan
		if err := rows.Scan(&p.PlanCode, &p.MonthlyPriceCents, &p.DefaultRoyaltyPercent, &p.PlatformFeePercent); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

// --- Strategy -------------------------------------------------------------

type Strategy struct {
	ID                string
	OwnerID           string
	Name              string
	Parameters        string // opaque JSON
	Ruleset           string // DSL JSON document
	AssetType         string
	Score             float64
	Status            string
	EvolutionAttempts int
	LastBacktestID    string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IsProposable derives the §3 invariant: is_proposable ⇔ status=proposable.
// Threshold checks that feed the status transition live in package evolution;
// by the time a row is Status=="proposable" the thresholds have already
// been verified, so the derivation here is a pure status check.
func (s *Strategy) IsProposable() bool { return s.Status == "proposable" }

func (d *Database) InsertStrategy(ctx context.Context, s *Strategy) error {
	_, err := d.DB.ExecContext(ctx, `INSERT INTO strategies
		(id, owner_id, name, parameters, ruleset, asset_type, score, status, evolution_attempts, last_backtest_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.OwnerID, s.Name, s.Parameters, s.Ruleset, s.AssetType, s.Score, s.Status,
		s.EvolutionAttempts, nullStr(s.LastBacktestID), s.CreatedAt.Format(time.RFC3339), s.UpdatedAt.Format(time.RFC3339))
	return err
}

func (d *Database) GetStrategy(ctx context.Context, id string) (*Strategy, error) {
	row := d.DB.QueryRowContext(ctx, `SELECT id, owner_id, name, parameters, ruleset, asset_type, score, status,
		evolution_attempts, last_backtest_id, created_at, updated_at FROM strategies WHERE id = ?`, id)
	return scanStrategy(row)
}

func scanStrategy(row *sql.Row) (*Strategy, error) {
	var s Strategy
	var createdAt, updatedAt string
	var lastBacktestID sql.NullString
	if err := row.Scan(&s.ID, &s.OwnerID, &s.Name, &s.Parameters, &s.Ruleset, &s.AssetType, &s.Score, &s.Status,
		&s.EvolutionAttempts, &lastBacktestID, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	s.LastBacktestID = lastBacktestID.String
	s.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	s.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &s, nil
}

func (d *Database) ListActiveStrategies(ctx context.Context) ([]*Strategy, error) {
	rows, err := d.DB.QueryContext(ctx, `SELECT id, owner_id, name, parameters, ruleset, asset_type, score, status,
		evolution_attempts, last_backtest_id, created_at, updated_at FROM strategies
		WHERE status IN ('experiment', 'candidate', 'proposable')`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Strategy
	for rows.Next() {
		var s Strategy
		var createdAt, updatedAt string
		var lastBacktestID sql.NullString
		if err := rows.Scan(&s.ID, &s.OwnerID, &s.Name, &s.Parameters, &s.Ruleset, &s.AssetType, &s.Score, &s.Status,
			&s.EvolutionAttempts, &lastBacktestID, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		s.LastBacktestID = lastBacktestID.String
		s.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		s.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		out = append(out, &s)
	}
	return out, rows.Err()
}

func (d *Database) UpdateStrategyStatus(ctx context.Context, id, status string, score float64, attempts int) error {
	_, err := d.DB.ExecContext(ctx, `UPDATE strategies SET status = ?, score = ?, evolution_attempts = ?, updated_at = ?
		WHERE id = ?`, status, score, attempts, time.Now().UTC().Format(time.RFC3339), id)
	return err
}

func (d *Database) SetStrategyLastBacktest(ctx context.Context, strategyID, backtestID string) error {
	_, err := d.DB.ExecContext(ctx, `UPDATE strategies SET last_backtest_id = ?, updated_at = ? WHERE id = ?`,
		backtestID, time.Now().UTC().Format(time.RFC3339), strategyID)
	return err
}

// --- StrategyLineage ------------------------------------------------------

type StrategyLineage struct {
	ID              string
	ParentID        string
	ChildID         string
	MutationType    string
	SimilarityScore *float64
	CreatorUserID   string
	CreatedAt       time.Time
}

func (d *Database) InsertLineage(ctx context.Context, l *StrategyLineage) error {
	_, err := d.DB.ExecContext(ctx, `INSERT INTO strategy_lineage
		(id, parent_id, child_id, mutation_type, similarity_score, creator_user_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.ParentID, l.ChildID, l.MutationType, l.SimilarityScore, nullStr(l.CreatorUserID), l.CreatedAt.Format(time.RFC3339))
	return err
}

// ParentOf returns the lineage row whose child is strategyID, if any.
// A strategy with no parent row is an original ancestor (§4.14 step 1).
func (d *Database) ParentOf(ctx context.Context, strategyID string) (*StrategyLineage, error) {
	row := d.DB.QueryRowContext(ctx, `SELECT id, parent_id, child_id, mutation_type, similarity_score, creator_user_id, created_at
		FROM strategy_lineage WHERE child_id = ? LIMIT 1`, strategyID)
	var l StrategyLineage
	var createdAt string
	var creator sql.NullString
	if err := row.Scan(&l.ID, &l.ParentID, &l.ChildID, &l.MutationType, &l.SimilarityScore, &creator, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	l.CreatorUserID = creator.String
	l.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &l, nil
}

// --- Backtest (immutable after write) --------------------------------------

type Backtest struct {
	ID           string
	StrategyID   string
	Symbol       string
	Timeframe    string
	WindowStart  time.Time
	WindowEnd    time.Time
	TotalReturn  float64
	WinRate      float64
	MaxDrawdown  float64
	AveragePnL   float64
	TotalTrades  int
	Sharpe       *float64
	TrainSharpe  *float64
	TestSharpe   *float64
	CreatedAt    time.Time
}

func (d *Database) InsertBacktest(ctx context.Context, b *Backtest) error {
	_, err := d.DB.ExecContext(ctx, `INSERT INTO backtests
		(id, strategy_id, symbol, timeframe, window_start, window_end, total_return, win_rate, max_drawdown,
		average_pnl, total_trades, sharpe, train_sharpe, test_sharpe, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.StrategyID, b.Symbol, b.Timeframe, b.WindowStart.Format(time.RFC3339), b.WindowEnd.Format(time.RFC3339),
		b.TotalReturn, b.WinRate, b.MaxDrawdown, b.AveragePnL, b.TotalTrades, b.Sharpe, b.TrainSharpe, b.TestSharpe,
		b.CreatedAt.Format(time.RFC3339))
	return err
}

func (d *Database) GetBacktest(ctx context.Context, id string) (*Backtest, error) {
	row := d.DB.QueryRowContext(ctx, `SELECT id, strategy_id, symbol, timeframe, window_start, window_end, total_return,
		win_rate, max_drawdown, average_pnl, total_trades, sharpe, train_sharpe, test_sharpe, created_at
		FROM backtests WHERE id = ?`, id)
	var b Backtest
	var windowStart, windowEnd, createdAt string
	if err := row.Scan(&b.ID, &b.StrategyID, &b.Symbol, &b.Timeframe, &windowStart, &windowEnd, &b.TotalReturn,
		&b.WinRate, &b.MaxDrawdown, &b.AveragePnL, &b.TotalTrades, &b.Sharpe, &b.TrainSharpe, &b.TestSharpe, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	b.WindowStart, _ = time.Parse(time.RFC3339, windowStart)
	b.WindowEnd, _ = time.Parse(time.RFC3339, windowEnd)
	b.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &b, nil
}

// --- Trade ------------------------------------------------------------

type Trade struct {
	ID          string
	UserID      string
	Symbol      string
	AssetType   string
	Side        string
	Quantity    float64
	EntryPrice  float64
	ExitPrice   *float64
	Status      string
	Mode        string
	Source      string
	StrategyID  *string
	OpenedAt    time.Time
	ClosedAt    *time.Time
	RealizedPnL *float64
}

func (d *Database) InsertTrade(ctx context.Context, t *Trade) error {
	_, err := d.DB.ExecContext(ctx, `INSERT INTO trades
		(id, user_id, symbol, asset_type, side, quantity, entry_price, exit_price, status, mode, source,
		strategy_id, opened_at, closed_at, realized_pnl)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.Symbol, t.AssetType, t.Side, t.Quantity, t.EntryPrice, t.ExitPrice, t.Status, t.Mode, t.Source,
		t.StrategyID, t.OpenedAt.Format(time.RFC3339), formatTimePtr(t.ClosedAt), t.RealizedPnL)
	return err
}

func (d *Database) GetTrade(ctx context.Context, id string) (*Trade, error) {
	row := d.DB.QueryRowContext(ctx, `SELECT id, user_id, symbol, asset_type, side, quantity, entry_price, exit_price,
		status, mode, source, strategy_id, opened_at, closed_at, realized_pnl FROM trades WHERE id = ?`, id)
	return scanTrade(row)
}

func scanTrade(row *sql.Row) (*Trade, error) {
	var t Trade
	var openedAt string
	var closedAt sql.NullString
	var strategyID sql.NullString
	if err := row.Scan(&t.ID, &t.UserID, &t.Symbol, &t.AssetType, &t.Side, &t.Quantity, &t.EntryPrice, &t.ExitPrice,
		&t.Status, &t.Mode, &t.Source, &strategyID, &openedAt, &closedAt, &t.RealizedPnL); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if strategyID.Valid {
		t.StrategyID = &strategyID.String
	}
	t.OpenedAt, _ = time.Parse(time.RFC3339, openedAt)
	if closedAt.Valid {
		ts, _ := time.Parse(time.RFC3339, closedAt.String)
		t.ClosedAt = &ts
	}
	return &t, nil
}

// ListOpenTrades finds OPEN trades for (user, symbol) ordered oldest
// first, the lookup used by the paper broker's Close operation (§4.13).
func (d *Database) ListOpenTrades(ctx context.Context, userID, symbol string) ([]*Trade, error) {
	rows, err := d.DB.QueryContext(ctx, `SELECT id, user_id, symbol, asset_type, side, quantity, entry_price, exit_price,
		status, mode, source, strategy_id, opened_at, closed_at, realized_pnl FROM trades
		WHERE user_id = ? AND symbol = ? AND status = 'OPEN' ORDER BY opened_at ASC`, userID, symbol)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Trade
	for rows.Next() {
		var t Trade
		var openedAt string
		var closedAt sql.NullString
		var strategyID sql.NullString
		if err := rows.Scan(&t.ID, &t.UserID, &t.Symbol, &t.AssetType, &t.Side, &t.Quantity, &t.EntryPrice, &t.ExitPrice,
			&t.Status, &t.Mode, &t.Source, &strategyID, &openedAt, &closedAt, &t.RealizedPnL); err != nil {
			return nil, err
		}
		if strategyID.Valid {
			t.StrategyID = &strategyID.String
		}
		t.OpenedAt, _ = time.Parse(time.RFC3339, openedAt)
		if closedAt.Valid {
			ts, _ := time.Parse(time.RFC3339, closedAt.String)
			t.ClosedAt = &ts
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

// CloseTrade writes the exit fields in one statement so the §8 invariant
// ("CLOSED ⇔ exit_price, closed_at, realized_pnl all set") is never
// observable half-applied.
func (d *Database) CloseTrade(ctx context.Context, id string, exitPrice float64, closedAt time.Time, realizedPnL float64) error {
	_, err := d.DB.ExecContext(ctx, `UPDATE trades SET status='CLOSED', exit_price=?, closed_at=?, realized_pnl=? WHERE id=?`,
		exitPrice, closedAt.Format(time.RFC3339), realizedPnL, id)
	return err
}

func (d *Database) ListTradesByUser(ctx context.Context, userID string, status, mode string) ([]*Trade, error) {
	q := `SELECT id, user_id, symbol, asset_type, side, quantity, entry_price, exit_price,
		status, mode, source, strategy_id, opened_at, closed_at, realized_pnl FROM trades WHERE user_id = ?`
	args := []any{userID}
	if status != "" {
		q += " AND status = ?"
		args = append(args, status)
	}
	if mode != "" {
		q += " AND mode = ?"
		args = append(args, mode)
	}
	q += " ORDER BY opened_at DESC"
	rows, err := d.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Trade
	for rows.Next() {
		var t Trade
		var openedAt string
		var closedAt sql.NullString
		var strategyID sql.NullString
		if err := rows.Scan(&t.ID, &t.UserID, &t.Symbol, &t.AssetType, &t.Side, &t.Quantity, &t.EntryPrice, &t.ExitPrice,
			&t.Status, &t.Mode, &t.Source, &strategyID, &openedAt, &closedAt, &t.RealizedPnL); err != nil {
			return nil, err
		}
		if strategyID.Valid {
			t.StrategyID = &strategyID.String
		}
		t.OpenedAt, _ = time.Parse(time.RFC3339, openedAt)
		if closedAt.Valid {
			ts, _ := time.Parse(time.RFC3339, closedAt.String)
			t.ClosedAt = &ts
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

// --- PaperAccount -------------------------------------------------------

type PaperAccount struct {
	UserID          string
	Balance         float64
	StartingBalance float64
}

func (d *Database) EnsurePaperAccount(ctx context.Context, userID string, startingBalance float64) (*PaperAccount, error) {
	row := d.DB.QueryRowContext(ctx, `SELECT user_id, balance, starting_balance FROM paper_accounts WHERE user_id = ?`, userID)
	var a PaperAccount
	if err := row.Scan(&a.UserID, &a.Balance, &a.StartingBalance); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		a = PaperAccount{UserID: userID, Balance: startingBalance, StartingBalance: startingBalance}
		if _, err := d.DB.ExecContext(ctx, `INSERT INTO paper_accounts (user_id, balance, starting_balance) VALUES (?, ?, ?)`,
			a.UserID, a.Balance, a.StartingBalance); err != nil {
			return nil, err
		}
	}
	return &a, nil
}

func (d *Database) SetPaperBalance(ctx context.Context, userID string, balance float64) error {
	_, err := d.DB.ExecContext(ctx, `UPDATE paper_accounts SET balance = ? WHERE user_id = ?`, balance, userID)
	return err
}

// --- RoyaltyLedger ---------------------------------------------------------

type RoyaltyLedger struct {
	ID              string
	UserID          string
	StrategyID      string
	TradeID         string
	RoyaltyAmount   float64
	RoyaltyRate     float64
	PlatformFee     float64
	PlatformFeeRate float64
	NetAmount       float64
	TradeProfit     float64
	Paid            bool
	CreatedAt       time.Time
}

func (d *Database) InsertRoyaltyLedger(ctx context.Context, r *RoyaltyLedger) error {
	_, err := d.DB.ExecContext(ctx, `INSERT INTO royalty_ledger
		(id, user_id, strategy_id, trade_id, royalty_amount, royalty_rate, platform_fee, platform_fee_rate,
		net_amount, trade_profit, paid, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.UserID, r.StrategyID, r.TradeID, r.RoyaltyAmount, r.RoyaltyRate, r.PlatformFee, r.PlatformFeeRate,
		r.NetAmount, r.TradeProfit, boolToInt(r.Paid), r.CreatedAt.Format(time.RFC3339))
	return err
}

func (d *Database) ListUnpaidRoyaltiesForCreator(ctx context.Context, creatorID string) ([]*RoyaltyLedger, error) {
	rows, err := d.DB.QueryContext(ctx, `SELECT id, user_id, strategy_id, trade_id, royalty_amount, royalty_rate,
		platform_fee, platform_fee_rate, net_amount, trade_profit, paid, created_at
		FROM royalty_ledger WHERE user_id = ? AND paid = 0`, creatorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*RoyaltyLedger
	for rows.Next() {
		var r RoyaltyLedger
		var createdAt string
		var paid int
		if err := rows.Scan(&r.ID, &r.UserID, &r.StrategyID, &r.TradeID, &r.RoyaltyAmount, &r.RoyaltyRate,
			&r.PlatformFee, &r.PlatformFeeRate, &r.NetAmount, &r.TradeProfit, &paid, &createdAt); err != nil {
			return nil, err
		}
		r.Paid = paid != 0
		r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, &r)
	}
	return out, rows.Err()
}

func (d *Database) MarkRoyaltiesPaid(ctx context.Context, ids []string) error {
	for _, id := range ids {
		if _, err := d.DB.ExecContext(ctx, `UPDATE royalty_ledger SET paid = 1 WHERE id = ?`, id); err != nil {
			return err
		}
	}
	return nil
}

// --- AdminSettings (singleton) ---------------------------------------------

type AdminSettings struct {
	PlatformFeePercent        float64
	CreatorPlatformFeePercent float64
	PnLFeeThreshold           float64
	GraceMonths               int
}

func (d *Database) GetAdminSettings(ctx context.Context) (*AdminSettings, error) {
	row := d.DB.QueryRowContext(ctx, `SELECT platform_fee_percent, creator_platform_fee_percent, pnl_fee_threshold, grace_months
		FROM admin_settings WHERE id = 1`)
	var s AdminSettings
	if err := row.Scan(&s.PlatformFeePercent, &s.CreatorPlatformFeePercent, &s.PnLFeeThreshold, &s.GraceMonths); err != nil {
		return nil, err
	}
	return &s, nil
}

func (d *Database) UpdateAdminSettings(ctx context.Context, s *AdminSettings) error {
	_, err := d.DB.ExecContext(ctx, `UPDATE admin_settings SET platform_fee_percent=?, creator_platform_fee_percent=?,
		pnl_fee_threshold=?, grace_months=? WHERE id=1`, s.PlatformFeePercent, s.CreatorPlatformFeePercent, s.PnLFeeThreshold, s.GraceMonths)
	return err
}

// --- Group / GroupMember / GroupMessage ------------------------------------

type Group struct {
	ID           string
	OwnerID      string
	Name         string
	JoinCode     string
	MaxSize      int
	ReferralCode string
	CreatedAt    time.Time
}

func (d *Database) InsertGroup(ctx context.Context, g *Group) error {
	_, err := d.DB.ExecContext(ctx, `INSERT INTO groups (id, owner_id, name, join_code, max_size, referral_code, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, g.ID, g.OwnerID, g.Name, g.JoinCode, g.MaxSize, nullStr(g.ReferralCode), g.CreatedAt.Format(time.RFC3339))
	return err
}

func (d *Database) GetGroupByJoinCode(ctx context.Context, code string) (*Group, error) {
	row := d.DB.QueryRowContext(ctx, `SELECT id, owner_id, name, join_code, max_size, referral_code, created_at
		FROM groups WHERE join_code = ?`, code)
	var g Group
	var createdAt string
	var referral sql.NullString
	if err := row.Scan(&g.ID, &g.OwnerID, &g.Name, &g.JoinCode, &g.MaxSize, &referral, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	g.ReferralCode = referral.String
	g.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &g, nil
}

type GroupMember struct {
	ID       string
	GroupID  string
	UserID   string
	JoinedAt time.Time
}

func (d *Database) InsertGroupMember(ctx context.Context, m *GroupMember) error {
	_, err := d.DB.ExecContext(ctx, `INSERT INTO group_members (id, group_id, user_id, joined_at) VALUES (?, ?, ?, ?)`,
		m.ID, m.GroupID, m.UserID, m.JoinedAt.Format(time.RFC3339))
	return err
}

func (d *Database) CountGroupMembers(ctx context.Context, groupID string) (int, error) {
	var n int
	err := d.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM group_members WHERE group_id = ?`, groupID).Scan(&n)
	return n, err
}

type GroupMessage struct {
	ID         string
	GroupID    string
	UserID     string
	Kind       string // TEXT | STRATEGY
	Ciphertext string
	KeyVersion int
	CreatedAt  time.Time
}

func (d *Database) InsertGroupMessage(ctx context.Context, m *GroupMessage) error {
	_, err := d.DB.ExecContext(ctx, `INSERT INTO group_messages (id, group_id, user_id, kind, ciphertext, key_version, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, m.ID, m.GroupID, m.UserID, m.Kind, m.Ciphertext, m.KeyVersion, m.CreatedAt.Format(time.RFC3339))
	return err
}

func (d *Database) ListGroupMessages(ctx context.Context, groupID string, limit int) ([]*GroupMessage, error) {
	rows, err := d.DB.QueryContext(ctx, `SELECT id, group_id, user_id, kind, ciphertext, key_version, created_at
		FROM group_messages WHERE group_id = ? ORDER BY created_at DESC LIMIT ?`, groupID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*GroupMessage
	for rows.Next() {
		var m GroupMessage
		var createdAt string
		if err := rows.Scan(&m.ID, &m.GroupID, &m.UserID, &m.Kind, &m.Ciphertext, &m.KeyVersion, &createdAt); err != nil {
			return nil, err
		}
		m.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, &m)
	}
	return out, rows.Err()
}

func (d *Database) DeleteGroupMessage(ctx context.Context, id string) error {
	_, err := d.DB.ExecContext(ctx, `DELETE FROM group_messages WHERE id = ?`, id)
	return err
}

// --- BillingState -----------------------------------------------------

// BillingState is the monthly grace/lock tracking row for one
// creator, per §4.14's "grace granted to ≥3 consecutive successful
// months" rule.
type BillingState struct {
	UserID                      string
	ConsecutiveSuccessfulMonths int
	DelayedMonths               int
	LockState                   string
}

func (d *Database) GetBillingState(ctx context.Context, userID string) (*BillingState, error) {
	row := d.DB.QueryRowContext(ctx, `SELECT user_id, consecutive_successful_months, delayed_months, lock_state
		FROM billing_states WHERE user_id = ?`, userID)
	var s BillingState
	if err := row.Scan(&s.UserID, &s.ConsecutiveSuccessfulMonths, &s.DelayedMonths, &s.LockState); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &BillingState{UserID: userID, LockState: "none"}, nil
		}
		return nil, err
	}
	return &s, nil
}

func (d *Database) SetBillingState(ctx context.Context, s *BillingState) error {
	_, err := d.DB.ExecContext(ctx, `INSERT INTO billing_states
		(user_id, consecutive_successful_months, delayed_months, lock_state)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET consecutive_successful_months=excluded.consecutive_successful_months,
		delayed_months=excluded.delayed_months, lock_state=excluded.lock_state`,
		s.UserID, s.ConsecutiveSuccessfulMonths, s.DelayedMonths, s.LockState)
	return err
}

// ListCreatorsWithUnpaidRoyalties returns the distinct set of creator
// user IDs that have at least one unpaid royalty_ledger row.
func (d *Database) ListCreatorsWithUnpaidRoyalties(ctx context.Context) ([]string, error) {
	rows, err := d.DB.QueryContext(ctx, `SELECT DISTINCT user_id FROM royalty_ledger WHERE paid = 0`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// --- helpers ----------------------------------------------------------

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339)
}
