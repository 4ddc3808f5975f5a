package db

import (
	"database/sql"
	"fmt"
)

// schema is applied with CREATE TABLE IF NOT EXISTS so it is safe to run
// on every startup, matching the reference service's migration style.
const schema = `
PRAGMA journal_mode=WAL;

CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	email TEXT UNIQUE NOT NULL,
	password_hash TEXT,
	auth_provider TEXT NOT NULL DEFAULT 'local',
	role TEXT NOT NULL DEFAULT 'user',
	current_plan_id TEXT,
	royalty_percent_override REAL,
	broker_connected INTEGER NOT NULL DEFAULT 0,
	referral_code TEXT,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS subscription_plans (
	plan_code TEXT PRIMARY KEY,
	monthly_price_cents INTEGER NOT NULL,
	default_royalty_percent REAL NOT NULL,
	platform_fee_percent REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS strategies (
	id TEXT PRIMARY KEY,
	owner_id TEXT NOT NULL,
	name TEXT NOT NULL,
	parameters TEXT NOT NULL DEFAULT '{}',
	ruleset TEXT NOT NULL DEFAULT '{}',
	asset_type TEXT NOT NULL DEFAULT 'equity',
	score REAL NOT NULL DEFAULT 0,
	status TEXT NOT NULL DEFAULT 'experiment',
	evolution_attempts INTEGER NOT NULL DEFAULT 0,
	last_backtest_id TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS strategy_lineage (
	id TEXT PRIMARY KEY,
	parent_id TEXT NOT NULL,
	child_id TEXT NOT NULL,
	mutation_type TEXT NOT NULL,
	similarity_score REAL,
	creator_user_id TEXT,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS backtests (
	id TEXT PRIMARY KEY,
	strategy_id TEXT NOT NULL,
	symbol TEXT NOT NULL,
	timeframe TEXT NOT NULL,
	window_start TEXT NOT NULL,
	window_end TEXT NOT NULL,
	total_return REAL NOT NULL,
	win_rate REAL NOT NULL,
	max_drawdown REAL NOT NULL,
	average_pnl REAL NOT NULL,
	total_trades INTEGER NOT NULL,
	sharpe REAL,
	train_sharpe REAL,
	test_sharpe REAL,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS trades (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	symbol TEXT NOT NULL,
	asset_type TEXT NOT NULL DEFAULT 'equity',
	side TEXT NOT NULL,
	quantity REAL NOT NULL,
	entry_price REAL NOT NULL,
	exit_price REAL,
	status TEXT NOT NULL DEFAULT 'OPEN',
	mode TEXT NOT NULL DEFAULT 'PAPER',
	source TEXT NOT NULL DEFAULT 'MANUAL',
	strategy_id TEXT,
	opened_at TEXT NOT NULL,
	closed_at TEXT,
	realized_pnl REAL
);

CREATE TABLE IF NOT EXISTS paper_accounts (
	user_id TEXT PRIMARY KEY,
	balance REAL NOT NULL,
	starting_balance REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS royalty_ledger (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	strategy_id TEXT NOT NULL,
	trade_id TEXT NOT NULL,
	royalty_amount REAL NOT NULL,
	royalty_rate REAL NOT NULL,
	platform_fee REAL NOT NULL,
	platform_fee_rate REAL NOT NULL,
	net_amount REAL NOT NULL,
	trade_profit REAL NOT NULL,
	paid INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS groups (
	id TEXT PRIMARY KEY,
	owner_id TEXT NOT NULL,
	name TEXT NOT NULL,
	join_code TEXT UNIQUE NOT NULL,
	max_size INTEGER NOT NULL DEFAULT 20,
	referral_code TEXT,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS group_members (
	id TEXT PRIMARY KEY,
	group_id TEXT NOT NULL,
	user_id TEXT NOT NULL,
	joined_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS group_messages (
	id TEXT PRIMARY KEY,
	group_id TEXT NOT NULL,
	user_id TEXT NOT NULL,
	kind TEXT NOT NULL DEFAULT 'TEXT',
	ciphertext TEXT NOT NULL,
	key_version INTEGER NOT NULL DEFAULT 1,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS billing_states (
	user_id TEXT PRIMARY KEY,
	consecutive_successful_months INTEGER NOT NULL DEFAULT 0,
	delayed_months INTEGER NOT NULL DEFAULT 0,
	lock_state TEXT NOT NULL DEFAULT 'none'
);

CREATE TABLE IF NOT EXISTS admin_settings (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	platform_fee_percent REAL NOT NULL DEFAULT 5.0,
	creator_platform_fee_percent REAL NOT NULL DEFAULT 3.0,
	pnl_fee_threshold REAL NOT NULL DEFAULT 10.0,
	grace_months INTEGER NOT NULL DEFAULT 3
);
`

// ApplyMigrations creates every table if missing, then seeds the
// admin_settings singleton if absent, matching the reference service's
// ApplyMigrations entry point.
func ApplyMigrations(d *Database) error {
	if _, err := d.DB.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	if err := seedAdminSettings(d.DB); err != nil {
		return fmt.Errorf("seed admin settings: %w", err)
	}
	return nil
}

func seedAdminSettings(db *sql.DB) error {
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM admin_settings WHERE id = 1`).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	_, err := db.Exec(`INSERT INTO admin_settings (id, platform_fee_percent, creator_platform_fee_percent, pnl_fee_threshold, grace_months)
		VALUES (1, 5.0, 3.0, 10.0, 3)`)
	return err
}
