package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the Clawback store (PostgreSQL).
var Migrations = migrate.NewGroup("clawback")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_clawback_ledgers",
			Version: "20240101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS clawback_ledgers (
    creator_id      TEXT PRIMARY KEY,
    balance         BIGINT NOT NULL DEFAULT 0,
    daily_limit     BIGINT NOT NULL DEFAULT 0,
    currency        TEXT NOT NULL DEFAULT 'usd',
    refunds_enabled BOOLEAN NOT NULL DEFAULT FALSE,
    wallet_provider TEXT NOT NULL DEFAULT '',
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CHECK (balance >= 0)
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS clawback_ledgers`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_clawback_daily_spend",
			Version: "20240101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS clawback_daily_spend (
    creator_id TEXT NOT NULL,
    day        TEXT NOT NULL,
    total      BIGINT NOT NULL DEFAULT 0,
    currency   TEXT NOT NULL DEFAULT 'usd',
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (creator_id, day)
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS clawback_daily_spend`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_clawback_deposits",
			Version: "20240101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS clawback_deposits (
    id              TEXT PRIMARY KEY,
    creator_id      TEXT NOT NULL DEFAULT '',
    amount          BIGINT NOT NULL DEFAULT 0,
    currency        TEXT NOT NULL DEFAULT 'usd',
    external_tx_ref TEXT NOT NULL,
    status          TEXT NOT NULL DEFAULT 'confirmed',
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_clawback_deposits_tx_ref ON clawback_deposits (external_tx_ref);
CREATE INDEX IF NOT EXISTS idx_clawback_deposits_creator ON clawback_deposits (creator_id, created_at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS clawback_deposits`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_clawback_refunds",
			Version: "20240101000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS clawback_refunds (
    id              TEXT PRIMARY KEY,
    creator_id      TEXT NOT NULL DEFAULT '',
    buyer_address   TEXT NOT NULL DEFAULT '',
    original_tx_ref TEXT NOT NULL DEFAULT '',
    kind            TEXT NOT NULL DEFAULT '',
    post_id         TEXT NOT NULL DEFAULT '',
    chain_id        TEXT NOT NULL DEFAULT '',
    original_amount BIGINT NOT NULL DEFAULT 0,
    fee_amount      BIGINT NOT NULL DEFAULT 0,
    refund_amount   BIGINT NOT NULL DEFAULT 0,
    currency        TEXT NOT NULL DEFAULT 'usd',
    status          TEXT NOT NULL DEFAULT 'processing',
    reason          TEXT NOT NULL DEFAULT '',
    payout_backend  TEXT NOT NULL DEFAULT '',
    payout_tx_ref   TEXT NOT NULL DEFAULT '',
    needs_reconcile BOOLEAN NOT NULL DEFAULT FALSE,
    completed_at    TIMESTAMPTZ,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_clawback_refunds_creator ON clawback_refunds (creator_id, created_at);
CREATE INDEX IF NOT EXISTS idx_clawback_refunds_orig_ref ON clawback_refunds (original_tx_ref, status);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS clawback_refunds`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_clawback_grants",
			Version: "20240101000005",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS clawback_grants (
    id           TEXT NOT NULL DEFAULT '',
    kind         TEXT NOT NULL,
    subject_id   TEXT NOT NULL,
    buyer        TEXT NOT NULL,
    active_until TIMESTAMPTZ,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (kind, subject_id, buyer)
);

CREATE INDEX IF NOT EXISTS idx_clawback_grants_buyer ON clawback_grants (buyer);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS clawback_grants`)
				return err
			},
		},
	)
}
