package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the accounting store.
var Migrations = migrate.NewGroup("accounting")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_accounting_balances",
			Version: "20240101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS accounting_balances (
    account_id TEXT PRIMARY KEY,
    balance    BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_accounting_balances_balance ON accounting_balances (balance DESC, account_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS accounting_balances`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_accounting_transactions",
			Version: "20240101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS accounting_transactions (
    id              TEXT PRIMARY KEY,
    seq             BIGINT GENERATED ALWAYS AS IDENTITY,
    sender_id       TEXT NOT NULL,
    receiver_id     TEXT NOT NULL,
    amount          BIGINT NOT NULL CHECK (amount > 0),
    kind            SMALLINT NOT NULL,
    description     TEXT NOT NULL DEFAULT '',
    created_at      TIMESTAMPTZ NOT NULL,
    idempotency_key TEXT
);

CREATE INDEX IF NOT EXISTS idx_accounting_txns_created ON accounting_transactions (created_at DESC, seq DESC);
CREATE INDEX IF NOT EXISTS idx_accounting_txns_sender ON accounting_transactions (sender_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_accounting_txns_receiver ON accounting_transactions (receiver_id, created_at DESC);
CREATE UNIQUE INDEX IF NOT EXISTS idx_accounting_txns_idempotency ON accounting_transactions (idempotency_key) WHERE idempotency_key IS NOT NULL;
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS accounting_transactions`)
				return err
			},
		},
	)
}
