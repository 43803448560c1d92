// Package migrations holds the PostgreSQL schema for the launch layer and
// applies it idempotently at startup.
package migrations

import (
	"context"
	"database/sql"
	"fmt"
)

// statements run in order inside a single connection. Every statement is
// idempotent so Apply can run on every boot.
var statements = []string{
	`CREATE TABLE IF NOT EXISTS launch_tokens (
		id           TEXT PRIMARY KEY,
		symbol       TEXT NOT NULL,
		name         TEXT NOT NULL,
		deployer     TEXT NOT NULL,
		total_supply NUMERIC(78, 0) NOT NULL,
		metadata     JSONB,
		created_at   TIMESTAMPTZ NOT NULL,
		updated_at   TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS curve_states (
		token_id              TEXT PRIMARY KEY REFERENCES launch_tokens (id),
		phase                 TEXT NOT NULL,
		collateral_invested   NUMERIC(78, 0) NOT NULL CHECK (collateral_invested >= 0),
		circulating_supply    NUMERIC(78, 0) NOT NULL CHECK (circulating_supply >= 0),
		collateral_held       NUMERIC(78, 0) NOT NULL CHECK (collateral_held >= 0),
		accrued_protocol_fees NUMERIC(78, 0) NOT NULL CHECK (accrued_protocol_fees >= 0),
		reserve_tokens        NUMERIC(78, 0) NOT NULL CHECK (reserve_tokens >= 0),
		liquidity_provisioned BOOLEAN NOT NULL DEFAULT FALSE,
		created_at            TIMESTAMPTZ NOT NULL,
		updated_at            TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS vesting_states (
		token_id         TEXT PRIMARY KEY REFERENCES launch_tokens (id),
		deployer         TEXT NOT NULL,
		vesting_start    TIMESTAMPTZ NOT NULL,
		duration_seconds BIGINT NOT NULL,
		total_allocation NUMERIC(78, 0) NOT NULL CHECK (total_allocation >= 0),
		vested_amount    NUMERIC(78, 0) NOT NULL CHECK (vested_amount >= 0),
		milestones       TEXT NOT NULL,
		unvested_burned  BOOLEAN NOT NULL DEFAULT FALSE,
		created_at       TIMESTAMPTZ NOT NULL,
		updated_at       TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS bank_accounts (
		id         TEXT PRIMARY KEY,
		wallet     TEXT NOT NULL UNIQUE,
		balance    NUMERIC(78, 0) NOT NULL CHECK (balance >= 0),
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS bank_transactions (
		id         TEXT PRIMARY KEY,
		wallet     TEXT NOT NULL,
		type       TEXT NOT NULL,
		amount     NUMERIC(78, 0) NOT NULL,
		reference  TEXT,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS bank_transactions_wallet_idx
		ON bank_transactions (wallet, created_at)`,
	`CREATE TABLE IF NOT EXISTS token_balances (
		token_id TEXT NOT NULL REFERENCES launch_tokens (id),
		holder   TEXT NOT NULL,
		balance  NUMERIC(78, 0) NOT NULL CHECK (balance >= 0),
		PRIMARY KEY (token_id, holder)
	)`,
	`CREATE TABLE IF NOT EXISTS event_sequences (
		token_id TEXT PRIMARY KEY,
		seq      BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS ledger_events (
		id          TEXT PRIMARY KEY,
		token_id    TEXT NOT NULL,
		sequence    BIGINT NOT NULL,
		type        TEXT NOT NULL,
		caller      TEXT,
		attributes  JSONB,
		occurred_at TIMESTAMPTZ NOT NULL,
		UNIQUE (token_id, sequence)
	)`,
}

// Apply executes every migration statement in order.
func Apply(ctx context.Context, db *sql.DB) error {
	for i, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
