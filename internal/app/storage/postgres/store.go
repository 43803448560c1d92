// Package postgres implements the storage interfaces backed by PostgreSQL.
// All amounts are stored as NUMERIC(78,0) and travel as decimal strings.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/launchlayer/curve_layer/internal/app/domain/bank"
	"github.com/launchlayer/curve_layer/internal/app/domain/curve"
	"github.com/launchlayer/curve_layer/internal/app/domain/event"
	"github.com/launchlayer/curve_layer/internal/app/domain/token"
	"github.com/launchlayer/curve_layer/internal/app/domain/vesting"
	"github.com/launchlayer/curve_layer/internal/app/storage"
)

// Store implements the storage interfaces over a sqlx database handle.
type Store struct {
	db *sqlx.DB
}

var _ storage.TokenStore = (*Store)(nil)
var _ storage.CurveStore = (*Store)(nil)
var _ storage.VestingStore = (*Store)(nil)
var _ storage.BankStore = (*Store)(nil)
var _ storage.BalanceStore = (*Store)(nil)
var _ storage.EventStore = (*Store)(nil)
var _ storage.LedgerStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// --- row types ----------------------------------------------------------------

type tokenRow struct {
	ID          string    `db:"id"`
	Symbol      string    `db:"symbol"`
	Name        string    `db:"name"`
	Deployer    string    `db:"deployer"`
	TotalSupply string    `db:"total_supply"`
	Metadata    []byte    `db:"metadata"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r tokenRow) toDomain() (token.Token, error) {
	supply, err := parseBig(r.TotalSupply)
	if err != nil {
		return token.Token{}, fmt.Errorf("token %s total_supply: %w", r.ID, err)
	}
	t := token.Token{
		ID:          r.ID,
		Symbol:      r.Symbol,
		Name:        r.Name,
		Deployer:    r.Deployer,
		TotalSupply: supply,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if len(r.Metadata) > 0 {
		_ = json.Unmarshal(r.Metadata, &t.Metadata)
	}
	return t, nil
}

type curveRow struct {
	TokenID              string    `db:"token_id"`
	Phase                string    `db:"phase"`
	CollateralInvested   string    `db:"collateral_invested"`
	CirculatingSupply    string    `db:"circulating_supply"`
	CollateralHeld       string    `db:"collateral_held"`
	AccruedProtocolFees  string    `db:"accrued_protocol_fees"`
	ReserveTokens        string    `db:"reserve_tokens"`
	LiquidityProvisioned bool      `db:"liquidity_provisioned"`
	CreatedAt            time.Time `db:"created_at"`
	UpdatedAt            time.Time `db:"updated_at"`
}

func (r curveRow) toDomain() (curve.State, error) {
	st := curve.State{
		TokenID:              r.TokenID,
		Phase:                curve.Phase(r.Phase),
		LiquidityProvisioned: r.LiquidityProvisioned,
		CreatedAt:            r.CreatedAt,
		UpdatedAt:            r.UpdatedAt,
	}
	var err error
	if st.CollateralInvested, err = parseBig(r.CollateralInvested); err != nil {
		return curve.State{}, err
	}
	if st.CirculatingSupply, err = parseBig(r.CirculatingSupply); err != nil {
		return curve.State{}, err
	}
	if st.CollateralHeld, err = parseBig(r.CollateralHeld); err != nil {
		return curve.State{}, err
	}
	if st.AccruedProtocolFees, err = parseBig(r.AccruedProtocolFees); err != nil {
		return curve.State{}, err
	}
	if st.ReserveTokens, err = parseBig(r.ReserveTokens); err != nil {
		return curve.State{}, err
	}
	return st, nil
}

type vestingRow struct {
	TokenID         string    `db:"token_id"`
	Deployer        string    `db:"deployer"`
	VestingStart    time.Time `db:"vesting_start"`
	DurationSeconds int64     `db:"duration_seconds"`
	TotalAllocation string    `db:"total_allocation"`
	VestedAmount    string    `db:"vested_amount"`
	Milestones      string    `db:"milestones"`
	UnvestedBurned  bool      `db:"unvested_burned"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

func (r vestingRow) toDomain() (vesting.State, error) {
	st := vesting.State{
		TokenID:        r.TokenID,
		Deployer:       r.Deployer,
		VestingStart:   r.VestingStart,
		Duration:       time.Duration(r.DurationSeconds) * time.Second,
		Milestones:     vesting.MilestonePhase(r.Milestones),
		UnvestedBurned: r.UnvestedBurned,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
	var err error
	if st.TotalAllocation, err = parseBig(r.TotalAllocation); err != nil {
		return vesting.State{}, err
	}
	if st.VestedAmount, err = parseBig(r.VestedAmount); err != nil {
		return vesting.State{}, err
	}
	return st, nil
}

type bankAccountRow struct {
	ID        string    `db:"id"`
	Wallet    string    `db:"wallet"`
	Balance   string    `db:"balance"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

type eventRow struct {
	ID         string    `db:"id"`
	TokenID    string    `db:"token_id"`
	Sequence   int64     `db:"sequence"`
	Type       string    `db:"type"`
	Caller     string    `db:"caller"`
	Attributes []byte    `db:"attributes"`
	OccurredAt time.Time `db:"occurred_at"`
}

func (r eventRow) toDomain() event.Event {
	evt := event.Event{
		ID:         r.ID,
		TokenID:    r.TokenID,
		Sequence:   uint64(r.Sequence),
		Type:       event.Type(r.Type),
		Caller:     r.Caller,
		OccurredAt: r.OccurredAt,
	}
	if len(r.Attributes) > 0 {
		_ = json.Unmarshal(r.Attributes, &evt.Attributes)
	}
	return evt
}

// --- TokenStore ----------------------------------------------------------------

func (s *Store) CreateToken(ctx context.Context, t token.Token) (token.Token, error) {
	return createToken(ctx, s.db, t)
}

func createToken(ctx context.Context, q sqlx.ExtContext, t token.Token) (token.Token, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	if t.TotalSupply == nil {
		t.TotalSupply = new(big.Int)
	}

	metadataJSON, err := json.Marshal(t.Metadata)
	if err != nil {
		return token.Token{}, err
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO launch_tokens (id, symbol, name, deployer, total_supply, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, t.ID, t.Symbol, t.Name, t.Deployer, t.TotalSupply.String(), metadataJSON, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return token.Token{}, err
	}
	return t, nil
}

func (s *Store) GetToken(ctx context.Context, id string) (token.Token, error) {
	var row tokenRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, symbol, name, deployer, total_supply, metadata, created_at, updated_at
		FROM launch_tokens
		WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return token.Token{}, fmt.Errorf("token %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return token.Token{}, err
	}
	return row.toDomain()
}

func (s *Store) ListTokens(ctx context.Context) ([]token.Token, error) {
	var rows []tokenRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, symbol, name, deployer, total_supply, metadata, created_at, updated_at
		FROM launch_tokens
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, err
	}
	out := make([]token.Token, 0, len(rows))
	for _, row := range rows {
		t, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// --- CurveStore ----------------------------------------------------------------

func (s *Store) CreateCurveState(ctx context.Context, st curve.State) (curve.State, error) {
	now := time.Now().UTC()
	st.CreatedAt = now
	st.UpdatedAt = now
	if err := upsertCurveState(ctx, s.db, st, true); err != nil {
		return curve.State{}, err
	}
	return st, nil
}

func upsertCurveState(ctx context.Context, q sqlx.ExtContext, st curve.State, insertOnly bool) error {
	query := `
		INSERT INTO curve_states (token_id, phase, collateral_invested, circulating_supply,
			collateral_held, accrued_protocol_fees, reserve_tokens, liquidity_provisioned,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	if !insertOnly {
		query += `
		ON CONFLICT (token_id) DO UPDATE SET
			phase = EXCLUDED.phase,
			collateral_invested = EXCLUDED.collateral_invested,
			circulating_supply = EXCLUDED.circulating_supply,
			collateral_held = EXCLUDED.collateral_held,
			accrued_protocol_fees = EXCLUDED.accrued_protocol_fees,
			reserve_tokens = EXCLUDED.reserve_tokens,
			liquidity_provisioned = EXCLUDED.liquidity_provisioned,
			updated_at = EXCLUDED.updated_at
		`
	}
	_, err := q.ExecContext(ctx, query,
		st.TokenID, string(st.Phase), st.CollateralInvested.String(), st.CirculatingSupply.String(),
		st.CollateralHeld.String(), st.AccruedProtocolFees.String(), st.ReserveTokens.String(),
		st.LiquidityProvisioned, st.CreatedAt, st.UpdatedAt)
	return err
}

func (s *Store) GetCurveState(ctx context.Context, tokenID string) (curve.State, error) {
	var row curveRow
	err := s.db.GetContext(ctx, &row, `
		SELECT token_id, phase, collateral_invested, circulating_supply, collateral_held,
			accrued_protocol_fees, reserve_tokens, liquidity_provisioned, created_at, updated_at
		FROM curve_states
		WHERE token_id = $1
	`, tokenID)
	if errors.Is(err, sql.ErrNoRows) {
		return curve.State{}, fmt.Errorf("curve state for token %s: %w", tokenID, storage.ErrNotFound)
	}
	if err != nil {
		return curve.State{}, err
	}
	return row.toDomain()
}

// --- VestingStore ----------------------------------------------------------------

func (s *Store) CreateVestingState(ctx context.Context, st vesting.State) (vesting.State, error) {
	now := time.Now().UTC()
	st.CreatedAt = now
	st.UpdatedAt = now
	if err := upsertVestingState(ctx, s.db, st, true); err != nil {
		return vesting.State{}, err
	}
	return st, nil
}

func upsertVestingState(ctx context.Context, q sqlx.ExtContext, st vesting.State, insertOnly bool) error {
	query := `
		INSERT INTO vesting_states (token_id, deployer, vesting_start, duration_seconds,
			total_allocation, vested_amount, milestones, unvested_burned, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	if !insertOnly {
		query += `
		ON CONFLICT (token_id) DO UPDATE SET
			vested_amount = EXCLUDED.vested_amount,
			milestones = EXCLUDED.milestones,
			unvested_burned = EXCLUDED.unvested_burned,
			updated_at = EXCLUDED.updated_at
		`
	}
	_, err := q.ExecContext(ctx, query,
		st.TokenID, st.Deployer, st.VestingStart, int64(st.Duration/time.Second),
		st.TotalAllocation.String(), st.VestedAmount.String(), string(st.Milestones),
		st.UnvestedBurned, st.CreatedAt, st.UpdatedAt)
	return err
}

func (s *Store) GetVestingState(ctx context.Context, tokenID string) (vesting.State, error) {
	var row vestingRow
	err := s.db.GetContext(ctx, &row, `
		SELECT token_id, deployer, vesting_start, duration_seconds, total_allocation,
			vested_amount, milestones, unvested_burned, created_at, updated_at
		FROM vesting_states
		WHERE token_id = $1
	`, tokenID)
	if errors.Is(err, sql.ErrNoRows) {
		return vesting.State{}, fmt.Errorf("vesting state for token %s: %w", tokenID, storage.ErrNotFound)
	}
	if err != nil {
		return vesting.State{}, err
	}
	return row.toDomain()
}

func (s *Store) ListVestingStates(ctx context.Context) ([]vesting.State, error) {
	var rows []vestingRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT token_id, deployer, vesting_start, duration_seconds, total_allocation,
			vested_amount, milestones, unvested_burned, created_at, updated_at
		FROM vesting_states
		ORDER BY token_id
	`)
	if err != nil {
		return nil, err
	}
	out := make([]vesting.State, 0, len(rows))
	for _, row := range rows {
		st, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

// --- BankStore ----------------------------------------------------------------

func (s *Store) CreateBankAccount(ctx context.Context, acct bank.Account) (bank.Account, error) {
	if acct.ID == "" {
		acct.ID = uuid.NewString()
	}
	if acct.Balance == nil {
		acct.Balance = new(big.Int)
	}
	now := time.Now().UTC()
	acct.CreatedAt = now
	acct.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bank_accounts (id, wallet, balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, acct.ID, acct.Wallet, acct.Balance.String(), acct.CreatedAt, acct.UpdatedAt)
	if err != nil {
		return bank.Account{}, err
	}
	return acct, nil
}

func (s *Store) GetBankAccount(ctx context.Context, wallet string) (bank.Account, error) {
	var row bankAccountRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, wallet, balance, created_at, updated_at
		FROM bank_accounts
		WHERE wallet = $1
	`, wallet)
	if errors.Is(err, sql.ErrNoRows) {
		return bank.Account{}, fmt.Errorf("bank account for wallet %s: %w", wallet, storage.ErrNotFound)
	}
	if err != nil {
		return bank.Account{}, err
	}
	balance, err := parseBig(row.Balance)
	if err != nil {
		return bank.Account{}, err
	}
	return bank.Account{
		ID:        row.ID,
		Wallet:    row.Wallet,
		Balance:   balance,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}, nil
}

func (s *Store) ListBankTransactions(ctx context.Context, wallet string) ([]bank.Transaction, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT id, wallet, type, amount, reference, created_at
		FROM bank_transactions
		WHERE wallet = $1
		ORDER BY created_at, id
	`, wallet)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []bank.Transaction
	for rows.Next() {
		var (
			tx        bank.Transaction
			amount    string
			reference sql.NullString
		)
		if err := rows.Scan(&tx.ID, &tx.Wallet, &tx.Type, &amount, &reference, &tx.CreatedAt); err != nil {
			return nil, err
		}
		if tx.Amount, err = parseBig(amount); err != nil {
			return nil, err
		}
		tx.Reference = reference.String
		out = append(out, tx)
	}
	return out, rows.Err()
}

// --- BalanceStore ----------------------------------------------------------------

func (s *Store) TokenBalance(ctx context.Context, tokenID, holder string) (*big.Int, error) {
	var raw string
	err := s.db.GetContext(ctx, &raw, `
		SELECT balance FROM token_balances WHERE token_id = $1 AND holder = $2
	`, tokenID, holder)
	if errors.Is(err, sql.ErrNoRows) {
		return new(big.Int), nil
	}
	if err != nil {
		return nil, err
	}
	return parseBig(raw)
}

// --- EventStore ----------------------------------------------------------------

func (s *Store) ListEvents(ctx context.Context, tokenID string, afterSequence uint64, limit int) ([]event.Event, error) {
	query := `
		SELECT id, token_id, sequence, type, COALESCE(caller, '') AS caller, attributes, occurred_at
		FROM ledger_events
		WHERE token_id = $1 AND sequence > $2
		ORDER BY sequence
	`
	args := []interface{}{tokenID, int64(afterSequence)}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}

	var rows []eventRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	out := make([]event.Event, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// --- LedgerStore ----------------------------------------------------------------

// Commit applies the change set inside one database transaction. The schema's
// CHECK constraints back up the services' own balance validation: any
// violation rolls the whole commit back.
func (s *Store) Commit(ctx context.Context, cs storage.ChangeSet) ([]event.Event, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()

	if cs.Token != nil {
		if _, err := createToken(ctx, tx, *cs.Token); err != nil {
			return nil, fmt.Errorf("commit token: %w", err)
		}
	}
	if cs.CurveState != nil {
		st := *cs.CurveState
		st.UpdatedAt = now
		if st.CreatedAt.IsZero() {
			st.CreatedAt = now
		}
		if err := upsertCurveState(ctx, tx, st, false); err != nil {
			return nil, fmt.Errorf("commit curve state: %w", err)
		}
	}
	if cs.VestingState != nil {
		st := *cs.VestingState
		st.UpdatedAt = now
		if st.CreatedAt.IsZero() {
			st.CreatedAt = now
		}
		if err := upsertVestingState(ctx, tx, st, false); err != nil {
			return nil, fmt.Errorf("commit vesting state: %w", err)
		}
	}

	for _, delta := range cs.BalanceDeltas {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO token_balances (token_id, holder, balance)
			VALUES ($1, $2, $3)
			ON CONFLICT (token_id, holder)
				DO UPDATE SET balance = token_balances.balance + EXCLUDED.balance
		`, delta.TokenID, delta.Holder, delta.Delta.String())
		if err != nil {
			return nil, fmt.Errorf("commit balance delta for %s: %w", delta.Holder, err)
		}
	}

	for _, delta := range cs.BankDeltas {
		res, err := tx.ExecContext(ctx, `
			UPDATE bank_accounts
			SET balance = balance + $2, updated_at = $3
			WHERE wallet = $1
		`, delta.Wallet, delta.Delta.String(), now)
		if err != nil {
			return nil, fmt.Errorf("commit bank delta for %s: %w", delta.Wallet, err)
		}
		if rows, _ := res.RowsAffected(); rows == 0 {
			return nil, fmt.Errorf("bank account for wallet %s: %w", delta.Wallet, storage.ErrNotFound)
		}
	}

	for _, btx := range cs.BankTransactions {
		id := btx.ID
		if id == "" {
			id = uuid.NewString()
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO bank_transactions (id, wallet, type, amount, reference, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, id, btx.Wallet, string(btx.Type), btx.Amount.String(), btx.Reference, now)
		if err != nil {
			return nil, fmt.Errorf("commit bank transaction: %w", err)
		}
	}

	committed := make([]event.Event, 0, len(cs.Events))
	for _, evt := range cs.Events {
		var seq int64
		err := tx.GetContext(ctx, &seq, `
			INSERT INTO event_sequences (token_id, seq)
			VALUES ($1, 1)
			ON CONFLICT (token_id) DO UPDATE SET seq = event_sequences.seq + 1
			RETURNING seq
		`, evt.TokenID)
		if err != nil {
			return nil, fmt.Errorf("commit event sequence: %w", err)
		}

		evt.Sequence = uint64(seq)
		if evt.ID == "" {
			evt.ID = uuid.NewString()
		}
		attrs, err := json.Marshal(evt.Attributes)
		if err != nil {
			return nil, err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO ledger_events (id, token_id, sequence, type, caller, attributes, occurred_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, evt.ID, evt.TokenID, seq, string(evt.Type), evt.Caller, attrs, evt.OccurredAt)
		if err != nil {
			return nil, fmt.Errorf("commit event: %w", err)
		}
		committed = append(committed, evt)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return committed, nil
}

// parseBig converts a NUMERIC column value into a big.Int.
func parseBig(raw string) (*big.Int, error) {
	if raw == "" {
		return new(big.Int), nil
	}
	out, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("invalid numeric value %q", raw)
	}
	return out, nil
}
