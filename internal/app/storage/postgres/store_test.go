package postgres

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/launchlayer/curve_layer/internal/app/domain/curve"
	"github.com/launchlayer/curve_layer/internal/app/domain/event"
	"github.com/launchlayer/curve_layer/internal/app/storage"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(sqlx.NewDb(db, "sqlmock")), mock
}

func TestGetCurveStateMapsMissingRowToNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT token_id, phase").
		WithArgs("tok").
		WillReturnRows(sqlmock.NewRows([]string{"token_id"}))

	_, err := store.GetCurveState(context.Background(), "tok")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetCurveStateParsesNumericColumns(t *testing.T) {
	store, mock := newMockStore(t)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"token_id", "phase", "collateral_invested", "circulating_supply", "collateral_held",
		"accrued_protocol_fees", "reserve_tokens", "liquidity_provisioned", "created_at", "updated_at",
	}).AddRow("tok", "active", "1000000000000000000", "5", "1100", "100", "20", false, now, now)
	mock.ExpectQuery("SELECT token_id, phase").WithArgs("tok").WillReturnRows(rows)

	st, err := store.GetCurveState(context.Background(), "tok")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	want, _ := new(big.Int).SetString("1000000000000000000", 10)
	if st.CollateralInvested.Cmp(want) != 0 {
		t.Fatalf("invested %s, want %s", st.CollateralInvested, want)
	}
	if st.Phase != curve.PhaseActive {
		t.Fatalf("phase %s", st.Phase)
	}
}

func TestCommitAssignsSequenceAndCommitsTransaction(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO event_sequences").
		WithArgs("tok").
		WillReturnRows(sqlmock.NewRows([]string{"seq"}).AddRow(int64(7)))
	mock.ExpectExec("INSERT INTO ledger_events").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	committed, err := store.Commit(context.Background(), storage.ChangeSet{
		Events: []event.Event{{TokenID: "tok", Type: event.TypeBought, OccurredAt: time.Now()}},
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if len(committed) != 1 || committed[0].Sequence != 7 {
		t.Fatalf("expected sequence 7, got %+v", committed)
	}
	if committed[0].ID == "" {
		t.Fatal("committed event missing ID")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCommitRollsBackWhenBankAccountMissing(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE bank_accounts").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := store.Commit(context.Background(), storage.ChangeSet{
		BankDeltas: []storage.BankDelta{{Wallet: "ghost", Delta: big.NewInt(5)}},
	})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
