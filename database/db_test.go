package database_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/SharedCode/treestore"
	"github.com/SharedCode/treestore/database"
	"github.com/SharedCode/treestore/database/dbtest"
)

func TestMigrateIsIdempotent(t *testing.T) {
	db := dbtest.Open(t, treestore.Spreaded)
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("second migrate failed: %v", err)
	}
	for _, table := range []string{database.TableTreeEdit, database.TableTreeLive, database.TableLocks, database.TableSequence} {
		var n int
		if err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
			t.Errorf("table %s not usable: %v", table, err)
		}
	}
}

func TestInTxRollsBackOnError(t *testing.T) {
	db := dbtest.Open(t, treestore.Simple)
	ctx := context.Background()
	boom := errors.New("boom")
	err := db.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "INSERT INTO "+database.TableSequence+" (NAME, ID) VALUES (?, ?)", "x", 1); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	var n int
	db.QueryRow("SELECT COUNT(*) FROM " + database.TableSequence).Scan(&n)
	if n != 0 {
		t.Fatalf("expected rollback, found %d rows", n)
	}
}

func TestUniqueViolationDetected(t *testing.T) {
	db := dbtest.Open(t, treestore.Simple)
	ctx := context.Background()
	ins := "INSERT INTO " + database.TableLocks + " (LOCK_RESOURCE, USER_ID, LOCKTYPE, CREATED_AT, EXPIRES_AT) VALUES (?, ?, ?, ?, ?)"
	if _, err := db.ExecContext(ctx, ins, "r", 10, 1, 0, 1); err != nil {
		t.Fatal(err)
	}
	_, err := db.ExecContext(ctx, ins, "r", 11, 1, 0, 1)
	if err == nil {
		t.Fatalf("expected unique violation")
	}
	if !db.Dialect.IsUniqueViolation(err) {
		t.Fatalf("expected dialect to classify %v as unique violation", err)
	}
	if db.Dialect.IsDeadlock(err) {
		t.Fatalf("unique violation must not be a deadlock")
	}
}

func TestLockRowsForUpdate(t *testing.T) {
	var observed int
	db := dbtest.Open(t, treestore.Simple)
	db.RowLockObserver = func(time.Duration, error) { observed++ }
	ctx := context.Background()
	err := db.InTx(ctx, func(tx *sql.Tx) error {
		return db.LockRowsForUpdate(ctx, tx, database.TableTreeEdit, []int64{1, 2, 3})
	})
	if err != nil {
		t.Fatalf("lock rows failed: %v", err)
	}
	if observed != 1 {
		t.Fatalf("expected observer to be called once, got %d", observed)
	}
}

func TestLockRowsForUpdateHonorsCancelledContext(t *testing.T) {
	db := dbtest.Open(t, treestore.Simple)
	ctx, cancel := context.WithCancel(context.Background())
	tx, err := db.BeginTx(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer tx.Rollback()
	cancel()
	err = db.LockRowsForUpdate(ctx, tx, database.TableTreeEdit, []int64{1})
	if !treestore.IsCode(err, treestore.Timeout) {
		t.Fatalf("expected Timeout, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled in chain, got %v", err)
	}
}

func TestLookupUnknownDialect(t *testing.T) {
	if _, err := database.Lookup("oracle"); err == nil {
		t.Fatalf("expected error")
	}
	for _, name := range []string{"sqlite", "mysql"} {
		if _, err := database.Lookup(name); err != nil {
			t.Errorf("dialect %s not registered: %v", name, err)
		}
	}
}

var errRowBusy = errors.New("row busy")

// deadlocked reports every row lock attempt as a retryable conflict.
type deadlocked struct {
	database.Dialect
}

func (deadlocked) LockRows(context.Context, database.DBTX, string, []int64) error { return errRowBusy }
func (deadlocked) IsDeadlock(err error) bool                                     { return errors.Is(err, errRowBusy) }

func TestLockRowsForUpdateTimesOutUnderConflict(t *testing.T) {
	db := *dbtest.Open(t, treestore.Simple)
	db.Dialect = deadlocked{db.Dialect}
	db.Options.RowLockDeadline = 30 * time.Millisecond
	db.Options.RowLockBackoff = time.Millisecond
	done := make(chan error, 1)
	go func() {
		done <- db.LockRowsForUpdate(context.Background(), db.DB, database.TableTreeEdit, []int64{1})
	}()
	select {
	case err := <-done:
		if !treestore.IsCode(err, treestore.Timeout) {
			t.Fatalf("expected Timeout, got %v", err)
		}
		if !errors.Is(err, errRowBusy) {
			t.Errorf("expected the conflict in the chain, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("row locking under a sustained conflict did not stop at its deadline")
	}
}
