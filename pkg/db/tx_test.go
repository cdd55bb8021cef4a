package db_test

import (
	"context"
	"errors"
	"testing"

	"github.com/fitsuite/licensehub/pkg/db"
	"github.com/fitsuite/licensehub/pkg/db/dbtest"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

type counter struct {
	ID    string `gorm:"primaryKey"`
	Value int64
}

func TestTxRunnerRetriesTransientConflicts(t *testing.T) {
	conn := dbtest.Open(t, &counter{})
	runner := db.NewTestTxRunner(conn)

	calls := 0
	err := runner.Run(context.Background(), "test.retry", func(tx *gorm.DB) error {
		calls++
		if err := tx.Create(&counter{ID: "a", Value: int64(calls)}).Error; err != nil {
			return err
		}
		if calls < 2 {
			return &pgconn.PgError{Code: "40001"}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}

	var stored counter
	if err := conn.First(&stored, "id = ?", "a").Error; err != nil {
		t.Fatalf("load: %v", err)
	}
	if stored.Value != 2 {
		t.Fatalf("expected only the second attempt to commit, got value %d", stored.Value)
	}
}

func TestTxRunnerDoesNotRetryDomainErrors(t *testing.T) {
	conn := dbtest.Open(t, &counter{})
	runner := db.NewTestTxRunner(conn)
	boom := errors.New("insufficient_stock")

	calls := 0
	err := runner.Run(context.Background(), "test.abort", func(tx *gorm.DB) error {
		calls++
		if err := tx.Create(&counter{ID: "b", Value: 1}).Error; err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected domain error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single attempt, got %d", calls)
	}

	var count int64
	conn.Model(&counter{}).Count(&count)
	if count != 0 {
		t.Fatalf("expected rollback, found %d rows", count)
	}
}
