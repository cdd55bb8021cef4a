package idempotency

import (
	"context"
	"errors"
	"testing"

	"github.com/fitsuite/licensehub/internal/clock"
	"github.com/fitsuite/licensehub/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestLedgerClaimAndMark(t *testing.T) {
	conn := dbtest.Open(t, &ProcessedPayment{})
	ledger := NewLedger(clock.SystemClock{})
	ctx := context.Background()

	already, err := ledger.TryClaim(ctx, conn, "123")
	require.NoError(t, err)
	assert.False(t, already)

	require.NoError(t, ledger.Mark(ctx, conn, "123", "gym-1", KindLicense))

	already, err = ledger.TryClaim(ctx, conn, "123")
	require.NoError(t, err)
	assert.True(t, already)
}

func TestLedgerMarkDuplicateIsAlreadyProcessed(t *testing.T) {
	conn := dbtest.Open(t, &ProcessedPayment{})
	ledger := NewLedger(clock.SystemClock{})
	ctx := context.Background()

	require.NoError(t, ledger.Mark(ctx, conn, "123", "gym-1", KindLicense))
	err := ledger.Mark(ctx, conn, "123", "gym-1", KindLicense)
	assert.True(t, errors.Is(err, ErrAlreadyProcessed))
}

func TestLedgerMarkRolledBackWithTransaction(t *testing.T) {
	conn := dbtest.Open(t, &ProcessedPayment{})
	ledger := NewLedger(clock.SystemClock{})
	ctx := context.Background()
	boom := errors.New("boom")

	err := conn.Transaction(func(tx *gorm.DB) error {
		if err := ledger.Mark(ctx, tx, "999", "gym-1", KindOrder); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	already, err := ledger.TryClaim(ctx, conn, "999")
	require.NoError(t, err)
	assert.False(t, already)
}

func TestLedgerRejectsEmptyPaymentID(t *testing.T) {
	conn := dbtest.Open(t, &ProcessedPayment{})
	ledger := NewLedger(clock.SystemClock{})

	_, err := ledger.TryClaim(context.Background(), conn, " ")
	assert.ErrorIs(t, err, ErrInvalidPaymentID)
	assert.ErrorIs(t, ledger.Mark(context.Background(), conn, "", "gym-1", KindLicense), ErrInvalidPaymentID)
}
