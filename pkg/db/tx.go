package db

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	obsmetrics "github.com/fitsuite/licensehub/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultTxMaxAttempts = 5

type TxRunnerParams struct {
	fx.In

	DB      *gorm.DB
	Cfg     Config
	Log     *zap.Logger
	Metrics *obsmetrics.TxMetrics `optional:"true"`
}

// TxRunner executes a closure in a single store transaction, re-running the
// whole closure when the store reports a transient conflict. Closures must
// not perform external I/O: they may run more than once.
type TxRunner struct {
	db          *gorm.DB
	log         *zap.Logger
	metrics     *obsmetrics.TxMetrics
	maxAttempts int
	newBackOff  func() backoff.BackOff
}

func NewTxRunner(p TxRunnerParams) *TxRunner {
	metrics := p.Metrics
	if metrics == nil {
		metrics = obsmetrics.Tx()
	}
	return newTxRunner(p.DB, p.Log, metrics, p.Cfg.TxMaxAttempts)
}

// NewTestTxRunner builds a runner without metrics for unit tests.
func NewTestTxRunner(conn *gorm.DB) *TxRunner {
	return newTxRunner(conn, zap.NewNop(), nil, 3)
}

func newTxRunner(conn *gorm.DB, log *zap.Logger, metrics *obsmetrics.TxMetrics, maxAttempts int) *TxRunner {
	if log == nil {
		log = zap.NewNop()
	}
	if maxAttempts <= 0 {
		maxAttempts = defaultTxMaxAttempts
	}
	return &TxRunner{
		db:          conn,
		log:         log.Named("db.tx"),
		metrics:     metrics,
		maxAttempts: maxAttempts,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 20 * time.Millisecond
			b.MaxInterval = 500 * time.Millisecond
			return b
		},
	}
}

func (r *TxRunner) DB() *gorm.DB {
	return r.db
}

// Run executes fn inside a transaction labelled by operation.
func (r *TxRunner) Run(ctx context.Context, operation string, fn func(tx *gorm.DB) error) error {
	start := time.Now()
	defer func() {
		r.metrics.ObserveDuration(operation, time.Since(start).Seconds())
	}()

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		r.metrics.IncAttempt(operation)

		err := r.db.WithContext(ctx).Transaction(fn)
		if err == nil {
			return struct{}{}, nil
		}
		if !IsRetryableTxErr(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		r.metrics.IncRetry(operation, err)
		r.log.Warn("transaction conflict, retrying",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		return struct{}{}, err
	},
		backoff.WithBackOff(r.newBackOff()),
		backoff.WithMaxTries(uint(r.maxAttempts)),
	)
	if err != nil {
		if obsmetrics.ClassifyTxError(err) != obsmetrics.TxReasonUnknown {
			r.metrics.IncFailure(operation, err)
		}
		return err
	}
	return nil
}
