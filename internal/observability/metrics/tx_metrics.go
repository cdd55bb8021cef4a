package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

const (
	TxReasonDeadlineExceeded     = "deadline_exceeded"
	TxReasonDBLockTimeout        = "db_lock_timeout"
	TxReasonSerializationFailure = "serialization_failure"
	TxReasonDeadlock             = "deadlock"
	TxReasonBusy                 = "busy"
	TxReasonUniqueViolation      = "unique_violation"
	TxReasonUnknown              = "unknown"
)

// TxMetrics counts store transaction attempts, retries and terminal failures.
type TxMetrics struct {
	attempts *prometheus.CounterVec
	retries  *prometheus.CounterVec
	failures *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

var (
	txMetricsOnce sync.Once
	txMetrics     *TxMetrics
)

// Tx returns the process-wide transaction metrics registry.
func Tx() *TxMetrics {
	return TxWithConfig(Config{})
}

func TxWithConfig(cfg Config) *TxMetrics {
	txMetricsOnce.Do(func() {
		txMetrics = newTxMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return txMetrics
}

// ResetTxMetricsForTest resets the transaction metrics singleton for tests.
func ResetTxMetricsForTest() {
	txMetricsOnce = sync.Once{}
	txMetrics = nil
}

func newTxMetrics(registerer prometheus.Registerer, cfg Config) *TxMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	constLabels := constLabelsFor(cfg)

	m := &TxMetrics{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "licensehub_tx_attempts_total",
			Help:        "Store transaction attempts by operation.",
			ConstLabels: constLabels,
		}, []string{"operation"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "licensehub_tx_retries_total",
			Help:        "Store transactions retried after a transient conflict.",
			ConstLabels: constLabels,
		}, []string{"operation", "reason"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "licensehub_tx_failures_total",
			Help:        "Store transactions that failed after all attempts.",
			ConstLabels: constLabels,
		}, []string{"operation", "reason"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "licensehub_tx_duration_seconds",
			Help:        "Store transaction latency including retries.",
			Buckets:     []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			ConstLabels: constLabels,
		}, []string{"operation"}),
	}
	m.attempts, _ = registerCounterVec(registerer, m.attempts)
	m.retries, _ = registerCounterVec(registerer, m.retries)
	m.failures, _ = registerCounterVec(registerer, m.failures)
	m.duration, _ = registerHistogramVec(registerer, m.duration)
	return m
}

func (m *TxMetrics) IncAttempt(operation string) {
	if m == nil || m.attempts == nil {
		return
	}
	m.attempts.WithLabelValues(operation).Inc()
}

func (m *TxMetrics) IncRetry(operation string, err error) {
	if m == nil || m.retries == nil {
		return
	}
	m.retries.WithLabelValues(operation, ClassifyTxError(err)).Inc()
}

func (m *TxMetrics) IncFailure(operation string, err error) {
	if m == nil || m.failures == nil {
		return
	}
	m.failures.WithLabelValues(operation, ClassifyTxError(err)).Inc()
}

func (m *TxMetrics) ObserveDuration(operation string, seconds float64) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(operation).Observe(seconds)
}

// ClassifyTxError maps a store error to a low-cardinality reason label.
func ClassifyTxError(err error) string {
	if err == nil {
		return TxReasonUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return TxReasonDeadlineExceeded
	}
	switch pgCode(err) {
	case "55P03":
		return TxReasonDBLockTimeout
	case "40001":
		return TxReasonSerializationFailure
	case "40P01":
		return TxReasonDeadlock
	case "23505":
		return TxReasonUniqueViolation
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return TxReasonUniqueViolation
	}
	if isSQLiteBusy(err) {
		return TxReasonBusy
	}
	return TxReasonUnknown
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr != nil {
		return pgErr.Code
	}
	return ""
}

func isSQLiteBusy(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "database table is locked")
}
