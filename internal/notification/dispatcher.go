package notification

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fitsuite/licensehub/internal/config"
	obsmetrics "github.com/fitsuite/licensehub/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const defaultSendTimeout = 5 * time.Second

// Dispatcher delivers events to every sink off the request path. Failures are
// logged and counted; they never reach the caller.
type Dispatcher struct {
	log     *zap.Logger
	sinks   []Sink
	metrics *obsmetrics.Metrics
	timeout time.Duration
	workers int

	queue  chan Event
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

type DispatcherParams struct {
	fx.In

	Lc      fx.Lifecycle
	Cfg     config.Config
	Log     *zap.Logger
	Sinks   []Sink
	Metrics *obsmetrics.Metrics `optional:"true"`
}

func NewDispatcher(p DispatcherParams) *Dispatcher {
	d := newDispatcher(p.Log, p.Sinks, p.Metrics, p.Cfg.Dispatcher)
	p.Lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			d.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return d.Stop(ctx)
		},
	})
	return d
}

// NewSyncDispatcher delivers inline on Publish.
func NewSyncDispatcher(log *zap.Logger, sinks ...Sink) *Dispatcher {
	return newDispatcher(log, sinks, nil, config.DispatcherConfig{Workers: 0})
}

func newDispatcher(log *zap.Logger, sinks []Sink, metrics *obsmetrics.Metrics, cfg config.DispatcherConfig) *Dispatcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	d := &Dispatcher{
		log:     log.Named("notification.dispatcher"),
		sinks:   sinks,
		metrics: metrics,
		timeout: timeout,
		workers: cfg.Workers,
	}
	if cfg.Workers > 0 {
		size := cfg.QueueSize
		if size <= 0 {
			size = 64
		}
		d.queue = make(chan Event, size)
	}
	return d
}

func (d *Dispatcher) Start() {
	if d.queue == nil {
		return
	}
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	d.log.Info("notification dispatcher started", zap.Int("workers", d.workers), zap.Int("sinks", len(d.sinks)))
}

// Stop drains queued events until ctx expires.
func (d *Dispatcher) Stop(ctx context.Context) error {
	if d.queue == nil {
		return nil
	}
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Publish never blocks the caller. Events are dropped with a warning when the
// queue is full.
func (d *Dispatcher) Publish(ctx context.Context, events ...Event) {
	if d == nil {
		return
	}
	if d.queue == nil {
		for _, ev := range events {
			d.deliver(context.WithoutCancel(ctx), ev)
		}
		return
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, ev := range events {
		if d.closed {
			d.log.Warn("dispatcher stopped, dropping notification", zap.String("event_id", ev.ID))
			continue
		}
		select {
		case d.queue <- ev:
		default:
			d.log.Warn("notification queue full, dropping", zap.String("event_id", ev.ID), zap.String("type", ev.Type))
			d.metrics.RecordNotificationFailure(ctx, "queue", ev.Type)
		}
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for ev := range d.queue {
		d.deliver(context.Background(), ev)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, ev Event) {
	for _, sink := range d.sinks {
		if err := d.send(ctx, sink, ev); err != nil {
			d.metrics.RecordNotificationFailure(ctx, sink.Name(), ev.Type)
			d.log.Warn("notification delivery failed",
				zap.String("sink", sink.Name()),
				zap.String("event_id", ev.ID),
				zap.String("tenant_id", ev.TenantID),
				zap.Error(err),
			)
		}
	}
}

func (d *Dispatcher) send(ctx context.Context, sink Sink, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panic: %v", r)
		}
	}()
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return sink.Send(ctx, ev)
}
