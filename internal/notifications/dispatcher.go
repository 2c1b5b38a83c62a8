// Package notifications fans order events out to sinks on background workers.
package notifications

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"bakery-orders/internal/domain"
	"bakery-orders/internal/repository"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

const (
	defaultQueueSize      = 256
	defaultWorkers        = 1
	defaultDeliverTimeout = 5 * time.Second
)

// Sink receives every notification accepted by the dispatcher.
type Sink interface {
	Deliver(ctx context.Context, n domain.Notification) error
}

// StoreSink persists notifications for the admin feed.
type StoreSink struct {
	Repo repository.NotificationRepository
}

func (s StoreSink) Deliver(ctx context.Context, n domain.Notification) error {
	return s.Repo.Save(ctx, &n)
}

type Config struct {
	QueueSize      int
	Workers        int
	DeliverTimeout time.Duration
	Clock          func() time.Time
	IDGenerator    func() string
}

// Dispatcher is a bounded queue drained by a fixed worker pool. Emit never
// blocks: when the queue is full the notification is dropped and logged.
type Dispatcher struct {
	queue   chan domain.Notification
	sinks   []Sink
	logger  *zap.Logger
	workers int
	timeout time.Duration
	clock   func() time.Time
	newID   func() string

	mu      sync.RWMutex
	closed  bool
	started bool
	wg      sync.WaitGroup
}

func NewDispatcher(cfg Config, logger *zap.Logger, sinks ...Sink) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.DeliverTimeout <= 0 {
		cfg.DeliverTimeout = defaultDeliverTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.IDGenerator == nil {
		cfg.IDGenerator = func() string { return ulid.Make().String() }
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		queue:   make(chan domain.Notification, cfg.QueueSize),
		sinks:   sinks,
		logger:  logger,
		workers: cfg.Workers,
		timeout: cfg.DeliverTimeout,
		clock:   cfg.Clock,
		newID:   cfg.IDGenerator,
	}
}

// Start launches the workers. It is a no-op after the first call.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.work(i)
	}
}

// Emit stamps the notification with an id and timestamp and queues it.
// It reports whether the notification was accepted.
func (d *Dispatcher) Emit(_ context.Context, n domain.Notification) bool {
	if n.ID == "" {
		n.ID = d.newID()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = d.clock().UTC()
	}
	if n.Priority == "" {
		n.Priority = domain.PriorityMedium
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.logger.Warn("notification dropped after shutdown", zap.String("type", n.Type), zap.String("id", n.ID))
		return false
	}
	select {
	case d.queue <- n:
		return true
	default:
		d.logger.Warn("notification queue full, dropping", zap.String("type", n.Type), zap.String("id", n.ID))
		return false
	}
}

// Close stops accepting notifications and waits for queued ones to be delivered.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	started := d.started
	d.mu.Unlock()

	if !started {
		for n := range d.queue {
			d.deliver(n)
		}
		return
	}
	d.wg.Wait()
}

func (d *Dispatcher) work(id int) {
	defer d.wg.Done()
	for n := range d.queue {
		d.deliver(n)
	}
	d.logger.Debug("notification worker stopped", zap.Int("worker", id))
}

func (d *Dispatcher) deliver(n domain.Notification) {
	for _, sink := range d.sinks {
		err := d.deliverOne(sink, n)
		if err != nil {
			d.logger.Error("notification delivery failed",
				zap.String("sink", fmt.Sprintf("%T", sink)),
				zap.String("type", n.Type),
				zap.String("id", n.ID),
				zap.Error(err))
		}
	}
}

func (d *Dispatcher) deliverOne(sink Sink, n domain.Notification) (err error) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = errors.New(fmt.Sprint("sink panic: ", r))
		}
	}()
	return sink.Deliver(ctx, n)
}
