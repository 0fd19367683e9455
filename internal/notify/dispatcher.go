// Package notify delivers match lifecycle events to their recipients without blocking the
// lifecycle that emits them.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/mroshb/roommate_match/internal/metrics"
	"github.com/mroshb/roommate_match/internal/models"
	"github.com/mroshb/roommate_match/pkg/logger"
	"go.uber.org/zap"
)

// Sink delivers one event somewhere.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, event models.Event) error
}

type DispatcherConfig struct {
	BufferSize      int
	DeliveryTimeout time.Duration
}

func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		BufferSize:      256,
		DeliveryTimeout: 10 * time.Second,
	}
}

// Dispatcher queues events in a bounded buffer and fans them out to its sinks on a single
// goroutine. Events that do not fit the buffer are dropped.
type Dispatcher struct {
	cfg    DispatcherConfig
	sinks  []Sink
	events chan models.Event
	log    *zap.SugaredLogger

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewDispatcher(cfg DispatcherConfig, sinks ...Sink) *Dispatcher {
	def := DefaultDispatcherConfig()
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = def.BufferSize
	}
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = def.DeliveryTimeout
	}

	d := &Dispatcher{
		cfg:      cfg,
		sinks:    sinks,
		events:   make(chan models.Event, cfg.BufferSize),
		log:      logger.Named("notify"),
		stopChan: make(chan struct{}),
	}

	d.wg.Add(1)
	go d.processEvents()
	return d
}

// Notify queues event for delivery. It never blocks.
func (d *Dispatcher) Notify(event models.Event) {
	select {
	case <-d.stopChan:
		metrics.NotificationsDropped.Inc()
		d.log.Warnw("Dispatcher closed, event dropped", "type", event.Type, "match_id", event.MatchID)
		return
	default:
	}

	select {
	case d.events <- event:
	default:
		metrics.NotificationsDropped.Inc()
		d.log.Warnw("Notification buffer full, event dropped",
			"type", event.Type,
			"match_id", event.MatchID,
			"buffer_size", d.cfg.BufferSize,
		)
	}
}

func (d *Dispatcher) processEvents() {
	defer d.wg.Done()

	for {
		select {
		case <-d.stopChan:
			d.drainEvents()
			return
		case event := <-d.events:
			d.deliver(event)
		}
	}
}

func (d *Dispatcher) drainEvents() {
	for {
		select {
		case event := <-d.events:
			d.deliver(event)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(event models.Event) {
	for _, sink := range d.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), d.cfg.DeliveryTimeout)
		err := sink.Deliver(ctx, event)
		cancel()

		metrics.RecordNotification(sink.Name(), err)
		if err != nil {
			d.log.Warnw("Failed to deliver notification",
				"sink", sink.Name(),
				"type", event.Type,
				"match_id", event.MatchID,
				"error", err,
			)
		}
	}
}

// Pending reports how many events wait in the buffer.
func (d *Dispatcher) Pending() int {
	return len(d.events)
}

// Close stops accepting events and delivers what is already buffered.
func (d *Dispatcher) Close() {
	d.stopOnce.Do(func() {
		close(d.stopChan)
	})
	d.wg.Wait()
}

// LogSink writes every event to the structured log.
type LogSink struct {
	log *zap.SugaredLogger
}

func NewLogSink() *LogSink {
	return &LogSink{log: logger.Named("events")}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Deliver(_ context.Context, event models.Event) error {
	s.log.Infow("Match event",
		"type", event.Type,
		"match_id", event.MatchID,
		"actor_id", event.ActorID,
		"recipients", event.Recipients,
		"score", event.Score,
		"occurred_at", event.OccurredAt,
	)
	return nil
}
