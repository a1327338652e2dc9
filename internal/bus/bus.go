// Package bus implements the in-process publish/subscribe dispatcher that
// fans domain events out to the automation engine. It is deliberately
// simple: no persistence, no replay, no cross-topic ordering. If the
// process dies between a side effect and a follow-up emit, the downstream
// automation is lost.
package bus

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/planovo/planovo-api/internal/events"
	"github.com/planovo/planovo-api/internal/metrics"
)

// Handler processes one delivered event. Errors are logged by the bus and
// never reach the emitter; sibling handlers still run.
type Handler func(ctx context.Context, evt events.Event) error

type Config struct {
	QueueSize     int
	Workers       int
	MaxChainDepth int
}

const (
	defaultQueueSize     = 1024
	defaultWorkers       = 4
	defaultMaxChainDepth = 8
)

type delivery struct {
	// id correlates a delivery and everything emitted from its handlers
	// across log lines.
	id    string
	evt   events.Event
	depth int
}

// Bus dispatches events asynchronously. Emit never blocks the caller; the
// handlers for one delivery run sequentially in subscription order, while
// deliveries for distinct emits may interleave across workers.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	closed   bool

	queue    chan delivery
	maxDepth int
	wg       sync.WaitGroup
	logger   zerolog.Logger
}

func New(cfg Config, logger zerolog.Logger) *Bus {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.MaxChainDepth <= 0 {
		cfg.MaxChainDepth = defaultMaxChainDepth
	}

	b := &Bus{
		handlers: make(map[string][]Handler),
		queue:    make(chan delivery, cfg.QueueSize),
		maxDepth: cfg.MaxChainDepth,
		logger:   logger.With().Str("component", "event_bus").Logger(),
	}

	b.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go b.work()
	}
	return b
}

// Subscribe registers a handler for an event name. Handlers registered for
// the same name run in subscription order. Registration is expected to
// happen before traffic; it is safe but not coordinated with in-flight
// deliveries.
func (b *Bus) Subscribe(name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = append(b.handlers[name], h)
}

// Emit schedules the event for asynchronous dispatch and returns
// immediately. The emitter never observes handler failures. Events emitted
// from inside a handler inherit the delivery's chain depth; chains longer
// than MaxChainDepth are dropped to stop recursive event storms.
func (b *Bus) Emit(ctx context.Context, evt events.Event) {
	depth := depthFromContext(ctx)
	if depth >= b.maxDepth {
		metrics.EventsDropped.WithLabelValues("chain_depth").Inc()
		b.logger.Warn().
			Str("event", evt.Name()).
			Int("depth", depth).
			Msg("event chain depth exceeded, dropping")
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		metrics.EventsDropped.WithLabelValues("closed").Inc()
		return
	}

	d := delivery{id: deliveryIDFromContext(ctx), evt: evt, depth: depth}
	if d.id == "" {
		d.id = uuid.NewString()
	}
	metrics.EventsEmitted.WithLabelValues(evt.Name()).Inc()
	select {
	case b.queue <- d:
		metrics.BusQueueDepth.Set(float64(len(b.queue)))
	default:
		// Queue full: hand off to a goroutine so Emit stays non-blocking.
		b.logger.Warn().Str("event", evt.Name()).Msg("bus queue full, spilling to goroutine")
		go func() {
			// The queue may be closed while this send is pending; the
			// delivery is then dropped, consistent with fire-and-forget.
			defer func() {
				if recover() != nil {
					metrics.EventsDropped.WithLabelValues("closed").Inc()
				}
			}()
			b.queue <- d
		}()
	}
}

// QueueStatus reports queue occupancy for health checks.
type QueueStatus struct {
	QueueLength int `json:"queue_length"`
	Capacity    int `json:"capacity"`
}

func (b *Bus) QueueStatus() QueueStatus {
	return QueueStatus{QueueLength: len(b.queue), Capacity: cap(b.queue)}
}

// Close stops accepting events and waits for queued deliveries to drain.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()

	close(b.queue)
	b.wg.Wait()
}

func (b *Bus) work() {
	defer b.wg.Done()
	for d := range b.queue {
		metrics.BusQueueDepth.Set(float64(len(b.queue)))
		b.dispatch(d)
	}
}

func (b *Bus) dispatch(d delivery) {
	b.mu.RLock()
	handlers := b.handlers[d.evt.Name()]
	b.mu.RUnlock()

	// Handlers run on a fresh context: the emitter's request context may be
	// gone by the time the delivery is picked up. Depth and correlation ID
	// carry over so chained emits inherit both.
	ctx := withDepth(context.Background(), d.depth+1)
	ctx = withDeliveryID(ctx, d.id)
	for _, h := range handlers {
		b.invoke(ctx, h, d)
	}
}

func (b *Bus) invoke(ctx context.Context, h Handler, d delivery) {
	defer func() {
		if r := recover(); r != nil {
			metrics.HandlerFailures.WithLabelValues(d.evt.Name()).Inc()
			b.logger.Error().
				Str("event", d.evt.Name()).
				Str("delivery_id", d.id).
				Interface("panic", r).
				Msg("handler panicked")
		}
	}()
	if err := h(ctx, d.evt); err != nil {
		metrics.HandlerFailures.WithLabelValues(d.evt.Name()).Inc()
		b.logger.Error().Err(err).
			Str("event", d.evt.Name()).
			Str("delivery_id", d.id).
			Msg("handler failed")
	}
}

type depthKey struct{}
type deliveryIDKey struct{}

func withDepth(ctx context.Context, depth int) context.Context {
	return context.WithValue(ctx, depthKey{}, depth)
}

func depthFromContext(ctx context.Context) int {
	if ctx == nil {
		return 0
	}
	if d, ok := ctx.Value(depthKey{}).(int); ok {
		return d
	}
	return 0
}

func withDeliveryID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, deliveryIDKey{}, id)
}

func deliveryIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(deliveryIDKey{}).(string); ok {
		return id
	}
	return ""
}
