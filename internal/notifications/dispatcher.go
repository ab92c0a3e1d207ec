package notifications

import (
	"context"
	"encoding/json"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"inkwell/internal/models"
	"inkwell/internal/observability"

	"github.com/sony/gobreaker/v2"
)

// DispatcherConfig tunes the broker circuit breaker.
type DispatcherConfig struct {
	// BreakerFailures consecutive publish failures open the breaker.
	BreakerFailures uint32
	// BreakerTimeout is how long the breaker stays open before probing.
	BreakerTimeout time.Duration
	// PublishTimeout bounds a single broker publish.
	PublishTimeout time.Duration
}

// Dispatcher pushes notifications to connected clients. It satisfies the
// Pusher the notification service writes to.
type Dispatcher struct {
	registry *Registry
	broker   Broker
	breaker  *gobreaker.CircuitBreaker[struct{}]
	timeout  time.Duration
	wg       sync.WaitGroup
}

// NewDispatcher delivers through broker when it is non-nil and directly to
// registry otherwise.
func NewDispatcher(registry *Registry, broker Broker, cfg DispatcherConfig) *Dispatcher {
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 2 * time.Second
	}
	d := &Dispatcher{registry: registry, broker: broker, timeout: cfg.PublishTimeout}
	d.breaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "realtime-broker",
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state changed",
				slog.String("breaker", name), slog.String("from", from.String()), slog.String("to", to.String()))
		},
	})
	return d
}

// Start subscribes to the broker so payloads published by any instance reach
// this instance's clients. Without a broker it does nothing.
func (d *Dispatcher) Start(ctx context.Context) error {
	if d.broker == nil {
		return nil
	}
	return d.broker.Subscribe(ctx, d.deliverLocal)
}

// Push never blocks and never fails the caller.
func (d *Dispatcher) Push(userID uint, n *models.Notification) {
	if n == nil {
		return
	}
	payload, err := json.Marshal(OutboundFrame{Event: EventNewNotification, Data: n})
	if err != nil {
		slog.Warn("notification encode failed", slog.Uint64("notification_id", uint64(n.ID)), slog.String("error", err.Error()))
		return
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("realtime push panic", slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
			}
		}()
		d.dispatch(userID, payload)
	}()
}

func (d *Dispatcher) dispatch(userID uint, payload []byte) {
	if d.broker == nil {
		d.deliverLocal(userID, payload)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	_, err := d.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, d.broker.Publish(ctx, userID, payload)
	})
	if err != nil {
		observability.RealtimePushes.WithLabelValues("broker_error").Inc()
		slog.Warn("realtime broker publish failed, delivering locally",
			slog.Uint64("user_id", uint64(userID)), slog.String("error", err.Error()))
		d.deliverLocal(userID, payload)
	}
}

// deliverLocal writes payload to every client of userID on this instance.
func (d *Dispatcher) deliverLocal(userID uint, payload []byte) {
	clients := d.registry.Lookup(userID)
	if len(clients) == 0 {
		observability.RealtimePushes.WithLabelValues("offline").Inc()
		return
	}
	delivered := false
	for _, c := range clients {
		if c.TrySend(payload) {
			delivered = true
		}
	}
	if delivered {
		observability.RealtimePushes.WithLabelValues("delivered").Inc()
	} else {
		observability.RealtimePushes.WithLabelValues("dropped").Inc()
	}
}

// Wait blocks until every in-flight push has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// BreakerState exposes the broker breaker state for health reporting.
func (d *Dispatcher) BreakerState() gobreaker.State {
	return d.breaker.State()
}
