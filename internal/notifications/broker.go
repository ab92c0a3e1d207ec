package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
)

// Broker fans realtime payloads out to every API instance. Each instance
// subscribes once and delivers to its own registry.
type Broker interface {
	Publish(ctx context.Context, userID uint, payload []byte) error
	Subscribe(ctx context.Context, handler func(userID uint, payload []byte)) error
	Close() error
}

const (
	redisUserPrefix = "notifications:user:"
	natsUserPrefix  = "inkwell.notifications.user."
)

// UserChannel derives the Redis channel name for a user.
func UserChannel(userID uint) string {
	return redisUserPrefix + strconv.FormatUint(uint64(userID), 10)
}

// UserSubject derives the NATS subject for a user.
func UserSubject(userID uint) string {
	return natsUserPrefix + strconv.FormatUint(uint64(userID), 10)
}

func parseUserSuffix(name, prefix string) (uint, bool) {
	if !strings.HasPrefix(name, prefix) {
		return 0, false
	}
	id, err := strconv.ParseUint(strings.TrimPrefix(name, prefix), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// safeHandle runs handler, logging instead of crashing the subscriber on panic.
func safeHandle(source string, handler func(uint, []byte), userID uint, payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("realtime subscriber panic", slog.String("broker", source), slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
		}
	}()
	handler(userID, payload)
}

// RedisBroker uses Redis pub/sub.
type RedisBroker struct {
	rdb *redis.Client

	mu   sync.Mutex
	subs []*redis.PubSub
}

func NewRedisBroker(rdb *redis.Client) *RedisBroker {
	return &RedisBroker{rdb: rdb}
}

func (b *RedisBroker) Publish(ctx context.Context, userID uint, payload []byte) error {
	return b.rdb.Publish(ctx, UserChannel(userID), payload).Err()
}

// Subscribe returns once the pattern subscription is confirmed. Messages are
// handled on a background goroutine until ctx is done or Close is called.
func (b *RedisBroker) Subscribe(ctx context.Context, handler func(userID uint, payload []byte)) error {
	sub := b.rdb.PSubscribe(ctx, redisUserPrefix+"*")
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("psubscribe %s*: %w", redisUserPrefix, err)
	}
	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	ch := sub.Channel()
	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				userID, valid := parseUserSuffix(msg.Channel, redisUserPrefix)
				if !valid {
					slog.Warn("invalid notification channel", slog.String("channel", msg.Channel))
					continue
				}
				safeHandle("redis", handler, userID, []byte(msg.Payload))
			}
		}
	}()
	return nil
}

func (b *RedisBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var errs []error
	for _, sub := range b.subs {
		if err := sub.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	b.subs = nil
	return errors.Join(errs...)
}

// NATSBroker uses core NATS subjects. The connection is owned by the caller.
type NATSBroker struct {
	nc *nats.Conn

	mu   sync.Mutex
	subs []*nats.Subscription
}

func NewNATSBroker(nc *nats.Conn) *NATSBroker {
	return &NATSBroker{nc: nc}
}

func (b *NATSBroker) Publish(_ context.Context, userID uint, payload []byte) error {
	return b.nc.Publish(UserSubject(userID), payload)
}

// Subscribe returns once the server has processed the subscription.
func (b *NATSBroker) Subscribe(ctx context.Context, handler func(userID uint, payload []byte)) error {
	sub, err := b.nc.Subscribe(natsUserPrefix+"*", func(msg *nats.Msg) {
		userID, valid := parseUserSuffix(msg.Subject, natsUserPrefix)
		if !valid {
			slog.Warn("invalid notification subject", slog.String("subject", msg.Subject))
			return
		}
		safeHandle("nats", handler, userID, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s*: %w", natsUserPrefix, err)
	}
	if err := b.nc.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return fmt.Errorf("flush nats subscription: %w", err)
	}
	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		_ = sub.Unsubscribe()
	}()
	return nil
}

func (b *NATSBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var errs []error
	for _, sub := range b.subs {
		if err := sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrBadSubscription) {
			errs = append(errs, err)
		}
	}
	b.subs = nil
	return errors.Join(errs...)
}
