package notifications

import (
	"context"
	"testing"
	"time"

	"inkwell/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type delivery struct {
	userID  uint
	payload string
}

func collect(ch chan delivery) func(uint, []byte) {
	return func(userID uint, payload []byte) {
		ch <- delivery{userID: userID, payload: string(payload)}
	}
}

func awaitDelivery(t *testing.T, ch chan delivery) delivery {
	t.Helper()
	select {
	case d := <-ch:
		return d
	case <-time.After(3 * time.Second):
		t.Fatal("nothing delivered")
		return delivery{}
	}
}

func TestChannelNames(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "notifications:user:1", UserChannel(1))
	assert.Equal(t, "inkwell.notifications.user.100", UserSubject(100))

	id, ok := parseUserSuffix("notifications:user:77", redisUserPrefix)
	assert.True(t, ok)
	assert.Equal(t, uint(77), id)
	for _, bad := range []string{"notifications:user:", "notifications:user:abc", "notifications:user:0", "chat:conv:5"} {
		_, ok := parseUserSuffix(bad, redisUserPrefix)
		assert.False(t, ok, bad)
	}
}

func newRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestRedisBroker_RoundTrip(t *testing.T) {
	rdb := newRedisClient(t)
	broker := NewRedisBroker(rdb)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan delivery, 4)
	require.NoError(t, broker.Subscribe(ctx, collect(got)))

	require.NoError(t, broker.Publish(context.Background(), 12, []byte(`{"event":"newNotification"}`)))
	require.NoError(t, rdb.Publish(context.Background(), "notifications:user:nope", "ignored").Err())
	require.NoError(t, broker.Publish(context.Background(), 13, []byte("second")))

	first := awaitDelivery(t, got)
	assert.Equal(t, uint(12), first.userID)
	assert.Equal(t, `{"event":"newNotification"}`, first.payload)
	assert.Equal(t, uint(13), awaitDelivery(t, got).userID)

	_ = broker.Close()
}

func TestRedisBroker_StopsOnCancel(t *testing.T) {
	rdb := newRedisClient(t)
	broker := NewRedisBroker(rdb)
	ctx, cancel := context.WithCancel(context.Background())

	got := make(chan delivery, 4)
	require.NoError(t, broker.Subscribe(ctx, collect(got)))
	cancel()
	time.Sleep(50 * time.Millisecond)

	_ = broker.Publish(context.Background(), 1, []byte("after-cancel"))
	assert.Never(t, func() bool { return len(got) > 0 }, 200*time.Millisecond, 10*time.Millisecond)
}

func runNATS(t *testing.T) *nats.Conn {
	t.Helper()
	ns, err := server.NewServer(&server.Options{Host: "127.0.0.1", Port: -1, NoLog: true, NoSigs: true})
	require.NoError(t, err)
	go ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		t.Fatal("nats server not ready")
	}
	t.Cleanup(ns.Shutdown)

	nc, err := nats.Connect(ns.ClientURL())
	require.NoError(t, err)
	t.Cleanup(nc.Close)
	return nc
}

func TestNATSBroker_RoundTrip(t *testing.T) {
	nc := runNATS(t)
	broker := NewNATSBroker(nc)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan delivery, 4)
	require.NoError(t, broker.Subscribe(ctx, collect(got)))
	require.NoError(t, broker.Publish(context.Background(), 5, []byte("hello")))

	d := awaitDelivery(t, got)
	assert.Equal(t, uint(5), d.userID)
	assert.Equal(t, "hello", d.payload)
	require.NoError(t, broker.Close())
}

// Two dispatchers sharing a broker model two API instances.
func TestDispatcher_CrossInstanceOverNATS(t *testing.T) {
	nc := runNATS(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	regA, regB := NewRegistry(), NewRegistry()
	dA := NewDispatcher(regA, NewNATSBroker(nc), DispatcherConfig{})
	dB := NewDispatcher(regB, NewNATSBroker(nc), DispatcherConfig{})
	require.NoError(t, dA.Start(ctx))
	require.NoError(t, dB.Start(ctx))

	remote := registered(t, regB, 21)
	dA.Push(21, &models.Notification{ID: 99, RecipientID: 21})
	dA.Wait()

	assert.Equal(t, uint(99), waitFrame(t, remote).Data.ID)
}
