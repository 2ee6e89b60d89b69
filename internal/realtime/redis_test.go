package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shenikar/emergency_tracker/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStream_SubscribeAndEmit(t *testing.T) {
	// Подготовка
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	stream := NewRedisStream(client, "realtime:", newTestLogger())
	ctx := context.Background()
	received := make(chan pushed, 4)

	sub, err := stream.Subscribe(ctx, []string{"emergency:accepted"}, func(name string, payload []byte) {
		received <- pushed{name: name, payload: payload}
	})
	require.NoError(t, err)

	// Действие
	mr.Publish("realtime:emergency:arrived", `{"emergencyId":"E1"}`)
	err = stream.Emit(ctx, "emergency:accepted", models.LocationReport{EmergencyID: "E1"})
	require.NoError(t, err)

	// Проверки
	select {
	case msg := <-received:
		assert.Equal(t, "emergency:accepted", msg.name)
		assert.JSONEq(t, `{"emergencyId":"E1","location":{"lat":0,"lng":0}}`, string(msg.payload))
	case <-time.After(2 * time.Second):
		t.Fatal("message was not delivered")
	}
	require.NoError(t, sub.Close())
}

func TestRedisStream_SubscribeFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()
	stream := NewRedisStream(client, "realtime:", newTestLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := stream.Subscribe(ctx, []string{"emergency:accepted"}, func(string, []byte) {})

	assert.Error(t, err)
}
