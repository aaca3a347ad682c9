package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelNames(t *testing.T) {
	assert.Equal(t, "overlay:session:s1:events", EventsChannel("overlay", "s1"))
	assert.Equal(t, "overlay:session:s1:snapshots", SnapshotsChannel("overlay", "s1"))

	id, err := SessionFromChannel("overlay:session:s1:events")
	require.NoError(t, err)
	assert.Equal(t, "s1", id)

	_, err = SessionFromChannel("overlay:room:s1")
	assert.Error(t, err)
}

func TestKafkaTopicMapping(t *testing.T) {
	topic, key, err := channelToTopicAndKey("overlay:session:S1:snapshots")
	require.NoError(t, err)
	assert.Equal(t, "overlay-snapshots", topic)
	assert.Equal(t, "S1", key)

	topic, err = patternToTopic("overlay:session:*:events")
	require.NoError(t, err)
	assert.Equal(t, "overlay-events", topic)

	_, _, err = channelToTopicAndKey("signal:room:R1:to_media")
	assert.Error(t, err)

	assert.Equal(t, "overlay-overlay-session-s1-events", sanitizeGroupID("overlay-overlay:session:s1:events"))
}

func TestRedisPubSub_PatternFillsSession(t *testing.T) {
	mr := miniredis.RunT(t)
	ps := NewRedisPubSubWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = ps.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := ps.SubscribePattern(ctx, "overlay:session:*:events")
	require.NoError(t, err)

	msg, err := NewMessage(TypeSetShow, "", SetShowPayload{Show: "coding"})
	require.NoError(t, err)
	require.NoError(t, ps.Publish(ctx, EventsChannel("overlay", "s9"), msg))

	select {
	case got := <-ch:
		assert.Equal(t, TypeSetShow, got.Type)
		assert.Equal(t, "s9", got.SessionID)
		var payload SetShowPayload
		require.NoError(t, got.UnmarshalPayload(&payload))
		assert.Equal(t, "coding", payload.Show)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestRedisPubSub_UnsubscribeClosesChannel(t *testing.T) {
	mr := miniredis.RunT(t)
	ps := NewRedisPubSubWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = ps.Close() })

	ctx := context.Background()
	channel := SnapshotsChannel("overlay", "s1")
	ch, err := ps.Subscribe(ctx, channel)
	require.NoError(t, err)
	require.NoError(t, ps.Unsubscribe(ctx, channel))

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed")
	}
}

func TestNewPubSub_Drivers(t *testing.T) {
	_, err := NewPubSub(Config{Driver: "nats"})
	assert.ErrorIs(t, err, ErrUnknownDriver)

	mr := miniredis.RunT(t)
	ps, err := NewPubSub(Config{Redis: RedisConfig{Address: mr.Addr()}})
	require.NoError(t, err)
	require.NoError(t, ps.Close())

	cfg := Config{}.normalize()
	assert.Equal(t, DriverRedis, cfg.Driver)
	assert.Equal(t, 1, cfg.Kafka.Partitions)
	assert.Equal(t, "overlay-service", cfg.Kafka.GroupID)
}
