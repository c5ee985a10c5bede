package publisher

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreams(t *testing.T) {
	single := NewRedisPublisher(context.Background(), "localhost:6379", 0, "specials", 1, 100)
	defer single.Close()
	assert.Equal(t, []string{"specials"}, single.Streams())

	sharded := NewRedisPublisher(context.Background(), "localhost:6379", 0, "specials", 3, 100)
	defer sharded.Close()
	assert.Equal(t, []string{"specials:0", "specials:1", "specials:2"}, sharded.Streams())
}

// This test requires a running Redis instance
// If Redis is not available, the test will be skipped
func TestRedisPublisher(t *testing.T) {
	ctx := context.Background()
	publisher := NewRedisPublisher(ctx, "localhost:6379", 0, "test_stream_specials", 1, 10)
	defer publisher.Close()

	if err := publisher.Ping(); err != nil {
		t.Skip("Redis is not available, skipping test")
	}

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   0,
	})
	defer client.Close()

	err := client.XGroupCreateMkStream(ctx, "test_stream_specials", "test_group", "$").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		require.NoError(t, err)
	}

	messages := make(chan string, 1)

	go func() {
		result, err := client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Streams:  []string{"test_stream_specials", ">"},
			Group:    "test_group",
			Consumer: "test_consumer",
			Block:    2 * time.Second,
		}).Result()
		if err != nil || len(result) == 0 || len(result[0].Messages) == 0 {
			close(messages)
			return
		}
		value, _ := result[0].Messages[0].Values["specials"].(string)
		messages <- value
	}()

	time.Sleep(100 * time.Millisecond)

	err = publisher.Publish("specials", []byte("test_message"))
	assert.NoError(t, err)

	select {
	case msg := <-messages:
		// The message should be base64 encoded
		assert.Equal(t, "dGVzdF9tZXNzYWdl", msg) // base64 of "test_message"
	case <-time.After(3 * time.Second):
		t.Error("Timed out waiting for message")
	}

	assert.NoError(t, publisher.TrimStreams())
}
