package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// subscriberBuffer is how many events a slow thread stream may lag behind
// before new events are dropped for it. The activity log stays complete.
const subscriberBuffer = 64

// PubSub fans thread events out to stream subscribers. It also owns the
// connection the OwnershipStore shares.
type PubSub struct {
	client *redis.Client
}

func New(ctx context.Context, addr, password string, db int) (*PubSub, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis.New: ping %s: %w", addr, err)
	}

	return &PubSub{client: client}, nil
}

// Client exposes the connection for stores sharing it.
func (ps *PubSub) Client() *redis.Client {
	return ps.client
}

func (ps *PubSub) Close() error {
	if err := ps.client.Close(); err != nil {
		return fmt.Errorf("redis.PubSub.Close: %w", err)
	}
	return nil
}

func (ps *PubSub) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := ps.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis.PubSub.Publish(%s): %w", channel, err)
	}
	return nil
}

// Subscribe streams the payloads published on channel until ctx ends or
// stop is called. The returned channel is closed afterwards.
func (ps *PubSub) Subscribe(ctx context.Context, channel string) (<-chan []byte, func(), error) {
	sub := ps.client.Subscribe(ctx, channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("redis.PubSub.Subscribe(%s): %w", channel, err)
	}

	ctx, stop := context.WithCancel(ctx)
	out := make(chan []byte, subscriberBuffer)
	msgs := sub.Channel(redis.WithChannelSize(subscriberBuffer))

	go func() {
		defer close(out)
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				default:
					log.Warn().Str("channel", channel).Msg("redis: subscriber is behind, dropping event")
				}
			}
		}
	}()

	return out, stop, nil
}

// ThreadChannel returns the Redis channel name for a conversation thread.
// Activity records and handoff events for the thread are published here.
func ThreadChannel(threadID string) string {
	return "thread:" + threadID
}
