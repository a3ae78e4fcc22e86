package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisRepo carries the broadcast channels for fixes and presence transitions.
type RedisRepo struct {
	Client *redis.Client
}

// New connects to Redis and checks the connection with a ping.
func New(addr, password string) (*RedisRepo, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisRepo{Client: client}, nil
}

func (r *RedisRepo) Close() {
	r.Client.Close()
}

func (r *RedisRepo) Ping(ctx context.Context) error {
	return r.Client.Ping(ctx).Err()
}

// Publish sends payload as JSON to every subscriber of channel.
func (r *RedisRepo) Publish(ctx context.Context, channel string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return r.Client.Publish(ctx, channel, data).Err()
}

// Subscribe returns the raw messages published on channel. The returned
// channel is closed once ctx is done.
func (r *RedisRepo) Subscribe(ctx context.Context, channel string) (<-chan string, error) {
	sub := r.Client.Subscribe(ctx, channel)
	// wait for the subscription to be confirmed so no message is lost
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}

	out := make(chan string)
	go func() {
		defer close(out)
		defer sub.Close()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- msg.Payload:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
