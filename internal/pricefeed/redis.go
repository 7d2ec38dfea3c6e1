package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

const channelPrefix = "microbank.prices."

func ConnectRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Redis publishes each tick on a per-symbol channel so API processes can
// relay drifts run by the worker to their own websocket clients.
type Redis struct {
	client *redis.Client
	log    *slog.Logger
}

func NewRedis(client *redis.Client, logger *slog.Logger) *Redis {
	if logger == nil {
		logger = slog.Default()
	}
	return &Redis{client: client, log: logger}
}

func (r *Redis) Publish(ctx context.Context, ticks []Tick) error {
	pipe := r.client.Pipeline()
	for _, t := range ticks {
		data, err := json.Marshal(t)
		if err != nil {
			return err
		}
		pipe.Publish(ctx, channelPrefix+t.Symbol, data)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Relay forwards ticks published by other processes (the worker) into dst
// until ctx is done.
func (r *Redis) Relay(ctx context.Context, dst Publisher) error {
	sub := r.client.PSubscribe(ctx, channelPrefix+"*")
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var tick Tick
			if err := json.Unmarshal([]byte(msg.Payload), &tick); err != nil {
				r.log.Warn("bad price message", "channel", msg.Channel, "err", err)
				continue
			}
			if err := dst.Publish(ctx, []Tick{tick}); err != nil {
				r.log.Warn("relay price tick failed", "symbol", tick.Symbol, "err", err)
			}
		}
	}
}
