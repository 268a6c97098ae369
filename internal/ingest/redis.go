package ingest

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"

	"fabricviz/internal/observability"
)

// RedisSource reads one snapshot per message published on a channel
type RedisSource struct {
	Options *redis.Options
	Channel string
	Backoff Backoff

	pipeline
}

// NewRedisSource creates a redis pub/sub source
func NewRedisSource(opts *redis.Options, channel string, bo Backoff, logger *log.Logger, c *observability.Collector) *RedisSource {
	return &RedisSource{
		Options:  opts,
		Channel:  channel,
		Backoff:  bo,
		pipeline: newPipeline("redis", logger, c),
	}
}

// Name implements Source
func (s *RedisSource) Name() string {
	return s.name
}

// Run subscribes to the channel until ctx is cancelled. The client reconnects
// an established subscription on its own; a failed subscribe or a closed
// subscription is retried here with backoff.
func (s *RedisSource) Run(ctx context.Context, sub Submitter) error {
	client := redis.NewClient(s.Options)
	defer client.Close()

	bo := s.Backoff.policy()

	for {
		pubsub := client.Subscribe(ctx, s.Channel)
		if _, err := pubsub.Receive(ctx); err != nil {
			pubsub.Close()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			delay := bo.NextBackOff()
			s.logger.Warn("subscribe failed", "addr", s.Options.Addr, "channel", s.Channel, "err", err, "retry", delay)
			s.collector.ObserveReconnect(s.name)
			if err := wait(ctx, delay); err != nil {
				return err
			}
			continue
		}
		s.logger.Info("subscribed", "addr", s.Options.Addr, "channel", s.Channel)

		received, err := s.consume(ctx, pubsub, sub)
		pubsub.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			return err
		}
		if err := s.pause(ctx, bo, received); err != nil {
			return err
		}
	}
}

// consume delivers messages until the subscription ends and returns how many
// arrived.
func (s *RedisSource) consume(ctx context.Context, pubsub *redis.PubSub, sub Submitter) (int, error) {
	ch := pubsub.Channel()
	received := 0
	for {
		select {
		case <-ctx.Done():
			return received, ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return received, nil
			}
			received++
			if err := s.deliver(ctx, sub, []byte(msg.Payload)); err != nil {
				return received, fmt.Errorf("submit: %w", err)
			}
		}
	}
}
