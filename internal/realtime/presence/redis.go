package presence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/amoylab/umbra/internal/common/cnst"
	"github.com/amoylab/umbra/internal/common/config"
	"github.com/amoylab/umbra/internal/common/dto"
	"github.com/amoylab/umbra/pkg/utils"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// streamMaxLen bounds the presence stream; consumers only care about recent transitions
const streamMaxLen = 10000

// RedisNotifier appends presence events to a Redis stream
type RedisNotifier struct {
	logger     *zap.Logger
	client     redis.UniversalClient
	streamName string
}

var _ Notifier = (*RedisNotifier)(nil)

// NewRedisNotifier connects to Redis and verifies the connection
func NewRedisNotifier(logger *zap.Logger, cfg config.PresenceRedisConfig) (*RedisNotifier, error) {
	opts := &redis.UniversalOptions{
		Addrs:    utils.SplitByMultipleDelimiters(cfg.Addr, ";", ","),
		Username: cfg.Username,
		Password: cfg.Password,
	}
	if cfg.ClusterType == cnst.RedisClusterTypeSentinel {
		opts.MasterName = cfg.MasterName
	}
	if cfg.ClusterType != cnst.RedisClusterTypeCluster {
		// can not set db in cluster mode
		opts.DB = cfg.DB
	}
	client := redis.NewUniversalClient(opts)

	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisNotifier{
		logger:     logger.Named("presence.redis"),
		client:     client,
		streamName: cfg.Topic,
	}, nil
}

func (r *RedisNotifier) Online(ctx context.Context, userID uuid.UUID, displayName string) error {
	return r.publish(ctx, Event{Type: EventOnline, UserID: userID, DisplayName: displayName})
}

func (r *RedisNotifier) Offline(ctx context.Context, userID uuid.UUID) error {
	return r.publish(ctx, Event{Type: EventOffline, UserID: userID})
}

func (r *RedisNotifier) publish(ctx context.Context, ev Event) error {
	ev.Timestamp = dto.FormatTimestamp(time.Now())
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal presence event: %w", err)
	}

	_, err = r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: r.streamName,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"event": string(data),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to add presence event to stream: %w", err)
	}
	return nil
}

// Watch streams presence events published after the call
func (r *RedisNotifier) Watch(ctx context.Context) (<-chan Event, error) {
	ch := make(chan Event, 10)

	go func() {
		defer close(ch)

		lastID := "$"
		for {
			if ctx.Err() != nil {
				return
			}
			streams, err := r.client.XRead(ctx, &redis.XReadArgs{
				Streams: []string{r.streamName, lastID},
				Count:   10,
				Block:   time.Second,
			}).Result()
			if err != nil {
				if errors.Is(err, redis.Nil) || ctx.Err() != nil {
					continue
				}
				r.logger.Error("failed to read from stream", zap.Error(err))
				select {
				case <-time.After(time.Second):
				case <-ctx.Done():
					return
				}
				continue
			}

			for _, stream := range streams {
				for _, message := range stream.Messages {
					lastID = message.ID

					raw, ok := message.Values["event"].(string)
					if !ok {
						continue
					}
					var ev Event
					if err := json.Unmarshal([]byte(raw), &ev); err != nil {
						r.logger.Error("failed to unmarshal presence event", zap.Error(err))
						continue
					}
					select {
					case ch <- ev:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	return ch, nil
}

func (r *RedisNotifier) Close() error {
	return r.client.Close()
}
