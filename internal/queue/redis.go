package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/siberialabel/telegram-support-bot/internal/config"
	"github.com/siberialabel/telegram-support-bot/internal/transport"
)

const directiveKey = "outbound:directives"

// DirectiveQueue buffers outbound directives in Redis so deliveries survive
// a process restart and the delivery worker can drain them at its own pace.
type DirectiveQueue struct {
	client *redis.Client
	logger *zap.Logger
}

// NewDirectiveQueue connects to Redis using the provided configuration.
func NewDirectiveQueue(cfg config.RedisConfig, logger *zap.Logger) *DirectiveQueue {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		logger.Warn("unable to reach redis", zap.Error(err))
	} else {
		logger.Info("connected to redis")
	}

	return &DirectiveQueue{client: client, logger: logger}
}

// Enqueue pushes a directive onto the queue.
func (q *DirectiveQueue) Enqueue(ctx context.Context, d transport.Directive) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return q.client.LPush(ctx, directiveKey, raw).Err()
}

// Dequeue blocks up to timeout for the next directive. It returns nil with
// no error when the queue stayed empty.
func (q *DirectiveQueue) Dequeue(ctx context.Context, timeout time.Duration) (*transport.Directive, error) {
	res, err := q.client.BRPop(ctx, timeout, directiveKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	if len(res) < 2 {
		return nil, nil
	}
	var d transport.Directive
	if err := json.Unmarshal([]byte(res[1]), &d); err != nil {
		q.logger.Error("malformed directive dropped", zap.Error(err))
		return nil, nil
	}
	return &d, nil
}

// Ping verifies Redis connectivity.
func (q *DirectiveQueue) Ping(ctx context.Context) error {
	if q == nil || q.client == nil {
		return errors.New("redis client not configured")
	}
	return q.client.Ping(ctx).Err()
}

// Close closes the client.
func (q *DirectiveQueue) Close() {
	if q != nil && q.client != nil {
		_ = q.client.Close()
	}
}
