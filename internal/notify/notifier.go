package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/astralcore/haven/internal/models"
)

// channel is where outbound notifications land. A separate delivery
// worker subscribes and fans out to push/SMS providers; the hub treats
// the whole path as fire-and-forget.
const channel = "haven:notifications"

// Notifier is the outbound push/SMS collaborator.
type Notifier interface {
	Send(ctx context.Context, n models.Notification) error
}

// New returns the Redis-backed notifier, or the log-only fallback when no
// Redis URL is configured.
func New(redisURL string, logger *zap.Logger) (Notifier, error) {
	if redisURL == "" {
		logger.Info("no REDIS_URL configured, outbound notifications will be logged only")
		return &LogNotifier{logger: logger}, nil
	}
	return NewRedisNotifier(redisURL, logger)
}

// RedisNotifier publishes notifications to a Redis channel.
type RedisNotifier struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedisNotifier(url string, logger *zap.Logger) (*RedisNotifier, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	logger.Info("redis notifier connected", zap.String("addr", opts.Addr))
	return &RedisNotifier{client: client, logger: logger}, nil
}

func (n *RedisNotifier) Send(ctx context.Context, notification models.Notification) error {
	payload, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if err := n.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

func (n *RedisNotifier) Close() error {
	return n.client.Close()
}

// LogNotifier records notifications to the log. Used in development and
// whenever Redis is unavailable; losing one is acceptable on this path.
type LogNotifier struct {
	logger *zap.Logger
}

func (n *LogNotifier) Send(_ context.Context, notification models.Notification) error {
	n.logger.Info("outbound notification",
		zap.String("user_id", notification.UserID.String()),
		zap.String("kind", notification.Kind),
		zap.String("title", notification.Title),
		zap.String("priority", notification.Priority),
	)
	return nil
}
