package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/demesis221/PawRescue/internal/pkg/config"
)

const reportEventsChannel = "pawrescue:report_events"

var (
	client *redis.Client
	ctx    = context.Background()
	log    *zap.Logger
)

// Init initializes the Redis client. Redis is optional; when it is down the
// realtime feed degrades to single-instance broadcasting.
func Init(cfg *config.Config) error {
	client = redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Test connection
	if err := client.Ping(ctx).Err(); err != nil {
		client = nil
		return err
	}

	log = zap.L().With(zap.String("component", "redis"))
	log.Info("Redis connected successfully",
		zap.String("addr", cfg.Redis.Addr))

	return nil
}

// Available reports whether a Redis connection was established.
func Available() bool {
	return client != nil
}

// GetClient returns the Redis client
func GetClient() *redis.Client {
	return client
}

// Close closes the Redis connection
func Close() error {
	if client != nil {
		return client.Close()
	}
	return nil
}

// PublishReportEvent fans a serialized change event out to every instance
// subscribed to the report events channel.
func PublishReportEvent(c context.Context, payload []byte) error {
	if client == nil {
		return fmt.Errorf("redis client not initialized")
	}
	return client.Publish(c, reportEventsChannel, payload).Err()
}

// SubscribeReportEvents subscribes to the report events channel. The caller
// owns the returned PubSub and must Close it.
func SubscribeReportEvents(c context.Context) *redis.PubSub {
	if client == nil {
		return nil
	}
	return client.Subscribe(c, reportEventsChannel)
}
