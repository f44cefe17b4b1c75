package broadcast

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/wfunc/picword/logger"
	"github.com/wfunc/picword/room"
)

const publishTimeout = 2 * time.Second

// Publisher is the subset of *redis.Client the publisher needs.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisPublisher 把房间事件发布到 Redis 频道 <prefix><room id>
type RedisPublisher struct {
	client Publisher
	prefix string
}

// NewRedisClient 创建 Redis 客户端并测试连接
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}

func NewRedisPublisher(client Publisher, prefix string) *RedisPublisher {
	if prefix == "" {
		prefix = "room:"
	}
	return &RedisPublisher{client: client, prefix: prefix}
}

// Channel returns the channel a room's events are published to.
func (p *RedisPublisher) Channel(roomID string) string {
	return p.prefix + roomID
}

// Notify implements room.Notifier.
func (p *RedisPublisher) Notify(evt room.Event) {
	if evt.RoomID == "" {
		return
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		logger.Log.Errorf("marshal %s event: %v", evt.Type, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	channel := p.Channel(evt.RoomID)
	if err := p.client.Publish(ctx, channel, payload).Err(); err != nil {
		logger.Log.Warnf("publish to redis channel %s failed: %v", channel, err)
	}
}
