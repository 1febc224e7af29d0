package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/shiivaansh/sortED-sub000/pkg/redis"
)

// RedisBus 基于 Redis pub/sub 的总线，多实例部署时使用
//
// 每个主题对应一个频道 {prefix}:{topic}，负载为 Change 的 JSON。
type RedisBus struct {
	client *redis.Client
	prefix string
	buffer int
	logger *zap.Logger

	mu     sync.Mutex
	closed bool
	subs   map[*Subscription]struct{}
}

// NewRedisBus 创建 Redis 总线
func NewRedisBus(client *redis.Client, prefix string, buffer int, logger *zap.Logger) *RedisBus {
	if prefix == "" {
		prefix = "sorted:changes"
	}
	return &RedisBus{
		client: client,
		prefix: prefix,
		buffer: buffer,
		logger: logger,
		subs:   make(map[*Subscription]struct{}),
	}
}

func (b *RedisBus) channel(topic string) string {
	return b.prefix + ":" + topic
}

func (b *RedisBus) Publish(ctx context.Context, change Change) error {
	if b.isClosed() {
		return ErrBusClosed
	}
	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("序列化变更事件失败: %w", err)
	}
	for _, topic := range change.Topics() {
		if err := b.client.Publish(ctx, b.channel(topic), payload); err != nil {
			return fmt.Errorf("发布变更事件失败 (%s): %w", topic, err)
		}
	}
	return nil
}

func (b *RedisBus) Subscribe(ctx context.Context, topic string) (*Subscription, error) {
	if b.isClosed() {
		return nil, ErrBusClosed
	}

	pubsub := b.client.Subscribe(ctx, b.channel(topic))
	// 等待订阅确认，避免确认前发布的事件丢失
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("订阅频道失败 (%s): %w", topic, err)
	}

	done := make(chan struct{})
	var sub *Subscription
	sub = newSubscription(topic, b.buffer, func() {
		close(done)
		_ = pubsub.Close()
		b.mu.Lock()
		delete(b.subs, sub)
		b.mu.Unlock()
	})

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	go func() {
		defer close(sub.ch)
		msgs := pubsub.Channel()
		for {
			select {
			case <-done:
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var change Change
				if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
					b.logger.Warn("丢弃无法解析的变更事件",
						zap.String("channel", msg.Channel), zap.Error(err))
					continue
				}
				sub.offer(change)
			}
		}
	}()

	return sub, nil
}

func (b *RedisBus) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Close 关闭所有订阅；Redis 连接由调用方管理
func (b *RedisBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	subs := make([]*Subscription, 0, len(b.subs))
	for s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, s := range subs {
		s.Close()
	}
	return nil
}
