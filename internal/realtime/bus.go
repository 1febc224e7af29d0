package realtime

import (
	"context"
	"errors"
	"sync"
)

// ErrBusClosed 总线已关闭
var ErrBusClosed = errors.New("变更总线已关闭")

// Bus 变更事件总线
type Bus interface {
	Publish(ctx context.Context, change Change) error
	Subscribe(ctx context.Context, topic string) (*Subscription, error)
	Close() error
}

// Subscription 单个主题的订阅
//
// 通知会合并：订阅方来不及消费时，积压的多条通知可能只投递一条。
// 订阅方读取的是文档当前状态，合并不会丢失最终结果。
type Subscription struct {
	topic string
	ch    chan Change
	once  sync.Once
	stop  func()
}

func newSubscription(topic string, buffer int, stop func()) *Subscription {
	if buffer <= 0 {
		buffer = 1
	}
	return &Subscription{topic: topic, ch: make(chan Change, buffer), stop: stop}
}

// Topic 订阅的主题
func (s *Subscription) Topic() string { return s.topic }

// C 通知通道，订阅关闭后通道关闭
func (s *Subscription) C() <-chan Change { return s.ch }

// Close 取消订阅，可重复调用
func (s *Subscription) Close() {
	s.once.Do(func() {
		if s.stop != nil {
			s.stop()
		}
	})
}

// offer 非阻塞投递，通道已满时丢弃（已有待处理通知）
func (s *Subscription) offer(c Change) {
	select {
	case s.ch <- c:
	default:
	}
}

// ── 进程内实现 ──

// MemoryBus 进程内总线，单实例部署与测试使用
type MemoryBus struct {
	mu     sync.Mutex
	subs   map[string]map[*Subscription]struct{}
	buffer int
	closed bool
}

// NewMemoryBus 创建进程内总线
func NewMemoryBus(buffer int) *MemoryBus {
	return &MemoryBus{subs: make(map[string]map[*Subscription]struct{}), buffer: buffer}
}

func (b *MemoryBus) Publish(_ context.Context, change Change) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrBusClosed
	}
	for _, topic := range change.Topics() {
		for sub := range b.subs[topic] {
			sub.offer(change)
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(_ context.Context, topic string) (*Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrBusClosed
	}

	var sub *Subscription
	sub = newSubscription(topic, b.buffer, func() { b.remove(sub) })

	if b.subs[topic] == nil {
		b.subs[topic] = make(map[*Subscription]struct{})
	}
	b.subs[topic][sub] = struct{}{}
	return sub, nil
}

func (b *MemoryBus) remove(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if set, ok := b.subs[sub.topic]; ok {
		if _, ok := set[sub]; ok {
			delete(set, sub)
			close(sub.ch)
		}
		if len(set) == 0 {
			delete(b.subs, sub.topic)
		}
	}
}

// SubscriberCount 主题当前订阅数
func (b *MemoryBus) SubscriberCount(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[topic])
}

func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for topic, set := range b.subs {
		for sub := range set {
			close(sub.ch)
		}
		delete(b.subs, topic)
	}
	return nil
}
