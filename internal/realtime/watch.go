package realtime

import (
	"context"
	"sync"
)

// Handle 订阅句柄
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Unsubscribe 停止订阅，可重复调用，也可在回调内调用
func (h *Handle) Unsubscribe() {
	h.once.Do(h.cancel)
}

// Done 订阅协程退出后关闭
func (h *Handle) Done() <-chan struct{} { return h.done }

// Watch 订阅 topic，并在启动时及每次收到变更后读取当前状态回调 onChange
//
// 投递语义为至少一次、且为完整当前状态：同一状态可能重复回调，onChange 需幂等。
// load 失败时回调 onError（可为 nil），订阅继续保持。
func Watch[T any](
	ctx context.Context,
	bus Bus,
	topic string,
	load func(ctx context.Context) (T, error),
	onChange func(T),
	onError func(error),
) (*Handle, error) {
	ctx, cancel := context.WithCancel(ctx)

	// 先订阅再首次读取，读取期间发生的变更不会漏掉
	sub, err := bus.Subscribe(ctx, topic)
	if err != nil {
		cancel()
		return nil, err
	}

	h := &Handle{cancel: cancel, done: make(chan struct{})}

	deliver := func() {
		v, err := load(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onChange(v)
	}

	go func() {
		defer close(h.done)
		defer sub.Close()

		deliver()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-sub.C():
				if !ok {
					return
				}
				deliver()
			}
		}
	}()

	return h, nil
}
