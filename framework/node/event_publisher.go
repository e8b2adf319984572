package node

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"lobby/common/log"
	"lobby/framework/stream"
)

// EventHandler 消费房间事件，比如写 redis 目录、转发到 nats
type EventHandler interface {
	Name() string
	HandleEvent(ctx context.Context, ev *stream.RoomEvent) error
}

/*
	事件发布：
	1. Publish 在 lobby 协程里调用，只往缓冲写，满了直接丢弃
	2. Run 单协程按顺序交给每个 handler，同一房间的事件不会乱序
	3. 某个 handler 出错只记日志，不影响其他 handler
*/

type EventPublisher struct {
	events   chan *stream.RoomEvent
	handlers []EventHandler
	dropped  int64
	doneCh   chan struct{}
	once     sync.Once
}

func NewEventPublisher(buffer int, handlers ...EventHandler) *EventPublisher {
	if buffer <= 0 {
		buffer = 1024
	}
	return &EventPublisher{
		events:   make(chan *stream.RoomEvent, buffer),
		handlers: handlers,
		doneCh:   make(chan struct{}),
	}
}

// Publish 实现 lobby.Notifier
func (p *EventPublisher) Publish(ev *stream.RoomEvent) {
	select {
	case p.events <- ev:
	default:
		atomic.AddInt64(&p.dropped, 1)
		log.Warn("EventPublisher %v: 丢弃事件 %s room=%s", ErrQueueFull, ev.Type, ev.Room.RoomID)
	}
}

// Run 阻塞直到 ctx 取消，退出前把缓冲里剩下的事件处理完
func (p *EventPublisher) Run(ctx context.Context) {
	defer p.once.Do(func() { close(p.doneCh) })
	for {
		select {
		case ev := <-p.events:
			p.dispatch(ctx, ev)
		case <-ctx.Done():
			p.drain()
			return
		}
	}
}

// Done 在 Run 返回后关闭
func (p *EventPublisher) Done() <-chan struct{} {
	return p.doneCh
}

func (p *EventPublisher) drain() {
	for {
		select {
		case ev := <-p.events:
			p.dispatch(context.Background(), ev)
		default:
			return
		}
	}
}

func (p *EventPublisher) dispatch(ctx context.Context, ev *stream.RoomEvent) {
	for _, h := range p.handlers {
		if err := h.HandleEvent(ctx, ev); err != nil {
			log.Error("EventPublisher handler %s 处理 %s 失败 room=%s err=%v", h.Name(), ev.Type, ev.Room.RoomID, err)
		}
	}
}

func (p *EventPublisher) Dropped() int64 {
	return atomic.LoadInt64(&p.dropped)
}

// NatsForwarder 把事件发布到 <subject>.<type>
type NatsForwarder struct {
	client  Client
	subject string
}

func NewNatsForwarder(client Client, subject string) *NatsForwarder {
	return &NatsForwarder{client: client, subject: subject}
}

func (f *NatsForwarder) Name() string {
	return "nats"
}

func (f *NatsForwarder) Subject(ev *stream.RoomEvent) string {
	return fmt.Sprintf("%s.%s", f.subject, ev.Type)
}

func (f *NatsForwarder) HandleEvent(_ context.Context, ev *stream.RoomEvent) error {
	data, err := ev.Encode()
	if err != nil {
		return err
	}
	if err := f.client.SendMessage(f.Subject(ev), data); err != nil {
		return fmt.Errorf("%s: %v: %w", f.Subject(ev), err, ErrPublishFailed)
	}
	return nil
}
