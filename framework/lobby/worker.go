package lobby

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"lobby/common/log"
	"lobby/framework/conn"
	"lobby/framework/game"
	"lobby/framework/protocol"
	"lobby/framework/stream"
)

var ErrWorkerStopped = errors.New("lobby worker stopped")

// Notifier 接收房间生命周期事件，必须立即返回
type Notifier interface {
	Publish(ev *stream.RoomEvent)
}

type Options struct {
	NodeID           string
	LivenessInterval time.Duration
	IdleRoomTimeout  time.Duration
	QueueSize        int
	Notifier         Notifier
	RoomOptions      []game.Option
	Clock            func() time.Time
}

/*
	大厅协程：
	1. 连接注册表和房间管理器都只在 loop 协程里读写，不加锁
	2. 传输层的读协程通过 tasks 投递事件，同一连接的消息按到达顺序处理
	3. 心跳探测和空房间回收在同一个 ticker 上执行，随 ctx 或 Stop 退出
*/

type Worker struct {
	conns    *conn.Registry
	rooms    *game.RoomManager
	notifier Notifier
	opts     Options
	now      func() time.Time

	tasks    chan func()
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
	started  time.Time

	stats struct {
		messageProcessed int64
		protocolErrors   int64
		droppedMessages  int64
	}
}

func NewWorker(opts Options) *Worker {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1024
	}
	if opts.LivenessInterval <= 0 {
		opts.LivenessInterval = 30 * time.Second
	}
	if opts.IdleRoomTimeout <= 0 {
		opts.IdleRoomTimeout = 30 * time.Minute
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Worker{
		conns:    conn.NewRegistry(),
		rooms:    game.NewRoomManager(opts.RoomOptions...),
		notifier: opts.Notifier,
		opts:     opts,
		now:      opts.Clock,
		tasks:    make(chan func(), opts.QueueSize),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
		started:  opts.Clock(),
	}
}

// Run 阻塞直到 ctx 取消或 Stop 被调用，退出前通知所有连接
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.opts.LivenessInterval)
	defer ticker.Stop()
	defer close(w.doneCh)

	log.Info("lobby worker 启动，心跳周期: %v，空房间回收阈值: %v", w.opts.LivenessInterval, w.opts.IdleRoomTimeout)
	for {
		select {
		case <-ctx.Done():
			w.shutdown()
			return
		case <-w.stopCh:
			w.shutdown()
			return
		case task := <-w.tasks:
			w.safeRun(task)
		case <-ticker.C:
			w.safeRun(func() { w.sweep(w.now()) })
		}
	}
}

// Stop 停止 loop 并等待退出
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
	<-w.doneCh
}

func (w *Worker) safeRun(task func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("lobby worker task panic: %v\n%s", r, debug.Stack())
		}
	}()
	task()
}

// enqueue 投递到 loop，已停止时返回 false
func (w *Worker) enqueue(task func()) bool {
	select {
	case <-w.doneCh:
		return false
	default:
	}

	select {
	case w.tasks <- task:
		return true
	case <-w.doneCh:
		return false
	}
}

// call 投递并等待执行完成
func (w *Worker) call(ctx context.Context, task func()) error {
	done := make(chan struct{})
	if !w.enqueue(func() {
		defer close(done)
		task()
	}) {
		return ErrWorkerStopped
	}

	select {
	case <-done:
		return nil
	case <-w.doneCh:
		return ErrWorkerStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// OnConnect 实现 conn.Handler，注册完成后才返回
func (w *Worker) OnConnect(c conn.Connection, identity conn.Identity) error {
	return w.call(context.Background(), func() { w.handleConnect(c, identity) })
}

func (w *Worker) OnMessage(connID string, body []byte) {
	w.enqueue(func() { w.handleMessage(connID, body) })
}

func (w *Worker) OnPong(connID string) {
	w.enqueue(func() { w.conns.Pong(connID, w.now()) })
}

func (w *Worker) OnDisconnect(connID string) {
	w.enqueue(func() { w.handleDisconnect(connID) })
}

func (w *Worker) handleConnect(c conn.Connection, identity conn.Identity) {
	connID, playerID := w.conns.Register(c, identity, w.now())
	name := defaultName(identity.Name, playerID)
	_ = w.conns.Bind(connID, name)

	w.send(c, protocol.KindConnected, protocol.Connected{PlayerID: playerID})
	log.Info("lobby 玩家 %s 建立连接 cid=%s remote=%s", playerID, connID, c.RemoteAddr())
}

func (w *Worker) handleDisconnect(connID string) {
	player, ok := w.conns.Unregister(connID)
	if !ok {
		return
	}
	w.leaveRoom(player.ID)
	log.Info("lobby 玩家 %s 断开连接 cid=%s", player.ID, connID)
}

// shutdown 通知所有连接关闭，并发布房间删除事件
func (w *Worker) shutdown() {
	connections := w.conns.Connections()
	for _, c := range connections {
		w.conns.Close(c.ID(), websocket.CloseGoingAway, "server shutting down")
	}
	rooms := w.rooms.Close()
	for _, room := range rooms {
		w.notify(stream.RoomRemoved, room, stream.ReasonShutdown)
	}
	log.Info("lobby worker 已停止，关闭连接 %d 个，解散房间 %d 个", len(connections), len(rooms))
}

func (w *Worker) notify(typ stream.EventType, room *game.Room, reason string) {
	if w.notifier == nil {
		return
	}
	w.notifier.Publish(&stream.RoomEvent{
		Type:      typ,
		NodeID:    w.opts.NodeID,
		Room:      room.Info(),
		Reason:    reason,
		Timestamp: w.now().UnixMilli(),
	})
}

func defaultName(name, playerID string) string {
	if cleaned, err := protocol.CleanName(name); err == nil {
		return cleaned
	}
	short := playerID
	if len(short) > 4 {
		short = short[:4]
	}
	return fmt.Sprintf("Player-%s", short)
}

// Stats 运行统计，/health 使用
type Stats struct {
	Rooms             int   `json:"rooms"`
	Players           int   `json:"players"`
	SeatedPlayers     int   `json:"seatedPlayers"`
	MessagesProcessed int64 `json:"messagesProcessed"`
	ProtocolErrors    int64 `json:"protocolErrors"`
	DroppedMessages   int64 `json:"droppedMessages"`
	UptimeSeconds     int64 `json:"uptimeSeconds"`
}

func (w *Worker) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	err := w.call(ctx, func() {
		stats.Rooms, stats.SeatedPlayers = w.rooms.GetStats()
		stats.Players = w.conns.Len()
	})
	if err != nil {
		return Stats{}, err
	}
	stats.MessagesProcessed = atomic.LoadInt64(&w.stats.messageProcessed)
	stats.ProtocolErrors = atomic.LoadInt64(&w.stats.protocolErrors)
	stats.DroppedMessages = atomic.LoadInt64(&w.stats.droppedMessages)
	stats.UptimeSeconds = int64(w.now().Sub(w.started).Seconds())
	return stats, nil
}

// Rooms 房间快照，onlyOpen 时只返回可加入的房间
func (w *Worker) Rooms(ctx context.Context, onlyOpen bool) ([]protocol.RoomInfo, error) {
	var infos []protocol.RoomInfo
	err := w.call(ctx, func() {
		for _, room := range w.rooms.Rooms() {
			if onlyOpen && room.State() != game.RoomStateOpen {
				continue
			}
			infos = append(infos, room.Info())
		}
	})
	if err != nil {
		return nil, err
	}
	return infos, nil
}

// Room 单个房间快照
func (w *Worker) Room(ctx context.Context, roomID string) (protocol.RoomInfo, bool, error) {
	var (
		info  protocol.RoomInfo
		found bool
	)
	err := w.call(ctx, func() {
		room, ok := w.rooms.GetRoom(roomID)
		if ok {
			info, found = room.Info(), true
		}
	})
	if err != nil {
		return protocol.RoomInfo{}, false, err
	}
	return info, found, nil
}
