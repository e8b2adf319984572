package conn

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"lobby/dto"
)

// PlayerState 玩家生命周期
type PlayerState int

const (
	PlayerInLobby PlayerState = iota // 已连接，未入座
	PlayerSeated                     // 坐在某个房间里，RoomID 非空
)

func (s PlayerState) String() string {
	if s == PlayerSeated {
		return "SEATED"
	}
	return "LOBBY"
}

// Player 和连接一一绑定的临时身份，断线即销毁
type Player struct {
	ID          string
	Name        string
	AccountID   string // 令牌中的账号，仅用于排查
	RemoteAddr  string
	ConnectedAt time.Time
	State       PlayerState
	RoomID      string
}

type entry struct {
	conn         Connection
	player       *Player
	probeSentAt  time.Time
	awaitingPong bool
	latency      time.Duration
	closed       bool
}

// Registry 连接和玩家注册表
// 不是并发安全的，只能由 lobby.Worker 的协程访问
type Registry struct {
	byConn   map[string]*entry // connID -> entry
	byPlayer map[string]*entry // playerID -> entry
	newID    func() string
}

func NewRegistry() *Registry {
	return &Registry{
		byConn:   make(map[string]*entry),
		byPlayer: make(map[string]*entry),
		newID:    uuid.NewString,
	}
}

// Register 登记连接并分配玩家 ID，连接 ID 由传输层生成
func (r *Registry) Register(c Connection, identity Identity, now time.Time) (connID, playerID string) {
	e := &entry{
		conn: c,
		player: &Player{
			ID:          r.newID(),
			Name:        identity.Name,
			AccountID:   identity.AccountID,
			RemoteAddr:  c.RemoteAddr(),
			ConnectedAt: now,
		},
	}
	r.byConn[c.ID()] = e
	r.byPlayer[e.player.ID] = e
	return c.ID(), e.player.ID
}

// Bind 设置昵称
func (r *Registry) Bind(connID, name string) error {
	e, ok := r.byConn[connID]
	if !ok {
		return fmt.Errorf("connection %s: %w", connID, dto.ErrNotConnected)
	}
	e.player.Name = name
	return nil
}

// Lookup 找不到或已经通过 Close 关闭都返回 false
func (r *Registry) Lookup(playerID string) (Connection, bool) {
	e, ok := r.byPlayer[playerID]
	if !ok || e.closed {
		return nil, false
	}
	return e.conn, true
}

// Close 关闭连接并打上标记，条目保留到 Unregister，重复调用只关闭一次
func (r *Registry) Close(connID string, code int, reason string) bool {
	e, ok := r.byConn[connID]
	if !ok || e.closed {
		return false
	}
	e.closed = true
	e.conn.Close(code, reason)
	return true
}

// Unregister 移除连接，返回绑定的玩家，调用方负责离开房间
func (r *Registry) Unregister(connID string) (Player, bool) {
	e, ok := r.byConn[connID]
	if !ok {
		return Player{}, false
	}
	delete(r.byConn, connID)
	delete(r.byPlayer, e.player.ID)
	return *e.player, true
}

func (r *Registry) Player(playerID string) (Player, bool) {
	e, ok := r.byPlayer[playerID]
	if !ok {
		return Player{}, false
	}
	return *e.player, true
}

func (r *Registry) ByConnection(connID string) (Player, bool) {
	e, ok := r.byConn[connID]
	if !ok {
		return Player{}, false
	}
	return *e.player, true
}

// Seat 入座后调用，状态和房间号一起修改
func (r *Registry) Seat(playerID, roomID string) error {
	e, ok := r.byPlayer[playerID]
	if !ok {
		return fmt.Errorf("player %s: %w", playerID, dto.ErrPlayerNotFound)
	}
	e.player.State = PlayerSeated
	e.player.RoomID = roomID
	return nil
}

// Unseat 离开房间后调用
func (r *Registry) Unseat(playerID string) {
	if e, ok := r.byPlayer[playerID]; ok {
		e.player.State = PlayerInLobby
		e.player.RoomID = ""
	}
}

// Probe 一轮心跳：上一轮没回 pong 的连接判定死亡并返回，其余的发送 ping
func (r *Registry) Probe(now time.Time) (probed int, dead []string) {
	for connID, e := range r.byConn {
		if e.awaitingPong {
			dead = append(dead, connID)
			continue
		}
		if err := e.conn.Ping(); err != nil {
			dead = append(dead, connID)
			continue
		}
		e.awaitingPong = true
		e.probeSentAt = now
		probed++
	}
	sort.Strings(dead)
	return probed, dead
}

// Pong 收到回应，记录往返延迟
func (r *Registry) Pong(connID string, now time.Time) {
	e, ok := r.byConn[connID]
	if !ok || !e.awaitingPong {
		return
	}
	e.awaitingPong = false
	e.latency = now.Sub(e.probeSentAt)
}

func (r *Registry) Latency(connID string) (time.Duration, bool) {
	e, ok := r.byConn[connID]
	if !ok {
		return 0, false
	}
	return e.latency, true
}

func (r *Registry) Len() int {
	return len(r.byConn)
}

// Connections 停服时逐个通知关闭
func (r *Registry) Connections() []Connection {
	conns := make([]Connection, 0, len(r.byConn))
	for _, e := range r.byConn {
		conns = append(conns, e.conn)
	}
	return conns
}
