package game

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"lobby/dto"
	"lobby/framework/protocol"
)

// Mode 游戏模式，决定房间容量
type Mode string

const (
	Mode2P Mode = "2p"
	Mode4P Mode = "4p"
)

// Modes 支持的模式，/info 接口按这个顺序展示
var Modes = []Mode{Mode2P, Mode4P}

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case Mode2P, Mode4P:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("%q: %w", s, dto.ErrInvalidGameMode)
	}
}

// Capacity 模式对应的座位数
func (m Mode) Capacity() int {
	switch m {
	case Mode2P:
		return 2
	case Mode4P:
		return 4
	default:
		return 0
	}
}

// RoomState 房间状态
type RoomState int

const (
	RoomStateNew        RoomState = iota // 刚创建，房主还未入座
	RoomStateOpen                        // 有空位，未开始
	RoomStateFull                        // 满员，未开始
	RoomStateInProgress                  // 已开始，不会回到之前的状态
	RoomStateRemoved                     // 已从注册表移除
)

func (s RoomState) String() string {
	switch s {
	case RoomStateNew:
		return "NEW"
	case RoomStateOpen:
		return "OPEN"
	case RoomStateFull:
		return "FULL"
	case RoomStateInProgress:
		return "IN_PROGRESS"
	case RoomStateRemoved:
		return "REMOVED"
	default:
		return fmt.Sprintf("RoomState(%d)", int(s))
	}
}

// Seat 一个被占用的座位
type Seat struct {
	PlayerID string
	Name     string
	Index    int
	JoinedAt time.Time
}

// Room 游戏房间
// 只能由 RoomManager 修改，不加锁，由 lobby.Worker 单协程持有
type Room struct {
	ID        string
	HostID    string
	Mode      Mode
	CreatedAt time.Time

	seats        map[string]*Seat // playerID -> Seat
	order        []string         // 入座顺序，房主迁移取第一个
	started      bool
	state        RoomState
	gameState    json.RawMessage // 房主上报的最新状态，不解析
	lastActivity time.Time
}

func newRoom(id string, mode Mode, now time.Time) *Room {
	return &Room{
		ID:           id,
		Mode:         mode,
		CreatedAt:    now,
		seats:        make(map[string]*Seat, mode.Capacity()),
		state:        RoomStateNew,
		lastActivity: now,
	}
}

func (r *Room) Capacity() int {
	return r.Mode.Capacity()
}

func (r *Room) Len() int {
	return len(r.seats)
}

func (r *Room) IsFull() bool {
	return len(r.seats) >= r.Capacity()
}

func (r *Room) IsEmpty() bool {
	return len(r.seats) == 0
}

func (r *Room) Started() bool {
	return r.started
}

func (r *Room) State() RoomState {
	return r.state
}

func (r *Room) LastActivity() time.Time {
	return r.lastActivity
}

// GameState 最近一次房主上报的状态
func (r *Room) GameState() json.RawMessage {
	return r.gameState
}

// Seat 查询玩家的座位
func (r *Room) Seat(playerID string) (Seat, bool) {
	seat, ok := r.seats[playerID]
	if !ok {
		return Seat{}, false
	}
	return *seat, true
}

// Seats 按入座顺序返回
func (r *Room) Seats() []Seat {
	seats := make([]Seat, 0, len(r.order))
	for _, playerID := range r.order {
		seats = append(seats, *r.seats[playerID])
	}
	return seats
}

// PlayerIDs 按入座顺序返回，广播时使用
func (r *Room) PlayerIDs() []string {
	ids := make([]string, len(r.order))
	copy(ids, r.order)
	return ids
}

// Info 房间快照，座位按座位号排序
func (r *Room) Info() protocol.RoomInfo {
	players := make([]protocol.SeatInfo, 0, len(r.seats))
	for _, seat := range r.seats {
		players = append(players, protocol.SeatInfo{
			PlayerID: seat.PlayerID,
			Name:     seat.Name,
			Index:    seat.Index,
			IsHost:   seat.PlayerID == r.HostID,
		})
	}
	sort.Slice(players, func(i, j int) bool { return players[i].Index < players[j].Index })

	return protocol.RoomInfo{
		RoomID:   r.ID,
		HostID:   r.HostID,
		GameMode: string(r.Mode),
		Capacity: r.Capacity(),
		Started:  r.started,
		State:    r.state.String(),
		Players:  players,
	}
}

// addSeat 分配座位，preferred 有效且空闲时优先使用
func (r *Room) addSeat(playerID, name string, preferred *int, now time.Time) (int, error) {
	if r.started {
		return -1, fmt.Errorf("room %s: %w", r.ID, dto.ErrAlreadyStarted)
	}
	if r.IsFull() {
		return -1, fmt.Errorf("room %s, capacity %d: %w", r.ID, r.Capacity(), dto.ErrRoomFull)
	}
	if _, exists := r.seats[playerID]; exists {
		return -1, fmt.Errorf("room %s: %w", r.ID, dto.ErrAlreadyInRoom)
	}

	index := r.findAvailableSeat(preferred)
	if index < 0 {
		return -1, fmt.Errorf("room %s has no free seat: %w", r.ID, dto.ErrRoomFull)
	}

	r.seats[playerID] = &Seat{PlayerID: playerID, Name: name, Index: index, JoinedAt: now}
	r.order = append(r.order, playerID)
	r.lastActivity = now
	r.refreshState()
	return index, nil
}

// findAvailableSeat 线性扫描 [0, capacity)，返回第一个空位
func (r *Room) findAvailableSeat(preferred *int) int {
	occupied := make(map[int]bool, len(r.seats))
	for _, seat := range r.seats {
		occupied[seat.Index] = true
	}

	if preferred != nil && *preferred >= 0 && *preferred < r.Capacity() && !occupied[*preferred] {
		return *preferred
	}
	for i := 0; i < r.Capacity(); i++ {
		if !occupied[i] {
			return i
		}
	}
	return -1
}

// removeSeat 移除座位，房主离开时迁移给最早入座的玩家
func (r *Room) removeSeat(playerID string, now time.Time) (seat Seat, hostChanged bool, ok bool) {
	removed, exists := r.seats[playerID]
	if !exists {
		return Seat{}, false, false
	}

	delete(r.seats, playerID)
	for i, id := range r.order {
		if id == playerID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	if r.HostID == playerID && len(r.order) > 0 {
		r.HostID = r.order[0]
		hostChanged = true
	}
	r.lastActivity = now
	r.refreshState()
	return *removed, hostChanged, true
}

func (r *Room) refreshState() {
	switch {
	case r.state == RoomStateRemoved:
	case r.started:
		r.state = RoomStateInProgress
	case r.IsFull():
		r.state = RoomStateFull
	case len(r.seats) > 0:
		r.state = RoomStateOpen
	}
}

func (r *Room) markRemoved() {
	r.state = RoomStateRemoved
}
