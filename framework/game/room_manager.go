package game

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"lobby/common/log"
	"lobby/dto"
)

const maxCodeAttempts = 32

var errCodeExhausted = errors.New("room code space exhausted")

// LeaveResult 玩家离开后的结果
type LeaveResult struct {
	Room        *Room
	Seat        Seat
	HostChanged bool
	Removed     bool // 房间已空并从注册表删除
}

// RoomManager 房间管理器
// 持有全部房间和玩家到房间的索引；不是并发安全的，只能由 lobby.Worker 调用
type RoomManager struct {
	rooms      map[string]*Room  // roomID -> Room
	playerRoom map[string]string // playerID -> roomID
	generate   CodeGenerator
	retired    RetiredCodes
}

type Option func(*RoomManager)

// WithCodeGenerator 替换房间号生成方式，测试里用固定序列
func WithCodeGenerator(generate CodeGenerator) Option {
	return func(rm *RoomManager) {
		rm.generate = generate
	}
}

// WithRetiredCodes 注入房间号保留表
func WithRetiredCodes(retired RetiredCodes) Option {
	return func(rm *RoomManager) {
		rm.retired = retired
	}
}

// NewRoomManager 创建房间管理器
func NewRoomManager(opts ...Option) *RoomManager {
	rm := &RoomManager{
		rooms:      make(map[string]*Room),
		playerRoom: make(map[string]string),
		generate:   GenerateRoomCode,
	}
	for _, opt := range opts {
		opt(rm)
	}
	return rm
}

// CreateRoom 创建房间，房主坐 0 号位
func (rm *RoomManager) CreateRoom(hostID, hostName, mode string, now time.Time) (*Room, error) {
	m, err := ParseMode(mode)
	if err != nil {
		return nil, err
	}
	if roomID, exists := rm.playerRoom[hostID]; exists {
		return nil, fmt.Errorf("player %s in room %s: %w", hostID, roomID, dto.ErrAlreadyInRoom)
	}

	roomID, err := rm.nextCode()
	if err != nil {
		return nil, err
	}

	room := newRoom(roomID, m, now)
	zero := 0
	if _, err := room.addSeat(hostID, hostName, &zero, now); err != nil {
		return nil, err
	}
	room.HostID = hostID

	rm.rooms[room.ID] = room
	rm.playerRoom[hostID] = room.ID
	log.Info("RoomManager 创建房间 %s，模式: %s，房主: %s", room.ID, m, hostID)
	return room, nil
}

func (rm *RoomManager) nextCode() (string, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code, err := rm.generate()
		if err != nil {
			return "", err
		}
		if _, exists := rm.rooms[code]; exists {
			continue
		}
		if rm.retired != nil && rm.retired.IsRetired(code) {
			continue
		}
		return code, nil
	}
	return "", errCodeExhausted
}

// JoinRoom 加入房间，返回分配的座位号
func (rm *RoomManager) JoinRoom(playerID, roomID, name string, preferred *int, now time.Time) (*Room, int, error) {
	if current, exists := rm.playerRoom[playerID]; exists {
		return nil, -1, fmt.Errorf("player %s in room %s: %w", playerID, current, dto.ErrAlreadyInRoom)
	}

	room, exists := rm.rooms[roomID]
	if !exists {
		return nil, -1, fmt.Errorf("room %s: %w", roomID, dto.ErrRoomNotFound)
	}

	index, err := room.addSeat(playerID, name, preferred, now)
	if err != nil {
		return nil, -1, err
	}

	rm.playerRoom[playerID] = roomID
	log.Info("RoomManager 玩家 %s 加入房间 %s，座位: %d，状态: %s", playerID, roomID, index, room.State())
	return room, index, nil
}

// LeaveRoom 玩家离开当前房间，不在任何房间时返回 false
func (rm *RoomManager) LeaveRoom(playerID string, now time.Time) (LeaveResult, bool) {
	roomID, exists := rm.playerRoom[playerID]
	if !exists {
		return LeaveResult{}, false
	}
	delete(rm.playerRoom, playerID)

	room, exists := rm.rooms[roomID]
	if !exists {
		log.Warn("RoomManager 玩家 %s 指向不存在的房间 %s", playerID, roomID)
		return LeaveResult{}, false
	}

	seat, hostChanged, ok := room.removeSeat(playerID, now)
	if !ok {
		log.Warn("RoomManager 玩家 %s 不在房间 %s 的座位表中", playerID, roomID)
		return LeaveResult{}, false
	}

	result := LeaveResult{Room: room, Seat: seat, HostChanged: hostChanged}
	if room.IsEmpty() {
		rm.removeRoom(room)
		result.Removed = true
		log.Info("RoomManager 玩家 %s 离开后房间 %s 已空，删除", playerID, roomID)
		return result, true
	}

	if hostChanged {
		log.Info("RoomManager 房间 %s 房主迁移: %s -> %s", roomID, playerID, room.HostID)
	}
	log.Info("RoomManager 玩家 %s 离开房间 %s，座位: %d", playerID, roomID, seat.Index)
	return result, true
}

// StartGame 房主开始游戏，开始后不可撤销
func (rm *RoomManager) StartGame(requesterID, roomID string, now time.Time) (*Room, error) {
	room, exists := rm.rooms[roomID]
	if !exists {
		return nil, fmt.Errorf("room %s: %w", roomID, dto.ErrRoomNotFound)
	}
	if room.HostID != requesterID {
		return nil, fmt.Errorf("start_game in room %s: %w", roomID, dto.ErrNotHost)
	}
	if room.started {
		return nil, fmt.Errorf("room %s: %w", roomID, dto.ErrAlreadyStarted)
	}

	room.started = true
	room.lastActivity = now
	room.refreshState()
	log.Info("RoomManager 房间 %s 开始游戏，玩家数: %d", roomID, room.Len())
	return room, nil
}

// SetGameState 保存房主上报的状态
func (rm *RoomManager) SetGameState(requesterID, roomID string, state json.RawMessage, now time.Time) (*Room, error) {
	room, _, err := rm.RequireSeat(requesterID, roomID)
	if err != nil {
		return nil, err
	}
	if room.HostID != requesterID {
		return nil, fmt.Errorf("game_state in room %s: %w", roomID, dto.ErrNotHost)
	}

	room.gameState = append(json.RawMessage(nil), state...)
	room.lastActivity = now
	return room, nil
}

// RequireSeat 校验玩家确实坐在该房间
func (rm *RoomManager) RequireSeat(playerID, roomID string) (*Room, Seat, error) {
	room, exists := rm.rooms[roomID]
	if !exists {
		return nil, Seat{}, fmt.Errorf("room %s: %w", roomID, dto.ErrRoomNotFound)
	}
	seat, ok := room.Seat(playerID)
	if !ok {
		return nil, Seat{}, fmt.Errorf("player %s, room %s: %w", playerID, roomID, dto.ErrNotInRoom)
	}
	return room, seat, nil
}

// RenameSeat 已入座的玩家改名时同步座位上的昵称，不在房间时返回 false
func (rm *RoomManager) RenameSeat(playerID, name string, now time.Time) (*Room, bool) {
	roomID, exists := rm.playerRoom[playerID]
	if !exists {
		return nil, false
	}
	room, exists := rm.rooms[roomID]
	if !exists {
		return nil, false
	}
	seat, ok := room.seats[playerID]
	if !ok {
		return nil, false
	}
	seat.Name = name
	room.lastActivity = now
	return room, true
}

// Touch 刷新房间活跃时间
func (rm *RoomManager) Touch(roomID string, now time.Time) {
	if room, exists := rm.rooms[roomID]; exists {
		room.lastActivity = now
	}
}

// ReapIdle 删除空置超过 idle 的房间，有人的房间无论多久都不删
func (rm *RoomManager) ReapIdle(now time.Time, idle time.Duration) []*Room {
	var reaped []*Room
	for id, room := range rm.rooms {
		if !room.IsEmpty() {
			continue
		}
		if now.Sub(room.lastActivity) <= idle {
			continue
		}
		rm.removeRoom(room)
		reaped = append(reaped, room)
		log.Warn("RoomManager 回收闲置空房间 %s，最后活跃: %s", id, room.lastActivity.Format(time.DateTime))
	}
	sort.Slice(reaped, func(i, j int) bool { return reaped[i].ID < reaped[j].ID })
	return reaped
}

// Close 停服时清空所有房间
func (rm *RoomManager) Close() []*Room {
	rooms := rm.Rooms()
	for _, room := range rooms {
		rm.removeRoom(room)
	}
	return rooms
}

func (rm *RoomManager) removeRoom(room *Room) {
	for _, playerID := range room.order {
		delete(rm.playerRoom, playerID)
	}
	delete(rm.rooms, room.ID)
	room.markRemoved()
	if rm.retired != nil {
		rm.retired.Retire(room.ID)
	}
}

// GetRoom 获取房间
func (rm *RoomManager) GetRoom(roomID string) (*Room, bool) {
	room, exists := rm.rooms[roomID]
	return room, exists
}

// GetPlayerRoom 获取玩家所在房间
func (rm *RoomManager) GetPlayerRoom(playerID string) (*Room, bool) {
	roomID, exists := rm.playerRoom[playerID]
	if !exists {
		return nil, false
	}
	room, exists := rm.rooms[roomID]
	return room, exists
}

// Rooms 按创建时间返回全部房间
func (rm *RoomManager) Rooms() []*Room {
	rooms := make([]*Room, 0, len(rm.rooms))
	for _, room := range rm.rooms {
		rooms = append(rooms, room)
	}
	sort.Slice(rooms, func(i, j int) bool {
		if rooms[i].CreatedAt.Equal(rooms[j].CreatedAt) {
			return rooms[i].ID < rooms[j].ID
		}
		return rooms[i].CreatedAt.Before(rooms[j].CreatedAt)
	})
	return rooms
}

// GetStats 房间数和入座玩家数
func (rm *RoomManager) GetStats() (roomCount int, playerCount int) {
	return len(rm.rooms), len(rm.playerRoom)
}
