package protocol

import "encoding/json"

// SeatInfo 房间内一个座位
type SeatInfo struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Index    int    `json:"index"`
	IsHost   bool   `json:"isHost"`
}

// RoomInfo 房间快照，players 按座位号排序
type RoomInfo struct {
	RoomID   string     `json:"roomId"`
	HostID   string     `json:"hostId"`
	GameMode string     `json:"gameMode"`
	Capacity int        `json:"capacity"`
	Started  bool       `json:"started"`
	State    string     `json:"state"`
	Players  []SeatInfo `json:"players"`
}

type Connected struct {
	PlayerID string `json:"playerId"`
}

type PlayerRegistered struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
}

type RoomCreated struct {
	RoomInfo
}

type RoomJoined struct {
	RoomInfo
}

type RoomUpdated struct {
	RoomInfo
}

type PlayerAssigned struct {
	RoomID   string `json:"roomId"`
	PlayerID string `json:"playerId"`
	Index    int    `json:"index"`
}

type PlayerJoined struct {
	RoomID   string `json:"roomId"`
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Index    int    `json:"index"`
}

// PlayerLeft hostId 为离开之后的房主
type PlayerLeft struct {
	RoomID   string `json:"roomId"`
	PlayerID string `json:"playerId"`
	Index    int    `json:"index"`
	HostID   string `json:"hostId"`
}

type GameStarted struct {
	RoomInfo
	Timestamp int64 `json:"timestamp"`
}

type GameStateRelay struct {
	RoomID string          `json:"roomId"`
	State  json.RawMessage `json:"state"`
}

type PlayerInputRelay struct {
	RoomID    string          `json:"roomId"`
	PlayerID  string          `json:"playerId"`
	Index     int             `json:"index"`
	Input     json.RawMessage `json:"input"`
	Timestamp int64           `json:"timestamp"`
}

type ChatRelay struct {
	RoomID     string `json:"roomId"`
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	Index      int    `json:"index"`
	Message    string `json:"message"`
	Timestamp  int64  `json:"timestamp"`
}

type Pong struct {
	Timestamp int64 `json:"timestamp"`
}

type Error struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}
