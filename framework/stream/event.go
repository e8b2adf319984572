package stream

import (
	"encoding/json"

	"lobby/framework/protocol"
)

// EventType 房间生命周期事件类型
type EventType string

const (
	RoomCreated EventType = "room_created"
	RoomUpdated EventType = "room_updated"
	GameStarted EventType = "game_started"
	RoomRemoved EventType = "room_removed"
)

// 房间删除原因
const (
	ReasonEmptied  = "emptied"
	ReasonReaped   = "reaped"
	ReasonShutdown = "shutdown"
)

// RoomEvent 推送给外部系统的房间事件，Room 是事件发生时的快照
type RoomEvent struct {
	Type      EventType         `json:"type"`
	NodeID    string            `json:"nodeId"`
	Room      protocol.RoomInfo `json:"room"`
	Reason    string            `json:"reason,omitempty"`
	Timestamp int64             `json:"timestamp"`
}

func (e *RoomEvent) Encode() ([]byte, error) {
	return json.Marshal(e)
}
