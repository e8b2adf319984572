package protocol

import "encoding/json"

// 客户端 -> 服务端
const (
	KindRegisterPlayer = "register_player"
	KindCreateRoom     = "create_room"
	KindJoinRoom       = "join_room"
	KindLeaveRoom      = "leave_room"
	KindStartGame      = "start_game"
	KindGameState      = "game_state"
	KindPlayerInput    = "player_input"
	KindChatMessage    = "chat_message"
	KindPing           = "ping"
)

// 服务端 -> 客户端
const (
	KindConnected        = "connected"
	KindPlayerRegistered = "player_registered"
	KindRoomCreated      = "room_created"
	KindRoomJoined       = "room_joined"
	KindPlayerAssigned   = "player_assigned"
	KindPlayerJoined     = "player_joined"
	KindPlayerLeft       = "player_left"
	KindRoomUpdated      = "room_updated"
	KindGameStarted      = "game_started"
	KindPong             = "pong"
	KindError            = "error"
)

// ClientKinds 客户端可发送的全部消息类型，顺序即文档顺序
var ClientKinds = []string{
	KindRegisterPlayer,
	KindCreateRoom,
	KindJoinRoom,
	KindLeaveRoom,
	KindStartGame,
	KindGameState,
	KindPlayerInput,
	KindChatMessage,
	KindPing,
}

// ClientMessage 客户端消息，只有本包内的类型能实现
type ClientMessage interface {
	Kind() string
	clientMessage()
}

type RegisterPlayer struct {
	Name string `json:"name"`
}

type CreateRoom struct {
	GameMode   string `json:"gameMode"`
	PlayerName string `json:"playerName"`
}

type JoinRoom struct {
	RoomID         string `json:"roomId"`
	PlayerName     string `json:"playerName"`
	PreferredIndex *int   `json:"preferredIndex,omitempty"`
}

type LeaveRoom struct{}

type StartGame struct {
	RoomID string `json:"roomId"`
}

// GameState 房主下发的权威状态，服务端不解析
type GameState struct {
	RoomID string          `json:"roomId"`
	State  json.RawMessage `json:"state"`
}

type PlayerInput struct {
	RoomID string          `json:"roomId"`
	Input  json.RawMessage `json:"input"`
}

type ChatMessage struct {
	RoomID  string `json:"roomId"`
	Message string `json:"message"`
}

// Ping 客户端可以带上自己的时间戳，服务端原样忽略
type Ping struct {
	Timestamp int64 `json:"timestamp,omitempty"`
}

func (*RegisterPlayer) Kind() string { return KindRegisterPlayer }
func (*CreateRoom) Kind() string     { return KindCreateRoom }
func (*JoinRoom) Kind() string       { return KindJoinRoom }
func (*LeaveRoom) Kind() string      { return KindLeaveRoom }
func (*StartGame) Kind() string      { return KindStartGame }
func (*GameState) Kind() string      { return KindGameState }
func (*PlayerInput) Kind() string    { return KindPlayerInput }
func (*ChatMessage) Kind() string    { return KindChatMessage }
func (*Ping) Kind() string           { return KindPing }

func (*RegisterPlayer) clientMessage() {}
func (*CreateRoom) clientMessage()     {}
func (*JoinRoom) clientMessage()       {}
func (*LeaveRoom) clientMessage()      {}
func (*StartGame) clientMessage()      {}
func (*GameState) clientMessage()      {}
func (*PlayerInput) clientMessage()    {}
func (*ChatMessage) clientMessage()    {}
func (*Ping) clientMessage()           {}
