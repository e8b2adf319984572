package dto

import "errors"

// 错误分类，客户端只会收到分类对应的 code
var (
	ErrProtocol     = errors.New("protocol error")
	ErrNotFound     = errors.New("not found")
	ErrCapacity     = errors.New("capacity exceeded")
	ErrState        = errors.New("invalid state")
	ErrUnauthorized = errors.New("unauthorized")
)

// 协议相关错误
var (
	ErrInvalidMessage   = errors.New("invalid message")
	ErrUnknownKind      = errors.New("unknown message kind")
	ErrMessageUnmarshal = errors.New("message unmarshal error")
	ErrMissingField     = errors.New("missing required field")
	ErrInvalidGameMode  = errors.New("invalid game mode")
)

// 房间相关错误
var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrRoomFull       = errors.New("room is full")
	ErrAlreadyStarted = errors.New("game already started")
	ErrAlreadyInRoom  = errors.New("player already in a room")
	ErrNotInRoom      = errors.New("player not in this room")
	ErrNotHost        = errors.New("only the host can do that")
)

// 连接相关错误
var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrSendChanFull     = errors.New("send channel full")
	ErrNotConnected     = errors.New("not connected")
	ErrPlayerNotFound   = errors.New("player not found")
)

// 错误码，随 error 消息一起下发
const (
	CodeProtocol     = "protocol_error"
	CodeNotFound     = "not_found"
	CodeCapacity     = "capacity_error"
	CodeState        = "state_error"
	CodeUnauthorized = "unauthorized"
	CodeInternal     = "internal_error"
)

var kinds = map[error][]error{
	ErrProtocol:     {ErrInvalidMessage, ErrUnknownKind, ErrMessageUnmarshal, ErrMissingField, ErrInvalidGameMode},
	ErrNotFound:     {ErrRoomNotFound, ErrPlayerNotFound},
	ErrCapacity:     {ErrRoomFull},
	ErrState:        {ErrAlreadyStarted, ErrAlreadyInRoom, ErrNotInRoom},
	ErrUnauthorized: {ErrNotHost},
}

// Kind 返回错误所属分类，不属于任何分类时返回 nil
func Kind(err error) error {
	if err == nil {
		return nil
	}
	for kind, members := range kinds {
		if errors.Is(err, kind) {
			return kind
		}
		for _, member := range members {
			if errors.Is(err, member) {
				return kind
			}
		}
	}
	return nil
}

// MapError 把内部错误映射为下发给客户端的 code
func MapError(err error) string {
	switch Kind(err) {
	case ErrProtocol:
		return CodeProtocol
	case ErrNotFound:
		return CodeNotFound
	case ErrCapacity:
		return CodeCapacity
	case ErrState:
		return CodeState
	case ErrUnauthorized:
		return CodeUnauthorized
	default:
		return CodeInternal
	}
}
