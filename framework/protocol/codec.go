package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"lobby/dto"
)

const (
	MaxNameLength    = 24
	MaxMessageLength = 500
)

// Envelope 所有消息的外层结构 {kind, data}
type Envelope struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data,omitempty"`
}

type outbound struct {
	Kind string `json:"kind"`
	Data any    `json:"data"`
}

// Encode 序列化一条下行消息
func Encode(kind string, data any) ([]byte, error) {
	buf, err := json.Marshal(outbound{Kind: kind, Data: data})
	if err != nil {
		return nil, fmt.Errorf("encode %s: %v: %w", kind, err, dto.ErrInvalidMessage)
	}
	return buf, nil
}

// Decode 解析一条上行消息，返回的错误都属于 dto.ErrProtocol
func Decode(raw []byte) (ClientMessage, error) {
	var env Envelope
	if err := strictUnmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("envelope: %v: %w", err, dto.ErrMessageUnmarshal)
	}
	if env.Kind == "" {
		return nil, fmt.Errorf("envelope kind: %w", dto.ErrMissingField)
	}

	msg, err := newMessage(env.Kind)
	if err != nil {
		return nil, err
	}

	// data 可以省略，等价于空对象
	data := bytes.TrimSpace(env.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		data = []byte("{}")
	}
	if err := strictUnmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("%s: %v: %w", env.Kind, err, dto.ErrMessageUnmarshal)
	}
	if err := validate(msg); err != nil {
		return nil, fmt.Errorf("%s: %w", env.Kind, err)
	}
	return msg, nil
}

func newMessage(kind string) (ClientMessage, error) {
	switch kind {
	case KindRegisterPlayer:
		return &RegisterPlayer{}, nil
	case KindCreateRoom:
		return &CreateRoom{}, nil
	case KindJoinRoom:
		return &JoinRoom{}, nil
	case KindLeaveRoom:
		return &LeaveRoom{}, nil
	case KindStartGame:
		return &StartGame{}, nil
	case KindGameState:
		return &GameState{}, nil
	case KindPlayerInput:
		return &PlayerInput{}, nil
	case KindChatMessage:
		return &ChatMessage{}, nil
	case KindPing:
		return &Ping{}, nil
	default:
		return nil, fmt.Errorf("%q: %w", kind, dto.ErrUnknownKind)
	}
}

// strictUnmarshal 多余字段以及尾随数据都视为协议错误
func strictUnmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	// More 遇到多余的 } 或 ] 会返回 false，这里要求必须读到 EOF
	if _, err := dec.Token(); err != io.EOF {
		return fmt.Errorf("trailing data after object")
	}
	return nil
}

func validate(msg ClientMessage) error {
	var err error
	switch m := msg.(type) {
	case *RegisterPlayer:
		m.Name, err = cleanField("name", m.Name)
	case *CreateRoom:
		if m.GameMode == "" {
			return fmt.Errorf("gameMode: %w", dto.ErrMissingField)
		}
		m.PlayerName, err = cleanField("playerName", m.PlayerName)
	case *JoinRoom:
		if m.RoomID, err = cleanRoomID(m.RoomID); err != nil {
			return err
		}
		m.PlayerName, err = cleanField("playerName", m.PlayerName)
	case *LeaveRoom, *Ping:
	case *StartGame:
		m.RoomID, err = cleanRoomID(m.RoomID)
	case *GameState:
		if m.RoomID, err = cleanRoomID(m.RoomID); err != nil {
			return err
		}
		err = requireBlob("state", m.State)
	case *PlayerInput:
		if m.RoomID, err = cleanRoomID(m.RoomID); err != nil {
			return err
		}
		err = requireBlob("input", m.Input)
	case *ChatMessage:
		if m.RoomID, err = cleanRoomID(m.RoomID); err != nil {
			return err
		}
		if strings.TrimSpace(m.Message) == "" {
			return fmt.Errorf("message: %w", dto.ErrMissingField)
		}
		if utf8.RuneCountInString(m.Message) > MaxMessageLength {
			return fmt.Errorf("message longer than %d characters: %w", MaxMessageLength, dto.ErrInvalidMessage)
		}
	default:
		return fmt.Errorf("%T: %w", msg, dto.ErrUnknownKind)
	}
	return err
}

// CleanName 去掉首尾空白并校验长度
func CleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", dto.ErrMissingField
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return "", fmt.Errorf("longer than %d characters: %w", MaxNameLength, dto.ErrInvalidMessage)
	}
	return name, nil
}

func cleanField(field, name string) (string, error) {
	cleaned, err := CleanName(name)
	if err != nil {
		return "", fmt.Errorf("%s: %w", field, err)
	}
	return cleaned, nil
}

// 房间号大小写不敏感
func cleanRoomID(roomID string) (string, error) {
	roomID = strings.ToUpper(strings.TrimSpace(roomID))
	if roomID == "" {
		return "", fmt.Errorf("roomId: %w", dto.ErrMissingField)
	}
	return roomID, nil
}

func requireBlob(field string, blob json.RawMessage) error {
	trimmed := bytes.TrimSpace(blob)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return fmt.Errorf("%s: %w", field, dto.ErrMissingField)
	}
	return nil
}
