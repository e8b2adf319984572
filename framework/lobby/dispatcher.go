package lobby

import (
	"fmt"
	"runtime/debug"
	"sync/atomic"

	"lobby/common/log"
	"lobby/dto"
	"lobby/framework/conn"
	"lobby/framework/protocol"
)

// handleMessage 解码后交给唯一的处理函数，错误只回给发送方
func (w *Worker) handleMessage(connID string, body []byte) {
	player, ok := w.conns.ByConnection(connID)
	if !ok {
		// 连接已被注销，丢弃残留消息
		return
	}
	c, ok := w.conns.Lookup(player.ID)
	if !ok {
		return
	}
	atomic.AddInt64(&w.stats.messageProcessed, 1)

	defer func() {
		if r := recover(); r != nil {
			log.Error("lobby 处理玩家 %s 消息 panic: %v\n%s", player.ID, r, debug.Stack())
			w.replyError(c, fmt.Errorf("internal error"))
		}
	}()

	msg, err := protocol.Decode(body)
	if err != nil {
		log.Debug("lobby 玩家 %s 消息解码失败: %v", player.ID, err)
		w.replyError(c, err)
		return
	}

	if err := w.dispatch(c, player, msg); err != nil {
		log.Debug("lobby 玩家 %s 处理 %s 失败: %v", player.ID, msg.Kind(), err)
		w.replyError(c, err)
	}
}

func (w *Worker) dispatch(c conn.Connection, player conn.Player, msg protocol.ClientMessage) error {
	switch m := msg.(type) {
	case *protocol.RegisterPlayer:
		return w.registerPlayer(c, player, m)
	case *protocol.CreateRoom:
		return w.createRoom(c, player, m)
	case *protocol.JoinRoom:
		return w.joinRoom(c, player, m)
	case *protocol.LeaveRoom:
		w.leaveRoom(player.ID)
		return nil
	case *protocol.StartGame:
		return w.startGame(player, m)
	case *protocol.GameState:
		return w.relayGameState(player, m)
	case *protocol.PlayerInput:
		return w.relayInput(player, m)
	case *protocol.ChatMessage:
		return w.relayChat(player, m)
	case *protocol.Ping:
		w.send(c, protocol.KindPong, protocol.Pong{Timestamp: w.now().UnixMilli()})
		return nil
	default:
		return fmt.Errorf("%s: %w", msg.Kind(), dto.ErrUnknownKind)
	}
}

// replyError 下发 error{message, code}，内部错误不暴露细节
func (w *Worker) replyError(c conn.Connection, err error) {
	code := dto.MapError(err)
	message := err.Error()
	switch code {
	case dto.CodeInternal:
		message = "internal error"
	case dto.CodeProtocol:
		atomic.AddInt64(&w.stats.protocolErrors, 1)
	}
	w.send(c, protocol.KindError, protocol.Error{Message: message, Code: code})
}
