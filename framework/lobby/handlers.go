package lobby

import (
	"lobby/framework/conn"
	"lobby/framework/game"
	"lobby/framework/protocol"
	"lobby/framework/stream"
)

func (w *Worker) registerPlayer(c conn.Connection, player conn.Player, m *protocol.RegisterPlayer) error {
	if err := w.conns.Bind(c.ID(), m.Name); err != nil {
		return err
	}
	w.send(c, protocol.KindPlayerRegistered, protocol.PlayerRegistered{PlayerID: player.ID, Name: m.Name})

	// 已入座时座位昵称跟着改，房间里其他人需要看到新名字
	if room, seated := w.rooms.RenameSeat(player.ID, m.Name, w.now()); seated {
		w.broadcastToRoom(room, protocol.KindRoomUpdated, protocol.RoomUpdated{RoomInfo: room.Info()}, player.ID)
		w.notify(stream.RoomUpdated, room, "")
	}
	return nil
}

func (w *Worker) createRoom(c conn.Connection, player conn.Player, m *protocol.CreateRoom) error {
	room, err := w.rooms.CreateRoom(player.ID, m.PlayerName, m.GameMode, w.now())
	if err != nil {
		return err
	}
	w.seat(c, player.ID, m.PlayerName, room)

	w.send(c, protocol.KindRoomCreated, protocol.RoomCreated{RoomInfo: room.Info()})
	w.send(c, protocol.KindPlayerAssigned, protocol.PlayerAssigned{RoomID: room.ID, PlayerID: player.ID, Index: 0})
	w.notify(stream.RoomCreated, room, "")
	return nil
}

func (w *Worker) joinRoom(c conn.Connection, player conn.Player, m *protocol.JoinRoom) error {
	room, index, err := w.rooms.JoinRoom(player.ID, m.RoomID, m.PlayerName, m.PreferredIndex, w.now())
	if err != nil {
		return err
	}
	w.seat(c, player.ID, m.PlayerName, room)

	info := room.Info()
	w.send(c, protocol.KindRoomJoined, protocol.RoomJoined{RoomInfo: info})
	w.send(c, protocol.KindPlayerAssigned, protocol.PlayerAssigned{RoomID: room.ID, PlayerID: player.ID, Index: index})
	w.broadcastToRoom(room, protocol.KindPlayerJoined, protocol.PlayerJoined{
		RoomID:   room.ID,
		PlayerID: player.ID,
		Name:     m.PlayerName,
		Index:    index,
	}, player.ID)
	w.broadcastToRoom(room, protocol.KindRoomUpdated, protocol.RoomUpdated{RoomInfo: info}, player.ID)
	w.notify(stream.RoomUpdated, room, "")
	return nil
}

// seat 入座成功后同步玩家状态，昵称以入座时提交的为准
func (w *Worker) seat(c conn.Connection, playerID, name string, room *game.Room) {
	_ = w.conns.Bind(c.ID(), name)
	_ = w.conns.Seat(playerID, room.ID)
}

// leaveRoom 主动离开和断线共用，不在房间时什么都不做
func (w *Worker) leaveRoom(playerID string) {
	res, ok := w.rooms.LeaveRoom(playerID, w.now())
	if !ok {
		return
	}
	w.conns.Unseat(playerID)

	if res.Removed {
		w.notify(stream.RoomRemoved, res.Room, stream.ReasonEmptied)
		return
	}

	room := res.Room
	w.broadcastToRoom(room, protocol.KindPlayerLeft, protocol.PlayerLeft{
		RoomID:   room.ID,
		PlayerID: playerID,
		Index:    res.Seat.Index,
		HostID:   room.HostID,
	}, "")
	w.broadcastToRoom(room, protocol.KindRoomUpdated, protocol.RoomUpdated{RoomInfo: room.Info()}, "")
	w.notify(stream.RoomUpdated, room, "")
}

func (w *Worker) startGame(player conn.Player, m *protocol.StartGame) error {
	room, err := w.rooms.StartGame(player.ID, m.RoomID, w.now())
	if err != nil {
		return err
	}
	w.broadcastToRoom(room, protocol.KindGameStarted, protocol.GameStarted{
		RoomInfo:  room.Info(),
		Timestamp: w.now().UnixMilli(),
	}, "")
	w.notify(stream.GameStarted, room, "")
	return nil
}

// relayGameState 房主状态原样转发给其他人
func (w *Worker) relayGameState(player conn.Player, m *protocol.GameState) error {
	room, err := w.rooms.SetGameState(player.ID, m.RoomID, m.State, w.now())
	if err != nil {
		return err
	}
	w.broadcastToRoom(room, protocol.KindGameState, protocol.GameStateRelay{RoomID: room.ID, State: m.State}, player.ID)
	return nil
}

func (w *Worker) relayInput(player conn.Player, m *protocol.PlayerInput) error {
	room, seat, err := w.rooms.RequireSeat(player.ID, m.RoomID)
	if err != nil {
		return err
	}
	w.broadcastToRoom(room, protocol.KindPlayerInput, protocol.PlayerInputRelay{
		RoomID:    room.ID,
		PlayerID:  player.ID,
		Index:     seat.Index,
		Input:     m.Input,
		Timestamp: w.now().UnixMilli(),
	}, player.ID)
	return nil
}

func (w *Worker) relayChat(player conn.Player, m *protocol.ChatMessage) error {
	room, seat, err := w.rooms.RequireSeat(player.ID, m.RoomID)
	if err != nil {
		return err
	}
	w.broadcastToRoom(room, protocol.KindChatMessage, protocol.ChatRelay{
		RoomID:     room.ID,
		PlayerID:   player.ID,
		PlayerName: seat.Name,
		Index:      seat.Index,
		Message:    m.Message,
		Timestamp:  w.now().UnixMilli(),
	}, player.ID)
	return nil
}
