package lobby

import (
	"sync/atomic"

	"lobby/common/log"
	"lobby/framework/conn"
	"lobby/framework/game"
	"lobby/framework/protocol"
)

// broadcastToRoom 发给房间内除 exclude 以外的所有人
// 投递失败只记录，不会改动座位；无论成功与否都刷新房间活跃时间
func (w *Worker) broadcastToRoom(room *game.Room, kind string, payload any, exclude string) {
	buf, err := protocol.Encode(kind, payload)
	if err != nil {
		log.Error("lobby 广播编码失败 room=%s kind=%s err=%v", room.ID, kind, err)
		return
	}

	for _, playerID := range room.PlayerIDs() {
		if playerID == exclude {
			continue
		}
		c, ok := w.conns.Lookup(playerID)
		if !ok {
			continue
		}
		if err := c.SendMessage(buf); err != nil {
			atomic.AddInt64(&w.stats.droppedMessages, 1)
			log.Debug("lobby 广播投递失败 room=%s player=%s kind=%s err=%v", room.ID, playerID, kind, err)
		}
	}
	w.rooms.Touch(room.ID, w.now())
}

func (w *Worker) send(c conn.Connection, kind string, payload any) {
	buf, err := protocol.Encode(kind, payload)
	if err != nil {
		log.Error("lobby 编码失败 kind=%s err=%v", kind, err)
		return
	}
	if err := c.SendMessage(buf); err != nil {
		atomic.AddInt64(&w.stats.droppedMessages, 1)
		log.Debug("lobby 投递失败 cid=%s kind=%s err=%v", c.ID(), kind, err)
	}
}
