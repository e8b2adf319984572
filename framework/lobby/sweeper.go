package lobby

import (
	"time"

	"github.com/gorilla/websocket"

	"lobby/common/log"
	"lobby/framework/stream"
)

// SweepReport 一轮巡检的结果
type SweepReport struct {
	Probed  int
	Dead    []string // 被判定死亡的玩家
	Orphans []string // 座位上找不到连接的玩家
	Reaped  []string // 被回收的空房间
}

// sweep 心跳探测、孤儿座位清理、空房间回收
func (w *Worker) sweep(now time.Time) SweepReport {
	var report SweepReport

	probed, dead := w.conns.Probe(now)
	report.Probed = probed
	for _, connID := range dead {
		player, ok := w.conns.ByConnection(connID)
		if !ok {
			continue
		}
		w.conns.Close(connID, websocket.CloseGoingAway, "ping timeout")
		w.conns.Unregister(connID)
		w.leaveRoom(player.ID)
		report.Dead = append(report.Dead, player.ID)
	}

	// 兜底：正常路径下断线时已经离开房间
	for _, room := range w.rooms.Rooms() {
		for _, playerID := range room.PlayerIDs() {
			if _, ok := w.conns.Player(playerID); ok {
				continue
			}
			w.leaveRoom(playerID)
			report.Orphans = append(report.Orphans, playerID)
		}
	}

	for _, room := range w.rooms.ReapIdle(now, w.opts.IdleRoomTimeout) {
		w.notify(stream.RoomRemoved, room, stream.ReasonReaped)
		report.Reaped = append(report.Reaped, room.ID)
	}

	if len(report.Dead) > 0 || len(report.Orphans) > 0 || len(report.Reaped) > 0 {
		log.Info("lobby 巡检: 探测 %d，死亡连接 %d，孤儿座位 %d，回收房间 %d",
			report.Probed, len(report.Dead), len(report.Orphans), len(report.Reaped))
	} else {
		log.Debug("lobby 巡检: 探测 %d 个连接", report.Probed)
	}
	return report
}
