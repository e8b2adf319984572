package api

import (
	"time"

	"lobby/common/http"
	"lobby/common/log"
	"lobby/framework/game"
	"lobby/framework/protocol"
)

// PingHandler ping 检查
func (a *API) PingHandler(c *http.Context) error {
	c.Success(map[string]interface{}{
		"message":   "pong",
		"timestamp": time.Now().Unix(),
		"service":   "hall",
	})
	return nil
}

// HealthHandler 健康检查，lobby 协程已停止时返回 503
func (a *API) HealthHandler(c *http.Context) error {
	stats, err := a.lobby.Stats(c.Request().Context())
	if err != nil {
		log.Warn("健康检查失败: %v", err)
		c.ServiceUnavailable("lobby worker unavailable")
		return nil
	}
	current, accepted, rejected := a.transport.Stats()

	load := game.LoadInfo{
		RoomCount:       stats.Rooms,
		PlayerCount:     stats.Players,
		ConnectionCount: int(current),
	}
	load.SampleSystem()
	load.Score = load.CalculateLoad(a.maxConnections)

	c.Success(map[string]interface{}{
		"status":            "ok",
		"node":              a.nodeID,
		"rooms":             stats.Rooms,
		"players":           stats.Players,
		"seatedPlayers":     stats.SeatedPlayers,
		"connections":       current,
		"accepted":          accepted,
		"rejected":          rejected,
		"messagesProcessed": stats.MessagesProcessed,
		"protocolErrors":    stats.ProtocolErrors,
		"droppedMessages":   stats.DroppedMessages,
		"uptimeSeconds":     int64(time.Since(a.started).Seconds()),
		"load":              load,
	})
	return nil
}

type modeInfo struct {
	Mode     string `json:"mode"`
	Capacity int    `json:"capacity"`
}

// InfoHandler 服务元信息，客户端据此展示可选模式
func (a *API) InfoHandler(c *http.Context) error {
	modes := make([]modeInfo, 0, len(game.Modes))
	for _, m := range game.Modes {
		modes = append(modes, modeInfo{Mode: string(m), Capacity: m.Capacity()})
	}
	c.Success(map[string]interface{}{
		"service":      "hall",
		"node":         a.nodeID,
		"version":      Version,
		"gameModes":    modes,
		"messageKinds": protocol.ClientKinds,
		"limits": map[string]int{
			"maxNameLength":    protocol.MaxNameLength,
			"maxMessageLength": protocol.MaxMessageLength,
			"roomCodeLength":   game.RoomCodeLength,
		},
	})
	return nil
}
