package api

import (
	"strings"

	"lobby/common/http"
	"lobby/framework/protocol"
)

// ListRoomsHandler 房间列表，state=open 时只返回可加入的房间
func (a *API) ListRoomsHandler(c *http.Context) error {
	state := strings.ToLower(c.GetQuery("state"))
	if state != "" && state != "open" {
		c.BadRequest("state 只支持 open")
		return nil
	}

	rooms, err := a.lobby.Rooms(c.Request().Context(), state == "open")
	if err != nil {
		c.ServiceUnavailable("")
		return nil
	}
	if rooms == nil {
		rooms = []protocol.RoomInfo{}
	}
	c.Success(map[string]interface{}{
		"total": len(rooms),
		"rooms": rooms,
	})
	return nil
}

// GetRoomHandler 单个房间，房间号大小写不敏感
func (a *API) GetRoomHandler(c *http.Context) error {
	roomID := strings.ToUpper(strings.TrimSpace(c.GetParam("roomId")))
	info, found, err := a.lobby.Room(c.Request().Context(), roomID)
	if err != nil {
		c.ServiceUnavailable("")
		return nil
	}
	if !found {
		c.NotFound("room not found")
		return nil
	}
	c.Success(info)
	return nil
}
