package repository

import (
	"context"
	"time"

	"lobby/framework/protocol"
)

// RoomDirectoryRepository 房间目录仓储接口
// 保存本节点房间的只读快照，供外部服务展示在线房间；权威状态始终在 lobby 协程里
type RoomDirectoryRepository interface {
	// SaveRoom 写入或覆盖房间快照，ttl 到期后自动清理
	SaveRoom(ctx context.Context, info protocol.RoomInfo, ttl time.Duration) error

	// GetRoom 获取房间快照，不存在返回 ErrRoomNotFound
	GetRoom(ctx context.Context, roomID string) (protocol.RoomInfo, error)

	// DeleteRoom 房间删除时调用
	DeleteRoom(ctx context.Context, roomID string) error

	// ListRoomIDs 本节点登记过的房间号
	ListRoomIDs(ctx context.Context) ([]string, error)
}
