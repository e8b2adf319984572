package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"lobby/core/domain/repository"
	"lobby/framework/protocol"
	"lobby/framework/stream"
)

const (
	roomKeyPrefix   = "hall:room"  // hall:room:<roomId> -> RoomInfo JSON
	roomIndexPrefix = "hall:rooms" // hall:rooms:<nodeId> -> set of roomId
)

// kvStore RedisManager 中目录用到的部分
type kvStore interface {
	Set(ctx context.Context, key, value string, expiration time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	SAdd(ctx context.Context, key string, members ...any) error
	SRem(ctx context.Context, key string, members ...any) error
	SMembers(ctx context.Context, key string) ([]string, error)
}

// RedisRoomDirectory Redis 实现的房间目录，同时作为事件处理器挂在 EventPublisher 上
type RedisRoomDirectory struct {
	store  kvStore
	nodeID string
	ttl    time.Duration
}

func NewRedisRoomDirectory(store kvStore, nodeID string, ttl time.Duration) *RedisRoomDirectory {
	return &RedisRoomDirectory{store: store, nodeID: nodeID, ttl: ttl}
}

var _ repository.RoomDirectoryRepository = (*RedisRoomDirectory)(nil)

func roomKey(roomID string) string {
	return roomKeyPrefix + ":" + roomID
}

func (r *RedisRoomDirectory) indexKey() string {
	return roomIndexPrefix + ":" + r.nodeID
}

func (r *RedisRoomDirectory) SaveRoom(ctx context.Context, info protocol.RoomInfo, ttl time.Duration) error {
	data, err := json.Marshal(info)
	if err != nil {
		return err
	}
	if err := r.store.Set(ctx, roomKey(info.RoomID), string(data), ttl); err != nil {
		return err
	}
	return r.store.SAdd(ctx, r.indexKey(), info.RoomID)
}

func (r *RedisRoomDirectory) GetRoom(ctx context.Context, roomID string) (protocol.RoomInfo, error) {
	var info protocol.RoomInfo
	data, err := r.store.Get(ctx, roomKey(roomID))
	if errors.Is(err, redis.Nil) {
		return info, fmt.Errorf("%s: %w", roomID, repository.ErrRoomNotFound)
	}
	if err != nil {
		return info, err
	}
	err = json.Unmarshal([]byte(data), &info)
	return info, err
}

func (r *RedisRoomDirectory) DeleteRoom(ctx context.Context, roomID string) error {
	if err := r.store.Del(ctx, roomKey(roomID)); err != nil {
		return err
	}
	return r.store.SRem(ctx, r.indexKey(), roomID)
}

func (r *RedisRoomDirectory) ListRoomIDs(ctx context.Context) ([]string, error) {
	return r.store.SMembers(ctx, r.indexKey())
}

func (r *RedisRoomDirectory) Name() string {
	return "redis-directory"
}

// HandleEvent 删除事件清理快照，其他事件覆盖写入
func (r *RedisRoomDirectory) HandleEvent(ctx context.Context, ev *stream.RoomEvent) error {
	if ev.Type == stream.RoomRemoved {
		return r.DeleteRoom(ctx, ev.Room.RoomID)
	}
	return r.SaveRoom(ctx, ev.Room, r.ttl)
}
