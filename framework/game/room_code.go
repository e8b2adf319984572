package game

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"lobby/common/cache"
)

const (
	RoomCodeLength = 6
	// 去掉了容易混淆的 0 O 1 I
	roomCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// CodeGenerator 生成房间号
type CodeGenerator func() (string, error)

// GenerateRoomCode 生成 6 位房间号，方便口头分享
func GenerateRoomCode() (string, error) {
	code := make([]byte, RoomCodeLength)
	max := big.NewInt(int64(len(roomCodeAlphabet)))
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("生成房间号失败: %w", err)
		}
		code[i] = roomCodeAlphabet[n.Int64()]
	}
	return string(code), nil
}

// RetiredCodes 最近回收的房间号，在保留期内不会再次分配
type RetiredCodes interface {
	Retire(code string)
	IsRetired(code string) bool
}

// RetiredCodeCache 基于 ristretto 的房间号保留表
type RetiredCodeCache struct {
	cache *cache.GeneralCache
	key   string
}

// NewRetiredCodeCache ttl 内刚解散的房间号不会分给新房间，避免老玩家误入
func NewRetiredCodeCache(maxCodes int64, ttl time.Duration) (*RetiredCodeCache, error) {
	generalCache, err := cache.NewGeneralCache(maxCodes, ttl)
	if err != nil {
		return nil, fmt.Errorf("创建房间号缓存失败: %w", err)
	}
	return &RetiredCodeCache{cache: generalCache, key: "room:retired"}, nil
}

func (c *RetiredCodeCache) Retire(code string) {
	c.cache.Set(fmt.Sprintf("%s:%s", c.key, code), struct{}{})
}

func (c *RetiredCodeCache) IsRetired(code string) bool {
	_, ok := c.cache.Get(fmt.Sprintf("%s:%s", c.key, code))
	return ok
}

func (c *RetiredCodeCache) Close() {
	c.cache.Close()
}
