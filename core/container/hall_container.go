package container

import (
	"context"
	"errors"

	"lobby/common/config"
	"lobby/common/database"
	"lobby/common/log"
	"lobby/common/utils"
	"lobby/core/infrastructure/realtime"
	"lobby/framework/conn"
	"lobby/framework/game"
	"lobby/framework/lobby"
	"lobby/framework/node"
)

// 保留表最多记录的房间号
const retiredCodeCapacity = 100000

// HallContainer hall 服务容器
// redis 和 nats 都是可选的，没有配置时房间协调照常工作，只是不对外发布事件
type HallContainer struct {
	conf      *config.HallConfiguration
	redis     *database.RedisManager
	nats      *node.NatsClient
	retired   *game.RetiredCodeCache
	publisher *node.EventPublisher
	lobby     *lobby.Worker
	transport *conn.Worker
}

// NewHallContainer 按配置组装依赖，外部服务连接失败直接返回错误
func NewHallContainer(ctx context.Context, conf *config.HallConfiguration) (*HallContainer, error) {
	c := &HallContainer{conf: conf}

	retired, err := game.NewRetiredCodeCache(retiredCodeCapacity, conf.IdleRoomTimeout)
	if err != nil {
		return nil, err
	}
	c.retired = retired

	var handlers []node.EventHandler
	if conf.RedisConf.Enabled() {
		c.redis, err = database.NewRedis(ctx, conf.RedisConf)
		if err != nil {
			_ = c.Close()
			return nil, err
		}
		handlers = append(handlers, realtime.NewRedisRoomDirectory(c.redis, conf.ID, conf.IdleRoomTimeout))
		log.Info("redis 房间目录已启用")
	}
	if conf.NatsConfig.URL != "" {
		c.nats = node.NewNatsClient(conf.ID)
		if err := c.nats.Run(conf.NatsConfig.URL); err != nil {
			_ = c.Close()
			return nil, err
		}
		handlers = append(handlers, node.NewNatsForwarder(c.nats, conf.NatsConfig.Subject))
	}
	c.publisher = node.NewEventPublisher(conf.EventBuffer, handlers...)

	c.lobby = lobby.NewWorker(lobby.Options{
		NodeID:           conf.ID,
		LivenessInterval: conf.LivenessInterval,
		IdleRoomTimeout:  conf.IdleRoomTimeout,
		Notifier:         c.publisher,
		RoomOptions:      []game.Option{game.WithRetiredCodes(c.retired)},
	})

	c.transport = conn.NewWorker(c.lobby, conn.WorkerOptions{
		MaxConnections: conf.MaxConnections,
		SendBuffer:     conf.SendBuffer,
		MaxMessageSize: conf.MaxMessageSize,
		// 三个心跳周期收不到任何帧时读协程兜底退出
		ReadTimeout:  3 * conf.LivenessInterval,
		JwtSecret:    conf.Secret,
		RequireToken: conf.RequireToken,
		RateLimiter:  utils.NewRateLimiter(conf.ConnectRate, conf.ConnectBurst),
	})
	return c, nil
}

func (c *HallContainer) GetConfig() *config.HallConfiguration {
	return c.conf
}

func (c *HallContainer) GetLobby() *lobby.Worker {
	return c.lobby
}

func (c *HallContainer) GetTransport() *conn.Worker {
	return c.transport
}

func (c *HallContainer) GetPublisher() *node.EventPublisher {
	return c.publisher
}

// Close 关闭外部连接，调用前需要先停掉 lobby 和 publisher
func (c *HallContainer) Close() error {
	var errs []error
	if c.nats != nil {
		errs = append(errs, c.nats.Close())
	}
	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			log.Error("redis 关闭失败: %v", err)
			errs = append(errs, err)
		}
	}
	if c.retired != nil {
		c.retired.Close()
	}
	return errors.Join(errs...)
}
