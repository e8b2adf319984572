package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"lobby/common/config"
	"lobby/common/log"
)

type RedisManager struct {
	Cli        *redis.Client
	ClusterCli *redis.ClusterClient
}

// NewRedis 按配置创建单机或集群客户端，并 ping 一次确认可用
func NewRedis(ctx context.Context, redisConf config.RedisConf) (*RedisManager, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	r := &RedisManager{}
	if len(redisConf.ClusterAddrs) == 0 {
		if redisConf.Addr == "" {
			return nil, fmt.Errorf("redis 配置出错: addr 为空")
		}
		r.Cli = redis.NewClient(&redis.Options{
			Addr:         redisConf.Addr,
			Password:     redisConf.Password, // 没有密码时为空字符串，Redis 会忽略
			PoolSize:     redisConf.PoolSize,
			MinIdleConns: redisConf.MinIdleConns,
		})
	} else {
		r.ClusterCli = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:        redisConf.ClusterAddrs,
			Password:     redisConf.Password,
			PoolSize:     redisConf.PoolSize,
			MinIdleConns: redisConf.MinIdleConns,
		})
	}

	cli, _ := r.GetClient()
	if err := cli.Ping(ctx).Err(); err != nil {
		_ = r.Close()
		return nil, fmt.Errorf("redis 连接错误: %w", err)
	}
	return r, nil
}

func (r *RedisManager) GetClient() (redis.Cmdable, error) {
	if r.Cli != nil {
		return r.Cli, nil
	}
	if r.ClusterCli != nil {
		return r.ClusterCli, nil
	}
	return nil, fmt.Errorf("redis 客户端未初始化")
}

func (r *RedisManager) Set(ctx context.Context, key, value string, expiration time.Duration) error {
	cli, err := r.GetClient()
	if err != nil {
		return err
	}
	return cli.Set(ctx, key, value, expiration).Err()
}

func (r *RedisManager) Get(ctx context.Context, key string) (string, error) {
	cli, err := r.GetClient()
	if err != nil {
		return "", err
	}
	return cli.Get(ctx, key).Result()
}

func (r *RedisManager) Del(ctx context.Context, keys ...string) error {
	cli, err := r.GetClient()
	if err != nil {
		return err
	}
	return cli.Del(ctx, keys...).Err()
}

func (r *RedisManager) SAdd(ctx context.Context, key string, members ...any) error {
	cli, err := r.GetClient()
	if err != nil {
		return err
	}
	return cli.SAdd(ctx, key, members...).Err()
}

func (r *RedisManager) SRem(ctx context.Context, key string, members ...any) error {
	cli, err := r.GetClient()
	if err != nil {
		return err
	}
	return cli.SRem(ctx, key, members...).Err()
}

func (r *RedisManager) SMembers(ctx context.Context, key string) ([]string, error) {
	cli, err := r.GetClient()
	if err != nil {
		return nil, err
	}
	return cli.SMembers(ctx, key).Result()
}

func (r *RedisManager) Close() error {
	if r.Cli != nil {
		if err := r.Cli.Close(); err != nil {
			log.Error("redis 关闭出错: %v", err)
			return err
		}
	}
	if r.ClusterCli != nil {
		if err := r.ClusterCli.Close(); err != nil {
			log.Error("redisCluster 关闭出错: %v", err)
			return err
		}
	}
	return nil
}
