package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"lobby/common/log"
)

type ConfigIface interface {
	CallID() string
	CallNodeType() string
}

func (cfg *BaseConfig) CallID() string {
	return cfg.ID
}

func (cfg *BaseConfig) CallNodeType() string {
	return cfg.ServerType
}

type BaseConfig struct {
	ID         string `mapstructure:"id"`
	ServerType string `mapstructure:"serverType"`
	MetricPort int    `mapstructure:"metricPort"`
	HttpPort   int    `mapstructure:"httpPort"`
}

// HallConfiguration 房间协调服务配置
type HallConfiguration struct {
	BaseConfig   `mapstructure:",squash"`
	HallConf     `mapstructure:"hall"`
	DatabaseConf `mapstructure:"database"`
	JwtConf      `mapstructure:"jwt"`
	LogConf      `mapstructure:"log"`
	NatsConfig   `mapstructure:"nats"`
}

type HallConf struct {
	LivenessInterval time.Duration `mapstructure:"livenessInterval"` // 心跳探测与清理周期
	IdleRoomTimeout  time.Duration `mapstructure:"idleRoomTimeout"`  // 空房间闲置多久后回收
	MaxConnections   int           `mapstructure:"maxConnections"`
	SendBuffer       int           `mapstructure:"sendBuffer"`     // 每个连接的写缓冲消息数
	MaxMessageSize   int64         `mapstructure:"maxMessageSize"` // 单帧最大字节数
	ConnectRate      int           `mapstructure:"connectRate"`    // 每秒允许建立的连接数
	ConnectBurst     int           `mapstructure:"connectBurst"`
	EventBuffer      int           `mapstructure:"eventBuffer"` // 生命周期事件缓冲
}

type LogConf struct {
	Level string `mapstructure:"level"`
}

type JwtConf struct {
	Secret       string `mapstructure:"secret"`
	RequireToken bool   `mapstructure:"requireToken"`
}

type DatabaseConf struct {
	RedisConf RedisConf `mapstructure:"redis"`
}

type RedisConf struct {
	Addr         string   `mapstructure:"addr"`
	ClusterAddrs []string `mapstructure:"clusterAddrs"`
	Password     string   `mapstructure:"password"`
	PoolSize     int      `mapstructure:"poolSize"`
	MinIdleConns int      `mapstructure:"minIdleConns"`
}

// Enabled 未配置地址时不启用 redis 房间目录
func (c RedisConf) Enabled() bool {
	return c.Addr != "" || len(c.ClusterAddrs) > 0
}

type NatsConfig struct {
	URL     string `mapstructure:"url"`
	Subject string `mapstructure:"subject"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("id", "hall-1")
	v.SetDefault("serverType", "hall")
	v.SetDefault("metricPort", 0)
	v.SetDefault("httpPort", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("hall.livenessInterval", "30s")
	v.SetDefault("hall.idleRoomTimeout", "30m")
	v.SetDefault("hall.maxConnections", 10000)
	v.SetDefault("hall.sendBuffer", 256)
	v.SetDefault("hall.maxMessageSize", 8192)
	v.SetDefault("hall.connectRate", 100)
	v.SetDefault("hall.connectBurst", 1)
	v.SetDefault("hall.eventBuffer", 1024)
	v.SetDefault("database.redis.poolSize", 10)
	v.SetDefault("nats.subject", "hall.events")
}

// Load 读取配置文件，环境变量优先（hall.sendBuffer -> HALL_SENDBUFFER）
func Load(configFile string) (*HallConfiguration, error) {
	v, err := newViper(configFile)
	if err != nil {
		return nil, err
	}
	return decode(v)
}

func newViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configFile)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件 %s 出错: %w", configFile, err)
	}
	return v, nil
}

func decode(v *viper.Viper) (*HallConfiguration, error) {
	conf := &HallConfiguration{}
	if err := v.Unmarshal(conf); err != nil {
		return nil, fmt.Errorf("解析配置出错: %w", err)
	}

	// 部署时由环境变量注入节点 ID
	if nodeID := os.Getenv("NODE_ID"); nodeID != "" {
		conf.ID = nodeID
	}
	if err := conf.validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

func (c *HallConfiguration) validate() error {
	if c.ID == "" {
		return fmt.Errorf("节点 ID 不能为空")
	}
	if c.LivenessInterval <= 0 {
		return fmt.Errorf("hall.livenessInterval 必须大于 0, 当前: %v", c.LivenessInterval)
	}
	if c.IdleRoomTimeout <= 0 {
		return fmt.Errorf("hall.idleRoomTimeout 必须大于 0, 当前: %v", c.IdleRoomTimeout)
	}
	if c.SendBuffer <= 0 || c.MaxConnections <= 0 || c.MaxMessageSize <= 0 {
		return fmt.Errorf("hall 连接参数非法: sendBuffer=%d maxConnections=%d maxMessageSize=%d",
			c.SendBuffer, c.MaxConnections, c.MaxMessageSize)
	}
	if c.RequireToken && c.Secret == "" {
		return fmt.Errorf("jwt.requireToken 开启时必须配置 jwt.secret")
	}
	return nil
}

// Watch 监听配置文件变化，回调里拿到重新解析后的配置
func Watch(configFile string, onChange func(*HallConfiguration)) error {
	v, err := newViper(configFile)
	if err != nil {
		return err
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		reload(v, onChange)
	})
	v.WatchConfig()
	return nil
}

// reload 新配置不合法时保留当前配置，只记录告警
func reload(v *viper.Viper, onChange func(*HallConfiguration)) bool {
	conf, err := decode(v)
	if err != nil {
		log.Warn("配置热更新失败，保留当前配置: %v", err)
		return false
	}
	onChange(conf)
	return true
}
