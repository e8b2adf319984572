package node

import (
	"time"

	"github.com/nats-io/nats.go"

	"lobby/common/log"
)

type Client interface {
	Run(url string) error
	SendMessage(subject string, data []byte) error
	Close() error
}

// NatsClient 只负责发布，断线后由 nats 库自动重连
type NatsClient struct {
	name string
	conn *nats.Conn
}

func NewNatsClient(name string) *NatsClient {
	return &NatsClient{name: name}
}

func (nc *NatsClient) IsConnected() bool {
	return nc.conn != nil && nc.conn.IsConnected()
}

func (nc *NatsClient) Run(url string) error {
	log.Info("nats 服务正在连接, url:%s", url)
	var err error
	nc.conn, err = nats.Connect(url,
		nats.Name(nc.name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("nats 连接断开: %v", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("nats 重连成功, url:%s", c.ConnectedUrl())
		}),
	)
	if err != nil {
		log.Error("nats 连接错误,err:%v", err)
		return err
	}

	log.Info("nats 连接成功, url:%s", url)
	return nil
}

func (nc *NatsClient) Close() error {
	if nc.conn == nil {
		return nil
	}

	if err := nc.conn.Drain(); err != nil {
		nc.conn.Close()
	}
	log.Info("NATS 连接已关闭")
	return nil
}

func (nc *NatsClient) SendMessage(subject string, data []byte) error {
	if !nc.IsConnected() {
		return ErrNotConnected
	}

	return nc.conn.Publish(subject, data)
}
