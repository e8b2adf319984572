package container

import (
	"context"
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lobby/common/config"
	"lobby/common/log"
)

func TestMain(m *testing.M) {
	log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func testConfig() *config.HallConfiguration {
	conf := &config.HallConfiguration{}
	conf.ID = "hall-test"
	conf.LivenessInterval = time.Second
	conf.IdleRoomTimeout = time.Minute
	conf.MaxConnections = 10
	conf.SendBuffer = 8
	conf.MaxMessageSize = 1024
	conf.ConnectRate = 10
	conf.ConnectBurst = 1
	conf.EventBuffer = 16
	return conf
}

func TestHallContainerWithoutExternalServices(t *testing.T) {
	c, err := NewHallContainer(context.Background(), testConfig())
	require.NoError(t, err)

	assert.NotNil(t, c.GetLobby())
	assert.NotNil(t, c.GetTransport())
	assert.NotNil(t, c.GetPublisher())
	assert.Equal(t, "hall-test", c.GetConfig().ID)
	assert.NoError(t, c.Close())
}

func TestHallContainerRedisUnreachable(t *testing.T) {
	conf := testConfig()
	conf.RedisConf.Addr = "127.0.0.1:1"

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := NewHallContainer(ctx, conf)
	assert.Error(t, err)
}
