package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lobby/common/log"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "application.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "id: hall-test\n")

	conf, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "hall-test", conf.ID)
	assert.Equal(t, 8080, conf.HttpPort)
	assert.Equal(t, 30*time.Second, conf.LivenessInterval)
	assert.Equal(t, 30*time.Minute, conf.IdleRoomTimeout)
	assert.Equal(t, 256, conf.SendBuffer)
	assert.Equal(t, "hall.events", conf.NatsConfig.Subject)
	assert.False(t, conf.DatabaseConf.RedisConf.Enabled())
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
id: hall-a
httpPort: 9000
log:
  level: debug
hall:
  livenessInterval: 5s
  idleRoomTimeout: 10m
  maxConnections: 50
database:
  redis:
    addr: 127.0.0.1:6379
nats:
  url: nats://127.0.0.1:4222
`)

	conf, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, conf.HttpPort)
	assert.Equal(t, "debug", conf.LogConf.Level)
	assert.Equal(t, 5*time.Second, conf.LivenessInterval)
	assert.Equal(t, 10*time.Minute, conf.IdleRoomTimeout)
	assert.Equal(t, 50, conf.MaxConnections)
	assert.True(t, conf.DatabaseConf.RedisConf.Enabled())
	assert.Equal(t, "nats://127.0.0.1:4222", conf.NatsConfig.URL)
}

func TestLoadNodeIDFromEnv(t *testing.T) {
	t.Setenv("NODE_ID", "hall-env")
	conf, err := Load(writeConfig(t, "id: hall-file\n"))
	require.NoError(t, err)
	assert.Equal(t, "hall-env", conf.ID)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"zero interval", "hall:\n  livenessInterval: 0s\n"},
		{"token without secret", "jwt:\n  requireToken: true\n"},
		{"zero send buffer", "hall:\n  sendBuffer: 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}

func TestReloadKeepsConfigOnInvalidChange(t *testing.T) {
	path := writeConfig(t, "hall:\n  livenessInterval: 5s\n")
	v, err := newViper(path)
	require.NoError(t, err)

	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(os.Stdout) })

	var got []*HallConfiguration
	onChange := func(conf *HallConfiguration) { got = append(got, conf) }

	require.NoError(t, os.WriteFile(path, []byte("hall:\n  livenessInterval: 0s\n"), 0o644))
	require.NoError(t, v.ReadInConfig())
	assert.False(t, reload(v, onChange))
	assert.Empty(t, got)
	assert.Contains(t, buf.String(), "配置热更新失败")

	require.NoError(t, os.WriteFile(path, []byte("hall:\n  livenessInterval: 7s\n"), 0o644))
	require.NoError(t, v.ReadInConfig())
	assert.True(t, reload(v, onChange))
	require.Len(t, got, 1)
	assert.Equal(t, 7*time.Second, got[0].LivenessInterval)
}
