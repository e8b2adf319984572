package lobby

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lobby/framework/conn"
	"lobby/framework/protocol"
	"lobby/framework/stream"
)

func runWorker(t *testing.T, fx *fixture) (context.CancelFunc, <-chan struct{}) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		fx.w.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return cancel, done
}

func TestWorkerShutdown(t *testing.T) {
	fx := newFixture()
	cancel, done := runWorker(t, fx)

	a := &fakeConn{id: "conn-a"}
	require.NoError(t, fx.w.OnConnect(a, conn.Identity{Name: "Alice"}))
	fx.w.OnMessage(a.id, []byte(`{"kind":"create_room","data":{"gameMode":"2p","playerName":"Alice"}}`))

	rooms, err := fx.w.Rooms(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, "Alice", rooms[0].Players[0].Name)

	stats, err := fx.w.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Rooms)
	assert.Equal(t, 1, stats.Players)
	assert.Equal(t, 1, stats.SeatedPlayers)
	assert.EqualValues(t, 1, stats.MessagesProcessed)

	cancel()
	<-done

	assert.True(t, a.closed)
	assert.Equal(t, websocket.CloseGoingAway, a.closeCode)
	last := fx.notifier.last()
	require.NotNil(t, last)
	assert.Equal(t, stream.RoomRemoved, last.Type)
	assert.Equal(t, stream.ReasonShutdown, last.Reason)

	// 停止之后的调用都返回错误，不会阻塞
	assert.ErrorIs(t, fx.w.OnConnect(&fakeConn{id: "conn-b"}, conn.Identity{}), ErrWorkerStopped)
	_, err = fx.w.Stats(context.Background())
	assert.ErrorIs(t, err, ErrWorkerStopped)
	fx.w.Stop()
}

func TestWorkerRoomLookup(t *testing.T) {
	fx := newFixture()
	runWorker(t, fx)

	a := &fakeConn{id: "conn-a"}
	require.NoError(t, fx.w.OnConnect(a, conn.Identity{}))
	fx.w.OnMessage(a.id, []byte(`{"kind":"create_room","data":{"gameMode":"4p","playerName":"Alice"}}`))

	info, found, err := fx.w.Room(context.Background(), "ROOM01")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 4, info.Capacity)

	_, found, err = fx.w.Room(context.Background(), "ROOM99")
	require.NoError(t, err)
	assert.False(t, found)
}

type wsClient struct {
	t  *testing.T
	ws *websocket.Conn
}

func dial(t *testing.T, url string) *wsClient {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return &wsClient{t: t, ws: ws}
}

func (c *wsClient) write(body string) {
	c.t.Helper()
	require.NoError(c.t, c.ws.WriteMessage(websocket.TextMessage, []byte(body)))
}

func (c *wsClient) read(kind string) json.RawMessage {
	c.t.Helper()
	require.NoError(c.t, c.ws.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, raw, err := c.ws.ReadMessage()
	require.NoError(c.t, err)
	var env protocol.Envelope
	require.NoError(c.t, json.Unmarshal(raw, &env))
	require.Equal(c.t, kind, env.Kind, "payload: %s", raw)
	return env.Data
}

func TestWebsocketEndToEnd(t *testing.T) {
	fx := newFixture()
	runWorker(t, fx)

	transport := conn.NewWorker(fx.w, conn.WorkerOptions{
		MaxConnections: 8,
		SendBuffer:     16,
		MaxMessageSize: 4096,
		ReadTimeout:    time.Minute,
	})
	srv := httptest.NewServer(transport)
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?name=Alice"

	alice := dial(t, url)
	var connected protocol.Connected
	require.NoError(t, json.Unmarshal(alice.read(protocol.KindConnected), &connected))
	require.NotEmpty(t, connected.PlayerID)

	alice.write(`{"kind":"create_room","data":{"gameMode":"2p","playerName":"Alice"}}`)
	var created protocol.RoomCreated
	require.NoError(t, json.Unmarshal(alice.read(protocol.KindRoomCreated), &created))
	assert.Equal(t, "ROOM01", created.RoomID)
	alice.read(protocol.KindPlayerAssigned)

	bob := dial(t, strings.Replace(url, "Alice", "Bob", 1))
	bob.read(protocol.KindConnected)
	bob.write(`{"kind":"join_room","data":{"roomId":"ROOM01","playerName":"Bob"}}`)
	bob.read(protocol.KindRoomJoined)
	bob.read(protocol.KindPlayerAssigned)
	alice.read(protocol.KindPlayerJoined)
	alice.read(protocol.KindRoomUpdated)

	bob.write(`{"kind":"chat_message","data":{"roomId":"ROOM01","message":"hello"}}`)
	var chat protocol.ChatRelay
	require.NoError(t, json.Unmarshal(alice.read(protocol.KindChatMessage), &chat))
	assert.Equal(t, "hello", chat.Message)
	assert.Equal(t, "Bob", chat.PlayerName)

	bob.write(`{"kind":"nope"}`)
	var protoErr protocol.Error
	require.NoError(t, json.Unmarshal(bob.read(protocol.KindError), &protoErr))
	assert.Equal(t, "protocol_error", protoErr.Code)

	// 关闭 bob 之后 alice 收到离开通知，房主不变
	require.NoError(t, bob.ws.Close())
	var left protocol.PlayerLeft
	require.NoError(t, json.Unmarshal(alice.read(protocol.KindPlayerLeft), &left))
	assert.Equal(t, connected.PlayerID, left.HostID)
	alice.read(protocol.KindRoomUpdated)

	current, accepted, rejected := transport.Stats()
	assert.EqualValues(t, 2, accepted)
	assert.Zero(t, rejected)
	assert.LessOrEqual(t, current, int32(2))
}

func TestShutdownFlushesCloseFrames(t *testing.T) {
	fx := newFixture()
	runWorker(t, fx)

	transport := conn.NewWorker(fx.w, conn.WorkerOptions{
		MaxConnections: 8,
		SendBuffer:     16,
		MaxMessageSize: 4096,
		ReadTimeout:    time.Minute,
	})
	srv := httptest.NewServer(transport)
	defer srv.Close()

	alice := dial(t, "ws"+strings.TrimPrefix(srv.URL, "http"))
	alice.read(protocol.KindConnected)

	fx.w.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, transport.Wait(ctx))

	require.NoError(t, alice.ws.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := alice.ws.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}
