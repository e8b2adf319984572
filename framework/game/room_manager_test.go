package game

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lobby/common/log"
	"lobby/dto"
)

func TestMain(m *testing.M) {
	log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

var t0 = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func sequentialCodes() CodeGenerator {
	n := 0
	return func() (string, error) {
		n++
		return fmt.Sprintf("ROOM%02d", n), nil
	}
}

func newTestManager(opts ...Option) *RoomManager {
	return NewRoomManager(append([]Option{WithCodeGenerator(sequentialCodes())}, opts...)...)
}

func intPtr(i int) *int { return &i }

// checkInvariants 每次变更之后座位表与索引必须一致
func checkInvariants(t *testing.T, rm *RoomManager) {
	t.Helper()
	seated := 0
	for id, room := range rm.rooms {
		assert.LessOrEqual(t, room.Len(), room.Capacity(), "room %s over capacity", id)
		assert.False(t, room.IsEmpty(), "empty room %s still registered", id)
		assert.Len(t, room.order, room.Len())

		indices := map[int]bool{}
		for playerID, seat := range room.seats {
			assert.GreaterOrEqual(t, seat.Index, 0)
			assert.Less(t, seat.Index, room.Capacity())
			assert.False(t, indices[seat.Index], "duplicate index %d in %s", seat.Index, id)
			indices[seat.Index] = true
			assert.Equal(t, id, rm.playerRoom[playerID])
			seated++
		}
		_, hostSeated := room.seats[room.HostID]
		assert.True(t, hostSeated, "host %s of %s not seated", room.HostID, id)
	}
	assert.Equal(t, seated, len(rm.playerRoom))
}

func TestTwoSeatScenario(t *testing.T) {
	rm := newTestManager()

	room, err := rm.CreateRoom("p1", "alice", "2p", t0)
	require.NoError(t, err)
	seat, ok := room.Seat("p1")
	require.True(t, ok)
	assert.Equal(t, 0, seat.Index)
	assert.Equal(t, "p1", room.HostID)
	assert.Equal(t, RoomStateOpen, room.State())
	checkInvariants(t, rm)

	_, index, err := rm.JoinRoom("p2", room.ID, "bob", nil, t0)
	require.NoError(t, err)
	assert.Equal(t, 1, index)
	assert.Equal(t, RoomStateFull, room.State())
	checkInvariants(t, rm)

	_, _, err = rm.JoinRoom("p3", room.ID, "carol", nil, t0)
	assert.ErrorIs(t, err, dto.ErrRoomFull)
	assert.Equal(t, dto.ErrCapacity, dto.Kind(err))

	res, ok := rm.LeaveRoom("p1", t0)
	require.True(t, ok)
	assert.False(t, res.Removed)
	assert.True(t, res.HostChanged)
	assert.Equal(t, "p2", room.HostID)
	assert.Equal(t, RoomStateOpen, room.State())
	assert.Equal(t, 1, room.Capacity()-room.Len())
	checkInvariants(t, rm)

	res, ok = rm.LeaveRoom("p2", t0)
	require.True(t, ok)
	assert.True(t, res.Removed)
	_, exists := rm.GetRoom(room.ID)
	assert.False(t, exists)
	assert.Equal(t, RoomStateRemoved, room.State())
	checkInvariants(t, rm)
}

func TestPreferredIndexScenario(t *testing.T) {
	rm := newTestManager()
	room, err := rm.CreateRoom("host", "h", "4p", t0)
	require.NoError(t, err)

	_, index, err := rm.JoinRoom("a", room.ID, "a", intPtr(2), t0)
	require.NoError(t, err)
	assert.Equal(t, 2, index, "free preferred index is honored")

	_, index, err = rm.JoinRoom("b", room.ID, "b", intPtr(2), t0)
	require.NoError(t, err)
	assert.Equal(t, 1, index, "taken preferred index falls back to lowest free")

	_, index, err = rm.JoinRoom("c", room.ID, "c", intPtr(9), t0)
	require.NoError(t, err)
	assert.Equal(t, 3, index, "out of range preference falls back")
	checkInvariants(t, rm)
}

func TestJoinErrors(t *testing.T) {
	rm := newTestManager()
	room, err := rm.CreateRoom("p1", "alice", "4p", t0)
	require.NoError(t, err)

	_, _, err = rm.JoinRoom("p2", "NOPE00", "bob", nil, t0)
	assert.ErrorIs(t, err, dto.ErrRoomNotFound)
	assert.Equal(t, dto.ErrNotFound, dto.Kind(err))

	_, _, err = rm.JoinRoom("p1", room.ID, "alice", nil, t0)
	assert.ErrorIs(t, err, dto.ErrAlreadyInRoom)

	_, err = rm.StartGame("p1", room.ID, t0)
	require.NoError(t, err)

	_, _, err = rm.JoinRoom("p2", room.ID, "bob", nil, t0)
	assert.ErrorIs(t, err, dto.ErrAlreadyStarted)
	assert.Equal(t, dto.ErrState, dto.Kind(err))
	checkInvariants(t, rm)
}

func TestCreateRoomErrors(t *testing.T) {
	rm := newTestManager()

	_, err := rm.CreateRoom("p1", "alice", "3p", t0)
	assert.ErrorIs(t, err, dto.ErrInvalidGameMode)
	assert.Equal(t, dto.ErrProtocol, dto.Kind(err))

	_, err = rm.CreateRoom("p1", "alice", "2p", t0)
	require.NoError(t, err)
	_, err = rm.CreateRoom("p1", "alice", "2p", t0)
	assert.ErrorIs(t, err, dto.ErrAlreadyInRoom)
}

func TestCreateRoomSkipsTakenAndRetiredCodes(t *testing.T) {
	codes := []string{"AAAAAA", "AAAAAA", "BBBBBB", "CCCCCC"}
	retired := fakeRetired{"BBBBBB": true}
	rm := NewRoomManager(
		WithCodeGenerator(func() (string, error) {
			code := codes[0]
			codes = codes[1:]
			return code, nil
		}),
		WithRetiredCodes(retired),
	)

	first, err := rm.CreateRoom("p1", "a", "2p", t0)
	require.NoError(t, err)
	second, err := rm.CreateRoom("p2", "b", "2p", t0)
	require.NoError(t, err)

	assert.Equal(t, "AAAAAA", first.ID)
	assert.Equal(t, "CCCCCC", second.ID)

	rm.LeaveRoom("p1", t0)
	assert.True(t, retired["AAAAAA"], "removed room codes are retired")
}

func TestCreateRoomCodeExhausted(t *testing.T) {
	rm := NewRoomManager(WithCodeGenerator(func() (string, error) { return "SAME00", nil }))
	_, err := rm.CreateRoom("p1", "a", "2p", t0)
	require.NoError(t, err)

	_, err = rm.CreateRoom("p2", "b", "2p", t0)
	assert.ErrorIs(t, err, errCodeExhausted)
	_, inRoom := rm.GetPlayerRoom("p2")
	assert.False(t, inRoom)
}

func TestStartGame(t *testing.T) {
	rm := newTestManager()
	room, err := rm.CreateRoom("p1", "alice", "2p", t0)
	require.NoError(t, err)
	_, _, err = rm.JoinRoom("p2", room.ID, "bob", nil, t0)
	require.NoError(t, err)

	_, err = rm.StartGame("p2", room.ID, t0)
	assert.ErrorIs(t, err, dto.ErrNotHost)
	assert.Equal(t, dto.ErrUnauthorized, dto.Kind(err))
	assert.False(t, room.Started(), "non-host start leaves started unchanged")

	_, err = rm.StartGame("p1", "NOPE00", t0)
	assert.ErrorIs(t, err, dto.ErrRoomNotFound)

	_, err = rm.StartGame("p1", room.ID, t0)
	require.NoError(t, err)
	assert.True(t, room.Started())
	assert.Equal(t, RoomStateInProgress, room.State())

	_, err = rm.StartGame("p1", room.ID, t0)
	assert.ErrorIs(t, err, dto.ErrAlreadyStarted)

	// 游戏中离开不会让房间回到之前的状态
	_, ok := rm.LeaveRoom("p2", t0)
	require.True(t, ok)
	assert.True(t, room.Started())
	assert.Equal(t, RoomStateInProgress, room.State())
	checkInvariants(t, rm)
}

func TestLeaveRoomNoop(t *testing.T) {
	rm := newTestManager()
	_, ok := rm.LeaveRoom("ghost", t0)
	assert.False(t, ok)
}

func TestHostMigrationPicksEarliestSeated(t *testing.T) {
	rm := newTestManager()
	room, err := rm.CreateRoom("h", "h", "4p", t0)
	require.NoError(t, err)
	for _, id := range []string{"a", "b", "c"} {
		_, _, err := rm.JoinRoom(id, room.ID, id, nil, t0)
		require.NoError(t, err)
	}

	_, ok := rm.LeaveRoom("h", t0)
	require.True(t, ok)
	assert.Equal(t, "a", room.HostID)

	_, ok = rm.LeaveRoom("b", t0)
	require.True(t, ok)
	assert.Equal(t, "a", room.HostID, "non-host leave keeps host")

	_, ok = rm.LeaveRoom("a", t0)
	require.True(t, ok)
	assert.Equal(t, "c", room.HostID)
	checkInvariants(t, rm)
}

func TestSeatIndicesStayValidUnderChurn(t *testing.T) {
	rm := newTestManager()
	room, err := rm.CreateRoom("p0", "p0", "4p", t0)
	require.NoError(t, err)

	next := 1
	for round := 0; round < 50; round++ {
		if round%3 == 2 {
			seats := room.Seats()
			rm.LeaveRoom(seats[round%len(seats)].PlayerID, t0)
			if _, exists := rm.GetRoom(room.ID); !exists {
				return
			}
		} else {
			id := fmt.Sprintf("p%d", next)
			next++
			_, _, err := rm.JoinRoom(id, room.ID, id, intPtr(round%5), t0)
			if err != nil {
				assert.ErrorIs(t, err, dto.ErrRoomFull)
			}
		}
		checkInvariants(t, rm)
	}
}

func TestSetGameState(t *testing.T) {
	rm := newTestManager()
	room, err := rm.CreateRoom("p1", "alice", "2p", t0)
	require.NoError(t, err)
	_, _, err = rm.JoinRoom("p2", room.ID, "bob", nil, t0)
	require.NoError(t, err)

	state := json.RawMessage(`{"tick":1}`)
	later := t0.Add(time.Minute)
	_, err = rm.SetGameState("p1", room.ID, state, later)
	require.NoError(t, err)
	assert.JSONEq(t, `{"tick":1}`, string(room.GameState()))
	assert.Equal(t, later, room.LastActivity())

	_, err = rm.SetGameState("p2", room.ID, state, t0)
	assert.ErrorIs(t, err, dto.ErrNotHost)

	_, err = rm.SetGameState("outsider", room.ID, state, t0)
	assert.ErrorIs(t, err, dto.ErrNotInRoom)
}

func TestReapIdleNeverTouchesOccupiedRooms(t *testing.T) {
	retired := fakeRetired{}
	rm := newTestManager(WithRetiredCodes(retired))
	occupied, err := rm.CreateRoom("p1", "alice", "2p", t0)
	require.NoError(t, err)

	// 模拟漏掉清理的空房间
	stale := newRoom("STALE0", Mode2P, t0)
	rm.rooms[stale.ID] = stale
	fresh := newRoom("FRESH0", Mode2P, t0.Add(50*time.Minute))
	rm.rooms[fresh.ID] = fresh

	reaped := rm.ReapIdle(t0.Add(time.Hour), 30*time.Minute)
	require.Len(t, reaped, 1)
	assert.Equal(t, "STALE0", reaped[0].ID)
	assert.Equal(t, RoomStateRemoved, reaped[0].State())
	assert.True(t, retired["STALE0"])

	_, exists := rm.GetRoom(occupied.ID)
	assert.True(t, exists, "occupied room survives regardless of age")
	_, exists = rm.GetRoom(fresh.ID)
	assert.True(t, exists, "empty room inside idle window survives")

	reaped = rm.ReapIdle(t0.Add(24*time.Hour), 30*time.Minute)
	require.Len(t, reaped, 1)
	assert.Equal(t, "FRESH0", reaped[0].ID)
	_, exists = rm.GetRoom(occupied.ID)
	assert.True(t, exists)
}

func TestCloseRemovesEverything(t *testing.T) {
	rm := newTestManager()
	_, err := rm.CreateRoom("p1", "a", "2p", t0)
	require.NoError(t, err)
	_, err = rm.CreateRoom("p2", "b", "4p", t0.Add(time.Second))
	require.NoError(t, err)

	closed := rm.Close()
	require.Len(t, closed, 2)
	assert.Equal(t, "ROOM01", closed[0].ID)
	for _, room := range closed {
		assert.Equal(t, RoomStateRemoved, room.State())
	}
	rooms, players := rm.GetStats()
	assert.Zero(t, rooms)
	assert.Zero(t, players)
}

func TestRoomInfoSortedBySeat(t *testing.T) {
	rm := newTestManager()
	room, err := rm.CreateRoom("h", "host", "4p", t0)
	require.NoError(t, err)
	_, _, err = rm.JoinRoom("x", room.ID, "x", intPtr(3), t0)
	require.NoError(t, err)
	_, _, err = rm.JoinRoom("y", room.ID, "y", nil, t0)
	require.NoError(t, err)

	info := room.Info()
	require.Len(t, info.Players, 3)
	assert.Equal(t, []int{0, 1, 3}, []int{info.Players[0].Index, info.Players[1].Index, info.Players[2].Index})
	assert.True(t, info.Players[0].IsHost)
	assert.Equal(t, "OPEN", info.State)
	assert.Equal(t, 4, info.Capacity)
}

type fakeRetired map[string]bool

func (f fakeRetired) Retire(code string)         { f[code] = true }
func (f fakeRetired) IsRetired(code string) bool { return f[code] }

func TestRenameSeat(t *testing.T) {
	rm := newTestManager()
	room, err := rm.CreateRoom("p1", "alice", "2p", t0)
	require.NoError(t, err)

	later := t0.Add(time.Minute)
	renamed, ok := rm.RenameSeat("p1", "alicia", later)
	require.True(t, ok)
	assert.Same(t, room, renamed)
	assert.Equal(t, later, room.LastActivity())

	seat, ok := room.Seat("p1")
	require.True(t, ok)
	assert.Equal(t, "alicia", seat.Name)
	assert.Equal(t, "alicia", room.Info().Players[0].Name)

	_, ok = rm.RenameSeat("nobody", "x", later)
	assert.False(t, ok)
	checkInvariants(t, rm)
}
