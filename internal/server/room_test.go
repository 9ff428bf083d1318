package server

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lox/rpsparty/internal/game"
	"github.com/lox/rpsparty/internal/roomcode"
)

func TestCreateRoomReturnsValidCode(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t, 1)

	snap, code := store.CreateRoom(1, "alice", newOutbound())

	if err := roomcode.Validate(code); err != nil {
		t.Errorf("room code %q failed validation: %v", code, err)
	}
	if snap.Code != code {
		t.Errorf("snapshot code %q does not match returned code %q", snap.Code, code)
	}
	if len(snap.Names) != 1 || snap.Names[0] != "alice" {
		t.Errorf("expected members [alice], got %v", snap.Names)
	}
	if snap.Started {
		t.Error("fresh room must not be started")
	}
}

func TestCreateRoomCodesDistinctUnderConcurrency(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t, 2)

	const n = 100
	codes := make(chan string, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(id uint64) {
			defer wg.Done()
			_, code := store.CreateRoom(id, fmt.Sprintf("host-%d", id), newOutbound())
			codes <- code
		}(uint64(i + 1))
	}
	wg.Wait()
	close(codes)

	seen := make(map[string]bool)
	for code := range codes {
		if seen[code] {
			t.Fatalf("duplicate room code issued: %s", code)
		}
		seen[code] = true
	}
	if len(seen) != n {
		t.Errorf("expected %d distinct codes, got %d", n, len(seen))
	}
}

func TestJoinRoomUnknownCode(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t, 3)

	_, err := store.JoinRoom("ZZZZ", 1, "bob", newOutbound())
	if !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("expected ErrRoomNotFound, got %v", err)
	}
	if store.RoomCount() != 0 {
		t.Error("failed join must not create a room")
	}
}

func TestJoinRoomAfterStart(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t, 4)

	_, code := store.CreateRoom(1, "alice", newOutbound())
	if _, err := store.StartGame(code); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	_, err := store.JoinRoom(code, 2, "bob", newOutbound())
	if !errors.Is(err, ErrGameAlreadyStarted) {
		t.Errorf("expected ErrGameAlreadyStarted, got %v", err)
	}

	members, err := store.Members(code)
	require.NoError(t, err)
	require.Len(t, members, 1, "rejected joiner must not be appended")
}

func TestConcurrentJoinsNoLostUpdates(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t, 5)

	_, code := store.CreateRoom(1, "host", newOutbound())

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(id uint64) {
			defer wg.Done()
			if _, err := store.JoinRoom(code, id, fmt.Sprintf("player-%d", id), newOutbound()); err != nil {
				t.Errorf("join %d failed: %v", id, err)
			}
		}(uint64(i + 2))
	}
	wg.Wait()

	members, err := store.Members(code)
	require.NoError(t, err)
	require.Len(t, members, n+1, "host plus every joiner")

	seen := make(map[uint64]bool)
	for _, m := range members {
		if seen[m.ConnID] {
			t.Errorf("duplicate member %d", m.ConnID)
		}
		seen[m.ConnID] = true
	}

	// Host joined first and keeps its slot.
	if members[0].ConnID != 1 || members[0].Role != RoleHost {
		t.Errorf("expected host first in join order, got %+v", members[0])
	}
}

func TestJoinOrderPreserved(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t, 6)

	_, code := store.CreateRoom(1, "host", newOutbound())
	for i := 2; i <= 5; i++ {
		snap, err := store.JoinRoom(code, uint64(i), fmt.Sprintf("p%d", i), newOutbound())
		require.NoError(t, err)
		require.Equal(t, i, len(snap.Names), "snapshot reflects the fully-appended member")
	}

	members, err := store.Members(code)
	require.NoError(t, err)
	want := []string{"host", "p2", "p3", "p4", "p5"}
	for i, m := range members {
		if m.Name != want[i] {
			t.Errorf("member %d = %s, want %s", i, m.Name, want[i])
		}
	}
}

func TestStartGameIdempotent(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t, 7)

	_, code := store.CreateRoom(1, "host", newOutbound())

	first, err := store.StartGame(code)
	require.NoError(t, err)
	require.True(t, first.Started)

	second, err := store.StartGame(code)
	require.NoError(t, err, "restarting an already-started room is not an error")
	require.True(t, second.Started)
	require.Equal(t, first.Names, second.Names)
}

func TestStartGameUnknownRoom(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t, 8)

	if _, err := store.StartGame("NOPE"); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("expected ErrRoomNotFound, got %v", err)
	}
}

func TestPlayRound(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t, 9)

	_, code := store.CreateRoom(1, "host", newOutbound())
	_, err := store.JoinRoom(code, 2, "bob", newOutbound())
	require.NoError(t, err)

	result, err := store.PlayRound(code, 2, game.HandRock)
	require.NoError(t, err)
	require.Equal(t, uint64(2), result.ConnID)
	require.Equal(t, "bob", result.Name)
	require.Equal(t, game.HandRock, result.PlayerHand)
	require.Contains(t, game.Hands, result.ServerHand)
	require.Equal(t, game.Resolve(game.HandRock, result.ServerHand), result.Outcome)
}

func TestPlayRoundErrors(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t, 10)

	_, code := store.CreateRoom(1, "host", newOutbound())

	if _, err := store.PlayRound("XXXX", 1, game.HandRock); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("expected ErrRoomNotFound, got %v", err)
	}
	if _, err := store.PlayRound(code, 99, game.HandRock); !errors.Is(err, ErrMemberNotFound) {
		t.Errorf("expected ErrMemberNotFound, got %v", err)
	}
}

func TestRemoveConnectionHostTearsDownRoom(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t, 11)

	_, code := store.CreateRoom(1, "host", newOutbound())
	_, err := store.JoinRoom(code, 2, "bob", newOutbound())
	require.NoError(t, err)
	_, err = store.JoinRoom(code, 3, "carol", newOutbound())
	require.NoError(t, err)

	plan := store.RemoveConnection(1)

	require.True(t, plan.HostLeft)
	require.Equal(t, code, plan.RoomCode)
	require.ElementsMatch(t, []uint64{2, 3}, plan.Disconnect)
	require.Equal(t, 0, store.RoomCount(), "room must not outlive its host")
}

func TestRemoveConnectionPlayerKeepsRoom(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t, 12)

	_, code := store.CreateRoom(1, "host", newOutbound())
	_, err := store.JoinRoom(code, 2, "bob", newOutbound())
	require.NoError(t, err)

	plan := store.RemoveConnection(2)

	require.False(t, plan.HostLeft)
	require.Equal(t, code, plan.RoomCode)
	require.Empty(t, plan.Disconnect)
	require.Equal(t, 1, store.RoomCount())

	members, err := store.Members(code)
	require.NoError(t, err)
	require.Len(t, members, 2)
	require.True(t, members[0].Connected, "host untouched")
	require.False(t, members[1].Connected, "departed player marked disconnected")
}

func TestRemoveConnectionUnknownID(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t, 13)

	plan := store.RemoveConnection(404)
	require.Equal(t, CleanupPlan{}, plan)
}

func TestBroadcastOnlyToConnectedRoomMembers(t *testing.T) {
	t.Parallel()
	store, registry := newTestStore(t, 14)

	hostOut, bobOut, carolOut := newOutbound(), newOutbound(), newOutbound()
	otherOut := newOutbound()

	_, code := store.CreateRoom(1, "host", hostOut)
	_, err := store.JoinRoom(code, 2, "bob", bobOut)
	require.NoError(t, err)
	_, err = store.JoinRoom(code, 3, "carol", carolOut)
	require.NoError(t, err)

	// An unrelated room must never hear this broadcast.
	store.CreateRoom(4, "dave", otherOut)

	require.NoError(t, registry.Register(1, hostOut))
	require.NoError(t, registry.Register(2, bobOut))
	require.NoError(t, registry.Register(3, carolOut))
	require.NoError(t, registry.Register(4, otherOut))

	// Carol drops out before the broadcast.
	store.RemoveConnection(3)
	registry.Unregister(3)

	store.Broadcast(code, []byte("party"))

	require.Len(t, hostOut, 1)
	require.Len(t, bobOut, 1)
	require.Len(t, carolOut, 0, "disconnected member must not receive broadcasts")
	require.Len(t, otherOut, 0, "broadcast must stay inside the room")
}

func TestRegistryAndRoomShareOutboundChannel(t *testing.T) {
	t.Parallel()
	store, registry := newTestStore(t, 15)

	outbound := newOutbound()
	_, code := store.CreateRoom(1, "host", outbound)
	require.NoError(t, registry.Register(1, outbound))

	members, err := store.Members(code)
	require.NoError(t, err)
	require.Equal(t, (chan<- []byte)(outbound), members[0].outbound,
		"room membership and registry must reference the same outbound channel")
}
