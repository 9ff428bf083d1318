package server

import (
	"io"
	"testing"

	"github.com/rs/zerolog"

	"github.com/lox/rpsparty/internal/game"
	"github.com/lox/rpsparty/internal/randutil"
	"github.com/lox/rpsparty/internal/roomcode"
)

// testLogger creates a logger that discards output for tests.
func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard).Level(zerolog.Disabled)
}

// newTestStore creates a room store with deterministic randomness and
// its backing registry.
func newTestStore(t *testing.T, seed int64) (*RoomStore, *Registry) {
	t.Helper()
	registry := NewRegistry(testLogger())
	store := NewRoomStore(
		testLogger(),
		registry,
		roomcode.NewGenerator(randutil.New(seed)),
		game.NewDealer(randutil.New(seed+1)),
	)
	return store, registry
}

// newOutbound returns a buffered channel standing in for a
// connection's write loop.
func newOutbound() chan []byte {
	return make(chan []byte, 16)
}
