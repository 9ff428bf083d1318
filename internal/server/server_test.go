package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lox/rpsparty/internal/randutil"
)

func TestServerHealth(t *testing.T) {
	t.Parallel()
	srv := NewServer(testLogger(), randutil.New(42))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	srv.handleHealth(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
}

func TestStatsEndpoint(t *testing.T) {
	t.Parallel()
	srv := NewServer(testLogger(), randutil.New(42))

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	recorder := httptest.NewRecorder()

	srv.handleStats(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", recorder.Code)
	}

	body := recorder.Body.String()
	if !strings.Contains(body, "Connected clients: 0") {
		t.Errorf("Expected 'Connected clients: 0', got: %s", body)
	}
	if !strings.Contains(body, "Active rooms: 0") {
		t.Errorf("Expected 'Active rooms: 0', got: %s", body)
	}
}

func TestStatsCountsRooms(t *testing.T) {
	t.Parallel()
	srv := NewServer(testLogger(), randutil.New(42))

	srv.Rooms().CreateRoom(1, "alice", newOutbound())
	srv.Rooms().CreateRoom(2, "bob", newOutbound())

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	recorder := httptest.NewRecorder()

	srv.handleStats(recorder, req)

	if !strings.Contains(recorder.Body.String(), "Active rooms: 2") {
		t.Errorf("Expected 'Active rooms: 2', got: %s", recorder.Body.String())
	}
}

func TestShutdownClosesConnections(t *testing.T) {
	srv, wsURL := startTestServer(t, 21)

	conn := dial(t, wsURL)
	sendMessage(t, conn, MessageTypeHostNewGame, HostNewGameData{UserName: "alice", UserType: "Host"})
	readMessage(t, conn) // room created

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(testReadTimeout))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return // transport closed, as expected
		}
	}
}
