package server

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lox/rpsparty/internal/game"
)

// sessionState tracks where a connection is in its lifecycle.
type sessionState int

const (
	stateUnjoined sessionState = iota
	stateInLobby
	stateInGame
	stateClosed
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10
)

// Connection represents one WebSocket session. It owns the
// connection's lifecycle: it reads inbound frames, drives the room
// store, and tears its own state down on disconnect. Exactly one
// read pump and one write pump run per connection.
type Connection struct {
	id     uint64
	conn   *websocket.Conn
	send   chan []byte
	server *Server
	logger zerolog.Logger

	mu       sync.RWMutex
	state    sessionState
	roomCode string
	name     string
	role     Role

	done      chan struct{}
	closeOnce sync.Once
}

// NewConnection wraps an upgraded WebSocket connection.
func NewConnection(id uint64, conn *websocket.Conn, srv *Server) *Connection {
	return &Connection{
		id:     id,
		conn:   conn,
		send:   make(chan []byte, srv.config.Limits.SendBuffer),
		server: srv,
		logger: srv.logger.With().Str("component", "conn").Uint64("conn_id", id).Logger(),
		done:   make(chan struct{}),
	}
}

// Outbound returns the connection's send channel. The registry and any
// room membership share this one instance.
func (c *Connection) Outbound() chan<- []byte {
	return c.send
}

// Start begins the read and write pumps.
func (c *Connection) Start() {
	go c.writePump()
	go c.readPump()
}

// Close shuts the session down. Safe to call from any goroutine and
// more than once; the first call wins.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.state = stateClosed
		c.mu.Unlock()
		close(c.done)
		err = c.conn.Close()
	})
	return err
}

// Done is closed once the session has shut down.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// SendMessage enqueues a message for this connection's write loop.
func (c *Connection) SendMessage(msg *Message) error {
	payload, err := msg.Encode()
	if err != nil {
		return err
	}

	select {
	case c.send <- payload:
		return nil
	case <-c.done:
		return ErrConnectionClosed
	default:
		c.logger.Warn().Msg("Send buffer full, closing connection")
		_ = c.Close()
		return ErrConnectionClosed
	}
}

func (c *Connection) setSession(state sessionState, roomCode, name string, role Role) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = state
	c.roomCode = roomCode
	c.name = name
	c.role = role
}

func (c *Connection) session() (sessionState, string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state, c.roomCode
}

// readPump handles inbound frames until the transport closes, then
// runs disconnect cleanup. Transport close or error is the only
// cancellation signal a session gets.
func (c *Connection) readPump() {
	defer func() {
		c.cleanup()
		_ = c.Close()
	}()

	c.conn.SetReadLimit(c.server.config.Limits.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-c.done:
			return
		default:
		}

		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Error().Err(err).Msg("WebSocket error")
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			// A malformed frame is dropped, not fatal to the session.
			c.logger.Warn().Err(err).Msg("Ignoring malformed message")
			c.sendError("invalid_message", "Failed to parse message")
			continue
		}

		c.handleMessage(&msg)
	}
}

// writePump drains the send channel to the socket and keeps the
// connection alive with periodic pings.
func (c *Connection) writePump() {
	ticker := c.server.clock.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.logger.Debug().Err(err).Msg("Failed to write message")
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			return
		}
	}
}

// handleMessage dispatches one inbound frame by its type tag.
func (c *Connection) handleMessage(msg *Message) {
	c.logger.Debug().Str("type", msg.Type.String()).Msg("Received message")

	switch msg.Type {
	case MessageTypeHostNewGame:
		var data HostNewGameData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "Failed to parse host new game data")
			return
		}
		c.handleHostNewGame(data)

	case MessageTypeUserLogin:
		var data UserLoginData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "Failed to parse user login data")
			return
		}
		c.handleUserLogin(data)

	case MessageTypeHostStartGame:
		var data HostStartGameData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "Failed to parse host start game data")
			return
		}
		c.handleHostStartGame(data)

	case MessageTypePlayerHand:
		var data PlayerHandData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "Failed to parse player hand data")
			return
		}
		c.handlePlayerHand(data)

	default:
		c.sendError("unknown_message_type", "Unknown message type: "+msg.Type.String())
	}
}

func (c *Connection) handleHostNewGame(data HostNewGameData) {
	state, _ := c.session()
	if state != stateUnjoined {
		c.sendError("invalid_state", "Already in a room")
		return
	}

	snap, code := c.server.rooms.CreateRoom(c.id, data.UserName, c.send)
	c.setSession(stateInLobby, code, data.UserName, RoleHost)

	c.logger.Info().Str("room_code", code).Str("user_name", data.UserName).Msg("Room created")

	// Acknowledge to the host alone, then announce membership to the
	// room (currently just the host).
	ack, err := NewMessage(MessageTypeRoomCreated, RoomCreatedData{
		RoomCode: code,
		Message:  "Room created, share the code to invite players",
	})
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to create room created message")
		return
	}
	_ = c.SendMessage(ack)

	c.broadcastPartyUpdate(snap)
}

func (c *Connection) handleUserLogin(data UserLoginData) {
	state, _ := c.session()
	if state != stateUnjoined {
		c.sendError("invalid_state", "Already in a room")
		return
	}

	snap, err := c.server.rooms.JoinRoom(data.RoomCode, c.id, data.UserName, c.send)
	if err != nil {
		// A failed join terminates the session once the error has
		// been handed to the write loop.
		c.logger.Info().Err(err).Str("room_code", data.RoomCode).Msg("Join rejected")
		c.sendError(errorCode(err), "Could not join room "+data.RoomCode+": "+err.Error())
		c.closeAfterFlush()
		return
	}

	c.setSession(stateInLobby, data.RoomCode, data.UserName, normalizeRole(data.UserType))

	c.logger.Info().Str("room_code", data.RoomCode).Str("user_name", data.UserName).Msg("Joined room")

	c.broadcastPartyUpdate(snap)
}

func (c *Connection) handleHostStartGame(data HostStartGameData) {
	_, roomCode := c.session()
	if roomCode == "" || data.RoomCode != roomCode {
		c.sendError("room_not_found", "Not a member of room "+data.RoomCode)
		return
	}

	// Only the recorded host may start the game. The store itself is
	// permissive, so the role check lives here.
	hostID, err := c.server.rooms.HostID(roomCode)
	if err != nil {
		c.sendError(errorCode(err), "Room "+roomCode+" no longer exists")
		return
	}
	if hostID != c.id {
		c.sendError("unauthorized", "Only the host can start the game")
		return
	}

	snap, err := c.server.rooms.StartGame(roomCode)
	if err != nil {
		c.sendError(errorCode(err), "Could not start game in room "+roomCode)
		return
	}

	c.setSessionState(stateInGame)

	c.logger.Info().Str("room_code", roomCode).Int("members", len(snap.Names)).Msg("Game started")

	msg, err := NewMessage(MessageTypeGameStart, GameStartData{RoomCode: roomCode})
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to create game start message")
		return
	}
	payload, err := msg.Encode()
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to encode game start message")
		return
	}
	c.server.rooms.SendSnapshot(snap, payload)
}

func (c *Connection) handlePlayerHand(data PlayerHandData) {
	_, roomCode := c.session()
	if roomCode == "" {
		c.sendError("room_not_found", "Not a member of any room")
		return
	}

	hand, err := game.ParseHand(data.Hand)
	if err != nil {
		c.sendError("invalid_message", err.Error())
		return
	}

	result, err := c.server.rooms.PlayRound(roomCode, c.id, hand)
	if err != nil {
		c.sendError(errorCode(err), "Could not play round in room "+roomCode)
		return
	}

	c.setSessionState(stateInGame)

	c.logger.Debug().
		Str("room_code", roomCode).
		Str("player_hand", result.PlayerHand.String()).
		Str("server_hand", result.ServerHand.String()).
		Str("outcome", string(result.Outcome)).
		Msg("Round resolved")

	// Each member plays the server independently, so the outcome goes
	// only to the acting player.
	msg, err := NewMessage(MessageTypeServerHand, ServerHandData{
		Hand:    result.ServerHand.String(),
		Outcome: string(result.Outcome),
	})
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to create server hand message")
		return
	}
	_ = c.SendMessage(msg)
}

func (c *Connection) setSessionState(state sessionState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != stateClosed {
		c.state = state
	}
}

// cleanup runs once the transport has closed: the member is removed
// from its room, a host departure cascades to the rest of the room,
// and finally the connection leaves the registry.
func (c *Connection) cleanup() {
	c.mu.RLock()
	name, role := c.name, c.role
	c.mu.RUnlock()

	plan := c.server.rooms.RemoveConnection(c.id)

	if plan.HostLeft {
		c.logger.Info().
			Str("room_code", plan.RoomCode).
			Str("user_name", name).
			Int("members", len(plan.Disconnect)).
			Msg("Host disconnected, closing room")

		notice, err := NewMessage(MessageTypeRoomClosed, RoomClosedData{
			RoomCode: plan.RoomCode,
			Reason:   "host disconnected",
		})
		if err == nil {
			if payload, err := notice.Encode(); err == nil {
				for _, id := range plan.Disconnect {
					c.server.registry.Send(id, payload)
				}
			}
		}

		for _, id := range plan.Disconnect {
			c.server.disconnect(id)
		}
	} else if plan.RoomCode != "" {
		c.logger.Info().
			Str("room_code", plan.RoomCode).
			Str("user_name", name).
			Str("role", string(role)).
			Msg("Player disconnected, room persists")
	}

	c.server.registry.Unregister(c.id)
}

// broadcastPartyUpdate announces the snapshot's membership, in join
// order, to exactly the members captured in the snapshot.
func (c *Connection) broadcastPartyUpdate(snap RoomSnapshot) {
	msg, err := NewMessage(MessageTypePartyUpdate, PartyUpdateData{
		RoomCode: snap.Code,
		Users:    snap.Names,
	})
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to create party update message")
		return
	}
	payload, err := msg.Encode()
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to encode party update message")
		return
	}
	c.server.rooms.SendSnapshot(snap, payload)
}

// sendError sends an error frame to this client.
func (c *Connection) sendError(code, message string) {
	msg, err := NewMessage(MessageTypeError, ErrorData{Code: code, Message: message})
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to create error message")
		return
	}
	_ = c.SendMessage(msg)
}

// closeAfterFlush gives the write pump a moment to drain the error
// frame before the transport is torn down.
func (c *Connection) closeAfterFlush() {
	deadline := c.server.clock.NewTimer(writeWait)
	defer deadline.Stop()
	tick := c.server.clock.NewTicker(10 * time.Millisecond)
	defer tick.Stop()

	// Close one tick after the buffer first looks empty so the frame
	// the pump just dequeued still reaches the socket.
	drained := false
	for {
		select {
		case <-c.done:
			return
		case <-deadline.C:
			_ = c.Close()
			return
		case <-tick.C:
			if drained {
				_ = c.Close()
				return
			}
			drained = len(c.send) == 0
		}
	}
}

// errorCode maps store errors onto wire error codes.
func errorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRoomNotFound):
		return "room_not_found"
	case errors.Is(err, ErrGameAlreadyStarted):
		return "game_already_started"
	case errors.Is(err, ErrMemberNotFound):
		return "member_not_found"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	default:
		return "internal_error"
	}
}
