package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/lox/rpsparty/cmd/rpsparty/shared"
	"github.com/lox/rpsparty/internal/game"
	"github.com/lox/rpsparty/internal/server"
)

// ClientCmd is a line-oriented terminal client. Hosts type "start" to
// begin the game; everyone plays rounds by typing a hand.
type ClientCmd struct {
	URL   string `kong:"default='ws://localhost:8080/ws',help='Server WebSocket URL'"`
	Name  string `kong:"required,help='Display name'"`
	Host  bool   `kong:"help='Host a new room'"`
	Join  string `kong:"help='Join an existing room by code'"`
	Debug bool   `kong:"help='Enable debug logging'"`
}

func (c *ClientCmd) Validate() error {
	if c.Host == (c.Join != "") {
		return fmt.Errorf("pass exactly one of --host or --join CODE")
	}
	return nil
}

func (c *ClientCmd) Run() error {
	logger := shared.SetupLogger(c.Debug)

	conn, _, err := websocket.DefaultDialer.Dial(c.URL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.URL, err)
	}
	defer conn.Close()

	logger.Info().Str("url", c.URL).Msg("Connected")

	session := &clientSession{conn: conn, name: c.Name}

	if c.Host {
		err = session.write(server.MessageTypeHostNewGame, server.HostNewGameData{
			UserName: c.Name,
			UserType: string(server.RoleHost),
		})
	} else {
		session.setRoom(strings.ToUpper(c.Join))
		err = session.write(server.MessageTypeUserLogin, server.UserLoginData{
			UserName: c.Name,
			UserType: string(server.RolePlayer),
			RoomCode: session.room(),
		})
	}
	if err != nil {
		return err
	}

	ctx := shared.SetupSignalHandler(logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return session.readLoop()
	})
	g.Go(func() error {
		return session.inputLoop()
	})
	g.Go(func() error {
		<-ctx.Done()
		// Unblocks both loops.
		return conn.Close()
	})

	if err := g.Wait(); err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		logger.Debug().Err(err).Msg("Session ended")
	}
	fmt.Println("Disconnected")
	return nil
}

// clientSession tracks the room the server placed us in.
type clientSession struct {
	conn *websocket.Conn
	name string

	mu       sync.Mutex
	roomCode string
}

func (s *clientSession) setRoom(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roomCode = code
}

func (s *clientSession) room() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomCode
}

func (s *clientSession) write(msgType server.MessageType, data any) error {
	msg, err := server.NewMessage(msgType, data)
	if err != nil {
		return err
	}
	payload, err := msg.Encode()
	if err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

// readLoop prints server frames until the transport closes.
func (s *clientSession) readLoop() error {
	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			return err
		}

		var msg server.Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			fmt.Printf("<- %s\n", raw)
			continue
		}

		switch msg.Type {
		case server.MessageTypeRoomCreated:
			var data server.RoomCreatedData
			if err := json.Unmarshal(msg.Data, &data); err == nil {
				s.setRoom(data.RoomCode)
				fmt.Printf("Room created: %s\n", data.RoomCode)
			}

		case server.MessageTypePartyUpdate:
			var data server.PartyUpdateData
			if err := json.Unmarshal(msg.Data, &data); err == nil {
				s.setRoom(data.RoomCode)
				fmt.Printf("Party in %s: %s\n", data.RoomCode, strings.Join(data.Users, ", "))
			}

		case server.MessageTypeGameStart:
			fmt.Println("Game on! Type rock, paper or scissors")

		case server.MessageTypeServerHand:
			var data server.ServerHandData
			if err := json.Unmarshal(msg.Data, &data); err == nil {
				fmt.Printf("Server played %s, you %s\n", data.Hand, data.Outcome)
			}

		case server.MessageTypeRoomClosed:
			var data server.RoomClosedData
			if err := json.Unmarshal(msg.Data, &data); err == nil {
				fmt.Printf("Room %s closed: %s\n", data.RoomCode, data.Reason)
			}

		case server.MessageTypeError:
			var data server.ErrorData
			if err := json.Unmarshal(msg.Data, &data); err == nil {
				fmt.Printf("Error (%s): %s\n", data.Code, data.Message)
			}

		default:
			fmt.Printf("<- %s\n", raw)
		}
	}
}

// inputLoop turns stdin lines into protocol frames.
func (s *clientSession) inputLoop() error {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue

		case line == "quit":
			return s.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))

		case line == "start":
			if err := s.write(server.MessageTypeHostStartGame, server.HostStartGameData{
				RoomCode: s.room(),
			}); err != nil {
				return err
			}

		default:
			hand, err := game.ParseHand(line)
			if err != nil {
				fmt.Println("Commands: start, rock, paper, scissors, quit")
				continue
			}
			if err := s.write(server.MessageTypePlayerHand, server.PlayerHandData{
				UserName: s.name,
				RoomCode: s.room(),
				Hand:     hand.String(),
			}); err != nil {
				return err
			}
		}
	}
	return scanner.Err()
}
