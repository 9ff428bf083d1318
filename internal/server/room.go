package server

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/lox/rpsparty/internal/game"
	"github.com/lox/rpsparty/internal/roomcode"
)

// Role distinguishes the member who created a room from everyone else.
type Role string

const (
	RoleHost   Role = "Host"
	RolePlayer Role = "Player"
)

func normalizeRole(role string) Role {
	if role == string(RoleHost) {
		return RoleHost
	}
	return RolePlayer
}

// Member is a participant's view inside a room. The outbound channel
// is the same instance the registry holds for the connection, so
// neither side can end up with a stale duplicate.
type Member struct {
	ConnID    uint64
	Name      string
	Role      Role
	Connected bool
	outbound  chan<- []byte
}

// room state is owned by the RoomStore and only ever touched under its
// lock.
type room struct {
	code    string
	started bool
	hostID  uint64
	members []*Member // join order
}

func (r *room) find(connID uint64) *Member {
	for _, m := range r.members {
		if m.ConnID == connID {
			return m
		}
	}
	return nil
}

// RoomSnapshot is a consistent view of a room taken under the store
// lock. Names preserve join order; Recipients are the connection ids
// of every currently-connected member, for fan-out after the lock is
// released.
type RoomSnapshot struct {
	Code       string
	Started    bool
	Names      []string
	Recipients []uint64
}

// RoundResult is the resolved outcome of one round against the server,
// tagged with the acting member's identity.
type RoundResult struct {
	ConnID     uint64
	Name       string
	PlayerHand game.Hand
	ServerHand game.Hand
	Outcome    game.Outcome
}

// CleanupPlan tells the disconnecting session what else must be torn
// down. When the room's host is the one leaving, Disconnect carries
// every other member that was still connected so the caller can close
// them out: a room cannot outlive its host.
type CleanupPlan struct {
	RoomCode   string
	HostLeft   bool
	Disconnect []uint64
}

// RoomStore is the single source of truth for room existence,
// membership and the started flag. All mutation happens under one
// store-wide lock, and the lock is never held across a channel send:
// mutating operations return a snapshot, and fan-out happens against
// that snapshot via the registry.
type RoomStore struct {
	mu       sync.Mutex
	rooms    map[string]*room
	codes    *roomcode.Generator
	dealer   *game.Dealer
	registry *Registry
	logger   zerolog.Logger
}

// NewRoomStore creates an empty store. codes and dealer carry the
// store's randomness so tests can inject deterministic sources.
func NewRoomStore(logger zerolog.Logger, registry *Registry, codes *roomcode.Generator, dealer *game.Dealer) *RoomStore {
	return &RoomStore{
		rooms:    make(map[string]*room),
		codes:    codes,
		dealer:   dealer,
		registry: registry,
		logger:   logger.With().Str("component", "rooms").Logger(),
	}
}

// CreateRoom generates a fresh code, retrying on collision, and
// inserts a new unstarted room with the host as its only member. The
// code space is practically unbounded relative to live rooms, so this
// always succeeds.
func (s *RoomStore) CreateRoom(hostID uint64, name string, outbound chan<- []byte) (RoomSnapshot, string) {
	host := &Member{
		ConnID:    hostID,
		Name:      name,
		Role:      RoleHost,
		Connected: true,
		outbound:  outbound,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var code string
	for {
		code = s.codes.Generate()
		if _, taken := s.rooms[code]; !taken {
			break
		}
		s.logger.Debug().Str("room_code", code).Msg("Room code collision, regenerating")
	}

	s.rooms[code] = &room{
		code:    code,
		hostID:  hostID,
		members: []*Member{host},
	}

	return snapshotLocked(s.rooms[code]), code
}

// JoinRoom appends the member to the room. It fails with
// ErrRoomNotFound for an unknown code and ErrGameAlreadyStarted once a
// round has begun; late joiners would corrupt mid-round state. The
// returned snapshot reflects the fully-appended member list.
func (s *RoomStore) JoinRoom(code string, connID uint64, name string, outbound chan<- []byte) (RoomSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rm, ok := s.rooms[code]
	if !ok {
		return RoomSnapshot{}, ErrRoomNotFound
	}
	if rm.started {
		return RoomSnapshot{}, ErrGameAlreadyStarted
	}

	rm.members = append(rm.members, &Member{
		ConnID:    connID,
		Name:      name,
		Role:      RolePlayer,
		Connected: true,
		outbound:  outbound,
	})

	return snapshotLocked(rm), nil
}

// StartGame flips the room's started flag and returns a snapshot of
// current members. Repeated calls on an already-started room return
// the current snapshot rather than erroring; started never goes back
// to false.
func (s *RoomStore) StartGame(code string) (RoomSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rm, ok := s.rooms[code]
	if !ok {
		return RoomSnapshot{}, ErrRoomNotFound
	}

	rm.started = true
	return snapshotLocked(rm), nil
}

// HostID reports the connection id of the room's host.
func (s *RoomStore) HostID(code string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rm, ok := s.rooms[code]
	if !ok {
		return 0, ErrRoomNotFound
	}
	return rm.hostID, nil
}

// PlayRound resolves one round for the acting member against a freshly
// dealt server hand. Each member plays independently against the
// server; nothing here is broadcast.
func (s *RoomStore) PlayRound(code string, connID uint64, hand game.Hand) (RoundResult, error) {
	s.mu.Lock()
	rm, ok := s.rooms[code]
	if !ok {
		s.mu.Unlock()
		return RoundResult{}, ErrRoomNotFound
	}
	member := rm.find(connID)
	if member == nil {
		s.mu.Unlock()
		return RoundResult{}, ErrMemberNotFound
	}
	name := member.Name
	s.mu.Unlock()

	serverHand := s.dealer.Deal()

	return RoundResult{
		ConnID:     connID,
		Name:       name,
		PlayerHand: hand,
		ServerHand: serverHand,
		Outcome:    game.Resolve(hand, serverHand),
	}, nil
}

// RemoveConnection marks the member disconnected in whichever room it
// belongs to and drops its outbound reference. If the member is the
// room's host, the room is deleted and the plan names every other
// member that was still connected so the caller can cascade the
// disconnect. A departing player leaves the room intact.
func (s *RoomStore) RemoveConnection(connID uint64) CleanupPlan {
	s.mu.Lock()
	defer s.mu.Unlock()

	for code, rm := range s.rooms {
		member := rm.find(connID)
		if member == nil {
			continue
		}

		member.Connected = false
		member.outbound = nil

		if rm.hostID != connID {
			return CleanupPlan{RoomCode: code}
		}

		plan := CleanupPlan{RoomCode: code, HostLeft: true}
		for _, m := range rm.members {
			if m.ConnID != connID && m.Connected {
				plan.Disconnect = append(plan.Disconnect, m.ConnID)
			}
		}
		delete(s.rooms, code)
		return plan
	}

	return CleanupPlan{}
}

// Broadcast enqueues one already-encoded frame to every connected
// member of the room. Recipients are snapshotted under the lock; the
// sends happen against the registry afterwards, so a member that
// vanishes mid-fan-out is simply skipped by the registry.
func (s *RoomStore) Broadcast(code string, payload []byte) {
	s.mu.Lock()
	rm, ok := s.rooms[code]
	if !ok {
		s.mu.Unlock()
		return
	}
	recipients := connectedIDsLocked(rm)
	s.mu.Unlock()

	for _, id := range recipients {
		s.registry.Send(id, payload)
	}
}

// SendSnapshot fans an encoded frame out to a snapshot's recipients.
func (s *RoomStore) SendSnapshot(snap RoomSnapshot, payload []byte) {
	for _, id := range snap.Recipients {
		s.registry.Send(id, payload)
	}
}

// RoomCount returns the number of live rooms.
func (s *RoomStore) RoomCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms)
}

// Members returns the member list of a room in join order.
func (s *RoomStore) Members(code string) ([]Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rm, ok := s.rooms[code]
	if !ok {
		return nil, ErrRoomNotFound
	}

	members := make([]Member, len(rm.members))
	for i, m := range rm.members {
		members[i] = *m
	}
	return members, nil
}

func snapshotLocked(rm *room) RoomSnapshot {
	snap := RoomSnapshot{
		Code:       rm.code,
		Started:    rm.started,
		Names:      make([]string, 0, len(rm.members)),
		Recipients: connectedIDsLocked(rm),
	}
	for _, m := range rm.members {
		snap.Names = append(snap.Names, m.Name)
	}
	return snap
}

func connectedIDsLocked(rm *room) []uint64 {
	ids := make([]uint64, 0, len(rm.members))
	for _, m := range rm.members {
		if m.Connected {
			ids = append(ids, m.ConnID)
		}
	}
	return ids
}
