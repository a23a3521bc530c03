package signaling

import (
	"slices"
	"sync"
)

// MaxMembers is the number of connections a room can hold.
const MaxMembers = 2

// JoinOutcome is the result of joining a room.
type JoinOutcome int

const (
	// Created means the room did not exist and the caller is now its host.
	Created JoinOutcome = iota + 1
	// Joined means the caller became the second member.
	Joined
	// Full means the room already had two members. Nothing changed.
	Full
)

func (o JoinOutcome) String() string {
	switch o {
	case Created:
		return "created"
	case Joined:
		return "joined"
	case Full:
		return "full"
	default:
		return "unknown"
	}
}

// Room represents a meeting with at most two members. Members are kept in
// join order, so Members[0] is the host.
type Room struct {
	ID      string
	Members []ConnID
}

func (r *Room) has(conn ConnID) bool {
	return slices.Contains(r.Members, conn)
}

// RoomTable maps room ids to their members. Every mutation happens under one
// lock, so the member cap is checked and applied atomically.
type RoomTable struct {
	mu    sync.Mutex
	rooms map[string]*Room
}

// NewRoomTable creates an empty table.
func NewRoomTable() *RoomTable {
	return &RoomTable{rooms: make(map[string]*Room)}
}

// Join adds conn to the room, creating the room when it does not exist.
// Joining a room conn already belongs to reports Joined and changes nothing.
func (t *RoomTable) Join(conn ConnID, roomID string) JoinOutcome {
	t.mu.Lock()
	defer t.mu.Unlock()

	room, ok := t.rooms[roomID]
	if !ok {
		t.rooms[roomID] = &Room{ID: roomID, Members: []ConnID{conn}}
		return Created
	}

	if room.has(conn) {
		return Joined
	}

	if len(room.Members) >= MaxMembers {
		return Full
	}

	room.Members = append(room.Members, conn)
	return Joined
}

// Leave removes conn from the room and deletes the room once it is empty.
// It reports whether conn was a member; leaving twice is harmless.
func (t *RoomTable) Leave(conn ConnID, roomID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	room, ok := t.rooms[roomID]
	if !ok {
		return false
	}

	i := slices.Index(room.Members, conn)
	if i < 0 {
		return false
	}

	room.Members = slices.Delete(room.Members, i, i+1)
	if len(room.Members) == 0 {
		delete(t.rooms, roomID)
	}
	return true
}

// OtherMember returns the member of roomID that is not conn. It reports
// false when conn is alone, when the room does not exist, or when conn is
// not a member at all.
func (t *RoomTable) OtherMember(conn ConnID, roomID string) (ConnID, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	room, ok := t.rooms[roomID]
	if !ok || !room.has(conn) {
		return "", false
	}

	for _, m := range room.Members {
		if m != conn {
			return m, true
		}
	}
	return "", false
}

// Members returns a copy of the room's members in join order.
func (t *RoomTable) Members(roomID string) []ConnID {
	t.mu.Lock()
	defer t.mu.Unlock()

	room, ok := t.rooms[roomID]
	if !ok {
		return nil
	}
	return slices.Clone(room.Members)
}

// Exists reports whether anyone is in roomID.
func (t *RoomTable) Exists(roomID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, ok := t.rooms[roomID]
	return ok
}

// Len returns the number of open rooms.
func (t *RoomTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.rooms)
}
