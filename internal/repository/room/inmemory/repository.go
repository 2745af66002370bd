// Package inmemory holds the process-wide room registry and the per-room
// state machine. Nothing here survives a restart; that is by contract, the
// service keeps no persistent room state.
package inmemory

import "sync"

// Limits caps the growable sequences of every room. Zero disables a cap,
// except ChatHistory where zero keeps the log unbounded.
type Limits struct {
	Members     int
	Queue       int
	ChatHistory int
}

// Repo is the injectable room registry. Rooms are created lazily on first
// reference and removed only by an explicit Delete (the idle reaper).
type Repo struct {
	mu     sync.RWMutex
	rooms  map[string]*Room
	limits Limits
}

func NewRepo(limits Limits) *Repo {
	return &Repo{
		rooms:  make(map[string]*Room),
		limits: limits,
	}
}

// GetOrCreate returns the room for roomID, constructing a fresh empty one
// on first reference. Two simultaneous first touches of the same id yield
// the same room.
func (r *Repo) GetOrCreate(roomID string) *Room {
	r.mu.RLock()
	room, ok := r.rooms[roomID]
	r.mu.RUnlock()
	if ok {
		return room
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if room, ok := r.rooms[roomID]; ok {
		return room
	}

	room = newRoom(roomID, r.limits)
	r.rooms[roomID] = room

	return room
}

func (r *Repo) Get(roomID string) (*Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[roomID]

	return room, ok
}

func (r *Repo) Delete(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.rooms, roomID)
}

func (r *Repo) RoomIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.rooms))
	for id := range r.rooms {
		ids = append(ids, id)
	}

	return ids
}

func (r *Repo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.rooms)
}
