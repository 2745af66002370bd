package inmemory

import (
	"sync"

	"github.com/syncroom/server/internal/repository/connection"
)

type Repo struct {
	mu       sync.RWMutex
	byPeer   map[*connection.Peer]connection.Binding
	byMember map[connection.Binding]*connection.Peer
}

func NewRepo() *Repo {
	return &Repo{
		byPeer:   make(map[*connection.Peer]connection.Binding),
		byMember: make(map[connection.Binding]*connection.Peer),
	}
}

// Add binds peer to (roomID, participantID). A peer can hold at most one
// binding; re-binding an existing peer is an error. Binding the same
// participant to a new peer replaces the old one (idempotent re-join) and
// returns the displaced peer so the caller can close it.
func (r *Repo) Add(peer *connection.Peer, roomID, participantID string) (*connection.Peer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byPeer[peer]; ok {
		return nil, connection.ErrAlreadyExists
	}

	binding := connection.Binding{RoomID: roomID, ParticipantID: participantID}
	displaced := r.byMember[binding]
	if displaced != nil {
		delete(r.byPeer, displaced)
	}

	r.byPeer[peer] = binding
	r.byMember[binding] = peer

	return displaced, nil
}

// RemoveByPeer drops the binding for peer. Returns ErrNotFound when the
// peer is unknown, which happens when it was displaced by a re-join.
func (r *Repo) RemoveByPeer(peer *connection.Peer) (connection.Binding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	binding, ok := r.byPeer[peer]
	if !ok {
		return connection.Binding{}, connection.ErrNotFound
	}

	delete(r.byPeer, peer)
	delete(r.byMember, binding)

	return binding, nil
}

func (r *Repo) GetBinding(peer *connection.Peer) (connection.Binding, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	binding, ok := r.byPeer[peer]
	if !ok {
		return connection.Binding{}, connection.ErrNotFound
	}

	return binding, nil
}

func (r *Repo) GetPeer(roomID, participantID string) (*connection.Peer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	peer, ok := r.byMember[connection.Binding{RoomID: roomID, ParticipantID: participantID}]
	if !ok {
		return nil, connection.ErrNotFound
	}

	return peer, nil
}
