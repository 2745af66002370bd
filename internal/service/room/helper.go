package room

import (
	"context"

	"github.com/syncroom/server/internal/repository/connection"
	"github.com/syncroom/server/internal/repository/room/inmemory"
)

// getPeers maps the room's current roster to live connections, skipping
// ids that have no connection bound (a participant between re-joins).
func (s *service) getPeers(ctx context.Context, room *inmemory.Room, exclude string) []*connection.Peer {
	ids := room.ParticipantIDs()

	peers := make([]*connection.Peer, 0, len(ids))
	for _, id := range ids {
		if id == exclude {
			continue
		}

		peer, err := s.connRepo.GetPeer(room.ID(), id)
		if err != nil {
			s.logger.DebugContext(ctx, "no connection for participant", "room_id", room.ID(), "participant_id", id)
			continue
		}

		peers = append(peers, peer)
	}

	return peers
}

// LockRoomEmit acquires the emission lock of the room an operation
// targets, held from before the mutating call until its broadcasts are
// written, so state deltas reach receivers in mutation order. A bound
// peer locks its room; an unbound peer locks roomID (the join path,
// creating the room exactly as join would); neither resolving means the
// operation is a no-op and the returned unlock is too.
func (s *service) LockRoomEmit(peer *connection.Peer, roomID string) func() {
	room, _, ok := s.getRoom(peer)
	if !ok {
		if roomID == "" {
			return func() {}
		}
		room = s.roomRepo.GetOrCreate(roomID)
	}

	room.LockEmit()
	return room.UnlockEmit
}

// getRoom resolves the room the peer has joined. The bool is false when the
// peer never joined or the room is gone; both are silent no-ops for the
// caller by protocol.
func (s *service) getRoom(peer *connection.Peer) (*inmemory.Room, connection.Binding, bool) {
	binding, err := s.connRepo.GetBinding(peer)
	if err != nil {
		return nil, connection.Binding{}, false
	}

	room, ok := s.roomRepo.Get(binding.RoomID)
	if !ok {
		return nil, binding, false
	}

	return room, binding, true
}
