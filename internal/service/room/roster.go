package room

import (
	"context"
	"errors"
	"fmt"

	"github.com/syncroom/server/internal/domain"
	"github.com/syncroom/server/internal/repository/connection"
	"github.com/syncroom/server/internal/repository/room/inmemory"
)

type JoinRoomParams struct {
	RoomID      string
	Participant domain.Participant
	Peer        *connection.Peer
}

type JoinRoomResponse struct {
	// Snapshot is the full room state to unicast to the joiner, captured
	// atomically with the roster change.
	Snapshot domain.RoomSnapshot
	Joined   domain.Participant
	// OtherPeers receive the participant-joined broadcast; the sender is
	// excluded by protocol.
	OtherPeers []*connection.Peer
}

func (s *service) JoinRoom(ctx context.Context, params *JoinRoomParams) (JoinRoomResponse, error) {
	// a rejected join must not touch the target room, so the binding is
	// checked before any room state is created or mutated
	if _, err := s.connRepo.GetBinding(params.Peer); err == nil {
		return JoinRoomResponse{}, ErrAlreadyJoined
	}

	room := s.roomRepo.GetOrCreate(params.RoomID)

	snapshot, replaced, err := room.Join(params.Participant)
	if err != nil {
		if errors.Is(err, inmemory.ErrMembersLimitReached) {
			return JoinRoomResponse{}, ErrMembersLimitReached
		}
		return JoinRoomResponse{}, fmt.Errorf("failed to join room: %w", err)
	}

	displaced, err := s.connRepo.Add(params.Peer, params.RoomID, params.Participant.ID)
	if err != nil {
		if !replaced {
			room.Leave(params.Participant.ID, true)
		}
		return JoinRoomResponse{}, ErrAlreadyJoined
	}
	if displaced != nil {
		// the old connection of a re-joining participant; its deferred
		// leave becomes a no-op once the binding is gone
		displaced.Close()
	}

	s.logger.InfoContext(ctx, "participant joined",
		"room_id", params.RoomID,
		"participant_id", params.Participant.ID,
		"rejoined", replaced,
	)

	return JoinRoomResponse{
		Snapshot:   snapshot,
		Joined:     params.Participant,
		OtherPeers: s.getPeers(ctx, room, params.Participant.ID),
	}, nil
}

type LeaveRoomParams struct {
	Peer *connection.Peer
}

type LeaveRoomResponse struct {
	Left          bool
	RoomID        string
	ParticipantID string
	Peers         []*connection.Peer
}

// LeaveRoom handles both the explicit leave event and the connection-close
// path; the binding removal makes it run at most once per connection.
func (s *service) LeaveRoom(ctx context.Context, params *LeaveRoomParams) (LeaveRoomResponse, error) {
	binding, err := s.connRepo.RemoveByPeer(params.Peer)
	if err != nil {
		return LeaveRoomResponse{}, nil
	}

	room, ok := s.roomRepo.Get(binding.RoomID)
	if !ok {
		return LeaveRoomResponse{}, nil
	}

	if !room.Leave(binding.ParticipantID, s.config.PurgeVotesOnLeave) {
		return LeaveRoomResponse{}, nil
	}

	s.logger.InfoContext(ctx, "participant left",
		"room_id", binding.RoomID,
		"participant_id", binding.ParticipantID,
	)

	return LeaveRoomResponse{
		Left:          true,
		RoomID:        binding.RoomID,
		ParticipantID: binding.ParticipantID,
		Peers:         s.getPeers(ctx, room, ""),
	}, nil
}

type UpdateParticipantParams struct {
	Peer   *connection.Peer
	Update *domain.ParticipantUpdate
}

type UpdateParticipantResponse struct {
	Applied       bool
	ParticipantID string
	Update        *domain.ParticipantUpdate
	Peers         []*connection.Peer
}

func (s *service) UpdateParticipant(ctx context.Context, params *UpdateParticipantParams) (UpdateParticipantResponse, error) {
	room, binding, ok := s.getRoom(params.Peer)
	if !ok {
		return UpdateParticipantResponse{}, ErrNotJoined
	}

	if !room.Patch(binding.ParticipantID, params.Update) {
		return UpdateParticipantResponse{}, nil
	}

	return UpdateParticipantResponse{
		Applied:       true,
		ParticipantID: binding.ParticipantID,
		Update:        params.Update,
		Peers:         s.getPeers(ctx, room, ""),
	}, nil
}
