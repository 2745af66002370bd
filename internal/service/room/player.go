package room

import (
	"context"

	"github.com/syncroom/server/internal/domain"
	"github.com/syncroom/server/internal/repository/connection"
)

type PlayerActionParams struct {
	Peer      *connection.Peer
	Action    domain.PlayerAction
	VideoTime float64
}

type PlayerActionResponse struct {
	Sync domain.SyncEvent
	// Peers includes the sender: the originator reconciles against the
	// same server timestamp as everyone else.
	Peers []*connection.Peer
}

func (s *service) PlayerAction(ctx context.Context, params *PlayerActionParams) (PlayerActionResponse, error) {
	room, binding, ok := s.getRoom(params.Peer)
	if !ok {
		return PlayerActionResponse{}, ErrNotJoined
	}

	room.ApplyPlayerAction(params.Action, params.VideoTime)

	return PlayerActionResponse{
		Sync: domain.SyncEvent{
			Action:     params.Action,
			VideoTime:  params.VideoTime,
			ServerTime: s.now().UnixMilli(),
			Initiator:  binding.ParticipantID,
		},
		Peers: s.getPeers(ctx, room, ""),
	}, nil
}

type ReportPlayerStateParams struct {
	Peer  *connection.Peer
	State domain.PlayerState
}

type ReportPlayerStateResponse struct {
	State     domain.PlayerState
	Initiator string
	Peers     []*connection.Peer
	// Advanced is set when an ended report auto-advanced the queue under
	// the auto-advance-on-end policy; Index and Sync then carry the same
	// payloads a consensus advance broadcasts.
	Advanced bool
	Index    int
	Sync     *domain.SyncEvent
}

func (s *service) ReportPlayerState(ctx context.Context, params *ReportPlayerStateParams) (ReportPlayerStateResponse, error) {
	room, binding, ok := s.getRoom(params.Peer)
	if !ok {
		return ReportPlayerStateResponse{}, ErrNotJoined
	}

	advanced, index := room.ReportPlayerState(params.State, s.config.AutoAdvanceOnEnd)

	resp := ReportPlayerStateResponse{
		State:     params.State,
		Initiator: binding.ParticipantID,
		Peers:     s.getPeers(ctx, room, ""),
		Advanced:  advanced,
		Index:     index,
	}

	if advanced {
		s.logger.InfoContext(ctx, "queue advanced on ended report", "room_id", room.ID(), "index", index)
		resp.Sync = &domain.SyncEvent{
			Action:     domain.PlayerActionPlay,
			VideoTime:  0,
			ServerTime: s.now().UnixMilli(),
			Initiator:  domain.SystemInitiator,
		}
	}

	return resp, nil
}
