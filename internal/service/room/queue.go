package room

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/syncroom/server/internal/domain"
	"github.com/syncroom/server/internal/repository/connection"
	"github.com/syncroom/server/internal/repository/room/inmemory"
)

type AddQueueItemParams struct {
	Peer *connection.Peer
	Item domain.QueueItem
}

type AddQueueItemResponse struct {
	Item  domain.QueueItem
	Queue []domain.QueueItem
	Peers []*connection.Peer
}

func (s *service) AddQueueItem(ctx context.Context, params *AddQueueItemParams) (AddQueueItemResponse, error) {
	room, binding, ok := s.getRoom(params.Peer)
	if !ok {
		return AddQueueItemResponse{}, ErrNotJoined
	}

	item := params.Item
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.AddedBy == "" {
		if sender, ok := room.Participant(binding.ParticipantID); ok {
			item.AddedBy = sender.Name
		}
	}

	queue, err := room.AddItem(item)
	if err != nil {
		if errors.Is(err, inmemory.ErrQueueLimitReached) {
			return AddQueueItemResponse{}, ErrQueueLimitReached
		}
		return AddQueueItemResponse{}, fmt.Errorf("failed to add queue item: %w", err)
	}

	return AddQueueItemResponse{
		Item:  item,
		Queue: queue,
		Peers: s.getPeers(ctx, room, ""),
	}, nil
}

type RemoveQueueItemParams struct {
	Peer   *connection.Peer
	ItemID string
}

type RemoveQueueItemResponse struct {
	Queue []domain.QueueItem
	Peers []*connection.Peer
}

// RemoveQueueItem is idempotent: an unknown id leaves the queue unchanged
// but the queue is still broadcast, so retries and stale UIs converge.
func (s *service) RemoveQueueItem(ctx context.Context, params *RemoveQueueItemParams) (RemoveQueueItemResponse, error) {
	room, _, ok := s.getRoom(params.Peer)
	if !ok {
		return RemoveQueueItemResponse{}, ErrNotJoined
	}

	return RemoveQueueItemResponse{
		Queue: room.RemoveItem(params.ItemID),
		Peers: s.getPeers(ctx, room, ""),
	}, nil
}

type SelectVideoParams struct {
	Peer  *connection.Peer
	Index int
}

type SelectVideoResponse struct {
	Index int
	Peers []*connection.Peer
}

func (s *service) SelectVideo(ctx context.Context, params *SelectVideoParams) (SelectVideoResponse, error) {
	room, _, ok := s.getRoom(params.Peer)
	if !ok {
		return SelectVideoResponse{}, ErrNotJoined
	}

	room.SelectIndex(params.Index)

	return SelectVideoResponse{
		Index: params.Index,
		Peers: s.getPeers(ctx, room, ""),
	}, nil
}

type VoteNextParams struct {
	Peer *connection.Peer
	// ParticipantID defaults to the sender when empty. A vote for an id
	// that is not on the roster is a no-op.
	ParticipantID string
}

type VoteNextResponse struct {
	Voted bool
	// Votes is the set right after the vote was cast; broadcast before any
	// quorum result.
	Votes         []string
	QuorumReached bool
	Advanced      bool
	Index         int
	// Sync carries the synthetic play event broadcast after an advance.
	Sync  *domain.SyncEvent
	Peers []*connection.Peer
}

func (s *service) VoteNext(ctx context.Context, params *VoteNextParams) (VoteNextResponse, error) {
	room, binding, ok := s.getRoom(params.Peer)
	if !ok {
		return VoteNextResponse{}, ErrNotJoined
	}

	participantID := params.ParticipantID
	if participantID == "" {
		participantID = binding.ParticipantID
	}

	res := room.CastVote(participantID)

	resp := VoteNextResponse{
		Voted:         res.Voted,
		Votes:         res.Votes,
		QuorumReached: res.QuorumReached,
		Advanced:      res.Advanced,
		Index:         res.Index,
		Peers:         s.getPeers(ctx, room, ""),
	}

	if res.Advanced {
		s.logger.InfoContext(ctx, "queue advanced by consensus", "room_id", room.ID(), "index", res.Index)
		resp.Sync = &domain.SyncEvent{
			Action:     domain.PlayerActionPlay,
			VideoTime:  0,
			ServerTime: s.now().UnixMilli(),
			Initiator:  domain.SystemInitiator,
		}
	}

	return resp, nil
}
