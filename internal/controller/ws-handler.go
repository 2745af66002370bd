package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/syncroom/server/internal/domain"
	"github.com/syncroom/server/internal/repository/connection"
	"github.com/syncroom/server/internal/service/room"
)

// serveWS upgrades the HTTP request and serves the room event protocol on
// the connection until it closes. The deferred disconnect runs the leave
// path exactly once per connection.
func (c *controller) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to upgrade to websocket", "error", err)
		return
	}

	peer := connection.NewPeer(conn)
	ctx := withPeer(r.Context(), peer)
	defer c.disconnect(ctx, peer)

	if err := c.wsmux.ServeConn(ctx, conn); err != nil {
		c.logger.DebugContext(ctx, "connection closed", "error", err)
	}
}

func (c *controller) disconnect(ctx context.Context, peer *connection.Peer) {
	unlock := c.roomService.LockRoomEmit(peer, "")
	defer unlock()

	resp, err := c.roomService.LeaveRoom(ctx, &room.LeaveRoomParams{Peer: peer})
	if err != nil {
		c.logger.InfoContext(ctx, "failed to leave room", "error", err)
		return
	}

	if resp.Left {
		c.broadcast(ctx, resp.Peers, &Output{
			Type:    "participant-left",
			Payload: resp.ParticipantID,
		})
	}
}

// decode unmarshals and validates an inbound payload.
func (c *controller) decode(payload json.RawMessage, dst any) error {
	if err := json.Unmarshal(payload, dst); err != nil {
		return fmt.Errorf("%w: malformed payload", ErrValidationError)
	}

	if validationErrors, ok := c.validate.Validate(dst); !ok {
		return fmt.Errorf("%w: %s", ErrValidationError, validationErrors[0].Message)
	}

	return nil
}

type participantInput struct {
	ID          string `json:"id" validate:"required,max=64"`
	Name        string `json:"name" validate:"required,max=32"`
	IsHost      bool   `json:"isHost"`
	IsMuted     bool   `json:"isMuted"`
	IsCameraOff bool   `json:"isCameraOff"`
}

type joinInput struct {
	RoomID      string           `json:"roomId" validate:"required,max=64"`
	Participant participantInput `json:"participant"`
}

func (c *controller) handleJoin(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) error {
	var input joinInput
	if err := c.decode(payload, &input); err != nil {
		return err
	}

	peer := c.getPeerFromCtx(ctx)

	unlock := c.roomService.LockRoomEmit(peer, input.RoomID)
	defer unlock()

	resp, err := c.roomService.JoinRoom(ctx, &room.JoinRoomParams{
		RoomID: input.RoomID,
		Participant: domain.Participant{
			ID:          input.Participant.ID,
			Name:        input.Participant.Name,
			IsHost:      input.Participant.IsHost,
			IsMuted:     input.Participant.IsMuted,
			IsCameraOff: input.Participant.IsCameraOff,
		},
		Peer: peer,
	})
	if err != nil {
		return fmt.Errorf("failed to join room: %w", err)
	}

	if err := c.writeToPeer(ctx, peer, &Output{
		Type:    "room-joined",
		Payload: resp.Snapshot,
	}); err != nil {
		return err
	}

	c.broadcast(ctx, resp.OtherPeers, &Output{
		Type:    "participant-joined",
		Payload: resp.Joined,
	})

	return nil
}

type leaveInput struct {
	RoomID string `json:"roomId"`
}

func (c *controller) handleLeave(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) error {
	var input leaveInput
	if err := c.decode(payload, &input); err != nil {
		return err
	}

	c.disconnect(ctx, c.getPeerFromCtx(ctx))

	return nil
}

type participantUpdateInput struct {
	RoomID  string                   `json:"roomId"`
	Updates domain.ParticipantUpdate `json:"updates"`
}

func (c *controller) handleParticipantUpdate(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) error {
	var input participantUpdateInput
	if err := c.decode(payload, &input); err != nil {
		return err
	}

	if input.Updates.Empty() {
		return fmt.Errorf("%w: updates must contain at least one field", ErrValidationError)
	}

	peer := c.getPeerFromCtx(ctx)
	unlock := c.roomService.LockRoomEmit(peer, "")
	defer unlock()

	resp, err := c.roomService.UpdateParticipant(ctx, &room.UpdateParticipantParams{
		Peer:   peer,
		Update: &input.Updates,
	})
	if err != nil {
		return fmt.Errorf("failed to update participant: %w", err)
	}

	if resp.Applied {
		c.broadcast(ctx, resp.Peers, &Output{
			Type: "participant-updated",
			Payload: map[string]any{
				"id":      resp.ParticipantID,
				"updates": resp.Update,
			},
		})
	}

	return nil
}

type playerActionInput struct {
	RoomID    string  `json:"roomId"`
	Action    string  `json:"action" validate:"required,oneof=play pause seek"`
	VideoTime float64 `json:"videoTime" validate:"gte=0"`
}

func (c *controller) handlePlayerAction(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) error {
	var input playerActionInput
	if err := c.decode(payload, &input); err != nil {
		return err
	}

	peer := c.getPeerFromCtx(ctx)
	unlock := c.roomService.LockRoomEmit(peer, "")
	defer unlock()

	resp, err := c.roomService.PlayerAction(ctx, &room.PlayerActionParams{
		Peer:      peer,
		Action:    domain.PlayerAction(input.Action),
		VideoTime: input.VideoTime,
	})
	if err != nil {
		return fmt.Errorf("failed to apply player action: %w", err)
	}

	c.broadcast(ctx, resp.Peers, &Output{
		Type:    "player-sync",
		Payload: resp.Sync,
	})

	return nil
}

type playerStateInput struct {
	RoomID string `json:"roomId"`
	State  string `json:"state" validate:"required,oneof=unstarted buffering ended"`
}

func (c *controller) handlePlayerState(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) error {
	var input playerStateInput
	if err := c.decode(payload, &input); err != nil {
		return err
	}

	peer := c.getPeerFromCtx(ctx)
	unlock := c.roomService.LockRoomEmit(peer, "")
	defer unlock()

	resp, err := c.roomService.ReportPlayerState(ctx, &room.ReportPlayerStateParams{
		Peer:  peer,
		State: domain.PlayerState(input.State),
	})
	if err != nil {
		return fmt.Errorf("failed to report player state: %w", err)
	}

	c.broadcast(ctx, resp.Peers, &Output{
		Type: "player-state-changed",
		Payload: map[string]any{
			"state":     resp.State,
			"initiator": resp.Initiator,
		},
	})

	if resp.Advanced {
		c.broadcastAdvance(ctx, resp.Peers, resp.Index, resp.Sync)
	}

	return nil
}

// broadcastAdvance emits the fixed advance sequence: the new index, the
// cleared vote set, then the synthetic play event.
func (c *controller) broadcastAdvance(ctx context.Context, peers []*connection.Peer, index int, sync *domain.SyncEvent) {
	c.broadcast(ctx, peers, &Output{
		Type:    "queue-video-changed",
		Payload: index,
	})
	c.broadcast(ctx, peers, &Output{
		Type:    "votes-updated",
		Payload: []string{},
	})
	if sync != nil {
		c.broadcast(ctx, peers, &Output{
			Type:    "player-sync",
			Payload: sync,
		})
	}
}

type queueItemInput struct {
	VideoID   string `json:"videoId" validate:"required,max=64"`
	Title     string `json:"title" validate:"max=256"`
	Thumbnail string `json:"thumbnail" validate:"max=512"`
	AddedBy   string `json:"addedBy" validate:"max=32"`
	Duration  string `json:"duration" validate:"max=16"`
}

type queueAddInput struct {
	RoomID string         `json:"roomId"`
	Item   queueItemInput `json:"item"`
}

func (c *controller) handleQueueAdd(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) error {
	var input queueAddInput
	if err := c.decode(payload, &input); err != nil {
		return err
	}

	item := domain.QueueItem{
		VideoID:   input.Item.VideoID,
		Title:     input.Item.Title,
		Thumbnail: input.Item.Thumbnail,
		AddedBy:   input.Item.AddedBy,
		Duration:  input.Item.Duration,
	}

	// backfill missing display metadata before touching room state; the
	// lookup is network I/O and must stay outside the mutation path and
	// outside the emission lock
	if item.Title == "" && c.videoMeta != nil {
		if data, err := c.videoMeta.Get(ctx, item.VideoID); err == nil {
			item.Title = data.Title
			if item.Thumbnail == "" {
				item.Thumbnail = data.ThumbnailURL
			}
		} else {
			c.logger.DebugContext(ctx, "failed to resolve video metadata", "video_id", item.VideoID, "error", err)
		}
	}

	peer := c.getPeerFromCtx(ctx)
	unlock := c.roomService.LockRoomEmit(peer, "")
	defer unlock()

	resp, err := c.roomService.AddQueueItem(ctx, &room.AddQueueItemParams{
		Peer: peer,
		Item: item,
	})
	if err != nil {
		return fmt.Errorf("failed to add queue item: %w", err)
	}

	c.broadcast(ctx, resp.Peers, &Output{
		Type:    "queue-updated",
		Payload: resp.Queue,
	})

	return nil
}

type queueRemoveInput struct {
	RoomID string `json:"roomId"`
	ItemID string `json:"itemId" validate:"required,max=64"`
}

func (c *controller) handleQueueRemove(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) error {
	var input queueRemoveInput
	if err := c.decode(payload, &input); err != nil {
		return err
	}

	peer := c.getPeerFromCtx(ctx)
	unlock := c.roomService.LockRoomEmit(peer, "")
	defer unlock()

	resp, err := c.roomService.RemoveQueueItem(ctx, &room.RemoveQueueItemParams{
		Peer:   peer,
		ItemID: input.ItemID,
	})
	if err != nil {
		return fmt.Errorf("failed to remove queue item: %w", err)
	}

	c.broadcast(ctx, resp.Peers, &Output{
		Type:    "queue-updated",
		Payload: resp.Queue,
	})

	return nil
}

type queueChangeVideoInput struct {
	RoomID string `json:"roomId"`
	Index  int    `json:"index" validate:"gte=0"`
}

func (c *controller) handleQueueChangeVideo(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) error {
	var input queueChangeVideoInput
	if err := c.decode(payload, &input); err != nil {
		return err
	}

	peer := c.getPeerFromCtx(ctx)
	unlock := c.roomService.LockRoomEmit(peer, "")
	defer unlock()

	resp, err := c.roomService.SelectVideo(ctx, &room.SelectVideoParams{
		Peer:  peer,
		Index: input.Index,
	})
	if err != nil {
		return fmt.Errorf("failed to change video: %w", err)
	}

	c.broadcast(ctx, resp.Peers, &Output{
		Type:    "queue-video-changed",
		Payload: resp.Index,
	})

	return nil
}

type voteNextInput struct {
	RoomID        string `json:"roomId"`
	ParticipantID string `json:"participantId" validate:"max=64"`
}

func (c *controller) handleVoteNext(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) error {
	var input voteNextInput
	if err := c.decode(payload, &input); err != nil {
		return err
	}

	peer := c.getPeerFromCtx(ctx)
	unlock := c.roomService.LockRoomEmit(peer, "")
	defer unlock()

	resp, err := c.roomService.VoteNext(ctx, &room.VoteNextParams{
		Peer:          peer,
		ParticipantID: input.ParticipantID,
	})
	if err != nil {
		return fmt.Errorf("failed to vote: %w", err)
	}

	votes := resp.Votes
	if votes == nil {
		votes = []string{}
	}
	c.broadcast(ctx, resp.Peers, &Output{
		Type:    "votes-updated",
		Payload: votes,
	})

	if resp.QuorumReached {
		if resp.Advanced {
			c.broadcastAdvance(ctx, resp.Peers, resp.Index, resp.Sync)
		} else {
			// end of queue: the votes clear but nothing plays next
			c.broadcast(ctx, resp.Peers, &Output{
				Type:    "votes-updated",
				Payload: []string{},
			})
		}
	}

	return nil
}

type chatMessageInput struct {
	Content string `json:"content" validate:"required,max=500"`
}

type chatSendInput struct {
	RoomID  string           `json:"roomId"`
	Message chatMessageInput `json:"message"`
}

func (c *controller) handleChatSend(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) error {
	var input chatSendInput
	if err := c.decode(payload, &input); err != nil {
		return err
	}

	peer := c.getPeerFromCtx(ctx)
	unlock := c.roomService.LockRoomEmit(peer, "")
	defer unlock()

	resp, err := c.roomService.SendMessage(ctx, &room.SendMessageParams{
		Peer:    peer,
		Content: input.Message.Content,
	})
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	c.broadcast(ctx, resp.Peers, &Output{
		Type:    "chat-message",
		Payload: resp.Message,
	})

	return nil
}
