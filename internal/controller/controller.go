package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/syncroom/server/internal/repository/connection"
	"github.com/syncroom/server/internal/service/room"
	"github.com/syncroom/server/internal/service/search"
	"github.com/syncroom/server/pkg/validator"
	"github.com/syncroom/server/pkg/videometa"
	"github.com/syncroom/server/pkg/wsrouter"
)

var ErrValidationError = errors.New("validation error")

type iRoomService interface {
	CreateRoom(ctx context.Context) string
	RoomExists(ctx context.Context, roomID string) bool
	LockRoomEmit(peer *connection.Peer, roomID string) func()
	JoinRoom(ctx context.Context, params *room.JoinRoomParams) (room.JoinRoomResponse, error)
	LeaveRoom(ctx context.Context, params *room.LeaveRoomParams) (room.LeaveRoomResponse, error)
	UpdateParticipant(ctx context.Context, params *room.UpdateParticipantParams) (room.UpdateParticipantResponse, error)
	PlayerAction(ctx context.Context, params *room.PlayerActionParams) (room.PlayerActionResponse, error)
	ReportPlayerState(ctx context.Context, params *room.ReportPlayerStateParams) (room.ReportPlayerStateResponse, error)
	AddQueueItem(ctx context.Context, params *room.AddQueueItemParams) (room.AddQueueItemResponse, error)
	RemoveQueueItem(ctx context.Context, params *room.RemoveQueueItemParams) (room.RemoveQueueItemResponse, error)
	SelectVideo(ctx context.Context, params *room.SelectVideoParams) (room.SelectVideoResponse, error)
	VoteNext(ctx context.Context, params *room.VoteNextParams) (room.VoteNextResponse, error)
	SendMessage(ctx context.Context, params *room.SendMessageParams) (room.SendMessageResponse, error)
}

type iSearchService interface {
	Search(ctx context.Context, query string) ([]search.Video, error)
}

type iVideoMeta interface {
	Get(ctx context.Context, videoID string) (*videometa.VideoData, error)
}

type controller struct {
	roomService   iRoomService
	searchService iSearchService
	videoMeta     iVideoMeta
	upgrader      websocket.Upgrader
	wsmux         *wsrouter.WSRouter
	validate      *validator.Validator
	logger        *slog.Logger
}

func NewController(roomService iRoomService, searchService iSearchService, videoMeta iVideoMeta, logger *slog.Logger) *controller {
	c := &controller{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		roomService:   roomService,
		searchService: searchService,
		videoMeta:     videoMeta,
		validate:      validator.NewValidator(),
		logger:        logger,
	}
	c.wsmux = c.getWSRouter()

	return c
}

// Output is the outbound frame of the room event protocol.
type Output struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

func (c *controller) writeToPeer(ctx context.Context, peer *connection.Peer, output *Output) error {
	if err := peer.WriteJSON(output); err != nil {
		return fmt.Errorf("failed to write to peer: %w", err)
	}

	return nil
}

func (c *controller) broadcast(ctx context.Context, peers []*connection.Peer, output *Output) {
	for _, peer := range peers {
		if err := peer.WriteJSON(output); err != nil {
			c.logger.DebugContext(ctx, "failed to write to peer", "type", output.Type, "error", err)
		}
	}
}

// onWSError turns handler errors into unicast error events. A not-joined
// or unknown-target condition is a silent no-op by protocol, so only
// actionable errors reach the sender.
func (c *controller) onWSError(ctx context.Context, conn *websocket.Conn, err error) {
	if errors.Is(err, room.ErrNotJoined) {
		c.logger.DebugContext(ctx, "event from connection without room", "error", err)
		return
	}

	c.logger.InfoContext(ctx, "websocket handler error", "error", err)

	peer := c.getPeerFromCtx(ctx)
	if peer == nil {
		return
	}

	if writeErr := c.writeToPeer(ctx, peer, &Output{
		Type:    "error",
		Payload: err.Error(),
	}); writeErr != nil {
		c.logger.DebugContext(ctx, "failed to write error", "error", writeErr)
	}
}

func (c *controller) generateTimeBasedID() string {
	return fmt.Sprintf("%d", time.Now().UnixNano())
}
