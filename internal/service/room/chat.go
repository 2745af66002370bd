package room

import (
	"context"

	"github.com/google/uuid"
	"github.com/syncroom/server/internal/domain"
	"github.com/syncroom/server/internal/repository/connection"
)

type SendMessageParams struct {
	Peer    *connection.Peer
	Content string
}

type SendMessageResponse struct {
	Message domain.ChatMessage
	Peers   []*connection.Peer
}

// SendMessage builds the authoritative message server-side: id, timestamp
// and sender identity come from the roster, not from the payload.
func (s *service) SendMessage(ctx context.Context, params *SendMessageParams) (SendMessageResponse, error) {
	room, binding, ok := s.getRoom(params.Peer)
	if !ok {
		return SendMessageResponse{}, ErrNotJoined
	}

	senderName := binding.ParticipantID
	if sender, ok := room.Participant(binding.ParticipantID); ok {
		senderName = sender.Name
	}

	message := domain.ChatMessage{
		ID:         uuid.NewString(),
		SenderID:   binding.ParticipantID,
		SenderName: senderName,
		Content:    params.Content,
		Timestamp:  s.now().UnixMilli(),
	}

	room.AppendMessage(message)

	return SendMessageResponse{
		Message: message,
		Peers:   s.getPeers(ctx, room, ""),
	}, nil
}
