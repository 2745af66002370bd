package controller

import (
	"github.com/syncroom/server/pkg/wsrouter"
)

// getWSRouter wires the inbound room event protocol. Event names are part
// of the wire contract; changing one breaks deployed clients.
func (c *controller) getWSRouter() *wsrouter.WSRouter {
	mux := wsrouter.New(c.onWSError)

	// roster
	mux.Handle("join", c.handleJoin)
	mux.Handle("leave", c.handleLeave)
	mux.Handle("participant-update", c.handleParticipantUpdate)

	// playback
	mux.Handle("player-action", c.handlePlayerAction)
	mux.Handle("player-state", c.handlePlayerState)

	// queue
	mux.Handle("queue-add", c.handleQueueAdd)
	mux.Handle("queue-remove", c.handleQueueRemove)
	mux.Handle("queue-change-video", c.handleQueueChangeVideo)
	mux.Handle("vote-next", c.handleVoteNext)

	// chat
	mux.Handle("chat-send", c.handleChatSend)

	return mux
}
