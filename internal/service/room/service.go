package room

import (
	"errors"
	"log/slog"
	"time"

	"github.com/syncroom/server/internal/repository/connection"
	"github.com/syncroom/server/internal/repository/room/inmemory"
	"github.com/syncroom/server/pkg/randstr"
)

var (
	ErrNotJoined           = errors.New("connection has not joined a room")
	ErrAlreadyJoined       = errors.New("connection already joined a room")
	ErrMembersLimitReached = errors.New("members limit reached")
	ErrQueueLimitReached   = errors.New("queue limit reached")
)

const roomIDLength = 8

type iRoomRepo interface {
	GetOrCreate(roomID string) *inmemory.Room
	Get(roomID string) (*inmemory.Room, bool)
	Delete(roomID string)
	RoomIDs() []string
}

type iConnRepo interface {
	Add(peer *connection.Peer, roomID, participantID string) (*connection.Peer, error)
	RemoveByPeer(peer *connection.Peer) (connection.Binding, error)
	GetBinding(peer *connection.Peer) (connection.Binding, error)
	GetPeer(roomID, participantID string) (*connection.Peer, error)
}

type iGenerator interface {
	GenerateRandomString(length int) string
}

type Config struct {
	// AutoAdvanceOnEnd makes an ended report advance the queue instead of
	// leaving advancement strictly to consensus voting.
	AutoAdvanceOnEnd bool
	// PurgeVotesOnLeave drops a departing participant's pending vote so the
	// vote set stays a subset of the roster.
	PurgeVotesOnLeave bool
	// RoomIdleTTL is how long an empty room survives before the reaper
	// deletes it. Zero disables reaping.
	RoomIdleTTL time.Duration
}

type service struct {
	roomRepo  iRoomRepo
	connRepo  iConnRepo
	generator iGenerator
	config    Config
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(roomRepo iRoomRepo, connRepo iConnRepo, config Config, logger *slog.Logger) *service {
	letterBytes := []byte("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789")

	return &service{
		roomRepo:  roomRepo,
		connRepo:  connRepo,
		generator: randstr.New(letterBytes),
		config:    config,
		logger:    logger,
		now:       time.Now,
	}
}
