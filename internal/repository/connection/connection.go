package connection

import (
	"errors"
	"sync"

	"github.com/gorilla/websocket"
)

var (
	ErrAlreadyExists = errors.New("connection already exists")
	ErrNotFound      = errors.New("connection not found")
)

// Binding ties a connection to its single room membership. Participant ids
// are only unique within a room, so the pair is the key.
type Binding struct {
	RoomID        string
	ParticipantID string
}

// Peer wraps a websocket connection with a write lock. Broadcasts for one
// room fan out from whichever goroutine handled the triggering event, so
// two handlers may target the same receiver at once; gorilla connections
// do not allow concurrent writers.
type Peer struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func NewPeer(conn *websocket.Conn) *Peer {
	return &Peer{conn: conn}
}

func (p *Peer) WriteJSON(v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.conn.WriteJSON(v)
}

func (p *Peer) Close() error {
	if p.conn.NetConn() == nil {
		return nil
	}

	return p.conn.Close()
}
