package inmemory

import (
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syncroom/server/internal/repository/connection"
)

func newTestPeer() *connection.Peer {
	return connection.NewPeer(&websocket.Conn{})
}

func TestAddAndLookup(t *testing.T) {
	repo := NewRepo()
	peer := newTestPeer()

	displaced, err := repo.Add(peer, "room1", "a")
	require.NoError(t, err)
	assert.Nil(t, displaced)

	binding, err := repo.GetBinding(peer)
	require.NoError(t, err)
	assert.Equal(t, connection.Binding{RoomID: "room1", ParticipantID: "a"}, binding)

	got, err := repo.GetPeer("room1", "a")
	require.NoError(t, err)
	assert.Same(t, peer, got)
}

func TestAddRejectsSecondBindingForPeer(t *testing.T) {
	repo := NewRepo()
	peer := newTestPeer()

	_, err := repo.Add(peer, "room1", "a")
	require.NoError(t, err)

	_, err = repo.Add(peer, "room2", "b")
	assert.ErrorIs(t, err, connection.ErrAlreadyExists)
}

func TestAddDisplacesPreviousPeerOfParticipant(t *testing.T) {
	repo := NewRepo()
	oldPeer := newTestPeer()
	newPeer := newTestPeer()

	_, err := repo.Add(oldPeer, "room1", "a")
	require.NoError(t, err)

	displaced, err := repo.Add(newPeer, "room1", "a")
	require.NoError(t, err)
	assert.Same(t, oldPeer, displaced)

	// the displaced peer's binding is gone, so its close path is a no-op
	_, err = repo.RemoveByPeer(oldPeer)
	assert.ErrorIs(t, err, connection.ErrNotFound)

	got, err := repo.GetPeer("room1", "a")
	require.NoError(t, err)
	assert.Same(t, newPeer, got)
}

func TestRemoveByPeer(t *testing.T) {
	repo := NewRepo()
	peer := newTestPeer()

	_, err := repo.Add(peer, "room1", "a")
	require.NoError(t, err)

	binding, err := repo.RemoveByPeer(peer)
	require.NoError(t, err)
	assert.Equal(t, "a", binding.ParticipantID)

	_, err = repo.GetBinding(peer)
	assert.ErrorIs(t, err, connection.ErrNotFound)
	_, err = repo.GetPeer("room1", "a")
	assert.ErrorIs(t, err, connection.ErrNotFound)

	// a second remove of the same peer
	_, err = repo.RemoveByPeer(peer)
	assert.ErrorIs(t, err, connection.ErrNotFound)
}

func TestParticipantIDsScopedByRoom(t *testing.T) {
	repo := NewRepo()
	peer1 := newTestPeer()
	peer2 := newTestPeer()

	_, err := repo.Add(peer1, "room1", "a")
	require.NoError(t, err)
	_, err = repo.Add(peer2, "room2", "a")
	require.NoError(t, err)

	got, err := repo.GetPeer("room1", "a")
	require.NoError(t, err)
	assert.Same(t, peer1, got, "the same participant id in different rooms is a different binding")
}
