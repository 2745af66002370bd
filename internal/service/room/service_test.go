package room

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syncroom/server/internal/domain"
	"github.com/syncroom/server/internal/repository/connection"
	conninmemory "github.com/syncroom/server/internal/repository/connection/inmemory"
	roominmemory "github.com/syncroom/server/internal/repository/room/inmemory"
)

var fixedNow = time.UnixMilli(1700000000000)

func newTestService(t *testing.T, config Config) (*service, *roominmemory.Repo) {
	t.Helper()

	roomRepo := roominmemory.NewRepo(roominmemory.Limits{Members: 32, Queue: 100, ChatHistory: 100})
	connRepo := conninmemory.NewRepo()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	svc := NewService(roomRepo, connRepo, config, logger)
	svc.now = func() time.Time { return fixedNow }

	return svc, roomRepo
}

func newTestPeer() *connection.Peer {
	return connection.NewPeer(&websocket.Conn{})
}

func join(t *testing.T, svc *service, roomID, participantID string) *connection.Peer {
	t.Helper()

	peer := newTestPeer()
	_, err := svc.JoinRoom(context.Background(), &JoinRoomParams{
		RoomID:      roomID,
		Participant: domain.Participant{ID: participantID, Name: participantID},
		Peer:        peer,
	})
	require.NoError(t, err)

	return peer
}

func TestJoinRoomFirstJoinerSnapshot(t *testing.T) {
	svc, _ := newTestService(t, Config{})
	ctx := context.Background()

	resp, err := svc.JoinRoom(ctx, &JoinRoomParams{
		RoomID:      "room1",
		Participant: domain.Participant{ID: "a", Name: "alice"},
		Peer:        newTestPeer(),
	})
	require.NoError(t, err)

	snap := resp.Snapshot
	require.Len(t, snap.Participants, 1)
	assert.Equal(t, "a", snap.Participants[0].ID)
	assert.Empty(t, snap.Queue)
	assert.Empty(t, snap.Messages)
	assert.Empty(t, snap.Votes)
	assert.Equal(t, 0, snap.CurrentVideoIndex)
	assert.Equal(t, domain.PlayerStatePaused, snap.PlayerState)
	assert.Equal(t, float64(0), snap.CurrentTime)

	assert.Empty(t, resp.OtherPeers, "first joiner has nobody to notify")
}

func TestJoinRoomNotifiesOthersExcludingSender(t *testing.T) {
	svc, _ := newTestService(t, Config{})
	ctx := context.Background()

	peerA := join(t, svc, "room1", "a")

	resp, err := svc.JoinRoom(ctx, &JoinRoomParams{
		RoomID:      "room1",
		Participant: domain.Participant{ID: "b", Name: "bob"},
		Peer:        newTestPeer(),
	})
	require.NoError(t, err)

	require.Len(t, resp.OtherPeers, 1)
	assert.Same(t, peerA, resp.OtherPeers[0])
	assert.Len(t, resp.Snapshot.Participants, 2)
}

func TestJoinRoomRejoinDisplacesOldConnection(t *testing.T) {
	svc, _ := newTestService(t, Config{})
	ctx := context.Background()

	oldPeer := join(t, svc, "room1", "a")
	join(t, svc, "room1", "b")

	newPeer := newTestPeer()
	resp, err := svc.JoinRoom(ctx, &JoinRoomParams{
		RoomID:      "room1",
		Participant: domain.Participant{ID: "a", Name: "alice2"},
		Peer:        newPeer,
	})
	require.NoError(t, err)
	assert.Len(t, resp.Snapshot.Participants, 2, "re-join does not grow the roster")

	// the displaced connection's deferred leave must be a no-op
	left, err := svc.LeaveRoom(ctx, &LeaveRoomParams{Peer: oldPeer})
	require.NoError(t, err)
	assert.False(t, left.Left)

	left, err = svc.LeaveRoom(ctx, &LeaveRoomParams{Peer: newPeer})
	require.NoError(t, err)
	assert.True(t, left.Left)
	assert.Equal(t, "a", left.ParticipantID)
}

func TestJoinRoomSecondJoinOnSamePeer(t *testing.T) {
	svc, repo := newTestService(t, Config{})

	peer := join(t, svc, "room1", "a")

	_, err := svc.JoinRoom(context.Background(), &JoinRoomParams{
		RoomID:      "room2",
		Participant: domain.Participant{ID: "a"},
		Peer:        peer,
	})
	assert.ErrorIs(t, err, ErrAlreadyJoined)

	_, ok := repo.Get("room2")
	assert.False(t, ok, "a rejected join must leave no room state behind")
}

func TestJoinRoomRejectionLeavesTargetRoomFunctional(t *testing.T) {
	svc, repo := newTestService(t, Config{})
	ctx := context.Background()

	boundPeer := join(t, svc, "room1", "a")

	_, err := svc.JoinRoom(ctx, &JoinRoomParams{
		RoomID:      "room2",
		Participant: domain.Participant{ID: "a", Name: "alice"},
		Peer:        boundPeer,
	})
	require.ErrorIs(t, err, ErrAlreadyJoined)

	// the rejected participant must not count toward room2's quorum
	peerB := join(t, svc, "room2", "b")
	_, err = svc.AddQueueItem(ctx, &AddQueueItemParams{Peer: peerB, Item: domain.QueueItem{VideoID: "v1"}})
	require.NoError(t, err)
	_, err = svc.AddQueueItem(ctx, &AddQueueItemParams{Peer: peerB, Item: domain.QueueItem{VideoID: "v2"}})
	require.NoError(t, err)

	vote, err := svc.VoteNext(ctx, &VoteNextParams{Peer: peerB})
	require.NoError(t, err)
	assert.True(t, vote.QuorumReached, "sole member's vote reaches quorum")
	assert.True(t, vote.Advanced)

	room2, ok := repo.Get("room2")
	require.True(t, ok)
	require.Len(t, room2.Snapshot().Participants, 1)
	assert.Equal(t, "b", room2.Snapshot().Participants[0].ID)
}

func TestLeaveRoomNeverJoinedIsNoop(t *testing.T) {
	svc, _ := newTestService(t, Config{})

	resp, err := svc.LeaveRoom(context.Background(), &LeaveRoomParams{Peer: newTestPeer()})
	require.NoError(t, err)
	assert.False(t, resp.Left)
}

func TestLeaveRoomPurgesVotePerPolicy(t *testing.T) {
	svc, repo := newTestService(t, Config{PurgeVotesOnLeave: true})
	ctx := context.Background()

	peerA := join(t, svc, "room1", "a")
	peerB := join(t, svc, "room1", "b")
	join(t, svc, "room1", "c")

	room, ok := repo.Get("room1")
	require.True(t, ok)
	_, err := svc.AddQueueItem(ctx, &AddQueueItemParams{Peer: peerA, Item: domain.QueueItem{VideoID: "v1"}})
	require.NoError(t, err)
	_, err = svc.AddQueueItem(ctx, &AddQueueItemParams{Peer: peerA, Item: domain.QueueItem{VideoID: "v2"}})
	require.NoError(t, err)

	vote, err := svc.VoteNext(ctx, &VoteNextParams{Peer: peerA})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, vote.Votes)

	resp, err := svc.LeaveRoom(ctx, &LeaveRoomParams{Peer: peerA})
	require.NoError(t, err)
	require.True(t, resp.Left)
	assert.Len(t, resp.Peers, 2, "leave is broadcast to everyone remaining")

	assert.Empty(t, room.Snapshot().Votes)
	assert.Equal(t, 0, room.Snapshot().CurrentVideoIndex, "leaving never triggers an advance")

	// remaining quorum is now b and c
	vote, err = svc.VoteNext(ctx, &VoteNextParams{Peer: peerB})
	require.NoError(t, err)
	assert.False(t, vote.QuorumReached)
}

func TestUpdateParticipantRequiresJoin(t *testing.T) {
	svc, _ := newTestService(t, Config{})

	name := "x"
	_, err := svc.UpdateParticipant(context.Background(), &UpdateParticipantParams{
		Peer:   newTestPeer(),
		Update: &domain.ParticipantUpdate{Name: &name},
	})
	assert.ErrorIs(t, err, ErrNotJoined)
}

func TestUpdateParticipantBroadcastsToAll(t *testing.T) {
	svc, repo := newTestService(t, Config{})
	ctx := context.Background()

	peerA := join(t, svc, "room1", "a")
	join(t, svc, "room1", "b")

	muted := true
	resp, err := svc.UpdateParticipant(ctx, &UpdateParticipantParams{
		Peer:   peerA,
		Update: &domain.ParticipantUpdate{IsMuted: &muted},
	})
	require.NoError(t, err)

	assert.True(t, resp.Applied)
	assert.Equal(t, "a", resp.ParticipantID)
	assert.Len(t, resp.Peers, 2, "updates are broadcast including the sender")

	room, _ := repo.Get("room1")
	p, found := room.Participant("a")
	require.True(t, found)
	assert.True(t, p.IsMuted)
	assert.Equal(t, "a", p.Name, "unspecified fields untouched")
}

func TestPlayerActionStampsServerTime(t *testing.T) {
	svc, repo := newTestService(t, Config{})
	ctx := context.Background()

	peerA := join(t, svc, "room1", "a")
	join(t, svc, "room1", "b")

	resp, err := svc.PlayerAction(ctx, &PlayerActionParams{
		Peer:      peerA,
		Action:    domain.PlayerActionPlay,
		VideoTime: 33.5,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.PlayerActionPlay, resp.Sync.Action)
	assert.Equal(t, 33.5, resp.Sync.VideoTime)
	assert.Equal(t, fixedNow.UnixMilli(), resp.Sync.ServerTime)
	assert.Equal(t, "a", resp.Sync.Initiator)
	assert.Len(t, resp.Peers, 2, "the originator reconciles like everyone else")

	room, _ := repo.Get("room1")
	assert.Equal(t, domain.PlayerStatePlaying, room.Snapshot().PlayerState)
}

func TestVoteNextConsensusFlow(t *testing.T) {
	svc, repo := newTestService(t, Config{PurgeVotesOnLeave: true})
	ctx := context.Background()

	peerA := join(t, svc, "room1", "a")
	peerB := join(t, svc, "room1", "b")

	_, err := svc.AddQueueItem(ctx, &AddQueueItemParams{Peer: peerA, Item: domain.QueueItem{VideoID: "v1"}})
	require.NoError(t, err)
	_, err = svc.AddQueueItem(ctx, &AddQueueItemParams{Peer: peerA, Item: domain.QueueItem{VideoID: "v2"}})
	require.NoError(t, err)

	resp, err := svc.VoteNext(ctx, &VoteNextParams{Peer: peerA})
	require.NoError(t, err)
	assert.True(t, resp.Voted)
	assert.Equal(t, []string{"a"}, resp.Votes)
	assert.False(t, resp.QuorumReached)
	assert.Nil(t, resp.Sync)

	resp, err = svc.VoteNext(ctx, &VoteNextParams{Peer: peerB})
	require.NoError(t, err)
	assert.True(t, resp.QuorumReached)
	assert.True(t, resp.Advanced)
	assert.Equal(t, 1, resp.Index)
	require.NotNil(t, resp.Sync)
	assert.Equal(t, domain.PlayerActionPlay, resp.Sync.Action)
	assert.Equal(t, float64(0), resp.Sync.VideoTime)
	assert.Equal(t, domain.SystemInitiator, resp.Sync.Initiator)
	assert.Equal(t, fixedNow.UnixMilli(), resp.Sync.ServerTime)

	room, _ := repo.Get("room1")
	snap := room.Snapshot()
	assert.Empty(t, snap.Votes)
	assert.Equal(t, 1, snap.CurrentVideoIndex)
	assert.Equal(t, domain.PlayerStatePlaying, snap.PlayerState)
}

func TestVoteNextQuorumAtLastItem(t *testing.T) {
	svc, _ := newTestService(t, Config{})
	ctx := context.Background()

	peerA := join(t, svc, "room1", "a")

	_, err := svc.AddQueueItem(ctx, &AddQueueItemParams{Peer: peerA, Item: domain.QueueItem{VideoID: "v1"}})
	require.NoError(t, err)

	resp, err := svc.VoteNext(ctx, &VoteNextParams{Peer: peerA})
	require.NoError(t, err)
	assert.True(t, resp.QuorumReached)
	assert.False(t, resp.Advanced, "last item: votes clear but nothing advances")
	assert.Nil(t, resp.Sync)
	assert.Equal(t, 0, resp.Index)
}

func TestVoteNextOnBehalfOfRosterIDOnly(t *testing.T) {
	svc, _ := newTestService(t, Config{})
	ctx := context.Background()

	peerA := join(t, svc, "room1", "a")
	join(t, svc, "room1", "b")

	resp, err := svc.VoteNext(ctx, &VoteNextParams{Peer: peerA, ParticipantID: "ghost"})
	require.NoError(t, err)
	assert.False(t, resp.Voted)
	assert.Empty(t, resp.Votes)
}

func TestAddQueueItemBackfillsIdentity(t *testing.T) {
	svc, _ := newTestService(t, Config{})
	ctx := context.Background()

	peerA := join(t, svc, "room1", "a")

	resp, err := svc.AddQueueItem(ctx, &AddQueueItemParams{
		Peer: peerA,
		Item: domain.QueueItem{VideoID: "dQw4w9WgXcQ", Title: "some video"},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.Item.ID)
	assert.Equal(t, "a", resp.Item.AddedBy, "attribution comes from the roster name")
	require.Len(t, resp.Queue, 1)
	assert.Equal(t, resp.Item, resp.Queue[0])
}

func TestRemoveQueueItemUnknownStillBroadcasts(t *testing.T) {
	svc, _ := newTestService(t, Config{})
	ctx := context.Background()

	peerA := join(t, svc, "room1", "a")
	added, err := svc.AddQueueItem(ctx, &AddQueueItemParams{Peer: peerA, Item: domain.QueueItem{VideoID: "v1"}})
	require.NoError(t, err)

	resp, err := svc.RemoveQueueItem(ctx, &RemoveQueueItemParams{Peer: peerA, ItemID: "missing"})
	require.NoError(t, err)
	assert.Len(t, resp.Queue, 1)
	assert.Len(t, resp.Peers, 1)

	resp, err = svc.RemoveQueueItem(ctx, &RemoveQueueItemParams{Peer: peerA, ItemID: added.Item.ID})
	require.NoError(t, err)
	assert.Empty(t, resp.Queue)
}

func TestReportPlayerStateAutoAdvance(t *testing.T) {
	svc, repo := newTestService(t, Config{AutoAdvanceOnEnd: true})
	ctx := context.Background()

	peerA := join(t, svc, "room1", "a")
	_, err := svc.AddQueueItem(ctx, &AddQueueItemParams{Peer: peerA, Item: domain.QueueItem{VideoID: "v1"}})
	require.NoError(t, err)
	_, err = svc.AddQueueItem(ctx, &AddQueueItemParams{Peer: peerA, Item: domain.QueueItem{VideoID: "v2"}})
	require.NoError(t, err)

	resp, err := svc.ReportPlayerState(ctx, &ReportPlayerStateParams{Peer: peerA, State: domain.PlayerStateEnded})
	require.NoError(t, err)

	assert.True(t, resp.Advanced)
	assert.Equal(t, 1, resp.Index)
	require.NotNil(t, resp.Sync)
	assert.Equal(t, domain.SystemInitiator, resp.Sync.Initiator)

	room, _ := repo.Get("room1")
	assert.Equal(t, 1, room.Snapshot().CurrentVideoIndex)
}

func TestReportPlayerStateNoAutoAdvanceByDefault(t *testing.T) {
	svc, repo := newTestService(t, Config{})
	ctx := context.Background()

	peerA := join(t, svc, "room1", "a")
	_, err := svc.AddQueueItem(ctx, &AddQueueItemParams{Peer: peerA, Item: domain.QueueItem{VideoID: "v1"}})
	require.NoError(t, err)
	_, err = svc.AddQueueItem(ctx, &AddQueueItemParams{Peer: peerA, Item: domain.QueueItem{VideoID: "v2"}})
	require.NoError(t, err)

	resp, err := svc.ReportPlayerState(ctx, &ReportPlayerStateParams{Peer: peerA, State: domain.PlayerStateEnded})
	require.NoError(t, err)

	assert.False(t, resp.Advanced)
	assert.Nil(t, resp.Sync)
	room, _ := repo.Get("room1")
	assert.Equal(t, domain.PlayerStateEnded, room.Snapshot().PlayerState)
}

func TestSendMessageBuildsAuthoritativeMessage(t *testing.T) {
	svc, repo := newTestService(t, Config{})
	ctx := context.Background()

	peerA := join(t, svc, "room1", "a")

	resp, err := svc.SendMessage(ctx, &SendMessageParams{Peer: peerA, Content: "hello"})
	require.NoError(t, err)

	msg := resp.Message
	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, "a", msg.SenderID)
	assert.Equal(t, "a", msg.SenderName)
	assert.Equal(t, "hello", msg.Content)
	assert.Equal(t, fixedNow.UnixMilli(), msg.Timestamp)

	room, _ := repo.Get("room1")
	require.Len(t, room.Snapshot().Messages, 1)
	assert.Equal(t, msg, room.Snapshot().Messages[0])
}

func TestCreateRoomIssuesUnusedID(t *testing.T) {
	svc, repo := newTestService(t, Config{})
	ctx := context.Background()

	roomID := svc.CreateRoom(ctx)
	assert.Len(t, roomID, roomIDLength)

	assert.False(t, svc.RoomExists(ctx, roomID), "no state until first join")

	join(t, svc, roomID, "a")
	assert.True(t, svc.RoomExists(ctx, roomID))
	assert.Equal(t, 1, repo.Len())
}

func TestLockRoomEmitSerializesSameRoom(t *testing.T) {
	svc, _ := newTestService(t, Config{})

	peerA := join(t, svc, "room1", "a")
	peerB := join(t, svc, "room1", "b")

	unlock := svc.LockRoomEmit(peerA, "")

	acquired := make(chan struct{})
	go func() {
		u := svc.LockRoomEmit(peerB, "")
		close(acquired)
		u()
	}()

	select {
	case <-acquired:
		t.Fatal("emission lock acquired while already held")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("emission lock was not released")
	}
}

func TestLockRoomEmitIndependentRooms(t *testing.T) {
	svc, _ := newTestService(t, Config{})

	peerA := join(t, svc, "room1", "a")
	peerB := join(t, svc, "room2", "b")

	unlockA := svc.LockRoomEmit(peerA, "")
	defer unlockA()

	acquired := make(chan struct{})
	go func() {
		u := svc.LockRoomEmit(peerB, "")
		close(acquired)
		u()
	}()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("rooms must not contend on each other's emission lock")
	}
}

func TestLockRoomEmitUnboundPeerIsNoop(t *testing.T) {
	svc, _ := newTestService(t, Config{})

	unlock := svc.LockRoomEmit(newTestPeer(), "")
	unlock()
	unlock()
}

func TestLockRoomEmitJoinPathTargetsSameLock(t *testing.T) {
	svc, _ := newTestService(t, Config{})

	peerA := join(t, svc, "room1", "a")

	// the join path locks by room id; it must serialize against events
	// from peers already bound to that room
	unlock := svc.LockRoomEmit(peerA, "")

	acquired := make(chan struct{})
	go func() {
		u := svc.LockRoomEmit(newTestPeer(), "room1")
		close(acquired)
		u()
	}()

	select {
	case <-acquired:
		t.Fatal("join-path lock acquired while the room's lock was held")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("emission lock was not released")
	}
}

func TestReapIdleRooms(t *testing.T) {
	svc, repo := newTestService(t, Config{RoomIdleTTL: 10 * time.Minute})
	ctx := context.Background()

	peerA := join(t, svc, "empty", "a")
	_, err := svc.LeaveRoom(ctx, &LeaveRoomParams{Peer: peerA})
	require.NoError(t, err)

	join(t, svc, "occupied", "b")

	svc.reapIdleRooms(ctx, time.Now().Add(5*time.Minute))
	assert.Equal(t, 2, repo.Len(), "not idle long enough yet")

	svc.reapIdleRooms(ctx, time.Now().Add(11*time.Minute))
	assert.Equal(t, 1, repo.Len())
	_, ok := repo.Get("empty")
	assert.False(t, ok)
	_, ok = repo.Get("occupied")
	assert.True(t, ok, "rooms with participants are never reaped")
}
