package inmemory

import (
	"errors"
	"sync"
	"time"

	"github.com/syncroom/server/internal/domain"
)

var (
	ErrQueueLimitReached   = errors.New("queue limit reached")
	ErrMembersLimitReached = errors.New("members limit reached")
)

// Room is the authoritative state of one watch session. Every mutation
// takes the room mutex for the whole read-modify-write, so operations on
// one room are linearized while different rooms proceed in parallel.
// Broadcast fan-out happens outside the lock, in the service layer.
type Room struct {
	id     string
	limits Limits

	// emitMu serializes broadcast fan-out with this room's mutations: it
	// is acquired before the mutating call and held until the resulting
	// state delta has been written out, so receivers see deltas in
	// mutation order. The state mutex below is never held during writes.
	emitMu sync.Mutex

	mu                sync.Mutex
	participants      []domain.Participant
	queue             []domain.QueueItem
	messages          []domain.ChatMessage
	votes             []string
	currentVideoIndex int
	playerState       domain.PlayerState
	currentTime       float64
	idleSince         time.Time
}

func newRoom(id string, limits Limits) *Room {
	return &Room{
		id:          id,
		limits:      limits,
		playerState: domain.PlayerStatePaused,
		idleSince:   time.Now(),
	}
}

func (r *Room) ID() string {
	return r.id
}

func (r *Room) LockEmit() {
	r.emitMu.Lock()
}

func (r *Room) UnlockEmit() {
	r.emitMu.Unlock()
}

func (r *Room) snapshotLocked() domain.RoomSnapshot {
	snap := domain.RoomSnapshot{
		Participants:      make([]domain.Participant, len(r.participants)),
		Queue:             make([]domain.QueueItem, len(r.queue)),
		Messages:          make([]domain.ChatMessage, len(r.messages)),
		Votes:             make([]string, len(r.votes)),
		CurrentVideoIndex: r.currentVideoIndex,
		PlayerState:       r.playerState,
		CurrentTime:       r.currentTime,
	}
	copy(snap.Participants, r.participants)
	copy(snap.Queue, r.queue)
	copy(snap.Messages, r.messages)
	copy(snap.Votes, r.votes)

	return snap
}

func (r *Room) Snapshot() domain.RoomSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.snapshotLocked()
}

// Join adds p to the roster, replacing any participant with the same id in
// place so a re-join is idempotent. It returns the state to unicast to the
// joiner, captured atomically with the roster change.
func (r *Room) Join(p domain.Participant) (domain.RoomSnapshot, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	replaced := false
	for i := range r.participants {
		if r.participants[i].ID == p.ID {
			r.participants[i] = p
			replaced = true
			break
		}
	}
	if !replaced {
		if r.limits.Members > 0 && len(r.participants) >= r.limits.Members {
			return domain.RoomSnapshot{}, false, ErrMembersLimitReached
		}
		r.participants = append(r.participants, p)
	}
	r.idleSince = time.Time{}

	return r.snapshotLocked(), replaced, nil
}

// Leave removes the participant by id; absent ids are a no-op. When
// purgeVote is set the departing participant's pending vote is dropped,
// keeping the vote set a subset of the roster. Quorum is not re-evaluated
// here; that only ever happens inside CastVote.
func (r *Room) Leave(participantID string, purgeVote bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := false
	for i := range r.participants {
		if r.participants[i].ID == participantID {
			r.participants = append(r.participants[:i], r.participants[i+1:]...)
			removed = true
			break
		}
	}
	if !removed {
		return false
	}

	if purgeVote {
		for i, id := range r.votes {
			if id == participantID {
				r.votes = append(r.votes[:i], r.votes[i+1:]...)
				break
			}
		}
	}

	if len(r.participants) == 0 {
		r.idleSince = time.Now()
	}

	return true
}

// Patch merges only the supplied fields into the matching participant.
func (r *Room) Patch(participantID string, update *domain.ParticipantUpdate) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.participants {
		if r.participants[i].ID == participantID {
			update.Apply(&r.participants[i])
			return true
		}
	}

	return false
}

func (r *Room) ParticipantIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, len(r.participants))
	for i, p := range r.participants {
		ids[i] = p.ID
	}

	return ids
}

func (r *Room) Participant(participantID string) (domain.Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.participants {
		if p.ID == participantID {
			return p, true
		}
	}

	return domain.Participant{}, false
}

func (r *Room) ParticipantCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.participants)
}

// ApplyPlayerAction records a reported play/pause/seek. Seek leaves the
// player state untouched; every action overwrites the reported time.
func (r *Room) ApplyPlayerAction(action domain.PlayerAction, videoTime float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch action {
	case domain.PlayerActionPlay:
		r.playerState = domain.PlayerStatePlaying
	case domain.PlayerActionPause:
		r.playerState = domain.PlayerStatePaused
	}
	r.currentTime = videoTime
}

// ReportPlayerState records a locally-observed state such as buffering or
// ended. When autoAdvance is set and the reported state is ended, the
// queue advances exactly as a consensus advance would.
func (r *Room) ReportPlayerState(state domain.PlayerState, autoAdvance bool) (bool, int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.playerState = state

	if state == domain.PlayerStateEnded && autoAdvance && r.advanceLocked() {
		return true, r.currentVideoIndex
	}

	return false, r.currentVideoIndex
}

func (r *Room) AddItem(item domain.QueueItem) ([]domain.QueueItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.limits.Queue > 0 && len(r.queue) >= r.limits.Queue {
		return nil, ErrQueueLimitReached
	}

	r.queue = append(r.queue, item)

	return r.queueLocked(), nil
}

// RemoveItem removes by id; a missing id is a no-op but the (unchanged)
// queue is still returned for broadcasting.
func (r *Room) RemoveItem(itemID string) []domain.QueueItem {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.queue {
		if r.queue[i].ID == itemID {
			r.queue = append(r.queue[:i], r.queue[i+1:]...)
			break
		}
	}

	return r.queueLocked()
}

func (r *Room) queueLocked() []domain.QueueItem {
	queue := make([]domain.QueueItem, len(r.queue))
	copy(queue, r.queue)
	return queue
}

// SelectIndex is the explicit override of the playing position. The index
// is taken as reported; it may go stale when the queue later shrinks.
func (r *Room) SelectIndex(index int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.currentVideoIndex = index
	r.currentTime = 0
}

type VoteResult struct {
	// Voted is false when the voter was not on the roster; nothing changed.
	Voted bool
	// Votes is the vote set right after insertion, before any quorum clear.
	Votes []string
	// QuorumReached means every current participant has voted.
	QuorumReached bool
	// Advanced means the quorum moved currentVideoIndex forward. It stays
	// false when the queue was already at its last item.
	Advanced bool
	Index    int
}

// CastVote inserts the vote and evaluates consensus in one critical
// section, so quorum detection cannot double-fire across concurrent votes.
// The threshold is all currently known participants, recomputed live.
func (r *Room) CastVote(participantID string) VoteResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	member := false
	for _, p := range r.participants {
		if p.ID == participantID {
			member = true
			break
		}
	}

	res := VoteResult{Index: r.currentVideoIndex}
	if !member {
		res.Votes = append(res.Votes, r.votes...)
		return res
	}
	res.Voted = true

	voted := false
	for _, id := range r.votes {
		if id == participantID {
			voted = true
			break
		}
	}
	if !voted {
		r.votes = append(r.votes, participantID)
	}
	res.Votes = append(res.Votes, r.votes...)

	if len(r.votes) >= len(r.participants) {
		res.QuorumReached = true
		res.Advanced = r.advanceLocked()
		r.votes = nil
		res.Index = r.currentVideoIndex
	}

	return res
}

// advanceLocked moves to the next queue item when one exists. Callers hold
// the room mutex.
func (r *Room) advanceLocked() bool {
	if r.currentVideoIndex >= len(r.queue)-1 {
		return false
	}

	r.currentVideoIndex++
	r.currentTime = 0
	r.playerState = domain.PlayerStatePlaying
	r.votes = nil

	return true
}

// AppendMessage appends to the chat log, evicting from the front once the
// history limit is exceeded.
func (r *Room) AppendMessage(msg domain.ChatMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.messages = append(r.messages, msg)
	if limit := r.limits.ChatHistory; limit > 0 && len(r.messages) > limit {
		r.messages = r.messages[len(r.messages)-limit:]
	}
}

// IdleSince reports when the room last became empty. ok is false while the
// room has participants.
func (r *Room) IdleSince() (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.idleSince.IsZero() {
		return time.Time{}, false
	}

	return r.idleSince, true
}
