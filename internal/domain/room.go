package domain

// PlayerState is the last playback state reported by a participant. It is
// trusted as-is; nothing verifies it against the actual player.
type PlayerState string

const (
	PlayerStateUnstarted PlayerState = "unstarted"
	PlayerStatePlaying   PlayerState = "playing"
	PlayerStatePaused    PlayerState = "paused"
	PlayerStateBuffering PlayerState = "buffering"
	PlayerStateEnded     PlayerState = "ended"
)

func (s PlayerState) Valid() bool {
	switch s {
	case PlayerStateUnstarted, PlayerStatePlaying, PlayerStatePaused, PlayerStateBuffering, PlayerStateEnded:
		return true
	}
	return false
}

type PlayerAction string

const (
	PlayerActionPlay  PlayerAction = "play"
	PlayerActionPause PlayerAction = "pause"
	PlayerActionSeek  PlayerAction = "seek"
)

func (a PlayerAction) Valid() bool {
	switch a {
	case PlayerActionPlay, PlayerActionPause, PlayerActionSeek:
		return true
	}
	return false
}

type Participant struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	IsHost      bool   `json:"isHost"`
	IsMuted     bool   `json:"isMuted"`
	IsCameraOff bool   `json:"isCameraOff"`
}

// ParticipantUpdate carries a partial update. A nil field was not supplied
// and keeps its prior value, which is distinct from being set to the zero
// value.
type ParticipantUpdate struct {
	Name        *string `json:"name,omitempty"`
	IsHost      *bool   `json:"isHost,omitempty"`
	IsMuted     *bool   `json:"isMuted,omitempty"`
	IsCameraOff *bool   `json:"isCameraOff,omitempty"`
}

func (u *ParticipantUpdate) Empty() bool {
	return u.Name == nil && u.IsHost == nil && u.IsMuted == nil && u.IsCameraOff == nil
}

func (u *ParticipantUpdate) Apply(p *Participant) {
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.IsHost != nil {
		p.IsHost = *u.IsHost
	}
	if u.IsMuted != nil {
		p.IsMuted = *u.IsMuted
	}
	if u.IsCameraOff != nil {
		p.IsCameraOff = *u.IsCameraOff
	}
}

type QueueItem struct {
	ID        string `json:"id"`
	VideoID   string `json:"videoId"`
	Title     string `json:"title"`
	Thumbnail string `json:"thumbnail"`
	AddedBy   string `json:"addedBy"`
	Duration  string `json:"duration,omitempty"`
}

type ChatMessage struct {
	ID         string `json:"id"`
	SenderID   string `json:"senderId"`
	SenderName string `json:"senderName"`
	Content    string `json:"content"`
	Timestamp  int64  `json:"timestamp"`
	IsSystem   bool   `json:"isSystem,omitempty"`
}

// SyncEvent is broadcast for every reported play/pause/seek action.
// ServerTime is the epoch-millisecond wall clock at broadcast time;
// receivers use it to compensate for delivery latency.
type SyncEvent struct {
	Action     PlayerAction `json:"action"`
	VideoTime  float64      `json:"videoTime"`
	ServerTime int64        `json:"serverTime"`
	Initiator  string       `json:"initiator"`
}

// SystemInitiator marks sync events produced by the server itself rather
// than by a participant, e.g. after a consensus queue advance.
const SystemInitiator = "system"

// RoomSnapshot is the full room state unicast to a joining connection.
type RoomSnapshot struct {
	Participants      []Participant `json:"participants"`
	Queue             []QueueItem   `json:"queue"`
	Messages          []ChatMessage `json:"messages"`
	Votes             []string      `json:"votes"`
	CurrentVideoIndex int           `json:"currentVideoIndex"`
	PlayerState       PlayerState   `json:"playerState"`
	CurrentTime       float64       `json:"currentTime"`
}
