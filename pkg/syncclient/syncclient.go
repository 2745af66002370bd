// Package syncclient implements the receiving side of the playback sync
// protocol: the latency-compensation formula applied to every player-sync
// event, and a revocable subscription registry that delivers events for one
// room to each subscriber in arrival order.
package syncclient

import "time"

// DriftTolerance is the largest playback drift corrected without an
// explicit seek. Seeking on sub-second jitter would thrash the player.
const DriftTolerance = time.Second

type Action string

const (
	ActionPlay  Action = "play"
	ActionPause Action = "pause"
	ActionSeek  Action = "seek"
)

type SyncEvent struct {
	Action     Action  `json:"action"`
	VideoTime  float64 `json:"videoTime"`
	ServerTime int64   `json:"serverTime"`
	Initiator  string  `json:"initiator"`
}

// Decision tells the local player what to do with a received sync event.
type Decision struct {
	// TargetTime is the latency-compensated playback offset in seconds.
	TargetTime float64
	// Seek is set when the player must jump to TargetTime.
	Seek bool
	// Play and Pause mirror the event action; at most one is set.
	Play  bool
	Pause bool
}

// Reconcile computes the correction for a sync event observed at localNow
// while the local player is at localPlaybackTime seconds.
//
// latency = localNow - serverTime, target = videoTime + latency. A seek is
// issued iff the action is a seek or the local position drifted from the
// target by more than DriftTolerance.
func Reconcile(ev SyncEvent, localNow time.Time, localPlaybackTime float64) Decision {
	latency := float64(localNow.UnixMilli()-ev.ServerTime) / 1000
	target := ev.VideoTime + latency

	d := Decision{TargetTime: target}

	drift := localPlaybackTime - target
	if drift < 0 {
		drift = -drift
	}
	if ev.Action == ActionSeek || drift > DriftTolerance.Seconds() {
		d.Seek = true
	}

	switch ev.Action {
	case ActionPlay:
		d.Play = true
	case ActionPause:
		d.Pause = true
	}

	return d
}
