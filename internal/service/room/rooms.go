package room

import (
	"context"
	"time"
)

// CreateRoom hands out a fresh opaque room id. The room itself is created
// lazily by the registry on the first join.
func (s *service) CreateRoom(ctx context.Context) string {
	for {
		roomID := s.generator.GenerateRandomString(roomIDLength)
		if _, exists := s.roomRepo.Get(roomID); !exists {
			s.logger.InfoContext(ctx, "room id issued", "room_id", roomID)
			return roomID
		}
	}
}

// RoomExists reports whether the room currently has state. A freshly
// issued id reports false until someone joins.
func (s *service) RoomExists(ctx context.Context, roomID string) bool {
	_, ok := s.roomRepo.Get(roomID)
	return ok
}

// StartReaper deletes rooms that have been empty for at least RoomIdleTTL.
// It blocks until ctx is done; run it on its own goroutine. A zero TTL
// disables reaping entirely.
func (s *service) StartReaper(ctx context.Context) {
	if s.config.RoomIdleTTL <= 0 {
		return
	}

	interval := s.config.RoomIdleTTL / 2
	if interval < time.Second {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.reapIdleRooms(ctx, now)
		}
	}
}

func (s *service) reapIdleRooms(ctx context.Context, now time.Time) {
	for _, roomID := range s.roomRepo.RoomIDs() {
		room, ok := s.roomRepo.Get(roomID)
		if !ok {
			continue
		}

		idleSince, idle := room.IdleSince()
		if !idle || now.Sub(idleSince) < s.config.RoomIdleTTL {
			continue
		}

		s.roomRepo.Delete(roomID)
		s.logger.InfoContext(ctx, "idle room reaped", "room_id", roomID, "idle_for", now.Sub(idleSince).String())
	}
}
