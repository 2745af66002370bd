package syncclient

import "sync"

// Dispatcher fans sync events out to subscribers. Events for one room are
// delivered to each subscriber in the order Dispatch is called, which
// matches arrival order as long as the caller feeds it from a single
// per-connection reader.
type Dispatcher struct {
	mu     sync.Mutex
	nextID int
	subs   map[string][]*Subscription
}

type Subscription struct {
	id     int
	roomID string
	fn     func(SyncEvent)
	d      *Dispatcher
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{subs: make(map[string][]*Subscription)}
}

// Subscribe registers fn for events of roomID and returns a revocable
// handle. A subscription fires until Unsubscribe is called.
func (d *Dispatcher) Subscribe(roomID string, fn func(SyncEvent)) *Subscription {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	sub := &Subscription{
		id:     d.nextID,
		roomID: roomID,
		fn:     fn,
		d:      d,
	}
	d.subs[roomID] = append(d.subs[roomID], sub)

	return sub
}

// Unsubscribe revokes the registration. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()

	subs := s.d.subs[s.roomID]
	for i, sub := range subs {
		if sub.id == s.id {
			s.d.subs[s.roomID] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(s.d.subs[s.roomID]) == 0 {
		delete(s.d.subs, s.roomID)
	}
}

// Dispatch delivers ev to every subscriber of roomID in registration
// order, synchronously on the calling goroutine.
func (d *Dispatcher) Dispatch(roomID string, ev SyncEvent) {
	d.mu.Lock()
	subs := make([]*Subscription, len(d.subs[roomID]))
	copy(subs, d.subs[roomID])
	d.mu.Unlock()

	for _, sub := range subs {
		sub.fn(ev)
	}
}
