package message

import (
	"slices"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
)

// listenerSet is an ordered set of listeners guarded by its own lock.
type listenerSet[L comparable] struct {
	mu    sync.Mutex
	items []L
}

// add appends l unless it is already registered.
func (s *listenerSet[L]) add(l L) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if slices.Contains(s.items, l) {
		return false
	}
	s.items = append(s.items, l)

	return true
}

func (s *listenerSet[L]) remove(l L) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := slices.Index(s.items, l)
	if idx < 0 {
		return false
	}
	s.items = slices.Delete(s.items, idx, idx+1)

	return true
}

func (s *listenerSet[L]) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.items)
}

// snapshot returns a copy so callbacks run without the lock held.
func (s *listenerSet[L]) snapshot() []L {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.items)
}

// channelRegistry maps a channel number to its listener set. A channel entry
// exists only while it has at least one listener.
type channelRegistry[L comparable] struct {
	channels *xsync.MapOf[int, *listenerSet[L]]
}

func newChannelRegistry[L comparable]() channelRegistry[L] {
	return channelRegistry[L]{channels: xsync.NewMapOf[int, *listenerSet[L]]()}
}

func (r channelRegistry[L]) add(ch int, l L) {
	r.channels.Compute(ch, func(set *listenerSet[L], loaded bool) (*listenerSet[L], bool) {
		if !loaded {
			set = &listenerSet[L]{}
		}
		set.add(l)

		return set, false
	})
}

func (r channelRegistry[L]) remove(ch int, l L) {
	r.channels.Compute(ch, func(set *listenerSet[L], loaded bool) (*listenerSet[L], bool) {
		if !loaded {
			return set, true
		}
		set.remove(l)

		return set, set.len() == 0
	})
}

func (r channelRegistry[L]) snapshot(ch int) []L {
	set, ok := r.channels.Load(ch)
	if !ok {
		return nil
	}

	return set.snapshot()
}

func (r channelRegistry[L]) count(ch int) (int, bool) {
	set, ok := r.channels.Load(ch)
	if !ok {
		return 0, false
	}

	return set.len(), true
}
