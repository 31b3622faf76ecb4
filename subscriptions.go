package realtime

import (
	"sort"
	"sync"
)

// Subscription is the caller-facing view of the desired subscription state.
type Subscription struct {
	Channels []string
	Rooms    []string
}

// subscriptionRegistry tracks the channels and rooms the caller wants to be
// joined to, independent of connection state. It is the single source of
// truth: server confirmations never mutate it, only explicit caller intent
// (or client disposal) does, which is what makes subscriptions durable
// across reconnects.
type subscriptionRegistry struct {
	mu       sync.Mutex
	channels map[string]struct{}
	rooms    map[string]struct{}
}

func newSubscriptionRegistry() *subscriptionRegistry {
	return &subscriptionRegistry{
		channels: make(map[string]struct{}),
		rooms:    make(map[string]struct{}),
	}
}

// addChannels registers channels and returns the ones that were new.
func (r *subscriptionRegistry) addChannels(channels []string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var added []string
	for _, ch := range channels {
		if ch == "" {
			continue
		}
		if _, ok := r.channels[ch]; ok {
			continue
		}
		r.channels[ch] = struct{}{}
		added = append(added, ch)
	}
	return added
}

// removeChannels drops channels and returns the ones that were present.
func (r *subscriptionRegistry) removeChannels(channels []string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []string
	for _, ch := range channels {
		if _, ok := r.channels[ch]; !ok {
			continue
		}
		delete(r.channels, ch)
		removed = append(removed, ch)
	}
	return removed
}

// addRoom registers a room. Returns true if it was new.
func (r *subscriptionRegistry) addRoom(room string) bool {
	if room == "" {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rooms[room]; ok {
		return false
	}
	r.rooms[room] = struct{}{}
	return true
}

// removeRoom drops a room. Returns true if it was present.
func (r *subscriptionRegistry) removeRoom(room string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rooms[room]; !ok {
		return false
	}
	delete(r.rooms, room)
	return true
}

// snapshot returns the desired set, sorted for deterministic replay.
func (r *subscriptionRegistry) snapshot() Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub := Subscription{
		Channels: make([]string, 0, len(r.channels)),
		Rooms:    make([]string, 0, len(r.rooms)),
	}
	for ch := range r.channels {
		sub.Channels = append(sub.Channels, ch)
	}
	for room := range r.rooms {
		sub.Rooms = append(sub.Rooms, room)
	}
	sort.Strings(sub.Channels)
	sort.Strings(sub.Rooms)
	return sub
}

func (r *subscriptionRegistry) clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.channels = make(map[string]struct{})
	r.rooms = make(map[string]struct{})
}
