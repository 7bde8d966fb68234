/*
Package chat contains the presence-and-delivery core: the connection registry, presence
broadcasting, message routing to live channels and the conversation/backlog service.

This file defines the Registry, the only state shared between connection goroutines.
A user may hold several channels at once; the user counts as online while at least one
is registered.
*/
package chat

import (
	"slices"
	"sync"

	"github.com/samber/lo"
)

// Departure describes what Unregister did.
type Departure int

const (
	// NotRegistered means the channel was unknown (already removed or never added).
	NotRegistered Departure = iota

	// StillOnline means the user still has other channels.
	StillOnline

	// WentOffline means the removed channel was the user's last one.
	WentOffline
)

// Registry maps user ids to their live channels. It performs no I/O.
type Registry struct {
	mu sync.Mutex

	// byUser holds the non-empty channel set of every online user.
	byUser map[string]map[Channel]struct{}

	// owners maps each registered channel back to its user id.
	owners map[Channel]string
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byUser: make(map[string]map[Channel]struct{}),
		owners: make(map[Channel]string),
	}
}

// Register adds ch under userID and reports whether it is the user's first channel.
// Registering the same channel again is a no-op that returns false.
func (r *Registry) Register(userID string, ch Channel) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.owners[ch]; ok {
		return false
	}

	channels, online := r.byUser[userID]
	if !online {
		channels = make(map[Channel]struct{})
		r.byUser[userID] = channels
	}

	channels[ch] = struct{}{}
	r.owners[ch] = userID

	return !online
}

// Unregister removes ch and returns its user id together with the resulting Departure.
func (r *Registry) Unregister(ch Channel) (string, Departure) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.owners[ch]
	if !ok {
		return "", NotRegistered
	}

	delete(r.owners, ch)

	channels := r.byUser[userID]
	delete(channels, ch)

	if len(channels) > 0 {
		return userID, StillOnline
	}

	delete(r.byUser, userID)
	return userID, WentOffline
}

// ChannelsFor returns a snapshot of userID's channels; empty when the user is offline.
func (r *Registry) ChannelsFor(userID string) []Channel {
	r.mu.Lock()
	defer r.mu.Unlock()

	return lo.Keys(r.byUser[userID])
}

// IsOnline reports whether userID has at least one channel.
func (r *Registry) IsOnline(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.byUser[userID]
	return ok
}

// AllOnlineUserIDs returns the sorted ids of every user with at least one channel.
func (r *Registry) AllOnlineUserIDs() []string {
	r.mu.Lock()
	ids := lo.Keys(r.byUser)
	r.mu.Unlock()

	slices.Sort(ids)
	return ids
}

// Channels returns a snapshot of every registered channel.
func (r *Registry) Channels() []Channel {
	r.mu.Lock()
	defer r.mu.Unlock()

	return lo.Keys(r.owners)
}
