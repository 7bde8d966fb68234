package chat

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"duochat/internal/app/user"
	"duochat/internal/pkg/errs"
	"duochat/internal/pkg/logx"
)

// Presence turns registry transitions into onlineUsers snapshots and userStatus events.
type Presence struct {
	registry *Registry
	store    Store

	// mu serializes connect/disconnect transitions so each user's online and offline
	// events are emitted in transition order.
	mu sync.Mutex

	logger zerolog.Logger
}

// NewPresence returns a Presence over registry, resolving profiles through store.
func NewPresence(registry *Registry, store Store) *Presence {
	return &Presence{
		registry: registry,
		store:    store,
		logger:   logx.Component("Presence"),
	}
}

// Connect registers ch, sends it the profiles of every other online user and, when ch
// is its user's first channel, announces the user online to every other channel.
// Profiles are loaded from the store before anything is registered; if that fails the
// channel is left unregistered and ErrStorageUnavailable is returned.
func (p *Presence) Connect(ctx context.Context, ch Channel) error {
	self := ch.User()

	profiles, err := p.loadProfiles(ctx, self.ID)
	if err != nil {
		p.logger.Error().Err(err).Str("user_id", self.ID).Msg("Failed to build online snapshot; rejecting connection")
		return errs.Wrap(errs.ErrStorageUnavailable, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	first := p.registry.Register(self.ID, ch)

	snapshot := lo.FilterMap(p.registry.AllOnlineUserIDs(), func(id string, _ int) (OnlineUser, bool) {
		if id == self.ID {
			return OnlineUser{}, false
		}
		if u, ok := profiles[id]; ok {
			return onlineUserOf(u), true
		}
		// joined while the profiles were loading; its channel carries a freshly verified profile
		channels := p.registry.ChannelsFor(id)
		if len(channels) == 0 {
			return OnlineUser{}, false
		}
		return onlineUserOf(channels[0].User()), true
	})

	if data, err := encodeEvent(TypeOnlineUsers, "", snapshot); err != nil {
		p.logger.Error().Err(err).Msg("Failed to encode online snapshot")
	} else {
		deliver(p.logger, ch, data)
	}

	if first {
		p.logger.Info().Str("user_id", self.ID).Str("channel_id", ch.ID()).Msg("User online")
		p.broadcast(UserStatusPayload{
			UserID: self.ID,
			Status: StatusOnline,
			Name:   self.Name,
			Color:  self.Color,
		}, ch)
	} else {
		p.logger.Debug().Str("user_id", self.ID).Str("channel_id", ch.ID()).Msg("Additional channel registered")
	}

	return nil
}

// Disconnect unregisters ch and, when it was its user's last channel, announces the user
// offline to every remaining channel. Calling it for an unknown channel does nothing.
func (p *Presence) Disconnect(ch Channel) Departure {
	p.mu.Lock()
	defer p.mu.Unlock()

	userID, departure := p.registry.Unregister(ch)

	if departure == WentOffline {
		p.logger.Info().Str("user_id", userID).Str("channel_id", ch.ID()).Msg("User offline")
		p.broadcast(UserStatusPayload{UserID: userID, Status: StatusOffline}, nil)
	}

	return departure
}

// loadProfiles fetches the stored profile of every online user except selfID.
// Users whose row disappeared are skipped.
func (p *Presence) loadProfiles(ctx context.Context, selfID string) (map[string]user.User, error) {
	ids := p.registry.AllOnlineUserIDs()
	profiles := make(map[string]user.User, len(ids))

	for _, id := range ids {
		if id == selfID {
			continue
		}

		u, err := p.store.FindUser(ctx, id)
		if errors.Is(err, user.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}

		profiles[id] = u
	}

	return profiles, nil
}

// broadcast sends a userStatus event to every registered channel except skip.
func (p *Presence) broadcast(payload UserStatusPayload, skip Channel) {
	data, err := encodeEvent(TypeUserStatus, "", payload)
	if err != nil {
		p.logger.Error().Err(err).Msg("Failed to encode user status")
		return
	}

	for _, ch := range p.registry.Channels() {
		if ch == skip {
			continue
		}
		deliver(p.logger, ch, data)
	}
}
