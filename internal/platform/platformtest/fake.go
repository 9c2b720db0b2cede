// Package platformtest provides an in-memory platform.Client for tests.
package platformtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/spec-kit/ticket-bot/internal/platform"
)

// SentMessage records a notice posted through the fake.
type SentMessage struct {
	platform.Message
	Notice  platform.Notice
	Deleted bool
}

// Fake is a goroutine-safe platform.Client.
type Fake struct {
	mu sync.Mutex

	BotID    string
	channels map[string]*platform.Channel
	roles    map[string]*platform.Role
	muted    map[string]bool
	blocked  map[string]bool
	messages []*SentMessage
	direct   map[string][]platform.Notice
	deleted  []string
	nextID   int

	overwrites map[string][]platform.Overwrite

	// CreateErr, when set, is returned by CreateChannel.
	CreateErr error
}

// New returns an empty fake whose bot user is "bot".
func New() *Fake {
	return &Fake{
		BotID:    "bot",
		channels: make(map[string]*platform.Channel),
		roles:    make(map[string]*platform.Role),
		muted:    make(map[string]bool),
		blocked:  make(map[string]bool),
		direct:   make(map[string][]platform.Notice),

		overwrites: make(map[string][]platform.Overwrite),
	}
}

func (f *Fake) newID(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s%d", prefix, f.nextID)
}

// AddTextChannel registers a text channel.
func (f *Fake) AddTextChannel(guildID, id, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channels[id] = &platform.Channel{ID: id, GuildID: guildID, Name: name, Kind: platform.ChannelText}
}

// AddCategory registers a category channel.
func (f *Fake) AddCategory(guildID, id, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channels[id] = &platform.Channel{ID: id, GuildID: guildID, Name: name, Kind: platform.ChannelCategory}
}

// AddRole registers a role.
func (f *Fake) AddRole(guildID, id, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roles[id] = &platform.Role{ID: id, GuildID: guildID, Name: name}
}

// Mute makes CanSend report false for the channel.
func (f *Fake) Mute(channelID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.muted[channelID] = true
}

// BlockDirect makes SendDirect fail for the user.
func (f *Fake) BlockDirect(userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blocked[userID] = true
}

// Created looks up a live channel by id.
func (f *Fake) Created(channelID string) (platform.Channel, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.channels[channelID]
	if !ok {
		return platform.Channel{}, false
	}
	return *ch, true
}

// Messages returns the live (not deleted) messages of a channel, oldest first.
func (f *Fake) Messages(channelID string) []SentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []SentMessage
	for _, m := range f.messages {
		if m.ChannelID == channelID && !m.Deleted {
			out = append(out, *m)
		}
	}
	return out
}

// Direct returns the notices sent to a user by direct message.
func (f *Fake) Direct(userID string) []platform.Notice {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]platform.Notice(nil), f.direct[userID]...)
}

// DeletedChannels returns the ids passed to DeleteChannel, in order.
func (f *Fake) DeletedChannels() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

// Overwrites returns the overwrites a created channel was given.
func (f *Fake) Overwrites(channelID string) []platform.Overwrite {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]platform.Overwrite(nil), f.overwrites[channelID]...)
}

func (f *Fake) SelfID() string { return f.BotID }

func (f *Fake) CreateChannel(_ context.Context, spec platform.ChannelSpec) (*platform.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CreateErr != nil {
		return nil, f.CreateErr
	}
	ch := &platform.Channel{
		ID:       f.newID("ch"),
		GuildID:  spec.GuildID,
		Name:     spec.Name,
		ParentID: spec.ParentID,
		Kind:     platform.ChannelText,
	}
	f.channels[ch.ID] = ch
	f.overwrites[ch.ID] = append([]platform.Overwrite(nil), spec.Overwrites...)
	out := *ch
	return &out, nil
}

func (f *Fake) DeleteChannel(_ context.Context, channelID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, channelID)
	if _, ok := f.channels[channelID]; !ok {
		return platform.ErrNotFound
	}
	delete(f.channels, channelID)
	return nil
}

func (f *Fake) Channel(_ context.Context, channelID string) (*platform.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.channels[channelID]
	if !ok {
		return nil, platform.ErrNotFound
	}
	out := *ch
	return &out, nil
}

func (f *Fake) Categories(_ context.Context, guildID string) ([]platform.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []platform.Channel
	for _, ch := range f.channels {
		if ch.GuildID == guildID && ch.Kind == platform.ChannelCategory {
			out = append(out, *ch)
		}
	}
	return out, nil
}

func (f *Fake) Role(_ context.Context, guildID, roleID string) (*platform.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	role, ok := f.roles[roleID]
	if !ok || role.GuildID != guildID {
		return nil, platform.ErrNotFound
	}
	out := *role
	return &out, nil
}

func (f *Fake) CanSend(_ context.Context, channelID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.channels[channelID]; !ok {
		return false, platform.ErrNotFound
	}
	return !f.muted[channelID], nil
}

func (f *Fake) SendNotice(_ context.Context, channelID string, notice platform.Notice) (*platform.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.channels[channelID]; !ok {
		return nil, platform.ErrNotFound
	}
	if f.muted[channelID] {
		return nil, platform.ErrForbidden
	}
	msg := &SentMessage{
		Message: platform.Message{
			ID:        f.newID("msg"),
			ChannelID: channelID,
			AuthorID:  f.BotID,
			HasEmbeds: notice.HasEmbed(),
		},
		Notice: notice,
	}
	f.messages = append(f.messages, msg)
	out := msg.Message
	return &out, nil
}

// Post records a message authored by someone other than the bot.
func (f *Fake) Post(channelID, authorID string, withEmbed bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, &SentMessage{Message: platform.Message{
		ID:        f.newID("msg"),
		ChannelID: channelID,
		AuthorID:  authorID,
		HasEmbeds: withEmbed,
	}})
}

func (f *Fake) EditNotice(_ context.Context, channelID, messageID string, notice platform.Notice) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.messages {
		if m.ChannelID == channelID && m.ID == messageID && !m.Deleted {
			m.Notice = notice
			m.HasEmbeds = notice.HasEmbed()
			return nil
		}
	}
	return platform.ErrNotFound
}

func (f *Fake) DeleteMessage(_ context.Context, channelID, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.messages {
		if m.ChannelID == channelID && m.ID == messageID && !m.Deleted {
			m.Deleted = true
			return nil
		}
	}
	return platform.ErrNotFound
}

func (f *Fake) RecentMessages(_ context.Context, channelID string, limit int) ([]platform.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.channels[channelID]; !ok {
		return nil, platform.ErrNotFound
	}
	var out []platform.Message
	for i := len(f.messages) - 1; i >= 0 && len(out) < limit; i-- {
		m := f.messages[i]
		if m.ChannelID == channelID && !m.Deleted {
			out = append(out, m.Message)
		}
	}
	return out, nil
}

func (f *Fake) SendDirect(_ context.Context, userID string, notice platform.Notice) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.blocked[userID] {
		return platform.ErrForbidden
	}
	f.direct[userID] = append(f.direct[userID], notice)
	return nil
}

var _ platform.Client = (*Fake)(nil)
