// Package unread keeps per-friend unread message counts in step with a chat
// provider: a baseline read from the provider when a channel is watched, plus
// one for every inbound message seen afterwards.
package unread

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ChannelType is the provider channel type used for one-to-one chats.
const ChannelType = "messaging"

// maxConcurrentSetup bounds the channels opened at once by Sync.
const maxConcurrentSetup = 8

// ChannelKey returns the channel id shared by a and b: both ids sorted and
// joined with "-". Both participants derive the same key.
func ChannelKey(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return strings.Join(ids, "-")
}

// MessageEvent is a new message posted to a channel.
type MessageEvent struct {
	ChannelID  string
	MessageID  string
	SenderID   string
	SenderName string
}

// Handler receives channel events.
type Handler func(MessageEvent)

// Channel is a two-member chat channel as seen by the local user.
type Channel interface {
	ID() string
	// Watch creates the channel if needed and loads its state, including the
	// local user's unread count.
	Watch(ctx context.Context) error
	// CountUnread returns the unread count loaded by the last Watch.
	CountUnread() int
	// On registers h for new messages and returns a function that detaches it.
	On(h Handler) (detach func())
}

// Client is a chat provider connection for one user.
type Client interface {
	UserID() string
	Channel(channelType, id string, members []string) Channel
}

// Listener is notified when counts change. Calls happen outside the tracker
// lock and may arrive concurrently; use Tracker.Counts for the latest state.
type Listener interface {
	CountsChanged(counts map[string]int)
	NewMessage(friendID, senderName string)
}

// State is the lifecycle of one friend's subscription.
type State int

const (
	StateUninitialized State = iota
	StateBaselineLoaded
	StateTracking
)

func (s State) String() string {
	switch s {
	case StateBaselineLoaded:
		return "baseline-loaded"
	case StateTracking:
		return "tracking"
	default:
		return "uninitialized"
	}
}

type subscription struct {
	friendID   string
	channelKey string
	baseline   int
	count      int
	state      State
	detach     func()
}

// Tracker holds the unread counts of one user across their friends.
type Tracker struct {
	client   Client
	self     string
	listener Listener
	logger   *slog.Logger

	mu         sync.Mutex
	subs       map[string]*subscription
	generation uint64
}

// NewTracker creates a tracker. A nil client is treated as not ready: Sync
// then tracks nothing.
func NewTracker(client Client, listener Listener, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	t := &Tracker{
		client:   client,
		listener: listener,
		logger:   logger,
		subs:     make(map[string]*subscription),
	}
	if client != nil {
		t.self = client.UserID()
	}
	return t
}

// Sync replaces every subscription with one per friend. Previous handlers are
// detached before any new channel is opened. Friends whose channel cannot be
// watched are left out; the first such error is returned.
func (t *Tracker) Sync(ctx context.Context, friends []string) error {
	gen := t.teardown()

	if t.client == nil || t.self == "" || len(friends) == 0 {
		t.notifyCounts()
		return nil
	}

	var g errgroup.Group
	g.SetLimit(maxConcurrentSetup)

	seen := make(map[string]struct{}, len(friends))
	for _, friendID := range friends {
		if friendID == "" || friendID == t.self {
			continue
		}
		if _, dup := seen[friendID]; dup {
			continue
		}
		seen[friendID] = struct{}{}

		g.Go(func() error {
			if err := t.track(ctx, gen, friendID); err != nil {
				t.logger.Warn("unread tracking unavailable for friend",
					slog.String("user_id", t.self),
					slog.String("friend_id", friendID),
					slog.String("error", err.Error()))
				return err
			}
			return nil
		})
	}

	err := g.Wait()
	t.notifyCounts()
	return err
}

// track opens the channel with friendID, stores its baseline and then
// subscribes. The record is dropped if a newer Sync or Close ran meanwhile.
func (t *Tracker) track(ctx context.Context, gen uint64, friendID string) error {
	ch := t.client.Channel(ChannelType, ChannelKey(t.self, friendID), []string{t.self, friendID})
	key := ch.ID()

	if err := ch.Watch(ctx); err != nil {
		return fmt.Errorf("watch channel %s: %w", key, err)
	}

	baseline := ch.CountUnread()
	if baseline < 0 {
		baseline = 0
	}
	sub := &subscription{
		friendID:   friendID,
		channelKey: key,
		baseline:   baseline,
		count:      baseline,
		state:      StateBaselineLoaded,
	}

	t.mu.Lock()
	if t.generation != gen {
		t.mu.Unlock()
		return nil
	}
	t.subs[friendID] = sub
	t.mu.Unlock()

	detach := ch.On(func(ev MessageEvent) {
		t.handle(sub, ev)
	})

	t.mu.Lock()
	if t.generation != gen || t.subs[friendID] != sub {
		t.mu.Unlock()
		detach()
		return nil
	}
	sub.detach = detach
	sub.state = StateTracking
	t.mu.Unlock()

	return nil
}

func (t *Tracker) handle(sub *subscription, ev MessageEvent) {
	if ev.SenderID == t.self {
		return
	}
	if ev.ChannelID != "" && ev.ChannelID != sub.channelKey {
		return
	}

	t.mu.Lock()
	if t.subs[sub.friendID] != sub {
		t.mu.Unlock()
		return
	}
	sub.count++
	counts := t.snapshotLocked()
	t.mu.Unlock()

	if t.listener != nil {
		t.listener.NewMessage(sub.friendID, ev.SenderName)
		t.listener.CountsChanged(counts)
	}
}

// Acknowledge resets the count for friendID to zero. It reports whether the
// friend is tracked. The provider's read state is not touched.
func (t *Tracker) Acknowledge(friendID string) bool {
	t.mu.Lock()
	sub, ok := t.subs[friendID]
	if ok {
		sub.count = 0
	}
	t.mu.Unlock()

	if ok {
		t.notifyCounts()
	}
	return ok
}

// Counts returns a copy of the current counts keyed by friend id.
func (t *Tracker) Counts() map[string]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

// Count returns the count for friendID and whether it is tracked.
func (t *Tracker) Count(friendID string) (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	sub, ok := t.subs[friendID]
	if !ok {
		return 0, false
	}
	return sub.count, true
}

// State returns the subscription state of friendID.
func (t *Tracker) State(friendID string) State {
	t.mu.Lock()
	defer t.mu.Unlock()
	sub, ok := t.subs[friendID]
	if !ok {
		return StateUninitialized
	}
	return sub.state
}

// Close detaches every handler. Counts are empty afterwards.
func (t *Tracker) Close() {
	t.teardown()
}

// teardown swaps out the subscriptions, bumps the generation and detaches the
// old handlers outside the lock. It returns the new generation.
func (t *Tracker) teardown() uint64 {
	t.mu.Lock()
	old := t.subs
	t.subs = make(map[string]*subscription)
	t.generation++
	gen := t.generation
	t.mu.Unlock()

	for _, sub := range old {
		if sub.detach != nil {
			sub.detach()
		}
	}
	return gen
}

func (t *Tracker) snapshotLocked() map[string]int {
	counts := make(map[string]int, len(t.subs))
	for id, sub := range t.subs {
		counts[id] = sub.count
	}
	return counts
}

func (t *Tracker) notifyCounts() {
	if t.listener == nil {
		return
	}
	t.listener.CountsChanged(t.Counts())
}
