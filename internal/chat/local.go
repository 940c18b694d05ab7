package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/yourusername/lingo-service/internal/unread"
)

var (
	// ErrUnknownChannel is returned for a channel that was never created.
	ErrUnknownChannel = errors.New("unknown channel")
	// ErrNotMember is returned when a user acts on a channel they do not belong to.
	ErrNotMember = errors.New("not a channel member")
)

// LocalProvider is an in-process chat backend for development and tests.
// Channels, messages and read marks live in memory.
type LocalProvider struct {
	secret   []byte
	tokenTTL time.Duration
	bus      *Bus

	mu       sync.Mutex
	users    map[string]Identity
	channels map[string]*localChannelState
}

type localMessage struct {
	id       string
	senderID string
	text     string
	at       time.Time
}

type localChannelState struct {
	channelType string
	members     map[string]struct{}
	messages    []localMessage
	// lastRead is the number of messages each member has read.
	lastRead map[string]int
}

// NewLocalProvider creates an empty provider. Tokens are signed with secret.
func NewLocalProvider(secret []byte, tokenTTL time.Duration) *LocalProvider {
	if tokenTTL <= 0 {
		tokenTTL = DefaultTokenTTL
	}
	return &LocalProvider{
		secret:   secret,
		tokenTTL: tokenTTL,
		bus:      NewBus(),
		users:    make(map[string]Identity),
		channels: make(map[string]*localChannelState),
	}
}

func (p *LocalProvider) UpsertUser(_ context.Context, id Identity) error {
	if id.ID == "" {
		return errors.New("identity id is required")
	}
	p.mu.Lock()
	p.users[id.ID] = id
	p.mu.Unlock()
	return nil
}

// User returns the registered identity of userID.
func (p *LocalProvider) User(userID string) (Identity, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id, ok := p.users[userID]
	return id, ok
}

// CreateToken signs a token with the same claims the hosted provider uses.
func (p *LocalProvider) CreateToken(userID string) (string, error) {
	if userID == "" {
		return "", errors.New("user id is required")
	}
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"iat":     now.Unix(),
		"exp":     now.Add(p.tokenTTL).Unix(),
	})
	return token.SignedString(p.secret)
}

func (p *LocalProvider) Client(userID string) unread.Client {
	return &localClient{provider: p, userID: userID}
}

func (p *LocalProvider) Events() *Bus {
	return p.bus
}

// ensureChannel returns the channel, creating it with members if missing.
func (p *LocalProvider) ensureChannel(channelType, id string, members []string) *localChannelState {
	p.mu.Lock()
	defer p.mu.Unlock()

	ch, ok := p.channels[id]
	if !ok {
		ch = &localChannelState{
			channelType: channelType,
			members:     make(map[string]struct{}, len(members)),
			lastRead:    make(map[string]int, len(members)),
		}
		for _, m := range members {
			ch.members[m] = struct{}{}
		}
		p.channels[id] = ch
	}
	return ch
}

// SendMessage appends a message to channelID and publishes it.
func (p *LocalProvider) SendMessage(channelID, senderID, text string) (string, error) {
	p.mu.Lock()
	ch, ok := p.channels[channelID]
	if !ok {
		p.mu.Unlock()
		return "", fmt.Errorf("%w: %s", ErrUnknownChannel, channelID)
	}
	if _, member := ch.members[senderID]; !member {
		p.mu.Unlock()
		return "", ErrNotMember
	}

	msg := localMessage{id: uuid.NewString(), senderID: senderID, text: text, at: time.Now().UTC()}
	ch.messages = append(ch.messages, msg)
	// The sender has read everything up to their own message.
	ch.lastRead[senderID] = len(ch.messages)
	senderName := p.users[senderID].Name
	p.mu.Unlock()

	p.bus.Publish(unread.MessageEvent{
		ChannelID:  channelID,
		MessageID:  msg.id,
		SenderID:   senderID,
		SenderName: senderName,
	})
	return msg.id, nil
}

// MarkRead marks every message in channelID as read by userID.
func (p *LocalProvider) MarkRead(channelID, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	ch, ok := p.channels[channelID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownChannel, channelID)
	}
	if _, member := ch.members[userID]; !member {
		return ErrNotMember
	}
	ch.lastRead[userID] = len(ch.messages)
	return nil
}

// unreadFor counts messages in channelID not read by userID and not sent by them.
func (p *LocalProvider) unreadFor(channelID, userID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	ch, ok := p.channels[channelID]
	if !ok {
		return 0
	}
	count := 0
	for _, msg := range ch.messages[ch.lastRead[userID]:] {
		if msg.senderID != userID {
			count++
		}
	}
	return count
}

type localClient struct {
	provider *LocalProvider
	userID   string
}

func (c *localClient) UserID() string {
	return c.userID
}

func (c *localClient) Channel(channelType, id string, members []string) unread.Channel {
	return &localChannel{client: c, channelType: channelType, id: id, members: members}
}

type localChannel struct {
	client      *localClient
	channelType string
	id          string
	members     []string

	mu     sync.Mutex
	unread int
}

func (ch *localChannel) ID() string {
	return ch.id
}

func (ch *localChannel) Watch(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p := ch.client.provider
	state := p.ensureChannel(ch.channelType, ch.id, ch.members)

	p.mu.Lock()
	_, member := state.members[ch.client.userID]
	p.mu.Unlock()
	if !member {
		return ErrNotMember
	}

	count := p.unreadFor(ch.id, ch.client.userID)
	ch.mu.Lock()
	ch.unread = count
	ch.mu.Unlock()
	return nil
}

func (ch *localChannel) CountUnread() int {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.unread
}

func (ch *localChannel) On(h unread.Handler) func() {
	return ch.client.provider.bus.Subscribe(ch.id, h)
}
