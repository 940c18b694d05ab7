package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yourusername/lingo-service/internal/services"
	"github.com/yourusername/lingo-service/internal/unread"
)

const (
	maxMessageSize  = 4096
	pongWait        = 2 * time.Minute
	pingPeriod      = time.Minute
	writeWait       = 10 * time.Second
	sendChannelSize = 64
)

// Client commands.
const (
	commandAck     = "ack"
	commandRefresh = "refresh"
)

// Server pushes.
const (
	pushCounts  = "counts"
	pushMessage = "message"
	pushError   = "error"
)

type sessionCommand struct {
	Type     string `json:"type"`
	FriendID string `json:"friendId,omitempty"`
}

type sessionPush struct {
	Type       string         `json:"type"`
	Counts     map[string]int `json:"counts,omitempty"`
	FriendID   string         `json:"friendId,omitempty"`
	SenderName string         `json:"senderName,omitempty"`
	Message    string         `json:"message,omitempty"`
}

// unreadSession runs one websocket connection and the tracker behind it.
type unreadSession struct {
	conn          *websocket.Conn
	userID        string
	friendService *services.FriendService
	tracker       *unread.Tracker
	logger        *slog.Logger

	send  chan []byte
	dirty chan struct{}
	done  chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newUnreadSession(conn *websocket.Conn, userID string, friendService *services.FriendService, logger *slog.Logger) *unreadSession {
	ctx, cancel := context.WithCancel(context.Background())
	return &unreadSession{
		conn:          conn,
		userID:        userID,
		friendService: friendService,
		logger:        logger.With(slog.String("user_id", userID)),
		send:          make(chan []byte, sendChannelSize),
		dirty:         make(chan struct{}, 1),
		done:          make(chan struct{}),
		ctx:           ctx,
		cancel:        cancel,
	}
}

// CountsChanged schedules a counts push. Bursts collapse into one push of
// the latest counts.
func (s *unreadSession) CountsChanged(map[string]int) {
	select {
	case s.dirty <- struct{}{}:
	default:
	}
}

// NewMessage pushes a new-message notice. It is dropped if the client is too
// slow to keep up.
func (s *unreadSession) NewMessage(friendID, senderName string) {
	s.enqueue(sessionPush{Type: pushMessage, FriendID: friendID, SenderName: senderName})
}

func (s *unreadSession) enqueue(p sessionPush) {
	raw, err := json.Marshal(p)
	if err != nil {
		s.logger.Error("could not marshal push", slog.String("error", err.Error()))
		return
	}
	select {
	case s.send <- raw:
	case <-s.done:
	default:
		s.logger.Warn("unread session send buffer full, dropping push", slog.String("type", p.Type))
	}
}

// Run starts the write loop, loads the friends list and reads commands until
// the connection closes.
func (s *unreadSession) Run() {
	s.wg.Add(1)
	go s.writeLoop()

	s.refresh()
	s.readLoop()

	s.tracker.Close()
	s.cancel()
	s.wg.Wait()
}

func (s *unreadSession) refresh() {
	friends, err := s.friendService.FriendIDs(s.ctx, s.userID)
	if err != nil {
		s.logger.Error("could not load friends", slog.String("error", err.Error()))
		s.enqueue(sessionPush{Type: pushError, Message: "Could not load friends"})
		return
	}
	if err := s.tracker.Sync(s.ctx, friends); err != nil {
		// Friends whose channel failed are left out; the rest are tracked
		s.enqueue(sessionPush{Type: pushError, Message: "Some chats are unavailable"})
	}
}

// readLoop handles client commands. There is at most one reader per connection.
func (s *unreadSession) readLoop() {
	defer func() {
		close(s.done)
		_ = s.conn.Close()
	}()

	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Info("unread websocket closed unexpectedly", slog.String("error", err.Error()))
			}
			return
		}

		var cmd sessionCommand
		if err := json.Unmarshal(raw, &cmd); err != nil {
			s.enqueue(sessionPush{Type: pushError, Message: "Invalid command"})
			continue
		}

		switch cmd.Type {
		case commandAck:
			if !s.tracker.Acknowledge(cmd.FriendID) {
				s.enqueue(sessionPush{Type: pushError, Message: "Unknown friend"})
			}
		case commandRefresh:
			s.refresh()
		default:
			s.enqueue(sessionPush{Type: pushError, Message: "Unknown command"})
		}
	}
}

// writeLoop is the only writer to the connection.
func (s *unreadSession) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
		s.wg.Done()
	}()

	for {
		select {
		case raw := <-s.send:
			if err := s.write(raw); err != nil {
				return
			}

		case <-s.dirty:
			raw, err := json.Marshal(sessionPush{Type: pushCounts, Counts: s.tracker.Counts()})
			if err != nil {
				s.logger.Error("could not marshal counts", slog.String("error", err.Error()))
				continue
			}
			if err := s.write(raw); err != nil {
				return
			}

		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-s.done:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

func (s *unreadSession) write(raw []byte) error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(websocket.TextMessage, raw)
}
