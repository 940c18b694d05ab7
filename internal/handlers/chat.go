package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/yourusername/lingo-service/internal/apperrors"
	"github.com/yourusername/lingo-service/internal/chat"
	"github.com/yourusername/lingo-service/internal/middleware"
	"github.com/yourusername/lingo-service/internal/response"
	"github.com/yourusername/lingo-service/internal/services"
	"github.com/yourusername/lingo-service/internal/unread"
)

const (
	maxWebhookBody  = 1 << 20
	signatureHeader = "X-Signature"
	eventMessageNew = "message.new"
)

type ChatHandler struct {
	provider      chat.Provider
	verifier      chat.WebhookVerifier
	friendService *services.FriendService
	upgrader      websocket.Upgrader
	logger        *slog.Logger
}

// NewChatHandler creates the handler. verifier may be nil, in which case the
// webhook endpoint is disabled.
func NewChatHandler(provider chat.Provider, verifier chat.WebhookVerifier, friendService *services.FriendService, allowedOrigins []string, logger *slog.Logger) *ChatHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatHandler{
		provider:      provider,
		verifier:      verifier,
		friendService: friendService,
		logger:        logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || slices.Contains(allowedOrigins, origin)
			},
		},
	}
}

// Token returns a chat provider token for the signed-in user
func (h *ChatHandler) Token(c *gin.Context) {
	userID := c.GetString(middleware.UserIDKey)

	token, err := h.provider.CreateToken(userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}

type webhookUser struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type webhookMessage struct {
	ID   string       `json:"id"`
	User *webhookUser `json:"user"`
}

type webhookEvent struct {
	Type        string          `json:"type"`
	ChannelID   string          `json:"channel_id"`
	ChannelType string          `json:"channel_type"`
	Message     *webhookMessage `json:"message"`
	User        *webhookUser    `json:"user"`
}

// Webhook receives provider events and publishes new messages on the bus
func (h *ChatHandler) Webhook(c *gin.Context) {
	if h.verifier == nil {
		response.Error(c, apperrors.NotFound("Webhooks are not enabled"))
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		response.Error(c, apperrors.Validation("Invalid request body"))
		return
	}

	if !h.verifier.VerifyWebhook(body, []byte(c.GetHeader(signatureHeader))) {
		response.Error(c, apperrors.Unauthorized("Invalid webhook signature"))
		return
	}

	var ev webhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		response.Error(c, apperrors.Validation("Invalid request body"))
		return
	}

	if ev.Type == eventMessageNew && ev.ChannelID != "" && ev.Message != nil {
		sender := ev.Message.User
		if sender == nil {
			sender = ev.User
		}
		msg := unread.MessageEvent{ChannelID: ev.ChannelID, MessageID: ev.Message.ID}
		if sender != nil {
			msg.SenderID = sender.ID
			msg.SenderName = sender.Name
		}
		h.provider.Events().Publish(msg)
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Unread upgrades to a websocket that pushes unread counts per friend
func (h *ChatHandler) Unread(c *gin.Context) {
	userID := c.GetString(middleware.UserIDKey)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade error",
			slog.String("user_id", userID),
			slog.String("error", err.Error()))
		return
	}

	session := newUnreadSession(conn, userID, h.friendService, h.logger)
	session.tracker = unread.NewTracker(h.provider.Client(userID), session, h.logger)
	session.Run()
}
