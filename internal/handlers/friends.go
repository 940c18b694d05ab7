package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/lingo-service/internal/apperrors"
	"github.com/yourusername/lingo-service/internal/middleware"
	"github.com/yourusername/lingo-service/internal/models"
	"github.com/yourusername/lingo-service/internal/response"
	"github.com/yourusername/lingo-service/internal/services"
)

type FriendHandler struct {
	friendService *services.FriendService
}

func NewFriendHandler(friendService *services.FriendService) *FriendHandler {
	return &FriendHandler{friendService: friendService}
}

// GetFriends returns all accepted friends
func (h *FriendHandler) GetFriends(c *gin.Context) {
	userID := c.GetString(middleware.UserIDKey)

	friends, err := h.friendService.GetFriends(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	if friends == nil {
		friends = []*models.User{}
	}
	c.JSON(http.StatusOK, gin.H{"friends": friends})
}

// GetPendingRequests returns pending friend requests
func (h *FriendHandler) GetPendingRequests(c *gin.Context) {
	userID := c.GetString(middleware.UserIDKey)

	requests, err := h.friendService.GetPendingRequests(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"requests": requests})
}

// SendFriendRequest sends a friend request
func (h *FriendHandler) SendFriendRequest(c *gin.Context) {
	userID := c.GetString(middleware.UserIDKey)

	var req models.SendFriendRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperrors.Validation("targetUserId is required"))
		return
	}

	requestID, err := h.friendService.SendFriendRequest(c.Request.Context(), userID, req.TargetUserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"requestId": requestID})
}

// AcceptFriendRequest accepts a friend request
func (h *FriendHandler) AcceptFriendRequest(c *gin.Context) {
	userID := c.GetString(middleware.UserIDKey)

	var req models.AcceptRejectRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperrors.Validation("requestId is required"))
		return
	}

	if err := h.friendService.AcceptFriendRequest(c.Request.Context(), userID, req.RequestID); err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// RejectFriendRequest rejects a friend request
func (h *FriendHandler) RejectFriendRequest(c *gin.Context) {
	userID := c.GetString(middleware.UserIDKey)

	var req models.AcceptRejectRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperrors.Validation("requestId is required"))
		return
	}

	if err := h.friendService.RejectFriendRequest(c.Request.Context(), userID, req.RequestID); err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
