package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yourusername/lingo-service/internal/apperrors"
	"github.com/yourusername/lingo-service/internal/models"
	"github.com/yourusername/lingo-service/internal/repository"
)

type FriendService struct {
	friendRepo repository.FriendStore
	userRepo   repository.UserStore
}

func NewFriendService(friends repository.FriendStore, users repository.UserStore) *FriendService {
	return &FriendService{
		friendRepo: friends,
		userRepo:   users,
	}
}

// FriendIDs returns the ids of all accepted friends of a user
func (s *FriendService) FriendIDs(ctx context.Context, userID string) ([]string, error) {
	friendships, err := s.friendRepo.ListFriendships(ctx, userID, models.StatusAccepted)
	if err != nil {
		return nil, fmt.Errorf("failed to list friendships: %w", err)
	}

	ids := make([]string, 0, len(friendships))
	seen := make(map[string]struct{}, len(friendships))
	for _, friendship := range friendships {
		id := friendship.Other(userID)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

// GetFriends returns all accepted friends for a user
func (s *FriendService) GetFriends(ctx context.Context, userID string) ([]*models.User, error) {
	ids, err := s.FriendIDs(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Friends whose account is gone are skipped
	friends, err := s.userRepo.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load friends: %w", err)
	}
	return friends, nil
}

// GetPendingRequests returns pending friend requests sent to a user
func (s *FriendService) GetPendingRequests(ctx context.Context, userID string) ([]*models.FriendRequest, error) {
	friendships, err := s.friendRepo.ListIncomingRequests(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list friend requests: %w", err)
	}

	senderIDs := make([]string, 0, len(friendships))
	for _, friendship := range friendships {
		senderIDs = append(senderIDs, friendship.User1ID)
	}
	senders, err := s.userRepo.GetUsersByIDs(ctx, senderIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load request senders: %w", err)
	}
	byID := make(map[string]*models.User, len(senders))
	for _, u := range senders {
		byID[u.ID] = u
	}

	requests := make([]*models.FriendRequest, 0, len(friendships))
	for _, friendship := range friendships {
		sender, ok := byID[friendship.User1ID]
		if !ok {
			continue
		}
		requests = append(requests, &models.FriendRequest{
			RequestID:   friendship.FriendshipID,
			Sender:      sender,
			RequestedAt: friendship.RequestedAt,
		})
	}

	return requests, nil
}

// SendFriendRequest sends a friend request
func (s *FriendService) SendFriendRequest(ctx context.Context, senderID, targetUserID string) (string, error) {
	// Check if users are the same
	if senderID == targetUserID {
		return "", apperrors.Validation("You can't send a friend request to yourself")
	}

	// Check if target user exists
	if _, err := s.userRepo.GetUserByID(ctx, targetUserID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", apperrors.NotFound("User not found")
		}
		return "", fmt.Errorf("failed to load user: %w", err)
	}

	// Check both directions
	existing, err := s.friendRepo.FindFriendship(ctx, senderID, targetUserID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return "", fmt.Errorf("failed to check friendship: %w", err)
	}
	if existing != nil {
		if existing.Status == models.StatusAccepted {
			return "", apperrors.Conflict("You are already friends with this user")
		}
		if existing.User1ID == senderID {
			return "", apperrors.Conflict("Friend request already sent")
		}
		return "", apperrors.Conflict("This user already sent you a friend request")
	}

	friendship := &models.Friendship{
		User1ID:     senderID,
		User2ID:     targetUserID,
		Status:      models.StatusPending,
		RequestedAt: time.Now().UTC(),
	}
	if err := s.friendRepo.CreateFriendship(ctx, friendship); err != nil {
		return "", fmt.Errorf("failed to create friend request: %w", err)
	}

	return friendship.FriendshipID, nil
}

// AcceptFriendRequest accepts a friend request
func (s *FriendService) AcceptFriendRequest(ctx context.Context, userID, requestID string) error {
	return s.respond(ctx, userID, requestID, models.StatusAccepted)
}

// RejectFriendRequest rejects a friend request
func (s *FriendService) RejectFriendRequest(ctx context.Context, userID, requestID string) error {
	return s.respond(ctx, userID, requestID, models.StatusRejected)
}

func (s *FriendService) respond(ctx context.Context, userID, requestID string, status models.FriendshipStatus) error {
	friendship, err := s.friendRepo.GetFriendship(ctx, requestID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NotFound("Friend request not found")
		}
		return fmt.Errorf("failed to load friend request: %w", err)
	}

	// Only the recipient may respond; anyone else sees no such request
	if friendship.User2ID != userID {
		return apperrors.NotFound("Friend request not found")
	}

	if friendship.Status != models.StatusPending {
		return apperrors.Validation("Friend request is not pending")
	}

	if err := s.friendRepo.UpdateFriendshipStatus(ctx, requestID, status); err != nil {
		return fmt.Errorf("failed to update friend request: %w", err)
	}
	return nil
}
