package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/yourusername/lingo-service/internal/models"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const friendsCollection = "friends"

// FriendRepository is the Firestore friendship store.
type FriendRepository struct {
	client *firestore.Client
}

func NewFriendRepository(client *firestore.Client) *FriendRepository {
	return &FriendRepository{
		client: client,
	}
}

// CreateFriendship stores a new friendship, assigning its ID when empty
func (r *FriendRepository) CreateFriendship(ctx context.Context, friendship *models.Friendship) error {
	ref := r.client.Collection(friendsCollection).NewDoc()
	if friendship.FriendshipID != "" {
		ref = r.client.Collection(friendsCollection).Doc(friendship.FriendshipID)
	}
	friendship.FriendshipID = ref.ID

	_, err := ref.Create(ctx, friendship)
	return err
}

// GetFriendship retrieves a friendship by ID
func (r *FriendRepository) GetFriendship(ctx context.Context, friendshipID string) (*models.Friendship, error) {
	doc, err := r.client.Collection(friendsCollection).Doc(friendshipID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var friendship models.Friendship
	if err := doc.DataTo(&friendship); err != nil {
		return nil, err
	}

	return &friendship, nil
}

// FindFriendship checks both directions for a friendship between a and b
func (r *FriendRepository) FindFriendship(ctx context.Context, a, b string) (*models.Friendship, error) {
	for _, pair := range [][2]string{{a, b}, {b, a}} {
		found, err := r.first(ctx, r.client.Collection(friendsCollection).
			Where("user1Id", "==", pair[0]).
			Where("user2Id", "==", pair[1]).
			Where("status", "in", openStatuses).
			Limit(1))
		if err != nil {
			return nil, err
		}
		if found != nil {
			return found, nil
		}
	}

	return nil, ErrNotFound
}

// ListFriendships retrieves the friendships of a user with the given status
func (r *FriendRepository) ListFriendships(ctx context.Context, userID string, st models.FriendshipStatus) ([]*models.Friendship, error) {
	var friendships []*models.Friendship

	// Firestore has no OR across fields, so query each side
	for _, field := range []string{"user1Id", "user2Id"} {
		found, err := r.all(ctx, r.client.Collection(friendsCollection).
			Where(field, "==", userID).
			Where("status", "==", string(st)))
		if err != nil {
			return nil, err
		}
		friendships = append(friendships, found...)
	}

	return friendships, nil
}

// ListIncomingRequests retrieves pending requests where the user is user2
func (r *FriendRepository) ListIncomingRequests(ctx context.Context, userID string) ([]*models.Friendship, error) {
	return r.all(ctx, r.client.Collection(friendsCollection).
		Where("user2Id", "==", userID).
		Where("status", "==", string(models.StatusPending)))
}

// UpdateFriendshipStatus changes the status, stamping acceptedAt on acceptance
func (r *FriendRepository) UpdateFriendshipStatus(ctx context.Context, friendshipID string, st models.FriendshipStatus) error {
	updates := []firestore.Update{
		{Path: "status", Value: string(st)},
	}
	if st == models.StatusAccepted {
		updates = append(updates, firestore.Update{Path: "acceptedAt", Value: time.Now().UTC()})
	}

	_, err := r.client.Collection(friendsCollection).Doc(friendshipID).Update(ctx, updates)
	if status.Code(err) == codes.NotFound {
		return ErrNotFound
	}
	return err
}

func (r *FriendRepository) first(ctx context.Context, q firestore.Query) (*models.Friendship, error) {
	found, err := r.all(ctx, q)
	if err != nil || len(found) == 0 {
		return nil, err
	}
	return found[0], nil
}

func (r *FriendRepository) all(ctx context.Context, q firestore.Query) ([]*models.Friendship, error) {
	iter := q.Documents(ctx)
	defer iter.Stop()

	var friendships []*models.Friendship
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}

		var friendship models.Friendship
		if err := doc.DataTo(&friendship); err != nil {
			return nil, fmt.Errorf("failed to decode friendship %s: %w", doc.Ref.ID, err)
		}
		friendships = append(friendships, &friendship)
	}

	return friendships, nil
}
