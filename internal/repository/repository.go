// Package repository holds the document-store backends for users and friendships.
package repository

import (
	"context"
	"errors"

	"github.com/yourusername/lingo-service/internal/models"
)

var (
	// ErrNotFound is returned when the requested document does not exist.
	ErrNotFound = errors.New("not found")
	// ErrEmailTaken is returned by CreateUser when the email is already registered.
	ErrEmailTaken = errors.New("email already registered")
)

// openStatuses are the friendship states FindFriendship considers.
var openStatuses = []string{string(models.StatusPending), string(models.StatusAccepted)}

// UserStore is the credential store.
type UserStore interface {
	// CreateUser inserts user, enforcing email uniqueness.
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, userID string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	// GetUsersByIDs returns the users that exist, in the order of ids.
	GetUsersByIDs(ctx context.Context, ids []string) ([]*models.User, error)
	// UpdateProfile atomically merges the update into the user and marks it
	// onboarded, returning the updated document.
	UpdateProfile(ctx context.Context, userID string, update models.ProfileUpdate) (*models.User, error)
}

// FriendStore holds friendships and friend requests.
type FriendStore interface {
	CreateFriendship(ctx context.Context, friendship *models.Friendship) error
	GetFriendship(ctx context.Context, friendshipID string) (*models.Friendship, error)
	// FindFriendship returns the open (pending or accepted) friendship between
	// a and b in either direction. Rejected requests are ignored.
	FindFriendship(ctx context.Context, a, b string) (*models.Friendship, error)
	// ListFriendships returns the friendships of userID with the given status.
	ListFriendships(ctx context.Context, userID string, status models.FriendshipStatus) ([]*models.Friendship, error)
	// ListIncomingRequests returns pending friendships where userID is the recipient.
	ListIncomingRequests(ctx context.Context, userID string) ([]*models.Friendship, error)
	UpdateFriendshipStatus(ctx context.Context, friendshipID string, status models.FriendshipStatus) error
}

// Store bundles both stores over one backend.
type Store interface {
	UserStore
	FriendStore
	Close() error
}
