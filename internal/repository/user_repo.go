package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/yourusername/lingo-service/internal/models"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	usersCollection      = "users"
	userEmailsCollection = "userEmails"
)

// UserRepository is the Firestore credential store.
type UserRepository struct {
	client *firestore.Client
}

func NewUserRepository(client *firestore.Client) *UserRepository {
	return &UserRepository{
		client: client,
	}
}

// emailKey maps an email to a document id; emails may contain characters
// Firestore does not allow in ids.
func emailKey(email string) string {
	sum := sha256.Sum256([]byte(email))
	return hex.EncodeToString(sum[:])
}

// CreateUser creates a new user in Firestore. The email reservation document
// and the user document are created in one transaction, so a concurrent
// signup with the same email fails with ErrEmailTaken.
func (r *UserRepository) CreateUser(ctx context.Context, user *models.User) error {
	userRef := r.client.Collection(usersCollection).Doc(user.ID)
	emailRef := r.client.Collection(userEmailsCollection).Doc(emailKey(user.Email))

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if err := tx.Create(emailRef, map[string]interface{}{"userId": user.ID}); err != nil {
			return err
		}
		return tx.Create(userRef, user)
	})
	if status.Code(err) == codes.AlreadyExists {
		return ErrEmailTaken
	}
	return err
}

// GetUserByID retrieves a user by their ID
func (r *UserRepository) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	doc, err := r.client.Collection(usersCollection).Doc(userID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var user models.User
	if err := doc.DataTo(&user); err != nil {
		return nil, err
	}

	return &user, nil
}

// GetUserByEmail retrieves a user by their email
func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	iter := r.client.Collection(usersCollection).Where("email", "==", email).Limit(1).Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if errors.Is(err, iterator.Done) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var user models.User
	if err := doc.DataTo(&user); err != nil {
		return nil, err
	}

	return &user, nil
}

// GetUsersByIDs fetches all users in one round trip, skipping missing ones
func (r *UserRepository) GetUsersByIDs(ctx context.Context, ids []string) ([]*models.User, error) {
	if len(ids) == 0 {
		return []*models.User{}, nil
	}

	refs := make([]*firestore.DocumentRef, len(ids))
	for i, id := range ids {
		refs[i] = r.client.Collection(usersCollection).Doc(id)
	}

	docs, err := r.client.GetAll(ctx, refs)
	if err != nil {
		return nil, err
	}

	users := make([]*models.User, 0, len(docs))
	for _, doc := range docs {
		if !doc.Exists() {
			continue
		}
		var user models.User
		if err := doc.DataTo(&user); err != nil {
			return nil, err
		}
		users = append(users, &user)
	}

	return users, nil
}

// UpdateProfile merges the onboarding fields in a transaction
func (r *UserRepository) UpdateProfile(ctx context.Context, userID string, update models.ProfileUpdate) (*models.User, error) {
	ref := r.client.Collection(usersCollection).Doc(userID)
	var updated models.User

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(ref)
		if err != nil {
			return err
		}
		if err := doc.DataTo(&updated); err != nil {
			return err
		}

		now := time.Now().UTC()
		update.Apply(&updated, now)

		return tx.Update(ref, []firestore.Update{
			{Path: "fullName", Value: update.FullName},
			{Path: "bio", Value: update.Bio},
			{Path: "nativeLanguage", Value: update.NativeLanguage},
			{Path: "learningLanguage", Value: update.LearningLanguage},
			{Path: "location", Value: update.Location},
			{Path: "profilePic", Value: update.ProfilePic},
			{Path: "isOnboarded", Value: true},
			{Path: "updatedAt", Value: now},
		})
	})
	if status.Code(err) == codes.NotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &updated, nil
}
