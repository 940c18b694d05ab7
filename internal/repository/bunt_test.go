package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/buntdb"

	"github.com/yourusername/lingo-service/internal/models"
)

func newTestStore(t *testing.T) *BuntStore {
	t.Helper()
	s, err := NewBuntStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testUser(id, email string) *models.User {
	now := time.Now().UTC()
	return &models.User{
		ID:           id,
		Email:        email,
		PasswordHash: "hash-" + id,
		FullName:     "User " + id,
		ProfilePic:   "https://example.com/" + id,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestBuntStore_CreateAndGetUser(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.CreateUser(ctx, testUser("u1", "ann@x.com")))

	byID, err := s.GetUserByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "ann@x.com", byID.Email)
	assert.Equal(t, "hash-u1", byID.PasswordHash, "password hash must survive storage")

	byEmail, err := s.GetUserByEmail(ctx, "ann@x.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", byEmail.ID)

	_, err = s.GetUserByEmail(ctx, "ANN@x.com")
	assert.ErrorIs(t, err, ErrNotFound, "email lookup is case-sensitive")

	_, err = s.GetUserByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBuntStore_CreateUser_DuplicateEmail(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.CreateUser(ctx, testUser("u1", "ann@x.com")))
	err := s.CreateUser(ctx, testUser("u2", "ann@x.com"))
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, err = s.GetUserByID(ctx, "u2")
	assert.ErrorIs(t, err, ErrNotFound)

	existing, err := s.GetUserByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "User u1", existing.FullName)
}

func TestBuntStore_UpdateProfile_MergesFields(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	u := testUser("u1", "ann@x.com")
	require.NoError(t, s.CreateUser(ctx, u))

	updated, err := s.UpdateProfile(ctx, "u1", models.ProfileUpdate{
		FullName:         "Ann B",
		Bio:              "hola",
		NativeLanguage:   "english",
		LearningLanguage: "spanish",
		Location:         "Oslo",
		ProfilePic:       "https://example.com/new",
	})
	require.NoError(t, err)
	assert.True(t, updated.IsOnboarded)
	assert.Equal(t, "Ann B", updated.FullName)
	assert.Equal(t, "ann@x.com", updated.Email)
	assert.Equal(t, "hash-u1", updated.PasswordHash)
	assert.Equal(t, u.CreatedAt.Unix(), updated.CreatedAt.Unix())

	reloaded, err := s.GetUserByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, updated.Bio, reloaded.Bio)
	assert.True(t, reloaded.IsOnboarded)

	_, err = s.UpdateProfile(ctx, "missing", models.ProfileUpdate{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBuntStore_GetUsersByIDs_SkipsMissingKeepsOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.CreateUser(ctx, testUser("a", "a@x.com")))
	require.NoError(t, s.CreateUser(ctx, testUser("b", "b@x.com")))

	users, err := s.GetUsersByIDs(ctx, []string{"b", "nope", "a"})
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "b", users[0].ID)
	assert.Equal(t, "a", users[1].ID)
}

func TestBuntStore_Friendships(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	f := &models.Friendship{User1ID: "a", User2ID: "b", Status: models.StatusPending, RequestedAt: time.Now().UTC()}
	require.NoError(t, s.CreateFriendship(ctx, f))
	require.NotEmpty(t, f.FriendshipID)

	found, err := s.FindFriendship(ctx, "b", "a")
	require.NoError(t, err)
	assert.Equal(t, f.FriendshipID, found.FriendshipID)

	_, err = s.FindFriendship(ctx, "a", "c")
	assert.ErrorIs(t, err, ErrNotFound)

	incoming, err := s.ListIncomingRequests(ctx, "b")
	require.NoError(t, err)
	assert.Len(t, incoming, 1)

	incoming, err = s.ListIncomingRequests(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, incoming)

	require.NoError(t, s.UpdateFriendshipStatus(ctx, f.FriendshipID, models.StatusAccepted))

	got, err := s.GetFriendship(ctx, f.FriendshipID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAccepted, got.Status)
	assert.NotNil(t, got.AcceptedAt)

	for _, id := range []string{"a", "b"} {
		list, err := s.ListFriendships(ctx, id, models.StatusAccepted)
		require.NoError(t, err)
		assert.Len(t, list, 1, id)
	}

	assert.ErrorIs(t, s.UpdateFriendshipStatus(ctx, "missing", models.StatusRejected), ErrNotFound)
}

func TestBuntStore_FindFriendship_IgnoresRejected(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	f := &models.Friendship{User1ID: "a", User2ID: "b", Status: models.StatusPending, RequestedAt: time.Now().UTC()}
	require.NoError(t, s.CreateFriendship(ctx, f))
	require.NoError(t, s.UpdateFriendshipStatus(ctx, f.FriendshipID, models.StatusRejected))

	_, err := s.FindFriendship(ctx, "a", "b")
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := s.GetFriendship(ctx, f.FriendshipID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, got.Status)
	assert.Nil(t, got.AcceptedAt)
}

func TestBuntStore_ListFriendships_CorruptDocument(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.CreateFriendship(ctx, &models.Friendship{
		User1ID: "a", User2ID: "b", Status: models.StatusAccepted, RequestedAt: time.Now().UTC(),
	}))
	require.NoError(t, s.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(friendshipKeyPrefix+"broken", `{"user1Id":`, nil)
		return err
	}))

	_, err := s.ListFriendships(ctx, "a", models.StatusAccepted)
	assert.Error(t, err)
}
