package repository

import (
	"context"
	"os"
	"testing"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/lingo-service/internal/models"
)

// Runs against the Firestore emulator when FIRESTORE_EMULATOR_HOST is set.
func newEmulatorStore(t *testing.T) *FirestoreStore {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	client, err := firestore.NewClient(context.Background(), "lingo-test")
	require.NoError(t, err)
	s := NewFirestoreStore(client)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestFirestoreStore_ListFriendships_CorruptDocument(t *testing.T) {
	ctx := context.Background()
	s := newEmulatorStore(t)

	user := uuid.NewString()
	_, err := s.client.Collection(friendsCollection).Doc(uuid.NewString()).Set(ctx, map[string]any{
		"user1Id":     user,
		"user2Id":     uuid.NewString(),
		"status":      string(models.StatusAccepted),
		"requestedAt": "not a timestamp",
	})
	require.NoError(t, err)

	_, err = s.ListFriendships(ctx, user, models.StatusAccepted)
	assert.ErrorContains(t, err, "failed to decode friendship")
}
