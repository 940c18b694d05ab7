package repository

import "cloud.google.com/go/firestore"

// FirestoreStore serves users and friendships from one Firestore client.
type FirestoreStore struct {
	*UserRepository
	*FriendRepository
	client *firestore.Client
}

func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{
		UserRepository:   NewUserRepository(client),
		FriendRepository: NewFriendRepository(client),
		client:           client,
	}
}

// Close closes the Firestore connection
func (s *FirestoreStore) Close() error {
	return s.client.Close()
}
