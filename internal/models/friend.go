package models

import "time"

// FriendshipStatus represents the status of a friendship
type FriendshipStatus string

const (
	StatusPending  FriendshipStatus = "pending"
	StatusAccepted FriendshipStatus = "accepted"
	StatusRejected FriendshipStatus = "rejected"
)

// Friendship represents a friendship or friend request. User1 is always the requester.
type Friendship struct {
	FriendshipID string           `firestore:"friendshipId" bson:"_id" json:"friendshipId"`
	User1ID      string           `firestore:"user1Id" bson:"user1_id" json:"user1Id"`
	User2ID      string           `firestore:"user2Id" bson:"user2_id" json:"user2Id"`
	Status       FriendshipStatus `firestore:"status" bson:"status" json:"status"`
	RequestedAt  time.Time        `firestore:"requestedAt" bson:"requested_at" json:"requestedAt"`
	AcceptedAt   *time.Time       `firestore:"acceptedAt,omitempty" bson:"accepted_at,omitempty" json:"acceptedAt,omitempty"`
}

// Other returns the participant that is not userID.
func (f *Friendship) Other(userID string) string {
	if f.User1ID == userID {
		return f.User2ID
	}
	return f.User1ID
}

// Involves reports whether userID is one of the two participants.
func (f *Friendship) Involves(userID string) bool {
	return f.User1ID == userID || f.User2ID == userID
}

// FriendRequest represents a pending friend request
type FriendRequest struct {
	RequestID   string    `json:"requestId"`
	Sender      *User     `json:"sender"`
	RequestedAt time.Time `json:"requestedAt"`
}

// SendFriendRequestBody represents the request body for sending friend request
type SendFriendRequestBody struct {
	TargetUserID string `json:"targetUserId" binding:"required"`
}

// AcceptRejectRequestBody represents the request body for accepting/rejecting friend request
type AcceptRejectRequestBody struct {
	RequestID string `json:"requestId" binding:"required"`
}
