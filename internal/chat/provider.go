// Package chat connects users to the hosted chat provider: identity
// registration, user tokens and the per-user clients used for unread tracking.
package chat

import (
	"context"

	"github.com/yourusername/lingo-service/internal/unread"
)

// Identity is the profile registered with the chat provider.
type Identity struct {
	ID    string
	Name  string
	Image string
}

// Provider is a chat backend.
type Provider interface {
	// UpsertUser creates or updates the provider identity.
	UpsertUser(ctx context.Context, id Identity) error
	// CreateToken returns a token the frontend uses to connect as userID.
	CreateToken(userID string) (string, error)
	// Client returns a connection for userID.
	Client(userID string) unread.Client
	// Events returns the bus carrying new-message events.
	Events() *Bus
}

// WebhookVerifier checks the signature of a provider webhook body.
type WebhookVerifier interface {
	VerifyWebhook(body, signature []byte) bool
}
