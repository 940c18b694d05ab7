package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/lingo-service/internal/apperrors"
	"github.com/yourusername/lingo-service/internal/auth"
	"github.com/yourusername/lingo-service/internal/chat"
	"github.com/yourusername/lingo-service/internal/models"
	"github.com/yourusername/lingo-service/internal/repository"
	"github.com/yourusername/lingo-service/internal/unread"
)

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) UpsertUser(ctx context.Context, id chat.Identity) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockProvider) CreateToken(userID string) (string, error) {
	args := m.Called(userID)
	return args.String(0), args.Error(1)
}

func (m *mockProvider) Client(userID string) unread.Client {
	args := m.Called(userID)
	c, _ := args.Get(0).(unread.Client)
	return c
}

func (m *mockProvider) Events() *chat.Bus {
	return chat.NewBus()
}

func newTestStore(t *testing.T) *repository.BuntStore {
	t.Helper()
	store, err := repository.NewBuntStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newTestAuthService(t *testing.T, provider chat.Provider) (*AuthService, *repository.BuntStore) {
	t.Helper()
	store := newTestStore(t)
	issuer, err := auth.NewIssuer([]byte("test-secret"), 0)
	require.NoError(t, err)
	return NewAuthService(store, issuer, provider, nil), store
}

func TestSignupThenLogin(t *testing.T) {
	ctx := context.Background()
	provider := &mockProvider{}
	provider.On("UpsertUser", mock.Anything, mock.MatchedBy(func(id chat.Identity) bool {
		return id.Name == "Ann" && id.ID != ""
	})).Return(nil).Once()

	svc, _ := newTestAuthService(t, provider)

	session, err := svc.Signup(ctx, &models.SignupRequest{FullName: "Ann", Email: "ann@x.com", Password: "secret1"})
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)
	assert.False(t, session.User.IsOnboarded)
	assert.True(t, strings.HasPrefix(session.User.ProfilePic, avatarBaseURL))
	assert.NotEqual(t, "secret1", session.User.PasswordHash)

	userID, err := svc.Authenticate(session.Token)
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, userID)

	login, err := svc.Login(ctx, &models.LoginRequest{Email: "ann@x.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, login.User.ID)

	provider.AssertExpectations(t)
}

func TestSignup_Validation(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestAuthService(t, nil)

	tests := []struct {
		name    string
		req     models.SignupRequest
		message string
	}{
		{"missing name", models.SignupRequest{Email: "a@x.com", Password: "secret1"}, "All fields are required"},
		{"missing password", models.SignupRequest{FullName: "A", Email: "a@x.com"}, "All fields are required"},
		{"short password", models.SignupRequest{FullName: "A", Email: "a@x.com", Password: "abc"}, "Password must be at least 6 characters long"},
		{"short multibyte password", models.SignupRequest{FullName: "A", Email: "a@x.com", Password: "ééé"}, "Password must be at least 6 characters long"},
		{"password too long", models.SignupRequest{FullName: "A", Email: "a@x.com", Password: strings.Repeat("a", 80)}, "Password must be at most 72 bytes long"},
		{"bad email", models.SignupRequest{FullName: "A", Email: "not-an-email", Password: "secret1"}, "Invalid email format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Signup(ctx, &tt.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrValidation)
			assert.Equal(t, tt.message, err.Error())
		})
	}

	_, err := store.GetUserByEmail(ctx, "a@x.com")
	assert.ErrorIs(t, err, repository.ErrNotFound, "rejected signups create nothing")
}

func TestSignup_DuplicateEmail(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestAuthService(t, nil)

	first, err := svc.Signup(ctx, &models.SignupRequest{FullName: "Ann", Email: "ann@x.com", Password: "secret1"})
	require.NoError(t, err)

	_, err = svc.Signup(ctx, &models.SignupRequest{FullName: "Impostor", Email: "ann@x.com", Password: "other12"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.Equal(t, "Email already exists, please use another email", err.Error())
	assert.Equal(t, 400, apperrors.As(err).StatusCode)

	existing, err := store.GetUserByID(ctx, first.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ann", existing.FullName)
	assert.True(t, existing.MatchPassword("secret1"))
}

func TestSignup_ChatFailureIsSwallowed(t *testing.T) {
	provider := &mockProvider{}
	provider.On("UpsertUser", mock.Anything, mock.Anything).Return(errors.New("provider down"))

	svc, _ := newTestAuthService(t, provider)
	session, err := svc.Signup(context.Background(), &models.SignupRequest{
		FullName:   "Ann",
		Email:      "ann@x.com",
		Password:   "secret1",
		ProfilePic: "https://example.com/ann.png",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/ann.png", session.User.ProfilePic)
	provider.AssertNumberOfCalls(t, "UpsertUser", 1)
}

func TestLogin_FailuresAreIndistinguishable(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestAuthService(t, nil)
	_, err := svc.Signup(ctx, &models.SignupRequest{FullName: "Ann", Email: "ann@x.com", Password: "secret1"})
	require.NoError(t, err)

	_, unknownErr := svc.Login(ctx, &models.LoginRequest{Email: "nobody@x.com", Password: "secret1"})
	_, wrongErr := svc.Login(ctx, &models.LoginRequest{Email: "ann@x.com", Password: "wrong-pass"})

	require.Error(t, unknownErr)
	require.Error(t, wrongErr)
	assert.Equal(t, apperrors.As(unknownErr), apperrors.As(wrongErr))
	assert.Equal(t, 401, apperrors.As(unknownErr).StatusCode)
	assert.Equal(t, "Invalid email or password", unknownErr.Error())

	_, err = svc.Login(ctx, &models.LoginRequest{Email: "ann@x.com"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Equal(t, "Email and password are required", err.Error())
}

func TestOnboard(t *testing.T) {
	ctx := context.Background()
	provider := &mockProvider{}
	provider.On("UpsertUser", mock.Anything, mock.Anything).Return(nil)

	svc, _ := newTestAuthService(t, provider)
	session, err := svc.Signup(ctx, &models.SignupRequest{FullName: "Ann", Email: "ann@x.com", Password: "secret1"})
	require.NoError(t, err)

	user, err := svc.Onboard(ctx, session.User.ID, &models.OnboardRequest{
		FullName:         "Ann B",
		Bio:              "Hola",
		NativeLanguage:   "english",
		LearningLanguage: "spanish",
		Location:         "Oslo",
	})
	require.NoError(t, err)
	assert.True(t, user.IsOnboarded)
	assert.Equal(t, "Ann B", user.FullName)
	assert.Equal(t, "spanish", user.LearningLanguage)
	assert.True(t, strings.HasPrefix(user.ProfilePic, avatarBaseURL), "empty picture gets a generated avatar")
	assert.Equal(t, "ann@x.com", user.Email)

	provider.AssertCalled(t, "UpsertUser", mock.Anything, chat.Identity{ID: user.ID, Name: "Ann B", Image: user.ProfilePic})
}

func TestOnboard_MissingFields(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestAuthService(t, nil)
	session, err := svc.Signup(ctx, &models.SignupRequest{FullName: "Ann", Email: "ann@x.com", Password: "secret1"})
	require.NoError(t, err)

	_, err = svc.Onboard(ctx, session.User.ID, &models.OnboardRequest{
		FullName:       "Ann",
		NativeLanguage: "english",
	})
	require.Error(t, err)

	apiErr := apperrors.As(err)
	assert.Equal(t, 400, apiErr.StatusCode)
	assert.Equal(t, "All fields are required", apiErr.Message)
	assert.Equal(t, []string{"bio", "learningLanguage", "location"}, apiErr.MissingFields)

	unchanged, err := store.GetUserByID(ctx, session.User.ID)
	require.NoError(t, err)
	assert.False(t, unchanged.IsOnboarded)
}

func TestOnboard_VanishedUser(t *testing.T) {
	svc, _ := newTestAuthService(t, nil)

	_, err := svc.Onboard(context.Background(), "ghost", &models.OnboardRequest{
		FullName:         "A",
		Bio:              "b",
		NativeLanguage:   "c",
		LearningLanguage: "d",
		Location:         "e",
		ProfilePic:       "f",
	})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Equal(t, "User not found", err.Error())

	_, err = svc.Me(context.Background(), "ghost")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestRandomAvatar(t *testing.T) {
	a := RandomAvatar()
	require.True(t, strings.HasPrefix(a, avatarBaseURL))
	assert.Len(t, strings.TrimPrefix(a, avatarBaseURL), seedLength)
	assert.NotEqual(t, a, RandomAvatar())
}
