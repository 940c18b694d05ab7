package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/yourusername/lingo-service/internal/apperrors"
	"github.com/yourusername/lingo-service/internal/auth"
	"github.com/yourusername/lingo-service/internal/chat"
	"github.com/yourusername/lingo-service/internal/models"
	"github.com/yourusername/lingo-service/internal/repository"
	"github.com/yourusername/lingo-service/pkg/utils"
)

var (
	dummyHashOnce sync.Once
	dummyHash     []byte
)

// compareDummyHash spends the same time as a real password check so unknown
// emails cannot be told apart from wrong passwords.
func compareDummyHash(password string) {
	dummyHashOnce.Do(func() {
		dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)
	})
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
}

// Session is an authenticated user with a freshly issued session token.
type Session struct {
	User  *models.User
	Token string
}

type AuthService struct {
	users  repository.UserStore
	issuer *auth.Issuer
	chat   chat.Provider
	logger *slog.Logger
	now    func() time.Time
}

// NewAuthService creates the service. chatProvider may be nil, in which case
// no chat identity is registered.
func NewAuthService(users repository.UserStore, issuer *auth.Issuer, chatProvider chat.Provider, logger *slog.Logger) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		users:  users,
		issuer: issuer,
		chat:   chatProvider,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Login authenticates a user by email and password
func (s *AuthService) Login(ctx context.Context, req *models.LoginRequest) (*Session, error) {
	if req.Email == "" || req.Password == "" {
		return nil, apperrors.Validation("Email and password are required")
	}

	user, err := s.users.GetUserByEmail(ctx, req.Email)
	if errors.Is(err, repository.ErrNotFound) {
		compareDummyHash(req.Password)
		return nil, apperrors.ErrAuthentication
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if !user.MatchPassword(req.Password) {
		return nil, apperrors.ErrAuthentication
	}

	return s.newSession(user)
}

// Signup creates a new account and signs it in
func (s *AuthService) Signup(ctx context.Context, req *models.SignupRequest) (*Session, error) {
	if req.FullName == "" || req.Email == "" || req.Password == "" {
		return nil, apperrors.Validation("All fields are required")
	}

	if err := utils.ValidatePassword(req.Password); err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	if err := utils.ValidateEmail(req.Email); err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	// Check if email already exists
	existing, err := s.users.GetUserByEmail(ctx, req.Email)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if existing != nil {
		return nil, emailTaken()
	}

	profilePic := req.ProfilePic
	if profilePic == "" {
		profilePic = RandomAvatar()
	}

	now := s.now()
	user := &models.User{
		ID:          uuid.NewString(),
		Email:       req.Email,
		FullName:    req.FullName,
		ProfilePic:  profilePic,
		IsOnboarded: false,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := user.SetPassword(req.Password); err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, emailTaken()
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.registerChatUser(ctx, user)

	return s.newSession(user)
}

// Onboard completes the profile of userID
func (s *AuthService) Onboard(ctx context.Context, userID string, req *models.OnboardRequest) (*models.User, error) {
	if req.ProfilePic == "" {
		req.ProfilePic = RandomAvatar()
	}

	missing, err := utils.MissingFields(req)
	if err != nil {
		return nil, fmt.Errorf("failed to validate onboarding fields: %w", err)
	}
	if len(missing) > 0 {
		return nil, apperrors.MissingFields(missing)
	}

	user, err := s.users.UpdateProfile(ctx, userID, req.ProfileUpdate())
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("User not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	s.registerChatUser(ctx, user)

	return user, nil
}

// Me returns the user behind a validated session
func (s *AuthService) Me(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("User not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return user, nil
}

// Authenticate resolves a session token to its user id
func (s *AuthService) Authenticate(token string) (string, error) {
	return s.issuer.Parse(token)
}

// SessionTTL is the validity of issued session tokens.
func (s *AuthService) SessionTTL() time.Duration {
	return s.issuer.TTL()
}

func (s *AuthService) newSession(user *models.User) (*Session, error) {
	token, err := s.issuer.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue session token: %w", err)
	}
	return &Session{User: user, Token: token}, nil
}

// registerChatUser upserts the chat identity. Failures are logged only; the
// account is usable without it.
func (s *AuthService) registerChatUser(ctx context.Context, user *models.User) {
	if s.chat == nil {
		return
	}
	err := s.chat.UpsertUser(ctx, chat.Identity{
		ID:    user.ID,
		Name:  user.FullName,
		Image: user.ProfilePic,
	})
	if err != nil {
		s.logger.Error("failed to register chat user",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()))
	}
}

func emailTaken() error {
	return apperrors.Conflict("Email already exists, please use another email")
}
