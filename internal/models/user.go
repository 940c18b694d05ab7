package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// User represents a user in the system
type User struct {
	ID               string    `firestore:"id" bson:"_id" json:"_id"`
	Email            string    `firestore:"email" bson:"email" json:"email"`
	PasswordHash     string    `firestore:"passwordHash" bson:"password_hash" json:"-"` // Don't expose in JSON
	FullName         string    `firestore:"fullName" bson:"full_name" json:"fullName"`
	ProfilePic       string    `firestore:"profilePic" bson:"profile_pic" json:"profilePic"`
	Bio              string    `firestore:"bio" bson:"bio" json:"bio"`
	NativeLanguage   string    `firestore:"nativeLanguage" bson:"native_language" json:"nativeLanguage"`
	LearningLanguage string    `firestore:"learningLanguage" bson:"learning_language" json:"learningLanguage"`
	Location         string    `firestore:"location" bson:"location" json:"location"`
	IsOnboarded      bool      `firestore:"isOnboarded" bson:"is_onboarded" json:"isOnboarded"`
	CreatedAt        time.Time `firestore:"createdAt" bson:"created_at" json:"createdAt"`
	UpdatedAt        time.Time `firestore:"updatedAt" bson:"updated_at" json:"updatedAt"`
}

// SetPassword replaces the stored hash with a bcrypt hash of plain.
func (u *User) SetPassword(plain string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	return nil
}

// MatchPassword reports whether plain matches the stored hash.
func (u *User) MatchPassword(plain string) bool {
	if u.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(plain)) == nil
}

// ProfileUpdate carries the onboarding fields. Stores merge exactly these fields
// and set isOnboarded, leaving everything else untouched.
type ProfileUpdate struct {
	FullName         string
	Bio              string
	NativeLanguage   string
	LearningLanguage string
	Location         string
	ProfilePic       string
}

// Apply merges the update into u and marks it onboarded.
func (p ProfileUpdate) Apply(u *User, now time.Time) {
	u.FullName = p.FullName
	u.Bio = p.Bio
	u.NativeLanguage = p.NativeLanguage
	u.LearningLanguage = p.LearningLanguage
	u.Location = p.Location
	u.ProfilePic = p.ProfilePic
	u.IsOnboarded = true
	u.UpdatedAt = now
}

// SignupRequest represents the signup request body
type SignupRequest struct {
	FullName   string `json:"fullName"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	ProfilePic string `json:"profilePic"`
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// OnboardRequest represents the onboarding request body. Field order is the
// order in which missing fields are reported.
type OnboardRequest struct {
	FullName         string `json:"fullName" validate:"required"`
	Bio              string `json:"bio" validate:"required"`
	NativeLanguage   string `json:"nativeLanguage" validate:"required"`
	LearningLanguage string `json:"learningLanguage" validate:"required"`
	Location         string `json:"location" validate:"required"`
	ProfilePic       string `json:"profilePic" validate:"required"`
}

// ProfileUpdate converts the request into a store update.
func (r *OnboardRequest) ProfileUpdate() ProfileUpdate {
	return ProfileUpdate{
		FullName:         r.FullName,
		Bio:              r.Bio,
		NativeLanguage:   r.NativeLanguage,
		LearningLanguage: r.LearningLanguage,
		Location:         r.Location,
		ProfilePic:       r.ProfilePic,
	}
}

// AuthResponse represents the body returned by login, signup, onboarding and me
type AuthResponse struct {
	Success bool  `json:"success"`
	User    *User `json:"user"`
}
