package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/buntdb"
	"github.com/yourusername/lingo-service/internal/models"
)

const (
	userKeyPrefix       = "user:"
	emailKeyPrefix      = "email:"
	friendshipKeyPrefix = "friendship:"
)

// BuntStore is an embedded document store for local development and tests.
// Every document is stored as JSON under a prefixed key; each operation runs in
// a single buntdb transaction.
type BuntStore struct {
	db *buntdb.DB
}

// NewBuntStore opens path; ":memory:" keeps everything in memory.
func NewBuntStore(path string) (*BuntStore, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, err
	}
	return &BuntStore{db: db}, nil
}

func (s *BuntStore) Close() error {
	return s.db.Close()
}

// storedUser keeps the password hash, which models.User hides from JSON.
type storedUser struct {
	models.User
	PasswordHash string `json:"passwordHash"`
}

func encodeUser(u *models.User) (string, error) {
	b, err := json.Marshal(storedUser{User: *u, PasswordHash: u.PasswordHash})
	return string(b), err
}

func decodeUser(raw string) (*models.User, error) {
	var su storedUser
	if err := json.Unmarshal([]byte(raw), &su); err != nil {
		return nil, err
	}
	u := su.User
	u.PasswordHash = su.PasswordHash
	return &u, nil
}

func getUser(tx *buntdb.Tx, userID string) (*models.User, error) {
	raw, err := tx.Get(userKeyPrefix + userID)
	if errors.Is(err, buntdb.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeUser(raw)
}

func (s *BuntStore) CreateUser(_ context.Context, user *models.User) error {
	return s.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Get(emailKeyPrefix + user.Email)
		if err == nil {
			return ErrEmailTaken
		}
		if !errors.Is(err, buntdb.ErrNotFound) {
			return err
		}

		raw, err := encodeUser(user)
		if err != nil {
			return err
		}
		if _, _, err := tx.Set(emailKeyPrefix+user.Email, user.ID, nil); err != nil {
			return err
		}
		_, _, err = tx.Set(userKeyPrefix+user.ID, raw, nil)
		return err
	})
}

func (s *BuntStore) GetUserByID(_ context.Context, userID string) (*models.User, error) {
	var user *models.User
	err := s.db.View(func(tx *buntdb.Tx) error {
		var err error
		user, err = getUser(tx, userID)
		return err
	})
	return user, err
}

func (s *BuntStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	var user *models.User
	err := s.db.View(func(tx *buntdb.Tx) error {
		id, err := tx.Get(emailKeyPrefix + email)
		if errors.Is(err, buntdb.ErrNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		user, err = getUser(tx, id)
		return err
	})
	return user, err
}

func (s *BuntStore) GetUsersByIDs(_ context.Context, ids []string) ([]*models.User, error) {
	users := make([]*models.User, 0, len(ids))
	err := s.db.View(func(tx *buntdb.Tx) error {
		for _, id := range ids {
			u, err := getUser(tx, id)
			if errors.Is(err, ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			users = append(users, u)
		}
		return nil
	})
	return users, err
}

func (s *BuntStore) UpdateProfile(_ context.Context, userID string, update models.ProfileUpdate) (*models.User, error) {
	var user *models.User
	err := s.db.Update(func(tx *buntdb.Tx) error {
		var err error
		user, err = getUser(tx, userID)
		if err != nil {
			return err
		}

		update.Apply(user, time.Now().UTC())

		raw, err := encodeUser(user)
		if err != nil {
			return err
		}
		_, _, err = tx.Set(userKeyPrefix+userID, raw, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func getFriendship(tx *buntdb.Tx, id string) (*models.Friendship, error) {
	raw, err := tx.Get(friendshipKeyPrefix + id)
	if errors.Is(err, buntdb.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var f models.Friendship
	if err := json.Unmarshal([]byte(raw), &f); err != nil {
		return nil, err
	}
	return &f, nil
}

func setFriendship(tx *buntdb.Tx, f *models.Friendship) error {
	raw, err := json.Marshal(f)
	if err != nil {
		return err
	}
	_, _, err = tx.Set(friendshipKeyPrefix+f.FriendshipID, string(raw), nil)
	return err
}

// scanFriendships calls match for every stored friendship and keeps the matches.
func (s *BuntStore) scanFriendships(match func(*models.Friendship) bool) ([]*models.Friendship, error) {
	var out []*models.Friendship
	err := s.db.View(func(tx *buntdb.Tx) error {
		var decodeErr error
		err := tx.AscendKeys(friendshipKeyPrefix+"*", func(_, value string) bool {
			var f models.Friendship
			if decodeErr = json.Unmarshal([]byte(value), &f); decodeErr != nil {
				return false
			}
			if match(&f) {
				out = append(out, &f)
			}
			return true
		})
		if err != nil {
			return err
		}
		return decodeErr
	})
	return out, err
}

func (s *BuntStore) CreateFriendship(_ context.Context, friendship *models.Friendship) error {
	if friendship.FriendshipID == "" {
		friendship.FriendshipID = uuid.NewString()
	}
	return s.db.Update(func(tx *buntdb.Tx) error {
		return setFriendship(tx, friendship)
	})
}

func (s *BuntStore) GetFriendship(_ context.Context, friendshipID string) (*models.Friendship, error) {
	var f *models.Friendship
	err := s.db.View(func(tx *buntdb.Tx) error {
		var err error
		f, err = getFriendship(tx, friendshipID)
		return err
	})
	return f, err
}

func (s *BuntStore) FindFriendship(_ context.Context, a, b string) (*models.Friendship, error) {
	found, err := s.scanFriendships(func(f *models.Friendship) bool {
		if f.Status == models.StatusRejected {
			return false
		}
		return (f.User1ID == a && f.User2ID == b) || (f.User1ID == b && f.User2ID == a)
	})
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, ErrNotFound
	}
	return found[0], nil
}

func (s *BuntStore) ListFriendships(_ context.Context, userID string, status models.FriendshipStatus) ([]*models.Friendship, error) {
	return s.scanFriendships(func(f *models.Friendship) bool {
		return f.Status == status && f.Involves(userID)
	})
}

func (s *BuntStore) ListIncomingRequests(_ context.Context, userID string) ([]*models.Friendship, error) {
	return s.scanFriendships(func(f *models.Friendship) bool {
		return f.Status == models.StatusPending && f.User2ID == userID
	})
}

func (s *BuntStore) UpdateFriendshipStatus(_ context.Context, friendshipID string, status models.FriendshipStatus) error {
	return s.db.Update(func(tx *buntdb.Tx) error {
		f, err := getFriendship(tx, friendshipID)
		if err != nil {
			return err
		}
		f.Status = status
		if status == models.StatusAccepted {
			now := time.Now().UTC()
			f.AcceptedAt = &now
		}
		return setFriendship(tx, f)
	})
}
