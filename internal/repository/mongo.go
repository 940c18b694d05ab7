package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yourusername/lingo-service/internal/models"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MongoStore serves users and friendships from MongoDB.
type MongoStore struct {
	client      *mongo.Client
	users       *mongo.Collection
	friendships *mongo.Collection
}

// NewMongoStore connects to uri, verifies the connection and ensures the
// unique email index.
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	db := client.Database(database)
	s := &MongoStore{
		client:      client,
		users:       db.Collection("users"),
		friendships: db.Collection("friendships"),
	}

	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	if _, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("failed to create email index: %w", err)
	}

	if _, err := s.friendships.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user1_id", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "user2_id", Value: 1}, {Key: "status", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("failed to create friendship indexes: %w", err)
	}

	return nil
}

// Close disconnects the client.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) CreateUser(ctx context.Context, user *models.User) error {
	_, err := s.users.InsertOne(ctx, user)
	if mongo.IsDuplicateKeyError(err) {
		return ErrEmailTaken
	}
	return err
}

func (s *MongoStore) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	return s.findUser(ctx, bson.M{"_id": userID})
}

func (s *MongoStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findUser(ctx, bson.M{"email": email})
}

func (s *MongoStore) findUser(ctx context.Context, filter bson.M) (*models.User, error) {
	var user models.User
	err := s.users.FindOne(ctx, filter).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *MongoStore) GetUsersByIDs(ctx context.Context, ids []string) ([]*models.User, error) {
	if len(ids) == 0 {
		return []*models.User{}, nil
	}

	cur, err := s.users.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}

	var found []*models.User
	if err := cur.All(ctx, &found); err != nil {
		return nil, err
	}

	byID := make(map[string]*models.User, len(found))
	for _, u := range found {
		byID[u.ID] = u
	}

	users := make([]*models.User, 0, len(found))
	for _, id := range ids {
		if u, ok := byID[id]; ok {
			users = append(users, u)
		}
	}
	return users, nil
}

// UpdateProfile uses $set so fields outside the update are left untouched.
func (s *MongoStore) UpdateProfile(ctx context.Context, userID string, update models.ProfileUpdate) (*models.User, error) {
	set := bson.M{
		"full_name":         update.FullName,
		"bio":               update.Bio,
		"native_language":   update.NativeLanguage,
		"learning_language": update.LearningLanguage,
		"location":          update.Location,
		"profile_pic":       update.ProfilePic,
		"is_onboarded":      true,
		"updated_at":        time.Now().UTC(),
	}

	var user models.User
	err := s.users.FindOneAndUpdate(ctx,
		bson.M{"_id": userID},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *MongoStore) CreateFriendship(ctx context.Context, friendship *models.Friendship) error {
	if friendship.FriendshipID == "" {
		friendship.FriendshipID = bson.NewObjectID().Hex()
	}
	_, err := s.friendships.InsertOne(ctx, friendship)
	return err
}

func (s *MongoStore) GetFriendship(ctx context.Context, friendshipID string) (*models.Friendship, error) {
	return s.findFriendship(ctx, bson.M{"_id": friendshipID})
}

func (s *MongoStore) FindFriendship(ctx context.Context, a, b string) (*models.Friendship, error) {
	return s.findFriendship(ctx, bson.M{
		"status": bson.M{"$in": openStatuses},
		"$or": bson.A{
			bson.M{"user1_id": a, "user2_id": b},
			bson.M{"user1_id": b, "user2_id": a},
		},
	})
}

func (s *MongoStore) findFriendship(ctx context.Context, filter bson.M) (*models.Friendship, error) {
	var f models.Friendship
	err := s.friendships.FindOne(ctx, filter).Decode(&f)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (s *MongoStore) ListFriendships(ctx context.Context, userID string, status models.FriendshipStatus) ([]*models.Friendship, error) {
	return s.listFriendships(ctx, bson.M{
		"status": string(status),
		"$or":    bson.A{bson.M{"user1_id": userID}, bson.M{"user2_id": userID}},
	})
}

func (s *MongoStore) ListIncomingRequests(ctx context.Context, userID string) ([]*models.Friendship, error) {
	return s.listFriendships(ctx, bson.M{"user2_id": userID, "status": string(models.StatusPending)})
}

func (s *MongoStore) listFriendships(ctx context.Context, filter bson.M) ([]*models.Friendship, error) {
	cur, err := s.friendships.Find(ctx, filter)
	if err != nil {
		return nil, err
	}

	var out []*models.Friendship
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MongoStore) UpdateFriendshipStatus(ctx context.Context, friendshipID string, status models.FriendshipStatus) error {
	set := bson.M{"status": string(status)}
	if status == models.StatusAccepted {
		set["accepted_at"] = time.Now().UTC()
	}

	res, err := s.friendships.UpdateOne(ctx, bson.M{"_id": friendshipID}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
