package mongo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mensaclub/mensa/internal/lunch"
)

type UserRepo struct {
	collection *mongo.Collection
}

func NewUserRepo(db *mongo.Database) *UserRepo {
	return &UserRepo{
		collection: db.Collection("users"),
	}
}

func (r *UserRepo) EnsureIndexes(ctx context.Context) error {
	usernameIndex := mongo.IndexModel{
		Keys: bson.D{{Key: "username", Value: 1}},
		Options: options.Index().
			SetUnique(true).
			SetPartialFilterExpression(bson.M{"deleted": false}),
	}
	if _, err := r.collection.Indexes().CreateOne(ctx, usernameIndex); err != nil {
		return fmt.Errorf("cannot create username index: %w", err)
	}
	return nil
}

func (r *UserRepo) Create(ctx context.Context, user *lunch.User) error {
	if user == nil {
		return fmt.Errorf("user is nil")
	}

	user.EnsureID()

	if _, err := r.collection.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("user %s already exists", user.Username)
		}
		return fmt.Errorf("cannot create user: %w", err)
	}
	return nil
}

func (r *UserRepo) Get(ctx context.Context, id uuid.UUID) (*lunch.User, error) {
	var user lunch.User
	err := r.collection.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("cannot get user: %w", err)
	}
	return &user, nil
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*lunch.User, error) {
	filter := bson.M{"username": strings.ToLower(username), "deleted": false}

	var user lunch.User
	err := r.collection.FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("cannot get user by username: %w", err)
	}
	return &user, nil
}

func (r *UserRepo) List(ctx context.Context) ([]*lunch.User, error) {
	opts := options.Find().SetSort(bson.D{{Key: "username", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"deleted": false}, opts)
	if err != nil {
		return nil, fmt.Errorf("cannot list users: %w", err)
	}
	defer cursor.Close(ctx)

	var result []*lunch.User
	if err := cursor.All(ctx, &result); err != nil {
		return nil, fmt.Errorf("cannot decode users: %w", err)
	}
	return result, nil
}

func (r *UserRepo) Save(ctx context.Context, user *lunch.User) error {
	if user == nil {
		return fmt.Errorf("user is nil")
	}

	filter := bson.M{"_id": user.ID.String()}
	result, err := r.collection.ReplaceOne(ctx, filter, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("user %s already exists", user.Username)
		}
		return fmt.Errorf("cannot save user: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("user not found")
	}
	return nil
}

func (r *UserRepo) Delete(ctx context.Context, id uuid.UUID) error {
	filter := bson.M{"_id": id.String()}
	update := bson.M{"$set": bson.M{"deleted": true, "updated_at": time.Now().UTC()}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("cannot delete user: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("user not found")
	}
	return nil
}
