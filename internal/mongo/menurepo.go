package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mensaclub/mensa/internal/lunch"
)

// MenuRepo implements the lunch.MenuRepo interface using MongoDB. It owns
// the client connection; the other repositories share its database handle.
type MenuRepo struct {
	client     *mongo.Client
	db         *mongo.Database
	collection *mongo.Collection
	logger     apt.Logger
	config     *apt.Config
}

func NewMenuRepo(config *apt.Config, logger apt.Logger) *MenuRepo {
	return &MenuRepo{
		logger: logger,
		config: config,
	}
}

// Start initializes the MongoDB connection
func (r *MenuRepo) Start(ctx context.Context) error {
	mongoURL, _ := r.config.GetString("db.mongo.url")
	if mongoURL == "" {
		mongoURL = "mongodb://localhost:27017"
	}

	dbName, _ := r.config.GetString("db.mongo.name")
	if dbName == "" {
		dbName = "mensa"
	}

	clientOptions := options.Client().ApplyURI(mongoURL).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return fmt.Errorf("cannot connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("cannot ping MongoDB: %w", err)
	}

	r.client = client
	r.db = client.Database(dbName)
	r.collection = r.db.Collection("menus")

	// One live menu per calendar day.
	dayIndex := mongo.IndexModel{
		Keys: bson.D{{Key: "day", Value: 1}},
		Options: options.Index().
			SetUnique(true).
			SetPartialFilterExpression(bson.M{"enabled": true, "deleted": false}),
	}
	if _, err := r.collection.Indexes().CreateOne(ctx, dayIndex); err != nil {
		return fmt.Errorf("cannot create day index: %w", err)
	}

	r.logger.Infof("Connected to MongoDB: %s, database: %s, collection: menus", mongoURL, dbName)
	return nil
}

// Stop closes the MongoDB connection
func (r *MenuRepo) Stop(ctx context.Context) error {
	if r.client != nil {
		if err := r.client.Disconnect(ctx); err != nil {
			return fmt.Errorf("cannot disconnect from MongoDB: %w", err)
		}
		r.logger.Info("Disconnected from MongoDB")
	}
	return nil
}

// GetDatabase returns the MongoDB database instance
func (r *MenuRepo) GetDatabase() *mongo.Database {
	return r.db
}

func (r *MenuRepo) Create(ctx context.Context, menu *lunch.DailyMenu) error {
	if menu == nil {
		return fmt.Errorf("menu is nil")
	}

	menu.EnsureID()

	if _, err := r.collection.InsertOne(ctx, menu); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("a menu for day %s already exists", menu.Day.Format("2006-01-02"))
		}
		return fmt.Errorf("cannot create menu: %w", err)
	}
	return nil
}

func (r *MenuRepo) Get(ctx context.Context, id uuid.UUID) (*lunch.DailyMenu, error) {
	var menu lunch.DailyMenu
	err := r.collection.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&menu)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("cannot get menu: %w", err)
	}
	return &menu, nil
}

func (r *MenuRepo) GetByDay(ctx context.Context, day time.Time) (*lunch.DailyMenu, error) {
	filter := bson.M{
		"day":     lunch.TruncateDay(day),
		"enabled": true,
		"deleted": false,
	}

	var menu lunch.DailyMenu
	err := r.collection.FindOne(ctx, filter).Decode(&menu)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("cannot get menu by day: %w", err)
	}
	return &menu, nil
}

func (r *MenuRepo) List(ctx context.Context) ([]*lunch.DailyMenu, error) {
	opts := options.Find().SetSort(bson.D{{Key: "day", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{"deleted": false}, opts)
	if err != nil {
		return nil, fmt.Errorf("cannot list menus: %w", err)
	}
	defer cursor.Close(ctx)

	var result []*lunch.DailyMenu
	if err := cursor.All(ctx, &result); err != nil {
		return nil, fmt.Errorf("cannot decode menus: %w", err)
	}
	return result, nil
}

func (r *MenuRepo) Save(ctx context.Context, menu *lunch.DailyMenu) error {
	if menu == nil {
		return fmt.Errorf("menu is nil")
	}

	filter := bson.M{"_id": menu.ID.String()}
	result, err := r.collection.ReplaceOne(ctx, filter, menu)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("a menu for day %s already exists", menu.Day.Format("2006-01-02"))
		}
		return fmt.Errorf("cannot save menu: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("menu not found")
	}
	return nil
}

func (r *MenuRepo) Delete(ctx context.Context, id uuid.UUID) error {
	filter := bson.M{"_id": id.String()}
	update := bson.M{"$set": bson.M{"deleted": true, "updated_at": time.Now().UTC()}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("cannot delete menu: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("menu not found")
	}
	return nil
}
