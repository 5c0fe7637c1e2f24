package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mensaclub/mensa/internal/lunch"
)

type OrderRepo struct {
	collection *mongo.Collection
}

func NewOrderRepo(db *mongo.Database) *OrderRepo {
	return &OrderRepo{
		collection: db.Collection("orders"),
	}
}

// EnsureIndexes creates the indexes the order collection relies on. The
// partial unique index on (owner, menu) backstops the one-order-per-user
// rule against concurrent inserts.
func (r *OrderRepo) EnsureIndexes(ctx context.Context) error {
	ownerMenuIndex := mongo.IndexModel{
		Keys: bson.D{
			{Key: "owner", Value: 1},
			{Key: "menu", Value: 1},
		},
		Options: options.Index().
			SetUnique(true).
			SetPartialFilterExpression(bson.M{"deleted": false}),
	}
	if _, err := r.collection.Indexes().CreateOne(ctx, ownerMenuIndex); err != nil {
		return fmt.Errorf("cannot create owner/menu index: %w", err)
	}

	tableIndex := mongo.IndexModel{
		Keys: bson.D{
			{Key: "menu", Value: 1},
			{Key: "table", Value: 1},
		},
	}
	if _, err := r.collection.Indexes().CreateOne(ctx, tableIndex); err != nil {
		return fmt.Errorf("cannot create menu/table index: %w", err)
	}
	return nil
}

func (r *OrderRepo) Create(ctx context.Context, order *lunch.Order) error {
	if order == nil {
		return fmt.Errorf("order is nil")
	}

	order.EnsureID()

	if _, err := r.collection.InsertOne(ctx, order); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("owner already has an order for this menu")
		}
		return fmt.Errorf("cannot create order: %w", err)
	}
	return nil
}

func (r *OrderRepo) Get(ctx context.Context, id uuid.UUID) (*lunch.Order, error) {
	var order lunch.Order
	err := r.collection.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&order)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("cannot get order: %w", err)
	}
	return &order, nil
}

func (r *OrderRepo) List(ctx context.Context) ([]*lunch.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{"deleted": false}, opts)
	if err != nil {
		return nil, fmt.Errorf("cannot list orders: %w", err)
	}
	defer cursor.Close(ctx)

	var result []*lunch.Order
	if err := cursor.All(ctx, &result); err != nil {
		return nil, fmt.Errorf("cannot decode orders: %w", err)
	}
	return result, nil
}

func (r *OrderRepo) ListActiveByMenu(ctx context.Context, menuID uuid.UUID) ([]*lunch.Order, error) {
	filter := bson.M{"menu": menuID.String(), "deleted": false}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("cannot list orders by menu: %w", err)
	}
	defer cursor.Close(ctx)

	var result []*lunch.Order
	if err := cursor.All(ctx, &result); err != nil {
		return nil, fmt.Errorf("cannot decode orders: %w", err)
	}
	return result, nil
}

func (r *OrderRepo) GetActiveByOwner(ctx context.Context, ownerID, menuID uuid.UUID) (*lunch.Order, error) {
	filter := bson.M{
		"owner":   ownerID.String(),
		"menu":    menuID.String(),
		"deleted": false,
	}

	var order lunch.Order
	err := r.collection.FindOne(ctx, filter).Decode(&order)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("cannot get order by owner: %w", err)
	}
	return &order, nil
}

func (r *OrderRepo) CountActive(ctx context.Context, menuID, tableID uuid.UUID, exclude *uuid.UUID) (int, error) {
	filter := bson.M{
		"menu":    menuID.String(),
		"table":   tableID.String(),
		"deleted": false,
	}
	if exclude != nil {
		filter["_id"] = bson.M{"$ne": exclude.String()}
	}

	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("cannot count orders: %w", err)
	}
	return int(count), nil
}

func (r *OrderRepo) Save(ctx context.Context, order *lunch.Order) error {
	if order == nil {
		return fmt.Errorf("order is nil")
	}

	filter := bson.M{"_id": order.ID.String()}
	result, err := r.collection.ReplaceOne(ctx, filter, order)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("owner already has an order for this menu")
		}
		return fmt.Errorf("cannot save order: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("order not found")
	}
	return nil
}

func (r *OrderRepo) Delete(ctx context.Context, id uuid.UUID) error {
	filter := bson.M{"_id": id.String()}
	update := bson.M{"$set": bson.M{"deleted": true, "updated_at": time.Now().UTC()}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("cannot delete order: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("order not found")
	}
	return nil
}
