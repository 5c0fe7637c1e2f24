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

type TableRepo struct {
	collection *mongo.Collection
}

func NewTableRepo(db *mongo.Database) *TableRepo {
	return &TableRepo{
		collection: db.Collection("tables"),
	}
}

func (r *TableRepo) EnsureIndexes(ctx context.Context) error {
	nameIndex := mongo.IndexModel{
		Keys: bson.D{{Key: "name", Value: 1}},
		Options: options.Index().
			SetUnique(true).
			SetPartialFilterExpression(bson.M{"deleted": false}),
	}
	if _, err := r.collection.Indexes().CreateOne(ctx, nameIndex); err != nil {
		return fmt.Errorf("cannot create name index: %w", err)
	}
	return nil
}

func (r *TableRepo) Create(ctx context.Context, table *lunch.Table) error {
	if table == nil {
		return fmt.Errorf("table is nil")
	}

	table.EnsureID()

	if _, err := r.collection.InsertOne(ctx, table); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("table %s already exists", table.Name)
		}
		return fmt.Errorf("cannot create table: %w", err)
	}
	return nil
}

func (r *TableRepo) Get(ctx context.Context, id uuid.UUID) (*lunch.Table, error) {
	var table lunch.Table
	err := r.collection.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&table)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("cannot get table: %w", err)
	}
	return &table, nil
}

func (r *TableRepo) GetByName(ctx context.Context, name string) (*lunch.Table, error) {
	filter := bson.M{"name": name, "deleted": false}

	var table lunch.Table
	err := r.collection.FindOne(ctx, filter).Decode(&table)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("cannot get table by name: %w", err)
	}
	return &table, nil
}

func (r *TableRepo) List(ctx context.Context) ([]*lunch.Table, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"deleted": false}, opts)
	if err != nil {
		return nil, fmt.Errorf("cannot list tables: %w", err)
	}
	defer cursor.Close(ctx)

	var result []*lunch.Table
	if err := cursor.All(ctx, &result); err != nil {
		return nil, fmt.Errorf("cannot decode tables: %w", err)
	}
	return result, nil
}

func (r *TableRepo) Save(ctx context.Context, table *lunch.Table) error {
	if table == nil {
		return fmt.Errorf("table is nil")
	}

	filter := bson.M{"_id": table.ID.String()}
	result, err := r.collection.ReplaceOne(ctx, filter, table)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("table %s already exists", table.Name)
		}
		return fmt.Errorf("cannot save table: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("table not found")
	}
	return nil
}

func (r *TableRepo) Delete(ctx context.Context, id uuid.UUID) error {
	filter := bson.M{"_id": id.String()}
	update := bson.M{"$set": bson.M{"deleted": true, "updated_at": time.Now().UTC()}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("cannot delete table: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("table not found")
	}
	return nil
}
