package commands

import (
	"context"
	"fmt"

	"github.com/appetiteclub/apt"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ClearDemo removes menus and orders plus the demo seed tracker entries, so
// demo seeding can run again. Tables and users are kept.
func ClearDemo(ctx context.Context, config *apt.Config, logger apt.Logger) error {
	logger.Info("Starting demo data cleanup...")

	client, dbName, err := connect(ctx, config)
	if err != nil {
		return err
	}
	defer client.Disconnect(ctx)

	logger.Info("Connected to MongoDB")

	db := client.Database(dbName)

	if err := clearCollection(ctx, db, "orders", logger); err != nil {
		return err
	}
	if err := clearCollection(ctx, db, "menus", logger); err != nil {
		return err
	}

	// Drop the demo seed records so the next boot re-seeds the menu.
	seeds := db.Collection("seeds")
	result, err := seeds.DeleteMany(ctx, bson.M{"seed_id": primitive.Regex{Pattern: "^demo_", Options: ""}})
	if err != nil {
		return fmt.Errorf("delete demo seed records: %w", err)
	}
	logger.Info("Deleted demo seed records", "count", result.DeletedCount)

	return nil
}

func clearCollection(ctx context.Context, db *mongo.Database, name string, logger apt.Logger) error {
	result, err := db.Collection(name).DeleteMany(ctx, bson.M{})
	if err != nil {
		return fmt.Errorf("clear %s: %w", name, err)
	}
	logger.Info("Cleared collection", "collection", name, "count", result.DeletedCount)
	return nil
}
