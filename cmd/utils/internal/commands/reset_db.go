package commands

import (
	"context"
	"fmt"

	"github.com/appetiteclub/apt"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ResetDB drops the whole database - USE WITH CAUTION
func ResetDB(ctx context.Context, config *apt.Config, logger apt.Logger) error {
	logger.Infof("⚠️  DANGER: This will drop the entire database!")
	logger.Infof("⚠️  This action cannot be undone!")

	client, dbName, err := connect(ctx, config)
	if err != nil {
		return err
	}
	defer client.Disconnect(ctx)

	logger.Info("Connected to MongoDB")

	logger.Info("Dropping database", "database", dbName)
	result := client.Database(dbName).RunCommand(ctx, bson.D{{Key: "dropDatabase", Value: 1}})
	if result.Err() != nil {
		return fmt.Errorf("drop database %s: %w", dbName, result.Err())
	}

	logger.Info("Database dropped", "database", dbName)
	return nil
}

func connect(ctx context.Context, config *apt.Config) (*mongo.Client, string, error) {
	mongoURL, _ := config.GetString("mongo.url")
	if mongoURL == "" {
		mongoURL = "mongodb://localhost:27017"
	}

	dbName, _ := config.GetString("mongo.name")
	if dbName == "" {
		dbName = "mensa"
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURL))
	if err != nil {
		return nil, "", fmt.Errorf("connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, "", fmt.Errorf("ping mongodb: %w", err)
	}

	return client, dbName, nil
}
