package mongo

import (
	"context"
	"fmt"

	"slotify/internal/migrations/mongo/validators"
	"slotify/internal/slots/repository"
	"slotify/pkg/logger"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	// The unique interval index is what makes concurrent slot creation
	// converge on one document per interval.
	SlotsIndexes = []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "date", Value: 1},
				{Key: "startTime", Value: 1},
				{Key: "endTime", Value: 1},
			},
			Options: options.Index().SetUnique(true).SetName("uniq_slot_interval"),
		},
		{
			Keys: bson.D{
				{Key: "date", Value: 1},
				{Key: "isBooked", Value: 1},
				{Key: "startTime", Value: 1},
			},
			Options: options.Index().SetName("available_by_date"),
		},
		{
			Keys: bson.D{
				{Key: "bookedBy", Value: 1},
				{Key: "date", Value: 1},
				{Key: "startTime", Value: 1},
			},
			Options: options.Index().
				SetName("bookings_by_user").
				SetPartialFilterExpression(bson.M{"isBooked": true}),
		},
	}
)

func RunMigration(ctx context.Context, client *mongo.Client, dbName string, log *logger.Logger) error {
	db := client.Database(dbName)
	log.Info("Running Mongo migrations", "database", dbName)

	collections := map[string]struct {
		Indexes   []mongo.IndexModel
		Validator bson.M
	}{
		repository.CollectionName: {
			Indexes:   SlotsIndexes,
			Validator: validators.SlotValidator,
		},
	}

	for name, def := range collections {
		if err := ensureCollection(ctx, db, name, def.Validator, log); err != nil {
			return fmt.Errorf("failed to ensure collection %s: %w", name, err)
		}
		if err := ensureIndexes(ctx, db, name, def.Indexes, log); err != nil {
			return fmt.Errorf("failed to ensure indexes for %s: %w", name, err)
		}
	}

	log.Info("All Mongo migrations applied")
	return nil
}

func ensureCollection(ctx context.Context, db *mongo.Database, name string, validator bson.M, log *logger.Logger) error {
	existing, err := db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return err
	}

	if len(existing) == 0 {
		log.Info("Creating collection", "collection", name)
		opts := options.CreateCollection().SetValidator(validator)
		if err := db.CreateCollection(ctx, name, opts); err != nil {
			return fmt.Errorf("failed creating %s: %w", name, err)
		}
		return nil
	}

	log.Info("Collection exists, updating validator", "collection", name)
	command := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
	}
	if err := db.RunCommand(ctx, command).Err(); err != nil {
		log.Warn("Failed updating validator", "collection", name, "error", err)
	}
	return nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database, name string, models []mongo.IndexModel, log *logger.Logger) error {
	coll := db.Collection(name)
	created, err := coll.Indexes().CreateMany(ctx, models)
	if err != nil {
		return err
	}
	log.Info("Ensured indexes", "collection", name, "indexes", created)
	return nil
}
