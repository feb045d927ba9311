package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	slotserrors "slotify/internal/slots/errors"
	"slotify/internal/slots/timewindow"
	"slotify/pkg/config"
	"slotify/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Server error codes reported for unique index violations.
var duplicateKeyCodes = map[int]bool{11000: true, 11001: true, 12582: true}

type mongoSlotRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
	users      *mongo.Collection
}

func NewMongoSlotRepository(cfg *config.Config) SlotRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoSlotRepository{
		cfg:        cfg,
		db:         db,
		collection: db.Collection(CollectionName),
		users:      db.Collection(UsersCollectionName),
	}
}

func (r *mongoSlotRepository) InsertNew(ctx context.Context, candidates []model.Slot) (int, int, error) {
	if len(candidates) == 0 {
		return 0, 0, nil
	}

	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	taken, err := r.takenStarts(ctx, candidates)
	if err != nil {
		return 0, 0, err
	}

	fresh := remainingCandidates(candidates, taken)
	if len(fresh) == 0 {
		return 0, len(candidates), slotserrors.ErrAllDuplicate
	}

	ts := now()
	docs := make([]any, 0, len(fresh))
	for _, c := range fresh {
		c.ID = ""
		c.IsBooked = false
		c.BookedBy = nil
		c.CreatedAt = ts
		c.UpdatedAt = ts
		docs = append(docs, c)
	}

	_, err = r.collection.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	duplicates, err := countDuplicates(err)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to insert slots: %w", err)
	}

	inserted := len(fresh) - duplicates
	skipped := len(candidates) - inserted
	if inserted == 0 {
		return 0, skipped, slotserrors.ErrDuplicate
	}
	return inserted, skipped, nil
}

func (r *mongoSlotRepository) takenStarts(ctx context.Context, candidates []model.Slot) (map[dateStart]bool, error) {
	byDate := make(map[string][]string)
	for _, c := range candidates {
		byDate[c.Date] = append(byDate[c.Date], c.StartTime)
	}

	or := make(bson.A, 0, len(byDate))
	for date, starts := range byDate {
		or = append(or, bson.M{"date": date, "startTime": bson.M{"$in": starts}})
	}

	opts := options.Find().SetProjection(bson.M{"date": 1, "startTime": 1})
	cursor, err := r.collection.Find(ctx, bson.M{"$or": or}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find existing slots: %w", err)
	}
	defer cursor.Close(ctx)

	var existing []struct {
		Date      string `bson:"date"`
		StartTime string `bson:"startTime"`
	}
	if err := cursor.All(ctx, &existing); err != nil {
		return nil, fmt.Errorf("failed to decode existing slots: %w", err)
	}

	taken := make(map[dateStart]bool, len(existing))
	for _, e := range existing {
		taken[dateStart{date: e.Date, start: e.StartTime}] = true
	}
	return taken, nil
}

// countDuplicates reports how many writes the unique index rejected. Any
// other write failure is returned as is.
func countDuplicates(err error) (int, error) {
	if err == nil {
		return 0, nil
	}

	var bwe mongo.BulkWriteException
	if !errors.As(err, &bwe) {
		return 0, err
	}
	if bwe.WriteConcernError != nil {
		return 0, err
	}

	duplicates := 0
	for _, we := range bwe.WriteErrors {
		if !duplicateKeyCodes[we.Code] {
			return 0, err
		}
		duplicates++
	}
	return duplicates, nil
}

func (r *mongoSlotRepository) FindByID(ctx context.Context, id string) (*model.Slot, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, slotserrors.ErrNotFound
	}

	var slot model.Slot
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&slot)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, slotserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find slot: %w", err)
	}

	return &slot, nil
}

func (r *mongoSlotRepository) FindAvailable(ctx context.Context, date string) ([]*model.Slot, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{"date": date, "isBooked": false}
	opts := options.Find().SetSort(bson.D{{Key: "startTime", Value: 1}})

	return r.find(ctx, filter, opts)
}

func (r *mongoSlotRepository) FindBookedByUser(ctx context.Context, userID string) ([]*model.Slot, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{"isBooked": true, "bookedBy": userID}
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}, {Key: "startTime", Value: 1}})

	return r.find(ctx, filter, opts)
}

func (r *mongoSlotRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*model.Slot, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find slots: %w", err)
	}
	defer cursor.Close(ctx)

	slots := []*model.Slot{}
	if err = cursor.All(ctx, &slots); err != nil {
		return nil, fmt.Errorf("failed to decode slots: %w", err)
	}

	return slots, nil
}

func (r *mongoSlotRepository) FindAllBooked(ctx context.Context, date string) ([]*model.BookedSlot, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{"isBooked": true}
	if date != "" {
		filter["date"] = date
	}
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}, {Key: "startTime", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find booked slots: %w", err)
	}
	defer cursor.Close(ctx)

	booked := []*model.BookedSlot{}
	if err = cursor.All(ctx, &booked); err != nil {
		return nil, fmt.Errorf("failed to decode booked slots: %w", err)
	}

	if err := r.attachUsers(ctx, booked); err != nil {
		return nil, err
	}
	return booked, nil
}

// attachUsers reads owner identities from the users collection. Owners are
// matched by ObjectID when the stored id is a hex ObjectID, else verbatim.
func (r *mongoSlotRepository) attachUsers(ctx context.Context, booked []*model.BookedSlot) error {
	seen := make(map[string]bool)
	ids := bson.A{}
	for _, b := range booked {
		if b.BookedBy == nil || seen[*b.BookedBy] {
			continue
		}
		seen[*b.BookedBy] = true
		if oid, err := primitive.ObjectIDFromHex(*b.BookedBy); err == nil {
			ids = append(ids, oid)
		}
		ids = append(ids, *b.BookedBy)
	}
	if len(ids) == 0 {
		return nil
	}

	opts := options.Find().SetProjection(bson.M{"name": 1, "email": 1})
	cursor, err := r.users.Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, opts)
	if err != nil {
		return fmt.Errorf("failed to find slot owners: %w", err)
	}
	defer cursor.Close(ctx)

	var users []model.UserSummary
	if err := cursor.All(ctx, &users); err != nil {
		return fmt.Errorf("failed to decode slot owners: %w", err)
	}

	byID := make(map[string]*model.UserSummary, len(users))
	for i := range users {
		byID[users[i].ID] = &users[i]
	}
	for _, b := range booked {
		if b.BookedBy != nil {
			b.User = byID[*b.BookedBy]
		}
	}
	return nil
}

func (r *mongoSlotRepository) DeleteUnbooked(ctx context.Context, id string) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return slotserrors.ErrNotFound
	}

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": objectID, "isBooked": false})
	if err != nil {
		return fmt.Errorf("failed to delete slot: %w", err)
	}
	if result.DeletedCount == 1 {
		return nil
	}

	count, err := r.collection.CountDocuments(ctx, bson.M{"_id": objectID})
	if err != nil {
		return fmt.Errorf("failed to check slot existence: %w", err)
	}
	if count > 0 {
		return slotserrors.ErrAlreadyBooked
	}
	return slotserrors.ErrNotFound
}

func (r *mongoSlotRepository) ConditionalReserve(ctx context.Context, id string, userID string, notBefore time.Time) (*model.Slot, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, slotserrors.ErrConflict
	}

	filter := bson.M{"_id": objectID, "isBooked": false}
	if !notBefore.IsZero() {
		date, clock := timewindow.SplitCeil(notBefore)
		filter["$or"] = bson.A{
			bson.M{"date": bson.M{"$gt": date}},
			bson.M{"date": date, "startTime": bson.M{"$gte": clock}},
		}
	}
	update := bson.M{"$set": bson.M{
		"isBooked":  true,
		"bookedBy":  userID,
		"updatedAt": now(),
	}}

	return r.findOneAndUpdate(ctx, filter, update)
}

func (r *mongoSlotRepository) ConditionalRelease(ctx context.Context, id string, userID string) (*model.Slot, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, slotserrors.ErrConflict
	}

	filter := bson.M{"_id": objectID, "isBooked": true, "bookedBy": userID}
	update := bson.M{"$set": bson.M{
		"isBooked":  false,
		"bookedBy":  nil,
		"updatedAt": now(),
	}}

	return r.findOneAndUpdate(ctx, filter, update)
}

func (r *mongoSlotRepository) findOneAndUpdate(ctx context.Context, filter, update bson.M) (*model.Slot, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var slot model.Slot
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&slot)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, slotserrors.ErrConflict
		}
		return nil, fmt.Errorf("failed to update slot: %w", err)
	}
	return &slot, nil
}

func (r *mongoSlotRepository) Ping(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()
	return r.db.Client().Ping(ctx, readpref.Primary())
}
