// Package mongo implements the repositories on a MongoDB database. Every conditional write
// is a single FindOneAndUpdate whose filter carries the precondition.
package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/fastygo/dailyquest/repository"
)

type Store struct {
	db *mongo.Database
}

func New(db *mongo.Database) *Store {
	return &Store{db: db}
}

func (s *Store) Users() repository.UserRepository {
	return &userRepository{coll: s.db.Collection(usersCollection)}
}

func (s *Store) Quests() repository.QuestRepository {
	return &questRepository{coll: s.db.Collection(questsCollection)}
}

func (s *Store) Attempts() repository.AttemptRepository {
	return &attemptRepository{coll: s.db.Collection(attemptsCollection)}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, readpref.Primary())
}

// EnsureIndexes creates the indexes the conditional writes rely on, including the
// allocation slot key that caps concurrent top-ups.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	attempts := s.db.Collection(attemptsCollection)
	_, err := attempts.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "allocation_day", Value: 1}, {Key: "slot", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("user_slot_unique"),
		},
		{
			Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "start_date", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "status", Value: 1}, {Key: "updated_at", Value: -1}},
		},
	})
	if err != nil {
		return err
	}

	_, err = s.db.Collection(questsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "is_active", Value: 1}},
	})
	return err
}

func afterUpdate() *options.FindOneAndUpdateOptions {
	return options.FindOneAndUpdate().SetReturnDocument(options.After)
}

func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}
