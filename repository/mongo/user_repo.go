package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fastygo/dailyquest/domain"
	"github.com/fastygo/dailyquest/repository"
)

const settledLedgerSize = 500

type userRepository struct {
	coll *mongo.Collection
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	var doc userDocument
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if isNoDocuments(err) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return doc.toDomain(), nil
}

func (r *userRepository) Ensure(ctx context.Context, user *domain.User) error {
	if user == nil || user.ID == "" {
		return domain.ErrInvalidPayload
	}
	now := time.Now().UTC()
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": user.ID},
		bson.M{"$setOnInsert": bson.M{
			"username":          user.Username,
			"points":            0,
			"successful_quests": 0,
			"failed_quests":     0,
			"daily_validations": 0,
			"created_at":        now,
			"updated_at":        now,
		}},
		options.Update().SetUpsert(true),
	)
	if err != nil || user.Username == "" {
		return err
	}
	// an existing user without a username adopts the first one seen
	_, err = r.coll.UpdateOne(ctx,
		bson.M{"_id": user.ID, "username": ""},
		bson.M{"$set": bson.M{"username": user.Username}},
	)
	return err
}

func (r *userRepository) IncrementFailed(ctx context.Context, id string, n int) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$inc": bson.M{"failed_quests": n},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// Settle keeps the ledger of credited attempts on the user document itself, so the credit and
// the ledger entry land in one single-document write. Only the most recent entries are kept;
// an attempt is marked settled right after its credit, long before it could age out.
func (r *userRepository) Settle(ctx context.Context, id, attemptID string, points int) (int, error) {
	filter := bson.M{"_id": id, "settled_attempts": bson.M{"$ne": attemptID}}
	update := bson.M{
		"$inc": bson.M{"points": points, "successful_quests": 1},
		"$push": bson.M{"settled_attempts": bson.M{
			"$each":  bson.A{attemptID},
			"$slice": -settledLedgerSize,
		}},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	}

	var doc userDocument
	if err := r.coll.FindOneAndUpdate(ctx, filter, update, afterUpdate()).Decode(&doc); err != nil {
		if isNoDocuments(err) {
			return 0, r.missingOrSpent(ctx, id)
		}
		return 0, err
	}
	return doc.Points, nil
}

// ClaimVote runs as an update pipeline: the first stage rolls or increments the counter, the
// second credits the bonus against the counter the first stage produced.
func (r *userRepository) ClaimVote(ctx context.Context, id string, day domain.Day, now time.Time, limit, bonus int) (domain.VoteGrant, error) {
	filter := bson.M{
		"_id": id,
		"$or": bson.A{
			bson.M{"last_validation_date": nil},
			bson.M{"last_validation_date": bson.M{"$lt": day.Start}},
			bson.M{"last_validation_date": bson.M{"$gte": day.End}},
			bson.M{"daily_validations": bson.M{"$lt": limit}},
		},
	}
	sameDay := bson.M{"$and": bson.A{
		bson.M{"$gte": bson.A{"$last_validation_date", day.Start}},
		bson.M{"$lt": bson.A{"$last_validation_date", day.End}},
	}}
	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"daily_validations": bson.M{"$cond": bson.A{sameDay, bson.M{"$add": bson.A{"$daily_validations", 1}}, 1}},
		}}},
		{{Key: "$set", Value: bson.M{
			"points": bson.M{"$add": bson.A{
				"$points",
				bson.M{"$cond": bson.A{bson.M{"$eq": bson.A{"$daily_validations", limit}}, bonus, 0}},
			}},
			"last_validation_date": now,
			"updated_at":           now,
		}}},
	}

	var doc userDocument
	var grant domain.VoteGrant
	if err := r.coll.FindOneAndUpdate(ctx, filter, pipeline, afterUpdate()).Decode(&doc); err != nil {
		if isNoDocuments(err) {
			return grant, r.missingOrSpent(ctx, id)
		}
		return grant, err
	}
	grant.DailyCount = doc.DailyValidations
	grant.Points = doc.Points
	grant.Bonus = grant.DailyCount == limit && bonus > 0
	return grant, nil
}

func (r *userRepository) RefundVote(ctx context.Context, id string, day domain.Day, grant domain.VoteGrant, bonus int) error {
	refund := 0
	if grant.Bonus {
		refund = bonus
	}
	filter := bson.M{
		"_id":                  id,
		"last_validation_date": bson.M{"$gte": day.Start, "$lt": day.End},
		"daily_validations":    bson.M{"$gt": 0},
	}
	update := bson.M{
		"$inc": bson.M{"daily_validations": -1, "points": -refund},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	}
	return r.updateOne(ctx, id, filter, update)
}

func (r *userRepository) ClaimSwap(ctx context.Context, id string, day domain.Day, now time.Time) error {
	filter := bson.M{
		"_id": id,
		"$or": bson.A{
			bson.M{"last_swap_date": nil},
			bson.M{"last_swap_date": bson.M{"$lt": day.Start}},
			bson.M{"last_swap_date": bson.M{"$gte": day.End}},
		},
	}
	update := bson.M{"$set": bson.M{"last_swap_date": now, "updated_at": now}}
	return r.updateOne(ctx, id, filter, update)
}

func (r *userRepository) ReleaseSwap(ctx context.Context, id string, day domain.Day) error {
	filter := bson.M{
		"_id":            id,
		"last_swap_date": bson.M{"$gte": day.Start, "$lt": day.End},
	}
	update := bson.M{
		"$unset": bson.M{"last_swap_date": ""},
		"$set":   bson.M{"updated_at": time.Now().UTC()},
	}
	return r.updateOne(ctx, id, filter, update)
}

func (r *userRepository) updateOne(ctx context.Context, id string, filter, update interface{}) error {
	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return r.missingOrSpent(ctx, id)
	}
	return nil
}

func (r *userRepository) missingOrSpent(ctx context.Context, id string) error {
	count, err := r.coll.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return err
	}
	if count == 0 {
		return domain.ErrUserNotFound
	}
	return repository.ErrPreconditionFailed
}
