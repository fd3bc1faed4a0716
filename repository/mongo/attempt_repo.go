package mongo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fastygo/dailyquest/domain"
	"github.com/fastygo/dailyquest/repository"
)

const maxPage = 100

type attemptRepository struct {
	coll *mongo.Collection
}

func (r *attemptRepository) GetByID(ctx context.Context, id string) (*domain.Attempt, error) {
	var doc attemptDocument
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if isNoDocuments(err) {
			return nil, domain.ErrAttemptNotFound
		}
		return nil, err
	}
	attempt := doc.toDomain()
	return &attempt, nil
}

func (r *attemptRepository) List(ctx context.Context, filter repository.AttemptFilter) ([]domain.Attempt, error) {
	query := bson.M{}
	if filter.UserID != "" {
		query["user_id"] = filter.UserID
	}
	if filter.Status != "" {
		query["status"] = string(filter.Status)
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(pageSize(filter.Limit)).
		SetSkip(int64(filter.Offset))
	return r.find(ctx, query, opts)
}

func (r *attemptRepository) ListStartedOn(ctx context.Context, userID string, day domain.Day) ([]domain.Attempt, error) {
	query := bson.M{
		"user_id":    userID,
		"start_date": bson.M{"$gte": day.Start, "$lt": day.End},
	}
	opts := options.Find().SetSort(bson.D{{Key: "slot", Value: 1}, {Key: "created_at", Value: 1}})
	return r.find(ctx, query, opts)
}

func (r *attemptRepository) ListValidatable(ctx context.Context, voterID string, limit int) ([]domain.Attempt, error) {
	query := bson.M{
		"status":       string(domain.StatusSubmitted),
		"user_id":      bson.M{"$ne": voterID},
		"validated_by": bson.M{"$ne": voterID},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "updated_at", Value: -1}}).
		SetLimit(pageSize(limit))
	return r.find(ctx, query, opts)
}

func (r *attemptRepository) ListSettlementBacklog(ctx context.Context, threshold, limit int) ([]domain.Attempt, error) {
	query := bson.M{"$or": bson.A{
		bson.M{"status": string(domain.StatusSubmitted), "validation_count": bson.M{"$gte": threshold}},
		bson.M{"status": string(domain.StatusValidated), "settled_at": nil},
	}}
	opts := options.Find().
		SetSort(bson.D{{Key: "updated_at", Value: 1}}).
		SetLimit(pageSize(limit))
	return r.find(ctx, query, opts)
}

func (r *attemptRepository) HasChangedOn(ctx context.Context, userID string, day domain.Day) (bool, error) {
	count, err := r.coll.CountDocuments(ctx, bson.M{
		"user_id":    userID,
		"changed":    true,
		"start_date": bson.M{"$gte": day.Start, "$lt": day.End},
	}, options.Count().SetLimit(1))
	return count > 0, err
}

func (r *attemptRepository) Create(ctx context.Context, attempt *domain.Attempt) error {
	if attempt == nil {
		return domain.ErrInvalidPayload
	}
	if attempt.ID == "" {
		attempt.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = now
	}
	if attempt.UpdatedAt.IsZero() {
		attempt.UpdatedAt = attempt.CreatedAt
	}
	if attempt.ValidatedBy == nil {
		attempt.ValidatedBy = []string{}
	}

	if _, err := r.coll.InsertOne(ctx, newAttemptDocument(attempt)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrDuplicateSlot
		}
		return err
	}
	return nil
}

func (r *attemptRepository) DeleteStale(ctx context.Context, id string, day domain.Day) (bool, error) {
	res, err := r.coll.DeleteOne(ctx, bson.M{
		"_id":    id,
		"status": bson.M{"$in": bson.A{string(domain.StatusInitial), string(domain.StatusInProgress)}},
		"$or": bson.A{
			bson.M{"start_date": bson.M{"$lt": day.Start}},
			bson.M{"start_date": bson.M{"$gte": day.End}},
		},
	})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

func (r *attemptRepository) MarkStarted(ctx context.Context, id, userID string, at time.Time) (*domain.Attempt, error) {
	filter := bson.M{"_id": id, "user_id": userID, "status": string(domain.StatusInitial)}
	update := bson.M{"$set": bson.M{
		"status":     string(domain.StatusInProgress),
		"start_date": at,
		"updated_at": at,
	}}
	return r.conditional(ctx, filter, update)
}

func (r *attemptRepository) MarkSubmitted(ctx context.Context, id, userID, proof string, at time.Time) (*domain.Attempt, error) {
	filter := bson.M{"_id": id, "user_id": userID, "status": string(domain.StatusInProgress)}
	update := bson.M{"$set": bson.M{
		"status":      string(domain.StatusSubmitted),
		"proof_image": proof,
		"end_date":    at,
		"updated_at":  at,
	}}
	return r.conditional(ctx, filter, update)
}

func (r *attemptRepository) ApplySwap(ctx context.Context, id, userID string, quest domain.Quest, at time.Time) (*domain.Attempt, error) {
	filter := bson.M{
		"_id":     id,
		"user_id": userID,
		"status":  string(domain.StatusInitial),
		"changed": bson.M{"$ne": true},
	}
	update := bson.M{"$set": bson.M{
		"quest_id":          quest.ID,
		"quest_title":       quest.Title,
		"quest_description": quest.Description,
		"quest_points":      quest.Points,
		"changed":           true,
		"updated_at":        at,
	}}
	return r.conditional(ctx, filter, update)
}

// AddValidation runs as an update pipeline so the promotion stage reads the count the first
// stage produced.
func (r *attemptRepository) AddValidation(ctx context.Context, id, voterID string, threshold int, at time.Time) (*domain.Attempt, error) {
	filter := bson.M{
		"_id":          id,
		"status":       string(domain.StatusSubmitted),
		"user_id":      bson.M{"$ne": voterID},
		"validated_by": bson.M{"$ne": voterID},
	}
	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"validated_by": bson.M{"$concatArrays": bson.A{
				bson.M{"$ifNull": bson.A{"$validated_by", bson.A{}}},
				bson.A{bson.M{"$literal": voterID}},
			}},
			"validation_count": bson.M{"$add": bson.A{"$validation_count", 1}},
			"updated_at":       at,
		}}},
		{{Key: "$set", Value: bson.M{
			"status": bson.M{"$cond": bson.A{
				bson.M{"$gte": bson.A{"$validation_count", threshold}},
				string(domain.StatusValidated),
				"$status",
			}},
		}}},
	}
	return r.conditional(ctx, filter, pipeline)
}

func (r *attemptRepository) MarkValidated(ctx context.Context, id string, threshold int, at time.Time) (*domain.Attempt, error) {
	filter := bson.M{
		"_id":              id,
		"status":           string(domain.StatusSubmitted),
		"validation_count": bson.M{"$gte": threshold},
	}
	update := bson.M{"$set": bson.M{"status": string(domain.StatusValidated), "updated_at": at}}
	return r.conditional(ctx, filter, update)
}

func (r *attemptRepository) MarkSettled(ctx context.Context, id string, at time.Time) (*domain.Attempt, error) {
	filter := bson.M{"_id": id, "status": string(domain.StatusValidated), "settled_at": nil}
	update := bson.M{"$set": bson.M{"settled_at": at, "updated_at": at}}
	return r.conditional(ctx, filter, update)
}

func (r *attemptRepository) conditional(ctx context.Context, filter, update interface{}) (*domain.Attempt, error) {
	var doc attemptDocument
	if err := r.coll.FindOneAndUpdate(ctx, filter, update, afterUpdate()).Decode(&doc); err != nil {
		if isNoDocuments(err) {
			return nil, repository.ErrPreconditionFailed
		}
		return nil, err
	}
	attempt := doc.toDomain()
	return &attempt, nil
}

func (r *attemptRepository) find(ctx context.Context, filter interface{}, opts *options.FindOptions) ([]domain.Attempt, error) {
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var attempts []domain.Attempt
	for cur.Next(ctx) {
		var doc attemptDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		attempts = append(attempts, doc.toDomain())
	}
	return attempts, cur.Err()
}

func pageSize(limit int) int64 {
	if limit <= 0 || limit > maxPage {
		return maxPage
	}
	return int64(limit)
}
