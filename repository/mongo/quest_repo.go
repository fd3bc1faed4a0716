package mongo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fastygo/dailyquest/domain"
)

type questRepository struct {
	coll *mongo.Collection
}

func (r *questRepository) GetByID(ctx context.Context, id string) (*domain.Quest, error) {
	var doc questDocument
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if isNoDocuments(err) {
			return nil, domain.ErrQuestNotFound
		}
		return nil, err
	}
	quest := doc.toDomain()
	return &quest, nil
}

func (r *questRepository) ListActive(ctx context.Context) ([]domain.Quest, error) {
	cur, err := r.coll.Find(ctx, bson.M{"is_active": true},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	return decodeQuests(ctx, cur)
}

// Sample relies on the server-side $sample stage for uniform selection.
func (r *questRepository) Sample(ctx context.Context, n int, excluding []string) ([]domain.Quest, error) {
	if n <= 0 {
		return nil, nil
	}
	if excluding == nil {
		excluding = []string{}
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"is_active": true, "_id": bson.M{"$nin": excluding}}}},
		{{Key: "$sample", Value: bson.M{"size": n}}},
	}
	cur, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	return decodeQuests(ctx, cur)
}

func (r *questRepository) Create(ctx context.Context, quest *domain.Quest) error {
	if err := quest.Validate(); err != nil {
		return err
	}
	if quest.ID == "" {
		quest.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if quest.CreatedAt.IsZero() {
		quest.CreatedAt = now
	}
	quest.UpdatedAt = now

	_, err := r.coll.ReplaceOne(ctx, bson.M{"_id": quest.ID}, newQuestDocument(quest),
		options.Replace().SetUpsert(true))
	return err
}

func decodeQuests(ctx context.Context, cur *mongo.Cursor) ([]domain.Quest, error) {
	defer cur.Close(ctx)
	var quests []domain.Quest
	for cur.Next(ctx) {
		var doc questDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		quests = append(quests, doc.toDomain())
	}
	return quests, cur.Err()
}
