package mongostore

import (
	"context"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"touropedia/internal/shared/model"
	"touropedia/internal/shared/storage"
)

// ============================================================================
// TourStore
// ============================================================================

type tourStore struct {
	collection[model.Tour]
}

func (s *tourStore) GetTourBySlug(ctx context.Context, slug string) (*model.Tour, error) {
	return findOne[model.Tour](ctx, s.col, bson.D{{Key: "slug", Value: slug}})
}

// slugPattern 匹配 base 以及 base-N
func slugPattern(base string) string {
	return "^" + regexp.QuoteMeta(base) + "(-[0-9]+)?$"
}

func (s *tourStore) CountSlugMatches(ctx context.Context, base string) (int64, error) {
	n, err := s.col.CountDocuments(ctx, bson.D{
		{Key: "slug", Value: bson.D{{Key: "$regex", Value: slugPattern(base)}, {Key: "$options", Value: "i"}}},
	})
	return n, wrapError(err)
}

func (s *tourStore) SearchTours(ctx context.Context, q string, limit int) ([]*model.Tour, error) {
	filter := bson.D{{Key: "$text", Value: bson.D{{Key: "$search", Value: q}}}}
	scoreMeta := bson.D{{Key: "$meta", Value: "textScore"}}
	opts := options.Find().
		SetProjection(bson.D{{Key: "score", Value: scoreMeta}}).
		SetSort(bson.D{{Key: "score", Value: scoreMeta}}).
		SetLimit(int64(limit))
	return findMany[model.Tour](ctx, s.col, filter, opts)
}

func (s *tourStore) SearchToursByTitle(ctx context.Context, title string) ([]*model.Tour, error) {
	filter := bson.D{{Key: "title", Value: bson.D{
		{Key: "$regex", Value: regexp.QuoteMeta(title)},
		{Key: "$options", Value: "i"},
	}}}
	return findMany[model.Tour](ctx, s.col, filter)
}

// ToggleLike 原子切换点赞集合成员
//
// liked 为调用方读到的当前成员状态：已点赞则 $pull，否则 $addToSet。
// 两个并发切换最坏情况退化为重复加入/移除的空操作，不会丢失其他用户的点赞。
func (s *tourStore) ToggleLike(ctx context.Context, tourID, userID string, liked bool) (*model.Tour, error) {
	var update bson.D
	if liked {
		update = bson.D{{Key: "$pull", Value: bson.D{{Key: "likes", Value: userID}}}}
	} else {
		update = bson.D{{Key: "$addToSet", Value: bson.D{{Key: "likes", Value: userID}}}}
	}
	update = append(update, bson.E{Key: "$set", Value: bson.D{{Key: "updated_at", Value: time.Now()}}})

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated model.Tour
	err := s.col.FindOneAndUpdate(ctx, bson.D{{Key: "_id", Value: tourID}}, update, opts).Decode(&updated)
	if err != nil {
		return nil, wrapError(err)
	}
	return &updated, nil
}

func (s *tourStore) TagsList(ctx context.Context) ([]model.TagCount, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$unwind", Value: "$tags"}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$tags"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}}}},
	}
	return aggregate[model.TagCount](ctx, s.col, pipeline)
}

func (s *tourStore) ListToursByTags(ctx context.Context, tags []string, excludeID string, limit int) ([]*model.Tour, error) {
	filter := bson.D{{Key: "tags", Value: bson.D{{Key: "$in", Value: tags}}}}
	if excludeID != "" {
		filter = append(filter, bson.E{Key: "_id", Value: bson.D{{Key: "$ne", Value: excludeID}}})
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))
	return findMany[model.Tour](ctx, s.col, filter, opts)
}

func (s *tourStore) DeleteToursByCreator(ctx context.Context, userID string) error {
	_, err := s.col.DeleteMany(ctx, bson.D{{Key: "creator", Value: userID}})
	return wrapError(err)
}

func (s *tourStore) TourStatsByMonth(ctx context.Context, since time.Time) ([]model.MonthCount, error) {
	return aggregate[model.MonthCount](ctx, s.col, monthPipeline(since))
}

// 编译期接口检查
var _ storage.TourStore = (*tourStore)(nil)
