package mongostore

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"touropedia/internal/shared/query"
	"touropedia/internal/shared/storage"
)

// wrapError 将 MongoDB 错误转换为领域错误
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return storage.ErrNotFound
	}
	if mongo.IsDuplicateKeyError(err) {
		return storage.ErrDuplicate
	}
	return err
}

// ============================================================================
// 查询计划翻译
// ============================================================================

// toBSONFilter 将过滤条件翻译为 bson 过滤器
func toBSONFilter(f query.Filter) bson.D {
	out := bson.D{}
	for _, p := range f {
		switch p.Op {
		case query.OpEq:
			out = append(out, bson.E{Key: p.Field, Value: p.Value})
		default:
			// gte/gt/lte/lt 直接映射为 $ 前缀操作符
			out = append(out, bson.E{Key: p.Field, Value: bson.D{{Key: "$" + string(p.Op), Value: p.Value}}})
		}
	}
	return out
}

// toBSONSort 将排序字段翻译为 bson 排序
func toBSONSort(sort []query.SortField) bson.D {
	out := bson.D{}
	for _, s := range sort {
		dir := 1
		if s.Desc {
			dir = -1
		}
		out = append(out, bson.E{Key: s.Field, Value: dir})
	}
	return out
}

// findOptions 将查询计划的排序/投影/分页翻译为 FindOptions
func findOptions(spec *query.Spec) *options.FindOptionsBuilder {
	opts := options.Find()
	if spec == nil {
		return opts
	}
	if len(spec.Sort) > 0 {
		opts.SetSort(toBSONSort(spec.Sort))
	}
	if len(spec.Fields) > 0 {
		proj := bson.D{}
		for _, f := range spec.Fields {
			proj = append(proj, bson.E{Key: f, Value: 1})
		}
		opts.SetProjection(proj)
	}
	if spec.Paginate {
		opts.SetSkip(int64(spec.Skip)).SetLimit(int64(spec.Limit))
	}
	return opts
}

// ============================================================================
// 通用集合仓库（实现 storage.Repository[T]）
// ============================================================================

// collection 单集合的泛型仓库
type collection[T any] struct {
	col *mongo.Collection
}

// specFilter 合并附加条件、端点预置过滤与计划过滤
func specFilter(extra bson.D, base query.Filter, spec *query.Spec) bson.D {
	filter := bson.D{}
	filter = append(filter, extra...)
	filter = append(filter, toBSONFilter(base)...)
	if spec != nil {
		filter = append(filter, toBSONFilter(spec.Filter)...)
	}
	return filter
}

// findWith 带附加 bson 条件执行查询计划（软删除过滤等场景）
func (c *collection[T]) findWith(ctx context.Context, extra bson.D, base query.Filter, spec *query.Spec) ([]*T, error) {
	return findMany[T](ctx, c.col, specFilter(extra, base, spec), findOptions(spec))
}

func (c *collection[T]) Find(ctx context.Context, base query.Filter, spec *query.Spec) ([]*T, error) {
	return c.findWith(ctx, nil, base, spec)
}

func (c *collection[T]) FindOne(ctx context.Context, base query.Filter) (*T, error) {
	return findOne[T](ctx, c.col, toBSONFilter(base))
}

func (c *collection[T]) Get(ctx context.Context, id string) (*T, error) {
	return findOne[T](ctx, c.col, bson.D{{Key: "_id", Value: id}})
}

func (c *collection[T]) Count(ctx context.Context, base query.Filter) (int64, error) {
	n, err := c.col.CountDocuments(ctx, toBSONFilter(base))
	return n, wrapError(err)
}

func (c *collection[T]) Insert(ctx context.Context, doc *T) error {
	_, err := c.col.InsertOne(ctx, doc)
	return wrapError(err)
}

func (c *collection[T]) Update(ctx context.Context, id string, fields map[string]interface{}) (*T, error) {
	set := bson.D{}
	for k, v := range fields {
		set = append(set, bson.E{Key: k, Value: v})
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated T
	err := c.col.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: id}},
		bson.D{{Key: "$set", Value: set}},
		opts,
	).Decode(&updated)
	if err != nil {
		return nil, wrapError(err)
	}
	return &updated, nil
}

func (c *collection[T]) Delete(ctx context.Context, id string) error {
	res, err := c.col.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return wrapError(err)
	}
	if res.DeletedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ============================================================================
// 底层查询辅助函数
// ============================================================================

// findOne 查找单个文档并解码
// 文档不存在时返回 (nil, nil)
func findOne[T any](ctx context.Context, col *mongo.Collection, filter bson.D) (*T, error) {
	var result T
	err := col.FindOne(ctx, filter).Decode(&result)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, wrapError(err)
	}
	return &result, nil
}

// findMany 查找多个文档
func findMany[T any](ctx context.Context, col *mongo.Collection, filter bson.D, opts ...options.Lister[options.FindOptions]) ([]*T, error) {
	cursor, err := col.Find(ctx, filter, opts...)
	if err != nil {
		return nil, wrapError(err)
	}
	defer cursor.Close(ctx)

	var results []*T
	for cursor.Next(ctx) {
		var item T
		if err := cursor.Decode(&item); err != nil {
			return nil, err
		}
		results = append(results, &item)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	if results == nil {
		results = []*T{}
	}
	return results, nil
}

// aggregate 执行聚合管道并解码全部结果
func aggregate[T any](ctx context.Context, col *mongo.Collection, pipeline mongo.Pipeline) ([]T, error) {
	cursor, err := col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, wrapError(err)
	}
	defer cursor.Close(ctx)

	results := []T{}
	for cursor.Next(ctx) {
		var item T
		if err := cursor.Decode(&item); err != nil {
			return nil, err
		}
		results = append(results, item)
	}
	return results, cursor.Err()
}

// monthPipeline 构造按月统计管道：match since → project month → group count
func monthPipeline(since interface{}) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "created_at", Value: bson.D{{Key: "$gte", Value: since}}}}}},
		{{Key: "$project", Value: bson.D{{Key: "month", Value: bson.D{{Key: "$month", Value: "$created_at"}}}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$month"},
			{Key: "total", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}
}
