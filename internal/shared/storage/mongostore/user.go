package mongostore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"touropedia/internal/shared/model"
	"touropedia/internal/shared/query"
)

// ============================================================================
// UserStore
// ============================================================================

// userStore 用户仓库
//
// 常规查询一律排除软删除用户（active=false），
// 对应原系统 schema 级 pre-find 钩子的显式化。
type userStore struct {
	collection[model.User]
}

// notDeleted 软删除排除条件
var notDeleted = bson.D{{Key: "active", Value: bson.D{{Key: "$ne", Value: false}}}}

func (s *userStore) Find(ctx context.Context, base query.Filter, spec *query.Spec) ([]*model.User, error) {
	return s.findWith(ctx, notDeleted, base, spec)
}

func (s *userStore) FindOne(ctx context.Context, base query.Filter) (*model.User, error) {
	filter := append(bson.D{}, notDeleted...)
	filter = append(filter, toBSONFilter(base)...)
	return findOne[model.User](ctx, s.col, filter)
}

func (s *userStore) Get(ctx context.Context, id string) (*model.User, error) {
	filter := append(bson.D{{Key: "_id", Value: id}}, notDeleted...)
	return findOne[model.User](ctx, s.col, filter)
}

func (s *userStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	filter := append(bson.D{{Key: "email", Value: email}}, notDeleted...)
	return findOne[model.User](ctx, s.col, filter)
}

func (s *userStore) GetUserByGoogleID(ctx context.Context, googleID string) (*model.User, error) {
	filter := append(bson.D{{Key: "google_id", Value: googleID}}, notDeleted...)
	return findOne[model.User](ctx, s.col, filter)
}

func (s *userStore) GetUserByResetToken(ctx context.Context, tokenHash string, now time.Time) (*model.User, error) {
	filter := bson.D{
		{Key: "password_reset_token", Value: tokenHash},
		{Key: "password_reset_expires", Value: bson.D{{Key: "$gt", Value: now}}},
	}
	return findOne[model.User](ctx, s.col, append(filter, notDeleted...))
}

func (s *userStore) ListLatestUsers(ctx context.Context, n int) ([]*model.User, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: -1}}).SetLimit(int64(n))
	return findMany[model.User](ctx, s.col, append(bson.D{}, notDeleted...), opts)
}

func (s *userStore) SoftDeleteUser(ctx context.Context, id string) error {
	_, err := s.Update(ctx, id, map[string]interface{}{
		"active":     false,
		"updated_at": time.Now(),
	})
	return err
}

func (s *userStore) UserStatsByMonth(ctx context.Context, since time.Time) ([]model.MonthCount, error) {
	return aggregate[model.MonthCount](ctx, s.col, monthPipeline(since))
}
