// Package mongostore 实现基于 MongoDB 的 PersistentStore
//
// 使用 mongo-go-driver v2，通过 bson tag 实现 model 结构体的序列化/反序列化。
// 所有 Collection 名称和索引在 ensureIndexes 中统一管理。
package mongostore

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"touropedia/internal/shared/model"
	"touropedia/internal/shared/storage"
)

// Collection 名称常量
const (
	ColUsers     = "users"
	ColTours     = "tours"
	ColComments  = "comments"
	ColBookmarks = "bookmarks"
	ColHistories = "histories"
)

// Store 实现 storage.PersistentStore 接口的 MongoDB 驱动
type Store struct {
	client *mongo.Client
	db     *mongo.Database

	users     *userStore
	tours     *tourStore
	comments  *commentStore
	bookmarks *bookmarkStore
	histories *historyStore
}

// NewStore 创建 MongoDB 存储实例
//
// uri: MongoDB 连接 URI，如 "mongodb://localhost:27017"
// dbName: 数据库名称，如 "touropedia"
func NewStore(uri, dbName string) (*Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongostore: connect failed: %w", err)
	}

	// 验证连接
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("mongostore: ping failed: %w", err)
	}

	db := client.Database(dbName)
	s := &Store{client: client, db: db}

	s.users = &userStore{collection[model.User]{db.Collection(ColUsers)}}
	s.tours = &tourStore{collection[model.Tour]{db.Collection(ColTours)}}
	s.comments = &commentStore{collection[model.Comment]{db.Collection(ColComments)}}
	s.bookmarks = &bookmarkStore{collection[model.Bookmark]{db.Collection(ColBookmarks)}}
	s.histories = &historyStore{collection[model.History]{db.Collection(ColHistories)}}

	// 创建索引
	if err := s.ensureIndexes(ctx); err != nil {
		log.Printf("WARNING: mongostore: ensure indexes failed: %v", err)
	}

	return s, nil
}

// Close 关闭 MongoDB 连接
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// Users 用户仓库
func (s *Store) Users() storage.UserStore { return s.users }

// Tours 线路仓库
func (s *Store) Tours() storage.TourStore { return s.tours }

// Comments 评论仓库
func (s *Store) Comments() storage.CommentStore { return s.comments }

// Bookmarks 收藏仓库
func (s *Store) Bookmarks() storage.BookmarkStore { return s.bookmarks }

// Histories 浏览记录仓库
func (s *Store) Histories() storage.HistoryStore { return s.histories }

// ensureIndexes 创建所有必要的索引
func (s *Store) ensureIndexes(ctx context.Context) error {
	type idx struct {
		col    string
		keys   bson.D
		unique bool
	}

	indexes := []idx{
		// users
		{col: ColUsers, keys: bson.D{{Key: "email", Value: 1}}, unique: true},
		{col: ColUsers, keys: bson.D{{Key: "created_at", Value: -1}}},

		// tours
		{col: ColTours, keys: bson.D{{Key: "title", Value: "text"}, {Key: "description", Value: "text"}}},
		{col: ColTours, keys: bson.D{{Key: "title", Value: 1}, {Key: "tags", Value: 1}}},
		{col: ColTours, keys: bson.D{{Key: "slug", Value: 1}}},
		{col: ColTours, keys: bson.D{{Key: "creator", Value: 1}}},
		{col: ColTours, keys: bson.D{{Key: "created_at", Value: -1}}},

		// comments
		{col: ColComments, keys: bson.D{{Key: "tour", Value: 1}}},
		{col: ColComments, keys: bson.D{{Key: "user", Value: 1}}},

		// bookmarks
		{col: ColBookmarks, keys: bson.D{{Key: "user", Value: 1}, {Key: "tour", Value: 1}}, unique: true},

		// histories
		{col: ColHistories, keys: bson.D{{Key: "user", Value: 1}}},
		{col: ColHistories, keys: bson.D{{Key: "tour", Value: 1}}},
	}

	for _, i := range indexes {
		im := mongo.IndexModel{Keys: i.keys}
		if i.unique {
			im.Options = options.Index().SetUnique(true)
		}
		if _, err := s.db.Collection(i.col).Indexes().CreateOne(ctx, im); err != nil {
			return fmt.Errorf("create index on %s: %w", i.col, err)
		}
	}

	return nil
}
