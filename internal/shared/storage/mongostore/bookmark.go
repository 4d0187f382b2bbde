package mongostore

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"

	"touropedia/internal/shared/model"
	"touropedia/internal/shared/storage"
)

type bookmarkStore struct {
	collection[model.Bookmark]
}

func (s *bookmarkStore) GetBookmarkByUserTour(ctx context.Context, userID, tourID string) (*model.Bookmark, error) {
	return findOne[model.Bookmark](ctx, s.col, bson.D{
		{Key: "user", Value: userID},
		{Key: "tour", Value: tourID},
	})
}

func (s *bookmarkStore) DeleteBookmarksByUser(ctx context.Context, userID string) error {
	_, err := s.col.DeleteMany(ctx, bson.D{{Key: "user", Value: userID}})
	return wrapError(err)
}

var _ storage.BookmarkStore = (*bookmarkStore)(nil)
