package mongostore

import (
	"context"
	"time"

	"touropedia/internal/shared/model"
	"touropedia/internal/shared/storage"
)

// ============================================================================
// CommentStore / BookmarkStore / HistoryStore
// ============================================================================

type commentStore struct {
	collection[model.Comment]
}

func (s *commentStore) CommentStatsByMonth(ctx context.Context, since time.Time) ([]model.MonthCount, error) {
	return aggregate[model.MonthCount](ctx, s.col, monthPipeline(since))
}

var _ storage.CommentStore = (*commentStore)(nil)
