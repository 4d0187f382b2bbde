package history

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"touropedia/internal/apiserver/auth"
	"touropedia/internal/shared/model"
	"touropedia/internal/shared/query"
	"touropedia/internal/shared/storage"
)

// fakeHistories 内存假存储，只实现被测路径用到的方法
type fakeHistories struct {
	storage.HistoryStore
	items []*model.History
	total int64
}

func (f *fakeHistories) Find(_ context.Context, _ query.Filter, _ *query.Spec) ([]*model.History, error) {
	return f.items, nil
}

func (f *fakeHistories) Count(_ context.Context, _ query.Filter) (int64, error) {
	return f.total, nil
}

// TestMine_Deduplicates 同一线路多次浏览只保留最近一条
func TestMine_Deduplicates(t *testing.T) {
	// Find 返回按时间倒序的记录
	store := &fakeHistories{items: []*model.History{
		{ID: "history-3", Tour: "tour-1", User: "user-1"},
		{ID: "history-2", Tour: "tour-2", User: "user-1"},
		{ID: "history-1", Tour: "tour-1", User: "user-1"},
	}}
	h := NewHandler(store)

	requester := &auth.AuthUser{ID: "user-1", Role: model.UserRoleUser}
	rec := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/api/v1/histories", nil)
	h.Mine(rec, r.WithContext(auth.WithAuthUser(r.Context(), requester)))

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Status    string           `json:"status"`
		Counts    int              `json:"counts"`
		Histories []*model.History `json:"histories"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "success", body.Status)
	assert.Equal(t, 2, body.Counts)
	require.Len(t, body.Histories, 2)
	// tour-1 保留最近的 history-3
	assert.Equal(t, "history-3", body.Histories[0].ID)
	assert.Equal(t, "history-2", body.Histories[1].ID)
}

// TestMine_Unauthenticated 未登录返回 401
func TestMine_Unauthenticated(t *testing.T) {
	h := NewHandler(&fakeHistories{})

	rec := httptest.NewRecorder()
	h.Mine(rec, httptest.NewRequest("GET", "/api/v1/histories", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// TestTourViews 公开返回线路浏览次数
func TestTourViews(t *testing.T) {
	h := NewHandler(&fakeHistories{total: 42})

	rec := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/api/v1/histories/tour/tour-1", nil)
	r.SetPathValue("tourId", "tour-1")
	h.TourViews(rec, r)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Status string `json:"status"`
		Counts int64  `json:"counts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "success", body.Status)
	assert.Equal(t, int64(42), body.Counts)
}
