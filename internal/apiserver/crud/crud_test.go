package crud

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"touropedia/internal/apiserver/auth"
	"touropedia/internal/shared/apierror"
	"touropedia/internal/shared/model"
	"touropedia/internal/shared/query"
	"touropedia/internal/shared/storage"
)

// ============================================================================
// 内存假仓库
// ============================================================================

type fakeRepo struct {
	docs     map[string]*model.Comment
	lastBase query.Filter
	lastSpec *query.Spec
}

func newFakeRepo(docs ...*model.Comment) *fakeRepo {
	f := &fakeRepo{docs: make(map[string]*model.Comment)}
	for _, d := range docs {
		f.docs[d.ID] = d
	}
	return f
}

func (f *fakeRepo) Find(_ context.Context, base query.Filter, spec *query.Spec) ([]*model.Comment, error) {
	f.lastBase = base
	f.lastSpec = spec
	out := []*model.Comment{}
	for _, d := range f.docs {
		out = append(out, d)
	}
	return out, nil
}

func (f *fakeRepo) FindOne(_ context.Context, base query.Filter) (*model.Comment, error) {
	for _, d := range f.docs {
		return d, nil
	}
	return nil, nil
}

func (f *fakeRepo) Get(_ context.Context, id string) (*model.Comment, error) {
	return f.docs[id], nil
}

func (f *fakeRepo) Count(_ context.Context, base query.Filter) (int64, error) {
	return int64(len(f.docs)), nil
}

func (f *fakeRepo) Insert(_ context.Context, doc *model.Comment) error {
	if _, exists := f.docs[doc.ID]; exists {
		return storage.ErrDuplicate
	}
	f.docs[doc.ID] = doc
	return nil
}

func (f *fakeRepo) Update(_ context.Context, id string, fields map[string]interface{}) (*model.Comment, error) {
	doc, ok := f.docs[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *doc
	if v, ok := fields["body"].(string); ok {
		cp.Body = v
	}
	f.docs[id] = &cp
	return &cp, nil
}

func (f *fakeRepo) Delete(_ context.Context, id string) error {
	if _, ok := f.docs[id]; !ok {
		return storage.ErrNotFound
	}
	delete(f.docs, id)
	return nil
}

var _ storage.Repository[model.Comment] = (*fakeRepo)(nil)

// ============================================================================
// 测试辅助
// ============================================================================

func decodeTestComment(r *http.Request, requester *auth.AuthUser) (*model.Comment, error) {
	if requester == nil {
		return nil, apierror.Unauthenticated("you are not logged in, please log in to get access")
	}
	var req struct {
		Body string `json:"body"`
		Tour string `json:"tour"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, apierror.InvalidArgument("invalid request body")
	}
	return &model.Comment{
		ID:   model.NewID("comment"),
		Body: req.Body,
		Tour: req.Tour,
		User: requester.ID,
	}, nil
}

func newTestHandler(repo *fakeRepo, guardRead bool) *Handler[model.Comment, *model.Comment] {
	return New[model.Comment, *model.Comment](repo, Options[model.Comment]{
		Singular:  "comment",
		Plural:    "comments",
		Decode:    decodeTestComment,
		Updatable: []string{"body"},
		GuardRead: guardRead,
	})
}

func asUser(r *http.Request, u *auth.AuthUser) *http.Request {
	if u == nil {
		return r
	}
	return r.WithContext(auth.WithAuthUser(r.Context(), u))
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

var (
	owner    = &auth.AuthUser{ID: "user-1", Name: "Jane", Role: model.UserRoleUser}
	stranger = &auth.AuthUser{ID: "user-2", Name: "John", Role: model.UserRoleUser}
	admin    = &auth.AuthUser{ID: "user-9", Name: "Root", Role: model.UserRoleAdmin}
)

func seedComment() *model.Comment {
	return &model.Comment{ID: "comment-1", Body: "nice", Tour: "tour-1", User: "user-1"}
}

// ============================================================================
// List
// ============================================================================

// TestList 列表返回信封并把查询参数翻译为查询计划
func TestList(t *testing.T) {
	repo := newFakeRepo(seedComment())
	h := newTestHandler(repo, false)

	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest("GET", "/api/v1/comments?tour=tour-1&page=2&limit=5", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, float64(1), body["counts"])
	assert.Contains(t, body, "comments")

	require.NotNil(t, repo.lastSpec)
	assert.Equal(t, 2, repo.lastSpec.Page)
	assert.Equal(t, 5, repo.lastSpec.Limit)
	assert.Equal(t, 5, repo.lastSpec.Skip)
	assert.True(t, repo.lastSpec.Paginate)
	assert.Contains(t, repo.lastSpec.Filter, query.Eq("tour", "tour-1"))
}

// TestList_InvalidPage 非法分页参数返回 400
func TestList_InvalidPage(t *testing.T) {
	h := newTestHandler(newFakeRepo(), false)

	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest("GET", "/api/v1/comments?page=zero", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "fail", decodeBody(t, rec)["status"])
}

// ============================================================================
// Get
// ============================================================================

// TestGet 命中与未命中
func TestGet(t *testing.T) {
	h := newTestHandler(newFakeRepo(seedComment()), false)

	rec := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/api/v1/comments/comment-1", nil)
	r.SetPathValue("id", "comment-1")
	h.Get(rec, r)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decodeBody(t, rec), "comment")

	rec = httptest.NewRecorder()
	r = httptest.NewRequest("GET", "/api/v1/comments/comment-404", nil)
	r.SetPathValue("id", "comment-404")
	h.Get(rec, r)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// TestGet_Guarded 私有资源读取也做所有权校验
func TestGet_Guarded(t *testing.T) {
	h := newTestHandler(newFakeRepo(seedComment()), true)

	tests := []struct {
		name      string
		requester *auth.AuthUser
		want      int
	}{
		{"所有者可读", owner, http.StatusOK},
		{"非所有者 403", stranger, http.StatusForbidden},
		{"管理员可读", admin, http.StatusOK},
		{"未认证 403", nil, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r := httptest.NewRequest("GET", "/api/v1/comments/comment-1", nil)
			r.SetPathValue("id", "comment-1")
			h.Get(rec, asUser(r, tt.requester))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

// ============================================================================
// Create
// ============================================================================

// TestCreate 创建成功返回 201 与实体信封
func TestCreate(t *testing.T) {
	repo := newFakeRepo()
	h := newTestHandler(repo, false)

	rec := httptest.NewRecorder()
	r := httptest.NewRequest("POST", "/api/v1/comments", strings.NewReader(`{"body":"great","tour":"tour-1"}`))
	h.Create(rec, asUser(r, owner))

	require.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "success", body["status"])
	comment := body["comment"].(map[string]interface{})
	assert.Equal(t, "great", comment["body"])
	assert.Equal(t, "user-1", comment["user"])
	assert.Len(t, repo.docs, 1)
}

// TestCreate_Invalid 校验失败返回 400，不落库
func TestCreate_Invalid(t *testing.T) {
	repo := newFakeRepo()
	h := newTestHandler(repo, false)

	rec := httptest.NewRecorder()
	r := httptest.NewRequest("POST", "/api/v1/comments", strings.NewReader(`{"body":"  ","tour":"tour-1"}`))
	h.Create(rec, asUser(r, owner))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, repo.docs)
}

// ============================================================================
// Update
// ============================================================================

func patchComment(h *Handler[model.Comment, *model.Comment], requester *auth.AuthUser, id, payload string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r := httptest.NewRequest("PATCH", "/api/v1/comments/"+id, strings.NewReader(payload))
	r.SetPathValue("id", id)
	h.Update(rec, asUser(r, requester))
	return rec
}

// TestUpdate 所有者与管理员可更新，白名单外字段被忽略
func TestUpdate(t *testing.T) {
	repo := newFakeRepo(seedComment())
	h := newTestHandler(repo, false)

	rec := patchComment(h, owner, "comment-1", `{"body":"edited","user":"user-2"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "edited", repo.docs["comment-1"].Body)
	// user 不在白名单，归属不可篡改
	assert.Equal(t, "user-1", repo.docs["comment-1"].User)

	rec = patchComment(h, admin, "comment-1", `{"body":"admin edit"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "admin edit", repo.docs["comment-1"].Body)
}

// TestUpdate_Forbidden 非所有者更新返回 403
func TestUpdate_Forbidden(t *testing.T) {
	repo := newFakeRepo(seedComment())
	h := newTestHandler(repo, false)

	rec := patchComment(h, stranger, "comment-1", `{"body":"hijack"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "nice", repo.docs["comment-1"].Body)
}

// TestUpdate_NoFields 仅白名单外字段视为空更新
func TestUpdate_NoFields(t *testing.T) {
	h := newTestHandler(newFakeRepo(seedComment()), false)

	rec := patchComment(h, owner, "comment-1", `{"user":"user-2"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// TestUpdate_ValidateMerged 合并后实体仍需通过校验
func TestUpdate_ValidateMerged(t *testing.T) {
	h := newTestHandler(newFakeRepo(seedComment()), false)

	rec := patchComment(h, owner, "comment-1", `{"body":"  "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// TestUpdate_NotFound 更新不存在的资源返回 404
func TestUpdate_NotFound(t *testing.T) {
	h := newTestHandler(newFakeRepo(), false)

	rec := patchComment(h, owner, "comment-404", `{"body":"x"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// ============================================================================
// Delete
// ============================================================================

// TestDelete 所有者删除返回 204，非所有者 403
func TestDelete(t *testing.T) {
	repo := newFakeRepo(seedComment())
	h := newTestHandler(repo, false)

	rec := httptest.NewRecorder()
	r := httptest.NewRequest("DELETE", "/api/v1/comments/comment-1", nil)
	r.SetPathValue("id", "comment-1")
	h.Delete(rec, asUser(r, stranger))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Len(t, repo.docs, 1)

	rec = httptest.NewRecorder()
	r = httptest.NewRequest("DELETE", "/api/v1/comments/comment-1", nil)
	r.SetPathValue("id", "comment-1")
	h.Delete(rec, asUser(r, owner))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, repo.docs)
}
