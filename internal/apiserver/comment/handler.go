// Package comment 评论 HTTP 处理器
package comment

import (
	"encoding/json"
	"net/http"
	"time"

	"touropedia/internal/apiserver/auth"
	"touropedia/internal/apiserver/crud"
	"touropedia/internal/shared/apierror"
	"touropedia/internal/shared/model"
	"touropedia/internal/shared/query"
	"touropedia/internal/shared/storage"
)

// Handler 评论处理器
type Handler struct {
	comments storage.CommentStore
	crud     *crud.Handler[model.Comment, *model.Comment]
}

// NewHandler 创建评论处理器
func NewHandler(comments storage.CommentStore) *Handler {
	h := &Handler{comments: comments}
	h.crud = crud.New[model.Comment, *model.Comment](comments, crud.Options[model.Comment]{
		Singular:  "comment",
		Plural:    "comments",
		Decode:    decodeComment,
		Updatable: []string{"body"},
	})
	return h
}

// RegisterRoutes 注册评论路由
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/comments", h.crud.List)
	mux.HandleFunc("POST /api/v1/comments", h.crud.Create)
	mux.HandleFunc("GET /api/v1/comments/stats", auth.RequireRoles(h.Stats, model.UserRoleAdmin))
	mux.HandleFunc("GET /api/v1/comments/tour/{tourId}", h.ByTour)
	mux.HandleFunc("GET /api/v1/comments/{id}", h.crud.Get)
	mux.HandleFunc("PATCH /api/v1/comments/{id}", h.crud.Update)
	mux.HandleFunc("DELETE /api/v1/comments/{id}", h.crud.Delete)
}

// decodeComment 从创建请求构造评论，作者取自登录态
func decodeComment(r *http.Request, requester *auth.AuthUser) (*model.Comment, error) {
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

	now := time.Now()
	return &model.Comment{
		ID:        model.NewID("comment"),
		Body:      req.Body,
		Tour:      req.Tour,
		User:      requester.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// ByTour 指定线路的评论，按时间倒序
func (h *Handler) ByTour(w http.ResponseWriter, r *http.Request) {
	comments, err := h.comments.Find(r.Context(),
		query.Filter{query.Eq("tour", r.PathValue("tourId"))},
		&query.Spec{Sort: []query.SortField{{Field: "created_at", Desc: true}}},
	)
	if err != nil {
		apierror.Write(w, apierror.Internal("failed to list comments"))
		return
	}

	crud.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "success",
		"counts":   len(comments),
		"comments": comments,
	})
}

// Stats 近一年按月评论统计（管理员）
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.comments.CommentStatsByMonth(r.Context(), time.Now().AddDate(-1, 0, 0))
	if err != nil {
		apierror.Write(w, apierror.Internal("failed to aggregate comment stats"))
		return
	}

	crud.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"stats":  stats,
	})
}
