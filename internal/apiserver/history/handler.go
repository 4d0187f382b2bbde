// Package history 浏览记录 HTTP 处理器
package history

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

// Handler 浏览记录处理器
type Handler struct {
	histories storage.HistoryStore
	crud      *crud.Handler[model.History, *model.History]
}

// NewHandler 创建浏览记录处理器
func NewHandler(histories storage.HistoryStore) *Handler {
	h := &Handler{histories: histories}
	h.crud = crud.New[model.History, *model.History](histories, crud.Options[model.History]{
		Singular:  "history",
		Plural:    "histories",
		Decode:    decodeHistory,
		GuardRead: true,
	})
	return h
}

// RegisterRoutes 注册浏览记录路由
//
// 按 ID 的读取与删除仅限管理员；普通用户只能看自己的记录列表。
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/histories", h.Mine)
	mux.HandleFunc("POST /api/v1/histories", h.crud.Create)
	mux.HandleFunc("GET /api/v1/histories/tour/{tourId}", h.TourViews)
	mux.HandleFunc("GET /api/v1/histories/{id}", auth.RequireRoles(h.crud.Get, model.UserRoleAdmin))
	mux.HandleFunc("DELETE /api/v1/histories/{id}", auth.RequireRoles(h.crud.Delete, model.UserRoleAdmin))
}

// decodeHistory 从创建请求构造浏览记录
func decodeHistory(r *http.Request, requester *auth.AuthUser) (*model.History, error) {
	if requester == nil {
		return nil, apierror.Unauthenticated("you are not logged in, please log in to get access")
	}

	var req struct {
		Tour string `json:"tour"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, apierror.InvalidArgument("invalid request body")
	}

	now := time.Now()
	return &model.History{
		ID:        model.NewID("history"),
		Tour:      req.Tour,
		User:      requester.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Mine 当前用户的浏览记录，按线路去重后保留最近一次
func (h *Handler) Mine(w http.ResponseWriter, r *http.Request) {
	requester := auth.GetAuthUser(r.Context())
	if requester == nil {
		apierror.Write(w, apierror.Unauthenticated("you are not logged in, please log in to get access"))
		return
	}

	all, err := h.histories.Find(r.Context(),
		query.Filter{query.Eq("user", requester.ID)},
		&query.Spec{Sort: []query.SortField{{Field: "created_at", Desc: true}}},
	)
	if err != nil {
		apierror.Write(w, apierror.Internal("failed to list histories"))
		return
	}

	// 同一线路多次浏览只保留最近一条
	seen := make(map[string]bool, len(all))
	histories := make([]*model.History, 0, len(all))
	for _, item := range all {
		if seen[item.Tour] {
			continue
		}
		seen[item.Tour] = true
		histories = append(histories, item)
	}

	crud.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "success",
		"counts":    len(histories),
		"histories": histories,
	})
}

// TourViews 指定线路的浏览次数（公开）
func (h *Handler) TourViews(w http.ResponseWriter, r *http.Request) {
	n, err := h.histories.Count(r.Context(), query.Filter{query.Eq("tour", r.PathValue("tourId"))})
	if err != nil {
		apierror.Write(w, apierror.Internal("failed to count views"))
		return
	}

	crud.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"counts": n,
	})
}
