// Package bookmark 收藏 HTTP 处理器
package bookmark

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

// Handler 收藏处理器
type Handler struct {
	bookmarks storage.BookmarkStore
	crud      *crud.Handler[model.Bookmark, *model.Bookmark]
}

// NewHandler 创建收藏处理器
func NewHandler(bookmarks storage.BookmarkStore) *Handler {
	h := &Handler{bookmarks: bookmarks}
	h.crud = crud.New[model.Bookmark, *model.Bookmark](bookmarks, crud.Options[model.Bookmark]{
		Singular: "bookmark",
		Plural:   "bookmarks",
		Decode:   decodeBookmark,
		// 收藏列表永远是“我的收藏”，不暴露他人数据
		BaseFilter: func(r *http.Request) query.Filter {
			requester := auth.GetAuthUser(r.Context())
			if requester == nil {
				return query.Filter{query.Eq("user", "")}
			}
			return query.Filter{query.Eq("user", requester.ID)}
		},
		GuardRead: true,
	})
	return h
}

// RegisterRoutes 注册收藏路由
//
// 重复收藏同一线路由 (user, tour) 唯一索引拦截，返回 409。
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/bookmarks", h.crud.List)
	mux.HandleFunc("GET /api/v1/bookmarks/find/user", h.crud.List)
	mux.HandleFunc("POST /api/v1/bookmarks", h.crud.Create)
	mux.HandleFunc("GET /api/v1/bookmarks/tour/{tourId}", h.ByTour)
	mux.HandleFunc("GET /api/v1/bookmarks/{id}", h.crud.Get)
	mux.HandleFunc("DELETE /api/v1/bookmarks/{id}", h.crud.Delete)
}

// decodeBookmark 从创建请求构造收藏，归属取自登录态
func decodeBookmark(r *http.Request, requester *auth.AuthUser) (*model.Bookmark, error) {
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
	return &model.Bookmark{
		ID:        model.NewID("bookmark"),
		Tour:      req.Tour,
		User:      requester.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// ByTour 查询当前用户是否收藏了指定线路
func (h *Handler) ByTour(w http.ResponseWriter, r *http.Request) {
	requester := auth.GetAuthUser(r.Context())
	if requester == nil {
		apierror.Write(w, apierror.Unauthenticated("you are not logged in, please log in to get access"))
		return
	}

	b, err := h.bookmarks.GetBookmarkByUserTour(r.Context(), requester.ID, r.PathValue("tourId"))
	if err != nil {
		apierror.Write(w, apierror.Internal("failed to get bookmark"))
		return
	}

	crud.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "success",
		"bookmark": b, // 未收藏时为 null
	})
}
