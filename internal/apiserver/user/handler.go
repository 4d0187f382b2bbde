// Package user 用户 HTTP 处理器：注册、个人资料与管理端操作
package user

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"touropedia/internal/apiserver/auth"
	"touropedia/internal/apiserver/crud"
	"touropedia/internal/shared/apierror"
	"touropedia/internal/shared/model"
	"touropedia/internal/shared/storage"
)

// latestUsersLimit ?new=true 时返回的最近注册用户数
const latestUsersLimit = 5

// Handler 用户处理器
type Handler struct {
	users     storage.UserStore
	tours     storage.TourStore
	comments  storage.CommentStore
	bookmarks storage.BookmarkStore
	authCfg   auth.Config
	crud      *crud.Handler[model.User, *model.User]
}

// NewHandler 创建用户处理器
func NewHandler(authCfg auth.Config, users storage.UserStore, tours storage.TourStore, comments storage.CommentStore, bookmarks storage.BookmarkStore) *Handler {
	h := &Handler{
		users:     users,
		tours:     tours,
		comments:  comments,
		bookmarks: bookmarks,
		authCfg:   authCfg,
	}
	h.crud = crud.New[model.User, *model.User](users, crud.Options[model.User]{
		Singular:  "user",
		Plural:    "users",
		Updatable: []string{"name", "email", "avatar", "role", "active"},
	})
	return h
}

// RegisterRoutes 注册用户路由
//
// /users/{id} 三件套仅限管理员；普通用户通过 me / update-me / delete-me
// 操作自己的账号。
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/users/signup", h.Signup)
	mux.HandleFunc("GET /api/v1/users/me", h.Me)
	mux.HandleFunc("PATCH /api/v1/users/update-me", h.UpdateMe)
	mux.HandleFunc("DELETE /api/v1/users/delete-me", h.DeleteMe)

	mux.HandleFunc("GET /api/v1/users", auth.RequireRoles(h.List, model.UserRoleAdmin))
	mux.HandleFunc("GET /api/v1/users/stats", auth.RequireRoles(h.Stats, model.UserRoleAdmin))
	mux.HandleFunc("GET /api/v1/users/{id}", auth.RequireRoles(h.crud.Get, model.UserRoleAdmin))
	mux.HandleFunc("PATCH /api/v1/users/{id}", auth.RequireRoles(h.crud.Update, model.UserRoleAdmin))
	mux.HandleFunc("DELETE /api/v1/users/{id}", auth.RequireRoles(h.DeleteByID, model.UserRoleAdmin))
}

// ============================================================================
// 注册
// ============================================================================

// Signup 注册新用户并直接登录
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FirstName       string `json:"firstName"`
		LastName        string `json:"lastName"`
		Email           string `json:"email"`
		Password        string `json:"password"`
		PasswordConfirm string `json:"passwordConfirm"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierror.Write(w, apierror.InvalidArgument("invalid request body"))
		return
	}
	if err := auth.ValidateNewPassword(req.Password, req.PasswordConfirm); err != nil {
		apierror.Write(w, err)
		return
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		apierror.Write(w, apierror.Internal("failed to hash password"))
		return
	}

	now := time.Now()
	u := &model.User{
		ID:           model.NewID("user"),
		Name:         strings.TrimSpace(req.FirstName + " " + req.LastName),
		Email:        model.NormalizeEmail(req.Email),
		Role:         model.UserRoleUser,
		PasswordHash: hashed,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := u.Validate(); err != nil {
		apierror.Write(w, err)
		return
	}

	if err := h.users.Insert(r.Context(), u); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			apierror.Write(w, apierror.Conflict("a user with that email already exists"))
			return
		}
		apierror.Write(w, apierror.Internal("failed to create user"))
		return
	}

	auth.SendToken(w, r, h.authCfg, http.StatusCreated, u)
}

// ============================================================================
// 个人资料
// ============================================================================

// Me 当前用户资料
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	requester := auth.GetAuthUser(r.Context())
	if requester == nil {
		apierror.Write(w, apierror.Unauthenticated("you are not logged in, please log in to get access"))
		return
	}

	u, err := h.users.Get(r.Context(), requester.ID)
	if err != nil {
		apierror.Write(w, apierror.Internal("failed to get user"))
		return
	}
	if u == nil {
		apierror.Write(w, apierror.NotFound("user not found"))
		return
	}

	crud.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"user":   u,
	})
}

// UpdateMe 更新当前用户资料，密码走专用端点
func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	requester := auth.GetAuthUser(r.Context())
	if requester == nil {
		apierror.Write(w, apierror.Unauthenticated("you are not logged in, please log in to get access"))
		return
	}

	var body map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		apierror.Write(w, apierror.InvalidArgument("invalid request body"))
		return
	}
	if _, ok := body["password"]; ok {
		apierror.Write(w, apierror.InvalidArgument("this route is not for password updates, please use /update-my-password"))
		return
	}
	if _, ok := body["passwordConfirm"]; ok {
		apierror.Write(w, apierror.InvalidArgument("this route is not for password updates, please use /update-my-password"))
		return
	}

	fields := make(map[string]interface{})
	for _, key := range []string{"name", "avatar"} {
		if v, ok := body[key]; ok {
			fields[key] = v
		}
	}
	if v, ok := body["email"].(string); ok {
		fields["email"] = model.NormalizeEmail(v)
	}
	if len(fields) == 0 {
		apierror.Write(w, apierror.InvalidArgument("no updatable fields provided"))
		return
	}

	// 合并到当前资料的副本上校验，通过后才落库
	current, err := h.users.Get(r.Context(), requester.ID)
	if err != nil {
		apierror.Write(w, apierror.Internal("failed to get user"))
		return
	}
	if current == nil {
		apierror.Write(w, apierror.NotFound("user not found"))
		return
	}
	merged := *current
	if v, ok := fields["name"].(string); ok {
		merged.Name = v
	}
	if v, ok := fields["avatar"].(string); ok {
		merged.Avatar = v
	}
	if v, ok := fields["email"].(string); ok {
		merged.Email = v
	}
	if err := merged.Validate(); err != nil {
		apierror.Write(w, err)
		return
	}
	fields["updated_at"] = time.Now()

	updated, err := h.users.Update(r.Context(), requester.ID, fields)
	if err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			apierror.Write(w, apierror.Conflict("a user with that email already exists"))
			return
		}
		apierror.Write(w, apierror.Internal("failed to update user"))
		return
	}

	crud.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"user":   updated,
	})
}

// DeleteMe 注销当前账号（软删除）并级联清理
func (h *Handler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	requester := auth.GetAuthUser(r.Context())
	if requester == nil {
		apierror.Write(w, apierror.Unauthenticated("you are not logged in, please log in to get access"))
		return
	}
	h.deleteUser(w, r, requester.ID)
}

// DeleteByID 管理员删除指定用户
func (h *Handler) DeleteByID(w http.ResponseWriter, r *http.Request) {
	h.deleteUser(w, r, r.PathValue("id"))
}

// deleteUser 软删除用户并级联删除其线路与收藏
//
// 评论与浏览记录保留：评论是公共讨论的一部分，浏览记录对其他
// 用户不可见，留存无害。
func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request, id string) {
	u, err := h.users.Get(r.Context(), id)
	if err != nil {
		apierror.Write(w, apierror.Internal("failed to get user"))
		return
	}
	if u == nil {
		apierror.Write(w, apierror.NotFound("user not found"))
		return
	}

	if err := h.users.SoftDeleteUser(r.Context(), id); err != nil {
		apierror.Write(w, apierror.Internal("failed to delete user"))
		return
	}
	if err := h.tours.DeleteToursByCreator(r.Context(), id); err != nil {
		log.Printf("[user] failed to cascade tours of %s: %v", id, err)
	}
	if err := h.bookmarks.DeleteBookmarksByUser(r.Context(), id); err != nil {
		log.Printf("[user] failed to cascade bookmarks of %s: %v", id, err)
	}

	w.WriteHeader(http.StatusNoContent)
}

// ============================================================================
// 管理端
// ============================================================================

// List 用户列表；?new=true 时返回最近注册的用户
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("new") == "true" {
		users, err := h.users.ListLatestUsers(r.Context(), latestUsersLimit)
		if err != nil {
			apierror.Write(w, apierror.Internal("failed to list users"))
			return
		}
		crud.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"status": "success",
			"counts": len(users),
			"users":  users,
		})
		return
	}
	h.crud.List(w, r)
}

// Stats 近一年用户/线路/评论按月统计，三路聚合并发执行
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	since := time.Now().AddDate(-1, 0, 0)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error

		userStats    []model.MonthCount
		tourStats    []model.MonthCount
		commentStats []model.MonthCount
	)
	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}

	wg.Add(3)
	go func() {
		defer wg.Done()
		stats, err := h.users.UserStatsByMonth(r.Context(), since)
		if err != nil {
			fail(err)
			return
		}
		userStats = stats
	}()
	go func() {
		defer wg.Done()
		stats, err := h.tours.TourStatsByMonth(r.Context(), since)
		if err != nil {
			fail(err)
			return
		}
		tourStats = stats
	}()
	go func() {
		defer wg.Done()
		stats, err := h.comments.CommentStatsByMonth(r.Context(), since)
		if err != nil {
			fail(err)
			return
		}
		commentStats = stats
	}()
	wg.Wait()

	if firstErr != nil {
		apierror.Write(w, apierror.Internal("failed to aggregate stats"))
		return
	}

	crud.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "success",
		"users":    userStats,
		"tours":    tourStats,
		"comments": commentStats,
	})
}
