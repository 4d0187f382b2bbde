// Package tour 旅游线路 HTTP 处理器
package tour

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"math"
	"net/http"
	"strings"
	"time"

	"touropedia/internal/apiserver/auth"
	"touropedia/internal/apiserver/authz"
	"touropedia/internal/apiserver/crud"
	"touropedia/internal/shared/apierror"
	"touropedia/internal/shared/cache"
	"touropedia/internal/shared/model"
	"touropedia/internal/shared/objstore"
	"touropedia/internal/shared/query"
	"touropedia/internal/shared/storage"
)

const (
	// listPageSize 线路列表固定分页大小
	listPageSize = 6
	// searchLimit 全文检索返回上限
	searchLimit = 5
	// relatedLimit 相关线路返回上限
	relatedLimit = 12
	// tagCacheTTL 标签聚合缓存时长
	tagCacheTTL = 10 * time.Minute
	// maxImageSize 图片上传大小上限
	maxImageSize = 10 << 20
)

// Handler 线路处理器
type Handler struct {
	tours    storage.TourStore
	comments storage.CommentStore
	tags     cache.TagCache   // 可为 nil，未配置时直接走聚合
	images   *objstore.Client // 可为 nil，未配置时图片端点不可用
	crud     *crud.Handler[model.Tour, *model.Tour]
}

// NewHandler 创建线路处理器
func NewHandler(tours storage.TourStore, comments storage.CommentStore, tags cache.TagCache, images *objstore.Client) *Handler {
	h := &Handler{tours: tours, comments: comments, tags: tags, images: images}
	h.crud = crud.New[model.Tour, *model.Tour](tours, crud.Options[model.Tour]{
		Singular:     "tour",
		Plural:       "tours",
		Decode:       h.decodeTour,
		Updatable:    []string{"title", "description", "tags", "image"},
		BeforeUpdate: h.refreshSlug,
	})
	return h
}

// RegisterRoutes 注册线路路由
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/tours", h.List)
	mux.HandleFunc("POST /api/v1/tours", h.crud.Create)
	mux.HandleFunc("GET /api/v1/tours/find/{id}", h.GetByID)
	mux.HandleFunc("GET /api/v1/tours/details/{slug}", h.GetBySlug)
	mux.HandleFunc("GET /api/v1/tours/user/user-tours", h.UserTours)
	mux.HandleFunc("GET /api/v1/tours/search", h.Search)
	mux.HandleFunc("GET /api/v1/tours/search/query", h.SearchByTitle)
	mux.HandleFunc("GET /api/v1/tours/tag/{tag}", h.ByTag)
	mux.HandleFunc("GET /api/v1/tours/tags", h.Tags)
	mux.HandleFunc("POST /api/v1/tours/related-tours", h.Related)
	mux.HandleFunc("GET /api/v1/tours/stats", auth.RequireRoles(h.Stats, model.UserRoleAdmin))
	mux.HandleFunc("PATCH /api/v1/tours/{id}", h.crud.Update)
	mux.HandleFunc("DELETE /api/v1/tours/{id}", h.crud.Delete)
	mux.HandleFunc("PATCH /api/v1/tours/like/{id}", h.Like)
	mux.HandleFunc("POST /api/v1/tours/image/{id}", h.UploadImage)
	mux.HandleFunc("GET /api/v1/tours/image/{id}", h.ServeImage)
}

// ============================================================================
// 创建与更新钩子
// ============================================================================

// decodeTour 从创建请求构造线路：创建者信息取自登录态而非请求体
func (h *Handler) decodeTour(r *http.Request, requester *auth.AuthUser) (*model.Tour, error) {
	if requester == nil {
		return nil, apierror.Unauthenticated("you are not logged in, please log in to get access")
	}

	var req struct {
		Title       string   `json:"title"`
		Description string   `json:"description"`
		Tags        []string `json:"tags"`
		Image       string   `json:"image"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, apierror.InvalidArgument("invalid request body")
	}

	now := time.Now()
	t := &model.Tour{
		ID:          model.NewID("tour"),
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Name:        requester.Name,
		Creator:     requester.ID,
		Tags:        req.Tags,
		Image:       req.Image,
		Likes:       []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}

	slug, err := uniqueSlug(r.Context(), h.tours, t.Title)
	if err != nil {
		return nil, err
	}
	t.Slug = slug
	return t, nil
}

// refreshSlug 标题变更时重新生成 slug，标题未变则保持原 slug
func (h *Handler) refreshSlug(ctx context.Context, current *model.Tour, fields map[string]interface{}) error {
	title, ok := fields["title"].(string)
	if !ok || strings.TrimSpace(title) == current.Title {
		return nil
	}
	slug, err := uniqueSlug(ctx, h.tours, title)
	if err != nil {
		return err
	}
	fields["slug"] = slug
	return nil
}

// ============================================================================
// 查询端点
// ============================================================================

// List 线路列表，固定每页 6 条并返回分页统计
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	spec, err := query.Parse(r.URL.Query(), query.Options{
		DefaultLimit:   listPageSize,
		AlwaysPaginate: true,
	})
	if err != nil {
		apierror.Write(w, err)
		return
	}

	tours, err := h.tours.Find(r.Context(), nil, spec)
	if err != nil {
		apierror.Write(w, apierror.Internal("failed to list tours"))
		return
	}
	total, err := h.tours.Count(r.Context(), spec.Filter)
	if err != nil {
		apierror.Write(w, apierror.Internal("failed to count tours"))
		return
	}

	crud.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":        "success",
		"counts":        len(tours),
		"currentPage":   spec.Page,
		"totalTours":    total,
		"numberOfPages": int(math.Ceil(float64(total) / float64(spec.Limit))),
		"tours":         tours,
	})
}

// GetByID 按 ID 取单条线路并展开评论
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	t, err := h.tours.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		apierror.Write(w, apierror.Internal("failed to get tour"))
		return
	}
	h.writeTour(w, r, t)
}

// GetBySlug 按 slug 取单条线路并展开评论
func (h *Handler) GetBySlug(w http.ResponseWriter, r *http.Request) {
	t, err := h.tours.GetTourBySlug(r.Context(), r.PathValue("slug"))
	if err != nil {
		apierror.Write(w, apierror.Internal("failed to get tour"))
		return
	}
	h.writeTour(w, r, t)
}

// writeTour 展开评论后输出单条线路
func (h *Handler) writeTour(w http.ResponseWriter, r *http.Request, t *model.Tour) {
	if t == nil {
		apierror.Write(w, apierror.NotFound("tour not found"))
		return
	}

	comments, err := h.comments.Find(r.Context(),
		query.Filter{query.Eq("tour", t.ID)},
		&query.Spec{Sort: []query.SortField{{Field: "created_at", Desc: true}}},
	)
	if err != nil {
		apierror.Write(w, apierror.Internal("failed to load comments"))
		return
	}
	t.Comments = comments

	crud.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"tour":   t,
	})
}

// UserTours 当前用户创建的线路
func (h *Handler) UserTours(w http.ResponseWriter, r *http.Request) {
	requester := auth.GetAuthUser(r.Context())
	if requester == nil {
		apierror.Write(w, apierror.Unauthenticated("you are not logged in, please log in to get access"))
		return
	}

	spec, err := query.Parse(r.URL.Query(), query.Options{})
	if err != nil {
		apierror.Write(w, err)
		return
	}

	tours, err := h.tours.Find(r.Context(), query.Filter{query.Eq("creator", requester.ID)}, spec)
	if err != nil {
		apierror.Write(w, apierror.Internal("failed to list tours"))
		return
	}

	crud.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"counts": len(tours),
		"tours":  tours,
	})
}

// SearchByTitle 标题模糊搜索（大小写不敏感）
func (h *Handler) SearchByTitle(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("searchQuery"))
	if q == "" {
		apierror.Write(w, apierror.InvalidArgument("please provide searchQuery"))
		return
	}

	tours, err := h.tours.SearchToursByTitle(r.Context(), q)
	if err != nil {
		apierror.Write(w, apierror.Internal("failed to search tours"))
		return
	}

	crud.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"counts": len(tours),
		"tours":  tours,
	})
}

// Search 标题与描述全文检索，按相关度降序
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		apierror.Write(w, apierror.InvalidArgument("please provide q"))
		return
	}

	tours, err := h.tours.SearchTours(r.Context(), q, searchLimit)
	if err != nil {
		apierror.Write(w, apierror.Internal("failed to search tours"))
		return
	}

	crud.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"counts": len(tours),
		"tours":  tours,
	})
}

// ByTag 按单个标签取线路
func (h *Handler) ByTag(w http.ResponseWriter, r *http.Request) {
	tag := r.PathValue("tag")

	spec, err := query.Parse(r.URL.Query(), query.Options{})
	if err != nil {
		apierror.Write(w, err)
		return
	}

	tours, err := h.tours.Find(r.Context(), query.Filter{query.Eq("tags", tag)}, spec)
	if err != nil {
		apierror.Write(w, apierror.Internal("failed to list tours"))
		return
	}

	crud.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"counts": len(tours),
		"tours":  tours,
	})
}

// Tags 标签聚合计数，优先读缓存
func (h *Handler) Tags(w http.ResponseWriter, r *http.Request) {
	if h.tags != nil {
		if tags, err := h.tags.GetTagList(r.Context()); err == nil && tags != nil {
			h.writeTags(w, tags)
			return
		} else if err != nil {
			log.Printf("[tour] tag cache read failed: %v", err)
		}
	}

	tags, err := h.tours.TagsList(r.Context())
	if err != nil {
		apierror.Write(w, apierror.Internal("failed to aggregate tags"))
		return
	}

	if h.tags != nil {
		if err := h.tags.SetTagList(r.Context(), tags, tagCacheTTL); err != nil {
			log.Printf("[tour] tag cache write failed: %v", err)
		}
	}
	h.writeTags(w, tags)
}

func (h *Handler) writeTags(w http.ResponseWriter, tags []model.TagCount) {
	crud.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"counts": len(tags),
		"tags":   tags,
	})
}

// Related 按标签集合取相关线路，排除当前线路自身
func (h *Handler) Related(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tags []string `json:"tags"`
		ID   string   `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierror.Write(w, apierror.InvalidArgument("invalid request body"))
		return
	}
	if len(req.Tags) == 0 {
		apierror.Write(w, apierror.InvalidArgument("please provide at least one tag"))
		return
	}

	tours, err := h.tours.ListToursByTags(r.Context(), req.Tags, req.ID, relatedLimit)
	if err != nil {
		apierror.Write(w, apierror.Internal("failed to list related tours"))
		return
	}

	crud.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"counts": len(tours),
		"tours":  tours,
	})
}

// Stats 近一年按月创建线路统计（管理员）
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	since := time.Now().AddDate(-1, 0, 0)
	stats, err := h.tours.TourStatsByMonth(r.Context(), since)
	if err != nil {
		apierror.Write(w, apierror.Internal("failed to aggregate tour stats"))
		return
	}

	crud.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"stats":  stats,
	})
}

// ============================================================================
// 点赞
// ============================================================================

// Like 切换点赞：已点赞则取消，否则加入
func (h *Handler) Like(w http.ResponseWriter, r *http.Request) {
	requester := auth.GetAuthUser(r.Context())
	if requester == nil {
		apierror.Write(w, apierror.Unauthenticated("you are not logged in, please log in to get access"))
		return
	}

	id := r.PathValue("id")
	current, err := h.tours.Get(r.Context(), id)
	if err != nil {
		apierror.Write(w, apierror.Internal("failed to get tour"))
		return
	}
	if current == nil {
		apierror.Write(w, apierror.NotFound("tour not found"))
		return
	}

	updated, err := h.tours.ToggleLike(r.Context(), id, requester.ID, current.Liked(requester.ID))
	if err != nil {
		apierror.Write(w, apierror.Internal("failed to toggle like"))
		return
	}

	crud.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"tour":   updated,
	})
}

// ============================================================================
// 图片
// ============================================================================

// UploadImage 上传线路图片到对象存储（multipart 字段 image）
func (h *Handler) UploadImage(w http.ResponseWriter, r *http.Request) {
	if h.images == nil {
		apierror.Write(w, apierror.Internal("image storage is not configured"))
		return
	}

	id := r.PathValue("id")
	current, err := h.tours.Get(r.Context(), id)
	if err != nil {
		apierror.Write(w, apierror.Internal("failed to get tour"))
		return
	}
	if current == nil {
		apierror.Write(w, apierror.NotFound("tour not found"))
		return
	}

	requester := auth.GetAuthUser(r.Context())
	if !authz.CanAccess(requester, current.Creator, authz.ActionUpdate) {
		apierror.Write(w, apierror.Forbidden("you do not have permission to update this tour"))
		return
	}

	if err := r.ParseMultipartForm(maxImageSize); err != nil {
		apierror.Write(w, apierror.InvalidArgument("invalid multipart form"))
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		apierror.Write(w, apierror.InvalidArgument("please provide an image file"))
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		apierror.Write(w, apierror.InvalidArgument("only image uploads are allowed"))
		return
	}

	if err := h.images.Upload(r.Context(), id, file, header.Size, contentType); err != nil {
		apierror.Write(w, apierror.Internal("failed to store image"))
		return
	}

	updated, err := h.tours.Update(r.Context(), id, map[string]interface{}{
		"image":      "/api/v1/tours/image/" + id,
		"updated_at": time.Now(),
	})
	if err != nil {
		apierror.Write(w, apierror.Internal("failed to update tour image"))
		return
	}

	crud.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"tour":   updated,
	})
}

// ServeImage 从对象存储读取并回流线路图片
func (h *Handler) ServeImage(w http.ResponseWriter, r *http.Request) {
	if h.images == nil {
		apierror.Write(w, apierror.Internal("image storage is not configured"))
		return
	}

	obj, contentType, err := h.images.Download(r.Context(), r.PathValue("id"))
	if err != nil {
		apierror.Write(w, apierror.NotFound("image not found"))
		return
	}
	defer obj.Close()

	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	if _, err := io.Copy(w, obj); err != nil {
		log.Printf("[tour] failed to stream image: %v", err)
	}
}
