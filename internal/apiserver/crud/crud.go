// Package crud 通用 CRUD 处理器工厂
//
// 五类实体的增删改查共用同一套流程：查询计划解析、所有权校验、
// 字段白名单部分更新。各实体 handler 只注入差异点（实体构造、
// 端点预置过滤、更新钩子），不重复编排流程。
package crud

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"touropedia/internal/apiserver/auth"
	"touropedia/internal/apiserver/authz"
	"touropedia/internal/shared/apierror"
	"touropedia/internal/shared/model"
	"touropedia/internal/shared/query"
	"touropedia/internal/shared/storage"
)

// Ptr 约束：T 的指针实现 model.Owned
type Ptr[T any] interface {
	*T
	model.Owned
}

// Options 实体处理器的差异配置
type Options[T any] struct {
	// Singular / Plural 响应信封中的实体键名，如 "comment" / "comments"
	Singular string
	Plural   string

	// Query 列表端点的查询解析策略
	Query query.Options

	// Decode 从创建请求构造新实体并填充默认值（调用方无需做校验）
	Decode func(r *http.Request, requester *auth.AuthUser) (*T, error)

	// BaseFilter 端点预置过滤，如“本线路的评论”（可为 nil）
	BaseFilter func(r *http.Request) query.Filter

	// Updatable 部分更新允许的字段白名单（bson/json 键名）
	Updatable []string

	// BeforeUpdate 落库前回调，可基于当前文档追加派生字段（可为 nil）
	BeforeUpdate func(ctx context.Context, current *T, fields map[string]interface{}) error

	// GuardRead 为 true 时 Get 也执行所有权校验（收藏、浏览记录等私有资源）
	GuardRead bool
}

// Handler 单实体的通用 CRUD 处理器
type Handler[T any, PT Ptr[T]] struct {
	repo storage.Repository[T]
	opts Options[T]
}

// New 创建通用 CRUD 处理器
func New[T any, PT Ptr[T]](repo storage.Repository[T], opts Options[T]) *Handler[T, PT] {
	return &Handler[T, PT]{repo: repo, opts: opts}
}

// ============================================================================
// 操作
// ============================================================================

// List GET 列表：解析查询计划并执行
func (h *Handler[T, PT]) List(w http.ResponseWriter, r *http.Request) {
	spec, err := query.Parse(r.URL.Query(), h.opts.Query)
	if err != nil {
		apierror.Write(w, err)
		return
	}

	var base query.Filter
	if h.opts.BaseFilter != nil {
		base = h.opts.BaseFilter(r)
	}

	docs, err := h.repo.Find(r.Context(), base, spec)
	if err != nil {
		apierror.Write(w, apierror.Internal("failed to list %s", h.opts.Plural))
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "success",
		"counts":      len(docs),
		h.opts.Plural: docs,
	})
}

// Get GET 单个
func (h *Handler[T, PT]) Get(w http.ResponseWriter, r *http.Request) {
	doc, err := h.repo.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		apierror.Write(w, apierror.Internal("failed to get %s", h.opts.Singular))
		return
	}
	if doc == nil {
		apierror.Write(w, apierror.NotFound("%s not found", h.opts.Singular))
		return
	}
	if h.opts.GuardRead {
		requester := auth.GetAuthUser(r.Context())
		if !authz.CanAccess(requester, PT(doc).OwnerID(), authz.ActionRead) {
			apierror.Write(w, apierror.Forbidden("you do not have permission to access this %s", h.opts.Singular))
			return
		}
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":        "success",
		h.opts.Singular: doc,
	})
}

// Create POST 创建
func (h *Handler[T, PT]) Create(w http.ResponseWriter, r *http.Request) {
	if h.opts.Decode == nil {
		apierror.Write(w, apierror.Internal("create is not supported for %s", h.opts.Plural))
		return
	}
	requester := auth.GetAuthUser(r.Context())

	doc, err := h.opts.Decode(r, requester)
	if err != nil {
		apierror.Write(w, err)
		return
	}
	if err := PT(doc).Validate(); err != nil {
		apierror.Write(w, err)
		return
	}

	if err := h.repo.Insert(r.Context(), doc); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			apierror.Write(w, apierror.Conflict("%s already exists", h.opts.Singular))
			return
		}
		apierror.Write(w, apierror.Internal("failed to create %s", h.opts.Singular))
		return
	}

	WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"status":        "success",
		h.opts.Singular: doc,
	})
}

// Update PATCH 部分更新：仅白名单字段入库，更新前做所有权校验
func (h *Handler[T, PT]) Update(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	current, err := h.repo.Get(r.Context(), id)
	if err != nil {
		apierror.Write(w, apierror.Internal("failed to get %s", h.opts.Singular))
		return
	}
	if current == nil {
		apierror.Write(w, apierror.NotFound("%s not found", h.opts.Singular))
		return
	}

	requester := auth.GetAuthUser(r.Context())
	if !authz.CanAccess(requester, PT(current).OwnerID(), authz.ActionUpdate) {
		apierror.Write(w, apierror.Forbidden("you do not have permission to update this %s", h.opts.Singular))
		return
	}

	var body map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		apierror.Write(w, apierror.InvalidArgument("invalid request body"))
		return
	}

	fields := make(map[string]interface{})
	for _, key := range h.opts.Updatable {
		if v, ok := body[key]; ok {
			fields[key] = v
		}
	}
	if len(fields) == 0 {
		apierror.Write(w, apierror.InvalidArgument("no updatable fields provided"))
		return
	}

	if h.opts.BeforeUpdate != nil {
		if err := h.opts.BeforeUpdate(r.Context(), current, fields); err != nil {
			apierror.Write(w, err)
			return
		}
	}

	// 合并到副本上校验，通过后才落库
	merged := *current
	buf, err := json.Marshal(fields)
	if err != nil {
		apierror.Write(w, apierror.InvalidArgument("invalid field values"))
		return
	}
	if err := json.Unmarshal(buf, &merged); err != nil {
		apierror.Write(w, apierror.InvalidArgument("invalid field values"))
		return
	}
	if err := PT(&merged).Validate(); err != nil {
		apierror.Write(w, err)
		return
	}

	fields["updated_at"] = time.Now()
	updated, err := h.repo.Update(r.Context(), id, fields)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			apierror.Write(w, apierror.NotFound("%s not found", h.opts.Singular))
			return
		}
		if errors.Is(err, storage.ErrDuplicate) {
			apierror.Write(w, apierror.Conflict("%s already exists", h.opts.Singular))
			return
		}
		apierror.Write(w, apierror.Internal("failed to update %s", h.opts.Singular))
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":        "success",
		h.opts.Singular: updated,
	})
}

// Delete DELETE 删除，删除前做所有权校验
func (h *Handler[T, PT]) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	current, err := h.repo.Get(r.Context(), id)
	if err != nil {
		apierror.Write(w, apierror.Internal("failed to get %s", h.opts.Singular))
		return
	}
	if current == nil {
		apierror.Write(w, apierror.NotFound("%s not found", h.opts.Singular))
		return
	}

	requester := auth.GetAuthUser(r.Context())
	if !authz.CanAccess(requester, PT(current).OwnerID(), authz.ActionDelete) {
		apierror.Write(w, apierror.Forbidden("you do not have permission to delete this %s", h.opts.Singular))
		return
	}

	if err := h.repo.Delete(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			apierror.Write(w, apierror.NotFound("%s not found", h.opts.Singular))
			return
		}
		apierror.Write(w, apierror.Internal("failed to delete %s", h.opts.Singular))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// WriteJSON 写 JSON 响应，供各实体 handler 复用
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[crud] failed to encode response: %v", err)
	}
}
