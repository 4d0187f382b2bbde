// Package apierror 错误分类与统一 HTTP 错误输出
//
// 业务代码只产生挂在 errdefs 分类上的错误（fmt.Errorf + %w），
// 所有 handler 统一经 Write 翻译为状态码与稳定的 JSON 错误信封，
// 不允许各 handler 自行拼错误响应体。
package apierror

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/containerd/errdefs"
)

// Envelope 错误响应信封
//
// Status 为 "fail"（4xx，客户端错误）或 "error"（5xx，服务端错误）。
type Envelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// 错误构造函数，保持调用方简洁

// InvalidArgument 400
func InvalidArgument(format string, args ...interface{}) error {
	return classified(errdefs.ErrInvalidArgument, format, args...)
}

// Unauthenticated 401
func Unauthenticated(format string, args ...interface{}) error {
	return classified(errdefs.ErrUnauthenticated, format, args...)
}

// Forbidden 403
func Forbidden(format string, args ...interface{}) error {
	return classified(errdefs.ErrPermissionDenied, format, args...)
}

// NotFound 404
func NotFound(format string, args ...interface{}) error {
	return classified(errdefs.ErrNotFound, format, args...)
}

// Conflict 409
func Conflict(format string, args ...interface{}) error {
	return classified(errdefs.ErrConflict, format, args...)
}

// Internal 500
func Internal(format string, args ...interface{}) error {
	return classified(errdefs.ErrInternal, format, args...)
}

func classified(class error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", class, fmt.Sprintf(format, args...))
}

// Status 返回错误对应的 HTTP 状态码
func Status(err error) int {
	switch {
	case errdefs.IsInvalidArgument(err):
		return http.StatusBadRequest
	case errdefs.IsUnauthorized(err):
		return http.StatusUnauthorized
	case errdefs.IsPermissionDenied(err):
		return http.StatusForbidden
	case errdefs.IsNotFound(err):
		return http.StatusNotFound
	case errdefs.IsConflict(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Write 将错误翻译为 HTTP 响应
//
// 未分类错误按 500 处理：记录日志，对客户端只暴露通用消息。
func Write(w http.ResponseWriter, err error) {
	status := Status(err)

	message := err.Error()
	if status == http.StatusInternalServerError {
		log.Printf("[apierror] internal error: %v", err)
		message = "something went wrong, please try again later"
	}

	envStatus := "fail"
	if status >= http.StatusInternalServerError {
		envStatus = "error"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(Envelope{Status: envStatus, Message: message})
}
