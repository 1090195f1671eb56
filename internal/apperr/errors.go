// Package apperr 定义了服务内部统一使用的错误类别。
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// 错误类别。具体错误通过 %w 包装这些哨兵值，调用方用 errors.Is 判断类别。
var (
	// ErrInvalidInput 表示请求参数无效（空查询、非法 limit、未知 filter 等）。
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound 表示上游或索引中不存在对应论文。
	ErrNotFound = errors.New("not found")

	// ErrUpstream 表示外部服务的暂时性故障（网络错误、5xx、限流）。
	ErrUpstream = errors.New("upstream service error")

	// ErrValidation 表示构造出的论文记录不满足字段约束。
	ErrValidation = errors.New("validation failed")
)

// FetchError 携带出错的论文 ID 和底层原因。
type FetchError struct {
	ID  string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch paper %s: %v", e.ID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ValidationError 列出论文记录中所有不合法的字段。
type ValidationError struct {
	ID     string
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("paper %s failed validation: %s", e.ID, strings.Join(e.Fields, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// InvalidInput 构造一个带说明的 ErrInvalidInput。
func InvalidInput(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// IsInvalidInput 判断错误是否属于参数无效（包括校验失败）。
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrValidation)
}

// IsNotFound 判断错误是否属于资源不存在。
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsUpstream 判断错误是否来自外部服务故障。
func IsUpstream(err error) bool {
	return errors.Is(err, ErrUpstream)
}
