// Package model 包含了应用的数据模型定义。
package model

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"paper-search-go/internal/apperr"
)

// MinPaperYear 是 arXiv 开始收录论文的年份。
const MinPaperYear = 1991

// Paper 是从 arXiv 元数据接口构造出的论文记录，构造后不再修改。
type Paper struct {
	ID         string   `json:"id" validate:"required"`
	Title      string   `json:"title" validate:"required"`
	Authors    []string `json:"authors" validate:"required,min=1,dive,required"`
	Abstract   string   `json:"abstract" validate:"required"`
	URL        string   `json:"url" validate:"required,arxivurl"`
	PDF        string   `json:"pdf" validate:"required,arxivurl"`
	Month      int      `json:"month" validate:"min=1,max=12"`
	Year       int      `json:"year" validate:"min=1991"`
	Categories []string `json:"categories" validate:"required,min=1,dive,required"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func paperValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		_ = validate.RegisterValidation("arxivurl", func(fl validator.FieldLevel) bool {
			return IsArxivURL(fl.Field().String())
		})
	})
	return validate
}

// IsArxivURL 判断链接是否为 arxiv.org（或其子域名）下的 http(s) 地址。
func IsArxivURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return host == "arxiv.org" || strings.HasSuffix(host, ".arxiv.org")
}

// Validate 校验字段约束；年份上限为 now 所在年份。
// 返回的错误为 *apperr.ValidationError，列出全部不合法字段。
func (p Paper) Validate(now time.Time) error {
	var fields []string

	if err := paperValidator().Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("validate paper %s: %w", p.ID, err)
		}
		for _, fe := range verrs {
			fields = append(fields, describeFieldError(fe))
		}
	}
	if p.Year > now.Year() {
		fields = append(fields, fmt.Sprintf("year: %d is after %d", p.Year, now.Year()))
	}

	if len(fields) > 0 {
		return &apperr.ValidationError{ID: p.ID, Fields: fields}
	}
	return nil
}

func describeFieldError(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "arxivurl":
		return fmt.Sprintf("%s: %v is not an arxiv url", field, fe.Value())
	case "required":
		return fmt.Sprintf("%s: required", field)
	case "min", "max":
		return fmt.Sprintf("%s: %v out of range", field, fe.Value())
	default:
		return fmt.Sprintf("%s: failed %s", field, fe.Tag())
	}
}
