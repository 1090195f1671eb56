// Package filter 将检索请求中的时间范围类别翻译为对 year 字段的区间条件。
package filter

import (
	"strings"
	"time"

	"paper-search-go/internal/apperr"
	"paper-search-go/pkg/log"
)

// 可识别的时间范围类别。
const (
	ThisYear    = "This Year"
	Last5Years  = "Last 5 Years"
	Last10Years = "Last 10 Years"
	AllYears    = "All"
)

// YearRange 是对 year 字段的闭区间条件，Gte/Lte 为 0 表示该侧不设限。
type YearRange struct {
	Gte int
	Lte int
}

// yearsBack 为每个类别回溯的年数；-1 表示不加条件。
var yearsBack = map[string]int{
	"":                           -1,
	strings.ToLower(AllYears):    -1,
	strings.ToLower(ThisYear):    0,
	strings.ToLower(Last5Years):  5,
	strings.ToLower(Last10Years): 10,
}

// Parse 将类别翻译为区间条件。返回 nil 表示不加条件。
// 类别匹配忽略大小写和首尾空白；无法识别时返回 apperr.ErrInvalidInput 类错误。
func Parse(category string, now time.Time) (*YearRange, error) {
	n, ok := yearsBack[strings.ToLower(strings.TrimSpace(category))]
	if !ok {
		return nil, apperr.InvalidInput("unknown filter %q, expected one of %q, %q, %q, %q",
			category, ThisYear, Last5Years, Last10Years, AllYears)
	}
	year := now.Year()
	switch {
	case n < 0:
		return nil, nil
	case n == 0:
		return &YearRange{Gte: year, Lte: year}, nil
	default:
		return &YearRange{Gte: year - n}, nil
	}
}

// Translator 根据是否严格模式决定未知类别的处理方式。
type Translator struct {
	Strict bool
	Now    func() time.Time
}

// Translate 在严格模式下等同于 Parse；非严格模式下未知类别按 "All" 处理并记录告警。
func (t Translator) Translate(category string) (*YearRange, error) {
	now := time.Now
	if t.Now != nil {
		now = t.Now
	}
	r, err := Parse(category, now())
	if err != nil && !t.Strict {
		log.Warnf("[Filter] 无法识别的时间过滤 %q, 按不过滤处理", category)
		return nil, nil
	}
	return r, err
}
