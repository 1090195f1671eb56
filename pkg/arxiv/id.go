// Package arxiv 提供 arXiv 论文 ID 的识别以及元数据接口客户端。
package arxiv

import (
	"regexp"
	"strings"
)

// 2007 年之前的 ID 形如 hep-th/9901001 或 math.GT/0309136，月份限定为 01-12；
// 之后的 ID 形如 1706.03762 或 2301.07041。
// 两者都要求前面是行首、空白、"/" 或 "arXiv:"，后面是可选版本号加空白或行尾。
var (
	legacyIDPattern = regexp.MustCompile(`(?im)(?:^|\s|/|arXiv:)([a-z-]+(?:\.[A-Z]{2})?/\d{2}(?:0[1-9]|1[012])\d{3})(?:v\d+)?(?:$|\s)`)
	modernIDPattern = regexp.MustCompile(`(?im)(?:^|\s|/|arXiv:)(\d{4}\.\d{4,5})(?:v\d+)?(?:$|\s)`)

	versionSuffix = regexp.MustCompile(`v\d+$`)
)

// ExtractID 在任意文本中查找第一个 arXiv ID。
// 先匹配旧格式，只有旧格式没有命中时才尝试新格式，不比较两者出现的位置。
func ExtractID(text string) (string, bool) {
	if m := legacyIDPattern.FindStringSubmatch(text); m != nil {
		return m[1], true
	}
	if m := modernIDPattern.FindStringSubmatch(text); m != nil {
		return m[1], true
	}
	return "", false
}

// IDFromURL 从 arXiv 链接中取出不带版本号的 ID。
// 链接包含 /abs/ 或 /pdf/ 时取其后的完整路径（旧格式 ID 自身含有 "/"），否则取最后一段路径。
func IDFromURL(arxivURL string) string {
	path := arxivURL
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	path = strings.TrimRight(path, "/")

	id := path
	matched := false
	for _, marker := range []string{"/abs/", "/pdf/"} {
		if i := strings.LastIndex(path, marker); i >= 0 {
			id = path[i+len(marker):]
			matched = true
			break
		}
	}
	if !matched {
		if i := strings.LastIndex(path, "/"); i >= 0 {
			id = path[i+1:]
		}
	}

	id = strings.TrimSuffix(id, ".pdf")
	return versionSuffix.ReplaceAllString(id, "")
}
