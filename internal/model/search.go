package model

// SearchRequest 是检索接口的请求体。
type SearchRequest struct {
	Text        string `json:"text"`
	Filter      string `json:"filter"`
	SearchLimit int    `json:"search_limit"`
}

// Entity 是索引中随命中结果一起返回的论文字段。
type Entity struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Abstract   string   `json:"abstract"`
	Authors    []string `json:"authors"`
	Categories []string `json:"categories"`
	Month      int      `json:"month"`
	Year       int      `json:"year"`
	URL        string   `json:"url"`
}

// SearchResult 是一条近邻检索结果，Distance 为索引返回的相似度得分。
type SearchResult struct {
	ID       string  `json:"id"`
	Distance float64 `json:"distance"`
	Entity   Entity  `json:"entity"`
}

// IndexDocument 定义了存储在 Elasticsearch 中的论文文档结构。
type IndexDocument struct {
	ID           string      `json:"id"`
	Title        string      `json:"title"`
	Abstract     string      `json:"abstract"`
	Authors      []string    `json:"authors"`
	Categories   []string    `json:"categories"`
	Month        int         `json:"month"`
	Year         int         `json:"year"`
	URL          string      `json:"url"`
	PDF          string      `json:"pdf"`
	Vector       interface{} `json:"vector"`
	ModelVersion string      `json:"model_version"`
}

// NewIndexDocument 由论文记录和其摘要向量构造索引文档。
func NewIndexDocument(p Paper, v Vector, modelVersion string) IndexDocument {
	return IndexDocument{
		ID:           p.ID,
		Title:        p.Title,
		Abstract:     p.Abstract,
		Authors:      p.Authors,
		Categories:   p.Categories,
		Month:        p.Month,
		Year:         p.Year,
		URL:          p.URL,
		PDF:          p.PDF,
		Vector:       v.IndexValue(),
		ModelVersion: modelVersion,
	}
}

// Entity 返回文档中会出现在检索结果里的字段。
func (d IndexDocument) Entity() Entity {
	return Entity{
		ID:         d.ID,
		Title:      d.Title,
		Abstract:   d.Abstract,
		Authors:    d.Authors,
		Categories: d.Categories,
		Month:      d.Month,
		Year:       d.Year,
		URL:        d.URL,
	}
}
