package arxiv

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"paper-search-go/internal/apperr"
	"paper-search-go/internal/config"
	"paper-search-go/internal/model"
	"paper-search-go/pkg/log"
)

// Client 通过 arXiv Atom 接口按 ID 获取论文元数据。
type Client struct {
	cfg     config.ArxivConfig
	client  *http.Client
	limiter *rate.Limiter
	now     func() time.Time
}

// NewClient 创建一个新的 arXiv 客户端。RateInterval 为 0 时不限速。
func NewClient(cfg config.ArxivConfig) *Client {
	limit := rate.Inf
	if cfg.RateInterval > 0 {
		limit = rate.Every(cfg.RateInterval)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		cfg:     cfg,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(limit, 1),
		now:     time.Now,
	}
}

// Atom feed 结构。
type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID         string         `xml:"id"`
	Title      string         `xml:"title"`
	Summary    string         `xml:"summary"`
	Published  string         `xml:"published"`
	Authors    []atomAuthor   `xml:"author"`
	Links      []atomLink     `xml:"link"`
	Categories []atomCategory `xml:"category"`
}

type atomAuthor struct {
	Name string `xml:"name"`
}

type atomLink struct {
	Href  string `xml:"href,attr"`
	Rel   string `xml:"rel,attr"`
	Title string `xml:"title,attr"`
	Type  string `xml:"type,attr"`
}

type atomCategory struct {
	Term string `xml:"term,attr"`
}

// FetchByID 获取单篇论文的元数据。
// 网络错误、429 与 5xx 按配置重试（指数退避加随机抖动）；论文不存在时不重试。
// 返回的错误均为 *apperr.FetchError，可用 apperr.IsNotFound / IsUpstream 判断类别。
func (c *Client) FetchByID(ctx context.Context, arxivID string) (model.Paper, error) {
	log.Infof("[ArxivClient] 开始获取论文元数据, id: %s", arxivID)

	var paper model.Paper
	err := retry(ctx, c.cfg.MaxAttempts, c.cfg.RetryBaseDelay, func(ctx context.Context) error {
		entry, err := c.fetchEntry(ctx, arxivID)
		if err != nil {
			return err
		}
		paper, err = c.toPaper(entry)
		return err
	})
	if err != nil {
		log.Errorf("[ArxivClient] 获取论文元数据失败, id: %s, error: %v", arxivID, err)
		return model.Paper{}, &apperr.FetchError{ID: arxivID, Err: err}
	}

	log.Infof("[ArxivClient] 成功获取论文元数据, id: %s, title: %s", paper.ID, paper.Title)
	return paper, nil
}

func (c *Client) fetchEntry(ctx context.Context, arxivID string) (atomEntry, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return atomEntry{}, err
	}

	reqURL := c.cfg.BaseURL + "?" + url.Values{"id_list": {arxivID}, "max_results": {"1"}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return atomEntry{}, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return atomEntry{}, ctx.Err()
		}
		return atomEntry{}, fmt.Errorf("%w: arXiv API request: %v", apperr.ErrUpstream, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		_, _ = io.Copy(io.Discard, resp.Body)
		return atomEntry{}, fmt.Errorf("%w: arXiv API returned HTTP %d", apperr.ErrUpstream, resp.StatusCode)
	case resp.StatusCode == http.StatusBadRequest:
		return atomEntry{}, apperr.InvalidInput("arXiv API rejected id %q", arxivID)
	default:
		return atomEntry{}, fmt.Errorf("arXiv API returned HTTP %d", resp.StatusCode)
	}

	var feed atomFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return atomEntry{}, fmt.Errorf("%w: parsing arXiv response: %v", apperr.ErrUpstream, err)
	}

	// 不存在的 ID 返回空 feed；格式错误的 ID 返回一条指向 /api/errors 的 "Error" 条目
	if len(feed.Entries) == 0 {
		return atomEntry{}, apperr.ErrNotFound
	}
	entry := feed.Entries[0]
	if entry.ID == "" || strings.Contains(entry.ID, "/api/errors") || strings.TrimSpace(entry.Title) == "" {
		return atomEntry{}, apperr.ErrNotFound
	}
	return entry, nil
}

func (c *Client) toPaper(entry atomEntry) (model.Paper, error) {
	paper := model.Paper{
		ID:       IDFromURL(entry.ID),
		Title:    flatten(entry.Title),
		Abstract: flatten(entry.Summary),
		URL:      strings.TrimSpace(entry.ID),
	}
	for _, a := range entry.Authors {
		paper.Authors = append(paper.Authors, flatten(a.Name))
	}
	for _, l := range entry.Links {
		if l.Title == "pdf" || l.Type == "application/pdf" {
			paper.PDF = l.Href
		}
	}
	for _, cat := range entry.Categories {
		if cat.Term != "" {
			paper.Categories = append(paper.Categories, cat.Term)
		}
	}
	if published, err := time.Parse(time.RFC3339, strings.TrimSpace(entry.Published)); err == nil {
		paper.Month = int(published.Month())
		paper.Year = published.Year()
	}

	if err := paper.Validate(c.now()); err != nil {
		return model.Paper{}, err
	}
	return paper, nil
}

// flatten 将换行替换为空格并去掉首尾空白，下游渲染会把换行当作格式分隔。
func flatten(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.TrimSpace(s)
}
