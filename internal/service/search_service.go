// Package service 提供了检索与入库相关的业务逻辑。
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"paper-search-go/internal/apperr"
	"paper-search-go/internal/config"
	"paper-search-go/internal/filter"
	"paper-search-go/internal/model"
	"paper-search-go/pkg/arxiv"
	"paper-search-go/pkg/log"
	"paper-search-go/pkg/rerank"
)

// MaxSearchLimit 是单次检索允许返回的最大条数。
const MaxSearchLimit = config.MaxSearchLimit

// PaperFetcher 按 ID 获取论文元数据。
type PaperFetcher interface {
	FetchByID(ctx context.Context, arxivID string) (model.Paper, error)
}

// Embedder 将文本转换为向量。
type Embedder interface {
	Embed(ctx context.Context, text string) (model.Vector, error)
}

// VectorIndex 是检索所需的向量索引操作。
type VectorIndex interface {
	GetVector(ctx context.Context, id string) (model.Vector, bool, error)
	Search(ctx context.Context, v model.Vector, limit int, yr *filter.YearRange) ([]model.SearchResult, error)
}

// SearchService 接口定义了检索操作。filter 为时间范围类别，limit 为 0 时使用默认条数。
type SearchService interface {
	Search(ctx context.Context, req model.SearchRequest) ([]model.SearchResult, error)
	SearchByText(ctx context.Context, text, filter string, limit int) ([]model.SearchResult, error)
	SearchByKnownID(ctx context.Context, id, filter string, limit int) ([]model.SearchResult, error)
	SearchByUnknownID(ctx context.Context, id, filter string, limit int) ([]model.SearchResult, error)
	SearchByID(ctx context.Context, id, filter string, limit int) ([]model.SearchResult, error)
	Rerank(ctx context.Context, query string, results []model.SearchResult, topK int) ([]model.SearchResult, error)
	RerankedSearch(ctx context.Context, req model.SearchRequest) ([]model.SearchResult, error)
}

type searchService struct {
	fetcher          PaperFetcher
	embedder         Embedder
	index            VectorIndex
	reranker         rerank.Client
	filters          filter.Translator
	defaultLimit     int
	rerankInputLimit int
}

// NewSearchService 创建一个新的 SearchService 实例。
func NewSearchService(fetcher PaperFetcher, embedder Embedder, index VectorIndex, reranker rerank.Client,
	searchCfg config.SearchConfig, rerankCfg config.RerankConfig) SearchService {
	return &searchService{
		fetcher:          fetcher,
		embedder:         embedder,
		index:            index,
		reranker:         reranker,
		filters:          filter.Translator{Strict: searchCfg.StrictFilter, Now: time.Now},
		defaultLimit:     searchCfg.DefaultLimit,
		rerankInputLimit: rerankCfg.InputSearchLimit,
	}
}

// query 是校验后的检索参数。
type query struct {
	yearRange *filter.YearRange
	limit     int
}

func (s *searchService) parseQuery(filterCategory string, limit int) (query, error) {
	if limit == 0 {
		limit = s.defaultLimit
	}
	if limit < 1 || limit > MaxSearchLimit {
		return query{}, apperr.InvalidInput("search_limit must be between 1 and %d, got %d", MaxSearchLimit, limit)
	}
	yr, err := s.filters.Translate(filterCategory)
	if err != nil {
		return query{}, err
	}
	return query{yearRange: yr, limit: limit}, nil
}

// Search 自动识别查询文本：包含 arXiv ID 时按 ID 检索，否则按文本语义检索。
func (s *searchService) Search(ctx context.Context, req model.SearchRequest) ([]model.SearchResult, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, apperr.InvalidInput("text must not be empty")
	}
	q, err := s.parseQuery(req.Filter, req.SearchLimit)
	if err != nil {
		return nil, err
	}

	if id, ok := arxiv.ExtractID(text); ok {
		log.Infof("[SearchService] 查询中识别到 arXiv ID: %s", id)
		return s.searchByID(ctx, id, q)
	}
	return s.searchByText(ctx, text, q)
}

// SearchByText 对文本做向量化后检索。
func (s *searchService) SearchByText(ctx context.Context, text, filterCategory string, limit int) ([]model.SearchResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperr.InvalidInput("text must not be empty")
	}
	q, err := s.parseQuery(filterCategory, limit)
	if err != nil {
		return nil, err
	}
	return s.searchByText(ctx, text, q)
}

// SearchByKnownID 使用索引中已存储的向量检索，ID 不在索引中时返回 ErrNotFound。
func (s *searchService) SearchByKnownID(ctx context.Context, id, filterCategory string, limit int) ([]model.SearchResult, error) {
	id, q, err := s.parseIDQuery(id, filterCategory, limit)
	if err != nil {
		return nil, err
	}

	v, found, err := s.storedVector(ctx, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("paper %s is not indexed: %w", id, apperr.ErrNotFound)
	}
	return s.searchVector(ctx, v, q)
}

// SearchByUnknownID 从 arXiv 获取论文摘要并向量化后检索，不读取索引中的向量。
func (s *searchService) SearchByUnknownID(ctx context.Context, id, filterCategory string, limit int) ([]model.SearchResult, error) {
	id, q, err := s.parseIDQuery(id, filterCategory, limit)
	if err != nil {
		return nil, err
	}
	return s.searchByFetchedAbstract(ctx, id, q)
}

// SearchByID 优先使用已存储的向量，不存在时回退到获取并向量化摘要。
func (s *searchService) SearchByID(ctx context.Context, id, filterCategory string, limit int) ([]model.SearchResult, error) {
	id, q, err := s.parseIDQuery(id, filterCategory, limit)
	if err != nil {
		return nil, err
	}
	return s.searchByID(ctx, id, q)
}

func (s *searchService) parseIDQuery(id, filterCategory string, limit int) (string, query, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", query{}, apperr.InvalidInput("id must not be empty")
	}
	q, err := s.parseQuery(filterCategory, limit)
	return id, q, err
}

func (s *searchService) searchByText(ctx context.Context, text string, q query) ([]model.SearchResult, error) {
	log.Infof("[SearchService] 开始文本检索, limit: %d", q.limit)
	v, err := s.embedder.Embed(ctx, text)
	if err != nil {
		log.Errorf("[SearchService] 向量化查询失败: %v", err)
		return nil, fmt.Errorf("failed to create query embedding: %w", err)
	}
	return s.searchVector(ctx, v, q)
}

func (s *searchService) searchByID(ctx context.Context, id string, q query) ([]model.SearchResult, error) {
	v, found, err := s.storedVector(ctx, id)
	if err != nil {
		return nil, err
	}
	if found {
		log.Infof("[SearchService] 使用索引中已存储的向量, id: %s", id)
		return s.searchVector(ctx, v, q)
	}
	log.Infof("[SearchService] 索引中不存在 id: %s, 改为获取摘要并向量化", id)
	return s.searchByFetchedAbstract(ctx, id, q)
}

func (s *searchService) searchByFetchedAbstract(ctx context.Context, id string, q query) ([]model.SearchResult, error) {
	paper, err := s.fetcher.FetchByID(ctx, id)
	if err != nil {
		return nil, err
	}
	v, err := s.embedder.Embed(ctx, paper.Abstract)
	if err != nil {
		log.Errorf("[SearchService] 摘要向量化失败, id: %s, error: %v", id, err)
		return nil, fmt.Errorf("failed to embed abstract of %s: %w", id, err)
	}
	return s.searchVector(ctx, v, q)
}

func (s *searchService) storedVector(ctx context.Context, id string) (model.Vector, bool, error) {
	v, found, err := s.index.GetVector(ctx, id)
	if err != nil {
		log.Errorf("[SearchService] 读取已存储向量失败, id: %s, error: %v", id, err)
		return model.Vector{}, false, fmt.Errorf("%w: read stored vector of %s: %v", apperr.ErrUpstream, id, err)
	}
	return v, found, nil
}

// searchVector 是所有检索路径最终汇合的唯一一次索引查询。
func (s *searchService) searchVector(ctx context.Context, v model.Vector, q query) ([]model.SearchResult, error) {
	results, err := s.index.Search(ctx, v, q.limit, q.yearRange)
	if err != nil {
		log.Errorf("[SearchService] 向量检索失败: %v", err)
		return nil, fmt.Errorf("%w: vector search: %v", apperr.ErrUpstream, err)
	}
	log.Infof("[SearchService] 检索完成, 返回 %d 条结果", len(results))
	return results, nil
}

// Rerank 按每条结果的摘要与 query 的相关性重新排序，返回至多 topK 条。
func (s *searchService) Rerank(ctx context.Context, query string, results []model.SearchResult, topK int) ([]model.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperr.InvalidInput("query must not be empty")
	}
	if topK == 0 {
		topK = s.defaultLimit
	}
	if topK < 1 || topK > MaxSearchLimit {
		return nil, apperr.InvalidInput("top_k must be between 1 and %d, got %d", MaxSearchLimit, topK)
	}
	if len(results) > MaxSearchLimit {
		return nil, apperr.InvalidInput("at most %d documents can be reranked, got %d", MaxSearchLimit, len(results))
	}
	if len(results) == 0 {
		return []model.SearchResult{}, nil
	}

	documents := make([]string, len(results))
	for i, r := range results {
		documents[i] = r.Entity.Abstract
	}

	ranked, err := s.reranker.Rerank(ctx, query, documents, topK)
	if err != nil {
		log.Errorf("[SearchService] 重排序失败: %v", err)
		return nil, fmt.Errorf("failed to rerank results: %w", err)
	}

	reranked := make([]model.SearchResult, 0, len(ranked))
	seen := make(map[int]bool, len(ranked))
	for _, r := range ranked {
		if len(reranked) == topK {
			break
		}
		if r.Index < 0 || r.Index >= len(results) || seen[r.Index] {
			continue
		}
		seen[r.Index] = true
		reranked = append(reranked, results[r.Index])
	}
	log.Infof("[SearchService] 重排序完成, 输入 %d 条, 返回 %d 条", len(results), len(reranked))
	return reranked, nil
}

// RerankedSearch 以更大的候选数执行 Search，再重排序取前 search_limit 条。
func (s *searchService) RerankedSearch(ctx context.Context, req model.SearchRequest) ([]model.SearchResult, error) {
	topK := req.SearchLimit
	if topK == 0 {
		topK = s.defaultLimit
	}
	if topK < 1 || topK > MaxSearchLimit {
		return nil, apperr.InvalidInput("search_limit must be between 1 and %d, got %d", MaxSearchLimit, topK)
	}

	candidates := req
	candidates.SearchLimit = s.rerankInputLimit
	if candidates.SearchLimit < topK {
		candidates.SearchLimit = topK
	}
	results, err := s.Search(ctx, candidates)
	if err != nil {
		return nil, err
	}
	return s.Rerank(ctx, req.Text, results, topK)
}
