package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"paper-search-go/internal/apperr"
	"paper-search-go/internal/model"
	"paper-search-go/internal/service"
	"paper-search-go/pkg/log"
)

// SearchHandler 结构体定义了检索相关的处理器。
type SearchHandler struct {
	searchService service.SearchService
}

// NewSearchHandler 创建一个新的 SearchHandler 实例。
func NewSearchHandler(searchService service.SearchService) *SearchHandler {
	return &SearchHandler{searchService: searchService}
}

// RerankRequest 是 /rerank 的请求体，documents 为之前检索返回的结果。
type RerankRequest struct {
	Query     string               `json:"query"`
	Documents []model.SearchResult `json:"documents"`
	TopK      int                  `json:"top_k"`
}

func bindSearchRequest(c *gin.Context) (model.SearchRequest, bool) {
	var req model.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.InvalidInput("invalid request body: %v", err))
		return req, false
	}
	return req, true
}

// idQuery 读取路径中的 ID 以及 filter、search_limit 查询参数。
func idQuery(c *gin.Context) (id, filter string, limit int, ok bool) {
	id = c.Param("id")
	filter = c.Query("filter")
	if raw := c.Query("search_limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respondError(c, apperr.InvalidInput("search_limit must be an integer, got %q", raw))
			return "", "", 0, false
		}
		limit = n
	}
	return id, filter, limit, true
}

// Search 自动识别文本中的 arXiv ID 并选择检索方式。
func (h *SearchHandler) Search(c *gin.Context) {
	req, ok := bindSearchRequest(c)
	if !ok {
		return
	}
	log.Infof("[SearchHandler] 收到检索请求, filter: %q, search_limit: %d", req.Filter, req.SearchLimit)

	results, err := h.searchService.Search(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "success", results)
}

// SearchText 按文本语义检索。
func (h *SearchHandler) SearchText(c *gin.Context) {
	req, ok := bindSearchRequest(c)
	if !ok {
		return
	}
	results, err := h.searchService.SearchByText(c.Request.Context(), req.Text, req.Filter, req.SearchLimit)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "success", results)
}

// SearchKnownID 使用索引中已存储的向量检索。
func (h *SearchHandler) SearchKnownID(c *gin.Context) {
	id, filter, limit, ok := idQuery(c)
	if !ok {
		return
	}
	results, err := h.searchService.SearchByKnownID(c.Request.Context(), id, filter, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "success", results)
}

// SearchUnknownID 从 arXiv 获取摘要后检索。
func (h *SearchHandler) SearchUnknownID(c *gin.Context) {
	id, filter, limit, ok := idQuery(c)
	if !ok {
		return
	}
	results, err := h.searchService.SearchByUnknownID(c.Request.Context(), id, filter, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "success", results)
}

// SearchByID 优先使用已存储的向量，否则从 arXiv 获取。
func (h *SearchHandler) SearchByID(c *gin.Context) {
	id, filter, limit, ok := idQuery(c)
	if !ok {
		return
	}
	results, err := h.searchService.SearchByID(c.Request.Context(), id, filter, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "success", results)
}

// Rerank 对调用方给出的检索结果重新排序。
func (h *SearchHandler) Rerank(c *gin.Context) {
	var req RerankRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.InvalidInput("invalid request body: %v", err))
		return
	}
	results, err := h.searchService.Rerank(c.Request.Context(), req.Query, req.Documents, req.TopK)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "success", results)
}

// RerankedSearch 检索更多候选后重排序。
func (h *SearchHandler) RerankedSearch(c *gin.Context) {
	req, ok := bindSearchRequest(c)
	if !ok {
		return
	}
	results, err := h.searchService.RerankedSearch(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "success", results)
}
