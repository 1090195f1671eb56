package handler

import (
	"github.com/gin-gonic/gin"

	"paper-search-go/internal/apperr"
	"paper-search-go/internal/middleware"
	"paper-search-go/internal/service"
	"paper-search-go/pkg/token"
)

// IndexHandler 负责处理论文入库相关的管理请求。
type IndexHandler struct {
	indexService service.IndexService
}

// NewIndexHandler 创建一个新的 IndexHandler 实例。
func NewIndexHandler(indexService service.IndexService) *IndexHandler {
	return &IndexHandler{indexService: indexService}
}

// EnqueueRequest 是 /papers/index 的请求体。
type EnqueueRequest struct {
	IDs []string `json:"ids"`
}

// Enqueue 为请求中的每个 ID 投递一个入库任务。
func (h *IndexHandler) Enqueue(c *gin.Context) {
	var req EnqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.InvalidInput("invalid request body: %v", err))
		return
	}

	requestedBy := ""
	if v, ok := c.Get(middleware.ClaimsKey); ok {
		if claims, ok := v.(*token.CustomClaims); ok {
			requestedBy = claims.Subject
		}
	}

	ids, err := h.indexService.Enqueue(c.Request.Context(), req.IDs, requestedBy)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "入库任务已投递", gin.H{"ids": ids})
}

// Status 查询单篇论文的入库进度。
func (h *IndexHandler) Status(c *gin.Context) {
	record, err := h.indexService.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "success", record)
}
