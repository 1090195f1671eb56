package handler

import (
	"github.com/gin-gonic/gin"

	"paper-search-go/internal/middleware"
	"paper-search-go/pkg/token"
)

// RegisterRoutes 在 r 上注册全部 HTTP 路由。
// 旧格式 ID 含有 "/"，调用方需编码为 %2F，因此按原始路径匹配路由。
func RegisterRoutes(r *gin.Engine, search *SearchHandler, index *IndexHandler, health *HealthHandler, jwtManager *token.JWTManager) {
	r.UseRawPath = true
	r.UnescapePathValues = true

	r.GET("/healthz", health.Healthz)

	apiV1 := r.Group("/api/v1")
	{
		// Search 路由组，公开访问
		searchGroup := apiV1.Group("/search")
		{
			searchGroup.POST("", search.Search)
			searchGroup.POST("/text", search.SearchText)
			searchGroup.GET("/known/:id", search.SearchKnownID)
			searchGroup.GET("/unknown/:id", search.SearchUnknownID)
			searchGroup.GET("/id/:id", search.SearchByID)
			searchGroup.POST("/reranked", search.RerankedSearch)
		}
		apiV1.POST("/rerank", search.Rerank)

		// 入库路由组，需要同时通过认证和管理员授权两个中间件
		papers := apiV1.Group("/papers")
		papers.Use(middleware.AuthMiddleware(jwtManager), middleware.AdminAuthMiddleware())
		{
			papers.POST("/index", index.Enqueue)
			papers.GET("/:id/status", index.Status)
		}
	}
}
