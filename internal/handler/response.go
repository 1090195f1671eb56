// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"paper-search-go/internal/apperr"
	"paper-search-go/pkg/log"
)

// statusFor 将错误类别映射为 HTTP 状态码。
func statusFor(err error) int {
	switch {
	case apperr.IsInvalidInput(err):
		return http.StatusBadRequest
	case apperr.IsNotFound(err):
		return http.StatusNotFound
	case apperr.IsUpstream(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondOK(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": message, "data": data})
}

// respondError 写出错误响应；500 时不向调用方暴露内部错误信息。
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		log.Errorf("[Handler] %s %s 内部错误: %v", c.Request.Method, c.Request.URL.Path, err)
		message = "internal server error"
	} else {
		log.Warnf("[Handler] %s %s 请求失败, status: %d, error: %v", c.Request.Method, c.Request.URL.Path, status, err)
	}
	c.JSON(status, gin.H{"code": status, "message": message, "data": nil})
}
