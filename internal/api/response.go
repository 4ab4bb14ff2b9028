package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cvStudio/internal/export"
)

func Error(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg})
}

func AbortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
}

func BadRequest(c *gin.Context, msg string)      { Error(c, http.StatusBadRequest, msg) }
func PaymentRequired(c *gin.Context, msg string) { Error(c, http.StatusPaymentRequired, msg) }
func Forbidden(c *gin.Context, msg string)       { Error(c, http.StatusForbidden, msg) }
func NotFound(c *gin.Context, msg string)        { Error(c, http.StatusNotFound, msg) }
func Conflict(c *gin.Context, msg string)        { Error(c, http.StatusConflict, msg) }
func TooManyRequests(c *gin.Context, msg string) { Error(c, http.StatusTooManyRequests, msg) }
func Internal(c *gin.Context, msg string)        { Error(c, http.StatusInternalServerError, msg) }

// ExportFailed 返回导出失败，附带错误分类与用户提示。
func ExportFailed(c *gin.Context, err error) {
	kind := export.KindFromError(err)
	status := http.StatusUnprocessableEntity
	if kind == export.KindInternal {
		status = http.StatusInternalServerError
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"error": export.UserMessage(err), "code": kind})
}
