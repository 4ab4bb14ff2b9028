package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"cvStudio/internal/api/middleware"
	"cvStudio/internal/entitlement"
)

// InternalHandler 提供服务间接口，由 InternalSecretMiddleware 保护。
type InternalHandler struct {
	source entitlement.Source
}

func NewInternalHandler(source entitlement.Source) *InternalHandler {
	return &InternalHandler{source: source}
}

// GET /v1/internal/entitlements/:uid
// 输出格式与 entitlement.HTTPSource 读取的格式一致。
func (h *InternalHandler) GetEntitlements(c *gin.Context) {
	uid, err := strconv.ParseUint(c.Param("uid"), 10, 64)
	if err != nil || uid == 0 {
		BadRequest(c, "invalid user id")
		return
	}

	paid, err := h.source.PaidTemplates(c.Request.Context(), uint(uid))
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		middleware.LoggerFromContext(c).Error("load entitlements failed", "error", err, "target_user_id", uid)
		Internal(c, "failed to load entitlements")
		return
	}
	c.JSON(http.StatusOK, entitlement.EncodeSet(paid))
}
