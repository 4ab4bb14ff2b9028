package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"cvStudio/internal/api/middleware"
	"cvStudio/internal/auth"
	"cvStudio/internal/entitlement"
	"cvStudio/internal/templates"
)

// TemplateLister 是 *templates.Resolver 的目录子集。
type TemplateLister interface {
	List(ctx context.Context) ([]templates.Listing, error)
}

// EntitlementSnapshotter 是 *entitlement.Gate 的快照子集。
type EntitlementSnapshotter interface {
	Snapshot(ctx context.Context, session auth.Session) (entitlement.Set, error)
}

// TemplateHandler 负责模板目录。
type TemplateHandler struct {
	lister TemplateLister
	gate   EntitlementSnapshotter
}

func NewTemplateHandler(lister TemplateLister, gate EntitlementSnapshotter) *TemplateHandler {
	return &TemplateHandler{lister: lister, gate: gate}
}

type templateListItem struct {
	templates.Listing
	Entitled bool `json:"entitled"`
}

// GET /v1/templates
// 未注册渲染器的条目以 available=false 返回；授权来源不可用时全部视为未授权。
func (h *TemplateHandler) ListTemplates(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	ctx := c.Request.Context()

	listings, err := h.lister.List(ctx)
	if err != nil {
		middleware.LoggerFromContext(c).Error("list templates failed", "error", err)
		Internal(c, "failed to list templates")
		return
	}

	paid, err := h.gate.Snapshot(ctx, session)
	if err != nil {
		middleware.LoggerFromContext(c).Warn("entitlement snapshot failed", "error", err)
	}

	items := make([]templateListItem, 0, len(listings))
	for _, l := range listings {
		items = append(items, templateListItem{
			Listing:  l,
			Entitled: entitlement.IsExportAllowed(session.UserID, l.ID, paid),
		})
	}
	c.JSON(http.StatusOK, items)
}
