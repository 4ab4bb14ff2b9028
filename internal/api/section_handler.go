package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"cvStudio/internal/api/middleware"
	"cvStudio/internal/editor"
)

// AccordionStore 是 *editor.SessionStore 的接口形式。
type AccordionStore interface {
	Load(ctx context.Context, userID, cvID uint) (editor.Accordion, error)
	Toggle(ctx context.Context, userID, cvID uint, section editor.Section) (editor.Accordion, error)
}

// SectionHandler 暴露编辑器折叠面板状态。
type SectionHandler struct {
	db       *gorm.DB
	sessions AccordionStore
}

func NewSectionHandler(db *gorm.DB, sessions AccordionStore) *SectionHandler {
	return &SectionHandler{db: db, sessions: sessions}
}

type sectionsResponse struct {
	Open     *editor.Section         `json:"open"`
	Expanded map[editor.Section]bool `json:"expanded"`
}

func newSectionsResponse(a editor.Accordion) sectionsResponse {
	resp := sectionsResponse{Expanded: a.Expanded()}
	if open, ok := a.Open(); ok {
		resp.Open = &open
	}
	return resp
}

// GET /v1/cv/:id/sections
func (h *SectionHandler) GetSections(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	ctx := c.Request.Context()

	cv, err := loadCV(ctx, h.db, c.Param("id"), session.UserID)
	if err != nil {
		respondLoadError(c, err)
		return
	}
	state, err := h.sessions.Load(ctx, session.UserID, cv.ID)
	if err != nil {
		middleware.LoggerFromContext(c).Error("load editor session failed", "error", err)
		Internal(c, "failed to load editor state")
		return
	}
	c.JSON(http.StatusOK, newSectionsResponse(state))
}

// POST /v1/cv/:id/sections/:section/toggle
// 同一时刻最多展开一个分区；切换已展开的分区会将其收起。
func (h *SectionHandler) ToggleSection(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	ctx := c.Request.Context()

	section, err := editor.ParseSection(c.Param("section"))
	if err != nil {
		BadRequest(c, "unknown section")
		return
	}
	cv, err := loadCV(ctx, h.db, c.Param("id"), session.UserID)
	if err != nil {
		respondLoadError(c, err)
		return
	}
	state, err := h.sessions.Toggle(ctx, session.UserID, cv.ID, section)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		middleware.LoggerFromContext(c).Error("toggle editor section failed", "error", err)
		Internal(c, "failed to save editor state")
		return
	}
	c.JSON(http.StatusOK, newSectionsResponse(state))
}
