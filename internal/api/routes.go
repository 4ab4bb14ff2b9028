package api

import (
	"github.com/gin-gonic/gin"

	"cvStudio/internal/api/middleware"
	"cvStudio/internal/entitlement"
)

// Handlers 汇总所有路由处理器。
type Handlers struct {
	CV       *CVHandler
	Sections *SectionHandler
	Export   *ExportHandler
	Assets   *AssetHandler
	Template *TemplateHandler
	Internal *InternalHandler
	Ws       *WsHandler
}

// RegisterRoutes 注册 API 路由，不包含 /api 前缀。
func RegisterRoutes(router *gin.Engine, h Handlers, verifier middleware.TokenVerifier, internalSecret string) {
	authMiddleware := middleware.AuthMiddleware(verifier)

	v1 := router.Group("/v1")
	{
		if h.Ws != nil {
			v1.GET("/ws", h.Ws.HandleConnection)
		}

		cvGroup := v1.Group("/cv")
		cvGroup.Use(authMiddleware)
		{
			cvGroup.GET("", h.CV.ListCVs)
			cvGroup.POST("", h.CV.CreateCV)
			cvGroup.GET("/:id", h.CV.GetCV)
			cvGroup.PUT("/:id", h.CV.UpdateCV)
			cvGroup.DELETE("/:id", h.CV.DeleteCV)
			cvGroup.GET("/:id/preview", h.CV.Preview)

			cvGroup.GET("/:id/sections", h.Sections.GetSections)
			cvGroup.POST("/:id/sections/:section/toggle", h.Sections.ToggleSection)

			cvGroup.POST("/:id/export/print", h.Export.ExportPrint)
			cvGroup.POST("/:id/export/pdf", h.Export.ExportPDF)
			cvGroup.GET("/:id/download-link", h.Export.DownloadLink)
		}

		assetGroup := v1.Group("/assets")
		assetGroup.Use(authMiddleware)
		{
			assetGroup.POST("/photo", h.Assets.UploadPhoto)
			assetGroup.GET("/view", h.Assets.ViewPhoto)
		}

		v1.GET("/templates", authMiddleware, h.Template.ListTemplates)

		if h.Internal != nil {
			internal := router.Group(entitlement.EntitlementsPath)
			internal.Use(middleware.InternalSecretMiddleware(internalSecret))
			internal.GET("/:uid", h.Internal.GetEntitlements)
		}
	}
}
