// routes.go - Route registration helpers
package api

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, h *Handler) {
	e.GET("/", h.HandleRoot)
	e.GET("/api/health", h.HandleHealth)

	g := e.Group("/api")
	g.POST("/upload", h.HandleUpload)
	g.POST("/chat", h.HandleChat)
	g.POST("/edit", h.HandleEdit)
	g.GET("/preview", h.HandlePreview)
	g.GET("/preview/msgpack", h.HandlePreviewMsgpack)
	g.POST("/complete", h.HandleComplete)
	g.GET("/download/:filename", h.HandleDownload)
	g.POST("/reset", h.HandleReset)
}
