package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lorebase/lorebase/internal/middleware"
)

type RouterDeps struct {
	Documents   *DocumentHandler
	Query       *QueryHandler
	Preferences *PreferencesHandler
	JWTSecret   []byte
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	authGroup := api.Group("")
	authGroup.Use(middleware.JWTAuth(deps.JWTSecret))

	// Uploads run the whole extract/embed pipeline, so keep them paced.
	uploadGroup := authGroup.Group("")
	uploadGroup.Use(middleware.RateLimit(2 * time.Second))
	uploadGroup.POST("/documents/upload", deps.Documents.Upload)

	authGroup.GET("/documents", deps.Documents.List)
	authGroup.GET("/documents/:id", deps.Documents.Get)
	authGroup.GET("/documents/:id/chunks", deps.Documents.Chunks)
	authGroup.GET("/documents/:id/download", deps.Documents.Download)
	authGroup.PUT("/documents/:id", deps.Documents.Update)
	authGroup.PUT("/documents/:id/select", deps.Documents.Select)
	authGroup.DELETE("/documents/:id", deps.Documents.Delete)

	authGroup.POST("/query/augment", deps.Query.Augment)
	authGroup.GET("/messages/:id/chunks", deps.Query.Associations)

	authGroup.GET("/preferences", deps.Preferences.Get)
	authGroup.PUT("/preferences", deps.Preferences.Update)
}
