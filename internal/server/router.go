package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func NewRouter(h *Handler) *gin.Engine {
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000", "http://localhost:5173"},
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", HealthCheck)

	api := router.Group("/api")
	{
		api.GET("/projects", h.ListProjects)
		api.POST("/projects", h.CreateProject)
		api.DELETE("/projects/:id", h.DeleteProject)
		api.POST("/projects/:id/upload", h.UploadDocument)
		api.GET("/projects/:id/details", h.ListProjectDetails)
		api.GET("/projects/:id/status", h.ProjectStatus)
		api.GET("/search", h.Search)
		api.DELETE("/details/:id", h.DeleteDetail)
	}

	return router
}
