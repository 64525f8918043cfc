package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/calcfunding/publishing-backend/internal/handlers"
)

type RouterConfig struct {
	BuildProjectsHandler    *handlers.BuildProjectsHandler
	PublishedFundingHandler *handlers.PublishedFundingHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{
			"http://localhost:80",
			"http://localhost:3000",
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)

	api := router.Group("/api")
	{
		api.GET("/buildprojects", cfg.BuildProjectsHandler.GetBuildProjectBySpecificationID)
		api.POST("/publishedfunding/search", cfg.PublishedFundingHandler.Search)
	}

	return router
}
