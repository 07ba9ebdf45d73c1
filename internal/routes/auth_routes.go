package routes

import (
	"github.com/gin-gonic/gin"
)

func AuthRoutes(r *gin.Engine, d Deps) {
	handlers := []gin.HandlerFunc{d.Auth.Login}
	if d.LoginLimiter != nil {
		handlers = append([]gin.HandlerFunc{d.LoginLimiter.Limit()}, handlers...)
	}

	auth := r.Group("/api")
	{
		auth.POST("/login", handlers...)
	}
}
