package routes

import (
	"github.com/gin-gonic/gin"
)

func PublicRoutes(r *gin.Engine, d Deps) {
	public := r.Group("/api")
	{
		public.GET("/public/track", d.Tracking.Track)
		public.GET("/geocode", d.Geocode.Geocode)
	}
}
