package routes

import (
	"github.com/gin-gonic/gin"
)

func AdminRoutes(r *gin.Engine, d Deps) {
	admin := r.Group("/api/admin")
	admin.Use(d.Tokens.RequireAdmin(d.AdminKey))
	{
		admin.GET("/records", d.Shipments.ListRecords)
		admin.POST("/records", d.Shipments.CreateRecord)
		admin.PATCH("/records", d.Shipments.PatchByTrackingID)
		admin.DELETE("/records", d.Shipments.DeleteRecord)

		admin.GET("/records/:id", d.Shipments.GetRecord)
		admin.PATCH("/records/:id", d.Shipments.PatchRecord)
		admin.DELETE("/records/:id", d.Shipments.DeleteRecord)

		admin.POST("/records/:id/next", d.Shipments.NextCheckpoint)
		admin.POST("/records/:id/location", d.Shipments.SetLocation)
		admin.POST("/records/:id/route", d.Shipments.RegenerateRoute)
	}
}
