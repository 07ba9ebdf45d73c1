package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"shiptrace/internal/metrics"
	"shiptrace/internal/middleware"
	"shiptrace/internal/models"
	"shiptrace/internal/routing"
	"shiptrace/internal/store"
	"shiptrace/internal/tracking"
)

const defaultLocationNote = "Manual update"

// mutate runs m against the record addressed by ref and publishes the result.
func (sc *ShipmentController) mutate(c *gin.Context, op string, ref string, m tracking.Mutation) (models.Shipment, bool) {
	now := sc.now()
	updated, err := sc.Store.FindOneAndUpdate(c.Request.Context(), store.ByRef(ref), func(sh *models.Shipment) error {
		next, err := tracking.Apply(*sh, m, now)
		if err != nil {
			return err
		}
		next.UpdatedBy = m.By
		*sh = next
		return nil
	})
	metrics.RecordMutation(op, err)
	if err != nil {
		respondStoreError(c, err, "Failed to update record")
		return updated, false
	}
	sc.Hub.Publish(updated)
	return updated, true
}

// NextCheckpoint moves the shipment one checkpoint forward.
// @Router /api/admin/records/{id}/next [post]
func (sc *ShipmentController) NextCheckpoint(c *gin.Context) {
	updated, ok := sc.mutate(c, "next", c.Param("id"), tracking.Mutation{
		AdvanceOne: true,
		By:         middleware.Actor(c),
	})
	if !ok {
		return
	}
	logrus.WithFields(logrus.Fields{
		"tracking_id":   updated.TrackingID,
		"current_index": updated.CurrentIndex,
		"status":        updated.Status,
		"terminal":      tracking.IsTerminal(updated.Status),
	}).Info("Shipment advanced to next checkpoint.")
	c.JSON(http.StatusOK, updated)
}

// SetLocation records a manual position report. A city that matches a
// checkpoint also moves the index there.
// @Router /api/admin/records/{id}/location [post]
func (sc *ShipmentController) SetLocation(c *gin.Context) {
	var in locationInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body"})
		return
	}
	loc := pointFromLatLng(in.Lat, in.Lng)
	city := strings.TrimSpace(in.City)
	if loc == nil && city == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Provide lat/lng or city"})
		return
	}

	updated, ok := sc.mutate(c, "location", c.Param("id"), tracking.Mutation{
		DestinationCityHint: city,
		NewLocation:         loc,
		HistoryCity:         city,
		Note:                firstNonEmpty(in.Note, defaultLocationNote),
		By:                  middleware.Actor(c),
	})
	if !ok {
		return
	}
	c.JSON(http.StatusOK, updated)
}

// RegenerateRoute replaces the route with a freshly generated one. The
// directions call happens outside the record update; if it yields nothing
// the stored route is left alone.
// @Router /api/admin/records/{id}/route [post]
func (sc *ShipmentController) RegenerateRoute(c *gin.Context) {
	ref := c.Param("id")
	current, err := sc.Store.FindOne(c.Request.Context(), store.ByRef(ref))
	if err != nil {
		respondStoreError(c, err, "Failed to fetch record")
		return
	}

	origin := current.Origin.Data()
	dest := current.Destination.Data()
	originLabel, destLabel := routeLabels(origin, dest, current.OriginWarehouse)
	route := sc.Routes.Generate(c.Request.Context(),
		routing.Endpoint{Location: origin.Location, Label: originLabel},
		routing.Endpoint{Location: dest.Location, Label: destLabel},
	)
	if len(route) == 0 {
		metrics.RecordMutation("route", errRouteUnavailable)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Could not generate route"})
		return
	}

	updated, ok := sc.mutate(c, "route", current.TrackingID, tracking.Mutation{
		Route: route,
		By:    middleware.Actor(c),
	})
	if !ok {
		return
	}
	c.JSON(http.StatusOK, updated)
}
