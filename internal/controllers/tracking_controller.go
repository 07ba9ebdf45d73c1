package controllers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"shiptrace/internal/store"
)

// TrackingController serves the public lookup.
type TrackingController struct {
	Store store.ShipmentStore
}

// Track returns the public view of one shipment.
// @Router /api/public/track [get]
// @Param trackingId query string true "Tracking id (alias: id)"
// @Param exposePrivate query string false "1 to include the receiver email"
func (tc *TrackingController) Track(c *gin.Context) {
	trackingID := firstNonEmpty(c.Query("trackingId"), c.Query("id"))
	if trackingID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "trackingId required"})
		return
	}

	record, err := tc.Store.FindOne(c.Request.Context(), store.ByTrackingID(trackingID))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}
	if err != nil {
		logrus.WithError(err).WithField("tracking_id", trackingID).Error("Public tracking lookup failed.")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}

	exposePrivate := c.Query("exposePrivate") == "1" || c.Query("exposePrivate") == "true"
	c.JSON(http.StatusOK, toPublic(record, exposePrivate))
}

// Health reports whether the store answers.
// @Router /healthz [get]
func (tc *TrackingController) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if _, err := tc.Store.Count(ctx); err != nil {
		logrus.WithError(err).Warn("Health check failed.")
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
