package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"shiptrace/internal/store"
	"shiptrace/internal/tracking"
)

var errRouteUnavailable = errors.New("route generation returned no checkpoints")

// respondStoreError maps store and engine errors to HTTP responses.
// Anything unrecognised is logged and reported as a 500 with msg.
func respondStoreError(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
	case errors.Is(err, tracking.ErrAlreadyAtFinalCheckpoint):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Already at final checkpoint"})
	case errors.Is(err, store.ErrDuplicateTrackingID):
		c.JSON(http.StatusConflict, gin.H{"error": "trackingId already exists"})
	default:
		logrus.WithError(err).WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
		}).Error(msg)
		c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
	}
}
