package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"shiptrace/internal/routing"
)

// GeocodeController proxies address searches to the geocoding provider.
// A nil Geocoder means no provider key is configured.
type GeocodeController struct {
	Geocoder routing.Geocoder
}

// Geocode returns the provider's raw search result for ?address=.
// @Router /api/geocode [get]
func (gc *GeocodeController) Geocode(c *gin.Context) {
	address := strings.TrimSpace(c.Query("address"))
	if address == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing address parameter"})
		return
	}
	if gc.Geocoder == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ORS_API_KEY not set"})
		return
	}

	raw, err := gc.Geocoder.Geocode(c.Request.Context(), address)
	if err != nil {
		logrus.WithError(err).WithField("address", address).Warn("Geocoding request failed.")
		c.JSON(http.StatusBadGateway, gin.H{"error": "Geocoding failed"})
		return
	}
	c.Header("Cache-Control", "s-maxage=60, stale-while-revalidate=120")
	c.Data(http.StatusOK, "application/json; charset=utf-8", raw)
}
